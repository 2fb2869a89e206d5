package core

import (
	"context"
	"time"
)

// Logger interface
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
	Fatal(format string, args ...any)
}

// Cache interface
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, duration time.Duration)
	Stop()
}

// StorageInterface storage interface
type StorageInterface interface {
	SaveStats(stats *RequestStats) error
	LoadStats() (*RequestStats, error)
	Close() error
}

// MetricsCollector interface
type MetricsCollector interface {
	RecordHTTPRequest(duration time.Duration)
	RecordHTTPError()
	RecordCacheHit()
	RecordCacheMiss()
	RecordTimeout()
	RecordSpawnFailure()
	GetQPS() float64
}

// FragmentStream is a finite, non-restartable sequence of output fragments
// from one streaming invocation. Fragments arrive in the order the process
// produced them. After the channel closes, Err reports how the stream
// ended: nil for a natural end, otherwise the terminal failure. Consumers
// that stop reading early must call Close, which terminates the underlying
// process and releases its handles.
type FragmentStream interface {
	Fragments() <-chan string
	Err() error
	Close()
}

// ProcessExecutor spawns and supervises external commands. Implementations
// must guarantee that no process outlives the call that spawned it: on
// timeout or cancellation the process is terminated and its pipes closed
// before the failure is observable by the caller.
type ProcessExecutor interface {
	// Execute runs the command to completion under the given timeout.
	// A non-zero exit code is reported in the result, not as an error;
	// interpretation belongs to the caller. Timeout yields ErrTimeout,
	// a missing command ErrCommandNotFound, a failed spawn ErrSpawnFailed.
	Execute(ctx context.Context, command string, args []string, timeout time.Duration) (ExecutionResult, error)

	// ExecuteStream runs the command and returns its output incrementally.
	ExecuteStream(ctx context.Context, command string, args []string, timeout time.Duration) (FragmentStream, error)

	// IsCommandAvailable reports whether the command can be located and
	// launched at all, independent of its exit semantics.
	IsCommandAvailable(command string) bool

	// GetVersion runs a version probe and returns trimmed output.
	// Probe failures are swallowed: ok is false and nothing propagates.
	GetVersion(ctx context.Context, command string, args []string) (version string, ok bool)
}

// Provider is the capability contract consumed by upstream dispatch.
// One implementing variant exists per external tool; upstream routing
// selects a variant by configuration.
type Provider interface {
	Name() string
	IsAvailable() bool
	GetVersion(ctx context.Context) (string, bool)
	GetAuthStatus(ctx context.Context) AuthStatus
	GetAvailableModels(ctx context.Context) ([]ModelRecord, error)
	ChatCompletion(ctx context.Context, request *ChatCompletionRequest) (*ChatCompletionResponse, error)
	ChatCompletionStream(ctx context.Context, request *ChatCompletionRequest) (FragmentStream, error)
	ExecuteCommand(ctx context.Context, subcommand string, args []string) (string, error)
	ExecuteCommandStream(ctx context.Context, subcommand string, args []string) (FragmentStream, error)
}

// NopLogger empty logger implementation
type NopLogger struct{}

func (*NopLogger) Debug(format string, args ...any) {}
func (*NopLogger) Info(format string, args ...any)  {}
func (*NopLogger) Warn(format string, args ...any)  {}
func (*NopLogger) Error(format string, args ...any) {}
func (*NopLogger) Fatal(format string, args ...any) {}

// NopMetrics empty metrics collector implementation
type NopMetrics struct{}

func (*NopMetrics) RecordHTTPRequest(duration time.Duration) {}
func (*NopMetrics) RecordHTTPError()                         {}
func (*NopMetrics) RecordCacheHit()                          {}
func (*NopMetrics) RecordCacheMiss()                         {}
func (*NopMetrics) RecordTimeout()                           {}
func (*NopMetrics) RecordSpawnFailure()                      {}
func (*NopMetrics) GetQPS() float64                          { return 0 }
