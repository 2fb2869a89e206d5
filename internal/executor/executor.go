package executor

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"cli2api/internal/core"
	"cli2api/internal/util"
)

// CommandExecutor runs external CLI tools as supervised subprocesses.
// It implements core.ProcessExecutor. Every spawned process is bound to
// the call's context: on timeout or cancellation the process receives
// SIGTERM, then SIGKILL after the grace period.
type CommandExecutor struct {
	logger  core.Logger
	metrics core.MetricsCollector
}

// NewCommandExecutor creates a CommandExecutor. Nil logger or metrics
// fall back to no-op implementations.
func NewCommandExecutor(logger core.Logger, metrics core.MetricsCollector) *CommandExecutor {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	if metrics == nil {
		metrics = &core.NopMetrics{}
	}
	return &CommandExecutor{logger: logger, metrics: metrics}
}

// cappedBuffer bounds captured output so a runaway process cannot
// exhaust memory. Writes past the cap are counted but discarded.
type cappedBuffer struct {
	buf bytes.Buffer
	max int
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if remain := b.max - b.buf.Len(); remain > 0 {
		if len(p) > remain {
			p = p[:remain]
		}
		b.buf.Write(p)
	}
	return n, nil
}

func (b *cappedBuffer) String() string { return b.buf.String() }

// prepare resolves the command and builds an exec.Cmd bound to a
// deadline context. The returned context is the one the command runs
// under; callers inspect it to tell a timeout from other failures.
func (e *CommandExecutor) prepare(ctx context.Context, command string, args []string, timeout time.Duration) (*exec.Cmd, context.Context, context.CancelFunc, error) {
	if _, err := exec.LookPath(command); err != nil {
		return nil, nil, nil, fmt.Errorf("%s: %w", command, core.ErrCommandNotFound)
	}

	runCtx := ctx
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}

	cmd := exec.CommandContext(runCtx, command, args...)
	cmd.Cancel = func() error {
		return cmd.Process.Signal(syscall.SIGTERM)
	}
	cmd.WaitDelay = core.TerminateGracePeriod
	return cmd, runCtx, cancel, nil
}

// Execute runs the command to completion and captures its output.
// A non-zero exit is not an error; it lands in ExecutionResult.ExitCode.
func (e *CommandExecutor) Execute(ctx context.Context, command string, args []string, timeout time.Duration) (core.ExecutionResult, error) {
	cmd, runCtx, cancel, err := e.prepare(ctx, command, args, timeout)
	if err != nil {
		return core.ExecutionResult{}, err
	}
	defer cancel()

	stdout := &cappedBuffer{max: core.MaxCapturedOutputSize}
	stderr := &cappedBuffer{max: core.MaxCapturedOutputSize}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	e.logger.Debug("执行命令: %s %s", command, strings.Join(args, " "))
	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	result := core.ExecutionResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if runErr == nil {
		e.logger.Debug("命令完成: %s (%.2fs)", command, elapsed.Seconds())
		return result, nil
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		e.metrics.RecordTimeout()
		e.logger.Warn("命令超时: %s (%.1fs)", command, elapsed.Seconds())
		return result, fmt.Errorf("%s after %s: %w", command, elapsed.Round(time.Millisecond), core.ErrTimeout)
	}

	if errors.Is(runCtx.Err(), context.Canceled) {
		return result, fmt.Errorf("%s: %w", command, context.Canceled)
	}

	var exitErr *exec.ExitError
	if errors.As(runErr, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		e.logger.Debug("命令退出码 %d: %s", result.ExitCode, command)
		return result, nil
	}

	e.metrics.RecordSpawnFailure()
	return core.ExecutionResult{}, fmt.Errorf("%s: %v: %w", command, runErr, core.ErrSpawnFailed)
}

// lineStream delivers one spawned process's stdout line by line.
// It implements core.FragmentStream.
type lineStream struct {
	fragments chan string
	stop      context.CancelFunc
	closeOnce sync.Once

	mu  sync.Mutex
	err error
}

func (s *lineStream) Fragments() <-chan string { return s.fragments }

func (s *lineStream) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *lineStream) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

// Close terminates the underlying process. Safe to call more than once
// and after the stream has ended naturally.
func (s *lineStream) Close() {
	s.closeOnce.Do(s.stop)
}

// ExecuteStream starts the command and returns a FragmentStream of its
// stdout lines. The read loop owns Wait, so the process is always
// reaped; Close and context cancellation tear it down through the same
// SIGTERM path as Execute.
func (e *CommandExecutor) ExecuteStream(ctx context.Context, command string, args []string, timeout time.Duration) (core.FragmentStream, error) {
	cmd, runCtx, cancel, err := e.prepare(ctx, command, args, timeout)
	if err != nil {
		return nil, err
	}

	// closed set distinguishes consumer abandonment from real failures
	closedCtx, markClosed := context.WithCancel(context.Background())
	stop := func() {
		markClosed()
		cancel()
	}

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		stop()
		return nil, fmt.Errorf("%s: %v: %w", command, err, core.ErrSpawnFailed)
	}
	stderr := &cappedBuffer{max: core.MaxCapturedOutputSize}
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		stop()
		e.metrics.RecordSpawnFailure()
		return nil, fmt.Errorf("%s: %v: %w", command, err, core.ErrSpawnFailed)
	}

	stream := &lineStream{
		fragments: make(chan string, core.FragmentChannelBuffer),
		stop:      stop,
	}

	e.logger.Debug("流式执行命令: %s %s", command, strings.Join(args, " "))

	go func() {
		defer close(stream.fragments)
		defer cancel()

		scanner := bufio.NewScanner(stdoutPipe)
		scanner.Buffer(make([]byte, 64*1024), core.MaxScannerBufferSize)

	readLoop:
		for scanner.Scan() {
			select {
			case stream.fragments <- scanner.Text():
			case <-closedCtx.Done():
				break readLoop
			}
		}

		waitErr := cmd.Wait()

		switch {
		case closedCtx.Err() != nil:
			// consumer called Close; silence is the contract
		case errors.Is(runCtx.Err(), context.DeadlineExceeded):
			e.metrics.RecordTimeout()
			stream.setErr(fmt.Errorf("%s: %w", command, core.ErrTimeout))
		case errors.Is(runCtx.Err(), context.Canceled):
			stream.setErr(fmt.Errorf("%s: %w", command, context.Canceled))
		case waitErr != nil:
			var exitErr *exec.ExitError
			if errors.As(waitErr, &exitErr) {
				stream.setErr(fmt.Errorf("%s: exit %d: %s: %w",
					command, exitErr.ExitCode(),
					util.TruncateString(strings.TrimSpace(stderr.String()), 256, 256, " ... "),
					core.ErrNonZeroExit))
			} else {
				stream.setErr(fmt.Errorf("%s: %v: %w", command, waitErr, core.ErrSpawnFailed))
			}
		case scanner.Err() != nil:
			stream.setErr(fmt.Errorf("%s: read output: %w", command, scanner.Err()))
		}
	}()

	return stream, nil
}

// IsCommandAvailable reports whether the command resolves on PATH.
func (e *CommandExecutor) IsCommandAvailable(command string) bool {
	_, err := exec.LookPath(command)
	return err == nil
}

// GetVersion runs the version probe and returns the first trimmed output
// line. Any failure, including a non-zero exit, yields ok=false; probes
// never propagate errors.
func (e *CommandExecutor) GetVersion(ctx context.Context, command string, args []string) (string, bool) {
	result, err := e.Execute(ctx, command, args, core.VersionProbeTimeout)
	if err != nil || result.ExitCode != 0 {
		return "", false
	}

	out := strings.TrimSpace(result.Stdout)
	if out == "" {
		out = strings.TrimSpace(result.Stderr)
	}
	if out == "" {
		return "", false
	}
	return util.FirstLine(out), true
}
