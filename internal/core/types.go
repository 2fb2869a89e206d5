package core

import "time"

// ProviderConfig describes one external CLI tool acting as a completion
// backend. Immutable after construction; safe for concurrent reads.
type ProviderConfig struct {
	Name          string            `json:"name"`
	Command       string            `json:"command"`
	Path          string            `json:"path,omitempty"`
	DefaultArgs   []string          `json:"default_args,omitempty"`
	Timeout       time.Duration     `json:"-"`
	TimeoutSecs   int               `json:"timeout_seconds,omitempty"`
	VersionArgs   []string          `json:"version_args,omitempty"`
	AuthArgs      []string          `json:"auth_args,omitempty"`
	TestArgs      []string          `json:"test_args,omitempty"`
	ModelListArgs []string          `json:"model_list_args,omitempty"`
	ModelMapping  map[string]string `json:"model_mapping,omitempty"`
}

// Resolved returns the invocable command: the explicit path when set,
// otherwise the bare command name for PATH lookup.
func (pc *ProviderConfig) Resolved() string {
	if pc.Path != "" {
		return pc.Path
	}
	return pc.Command
}

// ExecutionResult holds the captured output of one completed invocation.
// A timeout never produces an ExecutionResult exit code; it is reported
// as ErrTimeout by the executor instead.
type ExecutionResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// AuthStatus reports the external tool's authentication state.
// Recomputed on every probe; never cached.
type AuthStatus struct {
	Authenticated bool      `json:"authenticated"`
	Account       string    `json:"account,omitempty"`
	Expiry        time.Time `json:"expiry,omitempty"`
}

// HealthReport is the result of a generic availability probe.
type HealthReport struct {
	Available     bool   `json:"available"`
	Version       string `json:"version,omitempty"`
	Error         string `json:"error,omitempty"`
	Authenticated bool   `json:"authenticated"`
}

// ModelRecord describes one model the external tool advertises.
// Capability flags are best-effort.
type ModelRecord struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name,omitempty"`
	Vision      bool   `json:"vision,omitempty"`
	ToolUse     bool   `json:"tool_use,omitempty"`
}

// RequestStats holds aggregated invocation statistics for monitoring.
type RequestStats struct {
	TotalRequests      int64           `json:"total_requests"`
	SuccessfulRequests int64           `json:"successful_requests"`
	FailedRequests     int64           `json:"failed_requests"`
	TotalResponseTime  int64           `json:"total_response_time"`
	LastRequestTime    time.Time       `json:"last_request_time"`
	RequestHistory     []RequestRecord `json:"request_history"`
}

// RequestRecord represents a single invocation's metadata for history tracking.
type RequestRecord struct {
	Timestamp    time.Time `json:"timestamp"`
	Success      bool      `json:"success"`
	ResponseTime int64     `json:"response_time"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
}

// PeriodStats holds computed statistics for a time period.
type PeriodStats struct {
	Requests        int64   `json:"requests"`
	SuccessRate     float64 `json:"successRate"`
	AvgResponseTime int64   `json:"avgResponseTime"`
	QPS             float64 `json:"qps"`
}
