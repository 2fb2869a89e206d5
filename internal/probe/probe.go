// Package probe answers "can this tool serve requests right now".
// Probes are diagnostic invocations: they absorb every failure into a
// negative or partial report and never propagate errors.
package probe

import (
	"context"

	"cli2api/internal/core"
)

// Prober runs availability, version and authentication checks against
// one CLI tool through an injected executor.
type Prober struct {
	executor core.ProcessExecutor
	logger   core.Logger
}

// NewProber creates a Prober. A nil logger falls back to no-op.
func NewProber(executor core.ProcessExecutor, logger core.Logger) *Prober {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	return &Prober{executor: executor, logger: logger}
}

// CheckHealth runs the generic health probe. When the command cannot be
// located no process is spawned and the report says so. Version probe
// failures are swallowed; the check continues without a version. The
// test invocation's zero exit doubles as "authenticated" here, a coarse
// signal that the dedicated auth probe supersedes when configured.
func (p *Prober) CheckHealth(ctx context.Context, config *core.ProviderConfig) core.HealthReport {
	if !p.executor.IsCommandAvailable(config.Resolved()) {
		return core.HealthReport{
			Available: false,
			Error:     "command not found on search path",
		}
	}

	report := core.HealthReport{Available: true}

	if version, ok := p.executor.GetVersion(ctx, config.Resolved(), config.VersionArgs); ok {
		report.Version = version
	}

	if len(config.TestArgs) == 0 {
		return report
	}

	result, err := p.executor.Execute(ctx, config.Resolved(), config.TestArgs, core.HealthProbeTimeout)
	if err != nil {
		p.logger.Debug("健康探测执行失败 %s: %v", config.Name, err)
		report.Error = err.Error()
		return report
	}
	if result.ExitCode != 0 {
		report.Error = result.Stderr
		return report
	}
	report.Authenticated = true
	return report
}

// CheckAuthentication runs the tool's dedicated auth-status invocation.
// Every failure path reads as not authenticated; this never raises.
func (p *Prober) CheckAuthentication(ctx context.Context, config *core.ProviderConfig) bool {
	if len(config.AuthArgs) == 0 {
		return false
	}
	if !p.executor.IsCommandAvailable(config.Resolved()) {
		return false
	}

	result, err := p.executor.Execute(ctx, config.Resolved(), config.AuthArgs, core.AuthProbeTimeout)
	if err != nil {
		p.logger.Debug("认证探测执行失败 %s: %v", config.Name, err)
		return false
	}
	return result.ExitCode == 0
}
