// Package provider implements the capability contract upstream dispatch
// consumes. One CLIProvider wraps one external CLI tool; routing picks
// an instance by configured name, never by runtime type inspection.
package provider

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"cli2api/internal/cache"
	"cli2api/internal/core"
	"cli2api/internal/parse"
	"cli2api/internal/probe"
	"cli2api/internal/translate"
)

// CLIProvider adapts one external CLI tool to the core.Provider contract.
// The config is immutable after construction and read concurrently; all
// per-call state lives on the stack of the call.
type CLIProvider struct {
	config   *core.ProviderConfig
	executor core.ProcessExecutor
	prober   *probe.Prober
	cache    *cache.CacheService
	logger   core.Logger
	metrics  core.MetricsCollector
}

// NewCLIProvider wires a provider from its parts. Cache, logger and
// metrics may be nil.
func NewCLIProvider(config *core.ProviderConfig, executor core.ProcessExecutor, cacheService *cache.CacheService, logger core.Logger, metrics core.MetricsCollector) *CLIProvider {
	if logger == nil {
		logger = &core.NopLogger{}
	}
	if metrics == nil {
		metrics = &core.NopMetrics{}
	}
	return &CLIProvider{
		config:   config,
		executor: executor,
		prober:   probe.NewProber(executor, logger),
		cache:    cacheService,
		logger:   logger,
		metrics:  metrics,
	}
}

// NewClaudeCode builds a provider for the Claude Code CLI with its known
// flag surface. Config file entries override these defaults field by field.
func NewClaudeCode(executor core.ProcessExecutor, cacheService *cache.CacheService, logger core.Logger, metrics core.MetricsCollector) *CLIProvider {
	return NewCLIProvider(DefaultClaudeCodeConfig(), executor, cacheService, logger, metrics)
}

// DefaultClaudeCodeConfig returns the built-in Claude Code provider config.
func DefaultClaudeCodeConfig() *core.ProviderConfig {
	return &core.ProviderConfig{
		Name:        "claude-code",
		Command:     "claude",
		Timeout:     core.DefaultInvocationTimeout,
		VersionArgs: []string{"--version"},
		AuthArgs:    []string{"auth", "status"},
		ModelMapping: map[string]string{
			"gpt-4o":      "claude-sonnet-4-20250514",
			"gpt-4o-mini": "claude-3-5-haiku-20241022",
		},
	}
}

// Name returns the provider's configured name.
func (p *CLIProvider) Name() string { return p.config.Name }

// Config exposes the immutable provider configuration.
func (p *CLIProvider) Config() *core.ProviderConfig { return p.config }

// IsAvailable reports whether the tool can be located and launched.
func (p *CLIProvider) IsAvailable() bool {
	return p.executor.IsCommandAvailable(p.config.Resolved())
}

// GetVersion probes the tool's version. Failures read as absent.
func (p *CLIProvider) GetVersion(ctx context.Context) (string, bool) {
	return p.executor.GetVersion(ctx, p.config.Resolved(), p.config.VersionArgs)
}

// GetAuthStatus probes and parses the tool's authentication state.
// Recomputed on every call; never cached. Any failure reads as not
// authenticated.
func (p *CLIProvider) GetAuthStatus(ctx context.Context) core.AuthStatus {
	if len(p.config.AuthArgs) == 0 || !p.IsAvailable() {
		return core.AuthStatus{}
	}

	result, err := p.executor.Execute(ctx, p.config.Resolved(), p.config.AuthArgs, core.AuthProbeTimeout)
	if err != nil {
		p.logger.Debug("Auth status probe failed for %s: %v", p.config.Name, err)
		return core.AuthStatus{}
	}
	if result.ExitCode != 0 {
		return core.AuthStatus{}
	}
	return parse.ParseAuthStatus(result.Stdout)
}

// CheckHealth runs the generic availability probe for this provider.
func (p *CLIProvider) CheckHealth(ctx context.Context) core.HealthReport {
	report := p.prober.CheckHealth(ctx, p.config)
	if report.Available && len(p.config.AuthArgs) > 0 {
		// the dedicated auth probe supersedes the exit-zero heuristic
		report.Authenticated = p.prober.CheckAuthentication(ctx, p.config)
	}
	return report
}

// GetAvailableModels lists the models the tool advertises. Listings are
// cached briefly; tools without a listing subcommand fall back to the
// logical names of their model mapping.
func (p *CLIProvider) GetAvailableModels(ctx context.Context) ([]core.ModelRecord, error) {
	cacheKey := cache.GenerateModelListCacheKey(p.config.Name)
	if p.cache != nil {
		if records, found := p.cache.GetModelListCache(cacheKey); found {
			p.metrics.RecordCacheHit()
			return records, nil
		}
		p.metrics.RecordCacheMiss()
	}

	records, err := p.fetchModels(ctx)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		p.cache.SetModelListCache(cacheKey, records, core.ModelListCacheTTL)
	}
	return records, nil
}

func (p *CLIProvider) fetchModels(ctx context.Context) ([]core.ModelRecord, error) {
	if len(p.config.ModelListArgs) == 0 {
		return p.modelsFromMapping(), nil
	}

	result, err := p.executor.Execute(ctx, p.config.Resolved(), p.config.ModelListArgs, core.ModelListTimeout)
	if err != nil {
		return nil, fmt.Errorf("list models for %s: %w", p.config.Name, err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("list models for %s: %s: %w",
			p.config.Name, strings.TrimSpace(result.Stderr), core.ErrNonZeroExit)
	}
	return p.mergeMappedModels(parse.ParseModelList(result.Stdout)), nil
}

// mergeMappedModels appends the mapping's logical names to a parsed
// listing so callers can discover the names the mapping accepts.
func (p *CLIProvider) mergeMappedModels(records []core.ModelRecord) []core.ModelRecord {
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[r.ID] = true
	}
	for _, mapped := range p.modelsFromMapping() {
		if !seen[mapped.ID] {
			records = append(records, mapped)
		}
	}
	return records
}

func (p *CLIProvider) modelsFromMapping() []core.ModelRecord {
	names := make([]string, 0, len(p.config.ModelMapping))
	for logical := range p.config.ModelMapping {
		names = append(names, logical)
	}
	sort.Strings(names)

	records := make([]core.ModelRecord, 0, len(names))
	for _, name := range names {
		records = append(records, core.ModelRecord{ID: name})
	}
	return records
}

func (p *CLIProvider) timeout() time.Duration {
	if p.config.Timeout > 0 {
		return p.config.Timeout
	}
	return core.DefaultInvocationTimeout
}

func (p *CLIProvider) invocationArgs(requestArgs []string) []string {
	args := make([]string, 0, len(p.config.DefaultArgs)+len(requestArgs))
	args = append(args, p.config.DefaultArgs...)
	return append(args, requestArgs...)
}

// ChatCompletion runs one whole-response invocation. A non-zero exit
// fails the call with the tool's diagnostic output attached.
func (p *CLIProvider) ChatCompletion(ctx context.Context, request *core.ChatCompletionRequest) (*core.ChatCompletionResponse, error) {
	native := translate.ResolveModel(p.config, request.Model)
	args := p.invocationArgs(translate.ToInvocationArgs(request, native))

	result, err := p.executor.Execute(ctx, p.config.Resolved(), args, p.timeout())
	if err != nil {
		return nil, fmt.Errorf("chat completion via %s: %w", p.config.Name, err)
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("chat completion via %s: exit %d: %s: %w",
			p.config.Name, result.ExitCode,
			strings.TrimSpace(result.Stderr), core.ErrNonZeroExit)
	}

	return translate.ToResponse(result.Stdout, request.Model, translate.EstimatePromptTokens(request)), nil
}

// ChatCompletionStream runs one streaming invocation and forwards
// fragments as the tool produces them. A mid-stream process failure
// terminates the sequence through the stream's Err, never silently.
func (p *CLIProvider) ChatCompletionStream(ctx context.Context, request *core.ChatCompletionRequest) (core.FragmentStream, error) {
	native := translate.ResolveModel(p.config, request.Model)
	args := p.invocationArgs(translate.ToStreamingInvocationArgs(request, native))

	stream, err := p.executor.ExecuteStream(ctx, p.config.Resolved(), args, p.timeout())
	if err != nil {
		return nil, fmt.Errorf("chat completion stream via %s: %w", p.config.Name, err)
	}
	return stream, nil
}

// ExecuteCommand runs an arbitrary subcommand and returns raw stdout.
func (p *CLIProvider) ExecuteCommand(ctx context.Context, subcommand string, args []string) (string, error) {
	full := append([]string{subcommand}, args...)
	result, err := p.executor.Execute(ctx, p.config.Resolved(), full, p.timeout())
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", p.config.Name, subcommand, err)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("%s %s: exit %d: %s: %w",
			p.config.Name, subcommand, result.ExitCode,
			strings.TrimSpace(result.Stderr), core.ErrNonZeroExit)
	}
	return result.Stdout, nil
}

// ExecuteCommandStream runs an arbitrary subcommand and streams stdout.
func (p *CLIProvider) ExecuteCommandStream(ctx context.Context, subcommand string, args []string) (core.FragmentStream, error) {
	full := append([]string{subcommand}, args...)
	stream, err := p.executor.ExecuteStream(ctx, p.config.Resolved(), full, p.timeout())
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.config.Name, subcommand, err)
	}
	return stream, nil
}
