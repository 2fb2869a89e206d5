package probe

import (
	"context"
	"testing"
	"time"

	"cli2api/internal/core"
)

type fakeExecutor struct {
	available bool
	version   string
	versionOK bool
	result    core.ExecutionResult
	execErr   error

	executeCalls int
}

func (f *fakeExecutor) Execute(ctx context.Context, command string, args []string, timeout time.Duration) (core.ExecutionResult, error) {
	f.executeCalls++
	return f.result, f.execErr
}

func (f *fakeExecutor) ExecuteStream(ctx context.Context, command string, args []string, timeout time.Duration) (core.FragmentStream, error) {
	return nil, nil
}

func (f *fakeExecutor) IsCommandAvailable(command string) bool { return f.available }

func (f *fakeExecutor) GetVersion(ctx context.Context, command string, args []string) (string, bool) {
	return f.version, f.versionOK
}

func testConfig() *core.ProviderConfig {
	return &core.ProviderConfig{
		Name:        "test-tool",
		Command:     "test-tool",
		VersionArgs: []string{"--version"},
		AuthArgs:    []string{"auth", "status"},
		TestArgs:    []string{"ping"},
	}
}

func TestCheckHealth_CommandMissing(t *testing.T) {
	exec := &fakeExecutor{available: false}
	prober := NewProber(exec, nil)

	report := prober.CheckHealth(context.Background(), testConfig())
	if report.Available {
		t.Error("命令不存在时应报告不可用")
	}
	if report.Error == "" {
		t.Error("不可用时应携带诊断消息")
	}
	if exec.executeCalls != 0 {
		t.Error("命令不存在时不应spawn任何进程")
	}
}

func TestCheckHealth_Healthy(t *testing.T) {
	exec := &fakeExecutor{
		available: true,
		version:   "tool 1.2.3",
		versionOK: true,
		result:    core.ExecutionResult{ExitCode: 0},
	}
	prober := NewProber(exec, nil)

	report := prober.CheckHealth(context.Background(), testConfig())
	if !report.Available {
		t.Error("应报告可用")
	}
	if report.Version != "tool 1.2.3" {
		t.Errorf("Version = %q", report.Version)
	}
	if !report.Authenticated {
		t.Error("测试调用退出码为0时应视为已认证")
	}
}

func TestCheckHealth_VersionFailureSwallowed(t *testing.T) {
	exec := &fakeExecutor{
		available: true,
		versionOK: false,
		result:    core.ExecutionResult{ExitCode: 0},
	}
	prober := NewProber(exec, nil)

	report := prober.CheckHealth(context.Background(), testConfig())
	if !report.Available {
		t.Error("版本探测失败不应影响可用性")
	}
	if report.Version != "" {
		t.Errorf("版本探测失败时Version应为空: %q", report.Version)
	}
}

func TestCheckHealth_NonZeroTestExit(t *testing.T) {
	exec := &fakeExecutor{
		available: true,
		result:    core.ExecutionResult{ExitCode: 1, Stderr: "not authenticated"},
	}
	prober := NewProber(exec, nil)

	report := prober.CheckHealth(context.Background(), testConfig())
	if !report.Available {
		t.Error("非零退出仍然代表命令可用")
	}
	if report.Authenticated {
		t.Error("非零退出不应视为已认证")
	}
	if report.Error != "not authenticated" {
		t.Errorf("Error = %q", report.Error)
	}
}

func TestCheckHealth_ExecutionError(t *testing.T) {
	exec := &fakeExecutor{
		available: true,
		execErr:   core.ErrTimeout,
	}
	prober := NewProber(exec, nil)

	report := prober.CheckHealth(context.Background(), testConfig())
	if !report.Available {
		t.Error("执行错误不应影响可用性判定")
	}
	if report.Authenticated {
		t.Error("执行错误不应视为已认证")
	}
	if report.Error == "" {
		t.Error("执行错误应记录在报告中")
	}
}

func TestCheckHealth_NoTestArgs(t *testing.T) {
	exec := &fakeExecutor{available: true, version: "v1", versionOK: true}
	config := testConfig()
	config.TestArgs = nil
	prober := NewProber(exec, nil)

	report := prober.CheckHealth(context.Background(), config)
	if !report.Available {
		t.Error("应报告可用")
	}
	if exec.executeCalls != 0 {
		t.Error("未配置测试参数时不应执行测试调用")
	}
}

func TestCheckAuthentication(t *testing.T) {
	tests := []struct {
		name     string
		exec     *fakeExecutor
		expected bool
	}{
		{
			"退出码0视为已认证",
			&fakeExecutor{available: true, result: core.ExecutionResult{ExitCode: 0}},
			true,
		},
		{
			"非零退出视为未认证",
			&fakeExecutor{available: true, result: core.ExecutionResult{ExitCode: 1}},
			false,
		},
		{
			"执行错误视为未认证",
			&fakeExecutor{available: true, execErr: core.ErrTimeout},
			false,
		},
		{
			"命令不存在视为未认证",
			&fakeExecutor{available: false},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prober := NewProber(tt.exec, nil)
			if got := prober.CheckAuthentication(context.Background(), testConfig()); got != tt.expected {
				t.Errorf("CheckAuthentication = %v，期望 %v", got, tt.expected)
			}
		})
	}
}

func TestCheckAuthentication_NoAuthArgs(t *testing.T) {
	exec := &fakeExecutor{available: true, result: core.ExecutionResult{ExitCode: 0}}
	config := testConfig()
	config.AuthArgs = nil
	prober := NewProber(exec, nil)

	if prober.CheckAuthentication(context.Background(), config) {
		t.Error("未配置认证参数时应返回未认证")
	}
	if exec.executeCalls != 0 {
		t.Error("未配置认证参数时不应spawn进程")
	}
}
