package log

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAppLogger_LevelPrefixes(t *testing.T) {
	tests := []struct {
		name   string
		log    func(l *AppLogger)
		prefix string
		want   string
	}{
		{"信息级别", func(l *AppLogger) { l.Info("provider %s registered", "claude-code") }, "[INFO]", "provider claude-code registered"},
		{"警告级别", func(l *AppLogger) { l.Warn("invocation slow: %dms", 4500) }, "[WARN]", "invocation slow: 4500ms"},
		{"错误级别", func(l *AppLogger) { l.Error("spawn failed: %v", "exit 127") }, "[ERROR]", "spawn failed: exit 127"},
		{"调试级别", func(l *AppLogger) { l.Debug("argv: %s", "-p hello") }, "[DEBUG]", "argv: -p hello"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewAppLoggerWithConfig(&buf, true)
			tt.log(logger)
			output := buf.String()
			if !strings.Contains(output, tt.prefix) {
				t.Errorf("日志应包含级别前缀 %s，实际 %q", tt.prefix, output)
			}
			if !strings.Contains(output, tt.want) {
				t.Errorf("日志应包含格式化消息 %q，实际 %q", tt.want, output)
			}
		})
	}
}

func TestAppLogger_DebugSuppressedOutsideDebugMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLoggerWithConfig(&buf, false)
	logger.Debug("invocation argv should not leak into production logs")
	if buf.Len() != 0 {
		t.Errorf("非调试模式下 Debug 不应有输出，实际 %q", buf.String())
	}
	logger.Info("still logs")
	if !strings.Contains(buf.String(), "still logs") {
		t.Error("非调试模式下 Info 仍应输出")
	}
}

func TestAppLogger_NilReceiverIsSafe(t *testing.T) {
	var logger *AppLogger
	logger.Debug("不应panic")
	logger.Info("不应panic")
	logger.Warn("不应panic")
	logger.Error("不应panic")
	if err := logger.Close(); err != nil {
		t.Errorf("nil 日志 Close 不应返回错误: %v", err)
	}
}

func TestAppLogger_CloseWithoutFileHandle(t *testing.T) {
	var buf bytes.Buffer
	logger := NewAppLoggerWithConfig(&buf, false)
	if logger.fileHandle != nil {
		t.Error("外部输出时不应持有文件句柄")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("无文件句柄时 Close 不应返回错误: %v", err)
	}
}

func TestContainsPathTraversal(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected bool
	}{
		{"绝对路径", "/var/log/cli2api.log", false},
		{"上级目录", "/var/../etc/passwd", true},
		{"相对上级", "../secret.txt", true},
		{"相对路径前缀", "./local.log", true},
		{"Windows风格上级", "..\\config.ini", true},
		{"嵌套上级", "/data/logs/../../etc/shadow", true},
		{"空路径", "", false},
		{"隐藏文件", ".env", false},
		{"文件名含多个点", "/var/log/invocations.2026.08.log", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := containsPathTraversal(tt.path); got != tt.expected {
				t.Errorf("containsPathTraversal(%q) = %v，期望 %v", tt.path, got, tt.expected)
			}
		})
	}
}

func TestIsDebug(t *testing.T) {
	tests := []struct {
		ginMode  string
		expected bool
	}{
		{"debug", true},
		{"release", false},
		{"test", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run("GIN_MODE="+tt.ginMode, func(t *testing.T) {
			t.Setenv("GIN_MODE", tt.ginMode)
			if got := IsDebug(); got != tt.expected {
				t.Errorf("IsDebug() = %v，期望 %v (GIN_MODE=%s)", got, tt.expected, tt.ginMode)
			}
		})
	}
}

func TestCreateLogger_DebugFileSink(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "debug.log")
	t.Setenv("DEBUG_FILE", logPath)
	t.Setenv("GIN_MODE", "debug")

	logger := CreateLogger()
	logger.Info("invocation finished for %s", "claude-code")

	appLog, ok := logger.(*AppLogger)
	if !ok {
		t.Fatal("CreateLogger 应返回 *AppLogger")
	}
	if appLog.fileHandle == nil {
		t.Fatal("配置 DEBUG_FILE 时应持有文件句柄")
	}
	if err := appLog.Close(); err != nil {
		t.Fatalf("关闭文件日志失败: %v", err)
	}

	data, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("读取日志文件失败: %v", err)
	}
	if !strings.Contains(string(data), "invocation finished for claude-code") {
		t.Errorf("日志文件应包含写入的消息，实际 %q", string(data))
	}
}

func TestCreateLogger_RejectsTraversalPath(t *testing.T) {
	t.Setenv("DEBUG_FILE", "../outside.log")
	t.Setenv("GIN_MODE", "release")

	logger := CreateLogger()
	appLog, ok := logger.(*AppLogger)
	if !ok {
		t.Fatal("CreateLogger 应返回 *AppLogger")
	}
	if appLog.fileHandle != nil {
		t.Error("越权路径应回退到标准输出，不应打开文件")
	}
	if err := appLog.Close(); err != nil {
		t.Errorf("关闭回退日志不应返回错误: %v", err)
	}
}
