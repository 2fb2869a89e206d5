package parse

import (
	"testing"
	"time"
)

func TestParseAuthStatus(t *testing.T) {
	tests := []struct {
		name          string
		text          string
		authenticated bool
		account       string
	}{
		{
			"已登录带账号",
			"Status: Logged in\nAccount: user@example.com\n",
			true,
			"user@example.com",
		},
		{
			"logged in as格式",
			"Logged in as: dev@example.com\n",
			true,
			"dev@example.com",
		},
		{
			"未登录",
			"Not logged in. Run the login command first.\n",
			false,
			"",
		},
		{
			"无认证标记",
			"some random diagnostic output\nwith no markers at all\n",
			false,
			"",
		},
		{
			"空输入",
			"",
			false,
			"",
		},
		{
			"email键作为账号",
			"Authenticated\nEmail: someone@example.com\n",
			true,
			"someone@example.com",
		},
		{
			"否定标记不触发肯定匹配",
			"unauthenticated session\n",
			false,
			"",
		},
		{
			"账号取第一个匹配",
			"Logged in\nAccount: first@example.com\nUser: second@example.com\n",
			true,
			"first@example.com",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status := ParseAuthStatus(tt.text)
			if status.Authenticated != tt.authenticated {
				t.Errorf("Authenticated = %v，期望 %v", status.Authenticated, tt.authenticated)
			}
			if status.Account != tt.account {
				t.Errorf("Account = %q，期望 %q", status.Account, tt.account)
			}
		})
	}
}

func TestParseAuthStatus_Expiry(t *testing.T) {
	text := "Logged in\nAccount: u@example.com\nExpires: 2026-12-31\n"
	status := ParseAuthStatus(text)
	if !status.Authenticated {
		t.Fatal("应为已认证")
	}
	want := time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC)
	if !status.Expiry.Equal(want) {
		t.Errorf("Expiry = %v，期望 %v", status.Expiry, want)
	}
}

func TestParseAuthStatus_MalformedExpiry(t *testing.T) {
	status := ParseAuthStatus("Logged in\nExpires: whenever\n")
	if !status.Authenticated {
		t.Error("格式错误的过期时间不应影响认证判定")
	}
	if !status.Expiry.IsZero() {
		t.Errorf("无法解析的过期时间应为零值，实际 %v", status.Expiry)
	}
}

func TestParseModelList(t *testing.T) {
	tests := []struct {
		name string
		text string
		ids  []string
	}{
		{
			"表头加数据行",
			"MODEL          DESCRIPTION\nclaude-sonnet-4  fast general model\nclaude-opus-4    most capable\n",
			[]string{"claude-sonnet-4", "claude-opus-4"},
		},
		{
			"空行被忽略",
			"\nclaude-sonnet-4\n\nclaude-opus-4\n\n",
			[]string{"claude-sonnet-4", "claude-opus-4"},
		},
		{
			"分隔线被忽略",
			"Available models:\n----------------\nmodel-a\nmodel-b\n",
			[]string{"model-a", "model-b"},
		},
		{
			"空输入",
			"",
			nil,
		},
		{
			"纯表头",
			"MODELS\n------\n",
			nil,
		},
		{
			"重复ID去重",
			"model-a\nmodel-a\nmodel-b\n",
			[]string{"model-a", "model-b"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := ParseModelList(tt.text)
			if len(records) != len(tt.ids) {
				t.Fatalf("期望%d个模型，实际 %d: %v", len(tt.ids), len(records), records)
			}
			for i, id := range tt.ids {
				if records[i].ID != id {
					t.Errorf("第%d个模型ID期望 %q，实际 %q", i, id, records[i].ID)
				}
			}
		})
	}
}

// 列表中同一ID出现多次时只保留首行，后续行的元数据被忽略。
// /v1/models 要求唯一ID，因此N行含重复ID时产出少于N条记录。
func TestParseModelList_DuplicateIDKeepsFirstLine(t *testing.T) {
	text := "model-a Claude Sonnet\nmodel-a Renamed Later\nmodel-b Haiku\n"
	records := ParseModelList(text)
	if len(records) != 2 {
		t.Fatalf("期望2个模型，实际 %d: %v", len(records), records)
	}
	if records[0].ID != "model-a" || records[0].DisplayName != "Claude Sonnet" {
		t.Errorf("重复ID应保留首行元数据，实际 %+v", records[0])
	}
	if records[1].ID != "model-b" {
		t.Errorf("后续模型应保持原有顺序，实际 %+v", records[1])
	}
}

func TestParseModelList_CapabilityFlags(t *testing.T) {
	text := "model-v  supports vision input\nmodel-t  tool use capable\nmodel-plain  text only\n"
	records := ParseModelList(text)
	if len(records) != 3 {
		t.Fatalf("期望3个模型，实际 %d", len(records))
	}
	if !records[0].Vision {
		t.Error("model-v 应标记vision能力")
	}
	if !records[1].ToolUse {
		t.Error("model-t 应标记tool-use能力")
	}
	if records[2].Vision || records[2].ToolUse {
		t.Error("model-plain 不应携带能力标记")
	}
}

func TestParseModelList_DisplayName(t *testing.T) {
	records := ParseModelList("claude-sonnet-4  Claude Sonnet 4\n")
	if len(records) != 1 {
		t.Fatalf("期望1个模型，实际 %d", len(records))
	}
	if records[0].DisplayName != "Claude Sonnet 4" {
		t.Errorf("DisplayName = %q", records[0].DisplayName)
	}
}
