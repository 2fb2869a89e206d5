// Package translate converts between the OpenAI chat-completion envelope
// and CLI tool invocations. Everything here is pure: no I/O, no clocks
// beyond timestamp synthesis in response construction.
package translate

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cli2api/internal/core"
	"cli2api/internal/util"
)

// ResolveModel maps a logical model name to the tool's native id.
// Unmapped names pass through verbatim; the external tool is the
// authority on what it accepts.
func ResolveModel(config *core.ProviderConfig, logicalModel string) string {
	if native, ok := config.ModelMapping[logicalModel]; ok {
		return native
	}
	return logicalModel
}

// BuildPrompt serializes the message sequence into a single prompt,
// one "role: content" line per message, in order.
func BuildPrompt(messages []core.ChatMessage) string {
	var sb strings.Builder
	for i, msg := range messages {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(msg.Role)
		sb.WriteString(": ")
		sb.WriteString(msg.Content)
	}
	return sb.String()
}

// ToInvocationArgs builds the argument list for a whole-response
// invocation: the prompt in print mode plus the native model id and any
// numeric sampling parameters the caller supplied.
func ToInvocationArgs(request *core.ChatCompletionRequest, nativeModel string) []string {
	args := []string{"-p", BuildPrompt(request.Messages), "--model", nativeModel}
	return append(args, samplingFlags(request)...)
}

// ToStreamingInvocationArgs builds the argument list for a streaming
// invocation. The mapping matches ToInvocationArgs with the tool's
// incremental output mode switched on.
func ToStreamingInvocationArgs(request *core.ChatCompletionRequest, nativeModel string) []string {
	args := ToInvocationArgs(request, nativeModel)
	return append(args, "--output-format", "stream-json", "--verbose")
}

func samplingFlags(request *core.ChatCompletionRequest) []string {
	var flags []string
	if request.Temperature != nil {
		flags = append(flags, "--temperature", formatFloat(*request.Temperature))
	}
	if request.TopP != nil {
		flags = append(flags, "--top-p", formatFloat(*request.TopP))
	}
	if request.MaxTokens != nil {
		flags = append(flags, "--max-tokens", fmt.Sprintf("%d", *request.MaxTokens))
	}
	return flags
}

func formatFloat(f float64) string {
	return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.2f", f), "0"), ".")
}

// ToResponse wraps the tool's entire captured output as one assistant
// message. The finish reason is fixed: CLI tools expose no token-level
// completion signal, so "stop" stands in for every natural end.
func ToResponse(rawOutput string, logicalModel string, promptTokens int) *core.ChatCompletionResponse {
	content := strings.TrimRight(rawOutput, "\n")
	completionTokens := util.EstimateTokenCount(content)
	return &core.ChatCompletionResponse{
		ID:      core.ResponseIDPrefix + uuid.NewString(),
		Object:  core.ChatCompletionObjectType,
		Created: time.Now().Unix(),
		Model:   logicalModel,
		Choices: []core.ChatCompletionChoice{
			{
				Index: 0,
				Message: core.ChatMessage{
					Role:    core.RoleAssistant,
					Content: content,
				},
				FinishReason: core.FinishReasonStop,
			},
		},
		Usage: core.OpenAIUsage{
			PromptTokens:     promptTokens,
			CompletionTokens: completionTokens,
			TotalTokens:      promptTokens + completionTokens,
		},
	}
}

// NewResponseID synthesizes a chat-completion response id.
func NewResponseID() string {
	return core.ResponseIDPrefix + uuid.NewString()
}

// NewStreamChunk builds one streaming delta chunk carrying content.
func NewStreamChunk(id string, created int64, logicalModel string, content string) *core.StreamResponse {
	return &core.StreamResponse{
		ID:      id,
		Object:  core.ChatCompletionChunkObjectType,
		Created: created,
		Model:   logicalModel,
		Choices: []core.StreamChoice{
			{
				Index: 0,
				Delta: core.StreamDelta{Content: &content},
			},
		},
	}
}

// NewStreamRoleChunk builds the leading chunk that announces the
// assistant role before any content arrives.
func NewStreamRoleChunk(id string, created int64, logicalModel string) *core.StreamResponse {
	return &core.StreamResponse{
		ID:      id,
		Object:  core.ChatCompletionChunkObjectType,
		Created: created,
		Model:   logicalModel,
		Choices: []core.StreamChoice{
			{
				Index: 0,
				Delta: core.StreamDelta{Role: core.RoleAssistant},
			},
		},
	}
}

// NewStreamFinalChunk builds the terminal chunk carrying the finish reason.
func NewStreamFinalChunk(id string, created int64, logicalModel string) *core.StreamResponse {
	finish := core.FinishReasonStop
	return &core.StreamResponse{
		ID:      id,
		Object:  core.ChatCompletionChunkObjectType,
		Created: created,
		Model:   logicalModel,
		Choices: []core.StreamChoice{
			{
				Index:        0,
				Delta:        core.StreamDelta{},
				FinishReason: &finish,
			},
		},
	}
}

// EstimatePromptTokens estimates the token footprint of a request's
// serialized prompt.
func EstimatePromptTokens(request *core.ChatCompletionRequest) int {
	return util.EstimateTokenCount(BuildPrompt(request.Messages))
}
