package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/fyrsmithlabs/chattrace/internal/config"
	"github.com/fyrsmithlabs/chattrace/internal/langfuse"
)

// OpenAICompleter is the production Completer backed by the OpenAI chat
// completions API, or any OpenAI-compatible endpoint via CHAT_BASE_URL.
type OpenAICompleter struct {
	cfg    config.ChatConfig
	client openai.Client
}

// NewOpenAICompleter builds a completer from chat configuration.
func NewOpenAICompleter(cfg config.ChatConfig) (*OpenAICompleter, error) {
	if !cfg.APIKey.IsSet() {
		return nil, errors.New("chat api key is required")
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey.Value()),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	return &OpenAICompleter{
		cfg:    cfg,
		client: openai.NewClient(opts...),
	}, nil
}

// Complete sends one turn to the model and returns its reply. The request is
// bounded by the configured request timeout on top of the caller's context.
func (c *OpenAICompleter) Complete(ctx context.Context, messages []Message) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.RequestTimeout.Duration())
	defer cancel()

	params := openai.ChatCompletionNewParams{
		Model:               shared.ChatModel(c.cfg.Model),
		Messages:            c.buildMessages(messages),
		Temperature:         openai.Float(c.cfg.Temperature),
		MaxCompletionTokens: openai.Int(int64(c.cfg.MaxTokens)),
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("calling chat completions: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("model returned no choices")
	}

	return &Completion{
		Content: resp.Choices[0].Message.Content,
		Model:   resp.Model,
		Usage: langfuse.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		},
	}, nil
}

// buildMessages converts a turn to API message params, prepending the
// configured system prompt unless the turn already opens with one.
func (c *OpenAICompleter) buildMessages(messages []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if c.cfg.SystemPrompt != "" && (len(messages) == 0 || messages[0].Role != RoleSystem) {
		out = append(out, openai.SystemMessage(c.cfg.SystemPrompt))
	}
	for _, m := range messages {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}

// ModelParameters reports the sampling parameters sent with every request,
// for trace attribution.
func (c *OpenAICompleter) ModelParameters() map[string]any {
	return map[string]any{
		"temperature": c.cfg.Temperature,
		"max_tokens":  c.cfg.MaxTokens,
	}
}
