package claude

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"tradegraph/internal/store"
	"tradegraph/internal/trace"
)

const defaultModel = "claude-sonnet-4-20250514"

// Client completes prompts with the Anthropic Messages API.
type Client struct {
	cfg    *store.Config
	client anthropic.Client
	model  string
}

// New reads the key from CLAUDE_API_KEY (or ANTHROPIC_API_KEY). Set
// CLAUDE_API_ENDPOINT to route through a proxy.
func New(cfg *store.Config) (*Client, error) {
	apiKey := os.Getenv("CLAUDE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("CLAUDE_API_KEY missing")
	}

	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if ep := os.Getenv("CLAUDE_API_ENDPOINT"); ep != "" {
		opts = append(opts, option.WithBaseURL(ep))
	}

	model := cfg.LLM.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{cfg: cfg, client: anthropic.NewClient(opts...), model: model}, nil
}

func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "claude-api-call")
	defer span.End()

	if c.cfg.LLM.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LLM.Timeout)
		defer cancel()
	}

	if system == "" {
		system = c.cfg.LLM.System
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.cfg.LLM.MaxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if c.cfg.LLM.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(c.cfg.LLM.Temperature))
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude api call failed: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", errors.New("claude returned no text")
	}
	return out.String(), nil
}
