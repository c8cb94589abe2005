package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/genai"

	"tradegraph/internal/store"
	"tradegraph/internal/trace"
)

const defaultModel = "gemini-2.0-flash"

// Client completes prompts with the Gemini API.
type Client struct {
	cfg    *store.Config
	client *genai.Client
	model  string
}

// New reads GEMINI_API_KEY (or GOOGLE_API_KEY).
func New(ctx context.Context, cfg *store.Config) (*Client, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GOOGLE_API_KEY")
	}
	if apiKey == "" {
		return nil, errors.New("GEMINI_API_KEY missing")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	model := cfg.LLM.Model
	if model == "" {
		model = defaultModel
	}
	return &Client{cfg: cfg, client: client, model: model}, nil
}

func (c *Client) Complete(ctx context.Context, system, prompt string) (string, error) {
	ctx, span := trace.StartSpan(ctx, "gemini-api-call")
	defer span.End()

	if c.cfg.LLM.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.LLM.Timeout)
		defer cancel()
	}

	if system == "" {
		system = c.cfg.LLM.System
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.cfg.LLM.Temperature),
		MaxOutputTokens: int32(c.cfg.LLM.MaxTokens),
	}
	if system != "" {
		config.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}, config)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				out.WriteString(part.Text)
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", errors.New("gemini returned no text")
	}
	return out.String(), nil
}
