package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"google.golang.org/genai"
)

// ErrNoAPIKey signals that the Gemini client was constructed without
// credentials; callers fall back to rule-based scoring.
var ErrNoAPIKey = errors.New("GEMINI_API_KEY not set")

// Client wraps the Gemini SDK with the one call shape this pipeline uses:
// a text prompt in, free text out, optionally with the Google Search
// grounding tool enabled so the model can verify claims instead of
// guessing from training data.
type Client struct {
	client *genai.Client
	model  string
	logger *slog.Logger
}

func NewClient(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	c, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &Client{
		client: c,
		model:  model,
		logger: slog.Default().With("component", "gemini"),
	}, nil
}

// Generate runs one text-generation call. Grounding responses may carry the
// search queries the model issued; they are logged and otherwise discarded.
func (c *Client) Generate(ctx context.Context, prompt string, grounded bool) (string, error) {
	var config *genai.GenerateContentConfig
	if grounded {
		config = &genai.GenerateContentConfig{
			Tools: []*genai.Tool{
				{GoogleSearch: &genai.GoogleSearch{}},
			},
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), config)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	if grounded && len(resp.Candidates) > 0 {
		if gm := resp.Candidates[0].GroundingMetadata; gm != nil && len(gm.WebSearchQueries) > 0 {
			c.logger.Debug("grounding queries", "queries", gm.WebSearchQueries)
		}
	}

	text := resp.Text()
	if text == "" {
		return "", errors.New("empty model response")
	}
	return text, nil
}

// IsRateLimited reports whether an error is the provider's quota signal.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}
