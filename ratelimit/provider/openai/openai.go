// Package openai implements ratelimit.Provider by issuing a minimal chat
// completion request and reading the response's x-ratelimit-* headers.
package openai

import (
	"context"
	"fmt"
	"net/http"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/conductor-run/conductor/ratelimit"
)

// Client probes OpenAI's rate-limit headers.
type Client struct {
	sdk openai.Client
}

// New constructs a Client. An empty apiKey falls back to OPENAI_API_KEY.
func New(apiKey string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	return &Client{sdk: openai.NewClient(opts...)}
}

// Name identifies this provider for Governor budget keys.
func (c *Client) Name() string { return "openai" }

// QueryStatus issues a minimal completion request and parses headers off the
// raw HTTP response.
func (c *Client) QueryStatus(ctx context.Context, model string) (ratelimit.Status, error) {
	var resp *http.Response
	_, err := c.sdk.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage("ping"),
		},
		MaxCompletionTokens: openai.Int(1),
	}, option.WithResponseInto(&resp))
	if err != nil {
		return ratelimit.Status{}, fmt.Errorf("openai: probe: %w", err)
	}
	if resp == nil {
		return ratelimit.Status{}, fmt.Errorf("openai: probe: no response headers captured")
	}
	return ratelimit.ParseOpenAIHeaders(resp.Header), nil
}
