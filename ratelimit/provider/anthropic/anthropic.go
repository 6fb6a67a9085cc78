// Package anthropic implements ratelimit.Provider by issuing a minimal,
// one-max-token completion request and reading the response's
// anthropic-ratelimit-* headers.
package anthropic

import (
	"context"
	"fmt"
	"net/http"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/conductor-run/conductor/ratelimit"
)

// Client probes Anthropic's rate-limit headers.
type Client struct {
	sdk *anthropic.Client
}

// New constructs a Client using the given API key. An empty key falls back
// to the ANTHROPIC_API_KEY environment variable, matching the SDK default.
func New(apiKey string) *Client {
	opts := []option.RequestOption{}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	sdk := anthropic.NewClient(opts...)
	return &Client{sdk: &sdk}
}

// Name identifies this provider for Governor budget keys.
func (c *Client) Name() string { return "anthropic" }

// QueryStatus issues a minimal request (the smallest valid completion) and
// parses the rate-limit headers off its raw HTTP response.
func (c *Client) QueryStatus(ctx context.Context, model string) (ratelimit.Status, error) {
	var resp *http.Response
	_, err := c.sdk.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	}, option.WithResponseInto(&resp))
	if err != nil {
		return ratelimit.Status{}, fmt.Errorf("anthropic: probe: %w", err)
	}
	if resp == nil {
		return ratelimit.Status{}, fmt.Errorf("anthropic: probe: no response headers captured")
	}
	return ratelimit.ParseAnthropicHeaders(resp.Header), nil
}
