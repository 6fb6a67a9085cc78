// Package bedrock implements ratelimit.Provider for AWS Bedrock. Bedrock
// does not expose remaining-capacity headers the way Anthropic and OpenAI
// do, so QueryStatus reports no budget: a successful probe returns an
// unconstrained Status, and a ThrottlingException returns an exhausted
// requests bucket that resets five seconds later. The Governor relies on
// this provider only to detect outright throttling, not to pace requests
// ahead of time.
package bedrock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"

	"github.com/conductor-run/conductor/ratelimit"
)

// Client probes Bedrock by issuing a minimal converse request and
// classifying throttling errors.
type Client struct {
	sdk *bedrockruntime.Client
}

// New constructs a Client using ambient AWS credentials (environment,
// shared config, or instance role), matching the default credential chain
// used elsewhere in the pack's AWS integrations.
func New(ctx context.Context, region string) (*Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("bedrock: load aws config: %w", err)
	}
	return &Client{sdk: bedrockruntime.NewFromConfig(cfg)}, nil
}

// Name identifies this provider for Governor budget keys.
func (c *Client) Name() string { return "bedrock" }

// QueryStatus issues a minimal converse call. A ThrottlingException is
// treated as "exhausted until further notice" (remaining 0, reset a short
// interval out); anything else is treated as unconstrained since Bedrock
// publishes no budget headers.
func (c *Client) QueryStatus(ctx context.Context, model string) (ratelimit.Status, error) {
	_, err := c.sdk.Converse(ctx, &bedrockruntime.ConverseInput{
		ModelId: aws.String(model),
		Messages: []types.Message{
			{
				Role:    types.ConversationRoleUser,
				Content: []types.ContentBlock{&types.ContentBlockMemberText{Value: "ping"}},
			},
		},
		InferenceConfig: &types.InferenceConfiguration{MaxTokens: aws.Int32(1)},
	})
	now := time.Now()
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ThrottlingException" {
			return ratelimit.Status{
				Requests:     ratelimit.Bucket{Limit: 1, Remaining: 0, Reset: now.Add(5 * time.Second)},
				InputTokens:  ratelimit.Unconstrained(),
				OutputTokens: ratelimit.Unconstrained(),
				ObservedAt:   now,
			}, nil
		}
		return ratelimit.Status{}, fmt.Errorf("bedrock: probe: %w", err)
	}
	return ratelimit.Status{
		Requests:     ratelimit.Unconstrained(),
		InputTokens:  ratelimit.Unconstrained(),
		OutputTokens: ratelimit.Unconstrained(),
		ObservedAt:   now,
	}, nil
}
