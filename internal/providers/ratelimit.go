package providers

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedChatClient wraps a ChatClient with a token-bucket limiter,
// blocking Chat calls until a token is available rather than rejecting
// them outright — cloud providers throttle by requests-per-second, not
// burst tolerance, so waiting here is cheaper than the caller retrying.
type RateLimitedChatClient struct {
	inner   ChatClient
	limiter *rate.Limiter
}

// NewRateLimitedChatClient wraps inner so no more than rps requests per
// second leave the process for its provider. A non-positive rps disables
// limiting and returns inner unwrapped.
func NewRateLimitedChatClient(inner ChatClient, rps float64, burst int) ChatClient {
	if rps <= 0 {
		return inner
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedChatClient{inner: inner, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

func (c *RateLimitedChatClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter wait: %w", err)
	}
	return c.inner.Chat(ctx, messages, opts)
}
