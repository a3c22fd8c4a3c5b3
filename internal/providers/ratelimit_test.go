package providers

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChatClient struct {
	calls int
}

func (f *fakeChatClient) Chat(ctx context.Context, messages []Message, opts ChatOptions) (string, error) {
	f.calls++
	return "ok", nil
}

func TestNewRateLimitedChatClient_ZeroRPSDisablesWrapping(t *testing.T) {
	inner := &fakeChatClient{}
	client := NewRateLimitedChatClient(inner, 0, 1)
	assert.Same(t, inner, client)
}

func TestRateLimitedChatClient_ThrottlesToConfiguredRate(t *testing.T) {
	inner := &fakeChatClient{}
	client := NewRateLimitedChatClient(inner, 5, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.Chat(context.Background(), nil, ChatOptions{})
		require.NoError(t, err)
	}
	elapsed := time.Since(start)

	assert.Equal(t, 3, inner.calls)
	assert.GreaterOrEqual(t, elapsed, 300*time.Millisecond, "three requests at 5rps/burst 1 should take at least ~400ms")
}

func TestRateLimitedChatClient_ContextCancelReturnsError(t *testing.T) {
	inner := &fakeChatClient{}
	client := NewRateLimitedChatClient(inner, 0.001, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	_, err := client.Chat(ctx, nil, ChatOptions{})
	require.NoError(t, err, "first call consumes the initial burst token immediately")

	_, err = client.Chat(ctx, nil, ChatOptions{})
	assert.Error(t, err)
}
