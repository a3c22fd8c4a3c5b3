package intent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aleutian-labs/toolscout/internal/prompt"
	"github.com/aleutian-labs/toolscout/internal/providers"
	"github.com/aleutian-labs/toolscout/internal/schema"
)

type fakeChatClient struct {
	response string
	err      error
}

func (f *fakeChatClient) Chat(ctx context.Context, messages []providers.Message, opts providers.ChatOptions) (string, error) {
	return f.response, f.err
}

func newTestExtractor(t *testing.T, response string) *LLMExtractor {
	t.Helper()
	s, err := schema.LoadDefault()
	require.NoError(t, err)
	b, err := prompt.NewBuilder(s)
	require.NoError(t, err)
	ex, err := NewLLMExtractor(&fakeChatClient{response: response}, b, s, DefaultConfig(), nil)
	require.NoError(t, err)
	return ex
}

func TestExtract_Success(t *testing.T) {
	ex := newTestExtractor(t, `Sure, here it is:
`+"```json"+`
{"primaryGoal":"find","pricingModel":"Free","interface":"CLI","confidence":0.9}
`+"```")

	rec, err := ex.Extract(context.Background(), "free cli tools")
	require.NoError(t, err)
	require.Equal(t, "find", rec.PrimaryGoal)
	require.Equal(t, "Free", rec.PricingModel)
	require.Equal(t, "CLI", rec.Interface)
}

func TestExtract_VocabularyMismatch(t *testing.T) {
	ex := newTestExtractor(t, `{"primaryGoal":"find","interface":"Telnet","confidence":0.9}`)
	_, err := ex.Extract(context.Background(), "telnet tools")
	require.Error(t, err)
	require.Contains(t, err.Error(), "vocabulary-mismatch")
}

func TestExtract_LowConfidence(t *testing.T) {
	ex := newTestExtractor(t, `{"primaryGoal":"find","confidence":0.05}`)
	_, err := ex.Extract(context.Background(), "something vague")
	require.Error(t, err)
	require.Contains(t, err.Error(), "low-confidence")
}

func TestExtract_UnparsableResponse(t *testing.T) {
	ex := newTestExtractor(t, "I'm not sure what you mean.")
	_, err := ex.Extract(context.Background(), "???")
	require.Error(t, err)
	require.Contains(t, err.Error(), "extraction-failed")
}
