package anthropic

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishankgp/clinical-trial/internal/resilience"
)

// scriptedClient returns canned responses or errors in order, then repeats the
// last entry.
type scriptedClient struct {
	script []func() (*MessageResponse, error)
	calls  int
}

func (c *scriptedClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	i := c.calls
	if i >= len(c.script) {
		i = len(c.script) - 1
	}
	c.calls++
	return c.script[i]()
}

func textResponse(text string) func() (*MessageResponse, error) {
	return func() (*MessageResponse, error) {
		return &MessageResponse{
			Content:    []ContentBlock{{Type: "text", Text: text}},
			StopReason: "end_turn",
		}, nil
	}
}

func transientFailure() func() (*MessageResponse, error) {
	return func() (*MessageResponse, error) {
		return nil, resilience.NewTransientError(errors.New("overloaded"), 529)
	}
}

func fastGateway(c Client) *Gateway {
	cfg := resilience.DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 2 * time.Millisecond
	return NewGateway(c, WithRetryConfig(cfg), WithRateLimit(10_000, 100))
}

func TestGateway_RetriesTransientThenSucceeds(t *testing.T) {
	client := &scriptedClient{script: []func() (*MessageResponse, error){
		transientFailure(),
		transientFailure(),
		textResponse(`{"line_of_therapy": "1L"}`),
	}}

	resp, err := fastGateway(client).Complete(context.Background(), "extract-clinical", MessageRequest{
		Model:    "claude-sonnet-4-5-20250929",
		Messages: []Message{{Role: "user", Content: "analyze"}},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"line_of_therapy": "1L"}`, resp.Text())
	assert.Equal(t, 3, client.calls)
}

func TestGateway_GivesUpAfterThreeAttempts(t *testing.T) {
	client := &scriptedClient{script: []func() (*MessageResponse, error){
		transientFailure(),
	}}

	_, err := fastGateway(client).Complete(context.Background(), "extract-drug", MessageRequest{
		Model: "claude-sonnet-4-5-20250929",
	})

	require.Error(t, err)
	assert.Equal(t, 3, client.calls)
	assert.True(t, resilience.IsTransient(err))
}

func TestGateway_ModelErrorNotRetried(t *testing.T) {
	client := &scriptedClient{script: []func() (*MessageResponse, error){
		func() (*MessageResponse, error) {
			return nil, &resilience.ModelError{
				Model: "claude-nonexistent",
				Err:   errors.New("model not found"),
			}
		},
	}}

	_, err := fastGateway(client).Complete(context.Background(), "extract-drug", MessageRequest{
		Model: "claude-nonexistent",
	})

	require.Error(t, err)
	assert.Equal(t, 1, client.calls)
	assert.True(t, resilience.IsModelError(err))
}

func TestClassifyErr_PlainNetworkError(t *testing.T) {
	err := classifyErr("m", errors.New("read tcp: connection reset by peer"))
	assert.True(t, resilience.IsTransient(err))

	err = classifyErr("m", errors.New("some application error"))
	assert.False(t, resilience.IsTransient(err))
	assert.False(t, resilience.IsModelError(err))
}
