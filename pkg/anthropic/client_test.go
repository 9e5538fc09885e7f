package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokenUsage_EstimateCost(t *testing.T) {
	u := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}

	cost := u.EstimateCost("claude-sonnet-4-5-20250929")
	assert.InDelta(t, 18.00, cost, 0.001)

	assert.Zero(t, u.EstimateCost("unknown-model"))
}

func TestTokenUsage_EstimateCost_CacheTokens(t *testing.T) {
	u := TokenUsage{
		CacheCreationInputTokens: 1_000_000,
		CacheReadInputTokens:     1_000_000,
	}

	// Write at 1.25x input rate, read at 0.1x.
	cost := u.EstimateCost("claude-haiku-4-5-20251001")
	assert.InDelta(t, 0.80*1.25+0.80*0.1, cost, 0.001)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "thinking", Text: "hmm"},
			{Type: "text", Text: `{"primary_drug"`},
			{Type: "text", Text: `: "pembrolizumab"}`},
		},
	}
	assert.Equal(t, `{"primary_drug": "pembrolizumab"}`, resp.Text())
}

func TestBuildCachedSystemBlocks(t *testing.T) {
	blocks := BuildCachedSystemBlocks("You are a clinical trial analyst.")

	assert.Len(t, blocks, 1)
	assert.Equal(t, "You are a clinical trial analyst.", blocks[0].Text)
	assert.NotNil(t, blocks[0].CacheControl)
	assert.Equal(t, "5m", blocks[0].CacheControl.TTL)
}

func TestToSDKMessages_AttachmentsAppended(t *testing.T) {
	msgs := toSDKMessages([]Message{
		{
			Role:    "user",
			Content: "Analyze this trial.",
			Attachments: []Attachment{
				{Name: "protocol.txt", Text: "Phase 3 study"},
			},
		},
	})

	assert.Len(t, msgs, 1)
	assert.Len(t, msgs[0].Content, 2)
}
