package anthropic

import (
	"testing"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromSDKMessage(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:           "msg_test_123",
		Model:        "claude-sonnet-4-5-20250929",
		StopReason:   "end_turn",
		StopSequence: "STOP",
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "Hello world"},
			{Type: "text", Text: "Second block"},
		},
		Usage: sdk.Usage{
			InputTokens:              100,
			OutputTokens:             50,
			CacheCreationInputTokens: 2000,
			CacheReadInputTokens:     3000,
		},
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_123", resp.ID)
	assert.Equal(t, "claude-sonnet-4-5-20250929", resp.Model)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "STOP", resp.StopSequence)
	require.Len(t, resp.Content, 2)
	assert.Equal(t, "Hello world", resp.Content[0].Text)
	assert.Equal(t, int64(100), resp.Usage.InputTokens)
	assert.Equal(t, int64(2000), resp.Usage.CacheCreationInputTokens)
	assert.Equal(t, int64(3000), resp.Usage.CacheReadInputTokens)
}

func TestFromSDKMessage_EmptyContent(t *testing.T) {
	sdkMsg := &sdk.Message{
		ID:         "msg_empty",
		Model:      "claude-haiku-4-5-20251001",
		StopReason: "max_tokens",
	}

	resp := fromSDKMessage(sdkMsg)
	require.NotNil(t, resp)
	assert.Empty(t, resp.Content)
	assert.Equal(t, "max_tokens", resp.StopReason)
}

func TestFromSDKBatch(t *testing.T) {
	created := time.Date(2026, time.March, 1, 10, 0, 0, 0, time.UTC)
	expires := created.Add(24 * time.Hour)
	sdkBatch := &sdk.MessageBatch{
		ID:               "batch_test_456",
		ProcessingStatus: "ended",
		ResultsURL:       "https://api.anthropic.com/results/batch_test_456",
		CreatedAt:        created,
		ExpiresAt:        expires,
		RequestCounts: sdk.MessageBatchRequestCounts{
			Processing: 0,
			Succeeded:  8,
			Errored:    1,
			Canceled:   0,
			Expired:    1,
		},
	}

	resp := fromSDKBatch(sdkBatch)
	require.NotNil(t, resp)
	assert.Equal(t, "batch_test_456", resp.ID)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, created, resp.CreatedAt)
	assert.Equal(t, expires, resp.ExpiresAt)
	assert.Equal(t, int64(8), resp.RequestCounts.Succeeded)
	assert.Equal(t, int64(1), resp.RequestCounts.Errored)
	assert.Equal(t, int64(1), resp.RequestCounts.Expired)
}

func TestFromSDKBatchResult_Succeeded(t *testing.T) {
	sdkResp := sdk.MessageBatchIndividualResponse{
		CustomID: "rec_1",
		Result: sdk.MessageBatchResultUnion{
			Type: "succeeded",
			Message: sdk.Message{
				ID:         "msg_result_1",
				Model:      "claude-haiku-4-5-20251001",
				StopReason: "end_turn",
				Content: []sdk.ContentBlockUnion{
					{Type: "text", Text: `{"abstract": "summary"}`},
				},
				Usage: sdk.Usage{
					InputTokens:  200,
					OutputTokens: 30,
				},
			},
		},
	}

	item := fromSDKBatchResult(sdkResp)
	assert.Equal(t, "rec_1", item.CustomID)
	assert.Equal(t, "succeeded", item.Type)
	require.NotNil(t, item.Message)
	assert.Equal(t, `{"abstract": "summary"}`, item.Message.Content[0].Text)
	assert.Empty(t, item.Reason)
}

func TestFromSDKBatchResult_Errored(t *testing.T) {
	sdkResp := sdk.MessageBatchIndividualResponse{
		CustomID: "rec_err",
		Result: sdk.MessageBatchResultUnion{
			Type: "errored",
		},
	}

	item := fromSDKBatchResult(sdkResp)
	assert.Equal(t, "rec_err", item.CustomID)
	assert.Equal(t, "errored", item.Type)
	assert.Nil(t, item.Message)
}

func TestFromSDKBatchResult_Expired(t *testing.T) {
	sdkResp := sdk.MessageBatchIndividualResponse{
		CustomID: "rec_exp",
		Result: sdk.MessageBatchResultUnion{
			Type: "expired",
		},
	}

	item := fromSDKBatchResult(sdkResp)
	assert.Equal(t, "expired", item.Type)
	assert.Nil(t, item.Message)
	assert.Empty(t, item.Reason)
}

func TestToSDKMessages_Roles(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "Question"},
		{Role: "assistant", Content: "Answer"},
		{Role: "unknown", Content: "defaults to user"},
	}
	sdkMsgs := toSDKMessages(msgs)
	require.Len(t, sdkMsgs, 3)
}

func TestToSDKMessages_DocumentURL(t *testing.T) {
	msgs := []Message{
		{
			Role:        "user",
			Content:     "Extract the disclosures from the attached report.",
			DocumentURL: "https://example.com/sustainability-2024.pdf",
		},
	}
	sdkMsgs := toSDKMessages(msgs)
	require.Len(t, sdkMsgs, 1)
	// Document block precedes the text block.
	require.Len(t, sdkMsgs[0].Content, 2)
}

func TestToSDKMessages_NoDocumentURL(t *testing.T) {
	msgs := []Message{
		{Role: "user", Content: "Plain text only"},
	}
	sdkMsgs := toSDKMessages(msgs)
	require.Len(t, sdkMsgs, 1)
	require.Len(t, sdkMsgs[0].Content, 1)
}

func TestToSDKMessages_Empty(t *testing.T) {
	assert.Empty(t, toSDKMessages(nil))
}

func TestToSDKSystemBlocks_NoCacheControl(t *testing.T) {
	blocks := []SystemBlock{
		{Text: "System prompt text"},
	}
	sdkBlocks := toSDKSystemBlocks(blocks)
	require.Len(t, sdkBlocks, 1)
	assert.Equal(t, "System prompt text", sdkBlocks[0].Text)
}

func TestToSDKSystemBlocks_WithCacheControl(t *testing.T) {
	blocks := []SystemBlock{
		{Text: "Cached context", CacheControl: &CacheControl{TTL: "1h"}},
	}
	sdkBlocks := toSDKSystemBlocks(blocks)
	require.Len(t, sdkBlocks, 1)
	assert.Equal(t, "Cached context", sdkBlocks[0].Text)
	assert.NotNil(t, sdkBlocks[0].CacheControl)
}

func TestNewClient_ReturnsNonNil(t *testing.T) {
	client := NewClient("test-api-key")
	require.NotNil(t, client)
}

func TestMockBatchResultIterator_Items(t *testing.T) {
	items := []BatchResultItem{
		{CustomID: "a", Type: "succeeded"},
		{CustomID: "b", Type: "errored"},
	}
	iter := NewMockBatchResultIterator(items)

	assert.True(t, iter.Next())
	assert.Equal(t, "a", iter.Item().CustomID)
	assert.True(t, iter.Next())
	assert.Equal(t, "b", iter.Item().CustomID)
	assert.False(t, iter.Next())
	assert.NoError(t, iter.Err())
	assert.NoError(t, iter.Close())
}

func TestMockBatchResultIterator_WithError(t *testing.T) {
	items := []BatchResultItem{
		{CustomID: "a", Type: "succeeded"},
	}
	iter := NewMockBatchResultIteratorWithError(items, assert.AnError)

	assert.True(t, iter.Next())
	assert.False(t, iter.Next())
	assert.Equal(t, assert.AnError, iter.Err())
}
