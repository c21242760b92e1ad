package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sustain-group/esg-cli/internal/resilience"
)

// newTestClient creates an sdkClient pointing at a local test server.
// SDK-internal retries are disabled so error-path tests observe the first
// response directly.
func newTestClient(baseURL string) *sdkClient {
	return &sdkClient{
		client: sdk.NewClient(
			option.WithAPIKey("test-key"),
			option.WithBaseURL(baseURL),
			option.WithMaxRetries(0),
		),
	}
}

func apiErrorBody(w http.ResponseWriter, status int, errType, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type": "error",
		"error": map[string]any{
			"type":    errType,
			"message": msg,
		},
	})
}

func TestSDKClient_CreateMessage(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Contains(t, r.URL.Path, "/messages")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_test_001",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": `{"abstract": "Company reduces emissions."}`},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":                10,
				"output_tokens":               5,
				"cache_creation_input_tokens": 0,
				"cache_read_input_tokens":     0,
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Analyze the report"}},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "msg_test_001", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	require.Len(t, resp.Content, 1)
	assert.Equal(t, `{"abstract": "Company reduces emissions."}`, resp.Content[0].Text)
}

func TestSDKClient_CreateMessage_WithSystemAndTemp(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":   "msg_sys",
			"type": "message",
			"role": "assistant",
			"content": []map[string]any{
				{"type": "text", "text": "Acknowledged"},
			},
			"model":       "claude-sonnet-4-5-20250929",
			"stop_reason": "end_turn",
			"usage": map[string]any{
				"input_tokens":                50,
				"output_tokens":               3,
				"cache_creation_input_tokens": 5000,
				"cache_read_input_tokens":     0,
			},
		})
	}))
	defer ts.Close()

	temp := 0.2
	client := newTestClient(ts.URL)
	resp, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 128,
		System:    BuildCachedSystemBlocks("You extract sustainability disclosures."),
		Messages: []Message{{
			Role:        "user",
			Content:     "Extract from the attached report.",
			DocumentURL: "https://example.com/esg.pdf",
		}},
		Temperature: &temp,
	})
	require.NoError(t, err)
	assert.Equal(t, "msg_sys", resp.ID)
	assert.Equal(t, int64(5000), resp.Usage.CacheCreationInputTokens)
}

func TestSDKClient_CreateMessage_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiErrorBody(w, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Hello"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
	assert.True(t, resilience.IsRetryable(err))
	assert.False(t, resilience.IsAuth(err))
}

func TestSDKClient_CreateMessage_AuthError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiErrorBody(w, http.StatusUnauthorized, "authentication_error", "invalid x-api-key")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Hello"}},
	})
	require.Error(t, err)
	assert.True(t, resilience.IsAuth(err))
	assert.False(t, resilience.IsRetryable(err))
	assert.Contains(t, err.Error(), "check credentials")
}

func TestSDKClient_CreateMessage_ServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiErrorBody(w, http.StatusInternalServerError, "api_error", "Internal server error")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.CreateMessage(context.Background(), MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 1024,
		Messages:  []Message{{Role: "user", Content: "Hello"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create message")
	assert.False(t, resilience.IsRetryable(err))
	assert.False(t, resilience.IsAuth(err))
}

func TestSDKClient_CreateBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "/batches")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                "batch_test_001",
			"type":              "message_batch",
			"processing_status": "in_progress",
			"created_at":        "2026-03-01T10:00:00Z",
			"expires_at":        "2026-03-02T10:00:00Z",
			"results_url":       "",
			"request_counts": map[string]any{
				"processing": 2,
				"succeeded":  0,
				"errored":    0,
				"canceled":   0,
				"expired":    0,
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.CreateBatch(context.Background(), BatchRequest{
		Requests: []BatchRequestItem{
			{CustomID: "rec_1", Params: MessageRequest{
				Model: "claude-haiku-4-5-20251001", MaxTokens: 4096,
				Messages: []Message{{
					Role:        "user",
					Content:     "Extract",
					DocumentURL: "https://example.com/a.pdf",
				}},
			}},
			{CustomID: "rec_2", Params: MessageRequest{
				Model: "claude-haiku-4-5-20251001", MaxTokens: 4096,
				Messages: []Message{{
					Role:        "user",
					Content:     "Extract",
					DocumentURL: "https://example.com/b.pdf",
				}},
			}},
		},
	})
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "batch_test_001", resp.ID)
	assert.Equal(t, "in_progress", resp.ProcessingStatus)
	assert.Equal(t, int64(2), resp.RequestCounts.Processing)
	assert.False(t, resp.CreatedAt.IsZero())
	assert.Equal(t, 24*60*60, int(resp.ExpiresAt.Sub(resp.CreatedAt).Seconds()))
}

func TestSDKClient_CreateBatch_RateLimited(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiErrorBody(w, http.StatusTooManyRequests, "rate_limit_error", "Rate limit exceeded")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.CreateBatch(context.Background(), BatchRequest{
		Requests: []BatchRequestItem{
			{CustomID: "rec_1", Params: MessageRequest{
				Model: "claude-haiku-4-5-20251001", MaxTokens: 512,
				Messages: []Message{{Role: "user", Content: "Q"}},
			}},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: create batch")
	assert.True(t, resilience.IsRetryable(err))
}

func TestSDKClient_GetBatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "batch_get_001")

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":                "batch_get_001",
			"type":              "message_batch",
			"processing_status": "ended",
			"results_url":       "https://api.anthropic.com/results/batch_get_001",
			"request_counts": map[string]any{
				"processing": 0,
				"succeeded":  5,
				"errored":    0,
				"canceled":   0,
				"expired":    0,
			},
		})
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	resp, err := client.GetBatch(context.Background(), "batch_get_001")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, int64(5), resp.RequestCounts.Succeeded)
	assert.Contains(t, resp.ResultsURL, "batch_get_001")
}

func TestSDKClient_GetBatch_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiErrorBody(w, http.StatusNotFound, "not_found_error", "Batch not found")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.GetBatch(context.Background(), "batch_nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: get batch")
	assert.False(t, resilience.IsRetryable(err))
}

func TestSDKClient_GetBatchResults(t *testing.T) {
	// The SDK's ResultsStreaming expects JSONL from the results endpoint.
	lines := `{"custom_id":"rec_1","result":{"type":"succeeded","message":{"id":"msg_r1","type":"message","role":"assistant","content":[{"type":"text","text":"{\"abstract\":\"one\"}"}],"model":"claude-haiku-4-5-20251001","stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":5,"cache_creation_input_tokens":0,"cache_read_input_tokens":0}}}}` + "\n" +
		`{"custom_id":"rec_2","result":{"type":"errored","error":{"type":"error","error":{"type":"invalid_request_error","message":"prompt is too long"}}}}` + "\n"

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "batch_results_001")
		w.Header().Set("Content-Type", "application/x-jsonlines")
		_, _ = w.Write([]byte(lines))
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	iter, err := client.GetBatchResults(context.Background(), "batch_results_001")
	require.NoError(t, err)
	require.NotNil(t, iter)
	defer iter.Close() //nolint:errcheck

	var items []BatchResultItem
	for iter.Next() {
		items = append(items, iter.Item())
	}
	require.NoError(t, iter.Err())
	require.Len(t, items, 2)

	assert.Equal(t, "rec_1", items[0].CustomID)
	assert.Equal(t, "succeeded", items[0].Type)
	require.NotNil(t, items[0].Message)
	assert.Equal(t, `{"abstract":"one"}`, items[0].Message.Content[0].Text)

	assert.Equal(t, "rec_2", items[1].CustomID)
	assert.Equal(t, "errored", items[1].Type)
	assert.Nil(t, items[1].Message)
	assert.Equal(t, "prompt is too long", items[1].Reason)
}

func TestSDKClient_GetBatchResults_NotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiErrorBody(w, http.StatusNotFound, "not_found_error", "Batch not found")
	}))
	defer ts.Close()

	client := newTestClient(ts.URL)
	_, err := client.GetBatchResults(context.Background(), "batch_nonexistent")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "anthropic: get batch results")
}
