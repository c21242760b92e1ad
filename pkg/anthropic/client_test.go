package anthropic

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockClient implements Client for testing.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) CreateMessage(ctx context.Context, req MessageRequest) (*MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*MessageResponse), args.Error(1)
}

func (m *MockClient) CreateBatch(ctx context.Context, req BatchRequest) (*BatchResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatch(ctx context.Context, batchID string) (*BatchResponse, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*BatchResponse), args.Error(1)
}

func (m *MockClient) GetBatchResults(ctx context.Context, batchID string) (BatchResultIterator, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(BatchResultIterator), args.Error(1)
}

// MockBatchResultIterator implements BatchResultIterator for testing.
type MockBatchResultIterator struct {
	mock.Mock
	items []BatchResultItem
	idx   int
	err   error
}

// NewMockBatchResultIterator creates an iterator that yields the given items.
func NewMockBatchResultIterator(items []BatchResultItem) *MockBatchResultIterator {
	return &MockBatchResultIterator{
		items: items,
		idx:   -1,
	}
}

// NewMockBatchResultIteratorWithError creates an iterator that fails after
// yielding the given items.
func NewMockBatchResultIteratorWithError(items []BatchResultItem, err error) *MockBatchResultIterator {
	return &MockBatchResultIterator{
		items: items,
		idx:   -1,
		err:   err,
	}
}

func (m *MockBatchResultIterator) Next() bool {
	if m.idx+1 < len(m.items) {
		m.idx++
		return true
	}
	return false
}

func (m *MockBatchResultIterator) Item() BatchResultItem {
	return m.items[m.idx]
}

func (m *MockBatchResultIterator) Err() error {
	if m.idx+1 >= len(m.items) {
		return m.err
	}
	return nil
}

func (m *MockBatchResultIterator) Close() error {
	return nil
}

func TestCreateMessage_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	req := MessageRequest{
		Model:     "claude-sonnet-4-5-20250929",
		MaxTokens: 8192,
		Messages: []Message{
			{Role: "user", Content: "Analyze the sustainability report."},
		},
	}

	expected := &MessageResponse{
		ID:         "msg_123",
		Model:      "claude-sonnet-4-5-20250929",
		Content:    []ContentBlock{{Type: "text", Text: `{"abstract": "..."}`}},
		StopReason: "end_turn",
		Usage: TokenUsage{
			InputTokens:  10,
			OutputTokens: 5,
		},
	}

	mc.On("CreateMessage", ctx, req).Return(expected, nil)

	resp, err := mc.CreateMessage(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "msg_123", resp.ID)
	assert.Equal(t, `{"abstract": "..."}`, resp.Content[0].Text)
	assert.Equal(t, int64(10), resp.Usage.InputTokens)

	mc.AssertExpectations(t)
}

func TestCreateBatch_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	req := BatchRequest{
		Requests: []BatchRequestItem{
			{
				CustomID: "rec_1",
				Params: MessageRequest{
					Model:     "claude-haiku-4-5-20251001",
					MaxTokens: 4096,
					Messages: []Message{{
						Role:        "user",
						Content:     "Extract the disclosures from the attached report.",
						DocumentURL: "https://example.com/reports/esg-2024.pdf",
					}},
				},
			},
			{
				CustomID: "rec_2",
				Params: MessageRequest{
					Model:     "claude-haiku-4-5-20251001",
					MaxTokens: 4096,
					Messages: []Message{{
						Role:        "user",
						Content:     "Extract the disclosures from the attached report.",
						DocumentURL: "https://example.com/reports/annual.pdf",
					}},
				},
			},
		},
	}

	expected := &BatchResponse{
		ID:               "batch_abc",
		ProcessingStatus: "in_progress",
		RequestCounts: RequestCounts{
			Processing: 2,
		},
	}

	mc.On("CreateBatch", ctx, req).Return(expected, nil)

	resp, err := mc.CreateBatch(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "batch_abc", resp.ID)
	assert.Equal(t, "in_progress", resp.ProcessingStatus)
	assert.Equal(t, int64(2), resp.RequestCounts.Processing)

	mc.AssertExpectations(t)
}

func TestGetBatch_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	expected := &BatchResponse{
		ID:               "batch_abc",
		ProcessingStatus: "ended",
		RequestCounts: RequestCounts{
			Succeeded: 2,
		},
	}

	mc.On("GetBatch", ctx, "batch_abc").Return(expected, nil)

	resp, err := mc.GetBatch(ctx, "batch_abc")
	require.NoError(t, err)
	assert.Equal(t, "ended", resp.ProcessingStatus)
	assert.Equal(t, int64(2), resp.RequestCounts.Succeeded)

	mc.AssertExpectations(t)
}

func TestGetBatchResults_MockClient(t *testing.T) {
	mc := new(MockClient)
	ctx := context.Background()

	items := []BatchResultItem{
		{
			CustomID: "rec_1",
			Type:     "succeeded",
			Message: &MessageResponse{
				ID:      "msg_1",
				Content: []ContentBlock{{Type: "text", Text: "result one"}},
			},
		},
		{
			CustomID: "rec_2",
			Type:     "errored",
			Reason:   "prompt is too long",
		},
	}

	iter := NewMockBatchResultIterator(items)
	mc.On("GetBatchResults", ctx, "batch_abc").Return(iter, nil)

	result, err := mc.GetBatchResults(ctx, "batch_abc")
	require.NoError(t, err)

	var collected []BatchResultItem
	for result.Next() {
		collected = append(collected, result.Item())
	}
	require.NoError(t, result.Err())
	require.Len(t, collected, 2)
	assert.Equal(t, "rec_1", collected[0].CustomID)
	assert.Equal(t, "prompt is too long", collected[1].Reason)

	mc.AssertExpectations(t)
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{
		Content: []ContentBlock{
			{Type: "text", Text: "first "},
			{Type: "tool_use", Text: "ignored"},
			{Type: "text", Text: "second"},
		},
	}
	assert.Equal(t, "first second", resp.Text())

	empty := &MessageResponse{}
	assert.Equal(t, "", empty.Text())
}

func TestEstimateCost_Haiku(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	// input: 1M * $0.80/MTok = $0.80
	// output: 1M * $4.00/MTok = $4.00
	assert.InDelta(t, 4.80, cost, 0.001)
}

func TestEstimateCost_Sonnet(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	cost := usage.EstimateCost("claude-sonnet-4-5-20250929")
	assert.InDelta(t, 18.00, cost, 0.001)
}

func TestEstimateCost_WithCache(t *testing.T) {
	usage := TokenUsage{
		InputTokens:              500_000,
		OutputTokens:             100_000,
		CacheCreationInputTokens: 200_000,
		CacheReadInputTokens:     300_000,
	}
	cost := usage.EstimateCost("claude-haiku-4-5-20251001")
	// input: 0.5M * $0.80 = $0.40
	// output: 0.1M * $4.00 = $0.40
	// cacheWrite: 0.2M * $0.80 * 1.25 = $0.20
	// cacheRead: 0.3M * $0.80 * 0.10 = $0.024
	assert.InDelta(t, 1.024, cost, 0.001)
}

func TestEstimateCost_UnknownModel(t *testing.T) {
	usage := TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}
	assert.Equal(t, 0.0, usage.EstimateCost("unknown-model"))
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		usage := TokenUsage{InputTokens: 100, OutputTokens: 50}
		usage.LogCost("claude-haiku-4-5-20251001", "extraction")
	})

	assert.NotPanics(t, func() {
		usage := TokenUsage{}
		usage.LogCost("unknown-model", "")
	})
}
