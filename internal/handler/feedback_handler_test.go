package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hitoshi/citizenai/internal/model"
)

// mockFeedbackSink はFeedbackSinkInterfaceのテスト用モック
type mockFeedbackSink struct {
	recordFn func(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error)
}

func (m *mockFeedbackSink) Record(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error) {
	return m.recordFn(ctx, identity, sentiment, concern)
}

func TestFeedbackHandler_Submit_RecordsAndAcknowledges(t *testing.T) {
	var gotSentiment, gotConcern string
	sink := &mockFeedbackSink{
		recordFn: func(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error) {
			gotSentiment = string(sentiment)
			gotConcern = string(concern)
			return &model.FeedbackRecord{}, nil
		},
	}
	h := NewFeedbackHandler(sink)

	req := withAlice(httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"sentiment":"positive","concern":"roads"}`)))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if gotSentiment != `"positive"` || gotConcern != `"roads"` {
		t.Errorf("recorded (%s, %s)", gotSentiment, gotConcern)
	}
	var body map[string]string
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["status"] != "Feedback received" {
		t.Errorf("status = %q, want %q", body["status"], "Feedback received")
	}
}

func TestFeedbackHandler_Submit_AbsentFields_PassesEmpty(t *testing.T) {
	sink := &mockFeedbackSink{
		recordFn: func(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error) {
			if len(sentiment) != 0 || len(concern) != 0 {
				t.Errorf("expected empty values, got (%s, %s)", sentiment, concern)
			}
			return &model.FeedbackRecord{}, nil
		},
	}
	h := NewFeedbackHandler(sink)

	req := withAlice(httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{}`)))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestFeedbackHandler_Submit_ObjectValue_Returns400(t *testing.T) {
	sink := &mockFeedbackSink{
		recordFn: func(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error) {
			t.Error("sink should not be called")
			return nil, nil
		},
	}
	h := NewFeedbackHandler(sink)

	req := withAlice(httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"sentiment":{"a":1}}`)))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestFeedbackHandler_Submit_Anonymous_Returns401(t *testing.T) {
	sink := &mockFeedbackSink{
		recordFn: func(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error) {
			t.Error("sink should not be called")
			return nil, nil
		},
	}
	h := NewFeedbackHandler(sink)

	req := httptest.NewRequest(http.MethodPost, "/api/feedback", strings.NewReader(`{"sentiment":"positive"}`))
	w := httptest.NewRecorder()

	h.Submit(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
	}
}
