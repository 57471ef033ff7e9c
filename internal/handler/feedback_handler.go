package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/citizenai/internal/middleware"
	"github.com/hitoshi/citizenai/internal/model"
)

// FeedbackSinkInterface はフィードバックハンドラーが必要とするインターフェース。
type FeedbackSinkInterface interface {
	Record(ctx context.Context, identity *model.Identity, sentiment, concern json.RawMessage) (*model.FeedbackRecord, error)
}

// FeedbackHandler はフィードバック送信のHTTPハンドラー。
type FeedbackHandler struct {
	sink FeedbackSinkInterface
}

// NewFeedbackHandler はFeedbackHandlerを生成する。
func NewFeedbackHandler(sink FeedbackSinkInterface) *FeedbackHandler {
	return &FeedbackHandler{sink: sink}
}

type feedbackResponse struct {
	Status string `json:"status"`
}

// Submit はフィードバックを記録する。
// POST /api/feedback, POST /feedback
func (h *FeedbackHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return
	}

	var req FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	if _, err := h.sink.Record(r.Context(), identity, req.Sentiment, req.Concern); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{Status: "Feedback received"})
}
