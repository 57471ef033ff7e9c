package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/citizenai/internal/middleware"
	"github.com/hitoshi/citizenai/internal/model"
)

// ChatGatewayInterface はチャットハンドラーが必要とするインターフェース。
type ChatGatewayInterface interface {
	Submit(ctx context.Context, identity *model.Identity, rawMessage string) (string, error)
}

// ChatHandler はチャット送信のHTTPハンドラー。
type ChatHandler struct {
	gateway ChatGatewayInterface
}

// NewChatHandler はChatHandlerを生成する。
func NewChatHandler(gateway ChatGatewayInterface) *ChatHandler {
	return &ChatHandler{gateway: gateway}
}

type chatResponse struct {
	Reply string `json:"reply"`
}

// Send はメッセージを送信し、生成された応答を返す。
// POST /api/chat, POST /send_message
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	// 未認証の場合はボディを読む前に拒否する
	if identity == nil {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return
	}

	var req ChatRequest
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, r, err)
		return
	}

	reply, err := h.gateway.Submit(r.Context(), identity, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{Reply: reply})
}
