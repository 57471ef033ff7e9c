// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/citizenai/internal/credential"
	"github.com/hitoshi/citizenai/internal/middleware"
	"github.com/hitoshi/citizenai/internal/model"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Register(ctx context.Context, currentSessionID string, in credential.RegisterInput) (*model.Session, error)
	Login(ctx context.Context, currentSessionID, email, password string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
	CurrentIdentity(ctx context.Context, sessionID string) (*model.Identity, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler は登録・ログイン・ログアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// Register はユーザーを登録し、セッションCookieを発行する。
// POST /auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	err := decodeCredentials(w, r, &req, func(key, value string) {
		switch key {
		case "email":
			req.Email = value
		case "password":
			req.Password = value
		case "first_name":
			req.FirstName = value
		case "last_name":
			req.LastName = value
		}
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := h.service.Register(r.Context(), sessionIDFromRequest(r), req.Input())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	middleware.NoteIdentity(r.Context(), session.Identity.Email)
	writeJSON(w, http.StatusCreated, session.Identity)
}

// Login はメールアドレスとパスワードを照合し、セッションCookieを発行する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	err := decodeCredentials(w, r, &req, func(key, value string) {
		switch key {
		case "email":
			req.Email = value
		case "password":
			req.Password = value
		}
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	session, err := h.service.Login(r.Context(), sessionIDFromRequest(r), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setSessionCookie(w, session.ID)
	middleware.NoteIdentity(r.Context(), session.Identity.Email)
	writeJSON(w, http.StatusOK, session.Identity)
}

// Logout はセッションを破棄する。未ログインでも204を返す。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Logout(r.Context(), sessionIDFromRequest(r)); err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.clearSessionCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

// Me は現在のログインユーザーの識別情報を返す。
// GET /auth/me（RequireIdentityの後段）
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.IdentityFromContext(r.Context())
	if identity == nil {
		handleServiceError(w, r, model.NewUnauthenticatedError())
		return
	}
	writeJSON(w, http.StatusOK, identity)
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, sessionID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sessionID,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionIDFromRequest はリクエストのセッションCookieの値を返す。
func sessionIDFromRequest(r *http.Request) string {
	cookie, err := r.Cookie(middleware.SessionCookieName)
	if err != nil {
		return ""
	}
	return cookie.Value
}
