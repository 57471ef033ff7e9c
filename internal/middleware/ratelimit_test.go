package middleware

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/hitoshi/citizenai/internal/model"
)

func testRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		ChatRate:        1, // 1 req/sec
		ChatBurst:       2,
		AuthRate:        1,
		AuthBurst:       3,
		CleanupInterval: time.Minute,
	}
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func chatRequest(identity *model.Identity, remoteAddr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = remoteAddr
	if identity != nil {
		req = req.WithContext(ContextWithIdentity(req.Context(), identity))
	}
	return req
}

func TestNewRateLimiterConfig_PerMinute(t *testing.T) {
	cfg := NewRateLimiterConfig(30, 10)
	if cfg.ChatBurst != 30 || cfg.AuthBurst != 10 {
		t.Errorf("bursts = (%d, %d), want (30, 10)", cfg.ChatBurst, cfg.AuthBurst)
	}
	if float64(cfg.ChatRate) != 0.5 {
		t.Errorf("ChatRate = %v, want 0.5", cfg.ChatRate)
	}
}

func TestChatMiddleware_AllowsWithinBurstThenReturns429(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.ChatMiddleware()(okHandler())

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, chatRequest(alice, "192.0.2.1:1234"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, w.Code, http.StatusOK)
		}
	}

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, chatRequest(alice, "192.0.2.1:1234"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusTooManyRequests)
	}
	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	if err != nil || retryAfter < 1 {
		t.Errorf("Retry-After = %q, want positive integer", w.Header().Get("Retry-After"))
	}
	if body := decodeErrorBody(t, w); body.Code != model.ErrCodeRateLimited {
		t.Errorf("code = %q, want %q", body.Code, model.ErrCodeRateLimited)
	}
}

func TestChatMiddleware_UsersAreIndependent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.ChatMiddleware()(okHandler())
	bob := &model.Identity{Email: "bob@example.com"}

	// 同一IPでもユーザーごとに独立して制限する
	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), chatRequest(alice, "192.0.2.1:1234"))
	}
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, chatRequest(bob, "192.0.2.1:1234"))
	if w.Code != http.StatusOK {
		t.Errorf("bob status = %d, want %d", w.Code, http.StatusOK)
	}
	if rl.ChatLimiterCount() != 2 {
		t.Errorf("ChatLimiterCount = %d, want 2", rl.ChatLimiterCount())
	}
}

func TestAuthMiddleware_LimitsPerClientIP(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.AuthMiddleware()(okHandler())

	login := func(addr string) int {
		req := httptest.NewRequest(http.MethodPost, "/auth/login", nil)
		req.RemoteAddr = addr
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	for i := 0; i < 3; i++ {
		if code := login("198.51.100.7:5000"); code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i, code, http.StatusOK)
		}
	}
	// ポートが違っても同一IPとして数える
	if code := login("198.51.100.7:6000"); code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want %d", code, http.StatusTooManyRequests)
	}
	if code := login("198.51.100.8:5000"); code != http.StatusOK {
		t.Errorf("other IP status = %d, want %d", code, http.StatusOK)
	}
}

func TestRateLimiter_CleanupRemovesStaleEntries(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	defer rl.Stop()
	handler := rl.ChatMiddleware()(okHandler())

	handler.ServeHTTP(httptest.NewRecorder(), chatRequest(alice, "192.0.2.1:1234"))
	if rl.ChatLimiterCount() != 1 {
		t.Fatalf("ChatLimiterCount = %d, want 1", rl.ChatLimiterCount())
	}

	rl.cleanup(time.Now().Add(time.Hour))
	if rl.ChatLimiterCount() != 0 {
		t.Errorf("ChatLimiterCount = %d, want 0 after cleanup", rl.ChatLimiterCount())
	}
}

func TestRateLimiter_StopIsIdempotent(t *testing.T) {
	rl := NewRateLimiter(testRateLimiterConfig())
	rl.Stop()
	rl.Stop()
}
