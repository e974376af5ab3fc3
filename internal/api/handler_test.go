//nolint:revive // "api" package name is intentionally concise for this layer.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/honeypot/internal/domain"
	"github.com/ashureev/honeypot/internal/engine"
	"github.com/ashureev/honeypot/internal/honeypot"
	"github.com/ashureev/honeypot/internal/memory"
	"github.com/ashureev/honeypot/internal/middleware"
	"github.com/ashureev/honeypot/internal/session"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	data := map[string]string{"foo": "bar"}

	JSON(w, http.StatusOK, data)

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected application/json, got %q", ct)
	}

	var got map[string]string
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if got["foo"] != "bar" {
		t.Errorf("Expected foo=bar, got %v", got["foo"])
	}
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

func newTestRouter(t *testing.T, mutate func(*RouterConfig)) http.Handler {
	t.Helper()
	sessions := session.NewMemoryStore()
	mem := memory.NewIndex()
	svc := honeypot.NewService(engine.New(sessions, mem), sessions, mem)
	t.Cleanup(func() { _ = svc.Close() })

	cfg := RouterConfig{
		Service:         svc,
		CORSOrigins:     []string{"*"},
		MaxRequestBytes: 1 << 16,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewRouter(cfg)
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v))
	return v
}

func TestHoneypotFlow(t *testing.T) {
	h := newTestRouter(t, nil)

	w := do(t, h, http.MethodPost, "/api/honeypot/start", map[string]string{"message": "Pay the fee now"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	start := decodeBody[honeypot.StartResult](t, w)
	require.NotEmpty(t, start.SessionID)
	assert.Equal(t, domain.StatusRunning, start.Status)
	assert.NotEmpty(t, start.FirstReply)
	require.NotNil(t, start.Session)
	require.NotNil(t, start.Session.Analysis, "classifier annotates when analyze_result is absent")

	w = do(t, h, http.MethodPost, "/api/honeypot/incoming", map[string]string{
		"session_id": start.SessionID,
		"message":    "send to fraud@okbank call 9876543210 http://x.example",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	inc := decodeBody[honeypot.IncomingResult](t, w)
	assert.Equal(t, domain.StatusEnded, inc.Status)
	assert.Equal(t, domain.StopAllIntelCollected, inc.StopReason)

	w = do(t, h, http.MethodGet, "/api/honeypot/session/"+start.SessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	snap := decodeBody[domain.Session](t, w)
	assert.Equal(t, domain.StatusEnded, snap.Status)
	assert.True(t, snap.Intel.Domains.Has("x.example"))

	w = do(t, h, http.MethodGet, "/api/iocs/top?limit=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	top := decodeBody[struct {
		IOCs []domain.IOCStat `json:"iocs"`
	}](t, w)
	assert.Len(t, top.IOCs, 2)
}

func TestStartWithProvidedAnalysis(t *testing.T) {
	h := newTestRouter(t, nil)

	w := do(t, h, http.MethodPost, "/api/honeypot/start", map[string]any{
		"message":        "hello",
		"analyze_result": map[string]any{"is_scam": true, "scam_score": 0.7, "scam_type": "CUSTOM"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	start := decodeBody[honeypot.StartResult](t, w)
	require.NotNil(t, start.Session.Analysis)
	assert.Equal(t, "CUSTOM", start.Session.Analysis.ScamType)
}

func TestSessionNotFound(t *testing.T) {
	h := newTestRouter(t, nil)

	w := do(t, h, http.MethodGet, "/api/honeypot/session/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"session_not_found"}`, w.Body.String())

	w = do(t, h, http.MethodPost, "/api/honeypot/incoming", map[string]string{"session_id": "nope", "message": "hi"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestBadRequests(t *testing.T) {
	h := newTestRouter(t, func(c *RouterConfig) { c.MaxRequestBytes = 64 })

	tests := []struct {
		name string
		path string
		body string
		code int
		want string
	}{
		{"malformed json", "/api/analyze", "{", http.StatusBadRequest, "invalid_request"},
		{"empty body", "/api/analyze", "", http.StatusBadRequest, "empty_body"},
		{"missing session id", "/api/honeypot/incoming", `{"message":"hi"}`, http.StatusBadRequest, "session_id_required"},
		{"too large", "/api/analyze", `{"message":"` + strings.Repeat("x", 200) + `"}`, http.StatusRequestEntityTooLarge, "request_too_large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tt.path, strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			h.ServeHTTP(w, req)

			assert.Equal(t, tt.code, w.Code)
			assert.Equal(t, tt.want, decodeBody[map[string]string](t, w)["error"])
		})
	}
}

func TestTopIOCsInvalidLimit(t *testing.T) {
	h := newTestRouter(t, nil)

	for _, q := range []string{"0", "-3", "many"} {
		w := do(t, h, http.MethodGet, "/api/iocs/top?limit="+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}

	w := do(t, h, http.MethodGet, "/api/iocs/top", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"iocs":[]}`, w.Body.String())
}

func TestAnalyzeEndpoint(t *testing.T) {
	h := newTestRouter(t, nil)

	w := do(t, h, http.MethodPost, "/api/analyze", map[string]string{"message": "Redeem reward points today"})
	require.Equal(t, http.StatusOK, w.Code)
	first := decodeBody[map[string]any](t, w)
	assert.Equal(t, true, first["is_scam"])
	assert.Equal(t, false, first["memory_match"])
	assert.EqualValues(t, 1, first["seen_count"])

	w = do(t, h, http.MethodPost, "/api/analyze", map[string]string{"message": "redeem  reward points TODAY"})
	second := decodeBody[map[string]any](t, w)
	assert.Equal(t, true, second["memory_match"])
	assert.EqualValues(t, 2, second["seen_count"])
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name string
		db   Pinger
		code int
		want string
	}{
		{"disabled", nil, http.StatusOK, "disabled"},
		{"ok", fakePinger{}, http.StatusOK, "ok"},
		{"down", fakePinger{err: errors.New("gone")}, http.StatusServiceUnavailable, "unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newTestRouter(t, func(c *RouterConfig) { c.DB = tt.db })
			w := do(t, h, http.MethodGet, "/health", nil)
			assert.Equal(t, tt.code, w.Code)

			body := decodeBody[struct {
				Checks map[string]string `json:"checks"`
			}](t, w)
			assert.Equal(t, tt.want, body.Checks["database"])
		})
	}
}

func TestRateLimit(t *testing.T) {
	h := newTestRouter(t, func(c *RouterConfig) { c.RateLimit = middleware.NewRateLimiter(0.001, 1) })

	w := do(t, h, http.MethodGet, "/api/iocs/top", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	w = do(t, h, http.MethodGet, "/api/iocs/top", nil)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	// Health is outside the limited group.
	w = do(t, h, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
