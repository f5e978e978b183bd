package geminiproxy

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRejectsNonPOST(t *testing.T) {
	h := NewHandler("http://unused", testLogger())

	for _, method := range []string{http.MethodGet, http.MethodPut, http.MethodDelete} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, "/api/gemini-proxy", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s: expected 405, got %d", method, rec.Code)
		}
	}
}

func TestForwardsBodyVerbatim(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "sekrit")

	var gotBody string
	var gotKey string
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		gotKey = r.URL.Query().Get("key")
		w.Write([]byte(`{"candidates":[]}`))
	}))
	defer upstream.Close()

	h := NewHandler(upstream.URL, testLogger())
	payload := `{"contents":[{"parts":[{"text":"hello"}]}]}`
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/gemini-proxy", strings.NewReader(payload)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if gotBody != payload {
		t.Errorf("payload was not forwarded verbatim: %q", gotBody)
	}
	if gotKey != "sekrit" {
		t.Errorf("expected server-held key on the upstream call, got %q", gotKey)
	}
	if got := rec.Body.String(); got != `{"candidates":[]}` {
		t.Errorf("upstream body was not returned unmodified: %q", got)
	}
}

func TestUpstreamErrorBodyPassesThrough(t *testing.T) {
	// Upstream failures with a response still relay as 200 + body; the
	// proxy only reports its own faults.
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"code":429}}`))
	}))
	defer upstream.Close()

	h := NewHandler(upstream.URL, testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/gemini-proxy", strings.NewReader(`{}`)))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"error":{"code":429}}` {
		t.Errorf("unexpected body: %q", rec.Body.String())
	}
}

func TestTransportFailureReturns500(t *testing.T) {
	// A base URL nothing listens on.
	h := NewHandler("http://127.0.0.1:1/models", testLogger())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/gemini-proxy", strings.NewReader(`{}`)))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}

	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("error body is not JSON: %v", err)
	}
	if body["error"] == "" {
		t.Error("expected an error message")
	}
}
