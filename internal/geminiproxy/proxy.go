// Package geminiproxy relays generation requests to the upstream Gemini API
// using a server-held credential. It is a pure pass-through: no validation,
// no retries, no rate limiting - its only job is keeping the API key off the
// client.
package geminiproxy

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"
)

const (
	defaultUpstream = "https://generativelanguage.googleapis.com/v1beta/models"
	model           = "gemini-2.5-flash"
)

// Handler is the relay endpoint. Exit behavior: 405 for non-POST, 200 with
// the upstream body otherwise, 500 with {"error": message} on any internal
// failure.
type Handler struct {
	upstream   string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHandler creates the relay. If upstream is empty, the public Gemini API
// base URL is used.
func NewHandler(upstream string, logger *slog.Logger) *Handler {
	if upstream == "" {
		upstream = defaultUpstream
	}
	return &Handler{
		upstream: upstream,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		logger: logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.fail(w, fmt.Errorf("read request body: %w", err))
		return
	}

	// The credential is read at request time so a key rotated in the
	// environment takes effect without a restart.
	apiKey := os.Getenv("GEMINI_API_KEY")
	url := fmt.Sprintf("%s/%s:generateContent?key=%s", h.upstream, model, apiKey)

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		h.fail(w, fmt.Errorf("create upstream request: %w", err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.httpClient.Do(req)
	if err != nil {
		h.fail(w, fmt.Errorf("call upstream: %w", err))
		return
	}
	defer resp.Body.Close()

	upstreamBody, err := io.ReadAll(resp.Body)
	if err != nil {
		h.fail(w, fmt.Errorf("read upstream response: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(upstreamBody)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	h.logger.Error("proxy relay failed", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
