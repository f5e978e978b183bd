package httpserver

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/spaceandstories/community-feed/internal/analysis"
	"github.com/spaceandstories/community-feed/internal/config"
	"github.com/spaceandstories/community-feed/internal/domain"
	"github.com/spaceandstories/community-feed/internal/identity"
)

// Server is the HTTP surface of the application: the REST API, the LLM
// proxy, and the real-time feed socket.
type Server struct {
	cfg        *config.Config
	source     domain.FeedSource
	feed       *domain.Session
	publisher  *domain.Publisher
	provider   *identity.Provider
	tokens     *identity.TokenIssuer
	summaries  *analysis.SummaryRequester
	comfort    *analysis.ComfortRequester
	proxy      http.Handler
	logger     *slog.Logger
	httpServer *http.Server
}

// Deps bundles the collaborators the server routes to.
type Deps struct {
	Source    domain.FeedSource
	Feed      *domain.Session
	Publisher *domain.Publisher
	Provider  *identity.Provider
	Tokens    *identity.TokenIssuer
	Summaries *analysis.SummaryRequester
	Comfort   *analysis.ComfortRequester
	Proxy     http.Handler
}

// NewServer creates the HTTP server and wires its routes.
func NewServer(cfg *config.Config, deps Deps, logger *slog.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		source:    deps.Source,
		feed:      deps.Feed,
		publisher: deps.Publisher,
		provider:  deps.Provider,
		tokens:    deps.Tokens,
		summaries: deps.Summaries,
		comfort:   deps.Comfort,
		proxy:     deps.Proxy,
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/auth/signup", s.handleSignUp)
	mux.HandleFunc("POST /api/auth/login", s.handleLogin)
	mux.HandleFunc("POST /api/auth/anonymous", s.handleAnonymous)
	mux.HandleFunc("POST /api/auth/display-name", s.handleDisplayName)

	mux.HandleFunc("GET /api/feed", s.handleFeed)
	mux.HandleFunc("GET /api/posts/{id}", s.handlePost)
	mux.HandleFunc("POST /api/posts", s.handlePublish)

	mux.HandleFunc("POST /api/analysis/summary", s.handleSummary)
	mux.HandleFunc("POST /api/analysis/comfort", s.handleComfort)

	mux.Handle("/api/gemini-proxy", s.proxy)

	mux.HandleFunc("GET /ws/feed", s.handleFeedSocket)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      withLogging(logger, mux),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 0, // the feed socket writes for the connection lifetime
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// Start begins listening for HTTP requests. It blocks until the server is
// shut down or an error occurs.
func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type authResponse struct {
	Token string `json:"token"`
	User  struct {
		ID          string `json:"id"`
		Email       string `json:"email,omitempty"`
		DisplayName string `json:"displayName,omitempty"`
		Anonymous   bool   `json:"anonymous,omitempty"`
	} `json:"user"`
}

func (s *Server) writeAuth(w http.ResponseWriter, user *identity.User) {
	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		s.logger.Error("issuing session token", "error", err)
		writeError(w, http.StatusInternalServerError, "InternalError", "failed to create session")
		return
	}

	var resp authResponse
	resp.Token = token
	resp.User.ID = user.ID
	resp.User.Email = user.Email
	resp.User.DisplayName = user.DisplayName
	resp.User.Anonymous = user.Anonymous
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Password    string `json:"password"`
		DisplayName string `json:"displayName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.provider.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		writeError(w, authStatus(err), "AuthError", identity.Message(err))
		return
	}
	s.writeAuth(w, user)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	user, err := s.provider.SignIn(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, authStatus(err), "AuthError", identity.Message(err))
		return
	}
	s.writeAuth(w, user)
}

func (s *Server) handleAnonymous(w http.ResponseWriter, r *http.Request) {
	user, err := s.provider.SignInAnonymously(r.Context())
	if err != nil {
		s.logger.Error("anonymous sign-in failed", "error", err)
		writeError(w, http.StatusInternalServerError, "AuthError", identity.Message(err))
		return
	}
	s.writeAuth(w, user)
}

func (s *Server) handleDisplayName(w http.ResponseWriter, r *http.Request) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return
	}

	var req struct {
		DisplayName string `json:"displayName"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.provider.SetDisplayName(r.Context(), user.ID, req.DisplayName); err != nil {
		writeError(w, authStatus(err), "AuthError", identity.Message(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFeed serves a stateless read of the visible set: the shared cache
// snapshot filtered and paginated per the query parameters.
func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	filter, err := domain.ParseFilter(r.URL.Query().Get("language"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		return
	}

	pages := 1
	if p := r.URL.Query().Get("pages"); p != "" {
		pages, err = strconv.Atoi(p)
		if err != nil || pages < 1 {
			writeError(w, http.StatusBadRequest, "InvalidRequest", "pages must be a positive integer")
			return
		}
	}

	cache := s.feed.Snapshot(r.Context())
	visible, hasMore := domain.VisiblePosts(cache, filter, pages, domain.DefaultPageSize)
	writeJSON(w, http.StatusOK, domain.RenderFrame(visible, hasMore, filter))
}

func (s *Server) handlePost(w http.ResponseWriter, r *http.Request) {
	post, ok := s.feed.PostByID(r.Context(), r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "no such post")
		return
	}
	writeJSON(w, http.StatusOK, domain.RenderPost(post))
}

func (s *Server) handlePublish(w http.ResponseWriter, r *http.Request) {
	author, ok := s.authorFromRequest(w, r)
	if !ok {
		return
	}

	var req struct {
		Title    string `json:"title"`
		Content  string `json:"content"`
		Language string `json:"language"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	id, err := s.publisher.Publish(r.Context(), author, req.Title, req.Content, domain.Language(req.Language))
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrEmptyTitle),
			errors.Is(err, domain.ErrEmptyContent),
			errors.Is(err, domain.ErrBadLanguage):
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
		case errors.Is(err, domain.ErrNotReady):
			writeError(w, http.StatusServiceUnavailable, "NotReady", err.Error())
		default:
			s.logger.Error("publish failed", "error", err)
			writeError(w, http.StatusInternalServerError, "InternalError", "failed to publish post")
		}
		return
	}

	// The post reaches the feed only via the store echo; the id here is
	// just a receipt.
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostID string `json:"postId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	post, ok := s.feed.PostByID(r.Context(), req.PostID)
	if !ok {
		writeError(w, http.StatusNotFound, "NotFound", "no such post")
		return
	}

	summary, err := s.summaries.Summarize(r.Context(), post)
	if err != nil {
		s.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleComfort(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Situation string `json:"situation"`
		Language  string `json:"language"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	lang := domain.Language(req.Language)
	if !lang.Valid() {
		lang = domain.LanguageEnglish
	}

	rec, err := s.comfort.Recommend(r.Context(), req.Situation, lang)
	if err != nil {
		if errors.Is(err, analysis.ErrEmptySituation) {
			writeError(w, http.StatusBadRequest, "InvalidRequest", err.Error())
			return
		}
		s.writeAnalysisError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) writeAnalysisError(w http.ResponseWriter, err error) {
	if errors.Is(err, analysis.ErrSuperseded) {
		writeError(w, http.StatusConflict, "Superseded", "a newer analysis request replaced this one")
		return
	}
	s.logger.Error("analysis request failed", "error", err)
	writeError(w, http.StatusBadGateway, "AnalysisFailed", "failed to generate analysis")
}

// authenticate resolves the Bearer token into a user, writing a 401 on
// failure.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if raw == "" || raw == r.Header.Get("Authorization") {
		writeError(w, http.StatusUnauthorized, "AuthRequired", "missing bearer token")
		return nil, false
	}

	userID, err := s.tokens.Verify(raw)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AuthRequired", "invalid session token")
		return nil, false
	}

	user, err := s.provider.Lookup(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "AuthRequired", "unknown account")
		return nil, false
	}
	return user, true
}

func (s *Server) authorFromRequest(w http.ResponseWriter, r *http.Request) (domain.Author, bool) {
	user, ok := s.authenticate(w, r)
	if !ok {
		return domain.Author{}, false
	}
	return domain.Author{
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Email:       user.Email,
	}, true
}

func authStatus(err error) int {
	switch {
	case errors.Is(err, identity.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, identity.ErrWrongPassword), errors.Is(err, identity.ErrUserNotFound):
		return http.StatusUnauthorized
	case errors.Is(err, identity.ErrMissingInput), errors.Is(err, identity.ErrMissingName):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "InvalidRequest", "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, errType, message string) {
	writeJSON(w, status, map[string]string{
		"error":   errType,
		"message": message,
	})
}

func withLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(wrapped, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", wrapped.status,
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// Hijack lets the websocket upgrade reach the underlying connection through
// the logging wrapper.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
