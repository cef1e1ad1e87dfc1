package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"stock_news/internal/domain"
	"stock_news/internal/pipeline"
	"stock_news/internal/search"
)

const (
	defaultSearchLimit = 5
	askContextLimit    = 3
)

// Runner runs one pipeline cycle without waiting for a cycle in progress and
// reports the current state.
type Runner interface {
	TryRun(ctx context.Context, query domain.Query) (*domain.RunResult, error)
	State() domain.State
}

// Assistant answers follow-up questions within one running conversation.
type Assistant interface {
	AskAbout(ctx context.Context, question, text string) (string, error)
}

// Searcher looks up indexed articles.
type Searcher interface {
	Search(ctx context.Context, text string, limit int) ([]domain.Article, error)
}

// Server exposes health, run triggering, search and the assistant over HTTP.
type Server struct {
	runner    Runner
	searcher  Searcher
	assistant Assistant
	buildQ    func(text string) domain.Query
	logger    *slog.Logger
}

// NewServer wires the handlers. A nil searcher disables /search and a nil
// assistant disables /ask; both then answer 404.
func NewServer(runner Runner, searcher Searcher, assistant Assistant, buildQuery func(string) domain.Query, logger *slog.Logger) *Server {
	if buildQuery == nil {
		buildQuery = func(text string) domain.Query { return domain.Query{Text: text} }
	}
	return &Server{
		runner:    runner,
		searcher:  searcher,
		assistant: assistant,
		buildQ:    buildQuery,
		logger:    logger.With("component", "api"),
	}
}

func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	r.HandleFunc("/state", s.handleState).Methods(http.MethodGet)
	r.HandleFunc("/runs", s.handleRun).Methods(http.MethodPost)
	if s.searcher != nil {
		r.HandleFunc("/search", s.handleSearch).Methods(http.MethodGet)
	}
	if s.assistant != nil {
		r.HandleFunc("/ask", s.handleAsk).Methods(http.MethodPost)
	}

	return r
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type runRequest struct {
	Query string `json:"query"`
}

type runResponse struct {
	RunID     string          `json:"run_id"`
	Query     string          `json:"query"`
	State     domain.State    `json:"state"`
	NoNews    bool            `json:"no_news"`
	Exhausted bool            `json:"exhausted"`
	Stats     domain.RunStats `json:"stats"`
	Table     domain.Table    `json:"table"`
}

func (s *Server) handleState(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]domain.State{"state": s.runner.State()})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := s.runner.TryRun(r.Context(), s.buildQ(req.Query))
	if errors.Is(err, pipeline.ErrRunInProgress) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("run failed", "query", req.Query, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, runResponse{
		RunID:     result.RunID,
		Query:     result.Query,
		State:     result.State,
		NoNews:    result.NoNews,
		Exhausted: result.Exhausted,
		Stats:     result.Stats,
		Table:     result.Table(),
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}

	limit := defaultSearchLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	articles, err := s.searcher.Search(r.Context(), q, limit)
	if err != nil {
		s.logger.Error("search failed", "query", q, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, domain.NewTable(articles))
}

type askRequest struct {
	Question string `json:"question"`
}

type askResponse struct {
	Answer  string `json:"answer"`
	Sources int    `json:"sources"`
}

// handleAsk answers within the server's conversation, attaching the best
// indexed articles for the question when search is available.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	var hits []domain.Article
	if s.searcher != nil {
		found, err := s.searcher.Search(r.Context(), req.Question, askContextLimit)
		if err != nil {
			s.logger.Warn("search for question context failed", "error", err)
		} else {
			hits = found
		}
	}

	answer, err := s.assistant.AskAbout(r.Context(), req.Question, search.ConcatContent(hits))
	if err != nil {
		s.logger.Error("ask failed", "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, askResponse{Answer: answer, Sources: len(hits)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
