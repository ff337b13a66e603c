// Package server exposes the operator review API: article audit fields,
// source fetch state, and the management operations that feed the training
// log. The full admin UI and its authentication live elsewhere.
package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/rowanhart/localwire/internal/aggregator"
	"github.com/rowanhart/localwire/internal/scheduler"
	"github.com/rowanhart/localwire/internal/store"
	"github.com/rowanhart/localwire/pkg/classify"
	"github.com/rowanhart/localwire/pkg/pubstate"
)

// Server provides the review HTTP API.
type Server struct {
	store   store.Store
	agg     *aggregator.Aggregator
	tracker *pubstate.Tracker
	breaker *scheduler.Breaker
	locale  string
	port    int
	log     *slog.Logger
}

// New creates the review server.
func New(s store.Store, agg *aggregator.Aggregator, tracker *pubstate.Tracker, breaker *scheduler.Breaker, locale string, port int, log *slog.Logger) *Server {
	if port == 0 {
		port = 8080
	}
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		store:   s,
		agg:     agg,
		tracker: tracker,
		breaker: breaker,
		locale:  locale,
		port:    port,
		log:     log,
	}
}

// Handler returns the routed API handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /api/v1/articles", s.handleArticles)
	mux.HandleFunc("GET /api/v1/sources", s.handleSources)
	mux.HandleFunc("POST /api/v1/aggregate", s.handleAggregate)
	mux.HandleFunc("POST /api/v1/articles/{id}/reject", s.handleReject)
	mux.HandleFunc("POST /api/v1/articles/{id}/restore", s.handleRestore)
	mux.HandleFunc("POST /api/v1/articles/{id}/feature", s.handleFlag("feature"))
	mux.HandleFunc("POST /api/v1/articles/{id}/unfeature", s.handleFlag("unfeature"))
	mux.HandleFunc("POST /api/v1/articles/{id}/topstory", s.handleFlag("topstory"))
	mux.HandleFunc("POST /api/v1/articles/{id}/stellar", s.handleFlag("stellar"))
	mux.HandleFunc("POST /api/v1/articles/{id}/unstellar", s.handleFlag("unstellar"))
	mux.HandleFunc("POST /api/v1/articles/{id}/category", s.handleCategory)
	return mux
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.log.Info("review api listening", "addr", addr)
	return http.ListenAndServe(addr, s.Handler())
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleArticles(w http.ResponseWriter, r *http.Request) {
	filter := store.ArticleFilter{Limit: 100}

	if category := r.URL.Query().Get("category"); category != "" {
		filter.Category = category
	}
	if v := r.URL.Query().Get("rejected"); v != "" {
		rejected := v == "true" || v == "1"
		filter.Rejected = &rejected
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err := strconv.Atoi(v); err == nil {
			filter.Limit = limit
		}
	}

	articles, err := s.store.ListArticles(r.Context(), filter)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  articles,
		"count": len(articles),
	})
}

func (s *Server) handleSources(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ListSources(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	breakers := s.breaker.Snapshot()

	type sourceInfo struct {
		ID            string                  `json:"id"`
		Name          string                  `json:"name"`
		Mode          string                  `json:"mode"`
		Enabled       bool                    `json:"enabled"`
		LastFetch     string                  `json:"last_fetch"`
		LastArticles  int                     `json:"last_articles"`
		LastError     string                  `json:"last_error,omitempty"`
		LastErrorCode int                     `json:"last_error_code,omitempty"`
		Breaker       *scheduler.BreakerState `json:"breaker,omitempty"`
	}

	infos := make([]sourceInfo, 0, len(rows))
	for _, row := range rows {
		info := sourceInfo{
			ID:            row.ID,
			Name:          row.Name,
			Mode:          row.Mode,
			Enabled:       row.Enabled,
			LastArticles:  row.LastArticleCount,
			LastError:     row.LastError,
			LastErrorCode: row.LastErrorCode,
		}
		if !row.LastFetchTime.IsZero() {
			info.LastFetch = row.LastFetchTime.UTC().Format("2006-01-02T15:04:05Z07:00")
		}
		if bs, ok := breakers[row.ID]; ok {
			info.Breaker = &bs
		}
		infos = append(infos, info)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data":  infos,
		"count": len(infos),
	})
}

func (s *Server) handleAggregate(w http.ResponseWriter, r *http.Request) {
	force := r.URL.Query().Get("force") == "true"

	articles, err := s.agg.Aggregate(r.Context(), force)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"processed": len(articles),
		"force":     force,
	})
}

// handleReject records the operator rejection and appends a negative
// feedback signal carrying the article's matched features.
func (s *Server) handleReject(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}

	// The label is optional, so an empty body is fine; a malformed one is
	// not.
	var body struct {
		Label string `json:"label"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}

	if err := s.tracker.Reject(r.Context(), id, body.Label); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.appendFeedback(r, id, "negative")
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "rejected": true})
}

// handleRestore reverses a rejection and appends a positive signal.
func (s *Server) handleRestore(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}

	if err := s.tracker.Restore(r.Context(), id); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	s.appendFeedback(r, id, "positive")
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "rejected": false})
}

func (s *Server) handleFlag(op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := s.articleID(w, r)
		if !ok {
			return
		}

		var err error
		switch op {
		case "feature":
			err = s.tracker.Feature(r.Context(), id, true)
		case "unfeature":
			err = s.tracker.Feature(r.Context(), id, false)
		case "topstory":
			err = s.tracker.TopStory(r.Context(), id, true)
		case "stellar":
			err = s.tracker.Stellar(r.Context(), id, true)
		case "unstellar":
			err = s.tracker.Stellar(r.Context(), id, false)
		}
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"id": id, "op": op})
	}
}

// handleCategory records an operator category correction as a training
// example for the learned-keyword cascade.
func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := s.articleID(w, r)
	if !ok {
		return
	}

	var body struct {
		Category string `json:"category"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid body"})
		return
	}
	if !classify.Valid(classify.Category(body.Category)) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unknown category"})
		return
	}

	article, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "article not found"})
		return
	}

	sig := &store.TrainingSignal{
		Kind:   store.SignalCorrection,
		Locale: s.locale,
		Label:  body.Category,
		Text:   strings.TrimSpace(article.Title + " " + article.Content),
	}
	if err := s.store.AddTrainingSignal(r.Context(), sig); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"id": id, "category": body.Category})
}

// appendFeedback stores the scoring feedback signal for an operator
// decision. Best effort: a failed append never fails the operation.
func (s *Server) appendFeedback(r *http.Request, id int64, label string) {
	article, err := s.store.GetArticle(r.Context(), id)
	if err != nil {
		s.log.Warn("feedback signal skipped", "article", id, "err", err)
		return
	}
	sig := &store.TrainingSignal{
		Kind:     store.SignalFeedback,
		Locale:   s.locale,
		Label:    label,
		Features: article.MatchedTags,
	}
	if err := s.store.AddTrainingSignal(r.Context(), sig); err != nil {
		s.log.Warn("feedback signal failed", "article", id, "err", err)
	}
}

func (s *Server) articleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid article id"})
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
