// Package api exposes the scraper, enricher, and task surfaces over HTTP.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/playmaker-hq/teamscout/internal/enricher"
	"github.com/playmaker-hq/teamscout/internal/model"
	"github.com/playmaker-hq/teamscout/internal/scraper"
	"github.com/playmaker-hq/teamscout/internal/store"
	"github.com/playmaker-hq/teamscout/internal/task"
)

// sseKeepalive is the interval between SSE comment lines that keep idle
// proxies from closing the stream.
const sseKeepalive = 15 * time.Second

var (
	catalogOnce sync.Once
	catalog     *model.Catalog
	catalogErr  error
)

// Server bundles the registries, orchestrator, and store behind the HTTP API.
type Server struct {
	scrapers  *scraper.Registry
	enrichers *enricher.Registry
	orch      *task.Orchestrator
	store     store.Store

	// baseCtx parents task runs so they outlive the triggering request but
	// stop on server shutdown.
	baseCtx context.Context
}

// New builds the API server. baseCtx bounds the lifetime of background task
// runs.
func New(baseCtx context.Context, scrapers *scraper.Registry, enrichers *enricher.Registry, orch *task.Orchestrator, st store.Store) *Server {
	return &Server{
		scrapers:  scrapers,
		enrichers: enrichers,
		orch:      orch,
		store:     st,
		baseCtx:   baseCtx,
	}
}

// Router returns the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		r.Get("/fields", s.handleFields)

		r.Get("/enrichers", s.handleListEnrichers)
		r.Get("/enrichers/{id}", s.handleGetEnricher)

		r.Get("/scrapers", s.handleListScrapers)
		r.Post("/scrapers/{id}/run", s.handleRunScraper)
		r.Get("/scrapers/{id}/data", s.handleScraperData)

		r.Post("/tasks", s.handleCreateTask)
		r.Get("/tasks", s.handleListTasks)
		r.Get("/tasks/{id}", s.handleGetTask)
		r.Get("/tasks/{id}/diff", s.handleTaskDiff)
		r.Delete("/tasks/{id}", s.handleCancelTask)
		r.Get("/tasks/{id}/events", s.handleTaskEvents)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleFields serves the metric catalog so UI clients can label and group
// dataset columns without hardcoding them.
func (s *Server) handleFields(w http.ResponseWriter, r *http.Request) {
	catalogOnce.Do(func() { catalog, catalogErr = model.LoadCatalog() })
	if catalogErr != nil {
		zap.L().Error("loading metric catalog failed", zap.Error(catalogErr))
		respondError(w, http.StatusInternalServerError, "metric catalog unavailable")
		return
	}
	respondJSON(w, http.StatusOK, catalog)
}

func (s *Server) handleListEnrichers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.enrichers.List())
}

func (s *Server) handleGetEnricher(w http.ResponseWriter, r *http.Request) {
	info, ok := s.enrichers.Describe(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown enricher")
		return
	}
	respondJSON(w, http.StatusOK, info)
}

func (s *Server) handleListScrapers(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, s.scrapers.List())
}

func (s *Server) handleRunScraper(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sc := s.scrapers.Get(id)
	if sc == nil {
		respondError(w, http.StatusNotFound, "unknown scraper")
		return
	}

	teams, result, err := sc.Scrape(r.Context())
	if err != nil {
		zap.L().Error("scrape failed", zap.String("scraper", id), zap.Error(err))
		respondJSON(w, http.StatusBadGateway, result)
		return
	}

	if err := s.store.SaveDataset(r.Context(), id, teams, result.Timestamp); err != nil {
		zap.L().Error("saving dataset failed", zap.String("scraper", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save dataset")
		return
	}

	respondJSON(w, http.StatusOK, result)
}

func (s *Server) handleScraperData(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.scrapers.Has(id) {
		respondError(w, http.StatusNotFound, "unknown scraper")
		return
	}

	ds, err := s.store.LoadDataset(r.Context(), id)
	if err != nil {
		zap.L().Error("loading dataset failed", zap.String("scraper", id), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load dataset")
		return
	}
	if ds == nil {
		respondError(w, http.StatusNotFound, "no dataset; run the scraper first")
		return
	}
	respondJSON(w, http.StatusOK, ds)
}

type createTaskRequest struct {
	ScraperID string   `json:"scraper_id"`
	Enrichers []string `json:"enrichers"`
}

// handleCreateTask validates the request synchronously so callers get a 4xx
// instead of a failed task, then starts the run in the background.
func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	sc := s.scrapers.Get(req.ScraperID)
	if sc == nil {
		respondError(w, http.StatusNotFound, "unknown scraper")
		return
	}
	if len(req.Enrichers) == 0 {
		respondError(w, http.StatusBadRequest, "at least one enricher is required")
		return
	}
	for _, id := range req.Enrichers {
		if !s.enrichers.Has(id) {
			respondError(w, http.StatusBadRequest, "unknown enricher: "+id)
			return
		}
	}

	ds, err := s.store.LoadDataset(r.Context(), req.ScraperID)
	if err != nil {
		zap.L().Error("loading dataset failed", zap.String("scraper", req.ScraperID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load dataset")
		return
	}
	if ds == nil {
		respondError(w, http.StatusConflict, "no dataset for scraper; run it first")
		return
	}

	teams := make([]*model.TeamRow, len(ds.Teams))
	for i := range ds.Teams {
		row := ds.Teams[i]
		teams[i] = &row
	}

	t, err := s.orch.Create(req.ScraperID, sc.Name(), req.Enrichers, len(teams))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.orch.Start(s.baseCtx, t.ID, teams); err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	go s.persistWhenDone(t.ID, req.ScraperID, teams)

	respondJSON(w, http.StatusCreated, t)
}

// persistWhenDone waits for the task to reach a terminal state, then writes
// the enriched dataset and the task history record.
func (s *Server) persistWhenDone(taskID, scraperID string, teams []*model.TeamRow) {
	ch, unsubscribe, err := s.orch.Subscribe(taskID)
	if err != nil {
		return
	}
	defer unsubscribe()

	var final *task.Task
	for t := range ch {
		if t.Status.Terminal() {
			final = t
		}
	}
	if final == nil {
		if t, ok := s.orch.Get(taskID); ok && t.Status.Terminal() {
			final = t
		} else {
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if final.Status == task.StatusCompleted {
		rows := make([]model.TeamRow, len(teams))
		for i, t := range teams {
			rows[i] = *t
		}
		if err := s.store.SaveDataset(ctx, scraperID, rows, time.Now().UTC()); err != nil {
			zap.L().Error("saving enriched dataset failed", zap.String("task", taskID), zap.Error(err))
		}
	}

	rec := store.TaskRecord{
		ID:            final.ID,
		ScraperID:     final.ScraperID,
		Enrichers:     final.EnricherIDs,
		Status:        string(final.Status),
		TeamsTotal:    final.TeamsTotal,
		TeamsEnriched: final.TeamsEnriched,
		Error:         final.Error,
		CreatedAt:     final.CreatedAt,
		FinishedAt:    final.FinishedAt,
	}
	if err := s.store.SaveTask(ctx, rec); err != nil {
		zap.L().Error("saving task record failed", zap.String("task", taskID), zap.Error(err))
	}
}

// taskListResponse carries the task list with aggregate counts so clients can
// show "N active of M" without fetching the unfiltered list.
type taskListResponse struct {
	Active int          `json:"active"`
	Total  int          `json:"total"`
	Tasks  []*task.Task `json:"tasks"`
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	all := s.orch.List()
	active := make([]*task.Task, 0, len(all))
	for _, t := range all {
		if !t.Status.Terminal() {
			active = append(active, t)
		}
	}

	tasks := all
	if r.URL.Query().Get("active") == "true" {
		tasks = active
	}
	if tasks == nil {
		tasks = []*task.Task{}
	}
	respondJSON(w, http.StatusOK, taskListResponse{
		Active: len(active),
		Total:  len(all),
		Tasks:  tasks,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.orch.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown task")
		return
	}
	respondJSON(w, http.StatusOK, t)
}

func (s *Server) handleTaskDiff(w http.ResponseWriter, r *http.Request) {
	t, ok := s.orch.Get(chi.URLParam(r, "id"))
	if !ok {
		respondError(w, http.StatusNotFound, "unknown task")
		return
	}
	if t.Status != task.StatusCompleted {
		respondError(w, http.StatusConflict, "diff is only available for completed tasks")
		return
	}
	respondJSON(w, http.StatusOK, t.Diff)
}

func (s *Server) handleCancelTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, ok := s.orch.Get(id)
	if !ok {
		respondError(w, http.StatusNotFound, "unknown task")
		return
	}
	if !s.orch.Cancel(id) {
		respondError(w, http.StatusConflict, "task already "+string(t.Status))
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "cancelling"})
}

// handleTaskEvents streams task snapshots as server-sent events until the
// task reaches a terminal state or the client disconnects.
func (s *Server) handleTaskEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ch, unsubscribe, err := s.orch.Subscribe(chi.URLParam(r, "id"))
	if err != nil {
		respondError(w, http.StatusNotFound, "unknown task")
		return
	}
	defer unsubscribe()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(sseKeepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case t, open := <-ch:
			if !open {
				return
			}
			data, err := json.Marshal(t)
			if err != nil {
				continue
			}
			w.Write([]byte("data: "))
			w.Write(data)
			w.Write([]byte("\n\n"))
			flusher.Flush()
		}
	}
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encoding response failed", zap.Error(err))
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
