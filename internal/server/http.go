package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/edo9300/ygopen/internal/duel"
	"github.com/edo9300/ygopen/internal/repository"
)

// RouterConfig carries the dependencies of the HTTP API. Replays is the
// optional Postgres store; nil disables the archive endpoints.
type RouterConfig struct {
	Manager     *duel.Manager
	Recorder    *duel.ReplayRecorder
	Replays     *repository.ReplayRepository
	AutoRecord  bool
	CORSOrigins []string
	Logger      *zap.Logger
}

// NewRouter builds the board-view API. Routes:
//
//	POST /api/duels                     create an observed duel
//	GET  /api/duels                     list duel IDs
//	GET  /api/duels/{id}                snapshot of the current state
//	POST /api/duels/{id}/seed           seed piles and life points
//	POST /api/duels/{id}/messages       append a message envelope
//	POST /api/duels/{id}/forward        step forward (?steps=n)
//	POST /api/duels/{id}/backward       step backward (?steps=n)
//	POST /api/duels/{id}/save           save the recorded replay to disk
//	GET  /metrics                       Prometheus metrics
//	GET  /healthz                       liveness probe
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &apiServer{
		manager:    cfg.Manager,
		recorder:   cfg.Recorder,
		replays:    cfg.Replays,
		autoRecord: cfg.AutoRecord,
		logger:     logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	origins := cfg.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "DELETE"},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Route("/api/duels", func(r chi.Router) {
		r.Post("/", s.createDuel)
		r.Get("/", s.listDuels)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getDuel)
			r.Delete("/", s.deleteDuel)
			r.Post("/seed", s.seedDuel)
			r.Post("/messages", s.appendMessage)
			r.Post("/forward", s.stepForward)
			r.Post("/backward", s.stepBackward)
			r.Post("/save", s.saveReplay)
			r.Post("/archive", s.archiveReplay)
		})
	})
	r.Route("/api/replays", func(r chi.Router) {
		r.Get("/", s.listReplays)
		r.Post("/{id}/restore", s.restoreReplay)
		r.Delete("/{id}", s.deleteReplay)
	})
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return r
}

type apiServer struct {
	manager    *duel.Manager
	recorder   *duel.ReplayRecorder
	replays    *repository.ReplayRepository
	autoRecord bool
	logger     *zap.Logger
}

func (s *apiServer) createDuel(w http.ResponseWriter, _ *http.Request) {
	observed := s.manager.Create()
	if s.recorder != nil && s.autoRecord {
		s.recorder.StartRecording(observed.ID)
	}
	duelsActive.Set(float64(s.manager.Count()))
	writeJSON(w, http.StatusCreated, map[string]string{"duel_id": observed.ID})
}

func (s *apiServer) listDuels(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"duels": s.manager.IDs()})
}

func (s *apiServer) getDuel(w http.ResponseWriter, r *http.Request) {
	observed, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	writeJSON(w, http.StatusOK, observed.View())
}

func (s *apiServer) deleteDuel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.manager.Get(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	s.manager.Remove(id)
	if s.recorder != nil {
		s.recorder.Clear(id)
	}
	duelsActive.Set(float64(s.manager.Count()))
	w.WriteHeader(http.StatusNoContent)
}

// seedRequest prepares a board before the first forward step.
type seedRequest struct {
	Piles []struct {
		Controller uint8         `json:"controller"`
		Location   duel.Location `json:"location"`
		Count      int           `json:"count"`
	} `json:"piles"`
	LP []uint32 `json:"lp"`
}

func (s *apiServer) seedDuel(w http.ResponseWriter, r *http.Request) {
	observed, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	var req seedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err = observed.Seed(func(b *duel.Board) error {
		for _, pile := range req.Piles {
			if err := b.FillPile(pile.Controller, pile.Location, pile.Count); err != nil {
				return err
			}
		}
		for player, lp := range req.LP {
			if err := b.SetLP(uint8(player), lp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, observed.View())
}

func (s *apiServer) appendMessage(w http.ResponseWriter, r *http.Request) {
	observed, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	raw, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	msg, err := duel.DecodeMessage(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	observed.Append(msg)
	if s.recorder != nil {
		s.recorder.Record(observed.ID, msg)
	}
	recordIngest(duel.Critical(msg))
	writeJSON(w, http.StatusAccepted, map[string]any{
		"total_states": observed.View().TotalStates,
	})
}

func (s *apiServer) stepForward(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, true)
}

func (s *apiServer) stepBackward(w http.ResponseWriter, r *http.Request) {
	s.step(w, r, false)
}

func (s *apiServer) step(w http.ResponseWriter, r *http.Request, forward bool) {
	observed, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	steps := 1
	if raw := r.URL.Query().Get("steps"); raw != "" {
		steps, err = strconv.Atoi(raw)
		if err != nil || steps < 1 {
			writeError(w, http.StatusBadRequest, errors.New("steps must be a positive integer"))
			return
		}
	}
	var taken int
	var stepErr error
	if forward {
		taken, stepErr = observed.Forward(steps)
		stepsTotal.WithLabelValues("forward").Add(float64(taken))
	} else {
		taken, stepErr = observed.Backward(steps)
		stepsTotal.WithLabelValues("backward").Add(float64(taken))
	}
	if stepErr != nil {
		// A failed step means the feed and the board no longer agree; the
		// session is faulted and the caller is expected to discard it.
		stepFailures.Inc()
		s.logger.Error("step failed",
			zap.String("duel_id", observed.ID),
			zap.Bool("forward", forward),
			zap.Error(stepErr),
		)
		writeError(w, http.StatusConflict, stepErr)
		return
	}
	view := observed.View()
	writeJSON(w, http.StatusOK, map[string]any{
		"steps_taken": taken,
		"view":        view,
	})
}

func (s *apiServer) saveReplay(w http.ResponseWriter, r *http.Request) {
	if s.recorder == nil {
		writeError(w, http.StatusNotImplemented, errors.New("replay recording disabled"))
		return
	}
	id := chi.URLParam(r, "id")
	if err := s.recorder.Save(id); err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) archiveReplay(w http.ResponseWriter, r *http.Request) {
	if s.replays == nil {
		writeError(w, http.StatusNotImplemented, errors.New("replay store disabled"))
		return
	}
	observed, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	if err := s.replays.Save(r.Context(), observed.ID, observed.Messages()); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *apiServer) listReplays(w http.ResponseWriter, r *http.Request) {
	if s.replays == nil {
		writeError(w, http.StatusNotImplemented, errors.New("replay store disabled"))
		return
	}
	summaries, err := s.replays.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"replays": summaries})
}

func (s *apiServer) restoreReplay(w http.ResponseWriter, r *http.Request) {
	if s.replays == nil {
		writeError(w, http.StatusNotImplemented, errors.New("replay store disabled"))
		return
	}
	msgs, err := s.replays.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	observed := s.manager.CreateFromLog(msgs)
	duelsActive.Set(float64(s.manager.Count()))
	writeJSON(w, http.StatusCreated, map[string]any{
		"duel_id":      observed.ID,
		"total_states": len(msgs),
	})
}

func (s *apiServer) deleteReplay(w http.ResponseWriter, r *http.Request) {
	if s.replays == nil {
		writeError(w, http.StatusNotImplemented, errors.New("replay store disabled"))
		return
	}
	if err := s.replays.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
