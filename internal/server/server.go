package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ogulcanaydogan/spend-guardian/pkg/engine"
	"github.com/ogulcanaydogan/spend-guardian/pkg/model"
	"github.com/shopspring/decimal"
)

// Server exposes goal progress, limit status and the mutation hooks that
// re-evaluate alerts.
type Server struct {
	engine  *engine.Engine
	trigger func()
	mux     *http.ServeMux
	logger  *slog.Logger
}

// NewServer creates an API server. When trigger is non-nil, POST
// /api/v1/check hands the check to it and returns immediately.
func NewServer(e *engine.Engine, trigger func(), logger *slog.Logger) *Server {
	s := &Server{
		engine:  e,
		trigger: trigger,
		mux:     http.NewServeMux(),
		logger:  logger,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("GET /api/v1/goals", s.handleListGoals)
	s.mux.HandleFunc("POST /api/v1/goals", s.handleCreateGoal)
	s.mux.HandleFunc("POST /api/v1/goals/{id}/complete", s.handleTransition(s.engine.CompleteGoal))
	s.mux.HandleFunc("POST /api/v1/goals/{id}/cancel", s.handleTransition(s.engine.CancelGoal))
	s.mux.HandleFunc("DELETE /api/v1/goals/{id}", s.handleTransition(s.engine.DeleteGoal))
	s.mux.HandleFunc("GET /api/v1/limits", s.handleLimits)
	s.mux.HandleFunc("GET /api/v1/inactivity", s.handleInactivity)
	s.mux.HandleFunc("POST /api/v1/activity", s.handleActivity)
	s.mux.HandleFunc("POST /api/v1/transactions", s.handleTransaction)
	s.mux.HandleFunc("POST /api/v1/check", s.handleCheck)
	s.mux.HandleFunc("POST /api/v1/resolve", s.handleResolve)
}

// Handler returns the HTTP handler for this server.
func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListGoals(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	var state model.GoalState
	if raw := r.URL.Query().Get("state"); raw != "" {
		parsed, err := model.ParseGoalState(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		state = parsed
	}

	reports, err := s.engine.Goals(ctx, state)
	if err != nil {
		s.logger.Error("list goals", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

type createGoalRequest struct {
	Name         string          `json:"name"`
	CategoryID   string          `json:"category_id"`
	TargetAmount decimal.Decimal `json:"target_amount"`
	StartAt      time.Time       `json:"start_at"`
	Deadline     time.Time       `json:"deadline"`
	Note         string          `json:"note"`
}

func (s *Server) handleCreateGoal(w http.ResponseWriter, r *http.Request) {
	var req createGoalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	goal := &model.Goal{
		Name:         req.Name,
		CategoryID:   req.CategoryID,
		TargetAmount: req.TargetAmount,
		StartAt:      req.StartAt,
		Deadline:     req.Deadline,
		Note:         req.Note,
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	dispatched, err := s.engine.OnGoalCreated(ctx, goal)
	if errors.Is(err, model.ErrInvalidGoal) || errors.Is(err, model.ErrInvalidTarget) {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err != nil {
		s.logger.Error("create goal", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"goal": goal, "alerts": dispatched})
}

func (s *Server) handleTransition(fn func(context.Context, string) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		id := r.PathValue("id")
		err := fn(ctx, id)
		switch {
		case err == nil:
			w.WriteHeader(http.StatusNoContent)
		case errors.Is(err, model.ErrGoalNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, model.ErrInvalidTransition):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			s.logger.Error("update goal", "goal", id, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, err := s.engine.LimitStatus(ctx)
	if err != nil {
		s.logger.Error("limit status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleInactivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status, err := s.engine.InactivityStatus(ctx)
	if err != nil {
		s.logger.Error("inactivity status", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	if err := s.engine.RecordActivity(ctx, time.Time{}); err != nil {
		s.logger.Error("record activity", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transactionRequest struct {
	CategoryID string          `json:"category_id"`
	Amount     decimal.Decimal `json:"amount"`
	Kind       string          `json:"kind"`
	Note       string          `json:"note"`
	OccurredAt time.Time       `json:"occurred_at"`
}

func (s *Server) handleTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.CategoryID == "" || !req.Amount.IsPositive() {
		http.Error(w, "category_id and a positive amount are required", http.StatusBadRequest)
		return
	}
	kind := model.TransactionKind(req.Kind)
	switch kind {
	case "", model.KindExpense, model.KindIncome:
	default:
		http.Error(w, "kind must be expense or income", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	txn := &model.Transaction{
		CategoryID: req.CategoryID,
		Amount:     req.Amount,
		Kind:       kind,
		Note:       req.Note,
		OccurredAt: req.OccurredAt,
	}
	res, err := s.engine.OnTransaction(ctx, txn)
	if err != nil {
		s.logger.Error("record transaction", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"transaction": txn, "alerts": res})
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if s.trigger != nil {
		s.trigger()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "queued"})
		return
	}

	res, err := s.engine.Tick(r.Context())
	if err != nil {
		s.logger.Warn("check", "error", err)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleResolve(w http.ResponseWriter, r *http.Request) {
	res, err := s.engine.Resolve(r.Context())
	if err != nil {
		s.logger.Error("resolve", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
