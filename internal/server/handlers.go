package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lox/twentyone/internal/game"
	"github.com/lox/twentyone/internal/protocol"
	"github.com/lox/twentyone/internal/session"
)

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(s.logRequests)

	r.Get("/health", s.handleHealth)

	r.Route("/api/games", func(r chi.Router) {
		r.Post("/", s.handleNewGame)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetState)
			r.Delete("/", s.handleDeleteGame)
			r.Post("/bet", s.handleBet)
			r.Post("/deal", s.handleAction("deal"))
			r.Post("/hit", s.handleAction("hit"))
			r.Post("/stand", s.handleAction("stand"))
			r.Post("/double", s.handleAction("double"))
			r.Post("/split", s.handleAction("split"))
			r.Post("/surrender", s.handleAction("surrender"))
			r.Post("/insurance", s.handleInsurance)
			r.Post("/auto/start", s.handleAutoStart)
			r.Post("/auto/stop", s.handleAction("auto_stop"))
		})
	})

	r.Get("/ws/games/{id}", s.handleWebSocket)

	return r
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("Request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

type betRequest struct {
	Amount int `json:"amount"`
}

type insuranceRequest struct {
	Take bool `json:"take"`
}

type autoStartRequest struct {
	Bet             int    `json:"bet"`
	Hands           int    `json:"hands"`
	InsurancePolicy string `json:"insurancePolicy"`
}

func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	id, snap, err := s.sessions.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.logger.Info("Game created", "game_id", id)
	writeJSON(w, http.StatusCreated, protocol.StateData{GameID: id, Snapshot: snap})
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	snap, err := s.sessions.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.StateData{GameID: id, Snapshot: snap})
}

func (s *Server) handleDeleteGame(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.sessions.Get(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.sessions.Delete(r.Context(), id); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleAction builds a handler for actions that carry no request body
func (s *Server) handleAction(action string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respondAction(w, r, protocol.ActionData{Action: action})
	}
}

func (s *Server) handleBet(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	s.respondAction(w, r, protocol.ActionData{Action: "bet", Amount: req.Amount})
}

func (s *Server) handleInsurance(w http.ResponseWriter, r *http.Request) {
	var req insuranceRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	s.respondAction(w, r, protocol.ActionData{Action: "insurance", Take: req.Take})
}

func (s *Server) handleAutoStart(w http.ResponseWriter, r *http.Request) {
	var req autoStartRequest
	if err := decodeBody(r, &req); err != nil {
		s.writeBadRequest(w, err.Error())
		return
	}
	s.respondAction(w, r, protocol.ActionData{
		Action: "auto_start",
		Amount: req.Bet,
		Hands:  req.Hands,
		Policy: req.InsurancePolicy,
	})
}

func (s *Server) respondAction(w http.ResponseWriter, r *http.Request, data protocol.ActionData) {
	id := chi.URLParam(r, "id")
	snap, err := s.applyAction(r.Context(), id, data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, protocol.StateData{GameID: id, Snapshot: snap})
}

// applyAction dispatches a wire action to the session manager. The
// same table runs both the REST routes and socket action messages.
func (s *Server) applyAction(ctx context.Context, id string, data protocol.ActionData) (game.Snapshot, error) {
	switch data.Action {
	case "bet":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.PlaceBet(data.Amount) })
	case "deal":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.Deal() })
	case "hit":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.Hit() })
	case "stand":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.Stand() })
	case "double":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.Double() })
	case "split":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.Split() })
	case "surrender":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.Surrender() })
	case "insurance":
		return s.sessions.Do(ctx, id, func(t *game.Table) error { return t.Insurance(data.Take) })
	case "auto_start":
		policyName := data.Policy
		if policyName == "" {
			policyName = "never"
		}
		policy, err := game.ParseInsurancePolicy(policyName)
		if err != nil {
			return game.Snapshot{}, err
		}
		return s.sessions.StartAuto(ctx, id, data.Amount, data.Hands, policy)
	case "auto_stop":
		return s.sessions.StopAuto(ctx, id)
	default:
		return game.Snapshot{}, fmt.Errorf("%w: unknown action %q", game.ErrIllegalAction, data.Action)
	}
}

// decodeBody reads a JSON request body, tolerating an empty body
func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %v", err)
	}
	return nil
}

// statusForError maps engine and session errors onto HTTP statuses
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, game.ErrInsufficientBankroll):
		return http.StatusConflict, "insufficient_bankroll"
	case errors.Is(err, game.ErrInvalidBet):
		return http.StatusBadRequest, "invalid_bet"
	case errors.Is(err, game.ErrNoActiveHand):
		return http.StatusBadRequest, "no_active_hand"
	case errors.Is(err, game.ErrIllegalAction):
		return http.StatusBadRequest, "illegal_action"
	case errors.Is(err, game.ErrCorruptState):
		return http.StatusInternalServerError, "corrupt_state"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "code", code, "error", err)
	}
	writeJSON(w, status, protocol.ErrorData{Code: code, Message: err.Error()})
}

func (s *Server) writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, protocol.ErrorData{Code: "invalid_request", Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
