package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"finsim/internal/questions"
	"finsim/internal/session"
	"finsim/internal/sim"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"
)

type Server struct {
	log      *slog.Logger
	sessions *session.Service
	bank     *questions.Bank
	mux      *chi.Mux
}

func New(logger *slog.Logger, sessions *session.Service, bank *questions.Bank) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		log:      logger,
		sessions: sessions,
		bank:     bank,
		mux:      chi.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.AllowAll().Handler)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Get("/questions/{id}", s.handleGetQuestion)
		r.Post("/sessions/{id}/decisions", s.handleSubmitDecisions)
		r.Post("/sessions/{id}/answer", s.handleSubmitAnswer)
		r.Post("/sessions/{id}/close", s.handleCloseQuarter)
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CompanyNames      []string `json:"company_names"`
		StartingCash      *float64 `json:"starting_cash"`
		StartingInventory *float64 `json:"starting_inventory"`
		StartingEquity    *float64 `json:"starting_equity"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	input := session.CreateSessionInput{CompanyNames: in.CompanyNames}
	if in.StartingCash != nil || in.StartingInventory != nil || in.StartingEquity != nil {
		seed := session.SeedState{
			Cash:      session.DefaultStartingCash,
			Inventory: session.DefaultStartingInventory,
			Equity:    session.DefaultStartingEquity,
		}
		if in.StartingCash != nil {
			seed.Cash = *in.StartingCash
		}
		if in.StartingInventory != nil {
			seed.Inventory = *in.StartingInventory
		}
		if in.StartingEquity != nil {
			seed.Equity = *in.StartingEquity
		}
		input.Seed = &seed
	}

	sess, err := s.sessions.CreateSession(r.Context(), input)
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.sessions.GetSession(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetQuestion(w http.ResponseWriter, r *http.Request) {
	question, ok := s.bank.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "question not found")
		return
	}
	writeJSON(w, http.StatusOK, question)
}

func (s *Server) handleSubmitDecisions(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CompanyID  string  `json:"company_id"`
		Quarter    int     `json:"quarter"`
		Production float64 `json:"production"`
		Price      float64 `json:"price"`
		Marketing  float64 `json:"marketing"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	err := s.sessions.RecordDecision(r.Context(), chi.URLParam(r, "id"), in.CompanyID, in.Quarter, sim.Decisions{
		Production: in.Production,
		Price:      in.Price,
		Marketing:  in.Marketing,
	})
	if err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var in struct {
		CompanyID string `json:"company_id"`
		Quarter   int    `json:"quarter"`
		OptionID  string `json:"option_id"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := s.sessions.RecordAnswer(r.Context(), chi.URLParam(r, "id"), in.CompanyID, in.Quarter, in.OptionID); err != nil {
		s.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCloseQuarter(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Quarter int `json:"quarter"`
	}
	if err := decodeJSON(r, &in); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	sessionID := chi.URLParam(r, "id")
	sess, err := s.sessions.CloseQuarter(r.Context(), sessionID, in.Quarter)
	switch {
	case err == nil:
		// New quarter underway: hand out the next round of questions.
		if sess.Status != session.StatusFinished {
			if assigned, err := s.sessions.AssignQuarterQuestions(r.Context(), sessionID); err == nil {
				sess = assigned
			}
		}
		writeJSON(w, http.StatusOK, sess)
	case errors.Is(err, session.ErrQuarterClosed), errors.Is(err, session.ErrSessionFinished):
		// Redundant close: report the already-advanced state as a no-op.
		writeJSON(w, http.StatusOK, sess)
	default:
		s.writeDomainError(w, err)
	}
}

func (s *Server) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, sim.ErrInvalidDecision),
		errors.Is(err, session.ErrNoCompanies),
		errors.Is(err, session.ErrNoActiveQuestion),
		errors.Is(err, session.ErrUnknownOption),
		errors.Is(err, session.ErrQuarterClosed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound), errors.Is(err, session.ErrCompanyNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrSessionFinished):
		writeError(w, http.StatusConflict, err.Error())
	default:
		s.log.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeJSON(r *http.Request, out any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(out)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": strings.TrimSpace(message)})
}
