// Package session owns the game session data model and the orchestration of
// quarter closes across all companies in a session.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finsim/internal/sim"
)

const FinalQuarter = 4

// Default starting balance sheet for a freshly created company.
const (
	DefaultStartingCash      = 50_000.0
	DefaultStartingInventory = 1_000.0
	DefaultStartingEquity    = 50_000.0
)

var (
	ErrNotFound         = errors.New("session not found")
	ErrCompanyNotFound  = errors.New("company not found")
	ErrNoCompanies      = errors.New("session needs at least one company")
	ErrNoActiveQuestion = errors.New("no active question")
	ErrUnknownOption    = errors.New("unknown option")
	ErrSessionFinished  = errors.New("session already finished")
	ErrQuarterClosed    = errors.New("quarter already closed")
)

// Status is the session lifecycle state. Transitions run strictly
// Lobby -> Q1 -> Q2 -> Q3 -> Q4 -> Finished; Finished is terminal.
type Status string

const (
	StatusLobby    Status = "Lobby"
	StatusQ1       Status = "Q1"
	StatusQ2       Status = "Q2"
	StatusQ3       Status = "Q3"
	StatusQ4       Status = "Q4"
	StatusFinished Status = "Finished"
)

// StatusForQuarter maps an in-progress quarter number to its status.
func StatusForQuarter(quarter int) Status {
	switch quarter {
	case 1, 2, 3, 4:
		return Status(fmt.Sprintf("Q%d", quarter))
	default:
		return StatusLobby
	}
}

// Session is the shared document all request handlers operate on. Status and
// CurrentQuarter move together: Q{n} means quarter n is in progress; after
// the final close CurrentQuarter stays at FinalQuarter with status Finished.
type Session struct {
	ID             string              `json:"id"`
	JoinCode       string              `json:"join_code"`
	Status         Status              `json:"status"`
	CurrentQuarter int                 `json:"current_quarter"`
	LastUpdate     time.Time           `json:"last_update"`
	Companies      map[string]*Company `json:"companies"`
}

// Company is one participant. Financials index 0 is the seeded state and the
// sequence only ever grows; Decisions are mutable until the quarter closes.
type Company struct {
	ID               string              `json:"id"`
	Name             string              `json:"name"`
	Financials       []sim.QuarterResult `json:"financials"`
	Decisions        sim.Decisions       `json:"decisions"`
	ActiveQuestionID string              `json:"active_question_id,omitempty"`
	SelectedOptionID string              `json:"selected_option_id,omitempty"`
	QuestionHistory  []string            `json:"question_history,omitempty"`
}

// Latest is the company's most recent quarterly result.
func (c *Company) Latest() sim.QuarterResult {
	return c.Financials[len(c.Financials)-1]
}

func (c *Company) Clone() *Company {
	out := *c
	out.Financials = make([]sim.QuarterResult, len(c.Financials))
	for i, r := range c.Financials {
		if r.CurrentRatio != nil {
			ratio := *r.CurrentRatio
			r.CurrentRatio = &ratio
		}
		out.Financials[i] = r
	}
	out.QuestionHistory = append([]string(nil), c.QuestionHistory...)
	return &out
}

// Clone deep-copies the session so callers never share mutable state with
// the store.
func (s *Session) Clone() *Session {
	out := *s
	out.Companies = make(map[string]*Company, len(s.Companies))
	for id, c := range s.Companies {
		out.Companies[id] = c.Clone()
	}
	return &out
}

// Store is the durable session repository contract. Both operations are
// atomic at document granularity, which is what makes the orchestrator's
// read-modify-write close safe.
type Store interface {
	GetByID(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
}

// Lister is implemented by stores that can enumerate sessions; the deadline
// worker needs it, the core orchestration does not.
type Lister interface {
	ListIDs(ctx context.Context) ([]string, error)
}
