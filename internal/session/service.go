package session

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"finsim/internal/questions"
	"finsim/internal/sim"

	"github.com/google/uuid"
)

// Service orchestrates the session lifecycle: question assignment, decision
// and answer intake, and the atomic quarter close. All mutations for a given
// session run under that session's lock, so a close is a single-writer
// read-modify-write over the whole document.
type Service struct {
	store  Store
	bank   *questions.Bank
	engine *sim.Engine
	log    *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(store Store, bank *questions.Bank, engine *sim.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  store,
		bank:   bank,
		engine: engine,
		log:    logger,
		locks:  make(map[string]*sync.Mutex),
	}
}

func (s *Service) sessionLock(sessionID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	return lock
}

// SeedState overrides the default starting balance sheet for new companies.
type SeedState struct {
	Cash      float64
	Inventory float64
	Equity    float64
}

type CreateSessionInput struct {
	CompanyNames []string
	Seed         *SeedState
}

// CreateSession builds a session with one company per name, seeds each with a
// quarter-0 result, moves straight to Q1, and hands every company its first
// tactical question.
func (s *Service) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	names := make([]string, 0, len(in.CompanyNames))
	for _, name := range in.CompanyNames {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoCompanies
	}

	seed := SeedState{
		Cash:      DefaultStartingCash,
		Inventory: DefaultStartingInventory,
		Equity:    DefaultStartingEquity,
	}
	if in.Seed != nil {
		seed = *in.Seed
	}
	if seed.Cash < 0 || seed.Inventory < 0 || seed.Equity < 0 {
		return nil, fmt.Errorf("%w: starting cash, inventory and equity must be >= 0", sim.ErrInvalidDecision)
	}

	joinCode, err := generateJoinCode()
	if err != nil {
		return nil, err
	}

	sess := &Session{
		ID:             uuid.NewString(),
		JoinCode:       joinCode,
		Status:         StatusQ1,
		CurrentQuarter: 1,
		LastUpdate:     time.Now().UTC(),
		Companies:      make(map[string]*Company, len(names)),
	}
	for _, name := range names {
		id := uniqueCompanyID(sess.Companies, companySlug(name))
		sess.Companies[id] = &Company{
			ID:         id,
			Name:       name,
			Financials: []sim.QuarterResult{sim.InitialResult(seed.Cash, seed.Inventory, seed.Equity)},
		}
	}
	s.assignQuestions(sess)

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("session created", "session_id", sess.ID, "join_code", sess.JoinCode, "companies", len(sess.Companies))
	return sess, nil
}

// GetSession fetches the full session document.
func (s *Service) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	return s.store.GetByID(ctx, sessionID)
}

// AssignQuarterQuestions gives every company without an active question a
// fresh one. Companies already holding a question keep it, so redundant calls
// are harmless.
func (s *Service) AssignQuarterQuestions(ctx context.Context, sessionID string) (*Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusFinished {
		return sess, ErrSessionFinished
	}
	if !s.assignQuestions(sess) {
		return sess, nil
	}
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// assignQuestions mutates the given session, returning whether anything
// changed. Picks avoid each company's question history.
func (s *Service) assignQuestions(sess *Session) bool {
	changed := false
	for _, company := range sess.Companies {
		if company.ActiveQuestionID != "" {
			continue
		}
		q := s.bank.Pick(company.QuestionHistory)
		company.ActiveQuestionID = q.ID
		company.SelectedOptionID = ""
		changed = true
	}
	return changed
}

// RecordDecision overwrites the company's pending decisions wholesale. A
// non-zero quarter guards against racing a close: submissions for a quarter
// that already closed are rejected instead of leaking into the next one.
func (s *Service) RecordDecision(ctx context.Context, sessionID, companyID string, quarter int, d sim.Decisions) error {
	if err := sim.ValidateDecisions(d); err != nil {
		return err
	}

	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, company, err := s.loadCompany(ctx, sessionID, companyID, quarter)
	if err != nil {
		return err
	}
	company.Decisions = d
	return s.store.Save(ctx, sess)
}

// RecordAnswer stores the company's chosen option for its active question.
// The impact is applied exactly once, at close; answering again before then
// just replaces the pending selection.
func (s *Service) RecordAnswer(ctx context.Context, sessionID, companyID string, quarter int, optionID string) error {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, company, err := s.loadCompany(ctx, sessionID, companyID, quarter)
	if err != nil {
		return err
	}
	if company.ActiveQuestionID == "" {
		return ErrNoActiveQuestion
	}
	question, ok := s.bank.Get(company.ActiveQuestionID)
	if !ok {
		return fmt.Errorf("%w: question %s not in catalog", ErrNoActiveQuestion, company.ActiveQuestionID)
	}
	if _, ok := question.Option(optionID); !ok {
		return fmt.Errorf("%w: option %q is not one of question %s's options", ErrUnknownOption, optionID, question.ID)
	}
	company.SelectedOptionID = optionID
	return s.store.Save(ctx, sess)
}

func (s *Service) loadCompany(ctx context.Context, sessionID, companyID string, quarter int) (*Session, *Company, error) {
	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if sess.Status == StatusFinished {
		return nil, nil, ErrSessionFinished
	}
	if quarter > 0 && quarter != sess.CurrentQuarter {
		return nil, nil, fmt.Errorf("%w: quarter %d is no longer in progress", ErrQuarterClosed, quarter)
	}
	company, ok := sess.Companies[companyID]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", ErrCompanyNotFound, companyID)
	}
	return sess, company, nil
}

// CloseQuarter runs the engine once per company and advances the session one
// step, all or nothing: every company is simulated first, and only when all
// succeed is anything written. A non-zero quarter argument collapses racing
// close calls; callers that lose the race get ErrQuarterClosed along with the
// already-advanced session, which they should treat as a no-op.
func (s *Service) CloseQuarter(ctx context.Context, sessionID string, quarter int) (*Session, error) {
	lock := s.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status == StatusFinished {
		return sess, ErrSessionFinished
	}
	if quarter > 0 && quarter != sess.CurrentQuarter {
		return sess, fmt.Errorf("%w: quarter %d was already closed", ErrQuarterClosed, quarter)
	}

	// Simulate everything before touching any company.
	results := make(map[string]sim.QuarterResult, len(sess.Companies))
	for id, company := range sess.Companies {
		decisions := company.Decisions
		if company.SelectedOptionID != "" && company.ActiveQuestionID != "" {
			if question, ok := s.bank.Get(company.ActiveQuestionID); ok {
				if option, ok := question.Option(company.SelectedOptionID); ok {
					decisions = questions.ApplyImpact(decisions, option)
				}
			}
		}
		result, err := s.engine.SimulateQuarter(company.Latest(), decisions)
		if err != nil {
			return nil, fmt.Errorf("company %s: %w", id, err)
		}
		results[id] = result
	}

	for id, company := range sess.Companies {
		company.Financials = append(company.Financials, results[id])
		company.Decisions = sim.Decisions{}
		if company.ActiveQuestionID != "" {
			if n := len(company.QuestionHistory); n == 0 || company.QuestionHistory[n-1] != company.ActiveQuestionID {
				company.QuestionHistory = append(company.QuestionHistory, company.ActiveQuestionID)
			}
		}
		company.ActiveQuestionID = ""
		company.SelectedOptionID = ""
	}

	if sess.CurrentQuarter >= FinalQuarter {
		sess.Status = StatusFinished
	} else {
		sess.CurrentQuarter++
		sess.Status = StatusForQuarter(sess.CurrentQuarter)
	}
	sess.LastUpdate = time.Now().UTC()

	if err := s.store.Save(ctx, sess); err != nil {
		return nil, err
	}
	s.log.Info("quarter closed", "session_id", sess.ID, "status", sess.Status, "current_quarter", sess.CurrentQuarter)
	return sess, nil
}

func generateJoinCode() (string, error) {
	const letters = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	buf := make([]byte, 6)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i := range buf {
		buf[i] = letters[int(buf[i])%len(letters)]
	}
	return string(buf), nil
}

func companySlug(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			out = append(out, r)
		} else {
			out = append(out, '_')
		}
	}
	slug := strings.Trim(string(out), "_")
	if slug == "" {
		return "company"
	}
	return slug
}

func uniqueCompanyID(existing map[string]*Company, slug string) string {
	if _, taken := existing[slug]; !taken {
		return slug
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s_%d", slug, i)
		if _, taken := existing[candidate]; !taken {
			return candidate
		}
	}
}
