package services

import (
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pocketbase/pocketbase/core"

	"github.com/sprintdeck/estimation/internal/models"
	"github.com/sprintdeck/estimation/internal/security"
)

// SessionManager owns the estimation session lifecycle: creation, voting,
// reveal, round progression and finalization. All persistent state lives in
// the database; the manager adds the per-session serialization the protocol
// needs on top of it.
//
// Locking: lifecycle transitions (reveal, new round, finalize) take the
// session's write lock. CastVote takes the read lock, so voters do not queue
// behind each other but can never interleave with a committing reveal —
// once reveal holds the write lock, late votes observe is_revealed and fail.
type SessionManager struct {
	app        core.App
	catalog    *SequenceCatalog
	ledger     *VoteLedger
	authorizer *RoleAuthorizer
	backlog    *BacklogService
	locks      *sessionLocks
}

func NewSessionManager(app core.App) *SessionManager {
	return &SessionManager{
		app:        app,
		catalog:    NewSequenceCatalog(),
		ledger:     NewVoteLedger(app),
		authorizer: NewRoleAuthorizer(app),
		backlog:    NewBacklogService(app),
		locks:      newSessionLocks(),
	}
}

// Catalog exposes the manager's sequence catalog to handlers.
func (m *SessionManager) Catalog() *SequenceCatalog { return m.catalog }

// Ledger exposes the vote ledger for read projections.
func (m *SessionManager) Ledger() *VoteLedger { return m.ledger }

// Authorizer exposes the capability predicate.
func (m *SessionManager) Authorizer() *RoleAuthorizer { return m.authorizer }

type CreateSessionParams struct {
	ProjectID    string
	StoryID      string
	Name         string
	Method       models.EstimationMethod
	CustomValues []string
	ModeratorID  string
}

// CreateSession opens a new session on a backlog story. The session starts
// ACTIVE with round 1 open and votes hidden.
func (m *SessionManager) CreateSession(params CreateSessionParams) (*models.EstimationSession, error) {
	name, err := security.ValidateSessionName(params.Name)
	if err != nil {
		return nil, models.WrapError(models.KindInvalidArgument, err.Error(), err)
	}

	ok, err := m.authorizer.CanCreateSession(params.ModeratorID, params.ProjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, models.NewError(models.KindForbidden, "only product owners, scrum masters or the project owner can create estimation sessions")
	}

	if err := m.backlog.EnsureEstimable(params.StoryID); err != nil {
		return nil, err
	}

	sequence, err := m.catalog.SequenceFor(params.Method, params.CustomValues)
	if err != nil {
		return nil, err
	}

	collection, err := m.app.FindCollectionByNameOrId("sessions")
	if err != nil {
		return nil, fmt.Errorf("failed to find sessions collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("project_id", params.ProjectID)
	record.Set("story_id", params.StoryID)
	record.Set("name", name)
	record.Set("method", string(params.Method))
	record.Set("sequence", sequence)
	record.Set("status", string(models.StatusActive))
	record.Set("current_round", 1)
	record.Set("is_revealed", false)
	record.Set("moderator_id", params.ModeratorID)
	record.Set("share_token", uuid.New().String())
	record.Set("last_activity", time.Now())

	err = m.app.RunInTransaction(func(txApp core.App) error {
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("failed to save session record: %w", err)
		}
		return m.createRoundAudit(txApp, record.Id, 1, "")
	})
	if err != nil {
		return nil, err
	}

	return models.SessionFromRecord(record), nil
}

// GetSession retrieves a session by id.
func (m *SessionManager) GetSession(sessionID string) (*models.EstimationSession, error) {
	record, err := m.findSession(m.app, sessionID)
	if err != nil {
		return nil, err
	}
	return models.SessionFromRecord(record), nil
}

// CastVote records a voter's card for the given round. At most one vote per
// voter per round; votes are rejected once the round is revealed.
func (m *SessionManager) CastVote(sessionID, voterID string, round int, value, justification string) (*models.EstimationSession, error) {
	lock := m.locks.get(sessionID)
	lock.RLock()
	defer lock.RUnlock()

	record, err := m.findSession(m.app, sessionID)
	if err != nil {
		return nil, err
	}
	session := models.SessionFromRecord(record)

	if session.IsClosed() {
		return nil, models.NewError(models.KindSessionClosed, "session is closed")
	}
	if !session.IsActive() {
		return nil, models.NewError(models.KindInvalidTransition, "session is not accepting votes")
	}
	if round != session.CurrentRound {
		return nil, models.NewFieldError(models.KindStaleState, "roundNumber",
			fmt.Sprintf("round %d is not the current round (%d)", round, session.CurrentRound))
	}
	if !session.CanAcceptVotes() {
		return nil, models.NewError(models.KindRoundAlreadyRevealed, "votes for this round have been revealed")
	}
	if !session.SequenceContains(value) {
		return nil, models.NewFieldError(models.KindInvalidCardValue, "value",
			"'"+value+"' is not in this session's card sequence")
	}

	if _, err := m.ledger.Put(sessionID, round, voterID, value, justification); err != nil {
		return nil, err
	}

	m.touch(record)
	return models.SessionFromRecord(record), nil
}

// Reveal exposes the current round's votes. Moderator only. Revealing an
// already-revealed current round is a no-op returning the revealed state, so
// a retried request cannot fail spuriously.
func (m *SessionManager) Reveal(sessionID, actorID string, round int) (*models.EstimationSession, error) {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	record, err := m.findSession(m.app, sessionID)
	if err != nil {
		return nil, err
	}
	session := models.SessionFromRecord(record)

	if session.IsClosed() {
		return nil, models.NewError(models.KindSessionClosed, "session is closed")
	}
	if err := m.requireModerator(actorID, session); err != nil {
		return nil, err
	}
	if round != session.CurrentRound {
		return nil, models.NewFieldError(models.KindStaleState, "roundNumber",
			fmt.Sprintf("round %d is not the current round (%d)", round, session.CurrentRound))
	}
	if !session.CanReveal() {
		return session, nil
	}

	record.Set("is_revealed", true)
	record.Set("last_activity", time.Now())
	if err := m.app.Save(record); err != nil {
		return nil, fmt.Errorf("failed to reveal votes: %w", err)
	}

	return models.SessionFromRecord(record), nil
}

// StartNewRound opens the next voting round. Moderator only, requires the
// current round to be revealed. newRound is the round number the caller
// expects to open; a mismatch means the caller lost a race and gets
// STALE_STATE instead of a silent double-increment.
func (m *SessionManager) StartNewRound(sessionID, actorID string, newRound int, reason string) (*models.EstimationSession, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, models.NewFieldError(models.KindInvalidArgument, "reason", "a reason for the new round is required")
	}
	if err := security.ValidateReason(reason); err != nil {
		return nil, models.WrapError(models.KindInvalidArgument, err.Error(), err)
	}

	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	record, err := m.findSession(m.app, sessionID)
	if err != nil {
		return nil, err
	}
	session := models.SessionFromRecord(record)

	if session.IsClosed() {
		return nil, models.NewError(models.KindSessionClosed, "session is closed")
	}
	if err := m.requireModerator(actorID, session); err != nil {
		return nil, err
	}
	if !session.CanAdvance() {
		return nil, models.NewError(models.KindInvalidTransition, "current round must be revealed before starting a new one")
	}
	if newRound != session.CurrentRound+1 {
		return nil, models.NewFieldError(models.KindStaleState, "newRoundNumber",
			fmt.Sprintf("expected round %d, session is on round %d", newRound, session.CurrentRound))
	}

	record.Set("current_round", newRound)
	record.Set("is_revealed", false)
	record.Set("last_activity", time.Now())

	err = m.app.RunInTransaction(func(txApp core.App) error {
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("failed to advance round: %w", err)
		}
		return m.createRoundAudit(txApp, sessionID, newRound, reason)
	})
	if err != nil {
		return nil, err
	}

	return models.SessionFromRecord(record), nil
}

// Finalize commits the chosen estimate, closes the session and writes the
// estimate back onto the backlog story in the same transaction. Terminal:
// there is no reopen.
func (m *SessionManager) Finalize(sessionID, actorID, finalEstimation string, estimateHours float64, notes string) (*models.EstimationSession, error) {
	lock := m.locks.get(sessionID)
	lock.Lock()
	defer lock.Unlock()

	record, err := m.findSession(m.app, sessionID)
	if err != nil {
		return nil, err
	}
	session := models.SessionFromRecord(record)

	if session.IsClosed() {
		return nil, models.NewError(models.KindSessionClosed, "session is already closed")
	}
	if err := m.requireModerator(actorID, session); err != nil {
		return nil, err
	}
	if !session.CanFinalize() {
		return nil, models.NewError(models.KindInvalidTransition, "current round must be revealed before finalizing")
	}
	if !session.SequenceContains(finalEstimation) {
		return nil, models.NewFieldError(models.KindInvalidCardValue, "finalEstimation",
			"'"+finalEstimation+"' is not in this session's card sequence")
	}
	if estimateHours <= 0 {
		return nil, models.NewFieldError(models.KindInvalidArgument, "estimateHours", "estimate hours must be a positive number")
	}

	record.Set("status", string(models.StatusClosed))
	record.Set("final_estimation", finalEstimation)
	record.Set("estimate_hours", estimateHours)
	record.Set("notes", notes)
	record.Set("last_activity", time.Now())

	err = m.app.RunInTransaction(func(txApp core.App) error {
		if err := txApp.Save(record); err != nil {
			return fmt.Errorf("failed to close session: %w", err)
		}
		return m.backlog.CommitEstimate(txApp, session.StoryID, finalEstimation, estimateHours)
	})
	if err != nil {
		return nil, err
	}

	return models.SessionFromRecord(record), nil
}

func (m *SessionManager) findSession(app core.App, sessionID string) (*core.Record, error) {
	record, err := app.FindRecordById("sessions", sessionID)
	if err != nil {
		return nil, models.WrapError(models.KindNotFound, "session not found", err)
	}
	return record, nil
}

func (m *SessionManager) requireModerator(actorID string, session *models.EstimationSession) error {
	ok, err := m.authorizer.CanModerate(actorID, session)
	if err != nil {
		return err
	}
	if !ok {
		return models.NewError(models.KindForbidden, "only the session moderator can perform this action")
	}
	return nil
}

func (m *SessionManager) createRoundAudit(app core.App, sessionID string, roundNumber int, reason string) error {
	collection, err := app.FindCollectionByNameOrId("session_rounds")
	if err != nil {
		return fmt.Errorf("failed to find session_rounds collection: %w", err)
	}

	record := core.NewRecord(collection)
	record.Set("session_id", sessionID)
	record.Set("round_number", roundNumber)
	record.Set("reason", reason)
	record.Set("started_at", time.Now())

	if err := app.Save(record); err != nil {
		return fmt.Errorf("failed to save round audit: %w", err)
	}
	return nil
}

// touch bumps last_activity. Best effort: activity tracking never fails an
// operation that already succeeded.
func (m *SessionManager) touch(record *core.Record) {
	record.Set("last_activity", time.Now())
	if err := m.app.Save(record); err != nil {
		log.Printf("failed to update session activity (session=%s): %v", record.Id, err)
	}
}

// sessionLocks hands out one RWMutex per session id.
type sessionLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.RWMutex
}

func newSessionLocks() *sessionLocks {
	return &sessionLocks{locks: make(map[string]*sync.RWMutex)}
}

func (s *sessionLocks) get(id string) *sync.RWMutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lock, ok := s.locks[id]; ok {
		return lock
	}
	lock := &sync.RWMutex{}
	s.locks[id] = lock
	return lock
}
