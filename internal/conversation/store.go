// Package conversation keeps per-session question/answer history. Sessions
// are plain append-only logs behind a mutex: a session becomes active on its
// first turn and simply stays active; expiry is external policy.
package conversation

import (
	"sync"

	"github.com/dvloznov/finance-assistant/internal/domain"
)

// DefaultMaxTurns bounds how much history one session retains. Oldest turns
// are truncated beyond the cap; the retained suffix stays strictly ordered.
const DefaultMaxTurns = 50

// Store is an in-memory conversation state. Safe for concurrent use. Data is
// lost on restart, which matches the session-scoped retention contract.
type Store struct {
	mu       sync.RWMutex
	maxTurns int
	sessions map[string][]domain.ConversationTurn
}

// NewStore creates a store retaining up to maxTurns turns per session.
func NewStore(maxTurns int) *Store {
	if maxTurns <= 0 {
		maxTurns = DefaultMaxTurns
	}
	return &Store{
		maxTurns: maxTurns,
		sessions: make(map[string][]domain.ConversationTurn),
	}
}

// Append adds one turn to the end of a session's log. Turns are never
// rewritten; out-of-cap history is dropped from the front.
func (s *Store) Append(sessionID string, turn domain.ConversationTurn) {
	turn.SessionID = sessionID

	s.mu.Lock()
	defer s.mu.Unlock()

	log := append(s.sessions[sessionID], turn)
	if len(log) > s.maxTurns {
		// Reallocate so the dropped prefix can be collected.
		trimmed := make([]domain.ConversationTurn, s.maxTurns)
		copy(trimmed, log[len(log)-s.maxTurns:])
		log = trimmed
	}
	s.sessions[sessionID] = log
}

// Recent returns up to maxTurns most recent turns in chronological order.
// The result is a copy; callers cannot mutate stored history.
func (s *Store) Recent(sessionID string, maxTurns int) []domain.ConversationTurn {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.sessions[sessionID]
	if maxTurns > 0 && len(log) > maxTurns {
		log = log[len(log)-maxTurns:]
	}

	out := make([]domain.ConversationTurn, len(log))
	copy(out, log)
	return out
}
