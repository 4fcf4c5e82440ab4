package domain

import (
	"time"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one entry in a session's append-only history. Turns are
// never rewritten, only appended; ordering within a session is strictly by
// Timestamp.
type ConversationTurn struct {
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`

	// EvidenceRefs lists, in order, the provenance ids the assistant used to
	// ground this turn's answer. Empty on user turns.
	EvidenceRefs []string `json:"evidence_refs,omitempty"`

	// SubQueries records the retrieval plan derived from a user turn so a
	// follow-up ("and last month?") can inherit its filters. Not serialized.
	SubQueries []SubQuery `json:"-"`
}
