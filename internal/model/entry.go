package model

import (
	"time"

	"github.com/google/uuid"
)

// Role identifies who produced a conversation entry
type Role string

const (
	RoleUser   Role = "user"
	RoleAgent  Role = "agent"
	RoleSystem Role = "system"
	RoleError  Role = "error"
)

// Icon returns the glyph shown next to entries of this role
func (r Role) Icon() string {
	switch r {
	case RoleUser:
		return "❯"
	case RoleAgent:
		return "◆"
	case RoleSystem:
		return "●"
	case RoleError:
		return "✗"
	default:
		return "○"
	}
}

// Label returns the human-readable name of the role
func (r Role) Label() string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAgent:
		return "Agent"
	case RoleSystem:
		return "System"
	case RoleError:
		return "Error"
	default:
		return string(r)
	}
}

// Entry is one immutable unit of the conversation history.
// Table, Chart and Insight are only set on agent entries.
type Entry struct {
	ID        string
	Role      Role
	Text      string
	CreatedAt time.Time

	// Kind is resolved once when the entry is built from a service response
	Kind    ResultKind
	Table   *Table
	Chart   *ChartHint
	Insight string

	// Success is the service's success flag, passed through untouched
	Success *bool
	// Notice carries the service's error string on success=false responses
	Notice string
}

// NewEntry creates an entry with a fresh ID and the given creation time
func NewEntry(role Role, text string, now time.Time) Entry {
	return Entry{
		ID:        uuid.New().String(),
		Role:      role,
		Text:      text,
		CreatedAt: now,
		Kind:      ResultNarrative,
	}
}
