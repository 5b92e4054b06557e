package store

import (
	"errors"
	"time"

	"inventory-assistant-be/pkg/acts"
)

var ErrNoSession = errors.New("no session for user")

// Workflow names a registered dialogue procedure.
type Workflow string

const (
	WorkflowSearch   Workflow = "search"
	WorkflowEmployee Workflow = "employee"
	WorkflowUnfound  Workflow = "unfound"
	WorkflowTransfer Workflow = "transfer"
	WorkflowWork     Workflow = "work"
	WorkflowDatabase Workflow = "database"
)

// State is a node of a workflow's state graph.
type State string

// PendingKind says what external input the user owes outside any workflow.
type PendingKind int

const (
	// PendingActDelivery parks generated acts until the user picks a delivery method.
	PendingActDelivery PendingKind = iota + 1
	// PendingActEmail waits for a typed email address for the parked acts.
	PendingActEmail
)

type PendingInput struct {
	Kind  PendingKind
	Batch *acts.Batch
}

func (p *PendingInput) Clone() *PendingInput {
	if p == nil {
		return nil
	}
	return &PendingInput{Kind: p.Kind, Batch: p.Batch.Clone()}
}

// Session is the per-user dialogue position. Context is nil when no workflow
// is active; its concrete type identifies the active workflow.
type Session struct {
	UserID    string
	ChatID    string
	Context   WorkflowContext
	State     State
	Pending   *PendingInput
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Session) Active() bool {
	return s != nil && s.Context != nil
}

func (s *Session) Workflow() Workflow {
	if !s.Active() {
		return ""
	}
	return s.Context.Workflow()
}

func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Context != nil {
		cp.Context = s.Context.Clone()
	}
	cp.Pending = s.Pending.Clone()
	return &cp
}

// Store holds one Session per user. Implementations copy on read and write,
// so callers never share mutable state with the store.
type Store interface {
	Get(userID string) (*Session, bool)
	// Start binds a new workflow, replacing the active one. Pending input
	// survives. The replaced session, if any, is returned for logging.
	Start(userID, chatID string, ctx WorkflowContext, state State) (started, replaced *Session)
	// Update moves an active session to state and applies patch to a copy.
	Update(userID string, state State, patch func(*Session)) (*Session, error)
	// Park drops the workflow but keeps the user's pending input.
	Park(userID, chatID string, pending *PendingInput) *Session
	SetPending(userID string, pending *PendingInput) (*Session, error)
	// Clear removes the session and returns what was removed.
	Clear(userID string) *Session
	Count() int
}
