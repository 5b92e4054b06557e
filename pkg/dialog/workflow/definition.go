// Package workflow defines dialogue procedures as state graphs and executes
// one transition per inbound event.
package workflow

import (
	"context"
	"fmt"

	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/store"
)

const (
	// Stay keeps the current state and discards any context in the outcome.
	Stay store.State = "~stay"
	// Terminal ends the workflow and clears the session.
	Terminal store.State = "~terminal"
)

type Request struct {
	Event *dialog.Event
	// Session is a private copy; nil when a workflow is being entered fresh.
	Session *store.Session
}

// Outcome is what a handler asks the executor to do. A zero Next means the
// transition's declared target.
type Outcome struct {
	Next    store.State
	Context store.WorkflowContext
	Replies []dialog.Reply
	// Chain hands control to another workflow with an explicit seed.
	Chain *Chain
	// Park keeps pending input alive after a Terminal outcome.
	Park *store.PendingInput
}

// Seed is the named payload carried across a chained transition.
type Seed interface {
	Target() store.Workflow
}

// UnfoundSeed starts unfound-equipment intake with a serial that search missed.
type UnfoundSeed struct {
	Serial string
}

func (UnfoundSeed) Target() store.Workflow { return store.WorkflowUnfound }

type Chain struct {
	Seed Seed
}

type Predicate func(ev *dialog.Event) bool

type Handler func(ctx context.Context, req *Request) (Outcome, error)

type SeedHandler func(ctx context.Context, req *Request, seed Seed) (Outcome, error)

type Transition struct {
	Name   string
	Match  Predicate
	Handle Handler
	Next   store.State
	// Terminal marks transitions with terminal side effects. If one fails
	// unexpectedly the session is cleared instead of kept.
	Terminal bool
}

type Entry struct {
	Name   string
	Match  Predicate
	Handle Handler
}

type Definition struct {
	Name      store.Workflow
	Entries   []Entry
	States    map[store.State][]Transition
	Fallbacks []Transition
	Seeded    SeedHandler
}

func (d *Definition) validate() error {
	if d.Name == "" {
		return fmt.Errorf("workflow without a name")
	}
	check := func(where string, ts []Transition) error {
		for i, t := range ts {
			if t.Match == nil || t.Handle == nil {
				return fmt.Errorf("workflow %s: %s transition %d (%s) needs a predicate and a handler", d.Name, where, i, t.Name)
			}
		}
		return nil
	}
	for state, ts := range d.States {
		if err := check(string(state), ts); err != nil {
			return err
		}
	}
	if err := check("fallback", d.Fallbacks); err != nil {
		return err
	}
	for i, e := range d.Entries {
		if e.Match == nil || e.Handle == nil {
			return fmt.Errorf("workflow %s: entry %d (%s) needs a predicate and a handler", d.Name, i, e.Name)
		}
	}
	return nil
}

// Registry holds definitions in registration order. It is filled at start-up
// and read-only afterwards.
type Registry struct {
	defs  map[store.Workflow]*Definition
	order []*Definition
}

func NewRegistry() *Registry {
	return &Registry{defs: make(map[store.Workflow]*Definition)}
}

func (r *Registry) Register(def *Definition) error {
	if err := def.validate(); err != nil {
		return err
	}
	if _, dup := r.defs[def.Name]; dup {
		return fmt.Errorf("workflow %s registered twice", def.Name)
	}
	r.defs[def.Name] = def
	r.order = append(r.order, def)
	return nil
}

func (r *Registry) MustRegister(defs ...*Definition) {
	for _, d := range defs {
		if err := r.Register(d); err != nil {
			panic(err)
		}
	}
}

func (r *Registry) Get(name store.Workflow) (*Definition, bool) {
	d, ok := r.defs[name]
	return d, ok
}

func (r *Registry) All() []*Definition {
	return r.order
}

// Helpers for handlers.

// Goto advances to state with the given context.
func Goto(state store.State, ctx store.WorkflowContext, replies ...dialog.Reply) Outcome {
	return Outcome{Next: state, Context: ctx, Replies: replies}
}

// Reprompt answers without moving or touching the context.
func Reprompt(replies ...dialog.Reply) Outcome {
	return Outcome{Next: Stay, Replies: replies}
}

// Finish ends the workflow.
func Finish(replies ...dialog.Reply) Outcome {
	return Outcome{Next: Terminal, Replies: replies}
}

// ChainTo hands over to the seed's target workflow.
func ChainTo(seed Seed, replies ...dialog.Reply) Outcome {
	return Outcome{Chain: &Chain{Seed: seed}, Replies: replies}
}
