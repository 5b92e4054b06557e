package workflow

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/store"
)

var (
	ErrUnknownWorkflow = errors.New("unknown workflow")
	ErrNotSeedable     = errors.New("workflow cannot be entered with a seed")
)

// HandlerError wraps an unexpected failure inside a handler.
type HandlerError struct {
	Workflow   store.Workflow
	State      store.State
	Transition string
	Terminal   bool
	Err        error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("workflow %s state %s transition %s: %v", e.Workflow, e.State, e.Transition, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Result describes what a step did.
type Result struct {
	Matched  bool
	Replies  []dialog.Reply
	Workflow store.Workflow
	State    store.State
	// Replaced is the session overwritten by an entry or a chain.
	Replaced *store.Session
	Ended    bool
}

type Executor struct {
	registry *Registry
	sessions store.Store
	logger   logger.ILogger
}

func NewExecutor(registry *Registry, sessions store.Store, log logger.ILogger) *Executor {
	return &Executor{registry: registry, sessions: sessions, logger: log}
}

func (x *Executor) Registry() *Registry {
	return x.registry
}

// Step runs the first matching transition of the session's current state,
// then the workflow's fallbacks. Result.Matched is false when nothing matched.
func (x *Executor) Step(ctx context.Context, sess *store.Session, ev *dialog.Event) (Result, error) {
	def, ok := x.registry.Get(sess.Workflow())
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, sess.Workflow())
	}

	t, found := match(def.States[sess.State], ev)
	if !found {
		t, found = match(def.Fallbacks, ev)
	}
	if !found {
		return Result{Workflow: def.Name, State: sess.State}, nil
	}

	req := &Request{Event: ev, Session: sess.Clone()}
	out, err := invoke(ctx, t.Handle, req)
	if err != nil {
		return Result{Matched: true}, &HandlerError{
			Workflow:   def.Name,
			State:      sess.State,
			Transition: t.Name,
			Terminal:   t.Terminal,
			Err:        err,
		}
	}
	if out.Next == "" {
		out.Next = t.Next
	}
	return x.apply(ctx, ev, sess, out)
}

// Enter evaluates every workflow's entry matchers in registration order.
// current may be nil or a session being replaced.
func (x *Executor) Enter(ctx context.Context, current *store.Session, ev *dialog.Event) (Result, error) {
	for _, def := range x.registry.All() {
		for _, e := range def.Entries {
			if !e.Match(ev) {
				continue
			}
			out, err := invoke(ctx, e.Handle, &Request{Event: ev, Session: current.Clone()})
			if err != nil {
				return Result{Matched: true}, &HandlerError{Workflow: def.Name, Transition: e.Name, Err: err}
			}
			return x.start(ctx, ev, def, out)
		}
	}
	return Result{}, nil
}

// Seed starts the seed's target workflow directly.
func (x *Executor) Seed(ctx context.Context, ev *dialog.Event, seed Seed) (Result, error) {
	def, ok := x.registry.Get(seed.Target())
	if !ok {
		return Result{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, seed.Target())
	}
	if def.Seeded == nil {
		return Result{}, fmt.Errorf("%w: %s", ErrNotSeedable, def.Name)
	}
	out, err := invoke(ctx, func(ctx context.Context, req *Request) (Outcome, error) {
		return def.Seeded(ctx, req, seed)
	}, &Request{Event: ev})
	if err != nil {
		return Result{Matched: true}, &HandlerError{Workflow: def.Name, Transition: "seeded", Err: err}
	}
	if out.Chain != nil {
		x.logger.Warn("Executor", "Nested chain ignored", map[string]interface{}{"workflow": def.Name})
		out.Chain = nil
	}
	return x.start(ctx, ev, def, out)
}

func (x *Executor) start(ctx context.Context, ev *dialog.Event, def *Definition, out Outcome) (Result, error) {
	if out.Chain != nil {
		res, err := x.Seed(ctx, ev, out.Chain.Seed)
		res.Replies = append(out.Replies, res.Replies...)
		return res, err
	}

	res := Result{Matched: true, Replies: out.Replies, Workflow: def.Name}
	switch out.Next {
	case Terminal, Stay, "":
		// entry answered without binding a workflow
		res.Ended = true
		if out.Park != nil {
			x.sessions.Park(ev.UserID, ev.ChatID, out.Park)
		}
		return res, nil
	}
	if out.Context == nil || out.Context.Workflow() != def.Name {
		return res, fmt.Errorf("workflow %s entered state %s without its context", def.Name, out.Next)
	}

	_, replaced := x.sessions.Start(ev.UserID, ev.ChatID, out.Context, out.Next)
	res.State = out.Next
	if replaced.Active() {
		res.Replaced = replaced
	}
	return res, nil
}

func (x *Executor) apply(ctx context.Context, ev *dialog.Event, sess *store.Session, out Outcome) (Result, error) {
	if out.Chain != nil {
		res, err := x.Seed(ctx, ev, out.Chain.Seed)
		res.Replies = append(out.Replies, res.Replies...)
		return res, err
	}

	res := Result{Matched: true, Replies: out.Replies, Workflow: sess.Workflow(), State: sess.State}

	switch out.Next {
	case Stay, "":
		return res, nil
	case Terminal:
		res.Ended = true
		res.State = ""
		if out.Park != nil {
			x.sessions.Park(sess.UserID, sess.ChatID, out.Park)
		} else if sess.Pending != nil {
			x.sessions.Park(sess.UserID, sess.ChatID, sess.Pending)
		} else {
			x.sessions.Clear(sess.UserID)
		}
		return res, nil
	}

	if out.Context != nil && out.Context.Workflow() != sess.Workflow() {
		return res, fmt.Errorf("workflow %s returned a %s context", sess.Workflow(), out.Context.Workflow())
	}
	if _, err := x.sessions.Update(sess.UserID, out.Next, func(s *store.Session) {
		if out.Context != nil {
			s.Context = out.Context
		}
	}); err != nil {
		return res, err
	}
	res.State = out.Next
	return res, nil
}

func match(ts []Transition, ev *dialog.Event) (Transition, bool) {
	for _, t := range ts {
		if t.Match(ev) {
			return t, true
		}
	}
	return Transition{}, false
}

// invoke runs a handler and turns a panic into an error.
func invoke(ctx context.Context, h Handler, req *Request) (out Outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()
	return h(ctx, req)
}
