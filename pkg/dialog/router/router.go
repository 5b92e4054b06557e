// Package router is the entry point for every inbound event. It applies
// global interrupts, drives the active workflow, starts new ones and falls
// back to process-wide handlers.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/store"
)

const (
	CommandCancel = "cancel"
	CommandStart  = "start"
	CommandHelp   = "help"
)

// DefaultHandler runs when neither the active workflow nor any entry matched.
type DefaultHandler struct {
	Name     string
	Match    func(ev *dialog.Event, sess *store.Session) bool
	Handle   func(ctx context.Context, ev *dialog.Event, sess *store.Session) ([]dialog.Reply, error)
	Terminal bool
}

// PendingReleaser frees resources held by pending input when a session is
// dropped by an interrupt or a terminal failure.
type PendingReleaser interface {
	Release(ctx context.Context, userID string, pending *store.PendingInput)
}

type Router struct {
	executor  *workflow.Executor
	sessions  store.Store
	defaults  []DefaultHandler
	releaser  PendingReleaser
	responder dialog.Responder
	allowed   map[string]struct{}
	group     string
	logger    logger.ILogger
}

// Option configures a Router.
type Option func(*Router)

// WithDefaults registers handlers tried when no workflow claims an event.
func WithDefaults(handlers ...DefaultHandler) Option {
	return func(r *Router) { r.defaults = append(r.defaults, handlers...) }
}

// WithReleaser sets the hook that frees pending acts when a session is dropped.
func WithReleaser(rel PendingReleaser) Option {
	return func(r *Router) { r.releaser = rel }
}

// WithResponder sets where Dispatch sends replies.
func WithResponder(resp dialog.Responder) Option {
	return func(r *Router) { r.responder = resp }
}

// WithAllowedUsers restricts the assistant to the listed user ids. An empty
// list allows everyone.
func WithAllowedUsers(ids []string) Option {
	return func(r *Router) {
		for _, id := range ids {
			if id = strings.TrimSpace(id); id != "" {
				r.allowed[id] = struct{}{}
			}
		}
	}
}

// WithAllowedGroup admits everyone writing from the given chat, on top of the
// user allow-list.
func WithAllowedGroup(chatID string) Option {
	return func(r *Router) { r.group = strings.TrimSpace(chatID) }
}

// New returns a Router that runs workflows through executor and keeps sessions in sessions.
func New(executor *workflow.Executor, sessions store.Store, log logger.ILogger, opts ...Option) *Router {
	r := &Router{
		executor: executor,
		sessions: sessions,
		allowed:  make(map[string]struct{}),
		logger:   log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Dispatch handles ev and sends the replies through the configured responder.
func (r *Router) Dispatch(ctx context.Context, ev *dialog.Event) error {
	replies := r.Handle(ctx, ev)
	if r.responder == nil || len(replies) == 0 {
		return nil
	}
	if err := r.responder.Send(ctx, ev.UserID, ev.ChatID, replies); err != nil {
		r.logger.Error("Router", "Failed to deliver replies", map[string]interface{}{
			"user_id": ev.UserID,
			"error":   err,
		})
		return err
	}
	return nil
}

// Handle routes one event and returns the replies for the user.
func (r *Router) Handle(ctx context.Context, ev *dialog.Event) (replies []dialog.Reply) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Router", "Panic while routing event", map[string]interface{}{
				"user_id": ev.UserID,
				"panic":   fmt.Sprint(rec),
				"stack":   string(debug.Stack()),
			})
			replies = []dialog.Reply{genericFailure()}
		}
	}()

	if !r.permitted(ev) {
		r.logger.Warn("Router", "Access denied", map[string]interface{}{"user_id": ev.UserID})
		return []dialog.Reply{dialog.Text("⛔ Access denied. Ask an administrator to add your account.")}
	}

	// 1. Global interrupts and stateless commands
	if ev.Kind == dialog.EventCommand {
		switch ev.Command {
		case CommandCancel:
			r.interrupt(ctx, ev, "cancel")
			return []dialog.Reply{dialog.Text("❌ Operation cancelled.").WithMainMenu()}
		case CommandStart:
			r.interrupt(ctx, ev, "restart")
			return []dialog.Reply{welcome()}
		case CommandHelp:
			return []dialog.Reply{help()}
		}
	}

	sess, _ := r.sessions.Get(ev.UserID)

	// 2. Active workflow
	if sess.Active() {
		res, err := r.executor.Step(ctx, sess, ev)
		if err != nil {
			return r.fail(ctx, ev, err)
		}
		if res.Matched {
			return res.Replies
		}
	}

	// 3. Entry points, replacing any active workflow
	res, err := r.executor.Enter(ctx, sess, ev)
	if err != nil {
		return r.fail(ctx, ev, err)
	}
	if res.Matched {
		if res.Replaced != nil {
			r.logger.Info("Router", "Active workflow replaced", map[string]interface{}{
				"user_id":   ev.UserID,
				"discarded": string(res.Replaced.Workflow()),
				"state":     string(res.Replaced.State),
				"started":   string(res.Workflow),
			})
		}
		return res.Replies
	}

	// 4. Process-wide defaults
	for _, d := range r.defaults {
		if !d.Match(ev, sess) {
			continue
		}
		out, err := d.Handle(ctx, ev, sess)
		if err != nil {
			return r.fail(ctx, ev, &workflow.HandlerError{Transition: d.Name, Terminal: d.Terminal, Err: err})
		}
		return out
	}

	r.logger.Debug("Router", "Event ignored", map[string]interface{}{
		"user_id":  ev.UserID,
		"kind":     ev.Kind.String(),
		"workflow": string(sess.Workflow()),
	})
	return nil
}

func (r *Router) permitted(ev *dialog.Event) bool {
	if len(r.allowed) == 0 && r.group == "" {
		return true
	}
	if r.group != "" && ev.ChatID == r.group {
		return true
	}
	_, ok := r.allowed[ev.UserID]
	return ok
}

func (r *Router) interrupt(ctx context.Context, ev *dialog.Event, reason string) {
	removed := r.sessions.Clear(ev.UserID)
	if removed == nil {
		return
	}
	r.logger.Info("Router", "Session cleared by interrupt", map[string]interface{}{
		"user_id":  ev.UserID,
		"reason":   reason,
		"workflow": string(removed.Workflow()),
		"state":    string(removed.State),
	})
	r.release(ctx, ev.UserID, removed)
}

func (r *Router) release(ctx context.Context, userID string, removed *store.Session) {
	if removed == nil || removed.Pending == nil || r.releaser == nil {
		return
	}
	r.releaser.Release(ctx, userID, removed.Pending)
}

func (r *Router) fail(ctx context.Context, ev *dialog.Event, err error) []dialog.Reply {
	details := map[string]interface{}{
		"user_id": ev.UserID,
		"event":   ev.Kind.String(),
		"error":   err,
	}
	var he *workflow.HandlerError
	if errors.As(err, &he) {
		details["workflow"] = string(he.Workflow)
		details["state"] = string(he.State)
		details["transition"] = he.Transition
		if he.Terminal {
			r.release(ctx, ev.UserID, r.sessions.Clear(ev.UserID))
			details["session_cleared"] = true
		}
	}
	r.logger.Error("Router", "Handler failed", details)
	return []dialog.Reply{genericFailure()}
}

func genericFailure() dialog.Reply {
	return dialog.Text("⚠️ Something went wrong. Please try again or return to the main menu.").
		WithButtons(dialog.BackToMainRow())
}

func welcome() dialog.Reply {
	return dialog.Text("👋 Inventory assistant. Pick an action from the menu.").WithMainMenu()
}

func help() dialog.Reply {
	return dialog.Text(strings.Join([]string{
		"ℹ️ Available commands:",
		"/start - main menu (resets the current operation)",
		"/cancel - cancel the current operation",
		"/search - find equipment by serial number or photo",
		"/employee - list equipment of an employee",
		"/unfound - register equipment missing from the database",
		"/transfer - transfer equipment with signed acts",
		"/work - log maintenance work",
		"/db - choose the database",
		"/help - this message",
	}, "\n"))
}
