package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-assistant-be/pkg/acts"
	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
	"inventory-assistant-be/pkg/dialog/router"
	"inventory-assistant-be/pkg/events"
	"inventory-assistant-be/pkg/store"
	"inventory-assistant-be/pkg/validation"
)

func isActAction(ev *dialog.Event) bool {
	return ev.IsAction(action.ActEmail) || ev.IsAction(action.ActEmailInput) ||
		ev.IsAction(action.ActEmailOwners) || ev.IsAction(action.ActSkip)
}

func hasBatch(sess *store.Session) bool {
	return sess != nil && sess.Pending != nil && !sess.Pending.Batch.Empty()
}

// Defaults returns the handlers that serve parked act batches outside any
// workflow, plus the main-menu button.
func (f *Flows) Defaults() []router.DefaultHandler {
	return []router.DefaultHandler{
		{
			Name: "acts_none_pending",
			Match: func(ev *dialog.Event, sess *store.Session) bool {
				return isActAction(ev) && !hasBatch(sess)
			},
			Handle: func(context.Context, *dialog.Event, *store.Session) ([]dialog.Reply, error) {
				return []dialog.Reply{dialog.Text("ℹ️ There are no acts waiting for delivery.").WithMainMenu()}, nil
			},
		},
		{
			Name: "acts_email_owners",
			Match: func(ev *dialog.Event, _ *store.Session) bool {
				return ev.IsAction(action.ActEmailOwners)
			},
			Handle: f.deliverToOwners,
		},
		{
			Name: "acts_email_prompt",
			Match: func(ev *dialog.Event, _ *store.Session) bool {
				return ev.IsAction(action.ActEmail) || ev.IsAction(action.ActEmailInput)
			},
			Handle: f.askForEmail,
		},
		{
			Name: "acts_email_address",
			Match: func(ev *dialog.Event, sess *store.Session) bool {
				return ev.IsFreeText() && hasBatch(sess) && sess.Pending.Kind == store.PendingActEmail
			},
			Handle: f.deliverToAddress,
		},
		{
			Name: "acts_skip",
			Match: func(ev *dialog.Event, _ *store.Session) bool {
				return ev.IsAction(action.ActSkip)
			},
			Handle: f.skipActs,
		},
		{
			Name: "back_to_main",
			Match: func(ev *dialog.Event, _ *store.Session) bool {
				return ev.IsAction(action.BackToMain)
			},
			Handle: func(context.Context, *dialog.Event, *store.Session) ([]dialog.Reply, error) {
				return []dialog.Reply{mainMenu()}, nil
			},
		},
	}
}

// Release deletes the documents of a pending batch that will never be delivered.
func (f *Flows) Release(ctx context.Context, userID string, pending *store.PendingInput) {
	if pending == nil || pending.Batch.Empty() {
		return
	}
	removed := 0
	for _, p := range pending.Batch.Paths() {
		if f.Remover.Remove(ctx, p) {
			removed++
		}
	}
	f.Logger.Info("Delivery", "Released pending acts", map[string]interface{}{
		"user_id": userID,
		"acts":    len(pending.Batch.Acts),
		"removed": removed,
	})
}

func (f *Flows) setPending(userID string, pending *store.PendingInput) error {
	if _, err := f.Sessions.SetPending(userID, pending); err != nil && !errors.Is(err, store.ErrNoSession) {
		return fmt.Errorf("update pending acts: %w", err)
	}
	return nil
}

// unsendable drops a batch with missing documents and deletes the ones still
// on disk.
func (f *Flows) unsendable(ctx context.Context, ev *dialog.Event, sess *store.Session, err error) ([]dialog.Reply, error) {
	f.Logger.Warn("Delivery", "Pending acts are no longer deliverable", map[string]interface{}{
		"user_id": ev.UserID,
		"error":   err.Error(),
	})
	f.Release(ctx, ev.UserID, sess.Pending)
	if err := f.setPending(ev.UserID, nil); err != nil {
		return nil, err
	}
	return []dialog.Reply{dialog.Text("⚠️ The act documents are no longer available. Repeat the transfer to generate them again.").WithMainMenu()}, nil
}

func (f *Flows) deliverToOwners(ctx context.Context, ev *dialog.Event, sess *store.Session) ([]dialog.Reply, error) {
	attempt, err := f.Acts.DeliverPerOwnerAuto(ctx, sess.Pending.Batch)
	if err != nil {
		if errors.Is(err, acts.ErrBatchUnsendable) || errors.Is(err, acts.ErrEmptyBatch) {
			return f.unsendable(ctx, ev, sess, err)
		}
		return nil, err
	}

	f.emit(ctx, events.ActsDelivered(ev.UserID, string(attempt.Method), len(attempt.Successes), len(attempt.Failures)))
	if attempt.Remaining == nil {
		if err := f.setPending(ev.UserID, nil); err != nil {
			return nil, err
		}
		return []dialog.Reply{dialog.Text(deliveryReport(attempt)).WithMainMenu()}, nil
	}

	if err := f.setPending(ev.UserID, &store.PendingInput{Kind: store.PendingActDelivery, Batch: attempt.Remaining}); err != nil {
		return nil, err
	}
	return []dialog.Reply{dialog.Text(deliveryReport(attempt) + "\n\nSend the remaining acts to another address?").WithButtons(
		dialog.Row(dialog.Btn("✉️ Enter an email", action.ActEmailInput, "")),
		dialog.Row(dialog.Btn("⏭ Skip", action.ActSkip, "")),
	)}, nil
}

func (f *Flows) askForEmail(ctx context.Context, ev *dialog.Event, sess *store.Session) ([]dialog.Reply, error) {
	if err := f.Acts.Verify(sess.Pending.Batch); err != nil {
		return f.unsendable(ctx, ev, sess, err)
	}
	if err := f.setPending(ev.UserID, &store.PendingInput{Kind: store.PendingActEmail, Batch: sess.Pending.Batch}); err != nil {
		return nil, err
	}
	return []dialog.Reply{dialog.Text("✉️ Type the email address to send the acts to.").
		WithButtons(dialog.Row(dialog.Btn("⏭ Skip", action.ActSkip, "")))}, nil
}

func (f *Flows) deliverToAddress(ctx context.Context, ev *dialog.Event, sess *store.Session) ([]dialog.Reply, error) {
	recipient := strings.TrimSpace(ev.Text)
	if err := validation.ValidateEmail(recipient); err != nil {
		return []dialog.Reply{dialog.Text("❌ That does not look like an email address. Try again.").
			WithButtons(dialog.Row(dialog.Btn("⏭ Skip", action.ActSkip, "")))}, nil
	}

	attempt, err := f.Acts.DeliverManual(ctx, recipient, sess.Pending.Batch)
	switch {
	case err == nil:
		f.emit(ctx, events.ActsDelivered(ev.UserID, string(attempt.Method), len(attempt.Successes), 0))
		if err := f.setPending(ev.UserID, nil); err != nil {
			return nil, err
		}
		return []dialog.Reply{dialog.Text(fmt.Sprintf("✅ %d act(s) sent to %s.", len(sess.Pending.Batch.Acts), recipient)).WithMainMenu()}, nil

	case errors.Is(err, acts.ErrTransport):
		if err := f.setPending(ev.UserID, &store.PendingInput{Kind: store.PendingActDelivery, Batch: sess.Pending.Batch}); err != nil {
			return nil, err
		}
		return []dialog.Reply{dialog.Text("⚠️ The email could not be sent. The acts are kept; try again or skip.").WithButtons(
			dialog.Row(dialog.Btn("🔄 Try again", action.ActEmailInput, "")),
			dialog.Row(dialog.Btn("⏭ Skip", action.ActSkip, "")),
		)}, nil

	case errors.Is(err, acts.ErrBatchUnsendable), errors.Is(err, acts.ErrEmptyBatch):
		return f.unsendable(ctx, ev, sess, err)
	}
	return nil, err
}

func (f *Flows) skipActs(ctx context.Context, ev *dialog.Event, sess *store.Session) ([]dialog.Reply, error) {
	if err := f.Acts.Skip(ctx, sess.Pending.Batch); err != nil {
		f.Logger.Warn("Delivery", "Skipped acts were already incomplete", map[string]interface{}{
			"user_id": ev.UserID,
			"error":   err.Error(),
		})
		// Skip refuses an incomplete batch; remove what is left anyway
		f.Release(ctx, ev.UserID, sess.Pending)
	}
	if err := f.setPending(ev.UserID, nil); err != nil {
		return nil, err
	}
	return []dialog.Reply{dialog.Text("⏭ Act delivery skipped.").WithMainMenu()}, nil
}

func deliveryReport(a *acts.Attempt) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "📨 Sent: %d, not sent: %d", len(a.Successes), len(a.Failures))
	for _, s := range a.Successes {
		fmt.Fprintf(&sb, "\n✅ %s", s)
	}
	for _, fl := range a.Failures {
		fmt.Fprintf(&sb, "\n❌ %s (%s)", fl.Subject, fl.Reason)
	}
	return sb.String()
}
