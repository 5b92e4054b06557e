package acts

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/validation"
)

var (
	ErrEmptyBatch      = errors.New("no acts pending delivery")
	ErrBatchUnsendable = errors.New("act documents are missing")
	ErrTransport       = errors.New("email transport failure")
)

// Attachment is one file to send. Label is the name shown to the recipient.
type Attachment struct {
	Label string
	Path  string
}

// EmailTransport sends a message with attachments. Any error is treated as retryable.
type EmailTransport interface {
	SendFiles(ctx context.Context, recipient string, files []Attachment, subject, body string) error
}

// EmailDirectory resolves an employee's email address.
type EmailDirectory interface {
	EmployeeEmail(ctx context.Context, db, employee string, strict bool) (string, error)
}

// FileRemover deletes a document and reports whether it is gone.
type FileRemover interface {
	Remove(ctx context.Context, path string) bool
}

type Coordinator struct {
	transport EmailTransport
	directory EmailDirectory
	remover   FileRemover
	logger    logger.ILogger
	now       func() time.Time
}

func NewCoordinator(transport EmailTransport, directory EmailDirectory, remover FileRemover, log logger.ILogger) *Coordinator {
	return &Coordinator{
		transport: transport,
		directory: directory,
		remover:   remover,
		logger:    log,
		now:       time.Now,
	}
}

// Verify checks that every act document is still on disk.
func (c *Coordinator) Verify(b *Batch) error {
	if b.Empty() {
		return ErrEmptyBatch
	}
	for _, a := range b.Acts {
		info, err := os.Stat(a.DocumentPath)
		if err != nil || info.IsDir() {
			return fmt.Errorf("%w: %s", ErrBatchUnsendable, a.Filename)
		}
	}
	return nil
}

func attachments(b *Batch) []Attachment {
	files := make([]Attachment, 0, len(b.Acts))
	for _, a := range b.Acts {
		files = append(files, Attachment{Label: a.Filename, Path: a.DocumentPath})
	}
	return files
}

func owners(b *Batch) []string {
	out := make([]string, 0, len(b.Acts))
	for _, a := range b.Acts {
		out = append(out, a.OldEmployee)
	}
	return out
}

// DeliverConsolidated sends every act in a single email and deletes the
// documents once the send succeeds.
func (c *Coordinator) DeliverConsolidated(ctx context.Context, recipient string, b *Batch) (*Attempt, error) {
	return c.sendAll(ctx, recipient, b, MethodConsolidated)
}

// DeliverManual is DeliverConsolidated for an address the user typed in.
func (c *Coordinator) DeliverManual(ctx context.Context, recipient string, b *Batch) (*Attempt, error) {
	if err := validation.ValidateEmail(recipient); err != nil {
		return nil, err
	}
	return c.sendAll(ctx, recipient, b, MethodManual)
}

func (c *Coordinator) sendAll(ctx context.Context, recipient string, b *Batch, method Method) (*Attempt, error) {
	if err := c.Verify(b); err != nil {
		return nil, err
	}

	attempt := &Attempt{Recipient: recipient, Method: method}
	now := c.now()
	err := c.transport.SendFiles(ctx, recipient, attachments(b), consolidatedSubject(now), consolidatedBody(b, now))
	if err != nil {
		c.logger.Error("ActCoordinator", "Failed to send acts", map[string]interface{}{
			"recipient": recipient,
			"method":    string(method),
			"acts":      len(b.Acts),
			"error":     err,
		})
		for _, o := range owners(b) {
			attempt.Failures = append(attempt.Failures, Failure{Subject: o, Reason: ReasonTransport})
		}
		attempt.Remaining = b.Clone()
		return attempt, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	attempt.Successes = owners(b)
	c.removeDocuments(ctx, b.Paths())
	c.logger.Info("ActCoordinator", "Acts delivered", map[string]interface{}{
		"recipient": recipient,
		"method":    string(method),
		"acts":      len(b.Acts),
	})
	return attempt, nil
}

// DeliverPerOwnerAuto mails each act to its previous owner. Partial failure
// is a normal outcome: sent documents are deleted, the rest stay in
// Attempt.Remaining for a manual retry.
func (c *Coordinator) DeliverPerOwnerAuto(ctx context.Context, b *Batch) (*Attempt, error) {
	if err := c.Verify(b); err != nil {
		return nil, err
	}

	attempt := &Attempt{Method: MethodPerOwnerAuto}
	sent := make(map[int]bool, len(b.Acts))

	for i, a := range b.Acts {
		email, err := c.resolveEmail(ctx, b.SourceDBName, a.OldEmployee)
		if err != nil {
			reason := ReasonNoEmail
			if !errors.Is(err, inventory.ErrNoEmailOnFile) && !errors.Is(err, inventory.ErrNotFound) {
				reason = ReasonTransport
			}
			c.logger.Warn("ActCoordinator", "No owner email for act", map[string]interface{}{
				"owner": a.OldEmployee,
				"error": err.Error(),
			})
			attempt.Failures = append(attempt.Failures, Failure{Subject: a.OldEmployee, Reason: reason})
			continue
		}

		files := []Attachment{{Label: a.Filename, Path: a.DocumentPath}}
		if err := c.transport.SendFiles(ctx, email, files, ownerSubject(a), ownerBody(a)); err != nil {
			c.logger.Error("ActCoordinator", "Failed to send act to owner", map[string]interface{}{
				"owner": a.OldEmployee,
				"email": email,
				"error": err,
			})
			attempt.Failures = append(attempt.Failures, Failure{Subject: a.OldEmployee, Reason: ReasonTransport})
			continue
		}

		sent[i] = true
		attempt.Successes = append(attempt.Successes, a.OldEmployee)
		c.remover.Remove(ctx, a.DocumentPath)
	}

	attempt.Remaining = b.without(sent)
	c.logger.Info("ActCoordinator", "Per-owner delivery finished", map[string]interface{}{
		"sent":   len(attempt.Successes),
		"failed": len(attempt.Failures),
	})
	return attempt, nil
}

// resolveEmail tries an exact name match first, then a relaxed one.
func (c *Coordinator) resolveEmail(ctx context.Context, db, employee string) (string, error) {
	email, err := c.directory.EmployeeEmail(ctx, db, employee, true)
	if err == nil && email != "" {
		return email, nil
	}
	if err != nil && !errors.Is(err, inventory.ErrNoEmailOnFile) && !errors.Is(err, inventory.ErrNotFound) {
		return "", err
	}
	email, err = c.directory.EmployeeEmail(ctx, db, employee, false)
	if err != nil {
		return "", err
	}
	if email == "" {
		return "", inventory.ErrNoEmailOnFile
	}
	return email, nil
}

// Skip discards the batch without sending and deletes its documents.
func (c *Coordinator) Skip(ctx context.Context, b *Batch) error {
	if err := c.Verify(b); err != nil {
		return err
	}
	c.removeDocuments(ctx, b.Paths())
	c.logger.Info("ActCoordinator", "Act delivery skipped", map[string]interface{}{
		"acts": len(b.Acts),
	})
	return nil
}

func (c *Coordinator) removeDocuments(ctx context.Context, paths []string) {
	for _, p := range paths {
		c.remover.Remove(ctx, p)
	}
}
