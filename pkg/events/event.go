package events

import (
	"context"
	"time"
)

// Event is a domain event published after a workflow changes persistent state.
type Event interface {
	// EventType is the subject suffix, e.g. "transfer_completed".
	EventType() string
	Payload() map[string]interface{}
	Timestamp() time.Time
}

const (
	TypeUnfoundSaved      = "unfound_saved"
	TypeTransferCompleted = "transfer_completed"
	TypeActsDelivered     = "acts_delivered"
	TypeWorkLogged        = "work_logged"
	TypeBackupCreated     = "backup_created"
)

type BaseEvent struct {
	Type       string
	Data       map[string]interface{}
	OccurredAt time.Time
}

func (e BaseEvent) EventType() string {
	return e.Type
}

func (e BaseEvent) Payload() map[string]interface{} {
	return e.Data
}

func (e BaseEvent) Timestamp() time.Time {
	return e.OccurredAt
}

func New(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{Type: eventType, Data: data, OccurredAt: time.Now()}
}

func UnfoundSaved(userID, db, serial string) BaseEvent {
	return New(TypeUnfoundSaved, map[string]interface{}{
		"user_id": userID,
		"db":      db,
		"serial":  serial,
	})
}

func TransferCompleted(userID, db, newEmployee string, serials []string, acts int) BaseEvent {
	return New(TypeTransferCompleted, map[string]interface{}{
		"user_id":      userID,
		"db":           db,
		"new_employee": newEmployee,
		"serials":      serials,
		"acts":         acts,
	})
}

func ActsDelivered(userID, method string, sent, failed int) BaseEvent {
	return New(TypeActsDelivered, map[string]interface{}{
		"user_id": userID,
		"method":  method,
		"sent":    sent,
		"failed":  failed,
	})
}

func WorkLogged(userID, db, kind string) BaseEvent {
	return New(TypeWorkLogged, map[string]interface{}{
		"user_id":   userID,
		"db":        db,
		"work_type": kind,
	})
}

func BackupCreated(archive string, files int) BaseEvent {
	return New(TypeBackupCreated, map[string]interface{}{
		"archive": archive,
		"files":   files,
	})
}

// Publisher sends events to the bus.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}
