package dto

import "time"

const (
	EventTypeText    = "text"
	EventTypeCommand = "command"
	EventTypeAction  = "action"
	EventTypePhoto   = "photo"
)

// ChatEventRequest is what a chat platform gateway posts for every user
// interaction. Photo carries the image base64 encoded.
type ChatEventRequest struct {
	UserID  string `json:"user_id" validate:"required,max=64"`
	ChatID  string `json:"chat_id" validate:"max=64"`
	Type    string `json:"type" validate:"required,oneof=text command action photo"`
	Text    string `json:"text" validate:"required_if=Type text,max=4096"`
	Command string `json:"command" validate:"required_if=Type command,max=64"`
	Action  string `json:"action" validate:"required_if=Type action,max=128"`
	Photo   string `json:"photo" validate:"required_if=Type photo"`
}

type ChatEventAccepted struct {
	EventID string `json:"event_id"`
}

// ChatEventMessage is the bus payload between the gateway handler and the
// dispatch consumer. The action is already decoded.
type ChatEventMessage struct {
	EventID    string    `json:"event_id"`
	UserID     string    `json:"user_id"`
	ChatID     string    `json:"chat_id"`
	Type       string    `json:"type"`
	Text       string    `json:"text,omitempty"`
	Command    string    `json:"command,omitempty"`
	ActionKind int       `json:"action_kind,omitempty"`
	ActionArg  string    `json:"action_arg,omitempty"`
	ActionRaw  string    `json:"action_raw,omitempty"`
	PhotoPath  string    `json:"photo_path,omitempty"`
	ReceivedAt time.Time `json:"received_at"`
}

type HealthResponse struct {
	Status         string `json:"status"`
	ActiveSessions int    `json:"active_sessions"`
	Connections    int    `json:"connections"`
	Uptime         string `json:"uptime"`
}
