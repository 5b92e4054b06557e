// Package dialog holds the inbound event and outbound reply types shared by
// the router, the workflow executor and the workflows.
package dialog

import (
	"strings"
	"time"

	"inventory-assistant-be/pkg/dialog/action"
)

type EventKind int

const (
	EventText EventKind = iota + 1
	EventCommand
	EventAction
	EventPhoto
)

func (k EventKind) String() string {
	switch k {
	case EventText:
		return "text"
	case EventCommand:
		return "command"
	case EventAction:
		return "action"
	case EventPhoto:
		return "photo"
	}
	return "unknown"
}

// Event is one inbound user interaction, already decoded at the gateway.
type Event struct {
	ID         string
	UserID     string
	ChatID     string
	Kind       EventKind
	Text       string
	Command    string
	Action     action.Action
	PhotoPath  string
	ReceivedAt time.Time
}

// NewCommand builds a command event; name may carry the leading slash.
func NewCommand(userID, chatID, name string) *Event {
	return &Event{UserID: userID, ChatID: chatID, Kind: EventCommand, Command: NormalizeCommand(name), ReceivedAt: time.Now()}
}

func NewText(userID, chatID, text string) *Event {
	return &Event{UserID: userID, ChatID: chatID, Kind: EventText, Text: text, ReceivedAt: time.Now()}
}

func NewAction(userID, chatID, raw string) *Event {
	return &Event{UserID: userID, ChatID: chatID, Kind: EventAction, Action: action.Parse(raw), ReceivedAt: time.Now()}
}

func NewPhoto(userID, chatID, path string) *Event {
	return &Event{UserID: userID, ChatID: chatID, Kind: EventPhoto, PhotoPath: path, ReceivedAt: time.Now()}
}

// NormalizeCommand strips the slash, any @bot suffix and arguments.
func NormalizeCommand(name string) string {
	name = strings.TrimSpace(name)
	name = strings.TrimPrefix(name, "/")
	if i := strings.IndexAny(name, " @"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(name)
}

func (e *Event) IsCommand(name string) bool {
	return e.Kind == EventCommand && e.Command == name
}

func (e *Event) IsAction(k action.Kind) bool {
	return e.Kind == EventAction && e.Action.Kind == k
}

func (e *Event) IsText() bool {
	return e.Kind == EventText
}

func (e *Event) IsPhoto() bool {
	return e.Kind == EventPhoto
}

// TextIs matches a text event exactly after trimming, e.g. a main menu button label.
func (e *Event) TextIs(label string) bool {
	return e.Kind == EventText && strings.TrimSpace(e.Text) == label
}

// IsFreeText is a text event that is not a main menu button.
func (e *Event) IsFreeText() bool {
	return e.Kind == EventText && !IsMenuLabel(strings.TrimSpace(e.Text))
}
