package mapper

import (
	"time"

	"inventory-assistant-be/internal/dto"
	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
)

// ToChatEventMessage copies a validated request onto the bus payload. act is
// the decoded action for action events; photoPath is where the photo was saved.
func ToChatEventMessage(req *dto.ChatEventRequest, eventID string, act action.Action, photoPath string) dto.ChatEventMessage {
	msg := dto.ChatEventMessage{
		EventID:    eventID,
		UserID:     req.UserID,
		ChatID:     req.ChatID,
		Type:       req.Type,
		ReceivedAt: time.Now(),
	}
	if msg.ChatID == "" {
		msg.ChatID = req.UserID
	}

	switch req.Type {
	case dto.EventTypeText:
		msg.Text = req.Text
	case dto.EventTypeCommand:
		msg.Command = dialog.NormalizeCommand(req.Command)
	case dto.EventTypeAction:
		msg.ActionKind = int(act.Kind)
		msg.ActionArg = act.Arg
		msg.ActionRaw = act.Raw
	case dto.EventTypePhoto:
		msg.PhotoPath = photoPath
	}
	return msg
}

// ToDialogEvent rebuilds the router event. Unknown types yield nil.
func ToDialogEvent(msg dto.ChatEventMessage) *dialog.Event {
	ev := &dialog.Event{
		ID:         msg.EventID,
		UserID:     msg.UserID,
		ChatID:     msg.ChatID,
		ReceivedAt: msg.ReceivedAt,
	}

	switch msg.Type {
	case dto.EventTypeText:
		ev.Kind = dialog.EventText
		ev.Text = msg.Text
	case dto.EventTypeCommand:
		ev.Kind = dialog.EventCommand
		ev.Command = msg.Command
	case dto.EventTypeAction:
		ev.Kind = dialog.EventAction
		ev.Action = action.Action{Kind: action.Kind(msg.ActionKind), Arg: msg.ActionArg, Raw: msg.ActionRaw}
	case dto.EventTypePhoto:
		ev.Kind = dialog.EventPhoto
		ev.PhotoPath = msg.PhotoPath
	default:
		return nil
	}
	return ev
}
