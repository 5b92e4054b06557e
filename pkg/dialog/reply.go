package dialog

import (
	"context"

	"inventory-assistant-be/pkg/dialog/action"
)

// Button is a quick-pick option; Action is the encoded payload sent back on tap.
type Button struct {
	Label  string `json:"label"`
	Action string `json:"action"`
}

// Reply is one outbound message.
type Reply struct {
	Text     string     `json:"text"`
	Buttons  [][]Button `json:"buttons,omitempty"`
	MainMenu bool       `json:"main_menu,omitempty"`
}

func Text(text string) Reply {
	return Reply{Text: text}
}

func (r Reply) WithButtons(rows ...[]Button) Reply {
	r.Buttons = append(r.Buttons, rows...)
	return r
}

// WithMainMenu asks the gateway to show the main menu keyboard with this message.
func (r Reply) WithMainMenu() Reply {
	r.MainMenu = true
	return r
}

func Btn(label string, k action.Kind, arg string) Button {
	return Button{Label: label, Action: action.Encode(k, arg)}
}

func Row(buttons ...Button) []Button {
	return buttons
}

func BackToMainRow() []Button {
	return Row(Btn("⬅️ Main menu", action.BackToMain, ""))
}

// Responder delivers replies to the user's chat.
type Responder interface {
	Send(ctx context.Context, userID, chatID string, replies []Reply) error
}
