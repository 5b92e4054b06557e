package flows

import (
	"context"
	"errors"

	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/serial"
	"inventory-assistant-be/pkg/store"
)

const (
	searchAwaitSerial store.State = "search.await_serial"
	searchNotFound    store.State = "search.not_found"
)

func (f *Flows) searchWorkflow() *workflow.Definition {
	lookup := workflow.Transition{Name: "lookup", Match: onSerialInput, Handle: f.searchLookup}

	return &workflow.Definition{
		Name: store.WorkflowSearch,
		Entries: []workflow.Entry{{
			Name:  "search",
			Match: onEntry("search", dialog.MenuFind),
			Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
				return workflow.Goto(searchAwaitSerial, &store.SearchContext{}, searchPrompt()), nil
			},
		}},
		States: map[store.State][]workflow.Transition{
			searchAwaitSerial: {lookup},
			searchNotFound: {
				{
					Name:  "add_unfound",
					Match: onAction(action.AddUnfound),
					Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
						sc := req.Session.Context.(*store.SearchContext)
						return workflow.ChainTo(workflow.UnfoundSeed{Serial: sc.LastSerial}), nil
					},
				},
				lookup,
			},
		},
		Fallbacks: []workflow.Transition{
			{
				Name:  "search_again",
				Match: onAction(action.SearchAgain),
				Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
					return workflow.Goto(searchAwaitSerial, &store.SearchContext{}, searchPrompt()), nil
				},
			},
			backToMain(),
		},
	}
}

func searchPrompt() dialog.Reply {
	return dialog.Text("🔎 Send the serial number or a photo of the device label.").
		WithButtons(dialog.BackToMainRow())
}

func (f *Flows) searchLookup(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	sn, problem := f.readSerial(ctx, req.Event)
	if problem != nil {
		return workflow.Reprompt(*problem), nil
	}

	db := f.database(req.Event.UserID)
	match, err := serial.Lookup(ctx, f.Datastore, db, sn)
	switch {
	case errors.Is(err, inventory.ErrNotFound):
		f.Logger.Info("Search", "Serial not found", map[string]interface{}{
			"user_id": req.Event.UserID,
			"serial":  sn,
			"db":      db,
		})
		reply := dialog.Text("❌ Equipment with serial "+sn+" was not found in "+db+".").
			WithButtons(
				dialog.Row(dialog.Btn("📝 Register as unfound", action.AddUnfound, "")),
				dialog.Row(dialog.Btn("🔎 Search again", action.SearchAgain, "")),
				dialog.BackToMainRow(),
			)
		return workflow.Goto(searchNotFound, &store.SearchContext{LastSerial: sn}, reply), nil
	case err != nil:
		f.Logger.Error("Search", "Lookup failed", map[string]interface{}{
			"user_id": req.Event.UserID,
			"serial":  sn,
			"error":   err,
		})
		return workflow.Reprompt(dialog.Text("⚠️ The database is unavailable. Please try again in a moment.").
			WithButtons(dialog.Row(dialog.Btn("🔄 Try again", action.SearchAgain, "")), dialog.BackToMainRow())), nil
	}

	text := "✅ Equipment found\n\n" + equipmentCard(match.Equipment, match.Serial)
	if match.Variant {
		text += "\n\nℹ️ Matched as " + match.Serial + " (you sent " + sn + ")."
	}
	reply := dialog.Text(text).WithButtons(
		dialog.Row(dialog.Btn("🔎 Search again", action.SearchAgain, "")),
		dialog.BackToMainRow(),
	)
	return workflow.Goto(searchAwaitSerial, &store.SearchContext{LastSerial: match.Serial}, reply), nil
}
