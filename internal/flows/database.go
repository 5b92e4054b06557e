package flows

import (
	"context"
	"fmt"
	"strings"

	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/store"
)

const databasePick store.State = "database.pick"

func (f *Flows) databaseWorkflow() *workflow.Definition {
	return &workflow.Definition{
		Name: store.WorkflowDatabase,
		Entries: []workflow.Entry{
			{
				Name:  "db",
				Match: onEntry("db", dialog.MenuDatabase),
				Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					current := f.database(req.Event.UserID)
					return workflow.Goto(databasePick, &store.DatabaseContext{Current: current}, f.databaseMenu(current)), nil
				},
			},
			{
				// a selection button tapped after the list message outlived its session
				Name:   "select_db",
				Match:  onAction(action.SelectDB),
				Handle: f.selectDatabase,
			},
		},
		States: map[store.State][]workflow.Transition{
			databasePick: {
				{Name: "select", Match: onAction(action.SelectDB), Handle: f.selectDatabase, Terminal: true},
			},
		},
		Fallbacks: []workflow.Transition{backToMain()},
	}
}

func (f *Flows) databaseMenu(current string) dialog.Reply {
	rows := make([][]dialog.Button, 0, len(f.Config.Databases)+1)
	for _, db := range f.Config.Databases {
		label := db
		if db == current {
			label = "✅ " + db
		}
		rows = append(rows, dialog.Row(dialog.Btn(label, action.SelectDB, db)))
	}
	rows = append(rows, dialog.BackToMainRow())
	return dialog.Text(fmt.Sprintf("🗄️ Current database: %s\nChoose the database to work with:", current)).WithButtons(rows...)
}

func (f *Flows) selectDatabase(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	db := strings.TrimSpace(req.Event.Action.Arg)
	if !f.knownDatabase(db) {
		return workflow.Goto(databasePick, &store.DatabaseContext{Current: f.database(req.Event.UserID)},
			dialog.Text("❌ Unknown database: "+db), f.databaseMenu(f.database(req.Event.UserID))), nil
	}
	if err := f.Selections.Select(req.Event.UserID, db); err != nil {
		return workflow.Outcome{}, fmt.Errorf("select database %s: %w", db, err)
	}
	f.Logger.Info("Database", "Database selected", map[string]interface{}{
		"user_id": req.Event.UserID,
		"db":      db,
	})
	return workflow.Finish(dialog.Text("✅ Now working with database " + db + ".").WithMainMenu()), nil
}
