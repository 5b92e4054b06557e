package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-assistant-be/pkg/acts"
	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/docgen"
	"inventory-assistant-be/pkg/events"
	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/records"
	"inventory-assistant-be/pkg/serial"
	"inventory-assistant-be/pkg/store"
	"inventory-assistant-be/pkg/suggest"
	"inventory-assistant-be/pkg/validation"
)

const (
	transferPhotos   store.State = "transfer.photos"
	transferEmployee store.State = "transfer.employee"
	transferBranch   store.State = "transfer.branch"
	transferLocation store.State = "transfer.location"
	transferConfirm  store.State = "transfer.confirm"

	commandDone = "done"
)

func (f *Flows) transferWorkflow() *workflow.Definition {
	return &workflow.Definition{
		Name: store.WorkflowTransfer,
		Entries: []workflow.Entry{{
			Name:  "transfer",
			Match: onEntry("transfer", dialog.MenuTransfer),
			Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
				return workflow.Goto(transferPhotos, &store.TransferContext{}, dialog.Text(fmt.Sprintf(
					"📦 Send photos of the device labels or type the serial numbers one at a time (up to %d).\nSend /done when finished.",
					f.Config.MaxPhotos)).WithButtons(dialog.Row(dialog.Btn("❌ Cancel", action.CancelTransfer, "")))), nil
			},
		}},
		States: map[store.State][]workflow.Transition{
			transferPhotos: {
				{Name: "done", Match: onCommand(commandDone), Handle: transferDone},
				{Name: "add_item", Match: onSerialInput, Handle: f.transferAddItem},
			},
			transferEmployee: {
				{Name: "pick", Match: onAction(action.TransferEmployee), Handle: f.transferPickEmployee},
				{Name: "add_new", Match: onAction(action.TransferEmployeeAdd), Handle: f.transferAddEmployee},
				{Name: "name", Match: onFreeText, Handle: f.transferEmployeeName},
			},
			transferBranch: {
				{Name: "pick", Match: onAction(action.TransferBranch), Handle: func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
					tc := req.Session.Context.(*store.TransferContext)
					tc.Branch = req.Event.Action.Arg
					return f.toTransferLocation(ctx, req, tc), nil
				}},
				{Name: "name", Match: onFreeText, Handle: f.transferBranchName},
			},
			transferLocation: {
				{Name: "pick", Match: onAction(action.TransferLocation), Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					tc := req.Session.Context.(*store.TransferContext)
					loc, ok := offered(req.Event, tc.Offered)
					if !ok {
						return workflow.Reprompt(staleButton()), nil
					}
					tc.Location, tc.Offered = loc, nil
					return workflow.Goto(transferConfirm, tc, transferSummary(tc)), nil
				}},
				{Name: "name", Match: onFreeText, Handle: f.transferLocationName},
			},
			transferConfirm: {
				{Name: "confirm", Match: onAction(action.ConfirmTransfer), Handle: f.transferExecute, Terminal: true},
			},
		},
		Fallbacks: []workflow.Transition{
			{
				Name:  "cancel",
				Match: onAction(action.CancelTransfer),
				Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
					return workflow.Finish(dialog.Text("❌ Transfer cancelled.").WithMainMenu()), nil
				},
			},
			backToMain(),
		},
	}
}

func transferDone(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	if len(tc.Items) == 0 {
		return workflow.Reprompt(dialog.Text("⚠️ Add at least one device before /done.")), nil
	}
	return workflow.Goto(transferEmployee, tc, dialog.Text(fmt.Sprintf(
		"👤 %d device(s) selected. Who receives them? Enter the new employee's name.", len(tc.Items)))), nil
}

func (f *Flows) transferAddItem(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	if len(tc.Items) >= f.Config.MaxPhotos {
		if req.Event.IsPhoto() && f.Remover != nil {
			f.Remover.Remove(ctx, req.Event.PhotoPath)
		}
		return workflow.Reprompt(dialog.Text(fmt.Sprintf("⚠️ The limit of %d devices is reached. Send /done to continue.", f.Config.MaxPhotos))), nil
	}

	sn, problem := f.readSerial(ctx, req.Event)
	if problem != nil {
		return workflow.Reprompt(*problem), nil
	}
	match, err := serial.Lookup(ctx, f.Datastore, f.database(req.Event.UserID), sn)
	if errors.Is(err, inventory.ErrNotFound) {
		return workflow.Reprompt(dialog.Text("❌ " + sn + " was not found in the database and was not added.")), nil
	}
	if err != nil {
		f.Logger.Error("Transfer", "Lookup failed", map[string]interface{}{
			"user_id": req.Event.UserID,
			"serial":  sn,
			"error":   err,
		})
		return workflow.Reprompt(dialog.Text("⚠️ The database is unavailable. Please send it again.")), nil
	}
	for _, it := range tc.Items {
		if it.SerialNumber == match.Serial {
			return workflow.Reprompt(dialog.Text("ℹ️ " + match.Serial + " is already in the list.")), nil
		}
	}

	tc.Items = append(tc.Items, *match.Equipment)
	eq := match.Equipment
	return workflow.Goto(transferPhotos, tc, dialog.Text(fmt.Sprintf(
		"✅ Added %s (%s %s, owner: %s). %d/%d. Send more or /done.",
		match.Serial, eq.Type, eq.Model, eq.Owner(), len(tc.Items), f.Config.MaxPhotos))), nil
}

func (f *Flows) transferEmployeeName(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	name, err := validation.ValidateEmployeeName(req.Event.Text)
	if err != nil {
		return workflow.Reprompt(dialog.Text("❌ Invalid name. Use 2-100 characters without special symbols.")), nil
	}

	db := f.database(req.Event.UserID)
	if exact, ok, err := f.Entities.GetByExactKey(ctx, db, inventory.KindEmployee, name); err == nil && ok {
		return f.setNewEmployee(ctx, req, tc, exact), nil
	}

	tc.Candidate = name
	choice, _ := f.Entities.Lookup(ctx, db, inventory.KindEmployee, name)
	addRow := dialog.Row(
		dialog.Btn("➕ Add "+name+" as new", action.TransferEmployeeAdd, "confirm"),
		dialog.Btn("✏️ Enter again", action.TransferEmployeeAdd, "cancel"),
	)
	if choice.Empty() {
		tc.Offered = nil
		return workflow.Goto(transferEmployee, tc,
			dialog.Text(fmt.Sprintf("🤷 %q is not in the database. Add as a new employee?", name)).WithButtons(addRow)), nil
	}
	tc.Offered = candidateValues(choice.Candidates)
	reply := dialog.Text("👥 Pick the new owner:").
		WithButtons(optionRows(tc.Offered, action.TransferEmployee)...).
		WithButtons(addRow)
	return workflow.Goto(transferEmployee, tc, reply), nil
}

func (f *Flows) transferPickEmployee(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	name, ok := offered(req.Event, tc.Offered)
	if !ok {
		return workflow.Reprompt(staleButton()), nil
	}
	return f.setNewEmployee(ctx, req, tc, name), nil
}

func (f *Flows) transferAddEmployee(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	if req.Event.Action.Arg != "confirm" || tc.Candidate == "" {
		tc.Candidate, tc.Offered = "", nil
		return workflow.Goto(transferEmployee, tc, dialog.Text("👤 Enter the new employee's name.")), nil
	}
	return f.setNewEmployee(ctx, req, tc, tc.Candidate), nil
}

func (f *Flows) setNewEmployee(ctx context.Context, req *workflow.Request, tc *store.TransferContext, name string) workflow.Outcome {
	tc.NewEmployee, tc.Candidate, tc.Offered = name, "", nil
	dept, err := f.Datastore.EmployeeDepartment(ctx, f.database(req.Event.UserID), name)
	if err != nil && !errors.Is(err, inventory.ErrNotFound) {
		f.Logger.Warn("Transfer", "Department lookup failed", map[string]interface{}{
			"employee": name,
			"error":    err.Error(),
		})
	}
	tc.NewEmployeeDept = dept

	reply := dialog.Text("📍 New owner: " + name + ". Choose or type the branch.")
	branches, err := f.Entities.List(ctx, f.database(req.Event.UserID), inventory.KindBranch)
	if err == nil && len(branches) > 0 {
		reply = reply.WithButtons(valueRows(suggest.Paginate(branches, 0, suggest.DefaultLimit).Items, action.TransferBranch)...)
	}
	return workflow.Goto(transferBranch, tc, reply)
}

func (f *Flows) transferBranchName(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	typed := validation.SanitizeInput(req.Event.Text, 100)
	if typed == "" {
		return workflow.Reprompt(dialog.Text("❌ Enter the branch name.")), nil
	}
	db := f.database(req.Event.UserID)
	if exact, ok, err := f.Entities.GetByExactKey(ctx, db, inventory.KindBranch, typed); err == nil && ok {
		tc.Branch = exact
		return f.toTransferLocation(ctx, req, tc), nil
	}
	choice, _ := f.Entities.Lookup(ctx, db, inventory.KindBranch, typed)
	if choice.Empty() {
		tc.Branch = typed
		return f.toTransferLocation(ctx, req, tc), nil
	}
	rows := valueRows(candidateValues(choice.Candidates), action.TransferBranch)
	rows = append(rows, keepTypedRow(typed, action.TransferBranch, typed))
	return workflow.Goto(transferBranch, tc, dialog.Text("🔍 Did you mean:").WithButtons(rows...)), nil
}

func (f *Flows) toTransferLocation(ctx context.Context, req *workflow.Request, tc *store.TransferContext) workflow.Outcome {
	tc.Offered = nil
	reply := dialog.Text("🚪 Branch: " + tc.Branch + ". Choose or type the location.")
	locations, err := f.Entities.List(ctx, f.database(req.Event.UserID), inventory.KindLocation)
	if err == nil && len(locations) > 0 {
		tc.Offered = suggest.Paginate(locations, 0, suggest.DefaultLimit).Items
		reply = reply.WithButtons(optionRows(tc.Offered, action.TransferLocation)...)
	}
	return workflow.Goto(transferLocation, tc, reply)
}

func (f *Flows) transferLocationName(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	typed := validation.SanitizeInput(req.Event.Text, 100)
	if typed == "" {
		return workflow.Reprompt(dialog.Text("❌ Enter the location.")), nil
	}
	db := f.database(req.Event.UserID)
	if exact, ok, err := f.Entities.GetByExactKey(ctx, db, inventory.KindLocation, typed); err == nil && ok {
		tc.Location, tc.Offered = exact, nil
		return workflow.Goto(transferConfirm, tc, transferSummary(tc)), nil
	}
	choice, _ := f.Entities.Lookup(ctx, db, inventory.KindLocation, typed)
	if choice.Empty() {
		tc.Location, tc.Offered = typed, nil
		return workflow.Goto(transferConfirm, tc, transferSummary(tc)), nil
	}
	candidates := candidateValues(choice.Candidates)
	rows := optionRows(candidates, action.TransferLocation)
	rows = append(rows, keepTypedRow(typed, action.TransferLocation, action.IndexArg(len(candidates))))
	// the typed text sits after the candidates so its button resolves like any other
	tc.Offered = append(candidates, typed)
	return workflow.Goto(transferLocation, tc, dialog.Text("🔍 Did you mean:").WithButtons(rows...)), nil
}

func transferSummary(tc *store.TransferContext) dialog.Reply {
	var sb strings.Builder
	sb.WriteString("📋 Transfer summary\n\n")
	for i, eq := range tc.Items {
		fmt.Fprintf(&sb, "%d. %s %s (%s), from %s\n", i+1, eq.Type, eq.Model, eq.SerialNumber, eq.Owner())
	}
	fmt.Fprintf(&sb, "\n👤 New owner: %s", tc.NewEmployee)
	if tc.NewEmployeeDept != "" {
		fmt.Fprintf(&sb, " (%s)", tc.NewEmployeeDept)
	}
	fmt.Fprintf(&sb, "\n📍 Branch: %s\n🚪 Location: %s", tc.Branch, tc.Location)
	return dialog.Text(sb.String()).WithButtons(
		dialog.Row(dialog.Btn("✅ Confirm", action.ConfirmTransfer, ""), dialog.Btn("❌ Cancel", action.CancelTransfer, "")),
	)
}

type ownerGroup struct {
	owner string
	items []inventory.Equipment
}

// groupByOwner keeps owners in order of first appearance.
func groupByOwner(items []inventory.Equipment) []ownerGroup {
	var groups []ownerGroup
	index := make(map[string]int)
	for _, eq := range items {
		owner := eq.Owner()
		i, ok := index[owner]
		if !ok {
			i = len(groups)
			index[owner] = i
			groups = append(groups, ownerGroup{owner: owner})
		}
		groups[i].items = append(groups[i].items, eq)
	}
	return groups
}

func (f *Flows) transferExecute(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	tc := req.Session.Context.(*store.TransferContext)
	userID := req.Event.UserID
	db := f.database(userID)

	batch := &acts.Batch{NewEmployee: tc.NewEmployee, NewEmployeeDept: tc.NewEmployeeDept, SourceDBName: db}
	discard := func() {
		for _, p := range batch.Paths() {
			f.Remover.Remove(ctx, p)
		}
	}

	for _, g := range groupByOwner(tc.Items) {
		doc, err := f.Documents.Generate(ctx, docgen.ActSpec{
			OldEmployee:     g.owner,
			NewEmployee:     tc.NewEmployee,
			NewEmployeeDept: tc.NewEmployeeDept,
			Branch:          tc.Branch,
			Location:        tc.Location,
			DBName:          db,
			Items:           g.items,
		})
		if err != nil {
			discard()
			f.Logger.Error("Transfer", "Act generation failed", map[string]interface{}{
				"user_id": userID,
				"owner":   g.owner,
				"error":   err,
			})
			return workflow.Finish(dialog.Text("⚠️ Could not generate the transfer acts. Nothing was transferred.").
				WithButtons(dialog.BackToMainRow())), nil
		}
		batch.Acts = append(batch.Acts, acts.Act{
			OldEmployee:    g.owner,
			EquipmentCount: len(g.items),
			DocumentPath:   doc.Path,
			Filename:       doc.Filename,
		})
		batch.TotalEquipment += len(g.items)
	}

	serials := make([]string, 0, len(tc.Items))
	items := make([]records.TransferItem, 0, len(tc.Items))
	for _, eq := range tc.Items {
		serials = append(serials, eq.SerialNumber)
		items = append(items, records.TransferItem{Serial: eq.SerialNumber, Type: eq.Type, Model: eq.Model, OldEmployee: eq.Owner()})
	}

	err := f.Datastore.TransferEquipment(ctx, db, inventory.TransferRequest{
		Serials:     serials,
		NewEmployee: tc.NewEmployee,
		Department:  tc.NewEmployeeDept,
		Branch:      tc.Branch,
		Location:    tc.Location,
	})
	if err != nil {
		discard()
		f.Logger.Error("Transfer", "Datastore transfer failed", map[string]interface{}{
			"user_id": userID,
			"serials": serials,
			"error":   err,
		})
		return workflow.Reprompt(dialog.Text("⚠️ The database rejected the transfer. Nothing was changed; confirm again to retry.").
			WithButtons(dialog.Row(dialog.Btn("🔄 Retry", action.ConfirmTransfer, ""), dialog.Btn("❌ Cancel", action.CancelTransfer, "")))), nil
	}

	filenames := make([]string, 0, len(batch.Acts))
	for _, a := range batch.Acts {
		filenames = append(filenames, a.Filename)
	}
	if _, err := f.Records.AppendTransfer(ctx, records.Transfer{
		NewEmployee:     tc.NewEmployee,
		NewEmployeeDept: tc.NewEmployeeDept,
		Branch:          tc.Branch,
		Location:        tc.Location,
		Items:           items,
		Acts:            filenames,
		DBName:          db,
		UserID:          userID,
	}); err != nil {
		f.Logger.Error("Transfer", "Failed to append transfer record", map[string]interface{}{
			"user_id": userID,
			"error":   err,
		})
	}
	f.Entities.Invalidate(db, inventory.KindEmployee)
	f.emit(ctx, events.TransferCompleted(userID, db, tc.NewEmployee, serials, len(batch.Acts)))

	// a batch from an earlier transfer that was never delivered is skipped
	if old := req.Session.Pending; old != nil {
		f.Logger.Info("Transfer", "Skipping undelivered acts of a previous transfer", map[string]interface{}{
			"user_id": userID,
			"acts":    len(old.Batch.Paths()),
		})
		f.Release(ctx, userID, old)
	}

	f.Logger.Info("Transfer", "Transfer completed", map[string]interface{}{
		"user_id":      userID,
		"db":           db,
		"new_employee": tc.NewEmployee,
		"items":        len(serials),
		"acts":         len(batch.Acts),
	})

	return workflow.Outcome{
		Next:    workflow.Terminal,
		Replies: []dialog.Reply{transferDoneReply(batch)},
		Park:    &store.PendingInput{Kind: store.PendingActDelivery, Batch: batch},
	}, nil
}

func transferDoneReply(b *acts.Batch) dialog.Reply {
	var sb strings.Builder
	fmt.Fprintf(&sb, "✅ %d device(s) transferred to %s.\n\n📄 Acts generated: %d\n", b.TotalEquipment, b.NewEmployee, len(b.Acts))
	for i, a := range b.Acts {
		fmt.Fprintf(&sb, "%d. From %s (%d units)\n", i+1, a.OldEmployee, a.EquipmentCount)
	}
	sb.WriteString("\nHow should the acts be delivered?")
	return dialog.Text(sb.String()).WithButtons(actButtons()...)
}

func actButtons() [][]dialog.Button {
	return [][]dialog.Button{
		dialog.Row(dialog.Btn("📧 Send to previous owners", action.ActEmailOwners, "")),
		dialog.Row(dialog.Btn("✉️ Enter email manually", action.ActEmail, "")),
		dialog.Row(dialog.Btn("⏭ Skip", action.ActSkip, "")),
	}
}
