package flows

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/events"
	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/records"
	"inventory-assistant-be/pkg/store"
	"inventory-assistant-be/pkg/suggest"
	"inventory-assistant-be/pkg/validation"
)

const (
	unfoundConfirm store.State = "unfound.confirm"
	unfoundEdit    store.State = "unfound.edit"
)

// formField is one question of the unfound intake form.
type formField struct {
	name      string
	title     string
	prompt    string
	skippable bool
	// kind enables suggestions from the entity cache.
	kind inventory.EntityKind
	pick action.Kind
	// quickPicks lists the first entries of the catalogue with the prompt.
	quickPicks bool
	value      func(*store.UnfoundForm) *string
	parse      func(string) (string, error)
}

func (fd formField) state() store.State {
	return store.State("unfound." + fd.name)
}

func sanitized(max int) func(string) (string, error) {
	return func(s string) (string, error) {
		s = validation.SanitizeInput(s, max)
		if s == "" {
			return "", errors.New("empty value")
		}
		return s, nil
	}
}

var unfoundFields = []formField{
	{
		name: "serial", title: "Serial number", prompt: "🔢 Enter the serial number.",
		value: func(f *store.UnfoundForm) *string { return &f.Serial },
		parse: validation.ValidateSerial,
	},
	{
		name: "employee", title: "Employee", prompt: "👤 Who uses this equipment? Enter the employee's name.",
		kind: inventory.KindEmployee, pick: action.UnfoundEmployee,
		value: func(f *store.UnfoundForm) *string { return &f.Employee },
		parse: validation.ValidateEmployeeName,
	},
	{
		name: "type", title: "Type", prompt: "📦 Enter the equipment type.",
		kind: inventory.KindType, pick: action.UnfoundType, quickPicks: true,
		value: func(f *store.UnfoundForm) *string { return &f.Type },
		parse: sanitized(100),
	},
	{
		name: "model", title: "Model", prompt: "💻 Enter the model.",
		kind: inventory.KindModel, pick: action.UnfoundModel,
		value: func(f *store.UnfoundForm) *string { return &f.Model },
		parse: sanitized(200),
	},
	{
		name: "description", title: "Description", prompt: "📝 Add a description.", skippable: true,
		value: func(f *store.UnfoundForm) *string { return &f.Description },
		parse: sanitized(500),
	},
	{
		name: "inventory", title: "Inventory number", prompt: "🏷 Enter the inventory number.", skippable: true,
		value: func(f *store.UnfoundForm) *string { return &f.Inventory },
		parse: validation.ValidateInventoryNumber,
	},
	{
		name: "ip", title: "IP address", prompt: "🌐 Enter the IP address.", skippable: true,
		value: func(f *store.UnfoundForm) *string { return &f.IP },
		parse: validation.ValidateIP,
	},
	{
		name: "branch", title: "Branch", prompt: "📍 Enter the branch.", skippable: true,
		kind: inventory.KindBranch, pick: action.UnfoundBranch, quickPicks: true,
		value: func(f *store.UnfoundForm) *string { return &f.Branch },
		parse: sanitized(100),
	},
	{
		name: "location", title: "Location", prompt: "🚪 Enter the location (room).", skippable: true,
		kind: inventory.KindLocation, pick: action.UnfoundLocation, quickPicks: true,
		value: func(f *store.UnfoundForm) *string { return &f.Location },
		parse: sanitized(100),
	},
	{
		name: "status", title: "Status", prompt: "📊 Enter the status.", skippable: true,
		kind: inventory.KindStatus, pick: action.UnfoundStatus, quickPicks: true,
		value: func(f *store.UnfoundForm) *string { return &f.Status },
		parse: sanitized(100),
	},
}

func fieldByName(name string) (int, formField, bool) {
	for i, fd := range unfoundFields {
		if fd.name == name {
			return i, fd, true
		}
	}
	return 0, formField{}, false
}

func (f *Flows) unfoundWorkflow() *workflow.Definition {
	states := make(map[store.State][]workflow.Transition, len(unfoundFields)+2)
	for i, fd := range unfoundFields {
		states[fd.state()] = f.fieldTransitions(i, fd)
	}
	states[unfoundConfirm] = []workflow.Transition{
		{Name: "confirm", Match: onAction(action.ConfirmUnfound), Handle: f.unfoundSave, Terminal: true},
		{Name: "edit", Match: onAction(action.EditUnfound), Handle: unfoundEditMenu},
	}
	states[unfoundEdit] = []workflow.Transition{
		{Name: "edit_field", Match: onAction(action.EditField), Handle: f.unfoundEditField},
	}

	return &workflow.Definition{
		Name: store.WorkflowUnfound,
		Entries: []workflow.Entry{{
			Name:  "unfound",
			Match: onEntry("unfound", dialog.MenuUnfound),
			Handle: func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
				uc := &store.UnfoundContext{}
				return workflow.Goto(unfoundFields[0].state(), uc,
					dialog.Text("📝 Registering equipment missing from the database."),
					f.fieldPrompt(ctx, req.Event.UserID, unfoundFields[0], uc)), nil
			},
		}},
		States: states,
		Fallbacks: []workflow.Transition{
			{
				Name:  "back_to_confirmation",
				Match: onAction(action.BackToConfirmation),
				Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					uc := req.Session.Context.(*store.UnfoundContext)
					uc.Editing, uc.Offered, uc.Query = false, nil, ""
					return workflow.Goto(unfoundConfirm, uc, unfoundSummary(uc)), nil
				},
			},
			{
				Name:  "cancel",
				Match: onAction(action.CancelUnfound),
				Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
					return workflow.Finish(dialog.Text("❌ Registration cancelled.").WithMainMenu()), nil
				},
			},
			backToMain(),
		},
		Seeded: func(ctx context.Context, req *workflow.Request, seed workflow.Seed) (workflow.Outcome, error) {
			s, ok := seed.(workflow.UnfoundSeed)
			if !ok {
				return workflow.Outcome{}, fmt.Errorf("unexpected seed %T", seed)
			}
			uc := &store.UnfoundContext{Form: store.UnfoundForm{Serial: s.Serial}}
			_, next, _ := fieldByName("employee")
			return workflow.Goto(next.state(), uc,
				dialog.Text("📝 Registering unfound equipment with serial "+s.Serial+"."),
				f.fieldPrompt(ctx, req.Event.UserID, next, uc)), nil
		},
	}
}

func (f *Flows) fieldTransitions(i int, fd formField) []workflow.Transition {
	var ts []workflow.Transition
	if fd.skippable {
		ts = append(ts, workflow.Transition{
			Name: "skip_" + fd.name,
			Match: func(ev *dialog.Event) bool {
				return ev.IsAction(action.SkipField) && ev.Action.Arg == fd.name
			},
			Handle: func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
				uc := req.Session.Context.(*store.UnfoundContext)
				*fd.value(&uc.Form) = ""
				return f.advance(ctx, req, i, uc), nil
			},
		})
	}
	if fd.name == "employee" {
		ts = append(ts,
			workflow.Transition{Name: "employee_pick", Match: onAction(action.UnfoundEmployee), Handle: f.unfoundEmployeeAction(i, fd)},
			workflow.Transition{Name: "create_new_employee", Match: onAction(action.CreateNewEmployee), Handle: f.acceptQuery(i, fd)},
			workflow.Transition{
				Name:  "retry_employee_input",
				Match: onAction(action.RetryEmployeeInput),
				Handle: func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
					uc := req.Session.Context.(*store.UnfoundContext)
					uc.Offered, uc.Query = nil, ""
					return workflow.Goto(fd.state(), uc, f.fieldPrompt(ctx, req.Event.UserID, fd, uc)), nil
				},
			},
		)
	} else if fd.kind != "" {
		ts = append(ts, workflow.Transition{
			Name:  "pick_" + fd.name,
			Match: onAction(fd.pick),
			Handle: func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
				uc := req.Session.Context.(*store.UnfoundContext)
				v, ok := offered(req.Event, uc.Offered)
				if !ok {
					return workflow.Reprompt(staleButton()), nil
				}
				*fd.value(&uc.Form) = v
				return f.advance(ctx, req, i, uc), nil
			},
		})
	}
	ts = append(ts, workflow.Transition{
		Name:  "input_" + fd.name,
		Match: onFreeText,
		Handle: func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
			return f.fieldInput(ctx, req, i, fd)
		},
	})
	return ts
}

func (f *Flows) fieldInput(ctx context.Context, req *workflow.Request, i int, fd formField) (workflow.Outcome, error) {
	uc := req.Session.Context.(*store.UnfoundContext)
	v, err := fd.parse(req.Event.Text)
	if err != nil {
		return workflow.Reprompt(dialog.Text("❌ Invalid " + strings.ToLower(fd.title) + ". Please try again.")), nil
	}
	if fd.kind == "" {
		*fd.value(&uc.Form) = v
		return f.advance(ctx, req, i, uc), nil
	}

	db := f.database(req.Event.UserID)
	if exact, ok, err := f.Entities.GetByExactKey(ctx, db, fd.kind, v); err == nil && ok {
		*fd.value(&uc.Form) = exact
		return f.advance(ctx, req, i, uc), nil
	}
	// the same text twice means the user insists on it
	if uc.Query != "" && strings.EqualFold(uc.Query, v) && fd.name != "employee" {
		*fd.value(&uc.Form) = v
		return f.advance(ctx, req, i, uc), nil
	}

	choice, err := f.Entities.Lookup(ctx, db, fd.kind, v)
	if err != nil {
		f.Logger.Warn("Unfound", "Suggestions unavailable", map[string]interface{}{
			"user_id": req.Event.UserID,
			"field":   fd.name,
			"error":   err.Error(),
		})
	}
	return f.offerChoice(ctx, req, fd, uc, v, choice, err)
}

// offerChoice renders suggestions for a typed value, or the create-new branch
// when nothing matched.
func (f *Flows) offerChoice(ctx context.Context, req *workflow.Request, fd formField, uc *store.UnfoundContext, typed string, choice suggest.Choice, lookupErr error) (workflow.Outcome, error) {
	uc.Query = typed
	if fd.name == "employee" {
		if choice.Empty() {
			uc.Offered = nil
			reply := dialog.Text(fmt.Sprintf("🤷 No employee matches %q.", typed)).WithButtons(
				dialog.Row(dialog.Btn("➕ Use "+typed+" as a new employee", action.CreateNewEmployee, "")),
				dialog.Row(dialog.Btn("✏️ Enter again", action.RetryEmployeeInput, "")),
			)
			return workflow.Goto(fd.state(), uc, reply), nil
		}
		uc.Offered = candidateValues(choice.Candidates)
		reply := dialog.Text("👥 Pick the employee:").
			WithButtons(optionRows(uc.Offered, action.UnfoundEmployee)...).
			WithButtons(dialog.Row(
				dialog.Btn("✏️ Keep as typed", action.UnfoundEmployee, "manual"),
				dialog.Btn("🔄 Refresh", action.UnfoundEmployee, "refresh"),
			))
		return workflow.Goto(fd.state(), uc, reply), nil
	}

	if choice.Empty() {
		// nothing similar in the catalogue: accept the new value
		*fd.value(&uc.Form) = typed
		uc.Query = ""
		note := dialog.Text(fmt.Sprintf("🆕 %q is new and will be saved as typed.", typed))
		if lookupErr != nil {
			note = dialog.Text(fmt.Sprintf("ℹ️ Suggestions are unavailable; %q will be saved as typed.", typed))
		}
		i, _, _ := fieldByName(fd.name)
		out := f.advance(ctx, req, i, uc)
		out.Replies = append([]dialog.Reply{note}, out.Replies...)
		return out, nil
	}

	uc.Offered = candidateValues(choice.Candidates)
	reply := dialog.Text("🔍 Did you mean one of these? Send the same text again to keep it as typed.").
		WithButtons(optionRows(uc.Offered, fd.pick)...)
	if fd.skippable {
		reply = reply.WithButtons(dialog.Row(dialog.Btn("⏭ Skip", action.SkipField, fd.name)))
	}
	return workflow.Goto(fd.state(), uc, reply), nil
}

func (f *Flows) unfoundEmployeeAction(i int, fd formField) workflow.Handler {
	return func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
		uc := req.Session.Context.(*store.UnfoundContext)
		switch req.Event.Action.Arg {
		case "manual":
			return f.acceptQuery(i, fd)(ctx, req)
		case "refresh":
			if uc.Query == "" {
				return workflow.Goto(fd.state(), uc, f.fieldPrompt(ctx, req.Event.UserID, fd, uc)), nil
			}
			db := f.database(req.Event.UserID)
			f.Entities.Invalidate(db, inventory.KindEmployee)
			choice, err := f.Entities.Lookup(ctx, db, inventory.KindEmployee, uc.Query)
			return f.offerChoice(ctx, req, fd, uc, uc.Query, choice, err)
		}
		v, ok := offered(req.Event, uc.Offered)
		if !ok {
			return workflow.Reprompt(staleButton()), nil
		}
		uc.Form.Employee = v
		return f.advance(ctx, req, i, uc), nil
	}
}

// acceptQuery stores the last typed value as is.
func (f *Flows) acceptQuery(i int, fd formField) workflow.Handler {
	return func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
		uc := req.Session.Context.(*store.UnfoundContext)
		if uc.Query == "" {
			return workflow.Reprompt(f.fieldPrompt(ctx, req.Event.UserID, fd, uc)), nil
		}
		*fd.value(&uc.Form) = uc.Query
		return f.advance(ctx, req, i, uc), nil
	}
}

// advance moves to the next question, or back to the summary when a single
// field was being edited.
func (f *Flows) advance(ctx context.Context, req *workflow.Request, i int, uc *store.UnfoundContext) workflow.Outcome {
	uc.Offered, uc.Query = nil, ""
	if uc.Editing || i+1 >= len(unfoundFields) {
		uc.Editing = false
		return workflow.Goto(unfoundConfirm, uc, unfoundSummary(uc))
	}
	next := unfoundFields[i+1]
	return workflow.Goto(next.state(), uc, f.fieldPrompt(ctx, req.Event.UserID, next, uc))
}

// fieldPrompt asks for fd. Quick picks are stored in uc.Offered.
func (f *Flows) fieldPrompt(ctx context.Context, userID string, fd formField, uc *store.UnfoundContext) dialog.Reply {
	reply := dialog.Text(fd.prompt)
	uc.Offered = nil
	if fd.quickPicks {
		items, err := f.Entities.List(ctx, f.database(userID), fd.kind)
		if err == nil && len(items) > 0 {
			uc.Offered = suggest.Paginate(items, 0, suggest.PageSize).Items
			reply = reply.WithButtons(optionRows(uc.Offered, fd.pick)...)
		}
	}
	if fd.skippable {
		reply = reply.WithButtons(dialog.Row(dialog.Btn("⏭ Skip", action.SkipField, fd.name)))
	}
	if uc.Editing {
		reply = reply.WithButtons(dialog.Row(dialog.Btn("↩️ Back to summary", action.BackToConfirmation, "")))
	} else {
		reply = reply.WithButtons(dialog.Row(dialog.Btn("❌ Cancel", action.CancelUnfound, "")))
	}
	return reply
}

func unfoundSummary(uc *store.UnfoundContext) dialog.Reply {
	var sb strings.Builder
	sb.WriteString("📋 Please check the details:\n\n")
	for _, fd := range unfoundFields {
		v := *fd.value(&uc.Form)
		if v == "" {
			v = "not set"
		}
		fmt.Fprintf(&sb, "%s: %s\n", fd.title, v)
	}
	return dialog.Text(strings.TrimRight(sb.String(), "\n")).WithButtons(
		dialog.Row(dialog.Btn("✅ Save", action.ConfirmUnfound, "")),
		dialog.Row(dialog.Btn("✏️ Edit", action.EditUnfound, ""), dialog.Btn("❌ Cancel", action.CancelUnfound, "")),
	)
}

func unfoundEditMenu(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
	uc := req.Session.Context.(*store.UnfoundContext)
	var rows [][]dialog.Button
	for _, fd := range unfoundFields {
		rows = append(rows, dialog.Row(dialog.Btn(fd.title, action.EditField, fd.name)))
	}
	rows = append(rows, dialog.Row(dialog.Btn("↩️ Back to summary", action.BackToConfirmation, "")))
	return workflow.Goto(unfoundEdit, uc, dialog.Text("✏️ Which field do you want to change?").WithButtons(rows...)), nil
}

func (f *Flows) unfoundEditField(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	uc := req.Session.Context.(*store.UnfoundContext)
	_, fd, ok := fieldByName(req.Event.Action.Arg)
	if !ok {
		return workflow.Reprompt(staleButton()), nil
	}
	uc.Editing = true
	return workflow.Goto(fd.state(), uc, f.fieldPrompt(ctx, req.Event.UserID, fd, uc)), nil
}

func (f *Flows) unfoundSave(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	uc := req.Session.Context.(*store.UnfoundContext)
	for _, name := range []string{"serial", "employee", "type", "model"} {
		_, fd, _ := fieldByName(name)
		if *fd.value(&uc.Form) == "" {
			uc.Editing = true
			return workflow.Goto(fd.state(), uc,
				dialog.Text("⚠️ "+fd.title+" is required."),
				f.fieldPrompt(ctx, req.Event.UserID, fd, uc)), nil
		}
	}

	db := f.database(req.Event.UserID)
	form := uc.Form
	rec, err := f.Records.SaveUnfound(ctx, records.Unfound{
		Serial:      form.Serial,
		Employee:    form.Employee,
		Type:        form.Type,
		Model:       form.Model,
		Description: form.Description,
		Inventory:   form.Inventory,
		IP:          form.IP,
		Branch:      form.Branch,
		Location:    form.Location,
		Status:      form.Status,
		DBName:      db,
		UserID:      req.Event.UserID,
	})
	if errors.Is(err, records.ErrDuplicateSerial) {
		return workflow.Finish(dialog.Text("ℹ️ Serial " + form.Serial + " is already registered as unfound.").
			WithButtons(dialog.BackToMainRow())), nil
	}
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("save unfound %s: %w", form.Serial, err)
	}

	f.Logger.Info("Unfound", "Unfound equipment registered", map[string]interface{}{
		"user_id": req.Event.UserID,
		"serial":  rec.Serial,
		"db":      db,
	})
	f.emit(ctx, events.UnfoundSaved(req.Event.UserID, db, rec.Serial))
	return workflow.Finish(dialog.Text("✅ Equipment "+rec.Serial+" saved.").WithButtons(dialog.BackToMainRow())), nil
}
