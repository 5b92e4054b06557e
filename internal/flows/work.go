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
	"inventory-assistant-be/pkg/serial"
	"inventory-assistant-be/pkg/store"
	"inventory-assistant-be/pkg/suggest"
	"inventory-assistant-be/pkg/validation"
)

const (
	workType      store.State = "work.type"
	workSerial    store.State = "work.serial"
	workComponent store.State = "work.component"
	workBranch    store.State = "work.branch"
	workLocation  store.State = "work.location"
	workModel     store.State = "work.model"
	workColor     store.State = "work.color"
	workConfirm   store.State = "work.confirm"
)

var (
	cartridgeColors = []string{"Black", "Cyan", "Magenta", "Yellow"}
	componentTypes  = []string{"Power supply", "RAM", "Hard drive", "SSD", "Motherboard", "Cooler", "Keyboard", "Mouse", "Other"}
	workKinds       = []records.WorkKind{records.WorkBattery, records.WorkCleaning, records.WorkComponent, records.WorkCartridge}
)

func (f *Flows) workWorkflow() *workflow.Definition {
	return &workflow.Definition{
		Name: store.WorkflowWork,
		Entries: []workflow.Entry{
			{
				Name:  "work",
				Match: onEntry("work", dialog.MenuWork),
				Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
					return workflow.Goto(workType, &store.WorkContext{}, workTypeMenu()), nil
				},
			},
			{
				// "log another" buttons on the success screen
				Name:   "work_again",
				Match:  onAction(action.Work),
				Handle: f.workSelectType,
			},
		},
		States: map[store.State][]workflow.Transition{
			workType: {
				{Name: "type", Match: onAction(action.Work), Handle: f.workSelectType},
			},
			workSerial: {
				{Name: "serial", Match: onSerialInput, Handle: f.workDevice},
			},
			workComponent: {
				{Name: "component", Match: onAction(action.Component), Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					wc := req.Session.Context.(*store.WorkContext)
					if !contains(componentTypes, req.Event.Action.Arg) {
						return workflow.Reprompt(staleButton()), nil
					}
					wc.Component = req.Event.Action.Arg
					return workflow.Goto(workConfirm, wc, workSummary(wc)), nil
				}},
			},
			workBranch: {
				{Name: "pick", Match: onAction(action.WorkBranch), Handle: func(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
					wc := req.Session.Context.(*store.WorkContext)
					wc.Branch = req.Event.Action.Arg
					return f.toWorkLocation(ctx, req, wc), nil
				}},
				{Name: "name", Match: onFreeText, Handle: f.workBranchName},
			},
			workLocation: {
				{Name: "pick", Match: onAction(action.WorkLocation), Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					wc := req.Session.Context.(*store.WorkContext)
					loc, ok := offered(req.Event, wc.Offered)
					if !ok {
						return workflow.Reprompt(staleButton()), nil
					}
					wc.Location = loc
					return toWorkModel(wc), nil
				}},
				{Name: "name", Match: onFreeText, Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					wc := req.Session.Context.(*store.WorkContext)
					loc := validation.SanitizeInput(req.Event.Text, 100)
					if loc == "" {
						return workflow.Reprompt(dialog.Text("❌ Enter the location.")), nil
					}
					wc.Location = loc
					return toWorkModel(wc), nil
				}},
			},
			workModel: {
				{Name: "pick", Match: onAction(action.WorkModel), Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					wc := req.Session.Context.(*store.WorkContext)
					m, ok := offered(req.Event, wc.Offered)
					if !ok {
						return workflow.Reprompt(staleButton()), nil
					}
					wc.PrinterModel = m
					return toWorkColor(wc), nil
				}},
				{Name: "name", Match: onFreeText, Handle: f.workModelName},
			},
			workColor: {
				{Name: "color", Match: onAction(action.CartridgeColor), Handle: func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
					wc := req.Session.Context.(*store.WorkContext)
					if !contains(cartridgeColors, req.Event.Action.Arg) {
						return workflow.Reprompt(staleButton()), nil
					}
					wc.Color = req.Event.Action.Arg
					return workflow.Goto(workConfirm, wc, workSummary(wc)), nil
				}},
			},
			workConfirm: {
				{Name: "confirm", Match: onAction(action.ConfirmWork), Handle: f.workSave, Terminal: true},
			},
		},
		Fallbacks: []workflow.Transition{
			{
				Name:  "cancel",
				Match: onAction(action.CancelWork),
				Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
					return workflow.Finish(dialog.Text("❌ Work log cancelled.").WithMainMenu()), nil
				},
			},
			backToMain(),
		},
	}
}

func contains(list []string, v string) bool {
	for _, it := range list {
		if it == v {
			return true
		}
	}
	return false
}

func workTypeMenu() dialog.Reply {
	var rows [][]dialog.Button
	for _, k := range workKinds {
		rows = append(rows, dialog.Row(dialog.Btn(k.Title(), action.Work, string(k))))
	}
	rows = append(rows, dialog.BackToMainRow())
	return dialog.Text("🔧 What kind of work was done?").WithButtons(rows...)
}

func (f *Flows) workSelectType(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	kind := records.WorkKind(req.Event.Action.Arg)
	if !kind.Valid() {
		return workflow.Goto(workType, &store.WorkContext{}, workTypeMenu()), nil
	}
	wc := &store.WorkContext{Type: string(kind)}
	if kind.NeedsSerial() {
		return workflow.Goto(workSerial, wc, dialog.Text("🔢 "+kind.Title()+": send the serial number or a photo of the label.").
			WithButtons(dialog.Row(dialog.Btn("❌ Cancel", action.CancelWork, "")))), nil
	}

	reply := dialog.Text("📍 " + kind.Title() + ": choose or type the branch.")
	branches, err := f.Entities.List(ctx, f.database(req.Event.UserID), inventory.KindBranch)
	if err == nil && len(branches) > 0 {
		reply = reply.WithButtons(valueRows(suggest.Paginate(branches, 0, suggest.DefaultLimit).Items, action.WorkBranch)...)
	}
	return workflow.Goto(workBranch, wc, reply), nil
}

func (f *Flows) workDevice(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	wc := req.Session.Context.(*store.WorkContext)
	sn, problem := f.readSerial(ctx, req.Event)
	if problem != nil {
		return workflow.Reprompt(*problem), nil
	}
	match, err := serial.Lookup(ctx, f.Datastore, f.database(req.Event.UserID), sn)
	if errors.Is(err, inventory.ErrNotFound) {
		return workflow.Reprompt(dialog.Text("❌ " + sn + " was not found. Check the serial number and send it again.")), nil
	}
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("work lookup %s: %w", sn, err)
	}

	wc.Serial, wc.Equipment = match.Serial, match.Equipment
	if records.WorkKind(wc.Type) == records.WorkComponent {
		return workflow.Goto(workComponent, wc, dialog.Text("🔩 Which component was replaced?").
			WithButtons(valueRows(componentTypes, action.Component)...)), nil
	}
	return workflow.Goto(workConfirm, wc, workSummary(wc)), nil
}

func (f *Flows) workBranchName(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	wc := req.Session.Context.(*store.WorkContext)
	typed := validation.SanitizeInput(req.Event.Text, 100)
	if typed == "" {
		return workflow.Reprompt(dialog.Text("❌ Enter the branch name.")), nil
	}
	db := f.database(req.Event.UserID)
	if exact, ok, err := f.Entities.GetByExactKey(ctx, db, inventory.KindBranch, typed); err == nil && ok {
		wc.Branch = exact
		return f.toWorkLocation(ctx, req, wc), nil
	}
	choice, _ := f.Entities.Lookup(ctx, db, inventory.KindBranch, typed)
	if choice.Empty() {
		wc.Branch = typed
		return f.toWorkLocation(ctx, req, wc), nil
	}
	rows := valueRows(candidateValues(choice.Candidates), action.WorkBranch)
	rows = append(rows, keepTypedRow(typed, action.WorkBranch, typed))
	return workflow.Goto(workBranch, wc, dialog.Text("🔍 Did you mean:").WithButtons(rows...)), nil
}

func (f *Flows) toWorkLocation(ctx context.Context, req *workflow.Request, wc *store.WorkContext) workflow.Outcome {
	wc.Offered = nil
	reply := dialog.Text("🚪 Branch: " + wc.Branch + ". Choose or type the location.")
	locations, err := f.Entities.List(ctx, f.database(req.Event.UserID), inventory.KindLocation)
	if err == nil && len(locations) > 0 {
		wc.Offered = suggest.Paginate(locations, 0, suggest.DefaultLimit).Items
		reply = reply.WithButtons(optionRows(wc.Offered, action.WorkLocation)...)
	}
	return workflow.Goto(workLocation, wc, reply)
}

func toWorkModel(wc *store.WorkContext) workflow.Outcome {
	wc.Offered, wc.Query = nil, ""
	return workflow.Goto(workModel, wc, dialog.Text("🖨 Enter the printer model."))
}

func (f *Flows) workModelName(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	wc := req.Session.Context.(*store.WorkContext)
	typed := validation.SanitizeInput(req.Event.Text, 200)
	if typed == "" {
		return workflow.Reprompt(dialog.Text("❌ Enter the printer model.")), nil
	}
	if wc.Query != "" && strings.EqualFold(wc.Query, typed) {
		wc.PrinterModel = typed
		return toWorkColor(wc), nil
	}
	choice, _ := f.Entities.Lookup(ctx, f.database(req.Event.UserID), inventory.KindModel, typed)
	if choice.Empty() {
		wc.PrinterModel = typed
		return toWorkColor(wc), nil
	}
	wc.Query, wc.Offered = typed, candidateValues(choice.Candidates)
	return workflow.Goto(workModel, wc, dialog.Text("🔍 Did you mean one of these? Send the same text again to keep it as typed.").
		WithButtons(optionRows(wc.Offered, action.WorkModel)...)), nil
}

func toWorkColor(wc *store.WorkContext) workflow.Outcome {
	wc.Offered, wc.Query = nil, ""
	return workflow.Goto(workColor, wc, dialog.Text("🎨 Which cartridge color?").
		WithButtons(valueRows(cartridgeColors, action.CartridgeColor)...))
}

func workSummary(wc *store.WorkContext) dialog.Reply {
	kind := records.WorkKind(wc.Type)
	var sb strings.Builder
	fmt.Fprintf(&sb, "📋 %s\n\n", kind.Title())
	if kind.NeedsSerial() {
		sb.WriteString(equipmentCard(wc.Equipment, wc.Serial))
		if wc.Component != "" {
			fmt.Fprintf(&sb, "\n🔩 Component: %s", wc.Component)
		}
	} else {
		fmt.Fprintf(&sb, "📍 Branch: %s\n🚪 Location: %s\n🖨 Printer: %s\n🎨 Color: %s", wc.Branch, wc.Location, wc.PrinterModel, wc.Color)
	}
	return dialog.Text(sb.String()).WithButtons(
		dialog.Row(dialog.Btn("✅ Save", action.ConfirmWork, ""), dialog.Btn("❌ Cancel", action.CancelWork, "")),
	)
}

func (f *Flows) workSave(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	wc := req.Session.Context.(*store.WorkContext)
	kind := records.WorkKind(wc.Type)
	db := f.database(req.Event.UserID)

	rec := records.Work{
		Kind:         kind,
		Serial:       wc.Serial,
		Branch:       wc.Branch,
		Location:     wc.Location,
		PrinterModel: wc.PrinterModel,
		Color:        wc.Color,
		Component:    wc.Component,
		DBName:       db,
		UserID:       req.Event.UserID,
	}
	if eq := wc.Equipment; eq != nil {
		rec.Type, rec.Model, rec.Employee = eq.Type, eq.Model, eq.Employee
		if rec.Branch == "" {
			rec.Branch, rec.Location = eq.Branch, eq.Location
		}
	}
	if _, err := f.Records.AppendWork(ctx, rec); err != nil {
		return workflow.Outcome{}, fmt.Errorf("append %s record: %w", kind, err)
	}

	f.emit(ctx, events.WorkLogged(req.Event.UserID, db, string(kind)))
	return workflow.Finish(dialog.Text("✅ "+kind.Title()+" saved.").WithButtons(
		dialog.Row(dialog.Btn("🔁 Log another", action.Work, string(kind))),
		dialog.BackToMainRow(),
	)), nil
}
