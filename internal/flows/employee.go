package flows

import (
	"context"
	"fmt"
	"strings"

	"inventory-assistant-be/pkg/dialog"
	"inventory-assistant-be/pkg/dialog/action"
	"inventory-assistant-be/pkg/dialog/workflow"
	"inventory-assistant-be/pkg/inventory"
	"inventory-assistant-be/pkg/store"
	"inventory-assistant-be/pkg/suggest"
	"inventory-assistant-be/pkg/validation"
)

const (
	employeeAwaitName store.State = "employee.await_name"
	employeePick      store.State = "employee.pick"
	employeeListing   store.State = "employee.listing"

	// EmployeePageSize is the number of devices shown per page.
	EmployeePageSize = 3
)

func (f *Flows) employeeWorkflow() *workflow.Definition {
	byName := workflow.Transition{Name: "name", Match: onFreeText, Handle: f.employeeByName}

	return &workflow.Definition{
		Name: store.WorkflowEmployee,
		Entries: []workflow.Entry{{
			Name:  "employee",
			Match: onEntry("employee", dialog.MenuEmployee),
			Handle: func(context.Context, *workflow.Request) (workflow.Outcome, error) {
				return workflow.Goto(employeeAwaitName, &store.EmployeeContext{},
					dialog.Text("👤 Enter the employee's name (or part of it).").WithButtons(dialog.BackToMainRow())), nil
			},
		}},
		States: map[store.State][]workflow.Transition{
			employeeAwaitName: {byName},
			employeePick: {
				{Name: "pick", Match: onAction(action.EmployeeSearchPick), Handle: f.employeePick},
				byName,
			},
			employeeListing: {
				{Name: "prev", Match: onAction(action.EmployeePrev), Handle: f.employeeTurn(-1)},
				{Name: "next", Match: onAction(action.EmployeeNext), Handle: f.employeeTurn(1)},
				byName,
			},
		},
		Fallbacks: []workflow.Transition{backToMain()},
	}
}

func (f *Flows) employeeByName(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	name, err := validation.ValidateEmployeeName(req.Event.Text)
	if err != nil {
		return workflow.Reprompt(dialog.Text("❌ Invalid name. Use 2-100 characters without special symbols.")), nil
	}

	db := f.database(req.Event.UserID)
	if exact, ok, err := f.Entities.GetByExactKey(ctx, db, inventory.KindEmployee, name); err == nil && ok {
		return f.employeeList(ctx, req, exact)
	}

	choice, err := f.Entities.Lookup(ctx, db, inventory.KindEmployee, name)
	if err != nil {
		f.Logger.Error("Employee", "Employee lookup failed", map[string]interface{}{
			"user_id": req.Event.UserID,
			"error":   err,
		})
		return workflow.Reprompt(dialog.Text("⚠️ The database is unavailable. Please try again.")), nil
	}
	if choice.Empty() {
		return workflow.Reprompt(dialog.Text(fmt.Sprintf("🤷 No employees match %q. Try another spelling.", name)).
			WithButtons(dialog.BackToMainRow())), nil
	}

	names := candidateValues(choice.Candidates)
	reply := dialog.Text("👥 Pick the employee:").
		WithButtons(optionRows(names, action.EmployeeSearchPick)...).
		WithButtons(dialog.BackToMainRow())
	return workflow.Goto(employeePick, &store.EmployeeContext{Offered: names}, reply), nil
}

func (f *Flows) employeePick(ctx context.Context, req *workflow.Request) (workflow.Outcome, error) {
	ec := req.Session.Context.(*store.EmployeeContext)
	name, ok := offered(req.Event, ec.Offered)
	if !ok {
		return workflow.Reprompt(staleButton()), nil
	}
	return f.employeeList(ctx, req, name)
}

func (f *Flows) employeeList(ctx context.Context, req *workflow.Request, name string) (workflow.Outcome, error) {
	db := f.database(req.Event.UserID)
	items, err := f.Datastore.FindByEmployee(ctx, db, name)
	if err != nil {
		return workflow.Outcome{}, fmt.Errorf("equipment of %s: %w", name, err)
	}
	if len(items) == 0 {
		return workflow.Goto(employeeAwaitName, &store.EmployeeContext{},
			dialog.Text(fmt.Sprintf("📭 No equipment is registered to %s. Enter another name.", name))), nil
	}

	ec := &store.EmployeeContext{Employee: name, Items: items}
	return workflow.Goto(employeeListing, ec, employeePage(ec)), nil
}

func (f *Flows) employeeTurn(delta int) workflow.Handler {
	return func(_ context.Context, req *workflow.Request) (workflow.Outcome, error) {
		ec := req.Session.Context.(*store.EmployeeContext)
		ec.Page = suggest.Paginate(ec.Items, ec.Page+delta, EmployeePageSize).Number
		return workflow.Goto(employeeListing, ec, employeePage(ec)), nil
	}
}

func employeePage(ec *store.EmployeeContext) dialog.Reply {
	page := suggest.Paginate(ec.Items, ec.Page, EmployeePageSize)

	var sb strings.Builder
	fmt.Fprintf(&sb, "👤 %s: %d item(s), page %d of %d\n", ec.Employee, len(ec.Items), page.Number+1, page.TotalPages)
	for i := range page.Items {
		eq := page.Items[i]
		fmt.Fprintf(&sb, "\n%d. %s\n", page.Number*EmployeePageSize+i+1, equipmentCard(&eq, eq.SerialNumber))
	}

	var nav []dialog.Button
	if page.HasPrev {
		nav = append(nav, dialog.Btn("⬅️ Back", action.EmployeePrev, ""))
	}
	if page.HasNext {
		nav = append(nav, dialog.Btn("Next ➡️", action.EmployeeNext, ""))
	}
	reply := dialog.Text(strings.TrimRight(sb.String(), "\n"))
	if len(nav) > 0 {
		reply = reply.WithButtons(nav)
	}
	return reply.WithButtons(dialog.BackToMainRow())
}
