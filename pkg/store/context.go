package store

import (
	"inventory-assistant-be/pkg/inventory"
)

// WorkflowContext is the typed per-workflow data of a Session. Only the types
// in this file implement it.
type WorkflowContext interface {
	Workflow() Workflow
	Clone() WorkflowContext
	isWorkflowContext()
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	return append([]string(nil), in...)
}

func cloneEquipment(in []inventory.Equipment) []inventory.Equipment {
	if in == nil {
		return nil
	}
	return append([]inventory.Equipment(nil), in...)
}

type SearchContext struct {
	LastSerial string
}

func (*SearchContext) Workflow() Workflow { return WorkflowSearch }
func (*SearchContext) isWorkflowContext() {}
func (c *SearchContext) Clone() WorkflowContext {
	cp := *c
	return &cp
}

type EmployeeContext struct {
	Offered  []string
	Employee string
	Items    []inventory.Equipment
	Page     int
}

func (*EmployeeContext) Workflow() Workflow { return WorkflowEmployee }
func (*EmployeeContext) isWorkflowContext() {}
func (c *EmployeeContext) Clone() WorkflowContext {
	cp := *c
	cp.Offered = cloneStrings(c.Offered)
	cp.Items = cloneEquipment(c.Items)
	return &cp
}

// UnfoundForm is the record being collected for equipment missing from the database.
type UnfoundForm struct {
	Serial      string
	Employee    string
	Type        string
	Model       string
	Description string
	Inventory   string
	IP          string
	Branch      string
	Location    string
	Status      string
}

type UnfoundContext struct {
	Form UnfoundForm
	// Offered holds the labels behind the last row of suggestion buttons.
	Offered []string
	// Query is the last typed value awaiting a pick, kept so the user can
	// insist on it or register it as new.
	Query string
	// Editing returns to confirmation after a single field is changed.
	Editing bool
}

func (*UnfoundContext) Workflow() Workflow { return WorkflowUnfound }
func (*UnfoundContext) isWorkflowContext() {}
func (c *UnfoundContext) Clone() WorkflowContext {
	cp := *c
	cp.Offered = cloneStrings(c.Offered)
	return &cp
}

type TransferContext struct {
	Items           []inventory.Equipment
	Offered         []string
	NewEmployee     string
	NewEmployeeDept string
	// Candidate is a typed employee name awaiting confirmation as a new employee.
	Candidate string
	Branch    string
	Location  string
}

func (*TransferContext) Workflow() Workflow { return WorkflowTransfer }
func (*TransferContext) isWorkflowContext() {}
func (c *TransferContext) Clone() WorkflowContext {
	cp := *c
	cp.Items = cloneEquipment(c.Items)
	cp.Offered = cloneStrings(c.Offered)
	return &cp
}

type WorkContext struct {
	Type         string
	Query        string
	Serial       string
	Equipment    *inventory.Equipment
	Branch       string
	Location     string
	PrinterModel string
	Color        string
	Component    string
	Offered      []string
}

func (*WorkContext) Workflow() Workflow { return WorkflowWork }
func (*WorkContext) isWorkflowContext() {}
func (c *WorkContext) Clone() WorkflowContext {
	cp := *c
	if c.Equipment != nil {
		eq := *c.Equipment
		cp.Equipment = &eq
	}
	cp.Offered = cloneStrings(c.Offered)
	return &cp
}

type DatabaseContext struct {
	Current string
}

func (*DatabaseContext) Workflow() Workflow { return WorkflowDatabase }
func (*DatabaseContext) isWorkflowContext() {}
func (c *DatabaseContext) Clone() WorkflowContext {
	cp := *c
	return &cp
}
