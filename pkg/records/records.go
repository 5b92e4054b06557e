// Package records defines the append-only operational records written by the
// dialogue workflows and the store contract that persists them.
package records

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrDuplicateSerial = errors.New("serial already registered")

// Unfound is equipment seen on site but missing from the inventory database.
type Unfound struct {
	ID          string    `json:"id"`
	Serial      string    `json:"serial_number" validate:"required,max=50"`
	Employee    string    `json:"employee" validate:"required,max=100"`
	Type        string    `json:"type" validate:"required"`
	Model       string    `json:"model" validate:"required"`
	Description string    `json:"description,omitempty" validate:"max=500"`
	Inventory   string    `json:"inventory_number,omitempty" validate:"max=30"`
	IP          string    `json:"ip_address,omitempty" validate:"omitempty,ip"`
	Branch      string    `json:"branch,omitempty"`
	Location    string    `json:"location,omitempty"`
	Status      string    `json:"status,omitempty"`
	DBName      string    `json:"db_name"`
	UserID      string    `json:"user_id"`
	CreatedAt   time.Time `json:"timestamp"`
}

type TransferItem struct {
	Serial      string `json:"serial_number"`
	Type        string `json:"type,omitempty"`
	Model       string `json:"model,omitempty"`
	OldEmployee string `json:"old_employee"`
}

type Transfer struct {
	ID              string         `json:"id"`
	NewEmployee     string         `json:"new_employee" validate:"required"`
	NewEmployeeDept string         `json:"new_employee_dept,omitempty"`
	Branch          string         `json:"branch,omitempty"`
	Location        string         `json:"location,omitempty"`
	Items           []TransferItem `json:"items" validate:"required,min=1"`
	Acts            []string       `json:"acts,omitempty"`
	DBName          string         `json:"db_name"`
	UserID          string         `json:"user_id"`
	CreatedAt       time.Time      `json:"timestamp"`
}

type WorkKind string

const (
	WorkBattery   WorkKind = "battery_replacement"
	WorkCleaning  WorkKind = "pc_cleaning"
	WorkComponent WorkKind = "component_replacement"
	WorkCartridge WorkKind = "cartridge"
)

// Valid reports whether k is one of the known work types.
func (k WorkKind) Valid() bool {
	switch k {
	case WorkBattery, WorkCleaning, WorkComponent, WorkCartridge:
		return true
	}
	return false
}

// NeedsSerial is true for work logged against one device.
func (k WorkKind) NeedsSerial() bool {
	return k != WorkCartridge
}

func (k WorkKind) Title() string {
	switch k {
	case WorkBattery:
		return "UPS battery replacement"
	case WorkCleaning:
		return "PC cleaning"
	case WorkComponent:
		return "Component replacement"
	case WorkCartridge:
		return "Cartridge replacement"
	}
	return string(k)
}

// Work is one maintenance action. Device fields are empty for cartridges,
// printer fields for everything else.
type Work struct {
	ID           string    `json:"id"`
	Kind         WorkKind  `json:"work_type" validate:"required"`
	Serial       string    `json:"serial_number,omitempty"`
	Type         string    `json:"type,omitempty"`
	Model        string    `json:"model,omitempty"`
	Employee     string    `json:"employee,omitempty"`
	Branch       string    `json:"branch,omitempty"`
	Location     string    `json:"location,omitempty"`
	PrinterModel string    `json:"printer_model,omitempty"`
	Color        string    `json:"cartridge_color,omitempty"`
	Component    string    `json:"component_type,omitempty"`
	DBName       string    `json:"db_name"`
	UserID       string    `json:"user_id"`
	CreatedAt    time.Time `json:"timestamp"`
}

// Store persists records. Implementations assign ID and CreatedAt when empty.
type Store interface {
	SaveUnfound(ctx context.Context, rec Unfound) (Unfound, error)
	AppendTransfer(ctx context.Context, rec Transfer) (Transfer, error)
	AppendWork(ctx context.Context, rec Work) (Work, error)
}

// Selections remembers which database each user works with.
type Selections interface {
	Selected(userID string) (string, bool)
	Select(userID, db string) error
}

// Stamp fills ID and CreatedAt when they are unset.
func Stamp(id *string, at *time.Time, now time.Time) {
	if *id == "" {
		*id = uuid.NewString()
	}
	if at.IsZero() {
		*at = now
	}
}
