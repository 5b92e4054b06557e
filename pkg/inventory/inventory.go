// Package inventory holds the equipment model and the contracts of the
// collaborators the dialogue engine reads from.
package inventory

import (
	"context"
	"errors"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrNoEmailOnFile = errors.New("no email on file")
	ErrNoSerial      = errors.New("no serial number recognised")
)

// NoOwner groups equipment whose current employee is blank.
const NoOwner = "No owner"

type Equipment struct {
	SerialNumber    string `json:"serial_number"`
	InventoryNumber string `json:"inventory_number,omitempty"`
	Type            string `json:"type,omitempty"`
	Model           string `json:"model,omitempty"`
	Employee        string `json:"employee,omitempty"`
	Department      string `json:"department,omitempty"`
	Branch          string `json:"branch,omitempty"`
	Location        string `json:"location,omitempty"`
	Status          string `json:"status,omitempty"`
	IPAddress       string `json:"ip_address,omitempty"`
	Description     string `json:"description,omitempty"`
}

// Owner returns the current employee or NoOwner.
func (e Equipment) Owner() string {
	if e.Employee == "" {
		return NoOwner
	}
	return e.Employee
}

type EntityKind string

const (
	KindEmployee EntityKind = "employees"
	KindBranch   EntityKind = "branches"
	KindLocation EntityKind = "locations"
	KindStatus   EntityKind = "statuses"
	KindModel    EntityKind = "models"
	KindType     EntityKind = "types"
)

type TransferRequest struct {
	Serials     []string
	NewEmployee string
	Department  string
	Branch      string
	Location    string
}

// Datastore is the equipment database. db selects one of the configured databases.
type Datastore interface {
	FindBySerial(ctx context.Context, db, serial string) (*Equipment, error)
	FindByEmployee(ctx context.Context, db, employee string) ([]Equipment, error)
	ListEntities(ctx context.Context, db string, kind EntityKind) ([]string, error)
	// EmployeeEmail with strict=false may match on a partial name.
	EmployeeEmail(ctx context.Context, db, employee string, strict bool) (string, error)
	EmployeeDepartment(ctx context.Context, db, employee string) (string, error)
	TransferEquipment(ctx context.Context, db string, req TransferRequest) error
}

// Recognizer extracts a serial number from a device photo.
type Recognizer interface {
	ExtractSerial(ctx context.Context, imagePath string) (string, error)
}
