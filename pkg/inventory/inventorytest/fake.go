// Package inventorytest provides in-memory collaborators for tests.
package inventorytest

import (
	"context"
	"strings"
	"sync"

	"inventory-assistant-be/pkg/inventory"
)

// Datastore is an in-memory inventory.Datastore.
type Datastore struct {
	mu          sync.Mutex
	Equipment   map[string]inventory.Equipment
	Entities    map[inventory.EntityKind][]string
	Emails      map[string]string
	Departments map[string]string
	Transfers   []inventory.TransferRequest
	Lookups     []string
	ListCalls   int
	TransferErr error
}

func NewDatastore() *Datastore {
	return &Datastore{
		Equipment:   make(map[string]inventory.Equipment),
		Entities:    make(map[inventory.EntityKind][]string),
		Emails:      make(map[string]string),
		Departments: make(map[string]string),
	}
}

func (d *Datastore) Add(eq inventory.Equipment) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Equipment[eq.SerialNumber] = eq
}

func (d *Datastore) FindBySerial(_ context.Context, _ string, serial string) (*inventory.Equipment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Lookups = append(d.Lookups, serial)
	eq, ok := d.Equipment[serial]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	return &eq, nil
}

func (d *Datastore) FindByEmployee(_ context.Context, _ string, employee string) ([]inventory.Equipment, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []inventory.Equipment
	for _, eq := range d.Equipment {
		if eq.Employee == employee {
			out = append(out, eq)
		}
	}
	return out, nil
}

func (d *Datastore) ListEntities(_ context.Context, _ string, kind inventory.EntityKind) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.ListCalls++
	return append([]string(nil), d.Entities[kind]...), nil
}

func (d *Datastore) EmployeeEmail(_ context.Context, _ string, employee string, strict bool) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if email, ok := d.Emails[employee]; ok && email != "" {
		return email, nil
	}
	if !strict {
		for name, email := range d.Emails {
			if email != "" && strings.Contains(strings.ToLower(name), strings.ToLower(employee)) {
				return email, nil
			}
		}
	}
	return "", inventory.ErrNoEmailOnFile
}

func (d *Datastore) EmployeeDepartment(_ context.Context, _ string, employee string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if dept, ok := d.Departments[employee]; ok {
		return dept, nil
	}
	return "", inventory.ErrNotFound
}

func (d *Datastore) TransferEquipment(_ context.Context, _ string, req inventory.TransferRequest) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.TransferErr != nil {
		return d.TransferErr
	}
	d.Transfers = append(d.Transfers, req)
	for _, s := range req.Serials {
		eq := d.Equipment[s]
		eq.Employee = req.NewEmployee
		eq.Branch = req.Branch
		eq.Location = req.Location
		d.Equipment[s] = eq
	}
	return nil
}

// Recognizer returns canned serials keyed by image path.
type Recognizer struct {
	Serials map[string]string
	Err     error
}

func (r *Recognizer) ExtractSerial(_ context.Context, imagePath string) (string, error) {
	if r.Err != nil {
		return "", r.Err
	}
	if s, ok := r.Serials[imagePath]; ok {
		return s, nil
	}
	return "", inventory.ErrNoSerial
}
