// Package postgres implements inventory.Datastore on the gorm models in
// internal/model.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"inventory-assistant-be/internal/model"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/internal/repository/scope"
	"inventory-assistant-be/pkg/inventory"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type InventoryRepository struct {
	db     *gorm.DB
	logger logger.ILogger
}

var _ inventory.Datastore = (*InventoryRepository)(nil)

func NewInventoryRepository(db *gorm.DB, log logger.ILogger) *InventoryRepository {
	return &InventoryRepository{db: db, logger: log}
}

// Migrate creates or updates the inventory tables.
func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS pgcrypto;`).Error; err != nil {
		return fmt.Errorf("enable pgcrypto: %w", err)
	}
	return db.AutoMigrate(model.All()...)
}

func toEquipment(m model.Equipment) inventory.Equipment {
	return inventory.Equipment{
		SerialNumber:    m.SerialNumber,
		InventoryNumber: m.InventoryNumber,
		Type:            m.Type,
		Model:           m.Model,
		Employee:        m.Employee,
		Department:      m.Department,
		Branch:          m.Branch,
		Location:        m.Location,
		Status:          m.Status,
		IPAddress:       m.IPAddress,
		Description:     m.Description,
	}
}

func (r *InventoryRepository) FindBySerial(ctx context.Context, db, serial string) (*inventory.Equipment, error) {
	var row model.Equipment
	err := r.db.WithContext(ctx).
		Scopes(scope.Catalogue(db)).
		Where("serial_number = ?", serial).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, inventory.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find serial %s: %w", serial, err)
	}
	eq := toEquipment(row)
	return &eq, nil
}

func (r *InventoryRepository) FindByEmployee(ctx context.Context, db, employee string) ([]inventory.Equipment, error) {
	var rows []model.Equipment
	err := r.db.WithContext(ctx).
		Scopes(scope.Catalogue(db)).
		Where("employee = ?", employee).
		Order("type, serial_number").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("equipment of %s: %w", employee, err)
	}
	out := make([]inventory.Equipment, 0, len(rows))
	for _, row := range rows {
		out = append(out, toEquipment(row))
	}
	return out, nil
}

// entityColumns maps catalogue kinds to the equipment column holding them.
var entityColumns = map[inventory.EntityKind]string{
	inventory.KindBranch:   "branch",
	inventory.KindLocation: "location",
	inventory.KindStatus:   "status",
	inventory.KindModel:    "model",
	inventory.KindType:     "type",
}

func (r *InventoryRepository) ListEntities(ctx context.Context, db string, kind inventory.EntityKind) ([]string, error) {
	var names []string
	q := r.db.WithContext(ctx)

	if kind == inventory.KindEmployee {
		err := q.Model(&model.Employee{}).
			Scopes(scope.Catalogue(db), scope.ActiveEmployees, scope.OrderByName).
			Pluck("name", &names).Error
		if err != nil {
			return nil, fmt.Errorf("list employees: %w", err)
		}
		return names, nil
	}

	column, ok := entityColumns[kind]
	if !ok {
		return nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	err := q.Model(&model.Equipment{}).
		Scopes(scope.Catalogue(db), scope.NotBlank(column)).
		Distinct(column).
		Order(column).
		Pluck(column, &names).Error
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return names, nil
}

func (r *InventoryRepository) EmployeeEmail(ctx context.Context, db, employee string, strict bool) (string, error) {
	var row model.Employee
	q := r.db.WithContext(ctx).Scopes(scope.Catalogue(db))
	if strict {
		q = q.Where("name = ?", employee)
	} else {
		q = q.Where("name ILIKE ?", "%"+escapeLike(employee)+"%").Scopes(scope.NotBlank("email"), scope.OrderByName)
	}
	err := q.First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", inventory.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("email of %s: %w", employee, err)
	}
	if strings.TrimSpace(row.Email) == "" {
		return "", inventory.ErrNoEmailOnFile
	}
	return strings.TrimSpace(row.Email), nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func (r *InventoryRepository) EmployeeDepartment(ctx context.Context, db, employee string) (string, error) {
	var row model.Employee
	err := r.db.WithContext(ctx).
		Scopes(scope.Catalogue(db)).
		Where("name = ?", employee).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", inventory.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("department of %s: %w", employee, err)
	}
	return row.Department, nil
}

// TransferEquipment reassigns every serial in one transaction and writes a
// history row per device. A missing serial aborts the whole transfer.
func (r *InventoryRepository) TransferEquipment(ctx context.Context, db string, req inventory.TransferRequest) error {
	details, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("encode transfer details: %w", err)
	}

	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, serial := range req.Serials {
			var row model.Equipment
			if err := tx.Scopes(scope.Catalogue(db)).Where("serial_number = ?", serial).First(&row).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: %s", inventory.ErrNotFound, serial)
				}
				return err
			}

			res := tx.Model(&model.Equipment{}).
				Where("id = ?", row.ID).
				Updates(map[string]interface{}{
					"employee":   req.NewEmployee,
					"department": req.Department,
					"branch":     req.Branch,
					"location":   req.Location,
					"updated_at": gorm.Expr("now()"),
				})
			if res.Error != nil {
				return res.Error
			}

			history := model.TransferHistory{
				DBName:       db,
				SerialNumber: serial,
				OldEmployee:  row.Employee,
				NewEmployee:  req.NewEmployee,
				Details:      datatypes.JSON(details),
			}
			if err := tx.Create(&history).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("transfer to %s: %w", req.NewEmployee, err)
	}

	r.logger.Info("InventoryRepository", "Equipment transferred", map[string]interface{}{
		"db":           db,
		"new_employee": req.NewEmployee,
		"serials":      req.Serials,
	})
	return nil
}
