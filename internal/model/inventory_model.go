package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Equipment mirrors one device row of an inventory catalogue. DBName selects
// the catalogue so several configured databases can share one schema.
type Equipment struct {
	ID              uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DBName          string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_equipment_db_serial,priority:1;index:idx_equipment_db_employee,priority:1"`
	SerialNumber    string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_equipment_db_serial,priority:2"`
	InventoryNumber string    `gorm:"type:varchar(30)"`
	Type            string    `gorm:"type:varchar(100)"`
	Model           string    `gorm:"type:varchar(200)"`
	Employee        string    `gorm:"type:varchar(100);index:idx_equipment_db_employee,priority:2"`
	Department      string    `gorm:"type:varchar(200)"`
	Branch          string    `gorm:"type:varchar(100)"`
	Location        string    `gorm:"type:varchar(100)"`
	Status          string    `gorm:"type:varchar(100)"`
	IPAddress       string    `gorm:"type:varchar(45)"`
	Description     string    `gorm:"type:text"`
	UpdatedAt       time.Time `gorm:"default:now();not null"`
}

func (Equipment) TableName() string {
	return "equipment"
}

type Employee struct {
	ID         uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DBName     string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_employees_db_name,priority:1"`
	Name       string    `gorm:"type:varchar(100);not null;uniqueIndex:idx_employees_db_name,priority:2"`
	Email      string    `gorm:"type:varchar(254)"`
	Department string    `gorm:"type:varchar(200)"`
	Active     bool      `gorm:"default:true;not null"`
}

func (Employee) TableName() string {
	return "employees"
}

// TransferHistory is written once per device moved by a transfer.
type TransferHistory struct {
	ID           uuid.UUID      `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	DBName       string         `gorm:"type:varchar(50);not null;index:idx_transfer_history_db_serial,priority:1"`
	SerialNumber string         `gorm:"type:varchar(50);not null;index:idx_transfer_history_db_serial,priority:2"`
	OldEmployee  string         `gorm:"type:varchar(100)"`
	NewEmployee  string         `gorm:"type:varchar(100);not null"`
	Details      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt    time.Time      `gorm:"default:now();not null;index"`
}

func (TransferHistory) TableName() string {
	return "transfer_history"
}

// All lists the models managed by AutoMigrate.
func All() []interface{} {
	return []interface{}{&Equipment{}, &Employee{}, &TransferHistory{}}
}
