package postgres

import (
	"context"
	"os"
	"testing"

	"inventory-assistant-be/internal/model"
	"inventory-assistant-be/internal/pkg/logger"
	"inventory-assistant-be/pkg/database"
	"inventory-assistant-be/pkg/inventory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// openTestDB connects to INVENTORY_TEST_DSN. Every test works in its own
// catalogue name, so runs never see each other's rows.
func openTestDB(t *testing.T) (*gorm.DB, string) {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	dsn := os.Getenv("INVENTORY_TEST_DSN")
	if dsn == "" {
		t.Skip("Skipping integration test: INVENTORY_TEST_DSN not set")
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))

	catalogue := "TEST_" + uuid.NewString()[:8]
	t.Cleanup(func() {
		for _, m := range model.All() {
			db.Where("db_name = ?", catalogue).Delete(m)
		}
	})
	return db, catalogue
}

func seed(t *testing.T, db *gorm.DB, catalogue string) {
	t.Helper()
	employees := []model.Employee{
		{DBName: catalogue, Name: "Ivanov Ivan", Email: "ivanov@example.com", Department: "IT"},
		{DBName: catalogue, Name: "Petrov Petr", Department: "Sales"},
	}
	equipment := []model.Equipment{
		{DBName: catalogue, SerialNumber: "SN0001", Type: "Laptop", Model: "Dell Latitude 5520", Employee: "Ivanov Ivan", Branch: "Main office", Location: "101"},
		{DBName: catalogue, SerialNumber: "SN0002", Type: "Printer", Model: "HP LaserJet 1020", Employee: "Petrov Petr", Branch: "Warehouse", Location: "2"},
	}
	require.NoError(t, db.Create(&employees).Error)
	require.NoError(t, db.Create(&equipment).Error)
}

func TestInventoryRepository_Lookups(t *testing.T) {
	db, catalogue := openTestDB(t)
	seed(t, db, catalogue)
	repo := NewInventoryRepository(db, logger.NewNopLogger())
	ctx := context.Background()

	eq, err := repo.FindBySerial(ctx, catalogue, "SN0001")
	require.NoError(t, err)
	assert.Equal(t, "Ivanov Ivan", eq.Employee)

	_, err = repo.FindBySerial(ctx, catalogue, "SNOOO1")
	assert.ErrorIs(t, err, inventory.ErrNotFound)

	items, err := repo.FindByEmployee(ctx, catalogue, "Petrov Petr")
	require.NoError(t, err)
	assert.Len(t, items, 1)

	branches, err := repo.ListEntities(ctx, catalogue, inventory.KindBranch)
	require.NoError(t, err)
	assert.Equal(t, []string{"Main office", "Warehouse"}, branches)

	names, err := repo.ListEntities(ctx, catalogue, inventory.KindEmployee)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ivanov Ivan", "Petrov Petr"}, names)
}

func TestInventoryRepository_EmployeeEmail(t *testing.T) {
	db, catalogue := openTestDB(t)
	seed(t, db, catalogue)
	repo := NewInventoryRepository(db, logger.NewNopLogger())

	tests := []struct {
		name    string
		query   string
		strict  bool
		want    string
		wantErr error
	}{
		{name: "exact", query: "Ivanov Ivan", strict: true, want: "ivanov@example.com"},
		{name: "partial", query: "ivanov", strict: false, want: "ivanov@example.com"},
		{name: "partial needs strict off", query: "ivanov", strict: true, wantErr: inventory.ErrNotFound},
		{name: "no email on file", query: "Petrov Petr", strict: true, wantErr: inventory.ErrNoEmailOnFile},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.EmployeeEmail(context.Background(), catalogue, tt.query, tt.strict)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInventoryRepository_TransferEquipment(t *testing.T) {
	db, catalogue := openTestDB(t)
	seed(t, db, catalogue)
	repo := NewInventoryRepository(db, logger.NewNopLogger())
	ctx := context.Background()

	err := repo.TransferEquipment(ctx, catalogue, inventory.TransferRequest{
		Serials:     []string{"SN0001", "SN0002"},
		NewEmployee: "Petrov Petr",
		Department:  "Sales",
		Branch:      "Warehouse",
		Location:    "3",
	})
	require.NoError(t, err)

	eq, err := repo.FindBySerial(ctx, catalogue, "SN0001")
	require.NoError(t, err)
	assert.Equal(t, "Petrov Petr", eq.Employee)
	assert.Equal(t, "3", eq.Location)

	var history []model.TransferHistory
	require.NoError(t, db.Where("db_name = ?", catalogue).Order("serial_number").Find(&history).Error)
	require.Len(t, history, 2)
	assert.Equal(t, "Ivanov Ivan", history[0].OldEmployee)

	t.Run("missing serial rolls back", func(t *testing.T) {
		err := repo.TransferEquipment(ctx, catalogue, inventory.TransferRequest{
			Serials:     []string{"SN0001", "MISSING"},
			NewEmployee: "Ivanov Ivan",
		})
		assert.ErrorIs(t, err, inventory.ErrNotFound)

		eq, err := repo.FindBySerial(ctx, catalogue, "SN0001")
		require.NoError(t, err)
		assert.Equal(t, "Petrov Petr", eq.Employee)
	})
}
