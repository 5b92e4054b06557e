package main

import (
	"log"
	"os"

	"inventory-assistant-be/internal/model"
	"inventory-assistant-be/internal/repository/postgres"
	"inventory-assistant-be/pkg/database"

	"github.com/joho/godotenv"
	"gorm.io/gorm"
)

func main() {
	// Load Environment Variables
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}
	dbName := os.Getenv("DEFAULT_DATABASE")
	if dbName == "" {
		dbName = "ITINVENT"
	}

	db, err := database.NewGormDBFromDSN(dsn, false)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}
	if err := postgres.Migrate(db); err != nil {
		log.Fatal("Error: Migration failed:", err)
	}

	log.Printf("Seeding demo inventory into %s...", dbName)
	seedEmployees(db, dbName)
	seedEquipment(db, dbName)
	log.Println("Inventory seeding completed!")
}

func seedEmployees(db *gorm.DB, dbName string) {
	employees := []model.Employee{
		{Name: "Ivanov Ivan Ivanovich", Email: "ivanov@example.com", Department: "IT Department", Active: true},
		{Name: "Petrova Anna Sergeevna", Email: "petrova@example.com", Department: "Accounting", Active: true},
		{Name: "Sidorov Pavel Olegovich", Email: "sidorov@example.com", Department: "Warehouse", Active: true},
		{Name: "Kuznetsova Olga Ivanovna", Department: "Reception", Active: false},
	}

	for _, e := range employees {
		e.DBName = dbName
		var existing model.Employee
		if err := db.Where("db_name = ? AND name = ?", dbName, e.Name).First(&existing).Error; err == nil {
			log.Printf("Employee '%s' already exists, skipping...", e.Name)
			continue
		}
		if err := db.Create(&e).Error; err != nil {
			log.Printf("Error creating employee '%s': %v", e.Name, err)
		} else {
			log.Printf("Created employee: %s", e.Name)
		}
	}
}

func seedEquipment(db *gorm.DB, dbName string) {
	equipment := []model.Equipment{
		{SerialNumber: "PC0A1B2C", InventoryNumber: "100231", Type: "System unit", Model: "Lenovo ThinkCentre M70", Employee: "Ivanov Ivan Ivanovich", Department: "IT Department", Branch: "Head office", Location: "Room 101", Status: "In use"},
		{SerialNumber: "MON45O78", InventoryNumber: "100232", Type: "Monitor", Model: "Dell P2422H", Employee: "Ivanov Ivan Ivanovich", Department: "IT Department", Branch: "Head office", Location: "Room 101", Status: "In use"},
		{SerialNumber: "NB9X8Y7Z", InventoryNumber: "100410", Type: "Laptop", Model: "HP ProBook 450 G9", Employee: "Petrova Anna Sergeevna", Department: "Accounting", Branch: "Head office", Location: "Room 204", Status: "In use"},
		{SerialNumber: "PRN00321", InventoryNumber: "100512", Type: "Printer", Model: "Kyocera ECOSYS P2040dn", Employee: "Sidorov Pavel Olegovich", Department: "Warehouse", Branch: "Depot", Location: "Warehouse office", Status: "In use", IPAddress: "10.0.5.21"},
		{SerialNumber: "UPS77A01", InventoryNumber: "100613", Type: "UPS", Model: "APC Back-UPS 650", Department: "Warehouse", Branch: "Depot", Location: "Storage", Status: "In stock"},
	}

	for _, eq := range equipment {
		eq.DBName = dbName
		var existing model.Equipment
		if err := db.Where("db_name = ? AND serial_number = ?", dbName, eq.SerialNumber).First(&existing).Error; err == nil {
			log.Printf("Equipment '%s' already exists, skipping...", eq.SerialNumber)
			continue
		}
		if err := db.Create(&eq).Error; err != nil {
			log.Printf("Error creating equipment '%s': %v", eq.SerialNumber, err)
		} else {
			log.Printf("Created equipment: %s (%s)", eq.Model, eq.SerialNumber)
		}
	}
}
