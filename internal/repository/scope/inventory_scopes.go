package scope

import "gorm.io/gorm"

// Catalogue limits a query to one configured inventory database.
func Catalogue(name string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("db_name = ?", name)
	}
}

func ActiveEmployees(db *gorm.DB) *gorm.DB {
	return db.Where("active")
}

func OrderByName(db *gorm.DB) *gorm.DB {
	return db.Order("name ASC")
}

// NotBlank drops rows whose column is empty.
func NotBlank(column string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where(column + " <> ''")
	}
}
