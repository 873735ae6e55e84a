package models

import (
	"gorm.io/gorm"
)

// MigrateTable creates or updates the SQL mirror tables.
func MigrateTable(db *gorm.DB) error {
	for _, source := range []OrderSource{OrderSourceSales, OrderSourcePurchase} {
		if err := db.Table(source.TableName()).AutoMigrate(&OrderRecord{}); err != nil {
			return err
		}
	}
	return db.AutoMigrate(&Product{}, &Profile{})
}
