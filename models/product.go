package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type Product struct {
	DocumentId string          `gorm:"column:document_id;primaryKey;size:64" json:"$id"`
	UserId     string          `gorm:"column:user_id;size:64;index;not null" json:"user_id"`
	Name       string          `gorm:"column:name;size:255" json:"name"`
	Category   string          `gorm:"column:category;size:100" json:"category,omitempty"`
	Stock      int             `gorm:"column:stock;default:0" json:"stock"`
	Price      decimal.Decimal `gorm:"column:price;type:decimal(20,4);default:0" json:"price"`
	CreatedAt  time.Time       `gorm:"column:created_at;index" json:"$createdAt"`
}

func (Product) TableName() string { return "products" }
