package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product represents a food item in the catalog with its nutrition facts.
// Names are not unique. Deleting the owning Category deletes the product.
type Product struct {
	ID          uint            `gorm:"primaryKey"`
	Name        string          `gorm:"size:200;not null"`
	Brand       string          `gorm:"size:100;not null"`
	CategoryID  uint            `gorm:"not null"`
	Category    Category        `gorm:"foreignKey:CategoryID;constraint:OnDelete:CASCADE"`
	Description string          `gorm:"type:text;not null;default:''"`
	Calories    int             `gorm:"not null;default:0"`
	Protein     decimal.Decimal `gorm:"type:decimal(8,2);not null;default:0"`
	Carbs       decimal.Decimal `gorm:"type:decimal(8,2);not null;default:0"`
	Fats        decimal.Decimal `gorm:"type:decimal(8,2);not null;default:0"`
	CreatedAt   time.Time       `gorm:"autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"autoUpdateTime"`
}

func (p *Product) TableName() string {
	return "products"
}
