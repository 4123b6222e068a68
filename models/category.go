package models

import "time"

// Category groups products (e.g. Fruits, Proteins).
// Name and Slug are unique; Slug is derived from Name when the row is created.
type Category struct {
	ID          uint      `gorm:"primaryKey"`
	Name        string    `gorm:"size:100;uniqueIndex;not null"`
	Slug        string    `gorm:"size:120;uniqueIndex;not null"`
	Description string    `gorm:"type:text;not null;default:''"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime"`
}

func (c *Category) TableName() string {
	return "categories"
}
