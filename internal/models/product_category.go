package models

import "time"

type ProductCategory struct {
	ID           uint   `gorm:"primaryKey"`
	Name         string `gorm:"size:100;not null;unique"`
	DisplayOrder int    `gorm:"default:0"` // vitrin ve listelerde sıralama, küçük önce
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

