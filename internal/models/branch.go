package models

import "time"

type Branch struct {
	ID        uint   `gorm:"primaryKey"`
	Code      string `gorm:"size:20;uniqueIndex"` // kısa mağaza kodu (ör: "KDK-01"), fiş ve raporlarda kullanılır
	Name      string `gorm:"size:100;not null;unique"`
	Address   string `gorm:"size:255"`
	Phone     string `gorm:"size:50"` // Opsiyonel telefon
	CreatedAt time.Time
	UpdatedAt time.Time

	Users []User
}
