package models

import "time"

type Product struct {
	ID         uint   `gorm:"primaryKey"`
	Name       string `gorm:"size:100;not null;unique"`
	StockCode  string `gorm:"size:50;uniqueIndex"` // barkod / stok kodu
	Unit       string `gorm:"size:20;not null"`    // adet, kg, koli vs.
	CategoryID *uint  `gorm:"index"`
	Category   *ProductCategory
	SalePrice  float64 `gorm:"not null"`              // güncel satış fiyatı (maliyet partilerde tutulur)
	IsActive   bool    `gorm:"not null;default:true"` // pasif ürünler vitrine ve satışa çıkmaz
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
