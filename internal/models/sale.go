package models

import "time"

type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCard   PaymentMethod = "card"
	PaymentOnline PaymentMethod = "online"
)

type SaleSource string

const (
	SaleSourcePOS SaleSource = "pos" // kasa terminali
	SaleSourceWeb SaleSource = "web" // online mağaza
)

type SaleStatus string

const (
	SaleStatusCompleted SaleStatus = "completed"
	SaleStatusCancelled SaleStatus = "cancelled"
)

// Sale: Satışın finansal kaydı. Stok etkileriyle (kardex, partiler, sayaç)
// aynı veritabanı transaction'ı içinde yazılır; Code alanı caller'ın ürettiği
// benzersiz işlem numarasıdır ve tekrar denemelerde mükerrer satışı engeller.
type Sale struct {
	ID       uint   `gorm:"primaryKey"`
	Code     string `gorm:"size:40;uniqueIndex;not null"` // idempotency anahtarı
	BranchID uint   `gorm:"index;not null"`
	Branch   Branch

	Source        SaleSource    `gorm:"size:10;not null"`
	PaymentMethod PaymentMethod `gorm:"size:10;not null"`
	Status        SaleStatus    `gorm:"size:15;not null;index"`

	TotalAmount float64 `gorm:"not null"` // satış tutarı (ciro)
	TotalCost   float64 `gorm:"not null"` // FIFO ile sabitlenen toplam maliyet (COGS)

	CashierID   uint   `gorm:"not null"`
	CashierName string `gorm:"size:100"` // denormalize

	CancelledAt *time.Time
	CreatedAt   time.Time `gorm:"index"`
	UpdatedAt   time.Time

	Items []SaleItem `gorm:"foreignKey:SaleID;constraint:OnDelete:CASCADE"`
}

// SaleItem: Satışın ürün kalemi. UnitCost satış anında tüketilen partilerin
// ağırlıklı ortalamasıdır; sonradan parti fiyatı değişse bile COGS sabit kalır.
type SaleItem struct {
	ID        uint `gorm:"primaryKey"`
	SaleID    uint `gorm:"index;not null"`
	ProductID uint `gorm:"index;not null"`
	Product   Product

	ProductName string  `gorm:"size:100"` // denormalize
	Quantity    int     `gorm:"not null"`
	UnitPrice   float64 `gorm:"not null"` // satış birim fiyatı
	UnitCost    float64 `gorm:"not null"` // FIFO maliyeti (satış anında kilitlenir)
	TotalPrice  float64 `gorm:"not null"` // Quantity * UnitPrice

	CreatedAt time.Time
	UpdatedAt time.Time
}
