package models

import "time"

// StockBatch: Stok giriş partisi (lot). Her mal kabulünde bir parti açılır,
// satışlar en eski partiden başlayarak tüketir (FIFO). Parti hiç silinmez;
// birim maliyet tarihçesi COGS hesabının temelidir.
type StockBatch struct {
	ID              uint `gorm:"primaryKey"`
	BranchID        uint `gorm:"not null;index:idx_stock_batch_key"`
	Branch          Branch
	ProductID       uint `gorm:"not null;index:idx_stock_batch_key"`
	Product         Product
	UnitCost        float64 `gorm:"not null"` // giriş anındaki birim maliyet
	InitialQuantity int     `gorm:"not null"` // giriş miktarı
	RemainingQty    int     `gorm:"not null"` // kalan miktar (0 <= kalan <= giriş)
	ReceivedByID    uint    `gorm:"not null"`
	ReceivedByName  string  `gorm:"size:100"` // denormalize
	CreatedAt       time.Time `gorm:"index"`  // FIFO sıralama anahtarı
	UpdatedAt       time.Time
}
