package models

import "time"

// BranchStock: Şube bazlı güncel stok sayacı (ürün x şube başına tek satır).
// Stok miktarı her zaman o çiftin aktif partilerindeki kalan miktarların toplamına eşittir.
// Sadece satış orkestrasyonu ve stok giriş/düzeltme/transfer işlemleri tarafından güncellenir.
type BranchStock struct {
	ID        uint `gorm:"primaryKey"`
	BranchID  uint `gorm:"not null;uniqueIndex:idx_branch_stock_key"`
	Branch    Branch
	ProductID uint `gorm:"not null;uniqueIndex:idx_branch_stock_key"`
	Product   Product
	Quantity  int `gorm:"not null;default:0"` // güncel stok (negatif olamaz)
	MinStock  int `gorm:"not null;default:0"` // düşük stok uyarı eşiği
	CreatedAt time.Time
	UpdatedAt time.Time
}
