package models

import "time"

type MovementKind string

const (
	MovementEntry      MovementKind = "entry"      // mal kabul / iade girişi
	MovementExit       MovementKind = "exit"       // satış çıkışı
	MovementTransfer   MovementKind = "transfer"   // şubeler arası transfer
	MovementAdjustment MovementKind = "adjustment" // sayım düzeltmesi / zayiat
)

// Mal kabul ve düzeltme işlemlerinde kullanılan sabit sebep kodları
const (
	ReasonPurchase         = "purchase"          // satın alma
	ReasonCustomerReturn   = "customer_return"   // müşteri iadesi
	ReasonTransferReceived = "transfer_received" // transferle gelen
	ReasonAdjustment       = "adjustment"        // sayım düzeltmesi
	ReasonWaste            = "waste"             // zayiat
	ReasonSaleCancelled    = "sale_cancelled"    // satış iptali
)

// StockMovement: Kardex satırı. Stok etkileyen her olay için tam bir kayıt;
// önceki/sonraki stok anlık görüntüsü taşır ve asla güncellenmez/silinmez.
// Invariant: NewStock = PreviousStock + Quantity
type StockMovement struct {
	ID        uint `gorm:"primaryKey"`
	BranchID  uint `gorm:"not null;index:idx_movement_key"`
	ProductID uint `gorm:"not null;index:idx_movement_key"`

	// Rapor ekranları join'e gerek kalmadan okusun diye denormalize
	BranchName  string `gorm:"size:100"`
	ProductName string `gorm:"size:100"`

	Kind          MovementKind `gorm:"size:20;not null;index"`
	Quantity      int          `gorm:"not null"` // işaretli delta (giriş +, çıkış -)
	PreviousStock int          `gorm:"not null"`
	NewStock      int          `gorm:"not null"`
	Reason        string       `gorm:"size:255"`

	// Satışa veya transfere bağ (varsa)
	SaleID       *uint   `gorm:"index"`
	TransferCode *string `gorm:"size:40;index"`

	UserID   uint   `gorm:"not null"`
	UserName string `gorm:"size:100"` // denormalize

	CreatedAt time.Time `gorm:"index"`
}
