package models

import "time"

type UserRole string

const (
	RoleSuperAdmin  UserRole = "super_admin"
	RoleBranchAdmin UserRole = "branch_admin"
	RoleCashier     UserRole = "cashier" // POS terminali kullanıcısı
)

type User struct {
	ID           uint `gorm:"primaryKey"`
	BranchID     *uint
	Branch       *Branch
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`

	// Pasif hesap giriş yapamaz, mevcut tokenları da reddedilir.
	// İşten ayrılan kasiyerler silinmez, pasife alınır (audit geçmişi kalır).
	IsActive bool `gorm:"default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}
