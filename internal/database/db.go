package database

import (
	"log"

	"magaza-backend/internal/config"
	"magaza-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var DB *gorm.DB

func Init(cfg *config.Config) {
	var err error

	DB, err = gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Veritabanına bağlanılamadı: %v", err)
	}

	err = DB.AutoMigrate(
		&models.Branch{},
		&models.User{},
		&models.ProductCategory{},
		&models.Product{},
		// Stok motoru
		&models.BranchStock{},
		&models.StockBatch{},
		&models.StockMovement{},
		// Satış
		&models.Sale{},
		&models.SaleItem{},
		// Giderler
		&models.ExpenseCategory{},
		&models.Expense{},
		&models.ExpensePayment{},
		// Denetim
		&models.AuditLog{},
	)
	if err != nil {
		log.Fatalf("AutoMigrate hatası: %v", err)
	}

	// Stok sayacının negatif olmasını veritabanı seviyesinde de engelle.
	// Uygulama katmanı zaten kontrol ediyor ama bu constraint son savunma hattı.
	if err := DB.Exec(`
		ALTER TABLE branch_stocks
		DROP CONSTRAINT IF EXISTS chk_branch_stocks_quantity_non_negative
	`).Error; err != nil {
		log.Printf("Eski stok constraint'i kaldırılırken hata (devam ediliyor): %v", err)
	}
	if err := DB.Exec(`
		ALTER TABLE branch_stocks
		ADD CONSTRAINT chk_branch_stocks_quantity_non_negative CHECK (quantity >= 0)
	`).Error; err != nil {
		log.Printf("Stok constraint'i eklenirken hata (zaten var olabilir): %v", err)
	}
	if err := DB.Exec(`
		ALTER TABLE stock_batches
		DROP CONSTRAINT IF EXISTS chk_stock_batches_remaining_range
	`).Error; err != nil {
		log.Printf("Eski parti constraint'i kaldırılırken hata (devam ediliyor): %v", err)
	}
	if err := DB.Exec(`
		ALTER TABLE stock_batches
		ADD CONSTRAINT chk_stock_batches_remaining_range CHECK (remaining_qty >= 0 AND remaining_qty <= initial_quantity)
	`).Error; err != nil {
		log.Printf("Parti constraint'i eklenirken hata (zaten var olabilir): %v", err)
	}

	log.Println("Veritabanı bağlantısı başarılı. Migration tamamlandı.")
}
