package stock

import (
	"fmt"
	"os"
	"testing"
	"time"

	"magaza-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN tanımlı değil, entegrasyon testi atlanıyor")
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Skipf("Postgres erişilemedi: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil || sqlDB.Ping() != nil {
		t.Skipf("Postgres erişilemedi: %v", err)
	}

	require.NoError(t, db.AutoMigrate(
		&models.Branch{},
		&models.ProductCategory{},
		&models.Product{},
		&models.BranchStock{},
		&models.StockBatch{},
		&models.StockMovement{},
	))

	return db
}

func TestTransferPropagatesCostBasis(t *testing.T) {
	db := openTestDB(t)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	source := models.Branch{Code: "K" + suffix, Name: "Kaynak " + suffix}
	require.NoError(t, db.Create(&source).Error)
	target := models.Branch{Code: "H" + suffix, Name: "Hedef " + suffix}
	require.NoError(t, db.Create(&target).Error)

	product := models.Product{Name: "Transfer Ürün " + suffix, Unit: "adet", SalePrice: 30, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	// kaynakta iki parti: 5@10 ve 5@20
	for _, b := range []struct {
		qty  int
		cost float64
	}{{5, 10.0}, {5, 20.0}} {
		require.NoError(t, db.Create(&models.StockBatch{
			BranchID:        source.ID,
			ProductID:       product.ID,
			UnitCost:        b.cost,
			InitialQuantity: b.qty,
			RemainingQty:    b.qty,
			ReceivedByID:    1,
		}).Error)
		time.Sleep(5 * time.Millisecond)
	}
	require.NoError(t, db.Create(&models.BranchStock{
		BranchID: source.ID, ProductID: product.ID, Quantity: 10,
	}).Error)

	result, err := Transfer(db, TransferInput{
		ProductID:    product.ID,
		ProductName:  product.Name,
		FromBranchID: source.ID,
		FromName:     source.Name,
		ToBranchID:   target.ID,
		ToName:       target.Name,
		Quantity:     7,
		UserID:       1,
		UserName:     "Depocu",
	})
	require.NoError(t, err)

	assert.Equal(t, 3, result.SourceStock)
	assert.Equal(t, 7, result.TargetStock)
	// 5 adet ilk lottan, 2 adet ikinciden: hedefte iki parti açılır
	assert.Equal(t, 2, result.BatchesOpened)

	// hedef partiler kaynak maliyetlerini taşır
	var targetBatches []models.StockBatch
	require.NoError(t, db.Where("branch_id = ? AND product_id = ?", target.ID, product.ID).
		Order("created_at ASC, id ASC").Find(&targetBatches).Error)
	require.Len(t, targetBatches, 2)
	assert.Equal(t, 5, targetBatches[0].RemainingQty)
	assert.InDelta(t, 10.0, targetBatches[0].UnitCost, 1e-9)
	assert.Equal(t, 2, targetBatches[1].RemainingQty)
	assert.InDelta(t, 20.0, targetBatches[1].UnitCost, 1e-9)

	// iki taraf da sayaç = parti toplamı
	for _, branchID := range []uint{source.ID, target.ID} {
		counter, err := CurrentQuantity(db, product.ID, branchID)
		require.NoError(t, err)
		batchTotal, err := SumRemaining(db, product.ID, branchID)
		require.NoError(t, err)
		assert.Equal(t, counter, batchTotal)
	}

	// aynı transfer kodunu paylaşan iki kardex satırı
	var movements []models.StockMovement
	require.NoError(t, db.Where("transfer_code = ?", result.TransferCode).
		Order("branch_id ASC").Find(&movements).Error)
	require.Len(t, movements, 2)
	assert.Equal(t, -7, movements[0].Quantity)
	assert.Equal(t, 7, movements[1].Quantity)
}

func TestTransferInsufficientStockLeavesBothSidesUntouched(t *testing.T) {
	db := openTestDB(t)

	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	source := models.Branch{Code: "K" + suffix, Name: "Kaynak " + suffix}
	require.NoError(t, db.Create(&source).Error)
	target := models.Branch{Code: "H" + suffix, Name: "Hedef " + suffix}
	require.NoError(t, db.Create(&target).Error)

	product := models.Product{Name: "Kıt Ürün " + suffix, Unit: "adet", SalePrice: 30, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	require.NoError(t, db.Create(&models.StockBatch{
		BranchID: source.ID, ProductID: product.ID,
		UnitCost: 10, InitialQuantity: 3, RemainingQty: 3, ReceivedByID: 1,
	}).Error)
	require.NoError(t, db.Create(&models.BranchStock{
		BranchID: source.ID, ProductID: product.ID, Quantity: 3,
	}).Error)

	_, err := Transfer(db, TransferInput{
		ProductID:    product.ID,
		ProductName:  product.Name,
		FromBranchID: source.ID,
		FromName:     source.Name,
		ToBranchID:   target.ID,
		ToName:       target.Name,
		Quantity:     5,
		UserID:       1,
		UserName:     "Depocu",
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	srcQty, err := CurrentQuantity(db, product.ID, source.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, srcQty)

	dstQty, err := CurrentQuantity(db, product.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dstQty)

	dstBatches, err := SumRemaining(db, product.ID, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, dstBatches)
}
