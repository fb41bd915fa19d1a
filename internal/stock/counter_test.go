package stock

import (
	"fmt"
	"testing"
	"time"

	"magaza-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedCounterFixture(t *testing.T, db *gorm.DB) (models.Branch, models.Product) {
	suffix := fmt.Sprintf("%d", time.Now().UnixNano())
	branch := models.Branch{Code: "C" + suffix, Name: "Sayaç Şube " + suffix}
	require.NoError(t, db.Create(&branch).Error)

	product := models.Product{Name: "Sayaç Ürün " + suffix, Unit: "adet", SalePrice: 10, IsActive: true}
	require.NoError(t, db.Create(&product).Error)

	return branch, product
}

func TestAdjustLockedCreatesMissingCounter(t *testing.T) {
	db := openTestDB(t)
	branch, product := seedCounterFixture(t, db)

	// pozitif delta: satır yoksa sıfırdan açılır
	err := db.Transaction(func(tx *gorm.DB) error {
		prev, next, err := AdjustLocked(tx, product.ID, branch.ID, 5)
		require.NoError(t, err)
		assert.Equal(t, 0, prev)
		assert.Equal(t, 5, next)
		return nil
	})
	require.NoError(t, err)

	qty, err := CurrentQuantity(db, product.ID, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)
}

func TestAdjustLockedNegativeWithoutCounter(t *testing.T) {
	db := openTestDB(t)
	branch, product := seedCounterFixture(t, db)

	// çıkış için satır açılmaz, doğrudan yetersiz stok
	err := db.Transaction(func(tx *gorm.DB) error {
		_, _, err := AdjustLocked(tx, product.ID, branch.ID, -1)
		return err
	})
	require.ErrorIs(t, err, ErrInsufficientStock)

	qty, err := CurrentQuantity(db, product.ID, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, qty)
}

func TestAdjustLockedCounterCreateRace(t *testing.T) {
	db := openTestDB(t)
	branch, product := seedCounterFixture(t, db)

	// İlk transaction satırı açar ama commit etmez; ikincisi aynı satırı açmaya
	// kalkınca unique index'te bekler, commit sonrası violation alır ve
	// savepoint'ten dönüp kazananın satırı üzerinden devam etmelidir.
	tx1 := db.Begin()
	require.NoError(t, tx1.Error)

	prev, next, err := AdjustLocked(tx1, product.ID, branch.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, prev)
	assert.Equal(t, 3, next)

	done := make(chan error, 1)
	go func() {
		done <- db.Transaction(func(tx *gorm.DB) error {
			p, n, err := AdjustLocked(tx, product.ID, branch.ID, 2)
			if err != nil {
				return err
			}
			if p != 3 || n != 5 {
				return fmt.Errorf("kaybeden taraf kazananın satırını görmedi: prev=%d next=%d", p, n)
			}
			return nil
		})
	}()

	// İkinci transaction'ın insert'te beklemeye düşmesi için kısa bir pay
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, tx1.Commit().Error)
	require.NoError(t, <-done)

	qty, err := CurrentQuantity(db, product.ID, branch.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, qty)
}
