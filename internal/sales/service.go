package sales

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"magaza-backend/internal/models"
	"magaza-backend/internal/stock"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrDuplicateSale: Aynı işlem numarası daha önce commit edilmiş.
	// Tekrar deneme güvenlidir: stok ikinci kez düşmez, mevcut satış döner.
	ErrDuplicateSale = errors.New("bu işlem numarasıyla kayıtlı satış var")

	ErrSaleNotFound  = errors.New("satış bulunamadı")
	ErrSaleCancelled = errors.New("satış zaten iptal edilmiş")
)

// InsufficientStockError: Hangi üründe takıldığını kasiyere söyleyebilmek için.
// errors.Is(err, stock.ErrInsufficientStock) ile yakalanır.
type InsufficientStockError struct {
	ProductID   uint
	ProductName string
	Requested   int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("yetersiz stok: %s (istenen %d)", e.ProductName, e.Requested)
}

func (e *InsufficientStockError) Unwrap() error { return stock.ErrInsufficientStock }

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

type SaleItemInput struct {
	ProductID uint `json:"product_id"`
	Quantity  int  `json:"quantity"`
}

type SaleInput struct {
	Code          string
	BranchID      uint
	Source        models.SaleSource
	PaymentMethod models.PaymentMethod
	Items         []SaleItemInput
	CashierID     uint
	CashierName   string
}

// saleLine: Orkestrasyon sırasında kalem başına toplanan ara değerler.
type saleLine struct {
	product   models.Product
	quantity  int
	prevStock int
	newStock  int
	unitCost  float64
	totalCost float64
}

// ProcessSale: Çok kalemli satışın tamamını tek transaction'da işler.
//
//  1. Kalemler transaction DIŞINDA doğrulanır (ürün/şube var mı, miktar pozitif mi);
//     hatalı istek hiçbir şey yazmadan reddedilir.
//  2. Transaction İÇİNDE her kalemin sayacı kilitlenip yeniden okunur; önceki
//     ekran okumalarına güvenilmez. Tek bir kalemde bile stok yetmezse satışın
//     tamamı iptal olur, kısmi karşılama yoktur.
//  3. Her kalem için partiler FIFO tüketilir, kalem maliyeti satış anında
//     sabitlenir, satışa bağlı bir kardex çıkış satırı yazılır.
//  4. Finansal kayıt (Sale) aynı transaction'da oluşur: ya hepsi ya hiçbiri.
//
// Aynı Code ile ikinci çağrı stok düşürmez; mevcut satış ErrDuplicateSale ile döner.
func ProcessSale(db *gorm.DB, in SaleInput) (*models.Sale, error) {
	if in.Code == "" {
		return nil, fmt.Errorf("işlem numarası (code) zorunlu")
	}
	if len(in.Items) == 0 {
		return nil, fmt.Errorf("satışta en az bir kalem olmalı")
	}

	var branch models.Branch
	if err := db.First(&branch, "id = ?", in.BranchID).Error; err != nil {
		return nil, fmt.Errorf("şube bulunamadı (ID: %d)", in.BranchID)
	}

	// Ürün doğrulama + fiyat okuma (transaction öncesi, mutasyonsuz)
	seen := make(map[uint]bool, len(in.Items))
	products := make(map[uint]models.Product, len(in.Items))
	for _, item := range in.Items {
		if item.ProductID == 0 || item.Quantity <= 0 {
			return nil, fmt.Errorf("geçersiz kalem: product_id zorunlu, quantity pozitif olmalı")
		}
		if seen[item.ProductID] {
			return nil, fmt.Errorf("aynı ürün birden fazla kalemde olamaz (product_id: %d)", item.ProductID)
		}
		seen[item.ProductID] = true

		var p models.Product
		if err := db.First(&p, "id = ?", item.ProductID).Error; err != nil {
			return nil, fmt.Errorf("ürün bulunamadı (ID: %d)", item.ProductID)
		}
		if !p.IsActive {
			return nil, fmt.Errorf("ürün satışa kapalı: %s", p.Name)
		}
		products[item.ProductID] = p
	}

	// Kilitler her satışta aynı sırayla alınsın (deadlock önlemi)
	items := make([]SaleItemInput, len(in.Items))
	copy(items, in.Items)
	sort.Slice(items, func(i, j int) bool { return items[i].ProductID < items[j].ProductID })

	var sale *models.Sale
	err := db.Transaction(func(tx *gorm.DB) error {
		// Idempotency: aynı code ile commit edilmiş satış var mı?
		var existing models.Sale
		err := tx.Preload("Items").Where("code = ?", in.Code).First(&existing).Error
		if err == nil {
			sale = &existing
			return ErrDuplicateSale
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("satış sorgulanamadı: %w", err)
		}

		lines := make([]saleLine, 0, len(items))
		for _, item := range items {
			prev, next, txErr := stock.AdjustLocked(tx, item.ProductID, in.BranchID, -item.Quantity)
			if errors.Is(txErr, stock.ErrInsufficientStock) {
				p := products[item.ProductID]
				return &InsufficientStockError{ProductID: p.ID, ProductName: p.Name, Requested: item.Quantity}
			}
			if txErr != nil {
				return txErr
			}

			plan, txErr := stock.ConsumeFIFO(tx, item.ProductID, in.BranchID, item.Quantity)
			if txErr != nil {
				return txErr
			}

			lines = append(lines, saleLine{
				product:   products[item.ProductID],
				quantity:  item.Quantity,
				prevStock: prev,
				newStock:  next,
				unitCost:  stock.WeightedUnitCost(plan),
				totalCost: stock.PlanTotalCost(plan),
			})
		}

		// Finansal kayıt, stok etkileriyle aynı atomik birimde
		totalAmount := 0.0
		totalCost := 0.0
		saleItems := make([]models.SaleItem, 0, len(lines))
		for _, l := range lines {
			totalAmount += float64(l.quantity) * l.product.SalePrice
			totalCost += l.totalCost
			saleItems = append(saleItems, models.SaleItem{
				ProductID:   l.product.ID,
				ProductName: l.product.Name,
				Quantity:    l.quantity,
				UnitPrice:   l.product.SalePrice,
				UnitCost:    l.unitCost,
				TotalPrice:  float64(l.quantity) * l.product.SalePrice,
			})
		}

		s := models.Sale{
			Code:          in.Code,
			BranchID:      in.BranchID,
			Source:        in.Source,
			PaymentMethod: in.PaymentMethod,
			Status:        models.SaleStatusCompleted,
			TotalAmount:   totalAmount,
			TotalCost:     totalCost,
			CashierID:     in.CashierID,
			CashierName:   in.CashierName,
			Items:         saleItems,
		}
		if err := tx.Create(&s).Error; err != nil {
			return fmt.Errorf("satış kaydı oluşturulamadı: %w", err)
		}

		for _, l := range lines {
			if _, txErr := stock.RecordMovement(tx, stock.MovementInput{
				BranchID:    in.BranchID,
				BranchName:  branch.Name,
				ProductID:   l.product.ID,
				ProductName: l.product.Name,
				Kind:        models.MovementExit,
				Quantity:    -l.quantity,
				PrevStock:   l.prevStock,
				NewStock:    l.newStock,
				Reason:      fmt.Sprintf("satış %s", in.Code),
				SaleID:      &s.ID,
				UserID:      in.CashierID,
				UserName:    in.CashierName,
			}); txErr != nil {
				return txErr
			}
		}

		sale = &s
		return nil
	})

	if errors.Is(err, ErrDuplicateSale) {
		return sale, ErrDuplicateSale
	}
	if isUniqueViolation(err) {
		// Yarış: iki eş zamanlı istek de varlık kontrolünü geçti, kaybeden
		// code unique index'ine takıldı. Kazananın satışı commit edilmiş
		// durumda; stok bir kez düştü, mevcut kaydı dönüyoruz.
		var existing models.Sale
		if qErr := db.Preload("Items").Where("code = ?", in.Code).First(&existing).Error; qErr == nil {
			return &existing, ErrDuplicateSale
		}
		return nil, err
	}
	if err != nil {
		return nil, err
	}
	return sale, nil
}

// CancelSale: Satışı iptal eder ve stok etkisini telafi kayıtlarıyla geri alır.
// Kardex silinmez/değişmez: her kalem için satıştaki birim maliyetle yeni parti
// açılır ve 'sale_cancelled' sebepli bir giriş satırı yazılır. Tek transaction.
func CancelSale(db *gorm.DB, saleID uint, userID uint, userName string) (*models.Sale, error) {
	var sale models.Sale

	err := db.Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Preload("Items").
			First(&sale, "id = ?", saleID).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrSaleNotFound
		}
		if err != nil {
			return fmt.Errorf("satış okunamadı: %w", err)
		}
		if sale.Status == models.SaleStatusCancelled {
			return ErrSaleCancelled
		}

		var branch models.Branch
		if err := tx.First(&branch, "id = ?", sale.BranchID).Error; err != nil {
			return fmt.Errorf("şube okunamadı: %w", err)
		}

		for _, item := range sale.Items {
			if _, txErr := stock.AddBatch(tx, stock.BatchInput{
				ProductID:      item.ProductID,
				BranchID:       sale.BranchID,
				Quantity:       item.Quantity,
				UnitCost:       item.UnitCost,
				ReceivedByID:   userID,
				ReceivedByName: userName,
			}); txErr != nil {
				return txErr
			}

			prev, next, txErr := stock.AdjustLocked(tx, item.ProductID, sale.BranchID, item.Quantity)
			if txErr != nil {
				return txErr
			}

			if _, txErr := stock.RecordMovement(tx, stock.MovementInput{
				BranchID:    sale.BranchID,
				BranchName:  branch.Name,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Kind:        models.MovementEntry,
				Quantity:    item.Quantity,
				PrevStock:   prev,
				NewStock:    next,
				Reason:      fmt.Sprintf("%s: %s", models.ReasonSaleCancelled, sale.Code),
				SaleID:      &sale.ID,
				UserID:      userID,
				UserName:    userName,
			}); txErr != nil {
				return txErr
			}
		}

		now := time.Now()
		sale.Status = models.SaleStatusCancelled
		sale.CancelledAt = &now
		if err := tx.Save(&sale).Error; err != nil {
			return fmt.Errorf("satış güncellenemedi: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}
	return &sale, nil
}
