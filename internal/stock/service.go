package stock

import (
	"errors"
	"fmt"
	"time"

	"magaza-backend/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	// ErrInsufficientStock: İş kuralı hatası. Kullanıcıya aynen gösterilir,
	// otomatik retry yapılmaz (tekrar denemek stoku değiştirmez).
	ErrInsufficientStock = errors.New("yetersiz stok")

	// ErrInsufficientBatchStock: Sayaç ile parti defteri birbirinden kopmuş demektir.
	// Normal akışta ulaşılamaz; görülürse veri bütünlüğü alarmı olarak loglanmalı.
	ErrInsufficientBatchStock = errors.New("parti stoku yetersiz: sayaç ile parti defteri uyumsuz")
)

// BatchConsumption: FIFO tüketiminde hangi partiden kaç adet, hangi birim
// maliyetle düşüldüğünü taşır. COGS ve transferde maliyet aktarımı buna dayanır.
type BatchConsumption struct {
	BatchID  uint
	UnitCost float64
	Quantity int
}

// CurrentQuantity: (ürün, şube) çiftinin güncel stok sayacı. Kayıt yoksa 0.
func CurrentQuantity(db *gorm.DB, productID, branchID uint) (int, error) {
	var bs models.BranchStock
	err := db.Where("branch_id = ? AND product_id = ?", branchID, productID).First(&bs).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("stok sayacı okunamadı: %w", err)
	}
	return bs.Quantity, nil
}

// lockBranchStock: Sayaç satırını SELECT ... FOR UPDATE ile kilitler.
// Satır yoksa ve createIfMissing true ise sıfır stoklu satır açar; bu satır da
// transaction bitene kadar bu transaction'a aittir. Eş zamanlı iki transaction
// aynı anda satır açmaya kalkarsa unique index ikincisini düşürür; savepoint'e
// dönülüp kazananın satırı kilitlenerek devam edilir.
func lockBranchStock(tx *gorm.DB, productID, branchID uint, createIfMissing bool) (*models.BranchStock, error) {
	var bs models.BranchStock
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND product_id = ?", branchID, productID).
		First(&bs).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		if !createIfMissing {
			return nil, ErrInsufficientStock
		}
		// Unique violation Postgres'te transaction'ı düşürür, create savepoint
		// arkasından yapılır ki kaybeden taraf devam edebilsin
		if err := tx.SavePoint("branch_stock_create").Error; err != nil {
			return nil, fmt.Errorf("stok sayacı oluşturulamadı: %w", err)
		}
		bs = models.BranchStock{BranchID: branchID, ProductID: productID, Quantity: 0}
		if createErr := tx.Create(&bs).Error; createErr != nil {
			if err := tx.RollbackTo("branch_stock_create").Error; err != nil {
				return nil, fmt.Errorf("stok sayacı oluşturulamadı: %w", createErr)
			}
			if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("branch_id = ? AND product_id = ?", branchID, productID).
				First(&bs).Error; err != nil {
				return nil, fmt.Errorf("stok sayacı oluşturulamadı: %w", createErr)
			}
		}
		return &bs, nil
	}
	if err != nil {
		return nil, fmt.Errorf("stok sayacı kilitlenemedi: %w", err)
	}
	return &bs, nil
}

// AdjustLocked: Sayacı delta kadar günceller (negatif delta = çıkış).
// Transaction içinde çağrılmalıdır; satırı kilitleyip yeniden okur, transaction
// öncesi yapılan stok okumalarına güvenmez. Sonuç negatife düşecekse hiçbir şey
// yazmadan ErrInsufficientStock döner. Dönen değerler kardex satırı için
// önceki/yeni stok anlık görüntüsüdür.
func AdjustLocked(tx *gorm.DB, productID, branchID uint, delta int) (previous int, current int, err error) {
	bs, err := lockBranchStock(tx, productID, branchID, delta > 0)
	if err != nil {
		return 0, 0, err
	}

	if bs.Quantity+delta < 0 {
		return 0, 0, ErrInsufficientStock
	}

	// Satır zaten kilitli ama yine de koşullu yazıyoruz; CHECK constraint ile
	// birlikte sayaç hiçbir yoldan negatife düşemez.
	res := tx.Model(&models.BranchStock{}).
		Where("id = ? AND quantity + ? >= 0", bs.ID, delta).
		Updates(map[string]any{
			"quantity":   gorm.Expr("quantity + ?", delta),
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return 0, 0, fmt.Errorf("stok sayacı güncellenemedi: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, 0, ErrInsufficientStock
	}

	return bs.Quantity, bs.Quantity + delta, nil
}

// BatchInput: Yeni parti girişi.
type BatchInput struct {
	ProductID      uint
	BranchID       uint
	Quantity       int
	UnitCost       float64
	ReceivedByID   uint
	ReceivedByName string
}

// AddBatch: Yeni stok giriş partisi ekler (kalan = giriş miktarı).
// Mevcut partilere asla dokunmaz. Sayaç güncellemesi ve kardex kaydı
// caller'ın (aynı transaction içindeki) sorumluluğudur.
func AddBatch(tx *gorm.DB, in BatchInput) (*models.StockBatch, error) {
	if in.Quantity <= 0 {
		return nil, fmt.Errorf("parti miktarı pozitif olmalı")
	}
	if in.UnitCost < 0 {
		return nil, fmt.Errorf("birim maliyet negatif olamaz")
	}

	batch := models.StockBatch{
		BranchID:        in.BranchID,
		ProductID:       in.ProductID,
		UnitCost:        in.UnitCost,
		InitialQuantity: in.Quantity,
		RemainingQty:    in.Quantity,
		ReceivedByID:    in.ReceivedByID,
		ReceivedByName:  in.ReceivedByName,
	}
	if err := tx.Create(&batch).Error; err != nil {
		return nil, fmt.Errorf("parti oluşturulamadı: %w", err)
	}
	return &batch, nil
}

// planConsumption: Partilerden FIFO sırayla tüketim planı çıkarır.
// batches, created_at ASC (eşitlikte id ASC) sıralı gelmelidir.
// Toplam kalan yetmiyorsa hiçbir parçayı kabul etmez, ErrInsufficientBatchStock döner.
func planConsumption(batches []models.StockBatch, quantity int) ([]BatchConsumption, error) {
	remaining := quantity
	plan := make([]BatchConsumption, 0, len(batches))

	for _, b := range batches {
		if remaining == 0 {
			break
		}
		if b.RemainingQty <= 0 {
			continue
		}
		take := b.RemainingQty
		if take > remaining {
			take = remaining
		}
		plan = append(plan, BatchConsumption{BatchID: b.ID, UnitCost: b.UnitCost, Quantity: take})
		remaining -= take
	}

	if remaining > 0 {
		return nil, ErrInsufficientBatchStock
	}
	return plan, nil
}

// ConsumeFIFO: (ürün, şube) partilerini en eskiden başlayarak tüketir ve her
// dokunulan partinin kalanını düşer. Kontrol ve düşüm aynı transaction içinde,
// kilitli satırlar üzerinden yapılır; iki eş zamanlı satış aynı partiyi iki kez
// tüketemez. Dönen liste hangi lotların hangi maliyetle tüketildiğini verir.
func ConsumeFIFO(tx *gorm.DB, productID, branchID uint, quantity int) ([]BatchConsumption, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("tüketim miktarı pozitif olmalı")
	}

	var batches []models.StockBatch
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("branch_id = ? AND product_id = ? AND remaining_qty > 0", branchID, productID).
		Order("created_at ASC, id ASC"). // eşit timestamp'te id belirleyici
		Find(&batches).Error; err != nil {
		return nil, fmt.Errorf("partiler okunamadı: %w", err)
	}

	plan, err := planConsumption(batches, quantity)
	if err != nil {
		return nil, err
	}

	for _, p := range plan {
		res := tx.Model(&models.StockBatch{}).
			Where("id = ? AND remaining_qty >= ?", p.BatchID, p.Quantity).
			Updates(map[string]any{
				"remaining_qty": gorm.Expr("remaining_qty - ?", p.Quantity),
				"updated_at":    time.Now(),
			})
		if res.Error != nil {
			return nil, fmt.Errorf("parti düşülemedi: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Satır kilitliydi, buraya düşmek plan ile veri arasında kopma demek
			return nil, ErrInsufficientBatchStock
		}
	}

	return plan, nil
}

// WeightedUnitCost: Tüketim planının ağırlıklı ortalama birim maliyeti.
// Satış kaleminin COGS'u bu değerle sabitlenir.
func WeightedUnitCost(plan []BatchConsumption) float64 {
	totalQty := 0
	totalCost := 0.0
	for _, p := range plan {
		totalQty += p.Quantity
		totalCost += float64(p.Quantity) * p.UnitCost
	}
	if totalQty == 0 {
		return 0
	}
	return totalCost / float64(totalQty)
}

// PlanTotalCost: Tüketim planının toplam maliyeti.
func PlanTotalCost(plan []BatchConsumption) float64 {
	total := 0.0
	for _, p := range plan {
		total += float64(p.Quantity) * p.UnitCost
	}
	return total
}

// MovementInput: Kardex satırı girdisi.
type MovementInput struct {
	BranchID     uint
	BranchName   string
	ProductID    uint
	ProductName  string
	Kind         models.MovementKind
	Quantity     int // işaretli delta
	PrevStock    int
	NewStock     int
	Reason       string
	SaleID       *uint
	TransferCode *string
	UserID       uint
	UserName     string
}

// RecordMovement: Kardex'e tek satır ekler. Güncelleme/silme yolu yoktur.
func RecordMovement(tx *gorm.DB, in MovementInput) (*models.StockMovement, error) {
	if in.NewStock != in.PrevStock+in.Quantity {
		return nil, fmt.Errorf("kardex tutarsız: %d + %d != %d", in.PrevStock, in.Quantity, in.NewStock)
	}

	m := models.StockMovement{
		BranchID:      in.BranchID,
		BranchName:    in.BranchName,
		ProductID:     in.ProductID,
		ProductName:   in.ProductName,
		Kind:          in.Kind,
		Quantity:      in.Quantity,
		PreviousStock: in.PrevStock,
		NewStock:      in.NewStock,
		Reason:        in.Reason,
		SaleID:        in.SaleID,
		TransferCode:  in.TransferCode,
		UserID:        in.UserID,
		UserName:      in.UserName,
	}
	if err := tx.Create(&m).Error; err != nil {
		return nil, fmt.Errorf("kardex kaydı oluşturulamadı: %w", err)
	}
	return &m, nil
}

// MovementFilter: Kardex sorgu filtreleri. Sayfalama zorunlu; kardex sınırsız büyür.
type MovementFilter struct {
	BranchID  *uint
	ProductID *uint
	Kind      *models.MovementKind
	From      *time.Time
	To        *time.Time
	Limit     int
	Offset    int
}

const (
	defaultMovementLimit = 100
	maxMovementLimit     = 500
)

// QueryMovements: Kardex'i yeniden eskiye sıralı döner.
func QueryMovements(db *gorm.DB, f MovementFilter) ([]models.StockMovement, error) {
	q := db.Model(&models.StockMovement{})
	if f.BranchID != nil {
		q = q.Where("branch_id = ?", *f.BranchID)
	}
	if f.ProductID != nil {
		q = q.Where("product_id = ?", *f.ProductID)
	}
	if f.Kind != nil {
		q = q.Where("kind = ?", *f.Kind)
	}
	if f.From != nil {
		q = q.Where("created_at >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("created_at <= ?", *f.To)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultMovementLimit
	}
	if limit > maxMovementLimit {
		limit = maxMovementLimit
	}

	var movements []models.StockMovement
	if err := q.Order("created_at DESC, id DESC").
		Limit(limit).Offset(f.Offset).
		Find(&movements).Error; err != nil {
		return nil, fmt.Errorf("kardex sorgulanamadı: %w", err)
	}
	return movements, nil
}

// ReplayMovements: Kardex satırlarını (eski → yeni) 0'dan oynatıp son stoku üretir.
// Sayaçla karşılaştırmak bütünlük kontrolünün temelidir.
func ReplayMovements(movements []models.StockMovement) int {
	stock := 0
	for _, m := range movements {
		stock += m.Quantity
	}
	return stock
}

// SumRemaining: (ürün, şube) partilerindeki toplam kalan. Sayaçla eşit olmalıdır.
func SumRemaining(db *gorm.DB, productID, branchID uint) (int, error) {
	var total int64
	err := db.Model(&models.StockBatch{}).
		Where("branch_id = ? AND product_id = ?", branchID, productID).
		Select("COALESCE(SUM(remaining_qty), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("parti toplamı okunamadı: %w", err)
	}
	return int(total), nil
}
