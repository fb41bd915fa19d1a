package sales

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"magaza-backend/internal/audit"
	"magaza-backend/internal/auth"
	"magaza-backend/internal/database"
	"magaza-backend/internal/events"
	"magaza-backend/internal/models"
	"magaza-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Redis SETNX ile hızlı mükerrer-istek elemesi. Asıl güvence veritabanındaki
// unique code index'idir; Redis yoksa sistem yine doğru çalışır.
var idempotencyClient *redis.Client

const idempotencyTTL = 24 * time.Hour

func InitIdempotency(client *redis.Client) {
	idempotencyClient = client
}

func alreadySeen(code string) bool {
	if idempotencyClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ok, err := idempotencyClient.SetNX(ctx, "sale:code:"+code, 1, idempotencyTTL).Result()
	if err != nil {
		// Redis arızası satışı durdurmaz
		log.Printf("idempotency kontrolü yapılamadı: %v", err)
		return false
	}
	return !ok
}

func getUserInfo(c *fiber.Ctx) (uint, string, error) {
	userIDVal := c.Locals(auth.CtxUserIDKey)
	userID, ok := userIDVal.(uint)
	if !ok {
		return 0, "", fiber.NewError(fiber.StatusForbidden, "Kullanıcı bilgisi alınamadı")
	}

	var user models.User
	if err := database.DB.First(&user, "id = ?", userID).Error; err != nil {
		return 0, "", fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı bulunamadı")
	}

	return userID, user.Name, nil
}

func resolveBranchIDFromBodyOrRole(c *fiber.Ctx, bodyBranchID *uint) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role == models.RoleBranchAdmin || role == models.RoleCashier {
		bVal := c.Locals(auth.CtxBranchIDKey)
		bPtr, ok := bVal.(*uint)
		if !ok || bPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Şube bilgisi bulunamadı")
		}
		return *bPtr, nil
	}

	// super_admin
	if bodyBranchID == nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id zorunlu")
	}
	return *bodyBranchID, nil
}

func resolveBranchIDFromQueryOrRole(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role == models.RoleBranchAdmin || role == models.RoleCashier {
		bVal := c.Locals(auth.CtxBranchIDKey)
		bPtr, ok := bVal.(*uint)
		if !ok || bPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Şube bilgisi bulunamadı")
		}
		return *bPtr, nil
	}

	bidStr := c.Query("branch_id")
	if bidStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id zorunlu")
	}
	var bid uint
	if _, err := fmt.Sscan(bidStr, &bid); err != nil || bid == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id geçersiz")
	}
	return bid, nil
}

// canAccessSaleBranch: Şube rolleri sadece kendi şubesinin satışına dokunabilir,
// super_admin hepsine.
func canAccessSaleBranch(role models.UserRole, userBranch *uint, saleBranchID uint) bool {
	if role == models.RoleSuperAdmin {
		return true
	}
	return userBranch != nil && *userBranch == saleBranchID
}

type CreateSaleRequest struct {
	Code          string          `json:"code"` // caller'ın ürettiği benzersiz işlem no
	BranchID      *uint           `json:"branch_id"`
	Source        string          `json:"source"`         // pos / web
	PaymentMethod string          `json:"payment_method"` // cash / card / online
	Items         []SaleItemInput `json:"items"`
}

type SaleItemResponse struct {
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	UnitCost    float64 `json:"unit_cost"`
	TotalPrice  float64 `json:"total_price"`
}

type SaleResponse struct {
	ID            uint               `json:"id"`
	Code          string             `json:"code"`
	BranchID      uint               `json:"branch_id"`
	Source        string             `json:"source"`
	PaymentMethod string             `json:"payment_method"`
	Status        string             `json:"status"`
	TotalAmount   float64            `json:"total_amount"`
	TotalCost     float64            `json:"total_cost"`
	CashierName   string             `json:"cashier_name"`
	Items         []SaleItemResponse `json:"items"`
	CreatedAt     string             `json:"created_at"`
	Duplicate     bool               `json:"duplicate,omitempty"` // idempotent tekrar mı
}

func toSaleResponse(s *models.Sale, duplicate bool) SaleResponse {
	items := make([]SaleItemResponse, 0, len(s.Items))
	for _, it := range s.Items {
		items = append(items, SaleItemResponse{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			UnitCost:    it.UnitCost,
			TotalPrice:  it.TotalPrice,
		})
	}
	return SaleResponse{
		ID:            s.ID,
		Code:          s.Code,
		BranchID:      s.BranchID,
		Source:        string(s.Source),
		PaymentMethod: string(s.PaymentMethod),
		Status:        string(s.Status),
		TotalAmount:   s.TotalAmount,
		TotalCost:     s.TotalCost,
		CashierName:   s.CashierName,
		Items:         items,
		CreatedAt:     s.CreatedAt.Format("2006-01-02 15:04:05"),
		Duplicate:     duplicate,
	}
}

// POST /api/sales
// Kasadan (POS) ve online mağazadan gelen satışların tek girişi.
// Yetersiz stok 409 döner ve kullanıcıya aynen gösterilir; client retry yapmamalı.
func CreateSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateSaleRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.Code == "" {
			return fiber.NewError(fiber.StatusBadRequest, "code zorunlu (benzersiz işlem numarası)")
		}

		source := models.SaleSource(body.Source)
		if source != models.SaleSourcePOS && source != models.SaleSourceWeb {
			return fiber.NewError(fiber.StatusBadRequest, "source 'pos' veya 'web' olmalı")
		}

		payment := models.PaymentMethod(body.PaymentMethod)
		switch payment {
		case models.PaymentCash, models.PaymentCard, models.PaymentOnline:
		default:
			return fiber.NewError(fiber.StatusBadRequest, "payment_method 'cash', 'card' veya 'online' olmalı")
		}

		branchID, err := resolveBranchIDFromBodyOrRole(c, body.BranchID)
		if err != nil {
			return err
		}

		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}

		// Hızlı yol: bu code az önce işlendiyse veritabanına inmeden yakala
		if alreadySeen(body.Code) {
			var existing models.Sale
			if err := database.DB.Preload("Items").Where("code = ?", body.Code).First(&existing).Error; err == nil {
				return c.JSON(toSaleResponse(&existing, true))
			}
			// Redis'te iz var ama satış commit edilmemiş (yarıda kalan deneme);
			// devam et, gerçek karar veritabanında verilir.
		}

		sale, err := ProcessSale(database.DB, SaleInput{
			Code:          body.Code,
			BranchID:      branchID,
			Source:        source,
			PaymentMethod: payment,
			Items:         body.Items,
			CashierID:     userID,
			CashierName:   userName,
		})
		if errors.Is(err, ErrDuplicateSale) {
			return c.JSON(toSaleResponse(sale, true))
		}
		var insufficient *InsufficientStockError
		if errors.As(err, &insufficient) {
			return fiber.NewError(fiber.StatusConflict, "Yetersiz stok: "+insufficient.ProductName)
		}
		if errors.Is(err, stock.ErrInsufficientBatchStock) {
			log.Printf("[INTEGRITY] satışta parti defteri sayaçla uyumsuz: şube=%d code=%s", branchID, body.Code)
			return fiber.NewError(fiber.StatusInternalServerError, "Stok verisi tutarsız, yöneticinize bildirin")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		_ = audit.WriteLog(audit.LogOptions{
			BranchID:    &branchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "sale",
			EntityID:    sale.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Satış %s: %d kalem, toplam %.2f", sale.Code, len(sale.Items), sale.TotalAmount),
			After:       sale,
		})

		for _, item := range sale.Items {
			qty, err := stock.CurrentQuantity(database.DB, item.ProductID, branchID)
			if err != nil {
				continue
			}
			events.Publish(events.StockEvent{
				BranchID:    branchID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Kind:        string(models.MovementExit),
				Quantity:    -item.Quantity,
				NewStock:    qty,
				At:          time.Now(),
			})
		}

		return c.Status(fiber.StatusCreated).JSON(toSaleResponse(sale, false))
	}
}

// GET /api/sales?from=&to=&status=
func ListSalesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		q := database.DB.Preload("Items").Where("branch_id = ?", branchID)

		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from tarihi 'YYYY-MM-DD' olmalı")
			}
			q = q.Where("created_at >= ?", from)
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to tarihi 'YYYY-MM-DD' olmalı")
			}
			q = q.Where("created_at < ?", to.AddDate(0, 0, 1))
		}
		if statusStr := c.Query("status"); statusStr != "" {
			q = q.Where("status = ?", statusStr)
		}

		limit := c.QueryInt("limit", 100)
		if limit > 500 {
			limit = 500
		}

		var salesList []models.Sale
		if err := q.Order("created_at DESC").
			Limit(limit).Offset(c.QueryInt("offset", 0)).
			Find(&salesList).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Satışlar listelenemedi")
		}

		resp := make([]SaleResponse, 0, len(salesList))
		for i := range salesList {
			resp = append(resp, toSaleResponse(&salesList[i], false))
		}
		return c.JSON(resp)
	}
}

// GET /api/sales/:id
func GetSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz satış ID")
		}

		var sale models.Sale
		if err := database.DB.Preload("Items").First(&sale, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Satış bulunamadı")
		}

		// Şube rolleri sadece kendi şubesini görür
		role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}
		bPtr, _ := c.Locals(auth.CtxBranchIDKey).(*uint)
		if !canAccessSaleBranch(role, bPtr, sale.BranchID) {
			return fiber.NewError(fiber.StatusForbidden, "Bu satışı görme yetkiniz yok")
		}

		return c.JSON(toSaleResponse(&sale, false))
	}
}

// POST /api/sales/:id/cancel
// Satış iptali: stok telafi girişleriyle geri döner, kardex'e dokunulmaz.
func CancelSaleHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := c.ParamsInt("id")
		if err != nil || id <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz satış ID")
		}

		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}

		// Şube admini başka şubenin satışını iptal edemez
		var existing models.Sale
		if err := database.DB.First(&existing, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Satış bulunamadı")
		}
		role, ok := c.Locals(auth.CtxUserRoleKey).(models.UserRole)
		if !ok {
			return fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
		}
		bPtr, _ := c.Locals(auth.CtxBranchIDKey).(*uint)
		if !canAccessSaleBranch(role, bPtr, existing.BranchID) {
			return fiber.NewError(fiber.StatusForbidden, "Bu satışı iptal etme yetkiniz yok")
		}

		sale, err := CancelSale(database.DB, uint(id), userID, userName)
		if errors.Is(err, ErrSaleNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "Satış bulunamadı")
		}
		if errors.Is(err, ErrSaleCancelled) {
			return fiber.NewError(fiber.StatusConflict, "Satış zaten iptal edilmiş")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Satış iptal edilemedi: "+err.Error())
		}

		_ = audit.WriteLog(audit.LogOptions{
			BranchID:    &sale.BranchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "sale",
			EntityID:    sale.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Satış iptali %s: %.2f", sale.Code, sale.TotalAmount),
			After:       sale,
		})

		for _, item := range sale.Items {
			qty, qErr := stock.CurrentQuantity(database.DB, item.ProductID, sale.BranchID)
			if qErr != nil {
				continue
			}
			events.Publish(events.StockEvent{
				BranchID:    sale.BranchID,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Kind:        string(models.MovementEntry),
				Quantity:    item.Quantity,
				NewStock:    qty,
				At:          time.Now(),
			})
		}

		return c.JSON(toSaleResponse(sale, false))
	}
}
