package stock

import (
	"fmt"
	"time"

	"magaza-backend/internal/audit"
	"magaza-backend/internal/database"
	"magaza-backend/internal/events"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateStockEntryRequest struct {
	ProductID uint    `json:"product_id"`
	BranchID  *uint   `json:"branch_id"` // super_admin için
	Quantity  int     `json:"quantity"`
	UnitCost  float64 `json:"unit_cost"`
	Reason    string  `json:"reason"` // purchase / customer_return
	Note      string  `json:"note"`
}

type StockEntryResponse struct {
	BatchID     uint    `json:"batch_id"`
	MovementID  uint    `json:"movement_id"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	BranchID    uint    `json:"branch_id"`
	Quantity    int     `json:"quantity"`
	UnitCost    float64 `json:"unit_cost"`
	NewStock    int     `json:"new_stock"`
	CreatedAt   string  `json:"created_at"`
}

var entryReasons = map[string]bool{
	models.ReasonPurchase:       true,
	models.ReasonCustomerReturn: true,
}

// POST /api/stock/entries
// Mal kabul: parti + sayaç + kardex tek transaction'da yazılır.
func CreateStockEntryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateStockEntryRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.ProductID == 0 || body.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id zorunlu, quantity pozitif olmalı")
		}
		if body.UnitCost < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "unit_cost negatif olamaz")
		}
		if !entryReasons[body.Reason] {
			return fiber.NewError(fiber.StatusBadRequest, "reason 'purchase' veya 'customer_return' olmalı")
		}

		branchID, err := resolveBranchIDFromBodyOrRole(c, body.BranchID)
		if err != nil {
			return err
		}

		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}

		product, branch, err := loadProductAndBranch(body.ProductID, branchID)
		if err != nil {
			return err
		}

		reason := body.Reason
		if body.Note != "" {
			reason = fmt.Sprintf("%s: %s", body.Reason, body.Note)
		}

		var batch *models.StockBatch
		var movement *models.StockMovement
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			var txErr error
			batch, txErr = AddBatch(tx, BatchInput{
				ProductID:      body.ProductID,
				BranchID:       branchID,
				Quantity:       body.Quantity,
				UnitCost:       body.UnitCost,
				ReceivedByID:   userID,
				ReceivedByName: userName,
			})
			if txErr != nil {
				return txErr
			}

			prev, next, txErr := AdjustLocked(tx, body.ProductID, branchID, body.Quantity)
			if txErr != nil {
				return txErr
			}

			movement, txErr = RecordMovement(tx, MovementInput{
				BranchID:    branchID,
				BranchName:  branch.Name,
				ProductID:   body.ProductID,
				ProductName: product.Name,
				Kind:        models.MovementEntry,
				Quantity:    body.Quantity,
				PrevStock:   prev,
				NewStock:    next,
				Reason:      reason,
				UserID:      userID,
				UserName:    userName,
			})
			return txErr
		})
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok girişi kaydedilemedi: "+err.Error())
		}

		// Audit log (stok etkisi kardex'te; burada operasyonel iz)
		_ = audit.WriteLog(audit.LogOptions{
			BranchID:    &branchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "stock_batch",
			EntityID:    batch.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Mal kabul: %s - %d %s (birim %.2f)", product.Name, body.Quantity, product.Unit, body.UnitCost),
			After:       batch,
		})

		events.Publish(events.StockEvent{
			BranchID:    branchID,
			ProductID:   body.ProductID,
			ProductName: product.Name,
			Kind:        string(models.MovementEntry),
			Quantity:    body.Quantity,
			NewStock:    movement.NewStock,
			At:          time.Now(),
		})

		return c.Status(fiber.StatusCreated).JSON(StockEntryResponse{
			BatchID:     batch.ID,
			MovementID:  movement.ID,
			ProductID:   body.ProductID,
			ProductName: product.Name,
			BranchID:    branchID,
			Quantity:    body.Quantity,
			UnitCost:    body.UnitCost,
			NewStock:    movement.NewStock,
			CreatedAt:   batch.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

type BatchResponse struct {
	ID              uint    `json:"id"`
	ProductID       uint    `json:"product_id"`
	ProductName     string  `json:"product_name"`
	UnitCost        float64 `json:"unit_cost"`
	InitialQuantity int     `json:"initial_quantity"`
	RemainingQty    int     `json:"remaining_qty"`
	ReceivedByName  string  `json:"received_by_name"`
	CreatedAt       string  `json:"created_at"`
}

// GET /api/stock/batches?product_id=&only_active=true
// Parti defteri: en eski önce (FIFO sırası neyse o görünür)
func ListBatchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		q := database.DB.Preload("Product").Where("branch_id = ?", branchID)

		if pidStr := c.Query("product_id"); pidStr != "" {
			var pid uint
			if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "product_id geçersiz")
			}
			q = q.Where("product_id = ?", pid)
		}
		if c.Query("only_active") == "true" {
			q = q.Where("remaining_qty > 0")
		}

		var batches []models.StockBatch
		if err := q.Order("created_at ASC, id ASC").Find(&batches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Partiler listelenemedi")
		}

		resp := make([]BatchResponse, 0, len(batches))
		for _, b := range batches {
			resp = append(resp, BatchResponse{
				ID:              b.ID,
				ProductID:       b.ProductID,
				ProductName:     b.Product.Name,
				UnitCost:        b.UnitCost,
				InitialQuantity: b.InitialQuantity,
				RemainingQty:    b.RemainingQty,
				ReceivedByName:  b.ReceivedByName,
				CreatedAt:       b.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(resp)
	}
}
