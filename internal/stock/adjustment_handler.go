package stock

import (
	"errors"
	"fmt"
	"log"
	"time"

	"magaza-backend/internal/audit"
	"magaza-backend/internal/database"
	"magaza-backend/internal/events"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CreateAdjustmentRequest struct {
	ProductID uint     `json:"product_id"`
	BranchID  *uint    `json:"branch_id"`  // super_admin için
	Quantity  int      `json:"quantity"`   // işaretli delta: sayım fazlası +, zayiat/eksik -
	UnitCost  *float64 `json:"unit_cost"`  // sadece pozitif düzeltmede zorunlu (yeni parti açılır)
	Reason    string   `json:"reason"`     // adjustment / waste
	Note      string   `json:"note"`
}

type AdjustmentResponse struct {
	MovementID  uint   `json:"movement_id"`
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	BranchID    uint   `json:"branch_id"`
	Quantity    int    `json:"quantity"`
	NewStock    int    `json:"new_stock"`
}

var adjustmentReasons = map[string]bool{
	models.ReasonAdjustment: true,
	models.ReasonWaste:      true,
}

// POST /api/stock/adjustments
// Manuel düzeltme / zayiat. Negatif delta partilerden FIFO düşer (maliyet
// tarihçesi bozulmaz), pozitif delta yeni parti açar; sayaç = parti toplamı
// invariant'ı her iki yönde de korunur.
func CreateAdjustmentHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateAdjustmentRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.ProductID == 0 || body.Quantity == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id zorunlu, quantity sıfır olamaz")
		}
		if !adjustmentReasons[body.Reason] {
			return fiber.NewError(fiber.StatusBadRequest, "reason 'adjustment' veya 'waste' olmalı")
		}
		if body.Quantity > 0 && (body.UnitCost == nil || *body.UnitCost < 0) {
			return fiber.NewError(fiber.StatusBadRequest, "Pozitif düzeltmede unit_cost zorunlu")
		}
		if body.Reason == models.ReasonWaste && body.Quantity > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Zayiat miktarı negatif olmalı")
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

		var movement *models.StockMovement
		err = database.DB.Transaction(func(tx *gorm.DB) error {
			prev, next, txErr := AdjustLocked(tx, body.ProductID, branchID, body.Quantity)
			if txErr != nil {
				return txErr
			}

			if body.Quantity < 0 {
				if _, txErr = ConsumeFIFO(tx, body.ProductID, branchID, -body.Quantity); txErr != nil {
					return txErr
				}
			} else {
				if _, txErr = AddBatch(tx, BatchInput{
					ProductID:      body.ProductID,
					BranchID:       branchID,
					Quantity:       body.Quantity,
					UnitCost:       *body.UnitCost,
					ReceivedByID:   userID,
					ReceivedByName: userName,
				}); txErr != nil {
					return txErr
				}
			}

			movement, txErr = RecordMovement(tx, MovementInput{
				BranchID:    branchID,
				BranchName:  branch.Name,
				ProductID:   body.ProductID,
				ProductName: product.Name,
				Kind:        models.MovementAdjustment,
				Quantity:    body.Quantity,
				PrevStock:   prev,
				NewStock:    next,
				Reason:      reason,
				UserID:      userID,
				UserName:    userName,
			})
			return txErr
		})
		if errors.Is(err, ErrInsufficientStock) {
			return fiber.NewError(fiber.StatusConflict, "Yetersiz stok: mevcut stoktan fazlası düşülemez")
		}
		if errors.Is(err, ErrInsufficientBatchStock) {
			// Sayaç ile parti defteri kopmuş; sessizce yutulmaz
			log.Printf("[INTEGRITY] parti defteri sayaçla uyumsuz: ürün=%d şube=%d", body.ProductID, branchID)
			return fiber.NewError(fiber.StatusInternalServerError, "Stok verisi tutarsız, yöneticinize bildirin")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Düzeltme kaydedilemedi: "+err.Error())
		}

		_ = audit.WriteLog(audit.LogOptions{
			BranchID:    &branchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "stock_movement",
			EntityID:    movement.ID,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Stok düzeltme: %s %+d %s (%s)", product.Name, body.Quantity, product.Unit, body.Reason),
			After:       movement,
		})

		events.Publish(events.StockEvent{
			BranchID:    branchID,
			ProductID:   body.ProductID,
			ProductName: product.Name,
			Kind:        string(models.MovementAdjustment),
			Quantity:    body.Quantity,
			NewStock:    movement.NewStock,
			At:          time.Now(),
		})

		return c.Status(fiber.StatusCreated).JSON(AdjustmentResponse{
			MovementID:  movement.ID,
			ProductID:   body.ProductID,
			ProductName: product.Name,
			BranchID:    branchID,
			Quantity:    body.Quantity,
			NewStock:    movement.NewStock,
		})
	}
}
