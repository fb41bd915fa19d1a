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
)

type CreateTransferRequest struct {
	ProductID    uint   `json:"product_id"`
	FromBranchID *uint  `json:"from_branch_id"` // super_admin için; şube rolleri kendi şubesinden gönderir
	ToBranchID   uint   `json:"to_branch_id"`
	Quantity     int    `json:"quantity"`
	Note         string `json:"note"`
}

type TransferResponse struct {
	TransferCode  string `json:"transfer_code"`
	ProductID     uint   `json:"product_id"`
	ProductName   string `json:"product_name"`
	FromBranchID  uint   `json:"from_branch_id"`
	ToBranchID    uint   `json:"to_branch_id"`
	Quantity      int    `json:"quantity"`
	SourceStock   int    `json:"source_stock"`
	TargetStock   int    `json:"target_stock"`
	BatchesOpened int    `json:"batches_opened"` // hedefte açılan parti sayısı
}

// POST /api/stock/transfers
func CreateTransferHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateTransferRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}

		if body.ProductID == 0 || body.ToBranchID == 0 || body.Quantity <= 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id, to_branch_id zorunlu; quantity pozitif olmalı")
		}

		fromBranchID, err := resolveBranchIDFromBodyOrRole(c, body.FromBranchID)
		if err != nil {
			return err
		}
		if fromBranchID == body.ToBranchID {
			return fiber.NewError(fiber.StatusBadRequest, "Kaynak ve hedef şube aynı olamaz")
		}

		userID, userName, err := getUserInfo(c)
		if err != nil {
			return err
		}

		product, fromBranch, err := loadProductAndBranch(body.ProductID, fromBranchID)
		if err != nil {
			return err
		}
		var toBranch models.Branch
		if err := database.DB.First(&toBranch, "id = ?", body.ToBranchID).Error; err != nil {
			return fiber.NewError(fiber.StatusBadRequest, fmt.Sprintf("Hedef şube bulunamadı (ID: %d)", body.ToBranchID))
		}

		reason := "transfer"
		if body.Note != "" {
			reason = "transfer: " + body.Note
		}

		result, err := Transfer(database.DB, TransferInput{
			ProductID:    body.ProductID,
			ProductName:  product.Name,
			FromBranchID: fromBranchID,
			FromName:     fromBranch.Name,
			ToBranchID:   body.ToBranchID,
			ToName:       toBranch.Name,
			Quantity:     body.Quantity,
			Reason:       reason,
			UserID:       userID,
			UserName:     userName,
		})
		if errors.Is(err, ErrInsufficientStock) {
			return fiber.NewError(fiber.StatusConflict, "Yetersiz stok: kaynak şubede bu miktar yok")
		}
		if errors.Is(err, ErrInsufficientBatchStock) {
			log.Printf("[INTEGRITY] parti defteri sayaçla uyumsuz: ürün=%d şube=%d", body.ProductID, fromBranchID)
			return fiber.NewError(fiber.StatusInternalServerError, "Stok verisi tutarsız, yöneticinize bildirin")
		}
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Transfer kaydedilemedi: "+err.Error())
		}

		resp := TransferResponse{
			TransferCode:  result.TransferCode,
			ProductID:     body.ProductID,
			ProductName:   product.Name,
			FromBranchID:  fromBranchID,
			ToBranchID:    body.ToBranchID,
			Quantity:      body.Quantity,
			SourceStock:   result.SourceStock,
			TargetStock:   result.TargetStock,
			BatchesOpened: result.BatchesOpened,
		}

		_ = audit.WriteLog(audit.LogOptions{
			BranchID:    &fromBranchID,
			UserID:      userID,
			UserName:    userName,
			EntityType:  "stock_transfer",
			EntityID:    0,
			Action:      models.AuditActionCreate,
			Description: fmt.Sprintf("Transfer %s: %s - %d %s (%s → %s)", result.TransferCode, product.Name, body.Quantity, product.Unit, fromBranch.Name, toBranch.Name),
			After:       resp,
		})

		events.Publish(events.StockEvent{
			BranchID:    fromBranchID,
			ProductID:   body.ProductID,
			ProductName: product.Name,
			Kind:        string(models.MovementTransfer),
			Quantity:    -body.Quantity,
			NewStock:    resp.SourceStock,
			At:          time.Now(),
		})
		events.Publish(events.StockEvent{
			BranchID:    body.ToBranchID,
			ProductID:   body.ProductID,
			ProductName: product.Name,
			Kind:        string(models.MovementTransfer),
			Quantity:    body.Quantity,
			NewStock:    resp.TargetStock,
			At:          time.Now(),
		})

		return c.Status(fiber.StatusCreated).JSON(resp)
	}
}
