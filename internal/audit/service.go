package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"magaza-backend/internal/database"
	"magaza-backend/internal/models"
)

type LogOptions struct {
	BranchID    *uint
	UserID      uint
	UserName    string
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	Description string
	Before      any
	After       any
}

func WriteLog(opts LogOptions) error {
	// PostgreSQL jsonb için boş string yerine "null" JSON string'i kullanmalıyız
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		if b, err := json.Marshal(opts.Before); err == nil {
			beforeStr = string(b)
		}
	}
	if opts.After != nil {
		if b, err := json.Marshal(opts.After); err == nil {
			afterStr = string(b)
		}
	}

	log := models.AuditLog{
		BranchID:    opts.BranchID,
		UserID:      opts.UserID,
		UserName:    opts.UserName,
		EntityType:  opts.EntityType,
		EntityID:    opts.EntityID,
		Action:      opts.Action,
		Description: opts.Description,
		BeforeData:  beforeStr,
		AfterData:   afterStr,
		Undone:      false,
		IsUndone:    false,
	}

	if err := database.DB.Create(&log).Error; err != nil {
		return fmt.Errorf("audit log kaydedilemedi: %w", err)
	}

	return nil
}

// Stok defterine dokunan kayıtlar audit üzerinden GERİ ALINMAZ. Kardex ve
// partiler append-only'dir; satış için iptal endpoint'i, stok için ters
// düzeltme kaydı kullanılır. Buradan silmek sayaç/parti/kardex üçlüsünü koparır.
var immutableEntities = map[string]string{
	"sale":           "satış iptali için /api/sales/:id/cancel kullanın",
	"stock_movement": "kardex kaydı geri alınamaz, ters düzeltme girin",
	"stock_transfer": "transfer geri alınamaz, ters yönde yeni transfer girin",
	"stock_batch":    "parti kaydı geri alınamaz",
}

// UndoLog - Bir audit log'u undo et
func UndoLog(logID uint, userID uint, userName string) error {
	var log models.AuditLog
	if err := database.DB.First(&log, "id = ?", logID).Error; err != nil {
		return fmt.Errorf("log bulunamadı: %w", err)
	}

	// Zaten undo edilmiş mi?
	if log.IsUndone {
		return fmt.Errorf("bu işlem zaten geri alınmış")
	}

	if hint, immutable := immutableEntities[log.EntityType]; immutable {
		return fmt.Errorf("bu kayıt türü geri alınamaz: %s", hint)
	}

	// Undo işlemini gerçekleştir
	switch log.Action {
	case models.AuditActionCreate:
		// Create ise entity'yi sil
		if err := deleteEntity(log.EntityType, log.EntityID); err != nil {
			return fmt.Errorf("entity silinemedi: %w", err)
		}

	case models.AuditActionUpdate:
		// Update ise önceki haline geri döndür
		if err := restoreEntity(log.EntityType, log.EntityID, log.BeforeData); err != nil {
			return fmt.Errorf("entity geri yüklenemedi: %w", err)
		}

	case models.AuditActionDelete:
		// Delete ise entity'yi geri oluştur (create)
		if err := recreateEntity(log.EntityType, log.AfterData); err != nil {
			return fmt.Errorf("entity geri oluşturulamadı: %w", err)
		}

	default:
		return fmt.Errorf("bu işlem türü geri alınamaz")
	}

	// Log'u işaretle
	now := time.Now()
	log.IsUndone = true
	log.UndoneBy = &userID
	log.UndoneAt = &now

	if err := database.DB.Save(&log).Error; err != nil {
		return fmt.Errorf("log güncellenemedi: %w", err)
	}

	// Undo işlemi için yeni bir log oluştur
	undoLog := models.AuditLog{
		BranchID:    log.BranchID,
		UserID:      userID,
		UserName:    userName,
		EntityType:  log.EntityType,
		EntityID:    log.EntityID,
		Action:      models.AuditActionUndo,
		Description: fmt.Sprintf("Geri alındı: %s", log.Description),
		BeforeData:  log.AfterData,
		AfterData:   log.BeforeData,
		Undone:      true,
		IsUndone:    false,
	}

	if err := database.DB.Create(&undoLog).Error; err != nil {
		return fmt.Errorf("undo log kaydedilemedi: %w", err)
	}

	return nil
}

// deleteEntity - Entity'yi sil
func deleteEntity(entityType string, entityID uint) error {
	switch entityType {
	case "expense":
		return database.DB.Delete(&models.Expense{}, "id = ?", entityID).Error
	case "expense_payment":
		return database.DB.Delete(&models.ExpensePayment{}, "id = ?", entityID).Error
	case "product":
		return database.DB.Delete(&models.Product{}, "id = ?", entityID).Error
	case "product_category":
		return database.DB.Delete(&models.ProductCategory{}, "id = ?", entityID).Error
	default:
		return fmt.Errorf("bilinmeyen entity tipi: %s", entityType)
	}
}

// recreateEntity - Silinen entity'yi geri oluştur
func recreateEntity(entityType string, dataJSON string) error {
	switch entityType {
	case "expense":
		var expense models.Expense
		if err := json.Unmarshal([]byte(dataJSON), &expense); err != nil {
			return err
		}
		expense.ID = 0 // Yeni entity oluştur
		return database.DB.Create(&expense).Error

	case "expense_payment":
		var payment models.ExpensePayment
		if err := json.Unmarshal([]byte(dataJSON), &payment); err != nil {
			return err
		}
		payment.ID = 0
		return database.DB.Create(&payment).Error

	case "product":
		var product models.Product
		if err := json.Unmarshal([]byte(dataJSON), &product); err != nil {
			return err
		}
		product.ID = 0
		return database.DB.Create(&product).Error

	case "product_category":
		var category models.ProductCategory
		if err := json.Unmarshal([]byte(dataJSON), &category); err != nil {
			return err
		}
		category.ID = 0
		return database.DB.Create(&category).Error

	default:
		return fmt.Errorf("bilinmeyen entity tipi: %s", entityType)
	}
}

// restoreEntity - Entity'yi geri yükle (update)
func restoreEntity(entityType string, entityID uint, dataJSON string) error {
	switch entityType {
	case "expense":
		var expense models.Expense
		if err := json.Unmarshal([]byte(dataJSON), &expense); err != nil {
			return err
		}
		return database.DB.Model(&models.Expense{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"branch_id":   expense.BranchID,
			"category_id": expense.CategoryID,
			"date":        expense.Date,
			"amount":      expense.Amount,
			"description": expense.Description,
		}).Error

	case "product":
		var product models.Product
		if err := json.Unmarshal([]byte(dataJSON), &product); err != nil {
			return err
		}
		return database.DB.Model(&models.Product{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name":        product.Name,
			"stock_code":  product.StockCode,
			"unit":        product.Unit,
			"category_id": product.CategoryID,
			"sale_price":  product.SalePrice,
			"is_active":   product.IsActive,
		}).Error

	case "product_category":
		var category models.ProductCategory
		if err := json.Unmarshal([]byte(dataJSON), &category); err != nil {
			return err
		}
		return database.DB.Model(&models.ProductCategory{}).Where("id = ?", entityID).Updates(map[string]interface{}{
			"name": category.Name,
		}).Error

	default:
		return fmt.Errorf("bilinmeyen entity tipi: %s", entityType)
	}
}
