package stock

import (
	"fmt"
	"time"

	"magaza-backend/internal/database"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type CurrentStockRow struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	StockCode   string `json:"stock_code"`
	Unit        string `json:"unit"`
	Quantity    int    `json:"quantity"`
	MinStock    int    `json:"min_stock"`
	LowStock    bool   `json:"low_stock"`
	LastUpdate  string `json:"last_update"`
}

// GET /api/stock/current
// Şubenin güncel stok sayaçları (düşük stok işaretli)
func GetCurrentStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var stocks []models.BranchStock
		if err := database.DB.Preload("Product").
			Where("branch_id = ?", branchID).
			Find(&stocks).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok listelenemedi")
		}

		rows := make([]CurrentStockRow, 0, len(stocks))
		for _, s := range stocks {
			rows = append(rows, CurrentStockRow{
				ProductID:   s.ProductID,
				ProductName: s.Product.Name,
				StockCode:   s.Product.StockCode,
				Unit:        s.Product.Unit,
				Quantity:    s.Quantity,
				MinStock:    s.MinStock,
				LowStock:    s.Quantity <= s.MinStock,
				LastUpdate:  s.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(rows)
	}
}

type UpdateMinStockRequest struct {
	ProductID uint  `json:"product_id"`
	BranchID  *uint `json:"branch_id"`
	MinStock  int   `json:"min_stock"`
}

// PUT /api/stock/min-stock
// Düşük stok eşiğini günceller (sayaç değerine dokunmaz)
func UpdateMinStockHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body UpdateMinStockRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz istek gövdesi")
		}
		if body.ProductID == 0 || body.MinStock < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "product_id zorunlu, min_stock negatif olamaz")
		}

		branchID, err := resolveBranchIDFromBodyOrRole(c, body.BranchID)
		if err != nil {
			return err
		}

		res := database.DB.Model(&models.BranchStock{}).
			Where("branch_id = ? AND product_id = ?", branchID, body.ProductID).
			Update("min_stock", body.MinStock)
		if res.Error != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Eşik güncellenemedi")
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "Bu ürün için stok kaydı yok")
		}

		return c.JSON(fiber.Map{"product_id": body.ProductID, "branch_id": branchID, "min_stock": body.MinStock})
	}
}

type MovementResponse struct {
	ID            uint    `json:"id"`
	BranchID      uint    `json:"branch_id"`
	BranchName    string  `json:"branch_name"`
	ProductID     uint    `json:"product_id"`
	ProductName   string  `json:"product_name"`
	Kind          string  `json:"kind"`
	Quantity      int     `json:"quantity"`
	PreviousStock int     `json:"previous_stock"`
	NewStock      int     `json:"new_stock"`
	Reason        string  `json:"reason"`
	SaleID        *uint   `json:"sale_id,omitempty"`
	TransferCode  *string `json:"transfer_code,omitempty"`
	UserName      string  `json:"user_name"`
	CreatedAt     string  `json:"created_at"`
}

// GET /api/stock/movements?product_id=&kind=&from=&to=&limit=&offset=
// Kardex sorgusu, yeniden eskiye
func ListMovementsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		f := MovementFilter{BranchID: &branchID}

		if pidStr := c.Query("product_id"); pidStr != "" {
			var pid uint
			if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "product_id geçersiz")
			}
			f.ProductID = &pid
		}
		if kindStr := c.Query("kind"); kindStr != "" {
			kind := models.MovementKind(kindStr)
			switch kind {
			case models.MovementEntry, models.MovementExit, models.MovementTransfer, models.MovementAdjustment:
				f.Kind = &kind
			default:
				return fiber.NewError(fiber.StatusBadRequest, "kind geçersiz (entry/exit/transfer/adjustment)")
			}
		}
		if fromStr := c.Query("from"); fromStr != "" {
			from, err := time.Parse("2006-01-02", fromStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "from tarihi 'YYYY-MM-DD' olmalı")
			}
			f.From = &from
		}
		if toStr := c.Query("to"); toStr != "" {
			to, err := time.Parse("2006-01-02", toStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "to tarihi 'YYYY-MM-DD' olmalı")
			}
			// gün sonuna kadar dahil
			end := to.AddDate(0, 0, 1).Add(-time.Second)
			f.To = &end
		}
		f.Limit = c.QueryInt("limit", 0)
		f.Offset = c.QueryInt("offset", 0)

		movements, err := QueryMovements(database.DB, f)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kardex sorgulanamadı")
		}

		resp := make([]MovementResponse, 0, len(movements))
		for _, m := range movements {
			resp = append(resp, MovementResponse{
				ID:            m.ID,
				BranchID:      m.BranchID,
				BranchName:    m.BranchName,
				ProductID:     m.ProductID,
				ProductName:   m.ProductName,
				Kind:          string(m.Kind),
				Quantity:      m.Quantity,
				PreviousStock: m.PreviousStock,
				NewStock:      m.NewStock,
				Reason:        m.Reason,
				SaleID:        m.SaleID,
				TransferCode:  m.TransferCode,
				UserName:      m.UserName,
				CreatedAt:     m.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(resp)
	}
}

type IntegrityRow struct {
	ProductID   uint   `json:"product_id"`
	ProductName string `json:"product_name"`
	Counter     int    `json:"counter"`       // BranchStock.Quantity
	BatchTotal  int    `json:"batch_total"`   // Σ RemainingQty
	Consistent  bool   `json:"consistent"`
}

// GET /api/stock/integrity
// Sayaç = Σ parti kalanı invariant'ını şube genelinde doğrular.
// Uyumsuzluk normalde ulaşılmaz bir durumdur; görülürse veri bütünlüğü alarmıdır.
func IntegrityCheckHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := resolveBranchIDFromQueryOrRole(c)
		if err != nil {
			return err
		}

		var stocks []models.BranchStock
		if err := database.DB.Preload("Product").
			Where("branch_id = ?", branchID).
			Find(&stocks).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok listelenemedi")
		}

		rows := make([]IntegrityRow, 0, len(stocks))
		allConsistent := true
		for _, s := range stocks {
			batchTotal, err := SumRemaining(database.DB, s.ProductID, branchID)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Parti toplamı okunamadı")
			}
			consistent := batchTotal == s.Quantity
			if !consistent {
				allConsistent = false
			}
			rows = append(rows, IntegrityRow{
				ProductID:   s.ProductID,
				ProductName: s.Product.Name,
				Counter:     s.Quantity,
				BatchTotal:  batchTotal,
				Consistent:  consistent,
			})
		}

		return c.JSON(fiber.Map{
			"branch_id":  branchID,
			"consistent": allConsistent,
			"rows":       rows,
		})
	}
}
