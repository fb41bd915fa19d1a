package reports

import (
	"magaza-backend/internal/database"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type ValuationRow struct {
	BranchID    uint    `json:"branch_id"`
	BranchName  string  `json:"branch_name"`
	ProductID   uint    `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Value       float64 `json:"value"` // Σ kalan × partinin birim maliyeti
}

type ValuationResponse struct {
	Rows       []ValuationRow `json:"rows"`
	TotalValue float64        `json:"total_value"`
}

func totalValue(rows []ValuationRow) float64 {
	total := 0.0
	for _, r := range rows {
		total += r.Value
	}
	return total
}

// valuateInventory: parti kalanlarını kendi alış maliyetleriyle çarpıp
// şube+ürün bazında toplar. branchID nil ise tüm şubeler döner.
func valuateInventory(db *gorm.DB, branchID *uint) ([]ValuationRow, error) {
	sql := `
		SELECT b.branch_id,
			   br.name AS branch_name,
			   b.product_id,
			   p.name AS product_name,
			   SUM(b.remaining_qty) AS quantity,
			   SUM(b.remaining_qty * b.unit_cost) AS value
		FROM stock_batches b
		JOIN branches br ON br.id = b.branch_id
		JOIN products p ON p.id = b.product_id
		WHERE b.remaining_qty > 0
	`
	args := []interface{}{}
	if branchID != nil {
		sql += " AND b.branch_id = ?"
		args = append(args, *branchID)
	}
	sql += " GROUP BY b.branch_id, br.name, b.product_id, p.name ORDER BY br.name, p.name;"

	var rows []ValuationRow
	if err := db.Raw(sql, args...).Scan(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// GET /api/reports/valuation[?branch_id=]
// Stok değerleme: her ürün partilerinin kalanı kendi alış maliyetiyle çarpılır.
// Güncel satış fiyatı değerlemeye girmez, maliyet tabanı partilerde yaşar.
// super_admin branch_id vermezse tüm şubeler döner.
func StockValuationHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := getOptionalBranchIDFromContext(c)
		if err != nil {
			return err
		}

		rows, err := valuateInventory(database.DB, branchID)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Değerleme hesaplanamadı")
		}

		return c.JSON(ValuationResponse{Rows: rows, TotalValue: totalValue(rows)})
	}
}
