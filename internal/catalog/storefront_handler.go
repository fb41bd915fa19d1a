package catalog

import (
	"fmt"

	"magaza-backend/internal/database"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type StorefrontItem struct {
	ProductID uint    `json:"product_id"`
	Name      string  `json:"name"`
	Unit      string  `json:"unit"`
	Category  string  `json:"category,omitempty"`
	SalePrice float64 `json:"sale_price"`
	InStock   bool    `json:"in_stock"`
	Available int     `json:"available"`
}

// GET /api/storefront/catalog?branch_id=
// Online mağaza vitrini: auth gerektirmez. Sadece aktif ürünler, fiyat ve
// seçilen şubedeki anlık stok durumu döner. Buradaki miktar bilgilendirme
// amaçlıdır; satış anında sayaç yeniden kilitlenip okunur.
func StorefrontCatalogHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		bidStr := c.Query("branch_id")
		if bidStr == "" {
			return fiber.NewError(fiber.StatusBadRequest, "branch_id zorunlu")
		}
		var branchID uint
		if _, err := fmt.Sscan(bidStr, &branchID); err != nil || branchID == 0 {
			return fiber.NewError(fiber.StatusBadRequest, "branch_id geçersiz")
		}

		var branch models.Branch
		if err := database.DB.First(&branch, "id = ?", branchID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Şube bulunamadı")
		}

		var products []models.Product
		if err := database.DB.Preload("Category").
			Where("is_active = ?", true).
			Order("name asc").
			Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		var stocks []models.BranchStock
		if err := database.DB.Where("branch_id = ?", branchID).Find(&stocks).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Stok okunamadı")
		}
		qtyByProduct := make(map[uint]int, len(stocks))
		for _, s := range stocks {
			qtyByProduct[s.ProductID] = s.Quantity
		}

		items := make([]StorefrontItem, 0, len(products))
		for _, p := range products {
			qty := qtyByProduct[p.ID]
			item := StorefrontItem{
				ProductID: p.ID,
				Name:      p.Name,
				Unit:      p.Unit,
				SalePrice: p.SalePrice,
				InStock:   qty > 0,
				Available: qty,
			}
			if p.Category != nil {
				item.Category = p.Category.Name
			}
			items = append(items, item)
		}

		return c.JSON(fiber.Map{
			"branch": fiber.Map{"id": branch.ID, "name": branch.Name},
			"items":  items,
		})
	}
}
