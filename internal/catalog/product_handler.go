package catalog

import (
	"strings"

	"magaza-backend/internal/database"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type ProductResponse struct {
	ID         uint    `json:"id"`
	Name       string  `json:"name"`
	StockCode  string  `json:"stock_code"`
	Unit       string  `json:"unit"`
	CategoryID *uint   `json:"category_id"`
	Category   string  `json:"category,omitempty"`
	SalePrice  float64 `json:"sale_price"`
	IsActive   bool    `json:"is_active"`
}

type CreateProductRequest struct {
	Name       string  `json:"name"`
	StockCode  string  `json:"stock_code"` // Opsiyonel (barkod)
	Unit       string  `json:"unit"`
	CategoryID *uint   `json:"category_id"`
	SalePrice  float64 `json:"sale_price"`
}

type UpdateProductRequest struct {
	Name       *string  `json:"name"`
	StockCode  *string  `json:"stock_code"`
	Unit       *string  `json:"unit"`
	CategoryID *uint    `json:"category_id"`
	SalePrice  *float64 `json:"sale_price"`
	IsActive   *bool    `json:"is_active"`
}

func toProductResponse(p *models.Product) ProductResponse {
	res := ProductResponse{
		ID:         p.ID,
		Name:       p.Name,
		StockCode:  p.StockCode,
		Unit:       p.Unit,
		CategoryID: p.CategoryID,
		SalePrice:  p.SalePrice,
		IsActive:   p.IsActive,
	}
	if p.Category != nil {
		res.Category = p.Category.Name
	}
	return res
}

// GET /api/products?category_id=&include_inactive=true (tüm authenticated kullanıcılar)
func ListProductsHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := database.DB.Model(&models.Product{}).Preload("Category")

		if c.Query("include_inactive") != "true" {
			dbq = dbq.Where("is_active = ?", true)
		}
		if catStr := c.Query("category_id"); catStr != "" {
			dbq = dbq.Where("category_id = ?", catStr)
		}

		var products []models.Product
		if err := dbq.Order("name asc").Find(&products).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürünler listelenemedi")
		}

		res := make([]ProductResponse, 0, len(products))
		for i := range products {
			res = append(res, toProductResponse(&products[i]))
		}
		return c.JSON(res)
	}
}

// POST /api/admin/products (sadece super_admin)
func CreateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Unit = strings.TrimSpace(body.Unit)
		body.StockCode = strings.TrimSpace(body.StockCode)

		if body.Name == "" || body.Unit == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Name ve unit zorunlu")
		}
		if body.SalePrice < 0 {
			return fiber.NewError(fiber.StatusBadRequest, "sale_price negatif olamaz")
		}

		// Stok kodu unique kontrolü (boş değilse)
		if body.StockCode != "" {
			var existingProduct models.Product
			if err := database.DB.Where("stock_code = ?", body.StockCode).First(&existingProduct).Error; err == nil {
				return fiber.NewError(fiber.StatusBadRequest, "Bu stok kodu zaten kullanılıyor")
			}
		}

		if body.CategoryID != nil {
			var cat models.ProductCategory
			if err := database.DB.First(&cat, "id = ?", *body.CategoryID).Error; err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Kategori bulunamadı")
			}
		}

		p := models.Product{
			Name:       body.Name,
			StockCode:  body.StockCode,
			Unit:       body.Unit,
			CategoryID: body.CategoryID,
			SalePrice:  body.SalePrice,
			IsActive:   true,
		}

		if err := database.DB.Create(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(toProductResponse(&p))
	}
}

// PUT /api/admin/products/:id
func UpdateProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var p models.Product
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		var body UpdateProductRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri")
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Name boş olamaz")
			}
			p.Name = name
		}

		if body.Unit != nil {
			unit := strings.TrimSpace(*body.Unit)
			if unit == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Unit boş olamaz")
			}
			p.Unit = unit
		}

		if body.StockCode != nil {
			code := strings.TrimSpace(*body.StockCode)
			if code != "" && code != p.StockCode {
				var existing models.Product
				if err := database.DB.Where("stock_code = ? AND id != ?", code, p.ID).First(&existing).Error; err == nil {
					return fiber.NewError(fiber.StatusBadRequest, "Bu stok kodu zaten kullanılıyor")
				}
			}
			p.StockCode = code
		}

		if body.CategoryID != nil {
			var cat models.ProductCategory
			if err := database.DB.First(&cat, "id = ?", *body.CategoryID).Error; err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "Kategori bulunamadı")
			}
			p.CategoryID = body.CategoryID
		}

		if body.SalePrice != nil {
			if *body.SalePrice < 0 {
				return fiber.NewError(fiber.StatusBadRequest, "sale_price negatif olamaz")
			}
			p.SalePrice = *body.SalePrice
		}

		if body.IsActive != nil {
			p.IsActive = *body.IsActive
		}

		if err := database.DB.Save(&p).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün güncellenemedi")
		}

		return c.JSON(toProductResponse(&p))
	}
}

// DELETE /api/admin/products/:id
// Satış/kardex tarihçesi olan ürün silinmez, pasife alınır
func DeleteProductHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var p models.Product
		if err := database.DB.First(&p, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Ürün bulunamadı")
		}

		var movementCount int64
		database.DB.Model(&models.StockMovement{}).Where("product_id = ?", p.ID).Count(&movementCount)
		if movementCount > 0 {
			if err := database.DB.Model(&p).Update("is_active", false).Error; err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Ürün pasife alınamadı")
			}
			return c.JSON(fiber.Map{"message": "Ürünün stok tarihçesi var, silinmek yerine pasife alındı"})
		}

		if err := database.DB.Delete(&models.Product{}, "id = ?", p.ID).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Ürün silinemedi")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}
