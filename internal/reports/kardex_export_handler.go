package reports

import (
	"fmt"
	"time"

	"magaza-backend/internal/database"
	"magaza-backend/internal/models"
	"magaza-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
)

// GET /api/reports/kardex/export?product_id=&from=&to=[&branch_id=]
// Kardex'i xlsx olarak indirir. Muhasebe denetimde tarih aralığıyla çeker.
func KardexExportHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := getBranchIDFromContext(c)
		if err != nil {
			return err
		}

		f := stock.MovementFilter{BranchID: &branchID}

		if pidStr := c.Query("product_id"); pidStr != "" {
			var pid uint
			if _, err := fmt.Sscan(pidStr, &pid); err != nil || pid == 0 {
				return fiber.NewError(fiber.StatusBadRequest, "product_id geçersiz")
			}
			f.ProductID = &pid
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
			end := to.AddDate(0, 0, 1).Add(-time.Second)
			f.To = &end
		}

		// sorgu sayfalı çalışır, export sayfaları birleştirir
		const pageSize = 500
		const exportCap = 10000
		f.Limit = pageSize

		var movements []models.StockMovement
		for offset := 0; offset < exportCap; offset += pageSize {
			f.Offset = offset
			page, err := stock.QueryMovements(database.DB, f)
			if err != nil {
				return fiber.NewError(fiber.StatusInternalServerError, "Kardex sorgulanamadı")
			}
			movements = append(movements, page...)
			if len(page) < pageSize {
				break
			}
		}

		var branch models.Branch
		if err := database.DB.First(&branch, "id = ?", branchID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Şube bulunamadı")
		}

		file := excelize.NewFile()
		defer file.Close()

		sheet := "Kardex"
		file.SetSheetName(file.GetSheetName(0), sheet)

		headers := []string{"Tarih", "Ürün", "Hareket", "Miktar", "Önceki Stok", "Yeni Stok", "Açıklama", "Kullanıcı"}
		for i, h := range headers {
			cell, _ := excelize.CoordinatesToCellName(i+1, 1)
			file.SetCellValue(sheet, cell, h)
		}

		// kardex en yeniden eskiye döner, excel'de eski -> yeni daha okunur
		for i := len(movements) - 1; i >= 0; i-- {
			m := movements[i]
			rowNum := len(movements) - i + 1
			values := []interface{}{
				m.CreatedAt.Format("2006-01-02 15:04:05"),
				m.ProductName,
				string(m.Kind),
				m.Quantity,
				m.PreviousStock,
				m.NewStock,
				m.Reason,
				m.UserName,
			}
			for col, v := range values {
				cell, _ := excelize.CoordinatesToCellName(col+1, rowNum)
				file.SetCellValue(sheet, cell, v)
			}
		}

		file.SetColWidth(sheet, "A", "A", 20)
		file.SetColWidth(sheet, "B", "B", 30)
		file.SetColWidth(sheet, "G", "G", 40)

		buf, err := file.WriteToBuffer()
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Excel dosyası oluşturulamadı")
		}

		filename := fmt.Sprintf("kardex_%s_%s.xlsx", branch.Name, time.Now().Format("20060102"))
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
		return c.Send(buf.Bytes())
	}
}
