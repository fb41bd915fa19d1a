package reports

import (
	"fmt"
	"time"

	"magaza-backend/internal/database"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type MonthlyProfitResponse struct {
	BranchID    uint    `json:"branch_id"`
	Year        int     `json:"year"`
	Month       int     `json:"month"`
	Revenue     float64 `json:"revenue"`      // tamamlanan satışların toplamı
	COGS        float64 `json:"cogs"`         // satılan malın maliyeti (FIFO, satış anında sabitlenmiş)
	GrossProfit float64 `json:"gross_profit"` // revenue - cogs
	Expenses    float64 `json:"expenses"`
	NetProfit   float64 `json:"net_profit"` // gross - expenses
	SaleCount   int64   `json:"sale_count"`
}

// GET /api/reports/profit/monthly?year=2026&month=8[&branch_id=]
// Kâr raporu geçmiş partileri yeniden okumaz; COGS satış kalemlerinde
// kilitlenmiş maliyetlerin toplamıdır. Parti maliyetleri sonradan değişse
// bile rapor aynı kalır.
func MonthlyProfitHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := getBranchIDFromContext(c)
		if err != nil {
			return err
		}

		yearStr := c.Query("year")
		monthStr := c.Query("month")
		if yearStr == "" || monthStr == "" {
			return fiber.NewError(fiber.StatusBadRequest, "year ve month zorunlu")
		}

		var year, month int
		if _, err := fmt.Sscan(yearStr, &year); err != nil || year < 2000 {
			return fiber.NewError(fiber.StatusBadRequest, "year geçersiz")
		}
		if _, err := fmt.Sscan(monthStr, &month); err != nil || month < 1 || month > 12 {
			return fiber.NewError(fiber.StatusBadRequest, "month geçersiz")
		}

		loc := time.Now().Location()
		firstDay := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
		nextMonth := firstDay.AddDate(0, 1, 0)

		type salesRow struct {
			Revenue float64 `gorm:"column:revenue"`
			COGS    float64 `gorm:"column:cogs"`
			Count   int64   `gorm:"column:count"`
		}
		var sr salesRow
		if err := database.DB.Model(&models.Sale{}).
			Select("COALESCE(SUM(total_amount),0) AS revenue, COALESCE(SUM(total_cost),0) AS cogs, COUNT(*) AS count").
			Where("branch_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
				branchID, models.SaleStatusCompleted, firstDay, nextMonth).
			Scan(&sr).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Satış toplamı hesaplanamadı")
		}

		var expenses float64
		if err := database.DB.Model(&models.Expense{}).
			Select("COALESCE(SUM(amount),0)").
			Where("branch_id = ? AND date >= ? AND date < ?", branchID, firstDay, nextMonth).
			Scan(&expenses).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Gider toplamı hesaplanamadı")
		}

		gross := sr.Revenue - sr.COGS
		return c.JSON(MonthlyProfitResponse{
			BranchID:    branchID,
			Year:        year,
			Month:       month,
			Revenue:     sr.Revenue,
			COGS:        sr.COGS,
			GrossProfit: gross,
			Expenses:    expenses,
			NetProfit:   gross - expenses,
			SaleCount:   sr.Count,
		})
	}
}

type DailySummaryResponse struct {
	BranchID    uint    `json:"branch_id"`
	Date        string  `json:"date"`
	Revenue     float64 `json:"revenue"`
	COGS        float64 `json:"cogs"`
	GrossProfit float64 `json:"gross_profit"`
	SaleCount   int64   `json:"sale_count"`
	CashTotal   float64 `json:"cash_total"`
	CardTotal   float64 `json:"card_total"`
	OnlineTotal float64 `json:"online_total"`
	Cancelled   int64   `json:"cancelled_count"`
}

// GET /api/reports/summary/daily?date=2026-08-29[&branch_id=]
// Gün sonu özeti: kasa kapanışında kullanılır
func DailySummaryHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := getBranchIDFromContext(c)
		if err != nil {
			return err
		}

		dateStr := c.Query("date")
		var day time.Time
		if dateStr == "" {
			now := time.Now()
			day = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
		} else {
			day, err = time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "date 'YYYY-MM-DD' olmalı")
			}
		}
		next := day.AddDate(0, 0, 1)

		type row struct {
			Method  string  `gorm:"column:payment_method"`
			Revenue float64 `gorm:"column:revenue"`
			COGS    float64 `gorm:"column:cogs"`
			Count   int64   `gorm:"column:count"`
		}
		var rows []row
		if err := database.DB.Model(&models.Sale{}).
			Select("payment_method, COALESCE(SUM(total_amount),0) AS revenue, COALESCE(SUM(total_cost),0) AS cogs, COUNT(*) AS count").
			Where("branch_id = ? AND status = ? AND created_at >= ? AND created_at < ?",
				branchID, models.SaleStatusCompleted, day, next).
			Group("payment_method").
			Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Gün özeti hesaplanamadı")
		}

		resp := DailySummaryResponse{BranchID: branchID, Date: day.Format("2006-01-02")}
		for _, r := range rows {
			resp.Revenue += r.Revenue
			resp.COGS += r.COGS
			resp.SaleCount += r.Count
			switch models.PaymentMethod(r.Method) {
			case models.PaymentCash:
				resp.CashTotal += r.Revenue
			case models.PaymentCard:
				resp.CardTotal += r.Revenue
			case models.PaymentOnline:
				resp.OnlineTotal += r.Revenue
			}
		}
		resp.GrossProfit = resp.Revenue - resp.COGS

		if err := database.DB.Model(&models.Sale{}).
			Where("branch_id = ? AND status = ? AND cancelled_at >= ? AND cancelled_at < ?",
				branchID, models.SaleStatusCancelled, day, next).
			Count(&resp.Cancelled).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "İptal sayısı hesaplanamadı")
		}

		return c.JSON(resp)
	}
}
