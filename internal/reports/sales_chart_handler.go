package reports

import (
	"fmt"
	"time"

	"magaza-backend/internal/database"

	"github.com/gofiber/fiber/v2"
)

type SalesChartPoint struct {
	Label  string  `json:"label"` // tarih / hafta başlangıcı / ay başlangıcı
	Cash   float64 `json:"cash"`
	Card   float64 `json:"card"`
	Online float64 `json:"online"`
	Total  float64 `json:"total"`
}

type SalesChartGrandTotals struct {
	Cash   float64 `json:"cash"`
	Card   float64 `json:"card"`
	Online float64 `json:"online"`
	Total  float64 `json:"total"`
}

type SalesChartResponse struct {
	BranchID    uint                  `json:"branch_id"`
	Period      string                `json:"period"` // daily | weekly | monthly
	From        string                `json:"from"`
	To          string                `json:"to"`
	Points      []SalesChartPoint     `json:"points"`
	GrandTotals SalesChartGrandTotals `json:"grand_totals"`
}

// GET /api/reports/sales-chart?period=daily&count=7&branch_id=1
// Ödeme yöntemine göre ciro kırılımı, grafik beslemek için
func SalesChartHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID, err := getBranchIDFromContext(c)
		if err != nil {
			return err
		}

		period := c.Query("period", "daily") // daily | weekly | monthly
		countStr := c.Query("count", "")

		var count int
		if countStr == "" {
			switch period {
			case "weekly":
				count = 8
			case "monthly":
				count = 12
			default:
				period = "daily"
				count = 7
			}
		} else {
			if _, err := fmt.Sscan(countStr, &count); err != nil || count <= 0 {
				return fiber.NewError(fiber.StatusBadRequest, "count geçersiz")
			}
		}

		now := time.Now()
		loc := now.Location()
		// bugünün 00:00'ı
		end := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, loc)
		var start time.Time

		switch period {
		case "weekly":
			days := 7 * (count - 1)
			start = end.AddDate(0, 0, -days)
		case "monthly":
			end = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, loc)
			start = end.AddDate(0, -(count - 1), 0)
		default:
			period = "daily"
			start = end.AddDate(0, 0, -(count - 1))
		}

		// sorgu üst sınırı: bugünün sonu
		queryEnd := end.AddDate(0, 0, 1)
		if period == "monthly" {
			queryEnd = start.AddDate(0, count, 0)
		}

		type row struct {
			Bucket time.Time `gorm:"column:bucket"`
			Method string    `gorm:"column:method"`
			Total  float64   `gorm:"column:total"`
		}
		var rows []row

		var sql string
		switch period {
		case "weekly":
			sql = `
				SELECT date_trunc('week', created_at)::date AS bucket,
					   payment_method AS method,
					   SUM(total_amount) AS total
				FROM sales
				WHERE branch_id = ? AND status = 'completed' AND created_at >= ? AND created_at < ?
				GROUP BY bucket, method
				ORDER BY bucket ASC;
			`
		case "monthly":
			sql = `
				SELECT date_trunc('month', created_at)::date AS bucket,
					   payment_method AS method,
					   SUM(total_amount) AS total
				FROM sales
				WHERE branch_id = ? AND status = 'completed' AND created_at >= ? AND created_at < ?
				GROUP BY bucket, method
				ORDER BY bucket ASC;
			`
		default: // daily
			sql = `
				SELECT created_at::date AS bucket,
					   payment_method AS method,
					   SUM(total_amount) AS total
				FROM sales
				WHERE branch_id = ? AND status = 'completed' AND created_at >= ? AND created_at < ?
				GROUP BY bucket, method
				ORDER BY bucket ASC;
			`
		}

		if err := database.DB.Raw(sql, branchID, start, queryEnd).Scan(&rows).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Veri toplanırken hata oluştu")
		}

		type bucketAgg struct {
			Bucket time.Time
			Cash   float64
			Card   float64
			Online float64
			Total  float64
		}

		buckets := make(map[time.Time]*bucketAgg)
		order := make([]time.Time, 0)

		for _, r := range rows {
			agg, ok := buckets[r.Bucket]
			if !ok {
				agg = &bucketAgg{Bucket: r.Bucket}
				buckets[r.Bucket] = agg
				order = append(order, r.Bucket)
			}

			switch r.Method {
			case "cash":
				agg.Cash += r.Total
			case "card":
				agg.Card += r.Total
			case "online":
				agg.Online += r.Total
			}
		}

		points := make([]SalesChartPoint, 0, len(order))
		grand := SalesChartGrandTotals{}

		for _, bucket := range order {
			b := buckets[bucket]
			b.Total = b.Cash + b.Card + b.Online
			points = append(points, SalesChartPoint{
				Label:  b.Bucket.Format("2006-01-02"),
				Cash:   b.Cash,
				Card:   b.Card,
				Online: b.Online,
				Total:  b.Total,
			})

			grand.Cash += b.Cash
			grand.Card += b.Card
			grand.Online += b.Online
			grand.Total += b.Total
		}

		return c.JSON(SalesChartResponse{
			BranchID:    branchID,
			Period:      period,
			From:        start.Format("2006-01-02"),
			To:          queryEnd.AddDate(0, 0, -1).Format("2006-01-02"),
			Points:      points,
			GrandTotals: grand,
		})
	}
}
