package main

import (
	"log"
	"strings"

	"magaza-backend/internal/admin"
	"magaza-backend/internal/audit"
	"magaza-backend/internal/auth"
	"magaza-backend/internal/catalog"
	"magaza-backend/internal/config"
	"magaza-backend/internal/database"
	"magaza-backend/internal/events"
	"magaza-backend/internal/expense"
	"magaza-backend/internal/models"
	"magaza-backend/internal/reports"
	"magaza-backend/internal/sales"
	"magaza-backend/internal/stock"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg := config.Load()
	database.Init(cfg)

	// Redis opsiyonel: yoksa olaylar yayınlanmaz, idempotency DB'ye kalır
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		events.Init(events.NewRedisPublisher(client))
		sales.InitIdempotency(client)
		log.Println("Redis bağlı:", cfg.RedisAddr)
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*fiber.Error); ok {
				return c.Status(e.Code).JSON(fiber.Map{
					"error": e.Message,
				})
			}
			log.Println("Unexpected error:", err)
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
				"error": "Beklenmeyen sunucu hatası",
			})
		},
	})

	// CORS origins'i virgülle ayrılmış string'den array'e çevir
	corsOrigins := strings.Split(cfg.CORSOrigins, ",")
	for i := range corsOrigins {
		corsOrigins[i] = strings.TrimSpace(corsOrigins[i])
	}
	app.Use(cors.New(cors.Config{
		AllowOrigins: strings.Join(corsOrigins, ","),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization",
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
	}))

	api := app.Group("/api")

	// Public auth
	api.Post("/auth/register-super-admin", auth.RegisterSuperAdminHandler(cfg))
	api.Post("/auth/login", auth.LoginHandler(cfg))

	// Online mağaza vitrini (auth gerektirmez)
	api.Get("/storefront/catalog", catalog.StorefrontCatalogHandler())

	// Protected
	protected := api.Group("")
	protected.Use(auth.JWTMiddleware(cfg))

	protected.Get("/auth/me", auth.MeHandler())
	protected.Put("/auth/password", auth.ChangePasswordHandler())

	// Super admin routes
	adminRoutes := protected.Group("/admin")
	adminRoutes.Use(auth.RequireRole(models.RoleSuperAdmin))

	// Şube yönetimi
	adminRoutes.Post("/branches", admin.CreateBranchHandler())
	adminRoutes.Get("/branches", admin.ListBranchesHandler())
	adminRoutes.Get("/branches/:id", admin.GetBranchHandler())
	adminRoutes.Put("/branches/:id", admin.UpdateBranchHandler())
	adminRoutes.Delete("/branches/:id", admin.DeleteBranchHandler())
	adminRoutes.Post("/branches/:id/users", admin.CreateBranchUserHandler())
	adminRoutes.Get("/branches/:id/users", admin.ListBranchUsersHandler())
	adminRoutes.Patch("/users/:id/active", admin.SetUserActiveHandler())

	// Ürün yönetimi
	adminRoutes.Post("/products", catalog.CreateProductHandler())
	adminRoutes.Put("/products/:id", catalog.UpdateProductHandler())
	adminRoutes.Delete("/products/:id", catalog.DeleteProductHandler())
	adminRoutes.Post("/product-categories", catalog.CreateProductCategoryHandler())
	adminRoutes.Put("/product-categories/:id", catalog.UpdateProductCategoryHandler())
	adminRoutes.Delete("/product-categories/:id", catalog.DeleteProductCategoryHandler())

	// Gider kategorileri
	adminRoutes.Post("/expense-categories", expense.CreateExpenseCategoryHandler())
	adminRoutes.Put("/expense-categories/:id", expense.UpdateExpenseCategoryHandler())
	adminRoutes.Delete("/expense-categories/:id", expense.DeleteExpenseCategoryHandler())

	// Ortak (auth gerektiren) route'lar

	// Katalog
	protected.Get("/products", catalog.ListProductsHandler())
	protected.Get("/product-categories", catalog.ListProductCategoriesHandler())

	// Stok: şube admini ve super admin yönetir, kasiyer sadece görüntüler
	stockWrite := protected.Group("/stock")
	stockWrite.Use(auth.RequireRole(models.RoleSuperAdmin, models.RoleBranchAdmin))
	stockWrite.Post("/entries", stock.CreateStockEntryHandler())
	stockWrite.Post("/adjustments", stock.CreateAdjustmentHandler())
	stockWrite.Post("/transfers", stock.CreateTransferHandler())
	stockWrite.Put("/min-stock", stock.UpdateMinStockHandler())

	protected.Get("/stock/current", stock.GetCurrentStockHandler())
	protected.Get("/stock/batches", stock.ListBatchesHandler())
	protected.Get("/stock/movements", stock.ListMovementsHandler())
	protected.Get("/stock/integrity", stock.IntegrityCheckHandler())

	// Satış
	protected.Post("/sales", sales.CreateSaleHandler())
	protected.Get("/sales", sales.ListSalesHandler())
	protected.Get("/sales/:id", sales.GetSaleHandler())
	protected.Post("/sales/:id/cancel",
		auth.RequireRole(models.RoleSuperAdmin, models.RoleBranchAdmin),
		sales.CancelSaleHandler())

	// Raporlar (kasiyere kapalı)
	reportRoutes := protected.Group("/reports")
	reportRoutes.Use(auth.RequireRole(models.RoleSuperAdmin, models.RoleBranchAdmin))
	reportRoutes.Get("/valuation", reports.StockValuationHandler())
	reportRoutes.Get("/profit/monthly", reports.MonthlyProfitHandler())
	reportRoutes.Get("/summary/daily", reports.DailySummaryHandler())
	reportRoutes.Get("/sales-chart", reports.SalesChartHandler())
	reportRoutes.Get("/kardex/export", reports.KardexExportHandler())

	// Giderler
	protected.Get("/expense-categories", expense.ListExpenseCategoriesHandler())
	protected.Post("/expenses", expense.CreateExpenseHandler())
	protected.Get("/expenses", expense.ListExpensesHandler())
	protected.Delete("/expenses/:id", expense.DeleteExpenseHandler())
	protected.Get("/expenses/summary/monthly", expense.MonthlyExpenseSummaryHandler())
	protected.Post("/expenses/payments", expense.CreateExpensePaymentHandler())
	protected.Get("/expenses/payments", expense.ListExpensePaymentsHandler())

	// Audit logs
	protected.Get("/audit-logs", audit.ListAuditLogsHandler())
	protected.Post("/audit-logs/:id/undo", audit.UndoAuditLogHandler())

	log.Println("Server çalışıyor port:", cfg.HTTPPort)
	if err := app.Listen(":" + cfg.HTTPPort); err != nil {
		log.Fatal(err)
	}
}
