package admin

import (
	"strings"

	"magaza-backend/internal/database"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type BranchResponse struct {
	ID        uint   `json:"id"`
	Code      string `json:"code"`
	Name      string `json:"name"`
	Address   string `json:"address"`
	Phone     string `json:"phone"`
	CreatedAt string `json:"created_at"`
}

type CreateBranchRequest struct {
	Code    string  `json:"code"` // kısa mağaza kodu, tekil
	Name    string  `json:"name"`
	Address string  `json:"address"`
	Phone   *string `json:"phone"` // Opsiyonel
}

type UpdateBranchRequest struct {
	Code    *string `json:"code"`
	Name    *string `json:"name"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"` // Opsiyonel
}

type CreateBranchUserRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"` // branch_admin / cashier
}

type BranchUserResponse struct {
	ID        uint   `json:"id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Role      string `json:"role"`
	BranchID  *uint  `json:"branch_id"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// ----------------------------------------
// ŞUBE CRUD
// ----------------------------------------

func CreateBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Name = strings.TrimSpace(body.Name)
		body.Code = strings.ToUpper(strings.TrimSpace(body.Code))
		if body.Name == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Şube adı boş olamaz")
		}
		if body.Code == "" {
			return fiber.NewError(fiber.StatusBadRequest, "Şube kodu boş olamaz")
		}

		var codeCount int64
		database.DB.Model(&models.Branch{}).Where("code = ?", body.Code).Count(&codeCount)
		if codeCount > 0 {
			return fiber.NewError(fiber.StatusBadRequest, "Bu şube kodu zaten kullanılıyor")
		}

		branch := models.Branch{
			Code:    body.Code,
			Name:    body.Name,
			Address: body.Address,
		}
		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.Create(&branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şube oluşturulamadı")
		}

		return c.Status(fiber.StatusCreated).JSON(BranchResponse{
			ID:        branch.ID,
			Code:      branch.Code,
			Name:      branch.Name,
			Address:   branch.Address,
			Phone:     branch.Phone,
			CreatedAt: branch.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func ListBranchesHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		var branches []models.Branch
		if err := database.DB.Find(&branches).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şubeler listelenemedi")
		}

		res := make([]BranchResponse, 0, len(branches))
		for _, b := range branches {
			res = append(res, BranchResponse{
				ID:        b.ID,
				Code:      b.Code,
				Name:      b.Name,
				Address:   b.Address,
				Phone:     b.Phone,
				CreatedAt: b.CreatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}

func GetBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var branch models.Branch
		if err := database.DB.First(&branch, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Şube bulunamadı")
		}

		return c.JSON(BranchResponse{
			ID:        branch.ID,
			Code:      branch.Code,
			Name:      branch.Name,
			Address:   branch.Address,
			Phone:     branch.Phone,
			CreatedAt: branch.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func UpdateBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var branch models.Branch
		if err := database.DB.First(&branch, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Şube bulunamadı")
		}

		var body UpdateBranchRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		if body.Code != nil {
			code := strings.ToUpper(strings.TrimSpace(*body.Code))
			if code == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Şube kodu boş olamaz")
			}
			var codeCount int64
			database.DB.Model(&models.Branch{}).
				Where("code = ? AND id != ?", code, branch.ID).
				Count(&codeCount)
			if codeCount > 0 {
				return fiber.NewError(fiber.StatusBadRequest, "Bu şube kodu zaten kullanılıyor")
			}
			branch.Code = code
		}

		if body.Name != nil {
			name := strings.TrimSpace(*body.Name)
			if name == "" {
				return fiber.NewError(fiber.StatusBadRequest, "Şube adı boş olamaz")
			}
			branch.Name = name
		}

		if body.Address != nil {
			branch.Address = *body.Address
		}

		if body.Phone != nil {
			branch.Phone = strings.TrimSpace(*body.Phone)
		}

		if err := database.DB.Save(&branch).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şube güncellenemedi")
		}

		return c.JSON(BranchResponse{
			ID:        branch.ID,
			Code:      branch.Code,
			Name:      branch.Name,
			Address:   branch.Address,
			Phone:     branch.Phone,
			CreatedAt: branch.CreatedAt.Format("2006-01-02 15:04:05"),
		})
	}
}

func DeleteBranchHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		// Stok kaydı olan şube silinemez; kardex ve parti tarihçesi sahipsiz kalır
		var stockCount int64
		if err := database.DB.Model(&models.BranchStock{}).
			Where("branch_id = ?", id).
			Count(&stockCount).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şube kontrol edilemedi")
		}
		if stockCount > 0 {
			return fiber.NewError(fiber.StatusConflict, "Stok kaydı olan şube silinemez")
		}

		if err := database.DB.Delete(&models.Branch{}, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şube silinemedi")
		}

		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ----------------------------------------
// ŞUBE KULLANICILARI (ADMİN + KASİYER)
// ----------------------------------------

func CreateBranchUserHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {

		branchID := c.Params("id")

		// Şube kontrolü
		var branch models.Branch
		if err := database.DB.First(&branch, "id = ?", branchID).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Şube bulunamadı")
		}

		var body CreateBranchUserRequest
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Geçersiz veri gönderildi")
		}

		body.Email = strings.ToLower(strings.TrimSpace(body.Email))
		body.Name = strings.TrimSpace(body.Name)

		if body.Name == "" || body.Email == "" || body.Password == "" {
			return fiber.NewError(fiber.StatusBadRequest, "İsim, email ve şifre zorunlu")
		}

		role := models.UserRole(body.Role)
		if body.Role == "" {
			role = models.RoleBranchAdmin
		}
		if role != models.RoleBranchAdmin && role != models.RoleCashier {
			return fiber.NewError(fiber.StatusBadRequest, "role 'branch_admin' veya 'cashier' olmalı")
		}

		// Email kontrolü
		var exist models.User
		if err := database.DB.Where("email = ?", body.Email).First(&exist).Error; err == nil {
			return fiber.NewError(fiber.StatusBadRequest, "Bu email zaten kayıtlı")
		}

		hash, _ := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)

		user := models.User{
			Name:         body.Name,
			Email:        body.Email,
			PasswordHash: string(hash),
			Role:         role,
			BranchID:     &branch.ID,
			IsActive:     true,
		}

		if err := database.DB.Create(&user).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Şube kullanıcısı oluşturulamadı")
		}

		// NOT: Şifre sadece oluşturma sırasında bir kez döndürülür
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":        user.ID,
			"name":      user.Name,
			"email":     user.Email,
			"role":      user.Role,
			"branch_id": user.BranchID,
			"password":  body.Password, // Sadece oluşturma sırasında (bir kez)
		})
	}
}

// GET /api/admin/branches/:id/users?role=
func ListBranchUsersHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		branchID := c.Params("id")

		q := database.DB.Where("branch_id = ?", branchID)
		if roleStr := c.Query("role"); roleStr != "" {
			role := models.UserRole(roleStr)
			if role != models.RoleBranchAdmin && role != models.RoleCashier {
				return fiber.NewError(fiber.StatusBadRequest, "role 'branch_admin' veya 'cashier' olmalı")
			}
			q = q.Where("role = ?", role)
		}

		var users []models.User
		if err := q.Order("created_at DESC").Find(&users).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcılar listelenemedi")
		}

		res := make([]BranchUserResponse, 0, len(users))
		for _, u := range users {
			res = append(res, BranchUserResponse{
				ID:        u.ID,
				Name:      u.Name,
				Email:     u.Email,
				Role:      string(u.Role),
				BranchID:  u.BranchID,
				IsActive:  u.IsActive,
				CreatedAt: u.CreatedAt.Format("2006-01-02 15:04:05"),
				UpdatedAt: u.UpdatedAt.Format("2006-01-02 15:04:05"),
			})
		}

		return c.JSON(res)
	}
}

type SetUserActiveRequest struct {
	Active *bool `json:"active"`
}

// PATCH /api/admin/users/:id/active
// İşten ayrılan kullanıcı silinmez, pasife alınır: audit geçmişi kullanıcıyla
// birlikte kalır. Pasif kullanıcının mevcut tokenları da middleware'de reddedilir.
func SetUserActiveHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")

		var user models.User
		if err := database.DB.First(&user, "id = ?", id).Error; err != nil {
			return fiber.NewError(fiber.StatusNotFound, "Kullanıcı bulunamadı")
		}
		if user.Role == models.RoleSuperAdmin {
			return fiber.NewError(fiber.StatusBadRequest, "Super admin pasife alınamaz")
		}

		var body SetUserActiveRequest
		if err := c.BodyParser(&body); err != nil || body.Active == nil {
			return fiber.NewError(fiber.StatusBadRequest, "active alanı zorunlu (true/false)")
		}

		if err := database.DB.Model(&user).Update("is_active", *body.Active).Error; err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "Kullanıcı güncellenemedi")
		}

		return c.JSON(fiber.Map{
			"id":        user.ID,
			"email":     user.Email,
			"is_active": *body.Active,
		})
	}
}
