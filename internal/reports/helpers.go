package reports

import (
	"fmt"

	"magaza-backend/internal/auth"
	"magaza-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

// context'ten branch id çıkar (şube rolleri için JWT, super_admin için query param)
func getBranchIDFromContext(c *fiber.Ctx) (uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return 0, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role == models.RoleBranchAdmin || role == models.RoleCashier {
		branchIDVal := c.Locals(auth.CtxBranchIDKey)
		branchIDPtr, ok := branchIDVal.(*uint)
		if !ok || branchIDPtr == nil {
			return 0, fiber.NewError(fiber.StatusForbidden, "Şube bilgisi bulunamadı")
		}
		return *branchIDPtr, nil
	}

	// super_admin
	bidStr := c.Query("branch_id")
	if bidStr == "" {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id zorunlu")
	}
	var bid uint
	if _, err := fmt.Sscan(bidStr, &bid); err != nil || bid == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "branch_id geçersiz")
	}
	return bid, nil
}

// getBranchIDFromContext gibi, ama super_admin branch_id vermezse nil döner
// (tüm şubeler anlamında)
func getOptionalBranchIDFromContext(c *fiber.Ctx) (*uint, error) {
	roleVal := c.Locals(auth.CtxUserRoleKey)
	role, ok := roleVal.(models.UserRole)
	if !ok {
		return nil, fiber.NewError(fiber.StatusForbidden, "Rol bilgisi alınamadı")
	}

	if role == models.RoleBranchAdmin || role == models.RoleCashier {
		branchIDVal := c.Locals(auth.CtxBranchIDKey)
		branchIDPtr, ok := branchIDVal.(*uint)
		if !ok || branchIDPtr == nil {
			return nil, fiber.NewError(fiber.StatusForbidden, "Şube bilgisi bulunamadı")
		}
		return branchIDPtr, nil
	}

	bidStr := c.Query("branch_id")
	if bidStr == "" {
		return nil, nil
	}
	var bid uint
	if _, err := fmt.Sscan(bidStr, &bid); err != nil || bid == 0 {
		return nil, fiber.NewError(fiber.StatusBadRequest, "branch_id geçersiz")
	}
	return &bid, nil
}
