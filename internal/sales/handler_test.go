package sales

import (
	"testing"

	"magaza-backend/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestCanAccessSaleBranch(t *testing.T) {
	branchA := uint(1)
	branchB := uint(2)

	// super_admin her şubenin satışına erişir
	assert.True(t, canAccessSaleBranch(models.RoleSuperAdmin, nil, branchA))
	assert.True(t, canAccessSaleBranch(models.RoleSuperAdmin, &branchB, branchA))

	// şube rolleri sadece kendi şubesine
	assert.True(t, canAccessSaleBranch(models.RoleBranchAdmin, &branchA, branchA))
	assert.False(t, canAccessSaleBranch(models.RoleBranchAdmin, &branchA, branchB))
	assert.True(t, canAccessSaleBranch(models.RoleCashier, &branchA, branchA))
	assert.False(t, canAccessSaleBranch(models.RoleCashier, &branchB, branchA))

	// şubesi atanmamış şube rolü hiçbir satışa erişemez
	assert.False(t, canAccessSaleBranch(models.RoleBranchAdmin, nil, branchA))
}
