package stock

import (
	"testing"
	"time"

	"magaza-backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func batch(id uint, remaining int, unitCost float64) models.StockBatch {
	return models.StockBatch{
		ID:           id,
		UnitCost:     unitCost,
		RemainingQty: remaining,
	}
}

func TestPlanConsumptionTakesOldestFirst(t *testing.T) {
	// slice sırası = created_at ASC, id ASC (SQL garantisi)
	batches := []models.StockBatch{
		batch(1, 5, 10.0),
		batch(2, 5, 20.0),
	}

	plan, err := planConsumption(batches, 7)
	require.NoError(t, err)
	require.Len(t, plan, 2)

	assert.Equal(t, uint(1), plan[0].BatchID)
	assert.Equal(t, 5, plan[0].Quantity)
	assert.Equal(t, 10.0, plan[0].UnitCost)

	assert.Equal(t, uint(2), plan[1].BatchID)
	assert.Equal(t, 2, plan[1].Quantity)
	assert.Equal(t, 20.0, plan[1].UnitCost)

	// 5*10 + 2*20
	assert.Equal(t, 90.0, PlanTotalCost(plan))
	assert.InDelta(t, 90.0/7.0, WeightedUnitCost(plan), 1e-9)
}

func TestPlanConsumptionSkipsExhaustedBatches(t *testing.T) {
	batches := []models.StockBatch{
		batch(1, 0, 10.0), // tükenmiş
		batch(2, 3, 15.0),
		batch(3, 4, 25.0),
	}

	plan, err := planConsumption(batches, 5)
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, uint(2), plan[0].BatchID)
	assert.Equal(t, 3, plan[0].Quantity)
	assert.Equal(t, uint(3), plan[1].BatchID)
	assert.Equal(t, 2, plan[1].Quantity)
}

func TestPlanConsumptionExactMatch(t *testing.T) {
	batches := []models.StockBatch{batch(1, 4, 8.0)}

	plan, err := planConsumption(batches, 4)
	require.NoError(t, err)
	require.Len(t, plan, 1)
	assert.Equal(t, 4, plan[0].Quantity)
	assert.Equal(t, 32.0, PlanTotalCost(plan))
}

func TestPlanConsumptionShortfall(t *testing.T) {
	batches := []models.StockBatch{
		batch(1, 2, 10.0),
		batch(2, 2, 20.0),
	}

	plan, err := planConsumption(batches, 5)
	assert.ErrorIs(t, err, ErrInsufficientBatchStock)
	assert.Nil(t, plan) // kısmi plan kabul edilmez
}

func TestWeightedUnitCostEmptyPlan(t *testing.T) {
	assert.Equal(t, 0.0, WeightedUnitCost(nil))
	assert.Equal(t, 0.0, PlanTotalCost(nil))
}

func TestRecordMovementRejectsInconsistentSnapshot(t *testing.T) {
	// NewStock != PreviousStock + Quantity hiçbir koşulda yazılmaz
	_, err := RecordMovement(nil, MovementInput{
		BranchID:  1,
		ProductID: 1,
		Kind:      models.MovementExit,
		Quantity:  -3,
		PrevStock: 10,
		NewStock:  8, // 10 - 3 = 7 olmalıydı
	})
	require.Error(t, err)
}

func TestReplayMovementsReproducesStock(t *testing.T) {
	now := time.Now()
	movements := []models.StockMovement{
		{Kind: models.MovementEntry, Quantity: 10, PreviousStock: 0, NewStock: 10, CreatedAt: now},
		{Kind: models.MovementExit, Quantity: -3, PreviousStock: 10, NewStock: 7, CreatedAt: now},
		{Kind: models.MovementAdjustment, Quantity: -2, PreviousStock: 7, NewStock: 5, CreatedAt: now},
		{Kind: models.MovementTransfer, Quantity: 4, PreviousStock: 5, NewStock: 9, CreatedAt: now},
	}

	final := ReplayMovements(movements)
	assert.Equal(t, 9, final)
	assert.Equal(t, movements[len(movements)-1].NewStock, final)
}

func TestReplayMovementsEmpty(t *testing.T) {
	assert.Equal(t, 0, ReplayMovements(nil))
}
