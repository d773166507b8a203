package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/petalhouse/petalhouse-backend/internal/app/model"
	"github.com/petalhouse/petalhouse-backend/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupCompensationTest(t *testing.T) (*gorm.DB, CompensationRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB, NewCompensationRepository(testDB)
}

func pendingRows(n int) []model.StockCompensation {
	rows := make([]model.StockCompensation, n)
	for i := range rows {
		rows[i] = model.StockCompensation{
			Reason:    "order_cancelled",
			Reference: "PH-1",
			ProductID: uint(i + 1),
			Quantity:  2,
			Status:    model.CompensationPending,
		}
	}
	return rows
}

func TestCompensationRepository_CreateAndFindPending(t *testing.T) {
	_, repo := setupCompensationTest(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateBatch(ctx, nil))

	rows := pendingRows(3)
	require.NoError(t, repo.CreateBatch(ctx, rows))
	for _, row := range rows {
		assert.NotZero(t, row.ID)
	}

	pending, err := repo.FindPending(ctx, 2)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, rows[0].ID, pending[0].ID)
}

func TestCompensationRepository_Claim(t *testing.T) {
	testDB, repo := setupCompensationTest(t)
	ctx := context.Background()

	rows := pendingRows(1)
	require.NoError(t, repo.CreateBatch(ctx, rows))
	id := rows[0].ID

	claimed, err := repo.Claim(ctx, id)
	require.NoError(t, err)
	assert.True(t, claimed)

	claimed, err = repo.Claim(ctx, id)
	require.NoError(t, err)
	assert.False(t, claimed, "a claimed row cannot be claimed again")

	var stored model.StockCompensation
	require.NoError(t, testDB.First(&stored, id).Error)
	assert.Equal(t, model.CompensationApplying, stored.Status)

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)

	claimed, err = repo.Claim(ctx, 9999)
	require.NoError(t, err)
	assert.False(t, claimed)
}

func TestCompensationRepository_MarkApplied(t *testing.T) {
	testDB, repo := setupCompensationTest(t)
	ctx := context.Background()

	rows := pendingRows(2)
	require.NoError(t, repo.CreateBatch(ctx, rows))

	claimed, err := repo.Claim(ctx, rows[0].ID)
	require.NoError(t, err)
	require.True(t, claimed)
	require.NoError(t, repo.MarkApplied(ctx, rows[0].ID, time.Now()))

	var stored model.StockCompensation
	require.NoError(t, testDB.First(&stored, rows[0].ID).Error)
	assert.Equal(t, model.CompensationApplied, stored.Status)
	assert.Equal(t, 1, stored.Attempts)
	assert.NotNil(t, stored.AppliedAt)

	// 선점되지 않은 행은 완료 처리되지 않는다
	require.NoError(t, repo.MarkApplied(ctx, rows[1].ID, time.Now()))
	require.NoError(t, testDB.First(&stored, rows[1].ID).Error)
	assert.Equal(t, model.CompensationPending, stored.Status)
	assert.Nil(t, stored.AppliedAt)

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, rows[1].ID, pending[0].ID)
}

func TestCompensationRepository_MarkAttemptFailed(t *testing.T) {
	testDB, repo := setupCompensationTest(t)
	ctx := context.Background()

	rows := pendingRows(1)
	require.NoError(t, repo.CreateBatch(ctx, rows))
	id := rows[0].ID
	cause := errors.New("database is locked")

	claim := func() {
		claimed, err := repo.Claim(ctx, id)
		require.NoError(t, err)
		require.True(t, claimed)
	}

	claim()
	require.NoError(t, repo.MarkAttemptFailed(ctx, id, cause, 2))

	var stored model.StockCompensation
	require.NoError(t, testDB.First(&stored, id).Error)
	assert.Equal(t, model.CompensationPending, stored.Status, "released for the next retry")
	assert.Equal(t, 1, stored.Attempts)
	assert.Equal(t, "database is locked", stored.LastError)

	claim()
	require.NoError(t, repo.MarkAttemptFailed(ctx, id, cause, 2))

	require.NoError(t, testDB.First(&stored, id).Error)
	assert.Equal(t, model.CompensationFailed, stored.Status)
	assert.Equal(t, 2, stored.Attempts)

	pending, err := repo.FindPending(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, pending)
}
