package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anomaly-vision/internal/domain/entity"
	"anomaly-vision/internal/domain/port"
)

func record(i int) entity.DetectionRecord {
	return entity.DetectionRecord{
		ID:                fmt.Sprintf("det-%d", i),
		Source:            "http",
		Label:             entity.LabelAnomalous,
		Score:             0.75,
		RawScore:          50.5,
		AnomalousFraction: 0.25,
		Strategy:          "centered",
		InferenceMS:       12,
		TotalMS:           20,
		CreatedAt:         time.Date(2026, 1, 1, 0, 0, i, 0, time.UTC),
	}
}

func TestMemoryUserRepository_GetCreatesAndCopies(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	user, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, user.State)

	user.SetState(entity.StateProcessing)
	again, err := repo.Get(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, entity.StateMainMenu, again.State)

	updated, err := repo.Update(ctx, 1, 10, func(u *entity.User) {
		u.SetState(entity.StateProcessing)
		u.RecordCheck(entity.LabelAnomalous)
	})
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, updated.State)

	again, err = repo.Get(ctx, 1, 11)
	require.NoError(t, err)
	require.Equal(t, entity.StateProcessing, again.State)
	require.Equal(t, 1, again.Anomalies)
	require.Equal(t, int64(11), again.ChatID)
}

func TestMemoryUserRepository_ConcurrentUpdates(t *testing.T) {
	repo := NewMemoryUserRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.Update(ctx, 7, 70, func(u *entity.User) { u.RecordCheck(entity.LabelNormal) })
		}()
	}
	wg.Wait()

	user, err := repo.Get(ctx, 7, 70)
	require.NoError(t, err)
	require.Equal(t, 50, user.Checks)
}

func testDetectionRepository(t *testing.T, repo port.DetectionRepository) {
	ctx := context.Background()

	empty, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Save(ctx, record(i)))
	}

	recent, err := repo.Recent(ctx, 3)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, "det-4", recent[0].ID)
	assert.Equal(t, "det-2", recent[2].ID)
	assert.Equal(t, record(4), recent[0])

	all, err := repo.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestMemoryDetectionRepository(t *testing.T) {
	testDetectionRepository(t, NewMemoryDetectionRepository(0))
}

func TestMemoryDetectionRepository_Wraps(t *testing.T) {
	repo := NewMemoryDetectionRepository(3)
	ctx := context.Background()
	for i := 0; i < 7; i++ {
		require.NoError(t, repo.Save(ctx, record(i)))
	}

	recent, err := repo.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"det-6", "det-5", "det-4"}, []string{recent[0].ID, recent[1].ID, recent[2].ID})
}

func TestSQLiteDetectionRepository(t *testing.T) {
	repo, err := OpenSQLiteDetectionRepository(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	defer repo.Close()

	testDetectionRepository(t, repo)
}

func TestSQLiteDetectionRepository_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	repo, err := OpenSQLiteDetectionRepository(path)
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), record(1)))
	require.NoError(t, repo.Close())

	repo, err = OpenSQLiteDetectionRepository(path)
	require.NoError(t, err)
	defer repo.Close()

	recent, err := repo.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "det-1", recent[0].ID)
}
