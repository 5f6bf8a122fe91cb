package scheduler

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckd-aip/ckd-aip-go/pkg/metadatastore"
	"github.com/ckd-aip/ckd-aip-go/pkg/models"
)

func newStore(t *testing.T) *metadatastore.SQLiteStore {
	t.Helper()
	store, err := metadatastore.NewSQLiteStore(filepath.Join(t.TempDir(), "ckd.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNewServiceValidation(t *testing.T) {
	store := newStore(t)

	_, err := NewService(nil, "@daily", 30, nil)
	assert.Error(t, err)
	_, err = NewService(store, "not a schedule", 30, nil)
	assert.Error(t, err)
	_, err = NewService(store, "0 3 * * *", 0, nil)
	assert.Error(t, err)

	svc, err := NewService(store, "0 3 * * *", 30, nil)
	require.NoError(t, err)
	assert.Equal(t, 30, svc.Status().RetentionDays)
}

func TestPruneNow(t *testing.T) {
	store := newStore(t)
	now := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)

	for i, age := range []int{1, 10, 45, 90} {
		require.NoError(t, store.SavePrediction(&models.PredictionRecord{
			ID:         string(rune('a' + i)),
			Kind:       "clinical",
			Prediction: models.RiskLow,
			Source:     models.SourceFallback,
			Input:      map[string]string{"sc": "1.0"},
			CreatedAt:  now.AddDate(0, 0, -age),
		}))
	}

	svc, err := NewService(store, "@daily", 30, nil)
	require.NoError(t, err)
	svc.now = func() time.Time { return now }

	deleted, err := svc.PruneNow()
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	left, err := store.ListPredictions(10)
	require.NoError(t, err)
	assert.Len(t, left, 2)

	status := svc.Status()
	require.NotNil(t, status.LastRun)
	assert.Equal(t, now, *status.LastRun)
	assert.Equal(t, int64(2), status.LastDeleted)
	assert.Empty(t, status.LastError)
}

func TestStartStop(t *testing.T) {
	svc, err := NewService(newStore(t), "@hourly", 7, nil)
	require.NoError(t, err)
	require.NoError(t, svc.Start())

	status := svc.Status()
	require.NotNil(t, status.NextRun)
	assert.True(t, status.NextRun.After(time.Now().Add(-time.Minute)))
	svc.Stop()
}
