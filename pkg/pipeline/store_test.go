package pipeline

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ProjectAlita/alita-sdk-sub007/pkg/config"
)

func sampleSuiteResult() *SuiteResult {
	return &SuiteResult{
		Suite:  "smoke",
		Passed: 1,
		Failed: 1,
		Cases: []*CaseResult{
			{Name: "login", Success: true, ExecutionID: "exec-1", Duration: 1200 * time.Millisecond},
			{Name: "checkout", Success: false, Error: "verify: expected status succeeded, got failed", Duration: 800 * time.Millisecond},
		},
	}
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.SaveSuite(ctx, sampleSuiteResult()))

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, records[0].RunID, records[1].RunID)

	limited, err := store.List(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	purged, err := store.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	purged, err = store.Purge(ctx, -time.Hour)
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)

	records, err = store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.Close())
}

func newSQLiteStore(t *testing.T) *SQLStore {
	t.Helper()

	pool := config.NewDBPool()
	t.Cleanup(func() { pool.Close() })

	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "runs.db"),
	}
	cfg.SetDefaults()

	store, err := NewSQLStore(context.Background(), pool, cfg)
	require.NoError(t, err)
	return store
}

func TestSQLStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	require.NoError(t, store.SaveSuite(ctx, sampleSuiteResult()))

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, records, 2)

	byName := map[string]*RunRecord{}
	for _, record := range records {
		assert.Equal(t, "smoke", record.Suite)
		byName[record.Case] = record
	}

	login := byName["login"]
	require.NotNil(t, login)
	assert.True(t, login.Success)
	assert.Equal(t, "exec-1", login.ExecutionID)
	assert.Equal(t, 1200*time.Millisecond, login.Duration)

	checkout := byName["checkout"]
	require.NotNil(t, checkout)
	assert.False(t, checkout.Success)
	assert.Contains(t, checkout.Error, "expected status succeeded")
}

func TestSQLStoreListLimit(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	require.NoError(t, store.SaveSuite(ctx, sampleSuiteResult()))
	require.NoError(t, store.SaveSuite(ctx, sampleSuiteResult()))

	records, err := store.List(ctx, 3)
	require.NoError(t, err)
	assert.Len(t, records, 3)
}

func TestSQLStorePurge(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	require.NoError(t, store.SaveSuite(ctx, sampleSuiteResult()))

	purged, err := store.Purge(ctx, time.Hour)
	require.NoError(t, err)
	assert.Zero(t, purged)

	purged, err = store.Purge(ctx, -time.Minute)
	require.NoError(t, err)
	assert.EqualValues(t, 2, purged)

	records, err := store.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, records)
}
