package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scribelab/pdfscribe/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func testRun() *model.Run {
	return &model.Run{
		ID:         uuid.New().String(),
		InputPath:  "/data/scan.pdf",
		OutputPath: "/data/scan.txt",
		Engine:     "tesseract",
	}
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun()
	require.NoError(t, st.CreateRun(ctx, run))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "/data/scan.pdf", got.InputPath)
	assert.Equal(t, "/data/scan.txt", got.OutputPath)
	assert.Equal(t, "tesseract", got.Engine)
	assert.Equal(t, model.RunStatusQueued, got.Status)
	assert.Nil(t, got.CompletedAt)
	assert.False(t, got.CreatedAt.IsZero())
}

func TestSQLite_GetRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "no-such-id")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_CompleteRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run := testRun()
	require.NoError(t, st.CreateRun(ctx, run))
	require.NoError(t, st.CompleteRun(ctx, run.ID, model.RunStatusFailed, "tesseract init failed"))

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Equal(t, "tesseract init failed", got.Message)
	require.NotNil(t, got.CompletedAt)
	assert.WithinDuration(t, time.Now().UTC(), *got.CompletedAt, time.Minute)
}

func TestSQLite_CompleteRun_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.CompleteRun(context.Background(), "no-such-id", model.RunStatusFinished, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_ListRuns_OrderAndLimit(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i := 0; i < 5; i++ {
		run := testRun()
		run.InputPath = fmt.Sprintf("/data/doc-%d.pdf", i)
		run.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, st.CreateRun(ctx, run))
	}

	runs, err := st.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	// Newest first.
	assert.Equal(t, "/data/doc-4.pdf", runs[0].InputPath)
	assert.Equal(t, "/data/doc-3.pdf", runs[1].InputPath)
	assert.Equal(t, "/data/doc-2.pdf", runs[2].InputPath)
}

func TestSQLite_ListRuns_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	runs, err := st.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
