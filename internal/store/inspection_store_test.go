package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/sitecheck/internal/db"
	"github.com/vbonduro/sitecheck/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func testAggregate(id string, at time.Time) *domain.Aggregate {
	a := domain.NewAggregate(id, at)
	a.Evaluations["roof_drain_clog"] = []domain.Evaluation{
		{ID: "e1", Grade: domain.GradeC, Memo: "blocked", CreatedAt: at},
	}
	a.GroupExistence["balcony"] = domain.GroupExistence{Exists: false}
	return a
}

func TestInspectionStoreLoadMissing(t *testing.T) {
	s := NewInspectionStore(openTestDB(t))

	a, err := s.Load(context.Background(), "nobody")
	require.NoError(t, err)
	assert.Nil(t, a)
}

func TestInspectionStoreSaveAndLoad(t *testing.T) {
	s := NewInspectionStore(openTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	want := testAggregate("prop-1", at)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, "prop-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)
}

func TestInspectionStoreLastWriteWins(t *testing.T) {
	s := NewInspectionStore(openTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, testAggregate("prop-1", at)))
	second := domain.NewAggregate("prop-1", at.Add(time.Minute))
	require.NoError(t, s.Save(ctx, second))

	got, err := s.Load(ctx, "prop-1")
	require.NoError(t, err)
	assert.Empty(t, got.Evaluations)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "prop-1", list[0].PropertyID)
}

func TestInspectionStoreListOrder(t *testing.T) {
	s := NewInspectionStore(openTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, domain.NewAggregate("old", at)))
	require.NoError(t, s.Save(ctx, domain.NewAggregate("new", at.Add(time.Hour))))

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "new", list[0].PropertyID)
	assert.Equal(t, "old", list[1].PropertyID)
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	missing, err := s.Load(ctx, "prop-1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	want := testAggregate("prop-1", at)
	require.NoError(t, s.Save(ctx, want))

	got, err := s.Load(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got.Evaluations["roof_drain_clog"][0].Memo = "changed"
	again, err := s.Load(ctx, "prop-1")
	require.NoError(t, err)
	assert.Equal(t, "blocked", again.Evaluations["roof_drain_clog"][0].Memo)
}

func TestMemoryStoreListOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	at := time.Date(2026, 4, 2, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.Save(ctx, domain.NewAggregate("b", at)))
	require.NoError(t, s.Save(ctx, domain.NewAggregate("a", at)))
	require.NoError(t, s.Save(ctx, domain.NewAggregate("new", at.Add(time.Hour))))

	list, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []domain.InspectionSummary{
		{PropertyID: "new", UpdatedAt: at.Add(time.Hour)},
		{PropertyID: "a", UpdatedAt: at},
		{PropertyID: "b", UpdatedAt: at},
	}, list)
}
