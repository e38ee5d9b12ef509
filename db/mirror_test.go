package db

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/teranos/lineage/errors"
	ltesting "github.com/teranos/lineage/internal/testing"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestMirror(t *testing.T, now time.Time) *Mirror {
	t.Helper()
	db := ltesting.CreateTestDB(t)
	require.NoError(t, Migrate(db, nil))
	return NewMirror(db, zaptest.NewLogger(t).Sugar(), WithClock(fixedClock(now)))
}

func sampleRecords() []provenance.ProcessRecord {
	return []provenance.ProcessRecord{
		{
			ID:          "Process0000002",
			Inputs:      []token.Token{token.New("sdt_reads", "Reads0000001")},
			Outputs:     []token.Token{token.New("sdt_assembly", "Assembly0000001")},
			Name:        "Assembly",
			PerformedBy: "Someone",
			Protocols:   []string{"SPAdes", "QC"},
			CompletedAt: "2021-03-04",
		},
		{
			ID: "Process0000001",
			Inputs: []token.Token{
				token.New("sdt_sample", "Sample0000001"),
				token.New("sdt_sample", "Sample0000002"),
			},
			Outputs: []token.Token{token.New("sdt_reads", "Reads0000001")},
		},
	}
}

func TestMirror_StoreAndLoad(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	m := newTestMirror(t, now)

	snap, err := m.Store(ctx, "enigma_coral", "https://hub.example/apis/mcp", sampleRecords())
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.ID)
	assert.Equal(t, 2, snap.RecordCount)
	assert.Equal(t, now, snap.CreatedAt)

	latest, err := m.Latest(ctx, "enigma_coral")
	require.NoError(t, err)
	assert.Equal(t, snap, latest)

	records, err := m.Load(ctx, snap.ID)
	require.NoError(t, err)
	assert.Equal(t, sampleRecords(), records, "records round-trip in stored order")
}

func TestMirror_LatestPerDatabase(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, time.Now())

	first, err := m.Store(ctx, "db_a", "https://a", sampleRecords()[:1])
	require.NoError(t, err)
	second, err := m.Store(ctx, "db_a", "https://a", sampleRecords())
	require.NoError(t, err)
	other, err := m.Store(ctx, "db_b", "https://b", nil)
	require.NoError(t, err)

	latest, err := m.Latest(ctx, "db_a")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	latest, err = m.Latest(ctx, "db_b")
	require.NoError(t, err)
	assert.Equal(t, other.ID, latest.ID)
	assert.Equal(t, 0, latest.RecordCount)

	all, err := m.Snapshots(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int64{other.ID, second.ID, first.ID}, []int64{all[0].ID, all[1].ID, all[2].ID})
}

func TestMirror_LatestMissing(t *testing.T) {
	m := newTestMirror(t, time.Now())

	_, err := m.Latest(context.Background(), "nothing_here")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoSnapshot))
	assert.True(t, errors.IsNotFoundError(err))
	assert.Contains(t, errors.FlattenHints(err), "lineage mirror")
}

func TestMirror_Prune(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, time.Now())

	var last Snapshot
	for i := 0; i < 3; i++ {
		var err error
		last, err = m.Store(ctx, "db_a", "https://a", sampleRecords())
		require.NoError(t, err)
	}
	_, err := m.Store(ctx, "db_b", "https://b", sampleRecords())
	require.NoError(t, err)

	removed, err := m.Prune(ctx, "db_a", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	all, err := m.Snapshots(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	var orphans int
	require.NoError(t, m.db.QueryRow(
		"SELECT COUNT(*) FROM process_objects WHERE snapshot_id NOT IN (SELECT id FROM snapshots)").Scan(&orphans))
	assert.Zero(t, orphans, "objects of pruned snapshots cascade away")

	records, err := m.Load(ctx, last.ID)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	_, err = m.Prune(ctx, "db_a", 0)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestSource_BuildsIndex(t *testing.T) {
	ctx := context.Background()
	m := newTestMirror(t, time.Now())
	_, err := m.Store(ctx, "enigma_coral", "https://hub", sampleRecords())
	require.NoError(t, err)

	session := provenance.NewSession(NewSource(m, "enigma_coral"), zaptest.NewLogger(t).Sugar())
	ix, err := session.Index(ctx)
	require.NoError(t, err)

	edges := ix.ProducedBy(token.New("sdt_reads", "Reads0000001"))
	require.Len(t, edges, 1)
	assert.Equal(t, "Process0000001", edges[0].Process.ID)
}

func TestSource_NoSnapshot(t *testing.T) {
	m := newTestMirror(t, time.Now())

	_, err := NewSource(m, "enigma_coral").LoadRecords(context.Background())
	assert.True(t, errors.Is(err, ErrNoSnapshot))
}

func newMockMirror(t *testing.T) (*Mirror, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewMirror(db, zaptest.NewLogger(t).Sugar()), mock
}

func TestMirror_StoreRollsBackOnFailure(t *testing.T) {
	t.Run("snapshot insert fails", func(t *testing.T) {
		m, mock := newMockMirror(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshots")).
			WillReturnError(errors.New("disk I/O error"))
		mock.ExpectRollback()

		_, err := m.Store(context.Background(), "db", "https://x", sampleRecords())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "insert snapshot")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("object insert fails", func(t *testing.T) {
		m, mock := newMockMirror(t)
		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO snapshots")).
			WillReturnResult(sqlmock.NewResult(7, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO processes")).
			WithArgs(int64(7), 0, "Process0000002", "Assembly", "Someone", `["SPAdes","QC"]`, "2021-03-04").
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO process_objects")).
			WillReturnError(errors.New("constraint failed"))
		mock.ExpectRollback()

		_, err := m.Store(context.Background(), "db", "https://x", sampleRecords())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "Process0000002")
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("begin fails", func(t *testing.T) {
		m, mock := newMockMirror(t)
		mock.ExpectBegin().WillReturnError(sql.ErrConnDone)

		_, err := m.Store(context.Background(), "db", "https://x", nil)
		require.Error(t, err)
		assert.True(t, errors.Is(err, sql.ErrConnDone))
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestMirror_LoadQueryFailure(t *testing.T) {
	m, mock := newMockMirror(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM processes")).
		WithArgs(int64(3)).
		WillReturnError(errors.New("no such table: processes"))

	_, err := m.Load(context.Background(), 3)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query processes")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMirror_LoadRejectsBadProtocols(t *testing.T) {
	m, mock := newMockMirror(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM processes")).
		WillReturnRows(sqlmock.NewRows([]string{"seq", "process_id", "name", "performed_by", "protocols", "completed_at"}).
			AddRow(0, "Process0000001", "", "", "not json", ""))

	_, err := m.Load(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad protocols")
}
