package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockUsageStore(t *testing.T) (*PostgresUsageStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })
	return NewPostgresUsageStore(mock), mock
}

func TestPostgresUsage_IncrementApplied(t *testing.T) {
	s, mock := newMockUsageStore(t)

	mock.ExpectExec(`INSERT INTO pool_usage .+ ON CONFLICT \(day, pool\) DO NOTHING`).
		WithArgs("2026-08-29", "main", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery(`UPDATE pool_usage SET used = used \+ \$3`).
		WithArgs("2026-08-29", "main", 2, pgxmock.AnyArg(), 70).
		WillReturnRows(pgxmock.NewRows([]string{"used"}).AddRow(5))

	used, applied, err := s.Increment(context.Background(), "2026-08-29", "main", 2, 70)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 5, used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsage_IncrementDenied(t *testing.T) {
	s, mock := newMockUsageStore(t)

	mock.ExpectExec(`INSERT INTO pool_usage`).
		WithArgs("2026-08-29", "main", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))
	// The conditional update matches no row when the budget would overflow.
	mock.ExpectQuery(`UPDATE pool_usage SET used = used \+ \$3`).
		WithArgs("2026-08-29", "main", 5, pgxmock.AnyArg(), 70).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery(`SELECT used FROM pool_usage`).
		WithArgs("2026-08-29", "main").
		WillReturnRows(pgxmock.NewRows([]string{"used"}).AddRow(68))

	used, applied, err := s.Increment(context.Background(), "2026-08-29", "main", 5, 70)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 68, used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsage_Usage(t *testing.T) {
	s, mock := newMockUsageStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(`SELECT pool, used, last_updated FROM pool_usage WHERE day = \$1`).
		WithArgs("2026-08-29").
		WillReturnRows(pgxmock.NewRows([]string{"pool", "used", "last_updated"}).
			AddRow("main", 12, now).
			AddRow("backup", 0, now))

	usage, err := s.Usage(context.Background(), "2026-08-29")
	require.NoError(t, err)
	require.Len(t, usage, 2)
	assert.Equal(t, 12, usage["main"].Used)
	assert.Equal(t, 0, usage["backup"].Used)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresUsage_SetUsed(t *testing.T) {
	s, mock := newMockUsageStore(t)

	mock.ExpectExec(`INSERT INTO pool_usage .+ DO UPDATE SET used = \$3`).
		WithArgs("2026-08-29", "main", 70, pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.SetUsed(context.Background(), "2026-08-29", "main", 70))
	assert.NoError(t, mock.ExpectationsWereMet())
}
