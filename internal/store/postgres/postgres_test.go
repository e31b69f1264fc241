package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/mevbot/internal/domain"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func anyArgs(n int) []any {
	args := make([]any, n)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func sampleRecord() domain.ExecutionRecord {
	slot := uint64(250_000_001)
	return domain.ExecutionRecord{
		ID: "exec-1",
		Opportunity: domain.Opportunity{
			ID:       "opp-1",
			Strategy: "arbitrage",
		},
		Result: domain.ExecutionResult{
			OpportunityID: "opp-1",
			Success:       true,
			Signature:     "5sig",
			Outcome:       domain.OutcomeLanded,
			LandedSlot:    &slot,
			ProfitUSD:     12.5,
		},
		CreatedAt: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestExecutionStoreCreate(t *testing.T) {
	mock := newMock(t)
	store := NewExecutionStore(mock)

	args := anyArgs(17)
	args[0] = "exec-1"
	args[1] = "opp-1"
	args[2] = "arbitrage"
	mock.ExpectExec(`INSERT INTO executions`).
		WithArgs(args...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, store.Handle(context.Background(), sampleRecord()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStoreGetByID(t *testing.T) {
	mock := newMock(t)
	store := NewExecutionStore(mock)
	rec := sampleRecord()

	opp, _ := json.Marshal(rec.Opportunity)
	sim, _ := json.Marshal(rec.Simulation)
	res, _ := json.Marshal(rec.Result)
	mock.ExpectQuery(`SELECT (.+) FROM executions WHERE id = \$1`).
		WithArgs("exec-1").
		WillReturnRows(mock.NewRows([]string{"id", "opportunity", "simulation", "result", "created_at"}).
			AddRow("exec-1", opp, sim, res, rec.CreatedAt))

	got, err := store.GetByID(context.Background(), "exec-1")
	require.NoError(t, err)
	assert.Equal(t, "opp-1", got.Opportunity.ID)
	assert.Equal(t, domain.OutcomeLanded, got.Result.Outcome)
	require.NotNil(t, got.Result.LandedSlot)
	assert.Equal(t, uint64(250_000_001), *got.Result.LandedSlot)
	assert.True(t, got.CreatedAt.Equal(rec.CreatedAt))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecutionStoreGetByIDNotFound(t *testing.T) {
	mock := newMock(t)
	store := NewExecutionStore(mock)

	mock.ExpectQuery(`FROM executions WHERE id`).
		WithArgs("missing").
		WillReturnRows(mock.NewRows([]string{"id", "opportunity", "simulation", "result", "created_at"}))

	_, err := store.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecutionStoreListRecentDefaultsLimit(t *testing.T) {
	mock := newMock(t)
	store := NewExecutionStore(mock)

	mock.ExpectQuery(`ORDER BY created_at DESC LIMIT \$1`).
		WithArgs(50).
		WillReturnRows(mock.NewRows([]string{"id", "opportunity", "simulation", "result", "created_at"}).
			AddRow("a", []byte(`{}`), []byte(`{}`), []byte(`{"outcome":"landed"}`), time.Now()).
			AddRow("b", []byte(`{}`), []byte(`{}`), []byte(`{"outcome":"reverted"}`), time.Now()))

	recs, err := store.ListRecent(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, domain.OutcomeReverted, recs[1].Result.Outcome)
}

func TestExecutionStoreSumAndDelete(t *testing.T) {
	mock := newMock(t)
	store := NewExecutionStore(mock)
	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT COALESCE\(SUM\(profit_usd\), 0\) FROM executions`).
		WithArgs(since).
		WillReturnRows(mock.NewRows([]string{"sum"}).AddRow(-42.5))
	mock.ExpectExec(`DELETE FROM executions WHERE created_at < \$1`).
		WithArgs(since).
		WillReturnResult(pgxmock.NewResult("DELETE", 7))

	total, err := store.SumPnL(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, -42.5, total)

	n, err := store.DeleteBefore(context.Background(), since)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreListFilters(t *testing.T) {
	mock := newMock(t)
	store := NewAuditStore(mock)
	since := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`created_at >= \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs(since, 10).
		WillReturnRows(mock.NewRows([]string{"id", "event", "detail", "created_at"}).
			AddRow(int64(3), "kill_switch", []byte(`{"active":true}`), since.Add(time.Hour)))

	entries, err := store.List(context.Background(), domain.ListOpts{Since: &since, Limit: 10})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "kill_switch", entries[0].Event)
	assert.Equal(t, true, entries[0].Detail["active"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreHandleLogsFailuresOnly(t *testing.T) {
	mock := newMock(t)
	store := NewAuditStore(mock)

	mock.ExpectExec(`INSERT INTO audit_log`).
		WithArgs("execution.reverted", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	ok := sampleRecord()
	require.NoError(t, store.Handle(context.Background(), ok))

	failed := sampleRecord()
	failed.Result.Success = false
	failed.Result.Outcome = domain.OutcomeReverted
	require.NoError(t, store.Handle(context.Background(), failed))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditStoreDeleteBefore(t *testing.T) {
	mock := newMock(t)
	store := NewAuditStore(mock)
	cutoff := time.Now().UTC()

	mock.ExpectExec(`DELETE FROM audit_log`).
		WithArgs(cutoff).
		WillReturnResult(pgxmock.NewResult("DELETE", 2))

	n, err := store.DeleteBefore(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func migrationFS() fstest.MapFS {
	return fstest.MapFS{
		"m/001_a.sql":    {Data: []byte("CREATE TABLE a (id INT)")},
		"m/002_b.sql":    {Data: []byte("CREATE TABLE b (id INT)")},
		"m/README.md":    {Data: []byte("ignored")},
		"m/nested/x.sql": {Data: []byte("ignored")},
	}
}

func expectMigrationPrelude(mock pgxmock.PgxPoolIface, applied ...string) {
	mock.ExpectBegin()
	mock.ExpectExec(`pg_advisory_xact_lock`).
		WithArgs(int64(migrationLockID)).
		WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS schema_migrations`).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	rows := mock.NewRows([]string{"filename"})
	for _, name := range applied {
		rows.AddRow(name)
	}
	mock.ExpectQuery(`SELECT filename FROM schema_migrations`).WillReturnRows(rows)
}

func TestMigrateSkipsApplied(t *testing.T) {
	mock := newMock(t)
	expectMigrationPrelude(mock, "001_a.sql")
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE b (id INT)")).
		WillReturnResult(pgxmock.NewResult("CREATE TABLE", 0))
	mock.ExpectExec(`INSERT INTO schema_migrations`).
		WithArgs("002_b.sql").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	n, err := Migrate(context.Background(), mock, migrationFS(), "m")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackOnFailure(t *testing.T) {
	mock := newMock(t)
	expectMigrationPrelude(mock)
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE a (id INT)")).
		WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	n, err := Migrate(context.Background(), mock, migrationFS(), "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "001_a.sql")
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrationNamesSorted(t *testing.T) {
	names, err := migrationNames(migrationFS(), "m")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_a.sql", "002_b.sql"}, names)

	embedded, err := migrationNames(migrationsFS, "migrations")
	require.NoError(t, err)
	assert.Equal(t, []string{"001_executions.sql", "002_audit_log.sql"}, embedded)
}

func TestDSN(t *testing.T) {
	assert.Equal(t, "postgres://u:p@x/db", DSN(ClientConfig{DSN: " postgres://u:p@x/db "}))
	assert.Equal(t,
		"postgres://bot:p%40ss@db:6432/mev?sslmode=require",
		DSN(ClientConfig{Host: "db", Port: 6432, Database: "mev", User: "bot", Password: "p@ss", SSLMode: "require"}),
	)
	assert.Equal(t,
		"postgres://bot:@localhost:5432/mev?sslmode=disable",
		DSN(ClientConfig{Database: "mev", User: "bot"}),
	)
}
