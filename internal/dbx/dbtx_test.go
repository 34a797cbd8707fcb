package dbx

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

type failingConnector struct{ err error }

func (f failingConnector) Conn(context.Context) (*sql.Conn, error) { return nil, f.err }

func TestWithConn_RunsOnDedicatedConnection(t *testing.T) {
	db, mock := setupDB(t)

	mock.ExpectExec(`UPDATE t`).WillReturnResult(sqlmock.NewResult(0, 1))

	err := WithConn(context.Background(), db, func(ctx context.Context, q DBTX) error {
		_, ok := q.(*sql.Conn)
		assert.True(t, ok, "fn must receive a *sql.Conn")
		_, err := q.ExecContext(ctx, `UPDATE t SET v = 1`)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithConn_ReleasesOnError(t *testing.T) {
	db, _ := setupDB(t)
	db.SetMaxOpenConns(1)

	boom := errors.New("boom")
	for i := 0; i < 3; i++ {
		err := WithConn(context.Background(), db, func(ctx context.Context, q DBTX) error {
			return boom
		})
		require.ErrorIs(t, err, boom)
	}
	// with a single-connection pool the loop would block if a connection leaked
	assert.Equal(t, 0, db.Stats().InUse)
}

func TestWithConn_ReleasesOnPanic(t *testing.T) {
	db, _ := setupDB(t)

	func() {
		defer func() {
			require.NotNil(t, recover(), "expected panic to propagate")
		}()
		_ = WithConn(context.Background(), db, func(ctx context.Context, q DBTX) error {
			panic("kaput")
		})
	}()

	assert.Equal(t, 0, db.Stats().InUse)
}

func TestWithConn_AcquireError(t *testing.T) {
	called := false
	err := WithConn(context.Background(), failingConnector{err: sql.ErrConnDone}, func(ctx context.Context, q DBTX) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, sql.ErrConnDone)
	assert.False(t, called)
}

func TestOpenPostgres_PingError(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	require.NoError(t, db.Close())

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) {
		assert.Equal(t, "pgx", driver)
		return db, nil
	}
	defer func() { sqlOpen = orig }()

	_, err = OpenPostgres(context.Background(), "postgres://x", PoolOptions{MaxOpenConns: 5})
	require.ErrorContains(t, err, "ping database")
}

func TestOpenPostgres_OpenError(t *testing.T) {
	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) { return nil, errors.New("unknown driver") }
	defer func() { sqlOpen = orig }()

	_, err := OpenPostgres(context.Background(), "postgres://x", PoolOptions{})
	require.ErrorContains(t, err, "open database")
}

func TestOpenPostgres_OK(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := sqlOpen
	sqlOpen = func(driver, dsn string) (*sql.DB, error) { return db, nil }
	defer func() { sqlOpen = orig }()

	got, err := OpenPostgres(context.Background(), "postgres://x", PoolOptions{MaxOpenConns: 5, MaxIdleConns: 2})
	require.NoError(t, err)
	assert.Same(t, db, got)
	assert.Equal(t, 5, got.Stats().MaxOpenConnections)
}
