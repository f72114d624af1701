package users

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/sqltrace"
	"github.com/GriffinCanCode/UserTrace/backend/internal/infrastructure/tracing/tracetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func userRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "name", "email"}).
		AddRow(1, "alice", "alice@example.com").
		AddRow(2, "bob", "bob@example.com")
}

func TestDialectFor(t *testing.T) {
	assert.Equal(t, MySQL, DialectFor("mysql"))
	assert.Equal(t, MySQL, DialectFor("MySQL"))
	assert.Equal(t, Postgres, DialectFor("postgres"))
	assert.Equal(t, Postgres, DialectFor(""))
	assert.Equal(t, "mysql", MySQL.String())
	assert.Equal(t, "postgres", Postgres.String())
}

func TestStoreList(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name, email FROM users ORDER BY id").WillReturnRows(userRows())

	users, err := NewStore(db, Postgres).List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []User{
		{ID: 1, Name: "alice", Email: "alice@example.com"},
		{ID: 2, Name: "bob", Email: "bob@example.com"},
	}, users)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreListEmpty(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name, email FROM users ORDER BY id").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))

	users, err := NewStore(db, MySQL).List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, users)
	assert.Empty(t, users)
}

func TestStoreListError(t *testing.T) {
	db, mock := newMock(t)
	boom := errors.New("connection reset")
	mock.ExpectQuery("SELECT id, name, email FROM users ORDER BY id").WillReturnError(boom)

	_, err := NewStore(db, Postgres).List(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestStoreGet(t *testing.T) {
	tests := []struct {
		name    string
		dialect Dialect
		query   string
	}{
		{"postgres", Postgres, "SELECT id, name, email FROM users WHERE id = $1"},
		{"mysql", MySQL, "SELECT id, name, email FROM users WHERE id = ?"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)
			mock.ExpectQuery(tt.query).WithArgs(int64(1)).
				WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}).AddRow(1, "alice", "alice@example.com"))

			u, err := NewStore(db, tt.dialect).Get(context.Background(), 1)
			require.NoError(t, err)
			assert.Equal(t, User{ID: 1, Name: "alice", Email: "alice@example.com"}, u)
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestStoreGetNotFound(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("SELECT id, name, email FROM users WHERE id = $1").WithArgs(int64(42)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email"}))

	_, err := NewStore(db, Postgres).Get(context.Background(), 42)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStoreCreatePostgres(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectQuery("INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id").
		WithArgs("carol", "carol@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))

	u, err := NewStore(db, Postgres).Create(context.Background(), "carol", "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, User{ID: 7, Name: "carol", Email: "carol@example.com"}, u)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateMySQL(t *testing.T) {
	db, mock := newMock(t)
	mock.ExpectExec("INSERT INTO users (name, email) VALUES (?, ?)").
		WithArgs("carol", "carol@example.com").
		WillReturnResult(sqlmock.NewResult(9, 1))

	u, err := NewStore(db, MySQL).Create(context.Background(), "carol", "carol@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(9), u.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStoreCreateDuplicate(t *testing.T) {
	db, mock := newMock(t)
	dup := errors.New(`duplicate key value violates unique constraint "users_email_key"`)
	mock.ExpectQuery("INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id").WillReturnError(dup)

	_, err := NewStore(db, Postgres).Create(context.Background(), "carol", "carol@example.com")
	assert.ErrorIs(t, err, dup)
}

func TestStoreThroughTracedDriver(t *testing.T) {
	dsn := "users_" + t.Name()
	mockDB, mock, err := sqlmock.NewWithDSN(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	tracer, rec := tracetest.NewTracer()
	db, err := sqltrace.Open("sqlmock", dsn, sqltrace.WithTracer(tracer), sqltrace.WithDBSystem("postgresql"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mock.ExpectQuery("SELECT id, name, email FROM users").WillReturnRows(userRows())

	root, ctx := tracer.StartSpan(context.Background(), "GET /api/users", tracing.WithKind(tracing.KindServer))
	users, err := NewStore(db, Postgres).List(ctx)
	root.End()

	require.NoError(t, err)
	assert.Len(t, users, 2)

	spans := rec.ByName(sqltrace.SpanQuery)
	require.Len(t, spans, 1)
	assert.Equal(t, root.SpanContext().SpanID, spans[0].Parent().SpanID)
	assert.Equal(t, sqltrace.OpQuery, spans[0].Attributes()[sqltrace.OperationKey])
}
