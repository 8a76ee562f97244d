package adapter

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockBase(t *testing.T) (*BaseSQLAdapter, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &BaseSQLAdapter{DB: db}, mock
}

func TestBaseSQLAdapter_NotConnected(t *testing.T) {
	ctx := context.Background()
	b := &BaseSQLAdapter{}

	assert.False(t, b.IsConnected())
	assert.NoError(t, b.Close())
	assert.Error(t, b.Exec(ctx, "SELECT 1"))

	_, err := b.Query(ctx, "SELECT 1")
	assert.Error(t, err)

	_, err = b.QueryTableNames(ctx, "SELECT name FROM tables")
	assert.Error(t, err)
}

func TestBaseSQLAdapter_Exec(t *testing.T) {
	b, mock := newMockBase(t)
	mock.ExpectExec("CREATE TABLE t").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, b.Exec(context.Background(), "CREATE TABLE t (id INT)"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBaseSQLAdapter_Query(t *testing.T) {
	b, mock := newMockBase(t)
	mock.ExpectQuery("SELECT id").WillReturnRows(
		sqlmock.NewRows([]string{"id"}).AddRow(1).AddRow(2))

	rows, err := b.Query(context.Background(), "SELECT id FROM t")
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var ids []int
	for rows.Next() {
		var id int
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int{1, 2}, ids)
}

func TestBaseSQLAdapter_QueryTableNames(t *testing.T) {
	b, mock := newMockBase(t)
	mock.ExpectQuery("SELECT table_name").WillReturnRows(
		sqlmock.NewRows([]string{"table_name"}).AddRow("customers").AddRow("orders"))

	names, err := b.QueryTableNames(context.Background(), "SELECT table_name FROM information_schema.tables")
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, names)
}
