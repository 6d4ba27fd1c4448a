package sqlqa_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/agentoven/ragserve/internal/sqlqa"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFixture(t *testing.T) *sqlqa.DB {
	t.Helper()
	ctx := context.Background()
	db, err := sqlqa.Open(filepath.Join(t.TempDir(), "shop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	require.NoError(t, db.Exec(ctx, `CREATE TABLE customers (id INTEGER PRIMARY KEY, name TEXT, city TEXT)`))
	require.NoError(t, db.Exec(ctx, `CREATE TABLE orders (id INTEGER PRIMARY KEY, customer_id INTEGER, total REAL)`))
	require.NoError(t, db.Exec(ctx, `INSERT INTO customers (name, city) VALUES ('Ana', 'Lisbon'), ('Rui', 'Porto')`))
	return db
}

func TestTablesAndDescribe(t *testing.T) {
	ctx := context.Background()
	db := openFixture(t)
	assert.Equal(t, "SQLite", db.Dialect())

	tables, err := db.Tables(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"customers", "orders"}, tables)

	desc, err := db.Describe(ctx, []string{"customers"})
	require.NoError(t, err)
	assert.Equal(t, "Table 'customers' has columns: id (INTEGER), name (TEXT), city (TEXT).\n", desc)

	_, err = db.Describe(ctx, []string{"nope"})
	assert.Error(t, err)
}

func TestQuery(t *testing.T) {
	db := openFixture(t)
	res, err := db.Query(context.Background(), "SELECT name, city FROM customers ORDER BY name;")
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "city"}, res.Columns)
	assert.Equal(t, [][]string{{"Ana", "Lisbon"}, {"Rui", "Porto"}}, res.Rows)
	assert.Equal(t, "name | city\nAna | Lisbon\nRui | Porto", res.String())
}

func TestReadOnly(t *testing.T) {
	assert.NoError(t, sqlqa.ReadOnly("select 1"))
	assert.NoError(t, sqlqa.ReadOnly("  WITH x AS (SELECT 1) SELECT * FROM x;"))
	assert.Error(t, sqlqa.ReadOnly("DELETE FROM customers"))
	assert.Error(t, sqlqa.ReadOnly("SELECT 1; DROP TABLE customers"))

	db := openFixture(t)
	_, err := db.Query(context.Background(), "DROP TABLE customers")
	assert.Error(t, err)
}

func TestExtractSQL(t *testing.T) {
	assert.Equal(t, "SELECT 1", sqlqa.ExtractSQL("Here you go:\n```sql\nSELECT 1\n```"))
	assert.Equal(t, "SELECT name FROM t", sqlqa.ExtractSQL("SQLQuery: SELECT name FROM t\nSQLResult: ..."))
	assert.Equal(t, "SELECT 2", sqlqa.ExtractSQL("  SELECT 2 "))
}

func TestOpen_Empty(t *testing.T) {
	_, err := sqlqa.Open("")
	assert.Error(t, err)
}
