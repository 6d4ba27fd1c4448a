// Package sqlqa opens a project's relational connection, describes its
// schema for text-to-SQL prompting and runs read-only queries.
//
// SQLite DSNs go through ncruces/go-sqlite3 and PostgreSQL DSNs through
// the pgx stdlib driver.
package sqlqa

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"sort"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// MaxRows bounds the rows returned to the answer prompt.
const MaxRows = 100

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

func (d dialect) String() string {
	if d == dialectPostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

// DB is an open project connection.
type DB struct {
	db      *sql.DB
	dialect dialect
}

// Open parses dsn and opens the matching driver. postgres:// and
// postgresql:// select PostgreSQL; sqlite:// , file: and bare paths select
// SQLite.
func Open(dsn string) (*DB, error) {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		db, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return &DB{db: db, dialect: dialectPostgres}, nil
	case dsn == "":
		return nil, fmt.Errorf("empty connection string")
	default:
		path := strings.TrimPrefix(dsn, "sqlite://")
		if !strings.HasPrefix(path, "file:") {
			path = "file:" + path
		}
		db, err := sql.Open("sqlite3", path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		return &DB{db: db, dialect: dialectSQLite}, nil
	}
}

// Close releases the connection.
func (d *DB) Close() error { return d.db.Close() }

// Dialect names the SQL dialect for prompts.
func (d *DB) Dialect() string { return d.dialect.String() }

// Exec runs a statement without the read-only check. It is meant for
// fixtures and migrations, never for model output.
func (d *DB) Exec(ctx context.Context, stmt string) error {
	_, err := d.db.ExecContext(ctx, stmt)
	return err
}

// Tables lists the user tables.
func (d *DB) Tables(ctx context.Context) ([]string, error) {
	q := `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`
	if d.dialect == dialectPostgres {
		q = `SELECT table_name FROM information_schema.tables WHERE table_schema = 'public' AND table_type = 'BASE TABLE'`
	}
	rows, err := d.db.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out, rows.Err()
}

// Describe renders the columns of tables as one line per table. An empty
// list describes every table.
func (d *DB) Describe(ctx context.Context, tables []string) (string, error) {
	if len(tables) == 0 {
		var err error
		if tables, err = d.Tables(ctx); err != nil {
			return "", err
		}
	}

	var sb strings.Builder
	for _, t := range tables {
		cols, err := d.columns(ctx, t)
		if err != nil {
			return "", err
		}
		if len(cols) == 0 {
			return "", fmt.Errorf("table %q not found", t)
		}
		fmt.Fprintf(&sb, "Table '%s' has columns: %s.\n", t, strings.Join(cols, ", "))
	}
	return sb.String(), nil
}

func (d *DB) columns(ctx context.Context, table string) ([]string, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if d.dialect == dialectPostgres {
		rows, err = d.db.QueryContext(ctx,
			`SELECT column_name, data_type FROM information_schema.columns
			 WHERE table_schema = 'public' AND table_name = $1 ORDER BY ordinal_position`, table)
	} else {
		rows, err = d.db.QueryContext(ctx, `SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	}
	if err != nil {
		return nil, fmt.Errorf("describe %s: %w", table, err)
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, err
		}
		cols = append(cols, fmt.Sprintf("%s (%s)", name, typ))
	}
	return cols, rows.Err()
}

// Result is a query result rendered for the answer prompt.
type Result struct {
	Columns []string
	Rows    [][]string
}

// String renders the result as a pipe-separated table.
func (r *Result) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(r.Columns, " | "))
	for _, row := range r.Rows {
		sb.WriteByte('\n')
		sb.WriteString(strings.Join(row, " | "))
	}
	return sb.String()
}

// Query runs a read-only statement and returns at most MaxRows rows.
func (d *DB) Query(ctx context.Context, stmt string) (*Result, error) {
	if err := ReadOnly(stmt); err != nil {
		return nil, err
	}
	rows, err := d.db.QueryContext(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	res := &Result{Columns: cols}
	for rows.Next() && len(res.Rows) < MaxRows {
		vals := make([]interface{}, len(cols))
		ptrs := make([]interface{}, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make([]string, len(cols))
		for i, v := range vals {
			switch x := v.(type) {
			case nil:
				row[i] = "NULL"
			case []byte:
				row[i] = string(x)
			default:
				row[i] = fmt.Sprint(x)
			}
		}
		res.Rows = append(res.Rows, row)
	}
	return res, rows.Err()
}

var leadingKeyword = regexp.MustCompile(`^\s*(?i:(select|with))\b`)

// ReadOnly rejects anything but a single SELECT or WITH statement.
func ReadOnly(stmt string) error {
	s := strings.TrimSpace(stmt)
	s = strings.TrimSuffix(s, ";")
	if !leadingKeyword.MatchString(s) {
		return fmt.Errorf("only SELECT statements are allowed")
	}
	if strings.Contains(s, ";") {
		return fmt.Errorf("multiple statements are not allowed")
	}
	return nil
}

var fence = regexp.MustCompile("(?s)```(?:sql)?\\s*(.*?)```")

// ExtractSQL pulls the statement out of a model reply: fenced code first,
// then a "SQLQuery:" line, then the whole reply.
func ExtractSQL(reply string) string {
	if m := fence.FindStringSubmatch(reply); m != nil {
		return strings.TrimSpace(m[1])
	}
	if i := strings.Index(reply, "SQLQuery:"); i >= 0 {
		reply = reply[i+len("SQLQuery:"):]
		if j := strings.Index(reply, "SQLResult:"); j >= 0 {
			reply = reply[:j]
		}
	}
	return strings.TrimSpace(reply)
}
