package catalog

import (
	"context"
	"database/sql"
	"sort"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/querypilot/internal/model"
)

// SQLiteEngine implements Engine over a single-file sqlite database using
// modernc.org/sqlite. It serves as the legacy embedded fallback target.
type SQLiteEngine struct {
	db *sql.DB
}

// NewSQLite opens a sqlite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteEngine, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteEngine{db: db}, nil
}

func (e *SQLiteEngine) Name() string { return "sqlite" }

func (e *SQLiteEngine) Close() error {
	return e.db.Close()
}

func (e *SQLiteEngine) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate tables")
	}

	sort.Strings(tables)
	return tables, nil
}

func (e *SQLiteEngine) Columns(ctx context.Context, table string) (map[string]string, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: columns of %s", table)
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan column")
		}
		cols[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "sqlite: iterate columns of %s", table)
	}
	if len(cols) == 0 {
		return nil, eris.Wrapf(ErrTableNotFound, "sqlite: %s", table)
	}
	return cols, nil
}

func (e *SQLiteEngine) Query(ctx context.Context, query string) ([]model.Row, error) {
	rows, err := e.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query")
	}
	defer rows.Close()

	colNames, err := rows.Columns()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: read columns")
	}

	results := []model.Row{}
	for rows.Next() {
		values := make([]any, len(colNames))
		ptrs := make([]any, len(colNames))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan row")
		}
		row := make(model.Row, len(colNames))
		for i, name := range colNames {
			// database/sql yields []byte for TEXT under some drivers;
			// normalize to string so rows marshal cleanly.
			if b, ok := values[i].([]byte); ok {
				row[name] = string(b)
			} else {
				row[name] = values[i]
			}
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate rows")
	}
	return results, nil
}
