package catalog

import (
	"context"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/querypilot/internal/model"
)

// ErrTableNotFound is returned by Columns when the table is absent from the
// engine's catalog.
var ErrTableNotFound = eris.New("catalog: table not found")

// Pool is the subset of pgxpool.Pool used by PostgresEngine. pgxmock
// satisfies it for unit tests.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresEngine implements Engine using pgxpool.
type PostgresEngine struct {
	pool   Pool
	schema string
}

// PostgresConfig holds connection and pool tuning parameters.
type PostgresConfig struct {
	MaxConns int32
	MinConns int32
	Schema   string // defaults to "public"
}

// NewPostgres creates a PostgresEngine with a connection pool.
func NewPostgres(ctx context.Context, connString string, cfg PostgresConfig) (*PostgresEngine, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if cfg.MaxConns > 0 {
		maxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		minConns = cfg.MinConns
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}

	schema := cfg.Schema
	if schema == "" {
		schema = "public"
	}
	return &PostgresEngine{pool: pool, schema: schema}, nil
}

func (e *PostgresEngine) Name() string { return "postgres" }

func (e *PostgresEngine) Close() error {
	e.pool.Close()
	return nil
}

func (e *PostgresEngine) ListTables(ctx context.Context) ([]string, error) {
	rows, err := e.pool.Query(ctx,
		`SELECT table_name FROM information_schema.tables
		 WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		 ORDER BY table_name`,
		e.schema,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list tables")
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "postgres: scan table name")
		}
		tables = append(tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate tables")
	}

	// information_schema ordering is engine-dependent in practice; sort here
	// so the fallback tie-break contract holds regardless.
	sort.Strings(tables)
	return tables, nil
}

func (e *PostgresEngine) Columns(ctx context.Context, table string) (map[string]string, error) {
	rows, err := e.pool.Query(ctx,
		`SELECT column_name, data_type FROM information_schema.columns
		 WHERE table_schema = $1 AND table_name = $2
		 ORDER BY ordinal_position`,
		e.schema, table,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: columns of %s", table)
	}
	defer rows.Close()

	cols := make(map[string]string)
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, eris.Wrap(err, "postgres: scan column")
		}
		cols[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrapf(err, "postgres: iterate columns of %s", table)
	}
	if len(cols) == 0 {
		return nil, eris.Wrapf(ErrTableNotFound, "postgres: %s", table)
	}
	return cols, nil
}

func (e *PostgresEngine) Query(ctx context.Context, sql string) ([]model.Row, error) {
	rows, err := e.pool.Query(ctx, sql)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query")
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	results := []model.Row{}
	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, eris.Wrap(err, "postgres: read row")
		}
		row := make(model.Row, len(fields))
		for i, fd := range fields {
			row[string(fd.Name)] = values[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate rows")
	}
	return results, nil
}
