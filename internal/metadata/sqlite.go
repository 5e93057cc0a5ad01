package metadata

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/querypilot/internal/model"
	"github.com/sells-group/querypilot/internal/scorer"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens the metadata database at the given path, configures WAL
// mode, and applies the schema.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "metadata: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "metadata: exec %s", pragma)
		}
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS schema_metadata (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	table_name   TEXT NOT NULL,
	columns      TEXT NOT NULL,
	descriptions TEXT,
	description  TEXT,
	updated_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (tenant_id, table_name)
);

CREATE TABLE IF NOT EXISTS reasoning_log (
	id              TEXT PRIMARY KEY,
	tenant_id       TEXT NOT NULL,
	question        TEXT NOT NULL,
	explanation     TEXT NOT NULL,
	related_tables  TEXT NOT NULL,
	related_columns TEXT NOT NULL,
	logged_at       DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_schema_metadata_tenant ON schema_metadata(tenant_id);
CREATE INDEX IF NOT EXISTS idx_reasoning_log_tenant ON reasoning_log(tenant_id);
`

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(sqliteMigration)
	return eris.Wrap(err, "metadata: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Upsert(ctx context.Context, e Entry) error {
	if e.TenantID == "" || e.TableName == "" {
		return eris.New("metadata: upsert requires tenant_id and table_name")
	}

	colsJSON, err := json.Marshal(e.Columns)
	if err != nil {
		return eris.Wrap(err, "metadata: marshal columns")
	}
	descJSON, err := json.Marshal(e.Descriptions)
	if err != nil {
		return eris.Wrap(err, "metadata: marshal descriptions")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO schema_metadata (id, tenant_id, table_name, columns, descriptions, description, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (tenant_id, table_name) DO UPDATE SET
		   columns = excluded.columns,
		   descriptions = excluded.descriptions,
		   description = excluded.description,
		   updated_at = excluded.updated_at`,
		uuid.New().String(), e.TenantID, e.TableName,
		string(colsJSON), string(descJSON), e.Description,
		time.Now().UTC(),
	)
	return eris.Wrapf(err, "metadata: upsert %s/%s", e.TenantID, e.TableName)
}

func (s *SQLiteStore) Search(ctx context.Context, tenantID, query string, n int) ([]Match, error) {
	entries, err := s.tenantEntries(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	matches := make([]Match, 0, len(entries))
	for _, e := range entries {
		matches = append(matches, Match{Entry: e, Score: entryScore(query, e)})
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Entry.TableName < matches[j].Entry.TableName
	})

	if n > 0 && len(matches) > n {
		matches = matches[:n]
	}
	return matches, nil
}

// entryScore ranks an entry against the query with the same token rules the
// resolver's relevance scorer uses, plus a small bonus for description and
// column overlap.
func entryScore(query string, e Entry) int {
	score := scorer.Score(query, e.TableName)

	queryTokens := make(map[string]struct{})
	for _, t := range scorer.Tokenize(query) {
		queryTokens[t] = struct{}{}
	}
	for _, t := range scorer.Tokenize(e.Description) {
		if _, ok := queryTokens[t]; ok {
			score += 2
		}
	}
	for _, col := range e.Columns {
		for _, t := range scorer.Tokenize(col) {
			if _, ok := queryTokens[t]; ok {
				score += 2
			}
		}
	}
	return score
}

func (s *SQLiteStore) ListTables(ctx context.Context, tenantID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT table_name FROM schema_metadata WHERE tenant_id = ? ORDER BY table_name`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "metadata: list tables for %s", tenantID)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, eris.Wrap(err, "metadata: scan table name")
		}
		tables = append(tables, name)
	}
	return tables, eris.Wrap(rows.Err(), "metadata: iterate tables")
}

func (s *SQLiteStore) LogReasoning(ctx context.Context, tenantID, question string, r model.SchemaReasoning) error {
	tablesJSON, err := json.Marshal(r.RelatedTables)
	if err != nil {
		return eris.Wrap(err, "metadata: marshal related tables")
	}
	colsJSON, err := json.Marshal(r.RelatedColumns)
	if err != nil {
		return eris.Wrap(err, "metadata: marshal related columns")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reasoning_log (id, tenant_id, question, explanation, related_tables, related_columns, logged_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), tenantID, question,
		r.Explanation, string(tablesJSON), string(colsJSON),
		time.Now().UTC(),
	)
	return eris.Wrap(err, "metadata: log reasoning")
}

func (s *SQLiteStore) tenantEntries(ctx context.Context, tenantID string) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT tenant_id, table_name, columns, descriptions, description
		 FROM schema_metadata WHERE tenant_id = ? ORDER BY table_name`,
		tenantID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "metadata: entries for %s", tenantID)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var colsJSON string
		var descJSON, desc sql.NullString
		if err := rows.Scan(&e.TenantID, &e.TableName, &colsJSON, &descJSON, &desc); err != nil {
			return nil, eris.Wrap(err, "metadata: scan entry")
		}
		if err := json.Unmarshal([]byte(colsJSON), &e.Columns); err != nil {
			return nil, eris.Wrapf(err, "metadata: unmarshal columns for %s", e.TableName)
		}
		if descJSON.Valid && descJSON.String != "" && descJSON.String != "null" {
			if err := json.Unmarshal([]byte(descJSON.String), &e.Descriptions); err != nil {
				return nil, eris.Wrapf(err, "metadata: unmarshal descriptions for %s", e.TableName)
			}
		}
		e.Description = desc.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "metadata: iterate entries")
}
