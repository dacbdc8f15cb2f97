package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
)

// SQLite is the embedded warehouse backend. The configured path becomes a
// database attached under the analytics schema name, so SQL written against
// analytics.weather_facts works unchanged on both backends. ":memory:"
// attaches a throwaway in-memory database.
type SQLite struct {
	db     *sql.DB
	logger *slog.Logger
}

func OpenSQLite(path string, logger *slog.Logger) (*SQLite, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create warehouse dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// ATTACH is per-connection; a second pooled connection would not see
	// the analytics schema.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`ATTACH DATABASE ? AS `+schemaName, path); err != nil {
		db.Close()
		return nil, fmt.Errorf("attach %s: %w", path, err)
	}
	logger.Info("sqlite warehouse ready", slog.String("path", path))
	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) Name() string { return "sqlite" }

func (s *SQLite) Close() error { return s.db.Close() }

// DB exposes the underlying handle for read-side consumers.
func (s *SQLite) DB() *sql.DB { return s.db }

// UpsertFacts replaces any rows sharing an extraction ID with the incoming
// ones, inside a single transaction. Delete-then-insert keeps the semantics
// identical whatever mix of new and replayed IDs the batch carries.
func (s *SQLite) UpsertFacts(ctx context.Context, table dataset.Table) (int, error) {
	if table.IsEmpty() {
		return 0, nil
	}
	if err := validateColumns(table.Columns); err != nil {
		return 0, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.ensureTable(ctx, tx, table.Columns); err != nil {
		return 0, err
	}

	ids := make([]any, 0, len(table.Rows))
	for _, row := range table.Rows {
		ids = append(ids, row[dataset.ColExtractionID])
	}
	del := fmt.Sprintf("DELETE FROM %s WHERE %s IN (%s)",
		qualifiedTable, dataset.ColExtractionID, placeholders(len(ids)))
	if _, err := tx.ExecContext(ctx, del, ids...); err != nil {
		return 0, fmt.Errorf("delete existing: %w", err)
	}

	names := table.ColumnNames()
	ins := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		qualifiedTable, strings.Join(names, ", "), placeholders(len(names)))
	stmt, err := tx.PrepareContext(ctx, ins)
	if err != nil {
		return 0, fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range table.Rows {
		args := make([]any, len(table.Columns))
		for i, col := range table.Columns {
			args[i] = row[col.Name]
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return 0, fmt.Errorf("insert %v: %w", row[dataset.ColExtractionID], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(table.Rows), nil
}

// ensureTable creates the facts table on first contact and adds any columns
// this batch carries that the table does not.
func (s *SQLite) ensureTable(ctx context.Context, tx *sql.Tx, columns []dataset.Column) error {
	create := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY)",
		qualifiedTable, dataset.ColExtractionID)
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table: %w", err)
	}

	existing, err := s.tableColumns(ctx, tx)
	if err != nil {
		return err
	}
	for _, col := range columns {
		if _, ok := existing[col.Name]; ok {
			continue
		}
		alter := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s",
			qualifiedTable, col.Name, sqliteType(col.Kind))
		if _, err := tx.ExecContext(ctx, alter); err != nil {
			return fmt.Errorf("add column %s: %w", col.Name, err)
		}
		s.logger.Info("warehouse column added",
			slog.String("backend", s.Name()),
			slog.String("column", col.Name))
	}
	return nil
}

func (s *SQLite) tableColumns(ctx context.Context, tx *sql.Tx) (map[string]struct{}, error) {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf("PRAGMA %s.table_info(%s)", schemaName, tableName))
	if err != nil {
		return nil, fmt.Errorf("table info: %w", err)
	}
	defer rows.Close()

	columns := make(map[string]struct{})
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("scan table info: %w", err)
		}
		columns[name] = struct{}{}
	}
	return columns, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
