package warehouse

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/couchcryptid/weather-data-etl/internal/dataset"
)

const postgresDialTimeout = 10 * time.Second

// Postgres is the shared warehouse backend.
type Postgres struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func OpenPostgres(ctx context.Context, dsn string, logger *slog.Logger) (*Postgres, error) {
	if logger == nil {
		logger = slog.Default()
	}
	pc, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pc.ConnConfig.RuntimeParams["application_name"] = "weather-data-etl"

	dialCtx, cancel := context.WithTimeout(ctx, postgresDialTimeout)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	logger.Info("postgres warehouse ready", slog.String("database", pc.ConnConfig.Database))
	return &Postgres{pool: pool, logger: logger}, nil
}

func (p *Postgres) Name() string { return "postgres" }

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// UpsertFacts inserts the batch with ON CONFLICT DO UPDATE on the
// extraction ID, queued through one pgx batch round trip.
func (p *Postgres) UpsertFacts(ctx context.Context, table dataset.Table) (int, error) {
	if table.IsEmpty() {
		return 0, nil
	}
	if err := validateColumns(table.Columns); err != nil {
		return 0, err
	}
	if err := p.ensureTable(ctx, table.Columns); err != nil {
		return 0, err
	}

	stmt := upsertStatement(table.Columns)
	batch := &pgx.Batch{}
	for _, row := range table.Rows {
		args := make([]any, len(table.Columns))
		for i, col := range table.Columns {
			args[i] = row[col.Name]
		}
		batch.Queue(stmt, args...)
	}

	results := p.pool.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return 0, fmt.Errorf("upsert row %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return 0, fmt.Errorf("close batch: %w", err)
	}
	return len(table.Rows), nil
}

func (p *Postgres) ensureTable(ctx context.Context, columns []dataset.Column) error {
	ddl := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schemaName),
		fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s TEXT PRIMARY KEY)",
			qualifiedTable, dataset.ColExtractionID),
	}
	for _, col := range columns {
		if col.Name == dataset.ColExtractionID {
			continue
		}
		ddl = append(ddl, fmt.Sprintf("ALTER TABLE %s ADD COLUMN IF NOT EXISTS %s %s",
			qualifiedTable, col.Name, postgresType(col.Kind)))
	}
	for _, stmt := range ddl {
		if _, err := p.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure table: %w", err)
		}
	}
	return nil
}

// upsertStatement builds the INSERT ... ON CONFLICT statement for the
// table's column order.
func upsertStatement(columns []dataset.Column) string {
	names := make([]string, len(columns))
	params := make([]string, len(columns))
	var updates []string
	for i, col := range columns {
		names[i] = col.Name
		params[i] = fmt.Sprintf("$%d", i+1)
		if col.Name != dataset.ColExtractionID {
			updates = append(updates, fmt.Sprintf("%s = EXCLUDED.%s", col.Name, col.Name))
		}
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (%s) DO UPDATE SET %s",
		qualifiedTable,
		strings.Join(names, ", "),
		strings.Join(params, ", "),
		dataset.ColExtractionID,
		strings.Join(updates, ", "))
}
