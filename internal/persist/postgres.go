package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sbenjam1n/annotate/internal/db"
	"github.com/sbenjam1n/annotate/internal/store"
)

// Postgres stores tables in the annotators/annotations schema of internal/db.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects and applies the schema.
func OpenPostgres(ctx context.Context, databaseURL string) (*Postgres, error) {
	pool, err := db.Connect(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Postgres{pool: pool}, nil
}

// Save replaces everything stored under name in one transaction.
func (p *Postgres) Save(ctx context.Context, name string, tbl *store.Table) error {
	cols, err := json.Marshal(tbl.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM annotations WHERE annotator = $1`, name); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO annotators (name, columns, saved_at) VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE SET columns = EXCLUDED.columns, saved_at = EXCLUDED.saved_at`,
		name, cols,
	); err != nil {
		return fmt.Errorf("save annotator: %w", err)
	}

	batch := &pgx.Batch{}
	for i, rec := range tbl.Records {
		cells, err := json.Marshal(rec.Cells)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		var ts *time.Time
		if !rec.Timestamp.IsZero() {
			t := rec.Timestamp
			ts = &t
		}
		batch.Queue(`
			INSERT INTO annotations (annotator, record_id, position, cells, annotated_at, annotated_by)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			name, rec.ID, i, cells, ts, rec.User)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert annotations: %w", err)
	}
	return tx.Commit(ctx)
}

// Load reads the table saved under name.
func (p *Postgres) Load(ctx context.Context, name string) (*store.Table, error) {
	var cols []byte
	err := p.pool.QueryRow(ctx, `SELECT columns FROM annotators WHERE name = $1`, name).Scan(&cols)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load annotator: %w", err)
	}

	tbl := &store.Table{}
	if err := json.Unmarshal(cols, &tbl.Columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}

	rows, err := p.pool.Query(ctx, `
		SELECT record_id, cells, annotated_at, annotated_by
		FROM annotations WHERE annotator = $1 ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec   store.Record
			cells []byte
			ts    *time.Time
		)
		if err := rows.Scan(&rec.ID, &cells, &ts, &rec.User); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		if err := json.Unmarshal(cells, &rec.Cells); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		if ts != nil {
			rec.Timestamp = *ts
		}
		tbl.Records = append(tbl.Records, rec)
	}
	return tbl, rows.Err()
}

// Annotators lists saved annotator names with their row counts.
func (p *Postgres) Annotators(ctx context.Context) (map[string]int, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT a.name, count(n.record_id)
		FROM annotators a LEFT JOIN annotations n ON n.annotator = a.name
		GROUP BY a.name`)
	if err != nil {
		return nil, fmt.Errorf("list annotators: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var name string
		var n int
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("scan annotator: %w", err)
		}
		out[name] = n
	}
	return out, rows.Err()
}

// Close releases the pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
