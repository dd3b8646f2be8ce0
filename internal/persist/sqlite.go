package persist

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sbenjam1n/annotate/internal/store"
)

//go:embed sqlite.sql
var sqliteSchema string

// SQLite keeps every annotator's table in one database file.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(path string) (*SQLite, error) {
	if path == "" {
		return nil, errors.New("sqlite backend needs a database path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path+"?_fk=1")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// one writer
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

// Save replaces everything stored under name in one transaction.
func (s *SQLite) Save(ctx context.Context, name string, tbl *store.Table) error {
	cols, err := json.Marshal(tbl.Columns)
	if err != nil {
		return fmt.Errorf("encode columns: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE annotator = ?`, name); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO annotators (name, columns, saved_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET columns = excluded.columns, saved_at = excluded.saved_at`,
		name, string(cols), time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("save annotator: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO annotations (annotator, record_id, position, cells, annotated_at, annotated_by)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, rec := range tbl.Records {
		cells, err := json.Marshal(rec.Cells)
		if err != nil {
			return fmt.Errorf("encode record %s: %w", rec.ID, err)
		}
		var ts sql.NullString
		if !rec.Timestamp.IsZero() {
			ts = sql.NullString{String: rec.Timestamp.Format(time.RFC3339Nano), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, name, rec.ID, i, string(cells), ts, rec.User); err != nil {
			return fmt.Errorf("insert record %s: %w", rec.ID, err)
		}
	}
	return tx.Commit()
}

// Load reads the table saved under name.
func (s *SQLite) Load(ctx context.Context, name string) (*store.Table, error) {
	var cols string
	err := s.db.QueryRowContext(ctx, `SELECT columns FROM annotators WHERE name = ?`, name).Scan(&cols)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load annotator: %w", err)
	}

	tbl := &store.Table{}
	if err := json.Unmarshal([]byte(cols), &tbl.Columns); err != nil {
		return nil, fmt.Errorf("decode columns: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT record_id, cells, annotated_at, annotated_by
		FROM annotations WHERE annotator = ? ORDER BY position`, name)
	if err != nil {
		return nil, fmt.Errorf("query annotations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			rec   store.Record
			cells string
			ts    sql.NullString
		)
		if err := rows.Scan(&rec.ID, &cells, &ts, &rec.User); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		if err := json.Unmarshal([]byte(cells), &rec.Cells); err != nil {
			return nil, fmt.Errorf("decode record %s: %w", rec.ID, err)
		}
		if ts.Valid {
			t, err := time.Parse(time.RFC3339Nano, ts.String)
			if err != nil {
				return nil, fmt.Errorf("record %s timestamp: %w", rec.ID, err)
			}
			rec.Timestamp = t
		}
		tbl.Records = append(tbl.Records, rec)
	}
	return tbl, rows.Err()
}

// Annotators lists saved annotator names with their row counts.
func (s *SQLite) Annotators(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
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

// Close closes the database.
func (s *SQLite) Close() error { return s.db.Close() }
