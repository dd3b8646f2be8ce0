// Package persist saves and loads annotation tables by annotator name.
package persist

import (
	"context"
	"errors"
	"fmt"

	"github.com/sbenjam1n/annotate/internal/store"
)

// ErrNotFound is returned by Load when nothing was saved under a name.
var ErrNotFound = errors.New("no saved annotations")

// Backend stores exported annotation tables.
type Backend interface {
	Save(ctx context.Context, name string, tbl *store.Table) error
	Load(ctx context.Context, name string) (*store.Table, error)
	// Annotators lists saved names with their row counts.
	Annotators(ctx context.Context) (map[string]int, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string
	Dir         string
	SQLitePath  string
	DatabaseURL string
}

// Open returns the backend named by opts.Backend: csv (the default), sqlite
// or postgres.
func Open(ctx context.Context, opts Options) (Backend, error) {
	switch opts.Backend {
	case "", "csv":
		return NewCSV(opts.Dir)
	case "sqlite":
		return OpenSQLite(opts.SQLitePath)
	case "postgres":
		return OpenPostgres(ctx, opts.DatabaseURL)
	}
	return nil, fmt.Errorf("unknown backend %q (want csv, sqlite or postgres)", opts.Backend)
}
