package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/config"
	"github.com/sbenjam1n/annotate/internal/persist"
	"github.com/sbenjam1n/annotate/internal/queue"
	"github.com/sbenjam1n/annotate/internal/source"
	"github.com/sbenjam1n/annotate/internal/store"
	"github.com/sbenjam1n/annotate/internal/task"
)

var (
	cfg     *config.Config
	rootCmd = &cobra.Command{
		Use:   "annotate",
		Short: "Annotate records by hand, one task at a time",
		Long: `annotate walks the records of a dataset and asks a fixed set of typed
questions ("tasks") about each one. Answers are validated, stored per record,
and saved to CSV, SQLite or PostgreSQL.

Typical session:
  annotate init
  annotate check
  annotate run --data news.csv --id-column news_id

Keys during a session (configurable): "." exit, "<" previous, ">" next,
"-" no answer for nullable tasks.`,
		SilenceUsage: true,
	}
)

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("name", "", "Annotator name the annotations are saved under")
	rootCmd.PersistentFlags().String("backend", "", "Storage backend: csv, sqlite or postgres")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(browseCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(queueCmd)
}

func initConfig() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if name, _ := rootCmd.PersistentFlags().GetString("name"); name != "" {
		cfg.Name = name
	}
	if backend, _ := rootCmd.PersistentFlags().GetString("backend"); backend != "" {
		cfg.Backend = backend
	}
}

func connectRedis() (*redis.Client, error) {
	rdb, err := queue.ConnectRedis(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("%w\nSet ANNOTATE_REDIS_URL environment variable", err)
	}
	return rdb, nil
}

func projectRoot() string {
	return cfg.ProjectRoot
}

func registry() *task.Registry {
	return task.NewRegistry(cfg.Keys.Null)
}

func openBackend(ctx context.Context) (persist.Backend, error) {
	b, err := persist.Open(ctx, persist.Options{
		Backend:     cfg.Backend,
		Dir:         cfg.Path(cfg.StoreDir),
		SQLitePath:  cfg.Path(cfg.SQLitePath),
		DatabaseURL: cfg.DatabaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s backend: %w", cfg.Backend, err)
	}
	return b, nil
}

// loadDefinitions reads the tasks file. A missing file is not an error; it
// means tasks come from saved annotations, or there are none.
func loadDefinitions(reg *task.Registry) ([]task.Definition, bool, error) {
	path := cfg.Path(cfg.TasksFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil, false, nil
	}
	defs, warnings, err := reg.LoadDefinitions(path)
	if err != nil {
		return nil, false, err
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}
	return defs, true, nil
}

// loadSaved returns the saved table for the configured name, or nil.
func loadSaved(ctx context.Context, b persist.Backend) (*store.Table, error) {
	tbl, err := b.Load(ctx, cfg.Name)
	if errors.Is(err, persist.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", cfg.Name, err)
	}
	return tbl, nil
}

// openStore builds the session store. Tasks come from the tasks file when
// there is one, otherwise they are inferred from the saved annotations.
// Saved rows are migrated onto the current tasks.
func openStore(ctx context.Context, b persist.Backend) (*store.Store, error) {
	reg := registry()
	defs, haveFile, err := loadDefinitions(reg)
	if err != nil {
		return nil, err
	}
	saved, err := loadSaved(ctx, b)
	if err != nil {
		return nil, err
	}

	var st *store.Store
	if saved != nil {
		st, err = store.FromTable(saved, reg)
		if err != nil {
			return nil, fmt.Errorf("rebuild saved annotations: %w", err)
		}
	}
	if !haveFile {
		if st == nil {
			st = store.New(nil)
		}
		return st, nil
	}

	set, err := task.Build(reg, defs)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return store.New(set), nil
	}
	st.EnsureSchema(set)
	return st, nil
}

func loadSource(path string) (*source.Source, error) {
	if path == "" {
		path = cfg.DataFile
	}
	if path == "" {
		return nil, errors.New("no data file: pass --data or set data_file in annotate.yaml")
	}
	return source.LoadFile(cfg.Path(path), source.TableOptions{
		IDColumn:    cfg.IDColumn,
		ItemColumns: cfg.ItemColumns,
	})
}
