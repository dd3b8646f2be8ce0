package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/config"
	"github.com/sbenjam1n/annotate/internal/db"
	"github.com/sbenjam1n/annotate/internal/queue"
)

var minimal bool

const sampleConfig = `# annotate project settings. ANNOTATE_* environment variables override them.
name: HUMANNOTATOR
user: ""
tasks_file: tasks.yaml
data_file: ""
id_column: ""
item_columns: []

backend: csv            # csv, sqlite or postgres
store_dir: annotations
sqlite_path: annotations/annotations.db
database_url: postgres://localhost:5432/annotate?sslmode=disable

events: false
redis_url: redis://localhost:6379/0

keys:
  exit: "."
  previous: "<"
  next: ">"
  null: "-"

display:
  clear_screen: true
  width: 80
  truncate_words: 0
  phrases: []
  ignore_case: false
`

const sampleTasks = `tasks:
  - name: topic
    kind: category
    instruction: What is the article about?
    categories:
      p: politics
      s: sports
      o: other

  - name: relevant
    kind: bool
    instruction: Is the article relevant?
    nullable: true
    dependencies:
      - condition: topic == 'other'
        value: "no"

  - name: notes
    kind: str
    instruction: Anything worth noting?
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize an annotate project",
	Long:  "Initialize project: annotate.yaml, a sample tasks.yaml, the store directory, and the PostgreSQL schema and Redis stream when configured",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		for _, f := range []struct{ name, content string }{
			{config.FileName, sampleConfig},
			{cfg.TasksFile, sampleTasks},
		} {
			path := cfg.Path(f.name)
			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := os.WriteFile(path, []byte(f.content), 0644); err != nil {
					return fmt.Errorf("create %s: %w", f.name, err)
				}
				fmt.Printf("Created %s\n", f.name)
			} else {
				fmt.Printf("%s already exists\n", f.name)
			}
		}

		if cfg.Backend == "" || cfg.Backend == "csv" {
			if err := os.MkdirAll(cfg.Path(cfg.StoreDir), 0755); err != nil {
				return fmt.Errorf("create %s: %w", cfg.StoreDir, err)
			}
			fmt.Printf("Store directory: %s\n", cfg.Path(cfg.StoreDir))
		}

		if minimal {
			fmt.Println("\nMinimal init complete.")
			return nil
		}

		if cfg.Backend == "postgres" {
			fmt.Println("Connecting to PostgreSQL...")
			pool, err := db.Connect(ctx, cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("database connection failed: %w", err)
			}
			defer pool.Close()

			fmt.Println("Running migrations...")
			if err := db.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("PostgreSQL schema created")
		}

		if cfg.Events {
			fmt.Println("Connecting to Redis...")
			rdb, err := connectRedis()
			if err != nil {
				return fmt.Errorf("redis connection failed: %w", err)
			}
			defer rdb.Close()

			if err := queue.New(rdb).EnsureStream(ctx); err != nil {
				return fmt.Errorf("redis stream setup failed: %w", err)
			}
			fmt.Println("Redis event stream created")
		}

		fmt.Println("\nannotate project initialized.")
		fmt.Println("Next steps:")
		fmt.Printf("  1. Edit %s to define your tasks\n", cfg.TasksFile)
		fmt.Println("  2. Run: annotate check")
		fmt.Println("  3. Run: annotate run --data <file>")
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&minimal, "minimal", false, "Only write the config and task files")
}
