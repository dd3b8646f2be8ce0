package cli

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/display"
	"github.com/sbenjam1n/annotate/internal/engine"
	"github.com/sbenjam1n/annotate/internal/queue"
)

var runCmd = &cobra.Command{
	Use:   "run [ids...]",
	Short: "Annotate records of the data file",
	Long: `Run an annotation session. Records that already have saved annotations
are skipped unless --redo is given. Pass ids to annotate only those records.
Answers are saved when the session ends, also after exit.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dataFile, _ := cmd.Flags().GetString("data")
		redo, _ := cmd.Flags().GetBool("redo")
		user, _ := cmd.Flags().GetString("user")
		if user == "" {
			user = cfg.User
		}
		if idCol, _ := cmd.Flags().GetString("id-column"); idCol != "" {
			cfg.IDColumn = idCol
		}
		if cols, _ := cmd.Flags().GetStringSlice("item-columns"); len(cols) > 0 {
			cfg.ItemColumns = cols
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		src, err := loadSource(dataFile)
		if err != nil {
			return err
		}

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		st, err := openStore(ctx, backend)
		if err != nil {
			return err
		}

		ids := src.IDs()
		if len(args) > 0 {
			if ids, err = src.Subset(args); err != nil {
				return err
			}
		}
		ids = engine.Pending(ids, st, redo)
		if len(ids) == 0 {
			fmt.Println("Nothing to annotate. Use --redo to revisit annotated records.")
			return nil
		}

		presenter, err := display.New(src, os.Stdin, os.Stdout, display.Options{
			Name:          cfg.Name,
			Width:         cfg.Display.Width,
			ClearScreen:   cfg.Display.ClearScreen,
			Phrases:       cfg.Display.Phrases,
			IgnoreCase:    cfg.Display.IgnoreCase,
			TruncateWords: cfg.Display.TruncateWords,
		})
		if err != nil {
			return err
		}

		go presenter.Preload(ctx, ids)

		opts := engine.Options{Keys: cfg.Keys, User: user}
		if cfg.Events {
			rdb, err := connectRedis()
			if err != nil {
				return err
			}
			defer rdb.Close()
			pub := queue.NewPublisher(ctx, queue.New(rdb), cfg.Name, user)
			opts.Observers = append(opts.Observers, pub)
			log.Printf("publishing events for session %s", pub.Session())
		}

		eng, err := engine.New(st, presenter, opts)
		if err != nil {
			return err
		}

		runErr := eng.Run(ctx, ids)
		// save whatever was resolved, even when the session failed
		if err := backend.Save(context.Background(), cfg.Name, st.Export()); err != nil {
			return fmt.Errorf("save annotations: %w", err)
		}

		s := eng.Stats()
		fmt.Println()
		color.New(color.Bold).Printf("Session %s\n", cfg.Name)
		fmt.Printf("  resolved:    %s\n", color.GreenString("%d", s.Resolved))
		fmt.Printf("  answered:    %d\n", s.Committed)
		fmt.Printf("  auto-filled: %d\n", s.AutoFilled)
		if s.Dropped > 0 {
			fmt.Printf("  dropped:     %s\n", color.YellowString("%d", s.Dropped))
		}
		if s.Restored > 0 {
			fmt.Printf("  restored:    %s\n", color.YellowString("%d", s.Restored))
		}
		fmt.Printf("  stored rows: %d\n", st.Len())
		return runErr
	},
}

func init() {
	runCmd.Flags().String("data", "", "Data file (.csv, .json, .yaml)")
	runCmd.Flags().String("id-column", "", "Column holding record ids")
	runCmd.Flags().StringSlice("item-columns", nil, "Columns to show per record (default: all)")
	runCmd.Flags().String("user", "", "User stamped on annotated rows")
	runCmd.Flags().Bool("redo", false, "Revisit records that already have annotations")
}
