package cli

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show how many records are annotated",
	RunE: func(cmd *cobra.Command, args []string) error {
		dataFile, _ := cmd.Flags().GetString("data")
		list, _ := cmd.Flags().GetBool("list")
		ctx := context.Background()

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		st, err := openStore(ctx, backend)
		if err != nil {
			return err
		}

		bold := color.New(color.Bold)
		bold.Printf("%s", cfg.Name)
		fmt.Printf("  (%s backend, project %s)\n", cfg.Backend, projectRoot())
		fmt.Printf("  tasks:     %d\n", st.Tasks().Len())
		fmt.Printf("  annotated: %s\n", color.GreenString("%d", st.Len()))

		saved, err := backend.Annotators(ctx)
		if err != nil {
			return err
		}
		if len(saved) > 0 {
			fmt.Printf("  saved:     %s\n", formatAnnotators(saved, cfg.Name))
		}

		if dataFile == "" && cfg.DataFile == "" {
			return nil
		}
		src, err := loadSource(dataFile)
		if err != nil {
			return err
		}
		pending := st.Unannotated(src.IDs())
		pct := 0.0
		if src.Len() > 0 {
			pct = 100 * float64(src.Len()-len(pending)) / float64(src.Len())
		}
		fmt.Printf("  remaining: %s of %d (%.1f%% done)\n", color.YellowString("%d", len(pending)), src.Len(), pct)
		if list && len(pending) > 0 {
			fmt.Printf("  unannotated: %s\n", strings.Join(pending, ", "))
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("data", "", "Data file to compare against")
	statusCmd.Flags().Bool("list", false, "List unannotated ids")
}

// formatAnnotators renders "name (n)" pairs sorted by name, marking current.
func formatAnnotators(saved map[string]int, current string) string {
	names := make([]string, 0, len(saved))
	for name := range saved {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s (%d)", name, saved[name])
		if name == current {
			parts[i] = "*" + parts[i]
		}
	}
	return strings.Join(parts, ", ")
}
