package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var tasksCmd = &cobra.Command{
	Use:   "tasks",
	Short: "List the tasks in order",
	RunE: func(cmd *cobra.Command, args []string) error {
		verbose, _ := cmd.Flags().GetBool("instructions")
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
		set := st.Tasks()
		if set.Empty() {
			fmt.Println("No tasks defined. Sessions will only browse records.")
			return nil
		}

		for _, t := range set.Tasks() {
			fmt.Printf("%2d/%d  %-20s %-9s", t.Pos+1, t.Of, t.Name, t.Kind)
			if t.Nullable {
				fmt.Print(" nullable")
			}
			if n := len(t.Dependencies); n > 0 {
				fmt.Printf(" (%d dependencies)", n)
			}
			fmt.Println()
			if verbose {
				for _, line := range splitLines(t.Instruction()) {
					fmt.Printf("       %s\n", line)
				}
				for _, d := range t.Dependencies {
					fmt.Printf("       if %s then %s\n", d.Condition, d.Raw)
				}
			}
		}
		return nil
	},
}

func init() {
	tasksCmd.Flags().BoolP("instructions", "i", false, "Show instructions and dependencies")
}

func splitLines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}
