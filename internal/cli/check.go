package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/validator"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate tasks, keys and saved annotations before a session",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		reg := registry()

		defs, haveFile, err := loadDefinitions(reg)
		if err != nil {
			return err
		}
		if !haveFile {
			fmt.Printf("No tasks file at %s\n", cfg.Path(cfg.TasksFile))
		}

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()
		saved, err := loadSaved(ctx, backend)
		if err != nil {
			return err
		}

		v := validator.New(reg, cfg.Keys)
		results := v.Validate(defs, saved)
		failed := false
		for _, r := range results {
			fmt.Println(formatValidationResult(r))
			if !r.Passed {
				failed = true
			}
		}
		if saved == nil && !failed {
			fmt.Println(color.HiBlackString("Tier 2 skipped: nothing saved under %q", cfg.Name))
		}
		if failed {
			return fmt.Errorf("check failed")
		}
		return nil
	},
}

func formatValidationResult(r *validator.Result) string {
	if r.Passed {
		return color.GreenString("PASSED") + " " + r.Message
	}
	var b strings.Builder
	b.WriteString(color.RedString("FAILED (code %d): %s", r.Code, r.Message))
	for _, d := range r.Details {
		if !d.Passed && d.Fix != "" {
			fmt.Fprintf(&b, "\n    %s %s", color.YellowString("Fix:"), d.Fix)
		}
	}
	return b.String()
}
