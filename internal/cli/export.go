package cli

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/persist"
	"github.com/sbenjam1n/annotate/internal/source"
	"github.com/sbenjam1n/annotate/internal/store"
)

var exportCmd = &cobra.Command{
	Use:   "export [file]",
	Short: "Write the saved annotations as CSV or JSON",
	Long: `Export the annotations saved under --name. Without a file the table is
written to stdout. --with-data joins the record content of the data file in
front of the task columns.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		withData, _ := cmd.Flags().GetBool("with-data")
		dataFile, _ := cmd.Flags().GetString("data")
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
		tbl := st.Export()

		var out io.Writer = os.Stdout
		if len(args) == 1 {
			f, err := os.Create(args[0])
			if err != nil {
				return fmt.Errorf("create %s: %w", args[0], err)
			}
			defer f.Close()
			out = f
			if format == "" && strings.EqualFold(filepath.Ext(args[0]), ".json") {
				format = "json"
			}
		}

		switch {
		case withData:
			src, err := loadSource(dataFile)
			if err != nil {
				return err
			}
			return writeMerged(out, tbl, src)
		case format == "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(tbl)
		case format == "" || format == "csv":
			return persist.WriteTable(out, tbl)
		default:
			return fmt.Errorf("unknown format %q (want csv or json)", format)
		}
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Save annotations from an exported CSV or JSON file",
	Long: `Import a table written by export (or by hand) and save it under --name.
CSV headers may carry types as name:type; pass --schema with a JSON column list
to restore categories, patterns and dependencies.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schemaFile, _ := cmd.Flags().GetString("schema")
		force, _ := cmd.Flags().GetBool("force")
		ctx := context.Background()

		tbl, err := readImport(args[0], schemaFile)
		if err != nil {
			return err
		}
		// reject tables the store cannot rebuild before anything is written
		st, err := store.FromTable(tbl, registry())
		if err != nil {
			return fmt.Errorf("import %s: %w", args[0], err)
		}

		backend, err := openBackend(ctx)
		if err != nil {
			return err
		}
		defer backend.Close()

		if !force {
			saved, err := loadSaved(ctx, backend)
			if err != nil {
				return err
			}
			if saved != nil {
				return fmt.Errorf("%q already has %d saved annotations (use --force to replace)", cfg.Name, len(saved.Records))
			}
		}
		if err := backend.Save(ctx, cfg.Name, st.Export()); err != nil {
			return fmt.Errorf("save annotations: %w", err)
		}
		fmt.Printf("Imported %d annotations with %d tasks as %q\n", st.Len(), st.Tasks().Len(), cfg.Name)
		return nil
	},
}

func readImport(path, schemaFile string) (*store.Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if strings.EqualFold(filepath.Ext(path), ".json") {
		var tbl store.Table
		if err := json.Unmarshal(data, &tbl); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return &tbl, nil
	}

	var schema []store.Column
	if schemaFile != "" {
		raw, err := os.ReadFile(schemaFile)
		if err != nil {
			return nil, fmt.Errorf("read schema: %w", err)
		}
		if err := json.Unmarshal(raw, &schema); err != nil {
			return nil, fmt.Errorf("parse schema %s: %w", schemaFile, err)
		}
	}
	tbl, err := persist.ReadTable(bytes.NewReader(data), schema)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return tbl, nil
}

// writeMerged writes one CSV row per source record: id, the record's fields,
// then its annotation cells. Unannotated records get empty cells.
func writeMerged(w io.Writer, tbl *store.Table, src *source.Source) error {
	byID := make(map[string]store.Record, len(tbl.Records))
	for _, rec := range tbl.Records {
		byID[rec.ID] = rec
	}

	cw := csv.NewWriter(w)
	header := append([]string{"id"}, src.Columns()...)
	for _, col := range tbl.Columns {
		header = append(header, col.Name)
	}
	header = append(header, "timestamp", "user")
	if err := cw.Write(header); err != nil {
		return err
	}

	for _, id := range src.IDs() {
		fields, _ := src.Content(id)
		line := []string{id}
		values := make(map[string]string, len(fields))
		for _, f := range fields {
			values[f.Label] = f.Value
		}
		for _, c := range src.Columns() {
			line = append(line, values[c])
		}
		rec, ok := byID[id]
		if !ok {
			line = append(line, make([]string, len(tbl.Columns)+2)...)
		} else {
			line = append(line, rec.Cells...)
			ts := ""
			if !rec.Timestamp.IsZero() {
				ts = rec.Timestamp.Format(time.RFC3339Nano)
			}
			line = append(line, ts, rec.User)
		}
		if err := cw.Write(line); err != nil {
			return fmt.Errorf("write record %s: %w", id, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func init() {
	exportCmd.Flags().String("format", "", "Output format: csv or json (default csv, or json for .json files)")
	exportCmd.Flags().Bool("with-data", false, "Join record content from the data file")
	exportCmd.Flags().String("data", "", "Data file used with --with-data")
	importCmd.Flags().String("schema", "", "JSON column list for CSV imports")
	importCmd.Flags().Bool("force", false, "Replace annotations already saved under this name")
}
