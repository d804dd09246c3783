package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"dataframehub/internal/domain"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func validateOutputFormat(output string) error {
	if output != "" && output != outputTable && output != outputJSON {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// outputFormat returns the --output flag, or table when stdout is a
// terminal and json otherwise.
func outputFormat(cmd *cobra.Command) string {
	if v, _ := cmd.Root().PersistentFlags().GetString("output"); v != "" {
		return v
	}
	if f, ok := cmd.OutOrStdout().(*os.File); ok && term.IsTerminal(int(f.Fd())) { //nolint:gosec // fd fits in int
		return outputTable
	}
	return outputJSON
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable writes an aligned table with an upper-cased header row.
func printTable(w io.Writer, header []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	upper := make([]string, len(header))
	for i, h := range header {
		upper[i] = strings.ToUpper(h)
	}
	if _, err := fmt.Fprintln(tw, strings.Join(upper, "\t")); err != nil {
		return err
	}
	for _, row := range rows {
		if _, err := fmt.Fprintln(tw, strings.Join(row, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

// printRows writes query results in the requested format. JSON keeps the
// result column order of every row.
func printRows(w io.Writer, format string, columns []string, rows []domain.Row) error {
	if format == outputJSON {
		if rows == nil {
			rows = []domain.Row{}
		}
		return printJSON(w, rows)
	}
	cells := make([][]string, 0, len(rows))
	for _, r := range rows {
		line := make([]string, len(r.Values))
		for i, v := range r.Values {
			line[i] = formatCell(v)
		}
		cells = append(cells, line)
	}
	return printTable(w, columns, cells)
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case string:
		return v
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprint(v)
	}
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
