package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// resultSet mirrors the JSON form of a query result.
type resultSet struct {
	Headers []string         `json:"headers"`
	Rows    []map[string]any `json:"rows"`
}

// getOutputFormat returns the effective output format from the root command's persistent flags.
func getOutputFormat(cmd *cobra.Command) string {
	v, _ := cmd.Root().PersistentFlags().GetString("output")
	return v
}

func validateOutputFormat(output string) error {
	if output != "" && output != "table" && output != "json" {
		return fmt.Errorf("unsupported output format %q: use 'table' or 'json'", output)
	}
	return nil
}

// defaultOutput is table on a terminal and json otherwise.
func defaultOutput() string {
	if term.IsTerminal(int(os.Stdout.Fd())) { //nolint:gosec // fd fits in int
		return "table"
	}
	return "json"
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printTable(w io.Writer, headers []string, rows [][]string) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, h := range headers {
		if i > 0 {
			fmt.Fprint(tw, "\t")
		}
		fmt.Fprint(tw, h)
	}
	fmt.Fprintln(tw)
	for _, row := range rows {
		for i, cell := range row {
			if i > 0 {
				fmt.Fprint(tw, "\t")
			}
			fmt.Fprint(tw, cell)
		}
		fmt.Fprintln(tw)
	}
	return tw.Flush()
}

func printResult(cmd *cobra.Command, rs *resultSet) error {
	w := cmd.OutOrStdout()
	if getOutputFormat(cmd) == "json" {
		return printJSON(w, rs)
	}
	rows := make([][]string, 0, len(rs.Rows))
	for _, r := range rs.Rows {
		row := make([]string, len(rs.Headers))
		for i, h := range rs.Headers {
			row[i] = formatCell(r[h])
		}
		rows = append(rows, row)
	}
	return printTable(w, rs.Headers, rows)
}

// formatCell renders a JSON value for a table cell. Nested values are shown
// as JSON.
func formatCell(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]any, []any:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}
