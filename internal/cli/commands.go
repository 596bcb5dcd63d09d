package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"

	"github.com/spf13/cobra"
)

// readRequestFile reads a JSON request body from path, or stdin for "-".
func readRequestFile(cmd *cobra.Command, path string) (json.RawMessage, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path) //nolint:gosec // path is user-supplied by design
	}
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("request %s is not valid JSON", path)
	}
	return data, nil
}

// objectResponse holds whichever variant the objects endpoint returned.
type objectResponse struct {
	resultSet
	SQL    string `json:"sql"`
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

func newQueryCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "query <request.json|->",
		Short: "Run a dynamic object query",
		Long:  "Send an object request (model, selection, filters, ...) and print the result, the SQL of a dry run, or the export ticket.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readRequestFile(cmd, args[0])
			if err != nil {
				return err
			}
			var resp objectResponse
			if err := client.Do(cmd.Context(), http.MethodPost, "/v1/objects", body, &resp); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case resp.SQL != "":
				if getOutputFormat(cmd) == "json" {
					return printJSON(out, map[string]string{"sql": resp.SQL})
				}
				_, err := fmt.Fprintln(out, resp.SQL)
				return err
			case resp.JobID != "":
				if getOutputFormat(cmd) == "json" {
					return printJSON(out, map[string]string{"job_id": resp.JobID, "status": resp.Status})
				}
				_, err := fmt.Fprintf(out, "export %s %s\n", resp.JobID, resp.Status)
				return err
			default:
				return printResult(cmd, &resp.resultSet)
			}
		},
	}
}

func newCountCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "count <request.json|->",
		Short: "Count the rows an object request would return",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			body, err := readRequestFile(cmd, args[0])
			if err != nil {
				return err
			}
			var resp struct {
				Success int64 `json:"success"`
			}
			if err := client.Do(cmd.Context(), http.MethodPost, "/v1/objects/count", body, &resp); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), resp.Success)
			return err
		},
	}
}

func newSQLCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "sql <statement>",
		Short: "Run a raw SQL statement on the tenant database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rs resultSet
			if err := client.Do(cmd.Context(), http.MethodPost, "/v1/sql", map[string]string{"sql": args[0]}, &rs); err != nil {
				return err
			}
			return printResult(cmd, &rs)
		},
	}
}

func newKillCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "kill <connection-id>",
		Short: "Kill a running query by its tenant connection id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp map[string]string
			path := "/v1/queries/" + url.PathEscape(args[0]) + "/kill"
			if err := client.Do(cmd.Context(), http.MethodPost, path, nil, &resp); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), resp["done"])
			return err
		},
	}
}

func newActiveCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "active",
		Short: "Show the connection id of your running query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rec struct {
				ConnectionID string `json:"connection_id"`
				Tenant       string `json:"tenant"`
				StartedAt    string `json:"started_at"`
			}
			if err := client.Do(cmd.Context(), http.MethodGet, "/v1/queries/active", nil, &rec); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), rec)
			}
			return printTable(cmd.OutOrStdout(),
				[]string{"CONNECTION_ID", "TENANT", "STARTED_AT"},
				[][]string{{rec.ConnectionID, rec.Tenant, rec.StartedAt}})
		},
	}
}

func newFieldsCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "fields <model>",
		Short: "List the queryable fields of a model",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Fields []struct {
					Name    string `json:"name"`
					Type    string `json:"type"`
					Options []struct {
						Value   string `json:"value"`
						Display string `json:"display"`
					} `json:"options,omitempty"`
				} `json:"fields"`
			}
			if err := client.Do(cmd.Context(), http.MethodGet, "/v1/models/"+url.PathEscape(args[0])+"/fields", nil, &resp); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			rows := make([][]string, 0, len(resp.Fields))
			for _, f := range resp.Fields {
				opts := ""
				for i, o := range f.Options {
					if i > 0 {
						opts += ", "
					}
					opts += o.Value
				}
				rows = append(rows, []string{f.Name, f.Type, opts})
			}
			return printTable(cmd.OutOrStdout(), []string{"NAME", "TYPE", "OPTIONS"}, rows)
		},
	}
}

func newExportStatusCmd(client *Client) *cobra.Command {
	return &cobra.Command{
		Use:   "export-status <job-id>",
		Short: "Show the state of a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var job map[string]any
			if err := client.Do(cmd.Context(), http.MethodGet, "/v1/exports/"+url.PathEscape(args[0]), nil, &job); err != nil {
				return err
			}
			if getOutputFormat(cmd) == "json" {
				return printJSON(cmd.OutOrStdout(), job)
			}
			keys := []string{"id", "model", "status", "link", "error"}
			row := make([]string, len(keys))
			for i, k := range keys {
				row[i] = formatCell(job[k])
			}
			return printTable(cmd.OutOrStdout(), []string{"ID", "MODEL", "STATUS", "LINK", "ERROR"}, [][]string{row})
		},
	}
}

func newCatalogCmd(client *Client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the server's schema catalog",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reload",
		Short: "Reload the schema catalog file on the server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := client.Do(cmd.Context(), http.MethodPost, "/v1/catalog/reload", nil, nil); err != nil {
				return err
			}
			_, err := fmt.Fprintln(cmd.OutOrStdout(), "catalog reloaded")
			return err
		},
	})
	return cmd
}
