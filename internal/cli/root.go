// Package cli implements the dynquery command-line interface: a client for
// the query service API plus offline compilation and an embedded server.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			errObj := map[string]any{"error": err.Error()}
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				errObj["http_status"] = apiErr.HTTPStatus
			}
			_ = printJSON(os.Stdout, errObj)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		host    string
		token   string
		tenant  string
		output  string
		profile string
	)

	client := NewClient(host, token)

	rootCmd := &cobra.Command{
		Use:           "dynquery",
		Short:         "Schema-driven query service CLI",
		Long:          "Command-line interface for compiling and running dynamic queries against tenant databases.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := LoadUserConfig()
			if err != nil {
				cfg = &UserConfig{CurrentProfile: "default", Profiles: map[string]Profile{}}
			}
			p := cfg.ActiveProfile(profile)

			// Precedence: flag > env > profile > default
			resolve := func(flag, env, fromProfile string, target *string) {
				if cmd.Flags().Changed(flag) {
					return
				}
				if v := os.Getenv(env); v != "" {
					*target = v
				} else if fromProfile != "" {
					*target = fromProfile
				}
			}
			resolve("host", "DYNQUERY_HOST", p.Host, &host)
			resolve("token", "DYNQUERY_TOKEN", p.Token, &token)
			resolve("tenant", "DYNQUERY_TENANT", p.Tenant, &tenant)
			resolve("output", "DYNQUERY_OUTPUT", p.Output, &output)
			if output == "" {
				output = defaultOutput()
				_ = cmd.Root().PersistentFlags().Set("output", output)
			}
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if err := validateHostURL(host); err != nil {
				return err
			}

			client.BaseURL = host
			client.Token = token
			client.Tenant = tenant
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&host, "host", "http://localhost:8080", "API host URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", "", "JWT token for authentication")
	rootCmd.PersistentFlags().StringVar(&tenant, "tenant", "", "Tenant database to query")
	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "Config profile to use")

	rootCmd.AddCommand(newQueryCmd(client))
	rootCmd.AddCommand(newCountCmd(client))
	rootCmd.AddCommand(newSQLCmd(client))
	rootCmd.AddCommand(newKillCmd(client))
	rootCmd.AddCommand(newActiveCmd(client))
	rootCmd.AddCommand(newFieldsCmd(client))
	rootCmd.AddCommand(newExportStatusCmd(client))
	rootCmd.AddCommand(newCatalogCmd(client))

	rootCmd.AddCommand(newCompileCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the CLI version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "dynquery %s (%s)\n", version, commit)
			return err
		},
	}
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(os.Stdout)
			case "zsh":
				return cmd.Root().GenZshCompletion(os.Stdout)
			case "fish":
				return cmd.Root().GenFishCompletion(os.Stdout, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(os.Stdout)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
