// Package cli implements the dataframehub command line: the HTTP server and
// local commands that query and manage datasets without it.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"dataframehub/internal/config"
	"dataframehub/internal/domain"
)

var (
	version = "dev"
	commit  = "none"
)

// skipConfigAnnotation marks commands that run without loading configuration.
const skipConfigAnnotation = "skip-config"

// app carries the state resolved by the root command before a subcommand runs.
type app struct {
	cfg    *config.Config
	logger *slog.Logger
}

// Execute runs the CLI.
func Execute() int {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		output, _ := rootCmd.PersistentFlags().GetString("output")
		if output == "json" {
			_ = printJSON(os.Stdout, errorObject(err))
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		return 1
	}
	return 0
}

func newRootCmd() *cobra.Command {
	var (
		output  string
		envFile string
	)
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "dataframehub",
		Short:         "Query file-backed datasets",
		Long:          "Serve and query datasets described by <org>/<dataset>/dataset.yaml descriptors.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := validateOutputFormat(output); err != nil {
				return err
			}
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			if err := config.LoadDotEnv(envFile); err != nil {
				return fmt.Errorf("load %s: %w", envFile, err)
			}
			cfg, err := config.LoadFromEnv()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			a.cfg = cfg
			a.logger = newLogger(cmd.ErrOrStderr(), cfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&output, "output", "o", "", "Output format (table, json); defaults to table on a terminal")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Environment file loaded before configuration")

	rootCmd.AddCommand(newServeCmd(a))
	rootCmd.AddCommand(newQueryCmd(a))
	rootCmd.AddCommand(newDatasetCmd(a))
	rootCmd.AddCommand(newHistoryCmd(a))
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newCompletionCmd())

	return rootCmd
}

// newLogger builds the process logger: JSON in production, text otherwise.
func newLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// errorObject describes err for JSON output.
func errorObject(err error) map[string]interface{} {
	obj := map[string]interface{}{"error": err.Error()}
	if kind := errorKind(err); kind != "" {
		obj["kind"] = kind
	}
	return obj
}

func errorKind(err error) string {
	var (
		notFound    *domain.NotFoundError
		configErr   *domain.ConfigurationError
		unsupported *domain.UnsupportedBackendError
		mismatch    *domain.SchemaMismatchError
		compilation *domain.CompilationError
		value       *domain.UnsupportedValueError
		denied      *domain.AccessDeniedError
		validation  *domain.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return "not_found"
	case errors.As(err, &configErr):
		return "configuration"
	case errors.As(err, &unsupported):
		return "unsupported_backend"
	case errors.As(err, &mismatch):
		return "schema_mismatch"
	case errors.As(err, &compilation):
		return "compilation"
	case errors.As(err, &value):
		return "unsupported_value"
	case errors.As(err, &denied):
		return "access_denied"
	case errors.As(err, &validation):
		return "validation"
	}
	return ""
}

func newCompletionCmd() *cobra.Command {
	return &cobra.Command{
		Use:         "completion [bash|zsh|fish|powershell]",
		Short:       "Generate shell completion scripts",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{skipConfigAnnotation: "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			default:
				return fmt.Errorf("unsupported shell: %s", args[0])
			}
		},
	}
}
