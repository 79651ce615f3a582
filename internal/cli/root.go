package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// ConfigFile is an explicit config file; the remaining flags override
	// the matching config keys when set.
	ConfigFile  string
	BaseURL     string
	Journal     string
	Catalog     string
	LogLevel    string
	MetricsAddr string
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the flame CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "flame",
		Short: "flame - chemical catalog client",
		Long: `A command line client for the FLAME chemical catalog.

Every command dispatches intents through the same synchronization layer the
interactive client uses: listings, details, submissions and collections are
fetched from the backend, reduced into session state and rendered.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	pf.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	pf.StringVar(&opts.ConfigFile, "config", "", "config file (default: flame.yaml in . or $HOME/.config/flame)")
	pf.StringVar(&opts.BaseURL, "base-url", "", "backend base URL")
	pf.StringVar(&opts.Journal, "journal", "", "SQLite intent journal path")
	pf.StringVar(&opts.Catalog, "catalog", "", "route catalog file (default: embedded)")
	pf.StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error)")
	pf.StringVar(&opts.MetricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address")

	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewRegisterCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewItemsCommand(opts, "species"))
	cmd.AddCommand(NewItemsCommand(opts, "reactions"))
	cmd.AddCommand(NewSubmitCommand(opts))
	cmd.AddCommand(NewStageCommand(opts))
	cmd.AddCommand(NewGeometryCommand(opts))
	cmd.AddCommand(NewCollectionCommand(opts))
	cmd.AddCommand(NewTraceCommand(opts))
	cmd.AddCommand(NewShellCommand(opts))
	cmd.AddCommand(NewDevserverCommand(opts))
	cmd.AddCommand(NewCatalogCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
