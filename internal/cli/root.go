package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlcompile/internal/config"
	"github.com/roach88/sqlcompile/internal/querysql"
	"github.com/roach88/sqlcompile/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Dialect string // "mysql" | "sqlite"
	Driver  string // database/sql driver; derived from Dialect when empty
	DSN     string // data source for exec, introspect and catalog fills

	// ConfigFile is the config file that was read, "" when none.
	ConfigFile string
}

// NewRootCommand creates the root command for the sqlcompile CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "sqlcompile",
		Short: "sqlcompile - query AST to parameterized SQL",
		Long: `Compile structured query requests to dialect-correct SQL with
positional parameters.

Settings resolve from flags, SQLCOMPILE_* environment variables, .env files
and sqlcompile.yaml, in that order.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Options{Flags: cmd.Flags()})
			if err != nil {
				return err
			}
			opts.apply(cfg)
			configureLogging(cmd, opts.Verbose)
			if cfg.File != "" {
				slog.Debug("loaded config", "file", cfg.File)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Dialect, "dialect", "mysql", "SQL dialect (mysql|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "database/sql driver (defaults from --dialect)")
	cmd.PersistentFlags().StringVar(&opts.DSN, "dsn", "", "data source name")

	// Add subcommands
	cmd.AddCommand(NewCompileCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewIntrospectCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// apply copies resolved configuration into the options.
func (o *RootOptions) apply(cfg *config.Config) {
	o.Verbose = cfg.Verbose
	o.Format = cfg.Format
	o.Dialect = cfg.Dialect
	o.Driver = cfg.Driver
	o.DSN = cfg.DSN
	o.ConfigFile = cfg.File
}

// configureLogging routes slog to stderr, at Debug when verbose.
func configureLogging(cmd *cobra.Command, verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}

// compiler returns a compiler for the configured dialect.
func (o *RootOptions) compiler() (*querysql.SQLCompiler, error) {
	d, err := querysql.DialectByName(o.Dialect)
	if err != nil {
		return nil, err
	}
	return querysql.NewSQLCompiler(d), nil
}

// driver returns the configured driver, or the one that serves the dialect.
func (o *RootOptions) driver() string {
	if o.Driver != "" {
		return o.Driver
	}
	return config.DriverFor(o.Dialect)
}

// openStore connects to the configured data source.
func (o *RootOptions) openStore(ctx context.Context) (*store.Store, error) {
	if o.DSN == "" {
		return nil, fmt.Errorf("no data source configured (set --dsn, SQLCOMPILE_DSN or DATABASE_URL)")
	}
	return store.Open(ctx, o.driver(), o.DSN)
}

// newFormatter builds the output formatter for a command.
func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
}
