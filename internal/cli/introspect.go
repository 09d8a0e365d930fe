package cli

import (
	"fmt"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/roach88/sqlcompile/internal/store"
)

// NewIntrospectCommand creates the introspect command.
func NewIntrospectCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "introspect <table>...",
		Short: "Print the column catalog of database tables",
		Long: `Read the column catalog that compile and exec use to fill in
missing column lists: name, data type, nullability, primary key,
auto-increment and default, in ordinal order.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntrospect(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runIntrospect(opts *RootOptions, tables []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd)
	ctx := cmd.Context()

	st, err := opts.openStore(ctx)
	if err != nil {
		return outputExecError(formatter, ErrCodeConnect, err.Error())
	}
	defer closeStore(st)

	catalogs := make([]store.Catalog, 0, len(tables))
	for _, table := range tables {
		formatter.VerboseLog("Introspecting %s", table)
		c, err := st.Introspect(ctx, table)
		if err != nil {
			return outputExecError(formatter, ErrCodeIntrospect, err.Error())
		}
		catalogs = append(catalogs, c)
	}

	if formatter.Format == "json" {
		return formatter.Success(catalogs)
	}

	for _, c := range catalogs {
		fmt.Fprintf(formatter.Writer, "%s (%d columns)\n", c.Table, len(c.Columns))
		data := pterm.TableData{{"column", "type", "nullable", "key", "auto", "default"}}
		for _, col := range c.Columns {
			key := ""
			if col.PrimaryKey {
				key = "PRI"
			}
			def := ""
			if col.Default != nil {
				def = *col.Default
			}
			data = append(data, []string{
				col.Name,
				col.DataType,
				strconv.FormatBool(col.Nullable),
				key,
				strconv.FormatBool(col.AutoIncrement),
				def,
			})
		}
		if err := renderTable(formatter.Writer, data); err != nil {
			return err
		}
		fmt.Fprintln(formatter.Writer)
	}
	return nil
}
