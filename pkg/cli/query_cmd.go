package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"dataframehub/internal/domain"
)

type queryFlags struct {
	file        string
	description string
	table       string
	selects     []string
	measures    []string
	dimensions  []string
	where       string
	orderBy     []string
	limit       int64
	showSQL     bool
}

func newQueryCmd(a *app) *cobra.Command {
	var f queryFlags
	cmd := &cobra.Command{
		Use:   "query ORGANIZATION DATASET",
		Short: "Run a query model against a dataset",
		Long: `Run a query model against a dataset without starting the server.

The model is read from --file (use - for stdin) and any model flags are
applied on top of it.`,
		Example: `  dataframehub query acme users --select name --select age --order-by "age DESC" --limit 10
  dataframehub query acme users --measure "age * 12 AS months" --dimension name
  echo '{"where":"age > 30"}' | dataframehub query acme users --file -`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := f.model(cmd)
			if err != nil {
				return err
			}

			st, err := a.openStack(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = st.Close() }()

			exec, err := st.service.Query(cmd.Context(), args[0], args[1], q)
			if err != nil {
				return err
			}
			if f.showSQL {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), exec.SQL)
			}
			return printRows(cmd.OutOrStdout(), outputFormat(cmd), exec.Columns, exec.Rows)
		},
	}

	f.register(cmd.Flags())
	return cmd
}

func (f *queryFlags) register(fs *pflag.FlagSet) {
	fs.StringVarP(&f.file, "file", "f", "", "JSON query model file, - for stdin")
	fs.StringVar(&f.description, "description", "", "Free-text description recorded in the query history")
	fs.StringVar(&f.table, "table", "", "Relation name to query instead of the descriptor's table")
	fs.StringArrayVar(&f.selects, "select", nil, "Select entry (repeatable); overrides measures and dimensions")
	fs.StringArrayVar(&f.measures, "measure", nil, "Measure expression (repeatable)")
	fs.StringArrayVar(&f.dimensions, "dimension", nil, "Dimension column (repeatable); selected after the measures")
	fs.StringVar(&f.where, "where", "", "Filter predicate")
	fs.StringArrayVar(&f.orderBy, "order-by", nil, "Ordering term such as \"age DESC\" (repeatable)")
	fs.Int64Var(&f.limit, "limit", 0, "Maximum number of rows")
	fs.BoolVar(&f.showSQL, "show-sql", false, "Print the compiled SQL to stderr")
}

// model builds the query model from --file and the model flags. Flags
// that were set replace the corresponding file fields.
func (f *queryFlags) model(cmd *cobra.Command) (*domain.QueryModel, error) {
	q := &domain.QueryModel{}
	if f.file != "" {
		var (
			r   io.Reader = cmd.InOrStdin()
			err error
		)
		if f.file != "-" {
			file, openErr := os.Open(f.file) //nolint:gosec // path is caller-controlled
			if openErr != nil {
				return nil, fmt.Errorf("open query file: %w", openErr)
			}
			defer func() { _ = file.Close() }()
			r = file
		}
		if q, err = domain.DecodeQueryModel(r); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("description") {
		q.Description = f.description
	}
	if flags.Changed("table") {
		q.Table = f.table
	}
	if flags.Changed("select") {
		q.Select = f.selects
	}
	if flags.Changed("measure") {
		q.Measures = f.measures
	}
	if flags.Changed("dimension") {
		q.Dimensions = f.dimensions
	}
	if flags.Changed("where") {
		q.Where = f.where
	}
	if flags.Changed("order-by") {
		q.OrderBy = f.orderBy
	}
	if flags.Changed("limit") {
		limit := f.limit
		q.Limit = &limit
	}
	return q, nil
}
