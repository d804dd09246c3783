package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"dataframehub/internal/descriptor"
	"dataframehub/internal/domain"
	"dataframehub/internal/engine"
)

func newDatasetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dataset",
		Short: "Manage dataset descriptors",
	}
	cmd.AddCommand(newDatasetInitCmd(a))
	cmd.AddCommand(newDatasetImportCmd(a))
	cmd.AddCommand(newDatasetShowCmd(a))
	return cmd
}

func (a *app) fileStore() *descriptor.FileStore {
	return descriptor.NewFileStore(a.cfg.DatasetsDir, a.cfg.DatacardsDir)
}

func newDatasetInitCmd(a *app) *cobra.Command {
	var (
		d       domain.DatasetDescriptor
		backend string
		format  string
		columns []string
		force   bool
	)
	cmd := &cobra.Command{
		Use:   "init ORGANIZATION DATASET",
		Short: "Write a dataset descriptor",
		Example: `  dataframehub dataset init acme users --file data/users.parquet --table users
  dataframehub dataset init acme orders --backend sqlite --file shop.db --table orders --column id:INTEGER --column total`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d.Organization, d.Dataset = args[0], args[1]
			d.BackendType = domain.ParseBackendType(backend)
			d.Format = domain.FileFormat(strings.ToLower(format))
			schema, err := parseColumns(columns)
			if err != nil {
				return err
			}
			d.Schema = schema

			path, err := a.fileStore().Save(cmd.Context(), &d, force)
			if err != nil {
				return err
			}
			if outputFormat(cmd) == outputJSON {
				return printJSON(cmd.OutOrStdout(), map[string]string{"dataset": d.Key(), "path": path})
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&backend, "backend", string(domain.BackendDuckDB), "Backend type (duckdb, sqlite)")
	flags.StringVar(&d.PhysicalFile, "file", "", "Physical data file (local path or cloud URI)")
	flags.StringVar(&d.LogicalTable, "table", "", "Logical table name; defaults to the dataset name")
	flags.StringVar(&format, "format", "", "File format (parquet, csv, json); inferred from --file when empty")
	flags.StringVar(&d.Location, "location", "", "Backend database location")
	flags.StringVar(&d.Name, "name", "", "Display name")
	flags.StringVar(&d.Description, "description", "", "Dataset description")
	flags.StringArrayVar(&columns, "column", nil, "Schema column as NAME or NAME:TYPE (repeatable)")
	flags.BoolVar(&force, "force", false, "Overwrite an existing descriptor")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func parseColumns(values []string) ([]domain.ColumnSpec, error) {
	var out []domain.ColumnSpec
	for _, v := range values {
		name, typ, _ := strings.Cut(v, ":")
		name = strings.TrimSpace(name)
		if name == "" {
			return nil, domain.ErrValidation("invalid --column %q: name is required", v)
		}
		out = append(out, domain.ColumnSpec{Name: name, Type: strings.TrimSpace(typ)})
	}
	return out, nil
}

type importResult struct {
	Dataset string `json:"dataset"`
	Rows    int64  `json:"rows"`
	File    string `json:"file"`
}

func newDatasetImportCmd(a *app) *cobra.Command {
	var (
		concurrency int
		force       bool
	)
	cmd := &cobra.Command{
		Use:   "import ORGANIZATION SOURCE...",
		Short: "Convert CSV, JSON or parquet files into parquet datasets",
		Long: `Convert each SOURCE to <datasets>/<org>/<name>/<name>.parquet and write a
duckdb descriptor for it. The dataset name is the source file name without
its extension.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			results, err := a.importDatasets(cmd.Context(), args[0], args[1:], concurrency, force)
			if err != nil {
				return err
			}
			if outputFormat(cmd) == outputJSON {
				return printJSON(cmd.OutOrStdout(), results)
			}
			rows := make([][]string, 0, len(results))
			for _, r := range results {
				rows = append(rows, []string{r.Dataset, strconv.FormatInt(r.Rows, 10), r.File})
			}
			return printTable(cmd.OutOrStdout(), []string{"dataset", "rows", "file"}, rows)
		},
	}
	cmd.Flags().IntVar(&concurrency, "concurrency", 4, "Number of files converted in parallel")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing datasets")
	return cmd
}

func (a *app) importDatasets(ctx context.Context, organization string, sources []string, concurrency int, force bool) ([]importResult, error) {
	if err := descriptor.ValidateSegment("organization", organization); err != nil {
		return nil, err
	}
	store := a.fileStore()
	root, err := filepath.Abs(a.cfg.DatasetsDir)
	if err != nil {
		return nil, fmt.Errorf("resolve datasets dir: %w", err)
	}

	names := make([]string, len(sources))
	seen := make(map[string]string, len(sources))
	for i, src := range sources {
		name := strings.TrimSuffix(filepath.Base(src), filepath.Ext(src))
		if err := descriptor.ValidateSegment("dataset", name); err != nil {
			return nil, err
		}
		if prev, dup := seen[name]; dup {
			return nil, domain.ErrValidation("%s and %s both import as dataset %q", prev, src, name)
		}
		seen[name] = src
		if !force {
			if _, err := os.Stat(store.DescriptorPath(organization, name)); err == nil {
				return nil, domain.ErrValidation("dataset %q already exists (use --force to replace it)", domain.DatasetKey(organization, name))
			}
		}
		names[i] = name
	}
	results := make([]importResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for i, src := range sources {
		g.Go(func() error {
			name := names[i]
			dest := filepath.Join(root, organization, name, name+".parquet")
			if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
				return fmt.Errorf("create dataset directory: %w", err)
			}
			n, err := engine.ConvertToParquet(gctx, src, domain.InferFileFormat(src), dest)
			if err != nil {
				return err
			}
			d := &domain.DatasetDescriptor{
				Organization: organization,
				Dataset:      name,
				Name:         name,
				BackendType:  domain.BackendDuckDB,
				PhysicalFile: dest,
				Format:       domain.FormatParquet,
				LogicalTable: name,
			}
			if _, err := store.Save(gctx, d, true); err != nil {
				return err
			}
			a.logger.Info("imported dataset", "dataset", d.Key(), "rows", n, "source", src)
			results[i] = importResult{Dataset: d.Key(), Rows: n, File: dest}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func newDatasetShowCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ORGANIZATION DATASET",
		Short: "Print a resolved dataset descriptor",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := a.fileStore().Resolve(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if outputFormat(cmd) == outputJSON {
				return printJSON(cmd.OutOrStdout(), d)
			}
			rows := [][]string{
				{"dataset", d.Key()},
				{"name", d.Name},
				{"backend", string(d.BackendType)},
				{"file", d.PhysicalFile},
				{"format", string(d.EffectiveFormat())},
				{"table", d.RelationName()},
				{"location", d.Location},
			}
			for _, c := range d.Schema {
				rows = append(rows, []string{"column", strings.TrimSpace(c.Name + " " + c.Type)})
			}
			return printTable(cmd.OutOrStdout(), []string{"field", "value"}, rows)
		},
	}
}
