package commands

import (
	"context"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/remote"
)

// TablesCmd summarises the lineage tables of the configured database.
var TablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Overview of the lineage tables",
	Long: `List the sdt_, sys_ and ddt_ndarray tables with their row counts,
whether they carry <table>_id / <table>_name columns for name lookups, and a
few example names.

Examples:
  lineage tables
  lineage tables --samples 0 --json
  lineage tables --index      # also build the provenance index and print its stats`,
	Args: cobra.NoArgs,
	RunE: runTables,
}

var (
	tablesFormat  string
	tablesSamples int
	tablesIndex   bool
)

func init() {
	TablesCmd.Flags().StringVar(&tablesFormat, "format", "text", "Output format: text, json, yaml")
	TablesCmd.Flags().IntVar(&tablesSamples, "samples", 3, "Example names to show per table")
	TablesCmd.Flags().BoolVar(&tablesIndex, "index", false, "Build the provenance index and include its statistics")
}

// TableOverview is one row of the tables report.
type TableOverview struct {
	Name     string   `json:"name"`
	Rows     int64    `json:"rows"`
	Nameable bool     `json:"nameable"`
	Examples []string `json:"examples,omitempty"`
}

// TablesReport is the full tables output.
type TablesReport struct {
	Database string            `json:"database"`
	Tables   []TableOverview   `json:"tables"`
	Index    *provenance.Stats `json:"index,omitempty"`
}

func runTables(cmd *cobra.Command, _ []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	format, err := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return err
	}
	report, err := buildTablesReport(cmd.Context(), app, tablesSamples, tablesIndex)
	if err != nil {
		return err
	}
	if format != display.FormatText {
		return display.Write(app.Out, format, report)
	}

	rows := make([][]string, 0, len(report.Tables))
	for _, t := range report.Tables {
		nameable := "no"
		if t.Nameable {
			nameable = "yes"
		}
		rows = append(rows, []string{t.Name, strconv.FormatInt(t.Rows, 10), nameable, strings.Join(t.Examples, ", ")})
	}
	if err := display.RenderTable(app.Out, []string{"Table", "Rows", "Names", "Examples"}, rows); err != nil {
		return err
	}
	if report.Index != nil {
		s := report.Index
		return display.RenderTable(app.Out, []string{"Index", "Value"}, [][]string{
			{"records", strconv.Itoa(s.Records)},
			{"processes", strconv.Itoa(s.Processes)},
			{"produced objects", strconv.Itoa(s.Produced)},
			{"consumed objects", strconv.Itoa(s.Consumed)},
			{"forward edges", strconv.Itoa(s.ForwardEdges)},
			{"reverse edges", strconv.Itoa(s.ReverseEdges)},
			{"duplicate records", strconv.Itoa(s.Duplicates)},
		})
	}
	return nil
}

// buildTablesReport inspects every lineage table, several at a time.
func buildTablesReport(ctx context.Context, app *App, samples int, withIndex bool) (*TablesReport, error) {
	client, err := app.Client()
	if err != nil {
		return nil, err
	}
	tables, err := client.DiscoverTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discover tables")
	}

	report := &TablesReport{Database: client.Database(), Tables: make([]TableOverview, len(tables))}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(app.Config.Traversal.Parallelism)
	for i, table := range tables {
		g.Go(func() error {
			ov, err := overview(gctx, client, table, samples)
			if err != nil {
				return errors.Wrapf(err, "inspect %s", table)
			}
			report.Tables[i] = ov
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if withIndex {
		session, err := app.Session()
		if err != nil {
			return nil, err
		}
		ix, err := session.Index(ctx)
		if err != nil {
			return nil, err
		}
		stats := ix.Stats()
		report.Index = &stats
	}

	app.Logger.Debugw("Inspected tables", logger.FieldCount, len(tables))
	return report, nil
}

func overview(ctx context.Context, client *remote.Client, table string, samples int) (TableOverview, error) {
	ov := TableOverview{Name: table}
	n, err := client.CountRows(ctx, table)
	if err != nil {
		return ov, err
	}
	ov.Rows = n

	cols, err := client.ColumnNames(ctx, table)
	if err != nil {
		return ov, err
	}
	var hasID, hasName bool
	for _, c := range cols {
		hasID = hasID || c == remote.IDColumn(table)
		hasName = hasName || c == remote.NameColumn(table)
	}
	ov.Nameable = hasID && hasName
	if !ov.Nameable || samples <= 0 || n == 0 {
		return ov, nil
	}

	rows, err := client.Sample(ctx, table, []string{remote.NameColumn(table)}, samples)
	if err != nil {
		return ov, err
	}
	for _, row := range rows {
		if name, ok := row.Text(remote.NameColumn(table)); ok && name != "" {
			ov.Examples = append(ov.Examples, name)
		}
	}
	return ov, nil
}
