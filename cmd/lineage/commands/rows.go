package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
)

// SysProcessCmd prints the raw sys_process rows that produced an object.
var SysProcessCmd = &cobra.Command{
	Use:   "sys-process <table> <name>",
	Short: "Show the raw sys_process rows that produced an object",
	Long: `Scan sys_process for rows with an output reference ending in ":<id>" and
print them as stored, with the metadata columns detected in the schema.
References are matched before decoding, so rows whose types no table maps
to still show up.

Examples:
  lineage sys-process sdt_genome FW305-37.genome
  lineage sys-process sdt_reads Reads0000001 --id --json`,
	Args: cobra.ExactArgs(2),
	RunE: runSysProcess,
}

// OutputRowsCmd prints the sys_process_output rows naming an object.
var OutputRowsCmd = &cobra.Command{
	Use:   "output-rows <table> <name>",
	Short: "Show the sys_process_output rows for an object",
	Long: `Select the sys_process_output rows whose <table>_id column holds the
object's id and print every *_id column of them.`,
	Args: cobra.ExactArgs(2),
	RunE: runOutputRows,
}

var (
	rowsFormat string
	rowsByID   bool
)

func init() {
	for _, c := range []*cobra.Command{SysProcessCmd, OutputRowsCmd} {
		c.Flags().StringVar(&rowsFormat, "format", "text", "Output format: text, json, yaml")
		c.Flags().BoolVar(&rowsByID, "id", false, "Treat the name as an object id")
	}
}

// SysProcessReport is the sys-process output.
type SysProcessReport struct {
	Start   token.Token                `json:"start"`
	Columns provenance.MetadataColumns `json:"metadata_columns"`
	Rows    []provenance.ProcessRow    `json:"rows"`
}

func runSysProcess(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	if app.Offline {
		return errors.WithHint(
			errors.Wrap(errors.ErrInvalidRequest, "raw sys_process rows are not mirrored"),
			"drop --offline, or use 'lineage processes' to read the mirrored records")
	}
	format, err := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	starts, err := app.StartTokens(ctx, args[0], args[1:], rowsByID)
	if err != nil {
		return err
	}
	client, err := app.Client()
	if err != nil {
		return err
	}

	rows, meta, err := provenance.NewRemoteSource(client, nil, app.Logger).RowsProducing(ctx, starts[0].ID)
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []provenance.ProcessRow{}
	}
	report := SysProcessReport{Start: starts[0], Columns: meta, Rows: rows}
	if format != display.FormatText {
		return display.Write(app.Out, format, report)
	}
	return renderSysProcess(app.Out, args[1], report)
}

func renderSysProcess(w io.Writer, name string, report SysProcessReport) error {
	fmt.Fprintf(w, "Found %d row(s) in %s for %s (%s)\n", len(report.Rows), provenance.ProcessTable, name, report.Start)
	m := report.Columns
	fmt.Fprintln(w, pterm.Gray(fmt.Sprintf("metadata columns: process=%s person=%s protocol=%s date_end=%s",
		dash(m.ProcessName), dash(m.PerformedBy), dash(m.Protocol), dash(m.CompletedAt))))
	if len(report.Rows) == 0 {
		return nil
	}
	rows := make([][]string, 0, len(report.Rows))
	for _, r := range report.Rows {
		rows = append(rows, []string{
			r.ID,
			dash(r.Name),
			dash(r.PerformedBy),
			dash(strings.Join(r.Protocols, ", ")),
			dash(r.CompletedAt),
			strings.Join(r.Outputs, " "),
		})
	}
	return display.RenderTable(w, []string{"Process", "Name", "Person", "Protocol", "Completed", "Outputs"}, rows)
}

// OutputRowsReport is the output-rows output.
type OutputRowsReport struct {
	Start   token.Token  `json:"start"`
	Columns []string     `json:"columns"`
	Rows    []remote.Row `json:"rows"`
}

func runOutputRows(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	format, err := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	starts, err := app.StartTokens(ctx, args[0], args[1:], rowsByID)
	if err != nil {
		return err
	}
	client, err := app.Client()
	if err != nil {
		return err
	}

	columns, rows, err := provenance.OutputRows(ctx, client, starts[0])
	if err != nil {
		return err
	}
	if rows == nil {
		rows = []remote.Row{}
	}
	report := OutputRowsReport{Start: starts[0], Columns: columns, Rows: rows}
	if format != display.FormatText {
		return display.Write(app.Out, format, report)
	}

	fmt.Fprintf(app.Out, "Found %d row(s) in %s for %s (%s)\n", len(rows), provenance.OutputTable, args[1], starts[0])
	if len(rows) == 0 {
		return nil
	}
	table := make([][]string, 0, len(rows))
	for _, row := range rows {
		cells := make([]string, len(columns))
		for i, col := range columns {
			if v, ok := row[col]; ok && v != nil {
				cells[i] = fmt.Sprint(v)
			} else {
				cells[i] = "-"
			}
		}
		table = append(table, cells)
	}
	return display.RenderTable(app.Out, columns, table)
}
