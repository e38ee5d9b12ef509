package commands

import (
	"github.com/spf13/cobra"

	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/graph"
	"github.com/teranos/lineage/walker"
)

// WalkCmd prints the provenance tree around one object.
var WalkCmd = &cobra.Command{
	Use:   "walk <up|down> <table> <name>",
	Short: "Print the provenance tree of an object",
	Long: `Walk the provenance graph from one object and print every process on the
way: upstream through the processes that produced it, or downstream through
the processes that consumed it.

Formats:
  text   indented tree (default)
  json   the trace tree
  yaml   the trace tree
  graph  node/link JSON for graph viewers

Examples:
  lineage walk up sdt_genome FW305-37.genome
  lineage walk down sdt_sample FW305-37 --format graph > graph.json
  lineage walk up sdt_assembly Assembly0000001 --id`,
	Args: cobra.ExactArgs(3),
	RunE: runWalk,
}

var (
	walkFormat string
	walkByID   bool
)

func init() {
	WalkCmd.Flags().StringVar(&walkFormat, "format", "text", "Output format: text, json, yaml, graph")
	WalkCmd.Flags().BoolVar(&walkByID, "id", false, "Treat the last argument as an object id instead of a name")
}

func runWalk(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	format, err := display.FormatFromCommand(cmd,
		display.FormatText, display.FormatJSON, display.FormatYAML, display.FormatGraph)
	if err != nil {
		return err
	}
	dir, err := walker.ParseDirection(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	starts, err := app.StartTokens(ctx, args[1], args[2:], walkByID)
	if err != nil {
		return err
	}
	engine, err := app.Engine()
	if err != nil {
		return err
	}
	trace, err := engine.Trace(ctx, starts[0], dir)
	if err != nil {
		return err
	}

	label, err := app.Labeler(ctx)
	if err != nil {
		return err
	}
	switch format {
	case display.FormatText:
		return display.RenderTrace(app.Out, trace, label)
	case display.FormatGraph:
		g, err := graph.NewBuilder(graph.WithLabeler(label), graph.WithLogger(app.Logger)).FromTrace(trace)
		if err != nil {
			return err
		}
		return display.Write(app.Out, format, g)
	default:
		return display.Write(app.Out, format, trace)
	}
}
