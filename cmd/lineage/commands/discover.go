package commands

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/lineage"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/selector"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

// ReadsCmd finds the representative FASTQ reads around objects.
var ReadsCmd = &cobra.Command{
	Use:   "reads <table> <name>...",
	Short: "Find FASTQ reads upstream of objects",
	Long: `Find the raw reads behind each object: FASTQ files hosted on the configured
artifact host, one representative per source after copies are collapsed,
paired-end mates kept together.

Examples:
  lineage reads sdt_genome FW305-37.genome
  lineage reads sdt_genome G1 G2 G3 --json
  lineage reads sdt_sample FW305-37 --direction down`,
	Args: cobra.MinimumNArgs(2),
	RunE: runReads,
}

// SamplesCmd lists the samples an object descends from.
var SamplesCmd = &cobra.Command{
	Use:   "samples <table> <name>",
	Short: "Find samples upstream of an object",
	Args:  cobra.ExactArgs(2),
	RunE:  runSamples,
}

// ProcessesCmd lists the processes that produced an object.
var ProcessesCmd = &cobra.Command{
	Use:   "processes <table> <name>",
	Short: "List the processes that produced an object",
	Args:  cobra.ExactArgs(2),
	RunE:  runProcesses,
}

// CoassemblyCmd reports whether an object comes from a co-assembly.
var CoassemblyCmd = &cobra.Command{
	Use:   "coassembly <table> <name>",
	Short: "Check whether an assembly pooled several samples",
	Long: `Report whether an object descends from an assembly built from more than
one reads object, and list the assembly processes upstream of it.`,
	Args: cobra.ExactArgs(2),
	RunE: runCoassembly,
}

var (
	discoverFormat string
	discoverByID   bool
	readsDirection string
	readsAnyHost   bool
)

func init() {
	for _, c := range []*cobra.Command{ReadsCmd, SamplesCmd, ProcessesCmd, CoassemblyCmd} {
		c.Flags().StringVar(&discoverFormat, "format", "text", "Output format: text, json, yaml")
		c.Flags().BoolVar(&discoverByID, "id", false, "Treat names as object ids")
	}
	ReadsCmd.Flags().StringVar(&readsDirection, "direction", "up", "Walk direction: up or down")
	ReadsCmd.Flags().BoolVar(&readsAnyHost, "any-host", false, "Accept reads on any host, not only traversal.artifact_host")
}

// discoverContext resolves the shared parts of the discovery commands.
func discoverContext(cmd *cobra.Command, args []string) (*App, display.Format, []token.Token, *lineage.Engine, error) {
	app, err := appFrom(cmd)
	if err != nil {
		return nil, "", nil, nil, err
	}
	format, err := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return nil, "", nil, nil, err
	}
	starts, err := app.StartTokens(cmd.Context(), args[0], args[1:], discoverByID)
	if err != nil {
		return nil, "", nil, nil, err
	}
	engine, err := app.Engine()
	if err != nil {
		return nil, "", nil, nil, err
	}
	return app, format, starts, engine, nil
}

// ReadsResult is the reads found for one start object.
type ReadsResult struct {
	Start     token.Token         `json:"start"`
	Artifacts []selector.Selected `json:"artifacts"`
	Error     string              `json:"error,omitempty"`
}

func runReads(cmd *cobra.Command, args []string) error {
	app, format, starts, engine, err := discoverContext(cmd, args)
	if err != nil {
		return err
	}
	dir, err := walker.ParseDirection(readsDirection)
	if err != nil {
		return err
	}
	query := lineage.FastqReads(app.Config.Traversal.ArtifactHost)
	if readsAnyHost {
		query.Accept = nil
	}

	results, err := engine.DiscoverMany(cmd.Context(), dir, starts, query)
	if err != nil {
		return err
	}
	return writeReads(cmd.Context(), app, format, results)
}

func writeReads(ctx context.Context, app *App, format display.Format, results []lineage.Result) error {
	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	if format != display.FormatText {
		out := make([]ReadsResult, len(results))
		for i, r := range results {
			out[i] = ReadsResult{Start: r.Start, Artifacts: r.Artifacts}
			if r.Err != nil {
				out[i].Error = r.Err.Error()
			}
		}
		if err := display.Write(app.Out, format, out); err != nil {
			return err
		}
	} else {
		label, err := app.Labeler(ctx)
		if err != nil {
			return err
		}
		for _, r := range results {
			fmt.Fprintf(app.Out, "%s\n", pterm.Bold.Sprint(label(r.Start)))
			if r.Err != nil {
				fmt.Fprintf(app.Out, "  %s\n", pterm.Red("error: "+r.Err.Error()))
				continue
			}
			if err := display.RenderArtifacts(app.Out, r.Artifacts); err != nil {
				return err
			}
		}
	}

	if failed > 0 {
		return errors.Newf("%d of %d discoveries failed", failed, len(results))
	}
	return nil
}

func runSamples(cmd *cobra.Command, args []string) error {
	app, format, starts, engine, err := discoverContext(cmd, args)
	if err != nil {
		return err
	}
	samples, err := engine.Samples(cmd.Context(), starts[0])
	if err != nil {
		return err
	}
	if format != display.FormatText {
		if samples == nil {
			samples = []lineage.Sample{}
		}
		return display.Write(app.Out, format, samples)
	}
	return renderSamples(app.Out, samples)
}

func renderSamples(w io.Writer, samples []lineage.Sample) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, pterm.Gray("No samples found"))
		return errors.Wrap(err, "write output")
	}
	rows := make([][]string, 0, len(samples))
	for _, s := range samples {
		rows = append(rows, []string{s.Token.String(), dash(s.Name), dash(s.Protocol), strconv.Itoa(s.Depth), dash(fields(s.Fields))})
	}
	return display.RenderTable(w, []string{"Token", "Name", "Protocol", "Depth", "Fields"}, rows)
}

func fields(m map[string]string) string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + m[k]
	}
	return strings.Join(parts, " ")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func runProcesses(cmd *cobra.Command, args []string) error {
	app, format, starts, engine, err := discoverContext(cmd, args)
	if err != nil {
		return err
	}
	procs, err := engine.Processes(cmd.Context(), starts[0])
	if err != nil {
		return err
	}
	if format != display.FormatText {
		if procs == nil {
			procs = []*provenance.ProcessRecord{}
		}
		return display.Write(app.Out, format, procs)
	}
	display.RenderProcesses(app.Out, "Processes that produced "+starts[0].String(), procs)
	return nil
}

// CoassemblyReport is the coassembly command output.
type CoassemblyReport struct {
	Start      token.Token                 `json:"start"`
	Coassembly bool                        `json:"coassembly"`
	Assemblies []*provenance.ProcessRecord `json:"assembly_processes"`
}

func runCoassembly(cmd *cobra.Command, args []string) error {
	app, format, starts, engine, err := discoverContext(cmd, args)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	co, err := engine.HasCoassembly(ctx, starts[0])
	if err != nil {
		return err
	}
	procs, err := engine.AssemblyProcesses(ctx, starts[0])
	if err != nil {
		return err
	}
	if procs == nil {
		procs = []*provenance.ProcessRecord{}
	}
	report := CoassemblyReport{Start: starts[0], Coassembly: co, Assemblies: procs}
	if format != display.FormatText {
		return display.Write(app.Out, format, report)
	}

	verdict := "single-sample assembly"
	if co {
		verdict = "co-assembly"
	}
	if len(procs) == 0 {
		verdict = "no assembly upstream"
	}
	fmt.Fprintf(app.Out, "%s: %s\n", starts[0], pterm.LightCyan(verdict))
	display.RenderProcesses(app.Out, "Assembly processes", procs)
	return nil
}
