package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teranos/lineage/cmd/lineage/commands"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
)

var rootCmd = &cobra.Command{
	Use:   "lineage",
	Short: "Walk ENIGMA provenance in BERDL",
	Long: `lineage - Provenance lineage graph engine for the BERDL ENIGMA data lake.

lineage reads the sys_process table, builds a bidirectional index of which
process produced and consumed every object, and walks it to find the raw
reads, samples and assemblies behind (or derived from) any object.

Available commands:
  am          - Manage lineage configuration ("I am")
  tables      - Overview of the lineage tables
  walk        - Print the provenance tree of an object
  reads       - Find FASTQ reads upstream of objects
  samples     - Find samples upstream of an object
  processes   - List the processes that produced an object
  coassembly  - Check whether an assembly pooled several samples
  sys-process - Show the raw sys_process rows that produced an object
  output-rows - Show the sys_process_output rows for an object
  cache       - Inspect and verify the response cache
  mirror      - Snapshot sys_process into a local SQLite mirror
  version     - Show version information

Examples:
  lineage walk up sdt_genome FW305-37.genome        # Upstream tree
  lineage reads sdt_genome FW305-37.genome --json   # Representative reads
  lineage mirror && lineage walk up sdt_genome G1 --offline`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: commands.Setup,
}

func init() {
	commands.RegisterGlobalFlags(rootCmd)

	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.TablesCmd)
	rootCmd.AddCommand(commands.WalkCmd)
	rootCmd.AddCommand(commands.ReadsCmd)
	rootCmd.AddCommand(commands.SamplesCmd)
	rootCmd.AddCommand(commands.ProcessesCmd)
	rootCmd.AddCommand(commands.CoassemblyCmd)
	rootCmd.AddCommand(commands.SysProcessCmd)
	rootCmd.AddCommand(commands.OutputRowsCmd)
	rootCmd.AddCommand(commands.CacheCmd)
	rootCmd.AddCommand(commands.MirrorCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	logger.Cleanup()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		for _, hint := range errors.GetAllHints(err) {
			fmt.Fprintf(os.Stderr, "Hint: %s\n", hint)
		}
		os.Exit(1)
	}
}
