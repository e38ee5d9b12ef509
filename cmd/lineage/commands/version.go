package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/internal/version"
)

// VersionCmd represents the version command
var VersionCmd = &cobra.Command{
	Use:         "version",
	Short:       "Show lineage version information",
	Args:        cobra.NoArgs,
	Annotations: map[string]string{annotationSkipValidate: "true"},
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := appFrom(cmd)
		if err != nil {
			return err
		}
		info := version.Get()
		if format, _ := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON); format == display.FormatJSON {
			return display.Write(app.Out, format, info)
		}
		fmt.Fprintln(app.Out, info.String())
		fmt.Fprintf(app.Out, "Platform: %s\n", info.Platform)
		fmt.Fprintf(app.Out, "Go: %s\n", info.GoVersion)
		return nil
	},
}
