package commands

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/teranos/lineage/am"
	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/errors"
)

// AmCmd represents the am (configuration) command
var AmCmd = &cobra.Command{
	Use:   "am",
	Short: "Manage lineage configuration",
	Long: `am - Manage lineage configuration ("I am")

Configuration sources (later overrides earlier):
1. Built-in defaults
2. System config (/etc/lineage/am.toml)
3. User config (~/.lineage/am.toml)
4. Project config (nearest am.toml walking up from the working directory)
5. Environment variables (BERDL_*, KB_AUTH_TOKEN)
6. Command line flags (--base-url, --database, --no-cache)

Examples:
  lineage am show                  # Show current configuration
  lineage am show --format json    # Show configuration as JSON
  lineage am show --sources        # Show where every value comes from
  lineage am get remote.base_url   # Get one value
  lineage am validate              # Validate current configuration
  lineage am init                  # Write ./am.toml with defaults`,
}

var amShowCmd = &cobra.Command{
	Use:         "show",
	Short:       "Show current configuration",
	Annotations: map[string]string{annotationSkipValidate: "true"},
	RunE:        runAmShow,
}

var amGetCmd = &cobra.Command{
	Use:         "get <key>",
	Short:       "Get a specific configuration value",
	Long:        "Get a configuration value using dot notation (e.g., remote.base_url, traversal.parallelism)",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{annotationSkipValidate: "true"},
	RunE:        runAmGet,
}

var amValidateCmd = &cobra.Command{
	Use:         "validate",
	Short:       "Validate current configuration",
	Annotations: map[string]string{annotationSkipValidate: "true"},
	RunE:        runAmValidate,
}

var amInitCmd = &cobra.Command{
	Use:         "init [path]",
	Short:       "Write a configuration file with default values",
	Long:        "Write am.toml (or the given path) with default values. An existing file is rotated to .back1.",
	Args:        cobra.MaximumNArgs(1),
	Annotations: map[string]string{annotationSkipValidate: "true"},
	RunE:        runAmInit,
}

var (
	amShowFormat  string
	amShowSources bool
)

func init() {
	amShowCmd.Flags().StringVar(&amShowFormat, "format", "toml", "Output format: toml, json, yaml")
	amShowCmd.Flags().BoolVar(&amShowSources, "sources", false, "List every setting with the source that set it")

	AmCmd.AddCommand(amShowCmd)
	AmCmd.AddCommand(amGetCmd)
	AmCmd.AddCommand(amValidateCmd)
	AmCmd.AddCommand(amInitCmd)
}

func runAmShow(cmd *cobra.Command, _ []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	format, err := display.FormatFromCommand(cmd, display.FormatTOML, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return err
	}

	if amShowSources {
		settings, err := introspect()
		if err != nil {
			return err
		}
		return writeSources(app.Out, format, settings)
	}
	return writeConfig(app.Out, format, app.Config)
}

// writeConfig prints cfg. The auth token never leaves in clear text.
func writeConfig(w io.Writer, format display.Format, cfg *am.Config) error {
	if format == display.FormatTOML {
		data, err := am.Marshal(*cfg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(w, "# lineage configuration\n%s", data)
		return errors.Wrap(err, "write output")
	}
	shown := *cfg
	if shown.Remote.AuthToken != "" {
		shown.Remote.AuthToken = "********"
	}
	return display.Write(w, format, shown)
}

func writeSources(w io.Writer, format display.Format, settings []am.SettingInfo) error {
	if format != display.FormatTOML {
		return display.Write(w, format, settings)
	}
	rows := make([][]string, 0, len(settings))
	for _, s := range settings {
		rows = append(rows, []string{s.Key, fmt.Sprint(s.Value), string(s.Source), s.SourcePath})
	}
	return display.RenderTable(w, []string{"Key", "Value", "Source", "From"}, rows)
}

func introspect() ([]am.SettingInfo, error) {
	if globals.configPath != "" {
		v, sources, err := am.NewViper(am.Paths{Project: globals.configPath})
		if err != nil {
			return nil, err
		}
		return am.Introspect(v, sources), nil
	}
	v, sources, err := am.GetViper()
	if err != nil {
		return nil, err
	}
	return am.Introspect(v, sources), nil
}

func runAmGet(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	settings, err := introspect()
	if err != nil {
		return err
	}
	setting, err := findSetting(settings, args[0])
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.Out, setting.Value)
	return errors.Wrap(err, "write output")
}

func findSetting(settings []am.SettingInfo, key string) (am.SettingInfo, error) {
	for _, s := range settings {
		if s.Key == key {
			return s, nil
		}
	}
	return am.SettingInfo{}, errors.WithHint(
		errors.Wrapf(errors.ErrNotFound, "configuration key %q not found", key),
		"run 'lineage am show --sources' to list every key")
}

func runAmValidate(cmd *cobra.Command, _ []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	if err := app.Config.Validate(); err != nil {
		return errors.Wrap(err, "configuration validation failed")
	}
	_, err = fmt.Fprintln(app.Out, "✓ Configuration is valid")
	return errors.Wrap(err, "write output")
}

func runAmInit(cmd *cobra.Command, args []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	path := am.ConfigFileName
	if len(args) == 1 {
		path = args[0]
	}
	if err := am.WriteDefault(path); err != nil {
		return err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	_, err = fmt.Fprintf(app.Out, "✓ Wrote %s\n", abs)
	return errors.Wrap(err, "write output")
}
