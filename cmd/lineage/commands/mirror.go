package commands

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/teranos/lineage/db"
	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/provenance"
)

// MirrorCmd snapshots sys_process into the local SQLite mirror.
var MirrorCmd = &cobra.Command{
	Use:   "mirror",
	Short: "Snapshot sys_process into a local SQLite mirror",
	Long: `Read every process record of the configured database and store it as a new
snapshot in the SQLite mirror (mirror.path). Commands run with --offline load
the latest snapshot instead of paging through the remote service.

Examples:
  lineage mirror              # Store a new snapshot
  lineage mirror --keep 3     # Store, then drop all but the 3 newest
  lineage mirror ls           # List snapshots`,
	Args: cobra.NoArgs,
	RunE: runMirror,
}

var mirrorLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List mirrored snapshots",
	Args:  cobra.NoArgs,
	RunE:  runMirrorLs,
}

var (
	mirrorKeep   int
	mirrorFormat string
)

func init() {
	MirrorCmd.Flags().IntVar(&mirrorKeep, "keep", 0, "After storing, keep only this many snapshots of the database (0 = keep all)")
	mirrorLsCmd.Flags().StringVar(&mirrorFormat, "format", "text", "Output format: text, json, yaml")

	MirrorCmd.AddCommand(mirrorLsCmd)
}

func runMirror(cmd *cobra.Command, _ []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if app.Offline {
		return errors.WithHint(
			errors.Wrap(errors.ErrInvalidRequest, "cannot mirror while offline"),
			"drop --offline; mirroring reads from the remote service")
	}

	client, err := app.Client()
	if err != nil {
		return err
	}
	start := time.Now()
	records, err := provenance.NewRemoteSource(client, nil, app.Logger).LoadRecords(ctx)
	if err != nil {
		return err
	}
	m, err := app.Mirror()
	if err != nil {
		return err
	}
	snap, err := m.Store(ctx, client.Database(), client.Config().BaseURL, records)
	if err != nil {
		return err
	}
	app.Logger.Infow("Mirrored process records",
		logger.FieldDatabase, snap.Database,
		logger.FieldRecords, snap.RecordCount,
		logger.FieldDurationMS, time.Since(start).Milliseconds())

	pruned := 0
	if mirrorKeep > 0 {
		if pruned, err = m.Prune(ctx, snap.Database, mirrorKeep); err != nil {
			return err
		}
	}

	fmt.Fprintf(app.Out, "✓ Snapshot %d: %d process records from %s\n", snap.ID, snap.RecordCount, snap.Database)
	if pruned > 0 {
		fmt.Fprintf(app.Out, "  Pruned %d older snapshot(s)\n", pruned)
	}
	return nil
}

func runMirrorLs(cmd *cobra.Command, _ []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	format, err := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return err
	}
	m, err := app.Mirror()
	if err != nil {
		return err
	}
	snaps, err := m.Snapshots(cmd.Context())
	if err != nil {
		return err
	}
	if format != display.FormatText {
		if snaps == nil {
			snaps = []db.Snapshot{}
		}
		return display.Write(app.Out, format, snaps)
	}
	if len(snaps) == 0 {
		_, err := fmt.Fprintln(app.Out, "No snapshots; run 'lineage mirror' to create one")
		return errors.Wrap(err, "write output")
	}
	rows := make([][]string, 0, len(snaps))
	for _, s := range snaps {
		rows = append(rows, []string{
			strconv.FormatInt(s.ID, 10),
			s.Database,
			s.CreatedAt.Format(time.RFC3339),
			strconv.Itoa(s.RecordCount),
			s.BaseURL,
		})
	}
	return display.RenderTable(app.Out, []string{"ID", "Database", "Created", "Records", "Source"}, rows)
}
