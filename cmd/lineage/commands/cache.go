package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/teranos/lineage/cache"
	"github.com/teranos/lineage/display"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/remote"
)

// Strings in cached responses that name the old artifact host are compared
// as if they named the data repository.
const (
	legacyArtifactPrefix = "https://genomics.lbl.gov/enigma-data"
	artifactRepository   = "enigma-data-repository"
)

// CacheCmd groups the response cache commands.
var CacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and verify the response cache",
	Long: `Inspect the on-disk response cache and check it against a live service.

Examples:
  lineage cache stats
  lineage cache compare --base-url https://staging.example.org/apis/mcp --max 50`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count cached responses",
	Args:  cobra.NoArgs,
	RunE:  runCacheStats,
}

var cacheCompareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Replay cached queries against a service and compare the answers",
	Long: `Send every cached query once to the target service (remote.base_url or
--base-url) and compare the answer with the cached response. Numbers are
compared after rounding to the precision of the cached value. The command
fails unless every replayed query matched.`,
	Args: cobra.NoArgs,
	RunE: runCacheCompare,
}

var (
	cacheFormat     string
	cacheCompareMax int
)

func init() {
	cacheStatsCmd.Flags().StringVar(&cacheFormat, "format", "text", "Output format: text, json, yaml")
	cacheCompareCmd.Flags().StringVar(&cacheFormat, "format", "text", "Output format: text, json, yaml")
	cacheCompareCmd.Flags().IntVar(&cacheCompareMax, "max", 0, "Replay at most this many entries (0 = all)")

	CacheCmd.AddCommand(cacheStatsCmd)
	CacheCmd.AddCommand(cacheCompareCmd)
}

// cacheStore returns the configured store even when caching is disabled for
// this run, since these commands only inspect it.
func cacheStore(app *App) *cache.Store {
	return cache.New(app.Config.Cache.Dir,
		cache.WithTTL(app.Config.Cache.TTL()),
		cache.WithLogger(app.Logger))
}

// CacheStats is the cache stats output.
type CacheStats struct {
	Dir     string `json:"dir"`
	Entries int    `json:"entries"`
	Bytes   int64  `json:"bytes"`
	Expired int    `json:"expired"`
	Legacy  int    `json:"legacy"`
	Corrupt int    `json:"corrupt"`
}

func runCacheStats(cmd *cobra.Command, _ []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	format, err := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return err
	}
	store := cacheStore(app)
	s, err := store.Stats()
	if err != nil {
		return err
	}
	out := CacheStats{Dir: store.Dir(), Entries: s.Entries, Bytes: s.Bytes, Expired: s.Expired, Legacy: s.Legacy, Corrupt: s.Corrupt}
	if format != display.FormatText {
		return display.Write(app.Out, format, out)
	}
	return display.RenderTable(app.Out, []string{"Cache", "Value"}, [][]string{
		{"directory", out.Dir},
		{"entries", strconv.Itoa(out.Entries)},
		{"bytes", strconv.FormatInt(out.Bytes, 10)},
		{"expired", strconv.Itoa(out.Expired)},
		{"legacy", strconv.Itoa(out.Legacy)},
		{"corrupt", strconv.Itoa(out.Corrupt)},
	})
}

// CompareReport is the cache compare output.
type CompareReport struct {
	Target  string                `json:"target"`
	Summary remote.ReplaySummary  `json:"summary"`
	Results []remote.ReplayResult `json:"results"`
}

func runCacheCompare(cmd *cobra.Command, _ []string) error {
	app, err := appFrom(cmd)
	if err != nil {
		return err
	}
	format, err := display.FormatFromCommand(cmd, display.FormatText, display.FormatJSON, display.FormatYAML)
	if err != nil {
		return err
	}

	entries, err := cacheStore(app).Entries()
	if err != nil {
		return err
	}
	client, err := app.Client()
	if err != nil {
		return err
	}
	cmp := cache.Comparer{NormalizeString: cache.PrefixNormalizer(legacyArtifactPrefix, artifactRepository)}
	results, summary := client.Replay(cmd.Context(), entries, cmp, cacheCompareMax)
	if results == nil {
		results = []remote.ReplayResult{}
	}
	report := CompareReport{Target: client.Config().BaseURL, Summary: summary, Results: results}

	if format != display.FormatText {
		if err := display.Write(app.Out, format, report); err != nil {
			return err
		}
	} else if err := renderCompare(app, report); err != nil {
		return err
	}

	if !summary.OK() {
		return errors.Newf("%d of %d cached responses differ, %d failed",
			summary.Mismatched, summary.Compared, summary.Failed)
	}
	return nil
}

func renderCompare(app *App, report CompareReport) error {
	var rows [][]string
	for _, r := range report.Results {
		if r.Outcome == remote.ReplayEqual {
			continue
		}
		detail := r.Diff
		if r.Error != "" {
			detail = r.Error
		}
		rows = append(rows, []string{r.Key, string(r.Outcome), r.URL, detail})
	}
	if len(rows) > 0 {
		if err := display.RenderTable(app.Out, []string{"Key", "Outcome", "URL", "Detail"}, rows); err != nil {
			return err
		}
	}
	s := report.Summary
	_, err := fmt.Fprintf(app.Out, "Compared %d against %s: %d matched, %d mismatched, %d failed\n",
		s.Compared, report.Target, s.Matched, s.Mismatched, s.Failed)
	return errors.Wrap(err, "write output")
}
