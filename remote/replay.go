package remote

import (
	"context"
	"net/url"
	"strings"

	"github.com/teranos/lineage/cache"
	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
)

// ReplayOutcome classifies one replayed cache entry.
type ReplayOutcome string

const (
	ReplayEqual     ReplayOutcome = "equal"
	ReplayDifferent ReplayOutcome = "different"
	ReplayFailed    ReplayOutcome = "failed"
)

// ReplayResult is the outcome of sending one cached query again.
type ReplayResult struct {
	Key     string        `json:"key"`
	URL     string        `json:"url"`
	Outcome ReplayOutcome `json:"outcome"`
	Diff    string        `json:"diff,omitempty"`
	Error   string        `json:"error,omitempty"`
}

// ReplaySummary counts replay outcomes.
type ReplaySummary struct {
	Compared   int `json:"compared"`
	Matched    int `json:"matched"`
	Mismatched int `json:"mismatched"`
	Failed     int `json:"failed"`
}

// OK reports whether every entry matched.
func (s ReplaySummary) OK() bool {
	return s.Mismatched == 0 && s.Failed == 0
}

// RebuildURL moves the path of a cached request URL onto base. When the
// cached path already starts with base's path, that prefix is not doubled.
func RebuildURL(base, cached string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrapf(err, "invalid base URL %q", base)
	}
	c, err := url.Parse(cached)
	if err != nil {
		return "", errors.Wrapf(err, "invalid cached URL %q", cached)
	}
	path := c.Path
	basePath := strings.TrimRight(b.Path, "/")
	if basePath != "" && strings.HasPrefix(path, basePath) {
		path = path[len(basePath):]
	}
	return strings.TrimRight(base, "/") + path, nil
}

// Replay sends each entry's query once to this client's base URL, bypassing
// the cache and the retry loop, and compares the reply with the stored
// response. max limits how many entries are sent; zero means all.
func (c *Client) Replay(ctx context.Context, entries []cache.Entry, cmp cache.Comparer, max int) ([]ReplayResult, ReplaySummary) {
	var (
		results []ReplayResult
		summary ReplaySummary
	)
	for i, entry := range entries {
		if max > 0 && i >= max {
			break
		}
		if ctx.Err() != nil {
			break
		}
		summary.Compared++

		res := ReplayResult{Key: entry.Key}
		target, err := RebuildURL(c.cfg.BaseURL, entry.Query.URL)
		if err != nil {
			res.Outcome, res.Error = ReplayFailed, err.Error()
			summary.Failed++
			results = append(results, res)
			continue
		}
		res.URL = target

		body, err := c.send(ctx, cache.Query{URL: target, Payload: entry.Query.Payload})
		if err != nil {
			res.Outcome, res.Error = ReplayFailed, err.Error()
			summary.Failed++
			results = append(results, res)
			continue
		}

		same, diff, err := cmp.Equal(entry.Response, body)
		switch {
		case err != nil:
			res.Outcome, res.Error = ReplayFailed, errors.Wrap(err, "decode response").Error()
			summary.Failed++
		case same:
			res.Outcome = ReplayEqual
			summary.Matched++
		default:
			res.Outcome, res.Diff = ReplayDifferent, diff
			summary.Mismatched++
		}
		results = append(results, res)
	}

	c.logger.Infow("Replayed cache",
		logger.FieldURL, c.cfg.BaseURL,
		"compared", summary.Compared,
		"matched", summary.Matched,
		"mismatched", summary.Mismatched,
		"failed", summary.Failed)
	return results, summary
}
