package lineage

import (
	"context"
	"strings"
	"sync"

	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
	"github.com/teranos/lineage/walker"
)

// RowFetcher is the slice of the remote client the engine reads rows with.
type RowFetcher interface {
	ColumnNames(ctx context.Context, table string) ([]string, error)
	SelectFirst(ctx context.Context, table string, columns []string, filters ...remote.Filter) (remote.Row, error)
}

var _ RowFetcher = (*remote.Client)(nil)

// ColumnLink holds an artifact's download URI.
const ColumnLink = "link"

// DefaultTagColumns are copied into Artifact.Tags when present.
var DefaultTagColumns = []string{
	"read_type_sys_oterm_name",
	"sequencing_technology_sys_oterm_name",
}

// SampleColumns are fetched for every sample found upstream.
var SampleColumns = []string{
	"sdt_location_name",
	"date",
	"depth_meter",
	"material_sys_oterm_name",
	"sdt_sample_description",
}

// rowCache fetches object rows by id, memoizing schemas and rows for the
// lifetime of the engine.
type rowCache struct {
	fetch RowFetcher

	mu      sync.Mutex
	schemas map[string][]string
	rows    map[rowKey]remote.Row
}

type rowKey struct {
	object  token.Token
	columns string
}

func newRowCache(fetch RowFetcher) *rowCache {
	return &rowCache{
		fetch:   fetch,
		schemas: make(map[string][]string),
		rows:    make(map[rowKey]remote.Row),
	}
}

func (c *rowCache) columns(ctx context.Context, table string) ([]string, error) {
	c.mu.Lock()
	cols, ok := c.schemas[table]
	c.mu.Unlock()
	if ok {
		return cols, nil
	}
	cols, err := c.fetch.ColumnNames(ctx, table)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.schemas[table] = cols
	c.mu.Unlock()
	return cols, nil
}

// row returns the row of t restricted to the wanted columns that exist in
// the table, or nil when no row has that id.
func (c *rowCache) row(ctx context.Context, t token.Token, wanted []string) (remote.Row, error) {
	schema, err := c.columns(ctx, t.Collection)
	if err != nil {
		return nil, err
	}
	present := make(map[string]struct{}, len(schema))
	for _, col := range schema {
		present[col] = struct{}{}
	}
	var cols []string
	for _, col := range wanted {
		if _, ok := present[col]; ok {
			cols = append(cols, col)
		}
	}

	key := rowKey{object: t, columns: strings.Join(cols, ",")}
	c.mu.Lock()
	row, ok := c.rows[key]
	c.mu.Unlock()
	if ok {
		return row, nil
	}

	row, err = c.fetch.SelectFirst(ctx, t.Collection, cols, remote.Eq(remote.IDColumn(t.Collection), t.ID))
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.rows[key] = row
	c.mu.Unlock()
	return row, nil
}

// artifactColumns lists what hydration asks a collection for.
func artifactColumns(collection string, tags []string) []string {
	cols := []string{remote.IDColumn(collection), remote.NameColumn(collection), ColumnLink}
	return append(cols, tags...)
}

// tagName shortens an ontology column to its tag key.
func tagName(column string) string {
	return strings.TrimSuffix(column, "_sys_oterm_name")
}

// hydrate loads the artifact fields of t. found is false when the object
// has no row.
func (c *rowCache) hydrate(ctx context.Context, t token.Token, tags []string) (walker.Artifact, bool, error) {
	row, err := c.row(ctx, t, artifactColumns(t.Collection, tags))
	if err != nil || row == nil {
		return walker.Artifact{}, false, err
	}
	a := walker.Artifact{}
	a.Name, _ = row.Text(remote.NameColumn(t.Collection))
	a.Link, _ = row.Text(ColumnLink)
	for _, col := range tags {
		if v, ok := row.Text(col); ok && v != "" {
			if a.Tags == nil {
				a.Tags = make(map[string]string)
			}
			a.Tags[tagName(col)] = v
		}
	}
	return a, true, nil
}
