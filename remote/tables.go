package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/lineage/errors"
)

// Column describes one column of a table. Only Name is guaranteed; services
// that return bare column names leave the rest empty.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type,omitempty"`
	Nullable bool   `json:"nullable,omitempty"`
	Comment  string `json:"comment,omitempty"`
}

// TableStructure is one table in a database structure listing.
type TableStructure struct {
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
}

// ListTables returns every table in the configured database.
func (c *Client) ListTables(ctx context.Context) ([]string, error) {
	payload := map[string]any{"database": c.cfg.Database, "use_hms": true}
	body, err := c.Post(ctx, PathListTables, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Tables *[]any `json:"tables"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Tables == nil {
		return nil, errors.ProtocolMismatch(PathListTables, `{"tables": [string]}`)
	}
	tables := make([]string, 0, len(*resp.Tables))
	for _, t := range *resp.Tables {
		tables = append(tables, stringify(t))
	}
	return tables, nil
}

// IsLineageTable reports whether a table takes part in provenance: static
// data tables (sdt_), system tables (sys_) and the ndarray store.
func IsLineageTable(name string) bool {
	return strings.HasPrefix(name, "sdt_") ||
		strings.HasPrefix(name, "sys_") ||
		name == "ddt_ndarray"
}

// DiscoverTables returns the lineage tables of the database in listing order.
func (c *Client) DiscoverTables(ctx context.Context) ([]string, error) {
	all, err := c.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, t := range all {
		if IsLineageTable(t) {
			tables = append(tables, t)
		}
	}
	return tables, nil
}

// DescribeSchema returns the columns of table. The service may answer with
// bare names or with objects carrying a name; both are accepted.
func (c *Client) DescribeSchema(ctx context.Context, table string) ([]Column, error) {
	payload := map[string]any{"database": c.cfg.Database, "table": table}
	body, err := c.Post(ctx, PathSchema, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Columns *[]json.RawMessage `json:"columns"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Columns == nil {
		return nil, errors.ProtocolMismatch(PathSchema, `{"columns": [...]}`)
	}
	columns := make([]Column, 0, len(*resp.Columns))
	for _, raw := range *resp.Columns {
		col, err := decodeColumn(raw)
		if err != nil {
			return nil, errors.WithDetailf(err, "table: %s", table)
		}
		columns = append(columns, col)
	}
	return columns, nil
}

// ColumnNames is DescribeSchema reduced to names.
func (c *Client) ColumnNames(ctx context.Context, table string) ([]string, error) {
	columns, err := c.DescribeSchema(ctx, table)
	if err != nil {
		return nil, err
	}
	return Names(columns), nil
}

// Names extracts column names in order.
func Names(columns []Column) []string {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = col.Name
	}
	return names
}

func decodeColumn(raw json.RawMessage) (Column, error) {
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		return Column{Name: name}, nil
	}
	var col Column
	if err := json.Unmarshal(raw, &col); err != nil || col.Name == "" {
		return Column{}, errors.ProtocolMismatch(PathSchema, "column entries that are strings or objects with a name")
	}
	return col, nil
}

// CountRows returns the number of rows in table.
func (c *Client) CountRows(ctx context.Context, table string) (int64, error) {
	payload := map[string]any{"database": c.cfg.Database, "table": table}
	body, err := c.Post(ctx, PathCount, payload)
	if err != nil {
		return 0, err
	}

	fields, err := decodeObject(body)
	if err != nil {
		return 0, errors.ProtocolMismatch(PathCount, `{"count": int}`)
	}
	n, ok := toInt(fields["count"])
	if !ok {
		return 0, errors.ProtocolMismatch(PathCount, `{"count": int}`)
	}
	return n, nil
}

// Sample returns up to limit example rows of table. Columns may be empty for
// all columns. A response without a sample list yields no rows.
func (c *Client) Sample(ctx context.Context, table string, columns []string, limit int) ([]Row, error) {
	payload := map[string]any{"database": c.cfg.Database, "table": table, "limit": limit}
	if len(columns) > 0 {
		payload["columns"] = columns
	}
	body, err := c.Post(ctx, PathSample, payload)
	if err != nil {
		return nil, err
	}

	fields, err := decodeObject(body)
	if err != nil {
		return nil, nil
	}
	list, _ := fields["sample"].([]any)
	rows := make([]Row, 0, len(list))
	for _, item := range list {
		if m, ok := item.(map[string]any); ok {
			rows = append(rows, Row(m))
		}
	}
	return rows, nil
}

// DatabaseStructure lists every table of the configured database with its
// columns in one call. Returns ErrNotFound when the service has no entry for
// the database.
func (c *Client) DatabaseStructure(ctx context.Context) ([]TableStructure, error) {
	payload := map[string]any{"with_schema": true, "use_hms": true}
	body, err := c.Post(ctx, PathStructure, payload)
	if err != nil {
		return nil, err
	}

	var resp struct {
		Structure map[string]json.RawMessage `json:"structure"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Structure == nil {
		return nil, errors.ProtocolMismatch(PathStructure, `{"structure": {...}}`)
	}
	dbRaw, ok := resp.Structure[c.cfg.Database]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "database %s not in structure listing", c.cfg.Database)
	}

	var db struct {
		Tables json.RawMessage `json:"tables"`
	}
	if err := json.Unmarshal(dbRaw, &db); err != nil {
		return nil, errors.ProtocolMismatch(PathStructure, "a database object")
	}

	// tables arrive either as a list or keyed by table name
	var list []TableStructure
	if err := json.Unmarshal(db.Tables, &list); err == nil {
		return list, nil
	}
	var keyed map[string]TableStructure
	if err := json.Unmarshal(db.Tables, &keyed); err != nil {
		return nil, errors.ProtocolMismatch(PathStructure, "tables as a list or object")
	}
	names := make([]string, 0, len(keyed))
	for name := range keyed {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t := keyed[name]
		if t.Name == "" {
			t.Name = name
		}
		list = append(list, t)
	}
	return list, nil
}

func decodeObject(body []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("null document")
	}
	return fields, nil
}

func toInt(v any) (int64, bool) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, true
		}
		if f, err := n.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64); err == nil {
			return i, true
		}
	case float64:
		return int64(n), true
	}
	return 0, false
}

func stringify(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case nil:
		return ""
	default:
		return fmt.Sprint(s)
	}
}
