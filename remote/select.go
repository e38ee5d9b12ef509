package remote

import (
	"bytes"
	"context"
	"encoding/json"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
)

// Row is one result row keyed by column name. Numbers decode as json.Number
// so identifiers keep their exact textual form.
type Row map[string]any

// Text returns the column value as text, and false when the column is
// absent or null.
func (r Row) Text(column string) (string, bool) {
	v, ok := r[column]
	if !ok || v == nil {
		return "", false
	}
	return stringify(v), true
}

// Strings returns a list-valued column as text. A scalar becomes a
// one-element list; absent or null yields nil.
func (r Row) Strings(column string) []string {
	v, ok := r[column]
	if !ok || v == nil {
		return nil
	}
	list, isList := v.([]any)
	if !isList {
		return []string{stringify(v)}
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if item == nil {
			continue
		}
		out = append(out, stringify(item))
	}
	return out
}

// Filter operators understood by the service.
const (
	OpEqual    = "="
	OpNotEqual = "!="
	OpLike     = "LIKE"
	OpIn       = "IN"
)

// Filter restricts a select to rows where Column Operator Value holds.
type Filter struct {
	Column   string `json:"column"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

// Eq is shorthand for an equality filter.
func Eq(column string, value any) Filter {
	return Filter{Column: column, Operator: OpEqual, Value: value}
}

// Sort directions.
const (
	Asc  = "ASC"
	Desc = "DESC"
)

// OrderBy is one sort key.
type OrderBy struct {
	Column    string `json:"column"`
	Direction string `json:"direction"`
}

// SelectRequest describes a paged select. Empty Columns selects all columns.
type SelectRequest struct {
	Table   string
	Columns []string
	Filters []Filter
	OrderBy []OrderBy
	Limit   int
	Offset  int
}

// Pagination is the service's paging block.
type Pagination struct {
	Limit      int64 `json:"limit"`
	Offset     int64 `json:"offset"`
	TotalCount int64 `json:"total_count"`
	HasMore    bool  `json:"has_more"`
}

// Page is one select result.
type Page struct {
	Rows       []Row
	Pagination Pagination
}

// HasMore reports whether another page follows.
func (p Page) HasMore() bool { return p.Pagination.HasMore }

type columnRef struct {
	Column string `json:"column"`
}

func (c *Client) selectPayload(req SelectRequest) map[string]any {
	limit := req.Limit
	if limit <= 0 {
		limit = c.cfg.PageSize
	}
	payload := map[string]any{
		"database": c.cfg.Database,
		"table":    req.Table,
		"limit":    limit,
		"offset":   req.Offset,
	}
	if len(req.Columns) > 0 {
		cols := make([]columnRef, len(req.Columns))
		for i, name := range req.Columns {
			cols[i] = columnRef{Column: name}
		}
		payload["columns"] = cols
	}
	if len(req.Filters) > 0 {
		payload["filters"] = req.Filters
	}
	if len(req.OrderBy) > 0 {
		payload["order_by"] = req.OrderBy
	}
	return payload
}

// SelectPage fetches one page.
func (c *Client) SelectPage(ctx context.Context, req SelectRequest) (Page, error) {
	body, err := c.Post(ctx, PathSelect, c.selectPayload(req))
	if err != nil {
		return Page{}, err
	}

	var resp struct {
		Data       *[]json.RawMessage `json:"data"`
		Pagination *json.RawMessage   `json:"pagination"`
	}
	if err := json.Unmarshal(body, &resp); err != nil || resp.Data == nil || resp.Pagination == nil {
		return Page{}, errors.WithDetailf(
			errors.ProtocolMismatch(PathSelect, `{"data": [...], "pagination": {...}}`),
			"table: %s", req.Table)
	}

	var page Page
	if err := decodePagination(*resp.Pagination, &page.Pagination); err != nil {
		return Page{}, errors.WithDetailf(
			errors.ProtocolMismatch(PathSelect, "a pagination object"),
			"table: %s", req.Table)
	}
	page.Rows = make([]Row, 0, len(*resp.Data))
	for _, raw := range *resp.Data {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		var row Row
		if err := dec.Decode(&row); err != nil {
			return Page{}, errors.WithDetailf(
				errors.ProtocolMismatch(PathSelect, "rows as objects"),
				"table: %s", req.Table)
		}
		page.Rows = append(page.Rows, row)
	}
	return page, nil
}

// decodePagination tolerates numeric fields sent as strings or floats.
func decodePagination(raw json.RawMessage, p *Pagination) error {
	fields, err := decodeObject(raw)
	if err != nil {
		return err
	}
	p.Limit, _ = toInt(fields["limit"])
	p.Offset, _ = toInt(fields["offset"])
	p.TotalCount, _ = toInt(fields["total_count"])
	p.HasMore, _ = fields["has_more"].(bool)
	return nil
}

// SelectAll pages through every matching row, advancing the offset by the
// size of each page until the service reports no more rows or returns an
// empty page. Pass OrderBy when page order must be stable.
func (c *Client) SelectAll(ctx context.Context, req SelectRequest) ([]Row, error) {
	var rows []Row
	req.Offset = 0
	for {
		page, err := c.SelectPage(ctx, req)
		if err != nil {
			return nil, err
		}
		rows = append(rows, page.Rows...)
		c.logger.Debugw("Fetched page",
			logger.FieldTable, req.Table,
			logger.FieldOffset, req.Offset,
			logger.FieldRows, len(page.Rows))
		if !page.HasMore() || len(page.Rows) == 0 {
			return rows, nil
		}
		req.Offset += len(page.Rows)
	}
}

// SelectFirst returns the first matching row, or nil when none match.
func (c *Client) SelectFirst(ctx context.Context, table string, columns []string, filters ...Filter) (Row, error) {
	page, err := c.SelectPage(ctx, SelectRequest{
		Table:   table,
		Columns: columns,
		Filters: filters,
		Limit:   1,
	})
	if err != nil {
		return nil, err
	}
	if len(page.Rows) == 0 {
		return nil, nil
	}
	return page.Rows[0], nil
}

// IDColumn is the conventional primary key column of table.
func IDColumn(table string) string { return table + "_id" }

// NameColumn is the conventional display-name column of table.
func NameColumn(table string) string { return table + "_name" }

// SelectByID returns the row of table whose <table>_id equals id.
func (c *Client) SelectByID(ctx context.Context, table, id string, columns []string) (Row, error) {
	return c.SelectFirst(ctx, table, columns, Eq(IDColumn(table), id))
}
