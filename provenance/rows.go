package provenance

import (
	"context"
	"strings"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
)

// OutputTable links each process to its outputs, one "<collection>_id"
// column per collection.
const OutputTable = "sys_process_output"

// ProcessRow is a sys_process row as stored, references undecoded.
type ProcessRow struct {
	ID          string   `json:"sys_process_id"`
	Name        string   `json:"process_name,omitempty"`
	PerformedBy string   `json:"performed_by,omitempty"`
	Protocols   []string `json:"protocols,omitempty"`
	CompletedAt string   `json:"completed_at,omitempty"`
	Outputs     []string `json:"output_objects"`
}

// RowsProducing returns the sys_process rows with an output reference
// ending in ":"+id. The type half of the reference is not checked, so rows
// whose references no collection maps to are reported too.
func (s *RemoteSource) RowsProducing(ctx context.Context, id string) ([]ProcessRow, MetadataColumns, error) {
	rows, meta, err := s.processRows(ctx)
	if err != nil {
		return nil, MetadataColumns{}, err
	}
	return MatchProducing(rows, meta, id), meta, nil
}

// MatchProducing filters rows to those listing an output ending in ":"+id.
func MatchProducing(rows []remote.Row, meta MetadataColumns, id string) []ProcessRow {
	suffix := token.Separator + id
	var out []ProcessRow
	for _, row := range rows {
		outputs := row.Strings(ColumnOutputRefs)
		match := false
		for _, ref := range outputs {
			if strings.HasSuffix(ref, suffix) {
				match = true
				break
			}
		}
		if !match {
			continue
		}

		pr := ProcessRow{Outputs: outputs}
		pr.ID, _ = row.Text(ColumnProcessID)
		if meta.ProcessName != "" {
			pr.Name, _ = row.Text(meta.ProcessName)
		}
		if meta.PerformedBy != "" {
			pr.PerformedBy, _ = row.Text(meta.PerformedBy)
		}
		if meta.Protocol != "" {
			pr.Protocols = NormalizeProtocols(row[meta.Protocol])
		}
		if meta.CompletedAt != "" {
			pr.CompletedAt, _ = row.Text(meta.CompletedAt)
		}
		out = append(out, pr)
	}
	return out
}

// OutputRows selects the sys_process_output rows whose "<collection>_id"
// column holds t's id. The projection is sys_process_id followed by every
// other *_id column in schema order.
func OutputRows(ctx context.Context, client *remote.Client, t token.Token) ([]string, []remote.Row, error) {
	schema, err := client.ColumnNames(ctx, OutputTable)
	if err != nil {
		return nil, nil, errors.Wrapf(err, "describe %s", OutputTable)
	}

	idColumn := remote.IDColumn(t.Collection)
	columns := []string{ColumnProcessID}
	found := false
	for _, col := range schema {
		if col == idColumn {
			found = true
		}
		if col != ColumnProcessID && strings.HasSuffix(col, "_id") {
			columns = append(columns, col)
		}
	}
	if !found {
		return nil, nil, errors.WithHintf(
			errors.Wrapf(errors.ErrNotFound, "column %s not in %s", idColumn, OutputTable),
			"%s has no outputs recorded by collection; check the table name", t.Collection)
	}

	rows, err := client.SelectAll(ctx, remote.SelectRequest{
		Table:   OutputTable,
		Columns: columns,
		Filters: []remote.Filter{remote.Eq(idColumn, t.ID)},
	})
	if err != nil {
		return nil, nil, errors.Wrapf(err, "load %s", OutputTable)
	}
	return columns, rows, nil
}
