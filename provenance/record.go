// Package provenance turns sys_process rows into an in-memory bidirectional
// index: which processes produced an object, and which consumed it.
package provenance

import (
	"strings"

	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
)

// Source relation and fixed columns.
const (
	ProcessTable     = "sys_process"
	ColumnProcessID  = "sys_process_id"
	ColumnInputRefs  = "input_objects"
	ColumnOutputRefs = "output_objects"
)

// ProcessRecord is one transformation event. Immutable once loaded.
type ProcessRecord struct {
	ID          string        `json:"id"`
	Inputs      []token.Token `json:"inputs"`
	Outputs     []token.Token `json:"outputs"`
	Name        string        `json:"name,omitempty"`
	PerformedBy string        `json:"performed_by,omitempty"`
	Protocols   []string      `json:"protocols,omitempty"`
	CompletedAt string        `json:"completed_at,omitempty"`
}

// MetadataColumns names the optional descriptive columns of sys_process.
// An empty name means the column is absent and the field stays empty.
type MetadataColumns struct {
	ProcessName string `json:"process_name,omitempty"`
	PerformedBy string `json:"performed_by,omitempty"`
	Protocol    string `json:"protocol,omitempty"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// DetectMetadataColumns picks, in schema order, the first column matching
// each descriptive field.
func DetectMetadataColumns(columns []string) MetadataColumns {
	first := func(match func(string) bool) string {
		for _, col := range columns {
			if match(strings.ToLower(col)) {
				return col
			}
		}
		return ""
	}
	return MetadataColumns{
		ProcessName: first(func(c string) bool {
			return strings.Contains(c, "process") && strings.Contains(c, "sys_oterm_name")
		}),
		PerformedBy: first(func(c string) bool {
			return strings.Contains(c, "person") && strings.Contains(c, "sys_oterm_name")
		}),
		Protocol:    first(func(c string) bool { return strings.Contains(c, "protocol") }),
		CompletedAt: first(func(c string) bool { return strings.Contains(c, "date_end") }),
	}
}

// SelectColumns is the projection needed to build records.
func (m MetadataColumns) SelectColumns() []string {
	cols := []string{ColumnProcessID, ColumnInputRefs, ColumnOutputRefs}
	for _, c := range []string{m.ProcessName, m.PerformedBy, m.Protocol, m.CompletedAt} {
		if c == "" {
			continue
		}
		dup := false
		for _, have := range cols {
			if have == c {
				dup = true
				break
			}
		}
		if !dup {
			cols = append(cols, c)
		}
	}
	return cols
}

// maxUnmapped bounds the references DecodeStats keeps for reporting.
const maxUnmapped = 20

// DecodeStats counts what DecodeRows dropped. Unmapped holds the first
// skipped references.
type DecodeStats struct {
	Rows        int      `json:"rows"`
	Records     int      `json:"records"`
	MissingID   int      `json:"missing_id"`
	SkippedRefs int      `json:"skipped_refs"`
	Unmapped    []string `json:"unmapped,omitempty"`
}

func (s *DecodeStats) skip(refs []string) {
	s.SkippedRefs += len(refs)
	for _, ref := range refs {
		if len(s.Unmapped) >= maxUnmapped {
			return
		}
		s.Unmapped = append(s.Unmapped, ref)
	}
}

// DecodeRows converts sys_process rows into records. Rows without a process
// id are dropped; references the decoder cannot map are skipped.
func DecodeRows(rows []remote.Row, meta MetadataColumns, decoder *token.Decoder) ([]ProcessRecord, DecodeStats) {
	stats := DecodeStats{Rows: len(rows)}
	records := make([]ProcessRecord, 0, len(rows))
	for _, row := range rows {
		id, ok := row.Text(ColumnProcessID)
		if !ok || id == "" {
			stats.MissingID++
			continue
		}
		inputs, skippedIn := decoder.DecodeAll(row.Strings(ColumnInputRefs))
		outputs, skippedOut := decoder.DecodeAll(row.Strings(ColumnOutputRefs))
		stats.skip(skippedIn)
		stats.skip(skippedOut)

		rec := ProcessRecord{
			ID:      id,
			Inputs:  inputs,
			Outputs: outputs,
		}
		if meta.ProcessName != "" {
			rec.Name, _ = row.Text(meta.ProcessName)
		}
		if meta.PerformedBy != "" {
			rec.PerformedBy, _ = row.Text(meta.PerformedBy)
		}
		if meta.Protocol != "" {
			rec.Protocols = NormalizeProtocols(row[meta.Protocol])
		}
		if meta.CompletedAt != "" {
			rec.CompletedAt, _ = row.Text(meta.CompletedAt)
		}
		records = append(records, rec)
	}
	stats.Records = len(records)
	return records, stats
}

// NormalizeProtocols accepts a list or a comma-separated string and returns
// the trimmed, non-empty protocol names.
func NormalizeProtocols(v any) []string {
	var parts []string
	switch p := v.(type) {
	case nil:
		return nil
	case []any:
		for _, item := range p {
			if item == nil {
				continue
			}
			parts = append(parts, remote.Row{"v": item}.Strings("v")...)
		}
	case []string:
		parts = p
	case string:
		parts = strings.Split(p, ",")
	default:
		parts = remote.Row{"v": p}.Strings("v")
	}

	var out []string
	for _, part := range parts {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, s)
		}
	}
	return out
}
