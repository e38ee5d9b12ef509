package provenance

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
)

// RecordSource yields every process record of a database.
type RecordSource interface {
	LoadRecords(ctx context.Context) ([]ProcessRecord, error)
}

// StaticSource serves a fixed record list.
type StaticSource []ProcessRecord

// LoadRecords implements RecordSource.
func (s StaticSource) LoadRecords(context.Context) ([]ProcessRecord, error) {
	return s, nil
}

// RemoteSource reads sys_process through the remote table service.
type RemoteSource struct {
	client  *remote.Client
	aliases map[string]string
	logger  *zap.SugaredLogger
}

// NewRemoteSource wraps client. Nil aliases selects token.DefaultAliases.
func NewRemoteSource(client *remote.Client, aliases map[string]string, l *zap.SugaredLogger) *RemoteSource {
	return &RemoteSource{
		client:  client,
		aliases: aliases,
		logger:  logger.Named(l, "provenance"),
	}
}

// LoadRecords discovers the lineage tables, inspects the sys_process
// schema and pages through every row, decoding references into tokens.
func (s *RemoteSource) LoadRecords(ctx context.Context) ([]ProcessRecord, error) {
	start := time.Now()

	tables, err := s.client.DiscoverTables(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "discover tables")
	}
	decoder := token.NewDecoder(tables, s.aliases)

	rows, meta, err := s.processRows(ctx)
	if err != nil {
		return nil, err
	}

	records, stats := DecodeRows(rows, meta, decoder)
	s.logger.Infow("Loaded process records",
		logger.FieldTable, ProcessTable,
		logger.FieldRows, stats.Rows,
		logger.FieldRecords, stats.Records,
		"skipped_refs", stats.SkippedRefs,
		"missing_id", stats.MissingID,
		logger.FieldDurationMS, time.Since(start).Milliseconds())
	if stats.SkippedRefs > 0 && logger.Enabled(logger.OutputSkippedRefs) {
		s.logger.Debugw("Unmapped object references",
			logger.FieldCategory, logger.CategoryName(logger.OutputSkippedRefs),
			logger.FieldCount, stats.SkippedRefs,
			"examples", stats.Unmapped)
	}
	return records, nil
}

// processRows pages through sys_process, selecting the reference columns
// and whichever metadata columns the schema has.
func (s *RemoteSource) processRows(ctx context.Context) ([]remote.Row, MetadataColumns, error) {
	schema, err := s.client.ColumnNames(ctx, ProcessTable)
	if err != nil {
		return nil, MetadataColumns{}, errors.Wrapf(err, "describe %s", ProcessTable)
	}
	meta := DetectMetadataColumns(schema)

	req := remote.SelectRequest{
		Table:   ProcessTable,
		Columns: meta.SelectColumns(),
	}
	for _, col := range schema {
		if col == ColumnProcessID {
			req.OrderBy = []remote.OrderBy{{Column: ColumnProcessID, Direction: remote.Asc}}
			break
		}
	}

	rows, err := s.client.SelectAll(ctx, req)
	if err != nil {
		return nil, MetadataColumns{}, errors.Wrapf(err, "load %s", ProcessTable)
	}
	return rows, meta, nil
}
