package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/logger"
	"github.com/teranos/lineage/provenance"
	"github.com/teranos/lineage/token"
)

// Snapshot describes one stored copy of a database's process records.
type Snapshot struct {
	ID          int64     `json:"id"`
	Database    string    `json:"database"`
	BaseURL     string    `json:"base_url"`
	CreatedAt   time.Time `json:"created_at"`
	RecordCount int       `json:"record_count"`
}

const (
	roleInput  = "input"
	roleOutput = "output"
)

// Mirror reads and writes process snapshots.
type Mirror struct {
	db     *sql.DB
	now    func() time.Time
	logger *zap.SugaredLogger
}

// MirrorOption configures a Mirror.
type MirrorOption func(*Mirror)

// WithClock replaces time.Now for snapshot timestamps.
func WithClock(now func() time.Time) MirrorOption {
	return func(m *Mirror) { m.now = now }
}

// NewMirror wraps a migrated database.
func NewMirror(db *sql.DB, l *zap.SugaredLogger, opts ...MirrorOption) *Mirror {
	m := &Mirror{db: db, now: time.Now, logger: logger.Named(l, "mirror")}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store writes records as a new snapshot of database in one transaction.
func (m *Mirror) Store(ctx context.Context, database, baseURL string, records []provenance.ProcessRecord) (Snapshot, error) {
	snap := Snapshot{
		Database:    database,
		BaseURL:     baseURL,
		CreatedAt:   m.now().UTC(),
		RecordCount: len(records),
	}

	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return Snapshot{}, errors.Wrap(err, "begin snapshot")
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO snapshots (database, base_url, created_at, record_count) VALUES (?, ?, ?, ?)`,
		snap.Database, snap.BaseURL, snap.CreatedAt.Format(time.RFC3339Nano), snap.RecordCount)
	if err != nil {
		_ = tx.Rollback()
		return Snapshot{}, errors.Wrap(err, "insert snapshot")
	}
	if snap.ID, err = res.LastInsertId(); err != nil {
		_ = tx.Rollback()
		return Snapshot{}, errors.Wrap(err, "snapshot id")
	}

	for seq, rec := range records {
		if err := insertRecord(ctx, tx, snap.ID, seq, rec); err != nil {
			_ = tx.Rollback()
			return Snapshot{}, errors.Wrapf(err, "store process %s", rec.ID)
		}
	}

	if err := tx.Commit(); err != nil {
		return Snapshot{}, errors.Wrap(err, "commit snapshot")
	}

	m.logger.Infow("Stored snapshot",
		"snapshot", snap.ID,
		"database", database,
		logger.FieldRecords, len(records))
	return snap, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, snapshotID int64, seq int, rec provenance.ProcessRecord) error {
	protocols, err := json.Marshal(nonNil(rec.Protocols))
	if err != nil {
		return errors.Wrap(err, "encode protocols")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO processes (snapshot_id, seq, process_id, name, performed_by, protocols, completed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		snapshotID, seq, rec.ID, rec.Name, rec.PerformedBy, string(protocols), rec.CompletedAt); err != nil {
		return errors.Wrap(err, "insert process")
	}

	insertObjects := func(role string, toks []token.Token) error {
		for pos, t := range toks {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO process_objects (snapshot_id, seq, role, position, collection, object_id)
				 VALUES (?, ?, ?, ?, ?, ?)`,
				snapshotID, seq, role, pos, t.Collection, t.ID); err != nil {
				return errors.Wrapf(err, "insert %s %s", role, t)
			}
		}
		return nil
	}
	if err := insertObjects(roleInput, rec.Inputs); err != nil {
		return err
	}
	return insertObjects(roleOutput, rec.Outputs)
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// Latest returns the newest snapshot of database.
func (m *Mirror) Latest(ctx context.Context, database string) (Snapshot, error) {
	row := m.db.QueryRowContext(ctx,
		`SELECT id, database, base_url, created_at, record_count
		 FROM snapshots WHERE database = ? ORDER BY id DESC LIMIT 1`, database)
	snap, err := scanSnapshot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, errors.WithHintf(
			errors.Wrapf(ErrNoSnapshot, "database %s", database),
			"run 'lineage mirror' to create one")
	}
	return snap, err
}

// Snapshots lists every snapshot, newest first.
func (m *Mirror) Snapshots(ctx context.Context) ([]Snapshot, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT id, database, base_url, created_at, record_count FROM snapshots ORDER BY id DESC`)
	if err != nil {
		return nil, errors.Wrap(err, "list snapshots")
	}
	defer rows.Close()

	var out []Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, errors.Wrap(rows.Err(), "list snapshots")
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(s scanner) (Snapshot, error) {
	var (
		snap    Snapshot
		created string
	)
	if err := s.Scan(&snap.ID, &snap.Database, &snap.BaseURL, &created, &snap.RecordCount); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Snapshot{}, err
		}
		return Snapshot{}, errors.Wrap(err, "scan snapshot")
	}
	t, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return Snapshot{}, errors.Wrapf(err, "snapshot %d has bad timestamp %q", snap.ID, created)
	}
	snap.CreatedAt = t
	return snap, nil
}

// Load returns the records of a snapshot in their stored order.
func (m *Mirror) Load(ctx context.Context, snapshotID int64) ([]provenance.ProcessRecord, error) {
	rows, err := m.db.QueryContext(ctx,
		`SELECT seq, process_id, name, performed_by, protocols, completed_at
		 FROM processes WHERE snapshot_id = ? ORDER BY seq`, snapshotID)
	if err != nil {
		return nil, errors.Wrap(err, "query processes")
	}

	var records []provenance.ProcessRecord
	bySeq := make(map[int]int)
	for rows.Next() {
		var (
			seq       int
			rec       provenance.ProcessRecord
			protocols string
		)
		if err := rows.Scan(&seq, &rec.ID, &rec.Name, &rec.PerformedBy, &protocols, &rec.CompletedAt); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "scan process")
		}
		if err := json.Unmarshal([]byte(protocols), &rec.Protocols); err != nil {
			rows.Close()
			return nil, errors.Wrapf(err, "process %s has bad protocols", rec.ID)
		}
		if len(rec.Protocols) == 0 {
			rec.Protocols = nil
		}
		bySeq[seq] = len(records)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, errors.Wrap(err, "read processes")
	}
	rows.Close()

	objects, err := m.db.QueryContext(ctx,
		`SELECT seq, role, collection, object_id
		 FROM process_objects WHERE snapshot_id = ? ORDER BY seq, role, position`, snapshotID)
	if err != nil {
		return nil, errors.Wrap(err, "query process objects")
	}
	defer objects.Close()

	for objects.Next() {
		var (
			seq                     int
			role, collection, ident string
		)
		if err := objects.Scan(&seq, &role, &collection, &ident); err != nil {
			return nil, errors.Wrap(err, "scan process object")
		}
		i, ok := bySeq[seq]
		if !ok {
			return nil, errors.Newf("snapshot %d: object row for missing process seq %d", snapshotID, seq)
		}
		t := token.New(collection, ident)
		if role == roleInput {
			records[i].Inputs = append(records[i].Inputs, t)
		} else {
			records[i].Outputs = append(records[i].Outputs, t)
		}
	}
	if err := objects.Err(); err != nil {
		return nil, errors.Wrap(err, "read process objects")
	}

	m.logger.Debugw("Loaded snapshot",
		"snapshot", snapshotID,
		logger.FieldRecords, len(records))
	return records, nil
}

// Prune deletes all but the newest keep snapshots of database and returns
// how many were removed.
func (m *Mirror) Prune(ctx context.Context, database string, keep int) (int, error) {
	if keep < 1 {
		return 0, errors.Wrapf(errors.ErrInvalidRequest, "keep must be at least 1, got %d", keep)
	}
	res, err := m.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE database = ? AND id NOT IN (
			SELECT id FROM snapshots WHERE database = ? ORDER BY id DESC LIMIT ?)`,
		database, database, keep)
	if err != nil {
		return 0, errors.Wrap(err, "prune snapshots")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "prune snapshots")
	}
	return int(n), nil
}

// Source is a provenance.RecordSource serving the newest snapshot of one
// database.
type Source struct {
	mirror   *Mirror
	database string
}

var _ provenance.RecordSource = (*Source)(nil)

// NewSource reads database's newest snapshot from m.
func NewSource(m *Mirror, database string) *Source {
	return &Source{mirror: m, database: database}
}

// LoadRecords implements provenance.RecordSource.
func (s *Source) LoadRecords(ctx context.Context) ([]provenance.ProcessRecord, error) {
	snap, err := s.mirror.Latest(ctx, s.database)
	if err != nil {
		return nil, err
	}
	records, err := s.mirror.Load(ctx, snap.ID)
	if err != nil {
		return nil, err
	}
	s.mirror.logger.Infow("Serving records from mirror",
		"snapshot", snap.ID,
		"created_at", snap.CreatedAt.Format(time.RFC3339),
		logger.FieldRecords, len(records))
	return records, nil
}
