package lineage

import (
	"context"
	"sync"

	"github.com/teranos/lineage/errors"
	"github.com/teranos/lineage/remote"
	"github.com/teranos/lineage/token"
)

// NameResolver maps human-readable object names to ids and back through the
// <table>_id and <table>_name columns. Lookups are memoized.
type NameResolver struct {
	rows RowFetcher

	mu       sync.Mutex
	checked  map[string]error
	nameToID map[[2]string]string
	idToName map[[2]string]string
}

// NewNameResolver returns a resolver reading through rows.
func NewNameResolver(rows RowFetcher) *NameResolver {
	return &NameResolver{
		rows:     rows,
		checked:  make(map[string]error),
		nameToID: make(map[[2]string]string),
		idToName: make(map[[2]string]string),
	}
}

// checkTable verifies table has both mapping columns. Remote failures are
// not memoized.
func (r *NameResolver) checkTable(ctx context.Context, table string) error {
	r.mu.Lock()
	err, ok := r.checked[table]
	r.mu.Unlock()
	if ok {
		return err
	}

	cols, err := r.rows.ColumnNames(ctx, table)
	if err != nil {
		return err
	}
	idCol, nameCol := remote.IDColumn(table), remote.NameColumn(table)
	var hasID, hasName bool
	for _, c := range cols {
		hasID = hasID || c == idCol
		hasName = hasName || c == nameCol
	}
	if !hasID || !hasName {
		err = errors.WithHintf(
			errors.Wrapf(errors.ErrNotFound, "table %s has no %s or %s column", table, idCol, nameCol),
			"use a table with name mappings; see 'lineage tables'")
	}

	r.mu.Lock()
	r.checked[table] = err
	r.mu.Unlock()
	return err
}

// NameToID returns the id of the object called name in table.
func (r *NameResolver) NameToID(ctx context.Context, table, name string) (string, error) {
	key := [2]string{table, name}
	r.mu.Lock()
	id, ok := r.nameToID[key]
	r.mu.Unlock()
	if ok {
		return id, nil
	}

	if err := r.checkTable(ctx, table); err != nil {
		return "", err
	}
	idCol := remote.IDColumn(table)
	row, err := r.rows.SelectFirst(ctx, table, []string{idCol}, remote.Eq(remote.NameColumn(table), name))
	if err != nil {
		return "", err
	}
	if row == nil {
		return "", errors.Wrapf(errors.ErrNotFound, "object name %q not found in table %s", name, table)
	}
	id, ok = row.Text(idCol)
	if !ok || id == "" {
		return "", errors.Wrapf(errors.ErrNotFound, "object name %q returned no id in table %s", name, table)
	}

	r.mu.Lock()
	r.nameToID[key] = id
	r.mu.Unlock()
	return id, nil
}

// IDToName returns the name of object id in table, and false when no row
// or no name exists.
func (r *NameResolver) IDToName(ctx context.Context, table, id string) (string, bool, error) {
	key := [2]string{table, id}
	r.mu.Lock()
	name, ok := r.idToName[key]
	r.mu.Unlock()
	if ok {
		return name, true, nil
	}

	if err := r.checkTable(ctx, table); err != nil {
		return "", false, err
	}
	nameCol := remote.NameColumn(table)
	row, err := r.rows.SelectFirst(ctx, table, []string{nameCol}, remote.Eq(remote.IDColumn(table), id))
	if err != nil || row == nil {
		return "", false, err
	}
	name, ok = row.Text(nameCol)
	if !ok {
		return "", false, nil
	}

	r.mu.Lock()
	r.idToName[key] = name
	r.mu.Unlock()
	return name, true, nil
}

// Token resolves a table and object name to its token.
func (r *NameResolver) Token(ctx context.Context, table, name string) (token.Token, error) {
	id, err := r.NameToID(ctx, table, name)
	if err != nil {
		return token.Token{}, err
	}
	return token.New(table, id), nil
}

// Label renders t with its name when one can be found, and as the bare
// token otherwise. Lookup failures are not reported.
func (r *NameResolver) Label(ctx context.Context, t token.Token) string {
	name, ok, err := r.IDToName(ctx, t.Collection, t.ID)
	if err != nil || !ok || name == "" {
		return t.String()
	}
	return t.String() + "  (" + name + ")"
}
