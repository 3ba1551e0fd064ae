//go:build cgo

// Package sqlstore implements the element store over a Dolt database
// via database/sql. Dolt's MySQL wire protocol lets the same schema
// also be reached via github.com/go-sql-driver/mysql against a dolt
// sql-server, for federated deployments; this package only wires the
// embedded path, since the replay tool runs single-writer.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	embedded "github.com/dolthub/driver"
	_ "github.com/go-sql-driver/mysql" // registers the "mysql" driver for server-mode DSNs

	"github.com/posm-tools/replay-core/internal/osm"
	"github.com/posm-tools/replay-core/internal/store"
)

// Store is a Dolt-backed store.Store. The zero value is not usable;
// construct with Open.
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Config configures the embedded Dolt database directory.
type Config struct {
	// Path is the directory the embedded engine stores its data in.
	Path string
	// Database is the Dolt database name within Path.
	Database string
}

// Open creates (if necessary) and opens the embedded Dolt database at
// cfg.Path, applying the schema and returning a ready Store.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	absPath, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: resolve path: %w", err)
	}
	dsn := fmt.Sprintf("file://%s?commitname=replay-core&commitemail=replay-core@localhost&database=%s",
		absPath, cfg.Database)

	dsnCfg, err := embedded.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: parse dsn: %w", err)
	}
	connector, err := embedded.NewConnector(dsnCfg)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open connector: %w", err)
	}
	db := sql.OpenDB(connector)
	db.SetMaxOpenConns(1) // the embedded engine is single-connection

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle, including the
// embedded engine's filesystem lock.
func (s *Store) Close() error {
	return s.db.Close()
}

// Insert implements store.Store.
func (s *Store) Insert(ctx context.Context, el store.TrackedElement, upsert bool) error {
	if !upsert {
		var exists int
		err := s.db.QueryRowContext(ctx,
			`SELECT 1 FROM tracked_elements WHERE kind = ? AND id = ?`,
			el.Key.Kind, el.Key.ID).Scan(&exists)
		if err == nil {
			return store.ErrExists
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("sqlstore: check existence of %s: %w", el.Key, err)
		}
	}

	originalXML, err := encodeElement(el.OriginalSnapshot)
	if err != nil {
		return err
	}
	localXML, err := encodeElement(el.LocalSnapshot)
	if err != nil {
		return err
	}
	upstreamXML, err := encodeElement(el.UpstreamSnapshot)
	if err != nil {
		return err
	}
	resolvedXML, err := encodeElement(el.ResolvedSnapshot)
	if err != nil {
		return err
	}

	var referredByKind, referredByID any
	if el.ReferredBy != nil {
		referredByKind = string(el.ReferredBy.Kind)
		referredByID = el.ReferredBy.ID
	}

	_, err = s.db.ExecContext(ctx, `
		REPLACE INTO tracked_elements
			(kind, id, local_state, status, has_original, has_local, has_upstream,
			 original_xml, local_xml, upstream_xml, referred_by_kind, referred_by_id,
			 resolved_xml, resolved_from)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		el.Key.Kind, el.Key.ID, el.LocalState, el.Status,
		el.HasOriginal, el.HasLocal, el.HasUpstream,
		originalXML, localXML, upstreamXML, referredByKind, referredByID,
		resolvedXML, string(el.ResolvedFrom),
	)
	if err != nil {
		return fmt.Errorf("sqlstore: insert %s: %w", el.Key, err)
	}
	return nil
}

// Get implements store.Store.
func (s *Store) Get(ctx context.Context, key store.Key) (store.TrackedElement, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT local_state, status, has_original, has_local, has_upstream,
		       original_xml, local_xml, upstream_xml, referred_by_kind, referred_by_id,
		       resolved_xml, resolved_from
		FROM tracked_elements WHERE kind = ? AND id = ?`, key.Kind, key.ID)
	return s.scanRow(key, row)
}

func (s *Store) scanRow(key store.Key, row *sql.Row) (store.TrackedElement, error) {
	var (
		localState, status                 string
		hasOriginal, hasLocal, hasUpstream bool
		originalXML, localXML, upstreamXML string
		referredByKind                     sql.NullString
		referredByID                       sql.NullInt64
		resolvedXML, resolvedFrom          string
	)
	err := row.Scan(&localState, &status, &hasOriginal, &hasLocal, &hasUpstream,
		&originalXML, &localXML, &upstreamXML, &referredByKind, &referredByID,
		&resolvedXML, &resolvedFrom)
	if err == sql.ErrNoRows {
		return store.TrackedElement{}, store.ErrNotFound
	}
	if err != nil {
		return store.TrackedElement{}, fmt.Errorf("sqlstore: scan %s: %w", key, err)
	}

	el := store.TrackedElement{
		Key:          key,
		LocalState:   store.LocalState(localState),
		Status:       store.Status(status),
		HasOriginal:  hasOriginal,
		HasLocal:     hasLocal,
		HasUpstream:  hasUpstream,
		ResolvedFrom: store.ResolvedFrom(resolvedFrom),
	}
	if el.OriginalSnapshot, err = decodeElement(key.Kind, originalXML); err != nil {
		return store.TrackedElement{}, err
	}
	if el.LocalSnapshot, err = decodeElement(key.Kind, localXML); err != nil {
		return store.TrackedElement{}, err
	}
	if el.UpstreamSnapshot, err = decodeElement(key.Kind, upstreamXML); err != nil {
		return store.TrackedElement{}, err
	}
	if resolvedXML != "" {
		if el.ResolvedSnapshot, err = decodeElement(key.Kind, resolvedXML); err != nil {
			return store.TrackedElement{}, err
		}
		el.HasResolved = true
	}
	if referredByKind.Valid {
		el.ReferredBy = &store.Key{Kind: osm.Kind(referredByKind.String), ID: referredByID.Int64}
	}
	return el, nil
}

// UpdateResolution implements store.Store, cascading to
// res.ConflictingNodes in the same call.
func (s *Store) UpdateResolution(ctx context.Context, key store.Key, res store.Resolution) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin update_resolution: %w", err)
	}
	defer tx.Rollback()

	resolvedXML, err := encodeElement(res.ResolvedSnapshot)
	if err != nil {
		return err
	}
	status, err := s.resolutionStatus(ctx, tx, key, res.ConflictingNodes)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, `
		UPDATE tracked_elements
		SET resolved_xml = ?, resolved_from = ?, status = ?
		WHERE kind = ? AND id = ?`,
		resolvedXML, string(res.ResolvedFrom), string(status), key.Kind, key.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: update_resolution %s: %w", key, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	for childKey, snapshot := range res.ConflictingNodes {
		childXML, err := encodeElement(snapshot)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE tracked_elements
			SET resolved_xml = ?, resolved_from = ?, status = ?
			WHERE kind = ? AND id = ?`,
			childXML, string(res.ResolvedFrom), string(store.StatusResolved),
			childKey.Kind, childKey.ID,
		); err != nil {
			return fmt.Errorf("sqlstore: cascade resolution to %s: %w", childKey, err)
		}
	}
	return tx.Commit()
}

// resolutionStatus mirrors memorystore's rule: resolved unless some
// child referring el as its canonical parent was left out of cascaded.
func (s *Store) resolutionStatus(ctx context.Context, tx *sql.Tx, key store.Key, cascaded map[store.Key]osm.Element) (store.Status, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT kind, id FROM tracked_elements
		WHERE referred_by_kind = ? AND referred_by_id = ?`, key.Kind, key.ID)
	if err != nil {
		return "", fmt.Errorf("sqlstore: resolution_status children of %s: %w", key, err)
	}
	defer rows.Close()

	for rows.Next() {
		var kind string
		var id int64
		if err := rows.Scan(&kind, &id); err != nil {
			return "", fmt.Errorf("sqlstore: scan child key: %w", err)
		}
		childKey := store.Key{Kind: osm.Kind(kind), ID: id}
		if _, ok := cascaded[childKey]; !ok {
			return store.StatusPartiallyResolved, nil
		}
	}
	return store.StatusResolved, rows.Err()
}

// ResetElement implements store.Store.
func (s *Store) ResetElement(ctx context.Context, key store.Key) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlstore: begin reset_element: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE tracked_elements
		SET resolved_xml = '', resolved_from = '', status = ?
		WHERE kind = ? AND id = ?`, string(store.StatusUnresolved), key.Kind, key.ID)
	if err != nil {
		return fmt.Errorf("sqlstore: reset %s: %w", key, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return store.ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE tracked_elements
		SET resolved_xml = '', resolved_from = '', status = ?
		WHERE referred_by_kind = ? AND referred_by_id = ?`,
		string(store.StatusUnresolved), key.Kind, key.ID,
	); err != nil {
		return fmt.Errorf("sqlstore: reset children of %s: %w", key, err)
	}
	return tx.Commit()
}

// Clear implements store.Store.
func (s *Store) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM tracked_elements`); err != nil {
		return fmt.Errorf("sqlstore: clear: %w", err)
	}
	return nil
}

// Query implements store.Store.
func (s *Store) Query(ctx context.Context, filter store.QueryFilter) ([]store.TrackedElement, error) {
	q := `SELECT kind, id FROM tracked_elements WHERE 1=1`
	var args []any
	if filter.Kind != "" {
		q += ` AND kind = ?`
		args = append(args, filter.Kind)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: query: %w", err)
	}
	defer rows.Close()

	var keys []store.Key
	for rows.Next() {
		var kind string
		var id int64
		if err := rows.Scan(&kind, &id); err != nil {
			return nil, fmt.Errorf("sqlstore: scan query key: %w", err)
		}
		keys = append(keys, store.Key{Kind: osm.Kind(kind), ID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []store.TrackedElement
	for _, key := range keys {
		el, err := s.Get(ctx, key)
		if err != nil {
			return nil, err
		}
		if s.matches(ctx, el, filter.Query) {
			out = append(out, el)
		}
	}
	return out, nil
}

// matches reimplements memorystore's query predicate over the
// database-backed element, including the untagged-node visibility rule.
func (s *Store) matches(ctx context.Context, el store.TrackedElement, query store.QueryKind) bool {
	switch query {
	case store.QueryAll:
		return true
	case store.QueryAdded:
		return el.LocalState == store.StateAdded
	case store.QueryReferring:
		return el.LocalState == store.StateReferring
	case store.QueryConflicting:
		if el.Status == store.StatusResolved {
			return false
		}
		if el.LocalState == store.StateConflicting {
			return s.conflictingNodeVisible(el)
		}
		if el.LocalState == store.StateReferring {
			return !s.referringParentResolved(ctx, el)
		}
		return false
	case store.QueryResolved:
		if el.Status != store.StatusResolved {
			return false
		}
		if el.LocalState == store.StateConflicting {
			return s.conflictingNodeVisible(el)
		}
		if el.LocalState == store.StateReferring {
			return s.referringParentResolved(ctx, el)
		}
		return false
	case store.QueryPartiallyResolved:
		if el.LocalState == store.StateConflicting && !s.conflictingNodeVisible(el) {
			return false
		}
		return el.Status == store.StatusPartiallyResolved
	default:
		return false
	}
}

func (s *Store) conflictingNodeVisible(el store.TrackedElement) bool {
	if el.Key.Kind != osm.KindNode {
		return true
	}
	if el.HasLocal && len(el.LocalSnapshot.Tags()) > 0 {
		return true
	}
	if el.HasUpstream && len(el.UpstreamSnapshot.Tags()) > 0 {
		return true
	}
	return false
}

// referringParentResolved reports whether every conflicting node naming
// el (a referring way/relation) as its canonical parent has been
// resolved. The referring element surfaces and retires with its
// children, mirroring memorystore's rule.
func (s *Store) referringParentResolved(ctx context.Context, el store.TrackedElement) bool {
	rows, err := s.db.QueryContext(ctx, `
		SELECT status FROM tracked_elements
		WHERE referred_by_kind = ? AND referred_by_id = ?`, el.Key.Kind, el.Key.ID)
	if err != nil {
		return false
	}
	defer rows.Close()

	resolvedAny := false
	for rows.Next() {
		var status string
		if err := rows.Scan(&status); err != nil {
			return false
		}
		resolvedAny = true
		if store.Status(status) != store.StatusResolved {
			return false
		}
	}
	return resolvedAny && rows.Err() == nil
}
