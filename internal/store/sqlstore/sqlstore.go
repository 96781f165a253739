// Package sqlstore implements store.Store over database/sql. The sqlite and
// postgres packages supply the driver, schema and placeholder dialect.
//
// All constructs live in one table keyed by id, with a monotonically
// assigned seq column that fixes listing order. Every listing query orders
// by seq so results are identical across runs.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/roach88/catgraph/internal/construct"
	"github.com/roach88/catgraph/internal/store"
)

// maxBlindUpdateAttempts bounds retries of updates without IfVersion that
// lose a race against a concurrent writer.
const maxBlindUpdateAttempts = 16

// Dialect adapts the shared queries to one SQL engine.
type Dialect int

const (
	// QuestionMark uses ? placeholders (SQLite).
	QuestionMark Dialect = iota
	// Dollar uses $1, $2, ... placeholders (PostgreSQL).
	Dollar
)

// rebind rewrites ? placeholders for the dialect.
func (d Dialect) rebind(query string) string {
	if d != Dollar {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Store is a SQL-backed store.Store.
type Store struct {
	id      string
	db      *sql.DB
	dialect Dialect
	opts    store.Options
}

var _ store.Store = (*Store)(nil)

// New wraps an open database whose schema is already applied.
func New(db *sql.DB, id string, dialect Dialect, opts ...store.Option) *Store {
	return &Store{id: id, db: db, dialect: dialect, opts: store.ResolveOptions(opts...)}
}

// ID returns the store identifier.
func (s *Store) ID() string { return s.id }

// DB returns the underlying sql.DB.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

const selectColumns = `SELECT id, type, name, description, version, created_at, updated_at, data FROM constructs`

// Create inserts a new row.
func (s *Store) Create(ctx context.Context, t construct.Type, data construct.Data, opts store.CreateOptions) (*construct.Construct, error) {
	c, err := store.NewConstruct(s.id, s.opts.IDs.NewID(), t, data, opts, s.opts.Clock)
	if err != nil {
		return nil, err
	}
	blob, err := construct.EncodeData(c.Data)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", t, err)
	}

	_, err = s.db.ExecContext(ctx, s.dialect.rebind(`
		INSERT INTO constructs (id, type, name, description, version, created_at, updated_at, data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`),
		c.ID(),
		string(c.Type),
		c.Metadata.Name,
		c.Metadata.Description,
		c.Signature.Version,
		c.Metadata.CreatedAt.UnixMicro(),
		c.Metadata.UpdatedAt.UnixMicro(),
		string(blob),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", t, err)
	}
	return c, nil
}

// Read returns the construct or nil when absent.
func (s *Store) Read(ctx context.Context, id string) (*construct.Construct, error) {
	row := s.db.QueryRowContext(ctx, s.dialect.rebind(selectColumns+` WHERE id = ?`), id)
	c, err := s.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", id, err)
	}
	return c, nil
}

// Update writes a new version with a conditional UPDATE on the version
// column, so concurrent writers cannot both succeed from the same snapshot.
func (s *Store) Update(ctx context.Context, id string, data construct.Data, opts store.UpdateOptions) (*construct.Construct, error) {
	for attempt := 0; attempt < maxBlindUpdateAttempts; attempt++ {
		current, err := s.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		if current == nil {
			return nil, store.ErrNotFound
		}
		if data == nil || data.Kind() != current.Type {
			return nil, store.NewPayloadMismatch(current.Type, data)
		}
		if err := store.CheckVersion(current.Signature.Version, opts); err != nil {
			return nil, err
		}

		next := store.ApplyUpdate(current, data, opts, s.opts.Clock)
		blob, err := construct.EncodeData(next.Data)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", id, err)
		}

		res, err := s.db.ExecContext(ctx, s.dialect.rebind(`
			UPDATE constructs
			SET name = ?, description = ?, version = ?, updated_at = ?, data = ?
			WHERE id = ? AND version = ?
		`),
			next.Metadata.Name,
			next.Metadata.Description,
			next.Signature.Version,
			next.Metadata.UpdatedAt.UnixMicro(),
			string(blob),
			id,
			current.Signature.Version,
		)
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return nil, fmt.Errorf("update %s: %w", id, err)
		}
		if n == 1 {
			return next, nil
		}
		// Lost the race. A conditional caller sees the conflict; a blind
		// update re-reads and tries again.
		if opts.IfVersion != 0 {
			return nil, store.ErrVersionConflict
		}
	}
	return nil, fmt.Errorf("update %s: %w", id, store.ErrVersionConflict)
}

// Delete removes the row.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, s.dialect.rebind(`DELETE FROM constructs WHERE id = ?`), id)
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete %s: %w", id, err)
	}
	return n > 0, nil
}

// List returns constructs of type t ordered by insertion.
func (s *Store) List(ctx context.Context, t construct.Type) ([]*construct.Construct, error) {
	return s.Search(ctx, store.Query{Type: t})
}

// Search filters on type and name in SQL.
func (s *Store) Search(ctx context.Context, q store.Query) ([]*construct.Construct, error) {
	query := selectColumns
	var where []string
	var args []any
	if q.Type != "" {
		where = append(where, "type = ?")
		args = append(args, string(q.Type))
	}
	if q.Name != "" {
		where = append(where, "name = ?")
		args = append(args, q.Name)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	defer rows.Close()

	out := []*construct.Construct{}
	for rows.Next() {
		c, err := s.scan(rows)
		if err != nil {
			return nil, fmt.Errorf("search: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *Store) scan(row scanner) (*construct.Construct, error) {
	var (
		id, typ, name, description, blob string
		version, createdAt, updatedAt    int64
	)
	if err := row.Scan(&id, &typ, &name, &description, &version, &createdAt, &updatedAt, &blob); err != nil {
		return nil, err
	}
	t, ok := construct.ParseType(typ)
	if !ok {
		return nil, fmt.Errorf("construct %s has unknown type %q", id, typ)
	}
	data, err := construct.DecodeData(t, []byte(blob))
	if err != nil {
		return nil, fmt.Errorf("construct %s: %w", id, err)
	}
	return &construct.Construct{
		Signature: construct.Signature{ID: id, StoreID: s.id, Version: version},
		Metadata: construct.Metadata{
			Name:        name,
			Description: description,
			CreatedAt:   time.UnixMicro(createdAt).UTC(),
			UpdatedAt:   time.UnixMicro(updatedAt).UTC(),
		},
		Type: t,
		Data: data,
	}, nil
}
