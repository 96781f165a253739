// Package postgres opens a PostgreSQL-backed store through the pgx
// database/sql driver.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/sqlstore"
)

const (
	driverName = "pgx"
	defaultDSN = "postgres://localhost/catgraph?sslmode=disable"
)

//go:embed schema.sql
var schemaSQL string

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Open connects to dsn (defaultDSN when empty), applies the schema and
// returns a store named id.
func Open(ctx context.Context, dsn, id string, opts ...store.Option) (*sqlstore.Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(driverName, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := applySchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return sqlstore.New(db, id, sqlstore.Dollar, opts...), nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func applySchema(ctx context.Context, db execer) error {
	for _, stmt := range splitStatements(schemaSQL) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("execute ddl: %w", err)
		}
	}
	return nil
}

// splitStatements breaks a DDL script on semicolons, dropping comment-only
// and empty fragments.
func splitStatements(script string) []string {
	var out []string
	for _, part := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(part, "\n") {
			trimmed := strings.TrimSpace(line)
			if trimmed == "" || strings.HasPrefix(trimmed, "--") {
				continue
			}
			lines = append(lines, line)
		}
		if len(lines) > 0 {
			out = append(out, strings.TrimSpace(strings.Join(lines, "\n")))
		}
	}
	return out
}
