package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/catgraph/internal/store"
	"github.com/roach88/catgraph/internal/store/storetest"
)

type recordingExec struct {
	execs []string
}

func (r *recordingExec) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	r.execs = append(r.execs, query)
	return nil, nil
}

func TestSplitStatements(t *testing.T) {
	got := splitStatements(`
-- comment only
CREATE TABLE a (x INT);

CREATE INDEX i ON a(x);
`)
	assert.Equal(t, []string{"CREATE TABLE a (x INT)", "CREATE INDEX i ON a(x)"}, got)
}

func TestApplySchema_ExecutesEmbeddedDDL(t *testing.T) {
	rec := &recordingExec{}
	require.NoError(t, applySchema(context.Background(), rec))

	require.Len(t, rec.execs, 3)
	assert.True(t, strings.HasPrefix(rec.execs[0], "CREATE TABLE IF NOT EXISTS constructs"))
	assert.Contains(t, rec.execs[1], "idx_constructs_type_seq")
	assert.Contains(t, rec.execs[2], "idx_constructs_name")
}

func TestOpen_PropagatesOpenError(t *testing.T) {
	orig := sqlOpen
	sqlOpen = func(_, _ string) (*sql.DB, error) { return nil, errors.New("boom") }
	t.Cleanup(func() { sqlOpen = orig })

	_, err := Open(context.Background(), "", "pg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "open postgres: boom")
}

// TestConformance runs against a live server when CATGRAPH_TEST_POSTGRES_DSN
// is set.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("CATGRAPH_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("CATGRAPH_TEST_POSTGRES_DSN not set")
	}
	storetest.Run(t, func(t *testing.T) store.Store {
		s, err := Open(context.Background(), dsn, "pg-test")
		require.NoError(t, err)
		_, err = s.DB().Exec("TRUNCATE constructs")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}
