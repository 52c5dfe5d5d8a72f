package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

type recordingExecer struct {
	statements []string
	failAt     int
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	r.statements = append(r.statements, sql)
	if r.failAt > 0 && len(r.statements) == r.failAt {
		return pgconn.CommandTag{}, errors.New("syntax error")
	}
	return pgconn.NewCommandTag("CREATE TABLE"), nil
}

func TestSplitStatementsSkipsCommentsAndBlanks(t *testing.T) {
	script := `-- cows
CREATE TABLE cows (id BIGSERIAL PRIMARY KEY);

-- milk; with a semicolon in the comment
CREATE TABLE milk_records (id BIGSERIAL PRIMARY KEY);
;
`
	got := SplitStatements(script)
	if len(got) != 2 {
		t.Fatalf("expected 2 statements, got %d: %q", len(got), got)
	}
	if got[1] != "CREATE TABLE milk_records (id BIGSERIAL PRIMARY KEY)" {
		t.Fatalf("unexpected statement %q", got[1])
	}
}

func TestEnsureSchemaStopsAtFirstFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.sql")
	if err := os.WriteFile(path, []byte("CREATE TABLE a(id int); CREATE TABLE b(id int); CREATE TABLE c(id int);"), 0o600); err != nil {
		t.Fatal(err)
	}

	db := &recordingExecer{failAt: 2}
	applied, err := EnsureSchema(context.Background(), db, path)
	if err == nil {
		t.Fatal("expected failure")
	}
	if applied != 1 || len(db.statements) != 2 {
		t.Fatalf("applied=%d executed=%d", applied, len(db.statements))
	}
}

func TestEnsureSchemaMissingFile(t *testing.T) {
	if _, err := EnsureSchema(context.Background(), &recordingExecer{}, filepath.Join(t.TempDir(), "nope.sql")); err == nil {
		t.Fatal("expected error for missing schema")
	}
}
