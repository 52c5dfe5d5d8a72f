package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// Execer is the subset of pgxpool.Pool the schema bootstrap needs.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func EnsureSchema(ctx context.Context, db Execer, schemaPath string) (int, error) {
	if strings.TrimSpace(schemaPath) == "" {
		schemaPath = "db/schema.sql"
	}

	data, err := os.ReadFile(filepath.Clean(schemaPath))
	if err != nil {
		return 0, fmt.Errorf("read schema file failed (%s): %w", schemaPath, err)
	}

	statements := SplitStatements(string(data))
	for i, query := range statements {
		if _, err := db.Exec(ctx, query); err != nil {
			return i, fmt.Errorf("schema statement %d failed: %w", i+1, err)
		}
	}
	return len(statements), nil
}

// SplitStatements breaks a schema file on semicolons, dropping blank
// statements and full-line "--" comments.
func SplitStatements(script string) []string {
	var cleaned strings.Builder
	for _, line := range strings.Split(script, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		cleaned.WriteString(line)
		cleaned.WriteString("\n")
	}

	parts := strings.Split(cleaned.String(), ";")
	out := make([]string, 0, len(parts))
	for _, stmt := range parts {
		query := strings.TrimSpace(stmt)
		if query == "" {
			continue
		}
		out = append(out, query)
	}
	return out
}
