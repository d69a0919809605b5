package store

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
)

//go:embed migrations/postgres/001_initial_schema.sql
var postgresSchema string

//go:embed migrations/clickhouse/001_raw_lines.sql
var clickhouseSchema string

// Migrate installs the relational schema. Every statement is written
// with IF NOT EXISTS semantics so running it on a populated database
// is a no-op.
func Migrate(ctx context.Context, db PgPool) error {
	if _, err := db.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("install postgres schema: %w", err)
	}
	return nil
}

// MigrateClickHouse installs the raw-line archive schema. ClickHouse
// takes one statement per Exec, so the file is split on semicolons.
func MigrateClickHouse(ctx context.Context, conn driver.Conn) error {
	for _, stmt := range strings.Split(clickhouseSchema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if err := conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("install clickhouse schema: %w", err)
		}
	}
	return nil
}
