package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DefaultSchema is where migrations run unless told otherwise.
const DefaultSchema = "public"

var schemaPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Migration is one numbered SQL file ("001_core.sql").
type Migration struct {
	Version  int
	Name     string
	SQL      string
	Checksum string
}

// MigrationStatus is a migration as seen against one schema. Modified is
// set when the file on hand no longer matches what was applied.
type MigrationStatus struct {
	Version   int
	Name      string
	Applied   bool
	AppliedAt *time.Time
	Modified  bool
}

type appliedMigration struct {
	at       time.Time
	checksum string
}

// Migrator applies migrations in version order and records each in the
// schema's _migrations table. Concurrent migrators on the same schema are
// serialized with a transaction-scoped advisory lock.
type Migrator struct {
	pool   *pgxpool.Pool
	source fs.FS
}

// NewMigrator reads migrations from a directory on disk.
func NewMigrator(pool *pgxpool.Pool, dir string) *Migrator {
	return NewMigratorFS(pool, os.DirFS(dir))
}

// NewMigratorFS reads migrations from the root of source, typically the
// embedded set.
func NewMigratorFS(pool *pgxpool.Pool, source fs.FS) *Migrator {
	return &Migrator{pool: pool, source: source}
}

func quoteSchema(schema string) (string, error) {
	if schema == "" {
		schema = DefaultSchema
	}
	if !schemaPattern.MatchString(schema) {
		return "", fmt.Errorf("invalid schema name %q", schema)
	}
	return pgx.Identifier{schema}.Sanitize(), nil
}

func checksum(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

// LoadMigrations returns every versioned .sql file sorted by version. Files
// without a numeric prefix are ignored; two files sharing a version are an
// error.
func (m *Migrator) LoadMigrations() ([]Migration, error) {
	entries, err := fs.ReadDir(m.source, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}

	seen := make(map[int]string)
	var out []Migration
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		version, err := strconv.Atoi(prefix)
		if err != nil {
			continue
		}
		if other, dup := seen[version]; dup {
			return nil, fmt.Errorf("migrations %s and %s share version %d", other, name, version)
		}
		seen[version] = name

		content, err := fs.ReadFile(m.source, name)
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		out = append(out, Migration{
			Version:  version,
			Name:     name,
			SQL:      string(content),
			Checksum: checksum(string(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return out, nil
}

// ensureTable creates the schema and its bookkeeping table.
func (m *Migrator) ensureTable(ctx context.Context, qs string) error {
	_, err := m.pool.Exec(ctx, fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %[1]s;
CREATE TABLE IF NOT EXISTS %[1]s._migrations (
    version    INTEGER PRIMARY KEY,
    name       VARCHAR(255) NOT NULL,
    checksum   CHAR(64),
    applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
ALTER TABLE %[1]s._migrations ADD COLUMN IF NOT EXISTS checksum CHAR(64)`, qs))
	if err != nil {
		return fmt.Errorf("create %s._migrations: %w", qs, err)
	}
	return nil
}

// applied reads the bookkeeping table. A schema that was never migrated
// has nothing applied.
func (m *Migrator) applied(ctx context.Context, q Querier, qs string) (map[int]appliedMigration, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT to_regclass($1) IS NOT NULL`, qs+"._migrations").Scan(&exists); err != nil {
		return nil, fmt.Errorf("look up _migrations: %w", err)
	}
	out := make(map[int]appliedMigration)
	if !exists {
		return out, nil
	}

	rows, err := q.Query(ctx, fmt.Sprintf(`SELECT version, applied_at, COALESCE(checksum, '') FROM %s._migrations`, qs))
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			v int
			a appliedMigration
		)
		if err := rows.Scan(&v, &a.at, &a.checksum); err != nil {
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		out[v] = a
	}
	return out, rows.Err()
}

// Up applies all pending migrations and returns how many ran.
func (m *Migrator) Up(ctx context.Context, schema string) (int, error) {
	return m.UpTo(ctx, schema, 0)
}

// UpTo applies pending migrations up to and including target; 0 means all.
// Each migration runs in its own transaction.
func (m *Migrator) UpTo(ctx context.Context, schema string, target int) (int, error) {
	qs, err := quoteSchema(schema)
	if err != nil {
		return 0, err
	}
	if err := m.ensureTable(ctx, qs); err != nil {
		return 0, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return 0, err
	}
	done, err := m.applied(ctx, m.pool, qs)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, mig := range pending(migrations, done, target) {
		ran, err := m.apply(ctx, qs, mig)
		if err != nil {
			return count, fmt.Errorf("apply migration %d (%s): %w", mig.Version, mig.Name, err)
		}
		if ran {
			count++
		}
	}
	return count, nil
}

// apply runs mig unless another migrator got there first while this one
// waited for the lock.
func (m *Migrator) apply(ctx context.Context, qs string, mig Migration) (bool, error) {
	ran := false
	err := NewTxRunner(m.pool).WithinTx(ctx, func(ctx context.Context) error {
		tx := TxFromContext(ctx)
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, "migrate:"+qs); err != nil {
			return fmt.Errorf("lock schema: %w", err)
		}
		var exists bool
		err := tx.QueryRow(ctx,
			fmt.Sprintf(`SELECT EXISTS (SELECT 1 FROM %s._migrations WHERE version = $1)`, qs),
			mig.Version).Scan(&exists)
		if err != nil {
			return fmt.Errorf("recheck version: %w", err)
		}
		if exists {
			return nil
		}

		if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+qs); err != nil {
			return fmt.Errorf("set search_path: %w", err)
		}
		if _, err := tx.Exec(ctx, mig.SQL); err != nil {
			return fmt.Errorf("execute SQL: %w", err)
		}
		if _, err := tx.Exec(ctx,
			"INSERT INTO _migrations (version, name, checksum) VALUES ($1, $2, $3)",
			mig.Version, mig.Name, mig.Checksum,
		); err != nil {
			return fmt.Errorf("record migration: %w", err)
		}
		ran = true
		return nil
	})
	return ran, err
}

// pending filters migrations that still need to run, honoring target.
func pending(migrations []Migration, done map[int]appliedMigration, target int) []Migration {
	var out []Migration
	for _, mig := range migrations {
		if target > 0 && mig.Version > target {
			break
		}
		if _, ok := done[mig.Version]; !ok {
			out = append(out, mig)
		}
	}
	return out
}

// Status lists every known migration with its applied state. It does not
// create anything.
func (m *Migrator) Status(ctx context.Context, schema string) ([]MigrationStatus, error) {
	qs, err := quoteSchema(schema)
	if err != nil {
		return nil, err
	}
	migrations, err := m.LoadMigrations()
	if err != nil {
		return nil, err
	}
	done, err := m.applied(ctx, m.pool, qs)
	if err != nil {
		return nil, err
	}
	return buildStatus(migrations, done), nil
}

func buildStatus(migrations []Migration, done map[int]appliedMigration) []MigrationStatus {
	out := make([]MigrationStatus, 0, len(migrations))
	for _, mig := range migrations {
		st := MigrationStatus{Version: mig.Version, Name: mig.Name}
		if a, ok := done[mig.Version]; ok {
			at := a.at
			st.Applied = true
			st.AppliedAt = &at
			st.Modified = a.checksum != "" && a.checksum != mig.Checksum
		}
		out = append(out, st)
	}
	return out
}
