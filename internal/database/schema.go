package database

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"path"
	"sort"
	"strings"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

//go:embed schema/*.surql
var schemaFS embed.FS

// Migration is one embedded SurrealQL file. ID is the file name without its
// extension, e.g. "003_servers".
type Migration struct {
	ID         string
	Name       string
	Statements string
}

// Migrations returns the embedded schema files in apply order.
func Migrations() ([]Migration, error) {
	entries, err := fs.ReadDir(schemaFS, "schema")
	if err != nil {
		return nil, fmt.Errorf("read embedded schema: %w", err)
	}

	var out []Migration
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".surql" {
			continue
		}
		body, err := schemaFS.ReadFile(path.Join("schema", e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		id := strings.TrimSuffix(e.Name(), ".surql")
		out = append(out, Migration{
			ID:         id,
			Name:       migrationName(id),
			Statements: string(body),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// migrationName turns "003_servers" into "servers".
func migrationName(id string) string {
	if _, name, ok := strings.Cut(id, "_"); ok {
		return strings.ReplaceAll(name, "_", " ")
	}
	return id
}

const migrationTableDDL = `
DEFINE TABLE IF NOT EXISTS schema_migration SCHEMAFULL PERMISSIONS NONE;
DEFINE FIELD IF NOT EXISTS name ON schema_migration TYPE string;
DEFINE FIELD IF NOT EXISTS applied_at ON schema_migration TYPE datetime DEFAULT time::now();
`

// Migrator applies pending migrations and records them in schema_migration.
// It needs a root (or database owner) connection.
type Migrator struct {
	conn       DBConnection
	migrations []Migration
	logger     *slog.Logger
}

// NewMigrator creates a migrator over the embedded schema.
func NewMigrator(conn DBConnection) (*Migrator, error) {
	migrations, err := Migrations()
	if err != nil {
		return nil, err
	}
	return &Migrator{
		conn:       conn,
		migrations: migrations,
		logger:     slog.Default().With("service", "migrator"),
	}, nil
}

// Applied returns the IDs of migrations already recorded.
func (m *Migrator) Applied(ctx context.Context) (map[string]bool, error) {
	if err := exec(ctx, m.conn, migrationTableDDL, nil); err != nil {
		return nil, WrapError(err, "failed to create migrations table")
	}

	ids, err := readAll[models.RecordID](ctx, m.conn, "SELECT VALUE id FROM schema_migration", nil)
	if err != nil {
		return nil, WrapError(err, "failed to fetch applied migrations")
	}

	applied := make(map[string]bool, len(ids))
	for _, id := range ids {
		applied[recordKey(id)] = true
	}
	return applied, nil
}

// Pending lists migrations not yet applied, in order.
func (m *Migrator) Pending(ctx context.Context) ([]Migration, error) {
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	var pending []Migration
	for _, mig := range m.migrations {
		if !applied[mig.ID] {
			pending = append(pending, mig)
		}
	}
	return pending, nil
}

// Run applies every pending migration and returns the IDs it applied.
// Statements use IF NOT EXISTS, so a rerun after a partial failure is safe.
func (m *Migrator) Run(ctx context.Context) ([]string, error) {
	pending, err := m.Pending(ctx)
	if err != nil {
		return nil, err
	}

	var done []string
	for _, mig := range pending {
		m.logger.InfoContext(ctx, "Running migration", "migration", mig.ID, "name", mig.Name)

		if err := exec(ctx, m.conn, mig.Statements, nil); err != nil {
			return done, WrapError(err, fmt.Sprintf("migration %s failed", mig.ID))
		}

		err := exec(ctx, m.conn, "CREATE $id SET name = $name", map[string]any{
			"id":   ref(tableSchemaVersion, mig.ID),
			"name": mig.Name,
		})
		if err != nil {
			return done, WrapError(err, fmt.Sprintf("failed to record migration %s", mig.ID))
		}
		done = append(done, mig.ID)
	}

	if len(done) == 0 {
		m.logger.InfoContext(ctx, "Schema is up to date")
	}
	return done, nil
}

// ApplySchema runs all pending migrations on conn.
func ApplySchema(ctx context.Context, conn DBConnection) ([]string, error) {
	m, err := NewMigrator(conn)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx)
}
