// Package migrations applies the embedded PostgreSQL schema for the pgvector context store.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

//go:embed sql/*.sql
var embeddedFS embed.FS

const migrationTable = "querylens_schema_migrations"

var (
	migrationNamePattern = regexp.MustCompile(`^([0-9]+)_.+\.(up|down)\.sql$`)
	placeholderPattern   = regexp.MustCompile(`\$\{([a-z_]+)\}`)
	identPattern         = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]{0,62}$`)
)

// Vars are substituted for ${name} placeholders in migration scripts.
// Values must be plain SQL identifiers.
type Vars map[string]string

func DefaultVars() Vars {
	return Vars{"vector_table": "schema_context"}
}

type Runner struct {
	fsys fs.FS
	vars Vars
}

func NewRunner(vars Vars) *Runner {
	return NewRunnerFS(embeddedFS, vars)
}

func NewRunnerFS(fsys fs.FS, vars Vars) *Runner {
	merged := DefaultVars()
	for name, value := range vars {
		if strings.TrimSpace(value) != "" {
			merged[name] = value
		}
	}
	return &Runner{fsys: fsys, vars: merged}
}

type migration struct {
	Version int64
	Name    string
	UpSQL   string
	DownSQL string
}

// State reports whether a known migration has been applied.
type State struct {
	Version int64
	Name    string
	Applied bool
}

func (r *Runner) Up(ctx context.Context, db *sql.DB, steps int) (int, error) {
	migrations, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return 0, err
	}
	applied, err := appliedVersions(ctx, db, "ASC")
	if err != nil {
		return 0, err
	}
	appliedSet := versionSet(applied)

	runCount := 0
	for _, item := range migrations {
		if _, ok := appliedSet[item.Version]; ok {
			continue
		}
		if steps > 0 && runCount >= steps {
			break
		}
		if err := execAndMark(ctx, db, item.Version, item.UpSQL, true); err != nil {
			return runCount, err
		}
		runCount++
	}
	return runCount, nil
}

func (r *Runner) Down(ctx context.Context, db *sql.DB, steps int) (int, error) {
	if steps <= 0 {
		steps = 1
	}
	migrations, err := r.load()
	if err != nil {
		return 0, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return 0, err
	}
	applied, err := appliedVersions(ctx, db, "DESC")
	if err != nil {
		return 0, err
	}

	lookup := make(map[int64]migration, len(migrations))
	for _, item := range migrations {
		lookup[item.Version] = item
	}

	runCount := 0
	for _, version := range applied {
		if runCount >= steps {
			break
		}
		item, ok := lookup[version]
		if !ok {
			return runCount, fmt.Errorf("applied migration %d is missing from source", version)
		}
		if err := execAndMark(ctx, db, item.Version, item.DownSQL, false); err != nil {
			return runCount, err
		}
		runCount++
	}
	return runCount, nil
}

// Status lists every known migration in version order.
func (r *Runner) Status(ctx context.Context, db *sql.DB) ([]State, error) {
	migrations, err := r.load()
	if err != nil {
		return nil, err
	}
	if err := ensureMigrationTable(ctx, db); err != nil {
		return nil, err
	}
	applied, err := appliedVersions(ctx, db, "ASC")
	if err != nil {
		return nil, err
	}
	appliedSet := versionSet(applied)

	states := make([]State, 0, len(migrations))
	for _, item := range migrations {
		_, ok := appliedSet[item.Version]
		states = append(states, State{Version: item.Version, Name: item.Name, Applied: ok})
	}
	return states, nil
}

func (r *Runner) load() ([]migration, error) {
	for name, value := range r.vars {
		if !identPattern.MatchString(value) {
			return nil, fmt.Errorf("migration variable %s=%q is not a valid identifier", name, value)
		}
	}
	migrations, err := loadMigrations(r.fsys)
	if err != nil {
		return nil, err
	}
	for i := range migrations {
		if migrations[i].UpSQL, err = r.expand(migrations[i].Version, migrations[i].UpSQL); err != nil {
			return nil, err
		}
		if migrations[i].DownSQL, err = r.expand(migrations[i].Version, migrations[i].DownSQL); err != nil {
			return nil, err
		}
	}
	return migrations, nil
}

func (r *Runner) expand(version int64, script string) (string, error) {
	var missing string
	expanded := placeholderPattern.ReplaceAllStringFunc(script, func(token string) string {
		name := placeholderPattern.FindStringSubmatch(token)[1]
		value, ok := r.vars[name]
		if !ok {
			missing = name
			return token
		}
		return value
	})
	if missing != "" {
		return "", fmt.Errorf("migration %d references unknown variable %q", version, missing)
	}
	return expanded, nil
}

func ensureMigrationTable(ctx context.Context, db *sql.DB) error {
	query := `
CREATE TABLE IF NOT EXISTS ` + migrationTable + ` (
	version BIGINT PRIMARY KEY,
	applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`
	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}
	return nil
}

// execAndMark runs script and records (up) or forgets (down) the version in
// one transaction.
func execAndMark(ctx context.Context, db *sql.DB, version int64, script string, up bool) error {
	action, mark := "rollback", `DELETE FROM `+migrationTable+` WHERE version = $1`
	if up {
		action, mark = "apply", `INSERT INTO `+migrationTable+` (version) VALUES ($1)`
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, script); err != nil {
		return fmt.Errorf("%s migration %d: %w", action, version, err)
	}
	if _, err := tx.ExecContext(ctx, mark, version); err != nil {
		return fmt.Errorf("record %s of migration %d: %w", action, version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit %s of migration %d: %w", action, version, err)
	}
	return nil
}

func appliedVersions(ctx context.Context, db *sql.DB, order string) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM `+migrationTable+` ORDER BY version `+order)
	if err != nil {
		return nil, fmt.Errorf("query applied versions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var versions []int64
	for rows.Next() {
		var version int64
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, version)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return versions, nil
}

func versionSet(versions []int64) map[int64]struct{} {
	set := make(map[int64]struct{}, len(versions))
	for _, version := range versions {
		set[version] = struct{}{}
	}
	return set
}

func loadMigrations(fsys fs.FS) ([]migration, error) {
	entries, err := fs.ReadDir(fsys, "sql")
	if err != nil {
		return nil, fmt.Errorf("read migration dir: %w", err)
	}

	items := map[int64]migration{}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		base := path.Base(entry.Name())
		matches := migrationNamePattern.FindStringSubmatch(base)
		if len(matches) != 3 {
			continue
		}
		version, err := strconv.ParseInt(matches[1], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("parse migration version for %q: %w", base, err)
		}
		script, err := fs.ReadFile(fsys, path.Join("sql", entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read migration %q: %w", entry.Name(), err)
		}

		item := items[version]
		item.Version = version
		item.Name = strings.TrimSuffix(strings.TrimPrefix(base, matches[1]+"_"), "."+matches[2]+".sql")
		if matches[2] == "up" {
			item.UpSQL = string(script)
		} else {
			item.DownSQL = string(script)
		}
		items[version] = item
	}

	versions := make([]int64, 0, len(items))
	for version := range items {
		versions = append(versions, version)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })

	migrations := make([]migration, 0, len(versions))
	for _, version := range versions {
		item := items[version]
		if strings.TrimSpace(item.UpSQL) == "" {
			return nil, fmt.Errorf("migration %d missing up SQL", version)
		}
		if strings.TrimSpace(item.DownSQL) == "" {
			return nil, fmt.Errorf("migration %d missing down SQL", version)
		}
		migrations = append(migrations, item)
	}
	return migrations, nil
}
