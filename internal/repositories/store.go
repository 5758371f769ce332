package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/desertthunder/playlog/internal/models"
	"github.com/desertthunder/playlog/internal/shared"
	"github.com/desertthunder/playlog/internal/transform"
)

// LoadCounts is the number of rows appended to each relation by [Store.AppendBatch].
type LoadCounts struct {
	Plays   int `json:"plays"`
	Tracks  int `json:"tracks"`
	Artists int `json:"artists"`
}

// Store appends datasets to their relations in a SQLite database.
//
// It is the single writer of a pipeline run; concurrent stores on one file are not supported.
type Store struct {
	db *sql.DB
}

// NewStore wraps an open database connection.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// OpenStore opens (or creates) the database described by cfg.
//
// Returns an error wrapping [shared.ErrStoreUnavailable] when the file cannot be opened or created.
func OpenStore(cfg shared.DatabaseConfig) (*Store, error) {
	db, err := shared.NewDatabase(cfg.Path)
	if err != nil {
		return nil, err
	}
	shared.ConfigureDatabase(db, cfg.MaxOpenConns, cfg.MaxIdleConns)
	return NewStore(db), nil
}

// DB returns the underlying connection for read-only helpers sharing the store.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// EnsureRelation creates the relation for schema when absent, and otherwise checks that every
// schema column exists in it with the same declared type.
//
// An incompatible relation yields an error wrapping [shared.ErrSchemaMismatch].
func (s *Store) EnsureRelation(ctx context.Context, schema models.Schema) error {
	existing, err := tableColumns(ctx, s.db, schema.Relation)
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
	}

	if len(existing) == 0 {
		return s.createRelation(ctx, schema)
	}

	declared := make(map[string]string, len(existing))
	for _, c := range existing {
		declared[strings.ToLower(c.Name)] = c.Type
	}

	var problems []string
	for _, c := range schema.Columns {
		typ, ok := declared[strings.ToLower(c.Name)]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("missing column %s", c.Name))
		case !strings.EqualFold(typ, c.Type):
			problems = append(problems, fmt.Sprintf("column %s is %s, want %s", c.Name, typ, c.Type))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: relation %s: %s", shared.ErrSchemaMismatch, schema.Relation, strings.Join(problems, "; "))
	}

	return nil
}

func (s *Store) createRelation(ctx context.Context, schema models.Schema) error {
	table, err := quoteIdent(schema.Relation)
	if err != nil {
		return err
	}

	defs := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		col, err := quoteIdent(c.Name)
		if err != nil {
			return err
		}
		defs[i] = col + " " + c.Type
	}

	query := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create relation %s: %w", schema.Relation, err)
	}
	return nil
}

// Append writes rows to the relation of schema, creating it on first write.
//
// All rows of one call are inserted in a single transaction. Nothing is deduplicated.
func (s *Store) Append(ctx context.Context, schema models.Schema, rows [][]any) (int, error) {
	if err := s.EnsureRelation(ctx, schema); err != nil {
		return 0, err
	}
	if len(rows) == 0 {
		return 0, nil
	}

	table, err := quoteIdent(schema.Relation)
	if err != nil {
		return 0, err
	}
	columns := make([]string, len(schema.Columns))
	for i, c := range schema.Columns {
		if columns[i], err = quoteIdent(c.Name); err != nil {
			return 0, err
		}
	}

	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table,
		strings.Join(columns, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", "),
	)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", shared.ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare insert into %s: %w", schema.Relation, err)
	}
	defer stmt.Close()

	for i, row := range rows {
		if len(row) != len(columns) {
			return 0, fmt.Errorf("%w: row %d of %s has %d values, want %d", shared.ErrSchemaMismatch, i, schema.Relation, len(row), len(columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return 0, fmt.Errorf("failed to insert row %d into %s: %w", i, schema.Relation, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit %s: %w", schema.Relation, err)
	}

	return len(rows), nil
}

// AppendBatch appends plays, then tracks, then artists.
//
// It stops at the first failure. Relations appended before the failure keep their rows;
// the returned counts report what was written.
func (s *Store) AppendBatch(ctx context.Context, batch *transform.Batch) (LoadCounts, error) {
	var counts LoadCounts
	if batch == nil {
		return counts, fmt.Errorf("%w: nil batch", shared.ErrInvalidArgument)
	}

	steps := []struct {
		schema models.Schema
		values func() ([][]any, error)
		count  *int
	}{
		{batch.Plays.Schema, batch.Plays.Values, &counts.Plays},
		{batch.Tracks.Schema, batch.Tracks.Values, &counts.Tracks},
		{batch.Artists.Schema, batch.Artists.Values, &counts.Artists},
	}

	for _, step := range steps {
		rows, err := step.values()
		if err != nil {
			return counts, fmt.Errorf("%w: %v", shared.ErrSchemaMismatch, err)
		}

		n, err := s.Append(ctx, step.schema, rows)
		if err != nil {
			return counts, fmt.Errorf("append %s: %w", step.schema.Relation, err)
		}
		*step.count = n
	}

	return counts, nil
}

// Count returns the number of rows in relation, or an error wrapping [shared.ErrStoreUnavailable]
// when the relation has not been created yet.
func (s *Store) Count(ctx context.Context, relation string) (int, error) {
	table, err := quoteIdent(relation)
	if err != nil {
		return 0, err
	}

	columns, err := tableColumns(ctx, s.db, relation)
	if err != nil {
		return 0, err
	}
	if len(columns) == 0 {
		return 0, fmt.Errorf("%w: relation %s does not exist", shared.ErrStoreUnavailable, relation)
	}

	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", relation, err)
	}
	return n, nil
}

// Relations returns the names of the user tables in the database, sorted by name.
func (s *Store) Relations(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND name != 'schema_migrations'
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to list relations: %v", shared.ErrStoreUnavailable, err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan relation name: %w", err)
		}
		names = append(names, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return names, nil
}
