package state

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/leapstack-labs/leapmix/pkg/core"
)

const buildColumns = `id, run_id, recipe, reused, rows, elapsed_ms, built_at`

// RecordBuild stores one recipe build. ID and BuiltAt are filled in when empty.
func (s *SQLiteStore) RecordBuild(build *core.RecipeBuild) error {
	if s.db == nil {
		return errNotOpen
	}
	if build.ID == "" {
		build.ID = generateID()
	}
	if build.BuiltAt.IsZero() {
		build.BuiltAt = time.Now().UTC()
	}

	_, err := s.db.Exec(
		`INSERT INTO recipe_builds (`+buildColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		build.ID, build.RunID, build.Recipe, build.Reused, build.Rows, build.ElapsedMS, build.BuiltAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record build of %s: %w", build.Recipe, err)
	}
	return nil
}

// GetBuildsForRun returns the builds of a run in the order they happened.
func (s *SQLiteStore) GetBuildsForRun(runID string) ([]*core.RecipeBuild, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.Query(`SELECT `+buildColumns+` FROM recipe_builds WHERE run_id = ? ORDER BY built_at, rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get builds: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var builds []*core.RecipeBuild
	for rows.Next() {
		b, err := scanBuild(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan build: %w", err)
		}
		builds = append(builds, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating builds: %w", err)
	}
	return builds, nil
}

// GetLatestBuild returns the most recent build of a recipe, or nil if it was
// never built.
func (s *SQLiteStore) GetLatestBuild(recipe string) (*core.RecipeBuild, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	b, err := scanBuild(s.db.QueryRow(
		`SELECT `+buildColumns+` FROM recipe_builds WHERE recipe = ? ORDER BY built_at DESC, rowid DESC LIMIT 1`, recipe,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest build: %w", err)
	}
	return b, nil
}

func scanBuild(row scanner) (*core.RecipeBuild, error) {
	b := &core.RecipeBuild{}
	if err := row.Scan(&b.ID, &b.RunID, &b.Recipe, &b.Reused, &b.Rows, &b.ElapsedMS, &b.BuiltAt); err != nil {
		return nil, err
	}
	return b, nil
}
