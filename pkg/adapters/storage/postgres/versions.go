package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

const versionColumns = `id, project_id, version_number, created_by, data_snapshot, changelog, created_at`

func scanVersion(row scanner) (*domain.ProjectVersion, error) {
	var (
		v        domain.ProjectVersion
		snapshot []byte
	)
	if err := row.Scan(&v.ID, &v.ProjectID, &v.VersionNumber, &v.CreatedBy, &snapshot, &v.Changelog, &v.CreatedAt); err != nil {
		return nil, err
	}
	if len(snapshot) > 0 {
		if err := json.Unmarshal(snapshot, &v.DataSnapshot); err != nil {
			return nil, fmt.Errorf("failed to decode version snapshot: %w", err)
		}
	}
	return &v, nil
}

// GetLatestProjectVersion returns the highest numbered version of a project
func (s *Store) GetLatestProjectVersion(ctx context.Context, projectID string) (*domain.ProjectVersion, error) {
	query := `SELECT ` + versionColumns + `
		FROM project_versions WHERE project_id = $1
		ORDER BY version_number DESC LIMIT 1`

	v, err := scanVersion(s.db.QueryRowContext(ctx, query, projectID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrVersionNotFound
		}
		return nil, handlePostgresError("get latest project version", err)
	}
	return v, nil
}

// CreateProjectVersion inserts an immutable snapshot
func (s *Store) CreateProjectVersion(ctx context.Context, version *domain.ProjectVersion) error {
	snapshot, err := json.Marshal(version.DataSnapshot)
	if err != nil {
		return fmt.Errorf("failed to encode version snapshot: %w", err)
	}

	query := `
		INSERT INTO project_versions (id, project_id, version_number, created_by, data_snapshot, changelog, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		version.ID, version.ProjectID, version.VersionNumber, version.CreatedBy,
		string(snapshot), version.Changelog, version.CreatedAt)
	if err != nil {
		if uniqueViolation(err) {
			return fmt.Errorf("%w: project %s version %d", domain.ErrVersionConflict, version.ProjectID, version.VersionNumber)
		}
		return handlePostgresError("create project version", err)
	}
	return nil
}

// ListProjectVersions returns versions ordered by number ascending
func (s *Store) ListProjectVersions(ctx context.Context, projectID string) ([]*domain.ProjectVersion, error) {
	query := `SELECT ` + versionColumns + `
		FROM project_versions WHERE project_id = $1
		ORDER BY version_number`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, handlePostgresError("list project versions", err)
	}
	defer rows.Close()

	versions := []*domain.ProjectVersion{}
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, handlePostgresError("scan project version", err)
		}
		versions = append(versions, v)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list project versions", err)
	}
	return versions, nil
}
