package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

const projectColumns = `id, owner_id, type, status, title, description, payload, thumbnail_url, revision, created_at, updated_at`

func scanProject(row scanner) (*domain.Project, error) {
	var (
		p       domain.Project
		payload []byte
	)
	if err := row.Scan(&p.ID, &p.OwnerID, &p.Type, &p.Status, &p.Title, &p.Description,
		&payload, &p.ThumbnailURL, &p.Revision, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &p.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode project payload: %w", err)
		}
	}
	return &p, nil
}

// GetProject retrieves a project by id
func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := scanProject(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrProjectNotFound
		}
		return nil, handlePostgresError("get project", err)
	}
	return p, nil
}

// UpdateProject applies a revision-guarded update
func (s *Store) UpdateProject(ctx context.Context, id string, update domain.ProjectUpdate) (*domain.Project, error) {
	query := `
		UPDATE projects SET
			status = COALESCE($3, status),
			revision = revision + 1,
			updated_at = $4
		WHERE id = $1 AND revision = $2
		RETURNING ` + projectColumns

	var status sql.NullString
	if update.Status != nil {
		status = sql.NullString{String: string(*update.Status), Valid: true}
	}

	p, err := scanProject(s.db.QueryRowContext(ctx, query, id, update.ExpectedRevision, status, s.now()))
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, handlePostgresError("update project", err)
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM projects WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, handlePostgresError("update project", err)
	}
	if !exists {
		return nil, domain.ErrProjectNotFound
	}
	return nil, fmt.Errorf("%w: project %s moved past revision %d", domain.ErrRevisionConflict, id, update.ExpectedRevision)
}

// GetUser retrieves a user by id
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	query := `SELECT id, display_name, avatar_url, created_at FROM users WHERE id = $1`

	var u domain.User
	err := s.db.QueryRowContext(ctx, query, id).Scan(&u.ID, &u.DisplayName, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, handlePostgresError("get user", err)
	}
	return &u, nil
}

// GetProjectAssets lists the assets of a project in upload order
func (s *Store) GetProjectAssets(ctx context.Context, projectID string) ([]*domain.Asset, error) {
	query := `
		SELECT id, project_id, url, type, thumbnail_url, created_at
		FROM assets WHERE project_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, handlePostgresError("get project assets", err)
	}
	defer rows.Close()

	assets := []*domain.Asset{}
	for rows.Next() {
		var a domain.Asset
		if err := rows.Scan(&a.ID, &a.ProjectID, &a.URL, &a.Type, &a.ThumbnailURL, &a.CreatedAt); err != nil {
			return nil, handlePostgresError("scan asset", err)
		}
		assets = append(assets, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("get project assets", err)
	}
	return assets, nil
}
