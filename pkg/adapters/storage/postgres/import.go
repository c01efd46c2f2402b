package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// ImportProject upserts a creator, a project and its assets in one transaction.
// Editing tools own these records; the pipeline only needs them to exist.
func (s *Store) ImportProject(ctx context.Context, user *domain.User, project *domain.Project, assets []*domain.Asset) error {
	payload, err := json.Marshal(project.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode project payload: %w", err)
	}
	if project.Payload == nil {
		payload = []byte("{}")
	}

	return WithTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO users (id, display_name, avatar_url, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name, avatar_url = EXCLUDED.avatar_url`,
			user.ID, user.DisplayName, user.AvatarURL, user.CreatedAt)
		if err != nil {
			return handlePostgresError("import user", err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO projects (id, owner_id, type, status, title, description, payload, thumbnail_url, revision, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
			ON CONFLICT (id) DO UPDATE SET
				owner_id = EXCLUDED.owner_id,
				type = EXCLUDED.type,
				status = EXCLUDED.status,
				title = EXCLUDED.title,
				description = EXCLUDED.description,
				payload = EXCLUDED.payload,
				thumbnail_url = EXCLUDED.thumbnail_url,
				revision = projects.revision + 1,
				updated_at = EXCLUDED.updated_at`,
			project.ID, project.OwnerID, string(project.Type), string(project.Status), project.Title,
			project.Description, string(payload), project.ThumbnailURL, project.Revision,
			project.CreatedAt, project.UpdatedAt)
		if err != nil {
			return handlePostgresError("import project", err)
		}

		for _, a := range assets {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO assets (id, project_id, url, type, thumbnail_url, created_at)
				VALUES ($1, $2, $3, $4, $5, $6)
				ON CONFLICT (id) DO NOTHING`,
				a.ID, a.ProjectID, a.URL, a.Type, a.ThumbnailURL, a.CreatedAt)
			if err != nil {
				return handlePostgresError("import asset", err)
			}
		}
		return nil
	})
}
