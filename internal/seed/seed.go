// Package seed imports projects, creators and assets from a JSON fixture file.
// It lets a fresh deployment or a demo run publish without the editing tools.
package seed

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"go.uber.org/zap"
)

// Importer upserts one project with its owner and assets
type Importer interface {
	ImportProject(ctx context.Context, user *domain.User, project *domain.Project, assets []*domain.Asset) error
}

// Fixture is the on-disk seed document
type Fixture struct {
	Users    []*domain.User    `json:"users"`
	Projects []*domain.Project `json:"projects"`
	Assets   []*domain.Asset   `json:"assets"`
}

// LoadFile reads and decodes a fixture
func LoadFile(path string) (*Fixture, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	var fixture Fixture
	if err := json.Unmarshal(raw, &fixture); err != nil {
		return nil, fmt.Errorf("failed to decode seed file %s: %w", path, err)
	}
	return &fixture, nil
}

// Apply imports every project in the fixture. Each project's owner must be listed in Users.
func Apply(ctx context.Context, importer Importer, fixture *Fixture, logger *zap.Logger) error {
	now := time.Now().UTC()

	users := make(map[string]*domain.User, len(fixture.Users))
	for _, u := range fixture.Users {
		if u.CreatedAt.IsZero() {
			u.CreatedAt = now
		}
		users[u.ID] = u
	}

	assets := make(map[string][]*domain.Asset)
	for _, a := range fixture.Assets {
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		assets[a.ProjectID] = append(assets[a.ProjectID], a)
	}

	for _, p := range fixture.Projects {
		owner, ok := users[p.OwnerID]
		if !ok {
			return fmt.Errorf("failed to seed project %s: owner %s: %w", p.ID, p.OwnerID, domain.ErrUserNotFound)
		}
		if p.CreatedAt.IsZero() {
			p.CreatedAt = now
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = p.CreatedAt
		}

		if err := importer.ImportProject(ctx, owner, p, assets[p.ID]); err != nil {
			return fmt.Errorf("failed to seed project %s: %w", p.ID, err)
		}

		logger.Info("seeded project",
			zap.String("project_id", p.ID),
			zap.String("status", string(p.Status)),
			zap.Int("assets", len(assets[p.ID])))
	}

	return nil
}
