package versions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/ports"
)

// conflictRetries bounds retries after a unique constraint conflict, which
// only happens when another process numbered a version without the lock
const conflictRetries = 3

// Manager creates and lists project versions
type Manager struct {
	repo   ports.VersionRepository
	locker ports.Locker
	logger *zap.Logger
	now    func() time.Time
}

// NewManager creates a version manager
func NewManager(repo ports.VersionRepository, locker ports.Locker, logger *zap.Logger) *Manager {
	return &Manager{
		repo:   repo,
		locker: locker,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot stores a copy of data as the next version of the project
func (m *Manager) Snapshot(ctx context.Context, projectID, userID string, data map[string]any, changelog string) (*domain.ProjectVersion, error) {
	snapshot, err := cloneDocument(data)
	if err != nil {
		return nil, err
	}

	unlock, err := m.locker.Lock(ctx, lockKey(projectID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock project versions: %w", err)
	}
	defer unlock()

	for attempt := 0; ; attempt++ {
		next := 1
		latest, err := m.repo.GetLatestProjectVersion(ctx, projectID)
		switch {
		case err == nil:
			next = latest.VersionNumber + 1
		case errors.Is(err, domain.ErrVersionNotFound):
		default:
			return nil, fmt.Errorf("failed to get latest version: %w", err)
		}

		version := &domain.ProjectVersion{
			ID:            uuid.NewString(),
			ProjectID:     projectID,
			VersionNumber: next,
			CreatedBy:     userID,
			DataSnapshot:  snapshot,
			Changelog:     changelog,
			CreatedAt:     m.now(),
		}

		err = m.repo.CreateProjectVersion(ctx, version)
		if err == nil {
			m.logger.Info("project version created",
				zap.String("project_id", projectID),
				zap.String("version_id", version.ID),
				zap.Int("version_number", version.VersionNumber))
			return version, nil
		}
		if !errors.Is(err, domain.ErrVersionConflict) || attempt >= conflictRetries {
			return nil, fmt.Errorf("failed to create version: %w", err)
		}

		m.logger.Warn("version number taken, retrying",
			zap.String("project_id", projectID),
			zap.Int("version_number", next))
	}
}

// List returns the project's versions ordered by number
func (m *Manager) List(ctx context.Context, projectID string) ([]*domain.ProjectVersion, error) {
	versions, err := m.repo.ListProjectVersions(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to list versions: %w", err)
	}
	return versions, nil
}

func lockKey(projectID string) string {
	return "project-versions:" + projectID
}

// cloneDocument deep copies a JSON document through encoding so the snapshot
// shares nothing with the live project
func cloneDocument(data map[string]any) (map[string]any, error) {
	if data == nil {
		return map[string]any{}, nil
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode snapshot: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return out, nil
}
