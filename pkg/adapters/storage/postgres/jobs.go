package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

const jobColumns = `id, project_id, version_id, requested_by, options, status, step,
	bundle_json, emergent_sync_id, error, created_at, updated_at, completed_at`

func scanJob(row scanner) (*domain.PublishJob, error) {
	var (
		j           domain.PublishJob
		versionID   sql.NullString
		options     []byte
		bundleJSON  []byte
		syncID      sql.NullString
		errMsg      sql.NullString
		completedAt sql.NullTime
	)
	if err := row.Scan(&j.ID, &j.ProjectID, &versionID, &j.RequestedBy, &options, &j.Status, &j.Step,
		&bundleJSON, &syncID, &errMsg, &j.CreatedAt, &j.UpdatedAt, &completedAt); err != nil {
		return nil, err
	}

	if len(options) > 0 {
		if err := json.Unmarshal(options, &j.Options); err != nil {
			return nil, fmt.Errorf("failed to decode job options: %w", err)
		}
	}
	if len(bundleJSON) > 0 {
		j.BundleJSON = json.RawMessage(bundleJSON)
	}
	if versionID.Valid {
		j.VersionID = &versionID.String
	}
	if syncID.Valid {
		j.EmergentSyncID = &syncID.String
	}
	if errMsg.Valid {
		j.Error = &errMsg.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		j.CompletedAt = &t
	}
	return &j, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// CreatePublishJob inserts a new job row
func (s *Store) CreatePublishJob(ctx context.Context, job *domain.PublishJob) error {
	options, err := json.Marshal(job.Options)
	if err != nil {
		return fmt.Errorf("failed to encode job options: %w", err)
	}

	var bundleJSON sql.NullString
	if len(job.BundleJSON) > 0 {
		bundleJSON = sql.NullString{String: string(job.BundleJSON), Valid: true}
	}

	query := `
		INSERT INTO publish_jobs (id, project_id, version_id, requested_by, options, status, step,
			bundle_json, emergent_sync_id, error, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	var completedAt sql.NullTime
	if job.CompletedAt != nil {
		completedAt = sql.NullTime{Time: *job.CompletedAt, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, query,
		job.ID, job.ProjectID, nullString(job.VersionID), job.RequestedBy, string(options),
		string(job.Status), string(job.Step), bundleJSON, nullString(job.EmergentSyncID),
		nullString(job.Error), job.CreatedAt, job.UpdatedAt, completedAt)
	if err != nil {
		if uniqueViolation(err) {
			return fmt.Errorf("publish job already exists: %s", job.ID)
		}
		return handlePostgresError("create publish job", err)
	}
	return nil
}

// GetPublishJob retrieves a job by id
func (s *Store) GetPublishJob(ctx context.Context, id string) (*domain.PublishJob, error) {
	query := `SELECT ` + jobColumns + ` FROM publish_jobs WHERE id = $1`

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, handlePostgresError("get publish job", err)
	}
	return j, nil
}

// UpdatePublishJob writes the set fields of patch and returns the updated row
func (s *Store) UpdatePublishJob(ctx context.Context, id string, patch domain.JobPatch) (*domain.PublishJob, error) {
	var (
		sets []string
		args []any
	)
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Status != nil {
		add("status", string(*patch.Status))
	}
	if patch.Step != nil {
		add("step", string(*patch.Step))
	}
	if patch.BundleJSON != nil {
		add("bundle_json", string(patch.BundleJSON))
	}
	if patch.EmergentSyncID != nil {
		add("emergent_sync_id", *patch.EmergentSyncID)
	}
	if patch.Error != nil {
		add("error", *patch.Error)
	}
	if patch.CompletedAt != nil {
		add("completed_at", *patch.CompletedAt)
	}
	add("updated_at", s.now())

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE publish_jobs SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), jobColumns)

	j, err := scanJob(s.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, handlePostgresError("update publish job", err)
	}
	return j, nil
}

// ClaimPublishJob moves a queued job to building in a single statement
func (s *Store) ClaimPublishJob(ctx context.Context, id string) (*domain.PublishJob, error) {
	query := `
		UPDATE publish_jobs SET status = $2, step = $3, updated_at = $4
		WHERE id = $1 AND status = 'queued'
		RETURNING ` + jobColumns

	j, err := scanJob(s.db.QueryRowContext(ctx, query, id,
		string(domain.JobStatusBuilding), string(domain.JobStepValidate), s.now()))
	if err == nil {
		return j, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, handlePostgresError("claim publish job", err)
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM publish_jobs WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, handlePostgresError("claim publish job", err)
	}
	return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobNotQueued, id, status)
}

// ListPublishJobs returns a project's jobs, newest first
func (s *Store) ListPublishJobs(ctx context.Context, projectID string) ([]*domain.PublishJob, error) {
	query := `SELECT ` + jobColumns + `
		FROM publish_jobs WHERE project_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, handlePostgresError("list publish jobs", err)
	}
	defer rows.Close()

	jobs := []*domain.PublishJob{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, handlePostgresError("scan publish job", err)
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, handlePostgresError("list publish jobs", err)
	}
	return jobs, nil
}

// HasActivePublishJob reports whether a project has a queued or building job
func (s *Store) HasActivePublishJob(ctx context.Context, projectID string) (bool, error) {
	query := `SELECT EXISTS(SELECT 1 FROM publish_jobs WHERE project_id = $1 AND status IN ('queued', 'building'))`

	var exists bool
	if err := s.db.QueryRowContext(ctx, query, projectID).Scan(&exists); err != nil {
		return false, handlePostgresError("check active publish job", err)
	}
	return exists, nil
}
