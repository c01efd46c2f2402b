package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewStore(db, zap.NewNop())
	s.now = func() time.Time { return fixedNow }
	return s, mock
}

func projectRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "owner_id", "type", "status", "title", "description",
		"payload", "thumbnail_url", "revision", "created_at", "updated_at"})
}

func jobRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "project_id", "version_id", "requested_by", "options", "status", "step",
		"bundle_json", "emergent_sync_id", "error", "created_at", "updated_at", "completed_at"})
}

func TestGetProject(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*owner_id.*FROM\s+projects\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("p-1").
		WillReturnRows(projectRows().AddRow("p-1", "u-1", "comic", "approved", "Title", "Desc",
			[]byte(`{"tags":["a"],"pages":[{"n":1}]}`), "", int64(3), fixedNow, fixedNow))

	p, err := s.GetProject(context.Background(), "p-1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectTypeComic, p.Type)
	assert.Equal(t, domain.ProjectStatusApproved, p.Status)
	assert.Equal(t, int64(3), p.Revision)
	assert.Equal(t, []any{"a"}, p.Payload["tags"])
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetProject_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM\s+projects`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.GetProject(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrProjectNotFound)
}

func TestUpdateProject(t *testing.T) {
	t.Run("applies update at expected revision", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectQuery(`(?s)^\s*UPDATE\s+projects\s+SET.*WHERE\s+id\s*=\s*\$1\s+AND\s+revision\s*=\s*\$2`).
			WithArgs("p-1", int64(2), "published", fixedNow).
			WillReturnRows(projectRows().AddRow("p-1", "u-1", "comic", "published", "T", "",
				[]byte(`{}`), "", int64(3), fixedNow, fixedNow))

		p, err := s.UpdateProject(context.Background(), "p-1", domain.ProjectUpdate{
			ExpectedRevision: 2,
			Status:           domain.Ptr(domain.ProjectStatusPublished),
		})
		require.NoError(t, err)
		assert.Equal(t, domain.ProjectStatusPublished, p.Status)
		assert.Equal(t, int64(3), p.Revision)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("stale revision is a conflict", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectQuery(`UPDATE\s+projects`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT\s+EXISTS`).WithArgs("p-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := s.UpdateProject(context.Background(), "p-1", domain.ProjectUpdate{ExpectedRevision: 1})
		assert.ErrorIs(t, err, domain.ErrRevisionConflict)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing project", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectQuery(`UPDATE\s+projects`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT\s+EXISTS`).WithArgs("p-1").
			WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := s.UpdateProject(context.Background(), "p-1", domain.ProjectUpdate{ExpectedRevision: 1})
		assert.ErrorIs(t, err, domain.ErrProjectNotFound)
	})
}

func TestGetUser_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).WithArgs("ghost").WillReturnError(sql.ErrNoRows)

	_, err := s.GetUser(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestGetProjectAssets(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+assets\s+WHERE\s+project_id\s*=\s*\$1\s+ORDER\s+BY\s+created_at`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "project_id", "url", "type", "thumbnail_url", "created_at"}).
			AddRow("a-1", "p-1", "https://cdn/1.png", "image", "", fixedNow).
			AddRow("a-2", "p-1", "https://cdn/2.png", "image", "https://cdn/2t.png", fixedNow))

	assets, err := s.GetProjectAssets(context.Background(), "p-1")
	require.NoError(t, err)
	require.Len(t, assets, 2)
	assert.Equal(t, "a-2", assets[1].ID)
	assert.Equal(t, "https://cdn/2t.png", assets[1].ThumbnailURL)
}

func TestGetLatestProjectVersion_None(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)FROM\s+project_versions.*ORDER\s+BY\s+version_number\s+DESC\s+LIMIT\s+1`).
		WithArgs("p-1").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetLatestProjectVersion(context.Background(), "p-1")
	assert.ErrorIs(t, err, domain.ErrVersionNotFound)
}

func TestCreateProjectVersion(t *testing.T) {
	version := &domain.ProjectVersion{
		ID:            "v-1",
		ProjectID:     "p-1",
		VersionNumber: 1,
		CreatedBy:     "u-1",
		DataSnapshot:  map[string]any{"k": "v"},
		CreatedAt:     fixedNow,
	}

	t.Run("inserts", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectExec(`INSERT\s+INTO\s+project_versions`).
			WithArgs("v-1", "p-1", int64(1), "u-1", `{"k":"v"}`, "", fixedNow).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.CreateProjectVersion(context.Background(), version))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("duplicate number maps to conflict", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectExec(`INSERT\s+INTO\s+project_versions`).
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "project_versions_number_key"})

		err := s.CreateProjectVersion(context.Background(), version)
		assert.ErrorIs(t, err, domain.ErrVersionConflict)
	})

	t.Run("other errors are wrapped", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectExec(`INSERT\s+INTO\s+project_versions`).WillReturnError(errors.New("db down"))

		err := s.CreateProjectVersion(context.Background(), version)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db down")
		assert.NotErrorIs(t, err, domain.ErrVersionConflict)
	})
}

func TestUpdatePublishJob_BuildsSetClause(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^UPDATE\s+publish_jobs\s+SET\s+status\s*=\s*\$1,\s*error\s*=\s*\$2,\s*updated_at\s*=\s*\$3\s+WHERE\s+id\s*=\s*\$4\s+RETURNING`).
		WithArgs("failed", "boom", fixedNow, "j-1").
		WillReturnRows(jobRows().AddRow("j-1", "p-1", "v-1", "u-1", []byte(`{"visibility":"public"}`),
			"failed", "sync", []byte(`{"contract_version":"v1"}`), nil, "boom", fixedNow, fixedNow, nil))

	job, err := s.UpdatePublishJob(context.Background(), "j-1", domain.JobPatch{
		Status: domain.Ptr(domain.JobStatusFailed),
		Error:  domain.Ptr("boom"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, job.Status)
	assert.Equal(t, domain.JobStepSync, job.Step)
	assert.Equal(t, domain.VisibilityPublic, job.Options.Visibility)
	require.NotNil(t, job.Error)
	assert.Equal(t, "boom", *job.Error)
	assert.Nil(t, job.EmergentSyncID)
	assert.Nil(t, job.CompletedAt)
	assert.JSONEq(t, `{"contract_version":"v1"}`, string(job.BundleJSON))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimPublishJob(t *testing.T) {
	t.Run("claims queued job", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectQuery(`(?s)UPDATE\s+publish_jobs.*WHERE\s+id\s*=\s*\$1\s+AND\s+status\s*=\s*'queued'`).
			WithArgs("j-1", "building", "validate", fixedNow).
			WillReturnRows(jobRows().AddRow("j-1", "p-1", "v-1", "u-1", []byte(`{}`),
				"building", "validate", nil, nil, nil, fixedNow, fixedNow, nil))

		job, err := s.ClaimPublishJob(context.Background(), "j-1")
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusBuilding, job.Status)
		require.NotNil(t, job.VersionID)
		assert.Equal(t, "v-1", *job.VersionID)
	})

	t.Run("job already running", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectQuery(`UPDATE\s+publish_jobs`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT\s+status\s+FROM\s+publish_jobs`).WithArgs("j-1").
			WillReturnRows(sqlmock.NewRows([]string{"status"}).AddRow("building"))

		_, err := s.ClaimPublishJob(context.Background(), "j-1")
		assert.ErrorIs(t, err, domain.ErrJobNotQueued)
	})

	t.Run("unknown job", func(t *testing.T) {
		s, mock := newStoreWithMock(t)

		mock.ExpectQuery(`UPDATE\s+publish_jobs`).WillReturnError(sql.ErrNoRows)
		mock.ExpectQuery(`SELECT\s+status\s+FROM\s+publish_jobs`).WithArgs("j-1").WillReturnError(sql.ErrNoRows)

		_, err := s.ClaimPublishJob(context.Background(), "j-1")
		assert.ErrorIs(t, err, domain.ErrJobNotFound)
	})
}

func TestHasActivePublishJob(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)SELECT\s+EXISTS.*status\s+IN\s+\('queued',\s*'building'\)`).
		WithArgs("p-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	active, err := s.HasActivePublishJob(context.Background(), "p-1")
	require.NoError(t, err)
	assert.True(t, active)
}

func TestImportProject_RollsBackOnError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+projects`).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "projects_owner_id_fkey"})
	mock.ExpectRollback()

	err := s.ImportProject(context.Background(),
		&domain.User{ID: "u-1", DisplayName: "Ada", CreatedAt: fixedNow},
		&domain.Project{ID: "p-1", OwnerID: "u-1", Type: domain.ProjectTypeComic, Status: domain.ProjectStatusDraft},
		nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "referenced record not found")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestImportProject_Commits(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT\s+INTO\s+users`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+projects`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT\s+INTO\s+assets`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.ImportProject(context.Background(),
		&domain.User{ID: "u-1", DisplayName: "Ada"},
		&domain.Project{ID: "p-1", OwnerID: "u-1", Type: domain.ProjectTypeComic, Status: domain.ProjectStatusApproved},
		[]*domain.Asset{{ID: "a-1", ProjectID: "p-1", URL: "https://cdn/1.png", Type: "image"}})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTx_RollsBackAndRethrowsPanic(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectBegin()
	mock.ExpectRollback()

	assert.PanicsWithValue(t, "boom", func() {
		_ = WithTx(context.Background(), s.DB(), nil, func(ctx context.Context, tx DBTX) error {
			panic("boom")
		})
	})
	require.NoError(t, mock.ExpectationsWereMet())
}
