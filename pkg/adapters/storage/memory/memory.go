package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// Store implements ports.Repository using in-memory maps.
// Values are copied on the way in and out so callers never share state with the store.
type Store struct {
	mu       sync.RWMutex
	projects map[string]*domain.Project
	users    map[string]*domain.User
	assets   map[string][]*domain.Asset          // project_id -> assets
	versions map[string][]*domain.ProjectVersion // project_id -> versions ordered by number
	jobs     map[string]*domain.PublishJob
	jobOrder []string

	now func() time.Time
}

// NewStore creates a new in-memory store
func NewStore() *Store {
	return &Store{
		projects: make(map[string]*domain.Project),
		users:    make(map[string]*domain.User),
		assets:   make(map[string][]*domain.Asset),
		versions: make(map[string][]*domain.ProjectVersion),
		jobs:     make(map[string]*domain.PublishJob),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PutProject inserts or replaces a project. It is the seam used by the editing tools and tests.
func (s *Store) PutProject(project *domain.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.projects[project.ID] = copyProject(project)
}

// PutUser inserts or replaces a user
func (s *Store) PutUser(user *domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := *user
	s.users[user.ID] = &u
}

// PutAsset appends an asset to its project
func (s *Store) PutAsset(asset *domain.Asset) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := *asset
	s.assets[asset.ProjectID] = append(s.assets[asset.ProjectID], &a)
}

// ImportProject upserts a creator, a project and its assets together.
// Assets already present under the same id are left untouched.
func (s *Store) ImportProject(ctx context.Context, user *domain.User, project *domain.Project, assets []*domain.Asset) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u := *user
	s.users[user.ID] = &u

	p := copyProject(project)
	if existing, ok := s.projects[project.ID]; ok {
		p.Revision = existing.Revision + 1
	}
	s.projects[project.ID] = p

	known := make(map[string]bool, len(s.assets[project.ID]))
	for _, a := range s.assets[project.ID] {
		known[a.ID] = true
	}
	for _, asset := range assets {
		if known[asset.ID] {
			continue
		}
		a := *asset
		s.assets[project.ID] = append(s.assets[project.ID], &a)
		known[asset.ID] = true
	}
	return nil
}

// GetProject retrieves a project
func (s *Store) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	return copyProject(p), nil
}

// UpdateProject applies update when the stored revision matches
func (s *Store) UpdateProject(ctx context.Context, id string, update domain.ProjectUpdate) (*domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.projects[id]
	if !ok {
		return nil, domain.ErrProjectNotFound
	}
	if p.Revision != update.ExpectedRevision {
		return nil, fmt.Errorf("%w: expected revision %d, found %d", domain.ErrRevisionConflict, update.ExpectedRevision, p.Revision)
	}

	if update.Status != nil {
		p.Status = *update.Status
	}
	p.Revision++
	p.UpdatedAt = s.now()

	return copyProject(p), nil
}

// GetUser retrieves a user
func (s *Store) GetUser(ctx context.Context, id string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	userCopy := *u
	return &userCopy, nil
}

// GetProjectAssets lists a project's assets in insertion order
func (s *Store) GetProjectAssets(ctx context.Context, projectID string) ([]*domain.Asset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Asset, 0, len(s.assets[projectID]))
	for _, a := range s.assets[projectID] {
		assetCopy := *a
		result = append(result, &assetCopy)
	}
	return result, nil
}

// GetLatestProjectVersion returns the highest numbered version of a project
func (s *Store) GetLatestProjectVersion(ctx context.Context, projectID string) (*domain.ProjectVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	versions := s.versions[projectID]
	if len(versions) == 0 {
		return nil, domain.ErrVersionNotFound
	}
	return copyVersion(versions[len(versions)-1]), nil
}

// CreateProjectVersion stores a new snapshot; version numbers are unique per project
func (s *Store) CreateProjectVersion(ctx context.Context, version *domain.ProjectVersion) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, v := range s.versions[version.ProjectID] {
		if v.VersionNumber == version.VersionNumber {
			return fmt.Errorf("%w: project %s version %d", domain.ErrVersionConflict, version.ProjectID, version.VersionNumber)
		}
	}

	versions := append(s.versions[version.ProjectID], copyVersion(version))
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].VersionNumber < versions[j].VersionNumber
	})
	s.versions[version.ProjectID] = versions

	return nil
}

// ListProjectVersions returns versions ordered by number ascending
func (s *Store) ListProjectVersions(ctx context.Context, projectID string) ([]*domain.ProjectVersion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.ProjectVersion, 0, len(s.versions[projectID]))
	for _, v := range s.versions[projectID] {
		result = append(result, copyVersion(v))
	}
	return result, nil
}

// CreatePublishJob stores a new job
func (s *Store) CreatePublishJob(ctx context.Context, job *domain.PublishJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[job.ID]; exists {
		return fmt.Errorf("publish job already exists: %s", job.ID)
	}
	s.jobs[job.ID] = copyJob(job)
	s.jobOrder = append(s.jobOrder, job.ID)
	return nil
}

// GetPublishJob retrieves a job
func (s *Store) GetPublishJob(ctx context.Context, id string) (*domain.PublishJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	return copyJob(job), nil
}

// UpdatePublishJob applies a partial update to a job
func (s *Store) UpdatePublishJob(ctx context.Context, id string, patch domain.JobPatch) (*domain.PublishJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	patch.Apply(job, s.now())
	return copyJob(job), nil
}

// ClaimPublishJob moves a queued job to building
func (s *Store) ClaimPublishJob(ctx context.Context, id string) (*domain.PublishJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.Status != domain.JobStatusQueued {
		return nil, fmt.Errorf("%w: job %s is %s", domain.ErrJobNotQueued, id, job.Status)
	}

	domain.JobPatch{
		Status: domain.Ptr(domain.JobStatusBuilding),
		Step:   domain.Ptr(domain.JobStepValidate),
	}.Apply(job, s.now())

	return copyJob(job), nil
}

// ListPublishJobs returns a project's jobs, newest first
func (s *Store) ListPublishJobs(ctx context.Context, projectID string) ([]*domain.PublishJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.PublishJob
	for i := len(s.jobOrder) - 1; i >= 0; i-- {
		job := s.jobs[s.jobOrder[i]]
		if job.ProjectID == projectID {
			result = append(result, copyJob(job))
		}
	}
	return result, nil
}

// HasActivePublishJob reports whether a project has a queued or building job
func (s *Store) HasActivePublishJob(ctx context.Context, projectID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, job := range s.jobs {
		if job.ProjectID == projectID && !job.Status.IsTerminal() {
			return true, nil
		}
	}
	return false, nil
}

func copyProject(p *domain.Project) *domain.Project {
	projectCopy := *p
	projectCopy.Payload = deepCopyDocument(p.Payload)
	return &projectCopy
}

func copyVersion(v *domain.ProjectVersion) *domain.ProjectVersion {
	versionCopy := *v
	versionCopy.DataSnapshot = deepCopyDocument(v.DataSnapshot)
	return &versionCopy
}

func copyJob(j *domain.PublishJob) *domain.PublishJob {
	jobCopy := *j
	jobCopy.Options.Tags = append([]string(nil), j.Options.Tags...)
	if j.Options.Tags != nil && jobCopy.Options.Tags == nil {
		jobCopy.Options.Tags = []string{}
	}
	if j.BundleJSON != nil {
		jobCopy.BundleJSON = append(json.RawMessage(nil), j.BundleJSON...)
	}
	if j.VersionID != nil {
		jobCopy.VersionID = domain.Ptr(*j.VersionID)
	}
	if j.EmergentSyncID != nil {
		jobCopy.EmergentSyncID = domain.Ptr(*j.EmergentSyncID)
	}
	if j.Error != nil {
		jobCopy.Error = domain.Ptr(*j.Error)
	}
	if j.CompletedAt != nil {
		jobCopy.CompletedAt = domain.Ptr(*j.CompletedAt)
	}
	return &jobCopy
}

// deepCopyDocument copies a JSON-like document so nested maps and slices are not shared
func deepCopyDocument(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := maps.Clone(doc)
	for k, v := range out {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyDocument(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = deepCopyValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	default:
		return val
	}
}
