package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/bundle"
	"github.com/DaMoJo09/PSCoMiXXEcosystem-sub001/pkg/domain"
)

// PublishRequest is the body of publish and preview calls
type PublishRequest struct {
	UserID     string            `json:"user_id" binding:"required"`
	Visibility domain.Visibility `json:"visibility"`
	Tags       []string          `json:"tags"`
	AgeRating  string            `json:"age_rating"`
	Changelog  string            `json:"changelog"`
}

func (r PublishRequest) options() domain.PublishOptions {
	return domain.PublishOptions{
		Visibility: r.Visibility,
		Tags:       r.Tags,
		AgeRating:  r.AgeRating,
		Changelog:  r.Changelog,
	}
}

// PublishResponse is returned when a publish job was accepted
type PublishResponse struct {
	Success       bool   `json:"success"`
	JobID         string `json:"job_id"`
	VersionID     string `json:"version_id"`
	VersionNumber int    `json:"version_number"`
}

// PreviewResponse carries a built bundle and its validation result
type PreviewResponse struct {
	Bundle     *bundle.ContentBundle `json:"bundle"`
	Validation bundle.Result         `json:"validation"`
}

// JobResponse describes a publish job without its bundle document
type JobResponse struct {
	ID             string                `json:"id"`
	ProjectID      string                `json:"project_id"`
	VersionID      *string               `json:"version_id"`
	RequestedBy    string                `json:"requested_by"`
	Options        domain.PublishOptions `json:"options"`
	Status         domain.JobStatus      `json:"status"`
	Step           domain.JobStep        `json:"step"`
	HasBundle      bool                  `json:"has_bundle"`
	EmergentSyncID *string               `json:"emergent_sync_id"`
	Error          *string               `json:"error"`
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
	CompletedAt    *time.Time            `json:"completed_at"`
}

func newJobResponse(job *domain.PublishJob) JobResponse {
	return JobResponse{
		ID:             job.ID,
		ProjectID:      job.ProjectID,
		VersionID:      job.VersionID,
		RequestedBy:    job.RequestedBy,
		Options:        job.Options,
		Status:         job.Status,
		Step:           job.Step,
		HasBundle:      len(job.BundleJSON) > 0,
		EmergentSyncID: job.EmergentSyncID,
		Error:          job.Error,
		CreatedAt:      job.CreatedAt,
		UpdatedAt:      job.UpdatedAt,
		CompletedAt:    job.CompletedAt,
	}
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Error   string `json:"error"`
	JobID   string `json:"job_id,omitempty"`
}

// handleHealth reports worker pool health
func (s *Server) handleHealth(c *gin.Context) {
	status := s.health.Health()

	code := http.StatusOK
	state := "healthy"
	if !status.Healthy {
		code = http.StatusServiceUnavailable
		state = "unhealthy"
	}

	c.JSON(code, gin.H{
		"status":    state,
		"timestamp": status.Timestamp,
		"checks": gin.H{
			"workers":     status,
			"active_jobs": s.publisher.ActiveJobs(),
		},
	})
}

// handlePublish queues a publish job for a project
func (s *Server) handlePublish(c *gin.Context) {
	projectID := c.Param("id")

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	result, err := s.publisher.Publish(c.Request.Context(), projectID, req.UserID, req.options())
	if err != nil {
		resp := errorResponse(err)
		if result != nil {
			resp.JobID = result.JobID
		}
		s.logger.Warn("publish request failed",
			zap.String("project_id", projectID),
			zap.String("user_id", req.UserID),
			zap.Error(err))
		c.JSON(statusFor(err), resp)
		return
	}

	c.JSON(http.StatusAccepted, PublishResponse{
		Success:       true,
		JobID:         result.JobID,
		VersionID:     result.VersionID,
		VersionNumber: result.VersionNumber,
	})
}

// handlePreviewBundle builds and validates a bundle without persisting anything
func (s *Server) handlePreviewBundle(c *gin.Context) {
	projectID := c.Param("id")

	var req PublishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, err)
		return
	}

	b, result, err := s.publisher.PreviewBundle(c.Request.Context(), projectID, req.UserID, req.options())
	if err != nil {
		s.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, PreviewResponse{Bundle: b, Validation: result})
}

// handleListJobs lists a project's publish jobs, newest first
func (s *Server) handleListJobs(c *gin.Context) {
	jobs, err := s.publisher.ListJobs(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}

	out := make([]JobResponse, 0, len(jobs))
	for _, job := range jobs {
		out = append(out, newJobResponse(job))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": out, "total": len(out)})
}

// handleListVersions lists a project's version snapshots
func (s *Server) handleListVersions(c *gin.Context) {
	versions, err := s.publisher.ListVersions(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if versions == nil {
		versions = []*domain.ProjectVersion{}
	}
	c.JSON(http.StatusOK, gin.H{"versions": versions, "total": len(versions)})
}

// handleGetJob returns job status
func (s *Server) handleGetJob(c *gin.Context) {
	job, err := s.publisher.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newJobResponse(job))
}

// handleGetJobBundle returns the stored bundle document of a job
func (s *Server) handleGetJobBundle(c *gin.Context) {
	job, err := s.publisher.GetJob(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if len(job.BundleJSON) == 0 {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Code:  "BUNDLE_NOT_READY",
			Error: "bundle has not been stored for this job yet",
			JobID: job.ID,
		})
		return
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", job.BundleJSON)
}

func (s *Server) badRequest(c *gin.Context, err error) {
	s.logger.Debug("invalid request", zap.Error(err))
	c.JSON(http.StatusBadRequest, ErrorResponse{
		Code:  "INVALID_REQUEST",
		Error: err.Error(),
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, errorResponse(err))
}

func errorResponse(err error) ErrorResponse {
	return ErrorResponse{Code: errorCode(err), Error: err.Error()}
}

// statusFor maps pipeline errors onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidOptions):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrProjectNotFound),
		errors.Is(err, domain.ErrUserNotFound),
		errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrProjectNotApproved),
		errors.Is(err, domain.ErrPublishInProgress):
		return http.StatusConflict
	case errors.Is(err, domain.ErrQueueFull),
		errors.Is(err, domain.ErrQueueClosed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidOptions):
		return "INVALID_OPTIONS"
	case errors.Is(err, domain.ErrProjectNotFound):
		return "PROJECT_NOT_FOUND"
	case errors.Is(err, domain.ErrUserNotFound):
		return "USER_NOT_FOUND"
	case errors.Is(err, domain.ErrJobNotFound):
		return "JOB_NOT_FOUND"
	case errors.Is(err, domain.ErrProjectNotApproved):
		return "NOT_APPROVED"
	case errors.Is(err, domain.ErrPublishInProgress):
		return "PUBLISH_IN_PROGRESS"
	case errors.Is(err, domain.ErrQueueFull), errors.Is(err, domain.ErrQueueClosed):
		return "QUEUE_UNAVAILABLE"
	default:
		return "INTERNAL"
	}
}
