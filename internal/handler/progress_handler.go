package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/course-ledger-api/internal/middleware"
	"github.com/noah-isme/course-ledger-api/internal/models"
	"github.com/noah-isme/course-ledger-api/internal/service"
	appErrors "github.com/noah-isme/course-ledger-api/pkg/errors"
	"github.com/noah-isme/course-ledger-api/pkg/response"
)

type progressService interface {
	InitializeProgress(ctx context.Context, key models.StudentCourseKey) (*models.ProgressRecord, error)
	UpdateMilestone(ctx context.Context, caller models.Principal, key models.StudentCourseKey, milestone int64) (*service.MilestoneOutcome, error)
	ResetProgress(ctx context.Context, caller models.Principal, key models.StudentCourseKey) (*models.ProgressRecord, error)
	SetCompletionThreshold(ctx context.Context, caller models.Principal, threshold int64) error
	SetRewardAmount(ctx context.Context, caller models.Principal, amount int64) error
	SetMaxMilestones(ctx context.Context, caller models.Principal, max int64) error
	GetProgress(ctx context.Context, key models.StudentCourseKey) (*models.ProgressRecord, error)
	GetTotalCompletions(ctx context.Context, courseID int64) (int64, error)
	GetCourseMetrics(ctx context.Context, courseID int64) (*models.CourseMetrics, bool, error)
	GetStudentCourses(ctx context.Context, student models.Principal) (*models.StudentCourses, error)
}

// ProgressKeyRequest identifies a progress record.
type ProgressKeyRequest struct {
	Student  models.Principal `json:"student"`
	CourseID int64            `json:"course_id"`
}

func (r ProgressKeyRequest) key() (models.StudentCourseKey, error) {
	student := models.Principal(strings.TrimSpace(r.Student.String()))
	if student == "" {
		return models.StudentCourseKey{}, appErrors.Clone(appErrors.ErrValidation, "student is required")
	}
	return models.StudentCourseKey{Student: student, CourseID: r.CourseID}, nil
}

// MilestoneRequest records one milestone.
type MilestoneRequest struct {
	ProgressKeyRequest
	Milestone int64 `json:"milestone"`
}

// ProgressHandler exposes the progress state machine.
type ProgressHandler struct {
	progress progressService
}

// NewProgressHandler constructs ProgressHandler.
func NewProgressHandler(progress progressService) *ProgressHandler {
	return &ProgressHandler{progress: progress}
}

// Initialize godoc
// @Summary Start tracking progress for an enrolled student
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body ProgressKeyRequest true "Student and course"
// @Success 201 {object} response.Envelope
// @Router /progress [post]
func (h *ProgressHandler) Initialize(c *gin.Context) {
	var req ProgressKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	key, err := req.key()
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.progress.InitializeProgress(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// Get godoc
// @Summary Get a progress record
// @Tags Progress
// @Produce json
// @Param student query string true "Student principal"
// @Param course_id query int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /progress [get]
func (h *ProgressHandler) Get(c *gin.Context) {
	key, err := studentCourseQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.progress.GetProgress(c.Request.Context(), key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// UpdateMilestone godoc
// @Summary Record a milestone as the course instructor
// @Description Returns result 1 when the milestone completed the course.
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body MilestoneRequest true "Milestone"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope "Completion side effect failed; data holds the committed progress"
// @Router /progress/milestones [post]
func (h *ProgressHandler) UpdateMilestone(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req MilestoneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	key, err := req.key()
	if err != nil {
		response.Error(c, err)
		return
	}
	outcome, err := h.progress.UpdateMilestone(c.Request.Context(), caller, key, req.Milestone)
	if err != nil {
		if outcome != nil {
			response.Partial(c, err, outcome)
			return
		}
		response.Error(c, err)
		return
	}
	response.OK(c, outcome)
}

// Reset godoc
// @Summary Reset a progress record to empty
// @Tags Progress
// @Accept json
// @Produce json
// @Param payload body ProgressKeyRequest true "Student and course"
// @Success 200 {object} response.Envelope
// @Router /progress/reset [post]
func (h *ProgressHandler) Reset(c *gin.Context) {
	caller, err := callerFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	var req ProgressKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, invalidPayload(err))
		return
	}
	key, err := req.key()
	if err != nil {
		response.Error(c, err)
		return
	}
	record, err := h.progress.ResetProgress(c.Request.Context(), caller, key)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, record)
}

// SetCompletionThreshold godoc
// @Summary Change how many milestones complete a course
// @Tags Progress Settings
// @Accept json
// @Produce json
// @Param payload body AmountRequest true "Threshold"
// @Success 204
// @Router /progress/settings/completion-threshold [put]
func (h *ProgressHandler) SetCompletionThreshold(c *gin.Context) {
	h.updateSetting(c, h.progress.SetCompletionThreshold)
}

// SetRewardAmount godoc
// @Summary Change the reward minted per milestone
// @Tags Progress Settings
// @Accept json
// @Produce json
// @Param payload body AmountRequest true "Reward amount"
// @Success 204
// @Router /progress/settings/reward-amount [put]
func (h *ProgressHandler) SetRewardAmount(c *gin.Context) {
	h.updateSetting(c, h.progress.SetRewardAmount)
}

// SetMaxMilestones godoc
// @Summary Change the highest milestone number
// @Tags Progress Settings
// @Accept json
// @Produce json
// @Param payload body AmountRequest true "Max milestones"
// @Success 204
// @Router /progress/settings/max-milestones [put]
func (h *ProgressHandler) SetMaxMilestones(c *gin.Context) {
	h.updateSetting(c, h.progress.SetMaxMilestones)
}

func (h *ProgressHandler) updateSetting(c *gin.Context, apply func(context.Context, models.Principal, int64) error) {
	caller, err := callerFromContext(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	amount, err := bindAmount(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := apply(c.Request.Context(), caller, amount); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Completions godoc
// @Summary Number of students who completed a course
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/completions [get]
func (h *ProgressHandler) Completions(c *gin.Context) {
	courseID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	total, err := h.progress.GetTotalCompletions(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"course_id": courseID, "completions": total})
}

// Metrics godoc
// @Summary Course progress aggregates
// @Tags Courses
// @Produce json
// @Param id path int true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{id}/metrics [get]
func (h *ProgressHandler) Metrics(c *gin.Context) {
	courseID, err := int64Param(c, "id")
	if err != nil {
		response.Error(c, err)
		return
	}
	metrics, cacheHit, err := h.progress.GetCourseMetrics(c.Request.Context(), courseID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, metrics, middleware.ExtractMeta(c))
}

// StudentCourses godoc
// @Summary Courses a student most recently started
// @Tags Students
// @Produce json
// @Param student path string true "Student principal"
// @Success 200 {object} response.Envelope
// @Router /students/{student}/courses [get]
func (h *ProgressHandler) StudentCourses(c *gin.Context) {
	student := strings.TrimSpace(c.Param("student"))
	if student == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "student is required"))
		return
	}
	history, err := h.progress.GetStudentCourses(c.Request.Context(), models.Principal(student))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, history)
}
