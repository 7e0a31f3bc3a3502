package assessment

import (
	"strconv"
	"time"

	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/utils/response"
	"github.com/classpilot/api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AssessmentHandler manages course assessments.
type AssessmentHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewAssessmentHandler creates a new assessment handler
func NewAssessmentHandler(db *gorm.DB) *AssessmentHandler {
	return &AssessmentHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateAssessmentRequest creates an assessment under a course. PassingMarks
// may not exceed TotalMarks; the payload is rejected before any write.
type CreateAssessmentRequest struct {
	CourseID     uint       `json:"course_id" validate:"required"`
	Title        string     `json:"title" validate:"required,min=1,max=200"`
	Description  string     `json:"description" validate:"omitempty,max=2000"`
	TotalMarks   int        `json:"total_marks" validate:"required,min=1,max=1000"`
	PassingMarks int        `json:"passing_marks" validate:"required,min=0,ltefield=TotalMarks"`
	DueAt        *time.Time `json:"due_at"`
}

// UpdateAssessmentRequest carries partial updates. The marks bound is
// enforced against the merged record, since either field may arrive alone.
type UpdateAssessmentRequest struct {
	Title        *string    `json:"title" validate:"omitempty,min=1,max=200"`
	Description  *string    `json:"description" validate:"omitempty,max=2000"`
	TotalMarks   *int       `json:"total_marks" validate:"omitempty,min=1,max=1000"`
	PassingMarks *int       `json:"passing_marks" validate:"omitempty,min=0"`
	DueAt        *time.Time `json:"due_at"`
}

func parseIDParam(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Create handles POST /assessments.
func (h *AssessmentHandler) Create(c *fiber.Ctx) error {
	var req CreateAssessmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var count int64
	if err := h.db.Model(&model.Course{}).Where("id = ?", req.CourseID).Count(&count).Error; err != nil {
		return response.InternalServerError(c, "Failed to check course")
	}
	if count == 0 {
		return response.NotFound(c, "Course not found")
	}

	assessment := model.Assessment{
		CourseID:     req.CourseID,
		Title:        req.Title,
		Description:  req.Description,
		TotalMarks:   req.TotalMarks,
		PassingMarks: req.PassingMarks,
		DueAt:        req.DueAt,
	}
	if err := h.db.Create(&assessment).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, assessment)
}

// List handles GET /assessments with optional course filter.
func (h *AssessmentHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.Model(&model.Assessment{})
	if courseID := c.QueryInt("course_id", 0); courseID > 0 {
		query = query.Where("course_id = ?", courseID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count assessments")
	}

	var assessments []model.Assessment
	if err := query.Order("id").Offset((page - 1) * limit).Limit(limit).
		Find(&assessments).Error; err != nil {
		return response.InternalServerError(c, "Failed to list assessments")
	}

	return response.Paginated(c, assessments, response.CalculatePagination(page, limit, total))
}

// Get handles GET /assessments/:id.
func (h *AssessmentHandler) Get(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid assessment id")
	}

	var assessment model.Assessment
	if err := h.db.First(&assessment, id).Error; err != nil {
		return response.NotFound(c, "Assessment not found")
	}
	return response.Success(c, assessment)
}

// Update handles PUT /assessments/:id. The marks invariant is re-checked
// against the merged state, not just the payload.
func (h *AssessmentHandler) Update(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid assessment id")
	}

	var req UpdateAssessmentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var assessment model.Assessment
	if err := h.db.First(&assessment, id).Error; err != nil {
		return response.NotFound(c, "Assessment not found")
	}

	if req.Title != nil {
		assessment.Title = *req.Title
	}
	if req.Description != nil {
		assessment.Description = *req.Description
	}
	if req.TotalMarks != nil {
		assessment.TotalMarks = *req.TotalMarks
	}
	if req.PassingMarks != nil {
		assessment.PassingMarks = *req.PassingMarks
	}
	if req.DueAt != nil {
		assessment.DueAt = req.DueAt
	}

	if assessment.PassingMarks > assessment.TotalMarks {
		return response.BadRequest(c, "Passing marks cannot exceed total marks")
	}

	if err := h.db.Save(&assessment).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, assessment)
}

// Delete handles DELETE /assessments/:id.
func (h *AssessmentHandler) Delete(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid assessment id")
	}

	var assessment model.Assessment
	if err := h.db.First(&assessment, id).Error; err != nil {
		return response.NotFound(c, "Assessment not found")
	}
	if err := h.db.Delete(&assessment).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Assessment deleted", nil)
}
