package admin

import (
	"time"

	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// CreateStudentRequest provisions a student account end to end. Students
// always belong to an institute.
type CreateStudentRequest struct {
	AccountFields
	StudentID     string     `json:"student_id" validate:"required,min=2,max=50"`
	InstituteID   uint       `json:"institute_id" validate:"required"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	GuardianName  string     `json:"guardian_name" validate:"omitempty,max=100"`
	GuardianPhone string     `json:"guardian_phone" validate:"omitempty,max=20"`
	GuardianEmail string     `json:"guardian_email" validate:"omitempty,email"`
	Goals         []string   `json:"goals"`
}

// UpdateStudentRequest carries partial updates; ClassIDs, when present, is
// the complete desired class set.
type UpdateStudentRequest struct {
	Account       *AccountUpdateFields `json:"account"`
	InstituteID   *uint                `json:"institute_id"`
	GuardianName  *string              `json:"guardian_name" validate:"omitempty,max=100"`
	GuardianPhone *string              `json:"guardian_phone" validate:"omitempty,max=20"`
	GuardianEmail *string              `json:"guardian_email" validate:"omitempty,email"`
	Goals         []string             `json:"goals"`
	ClassIDs      *[]uint              `json:"class_ids"`
}

// CreateStudent handles POST /admin/students.
func (h *AdminHandler) CreateStudent(c *fiber.Ctx) error {
	var req CreateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	profile, err := h.provisioning.CreateStudent(c.Context(), req.toInput(), services.StudentOnboarding{
		StudentID:     req.StudentID,
		InstituteID:   req.InstituteID,
		DateOfBirth:   req.DateOfBirth,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		GuardianEmail: req.GuardianEmail,
		Goals:         req.Goals,
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.Created(c, profile)
}

// ListStudents handles GET /admin/students with optional institute filter.
func (h *AdminHandler) ListStudents(c *fiber.Ctx) error {
	page, limit := paginationParams(c)

	query := h.db.Model(&model.StudentProfile{})
	if instituteID := c.QueryInt("institute_id", 0); instituteID > 0 {
		query = query.Where("institute_id = ?", instituteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count students")
	}

	var students []model.StudentProfile
	if err := query.Preload("Account").Preload("Institute").
		Order("id").Offset((page - 1) * limit).Limit(limit).
		Find(&students).Error; err != nil {
		return response.InternalServerError(c, "Failed to list students")
	}

	return response.Paginated(c, students, response.CalculatePagination(page, limit, total))
}

// GetStudent handles GET /admin/students/:id.
func (h *AdminHandler) GetStudent(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid student id")
	}

	var profile model.StudentProfile
	if err := h.db.Preload("Account").Preload("Institute").First(&profile, id).Error; err != nil {
		return response.NotFound(c, "Student not found")
	}
	return response.Success(c, profile)
}

// UpdateStudent handles PUT /admin/students/:id.
func (h *AdminHandler) UpdateStudent(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid student id")
	}

	var req UpdateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	profile, err := h.provisioning.UpdateStudent(c.Context(), id, services.StudentUpdate{
		Account:       req.Account.toUpdate(),
		InstituteID:   req.InstituteID,
		GuardianName:  req.GuardianName,
		GuardianPhone: req.GuardianPhone,
		GuardianEmail: req.GuardianEmail,
		Goals:         req.Goals,
		ClassIDs:      req.ClassIDs,
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, profile)
}

// DeleteStudent handles DELETE /admin/students/:id.
func (h *AdminHandler) DeleteStudent(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid student id")
	}

	if err := h.provisioning.DeleteStudent(c.Context(), id); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Student deleted", nil)
}
