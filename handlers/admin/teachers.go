package admin

import (
	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// CreateTeacherRequest provisions a teacher account end to end.
type CreateTeacherRequest struct {
	AccountFields
	TeacherID       string   `json:"teacher_id" validate:"required,min=2,max=50"`
	InstituteID     *uint    `json:"institute_id"`
	Subjects        []string `json:"subjects"`
	SubjectsRaw     string   `json:"subjects_raw"`
	Qualification   string   `json:"qualification" validate:"omitempty,max=200"`
	ExperienceYears int      `json:"experience_years" validate:"omitempty,min=0,max=60"`
}

// UpdateTeacherRequest carries partial updates plus desired relation sets.
// ClassIDs/CourseIDs, when present, are the complete end state.
type UpdateTeacherRequest struct {
	Account         *AccountUpdateFields `json:"account"`
	InstituteID     *uint                `json:"institute_id"`
	Subjects        []string             `json:"subjects"`
	SubjectsRaw     string               `json:"subjects_raw"`
	Qualification   *string              `json:"qualification" validate:"omitempty,max=200"`
	ExperienceYears *int                 `json:"experience_years" validate:"omitempty,min=0,max=60"`
	ClassIDs        *[]uint              `json:"class_ids"`
	CourseIDs       *[]uint              `json:"course_ids"`
}

// CreateTeacher handles POST /admin/teachers.
func (h *AdminHandler) CreateTeacher(c *fiber.Ctx) error {
	var req CreateTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	profile, err := h.provisioning.CreateTeacher(c.Context(), req.toInput(), services.TeacherOnboarding{
		TeacherID:       req.TeacherID,
		InstituteID:     req.InstituteID,
		Subjects:        req.Subjects,
		SubjectsRaw:     req.SubjectsRaw,
		Qualification:   req.Qualification,
		ExperienceYears: req.ExperienceYears,
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.Created(c, profile)
}

// ListTeachers handles GET /admin/teachers with optional institute filter.
func (h *AdminHandler) ListTeachers(c *fiber.Ctx) error {
	page, limit := paginationParams(c)

	query := h.db.Model(&model.TeacherProfile{})
	if instituteID := c.QueryInt("institute_id", 0); instituteID > 0 {
		query = query.Where("institute_id = ?", instituteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count teachers")
	}

	var teachers []model.TeacherProfile
	if err := query.Preload("Account").Preload("Institute").
		Order("id").Offset((page - 1) * limit).Limit(limit).
		Find(&teachers).Error; err != nil {
		return response.InternalServerError(c, "Failed to list teachers")
	}

	return response.Paginated(c, teachers, response.CalculatePagination(page, limit, total))
}

// GetTeacher handles GET /admin/teachers/:id.
func (h *AdminHandler) GetTeacher(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid teacher id")
	}

	var profile model.TeacherProfile
	if err := h.db.Preload("Account").Preload("Institute").First(&profile, id).Error; err != nil {
		return response.NotFound(c, "Teacher not found")
	}
	return response.Success(c, profile)
}

// UpdateTeacher handles PUT /admin/teachers/:id.
func (h *AdminHandler) UpdateTeacher(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid teacher id")
	}

	var req UpdateTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	profile, err := h.provisioning.UpdateTeacher(c.Context(), id, services.TeacherUpdate{
		Account:         req.Account.toUpdate(),
		InstituteID:     req.InstituteID,
		Subjects:        req.Subjects,
		SubjectsRaw:     req.SubjectsRaw,
		Qualification:   req.Qualification,
		ExperienceYears: req.ExperienceYears,
		ClassIDs:        req.ClassIDs,
		CourseIDs:       req.CourseIDs,
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, profile)
}

// DeleteTeacher handles DELETE /admin/teachers/:id. The local rows go first
// in one transaction; the external identity delete follows and is swept on
// failure instead of rolling anything back.
func (h *AdminHandler) DeleteTeacher(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid teacher id")
	}

	if err := h.provisioning.DeleteTeacher(c.Context(), id); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Teacher deleted", nil)
}
