package course

import (
	"strconv"

	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services"
	"github.com/classpilot/api/utils/response"
	"github.com/classpilot/api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// CourseHandler manages courses and their teacher assignments.
type CourseHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB) *CourseHandler {
	return &CourseHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateCourseRequest creates a course inside an institute.
type CreateCourseRequest struct {
	InstituteID uint   `json:"institute_id" validate:"required"`
	Name        string `json:"name" validate:"required,min=1,max=200"`
	Code        string `json:"code" validate:"omitempty,max=50"`
	Description string `json:"description" validate:"omitempty,max=2000"`
}

// UpdateCourseRequest carries partial course updates.
type UpdateCourseRequest struct {
	Name        *string `json:"name" validate:"omitempty,min=1,max=200"`
	Code        *string `json:"code" validate:"omitempty,max=50"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

// TeachersRequest is the desired end-state teacher set for a course.
type TeachersRequest struct {
	IDs []uint `json:"ids" validate:"required"`
}

func parseIDParam(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Create handles POST /courses.
func (h *CourseHandler) Create(c *fiber.Ctx) error {
	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var count int64
	if err := h.db.Model(&model.Institute{}).Where("id = ?", req.InstituteID).Count(&count).Error; err != nil {
		return response.InternalServerError(c, "Failed to check institute")
	}
	if count == 0 {
		return response.NotFound(c, "Institute not found")
	}

	course := model.Course{
		InstituteID: req.InstituteID,
		Name:        req.Name,
		Code:        req.Code,
		Description: req.Description,
	}
	if err := h.db.Create(&course).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, course)
}

// List handles GET /courses with optional institute filter.
func (h *CourseHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.Model(&model.Course{})
	if instituteID := c.QueryInt("institute_id", 0); instituteID > 0 {
		query = query.Where("institute_id = ?", instituteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	var courses []model.Course
	if err := query.Order("id").Offset((page - 1) * limit).Limit(limit).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to list courses")
	}

	return response.Paginated(c, courses, response.CalculatePagination(page, limit, total))
}

// Get handles GET /courses/:id with the assigned teacher ids.
func (h *CourseHandler) Get(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid course id")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		return response.NotFound(c, "Course not found")
	}

	var teacherIDs []uint
	if err := h.db.Model(&model.CourseTeacher{}).Where("course_id = ?", id).
		Pluck("teacher_profile_id", &teacherIDs).Error; err != nil {
		return response.InternalServerError(c, "Failed to load course teachers")
	}

	return response.Success(c, fiber.Map{
		"course":      course,
		"teacher_ids": teacherIDs,
	})
}

// Update handles PUT /courses/:id.
func (h *CourseHandler) Update(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid course id")
	}

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		return response.NotFound(c, "Course not found")
	}

	if req.Name != nil {
		course.Name = *req.Name
	}
	if req.Code != nil {
		course.Code = *req.Code
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if err := h.db.Save(&course).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, course)
}

// Delete handles DELETE /courses/:id. Assessments and join rows go with it.
func (h *CourseHandler) Delete(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid course id")
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		return response.NotFound(c, "Course not found")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("course_id = ?", id).Delete(&model.Assessment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.CourseTeacher{}).Error; err != nil {
			return err
		}
		if err := tx.Where("course_id = ?", id).Delete(&model.ClassCourse{}).Error; err != nil {
			return err
		}
		return tx.Delete(&course).Error
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Course deleted", nil)
}

// SetTeachers handles PUT /courses/:id/teachers with the desired teacher set.
func (h *CourseHandler) SetTeachers(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid course id")
	}

	var req TeachersRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.First(&course, id).Error; err != nil {
		return response.NotFound(c, "Course not found")
	}

	var added, removed int
	err := h.db.Transaction(func(tx *gorm.DB) error {
		var err error
		added, removed, err = services.Reconcile(tx, services.CourseTeachers, id, req.IDs)
		return err
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.Success(c, fiber.Map{
		"added":   added,
		"removed": removed,
	})
}
