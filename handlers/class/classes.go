package class

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

// ClassHandler manages classes and the membership sets hanging off them.
type ClassHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewClassHandler creates a new class handler
func NewClassHandler(db *gorm.DB) *ClassHandler {
	return &ClassHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateClassRequest creates a class inside an institute.
type CreateClassRequest struct {
	InstituteID uint   `json:"institute_id" validate:"required"`
	Name        string `json:"name" validate:"required,min=1,max=100"`
	Level       string `json:"level" validate:"omitempty,max=50"`
}

// UpdateClassRequest carries partial class updates.
type UpdateClassRequest struct {
	Name  *string `json:"name" validate:"omitempty,min=1,max=100"`
	Level *string `json:"level" validate:"omitempty,max=50"`
}

// MembersRequest is the desired end-state id set for a relation endpoint.
// The set replaces the current one; it is not a delta.
type MembersRequest struct {
	IDs []uint `json:"ids" validate:"required"`
}

// ReconcileResult reports what a desired-set call actually changed.
type ReconcileResult struct {
	Added   int `json:"added"`
	Removed int `json:"removed"`
	Total   int `json:"total"`
}

func parseIDParam(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Create handles POST /classes.
func (h *ClassHandler) Create(c *fiber.Ctx) error {
	var req CreateClassRequest
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

	class := model.Class{
		InstituteID: req.InstituteID,
		Name:        req.Name,
		Level:       req.Level,
	}
	if err := h.db.Create(&class).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Created(c, class)
}

// List handles GET /classes with optional institute filter.
func (h *ClassHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.Model(&model.Class{})
	if instituteID := c.QueryInt("institute_id", 0); instituteID > 0 {
		query = query.Where("institute_id = ?", instituteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count classes")
	}

	var classes []model.Class
	if err := query.Order("id").Offset((page - 1) * limit).Limit(limit).
		Find(&classes).Error; err != nil {
		return response.InternalServerError(c, "Failed to list classes")
	}

	return response.Paginated(c, classes, response.CalculatePagination(page, limit, total))
}

// Get handles GET /classes/:id, including current member id sets.
func (h *ClassHandler) Get(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid class id")
	}

	var class model.Class
	if err := h.db.First(&class, id).Error; err != nil {
		return response.NotFound(c, "Class not found")
	}

	var studentIDs, courseIDs, teacherIDs []uint
	if err := h.db.Model(&model.ClassStudent{}).Where("class_id = ?", id).
		Pluck("student_profile_id", &studentIDs).Error; err != nil {
		return response.InternalServerError(c, "Failed to load class members")
	}
	if err := h.db.Model(&model.ClassCourse{}).Where("class_id = ?", id).
		Pluck("course_id", &courseIDs).Error; err != nil {
		return response.InternalServerError(c, "Failed to load class members")
	}
	if err := h.db.Model(&model.ClassTeacher{}).Where("class_id = ?", id).
		Pluck("teacher_profile_id", &teacherIDs).Error; err != nil {
		return response.InternalServerError(c, "Failed to load class members")
	}

	return response.Success(c, fiber.Map{
		"class":       class,
		"student_ids": studentIDs,
		"course_ids":  courseIDs,
		"teacher_ids": teacherIDs,
	})
}

// Update handles PUT /classes/:id.
func (h *ClassHandler) Update(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid class id")
	}

	var req UpdateClassRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var class model.Class
	if err := h.db.First(&class, id).Error; err != nil {
		return response.NotFound(c, "Class not found")
	}

	if req.Name != nil {
		class.Name = *req.Name
	}
	if req.Level != nil {
		class.Level = *req.Level
	}
	if err := h.db.Save(&class).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, class)
}

// Delete handles DELETE /classes/:id with explicit join-row cleanup.
func (h *ClassHandler) Delete(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid class id")
	}

	var class model.Class
	if err := h.db.First(&class, id).Error; err != nil {
		return response.NotFound(c, "Class not found")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("class_id = ?", id).Delete(&model.ClassStudent{}).Error; err != nil {
			return err
		}
		if err := tx.Where("class_id = ?", id).Delete(&model.ClassTeacher{}).Error; err != nil {
			return err
		}
		if err := tx.Where("class_id = ?", id).Delete(&model.ClassCourse{}).Error; err != nil {
			return err
		}
		return tx.Delete(&class).Error
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Class deleted", nil)
}

// SetStudents handles PUT /classes/:id/students.
func (h *ClassHandler) SetStudents(c *fiber.Ctx) error {
	return h.setMembers(c, services.ClassStudents)
}

// SetCourses handles PUT /classes/:id/courses.
func (h *ClassHandler) SetCourses(c *fiber.Ctx) error {
	return h.setMembers(c, services.ClassCourses)
}

// SetTeachers handles PUT /classes/:id/teachers.
func (h *ClassHandler) SetTeachers(c *fiber.Ctx) error {
	return h.setMembers(c, services.ClassTeachers)
}

func (h *ClassHandler) setMembers(c *fiber.Ctx, rel services.Relation) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid class id")
	}

	var req MembersRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var class model.Class
	if err := h.db.First(&class, id).Error; err != nil {
		return response.NotFound(c, "Class not found")
	}

	var result ReconcileResult
	err := h.db.Transaction(func(tx *gorm.DB) error {
		added, removed, err := services.Reconcile(tx, rel, id, req.IDs)
		if err != nil {
			return err
		}
		result.Added = added
		result.Removed = removed
		return nil
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	result.Total = len(req.IDs)
	return response.Success(c, result)
}
