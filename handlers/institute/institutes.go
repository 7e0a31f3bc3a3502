package institute

import (
	"strconv"

	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/utils/response"
	"github.com/classpilot/api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// InstituteHandler manages institute records and their approval lifecycle.
type InstituteHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewInstituteHandler creates a new institute handler
func NewInstituteHandler(db *gorm.DB) *InstituteHandler {
	return &InstituteHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// CreateInstituteRequest opens a new institute directly (super admin flow);
// self-service creation goes through onboarding instead.
type CreateInstituteRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=200"`
	Code    string `json:"code" validate:"required,min=2,max=50"`
	Address string `json:"address" validate:"omitempty,max=500"`
	City    string `json:"city" validate:"omitempty,max=100"`
}

// UpdateInstituteRequest carries partial institute updates. Code is the
// business key and cannot be changed after creation.
type UpdateInstituteRequest struct {
	Name    *string `json:"name" validate:"omitempty,min=2,max=200"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	City    *string `json:"city" validate:"omitempty,max=100"`
	Status  *string `json:"status" validate:"omitempty,oneof=PENDING_APPROVAL ACTIVE INACTIVE SUSPENDED"`
}

func parseIDParam(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

// Create handles POST /admin/institutes.
func (h *InstituteHandler) Create(c *fiber.Ctx) error {
	var req CreateInstituteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var count int64
	if err := h.db.Model(&model.Institute{}).Where("code = ?", req.Code).Count(&count).Error; err != nil {
		return response.InternalServerError(c, "Failed to check institute code")
	}
	if count > 0 {
		return response.Conflict(c, "Institute code already in use")
	}

	institute := model.Institute{
		Name:    req.Name,
		Code:    req.Code,
		Status:  model.InstitutePendingApproval,
		Address: req.Address,
		City:    req.City,
	}
	if err := h.db.Create(&institute).Error; err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.Created(c, institute)
}

// List handles GET /institutes with optional status filter.
func (h *InstituteHandler) List(c *fiber.Ctx) error {
	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}

	query := h.db.Model(&model.Institute{})
	if status := c.Query("status"); status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count institutes")
	}

	var institutes []model.Institute
	if err := query.Order("id").Offset((page - 1) * limit).Limit(limit).
		Find(&institutes).Error; err != nil {
		return response.InternalServerError(c, "Failed to list institutes")
	}

	return response.Paginated(c, institutes, response.CalculatePagination(page, limit, total))
}

// Get handles GET /institutes/:id.
func (h *InstituteHandler) Get(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid institute id")
	}

	var institute model.Institute
	if err := h.db.First(&institute, id).Error; err != nil {
		return response.NotFound(c, "Institute not found")
	}
	return response.Success(c, institute)
}

// Update handles PUT /admin/institutes/:id.
func (h *InstituteHandler) Update(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid institute id")
	}

	var req UpdateInstituteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var institute model.Institute
	if err := h.db.First(&institute, id).Error; err != nil {
		return response.NotFound(c, "Institute not found")
	}

	if req.Name != nil {
		institute.Name = *req.Name
	}
	if req.Address != nil {
		institute.Address = *req.Address
	}
	if req.City != nil {
		institute.City = *req.City
	}
	if req.Status != nil {
		institute.Status = *req.Status
	}

	if err := h.db.Save(&institute).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.Success(c, institute)
}

// Approve handles POST /admin/institutes/:id/approve, moving a pending
// institute to ACTIVE.
func (h *InstituteHandler) Approve(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid institute id")
	}

	var institute model.Institute
	if err := h.db.First(&institute, id).Error; err != nil {
		return response.NotFound(c, "Institute not found")
	}
	if institute.Status != model.InstitutePendingApproval {
		return response.Conflict(c, "Institute is not pending approval")
	}

	institute.Status = model.InstituteActive
	if err := h.db.Save(&institute).Error; err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Institute approved", institute)
}

// Delete handles DELETE /admin/institutes/:id. Tenant teardown is explicit:
// classes and courses go with their join rows, admin profiles are removed,
// and teacher/student profiles are detached rather than destroyed.
func (h *InstituteHandler) Delete(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid institute id")
	}

	var institute model.Institute
	if err := h.db.First(&institute, id).Error; err != nil {
		return response.NotFound(c, "Institute not found")
	}

	err := h.db.Transaction(func(tx *gorm.DB) error {
		var classIDs []uint
		if err := tx.Model(&model.Class{}).Where("institute_id = ?", id).Pluck("id", &classIDs).Error; err != nil {
			return err
		}
		if len(classIDs) > 0 {
			if err := tx.Where("class_id IN ?", classIDs).Delete(&model.ClassStudent{}).Error; err != nil {
				return err
			}
			if err := tx.Where("class_id IN ?", classIDs).Delete(&model.ClassTeacher{}).Error; err != nil {
				return err
			}
			if err := tx.Where("class_id IN ?", classIDs).Delete(&model.ClassCourse{}).Error; err != nil {
				return err
			}
			if err := tx.Where("institute_id = ?", id).Delete(&model.Class{}).Error; err != nil {
				return err
			}
		}

		var courseIDs []uint
		if err := tx.Model(&model.Course{}).Where("institute_id = ?", id).Pluck("id", &courseIDs).Error; err != nil {
			return err
		}
		if len(courseIDs) > 0 {
			if err := tx.Where("course_id IN ?", courseIDs).Delete(&model.CourseTeacher{}).Error; err != nil {
				return err
			}
			if err := tx.Where("course_id IN ?", courseIDs).Delete(&model.Assessment{}).Error; err != nil {
				return err
			}
			if err := tx.Where("institute_id = ?", id).Delete(&model.Course{}).Error; err != nil {
				return err
			}
		}

		if err := tx.Where("institute_id = ?", id).Delete(&model.InstituteAdminProfile{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.TeacherProfile{}).Where("institute_id = ?", id).
			Update("institute_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&model.StudentProfile{}).Where("institute_id = ?", id).
			Update("institute_id", nil).Error; err != nil {
			return err
		}

		return tx.Delete(&institute).Error
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.SuccessWithMessage(c, "Institute deleted", nil)
}
