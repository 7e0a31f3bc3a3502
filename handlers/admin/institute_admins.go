package admin

import (
	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// CreateInstituteAdminRequest provisions an admin account for an existing
// institute. Admins created this way are never the institute's creator.
type CreateInstituteAdminRequest struct {
	AccountFields
	InstituteID uint `json:"institute_id" validate:"required"`
}

// CreateInstituteAdmin handles POST /admin/institute-admins.
func (h *AdminHandler) CreateInstituteAdmin(c *fiber.Ctx) error {
	var req CreateInstituteAdminRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	profile, err := h.provisioning.CreateInstituteAdmin(c.Context(), req.toInput(), req.InstituteID)
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.Created(c, profile)
}

// ListInstituteAdmins handles GET /admin/institute-admins.
func (h *AdminHandler) ListInstituteAdmins(c *fiber.Ctx) error {
	page, limit := paginationParams(c)

	query := h.db.Model(&model.InstituteAdminProfile{})
	if instituteID := c.QueryInt("institute_id", 0); instituteID > 0 {
		query = query.Where("institute_id = ?", instituteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count institute admins")
	}

	var admins []model.InstituteAdminProfile
	if err := query.Preload("Account").Preload("Institute").
		Order("id").Offset((page - 1) * limit).Limit(limit).
		Find(&admins).Error; err != nil {
		return response.InternalServerError(c, "Failed to list institute admins")
	}

	return response.Paginated(c, admins, response.CalculatePagination(page, limit, total))
}

// DeleteInstituteAdmin handles DELETE /admin/institute-admins/:id.
func (h *AdminHandler) DeleteInstituteAdmin(c *fiber.Ctx) error {
	id, ok := parseIDParam(c)
	if !ok {
		return response.BadRequest(c, "Invalid institute admin id")
	}

	if err := h.provisioning.DeleteInstituteAdmin(c.Context(), id); err != nil {
		return handlers.ServiceError(c, err)
	}
	return response.SuccessWithMessage(c, "Institute admin deleted", nil)
}
