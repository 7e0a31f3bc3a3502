package admin

import (
	"strconv"

	"github.com/classpilot/api/services"
	"github.com/classpilot/api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// AdminHandler covers admin-driven account provisioning: teachers, students
// and institute admins are created, updated and removed here, with the
// external identity kept in sync by the provisioning service.
type AdminHandler struct {
	db           *gorm.DB
	provisioning *services.ProvisioningService
	validator    *validation.Validator
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(db *gorm.DB, provisioning *services.ProvisioningService) *AdminHandler {
	return &AdminHandler{
		db:           db,
		provisioning: provisioning,
		validator:    validation.NewValidator(),
	}
}

// AccountFields is the shared account portion of admin create requests.
type AccountFields struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,min=2,max=100"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
}

func (f AccountFields) toInput() services.NewAccountInput {
	return services.NewAccountInput{
		Email:     f.Email,
		Password:  f.Password,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
	}
}

// AccountUpdateFields is the shared account portion of admin update requests.
// Omitted fields are left untouched.
type AccountUpdateFields struct {
	Email     *string `json:"email" validate:"omitempty,email"`
	FirstName *string `json:"first_name" validate:"omitempty,min=2,max=100"`
	LastName  *string `json:"last_name" validate:"omitempty,max=100"`
	Phone     *string `json:"phone" validate:"omitempty,max=20"`
	Status    *string `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE SUSPENDED"`
}

func (f *AccountUpdateFields) toUpdate() *services.AccountUpdate {
	if f == nil {
		return nil
	}
	return &services.AccountUpdate{
		Email:     f.Email,
		FirstName: f.FirstName,
		LastName:  f.LastName,
		Phone:     f.Phone,
		Status:    f.Status,
	}
}

func parseIDParam(c *fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func paginationParams(c *fiber.Ctx) (page, limit int) {
	page = c.QueryInt("page", 1)
	limit = c.QueryInt("limit", 20)
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
