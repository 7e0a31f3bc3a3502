package auth

import (
	"errors"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ProfileResponse bundles the account with its role profile variant. Exactly
// one of the profile fields is set, matching the account's role.
type ProfileResponse struct {
	Account        AccountResponse              `json:"account"`
	Student        *model.StudentProfile        `json:"student,omitempty"`
	Teacher        *model.TeacherProfile        `json:"teacher,omitempty"`
	InstituteAdmin *model.InstituteAdminProfile `json:"institute_admin,omitempty"`
	SuperAdmin     *model.SuperAdminProfile     `json:"super_admin,omitempty"`
}

// Profile returns the authenticated account and its role profile.
func (h *AuthHandler) Profile(c *fiber.Ctx) error {
	account, ok := c.Locals("account").(*model.Account)
	if !ok || account == nil {
		return response.Unauthorized(c, "Authentication required")
	}

	res := ProfileResponse{Account: newAccountResponse(account)}

	var err error
	switch account.Role {
	case model.RoleStudent:
		var p model.StudentProfile
		err = h.db.Preload("Institute").Where("account_id = ?", account.ID).First(&p).Error
		if err == nil {
			res.Student = &p
		}
	case model.RoleTeacher:
		var p model.TeacherProfile
		err = h.db.Preload("Institute").Where("account_id = ?", account.ID).First(&p).Error
		if err == nil {
			res.Teacher = &p
		}
	case model.RoleInstituteAdmin:
		var p model.InstituteAdminProfile
		err = h.db.Preload("Institute").Where("account_id = ?", account.ID).First(&p).Error
		if err == nil {
			res.InstituteAdmin = &p
		}
	case model.RoleSuperAdmin:
		var p model.SuperAdminProfile
		err = h.db.Where("account_id = ?", account.ID).First(&p).Error
		if err == nil {
			res.SuperAdmin = &p
		}
	}

	// Accounts mid-onboarding have no profile yet; that is not an error.
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return response.InternalServerError(c, "Failed to load profile")
	}

	return response.Success(c, res)
}
