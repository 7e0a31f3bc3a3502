package onboarding

import (
	"time"

	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services"
	"github.com/classpilot/api/utils/response"
	"github.com/classpilot/api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// OnboardingHandler completes a signed-up account's role profile.
type OnboardingHandler struct {
	db           *gorm.DB
	provisioning *services.ProvisioningService
	validator    *validation.Validator
}

// NewOnboardingHandler creates a new onboarding handler
func NewOnboardingHandler(db *gorm.DB, provisioning *services.ProvisioningService) *OnboardingHandler {
	return &OnboardingHandler{
		db:           db,
		provisioning: provisioning,
		validator:    validation.NewValidator(),
	}
}

// InstituteRequest is the INSTITUTE_ADMIN variant. CREATE opens a new
// institute in PENDING_APPROVAL; JOIN attaches to an existing one.
type InstituteRequest struct {
	Mode        string `json:"mode" validate:"required,oneof=CREATE JOIN"`
	Name        string `json:"name" validate:"required_if=Mode CREATE,omitempty,min=2,max=200"`
	Code        string `json:"code" validate:"required_if=Mode CREATE,omitempty,min=2,max=50"`
	InstituteID uint   `json:"institute_id" validate:"required_if=Mode JOIN"`
}

// TeacherRequest is the TEACHER variant.
type TeacherRequest struct {
	TeacherID       string   `json:"teacher_id" validate:"required,min=2,max=50"`
	InstituteID     *uint    `json:"institute_id"`
	Subjects        []string `json:"subjects"`
	SubjectsRaw     string   `json:"subjects_raw"`
	Qualification   string   `json:"qualification" validate:"omitempty,max=200"`
	ExperienceYears int      `json:"experience_years" validate:"omitempty,min=0,max=60"`
}

// StudentRequest is the STUDENT variant.
type StudentRequest struct {
	StudentID     string     `json:"student_id" validate:"required,min=2,max=50"`
	InstituteID   uint       `json:"institute_id" validate:"required"`
	DateOfBirth   *time.Time `json:"date_of_birth"`
	GuardianName  string     `json:"guardian_name" validate:"omitempty,max=100"`
	GuardianPhone string     `json:"guardian_phone" validate:"omitempty,max=20"`
	GuardianEmail string     `json:"guardian_email" validate:"omitempty,email"`
	Goals         []string   `json:"goals"`
}

// CompleteRequest carries the onboarding envelope. Exactly one variant must
// be set and it must match the authenticated account's role.
type CompleteRequest struct {
	FirstName string            `json:"first_name" validate:"omitempty,min=2,max=100"`
	LastName  string            `json:"last_name" validate:"omitempty,max=100"`
	Phone     string            `json:"phone" validate:"omitempty,max=20"`
	Institute *InstituteRequest `json:"institute,omitempty"`
	Teacher   *TeacherRequest   `json:"teacher,omitempty"`
	Student   *StudentRequest   `json:"student,omitempty"`
}

// Complete finishes onboarding for the authenticated account. Repeating the
// call after a partial failure converges on the same account and profile.
func (h *OnboardingHandler) Complete(c *fiber.Ctx) error {
	account, ok := c.Locals("account").(*model.Account)
	if !ok || account == nil {
		return response.Unauthorized(c, "Authentication required")
	}

	var req CompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	svcReq := services.OnboardingRequest{
		Email:     account.Email,
		FirstName: firstNonEmpty(req.FirstName, account.FirstName),
		LastName:  firstNonEmpty(req.LastName, account.LastName),
		Phone:     firstNonEmpty(req.Phone, account.Phone),
		Role:      account.Role,
	}

	if req.Institute != nil {
		if err := h.validator.ValidateStruct(req.Institute); err != nil {
			return response.ValidationError(c, err)
		}
		svcReq.Institute = &services.InstituteOnboarding{
			Mode:        req.Institute.Mode,
			Name:        req.Institute.Name,
			Code:        req.Institute.Code,
			InstituteID: req.Institute.InstituteID,
		}
	}
	if req.Teacher != nil {
		if err := h.validator.ValidateStruct(req.Teacher); err != nil {
			return response.ValidationError(c, err)
		}
		svcReq.Teacher = &services.TeacherOnboarding{
			TeacherID:       req.Teacher.TeacherID,
			InstituteID:     req.Teacher.InstituteID,
			Subjects:        req.Teacher.Subjects,
			SubjectsRaw:     req.Teacher.SubjectsRaw,
			Qualification:   req.Teacher.Qualification,
			ExperienceYears: req.Teacher.ExperienceYears,
		}
	}
	if req.Student != nil {
		if err := h.validator.ValidateStruct(req.Student); err != nil {
			return response.ValidationError(c, err)
		}
		svcReq.Student = &services.StudentOnboarding{
			StudentID:     req.Student.StudentID,
			InstituteID:   req.Student.InstituteID,
			DateOfBirth:   req.Student.DateOfBirth,
			GuardianName:  req.Student.GuardianName,
			GuardianPhone: req.Student.GuardianPhone,
			GuardianEmail: req.Student.GuardianEmail,
			Goals:         req.Student.Goals,
		}
	}
	updated, err := h.provisioning.CompleteOnboarding(c.Context(), svcReq)
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	return response.Success(c, fiber.Map{
		"account": fiber.Map{
			"id":                  updated.ID,
			"email":               updated.Email,
			"role":                updated.Role,
			"onboarding_complete": updated.OnboardingComplete,
		},
	})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
