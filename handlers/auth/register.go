package auth

import (
	"github.com/classpilot/api/handlers"
	"github.com/classpilot/api/services"
	authutil "github.com/classpilot/api/utils/auth"
	"github.com/classpilot/api/utils/response"
	"github.com/classpilot/api/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// RegisterRequest represents a self-service sign-up request
type RegisterRequest struct {
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=8"`
	FirstName string `json:"first_name" validate:"required,min=2"`
	LastName  string `json:"last_name" validate:"omitempty,max=100"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	Role      string `json:"role" validate:"required,oneof=INSTITUTE_ADMIN TEACHER STUDENT"`
}

// RegisterResponse represents a successful registration response
type RegisterResponse struct {
	Account AccountResponse `json:"account"`
	Tokens  TokenPair       `json:"tokens"`
}

// Register handles self-service sign-up: the identity is created at the
// provider first, then the local account. Role profiles come later through
// the onboarding endpoint.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req RegisterRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if !authutil.IsPasswordValid(req.Password) {
		return response.BadRequest(c, "Password must be at least 8 characters long")
	}
	if !validation.ValidateEmail(req.Email) {
		return response.BadRequest(c, "Invalid email address")
	}

	account, err := h.provisioning.Register(c.Context(), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Phone:     req.Phone,
		Role:      req.Role,
	})
	if err != nil {
		return handlers.ServiceError(c, err)
	}

	tokens, err := h.issueTokens(account)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	return response.Created(c, RegisterResponse{
		Account: newAccountResponse(account),
		Tokens:  *tokens,
	})
}
