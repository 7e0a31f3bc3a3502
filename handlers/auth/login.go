package auth

import (
	"github.com/classpilot/api/model"
	authutil "github.com/classpilot/api/utils/auth"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Account AccountResponse `json:"account"`
	Tokens  TokenPair       `json:"tokens"`
}

// Login handles account login
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()

	var account model.Account
	if err := h.db.Where("email = ?", req.Email).First(&account).Error; err != nil {
		// Record failed attempt even if the account does not exist
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if err := authutil.VerifyPassword(account.PasswordHash, req.Password); err != nil {
		if h.bruteForceProtection != nil {
			h.bruteForceProtection.RecordFailedAttempt(c, ip)
		}
		return response.Unauthorized(c, "Invalid email or password")
	}

	if account.Status == model.AccountSuspended {
		return response.Forbidden(c, "Account is suspended")
	}

	// Clear failed attempts on successful login
	if h.bruteForceProtection != nil {
		h.bruteForceProtection.RecordSuccessfulAttempt(c, ip)
	}

	tokens, err := h.issueTokens(&account)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	return response.Success(c, LoginResponse{
		Account: newAccountResponse(&account),
		Tokens:  *tokens,
	})
}

// Logout revokes the current access token
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := c.Locals("claims").(*authutil.Claims)
	if !ok || claims == nil {
		return response.Unauthorized(c, "Authentication required")
	}

	if err := h.blacklistService.RevokeToken(c.Context(), claims.ID, claims.AccountID, claims.ExpiresAt.Time, "logout"); err != nil {
		return response.InternalServerError(c, "Failed to revoke token")
	}

	return response.SuccessWithMessage(c, "Logged out", nil)
}
