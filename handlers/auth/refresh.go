package auth

import (
	"errors"

	"github.com/classpilot/api/model"
	authutil "github.com/classpilot/api/utils/auth"
	"github.com/classpilot/api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// RefreshRequest carries the refresh token to exchange
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// Refresh exchanges a valid refresh token for a new token pair. The used
// refresh token is revoked so each one can be redeemed once.
func (h *AuthHandler) Refresh(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	claims, err := h.jwtManager.ValidateToken(req.RefreshToken)
	if err != nil {
		if errors.Is(err, authutil.ErrExpiredToken) {
			return response.Unauthorized(c, "Refresh token has expired")
		}
		return response.Unauthorized(c, "Invalid refresh token")
	}
	if claims.TokenType != "refresh" {
		return response.Unauthorized(c, "Invalid token type")
	}

	revoked, err := h.blacklistService.IsTokenRevoked(c.Context(), claims.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to check token status")
	}
	if revoked {
		return response.Unauthorized(c, "Refresh token has been revoked")
	}

	var account model.Account
	if err := h.db.First(&account, claims.AccountID).Error; err != nil {
		return response.Unauthorized(c, "Account not found")
	}
	if account.Status == model.AccountSuspended {
		return response.Forbidden(c, "Account is suspended")
	}
	if account.TokenVersion != claims.TokenVersion {
		return response.Unauthorized(c, "Token has been invalidated")
	}

	if err := h.blacklistService.RevokeToken(c.Context(), claims.ID, claims.AccountID, claims.ExpiresAt.Time, "refresh_rotation"); err != nil {
		return response.InternalServerError(c, "Failed to rotate refresh token")
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
