package auth

import (
	"time"

	"github.com/classpilot/api/model"
	"github.com/classpilot/api/services"
	authutil "github.com/classpilot/api/utils/auth"
	"github.com/classpilot/api/utils/middleware"
	"github.com/classpilot/api/utils/validation"
	"gorm.io/gorm"
)

// AuthHandler handles authentication-related requests
type AuthHandler struct {
	db                   *gorm.DB
	jwtManager           *authutil.JWTManager
	blacklistService     *authutil.BlacklistService
	bruteForceProtection *middleware.BruteForceProtection
	provisioning         *services.ProvisioningService
	validator            *validation.Validator
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(db *gorm.DB, jwtManager *authutil.JWTManager, provisioning *services.ProvisioningService, bruteForceProtection *middleware.BruteForceProtection) *AuthHandler {
	return &AuthHandler{
		db:                   db,
		jwtManager:           jwtManager,
		blacklistService:     authutil.NewBlacklistService(db),
		bruteForceProtection: bruteForceProtection,
		provisioning:         provisioning,
		validator:            validation.NewValidator(),
	}
}

// AccountResponse represents account data in responses
type AccountResponse struct {
	ID                 uint      `json:"id"`
	Email              string    `json:"email"`
	FirstName          string    `json:"first_name"`
	LastName           string    `json:"last_name"`
	Role               string    `json:"role"`
	Status             string    `json:"status"`
	OnboardingComplete bool      `json:"onboarding_complete"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// TokenPair is the issued token bundle
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"` // in seconds
}

func newAccountResponse(account *model.Account) AccountResponse {
	return AccountResponse{
		ID:                 account.ID,
		Email:              account.Email,
		FirstName:          account.FirstName,
		LastName:           account.LastName,
		Role:               account.Role,
		Status:             account.Status,
		OnboardingComplete: account.OnboardingComplete,
		CreatedAt:          account.CreatedAt,
		UpdatedAt:          account.UpdatedAt,
	}
}

func (h *AuthHandler) issueTokens(account *model.Account) (*TokenPair, error) {
	accessToken, _, err := h.jwtManager.GenerateAccessToken(account.ID, account.Email, account.Role, account.TokenVersion)
	if err != nil {
		return nil, err
	}

	refreshToken, _, err := h.jwtManager.GenerateRefreshToken(account.ID, account.Email, account.Role, account.TokenVersion)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    24 * 60 * 60, // 24 hours in seconds
	}, nil
}
