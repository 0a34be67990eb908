// internal/services/auth_service.go
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrMerchantExists     = errors.New("merchant with this email already exists")
	ErrAPIKeyExists       = errors.New("an API key already exists for this merchant")
	ErrNoAPIKey           = errors.New("merchant has no API key")
)

type AuthService struct {
	db  *gorm.DB
	cfg *config.Config
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RegisterRequest struct {
	Name            string                 `json:"name" validate:"required,min=2,max=255"`
	Email           string                 `json:"email" validate:"required,email"`
	Password        string                 `json:"password" validate:"required,min=8"`
	BusinessName    string                 `json:"business_name,omitempty"`
	WebhookURL      string                 `json:"webhook_url,omitempty" validate:"omitempty,url"`
	BusinessDetails map[string]interface{} `json:"business_details,omitempty"`
}

type AuthResponse struct {
	Merchant     *models.Merchant `json:"merchant"`
	AccessToken  string           `json:"access_token"`
	RefreshToken string           `json:"refresh_token"`
	TokenType    string           `json:"token_type"`
	ExpiresIn    int              `json:"expires_in"` // in seconds
}

type APIKeyResponse struct {
	APIKey    string    `json:"api_key"`
	CreatedAt time.Time `json:"created_at"`
}

func NewAuthService(db *gorm.DB, cfg *config.Config) *AuthService {
	return &AuthService{
		db:  db,
		cfg: cfg,
	}
}

func (s *AuthService) Register(req *RegisterRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	// Check if merchant already exists
	var existing models.Merchant
	if err := s.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return nil, ErrMerchantExists
	}

	merchant := &models.Merchant{
		Name:            req.Name,
		Email:           req.Email,
		BusinessName:    req.BusinessName,
		Role:            models.MerchantRoleAdmin,
		WebhookURL:      req.WebhookURL,
		BusinessDetails: models.JSONB(req.BusinessDetails),
	}

	if err := merchant.SetPassword(req.Password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.db.Create(merchant).Error; err != nil {
		return nil, fmt.Errorf("failed to create merchant: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"merchant_id": merchant.ID,
		"email":       merchant.Email,
	}).Info("Merchant registered")

	return s.issueTokens(merchant)
}

func (s *AuthService) Login(req *LoginRequest) (*AuthResponse, error) {
	// Validate request
	if err := utils.ValidateStruct(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var merchant models.Merchant
	if err := s.db.Where("email = ?", req.Email).First(&merchant).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := merchant.CheckPassword(req.Password); err != nil {
		return nil, ErrInvalidCredentials
	}

	now := time.Now()
	s.db.Model(&merchant).Update("last_login_at", now)
	merchant.LastLoginAt = &now

	return s.issueTokens(&merchant)
}

func (s *AuthService) RefreshToken(refreshToken string) (*AuthResponse, error) {
	merchantID, err := utils.ValidateRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	id, err := uuid.Parse(merchantID)
	if err != nil {
		return nil, err
	}

	var merchant models.Merchant
	if err := s.db.First(&merchant, id).Error; err != nil {
		return nil, err
	}

	return s.issueTokens(&merchant)
}

func (s *AuthService) issueTokens(merchant *models.Merchant) (*AuthResponse, error) {
	accessToken, err := utils.GenerateJWT(
		merchant.ID,
		merchant.DisplayName(),
		string(merchant.Role),
		s.cfg.JWT.AccessTokenTTL,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	refreshToken, err := utils.GenerateRefreshToken(merchant.ID, s.cfg.JWT.RefreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to generate refresh token: %w", err)
	}

	return &AuthResponse{
		Merchant:     merchant,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    s.cfg.JWT.AccessTokenTTL * 3600, // Convert hours to seconds
	}, nil
}

// CreateAPIKey issues the merchant's server-to-server key. Only one key
// can exist at a time; revoke first to rotate.
func (s *AuthService) CreateAPIKey(merchantID uuid.UUID) (*APIKeyResponse, error) {
	var merchant models.Merchant
	if err := s.db.First(&merchant, merchantID).Error; err != nil {
		return nil, err
	}
	if merchant.APIKey != nil {
		return nil, ErrAPIKeyExists
	}

	key := utils.GenerateAPIKey()
	now := time.Now()
	if err := s.db.Model(&merchant).Updates(map[string]interface{}{
		"api_key":            key,
		"api_key_created_at": now,
	}).Error; err != nil {
		return nil, err
	}

	logrus.WithField("merchant_id", merchantID).Info("API key created")

	return &APIKeyResponse{APIKey: key, CreatedAt: now}, nil
}

func (s *AuthService) RevokeAPIKey(merchantID uuid.UUID) error {
	var merchant models.Merchant
	if err := s.db.First(&merchant, merchantID).Error; err != nil {
		return err
	}
	if merchant.APIKey == nil {
		return ErrNoAPIKey
	}

	if err := s.db.Model(&merchant).Updates(map[string]interface{}{
		"api_key":            nil,
		"api_key_created_at": nil,
	}).Error; err != nil {
		return err
	}

	logrus.WithField("merchant_id", merchantID).Info("API key revoked")
	return nil
}

func (s *AuthService) GetMerchant(merchantID uuid.UUID) (*models.Merchant, error) {
	var merchant models.Merchant
	if err := s.db.First(&merchant, merchantID).Error; err != nil {
		return nil, err
	}
	return &merchant, nil
}
