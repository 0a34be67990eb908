// internal/handlers/auth.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ninexgroup/cashcavash-backend/internal/i18n"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
}

func NewAuthHandler(authService *services.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
	}
}

// merchantIDFromContext parses the authenticated merchant id set by the
// auth middleware.
func merchantIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	idStr, ok := utils.GetMerchantIDFromContext(c)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(idStr)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// POST /auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	// Validate request
	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	authResponse, err := h.authService.Register(&req)
	if err != nil {
		if err == services.ErrMerchantExists {
			utils.ConflictResponse(c, i18n.T(lang, i18n.KeyMerchantExists), nil)
			return
		}
		utils.BadRequestResponse(c, err.Error(), nil)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message":       i18n.T(lang, i18n.KeyAuthRegisterSuccess),
		"merchant":      authResponse.Merchant,
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
		"token_type":    authResponse.TokenType,
		"expires_in":    authResponse.ExpiresIn,
	})
}

// POST /auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req services.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	authResponse, err := h.authService.Login(&req)
	if err != nil {
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidCredentials))
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":       i18n.T(lang, i18n.KeyAuthLoginSuccess),
		"merchant":      authResponse.Merchant,
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
		"token_type":    authResponse.TokenType,
		"expires_in":    authResponse.ExpiresIn,
	})
}

// POST /auth/refresh
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	authResponse, err := h.authService.RefreshToken(req.RefreshToken)
	if err != nil {
		utils.UnauthorizedResponse(c, i18n.T(lang, i18n.KeyAuthInvalidToken))
		return
	}

	utils.SuccessResponse(c, gin.H{
		"token":         authResponse.AccessToken,
		"refresh_token": authResponse.RefreshToken,
		"token_type":    authResponse.TokenType,
		"expires_in":    authResponse.ExpiresIn,
	})
}

// GET /auth/profile
func (h *AuthHandler) Profile(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	merchant, err := h.authService.GetMerchant(merchantID)
	if err != nil {
		utils.NotFoundResponse(c, "merchant")
		return
	}

	utils.SuccessResponse(c, gin.H{"merchant": merchant})
}

// POST /auth/api-key
func (h *AuthHandler) CreateAPIKey(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	key, err := h.authService.CreateAPIKey(merchantID)
	if err != nil {
		if err == services.ErrAPIKeyExists {
			utils.ConflictResponse(c, i18n.T(lang, i18n.KeyMerchantAPIKeyExists), nil)
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.CreatedResponse(c, gin.H{
		"api_key":    key.APIKey,
		"created_at": key.CreatedAt,
	})
}

// DELETE /auth/api-key
func (h *AuthHandler) RevokeAPIKey(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	if err := h.authService.RevokeAPIKey(merchantID); err != nil {
		if err == services.ErrNoAPIKey {
			utils.NotFoundResponse(c, "merchant")
			return
		}
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"message": "API key revoked"})
}
