// internal/tests/auth_test.go
package tests

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/handlers"
	"github.com/ninexgroup/cashcavash-backend/internal/middleware"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

type AuthTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (suite *AuthTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	suite.db = setupTestDB(suite.T(), "auth_suite")
	cfg := testConfig()
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	authService := services.NewAuthService(suite.db, cfg)
	authHandler := handlers.NewAuthHandler(authService)

	suite.router = gin.New()
	auth := suite.router.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.RefreshToken)
		auth.GET("/profile", middleware.AuthRequired(), authHandler.Profile)
	}
}

func (suite *AuthTestSuite) postJSON(path string, payload interface{}) *httptest.ResponseRecorder {
	jsonData, _ := json.Marshal(payload)
	req, _ := http.NewRequest("POST", path, bytes.NewBuffer(jsonData))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *AuthTestSuite) TestMerchantRegistration() {
	w := suite.postJSON("/api/auth/register", map[string]interface{}{
		"name":          "Acme Traders",
		"email":         "acme@example.com",
		"password":      "SuperSecret99",
		"business_name": "Acme Traders Pvt Ltd",
	})

	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	var response map[string]interface{}
	err := json.Unmarshal(w.Body.Bytes(), &response)
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), response["success"].(bool))

	data := response["data"].(map[string]interface{})
	assert.NotEmpty(suite.T(), data["token"])
	assert.NotEmpty(suite.T(), data["refresh_token"])
	assert.Equal(suite.T(), "Bearer", data["token_type"])

	merchant := data["merchant"].(map[string]interface{})
	assert.Equal(suite.T(), "acme@example.com", merchant["email"])
	// Password hash must never appear in responses
	_, exposed := merchant["password_hash"]
	assert.False(suite.T(), exposed)
}

func (suite *AuthTestSuite) TestDuplicateRegistrationRejected() {
	payload := map[string]interface{}{
		"name":     "Dup Merchant",
		"email":    "dup@example.com",
		"password": "SuperSecret99",
	}
	first := suite.postJSON("/api/auth/register", payload)
	assert.Equal(suite.T(), http.StatusCreated, first.Code)

	second := suite.postJSON("/api/auth/register", payload)
	assert.Equal(suite.T(), http.StatusConflict, second.Code)
}

func (suite *AuthTestSuite) TestLoginAndProfile() {
	register := suite.postJSON("/api/auth/register", map[string]interface{}{
		"name":     "Login Merchant",
		"email":    "login@example.com",
		"password": "SuperSecret99",
	})
	assert.Equal(suite.T(), http.StatusCreated, register.Code)

	w := suite.postJSON("/api/auth/login", map[string]interface{}{
		"email":    "login@example.com",
		"password": "SuperSecret99",
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	token := data["token"].(string)
	assert.NotEmpty(suite.T(), token)

	req, _ := http.NewRequest("GET", "/api/auth/profile", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	profile := httptest.NewRecorder()
	suite.router.ServeHTTP(profile, req)
	assert.Equal(suite.T(), http.StatusOK, profile.Code)
}

func (suite *AuthTestSuite) TestLoginWrongPassword() {
	register := suite.postJSON("/api/auth/register", map[string]interface{}{
		"name":     "Wrong Password",
		"email":    "wrongpass@example.com",
		"password": "SuperSecret99",
	})
	assert.Equal(suite.T(), http.StatusCreated, register.Code)

	w := suite.postJSON("/api/auth/login", map[string]interface{}{
		"email":    "wrongpass@example.com",
		"password": "not-the-password",
	})
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func (suite *AuthTestSuite) TestRefreshToken() {
	register := suite.postJSON("/api/auth/register", map[string]interface{}{
		"name":     "Refresh Merchant",
		"email":    "refresh@example.com",
		"password": "SuperSecret99",
	})
	assert.Equal(suite.T(), http.StatusCreated, register.Code)

	var registered map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(register.Body.Bytes(), &registered))
	refreshToken := registered["data"].(map[string]interface{})["refresh_token"].(string)

	w := suite.postJSON("/api/auth/refresh", map[string]interface{}{
		"refresh_token": refreshToken,
	})
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	assert.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.NotEmpty(suite.T(), data["token"])
}

func (suite *AuthTestSuite) TestProfileRequiresToken() {
	req, _ := http.NewRequest("GET", "/api/auth/profile", nil)
	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusUnauthorized, w.Code)
}

func TestAuthTestSuite(t *testing.T) {
	suite.Run(t, new(AuthTestSuite))
}
