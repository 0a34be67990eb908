// internal/tests/payout_flow_test.go
package tests

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/handlers"
	"github.com/ninexgroup/cashcavash-backend/internal/middleware"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/settlement"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

// PayoutFlowTestSuite drives the payout lifecycle over HTTP: a merchant
// requests a payout against settled balance, the platform operator
// approves and processes it.
type PayoutFlowTestSuite struct {
	suite.Suite
	db         *gorm.DB
	router     *gin.Engine
	merchant   *models.Merchant
	superAdmin *models.Merchant
}

func (suite *PayoutFlowTestSuite) SetupSuite() {
	gin.SetMode(gin.TestMode)

	suite.db = setupTestDB(suite.T(), "payout_flow")
	cfg := testConfig()
	utils.SetJWTSecret(cfg.JWT.SecretKey)

	loc, err := time.LoadLocation(cfg.Settlement.Timezone)
	require.NoError(suite.T(), err)
	clock := settlement.NewClock(loc)

	balanceService := services.NewBalanceService(suite.db, clock)
	payoutService := services.NewPayoutService(suite.db, cfg, balanceService)
	paymentService := services.NewPaymentService(suite.db, cfg, clock, nil, nil)
	settlementService := services.NewSettlementService(suite.db, clock, loc)

	merchantHandler := handlers.NewMerchantHandler(balanceService, payoutService)
	superAdminHandler := handlers.NewSuperAdminHandler(paymentService, payoutService, settlementService)

	suite.router = gin.New()
	admin := suite.router.Group("/api/admin")
	admin.Use(middleware.AuthRequired())
	{
		admin.GET("/balance", merchantHandler.GetBalance)
		admin.POST("/payouts", merchantHandler.RequestPayout)
		admin.GET("/payouts", merchantHandler.ListPayouts)
		admin.GET("/payouts/:payoutId", merchantHandler.GetPayout)
		admin.POST("/payouts/:payoutId/cancel", merchantHandler.CancelPayout)
	}
	superadmin := suite.router.Group("/api/superadmin")
	superadmin.Use(middleware.AuthRequired(), middleware.SuperAdminRequired())
	{
		superadmin.GET("/payouts", superAdminHandler.ListAllPayouts)
		superadmin.POST("/payouts/:payoutId/approve", superAdminHandler.ApprovePayout)
		superadmin.POST("/payouts/:payoutId/reject", superAdminHandler.RejectPayout)
		superadmin.POST("/payouts/:payoutId/process", superAdminHandler.ProcessPayout)
	}

	suite.merchant = createMerchant(suite.T(), suite.db, models.MerchantRoleAdmin)
	suite.superAdmin = createMerchant(suite.T(), suite.db, models.MerchantRoleSuperAdmin)
}

func (suite *PayoutFlowTestSuite) tokenFor(merchant *models.Merchant) string {
	token, err := utils.GenerateJWT(merchant.ID, merchant.DisplayName(), string(merchant.Role), 1)
	require.NoError(suite.T(), err)
	return token
}

func (suite *PayoutFlowTestSuite) request(method, path, token string, payload interface{}) *httptest.ResponseRecorder {
	var body *bytes.Buffer
	if payload != nil {
		jsonData, _ := json.Marshal(payload)
		body = bytes.NewBuffer(jsonData)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, _ := http.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func decodeData(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data, ok := response["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %s", w.Body.String())
	return data
}

func (suite *PayoutFlowTestSuite) TestPayoutLifecycle() {
	createSettledTransaction(suite.T(), suite.db, suite.merchant, 5000)
	merchantToken := suite.tokenFor(suite.merchant)
	adminToken := suite.tokenFor(suite.superAdmin)

	// Merchant sees the settled balance
	w := suite.request("GET", "/api/admin/balance", merchantToken, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code)
	balance := decodeData(suite.T(), w)["balance"].(map[string]interface{})
	available := balance["available_balance"].(float64)
	assert.Greater(suite.T(), available, 4000.0)

	// Merchant requests a payout
	w = suite.request("POST", "/api/admin/payouts", merchantToken, map[string]interface{}{
		"amount":              2000,
		"transfer_mode":       "bank_transfer",
		"account_number":      "123456789012",
		"ifsc_code":           "HDFC0001234",
		"account_holder_name": "Test Merchant",
	})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	payout := decodeData(suite.T(), w)["payout"].(map[string]interface{})
	payoutID := payout["payout_id"].(string)
	assert.Equal(suite.T(), "requested", payout["status"])

	// Beneficiary account is masked on every read
	beneficiary := payout["beneficiary"].(map[string]interface{})
	assert.Equal(suite.T(), "XXXX9012", beneficiary["account_number"])
	assert.False(suite.T(), strings.Contains(w.Body.String(), "123456789012"))

	// Super admin cannot process before approval
	w = suite.request("POST", fmt.Sprintf("/api/superadmin/payouts/%s/process", payoutID), adminToken,
		map[string]interface{}{"utr": "UTR123456"})
	assert.Equal(suite.T(), http.StatusConflict, w.Code)

	// Approve, then process with the bank UTR
	w = suite.request("POST", fmt.Sprintf("/api/superadmin/payouts/%s/approve", payoutID), adminToken, nil)
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())

	w = suite.request("POST", fmt.Sprintf("/api/superadmin/payouts/%s/process", payoutID), adminToken,
		map[string]interface{}{"utr": ""})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.request("POST", fmt.Sprintf("/api/superadmin/payouts/%s/process", payoutID), adminToken,
		map[string]interface{}{"utr": "UTR123456"})
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
	processed := decodeData(suite.T(), w)["payout"].(map[string]interface{})
	assert.Equal(suite.T(), "completed", processed["status"])
	assert.Equal(suite.T(), "UTR123456", processed["utr"])

	// Completed payout can no longer be cancelled by the merchant
	w = suite.request("POST", fmt.Sprintf("/api/admin/payouts/%s/cancel", payoutID), merchantToken, nil)
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

func (suite *PayoutFlowTestSuite) TestInsufficientBalanceRejected() {
	merchant := createMerchant(suite.T(), suite.db, models.MerchantRoleAdmin)
	createSettledTransaction(suite.T(), suite.db, merchant, 1000)
	token := suite.tokenFor(merchant)

	w := suite.request("POST", "/api/admin/payouts", token, map[string]interface{}{
		"amount":        50000,
		"transfer_mode": "upi",
		"upi_id":        "merchant@upi",
	})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	var response map[string]interface{}
	require.NoError(suite.T(), json.Unmarshal(w.Body.Bytes(), &response))
	errObj := response["error"].(map[string]interface{})
	assert.Equal(suite.T(), "INSUFFICIENT_BALANCE", errObj["code"])
	details := errObj["details"].(map[string]interface{})
	assert.Equal(suite.T(), 50000.0, details["requested_amount"])
	// The check runs on the net amount; the shortfall is net minus available
	assert.Less(suite.T(), details["net_amount"].(float64), 50000.0)
	assert.Greater(suite.T(), details["shortfall"].(float64), 0.0)
	assert.InDelta(suite.T(),
		details["net_amount"].(float64)-details["available_balance"].(float64),
		details["shortfall"].(float64), 0.01)
}

func (suite *PayoutFlowTestSuite) TestMerchantCannotUseOperatorRoutes() {
	token := suite.tokenFor(suite.merchant)
	w := suite.request("GET", "/api/superadmin/payouts", token, nil)
	assert.Equal(suite.T(), http.StatusForbidden, w.Code)
}

func (suite *PayoutFlowTestSuite) TestRejectReasonRequired() {
	merchant := createMerchant(suite.T(), suite.db, models.MerchantRoleAdmin)
	createSettledTransaction(suite.T(), suite.db, merchant, 5000)
	merchantToken := suite.tokenFor(merchant)
	adminToken := suite.tokenFor(suite.superAdmin)

	w := suite.request("POST", "/api/admin/payouts", merchantToken, map[string]interface{}{
		"amount":        1000,
		"transfer_mode": "upi",
		"upi_id":        "merchant@upi",
	})
	require.Equal(suite.T(), http.StatusCreated, w.Code, w.Body.String())
	payoutID := decodeData(suite.T(), w)["payout"].(map[string]interface{})["payout_id"].(string)

	w = suite.request("POST", fmt.Sprintf("/api/superadmin/payouts/%s/reject", payoutID), adminToken,
		map[string]interface{}{"reason": ""})
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)

	w = suite.request("POST", fmt.Sprintf("/api/superadmin/payouts/%s/reject", payoutID), adminToken,
		map[string]interface{}{"reason": "beneficiary mismatch"})
	require.Equal(suite.T(), http.StatusOK, w.Code, w.Body.String())
	rejected := decodeData(suite.T(), w)["payout"].(map[string]interface{})
	assert.Equal(suite.T(), "rejected", rejected["status"])
}

func TestPayoutFlowTestSuite(t *testing.T) {
	suite.Run(t, new(PayoutFlowTestSuite))
}
