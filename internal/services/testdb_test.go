// internal/services/testdb_test.go
package services

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/settlement"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Merchant{},
		&models.Transaction{},
		&models.Payout{},
		&models.WebhookEvent{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT: config.JWTConfig{
			SecretKey:       "test-secret",
			AccessTokenTTL:  1,
			RefreshTokenTTL: 24,
		},
		Settlement: config.SettlementConfig{
			Timezone: "Asia/Kolkata",
		},
		Payout: config.PayoutConfig{
			MinAmount:         500,
			MaxAmount:         100000,
			AllowBelowMinimum: false,
		},
		Webhook: config.WebhookConfig{
			DeliveryTimeout: 2,
		},
	}
}

func testClock(t *testing.T) *settlement.Clock {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	return settlement.NewClock(loc)
}

func testLocation(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		t.Fatalf("failed to load timezone: %v", err)
	}
	return loc
}

func createTestMerchant(t *testing.T, db *gorm.DB, freeCredits int) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{
		Name:                 "Test Merchant",
		Email:                fmt.Sprintf("merchant-%s@example.com", uuid.NewString()[:8]),
		BusinessName:         "Test Business",
		Role:                 models.MerchantRoleAdmin,
		FreePayoutsRemaining: freeCredits,
	}
	if err := merchant.SetPassword("password123"); err != nil {
		t.Fatalf("failed to set password: %v", err)
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("failed to create merchant: %v", err)
	}
	return merchant
}

func createPaidTransaction(t *testing.T, db *gorm.DB, merchant *models.Merchant, amount float64, paidAt time.Time, settled bool) *models.Transaction {
	t.Helper()

	txn := &models.Transaction{
		TransactionID:  "TXN_" + uuid.NewString()[:13],
		OrderID:        "ORD_" + uuid.NewString()[:13],
		MerchantID:     merchant.ID,
		MerchantName:   merchant.DisplayName(),
		Amount:         amount,
		Currency:       "INR",
		Status:         models.TransactionStatusPaid,
		PaymentGateway: models.GatewayCashfree,
		PaidAt:         &paidAt,
	}
	if settled {
		txn.SettlementStatus = models.SettlementStatusSettled
		settlementDate := paidAt.Add(24 * time.Hour)
		txn.SettlementDate = &settlementDate
	} else {
		txn.SettlementStatus = models.SettlementStatusUnsettled
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	return txn
}
