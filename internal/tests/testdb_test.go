// internal/tests/testdb_test.go
package tests

import (
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
)

func setupTestDB(t *testing.T, name string) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:tests_%s?mode=memory&cache=shared", name)
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

func createMerchant(t *testing.T, db *gorm.DB, role models.MerchantRole) *models.Merchant {
	t.Helper()
	merchant := &models.Merchant{
		Name:  "Test Merchant",
		Email: fmt.Sprintf("merchant-%s@example.com", uuid.NewString()[:8]),
		Role:  role,
	}
	if err := merchant.SetPassword("SuperSecret99"); err != nil {
		t.Fatalf("failed to set password: %v", err)
	}
	if err := db.Create(merchant).Error; err != nil {
		t.Fatalf("failed to create merchant: %v", err)
	}
	return merchant
}

func createSettledTransaction(t *testing.T, db *gorm.DB, merchant *models.Merchant, amount float64) *models.Transaction {
	t.Helper()

	paidAt := time.Now().Add(-72 * time.Hour)
	settledAt := paidAt.Add(24 * time.Hour)
	txn := &models.Transaction{
		TransactionID:    "TXN_" + uuid.NewString()[:13],
		OrderID:          "ORD_" + uuid.NewString()[:13],
		MerchantID:       merchant.ID,
		MerchantName:     merchant.DisplayName(),
		Amount:           amount,
		Currency:         "INR",
		Status:           models.TransactionStatusPaid,
		PaymentGateway:   models.GatewayCashfree,
		PaidAt:           &paidAt,
		SettlementStatus: models.SettlementStatusSettled,
		SettlementDate:   &settledAt,
	}
	if err := db.Create(txn).Error; err != nil {
		t.Fatalf("failed to create transaction: %v", err)
	}
	return txn
}
