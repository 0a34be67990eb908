// internal/database/connection.go
package database

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
)

var DB *gorm.DB

func Initialize(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var err error
	var gormConfig *gorm.Config

	// Configure GORM logger
	if cfg.LogLevel == "silent" {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		}
	} else {
		gormConfig = &gorm.Config{
			Logger: logger.Default.LogMode(logger.Info),
		}
	}

	// Connect to database
	DB, err = gorm.Open(postgres.Open(cfg.DSN()), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB
	sqlDB, err := DB.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pool
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.MaxLifetime) * time.Second)

	// Test connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Println("Database connection established successfully")
	return DB, nil
}

func Close(db *gorm.DB) {
	sqlDB, err := db.DB()
	if err != nil {
		log.Printf("Error getting underlying sql.DB: %v", err)
		return
	}

	if err := sqlDB.Close(); err != nil {
		log.Printf("Error closing database connection: %v", err)
	} else {
		log.Println("Database connection closed successfully")
	}
}

func RunMigrations(db *gorm.DB) error {
	log.Println("Running database migrations...")

	// Run auto-migrations
	err := db.AutoMigrate(
		&models.Merchant{},
		&models.Transaction{},
		&models.Payout{},
		&models.WebhookEvent{},
	)

	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	// Create indexes
	if err := createIndexes(db); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []string{
		// Merchant indexes
		"CREATE INDEX IF NOT EXISTS idx_merchants_email ON merchants(email)",
		"CREATE INDEX IF NOT EXISTS idx_merchants_role ON merchants(role)",

		// Transaction indexes
		"CREATE INDEX IF NOT EXISTS idx_transactions_merchant ON transactions(merchant_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_merchant_status ON transactions(merchant_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_settlement ON transactions(settlement_status, expected_settlement_date)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_payout_claim ON transactions(merchant_id, settlement_status, payout_status)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_gateway_order ON transactions(payment_gateway, gateway_order_id)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_created_at ON transactions(created_at DESC)",

		// Payout indexes
		"CREATE INDEX IF NOT EXISTS idx_payouts_merchant ON payouts(merchant_id)",
		"CREATE INDEX IF NOT EXISTS idx_payouts_status ON payouts(status)",
		"CREATE INDEX IF NOT EXISTS idx_payouts_merchant_status ON payouts(merchant_id, status)",
		"CREATE INDEX IF NOT EXISTS idx_payouts_created_at ON payouts(created_at DESC)",

		// Webhook event indexes
		"CREATE INDEX IF NOT EXISTS idx_webhook_events_received ON webhook_events(received_at DESC)",
	}

	for _, index := range indexes {
		if err := db.Exec(index).Error; err != nil {
			log.Printf("Warning: Failed to create index: %s, Error: %v", index, err)
			// Continue with other indexes instead of failing completely
		}
	}

	return nil
}

// Seed initial data
func SeedInitialData(db *gorm.DB) error {
	log.Println("Seeding initial data...")

	// Create default super admin merchant
	var adminCount int64
	db.Model(&models.Merchant{}).Where("role = ?", models.MerchantRoleSuperAdmin).Count(&adminCount)

	if adminCount == 0 {
		admin := &models.Merchant{
			Name:         "Super Admin",
			Email:        "admin@cashcavash.com",
			BusinessName: "CashCavash",
			Role:         models.MerchantRoleSuperAdmin,
		}

		if err := admin.SetPassword("admin123!@#"); err != nil {
			return fmt.Errorf("failed to set admin password: %w", err)
		}

		if err := db.Create(admin).Error; err != nil {
			return fmt.Errorf("failed to create super admin: %w", err)
		}

		log.Println("Default super admin created successfully")
	}

	log.Println("Initial data seeding completed")
	return nil
}

// Transaction helper
func WithTransaction(db *gorm.DB, fn func(*gorm.DB) error) error {
	tx := db.Begin()
	if tx.Error != nil {
		return tx.Error
	}

	defer func() {
		if r := recover(); r != nil {
			tx.Rollback()
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit().Error
}
