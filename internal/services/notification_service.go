// internal/services/notification_service.go
package services

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
)

// NotificationService forwards transaction state changes to merchant
// webhook URLs. Delivery is best effort: internal state is already
// persisted before a notification fires, and a delivery failure only
// gets logged.
type NotificationService struct {
	db         *gorm.DB
	httpClient *http.Client
}

type transactionNotification struct {
	Event         string     `json:"event"`
	TransactionID string     `json:"transaction_id"`
	OrderID       string     `json:"order_id"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount"`
	Currency      string     `json:"currency"`
	PaymentMethod string     `json:"payment_method,omitempty"`
	CustomerName  string     `json:"customer_name,omitempty"`
	CustomerEmail string     `json:"customer_email,omitempty"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	FailureReason string     `json:"failure_reason,omitempty"`
	Timestamp     time.Time  `json:"timestamp"`
}

func NewNotificationService(db *gorm.DB, cfg *config.Config) *NotificationService {
	timeout := time.Duration(cfg.Webhook.DeliveryTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &NotificationService{
		db: db,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// NotifyTransaction delivers the transaction snapshot to the merchant's
// configured webhook URL in a background goroutine.
func (s *NotificationService) NotifyTransaction(transaction *models.Transaction, event string) {
	var merchant models.Merchant
	if err := s.db.First(&merchant, transaction.MerchantID).Error; err != nil {
		logrus.WithError(err).WithField("merchant_id", transaction.MerchantID).
			Warn("Notification skipped, merchant lookup failed")
		return
	}
	if merchant.WebhookURL == "" {
		return
	}

	payload := transactionNotification{
		Event:         event,
		TransactionID: transaction.TransactionID,
		OrderID:       transaction.OrderID,
		Status:        string(transaction.Status),
		Amount:        transaction.Amount,
		Currency:      transaction.Currency,
		PaymentMethod: transaction.PaymentMethod,
		CustomerName:  transaction.CustomerName,
		CustomerEmail: transaction.CustomerEmail,
		PaidAt:        transaction.PaidAt,
		FailureReason: transaction.FailureReason,
		Timestamp:     time.Now(),
	}

	go s.deliver(merchant.WebhookURL, transaction.TransactionID, payload)
}

func (s *NotificationService) deliver(url, transactionID string, payload transactionNotification) {
	body, err := json.Marshal(payload)
	if err != nil {
		logrus.WithError(err).Error("Failed to marshal notification payload")
		return
	}

	resp, err := s.httpClient.Post(url, "application/json", bytes.NewBuffer(body))
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"url":            url,
		}).Warn("Merchant notification delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		logrus.WithFields(logrus.Fields{
			"transaction_id": transactionID,
			"url":            url,
			"status":         resp.StatusCode,
		}).Warn("Merchant notification rejected")
		return
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"event":          payload.Event,
	}).Info("Merchant notification delivered")
}
