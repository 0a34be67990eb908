// internal/services/webhook_service.go
package services

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ninexgroup/cashcavash-backend/internal/gateway"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/settlement"
)

// WebhookService ingests gateway webhooks. Processing is idempotent on
// two levels: a dedupe record keyed (gateway, event id) absorbs
// redeliveries, and status transitions only ever move forward, so a
// stale event arriving after a later state is ignored.
type WebhookService struct {
	db       *gorm.DB
	clock    *settlement.Clock
	gateways map[models.PaymentGateway]gateway.Gateway
	notifier *NotificationService
}

type WebhookResult struct {
	EventID       string `json:"event_id"`
	EventType     string `json:"event_type"`
	Duplicate     bool   `json:"duplicate"`
	Applied       bool   `json:"applied"`
	TransactionID string `json:"transaction_id,omitempty"`
}

func NewWebhookService(db *gorm.DB, clock *settlement.Clock, gateways map[models.PaymentGateway]gateway.Gateway, notifier *NotificationService) *WebhookService {
	return &WebhookService{
		db:       db,
		clock:    clock,
		gateways: gateways,
		notifier: notifier,
	}
}

// eventStatus maps a gateway event type to the transaction status it
// implies. Unknown event types are acknowledged without effect.
func eventStatus(gw models.PaymentGateway, eventType string) (models.TransactionStatus, bool) {
	switch gw {
	case models.GatewayCashfree:
		switch eventType {
		case "PAYMENT_SUCCESS_WEBHOOK":
			return models.TransactionStatusPaid, true
		case "PAYMENT_FAILED_WEBHOOK":
			return models.TransactionStatusFailed, true
		case "PAYMENT_USER_DROPPED_WEBHOOK":
			return models.TransactionStatusCancelled, true
		}
	case models.GatewayRazorpay:
		switch eventType {
		case "payment_link.paid", "payment.captured":
			return models.TransactionStatusPaid, true
		case "payment_link.expired":
			return models.TransactionStatusFailed, true
		case "payment_link.cancelled":
			return models.TransactionStatusCancelled, true
		case "payment.failed":
			return models.TransactionStatusFailed, true
		}
	}
	return "", false
}

// HandleWebhook verifies, dedupes and applies one inbound gateway
// webhook. The merchant notification fires only after the state change
// is persisted.
func (s *WebhookService) HandleWebhook(gatewayName models.PaymentGateway, headers http.Header, body []byte) (*WebhookResult, error) {
	g, ok := s.gateways[gatewayName]
	if !ok {
		return nil, ErrUnsupportedGateway
	}

	event, err := g.VerifyAndParseWebhook(headers, body)
	if err != nil {
		return nil, err
	}

	result := &WebhookResult{
		EventID:   event.EventID,
		EventType: event.EventType,
	}

	// Dedupe insert. A conflict on (gateway, event_id) means this event
	// was already ingested; acknowledge without reprocessing.
	record := &models.WebhookEvent{
		Gateway:    gatewayName,
		EventID:    event.EventID,
		EventType:  event.EventType,
		Payload:    models.JSONB(event.Raw),
		ReceivedAt: time.Now(),
	}
	insert := s.db.Clauses(clause.OnConflict{DoNothing: true}).Create(record)
	if insert.Error != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", insert.Error)
	}
	if insert.RowsAffected == 0 {
		result.Duplicate = true
		logrus.WithFields(logrus.Fields{
			"gateway":  gatewayName,
			"event_id": event.EventID,
		}).Info("Duplicate webhook event ignored")
		return result, nil
	}

	applied, transactionID, err := s.applyEvent(gatewayName, event)
	now := time.Now()
	updates := map[string]interface{}{"processed_at": now}
	if err != nil {
		updates["process_error"] = err.Error()
	}
	if dbErr := s.db.Model(record).Updates(updates).Error; dbErr != nil {
		logrus.WithError(dbErr).Warn("Failed to stamp webhook event record")
	}
	if err != nil {
		return nil, err
	}

	result.Applied = applied
	result.TransactionID = transactionID
	return result, nil
}

func (s *WebhookService) applyEvent(gatewayName models.PaymentGateway, event *gateway.Event) (bool, string, error) {
	next, known := eventStatus(gatewayName, event.EventType)
	if !known {
		logrus.WithFields(logrus.Fields{
			"gateway":    gatewayName,
			"event_type": event.EventType,
		}).Warn("Unhandled webhook event type")
		return false, "", nil
	}

	transaction, err := s.findTransaction(gatewayName, event)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logrus.WithFields(logrus.Fields{
				"gateway":  gatewayName,
				"order_id": event.OrderID,
				"link_id":  event.LinkID,
			}).Warn("Webhook for unknown transaction")
			return false, "", nil
		}
		return false, "", err
	}

	if !transaction.Status.CanTransitionTo(next) {
		logrus.WithFields(logrus.Fields{
			"transaction_id": transaction.TransactionID,
			"current":        transaction.Status,
			"event_status":   next,
		}).Info("Out-of-order webhook transition ignored")
		return false, transaction.TransactionID, nil
	}

	updates := map[string]interface{}{
		"status":       next,
		"webhook_data": models.JSONB(event.Raw),
	}
	if event.PaymentID != "" {
		updates["gateway_payment_id"] = event.PaymentID
	}
	if event.PaymentMethod != "" {
		updates["payment_method"] = event.PaymentMethod
	}

	switch next {
	case models.TransactionStatusPaid:
		paidAt := time.Now()
		if event.PaymentTime != "" {
			if parsed, err := time.Parse(time.RFC3339, event.PaymentTime); err == nil {
				paidAt = parsed
			}
		}
		updates["paid_at"] = paidAt
		updates["expected_settlement_date"] = s.clock.ExpectedSettlementDate(paidAt)
	case models.TransactionStatusFailed:
		if event.FailureReason != "" {
			updates["failure_reason"] = event.FailureReason
		}
	}

	if err := s.db.Model(transaction).Updates(updates).Error; err != nil {
		return false, transaction.TransactionID, err
	}
	if err := s.db.First(transaction, transaction.ID).Error; err != nil {
		return false, transaction.TransactionID, err
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": transaction.TransactionID,
		"status":         transaction.Status,
		"event_type":     event.EventType,
	}).Info("Transaction updated from webhook")

	if s.notifier != nil {
		s.notifier.NotifyTransaction(transaction, "transaction."+string(next))
	}

	return true, transaction.TransactionID, nil
}

func (s *WebhookService) findTransaction(gatewayName models.PaymentGateway, event *gateway.Event) (*models.Transaction, error) {
	var transaction models.Transaction
	query := s.db.Where("payment_gateway = ?", gatewayName)

	switch {
	case event.OrderID != "":
		query = query.Where("order_id = ?", event.OrderID)
	case event.LinkID != "":
		query = query.Where("gateway_link_id = ?", event.LinkID)
	default:
		return nil, gorm.ErrRecordNotFound
	}

	if err := query.First(&transaction).Error; err != nil {
		// A Razorpay event may reference the link without the order.
		if errors.Is(err, gorm.ErrRecordNotFound) && event.LinkID != "" && event.OrderID != "" {
			if err2 := s.db.
				Where("payment_gateway = ? AND gateway_link_id = ?", gatewayName, event.LinkID).
				First(&transaction).Error; err2 == nil {
				return &transaction, nil
			}
		}
		return nil, err
	}
	return &transaction, nil
}
