// internal/services/payment_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/ninexgroup/cashcavash-backend/internal/commission"
	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/gateway"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/settlement"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrUnsupportedGateway  = errors.New("unsupported payment gateway")
	ErrNotRefundable       = errors.New("only paid transactions can be refunded")
	ErrInvalidRefundAmount = errors.New("refund amount exceeds refundable balance")
)

type PaymentService struct {
	db       *gorm.DB
	config   *config.Config
	clock    *settlement.Clock
	gateways map[models.PaymentGateway]gateway.Gateway
	notifier *NotificationService
}

type CreatePaymentRequest struct {
	Amount        float64 `json:"amount" validate:"required,min=1,max=500000"`
	Currency      string  `json:"currency,omitempty"`
	OrderID       string  `json:"order_id,omitempty"`
	CustomerName  string  `json:"customer_name" validate:"required"`
	CustomerEmail string  `json:"customer_email" validate:"required,email"`
	CustomerPhone string  `json:"customer_phone" validate:"required"`
	Description   string  `json:"description,omitempty"`
	ReturnURL     string  `json:"return_url,omitempty"`
	NotifyURL     string  `json:"notify_url,omitempty"`
	Gateway       string  `json:"gateway,omitempty"`
}

type CreatePaymentResponse struct {
	TransactionID  string  `json:"transaction_id"`
	OrderID        string  `json:"order_id"`
	GatewayOrderID string  `json:"gateway_order_id,omitempty"`
	SessionToken   string  `json:"payment_session_id,omitempty"`
	PaymentURL     string  `json:"payment_url,omitempty"`
	Amount         float64 `json:"amount"`
	Currency       string  `json:"currency"`
	Status         string  `json:"status"`
}

type RefundPaymentRequest struct {
	OrderID string  `json:"order_id" validate:"required"`
	Amount  float64 `json:"amount,omitempty" validate:"omitempty,gt=0"`
	Note    string  `json:"note,omitempty"`
}

type RefundPaymentResponse struct {
	RefundID      string  `json:"refund_id"`
	OrderID       string  `json:"order_id"`
	RefundAmount  float64 `json:"refund_amount"`
	TotalRefunded float64 `json:"total_refunded"`
	Status        string  `json:"status"`
}

type TransactionFilter struct {
	Status    string
	Gateway   string
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time
	MinAmount float64
	MaxAmount float64
}

type TransactionSummary struct {
	TotalCount    int64   `json:"total_count"`
	PaidCount     int64   `json:"paid_count"`
	TotalAmount   float64 `json:"total_amount"`
	PaidAmount    float64 `json:"paid_amount"`
	TotalRefunded float64 `json:"total_refunded"`
}

func NewPaymentService(db *gorm.DB, cfg *config.Config, clock *settlement.Clock, gateways map[models.PaymentGateway]gateway.Gateway, notifier *NotificationService) *PaymentService {
	return &PaymentService{
		db:       db,
		config:   cfg,
		clock:    clock,
		gateways: gateways,
		notifier: notifier,
	}
}

func (s *PaymentService) gatewayFor(name string) (gateway.Gateway, error) {
	gw := models.PaymentGateway(name)
	if name == "" {
		gw = models.GatewayCashfree
	}
	g, ok := s.gateways[gw]
	if !ok {
		return nil, ErrUnsupportedGateway
	}
	return g, nil
}

// CreateOrder creates a hosted checkout order at the gateway and records
// the transaction in `created` state.
func (s *PaymentService) CreateOrder(ctx context.Context, merchantID uuid.UUID, merchantName string, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	g, err := s.gatewayFor(req.Gateway)
	if err != nil {
		return nil, err
	}

	phone := utils.CleanPhone(req.CustomerPhone)
	if len(phone) != 10 {
		return nil, fmt.Errorf("invalid phone number: must be 10 digits")
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = utils.GenerateOrderID()
	}
	transactionID := utils.GenerateTransactionID()
	customerID := utils.GenerateCustomerID(phone)

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Order for %s", merchantName)
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.config.Gateway.FrontendURL + "/success"
	}
	notifyURL := req.NotifyURL
	if notifyURL == "" {
		notifyURL = s.config.Gateway.BackendURL + "/api/payments/webhook"
	}

	orderResp, err := g.CreateOrder(ctx, gateway.OrderRequest{
		OrderID:       orderID,
		TransactionID: transactionID,
		Amount:        req.Amount,
		Currency:      currency,
		CustomerID:    customerID,
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: phone,
		Description:   description,
		ReturnURL:     returnURL,
		NotifyURL:     notifyURL,
		MerchantID:    merchantID.String(),
		MerchantName:  merchantName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway order: %w", err)
	}

	transaction := &models.Transaction{
		TransactionID:  transactionID,
		OrderID:        orderID,
		MerchantID:     merchantID,
		MerchantName:   merchantName,
		CustomerID:     customerID,
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  phone,
		Amount:         req.Amount,
		Currency:       currency,
		Description:    description,
		Status:         models.TransactionStatusCreated,
		PaymentGateway: g.Name(),
		GatewayOrderID: orderResp.GatewayOrderID,
		SessionToken:   orderResp.SessionToken,
		CallbackURL:    returnURL,
	}
	if err := s.db.Create(transaction).Error; err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"order_id":       orderID,
		"merchant_id":    merchantID,
		"gateway":        g.Name(),
		"amount":         req.Amount,
	}).Info("Payment order created")

	return &CreatePaymentResponse{
		TransactionID:  transactionID,
		OrderID:        orderID,
		GatewayOrderID: orderResp.GatewayOrderID,
		SessionToken:   orderResp.SessionToken,
		PaymentURL:     orderResp.PaymentURL,
		Amount:         req.Amount,
		Currency:       currency,
		Status:         string(models.TransactionStatusCreated),
	}, nil
}

// CreatePaymentLink creates a shareable hosted payment link.
func (s *PaymentService) CreatePaymentLink(ctx context.Context, merchantID uuid.UUID, merchantName string, req *CreatePaymentRequest) (*CreatePaymentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	g, err := s.gatewayFor(req.Gateway)
	if err != nil {
		return nil, err
	}

	phone := utils.CleanPhone(req.CustomerPhone)
	if len(phone) != 10 {
		return nil, fmt.Errorf("invalid phone number: must be 10 digits")
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	orderID := req.OrderID
	if orderID == "" {
		orderID = utils.GenerateOrderID()
	}
	transactionID := utils.GenerateTransactionID()

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Payment to %s", merchantName)
	}

	returnURL := req.ReturnURL
	if returnURL == "" {
		returnURL = s.config.Gateway.FrontendURL + "/success"
	}
	notifyURL := req.NotifyURL
	if notifyURL == "" {
		notifyURL = s.config.Gateway.BackendURL + "/api/payments/webhook"
	}

	linkResp, err := g.CreatePaymentLink(ctx, gateway.OrderRequest{
		OrderID:       orderID,
		TransactionID: transactionID,
		Amount:        req.Amount,
		Currency:      currency,
		CustomerID:    utils.GenerateCustomerID(phone),
		CustomerName:  req.CustomerName,
		CustomerEmail: req.CustomerEmail,
		CustomerPhone: phone,
		Description:   description,
		ReturnURL:     returnURL,
		NotifyURL:     notifyURL,
		MerchantID:    merchantID.String(),
		MerchantName:  merchantName,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create payment link: %w", err)
	}

	transaction := &models.Transaction{
		TransactionID:  transactionID,
		OrderID:        orderID,
		MerchantID:     merchantID,
		MerchantName:   merchantName,
		CustomerID:     utils.GenerateCustomerID(phone),
		CustomerName:   req.CustomerName,
		CustomerEmail:  req.CustomerEmail,
		CustomerPhone:  phone,
		Amount:         req.Amount,
		Currency:       currency,
		Description:    description,
		Status:         models.TransactionStatusCreated,
		PaymentGateway: g.Name(),
		GatewayOrderID: linkResp.GatewayRef,
		GatewayLinkID:  linkResp.LinkID,
		CallbackURL:    returnURL,
	}
	if err := s.db.Create(transaction).Error; err != nil {
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"link_id":        linkResp.LinkID,
		"merchant_id":    merchantID,
		"gateway":        g.Name(),
	}).Info("Payment link created")

	return &CreatePaymentResponse{
		TransactionID: transactionID,
		OrderID:       orderID,
		SessionToken:  linkResp.LinkID,
		PaymentURL:    linkResp.PaymentURL,
		Amount:        req.Amount,
		Currency:      currency,
		Status:        string(models.TransactionStatusCreated),
	}, nil
}

// mapGatewayStatus translates a gateway's order status vocabulary into
// the internal lifecycle.
func mapGatewayStatus(gatewayStatus string) (models.TransactionStatus, bool) {
	switch strings.ToUpper(gatewayStatus) {
	case "PAID":
		return models.TransactionStatusPaid, true
	case "ACTIVE", "CREATED", "PARTIALLY_PAID":
		return models.TransactionStatusPending, true
	case "EXPIRED":
		return models.TransactionStatusFailed, true
	case "CANCELLED":
		return models.TransactionStatusCancelled, true
	}
	return "", false
}

// GetPaymentStatus polls the gateway for the current order state and
// applies any forward transition it implies. Out-of-order or duplicate
// observations are ignored.
func (s *PaymentService) GetPaymentStatus(ctx context.Context, merchantID uuid.UUID, orderID string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.
		Where("merchant_id = ? AND (order_id = ? OR transaction_id = ?)", merchantID, orderID, orderID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	g, ok := s.gateways[transaction.PaymentGateway]
	if !ok {
		return &transaction, nil
	}

	gatewayRef := transaction.GatewayLinkID
	if transaction.PaymentGateway == models.GatewayCashfree {
		gatewayRef = transaction.OrderID
	}
	status, err := g.FetchOrderStatus(ctx, gatewayRef)
	if err != nil {
		logrus.WithError(err).WithField("order_id", orderID).Warn("Gateway status poll failed")
		return &transaction, nil
	}

	next, ok := mapGatewayStatus(status.Status)
	if !ok || !transaction.Status.CanTransitionTo(next) {
		return &transaction, nil
	}

	updates := map[string]interface{}{"status": next}
	if status.PaymentID != "" {
		updates["gateway_payment_id"] = status.PaymentID
	}
	if status.PaymentMethod != "" {
		updates["payment_method"] = status.PaymentMethod
	}
	if next == models.TransactionStatusPaid {
		now := time.Now()
		expected := s.clock.ExpectedSettlementDate(now)
		updates["paid_at"] = now
		updates["expected_settlement_date"] = expected
	}

	if err := s.db.Model(&transaction).Updates(updates).Error; err != nil {
		return nil, err
	}
	if err := s.db.First(&transaction, transaction.ID).Error; err != nil {
		return nil, err
	}
	return &transaction, nil
}

// RefundPayment issues a full or partial refund against a paid
// transaction. Cumulative refunds can never exceed the captured amount.
func (s *PaymentService) RefundPayment(ctx context.Context, merchantID uuid.UUID, req *RefundPaymentRequest) (*RefundPaymentResponse, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, err
	}

	var transaction models.Transaction
	if err := s.db.
		Where("merchant_id = ? AND order_id = ?", merchantID, req.OrderID).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}

	if transaction.Status != models.TransactionStatusPaid &&
		transaction.Status != models.TransactionStatusPartialRefund {
		return nil, ErrNotRefundable
	}

	refundAmount := req.Amount
	if refundAmount == 0 {
		refundAmount = transaction.RefundableAmount()
	}
	if refundAmount <= 0 || refundAmount > transaction.RefundableAmount() {
		return nil, ErrInvalidRefundAmount
	}

	g, ok := s.gateways[transaction.PaymentGateway]
	if !ok {
		return nil, ErrUnsupportedGateway
	}

	note := req.Note
	if note == "" {
		note = "Refund requested by merchant"
	}

	gatewayRef := transaction.OrderID
	if transaction.PaymentGateway == models.GatewayRazorpay {
		gatewayRef = transaction.GatewayPaymentID
	}
	refundID := utils.GenerateRefundID()
	if _, err := g.CreateRefund(ctx, gateway.RefundRequest{
		GatewayOrderID: gatewayRef,
		RefundID:       refundID,
		Amount:         refundAmount,
		Note:           note,
	}); err != nil {
		return nil, fmt.Errorf("failed to create gateway refund: %w", err)
	}

	now := time.Now()
	totalRefunded := commission.Round2(transaction.RefundAmount + refundAmount)
	nextStatus := models.TransactionStatusPartialRefund
	if totalRefunded >= transaction.Amount {
		nextStatus = models.TransactionStatusRefunded
	}

	updates := map[string]interface{}{
		"refund_amount": totalRefunded,
		"refund_reason": note,
		"refunded_at":   now,
		"status":        nextStatus,
	}
	if err := s.db.Model(&transaction).Updates(updates).Error; err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"refund_id":      refundID,
		"order_id":       transaction.OrderID,
		"refund_amount":  refundAmount,
		"total_refunded": totalRefunded,
	}).Info("Refund processed")

	return &RefundPaymentResponse{
		RefundID:      refundID,
		OrderID:       transaction.OrderID,
		RefundAmount:  refundAmount,
		TotalRefunded: totalRefunded,
		Status:        string(nextStatus),
	}, nil
}

// GetTransaction fetches a single transaction by transaction or order id,
// scoped to the merchant.
func (s *PaymentService) GetTransaction(merchantID uuid.UUID, id string) (*models.Transaction, error) {
	var transaction models.Transaction
	if err := s.db.
		Where("merchant_id = ? AND (transaction_id = ? OR order_id = ?)", merchantID, id, id).
		First(&transaction).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &transaction, nil
}

func (s *PaymentService) applyTransactionFilter(query *gorm.DB, filter TransactionFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Gateway != "" {
		query = query.Where("payment_gateway = ?", filter.Gateway)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where(
			"transaction_id LIKE ? OR order_id LIKE ? OR customer_name LIKE ? OR customer_email LIKE ? OR customer_phone LIKE ?",
			like, like, like, like, like)
	}
	if filter.DateFrom != nil {
		query = query.Where("created_at >= ?", *filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("created_at <= ?", *filter.DateTo)
	}
	if filter.MinAmount > 0 {
		query = query.Where("amount >= ?", filter.MinAmount)
	}
	if filter.MaxAmount > 0 {
		query = query.Where("amount <= ?", filter.MaxAmount)
	}
	return query
}

// ListTransactions returns a filtered, paginated transaction page plus
// aggregate counters for the same filter.
func (s *PaymentService) ListTransactions(merchantID uuid.UUID, filter TransactionFilter, params utils.PaginationParams) ([]models.Transaction, int64, *TransactionSummary, error) {
	base := s.db.Model(&models.Transaction{}).Where("merchant_id = ?", merchantID)
	base = s.applyTransactionFilter(base, filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, nil, err
	}

	var transactions []models.Transaction
	query := s.db.Where("merchant_id = ?", merchantID)
	query = s.applyTransactionFilter(query, filter)
	query = utils.ApplySort(query, params, []string{"created_at", "amount", "status", "paid_at"})
	query = utils.ApplyPagination(query, params)
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, nil, err
	}

	summary, err := s.summarize(merchantID, filter)
	if err != nil {
		return nil, 0, nil, err
	}

	return transactions, total, summary, nil
}

func (s *PaymentService) summarize(merchantID uuid.UUID, filter TransactionFilter) (*TransactionSummary, error) {
	summary := &TransactionSummary{}

	base := func() *gorm.DB {
		return s.applyTransactionFilter(
			s.db.Model(&models.Transaction{}).Where("merchant_id = ?", merchantID), filter)
	}
	if err := base().Count(&summary.TotalCount).Error; err != nil {
		return nil, err
	}
	if err := base().Select("COALESCE(SUM(amount), 0)").Scan(&summary.TotalAmount).Error; err != nil {
		return nil, err
	}
	if err := base().Select("COALESCE(SUM(refund_amount), 0)").Scan(&summary.TotalRefunded).Error; err != nil {
		return nil, err
	}

	paidStatuses := []models.TransactionStatus{
		models.TransactionStatusPaid,
		models.TransactionStatusPartialRefund,
		models.TransactionStatusRefunded,
	}
	paidFilter := TransactionFilter{
		Gateway:  filter.Gateway,
		Search:   filter.Search,
		DateFrom: filter.DateFrom,
		DateTo:   filter.DateTo,
	}
	paid := func() *gorm.DB {
		return s.applyTransactionFilter(
			s.db.Model(&models.Transaction{}).
				Where("merchant_id = ? AND status IN ?", merchantID, paidStatuses), paidFilter)
	}
	if err := paid().Count(&summary.PaidCount).Error; err != nil {
		return nil, err
	}
	if err := paid().Select("COALESCE(SUM(amount), 0)").Scan(&summary.PaidAmount).Error; err != nil {
		return nil, err
	}

	summary.TotalAmount = commission.Round2(summary.TotalAmount)
	summary.PaidAmount = commission.Round2(summary.PaidAmount)
	summary.TotalRefunded = commission.Round2(summary.TotalRefunded)
	return summary, nil
}

// MerchantTransactionStats aggregates transaction volume per merchant
// for the platform-wide view.
type MerchantTransactionStats struct {
	MerchantID    uuid.UUID `json:"merchant_id"`
	MerchantName  string    `json:"merchant_name"`
	TotalCount    int64     `json:"total_count"`
	PaidCount     int64     `json:"paid_count"`
	PaidAmount    float64   `json:"paid_amount"`
	TotalRefunded float64   `json:"total_refunded"`
}

// ListAllTransactions is the super admin view: transactions across all
// merchants plus per-merchant aggregates for the same filter.
func (s *PaymentService) ListAllTransactions(filter TransactionFilter, params utils.PaginationParams) ([]models.Transaction, int64, []MerchantTransactionStats, error) {
	base := s.applyTransactionFilter(s.db.Model(&models.Transaction{}), filter)

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, nil, err
	}

	query := s.applyTransactionFilter(s.db.Model(&models.Transaction{}), filter)
	query = utils.ApplySort(query, params, []string{"created_at", "amount", "status", "paid_at"})
	query = utils.ApplyPagination(query, params)
	var transactions []models.Transaction
	if err := query.Find(&transactions).Error; err != nil {
		return nil, 0, nil, err
	}

	stats, err := s.merchantStats(filter)
	if err != nil {
		return nil, 0, nil, err
	}

	return transactions, total, stats, nil
}

func (s *PaymentService) merchantStats(filter TransactionFilter) ([]MerchantTransactionStats, error) {
	paidStatuses := []models.TransactionStatus{
		models.TransactionStatusPaid,
		models.TransactionStatusPartialRefund,
		models.TransactionStatusRefunded,
	}

	var stats []MerchantTransactionStats
	query := s.applyTransactionFilter(s.db.Model(&models.Transaction{}), filter).
		Select(`merchant_id,
			MAX(merchant_name) AS merchant_name,
			COUNT(*) AS total_count,
			COUNT(CASE WHEN status IN ? THEN 1 END) AS paid_count,
			COALESCE(SUM(CASE WHEN status IN ? THEN amount ELSE 0 END), 0) AS paid_amount,
			COALESCE(SUM(refund_amount), 0) AS total_refunded`, paidStatuses, paidStatuses).
		Group("merchant_id").
		Order("paid_amount DESC")
	if err := query.Scan(&stats).Error; err != nil {
		return nil, err
	}

	for i := range stats {
		stats[i].PaidAmount = commission.Round2(stats[i].PaidAmount)
		stats[i].TotalRefunded = commission.Round2(stats[i].TotalRefunded)
	}
	return stats, nil
}
