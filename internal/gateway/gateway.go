// internal/gateway/gateway.go
package gateway

import (
	"context"
	"errors"
	"net/http"

	"github.com/ninexgroup/cashcavash-backend/internal/models"
)

var (
	ErrInvalidSignature = errors.New("webhook signature verification failed")
	ErrOrderNotFound    = errors.New("order not found at gateway")
)

// OrderRequest carries everything a gateway needs to create a hosted
// order or payment link.
type OrderRequest struct {
	OrderID       string
	TransactionID string
	Amount        float64
	Currency      string
	CustomerID    string
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	Description   string
	ReturnURL     string
	NotifyURL     string
	MerchantID    string
	MerchantName  string
}

type OrderResponse struct {
	GatewayOrderID string
	SessionToken   string
	PaymentURL     string
}

type LinkResponse struct {
	LinkID     string
	GatewayRef string
	PaymentURL string
}

// OrderStatus is the gateway's view of an order. Status values are the
// gateway's own (PAID, ACTIVE, EXPIRED, CANCELLED for Cashfree; paid,
// created, cancelled, expired for Razorpay payment links).
type OrderStatus struct {
	GatewayOrderID string
	Status         string
	PaymentID      string
	PaymentMethod  string
	Raw            map[string]interface{}
}

type RefundRequest struct {
	GatewayOrderID string
	RefundID       string
	Amount         float64
	Note           string
}

type RefundResponse struct {
	RefundID   string
	GatewayRef string
	Status     string
}

// Event is a verified, parsed webhook notification.
type Event struct {
	EventID       string
	EventType     string
	OrderID       string
	LinkID        string
	PaymentID     string
	Amount        float64
	PaymentMethod string
	PaymentTime   string
	FailureReason string
	Raw           map[string]interface{}
}

// Gateway abstracts a payment provider. Implementations must be safe
// for concurrent use.
type Gateway interface {
	Name() models.PaymentGateway
	CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
	CreatePaymentLink(ctx context.Context, req OrderRequest) (*LinkResponse, error)
	FetchOrderStatus(ctx context.Context, gatewayOrderID string) (*OrderStatus, error)
	CreateRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error)

	// VerifyAndParseWebhook checks the signature headers against the raw
	// body and extracts the event. Callers must pass the body exactly as
	// received.
	VerifyAndParseWebhook(headers http.Header, body []byte) (*Event, error)
}
