// internal/gateway/razorpay.go
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"math"
	"net/http"
	"time"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

const razorpayBaseURL = "https://api.razorpay.com/v1"

// RazorpayClient talks to the Razorpay REST API using basic auth.
// Payments run through hosted payment links.
type RazorpayClient struct {
	baseURL       string
	keyID         string
	keySecret     string
	webhookSecret string
	frontendURL   string
	httpClient    *http.Client
}

func NewRazorpayClient(cfg config.GatewayConfig) *RazorpayClient {
	return &RazorpayClient{
		baseURL:       razorpayBaseURL,
		keyID:         cfg.RazorpayKeyID,
		keySecret:     cfg.RazorpayKeySecret,
		webhookSecret: cfg.RazorpayWebhookSecret,
		frontendURL:   cfg.FrontendURL,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

func (r *RazorpayClient) Name() models.PaymentGateway {
	return models.GatewayRazorpay
}

func (r *RazorpayClient) doRequest(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.SetBasicAuth(r.keyID, r.keySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("razorpay request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read razorpay response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error struct {
				Code        string `json:"code"`
				Description string `json:"description"`
			} `json:"error"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Error.Description != "" {
			return fmt.Errorf("razorpay error %d (%s): %s", resp.StatusCode, apiErr.Error.Code, apiErr.Error.Description)
		}
		return fmt.Errorf("razorpay error %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal razorpay response: %w", err)
		}
	}
	return nil
}

// CreateOrder on Razorpay is expressed as a payment link. The returned
// session token is the link id.
func (r *RazorpayClient) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	link, err := r.CreatePaymentLink(ctx, req)
	if err != nil {
		return nil, err
	}
	return &OrderResponse{
		GatewayOrderID: link.LinkID,
		SessionToken:   link.LinkID,
		PaymentURL:     link.PaymentURL,
	}, nil
}

func (r *RazorpayClient) CreatePaymentLink(ctx context.Context, req OrderRequest) (*LinkResponse, error) {
	payload := map[string]interface{}{
		// Razorpay amounts are in paise.
		"amount":      int64(math.Round(req.Amount * 100)),
		"currency":    req.Currency,
		"description": req.Description,
		"customer": map[string]string{
			"name":    req.CustomerName,
			"email":   req.CustomerEmail,
			"contact": "+91" + req.CustomerPhone,
		},
		"notify": map[string]bool{
			"sms":   true,
			"email": true,
		},
		"reminder_enable": true,
		"callback_url":    req.ReturnURL,
		"callback_method": "get",
		"reference_id":    req.OrderID,
		"notes": map[string]string{
			"merchant_id":    req.MerchantID,
			"merchant_name":  req.MerchantName,
			"transaction_id": req.TransactionID,
			"platform":       "cashcavash",
		},
	}

	var result struct {
		ID          string `json:"id"`
		ShortURL    string `json:"short_url"`
		ReferenceID string `json:"reference_id"`
	}
	if err := r.doRequest(ctx, http.MethodPost, "/payment_links", payload, &result); err != nil {
		return nil, err
	}

	return &LinkResponse{
		LinkID:     result.ID,
		GatewayRef: result.ReferenceID,
		PaymentURL: result.ShortURL,
	}, nil
}

func (r *RazorpayClient) FetchOrderStatus(ctx context.Context, gatewayOrderID string) (*OrderStatus, error) {
	var result map[string]interface{}
	if err := r.doRequest(ctx, http.MethodGet, "/payment_links/"+gatewayOrderID, nil, &result); err != nil {
		return nil, err
	}

	status := &OrderStatus{
		GatewayOrderID: gatewayOrderID,
		Raw:            result,
	}
	if s, ok := result["status"].(string); ok {
		status.Status = s
	}
	if payments, ok := result["payments"].([]interface{}); ok && len(payments) > 0 {
		if p, ok := payments[0].(map[string]interface{}); ok {
			if id, ok := p["payment_id"].(string); ok {
				status.PaymentID = id
			}
			if m, ok := p["method"].(string); ok {
				status.PaymentMethod = m
			}
		}
	}
	return status, nil
}

func (r *RazorpayClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	payload := map[string]interface{}{
		"amount": int64(math.Round(req.Amount * 100)),
		"notes": map[string]string{
			"refund_id": req.RefundID,
			"note":      req.Note,
		},
	}

	var result struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	// GatewayOrderID here is the captured payment id.
	path := fmt.Sprintf("/payments/%s/refund", req.GatewayOrderID)
	if err := r.doRequest(ctx, http.MethodPost, path, payload, &result); err != nil {
		return nil, err
	}

	return &RefundResponse{
		RefundID:   req.RefundID,
		GatewayRef: result.ID,
		Status:     result.Status,
	}, nil
}

// VerifyAndParseWebhook checks the x-razorpay-signature header. The
// signature is HMAC-SHA256 over the raw body, hex encoded.
func (r *RazorpayClient) VerifyAndParseWebhook(headers http.Header, body []byte) (*Event, error) {
	signature := headers.Get("x-razorpay-signature")
	if signature == "" {
		return nil, ErrInvalidSignature
	}

	expected := utils.HMACSHA256Hex(r.webhookSecret, string(body))
	if !utils.SecureCompare(expected, signature) {
		return nil, ErrInvalidSignature
	}

	var payload struct {
		Event   string `json:"event"`
		Payload struct {
			PaymentLink struct {
				Entity struct {
					ID          string `json:"id"`
					ReferenceID string `json:"reference_id"`
				} `json:"entity"`
			} `json:"payment_link"`
			Payment struct {
				Entity struct {
					ID           string  `json:"id"`
					OrderID      string  `json:"order_id"`
					Method       string  `json:"method"`
					Amount       float64 `json:"amount"`
					ErrorReason  string  `json:"error_reason"`
					ErrorMessage string  `json:"error_description"`
				} `json:"entity"`
			} `json:"payment"`
		} `json:"payload"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse razorpay webhook: %w", err)
	}

	var raw map[string]interface{}
	json.Unmarshal(body, &raw)

	failureReason := payload.Payload.Payment.Entity.ErrorMessage
	if failureReason == "" {
		failureReason = payload.Payload.Payment.Entity.ErrorReason
	}

	event := &Event{
		EventType: payload.Event,
		OrderID:   payload.Payload.PaymentLink.Entity.ReferenceID,
		LinkID:    payload.Payload.PaymentLink.Entity.ID,
		PaymentID: payload.Payload.Payment.Entity.ID,
		// Razorpay amounts arrive in paise.
		Amount:        payload.Payload.Payment.Entity.Amount / 100,
		PaymentMethod: payload.Payload.Payment.Entity.Method,
		FailureReason: failureReason,
		Raw:           raw,
	}

	if eventID := headers.Get("x-razorpay-event-id"); eventID != "" {
		event.EventID = eventID
	} else {
		sum := sha256.Sum256(body)
		event.EventID = hex.EncodeToString(sum[:])
	}

	return event, nil
}
