// internal/gateway/cashfree.go
package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/ninexgroup/cashcavash-backend/internal/config"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

const cashfreeAPIVersion = "2023-08-01"

// CashfreeClient talks to the Cashfree PG REST API.
type CashfreeClient struct {
	baseURL    string
	appID      string
	secretKey  string
	apiVersion string
	httpClient *http.Client
}

func NewCashfreeClient(cfg config.GatewayConfig) *CashfreeClient {
	apiVersion := cfg.CashfreeAPIVersion
	if apiVersion == "" {
		apiVersion = cashfreeAPIVersion
	}
	return &CashfreeClient{
		baseURL:    cfg.CashfreeBaseURL,
		appID:      cfg.CashfreeAppID,
		secretKey:  cfg.CashfreeSecretKey,
		apiVersion: apiVersion,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.RequestTimeout) * time.Second,
		},
	}
}

func (c *CashfreeClient) Name() models.PaymentGateway {
	return models.GatewayCashfree
}

func (c *CashfreeClient) doRequest(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
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

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}

	req.Header.Set("x-api-version", c.apiVersion)
	req.Header.Set("x-client-id", c.appID)
	req.Header.Set("x-client-secret", c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cashfree request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read cashfree response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return ErrOrderNotFound
	}
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Message string `json:"message"`
			Code    string `json:"code"`
		}
		if err := json.Unmarshal(respBody, &apiErr); err == nil && apiErr.Message != "" {
			return fmt.Errorf("cashfree error %d (%s): %s", resp.StatusCode, apiErr.Code, apiErr.Message)
		}
		return fmt.Errorf("cashfree error %d: %s", resp.StatusCode, string(respBody))
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal cashfree response: %w", err)
		}
	}
	return nil
}

func (c *CashfreeClient) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	payload := map[string]interface{}{
		"order_id":       req.OrderID,
		"order_amount":   req.Amount,
		"order_currency": req.Currency,
		"customer_details": map[string]string{
			"customer_id":    req.CustomerID,
			"customer_name":  req.CustomerName,
			"customer_email": req.CustomerEmail,
			"customer_phone": req.CustomerPhone,
		},
		"order_meta": map[string]string{
			"return_url": req.ReturnURL,
			"notify_url": req.NotifyURL,
		},
		"order_note": req.Description,
		"order_tags": map[string]string{
			"merchant_id":    req.MerchantID,
			"merchant_name":  req.MerchantName,
			"transaction_id": req.TransactionID,
			"platform":       "cashcavash",
		},
	}

	var result struct {
		CFOrderID        json.Number `json:"cf_order_id"`
		OrderID          string      `json:"order_id"`
		PaymentSessionID string      `json:"payment_session_id"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/orders", payload, &result); err != nil {
		return nil, err
	}

	if result.PaymentSessionID == "" {
		return nil, fmt.Errorf("cashfree returned no payment_session_id for order %s", req.OrderID)
	}

	return &OrderResponse{
		GatewayOrderID: result.CFOrderID.String(),
		SessionToken:   result.PaymentSessionID,
	}, nil
}

func (c *CashfreeClient) CreatePaymentLink(ctx context.Context, req OrderRequest) (*LinkResponse, error) {
	payload := map[string]interface{}{
		"link_id":       req.OrderID,
		"link_amount":   req.Amount,
		"link_currency": req.Currency,
		"link_purpose":  req.Description,
		"customer_details": map[string]string{
			"customer_name":  req.CustomerName,
			"customer_email": req.CustomerEmail,
			"customer_phone": req.CustomerPhone,
		},
		"link_notify": map[string]bool{
			"send_sms":   false,
			"send_email": false,
		},
		"link_meta": map[string]string{
			"return_url": req.ReturnURL,
			"notify_url": req.NotifyURL,
		},
		"link_notes": map[string]string{
			"merchant_id":    req.MerchantID,
			"merchant_name":  req.MerchantName,
			"transaction_id": req.TransactionID,
			"order_id":       req.OrderID,
			"platform":       "cashcavash",
		},
	}

	var result struct {
		CFLinkID json.Number `json:"cf_link_id"`
		LinkID   string      `json:"link_id"`
		LinkURL  string      `json:"link_url"`
	}
	if err := c.doRequest(ctx, http.MethodPost, "/links", payload, &result); err != nil {
		return nil, err
	}

	return &LinkResponse{
		LinkID:     result.LinkID,
		GatewayRef: result.CFLinkID.String(),
		PaymentURL: result.LinkURL,
	}, nil
}

func (c *CashfreeClient) FetchOrderStatus(ctx context.Context, gatewayOrderID string) (*OrderStatus, error) {
	var result map[string]interface{}
	if err := c.doRequest(ctx, http.MethodGet, "/orders/"+gatewayOrderID, nil, &result); err != nil {
		return nil, err
	}

	status := &OrderStatus{
		GatewayOrderID: gatewayOrderID,
		Raw:            result,
	}
	if s, ok := result["order_status"].(string); ok {
		status.Status = s
	}
	if id, ok := result["cf_order_id"]; ok {
		status.PaymentID = fmt.Sprintf("%v", id)
	}
	if pm, ok := result["payment_method"].(string); ok {
		status.PaymentMethod = pm
	}
	return status, nil
}

func (c *CashfreeClient) CreateRefund(ctx context.Context, req RefundRequest) (*RefundResponse, error) {
	payload := map[string]interface{}{
		"refund_amount": req.Amount,
		"refund_id":     req.RefundID,
		"refund_note":   req.Note,
	}

	var result struct {
		CFRefundID   json.Number `json:"cf_refund_id"`
		RefundID     string      `json:"refund_id"`
		RefundStatus string      `json:"refund_status"`
	}
	path := fmt.Sprintf("/orders/%s/refunds", req.GatewayOrderID)
	if err := c.doRequest(ctx, http.MethodPost, path, payload, &result); err != nil {
		return nil, err
	}

	return &RefundResponse{
		RefundID:   result.RefundID,
		GatewayRef: result.CFRefundID.String(),
		Status:     result.RefundStatus,
	}, nil
}

// VerifyAndParseWebhook checks the x-webhook-signature header. The
// signature is HMAC-SHA256 over timestamp concatenated with the raw
// body, base64 encoded.
func (c *CashfreeClient) VerifyAndParseWebhook(headers http.Header, body []byte) (*Event, error) {
	signature := headers.Get("x-webhook-signature")
	timestamp := headers.Get("x-webhook-timestamp")
	if signature == "" || timestamp == "" {
		return nil, ErrInvalidSignature
	}

	expected := utils.HMACSHA256Base64(c.secretKey, timestamp+string(body))
	if !utils.SecureCompare(expected, signature) {
		return nil, ErrInvalidSignature
	}

	var payload struct {
		Type string `json:"type"`
		Data struct {
			Order struct {
				OrderID string `json:"order_id"`
			} `json:"order"`
			Payment struct {
				CFPaymentID    json.Number `json:"cf_payment_id"`
				PaymentAmount  float64     `json:"payment_amount"`
				PaymentGroup   string      `json:"payment_group"`
				PaymentTime    string      `json:"payment_time"`
				PaymentMessage string      `json:"payment_message"`
			} `json:"payment"`
		} `json:"data"`
		EventTime string `json:"event_time"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse cashfree webhook: %w", err)
	}

	var raw map[string]interface{}
	json.Unmarshal(body, &raw)

	event := &Event{
		EventType:     payload.Type,
		OrderID:       payload.Data.Order.OrderID,
		PaymentID:     payload.Data.Payment.CFPaymentID.String(),
		Amount:        payload.Data.Payment.PaymentAmount,
		PaymentMethod: payload.Data.Payment.PaymentGroup,
		PaymentTime:   payload.Data.Payment.PaymentTime,
		FailureReason: payload.Data.Payment.PaymentMessage,
		Raw:           raw,
	}

	// Cashfree does not send a dedicated event id. Key on the payment
	// plus event type, falling back to a body digest.
	if event.PaymentID != "" {
		event.EventID = fmt.Sprintf("%s:%s", event.PaymentID, event.EventType)
	} else {
		sum := sha256.Sum256(body)
		event.EventID = hex.EncodeToString(sum[:])
	}

	return event, nil
}
