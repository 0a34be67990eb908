// internal/handlers/webhook.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ninexgroup/cashcavash-backend/internal/gateway"
	"github.com/ninexgroup/cashcavash-backend/internal/i18n"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

type WebhookHandler struct {
	webhookService *services.WebhookService
}

func NewWebhookHandler(webhookService *services.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
	}
}

// POST /payments/webhook/cashfree
func (h *WebhookHandler) HandleCashfreeWebhook(c *gin.Context) {
	h.handle(c, models.GatewayCashfree)
}

// POST /payments/webhook/razorpay
func (h *WebhookHandler) HandleRazorpayWebhook(c *gin.Context) {
	h.handle(c, models.GatewayRazorpay)
}

// handle acknowledges every authentic event with 200, including
// duplicates and events for unknown transactions, so gateways do not
// keep retrying deliveries we cannot use. Only a bad signature or an
// internal failure is surfaced as an error status.
func (h *WebhookHandler) handle(c *gin.Context, gatewayName models.PaymentGateway) {
	lang := utils.GetLangFromContext(c)

	body, err := c.GetRawData()
	if err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "payload"), nil)
		return
	}

	result, err := h.webhookService.HandleWebhook(gatewayName, c.Request.Header, body)
	if err != nil {
		if errors.Is(err, gateway.ErrInvalidSignature) {
			logrus.WithField("gateway", gatewayName).Warn("Webhook signature verification failed")
			utils.ErrorResponse(c, http.StatusBadRequest, "INVALID_SIGNATURE",
				i18n.T(lang, i18n.KeyWebhookInvalidSignature), nil)
			return
		}
		logrus.WithError(err).WithField("gateway", gatewayName).Error("Webhook processing failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyWebhookProcessed),
		"result":  result,
	})
}
