// internal/handlers/payment.go
package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ninexgroup/cashcavash-backend/internal/i18n"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

type PaymentHandler struct {
	paymentService *services.PaymentService
}

func NewPaymentHandler(paymentService *services.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
	}
}

// POST /payments/order
func (h *PaymentHandler) CreateOrder(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	merchantName, _ := utils.GetMerchantNameFromContext(c)

	var req services.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.paymentService.CreateOrder(c.Request.Context(), merchantID, merchantName, &req)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedGateway) {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "gateway"), nil)
			return
		}
		logrus.WithError(err).Error("Failed to create payment order")
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyPaymentCreateFailed), err.Error())
		return
	}

	utils.CreatedResponse(c, resp)
}

// POST /payments/link
func (h *PaymentHandler) CreatePaymentLink(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	merchantName, _ := utils.GetMerchantNameFromContext(c)

	var req services.CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.paymentService.CreatePaymentLink(c.Request.Context(), merchantID, merchantName, &req)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedGateway) {
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "gateway"), nil)
			return
		}
		logrus.WithError(err).Error("Failed to create payment link")
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyPaymentCreateFailed), err.Error())
		return
	}

	utils.CreatedResponse(c, resp)
}

// GET /payments/status/:orderId
//
// Polls the gateway for the current state and reconciles the local
// transaction before returning it.
func (h *PaymentHandler) GetPaymentStatus(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	orderID := c.Param("orderId")
	transaction, err := h.paymentService.GetPaymentStatus(c.Request.Context(), merchantID, orderID)
	if err != nil {
		if errors.Is(err, services.ErrTransactionNotFound) {
			utils.NotFoundResponse(c, "payment")
			return
		}
		logrus.WithError(err).WithField("order_id", orderID).Error("Failed to fetch payment status")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": transaction})
}

// POST /payments/refund
func (h *PaymentHandler) RefundPayment(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req services.RefundPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	resp, err := h.paymentService.RefundPayment(c.Request.Context(), merchantID, &req)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTransactionNotFound):
			utils.NotFoundResponse(c, "payment")
		case errors.Is(err, services.ErrNotRefundable):
			utils.ConflictResponse(c, i18n.T(lang, i18n.KeyPaymentNotRefundable), nil)
		case errors.Is(err, services.ErrInvalidRefundAmount):
			utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyPaymentRefundInvalid), nil)
		default:
			logrus.WithError(err).WithField("order_id", req.OrderID).Error("Refund failed")
			utils.InternalErrorResponse(c, "")
		}
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPaymentRefunded),
		"refund":  resp,
	})
}

// GET /payments/transactions/:id
func (h *PaymentHandler) GetTransaction(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	transaction, err := h.paymentService.GetTransaction(merchantID, c.Param("id"))
	if err != nil {
		utils.NotFoundResponse(c, "payment")
		return
	}

	utils.SuccessResponse(c, gin.H{"transaction": transaction})
}

// GET /payments/transactions
func (h *PaymentHandler) ListTransactions(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	filter := transactionFilterFromQuery(c, params)

	transactions, total, summary, err := h.paymentService.ListTransactions(merchantID, filter, params)
	if err != nil {
		logrus.WithError(err).Error("Failed to list transactions")
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.SetPaginationHeaders(c, result)
	utils.SuccessResponseWithMeta(c, gin.H{
		"transactions": transactions,
		"summary":      summary,
	}, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

func transactionFilterFromQuery(c *gin.Context, params utils.PaginationParams) services.TransactionFilter {
	filter := services.TransactionFilter{
		Status:  params.Status,
		Gateway: c.Query("gateway"),
		Search:  params.Search,
	}
	if v := c.Query("date_from"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.DateFrom = &t
		}
	}
	if v := c.Query("date_to"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.DateTo = &t
		}
	}
	if v := c.Query("min_amount"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MinAmount = f
		}
	}
	if v := c.Query("max_amount"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			filter.MaxAmount = f
		}
	}
	return filter
}
