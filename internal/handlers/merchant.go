// internal/handlers/merchant.go
package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ninexgroup/cashcavash-backend/internal/i18n"
	"github.com/ninexgroup/cashcavash-backend/internal/models"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

// MerchantHandler serves the merchant dashboard surface: balance,
// payout requests and the payout history.
type MerchantHandler struct {
	balanceService *services.BalanceService
	payoutService  *services.PayoutService
}

func NewMerchantHandler(balanceService *services.BalanceService, payoutService *services.PayoutService) *MerchantHandler {
	return &MerchantHandler{
		balanceService: balanceService,
		payoutService:  payoutService,
	}
}

// payoutView is the read shape for payouts. Raw beneficiary fields are
// excluded from the model's JSON; the masked block is attached here.
type payoutView struct {
	*models.Payout
	Beneficiary models.BeneficiaryDetails `json:"beneficiary"`
}

func newPayoutView(p *models.Payout) payoutView {
	return payoutView{Payout: p, Beneficiary: p.MaskedBeneficiary()}
}

func newPayoutViews(payouts []models.Payout) []payoutView {
	views := make([]payoutView, len(payouts))
	for i := range payouts {
		views[i] = newPayoutView(&payouts[i])
	}
	return views
}

// GET /admin/balance
func (h *MerchantHandler) GetBalance(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	balance, err := h.balanceService.GetBalance(merchantID, time.Now())
	if err != nil {
		logrus.WithError(err).WithField("merchant_id", merchantID).Error("Failed to compute balance")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{"balance": balance})
}

// POST /admin/payouts
func (h *MerchantHandler) RequestPayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}
	merchantName, _ := utils.GetMerchantNameFromContext(c)

	var req services.PayoutRequestInput
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "input"), err.Error())
		return
	}

	if validationErrors := utils.GetValidationErrors(utils.ValidateStruct(&req)); len(validationErrors) > 0 {
		utils.ValidationErrorResponse(c, validationErrors)
		return
	}

	actor := services.PayoutActor{ID: merchantID, Name: merchantName}
	payout, err := h.payoutService.RequestPayout(actor, &req)
	if err != nil {
		respondPayoutError(c, lang, err)
		return
	}

	utils.CreatedResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutRequested),
		"payout":  newPayoutView(payout),
	})
}

// GET /admin/payouts
func (h *MerchantHandler) ListPayouts(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	params := utils.GetPaginationParams(c)
	payouts, total, summary, err := h.payoutService.ListPayouts(&merchantID, params.Status, params)
	if err != nil {
		logrus.WithError(err).Error("Failed to list payouts")
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(newPayoutViews(payouts), total, params)
	utils.SetPaginationHeaders(c, result)
	utils.SuccessResponseWithMeta(c, gin.H{
		"payouts": result.Data,
		"summary": summary,
	}, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

// GET /admin/payouts/:payoutId
func (h *MerchantHandler) GetPayout(c *gin.Context) {
	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	payout, err := h.payoutService.GetPayout(c.Param("payoutId"), &merchantID)
	if err != nil {
		utils.NotFoundResponse(c, "payout")
		return
	}

	utils.SuccessResponse(c, gin.H{"payout": newPayoutView(payout)})
}

// POST /admin/payouts/:payoutId/cancel
func (h *MerchantHandler) CancelPayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	merchantID, ok := merchantIDFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	payout, err := h.payoutService.CancelPayout(merchantID, c.Param("payoutId"))
	if err != nil {
		respondPayoutError(c, lang, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutCancelled),
		"payout":  newPayoutView(payout),
	})
}

// respondPayoutError maps payout workflow errors onto the API surface.
func respondPayoutError(c *gin.Context, lang string, err error) {
	var insufficientErr *services.InsufficientBalanceError
	var stateErr *services.PayoutStateError
	var limitErr *services.PayoutLimitError

	switch {
	case errors.Is(err, services.ErrPayoutNotFound):
		utils.NotFoundResponse(c, "payout")
	case errors.Is(err, services.ErrMissingBeneficiary):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "beneficiary details"), nil)
	case errors.Is(err, services.ErrUTRRequired):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "UTR"), nil)
	case errors.Is(err, services.ErrRejectReasonRequired):
		utils.BadRequestResponse(c, i18n.T(lang, i18n.KeyValidationInvalid, "rejection reason"), nil)
	case errors.Is(err, services.ErrReservationConflict):
		utils.ConflictResponse(c, err.Error(), nil)
	case errors.As(err, &insufficientErr):
		utils.InsufficientBalanceResponse(c, "", gin.H{
			"available_balance": insufficientErr.Available,
			"requested_amount":  insufficientErr.Requested,
			"net_amount":        insufficientErr.Net,
			"shortfall":         insufficientErr.Shortfall,
		})
	case errors.As(err, &stateErr):
		utils.ConflictResponse(c,
			i18n.T(lang, i18n.KeyPayoutInvalidState, string(stateErr.Current), stateErr.Required),
			gin.H{
				"payout_id":      stateErr.PayoutID,
				"current_status": stateErr.Current,
			})
	case errors.As(err, &limitErr):
		utils.BadRequestResponse(c, limitErr.Error(), gin.H{
			"min_amount": limitErr.Min,
			"max_amount": limitErr.Max,
		})
	default:
		logrus.WithError(err).Error("Payout operation failed")
		utils.InternalErrorResponse(c, "")
	}
}
