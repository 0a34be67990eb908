// internal/handlers/superadmin.go
package handlers

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/ninexgroup/cashcavash-backend/internal/i18n"
	"github.com/ninexgroup/cashcavash-backend/internal/services"
	"github.com/ninexgroup/cashcavash-backend/internal/utils"
)

// SuperAdminHandler serves the platform operator surface: cross-merchant
// views, the payout approval workflow and settlement controls.
type SuperAdminHandler struct {
	paymentService    *services.PaymentService
	payoutService     *services.PayoutService
	settlementService *services.SettlementService
}

func NewSuperAdminHandler(paymentService *services.PaymentService, payoutService *services.PayoutService, settlementService *services.SettlementService) *SuperAdminHandler {
	return &SuperAdminHandler{
		paymentService:    paymentService,
		payoutService:     payoutService,
		settlementService: settlementService,
	}
}

func actorFromContext(c *gin.Context) (services.PayoutActor, bool) {
	id, ok := merchantIDFromContext(c)
	if !ok {
		return services.PayoutActor{}, false
	}
	name, _ := utils.GetMerchantNameFromContext(c)
	return services.PayoutActor{ID: id, Name: name}, true
}

// GET /superadmin/payouts
func (h *SuperAdminHandler) ListAllPayouts(c *gin.Context) {
	params := utils.GetPaginationParams(c)

	payouts, total, summary, err := h.payoutService.ListPayouts(nil, params.Status, params)
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

// GET /superadmin/payouts/:payoutId
func (h *SuperAdminHandler) GetPayout(c *gin.Context) {
	payout, err := h.payoutService.GetPayout(c.Param("payoutId"), nil)
	if err != nil {
		utils.NotFoundResponse(c, "payout")
		return
	}
	utils.SuccessResponse(c, gin.H{"payout": newPayoutView(payout)})
}

// POST /superadmin/payouts/:payoutId/approve
func (h *SuperAdminHandler) ApprovePayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		Notes string `json:"notes,omitempty"`
	}
	_ = c.ShouldBindJSON(&req)

	payout, err := h.payoutService.ApprovePayout(c.Param("payoutId"), actor, req.Notes)
	if err != nil {
		respondPayoutError(c, lang, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutApproved),
		"payout":  newPayoutView(payout),
	})
}

// POST /superadmin/payouts/:payoutId/reject
func (h *SuperAdminHandler) RejectPayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	payout, err := h.payoutService.RejectPayout(c.Param("payoutId"), actor, req.Reason)
	if err != nil {
		respondPayoutError(c, lang, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutRejected),
		"payout":  newPayoutView(payout),
	})
}

// POST /superadmin/payouts/:payoutId/process
//
// Marks the transfer as executed. The bank UTR is mandatory; without it
// the payout stays in flight.
func (h *SuperAdminHandler) ProcessPayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		UTR   string `json:"utr"`
		Notes string `json:"notes,omitempty"`
	}
	_ = c.ShouldBindJSON(&req)

	payout, err := h.payoutService.ProcessPayout(c.Param("payoutId"), actor, req.UTR, req.Notes)
	if err != nil {
		respondPayoutError(c, lang, err)
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeyPayoutCompleted),
		"payout":  newPayoutView(payout),
	})
}

// POST /superadmin/payouts/:payoutId/fail
func (h *SuperAdminHandler) FailPayout(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	actor, ok := actorFromContext(c)
	if !ok {
		utils.UnauthorizedResponse(c, "")
		return
	}

	var req struct {
		Reason string `json:"reason"`
	}
	_ = c.ShouldBindJSON(&req)

	payout, err := h.payoutService.FailPayout(c.Param("payoutId"), actor, req.Reason)
	if err != nil {
		respondPayoutError(c, lang, err)
		return
	}

	utils.SuccessResponse(c, gin.H{"payout": newPayoutView(payout)})
}

// GET /superadmin/transactions
func (h *SuperAdminHandler) ListAllTransactions(c *gin.Context) {
	params := utils.GetPaginationParams(c)
	filter := transactionFilterFromQuery(c, params)

	transactions, total, stats, err := h.paymentService.ListAllTransactions(filter, params)
	if err != nil {
		logrus.WithError(err).Error("Failed to list transactions")
		utils.InternalErrorResponse(c, "")
		return
	}

	result := utils.CreatePaginationResult(transactions, total, params)
	utils.SetPaginationHeaders(c, result)
	utils.SuccessResponseWithMeta(c, gin.H{
		"transactions":   transactions,
		"merchant_stats": stats,
	}, gin.H{
		"pagination": gin.H{
			"page":        result.Page,
			"limit":       result.Limit,
			"total":       result.Total,
			"total_pages": result.TotalPages,
		},
	})
}

// POST /superadmin/settlements/run
//
// Forces a settlement sweep outside the schedule. A sweep already in
// progress is reported as a conflict rather than queued.
func (h *SuperAdminHandler) RunSettlement(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	result, err := h.settlementService.RunOnce(time.Now())
	if err != nil {
		if errors.Is(err, services.ErrSweepInProgress) {
			utils.ConflictResponse(c, err.Error(), nil)
			return
		}
		logrus.WithError(err).Error("Settlement run failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message": i18n.T(lang, i18n.KeySettlementRunStarted),
		"result":  result,
	})
}

// POST /superadmin/settlements/backfill
func (h *SuperAdminHandler) BackfillSettlements(c *gin.Context) {
	lang := utils.GetLangFromContext(c)

	repaired, err := h.settlementService.Backfill()
	if err != nil {
		logrus.WithError(err).Error("Settlement backfill failed")
		utils.InternalErrorResponse(c, "")
		return
	}

	utils.SuccessResponse(c, gin.H{
		"message":  i18n.T(lang, i18n.KeySettlementBackfilled),
		"repaired": repaired,
	})
}
