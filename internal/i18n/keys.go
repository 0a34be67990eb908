// internal/i18n/keys.go
package i18n

// Translation keys constants
const (
	// Common
	KeySuccess = "success"
	KeyError   = "error"

	// Authentication
	KeyAuthRequired           = "auth.required"
	KeyAuthInvalidToken       = "auth.invalid_token"
	KeyAuthTokenExpired       = "auth.token_expired"
	KeyAuthInvalidCredentials = "auth.invalid_credentials"
	KeyAuthInvalidAPIKey      = "auth.invalid_api_key"
	KeyAuthLoginSuccess       = "auth.login_success"
	KeyAuthRegisterSuccess    = "auth.register_success"
	KeyAdminAccessDenied      = "auth.admin_access_denied"

	// Validation
	KeyValidationInvalid = "validation.invalid"

	// Merchant
	KeyMerchantNotFound     = "merchant.not_found"
	KeyMerchantExists       = "merchant.exists"
	KeyMerchantAPIKeyExists = "merchant.api_key_exists"

	// Payments
	KeyPaymentCreated       = "payment.created"
	KeyPaymentCreateFailed  = "payment.create_failed"
	KeyPaymentNotFound      = "payment.not_found"
	KeyPaymentRefunded      = "payment.refunded"
	KeyPaymentNotRefundable = "payment.not_refundable"
	KeyPaymentRefundInvalid = "payment.refund_invalid"

	// Webhooks
	KeyWebhookInvalidSignature = "webhook.invalid_signature"
	KeyWebhookProcessed        = "webhook.processed"

	// Payouts
	KeyPayoutRequested           = "payout.requested"
	KeyPayoutNotFound            = "payout.not_found"
	KeyPayoutApproved            = "payout.approved"
	KeyPayoutRejected            = "payout.rejected"
	KeyPayoutCancelled           = "payout.cancelled"
	KeyPayoutCompleted           = "payout.completed"
	KeyPayoutInvalidState        = "payout.invalid_state"
	KeyPayoutInsufficientBalance = "payout.insufficient_balance"

	// Settlement
	KeySettlementRunStarted = "settlement.run_started"
	KeySettlementBackfilled = "settlement.backfilled"
)
