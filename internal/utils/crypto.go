// internal/utils/crypto.go
package utils

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"
)

func randomHex(n int) string {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand failing means the process has bigger problems
		panic(err)
	}
	return hex.EncodeToString(b)
}

// Prefixed external identifiers, unique by timestamp + random suffix.
func GenerateTransactionID() string {
	return fmt.Sprintf("TXN_%d_%s", time.Now().UnixMilli(), randomHex(4))
}

func GenerateOrderID() string {
	return fmt.Sprintf("ORD_%d_%s", time.Now().UnixMilli(), randomHex(4))
}

func GeneratePayoutID() string {
	return fmt.Sprintf("PAYOUT_REQ_%d_%s", time.Now().UnixMilli(), randomHex(4))
}

func GenerateCustomerID(phone string) string {
	return fmt.Sprintf("CUST_%s_%d", phone, time.Now().UnixMilli())
}

func GenerateRefundID() string {
	return fmt.Sprintf("REFUND_%d_%s", time.Now().UnixMilli(), randomHex(4))
}

func GenerateAPIKey() string {
	return "cashcavash_" + randomHex(16)
}

// HMACSHA256Base64 signs data with the given secret, base64-encoded.
// Cashfree webhook signatures use this form.
func HMACSHA256Base64(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// HMACSHA256Hex signs data with the given secret, hex-encoded. Razorpay
// webhook signatures use this form.
func HMACSHA256Hex(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}

// SecureCompare does constant-time comparison of two signatures.
func SecureCompare(a, b string) bool {
	return hmac.Equal([]byte(a), []byte(b))
}
