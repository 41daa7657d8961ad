package authcode

import (
	"fmt"
	"time"
)

type Reason string

const (
	ReasonNone               Reason = ""
	ReasonInvalidEmail       Reason = "invalid_email"
	ReasonInvalidChannel     Reason = "invalid_channel"
	ReasonChannelUnsupported Reason = "channel_unsupported"
	ReasonRateLimited        Reason = "rate_limited"
	ReasonUnknownIdentity    Reason = "unknown_identity"
	ReasonDeliveryFailed     Reason = "delivery_failed"
	ReasonInvalidFormat      Reason = "invalid_format"
	ReasonAlreadyUsed        Reason = "already_used"
	ReasonExpired            Reason = "expired"
	ReasonNoCode             Reason = "no_code"
	ReasonInvalidCode        Reason = "invalid_code"
	ReasonNotFound           Reason = "not_found"
	ReasonInternal           Reason = "internal"
)

const (
	msgInvalidEmail       = "A valid email address is required."
	msgInvalidChannel     = "Unsupported delivery type. Use \"email\"."
	msgRateLimited        = "Too many code requests. Please wait a few minutes before trying again."
	msgUnknownIdentity    = "Unable to send a verification code to this address."
	msgDeliveryFailed     = "Your verification code was generated but could not be emailed. Contact support; an operator can read the live code from the verification_codes table."
	msgSendInternal       = "Something went wrong while sending the verification code. Please try again."
	msgInvalidFormat      = "Verification code must be exactly 6 digits."
	msgAlreadyUsed        = "This code has already been used. Please request a new one."
	msgExpired            = "This code has expired. Please request a new one."
	msgNoCode             = "No verification code found for this email. Please request a new one."
	msgInvalidCode        = "Invalid verification code. Please check the code and try again."
	msgAdminNotFound      = "Administrator account not found."
	msgValidateInternal   = "Something went wrong while verifying the code. Please try again."
	msgValidateSuccessful = "Authentication successful."
)

func channelUnsupportedMessage(channel Channel) string {
	return fmt.Sprintf("Delivery by %s is not available yet. Please request the code by email.", channel)
}

func sentMessage(ttl time.Duration) string {
	return fmt.Sprintf("Verification code sent. Check your inbox (and spam folder); the code expires in %s.", formatTTL(ttl))
}

// formatTTL prints whole minutes as "10 minutes" and anything else as a
// duration ("45s", "1m30s").
func formatTTL(ttl time.Duration) string {
	if ttl < time.Minute || ttl%time.Minute != 0 {
		return ttl.String()
	}
	minutes := int(ttl / time.Minute)
	if minutes == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", minutes)
}

type SendResult struct {
	Success    bool
	Message    string
	Reason     Reason
	RetryAfter time.Duration
}

type User struct {
	ID    uint   `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

type ValidateResult struct {
	Success   bool
	Message   string
	Reason    Reason
	Token     string
	ExpiresAt time.Time
	User      *User
}

func sendFailure(reason Reason, message string) SendResult {
	return SendResult{Reason: reason, Message: message}
}

func validateFailure(reason Reason, message string) ValidateResult {
	return ValidateResult{Reason: reason, Message: message}
}
