package auth

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mileusna/useragent"
	jwtmw "github.com/tech-arch1tect/ledgersite/middleware/jwt"
	"github.com/tech-arch1tect/ledgersite/services/admins"
	"github.com/tech-arch1tect/ledgersite/services/authcode"
	"github.com/tech-arch1tect/ledgersite/services/logging"
	"go.uber.org/zap"
)

type AuthService interface {
	SendAuthCode(ctx context.Context, email string, channel authcode.Channel) authcode.SendResult
	ValidateAuthCode(ctx context.Context, email, code string) authcode.ValidateResult
}

type Revoker interface {
	RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error
}

type SendCodeRequest struct {
	Email string `json:"email" validate:"required" doc:"Administrator email address" example:"admin@example.com"`
	Type  string `json:"type,omitempty" doc:"Delivery channel, email or sms" example:"email"`
}

type SendCodeResponse struct {
	Success    bool   `json:"success"`
	Message    string `json:"message"`
	Email      string `json:"email,omitempty"`
	RetryAfter int    `json:"retry_after,omitempty" doc:"Seconds until another code may be requested"`
}

type VerifyCodeRequest struct {
	Email string `json:"email" validate:"required" example:"admin@example.com"`
	Code  string `json:"code" validate:"required" doc:"Six digit code from the email" example:"482913"`
}

type VerifyCodeResponse struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	Token     string         `json:"token,omitempty"`
	ExpiresAt *time.Time     `json:"expires_at,omitempty"`
	User      *authcode.User `json:"user,omitempty"`
}

type MeResponse struct {
	ID        uint      `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	ExpiresAt time.Time `json:"expires_at"`
}

type SignOutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type Handler struct {
	service AuthService
	revoker Revoker
	logger  *logging.Service
}

func NewHandler(service AuthService, revoker Revoker, logger *logging.Service) *Handler {
	return &Handler{service: service, revoker: revoker, logger: logger}
}

func (h *Handler) SendCode(c echo.Context) error {
	var req SendCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result := h.service.SendAuthCode(c.Request().Context(), req.Email, authcode.Channel(req.Type))

	h.logger.Info("verification code requested",
		append(clientFields(c), zap.String("reason", reasonLabel(result.Reason)))...)

	resp := SendCodeResponse{Success: result.Success, Message: result.Message}
	switch result.Reason {
	case authcode.ReasonNone, authcode.ReasonUnknownIdentity, authcode.ReasonDeliveryFailed:
		resp.Email = admins.NormalizeEmail(req.Email)
	case authcode.ReasonRateLimited:
		seconds := retryAfterSeconds(result.RetryAfter)
		resp.RetryAfter = seconds
		c.Response().Header().Set("Retry-After", strconv.Itoa(seconds))
	}
	return c.JSON(sendStatus(result.Reason), resp)
}

func (h *Handler) VerifyCode(c echo.Context) error {
	var req VerifyCodeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body.")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	result := h.service.ValidateAuthCode(c.Request().Context(), req.Email, req.Code)

	fields := append(clientFields(c), zap.String("email", admins.NormalizeEmail(req.Email)))
	if !result.Success {
		h.logger.Warn("sign-in rejected", append(fields, zap.String("reason", string(result.Reason)))...)
		return c.JSON(verifyStatus(result.Reason), VerifyCodeResponse{Message: result.Message})
	}

	h.logger.Info("administrator signed in", append(fields, zap.Uint("admin_id", result.User.ID))...)
	expiresAt := result.ExpiresAt
	return c.JSON(http.StatusOK, VerifyCodeResponse{
		Success:   true,
		Message:   result.Message,
		Token:     result.Token,
		ExpiresAt: &expiresAt,
		User:      result.User,
	})
}

func (h *Handler) Me(c echo.Context) error {
	claims := jwtmw.GetClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	resp := MeResponse{ID: claims.AdminID, Email: claims.Email, Name: claims.Name}
	if claims.ExpiresAt != nil {
		resp.ExpiresAt = claims.ExpiresAt.Time
	}
	return c.JSON(http.StatusOK, resp)
}

// SignOut revokes the presented token. Without a revocation store the token
// stays valid until it expires, so the client is told to discard it.
func (h *Handler) SignOut(c echo.Context) error {
	claims := jwtmw.GetClaims(c)
	if claims == nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "Authentication required")
	}

	if h.revoker == nil {
		return c.JSON(http.StatusOK, SignOutResponse{Success: true, Message: "Signed out. Discard the token on this device."})
	}

	var expiresAt time.Time
	if claims.ExpiresAt != nil {
		expiresAt = claims.ExpiresAt.Time
	}
	if err := h.revoker.RevokeToken(c.Request().Context(), claims.ID, expiresAt); err != nil {
		h.logger.Error("failed to revoke token", zap.Uint("admin_id", claims.AdminID), zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Unable to sign out. Please try again.")
	}

	h.logger.Info("administrator signed out", append(clientFields(c), zap.Uint("admin_id", claims.AdminID))...)
	return c.JSON(http.StatusOK, SignOutResponse{Success: true, Message: "Signed out."})
}

func sendStatus(reason authcode.Reason) int {
	switch reason {
	case authcode.ReasonNone, authcode.ReasonUnknownIdentity, authcode.ReasonDeliveryFailed:
		return http.StatusOK
	case authcode.ReasonInvalidEmail, authcode.ReasonInvalidChannel, authcode.ReasonChannelUnsupported:
		return http.StatusBadRequest
	case authcode.ReasonRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

func verifyStatus(reason authcode.Reason) int {
	switch reason {
	case authcode.ReasonNone:
		return http.StatusOK
	case authcode.ReasonInvalidFormat, authcode.ReasonInvalidEmail:
		return http.StatusBadRequest
	case authcode.ReasonInvalidCode, authcode.ReasonExpired, authcode.ReasonAlreadyUsed,
		authcode.ReasonNoCode, authcode.ReasonNotFound:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

func retryAfterSeconds(d time.Duration) int {
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// reasonLabel keeps unknown identities out of the request log; they share the
// "sent" label with real sends.
func reasonLabel(reason authcode.Reason) string {
	if reason == authcode.ReasonNone || reason == authcode.ReasonUnknownIdentity {
		return "sent"
	}
	return string(reason)
}

func clientFields(c echo.Context) []zap.Field {
	ua := useragent.Parse(c.Request().UserAgent())

	device := "Desktop"
	switch {
	case ua.Mobile:
		device = "Mobile"
	case ua.Tablet:
		device = "Tablet"
	case ua.Bot:
		device = "Bot"
	case ua.Name == "":
		device = "Unknown"
	}

	return []zap.Field{
		zap.String("ip", c.RealIP()),
		zap.String("browser", ua.Name),
		zap.String("os", ua.OS),
		zap.String("device", device),
	}
}
