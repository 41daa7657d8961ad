package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/tech-arch1tect/ledgersite/openapi"
	"github.com/tech-arch1tect/ledgersite/server"
)

const (
	Prefix         = "/auth"
	SecurityScheme = "bearerAuth"
	tag            = "auth"
)

// RegisterRoutes mounts the auth endpoints on g. limiter guards the two code
// endpoints and may be nil.
func (h *Handler) RegisterRoutes(g *echo.Group, requireAuth, limiter echo.MiddlewareFunc) {
	var limited []echo.MiddlewareFunc
	if limiter != nil {
		limited = append(limited, limiter)
	}

	g.POST("/send-code", h.SendCode, limited...)
	g.POST("/verify-code", h.VerifyCode, limited...)
	g.GET("/me", h.Me, requireAuth)
	g.POST("/sign-out", h.SignOut, requireAuth)
}

func Document(doc *openapi.OpenAPI) {
	doc.Tag(tag, "Email code sign-in for administrators").
		BearerAuth(SecurityScheme, "Session token returned by verify-code")

	doc.Document(http.MethodPost, Prefix+"/send-code").
		Summary("Request a sign-in code").
		Description("Emails a six digit code to a registered administrator. Unregistered addresses receive the same response.").
		OperationID("sendCode").
		Tags(tag).
		Body(SendCodeRequest{}, "Address to send the code to").
		Response(http.StatusOK, SendCodeResponse{}, "Code issued (or address not registered)").
		Response(http.StatusBadRequest, server.ErrorResponse{}, "Invalid email or delivery type").
		ResponseWithHeaders(http.StatusTooManyRequests, SendCodeResponse{}, "Too many code requests",
			map[string]string{"Retry-After": "Seconds until another code may be requested"}).
		Response(http.StatusInternalServerError, SendCodeResponse{}, "Code could not be issued").
		Build()

	doc.Document(http.MethodPost, Prefix+"/verify-code").
		Summary("Exchange a code for a session token").
		OperationID("verifyCode").
		Tags(tag).
		Body(VerifyCodeRequest{}, "Address and code").
		Response(http.StatusOK, VerifyCodeResponse{}, "Signed in").
		Response(http.StatusBadRequest, VerifyCodeResponse{}, "Malformed code or email").
		Response(http.StatusUnauthorized, VerifyCodeResponse{}, "Code invalid, expired or already used").
		Response(http.StatusInternalServerError, VerifyCodeResponse{}, "Verification failed").
		Build()

	doc.Document(http.MethodGet, Prefix+"/me").
		Summary("Current administrator").
		OperationID("me").
		Tags(tag).
		Security(SecurityScheme).
		Response(http.StatusOK, MeResponse{}, "Claims of the presented token").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()

	doc.Document(http.MethodPost, Prefix+"/sign-out").
		Summary("Revoke the presented token").
		OperationID("signOut").
		Tags(tag).
		Security(SecurityScheme).
		Response(http.StatusOK, SignOutResponse{}, "Signed out").
		Response(http.StatusUnauthorized, server.ErrorResponse{}, "Missing or invalid token").
		Build()
}
