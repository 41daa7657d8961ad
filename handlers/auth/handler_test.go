package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	jwtmw "github.com/tech-arch1tect/ledgersite/middleware/jwt"
	"github.com/tech-arch1tect/ledgersite/middleware/ratelimit"
	"github.com/tech-arch1tect/ledgersite/openapi"
	"github.com/tech-arch1tect/ledgersite/server"
	"github.com/tech-arch1tect/ledgersite/services/admins"
	"github.com/tech-arch1tect/ledgersite/services/authcode"
	"github.com/tech-arch1tect/ledgersite/services/jwt"
	"github.com/tech-arch1tect/ledgersite/services/revocation"
	"github.com/tech-arch1tect/ledgersite/testutils"
	"go.uber.org/zap/zapcore"
)

type mockAuthService struct {
	mock.Mock
}

func (m *mockAuthService) SendAuthCode(ctx context.Context, email string, channel authcode.Channel) authcode.SendResult {
	args := m.Called(ctx, email, channel)
	return args.Get(0).(authcode.SendResult)
}

func (m *mockAuthService) ValidateAuthCode(ctx context.Context, email, code string) authcode.ValidateResult {
	args := m.Called(ctx, email, code)
	return args.Get(0).(authcode.ValidateResult)
}

type mockRevoker struct {
	mock.Mock
}

func (m *mockRevoker) RevokeToken(ctx context.Context, jti string, expiresAt time.Time) error {
	args := m.Called(ctx, jti, expiresAt)
	return args.Error(0)
}

const firefoxUA = "Mozilla/5.0 (X11; Linux x86_64; rv:128.0) Gecko/20100101 Firefox/128.0"

type testServer struct {
	srv    *server.Server
	signer *jwt.Service
}

func newTestServer(t *testing.T, service AuthService, revoker Revoker, limiter echo.MiddlewareFunc) *testServer {
	t.Helper()

	cfg := testutils.GetTestConfig()
	logger, _ := testutils.NewObservedLogger(zapcore.DebugLevel)
	signer := jwt.NewService(&cfg.JWT, nil)
	if r, ok := revoker.(*revocation.Service); ok {
		signer.SetRevocationChecker(r)
	}

	srv := server.New(cfg, logger)
	NewHandler(service, revoker, logger).RegisterRoutes(srv.Group(Prefix), jwtmw.RequireJWT(signer), limiter)
	return &testServer{srv: srv, signer: signer}
}

func (ts *testServer) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("User-Agent", firefoxUA)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	ts.srv.Echo().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHandler_SendCode(t *testing.T) {
	tests := []struct {
		name       string
		result     authcode.SendResult
		wantStatus int
		wantEmail  string
	}{
		{"sent", authcode.SendResult{Success: true, Message: "sent"}, http.StatusOK, "admin@test.com"},
		{"unknown identity", authcode.SendResult{Reason: authcode.ReasonUnknownIdentity, Message: "nope"}, http.StatusOK, "admin@test.com"},
		{"delivery failed", authcode.SendResult{Reason: authcode.ReasonDeliveryFailed, Message: "mail down"}, http.StatusOK, "admin@test.com"},
		{"invalid email", authcode.SendResult{Reason: authcode.ReasonInvalidEmail, Message: "bad"}, http.StatusBadRequest, ""},
		{"invalid channel", authcode.SendResult{Reason: authcode.ReasonInvalidChannel, Message: "bad"}, http.StatusBadRequest, ""},
		{"channel unsupported", authcode.SendResult{Reason: authcode.ReasonChannelUnsupported, Message: "sms"}, http.StatusBadRequest, ""},
		{"internal", authcode.SendResult{Reason: authcode.ReasonInternal, Message: "oops"}, http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := &mockAuthService{}
			service.On("SendAuthCode", mock.Anything, " Admin@Test.com ", authcode.Channel("")).Return(tt.result).Once()
			ts := newTestServer(t, service, nil, nil)

			rec := ts.request(http.MethodPost, "/auth/send-code", `{"email":" Admin@Test.com "}`, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decode[SendCodeResponse](t, rec)
			assert.Equal(t, tt.result.Success, resp.Success)
			assert.Equal(t, tt.result.Message, resp.Message)
			assert.Equal(t, tt.wantEmail, resp.Email)
			service.AssertExpectations(t)
		})
	}
}

func TestHandler_SendCode_RateLimited(t *testing.T) {
	service := &mockAuthService{}
	service.On("SendAuthCode", mock.Anything, "admin@test.com", authcode.ChannelEmail).
		Return(authcode.SendResult{Reason: authcode.ReasonRateLimited, Message: "slow down", RetryAfter: 4*time.Minute + 500*time.Millisecond}).Once()
	ts := newTestServer(t, service, nil, nil)

	rec := ts.request(http.MethodPost, "/auth/send-code", `{"email":"admin@test.com","type":"email"}`, "")

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "241", rec.Header().Get("Retry-After"))
	resp := decode[SendCodeResponse](t, rec)
	assert.False(t, resp.Success)
	assert.Equal(t, 241, resp.RetryAfter)
	assert.Empty(t, resp.Email)
}

func TestHandler_SendCode_BadRequest(t *testing.T) {
	service := &mockAuthService{}
	ts := newTestServer(t, service, nil, nil)

	t.Run("missing email", func(t *testing.T) {
		rec := ts.request(http.MethodPost, "/auth/send-code", `{}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "email is required.", decode[server.ErrorResponse](t, rec).Message)
	})

	t.Run("malformed json", func(t *testing.T) {
		rec := ts.request(http.MethodPost, "/auth/send-code", `{"email":`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Invalid request body.", decode[server.ErrorResponse](t, rec).Message)
	})

	service.AssertNotCalled(t, "SendAuthCode", mock.Anything, mock.Anything, mock.Anything)
}

func TestHandler_VerifyCode(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		expires := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
		service := &mockAuthService{}
		service.On("ValidateAuthCode", mock.Anything, "admin@test.com", "482913").Return(authcode.ValidateResult{
			Success:   true,
			Message:   "Authentication successful.",
			Token:     "signed.jwt.token",
			ExpiresAt: expires,
			User:      &authcode.User{ID: 3, Email: "admin@test.com", Name: "Avery Ledger"},
		}).Once()
		ts := newTestServer(t, service, nil, nil)

		rec := ts.request(http.MethodPost, "/auth/verify-code", `{"email":"admin@test.com","code":"482913"}`, "")

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decode[VerifyCodeResponse](t, rec)
		assert.True(t, resp.Success)
		assert.Equal(t, "signed.jwt.token", resp.Token)
		require.NotNil(t, resp.ExpiresAt)
		assert.True(t, expires.Equal(*resp.ExpiresAt))
		require.NotNil(t, resp.User)
		assert.Equal(t, uint(3), resp.User.ID)
	})

	failures := []struct {
		reason authcode.Reason
		status int
	}{
		{authcode.ReasonInvalidFormat, http.StatusBadRequest},
		{authcode.ReasonInvalidEmail, http.StatusBadRequest},
		{authcode.ReasonInvalidCode, http.StatusUnauthorized},
		{authcode.ReasonExpired, http.StatusUnauthorized},
		{authcode.ReasonAlreadyUsed, http.StatusUnauthorized},
		{authcode.ReasonNoCode, http.StatusUnauthorized},
		{authcode.ReasonNotFound, http.StatusUnauthorized},
		{authcode.ReasonInternal, http.StatusInternalServerError},
	}

	for _, tt := range failures {
		t.Run(string(tt.reason), func(t *testing.T) {
			service := &mockAuthService{}
			service.On("ValidateAuthCode", mock.Anything, "admin@test.com", "000000").
				Return(authcode.ValidateResult{Reason: tt.reason, Message: "rejected"}).Once()
			ts := newTestServer(t, service, nil, nil)

			rec := ts.request(http.MethodPost, "/auth/verify-code", `{"email":"admin@test.com","code":"000000"}`, "")

			assert.Equal(t, tt.status, rec.Code)
			resp := decode[VerifyCodeResponse](t, rec)
			assert.False(t, resp.Success)
			assert.Equal(t, "rejected", resp.Message)
			assert.Empty(t, resp.Token)
			assert.Nil(t, resp.User)
		})
	}

	t.Run("missing code", func(t *testing.T) {
		service := &mockAuthService{}
		ts := newTestServer(t, service, nil, nil)

		rec := ts.request(http.MethodPost, "/auth/verify-code", `{"email":"admin@test.com"}`, "")

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "code is required.", decode[server.ErrorResponse](t, rec).Message)
		service.AssertNotCalled(t, "ValidateAuthCode", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestHandler_MeAndSignOut(t *testing.T) {
	t.Run("me requires a token", func(t *testing.T) {
		ts := newTestServer(t, &mockAuthService{}, nil, nil)

		rec := ts.request(http.MethodGet, "/auth/me", "", "")

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("me returns claims", func(t *testing.T) {
		ts := newTestServer(t, &mockAuthService{}, nil, nil)
		token, err := ts.signer.GenerateAdminToken(9, "admin@test.com", "Avery Ledger", time.Hour)
		require.NoError(t, err)

		rec := ts.request(http.MethodGet, "/auth/me", "", token)

		assert.Equal(t, http.StatusOK, rec.Code)
		resp := decode[MeResponse](t, rec)
		assert.Equal(t, uint(9), resp.ID)
		assert.Equal(t, "Avery Ledger", resp.Name)
		assert.WithinDuration(t, time.Now().Add(time.Hour), resp.ExpiresAt, 5*time.Second)
	})

	t.Run("sign-out revokes the jti", func(t *testing.T) {
		revoker := &mockRevoker{}
		ts := newTestServer(t, &mockAuthService{}, revoker, nil)
		token, err := ts.signer.GenerateAdminToken(9, "admin@test.com", "Avery Ledger", time.Hour)
		require.NoError(t, err)
		claims, err := ts.signer.ValidateToken(token)
		require.NoError(t, err)
		revoker.On("RevokeToken", mock.Anything, claims.ID, claims.ExpiresAt.Time).Return(nil).Once()

		rec := ts.request(http.MethodPost, "/auth/sign-out", "", token)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, decode[SignOutResponse](t, rec).Success)
		revoker.AssertExpectations(t)
	})

	t.Run("sign-out revocation failure", func(t *testing.T) {
		revoker := &mockRevoker{}
		revoker.On("RevokeToken", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("db down")).Once()
		ts := newTestServer(t, &mockAuthService{}, revoker, nil)
		token, err := ts.signer.GenerateAdminToken(9, "admin@test.com", "Avery Ledger", time.Hour)
		require.NoError(t, err)

		rec := ts.request(http.MethodPost, "/auth/sign-out", "", token)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("sign-out without revocation", func(t *testing.T) {
		ts := newTestServer(t, &mockAuthService{}, nil, nil)
		token, err := ts.signer.GenerateAdminToken(9, "admin@test.com", "Avery Ledger", time.Hour)
		require.NoError(t, err)

		rec := ts.request(http.MethodPost, "/auth/sign-out", "", token)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, decode[SignOutResponse](t, rec).Message, "Discard the token")
	})
}

func TestHandler_IPRateLimit(t *testing.T) {
	service := &mockAuthService{}
	service.On("SendAuthCode", mock.Anything, mock.Anything, mock.Anything).
		Return(authcode.SendResult{Success: true, Message: "sent"})
	limiter := ratelimit.Middleware(&ratelimit.Config{
		Store:        ratelimit.NewMemoryStore(),
		Rate:         2,
		Period:       time.Minute,
		KeyGenerator: ratelimit.RouteKeyGenerator,
	})
	ts := newTestServer(t, service, nil, limiter)

	for i := 0; i < 2; i++ {
		rec := ts.request(http.MethodPost, "/auth/send-code", `{"email":"admin@test.com"}`, "")
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := ts.request(http.MethodPost, "/auth/send-code", `{"email":"admin@test.com"}`, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	service.AssertNumberOfCalls(t, "SendAuthCode", 2)
}

func TestHandler_EndToEnd(t *testing.T) {
	cfg := testutils.GetTestConfig()
	db := testutils.SetupTestDB(t, &admins.Admin{}, &authcode.VerificationCode{}, &revocation.RevokedToken{})

	directory := admins.NewDirectory(db, nil)
	_, err := directory.EnsureSeed(context.Background(), testutils.TestAdmin.Email, testutils.TestAdmin.Name)
	require.NoError(t, err)

	revoker := revocation.NewService(revocation.NewGormStore(db), nil)
	mailer := &testutils.RecordingMailer{}
	signer := jwt.NewService(&cfg.JWT, nil)
	service := authcode.NewService(cfg.AuthCode, authcode.NewGormStore(db), directory, signer, mailer, nil)
	ts := newTestServer(t, service, revoker, nil)

	rec := ts.request(http.MethodPost, "/auth/send-code", `{"email":"admin@test.com"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[SendCodeResponse](t, rec).Success)
	code := mailer.Last().Code
	require.Len(t, code, 6)

	rec = ts.request(http.MethodPost, "/auth/send-code", `{"email":"stranger@test.com"}`, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stranger@test.com", decode[SendCodeResponse](t, rec).Email)

	body := `{"email":"admin@test.com","code":"` + code + `"}`
	rec = ts.request(http.MethodPost, "/auth/verify-code", body, "")
	require.Equal(t, http.StatusOK, rec.Code)
	token := decode[VerifyCodeResponse](t, rec).Token
	require.NotEmpty(t, token)

	rec = ts.request(http.MethodPost, "/auth/verify-code", body, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = ts.request(http.MethodGet, "/auth/me", "", token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@test.com", decode[MeResponse](t, rec).Email)

	rec = ts.request(http.MethodPost, "/auth/sign-out", "", token)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.request(http.MethodGet, "/auth/me", "", token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "JWT token has been revoked", decode[server.ErrorResponse](t, rec).Message)
}

func TestDocument(t *testing.T) {
	doc := openapi.New("Ledger Admin", "test")

	Document(doc)

	require.NoError(t, doc.Validate(context.Background()))
	paths := doc.Spec().Paths
	require.NotNil(t, paths.Find("/auth/send-code"))
	assert.NotNil(t, paths.Find("/auth/send-code").Post)
	assert.NotNil(t, paths.Find("/auth/verify-code").Post)
	assert.NotNil(t, paths.Find("/auth/me").Get)
	assert.NotNil(t, paths.Find("/auth/sign-out").Post)
	assert.Contains(t, doc.Spec().Components.SecuritySchemes, SecurityScheme)
}

func TestStatusMapping(t *testing.T) {
	assert.Equal(t, http.StatusOK, sendStatus(authcode.ReasonNone))
	assert.Equal(t, http.StatusTooManyRequests, sendStatus(authcode.ReasonRateLimited))
	assert.Equal(t, http.StatusInternalServerError, verifyStatus(authcode.Reason("something_new")))
	assert.Equal(t, 1, retryAfterSeconds(0))
	assert.Equal(t, 300, retryAfterSeconds(5*time.Minute))
}
