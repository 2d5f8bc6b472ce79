package http

import (
	"LinkSnap-Backend/internal/auth"
	"LinkSnap-Backend/internal/config"
	"LinkSnap-Backend/internal/domain"
	"LinkSnap-Backend/internal/geo"
	"LinkSnap-Backend/internal/ratelimit"
	"LinkSnap-Backend/internal/repository/memory"
	"LinkSnap-Backend/internal/service"
	"LinkSnap-Backend/pkg/useragent"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const iphoneUA = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_0 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.0 Mobile/15E148 Safari/604.1"

type testEnv struct {
	handler http.Handler
	store   *memory.MemStorage
	jwt     *auth.JWTService
}

type envOption func(*config.URLShortener, *Dependencies)

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()
	log := zap.NewNop()
	store := memory.New()

	cfg := &config.URLShortener{
		CodeLength:            6,
		MaxURLsPerUser:        100,
		LinkTTL:               30 * 24 * time.Hour,
		MaxAllocationAttempts: 10,
	}
	jwtService := auth.NewJWTService(&config.JWT{
		Secret:          "test-secret",
		AccessTokenTTL:  time.Hour,
		RefreshTokenTTL: 24 * time.Hour,
		Issuer:          "LinkSnap-Backend",
	})

	deps := Dependencies{
		Storage:        store,
		Auth:           auth.NewAuthHandlers(store, jwtService, auth.NewPasswordService(bcrypt.MinCost), log),
		JWT:            jwtService,
		AllowedOrigins: []string{"http://localhost:5173"},
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	deps.Shortener = service.NewURLShortener(store, cfg, log)
	deps.Redirects = service.NewRedirectService(store, useragent.NewBuiltinParser(log), geo.Static{}, nil, log)
	deps.Analytics = service.NewAnalyticsService(store, cfg.MaxURLsPerUser, log)

	return &testEnv{
		handler: NewServer(deps, log).SetupRoutes(),
		store:   store,
		jwt:     jwtService,
	}
}

func (e *testEnv) userToken(t *testing.T, email string) (*domain.User, string) {
	t.Helper()
	user := &domain.User{Email: email, Name: "Test", PasswordHash: "x"}
	require.NoError(t, e.store.CreateUser(context.Background(), user))
	tokens, err := e.jwt.IssueTokens(user.ID, user.Email)
	require.NoError(t, err)
	return user, tokens.AccessToken
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, "http://sho.rt"+path, reader)
	req.RemoteAddr = "203.0.113.7:5555"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) shorten(t *testing.T, token, target string) CreateLinkResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/url/shorten", token, CreateLinkRequest{OriginalURL: target})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[CreateLinkResponse](t, rec)
}

func TestScenario_CreateRedirectStats(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "owner@example.com")

	created := env.shorten(t, token, "https://example.com/some/long/path")
	assert.Len(t, created.ShortCode, 6)
	assert.Equal(t, "http://sho.rt/"+created.ShortCode, created.ShortURL)
	assert.Equal(t, int64(0), created.Clicks)

	rec := env.do(t, http.MethodGet, "/"+created.ShortCode, "", nil, "User-Agent", iphoneUA)
	require.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "https://example.com/some/long/path", rec.Header().Get("Location"))

	rec = env.do(t, http.MethodGet, "/api/url/"+created.ID.String()+"/stats", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[GetStatsResponse](t, rec)
	assert.Equal(t, int64(1), stats.URL.TotalClicks)
	assert.Equal(t, int64(1), stats.Stats.ClicksLast24Hours)
	require.Len(t, stats.Stats.DeviceStats, 1)
	assert.Equal(t, "Mobile", stats.Stats.DeviceStats[0].Key)
	assert.Empty(t, stats.Stats.TopReferrers)

	rec = env.do(t, http.MethodGet, "/api/analytics/"+created.ShortCode, token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	events := decode[CodeAnalyticsResponse](t, rec)
	require.Len(t, events.Analytics, 1)
	assert.Equal(t, "Direct", events.Analytics[0].Referrer)
	assert.Equal(t, "203.0.113.7", events.Analytics[0].IPAddress)
	assert.Equal(t, "Mobile", events.Analytics[0].DeviceType)
	assert.Equal(t, int64(1), events.Pagination.TotalClicks)

	rec = env.do(t, http.MethodGet, "/api/analytics/dashboard/summary", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dash := decode[DashboardResponse](t, rec)
	assert.Equal(t, 1, dash.Summary.TotalURLs)
	assert.Equal(t, int64(1), dash.Summary.TotalClicks)
	assert.Equal(t, int64(1), dash.Summary.RecentClicks)
	assert.Equal(t, 99, dash.Summary.URLsRemaining)
	require.Len(t, dash.TopURLs, 1)
	assert.Equal(t, created.ShortCode, dash.TopURLs[0].ShortCode)
}

func TestRedirect_ViaAPIPathAndForwardedIP(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "owner@example.com")
	created := env.shorten(t, token, "https://example.com/")

	rec := env.do(t, http.MethodGet, "/api/url/"+created.ShortCode, "", nil,
		"X-Forwarded-For", "198.51.100.1, 10.0.0.1",
		"Referer", "https://news.example.org/",
	)
	require.Equal(t, http.StatusFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/analytics/"+created.ShortCode, token, nil)
	events := decode[CodeAnalyticsResponse](t, rec)
	require.Len(t, events.Analytics, 1)
	assert.Equal(t, "198.51.100.1", events.Analytics[0].IPAddress)
	assert.Equal(t, "https://news.example.org/", events.Analytics[0].Referrer)
}

func TestRedirect_UnknownAndExpired(t *testing.T) {
	env := newTestEnv(t)
	user, _ := env.userToken(t, "owner@example.com")

	rec := env.do(t, http.MethodGet, "/nope42", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "URL not found", decode[ErrorResponse](t, rec).Message)

	expired := &domain.Link{
		ID:          uuid.New(),
		UserID:      user.ID,
		OriginalURL: "https://example.com/old",
		ShortCode:   "Old123",
		ShortURL:    "http://sho.rt/Old123",
		IsActive:    true,
		CreatedAt:   time.Now().Add(-48 * time.Hour),
		ExpiresAt:   time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.store.CreateLink(context.Background(), expired, 100))

	rec = env.do(t, http.MethodGet, "/Old123", "", nil)
	assert.Equal(t, http.StatusGone, rec.Code)
	assert.Equal(t, "This URL has expired", decode[ErrorResponse](t, rec).Message)

	// The first access deactivated it.
	rec = env.do(t, http.MethodGet, "/Old123", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreate_Validation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "owner@example.com")

	tests := []struct {
		name    string
		url     string
		message string
	}{
		{name: "empty", url: "", message: "Please provide a URL"},
		{name: "ftp", url: "ftp://example.com/file", message: "Please provide a valid URL with http/https"},
		{name: "garbage", url: "not a url", message: "Please provide a valid URL with http/https"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/api/url/shorten", token, CreateLinkRequest{OriginalURL: tt.url})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.message, decode[ErrorResponse](t, rec).Message)
		})
	}
}

func TestCreate_QuotaReached(t *testing.T) {
	env := newTestEnv(t, func(cfg *config.URLShortener, _ *Dependencies) {
		cfg.MaxURLsPerUser = 1
	})
	_, token := env.userToken(t, "owner@example.com")

	env.shorten(t, token, "https://example.com/1")

	rec := env.do(t, http.MethodPost, "/api/url/shorten", token, CreateLinkRequest{OriginalURL: "https://example.com/2"})
	require.Equal(t, http.StatusForbidden, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.True(t, body.UpgradeRequired)
	assert.Equal(t, "URL limit reached. Maximum 1 URLs allowed for free tier.", body.Message)
}

func TestOwnershipAndDelete(t *testing.T) {
	env := newTestEnv(t)
	_, ownerToken := env.userToken(t, "owner@example.com")
	_, otherToken := env.userToken(t, "other@example.com")

	created := env.shorten(t, ownerToken, "https://example.com/private")
	statsPath := "/api/url/" + created.ID.String() + "/stats"

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, statsPath, otherToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/analytics/"+created.ShortCode, otherToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/api/url/"+created.ID.String(), otherToken, nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/api/url/not-a-uuid/stats", ownerToken, nil).Code)

	rec := env.do(t, http.MethodDelete, "/api/url/"+created.ID.String(), ownerToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "URL deleted successfully", decode[MessageResponse](t, rec).Message)

	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodGet, "/"+created.ShortCode, "", nil).Code)

	rec = env.do(t, http.MethodGet, "/api/analytics/dashboard/summary", ownerToken, nil)
	assert.Equal(t, 100, decode[DashboardResponse](t, rec).Summary.URLsRemaining)
}

func TestListLinks_PaginationAndTruncation(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "owner@example.com")

	long := "https://example.com/" + strings.Repeat("a", 80)
	for i := 0; i < 3; i++ {
		env.shorten(t, token, long)
	}

	rec := env.do(t, http.MethodGet, "/api/url/myurls?page=2&limit=2", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decode[ListLinksResponse](t, rec)

	require.Len(t, list.URLs, 1)
	assert.Equal(t, 2, list.Pagination.CurrentPage)
	assert.Equal(t, 2, list.Pagination.TotalPages)
	assert.Equal(t, int64(3), list.Pagination.TotalURLs)
	assert.False(t, list.Pagination.HasNextPage)
	assert.True(t, list.Pagination.HasPrevPage)
	assert.Equal(t, long[:50]+"...", list.URLs[0].OriginalURL)
	assert.Equal(t, long, list.URLs[0].FullOriginalURL)
}

func TestQRCode(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.userToken(t, "owner@example.com")
	created := env.shorten(t, token, "https://example.com/")

	rec := env.do(t, http.MethodGet, "/api/url/"+created.ID.String()+"/qr", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.HasPrefix(decode[QRCodeResponse](t, rec).QRCode, "data:image/png;base64,"))
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/url/myurls", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized, no token", decode[ErrorResponse](t, rec).Message)

	rec = env.do(t, http.MethodGet, "/api/analytics/dashboard/summary", "bogus", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not authorized", decode[ErrorResponse](t, rec).Message)
}

func TestRegisterThroughRouter(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", "", auth.RegisterRequest{
		Name: "Ann", Email: "ann@example.com", Password: "secret1",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	registered := decode[auth.AuthResponse](t, rec)

	env.shorten(t, registered.Token, "https://example.com/")

	rec = env.do(t, http.MethodGet, "/api/auth/profile", registered.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[auth.UserInfo](t, rec).URLsCreated)
}

func TestRateLimits(t *testing.T) {
	env := newTestEnv(t, func(_ *config.URLShortener, deps *Dependencies) {
		deps.CreateURLLimiter = ratelimit.NewMemory(1, 15*time.Minute)
		deps.AuthLimiter = ratelimit.NewMemory(1, time.Hour)
	})
	_, token := env.userToken(t, "owner@example.com")

	env.shorten(t, token, "https://example.com/1")
	rec := env.do(t, http.MethodPost, "/api/url/shorten", token, CreateLinkRequest{OriginalURL: "https://example.com/2"})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, createURLLimitMessage, decode[ErrorResponse](t, rec).Message)
	assert.Equal(t, "1", rec.Header().Get("RateLimit-Limit"))

	// Other routes are not limited.
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/url/myurls", token, nil).Code)

	login := auth.LoginRequest{Email: "owner@example.com", Password: "wrong-pass"}
	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodPost, "/api/auth/login", "", login).Code)
	rec = env.do(t, http.MethodPost, "/api/auth/login", "", login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, authLimitMessage, decode[ErrorResponse](t, rec).Message)
}

func TestRouterMisc(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[HealthResponse](t, rec)
	assert.Equal(t, "OK", health.Status)
	assert.Equal(t, "URL Shortener API", health.Service)

	rec = env.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/unknown/route/here", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Route not found", decode[ErrorResponse](t, rec).Message)

	rec = env.do(t, http.MethodOptions, "/api/url/shorten", "", nil,
		"Origin", "http://localhost:5173",
		"Access-Control-Request-Method", "POST",
	)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	rec = env.do(t, http.MethodGet, "/health", "", nil, "Origin", "http://evil.example")
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab...", truncate("abcdef", 2))

	req := httptest.NewRequest(http.MethodGet, "http://sho.rt/x", nil)
	assert.Equal(t, "http://sho.rt", requestBase(req))
	req.Header.Set("X-Forwarded-Proto", "https")
	assert.Equal(t, "https://sho.rt", requestBase(req))

	req.RemoteAddr = "192.0.2.1:1234"
	assert.Equal(t, "192.0.2.1", extractIPAddress(req))
	req.Header.Set("X-Real-IP", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", extractIPAddress(req))
}
