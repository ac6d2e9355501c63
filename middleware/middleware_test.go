package middleware_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadintake/middleware"
	"leadintake/utils"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

func send(t *testing.T, app *fiber.App, req *http.Request) *http.Response {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestCORSPreflight(t *testing.T) {
	app := fiber.New()
	app.Use(middleware.CORS())
	app.Post("/form/submit", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	req := httptest.NewRequest(http.MethodOptions, "/form/submit", nil)
	req.Header.Set(fiber.HeaderOrigin, "http://localhost:3000")
	resp := send(t, app, req)
	require.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	require.Equal(t, "http://localhost:3000", resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
	require.Equal(t, "3600", resp.Header.Get(fiber.HeaderAccessControlMaxAge))
	require.Contains(t, resp.Header.Get(fiber.HeaderAccessControlAllowMethods), "POST")

	req = httptest.NewRequest(http.MethodPost, "/form/submit", nil)
	req.Header.Set(fiber.HeaderOrigin, "https://evil.example")
	resp = send(t, app, req)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	require.Empty(t, resp.Header.Get(fiber.HeaderAccessControlAllowOrigin))
}

func TestServiceAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/records", middleware.ServiceAuth(secret, utils.ScopeReadRecords), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("service").(string))
	})

	reader, err := utils.GenerateServiceToken(secret, "dashboard", []string{utils.ScopeReadRecords}, time.Hour)
	require.NoError(t, err)
	issuer, err := utils.GenerateServiceToken(secret, "messaging", []string{utils.ScopeIssueTokens}, time.Hour)
	require.NoError(t, err)
	forged, err := utils.GenerateServiceToken("other-secret", "dashboard", []string{utils.ScopeReadRecords}, time.Hour)
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		status int
	}{
		{"no header", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Token " + reader, fiber.StatusUnauthorized},
		{"forged", "Bearer " + forged, fiber.StatusUnauthorized},
		{"missing scope", "Bearer " + issuer, fiber.StatusForbidden},
		{"allowed", "Bearer " + reader, fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/records", nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp := send(t, app, req)
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

func TestIssueRateLimiterCountsPerPhone(t *testing.T) {
	mr, client := newRedis(t)

	app := fiber.New()
	app.Post("/tokens", middleware.IssueRateLimiter(middleware.IssueRateLimitConfig{
		Max:                2,
		Window:             10 * time.Minute,
		DefaultCountryCode: "1",
		Storage:            middleware.NewRedisStorage(client),
	}), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusCreated) })

	post := func(phone string) int {
		req := httptest.NewRequest(http.MethodPost, "/tokens", bytes.NewBufferString(`{"phoneNumber":"`+phone+`"}`))
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
		return send(t, app, req).StatusCode
	}

	// differently formatted numbers share one counter
	require.Equal(t, fiber.StatusCreated, post("+12015550123"))
	require.Equal(t, fiber.StatusCreated, post("(201) 555-0123"))
	require.Equal(t, fiber.StatusTooManyRequests, post("201.555.0123"))

	require.Equal(t, fiber.StatusCreated, post("+12015550111"))
	require.True(t, mr.Exists("ratelimit:issue:+12015550123"))
}

func TestRedisStorage(t *testing.T) {
	mr, client := newRedis(t)
	s := middleware.NewRedisStorage(client)

	val, err := s.Get("missing")
	require.NoError(t, err)
	require.Nil(t, val)

	require.NoError(t, s.Set("a", []byte("1"), time.Minute))
	require.NoError(t, s.Set("empty", nil, time.Minute))
	val, err = s.Get("a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), val)
	require.False(t, mr.Exists("ratelimit:empty"))

	require.NoError(t, mr.Set("form_token:abc", "kept"))
	require.NoError(t, s.Reset())
	require.False(t, mr.Exists("ratelimit:a"))
	require.True(t, mr.Exists("form_token:abc"))

	require.NoError(t, s.Set("b", []byte("2"), time.Minute))
	require.NoError(t, s.Delete("b"))
	val, err = s.Get("b")
	require.NoError(t, err)
	require.Nil(t, val)
}
