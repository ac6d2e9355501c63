package routes_test

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	controller "leadintake/controllers"
	"leadintake/routes"
	"leadintake/services"
	"leadintake/store"
	"leadintake/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const secret = "routes-secret"

func newApp(t *testing.T) *fiber.App {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	entry := logrus.NewEntry(log)

	tokenStore := store.NewMemoryTokenStore()
	leads := store.NewMemoryLeadStore()
	users := store.NewMemoryUserDataStore()
	classes := store.NewMemoryClassificationStore()
	journal := store.NewMemorySubmissionStore()
	tokens := services.NewTokenAuthority(tokenStore, 0)
	intake := services.NewOrchestrator(tokens, leads, users, classes, services.WithJournal(journal))

	app := fiber.New()
	routes.SetupRoutes(app, routes.Handlers{
		Intake: controller.NewIntakeController(intake, tokens, entry),
		Tokens: controller.NewTokenController(tokens, "https://forms.example.com", entry),
		Query:  controller.NewQueryController(leads, users, classes, journal, tokens, entry),
		Health: controller.NewHealthController([]controller.HealthCheck{{Name: "token_store", Pinger: tokenStore}}, "test", entry),
	}, routes.Config{JWTSecret: secret})
	return app
}

func bearer(t *testing.T, scopes ...string) string {
	t.Helper()
	tok, err := utils.GenerateServiceToken(secret, "test", scopes, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestRouteAuthorization(t *testing.T) {
	app := newApp(t)
	body := `{"phoneNumber":"+12015550123"}`

	cases := []struct {
		name   string
		method string
		path   string
		auth   string
		status int
	}{
		{"health is public", http.MethodGet, "/health", "", fiber.StatusOK},
		{"form is public", http.MethodGet, "/form/validate?token=x", "", fiber.StatusOK},
		{"reads need a token", http.MethodGet, "/api/v1/leads", "", fiber.StatusUnauthorized},
		{"reads need read scope", http.MethodGet, "/api/v1/leads", bearer(t, utils.ScopeIssueTokens), fiber.StatusForbidden},
		{"reads allowed", http.MethodGet, "/api/v1/submissions", bearer(t, utils.ScopeReadRecords), fiber.StatusOK},
		{"issue needs issue scope", http.MethodPost, "/api/v1/tokens", bearer(t, utils.ScopeReadRecords), fiber.StatusForbidden},
		{"issue allowed", http.MethodPost, "/api/v1/tokens", bearer(t, utils.ScopeIssueTokens), fiber.StatusCreated},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var reader io.Reader
			if tc.method == http.MethodPost {
				reader = bytes.NewBufferString(body)
			}
			req := httptest.NewRequest(tc.method, tc.path, reader)
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			if tc.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.auth)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, tc.status, resp.StatusCode)
		})
	}
}
