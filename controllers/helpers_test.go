package controller_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	controller "leadintake/controllers"
	"leadintake/services"
	"leadintake/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

const testPhone = "+12015550123"

type testEnv struct {
	app *fiber.App

	mu  sync.Mutex
	now time.Time

	tokens  *services.TokenAuthority
	leads   *store.MemoryLeadStore
	users   *store.MemoryUserDataStore
	classes *store.MemoryClassificationStore
	journal *store.MemorySubmissionStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		now:     time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		leads:   store.NewMemoryLeadStore(),
		users:   store.NewMemoryUserDataStore(),
		classes: store.NewMemoryClassificationStore(),
		journal: store.NewMemorySubmissionStore(),
	}
	env.tokens = services.NewTokenAuthority(store.NewMemoryTokenStore(), 20*time.Minute,
		services.WithTokenClock(env.clock))
	intake := services.NewOrchestrator(env.tokens, env.leads, env.users, env.classes,
		services.WithJournal(env.journal), services.WithClock(env.clock))

	log := quietLogger()
	ic := controller.NewIntakeController(intake, env.tokens, log)
	tc := controller.NewTokenController(env.tokens, "https://forms.example.com/intake", log)
	qc := controller.NewQueryController(env.leads, env.users, env.classes, env.journal, env.tokens, log)

	app := fiber.New()
	app.Get("/form/validate", ic.ValidateToken)
	app.Post("/form/submit", ic.Submit)
	app.Get("/form/check", ic.CheckExisting)
	app.Post("/tokens", tc.IssueToken)
	app.Get("/leads", qc.ListLeads)
	app.Get("/leads/:phone", qc.GetLead)
	app.Get("/user-data", qc.ListUserData)
	app.Get("/user-data/:phone", qc.GetUserData)
	app.Get("/classifications", qc.ListClassifications)
	app.Get("/classifications/:userId", qc.GetClassification)
	app.Get("/classifications/:userId/history", qc.ClassificationHistory)
	app.Get("/submissions", qc.ListSubmissions)
	env.app = app
	return env
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

func (e *testEnv) issue(t *testing.T) string {
	t.Helper()
	tok, err := e.tokens.Issue(context.Background(), testPhone)
	require.NoError(t, err)
	return tok.Token
}

func quietLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

// do sends a request to app and decodes the JSON response body.
func do(t *testing.T, app *fiber.App, method, target string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = strings.NewReader(string(raw))
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]interface{}{}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func data(t *testing.T, body map[string]interface{}) map[string]interface{} {
	t.Helper()
	d, ok := body["data"].(map[string]interface{})
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

func submitBody(token string) map[string]interface{} {
	return map[string]interface{}{
		"token": token,
		"formData": map[string]interface{}{
			"name":        "Ada Lovelace",
			"phoneNumber": testPhone,
			"email":       "ada@example.com",
			"bioData": map[string]interface{}{
				"age": 70, "gender": "female", "zipCode": "95814",
			},
			"medicareData": map[string]interface{}{
				"medicareNumber":    "1EG4-TE5-MK73",
				"medicarePlan":      "original",
				"hasColorblindness": true,
				"medicalHistory":    []string{"diabetes", "hypertension"},
			},
		},
	}
}

type stubIntake struct {
	err error
}

func (s stubIntake) Submit(ctx context.Context, token string, form services.FormData) (*services.SubmissionResult, error) {
	return nil, s.err
}

func (s stubIntake) CheckExisting(ctx context.Context, phone string) services.ExistingCheck {
	return services.ExistingCheck{}
}

type downPinger struct{}

func (downPinger) Ping(ctx context.Context) error { return errors.New("dial tcp: connection refused") }
