package services_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"leadintake/models"
	"leadintake/services"
	"leadintake/store"
)

const testPhone = "+12015550123"

var errBackendDown = errors.New("connection refused")

type harness struct {
	mu  sync.Mutex
	now time.Time

	tokenStore store.TokenStore
	leads      store.LeadStore
	users      store.UserDataStore
	classes    store.ClassificationStore
	journal    *store.MemorySubmissionStore
	noJournal  bool

	tokens *services.TokenAuthority
	intake *services.Orchestrator
}

func newHarness(t *testing.T, wrap ...func(h *harness)) *harness {
	t.Helper()
	h := &harness{
		now:        time.Date(2026, 10, 15, 9, 0, 0, 0, time.UTC),
		tokenStore: store.NewMemoryTokenStore(),
		leads:      store.NewMemoryLeadStore(),
		users:      store.NewMemoryUserDataStore(),
		classes:    store.NewMemoryClassificationStore(),
		journal:    store.NewMemorySubmissionStore(),
	}
	for _, w := range wrap {
		w(h)
	}
	h.tokens = services.NewTokenAuthority(h.tokenStore, 20*time.Minute, services.WithTokenClock(h.clock))
	opts := []services.OrchestratorOption{services.WithClock(h.clock)}
	if !h.noJournal {
		opts = append(opts, services.WithJournal(h.journal))
	}
	h.intake = services.NewOrchestrator(h.tokens, h.leads, h.users, h.classes, opts...)
	return h
}

func (h *harness) clock() time.Time {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.now
}

func (h *harness) advance(d time.Duration) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.now = h.now.Add(d)
}

func (h *harness) issue(t *testing.T, phone string) string {
	t.Helper()
	tok, err := h.tokens.Issue(context.Background(), phone)
	require.NoError(t, err)
	return tok.Token
}

func (h *harness) leadCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := h.leads.List(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	return total
}

func (h *harness) userCount(t *testing.T) int64 {
	t.Helper()
	_, total, err := h.users.List(context.Background(), store.ListOptions{})
	require.NoError(t, err)
	return total
}

func requireSagaError(t *testing.T, err error, kind services.Kind, code services.Code) *services.Error {
	t.Helper()
	var se *services.Error
	require.ErrorAs(t, err, &se)
	require.Equal(t, kind, se.Kind, "error: %v", err)
	require.Equal(t, code, se.Code, "error: %v", err)
	return se
}

// completeForm answers every required question the way a decoded JSON body would.
func completeForm() services.FormData {
	return services.FormData{
		Name:        "Ada Lovelace",
		PhoneNumber: testPhone,
		Email:       "ada@example.com",
		City:        "Sacramento",
		BioData: map[string]interface{}{
			"age":     float64(70),
			"gender":  "female",
			"zipCode": "95814",
		},
		MedicareData: map[string]interface{}{
			"medicareNumber":    "1EG4-TE5-MK73",
			"medicarePlan":      "original",
			"hasColorblindness": false,
			"medicalHistory":    []interface{}{},
		},
	}
}

type failingLeads struct {
	store.LeadStore
	err error
}

func (f *failingLeads) Upsert(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	return nil, f.err
}

func (f *failingLeads) GetByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	return nil, f.err
}

type failingUsers struct {
	store.UserDataStore
	err error
}

func (f *failingUsers) Upsert(ctx context.Context, data *models.UserData) (*models.UserData, error) {
	return nil, f.err
}

// flakyClassifications fails writes while fail is set.
type flakyClassifications struct {
	store.ClassificationStore
	mu   sync.Mutex
	fail bool
}

func (f *flakyClassifications) setFail(v bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fail = v
}

func (f *flakyClassifications) Upsert(ctx context.Context, c *models.Classification) (*models.Classification, error) {
	f.mu.Lock()
	fail := f.fail
	f.mu.Unlock()
	if fail {
		return nil, errBackendDown
	}
	return f.ClassificationStore.Upsert(ctx, c)
}

type downTokens struct{}

func (downTokens) Ping(ctx context.Context) error { return errBackendDown }

func (downTokens) Save(ctx context.Context, t *models.FormToken) error { return errBackendDown }

func (downTokens) Get(ctx context.Context, token string) (*models.FormToken, error) {
	return nil, errBackendDown
}

func (downTokens) Consume(ctx context.Context, token string, at time.Time) (*models.FormToken, error) {
	return nil, errBackendDown
}

// toggleLeads fails lead writes while fail is set.
type toggleLeads struct {
	store.LeadStore
	mu   sync.Mutex
	fail bool
}

func (l *toggleLeads) setFail(v bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = v
}

func (l *toggleLeads) Upsert(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	l.mu.Lock()
	fail := l.fail
	l.mu.Unlock()
	if fail {
		return nil, errBackendDown
	}
	return l.LeadStore.Upsert(ctx, lead)
}
