package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"leadintake/models"

	"gorm.io/datatypes"
)

// The memory stores back local runs (STORE_BACKEND=memory) and tests.

type MemoryTokenStore struct {
	mu     sync.Mutex
	tokens map[string]models.FormToken
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{tokens: make(map[string]models.FormToken)}
}

func (s *MemoryTokenStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryTokenStore) Save(ctx context.Context, t *models.FormToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tokens[t.Token]; exists {
		return ErrConflict
	}
	s.tokens[t.Token] = *t
	return nil
}

func (s *MemoryTokenStore) Get(ctx context.Context, token string) (*models.FormToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	if !ok {
		return nil, ErrNotFound
	}
	return &t, nil
}

func (s *MemoryTokenStore) Consume(ctx context.Context, token string, at time.Time) (*models.FormToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tokens[token]
	switch {
	case !ok:
		return nil, ErrNotFound
	case t.Consumed:
		return nil, ErrTokenConsumed
	case t.Expired(at):
		return nil, ErrTokenExpired
	}
	t.Consumed = true
	t.ConsumedAt = &at
	s.tokens[token] = t
	return &t, nil
}

type MemoryLeadStore struct {
	mu    sync.RWMutex
	leads map[string]models.Lead
	now   func() time.Time
}

func NewMemoryLeadStore() *MemoryLeadStore {
	return &MemoryLeadStore{leads: make(map[string]models.Lead), now: time.Now}
}

func (s *MemoryLeadStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryLeadStore) GetByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.leads[phone]
	if !ok {
		return nil, ErrNotFound
	}
	return &l, nil
}

func (s *MemoryLeadStore) Upsert(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	existing, ok := s.leads[lead.PhoneNumber]
	if !ok {
		l := *lead
		l.CreatedAt, l.UpdatedAt = now, now
		s.leads[l.PhoneNumber] = l
		return &l, nil
	}
	existing.Name = lead.Name
	if lead.Email != "" {
		existing.Email = lead.Email
	}
	if lead.City != "" {
		existing.City = lead.City
	}
	existing.UpdatedAt = now
	s.leads[existing.PhoneNumber] = existing
	return &existing, nil
}

func (s *MemoryLeadStore) List(ctx context.Context, opts ListOptions) ([]models.Lead, int64, error) {
	s.mu.RLock()
	out := make([]models.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, opts), int64(len(out)), nil
}

type MemoryUserDataStore struct {
	mu    sync.RWMutex
	users map[string]models.UserData
	now   func() time.Time
}

func NewMemoryUserDataStore() *MemoryUserDataStore {
	return &MemoryUserDataStore{users: make(map[string]models.UserData), now: time.Now}
}

func (s *MemoryUserDataStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryUserDataStore) GetByPhone(ctx context.Context, phone string) (*models.UserData, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[phone]
	if !ok {
		return nil, ErrNotFound
	}
	u = cloneUserData(u)
	return &u, nil
}

func (s *MemoryUserDataStore) Upsert(ctx context.Context, data *models.UserData) (*models.UserData, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	existing, ok := s.users[data.PhoneNumber]
	u := cloneUserData(*data)
	switch {
	case data.Version == 0 && ok:
		return nil, ErrConflict
	case data.Version == 0:
		u.CreatedAt = now
	case !ok || existing.Version != data.Version:
		return nil, ErrConflict
	default:
		u.UserID = existing.UserID
		u.CreatedAt = existing.CreatedAt
	}
	u.Version = data.Version + 1
	u.UpdatedAt = now
	s.users[u.PhoneNumber] = u
	out := cloneUserData(u)
	return &out, nil
}

func (s *MemoryUserDataStore) List(ctx context.Context, opts ListOptions) ([]models.UserData, int64, error) {
	s.mu.RLock()
	out := make([]models.UserData, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, cloneUserData(u))
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return page(out, opts), int64(len(out)), nil
}

func cloneUserData(u models.UserData) models.UserData {
	u.BioData = cloneMap(u.BioData)
	u.MedicareData = cloneMap(u.MedicareData)
	u.MissingFields = append(datatypes.JSONSlice[string]{}, u.MissingFields...)
	return u
}

func cloneMap(m datatypes.JSONMap) datatypes.JSONMap {
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type MemoryClassificationStore struct {
	mu   sync.RWMutex
	rows []models.Classification
}

func NewMemoryClassificationStore() *MemoryClassificationStore {
	return &MemoryClassificationStore{}
}

func (s *MemoryClassificationStore) Ping(ctx context.Context) error { return nil }

func (s *MemoryClassificationStore) GetCurrent(ctx context.Context, userID string) (*models.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].UserID == userID && s.rows[i].IsCurrent {
			c := s.rows[i]
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryClassificationStore) Upsert(ctx context.Context, c *models.Classification) (*models.Classification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		if s.rows[i].UserID == c.UserID {
			s.rows[i].IsCurrent = false
		}
	}
	row := *c
	row.IsCurrent = true
	s.rows = append(s.rows, row)
	return &row, nil
}

func (s *MemoryClassificationStore) History(ctx context.Context, userID string, limit int) ([]models.Classification, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Classification
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].UserID == userID {
			out = append(out, s.rows[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryClassificationStore) List(ctx context.Context, opts ListOptions) ([]models.Classification, int64, error) {
	s.mu.RLock()
	var out []models.Classification
	for i := len(s.rows) - 1; i >= 0; i-- {
		if s.rows[i].IsCurrent {
			out = append(out, s.rows[i])
		}
	}
	s.mu.RUnlock()
	return page(out, opts), int64(len(out)), nil
}

type MemorySubmissionStore struct {
	mu   sync.RWMutex
	rows map[string]models.Submission
	// order holds IDs by creation, oldest first.
	order []string
	now   func() time.Time
}

func NewMemorySubmissionStore() *MemorySubmissionStore {
	return &MemorySubmissionStore{rows: make(map[string]models.Submission), now: time.Now}
}

func (s *MemorySubmissionStore) Ping(ctx context.Context) error { return nil }

func (s *MemorySubmissionStore) Create(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[sub.ID]; exists {
		return ErrConflict
	}
	now := s.now()
	sub.CreatedAt, sub.UpdatedAt = now, now
	s.rows[sub.ID] = *sub
	s.order = append(s.order, sub.ID)
	return nil
}

func (s *MemorySubmissionStore) LatestByPhone(ctx context.Context, phone string) (*models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.order) - 1; i >= 0; i-- {
		if sub := s.rows[s.order[i]]; sub.PhoneNumber == phone {
			return &sub, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemorySubmissionStore) Update(ctx context.Context, sub *models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.rows[sub.ID]; !exists {
		return ErrNotFound
	}
	sub.UpdatedAt = s.now()
	s.rows[sub.ID] = *sub
	return nil
}

func (s *MemorySubmissionStore) ListByStatus(ctx context.Context, status string, opts ListOptions) ([]models.Submission, int64, error) {
	s.mu.RLock()
	var out []models.Submission
	for _, sub := range s.rows {
		if status == "" || sub.Status == status {
			out = append(out, sub)
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return page(out, opts), int64(len(out)), nil
}

func page[T any](rows []T, opts ListOptions) []T {
	if opts.Offset >= len(rows) {
		return []T{}
	}
	rows = rows[opts.Offset:]
	if opts.Limit > 0 && opts.Limit < len(rows) {
		rows = rows[:opts.Limit]
	}
	return rows
}
