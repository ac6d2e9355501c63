// Package store holds the persistence collaborators used by the intake saga.
// Each store owns its records exclusively; there is no transaction spanning
// two stores.
package store

import (
	"context"
	"errors"
	"time"

	"leadintake/models"
)

var (
	ErrNotFound = errors.New("store: record not found")
	// ErrConflict means a concurrent writer changed the record first.
	ErrConflict = errors.New("store: write conflict")

	ErrTokenConsumed = errors.New("store: token already consumed")
	ErrTokenExpired  = errors.New("store: token expired")
)

// Pinger reports backend reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type ListOptions struct {
	Offset int
	Limit  int
}

// TokenStore persists form tokens. Consume is an atomic check-and-set: of any
// number of concurrent calls for one token at most one succeeds.
type TokenStore interface {
	Pinger
	Save(ctx context.Context, t *models.FormToken) error
	Get(ctx context.Context, token string) (*models.FormToken, error)
	Consume(ctx context.Context, token string, at time.Time) (*models.FormToken, error)
}

// LeadStore upserts leads keyed by phone number. Upsert keeps LeadID and
// CreatedAt of an existing row and returns the stored record.
type LeadStore interface {
	Pinger
	GetByPhone(ctx context.Context, phone string) (*models.Lead, error)
	Upsert(ctx context.Context, lead *models.Lead) (*models.Lead, error)
	List(ctx context.Context, opts ListOptions) ([]models.Lead, int64, error)
}

// UserDataStore writes with optimistic versioning. A record with Version 0 is
// inserted; otherwise the write only succeeds if the stored Version still
// matches, and the stored Version is incremented. Mismatches yield ErrConflict.
type UserDataStore interface {
	Pinger
	GetByPhone(ctx context.Context, phone string) (*models.UserData, error)
	Upsert(ctx context.Context, data *models.UserData) (*models.UserData, error)
	List(ctx context.Context, opts ListOptions) ([]models.UserData, int64, error)
}

// ClassificationStore keeps one current classification per user and retains
// older ones as history.
type ClassificationStore interface {
	Pinger
	GetCurrent(ctx context.Context, userID string) (*models.Classification, error)
	Upsert(ctx context.Context, c *models.Classification) (*models.Classification, error)
	History(ctx context.Context, userID string, limit int) ([]models.Classification, error)
	List(ctx context.Context, opts ListOptions) ([]models.Classification, int64, error)
}

// SubmissionStore journals saga attempts.
type SubmissionStore interface {
	Pinger
	Create(ctx context.Context, s *models.Submission) error
	Update(ctx context.Context, s *models.Submission) error
	ListByStatus(ctx context.Context, status string, opts ListOptions) ([]models.Submission, int64, error)
	// LatestByPhone returns the most recently started attempt for phone.
	LatestByPhone(ctx context.Context, phone string) (*models.Submission, error)
}
