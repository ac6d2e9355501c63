package services

import (
	"context"
	"errors"
	"time"

	"leadintake/models"
	"leadintake/store"
	"leadintake/utils"

	"github.com/sirupsen/logrus"
)

// DefaultTokenTTL is how long a form link stays usable after the SMS is sent.
const DefaultTokenTTL = 20 * time.Minute

// TokenValidation is the side-effect-free answer to "may this token open the form".
type TokenValidation struct {
	Valid       bool      `json:"valid"`
	PhoneNumber string    `json:"phoneNumber,omitempty"`
	ExpiresAt   time.Time `json:"expiresAt,omitempty"`
}

// TokenAuthority issues and checks the single-use, phone-bound form tokens.
type TokenAuthority struct {
	store          store.TokenStore
	ttl            time.Duration
	defaultCountry string
	now            func() time.Time
	generate       func() (string, error)
	log            *logrus.Entry
}

type TokenOption func(*TokenAuthority)

func WithTokenClock(now func() time.Time) TokenOption {
	return func(a *TokenAuthority) { a.now = now }
}

// WithDefaultCountryCode sets the country code assumed for national-format numbers.
func WithDefaultCountryCode(code string) TokenOption {
	return func(a *TokenAuthority) { a.defaultCountry = code }
}

func WithTokenGenerator(gen func() (string, error)) TokenOption {
	return func(a *TokenAuthority) { a.generate = gen }
}

func NewTokenAuthority(s store.TokenStore, ttl time.Duration, opts ...TokenOption) *TokenAuthority {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	a := &TokenAuthority{
		store:          s,
		ttl:            ttl,
		defaultCountry: "1",
		now:            func() time.Time { return time.Now().UTC() },
		generate:       utils.GenerateSecureToken,
		log:            utils.Logger("token_authority"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func (a *TokenAuthority) TTL() time.Duration { return a.ttl }

// NormalizePhone applies the authority's phone normalization rules.
func (a *TokenAuthority) NormalizePhone(raw string) (string, error) {
	phone, err := utils.NormalizePhone(raw, a.defaultCountry)
	if err != nil {
		return "", validationError(CodeInvalidField, "phoneNumber", err)
	}
	return phone, nil
}

// Issue creates and persists a fresh token bound to phoneNumber.
func (a *TokenAuthority) Issue(ctx context.Context, phoneNumber string) (*models.FormToken, error) {
	phone, err := a.NormalizePhone(phoneNumber)
	if err != nil {
		return nil, err
	}

	value, err := a.generate()
	if err != nil {
		return nil, err
	}

	issuedAt := a.now()
	token := &models.FormToken{
		Token:       value,
		PhoneNumber: phone,
		IssuedAt:    issuedAt,
		ExpiresAt:   issuedAt.Add(a.ttl),
	}
	if err := a.store.Save(ctx, token); err != nil {
		return nil, storeError(err)
	}

	a.log.WithFields(logrus.Fields{
		"phone":      utils.MaskPhone(phone),
		"expires_at": token.ExpiresAt,
	}).Info("Form token issued")
	return token, nil
}

// Validate checks a token without consuming it, so the form can be reopened
// until the final submit. Unknown, expired and consumed tokens are all invalid.
func (a *TokenAuthority) Validate(ctx context.Context, token string) (TokenValidation, error) {
	if token == "" {
		return TokenValidation{}, &Error{Kind: KindToken, Code: CodeTokenNotFound}
	}

	t, err := a.store.Get(ctx, token)
	if err != nil {
		return TokenValidation{}, tokenError(err)
	}
	if t.Consumed {
		return TokenValidation{}, &Error{Kind: KindToken, Code: CodeTokenAlreadyConsumed}
	}
	if t.Expired(a.now()) {
		return TokenValidation{}, &Error{Kind: KindToken, Code: CodeTokenExpired}
	}
	return TokenValidation{Valid: true, PhoneNumber: t.PhoneNumber, ExpiresAt: t.ExpiresAt}, nil
}

// Consume marks the token used. Exactly one caller per token succeeds; every
// other caller gets ALREADY_CONSUMED.
func (a *TokenAuthority) Consume(ctx context.Context, token string) error {
	if token == "" {
		return &Error{Kind: KindToken, Code: CodeTokenNotFound}
	}
	if _, err := a.store.Consume(ctx, token, a.now()); err != nil {
		e := tokenError(err)
		if !errors.Is(e, ErrAlreadyConsumed) {
			return e
		}
		a.log.WithField("code", e.Code).Warn("Rejected replayed form token")
		return e
	}
	return nil
}
