package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadintake/models"

	"gorm.io/gorm"
)

type GormTokenStore struct {
	gormBase
}

func NewGormTokenStore(db *gorm.DB) *GormTokenStore {
	return &GormTokenStore{gormBase{db: db}}
}

func (s *GormTokenStore) Save(ctx context.Context, t *models.FormToken) error {
	if err := s.db.WithContext(ctx).Create(t).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return fmt.Errorf("save form token: %w", err)
	}
	return nil
}

func (s *GormTokenStore) Get(ctx context.Context, token string) (*models.FormToken, error) {
	var t models.FormToken
	if err := s.db.WithContext(ctx).Where("token = ?", token).First(&t).Error; err != nil {
		return nil, notFound(err)
	}
	return &t, nil
}

// Consume flips consumed with a single conditional UPDATE, so the database row
// lock decides the winner between concurrent submissions.
func (s *GormTokenStore) Consume(ctx context.Context, token string, at time.Time) (*models.FormToken, error) {
	res := s.db.WithContext(ctx).Model(&models.FormToken{}).
		Where("token = ? AND consumed = ? AND expires_at >= ?", token, false, at).
		Updates(map[string]interface{}{"consumed": true, "consumed_at": at})
	if res.Error != nil {
		return nil, fmt.Errorf("consume form token: %w", res.Error)
	}

	t, err := s.Get(ctx, token)
	if err != nil {
		return nil, err
	}
	if res.RowsAffected == 1 {
		return t, nil
	}
	if t.Consumed {
		return nil, ErrTokenConsumed
	}
	return nil, ErrTokenExpired
}
