package store

import (
	"context"
	"fmt"

	"leadintake/models"

	"gorm.io/gorm"
)

type GormSubmissionStore struct {
	gormBase
}

func NewGormSubmissionStore(db *gorm.DB) *GormSubmissionStore {
	return &GormSubmissionStore{gormBase{db: db}}
}

func (s *GormSubmissionStore) Create(ctx context.Context, sub *models.Submission) error {
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

func (s *GormSubmissionStore) Update(ctx context.Context, sub *models.Submission) error {
	res := s.db.WithContext(ctx).Model(sub).Select("*").Omit("created_at", "token").Updates(sub)
	if res.Error != nil {
		return fmt.Errorf("update submission: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormSubmissionStore) LatestByPhone(ctx context.Context, phone string) (*models.Submission, error) {
	var sub models.Submission
	err := s.db.WithContext(ctx).
		Where("phone_number = ?", phone).
		Order("created_at desc").
		First(&sub).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &sub, nil
}

func (s *GormSubmissionStore) ListByStatus(ctx context.Context, status string, opts ListOptions) ([]models.Submission, int64, error) {
	var (
		rows  []models.Submission
		total int64
	)
	q := s.db.WithContext(ctx).Model(&models.Submission{})
	if status != "" {
		q = q.Where("status = ?", status)
	}
	q = q.Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at asc").Offset(opts.Offset).Limit(limitOrAll(opts.Limit)).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}
