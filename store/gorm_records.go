package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadintake/models"
	"leadintake/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// sealedMedicareFields are encrypted at rest when a sealer is configured.
var sealedMedicareFields = []string{"medicareNumber"}

type gormBase struct {
	db *gorm.DB
}

func (b gormBase) Ping(ctx context.Context) error {
	sqlDB, err := b.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

type GormLeadStore struct {
	gormBase
}

func NewGormLeadStore(db *gorm.DB) *GormLeadStore {
	return &GormLeadStore{gormBase{db: db}}
}

func (s *GormLeadStore) GetByPhone(ctx context.Context, phone string) (*models.Lead, error) {
	var lead models.Lead
	if err := s.db.WithContext(ctx).Where("phone_number = ?", phone).First(&lead).Error; err != nil {
		return nil, notFound(err)
	}
	return &lead, nil
}

// Upsert inserts the lead or, when the phone number exists, updates the mutable
// columns. Blank email/city never overwrite stored values.
func (s *GormLeadStore) Upsert(ctx context.Context, lead *models.Lead) (*models.Lead, error) {
	row := *lead
	now := time.Now().UTC()
	row.CreatedAt, row.UpdatedAt = now, now

	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "phone_number"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"name":       gorm.Expr("excluded.name"),
			"email":      gorm.Expr("CASE WHEN excluded.email <> '' THEN excluded.email ELSE leads.email END"),
			"city":       gorm.Expr("CASE WHEN excluded.city <> '' THEN excluded.city ELSE leads.city END"),
			"updated_at": gorm.Expr("excluded.updated_at"),
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert lead: %w", err)
	}
	return s.GetByPhone(ctx, lead.PhoneNumber)
}

func (s *GormLeadStore) List(ctx context.Context, opts ListOptions) ([]models.Lead, int64, error) {
	var (
		leads []models.Lead
		total int64
	)
	q := s.db.WithContext(ctx).Model(&models.Lead{}).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at desc").Offset(opts.Offset).Limit(limitOrAll(opts.Limit)).Find(&leads).Error; err != nil {
		return nil, 0, err
	}
	return leads, total, nil
}

type GormUserDataStore struct {
	gormBase
	sealer *utils.Sealer
}

// NewGormUserDataStore returns a store that seals Medicare identifiers with
// sealer. A nil sealer stores them in clear.
func NewGormUserDataStore(db *gorm.DB, sealer *utils.Sealer) *GormUserDataStore {
	return &GormUserDataStore{gormBase: gormBase{db: db}, sealer: sealer}
}

func (s *GormUserDataStore) GetByPhone(ctx context.Context, phone string) (*models.UserData, error) {
	var u models.UserData
	if err := s.db.WithContext(ctx).Where("phone_number = ?", phone).First(&u).Error; err != nil {
		return nil, notFound(err)
	}
	if err := s.open(&u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *GormUserDataStore) Upsert(ctx context.Context, data *models.UserData) (*models.UserData, error) {
	medicare, err := s.seal(data.MedicareData)
	if err != nil {
		return nil, err
	}
	missing := data.MissingFields
	if missing == nil {
		missing = datatypes.JSONSlice[string]{}
	}

	db := s.db.WithContext(ctx)
	if data.Version == 0 {
		row := *data
		row.MedicareData = medicare
		row.MissingFields = missing
		row.Version = 1
		if err := db.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return nil, ErrConflict
			}
			return nil, fmt.Errorf("insert user data: %w", err)
		}
		return s.GetByPhone(ctx, data.PhoneNumber)
	}

	res := db.Model(&models.UserData{}).
		Where("phone_number = ? AND version = ?", data.PhoneNumber, data.Version).
		Updates(map[string]interface{}{
			"name":           data.Name,
			"bio_data":       data.BioData,
			"medicare_data":  medicare,
			"is_complete":    data.IsComplete,
			"missing_fields": missing,
			"version":        gorm.Expr("version + 1"),
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("update user data: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrConflict
	}
	return s.GetByPhone(ctx, data.PhoneNumber)
}

func (s *GormUserDataStore) List(ctx context.Context, opts ListOptions) ([]models.UserData, int64, error) {
	var (
		rows  []models.UserData
		total int64
	)
	q := s.db.WithContext(ctx).Model(&models.UserData{}).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at desc").Offset(opts.Offset).Limit(limitOrAll(opts.Limit)).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	for i := range rows {
		if err := s.open(&rows[i]); err != nil {
			return nil, 0, err
		}
	}
	return rows, total, nil
}

func (s *GormUserDataStore) seal(m datatypes.JSONMap) (datatypes.JSONMap, error) {
	out := make(datatypes.JSONMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	if s.sealer == nil {
		return out, nil
	}
	for _, key := range sealedMedicareFields {
		if v, ok := out[key].(string); ok {
			sealed, err := s.sealer.Encrypt(v)
			if err != nil {
				return nil, fmt.Errorf("seal %s: %w", key, err)
			}
			out[key] = sealed
		}
	}
	return out, nil
}

func (s *GormUserDataStore) open(u *models.UserData) error {
	if s.sealer == nil {
		return nil
	}
	for _, key := range sealedMedicareFields {
		if v, ok := u.MedicareData[key].(string); ok && utils.IsSealed(v) {
			plain, err := s.sealer.Decrypt(v)
			if err != nil {
				return fmt.Errorf("open %s: %w", key, err)
			}
			u.MedicareData[key] = plain
		}
	}
	return nil
}

type GormClassificationStore struct {
	gormBase
}

func NewGormClassificationStore(db *gorm.DB) *GormClassificationStore {
	return &GormClassificationStore{gormBase{db: db}}
}

func (s *GormClassificationStore) GetCurrent(ctx context.Context, userID string) (*models.Classification, error) {
	var c models.Classification
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND is_current = ?", userID, true).
		Order("created_at desc").
		First(&c).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &c, nil
}

// Upsert demotes the user's current classification and inserts c as current,
// in one transaction. The current row is locked first; a concurrent writer
// that still slips in a second current row hits idx_classifications_current
// and gets ErrConflict.
func (s *GormClassificationStore) Upsert(ctx context.Context, c *models.Classification) (*models.Classification, error) {
	row := *c
	row.IsCurrent = true
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var locked []models.Classification
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("user_id = ? AND is_current = ?", c.UserID, true).
			Find(&locked).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Classification{}).
			Where("user_id = ? AND is_current = ?", c.UserID, true).
			Update("is_current", false).Error; err != nil {
			return err
		}
		return tx.Create(&row).Error
	})
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return nil, ErrConflict
	}
	if err != nil {
		return nil, fmt.Errorf("upsert classification: %w", err)
	}
	return &row, nil
}

func (s *GormClassificationStore) History(ctx context.Context, userID string, limit int) ([]models.Classification, error) {
	var rows []models.Classification
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at desc").
		Limit(limitOrAll(limit)).
		Find(&rows).Error
	return rows, err
}

func (s *GormClassificationStore) List(ctx context.Context, opts ListOptions) ([]models.Classification, int64, error) {
	var (
		rows  []models.Classification
		total int64
	)
	q := s.db.WithContext(ctx).Model(&models.Classification{}).Where("is_current = ?", true).Session(&gorm.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	if err := q.Order("created_at desc").Offset(opts.Offset).Limit(limitOrAll(opts.Limit)).Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func limitOrAll(limit int) int {
	if limit <= 0 {
		return -1
	}
	return limit
}
