package store_test

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"leadintake/config"
	"leadintake/store"
	"leadintake/utils"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// one connection keeps every query on the same in-memory database
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, config.Migrate(db))
	return db
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client
}

type recordBackend struct {
	name            string
	leads           store.LeadStore
	users           store.UserDataStore
	classifications store.ClassificationStore
	submissions     store.SubmissionStore
}

func recordBackends(t *testing.T) []recordBackend {
	db := newTestDB(t)
	return []recordBackend{
		{
			name:            "memory",
			leads:           store.NewMemoryLeadStore(),
			users:           store.NewMemoryUserDataStore(),
			classifications: store.NewMemoryClassificationStore(),
			submissions:     store.NewMemorySubmissionStore(),
		},
		{
			name:            "gorm",
			leads:           store.NewGormLeadStore(db),
			users:           store.NewGormUserDataStore(db, utils.NewSealer("test-secret")),
			classifications: store.NewGormClassificationStore(db),
			submissions:     store.NewGormSubmissionStore(db),
		},
	}
}

type tokenBackend struct {
	name  string
	store store.TokenStore
}

func tokenBackends(t *testing.T) []tokenBackend {
	_, client := newTestRedis(t)
	return []tokenBackend{
		{name: "memory", store: store.NewMemoryTokenStore()},
		{name: "gorm", store: store.NewGormTokenStore(newTestDB(t))},
		{name: "redis", store: store.NewRedisTokenStore(client, 0)},
	}
}
