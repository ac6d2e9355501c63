package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"leadintake/models"

	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var (
	AppConfig Config
	envLoaded bool
)

const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"-"`
	DB       int    `json:"db"`
}

type Config struct {
	Environment    string `json:"environment"`
	ServerPort     string `json:"server_port"`
	LogLevel       string `json:"log_level"`
	DBHost         string `json:"db_host"`
	DBPort         string `json:"db_port"`
	DBUser         string `json:"db_user"`
	DBPassword     string `json:"-"`
	DBName         string `json:"db_name"`
	DBSSLMode      string `json:"db_ssl_mode"`
	DBMaxIdleConns int    `json:"db_max_idle_conns"`
	DBMaxOpenConns int    `json:"db_max_open_conns"`

	Redis RedisConfig `json:"redis"`

	// StoreBackend selects where leads, user data, classifications and the
	// submission journal live: postgres or memory.
	StoreBackend string `json:"store_backend"`
	// TokenBackend selects the form token store: redis, postgres or memory.
	TokenBackend string `json:"token_backend"`

	FormTokenTTL       time.Duration `json:"form_token_ttl"`
	TokenRetention     time.Duration `json:"token_retention"`
	FormBaseURL        string        `json:"form_base_url"`
	DefaultCountryCode string        `json:"default_country_code"`

	JWTSecret          string `json:"-"`
	FieldEncryptionKey string `json:"-"`
	SentryDSN          string `json:"-"`

	ReconcileInterval time.Duration `json:"reconcile_interval"`
	CORSOrigins       []string      `json:"cors_origins"`
	IssueRateLimit    int           `json:"issue_rate_limit"`
	IssueRateWindow   time.Duration `json:"issue_rate_window"`
}

func init() {
	// Try to load .env file, but don't fail if it doesn't exist
	_ = godotenv.Load()
	envLoaded = true
}

func LoadConfig() error {
	AppConfig = Config{
		Environment:    getEnv("ENVIRONMENT", "development"),
		ServerPort:     getEnv("SERVER_PORT", "5000"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		DBHost:         getEnv("DB_HOST", "localhost"),
		DBPort:         getEnv("DB_PORT", "5432"),
		DBUser:         getEnv("DB_USER", "postgres"),
		DBPassword:     getEnv("DB_PASSWORD", ""),
		DBName:         getEnv("DB_NAME", "leadintake"),
		DBSSLMode:      getEnv("DB_SSL_MODE", "disable"),
		DBMaxIdleConns: getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
		DBMaxOpenConns: getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Address:  getEnv("REDIS_ADDRESS", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		StoreBackend:       strings.ToLower(getEnv("STORE_BACKEND", BackendPostgres)),
		TokenBackend:       strings.ToLower(getEnv("TOKEN_BACKEND", BackendRedis)),
		FormTokenTTL:       getEnvAsDuration("FORM_TOKEN_TTL", 20*time.Minute),
		TokenRetention:     getEnvAsDuration("TOKEN_RETENTION", 30*24*time.Hour),
		FormBaseURL:        getEnv("FORM_BASE_URL", "http://localhost:3000/intake"),
		DefaultCountryCode: strings.TrimPrefix(getEnv("DEFAULT_COUNTRY_CODE", "1"), "+"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		FieldEncryptionKey: getEnv("FIELD_ENCRYPTION_KEY", ""),
		SentryDSN:          getEnv("SENTRY_DSN", ""),
		ReconcileInterval:  getEnvAsDuration("RECONCILE_INTERVAL", 5*time.Minute),
		CORSOrigins:        getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		IssueRateLimit:     getEnvAsInt("ISSUE_RATE_LIMIT", 3),
		IssueRateWindow:    getEnvAsDuration("ISSUE_RATE_WINDOW", 10*time.Minute),
	}

	if err := AppConfig.Validate(); err != nil {
		return err
	}

	logConfig()
	return nil
}

// Validate checks that the selected backends have what they need.
func (c Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.StoreBackend {
	case BackendPostgres:
		if c.DBPassword == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres store backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", BackendPostgres, BackendMemory, c.StoreBackend)
	}
	switch c.TokenBackend {
	case BackendRedis:
		if !c.Redis.Enabled {
			return fmt.Errorf("REDIS_ENABLED must be true for the redis token backend")
		}
	case BackendPostgres:
		if c.StoreBackend != BackendPostgres {
			return fmt.Errorf("TOKEN_BACKEND=postgres requires STORE_BACKEND=postgres")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("TOKEN_BACKEND must be redis, postgres or memory, got %q", c.TokenBackend)
	}
	if c.FormTokenTTL < MinFormTokenTTL || c.FormTokenTTL > MaxFormTokenTTL {
		return fmt.Errorf("FORM_TOKEN_TTL must be between %s and %s, got %s", MinFormTokenTTL, MaxFormTokenTTL, c.FormTokenTTL)
	}
	if c.Environment == "production" && c.FieldEncryptionKey == "" {
		return fmt.Errorf("FIELD_ENCRYPTION_KEY is required in production")
	}
	return nil
}

// Form tokens must outlive a typical form fill without lingering for hours.
const (
	MinFormTokenTTL = 15 * time.Minute
	MaxFormTokenTTL = 30 * time.Minute
)

// ConnectDB opens the Postgres connection and migrates the intake tables.
func ConnectDB(cfg Config) (*gorm.DB, error) {
	log := logrus.WithField("component", "database")
	log.Info("Attempting to connect to database...")

	dsn := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)
	log.WithField("dsn", maskPassword(dsn)).Debug("Using connection string")

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get DB instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)
	sqlDB.SetConnMaxIdleTime(30 * time.Minute)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	log.Info("Successfully connected to the database")

	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	log.Info("Database migration completed")
	return db, nil
}

// Migrate creates or updates the intake tables.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Lead{},
		&models.UserData{},
		&models.Classification{},
		&models.FormToken{},
		&models.Submission{},
	)
}

// ConnectRedis returns a pinged client for the token store and rate limiter.
func ConnectRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return client, nil
}

// Helper functions
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	if !envLoaded && fallback == "" {
		logrus.Warnf("Environment variable %s not found and no fallback provided", key)
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsBool(key string, fallback bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := strconv.ParseBool(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	value, err := time.ParseDuration(strings.TrimSpace(valueStr))
	if err != nil {
		return fallback
	}
	return value
}

func getEnvAsList(key string, fallback []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(valueStr, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func maskPassword(dsn string) string {
	const passwordMarker = "password="
	startIdx := strings.Index(dsn, passwordMarker)
	if startIdx == -1 {
		return dsn
	}

	startIdx += len(passwordMarker)
	endIdx := strings.IndexAny(dsn[startIdx:], " ")
	if endIdx == -1 {
		return dsn[:startIdx] + "*****"
	}
	return dsn[:startIdx] + "*****" + dsn[startIdx+endIdx:]
}

func logConfig() {
	logrus.WithFields(logrus.Fields{
		"environment":    AppConfig.Environment,
		"server_port":    AppConfig.ServerPort,
		"store_backend":  AppConfig.StoreBackend,
		"token_backend":  AppConfig.TokenBackend,
		"form_token_ttl": AppConfig.FormTokenTTL.String(),
		"database":       fmt.Sprintf("%s@%s:%s/%s", AppConfig.DBUser, AppConfig.DBHost, AppConfig.DBPort, AppConfig.DBName),
		"redis":          AppConfig.Redis.Address,
		"sealing":        AppConfig.FieldEncryptionKey != "",
	}).Info("Loaded configuration")
}
