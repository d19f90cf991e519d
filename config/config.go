package config

import (
	"time"

	"github.com/Gobusters/ectoenv"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	AppName    string `env:"APP_NAME" env-default:"ijar-monitor"`
	LogLevel   string `env:"LOG_LEVEL" env-default:"info"`
	PrettyLogs bool   `env:"PRETTY_LOGS" env-default:"false"`

	// PostgreSQL
	DatabaseHost                  string        `env:"DB_HOST" env-default:""`
	DatabasePort                  string        `env:"DB_PORT" env-default:"5432"`
	DatabaseUserName              string        `env:"DB_USER_NAME" env-default:""`
	DatabasePassword              string        `env:"DB_PASSWORD" env-default:""`
	DatabaseName                  string        `env:"DB_NAME" env-default:"ijar"`
	DatabaseSSLMode               string        `env:"DB_SSL_MODE" env-default:"disable"`
	DatabaseMaxOpenConns          int           `env:"DB_MAX_OPEN_CONNS" env-default:"25"`
	DatabaseMaxIdleConns          int           `env:"DB_MAX_IDLE_CONNS" env-default:"10"`
	DatabaseConnMaxLifetime       time.Duration `env:"DB_CONN_MAX_LIFETIME" env-default:"10s"`
	DatabaseMigrationFolderPath   string        `env:"DB_MIGRATION_FOLDER_PATH" env-default:"db/pg"`
	DatabaseMigrationVersion      int           `env:"DB_MIGRATION_VERSION" env-default:"0"`
	DatabaseMigrationForce        int           `env:"DB_MIGRATION_FORCE" env-default:"0"`
	DatabaseMigrationAutoRollback bool          `env:"DB_MIGRATION_AUTO_ROLLBACK" env-default:"true"`

	// Upstream listing source
	SourceBaseURL        string        `env:"SOURCE_BASE_URL" env-default:"" validate:"omitempty,url"`
	SourceSearchTimeout  time.Duration `env:"SOURCE_SEARCH_TIMEOUT" env-default:"30s"`
	SourceDetailsTimeout time.Duration `env:"SOURCE_DETAILS_TIMEOUT" env-default:"60s"`
	SourcePageSize       int           `env:"SOURCE_PAGE_SIZE" env-default:"25" validate:"gte=1,lte=100"`
	SourceMaxPages       int           `env:"SOURCE_MAX_PAGES" env-default:"1" validate:"gte=1"`
	SourceMaxRetries     int           `env:"SOURCE_MAX_RETRIES" env-default:"3" validate:"gte=0"`

	// Enrichment
	HDEnrichmentEnabled bool          `env:"HD_ENRICHMENT_ENABLED" env-default:"true"`
	MaxEnrichPerQuery   int           `env:"MAX_ENRICH_PER_QUERY" env-default:"7" validate:"gte=1"`
	EnrichDelay         time.Duration `env:"ENRICH_DELAY" env-default:"2s"`
	MaxImagesPerListing int           `env:"MAX_IMAGES_PER_LISTING" env-default:"20" validate:"gte=1"`

	// Batch scheduling
	UserBatchSize int           `env:"USER_BATCH_SIZE" env-default:"3" validate:"gte=1"`
	BatchPause    time.Duration `env:"BATCH_PAUSE" env-default:"2s"`

	// APNs push delivery
	PushEnabled  bool   `env:"PUSH_ENABLED" env-default:"true"`
	APNsKeyPath  string `env:"APNS_KEY_PATH" env-default:""`
	APNsKeyID    string `env:"APNS_KEY_ID" env-default:""`
	APNsTeamID   string `env:"APNS_TEAM_ID" env-default:""`
	APNsTopic    string `env:"APNS_TOPIC" env-default:""`

	// Kafka run events (optional, disabled when no brokers are set)
	KafkaBrokers      []string `env:"KAFKA_BROKERS" env-default:""`
	KafkaOutputTopic  string   `env:"KAFKA_OUTPUT_TOPIC" env-default:"property-events"`
	KafkaBatchSize    int      `env:"KAFKA_BATCH_SIZE" env-default:"100"`
	KafkaBatchTimeout int      `env:"KAFKA_BATCH_TIMEOUT_MS" env-default:"100"`
	KafkaRequiredAcks int      `env:"KAFKA_REQUIRED_ACKS" env-default:"1"`
	KafkaCompression  string   `env:"KAFKA_COMPRESSION" env-default:"snappy"`

	// Redis run lock (optional, disabled when no host is set)
	RedisHost     string        `env:"REDIS_HOST" env-default:""`
	RedisPort     int           `env:"REDIS_PORT" env-default:"6379"`
	RedisPassword string        `env:"REDIS_PASSWORD" env-default:""`
	RedisDB       int           `env:"REDIS_DB" env-default:"0"`
	RunLockTTL    time.Duration `env:"RUN_LOCK_TTL" env-default:"30m"`
}

// Load reads .env (when present), binds environment variables and validates the result.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, err
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
