package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Store drivers accepted by STORE_DRIVER.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Site repository.
	StoreDriver string
	SQLitePath  string
	PostgresDSN string

	// Narrative annotator.
	GeminiAPIKey       string
	GeminiModel        string
	AnnotatorEnabled   bool
	AnnotatorTimeout   time.Duration
	NarrativeCacheSize int

	// Optional shared narrative cache. Empty RedisAddr disables it.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisTTL      time.Duration
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding the real environment. Missing files are ignored.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	annotatorTimeout, err := parsePositiveDuration("ANNOTATOR_TIMEOUT", "40s")
	if err != nil {
		return nil, err
	}

	redisTTL, err := parsePositiveDuration("REDIS_TTL", "24h")
	if err != nil {
		return nil, err
	}

	redisDB, err := strconv.Atoi(sharedcfg.EnvOrDefault("REDIS_DB", "0"))
	if err != nil || redisDB < 0 {
		return nil, errors.New("invalid REDIS_DB")
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		geminiKey = os.Getenv("GOOGLE_API_KEY")
	}
	annotatorEnabled := geminiKey != ""
	if v := os.Getenv("ANNOTATOR_ENABLED"); v != "" {
		annotatorEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "raw-groundwater-rows"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "site-test-recorded"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "groundwater-etl"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		StoreDriver: sharedcfg.EnvOrDefault("STORE_DRIVER", StoreMemory),
		SQLitePath:  sharedcfg.EnvOrDefault("SQLITE_PATH", "groundwater.db"),
		PostgresDSN: os.Getenv("POSTGRES_DSN"),

		GeminiAPIKey:       geminiKey,
		GeminiModel:        sharedcfg.EnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		AnnotatorEnabled:   annotatorEnabled,
		AnnotatorTimeout:   annotatorTimeout,
		NarrativeCacheSize: parseNarrativeCacheSize(),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       redisDB,
		RedisTTL:      redisTTL,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	switch cfg.StoreDriver {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if cfg.PostgresDSN == "" {
			return nil, errors.New("STORE_DRIVER is postgres but POSTGRES_DSN is not set")
		}
	default:
		return nil, fmt.Errorf("invalid STORE_DRIVER %q (want memory, sqlite or postgres)", cfg.StoreDriver)
	}
	if cfg.AnnotatorEnabled && cfg.GeminiAPIKey == "" {
		return nil, errors.New("ANNOTATOR_ENABLED is true but GEMINI_API_KEY is not set")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseNarrativeCacheSize() int {
	if s := os.Getenv("NARRATIVE_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
