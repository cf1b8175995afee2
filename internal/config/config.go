package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Event bus drivers.
const (
	EventBusRedis  = "redis"
	EventBusAMQP   = "amqp"
	EventBusMemory = "memory"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App      AppConfig
	Postgres PostgresConfig
	Redis    RedisConfig
	Cache    CacheConfig
	EventBus EventBusConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Profile  ProfileConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// CacheConfig holds TTLs for the read-through cache. UserTTLSeconds is
// applied to per-user entries and overrides DefaultTTLSeconds.
type CacheConfig struct {
	DefaultTTLSeconds int
	UserTTLSeconds    int
}

// EventBusConfig selects and configures the domain event broker.
type EventBusConfig struct {
	Driver           string
	Redis            RedisConfig
	Queue            string
	AMQPURL          string
	Exchange         string
	PublishTimeoutMS int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig defines authentication parameters.
type AuthConfig struct {
	PrivateKeyPath            string
	PublicKeyPath             string
	Issuer                    string
	Audience                  string
	AccessTokenTTLMinutes     int
	VerificationTokenTTLHours int
	BcryptCost                int
}

// ProfileConfig holds user profile parameters.
type ProfileConfig struct {
	DefaultPhoneRegion string
}

const minBcryptCost = 10

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	busDB, err := strconv.Atoi(getEnv("EVENT_BUS_REDIS_DB", strconv.Itoa(redisDB)))
	if err != nil {
		return nil, fmt.Errorf("invalid EVENT_BUS_REDIS_DB: %w", err)
	}

	maxConns := int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10))
	minConns := int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2))
	runMigrations := getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true)
	connMaxIdle := int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30))
	connMaxLife := int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300))

	redisAddr := getEnv("REDIS_ADDR", "127.0.0.1:6379")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	bcryptCost := getEnvAsInt("AUTH_BCRYPT_COST", minBcryptCost)
	if bcryptCost < minBcryptCost {
		bcryptCost = minBcryptCost
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "user-service"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       maxConns,
			MinConns:       minConns,
			RunMigrations:  runMigrations,
			ConnMaxIdleSec: connMaxIdle,
			ConnMaxLifeSec: connMaxLife,
		},
		Redis: RedisConfig{
			Addr:     redisAddr,
			Password: redisPassword,
			DB:       redisDB,
		},
		Cache: CacheConfig{
			DefaultTTLSeconds: getEnvAsInt("CACHE_DEFAULT_TTL_SECONDS", 600),
			UserTTLSeconds:    getEnvAsInt("CACHE_USER_TTL_SECONDS", 300),
		},
		EventBus: EventBusConfig{
			Driver: strings.ToLower(getEnv("EVENT_BUS_DRIVER", EventBusRedis)),
			Redis: RedisConfig{
				Addr:     getEnv("EVENT_BUS_REDIS_ADDR", redisAddr),
				Password: getEnv("EVENT_BUS_REDIS_PASSWORD", redisPassword),
				DB:       busDB,
			},
			Queue:            getEnv("EVENT_BUS_QUEUE", "user-events"),
			AMQPURL:          os.Getenv("EVENT_BUS_AMQP_URL"),
			Exchange:         getEnv("EVENT_BUS_EXCHANGE", "user-events"),
			PublishTimeoutMS: getEnvAsInt("EVENT_BUS_PUBLISH_TIMEOUT_MS", 2000),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			PrivateKeyPath:            os.Getenv("JWT_PRIVATE_KEY_PATH"),
			PublicKeyPath:             os.Getenv("JWT_PUBLIC_KEY_PATH"),
			Issuer:                    getEnv("JWT_ISSUER", "user-service"),
			Audience:                  getEnv("JWT_AUDIENCE", "user-service-clients"),
			AccessTokenTTLMinutes:     getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15),
			VerificationTokenTTLHours: getEnvAsInt("AUTH_VERIFICATION_TOKEN_TTL_HOURS", 24),
			BcryptCost:                bcryptCost,
		},
		Profile: ProfileConfig{
			DefaultPhoneRegion: strings.ToUpper(getEnv("PROFILE_DEFAULT_PHONE_REGION", "US")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the service cannot start with.
func (c *Config) Validate() error {
	var errs []error
	if c.Auth.PrivateKeyPath == "" {
		errs = append(errs, errors.New("JWT_PRIVATE_KEY_PATH is required"))
	}
	if c.Auth.PublicKeyPath == "" {
		errs = append(errs, errors.New("JWT_PUBLIC_KEY_PATH is required"))
	}
	if c.Auth.AccessTokenTTLMinutes <= 0 {
		errs = append(errs, errors.New("AUTH_ACCESS_TOKEN_TTL_MINUTES must be positive"))
	}
	if c.Auth.VerificationTokenTTLHours <= 0 {
		errs = append(errs, errors.New("AUTH_VERIFICATION_TOKEN_TTL_HOURS must be positive"))
	}
	if c.Cache.DefaultTTLSeconds <= 0 || c.Cache.UserTTLSeconds <= 0 {
		errs = append(errs, errors.New("cache TTLs must be positive"))
	}
	switch c.EventBus.Driver {
	case EventBusRedis, EventBusMemory:
	case EventBusAMQP:
		if c.EventBus.AMQPURL == "" {
			errs = append(errs, errors.New("EVENT_BUS_AMQP_URL is required for the amqp driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown EVENT_BUS_DRIVER %q", c.EventBus.Driver))
	}
	return errors.Join(errs...)
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// DefaultTTL is the cache layer fallback TTL.
func (c CacheConfig) DefaultTTL() time.Duration {
	return time.Duration(c.DefaultTTLSeconds) * time.Second
}

// UserTTL is the TTL written with every per-user entry.
func (c CacheConfig) UserTTL() time.Duration {
	return time.Duration(c.UserTTLSeconds) * time.Second
}

// PublishTimeout bounds a single broker enqueue.
func (e EventBusConfig) PublishTimeout() time.Duration {
	if e.PublishTimeoutMS <= 0 {
		return 2 * time.Second
	}
	return time.Duration(e.PublishTimeoutMS) * time.Millisecond
}

// AccessTokenTTL returns the access token lifetime.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// VerificationTokenTTL returns the email verification token lifetime.
func (a AuthConfig) VerificationTokenTTL() time.Duration {
	return time.Duration(a.VerificationTokenTTLHours) * time.Hour
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
