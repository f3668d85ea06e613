package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/DotZohaib/ShopSphere/internal/service"
	"github.com/kelseyhightower/envconfig"
)

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"

	StoreMongo     = "mongo"
	StoreFirestore = "firestore"
	StoreMemory    = "memory"
)

type Config struct {
	App       AppConfig
	HTTP      HTTPConfig
	Cart      CartConfig
	Mongo     MongoConfig
	Firestore FirestoreConfig
	Redis     RedisConfig
	Catalog   CatalogConfig
	Postgres  PostgresConfig
	Kafka     KafkaConfig
	Checkout  CheckoutConfig
}

// Load reads SHOPSPHERE_* variables from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.Cart.Store {
	case StoreMongo, StoreFirestore, StoreMemory:
	default:
		return fmt.Errorf("unsupported cart store %q", c.Cart.Store)
	}
	if _, err := service.ParseConcurrencyMode(c.Cart.ConcurrencyMode); err != nil {
		return fmt.Errorf("SHOPSPHERE_CART_CONCURRENCY_MODE: %w", err)
	}
	if c.Cart.Store == StoreFirestore && c.Firestore.ProjectID == "" {
		return fmt.Errorf("SHOPSPHERE_FIRESTORE_PROJECT_ID is required for the firestore cart store")
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("SHOPSPHERE_KAFKA_BROKERS is required when kafka is enabled")
	}
	return nil
}

type AppConfig struct {
	Env       string `envconfig:"SHOPSPHERE_APP_ENV" default:"dev"`
	LogLevel  string `envconfig:"SHOPSPHERE_LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"SHOPSPHERE_LOG_FORMAT" default:"json"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type HTTPConfig struct {
	Port            string        `envconfig:"SHOPSPHERE_HTTP_PORT" default:"8080"`
	RequestTimeout  time.Duration `envconfig:"SHOPSPHERE_HTTP_REQUEST_TIMEOUT" default:"30s"`
	ReadTimeout     time.Duration `envconfig:"SHOPSPHERE_HTTP_READ_TIMEOUT" default:"10s"`
	WriteTimeout    time.Duration `envconfig:"SHOPSPHERE_HTTP_WRITE_TIMEOUT" default:"10s"`
	IdleTimeout     time.Duration `envconfig:"SHOPSPHERE_HTTP_IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `envconfig:"SHOPSPHERE_HTTP_SHUTDOWN_TIMEOUT" default:"10s"`
	MaxBodyBytes    int64         `envconfig:"SHOPSPHERE_HTTP_MAX_BODY_BYTES" default:"1048576"`
	SecureCookies   bool          `envconfig:"SHOPSPHERE_HTTP_SECURE_COOKIES" default:"false"`
}

type CartConfig struct {
	Store           string        `envconfig:"SHOPSPHERE_CART_STORE" default:"mongo"`
	ConcurrencyMode string        `envconfig:"SHOPSPHERE_CART_CONCURRENCY_MODE" default:"optimistic"`
	CacheTTL        time.Duration `envconfig:"SHOPSPHERE_CART_CACHE_TTL" default:"15m"`
	CacheEnabled    bool          `envconfig:"SHOPSPHERE_CART_CACHE_ENABLED" default:"true"`
}

type MongoConfig struct {
	URI                    string        `envconfig:"SHOPSPHERE_MONGO_URI" default:"mongodb://localhost:27017"`
	Database               string        `envconfig:"SHOPSPHERE_MONGO_DB_NAME" default:"cartdb"`
	ConnectTimeout         time.Duration `envconfig:"SHOPSPHERE_MONGO_CONNECT_TIMEOUT" default:"10s"`
	ServerSelectionTimeout time.Duration `envconfig:"SHOPSPHERE_MONGO_SERVER_SELECTION_TIMEOUT" default:"5s"`
	MaxPoolSize            uint64        `envconfig:"SHOPSPHERE_MONGO_MAX_POOL_SIZE" default:"100"`
	MinPoolSize            uint64        `envconfig:"SHOPSPHERE_MONGO_MIN_POOL_SIZE" default:"10"`
}

type FirestoreConfig struct {
	ProjectID  string `envconfig:"SHOPSPHERE_FIRESTORE_PROJECT_ID"`
	Collection string `envconfig:"SHOPSPHERE_FIRESTORE_COLLECTION" default:"carts"`
}

type RedisConfig struct {
	Address      string        `envconfig:"SHOPSPHERE_REDIS_ADDR" default:"localhost:6379"`
	Password     string        `envconfig:"SHOPSPHERE_REDIS_PASSWORD"`
	DB           int           `envconfig:"SHOPSPHERE_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"SHOPSPHERE_REDIS_POOL_SIZE" default:"10"`
	DialTimeout  time.Duration `envconfig:"SHOPSPHERE_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"SHOPSPHERE_REDIS_READ_TIMEOUT" default:"3s"`
	WriteTimeout time.Duration `envconfig:"SHOPSPHERE_REDIS_WRITE_TIMEOUT" default:"3s"`
}

type CatalogConfig struct {
	DBPath                  string        `envconfig:"SHOPSPHERE_CATALOG_DB_PATH" default:"./data/catalog.db"`
	MigrationsPath          string        `envconfig:"SHOPSPHERE_CATALOG_MIGRATIONS_PATH" default:"./internal/catalog/migrations"`
	BreakerMaxFailures      uint32        `envconfig:"SHOPSPHERE_CATALOG_BREAKER_MAX_FAILURES" default:"5"`
	BreakerOpenTimeout      time.Duration `envconfig:"SHOPSPHERE_CATALOG_BREAKER_OPEN_TIMEOUT" default:"30s"`
	BreakerHalfOpenRequests uint32        `envconfig:"SHOPSPHERE_CATALOG_BREAKER_HALF_OPEN_REQUESTS" default:"1"`
}

type PostgresConfig struct {
	Host           string `envconfig:"SHOPSPHERE_POSTGRES_HOST" default:"localhost"`
	Port           int    `envconfig:"SHOPSPHERE_POSTGRES_PORT" default:"5432"`
	User           string `envconfig:"SHOPSPHERE_POSTGRES_USER" default:"postgres"`
	Password       string `envconfig:"SHOPSPHERE_POSTGRES_PASSWORD" default:"postgres"`
	DBName         string `envconfig:"SHOPSPHERE_POSTGRES_DB" default:"orders"`
	SSLMode        string `envconfig:"SHOPSPHERE_POSTGRES_SSLMODE" default:"disable"`
	MigrationsPath string `envconfig:"SHOPSPHERE_POSTGRES_MIGRATIONS_PATH" default:"./internal/orders/migrations"`
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"SHOPSPHERE_KAFKA_ENABLED" default:"true"`
	Brokers []string `envconfig:"SHOPSPHERE_KAFKA_BROKERS" default:"localhost:9092"`
	Topic   string   `envconfig:"SHOPSPHERE_KAFKA_TOPIC" default:"checkout-completed"`
	GroupID string   `envconfig:"SHOPSPHERE_KAFKA_GROUP_ID" default:"cart-cleaner"`
}

type CheckoutConfig struct {
	IdempotencyTTL time.Duration `envconfig:"SHOPSPHERE_CHECKOUT_IDEMPOTENCY_TTL" default:"24h"`
}
