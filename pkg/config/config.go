package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config aggregates every environment-driven setting used by the binaries.
type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	Storage      StorageConfig
	PubSub       PubSubConfig
	Outbox       OutboxConfig
	Catalog      CatalogConfig
	Uploads      UploadsConfig
	Cron         CronConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.FeatureFlags.UseSQLite {
		cfg.DB.Driver = DBDriverSQLite
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	if err := cfg.Storage.validate(cfg.GCS); err != nil {
		return nil, err
	}
	if err := cfg.Outbox.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string   `envconfig:"CERTIFY_APP_ENV" required:"true"`
	Port         string   `envconfig:"CERTIFY_APP_PORT" required:"true"`
	LogLevel     string   `envconfig:"CERTIFY_LOG_LEVEL" default:"info"`
	LogWarnStack bool     `envconfig:"CERTIFY_LOG_WARN_STACK" default:"false"`
	LogFormat    string   `envconfig:"CERTIFY_LOG_FORMAT" default:"json"`
	CORSOrigins  []string `envconfig:"CERTIFY_CORS_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type ServiceConfig struct {
	Kind string `envconfig:"CERTIFY_SERVICE_KIND" default:"api"`

	// MetricsAddr exposes /metrics from the worker binaries; empty disables it.
	MetricsAddr string `envconfig:"CERTIFY_METRICS_ADDR"`
}

type DBConfig struct {
	DSN    string `envconfig:"CERTIFY_DB_DSN"`
	Driver string `envconfig:"CERTIFY_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"CERTIFY_DB_HOST"`
	LegacyPort     int    `envconfig:"CERTIFY_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"CERTIFY_DB_USER"`
	LegacyPassword string `envconfig:"CERTIFY_DB_PASSWORD"`
	LegacyName     string `envconfig:"CERTIFY_DB_NAME"`
	LegacySSLMode  string `envconfig:"CERTIFY_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"CERTIFY_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"CERTIFY_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"CERTIFY_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"CERTIFY_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

// IsSQLite reports whether the sqlite dialector should be used.
func (db DBConfig) IsSQLite() bool {
	return strings.EqualFold(db.Driver, DBDriverSQLite)
}

type RedisConfig struct {
	URL          string        `envconfig:"CERTIFY_REDIS_URL"`
	Address      string        `envconfig:"CERTIFY_REDIS_ADDR"`
	Password     string        `envconfig:"CERTIFY_REDIS_PASSWORD"`
	DB           int           `envconfig:"CERTIFY_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"CERTIFY_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"CERTIFY_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"CERTIFY_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"CERTIFY_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"CERTIFY_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig configures verification of identity tokens issued by the auth provider.
type JWTConfig struct {
	Secret            string `envconfig:"CERTIFY_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"CERTIFY_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"CERTIFY_JWT_EXPIRATION_MINUTES" default:"60"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"CERTIFY_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"CERTIFY_AUTO_MIGRATE" default:"false"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"CERTIFY_GCP_PROJECT_ID"`
	CredentialsJSON        string `envconfig:"CERTIFY_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"CERTIFY_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName     string        `envconfig:"CERTIFY_GCS_BUCKET_NAME"`
	RequestTimeout time.Duration `envconfig:"CERTIFY_GCS_REQUEST_TIMEOUT" default:"30s"`
}

// StorageConfig selects the attachment object store driver.
type StorageConfig struct {
	Driver   string `envconfig:"CERTIFY_STORAGE_DRIVER" default:"gcs"`
	LocalDir string `envconfig:"CERTIFY_STORAGE_LOCAL_DIR" default:"./var/storage"`
}

func (s StorageConfig) validate(gcs GCSConfig) error {
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case StorageDriverGCS:
		if strings.TrimSpace(gcs.BucketName) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvGCSBucket, EnvStorageDriver, StorageDriverGCS)
		}
	case StorageDriverLocal:
		if strings.TrimSpace(s.LocalDir) == "" {
			return fmt.Errorf("%s is required when %s=%s", EnvStorageLocalDir, EnvStorageDriver, StorageDriverLocal)
		}
	default:
		return fmt.Errorf("unsupported storage driver %q", s.Driver)
	}
	return nil
}

type PubSubConfig struct {
	CertificationsTopic string `envconfig:"CERTIFY_PUBSUB_CERTIFICATIONS_TOPIC" default:"certification-events"`
}

type OutboxConfig struct {
	BatchSize      int `envconfig:"CERTIFY_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int `envconfig:"CERTIFY_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int `envconfig:"CERTIFY_OUTBOX_MAX_ATTEMPTS" default:"10"`
	RetentionDays  int `envconfig:"CERTIFY_OUTBOX_RETENTION_DAYS" default:"30"`
}

// CatalogConfig points to an optional YAML file overriding the embedded reference data.
type CatalogConfig struct {
	Path string `envconfig:"CERTIFY_CATALOG_PATH"`
}

type UploadsConfig struct {
	MaxRequestMB       int `envconfig:"CERTIFY_UPLOAD_MAX_REQUEST_MB" default:"64"`
	RateLimitPerMinute int `envconfig:"CERTIFY_UPLOAD_RATE_LIMIT_PER_MINUTE" default:"30"`
}

// MaxRequestBytes returns the multipart body ceiling in bytes.
func (u UploadsConfig) MaxRequestBytes() int64 {
	if u.MaxRequestMB <= 0 {
		return 64 << 20
	}
	return int64(u.MaxRequestMB) << 20
}

type CronConfig struct {
	Interval       time.Duration `envconfig:"CERTIFY_CRON_INTERVAL" default:"1h"`
	JobTimeout     time.Duration `envconfig:"CERTIFY_CRON_JOB_TIMEOUT" default:"10m"`
	StaleDraftDays int           `envconfig:"CERTIFY_CRON_STALE_DRAFT_DAYS" default:"180"`
}

// ensureDSN fills DSN from the discrete CERTIFY_DB_* variables when no DSN is set.
func (db *DBConfig) ensureDSN() error {
	switch {
	case db.DSN != "":
		return nil
	case db.IsSQLite():
		db.DSN = "file:certifications.db?cache=shared"
		return nil
	}

	var missing []string
	for env, value := range map[string]string{EnvDBHost: db.LegacyHost, EnvDBUser: db.LegacyUser, EnvDBName: db.LegacyName} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	user := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		user = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}
	dsn := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(db.LegacyHost, strconv.Itoa(db.LegacyPort)),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		dsn.RawQuery = url.Values{"sslmode": {db.LegacySSLMode}}.Encode()
	}
	db.DSN = dsn.String()
	return nil
}

func (o OutboxConfig) validate() error {
	if o.BatchSize < 0 || o.PollIntervalMS < 0 || o.MaxAttempts < 0 || o.RetentionDays < 0 {
		return errors.New("outbox settings must not be negative")
	}
	return nil
}
