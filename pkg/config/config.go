package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App      AppConfig
	DB       DBConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Square   SquareConfig
	GCP      GCPConfig
	PubSub   PubSubConfig
	Hub      HubConfig
	Voice    VoiceConfig
	Checkout CheckoutConfig
	Outbox   OutboxConfig
	Features FeatureFlagsConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env            string   `envconfig:"MESA_APP_ENV" required:"true"`
	Port           string   `envconfig:"MESA_APP_PORT" required:"true"`
	LogLevel       string   `envconfig:"MESA_LOG_LEVEL" default:"info"`
	LogWarnStack   bool     `envconfig:"MESA_LOG_WARN_STACK" default:"false"`
	AllowedOrigins []string `envconfig:"MESA_APP_ALLOWED_ORIGINS"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

type DBConfig struct {
	DSN    string `envconfig:"MESA_DB_DSN"`
	Driver string `envconfig:"MESA_DB_DRIVER" default:"postgres"`

	Host     string `envconfig:"MESA_DB_HOST"`
	Port     int    `envconfig:"MESA_DB_PORT" default:"5432"`
	User     string `envconfig:"MESA_DB_USER"`
	Password string `envconfig:"MESA_DB_PASSWORD"`
	Name     string `envconfig:"MESA_DB_NAME"`
	SSLMode  string `envconfig:"MESA_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"MESA_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"MESA_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"MESA_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"MESA_DB_CONN_MAX_IDLE_TIME" default:"10m"`
}

type RedisConfig struct {
	URL          string        `envconfig:"MESA_REDIS_URL" required:"true"`
	Address      string        `envconfig:"MESA_REDIS_ADDR"`
	Password     string        `envconfig:"MESA_REDIS_PASSWORD"`
	DB           int           `envconfig:"MESA_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"MESA_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"MESA_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"MESA_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"MESA_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"MESA_REDIS_WRITE_TIMEOUT" default:"5s"`
}

// JWTConfig governs capability token verification. Tokens are minted by the
// platform's identity service; this core only needs the shared secret and
// issuer to validate them.
type JWTConfig struct {
	Secret            string `envconfig:"MESA_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"MESA_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"MESA_JWT_EXPIRATION_MINUTES" default:"720"`
}

type SquareConfig struct {
	AccessToken string `envconfig:"MESA_SQUARE_ACCESS_TOKEN"`
	Env         string `envconfig:"MESA_SQUARE_ENV" default:"sandbox"`
	LocationID  string `envconfig:"MESA_SQUARE_LOCATION_ID"`
}

// Environment returns the normalized Square environment (sandbox/production).
func (s SquareConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "sandbox"
	}
	return env
}

type GCPConfig struct {
	ProjectID string `envconfig:"MESA_GCP_PROJECT_ID" required:"true"`
}

type PubSubConfig struct {
	EventsTopic        string `envconfig:"MESA_PUBSUB_EVENTS_TOPIC" default:"mesa-tenant-events"`
	EventsSubscription string `envconfig:"MESA_PUBSUB_EVENTS_SUBSCRIPTION" required:"true"`
}

type HubConfig struct {
	HeartbeatInterval time.Duration `envconfig:"MESA_HUB_HEARTBEAT_INTERVAL" default:"30s"`
	HeartbeatMisses   int           `envconfig:"MESA_HUB_HEARTBEAT_MISSES" default:"2"`
	SendQueueSize     int           `envconfig:"MESA_HUB_SEND_QUEUE_SIZE" default:"32"`
	WriteTimeout      time.Duration `envconfig:"MESA_HUB_WRITE_TIMEOUT" default:"10s"`
}

type VoiceConfig struct {
	CreditLimit    int           `envconfig:"MESA_VOICE_CREDIT_LIMIT" default:"3"`
	BufferCapBytes int           `envconfig:"MESA_VOICE_BUFFER_CAP_BYTES" default:"1048576"`
	IdleTimeout    time.Duration `envconfig:"MESA_VOICE_IDLE_TIMEOUT" default:"30s"`
	MaxChunkBytes  int           `envconfig:"MESA_VOICE_MAX_CHUNK_BYTES" default:"65536"`
	NLUEndpoint    string        `envconfig:"MESA_VOICE_NLU_ENDPOINT"`
	NLUTimeout     time.Duration `envconfig:"MESA_VOICE_NLU_TIMEOUT" default:"10s"`
}

type CheckoutConfig struct {
	PollInterval   time.Duration `envconfig:"MESA_CHECKOUT_POLL_INTERVAL" default:"2s"`
	PollTimeout    time.Duration `envconfig:"MESA_CHECKOUT_POLL_TIMEOUT" default:"5m"`
	ToleranceCents int           `envconfig:"MESA_CHECKOUT_AMOUNT_TOLERANCE_CENTS" default:"1"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"MESA_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"MESA_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"MESA_OUTBOX_MAX_ATTEMPTS" default:"10"`
	IdempotencyTTL time.Duration `envconfig:"MESA_OUTBOX_IDEMPOTENCY_TTL" default:"24h"`
}

type FeatureFlagsConfig struct {
	AutoMigrate bool `envconfig:"MESA_AUTO_MIGRATE" default:"false"`
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	missing := []string{}
	values := map[string]string{
		EnvDBHost: db.Host,
		EnvDBUser: db.User,
		EnvDBName: db.Name,
	}
	for _, env := range requiredDBEnvVars {
		if values[env] == "" {
			missing = append(missing, env)
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.User)
	if db.Password != "" {
		userInfo = url.UserPassword(db.User, db.Password)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.Host, db.Port),
		Path:   db.Name,
	}

	if db.SSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.SSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
