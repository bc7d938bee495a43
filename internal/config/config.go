package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location; override with STOREFRONT_CONFIG.
var ConfigPath = "config.yaml"

const (
	StorageFile  = "file"
	StorageMinio = "minio"

	EventsNone  = "none"
	EventsRedis = "redis"
	EventsAMQP  = "amqp"
)

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	DatabaseURL string `yaml:"databaseURL"`

	StorageBackend string `yaml:"storageBackend"`
	DataDir        string `yaml:"dataDir"`
	MinioEndpoint  string `yaml:"minioEndpoint"`
	MinioAccessKey string `yaml:"minioAccessKey"`
	MinioSecretKey string `yaml:"minioSecretKey"`
	MinioBucket    string `yaml:"minioBucket"`
	MinioUseSSL    bool   `yaml:"minioUseSSL"`

	RedisAddr     string `yaml:"redisAddr"`
	RedisPassword string `yaml:"redisPassword"`

	JWTPrivateKeyPath string `yaml:"jwtPrivateKeyPath"`
	JWTKeyID          string `yaml:"jwtKeyId"`
	// JWTVerifyPublicKeys maps retired key ids to PEM public key paths that
	// are still accepted during rotation.
	JWTVerifyPublicKeys map[string]string `yaml:"jwtVerifyPublicKeys"`
	JWTIssuer           string            `yaml:"jwtIssuer"`
	JWTAudience         string            `yaml:"jwtAudience"`
	SessionTTL          string            `yaml:"sessionTTL"`

	RazorpayKeyID     string `yaml:"razorpayKeyId"`
	RazorpayKeySecret string `yaml:"razorpayKeySecret"`
	RazorpayBaseURL   string `yaml:"razorpayBaseURL"`
	Currency          string `yaml:"currency"`
	ProductName       string `yaml:"productName"`

	MaxUploadBytes             int64    `yaml:"maxUploadBytes"`
	CORSAllowedOrigins         []string `yaml:"corsAllowedOrigins"`
	TrustedProxyCIDRs          []string `yaml:"trustedProxyCidrs"`
	LoginRateLimitPerMinute    int      `yaml:"loginRateLimitPerMinute"`
	RegisterRateLimitPerMinute int      `yaml:"registerRateLimitPerMinute"`

	EventsBackend string `yaml:"eventsBackend"`
	EventsStream  string `yaml:"eventsStream"`
	AMQPURL       string `yaml:"amqpURL"`
	AMQPExchange  string `yaml:"amqpExchange"`
}

// Load reads an optional .env, then the YAML file at path (ConfigPath when
// empty), then applies environment overrides, defaults and validation.
func Load(path string) (FileConfig, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return FileConfig{}, fmt.Errorf("load .env: %w", err)
	}
	if path == "" {
		path = os.Getenv("STOREFRONT_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	cfg := FileConfig{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// env-only deployments are allowed
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) error {
	strs := map[string]*string{
		"PORT":                      &cfg.Port,
		"LOG_LEVEL":                 &cfg.LogLevel,
		"DATABASE_URL":              &cfg.DatabaseURL,
		"STORAGE_BACKEND":           &cfg.StorageBackend,
		"DATA_DIR":                  &cfg.DataDir,
		"MINIO_ENDPOINT":            &cfg.MinioEndpoint,
		"MINIO_ACCESS_KEY":          &cfg.MinioAccessKey,
		"MINIO_SECRET_KEY":          &cfg.MinioSecretKey,
		"MINIO_BUCKET":              &cfg.MinioBucket,
		"REDIS_ADDR":                &cfg.RedisAddr,
		"REDIS_PASSWORD":            &cfg.RedisPassword,
		"JWT_PRIVATE_KEY_PATH":      &cfg.JWTPrivateKeyPath,
		"JWT_KEY_ID":                &cfg.JWTKeyID,
		"JWT_ISSUER":                &cfg.JWTIssuer,
		"JWT_AUDIENCE":              &cfg.JWTAudience,
		"SESSION_TTL":               &cfg.SessionTTL,
		"RAZORPAY_KEY_ID":           &cfg.RazorpayKeyID,
		"RAZORPAY_KEY_SECRET":       &cfg.RazorpayKeySecret,
		"RAZORPAY_BASE_URL":         &cfg.RazorpayBaseURL,
		"STOREFRONT_CURRENCY":       &cfg.Currency,
		"STOREFRONT_PRODUCT_NAME":   &cfg.ProductName,
		"STOREFRONT_EVENTS_BACKEND": &cfg.EventsBackend,
		"STOREFRONT_EVENTS_STREAM":  &cfg.EventsStream,
		"AMQP_URL":                  &cfg.AMQPURL,
		"STOREFRONT_AMQP_EXCHANGE":  &cfg.AMQPExchange,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
			*dst = strings.TrimSpace(v)
		}
	}
	ints := map[string]*int{
		"STOREFRONT_LOGIN_RATE_LIMIT_PER_MINUTE":    &cfg.LoginRateLimitPerMinute,
		"STOREFRONT_REGISTER_RATE_LIMIT_PER_MINUTE": &cfg.RegisterRateLimitPerMinute,
	}
	for key, dst := range ints {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("config: %s: %w", key, err)
			}
			*dst = n
		}
	}
	if v := strings.TrimSpace(os.Getenv("STOREFRONT_MAX_UPLOAD_BYTES")); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("config: STOREFRONT_MAX_UPLOAD_BYTES: %w", err)
		}
		cfg.MaxUploadBytes = n
	}
	if v := strings.TrimSpace(os.Getenv("MINIO_USE_SSL")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: MINIO_USE_SSL: %w", err)
		}
		cfg.MinioUseSSL = b
	}
	if v := os.Getenv("STOREFRONT_CORS_ALLOWED_ORIGINS"); v != "" {
		cfg.CORSAllowedOrigins = splitCSV(v)
	}
	if v := os.Getenv("STOREFRONT_TRUSTED_PROXY_CIDRS"); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	return nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = StorageFile
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "./data"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "720h"
	}
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}
	if cfg.ProductName == "" {
		cfg.ProductName = "IT SkillHub"
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = 50 << 20
	}
	if cfg.EventsBackend == "" {
		cfg.EventsBackend = EventsNone
	}
	if cfg.EventsStream == "" {
		cfg.EventsStream = "storefront:events"
	}
	if cfg.AMQPExchange == "" {
		cfg.AMQPExchange = "storefront.events"
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml or PORT)")
	}
	switch cfg.StorageBackend {
	case StorageFile:
	case StorageMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioAccessKey == "" || cfg.MinioSecretKey == "" || cfg.MinioBucket == "" {
			return errors.New("config: minio storage needs minioEndpoint, minioAccessKey, minioSecretKey and minioBucket")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q", cfg.StorageBackend)
	}
	if cfg.RazorpayKeyID == "" || cfg.RazorpayKeySecret == "" {
		return errors.New("config: razorpayKeyId and razorpayKeySecret are required")
	}
	if len(cfg.JWTVerifyPublicKeys) > 0 && cfg.JWTPrivateKeyPath == "" {
		return errors.New("config: jwtVerifyPublicKeys needs jwtPrivateKeyPath")
	}
	if _, err := ParseSessionTTL(cfg.SessionTTL); err != nil {
		return err
	}
	if cfg.MaxUploadBytes < 0 {
		return errors.New("config: maxUploadBytes must be >= 0")
	}
	if cfg.LoginRateLimitPerMinute < 0 || cfg.RegisterRateLimitPerMinute < 0 {
		return errors.New("config: rate limits must be >= 0")
	}
	if (cfg.LoginRateLimitPerMinute > 0 || cfg.RegisterRateLimitPerMinute > 0) && cfg.RedisAddr == "" {
		return errors.New("config: redisAddr is required when rate limits are enabled")
	}
	switch cfg.EventsBackend {
	case EventsNone:
	case EventsRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis events backend")
		}
	case EventsAMQP:
		if cfg.AMQPURL == "" {
			return errors.New("config: amqpURL is required for the amqp events backend")
		}
	default:
		return fmt.Errorf("config: unknown eventsBackend %q", cfg.EventsBackend)
	}
	return nil
}

// ParseSessionTTL parses the session lifetime, e.g. "720h".
func ParseSessionTTL(raw string) (time.Duration, error) {
	ttl, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("config: invalid sessionTTL %q: %w", raw, err)
	}
	if ttl <= 0 {
		return 0, fmt.Errorf("config: sessionTTL must be positive, got %q", raw)
	}
	return ttl, nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
