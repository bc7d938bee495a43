// Package bootstrap builds the storefront runtime from configuration. All
// binaries share it so they agree on backends.
package bootstrap

import (
	"context"
	"crypto/rsa"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gitaditya567/itskillhub/internal/app"
	"github.com/gitaditya567/itskillhub/internal/config"
	"github.com/gitaditya567/itskillhub/internal/payment"
	"github.com/gitaditya567/itskillhub/pkg/events"
	"github.com/gitaditya567/itskillhub/pkg/storage"
	"github.com/gitaditya567/itskillhub/pkg/store"
)

const eventsStreamMaxLen = 100000

// Runtime holds the constructed backends.
type Runtime struct {
	App       *app.App
	Store     store.Store
	Artifacts storage.ArtifactStore
	// Redis is nil when no redisAddr is configured.
	Redis *redis.Client

	closers []func() error
}

// New connects every configured backend and builds the App.
func New(ctx context.Context, cfg config.FileConfig) (*Runtime, error) {
	rt := &Runtime{}
	fail := func(err error) (*Runtime, error) {
		_ = rt.Close()
		return nil, err
	}

	sessionTTL, err := config.ParseSessionTTL(cfg.SessionTTL)
	if err != nil {
		return fail(err)
	}
	if err := rt.openStore(cfg); err != nil {
		return fail(err)
	}
	if err := rt.openArtifacts(cfg); err != nil {
		return fail(err)
	}
	if err := rt.openRedis(ctx, cfg); err != nil {
		return fail(err)
	}
	sessions, err := rt.sessions(cfg, sessionTTL)
	if err != nil {
		return fail(err)
	}
	gateway, err := payment.NewClient(cfg.RazorpayBaseURL, cfg.RazorpayKeyID, cfg.RazorpayKeySecret)
	if err != nil {
		return fail(fmt.Errorf("init payment gateway: %w", err))
	}
	publisher, err := rt.publisher(cfg)
	if err != nil {
		return fail(err)
	}
	rt.App, err = app.New(app.Config{
		Store:       rt.Store,
		Sessions:    sessions,
		Artifacts:   rt.Artifacts,
		Payments:    gateway,
		Events:      publisher,
		Currency:    cfg.Currency,
		ProductName: cfg.ProductName,
	})
	if err != nil {
		return fail(err)
	}
	return rt, nil
}

// Close releases backends in reverse order of creation.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func (rt *Runtime) openStore(cfg config.FileConfig) error {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		slog.Warn("databaseURL not set; using in-memory store, data is lost on restart")
		rt.Store = store.NewMemoryStore()
		return nil
	}
	db, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	rt.Store = db
	rt.closers = append(rt.closers, db.Close)
	return nil
}

func (rt *Runtime) openArtifacts(cfg config.FileConfig) error {
	switch cfg.StorageBackend {
	case config.StorageMinio:
		m, err := storage.NewMinioStore(cfg.MinioEndpoint, cfg.MinioAccessKey, cfg.MinioSecretKey, cfg.MinioBucket, cfg.MinioUseSSL)
		if err != nil {
			return fmt.Errorf("init minio storage: %w", err)
		}
		rt.Artifacts = m
	default:
		f, err := storage.NewFileStore(cfg.DataDir)
		if err != nil {
			return fmt.Errorf("init file storage: %w", err)
		}
		rt.Artifacts = f
	}
	return nil
}

func (rt *Runtime) openRedis(ctx context.Context, cfg config.FileConfig) error {
	if strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return fmt.Errorf("connect redis: %w", err)
	}
	rt.Redis = client
	rt.closers = append(rt.closers, client.Close)
	return nil
}

func (rt *Runtime) sessions(cfg config.FileConfig, ttl time.Duration) (*store.JWTSessionStore, error) {
	var (
		signing *rsa.PrivateKey
		err     error
	)
	if path := strings.TrimSpace(cfg.JWTPrivateKeyPath); path != "" {
		signing, err = store.LoadRSAPrivateKey(path)
		if err != nil {
			return nil, fmt.Errorf("load jwt signing key: %w", err)
		}
	} else {
		slog.Warn("jwtPrivateKeyPath not set; using an ephemeral signing key, sessions end on restart")
		if signing, err = store.GenerateRSAKey(); err != nil {
			return nil, err
		}
	}
	verify := make(map[string]*rsa.PublicKey, len(cfg.JWTVerifyPublicKeys))
	for kid, path := range cfg.JWTVerifyPublicKeys {
		pub, err := store.LoadRSAPublicKey(path)
		if err != nil {
			return nil, fmt.Errorf("load jwt verify key %q: %w", kid, err)
		}
		verify[kid] = pub
	}
	var revoker store.TokenRevoker = store.NewMemoryTokenRevoker()
	if rt.Redis != nil {
		revoker = store.NewRedisTokenRevoker(rt.Redis, ttl)
	}
	return store.NewJWTSessionStore(store.JWTConfig{
		SigningKey: signing,
		KeyID:      cfg.JWTKeyID,
		VerifyKeys: verify,
		TTL:        ttl,
		Revoker:    revoker,
		Issuer:     cfg.JWTIssuer,
		Audience:   cfg.JWTAudience,
	})
}

func (rt *Runtime) publisher(cfg config.FileConfig) (events.Publisher, error) {
	switch cfg.EventsBackend {
	case config.EventsRedis:
		if rt.Redis == nil {
			return nil, errors.New("redis events backend needs redisAddr")
		}
		p, err := events.NewRedisPublisher(rt.Redis, events.RedisConfig{Stream: cfg.EventsStream, MaxLen: eventsStreamMaxLen})
		if err != nil {
			return nil, fmt.Errorf("init redis events: %w", err)
		}
		return p, nil
	case config.EventsAMQP:
		p, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
		if err != nil {
			return nil, fmt.Errorf("init amqp events: %w", err)
		}
		rt.closers = append(rt.closers, p.Close)
		return p, nil
	default:
		return events.Nop{}, nil
	}
}
