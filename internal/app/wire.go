package app

import (
	"context"
	"crypto/rsa"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polysim/internal/blob/s3"
	"github.com/alanyoungcy/polysim/internal/cache/redis"
	"github.com/alanyoungcy/polysim/internal/config"
	"github.com/alanyoungcy/polysim/internal/crypto"
	"github.com/alanyoungcy/polysim/internal/domain"
	"github.com/alanyoungcy/polysim/internal/notify"
	"github.com/alanyoungcy/polysim/internal/store/postgres"
)

// Dependencies holds the wired infrastructure. Optional backends are nil
// when disabled in config; callers must check before use.
type Dependencies struct {
	RunStore  domain.RunStore
	FillStore domain.FillStore
	Bus       domain.SnapshotBus
	Archiver  domain.Blob
	Notifier  domain.Notifier
	KalshiKey *rsa.PrivateKey

	cleanup []func()
}

// Wire connects the enabled backends in dependency order and returns a
// Dependencies whose Close unwinds them in reverse.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	deps := &Dependencies{}

	if cfg.Postgres.Enabled {
		client, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("wire postgres: %w", err)
		}
		deps.cleanup = append(deps.cleanup, client.Close)

		if cfg.Postgres.RunMigrations {
			if err := client.RunMigrations(ctx); err != nil {
				deps.Close()
				return nil, fmt.Errorf("wire postgres: %w", err)
			}
		}
		deps.RunStore = postgres.NewRunStore(client)
		deps.FillStore = postgres.NewFillStore(client)
		logger.Info("postgres connected")
	}

	if cfg.Redis.Enabled {
		client, err := redis.New(ctx, redis.ClientConfig{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("wire redis: %w", err)
		}
		deps.cleanup = append(deps.cleanup, func() { _ = client.Close() })
		deps.Bus = redis.NewSnapshotBus(client)
		logger.Info("redis connected")
	}

	if cfg.Simulator.ArchiveToS3 {
		client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("wire s3: %w", err)
		}
		if err := client.Health(ctx); err != nil {
			deps.Close()
			return nil, fmt.Errorf("wire s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(client)
		logger.Info("s3 archive enabled", slog.String("bucket", cfg.S3.Bucket))
	}

	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewMulti(logger, senders...)

	if cfg.Kalshi.RsaPrivateKeyPath != "" || cfg.Kalshi.EncryptedKeyPath != "" {
		key, err := crypto.LoadSigningKey(crypto.KeyConfig{
			KeyPath:          cfg.Kalshi.RsaPrivateKeyPath,
			EncryptedKeyPath: cfg.Kalshi.EncryptedKeyPath,
			KeyPassword:      cfg.Kalshi.KeyPassword,
		})
		if err != nil {
			deps.Close()
			return nil, fmt.Errorf("wire kalshi key: %w", err)
		}
		deps.KalshiKey = key
	}

	return deps, nil
}

// Close unwinds the cleanup stack in reverse order.
func (d *Dependencies) Close() {
	for i := len(d.cleanup) - 1; i >= 0; i-- {
		d.cleanup[i]()
	}
	d.cleanup = nil
}
