package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/collabkale/kaledao/internal/blob/s3"
	"github.com/collabkale/kaledao/internal/cache/redis"
	"github.com/collabkale/kaledao/internal/config"
	"github.com/collabkale/kaledao/internal/crypto"
	"github.com/collabkale/kaledao/internal/domain"
	"github.com/collabkale/kaledao/internal/notify"
	"github.com/collabkale/kaledao/internal/oracle/reflector"
	"github.com/collabkale/kaledao/internal/platform/kale"
	"github.com/collabkale/kaledao/internal/service"
	"github.com/collabkale/kaledao/internal/store/postgres"
	"github.com/collabkale/kaledao/internal/worker"
)

// Dependencies bundles everything the application modes need. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Tx domain.TxRunner

	PriceCache  domain.PriceCache
	LockManager domain.LockManager

	Oracle domain.PriceOracle
	Token  domain.TokenClient
	Signer *crypto.Signer

	Admin       *service.AdminService
	Teams       *service.TeamService
	Stakes      *service.StakeService
	Predictions *service.PredictionService
	Rewards     *service.RewardService

	Resolver *worker.Resolver
	Archiver *s3blob.Archiver
	Notifier *notify.Notifier
}

// needsRelayer reports whether the mode moves funds and therefore needs the
// relayer key and a live token client.
func needsRelayer(mode string) bool {
	return mode == "daemon" || mode == "resolve"
}

// needsS3 reports whether the mode requires object storage.
func needsS3(mode string) bool {
	return mode == "archive"
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
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
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}
	deps.Tx = postgres.NewTxRunner(pgClient.Pool())

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.PriceCache = redis.NewPriceCache(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)

	// --- Oracle ---
	var oracleOpts []reflector.Option
	if cfg.Oracle.RateLimit > 0 {
		oracleOpts = append(oracleOpts, reflector.WithRateLimit(
			redis.NewRateLimiter(redisClient), cfg.Oracle.RateLimit, cfg.Oracle.RateWindow.Duration))
	}
	rawOracle := reflector.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, oracleOpts...)
	deps.Oracle = reflector.NewCachedOracle(rawOracle, deps.PriceCache, cfg.Oracle.MaxStaleness.Duration, logger)

	// --- Relayer key and token client ---
	if needsRelayer(cfg.Mode) {
		keyHex, err := crypto.LoadRelayerKey(crypto.KeySource{
			RawKey:        cfg.DAO.RelayerKey,
			EncryptedPath: cfg.DAO.EncryptedKeyPath,
			Password:      cfg.DAO.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: relayer key: %w", err)
		}
		deps.Signer, err = crypto.NewSigner(keyHex)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: relayer signer: %w", err)
		}

		tokenClient, err := kale.NewClient(kale.ClientConfig{
			RPCURL:      cfg.Chain.RPCURL,
			ChainID:     int64(cfg.Chain.ChainID),
			CallTimeout: cfg.Chain.CallTimeout.Duration,
		}, deps.Signer, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: kale token client: %w", err)
		}
		closers = append(closers, tokenClient.Close)
		deps.Token = tokenClient
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Services ---
	verifier := crypto.NewVerifier()
	deps.Admin = service.NewAdminService(deps.Tx, verifier, logger)
	deps.Teams = service.NewTeamService(deps.Tx, verifier, logger)
	deps.Stakes = service.NewStakeService(deps.Tx, verifier, deps.Token, logger)
	deps.Predictions = service.NewPredictionService(
		deps.Tx, verifier, deps.Oracle, deps.LockManager, cfg.Resolver.LockTTL.Duration, logger)
	deps.Rewards = service.NewRewardService(deps.Tx, verifier, deps.Token, deps.Notifier, logger)

	// --- Background resolver ---
	if cfg.Resolver.Enabled {
		deps.Resolver = worker.NewResolver(worker.ResolverConfig{
			Interval:  cfg.Resolver.Interval.Duration,
			MinAge:    cfg.Resolver.MinAge.Duration,
			BatchSize: cfg.Resolver.BatchSize,
		}, deps.Tx, deps.Predictions, deps.Notifier, logger)
	}

	// --- S3 archival ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		deps.Archiver = s3blob.NewArchiver(s3blob.NewWriter(s3Client), deps.Tx, logger)
	}

	return deps, cleanup, nil
}
