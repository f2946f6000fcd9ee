package main

import (
	"context"
	"flag"
	"time"

	"go.uber.org/zap"

	"journalmail/internal/correlate"
	"journalmail/internal/maildir"
	"journalmail/internal/repository"
	"journalmail/internal/service/ingest"
	"journalmail/internal/token"
	"journalmail/internal/util"
	"journalmail/pkg/config"
	"journalmail/pkg/db"
	"journalmail/pkg/logger"
	"journalmail/pkg/metrics"
	"journalmail/pkg/mq"
	redisclient "journalmail/pkg/redis"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	logger := logger.NewLogger()
	defer logger.Sync()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if cfg.Mail.MaildirPath == "" {
		logger.Fatal("mail.maildir_path is required")
	}

	logger.Info("Starting ingest run...")

	key, err := token.ReadSecretKey(cfg.Mail.SecretKeyPath)
	if err != nil {
		logger.Fatal("failed to read secret key", zap.Error(err))
	}
	codec, err := token.NewCodec(key, cfg.Token.MaxPastDays, cfg.Token.MaxFutureDays)
	if err != nil {
		logger.Fatal("failed to build token codec", zap.Error(err))
	}

	ctx := context.Background()

	if err := db.RunMigrations(ctx, cfg.DB.DSN()); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	logger.Info("Database connection established")

	// Optional Redis seen-cache; the archive index stays authoritative.
	var cache maildir.SeenCache
	if cfg.Redis.Addr != "" {
		rdb := redisclient.NewClient(cfg.Redis)
		defer rdb.Close()
		cache = util.NewDeduper(rdb, 24*time.Hour)
	}

	// Optional event publisher
	var publisher ingest.EventPublisher
	if cfg.MQ.URL != "" {
		pub, err := mq.NewPublisher(cfg.MQ.URL)
		if err != nil {
			logger.Warn("MQ unavailable, event publishing disabled", zap.Error(err))
		} else {
			defer pub.Close()
			publisher = pub
		}
	}

	store := repository.NewIngestStore(dbConn, cfg.Ingest.OnDuplicate)
	rawRepo := repository.NewRawMessageRepository(dbConn)

	svc := ingest.NewService(correlate.New(codec), store, publisher, logger)
	scanner := maildir.NewScanner(cfg.Mail.MaildirPath, svc, rawRepo, cache, logger)

	summary, err := scanner.Scan(ctx)
	if err != nil {
		logger.Fatal("maildir scan failed", zap.Error(err))
	}
	logger.Info("scan complete", summary.Fields()...)

	if cfg.Metrics.PushgatewayURL != "" {
		if err := metrics.Push(cfg.Metrics.PushgatewayURL, "journalmail-ingest"); err != nil {
			logger.Warn("failed to push metrics", zap.Error(err))
		}
	}
}
