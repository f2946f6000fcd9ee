package main

import (
	"context"
	"flag"
	"os"
	"time"

	"go.uber.org/zap"

	"journalmail/internal/repository"
	"journalmail/internal/service/prompt"
	"journalmail/internal/token"
	"journalmail/pkg/config"
	"journalmail/pkg/db"
	"journalmail/pkg/logger"
	"journalmail/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	username := flag.String("user", "", "user to send the prompt to")
	dateFlag := flag.String("date", "", "prompt date as YYYY-MM-DD (default: today in the user's timezone)")
	to := flag.String("to", "", "override the recipient address")
	dryRun := flag.Bool("dry-run", false, "print the composed message instead of sending it")
	flag.Parse()

	logger := logger.NewLogger()
	defer logger.Sync()

	// Load config
	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	if *username == "" {
		logger.Fatal("missing required -user flag")
	}

	var dateOverride *time.Time
	if *dateFlag != "" {
		d, err := time.ParseInLocation("2006-01-02", *dateFlag, time.UTC)
		if err != nil {
			logger.Fatal("invalid -date", zap.String("date", *dateFlag), zap.Error(err))
		}
		dateOverride = &d
	}

	key, err := token.ReadSecretKey(cfg.Mail.SecretKeyPath)
	if err != nil {
		logger.Fatal("failed to read secret key", zap.Error(err))
	}
	codec, err := token.NewCodec(key, cfg.Token.MaxPastDays, cfg.Token.MaxFutureDays)
	if err != nil {
		logger.Fatal("failed to build token codec", zap.Error(err))
	}

	ctx := context.Background()

	// Init DB
	dbConn, err := db.NewConnection(cfg.DB, logger)
	if err != nil {
		logger.Fatal("DB initialization failed", zap.Error(err))
	}
	defer dbConn.Close()

	userRepo := repository.NewUserRepository(dbConn)
	entryRepo := repository.NewEntryRepository(dbConn)

	svc := prompt.NewService(userRepo, entryRepo, codec, cfg.Mail.Domain, cfg.Mail.ReturnAddr, logger)

	if *dryRun {
		user, err := userRepo.GetByUsername(ctx, *username)
		if err != nil {
			logger.Fatal("failed to look up user", zap.String("user", *username), zap.Error(err))
		}
		date, err := svc.PromptDate(user, dateOverride)
		if err != nil {
			logger.Fatal("failed to resolve prompt date", zap.Error(err))
		}
		if err := svc.Compose(ctx, os.Stdout, user, date, *to); err != nil {
			logger.Fatal("failed to compose prompt", zap.Error(err))
		}
		return
	}

	if err := svc.Send(ctx, *username, dateOverride, *to); err != nil {
		pushMetrics(cfg, logger)
		logger.Fatal("failed to send prompt", zap.String("user", *username), zap.Error(err))
	}
	logger.Info("prompt sent", zap.String("user", *username))
	pushMetrics(cfg, logger)
}

func pushMetrics(cfg *config.Config, logger *zap.Logger) {
	if cfg.Metrics.PushgatewayURL == "" {
		return
	}
	if err := metrics.Push(cfg.Metrics.PushgatewayURL, "journalmail-send"); err != nil {
		logger.Warn("failed to push metrics", zap.Error(err))
	}
}
