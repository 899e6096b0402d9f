// Command soljid hosts the temple program: the in-process ledger, the
// instruction endpoint, the query API and the event stream.
package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"

	"github.com/solji-labs/solji-program-sub000/internal/app"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

type envConfig struct {
	HTTPAddr   string `env:"SOLJI_HTTP_ADDR,default=:8080"`
	ParamsPath string `env:"SOLJI_PARAMS_PATH,default="`
	LogLevel   string `env:"SOLJI_LOG_LEVEL,default=info"`

	PostgresDSN string `env:"SOLJI_POSTGRES_DSN,default="`
	RedisAddr   string `env:"SOLJI_REDIS_ADDR,default="`

	BeaconURL  string `env:"SOLJI_BEACON_URL,default="`
	BeaconPath string `env:"SOLJI_BEACON_PATH,default=randomness"`

	RateLimit      int    `env:"SOLJI_RATE_LIMIT,default=50"`
	RateBurst      int    `env:"SOLJI_RATE_BURST,default=100"`
	AllowedOrigins string `env:"SOLJI_ALLOWED_ORIGINS,default=*"`

	LeaderboardRefresh string `env:"SOLJI_LEADERBOARD_REFRESH,default=@every 5m"`

	// Optional auto-initialization of the deployment on first boot.
	Admin    string `env:"SOLJI_ADMIN,default="`
	Treasury string `env:"SOLJI_TREASURY,default="`
}

func main() {
	// A missing .env is fine; the environment wins either way.
	_ = godotenv.Load()

	var cfg envConfig
	if err := envdecode.Decode(&cfg); err != nil {
		logger.NewDefault("soljid").WithError(err).Error("decode environment")
		os.Exit(1)
	}
	log := logger.New("soljid", cfg.LogLevel)

	params := config.Default()
	if cfg.ParamsPath != "" {
		var err error
		params, err = config.Load(cfg.ParamsPath)
		if err != nil {
			log.WithError(err).WithField("path", cfg.ParamsPath).Error("load params")
			os.Exit(1)
		}
	}

	application, err := app.New(app.Options{
		Params:                 params,
		PostgresDSN:            cfg.PostgresDSN,
		RedisAddr:              cfg.RedisAddr,
		BeaconURL:              cfg.BeaconURL,
		BeaconPath:             cfg.BeaconPath,
		RateLimit:              cfg.RateLimit,
		RateBurst:              cfg.RateBurst,
		AllowedOrigins:         splitOrigins(cfg.AllowedOrigins),
		LeaderboardRefreshSpec: cfg.LeaderboardRefresh,
	}, log)
	if err != nil {
		log.WithError(err).Error("assemble application")
		os.Exit(1)
	}
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Admin != "" && cfg.Treasury != "" {
		if err := bootstrapTemple(ctx, application, cfg.Admin, cfg.Treasury, log); err != nil {
			log.WithError(err).Error("bootstrap temple")
			os.Exit(1)
		}
	}

	if err := application.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		log.WithError(err).Error("http server failed")
		os.Exit(1)
	}
	log.Info("shutdown complete")
}

func bootstrapTemple(ctx context.Context, application *app.Application, adminB58, treasuryB58 string, log *logger.Logger) error {
	admin, err := pda.FromBase58(adminB58)
	if err != nil {
		return err
	}
	treasury, err := pda.FromBase58(treasuryB58)
	if err != nil {
		return err
	}
	if _, err := application.Services.Temple.Config(ctx); err == nil {
		log.Debug("temple already initialized")
		return nil
	}
	return application.Services.Temple.Init(ctx, admin, treasury)
}

func splitOrigins(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
