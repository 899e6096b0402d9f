// Package app assembles the ledger, services, processor and HTTP surface
// into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/leaderboard"
	"github.com/solji-labs/solji-program-sub000/internal/app/events"
	"github.com/solji-labs/solji-program-sub000/internal/app/httpapi"
	"github.com/solji-labs/solji-program-sub000/internal/app/program"
	donationsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/donation"
	fortunesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/fortune"
	incensesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/incense"
	leaderboardsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/leaderboard"
	stakingsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/staking"
	templesvc "github.com/solji-labs/solji-program-sub000/internal/app/services/temple"
	userssvc "github.com/solji-labs/solji-program-sub000/internal/app/services/users"
	wishsvc "github.com/solji-labs/solji-program-sub000/internal/app/services/wish"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage/memory"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage/postgres"
	"github.com/solji-labs/solji-program-sub000/internal/config"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
	"github.com/solji-labs/solji-program-sub000/pkg/logger"
)

// Options selects the optional collaborators.
type Options struct {
	// Params is the engine parameter set.
	Params config.Params
	// PostgresDSN enables the off-ledger event index when non-empty.
	PostgresDSN string
	// RedisAddr enables the leaderboard mirror when non-empty.
	RedisAddr string
	// BeaconURL switches randomness from crypto/rand to an HTTP beacon.
	BeaconURL  string
	BeaconPath string
	// HTTP middleware settings.
	RateLimit      int
	RateBurst      int
	AllowedOrigins []string
	// LeaderboardRefreshSpec is a cron expression refreshing every board for
	// recently active users. Empty disables the refresher.
	LeaderboardRefreshSpec string
}

// Application is the assembled program host.
type Application struct {
	Ledger    *memory.Ledger
	Bus       *events.Bus
	Services  program.Services
	Processor *program.Processor
	Server    *httpapi.Server
	Index     *postgres.Index

	log      *logger.Logger
	cron     *cron.Cron
	redis    *redis.Client
	stopIdx  context.CancelFunc
	recently *activeSet
}

// New wires the application.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if err := opts.Params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid params: %w", err)
	}

	ledger := memory.New()
	bus := events.NewBus()

	var mirror *redis.Client
	if opts.RedisAddr != "" {
		mirror = redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	}

	var randomness fortunesvc.Randomness
	if opts.BeaconURL != "" {
		randomness = fortunesvc.NewBeaconSource(opts.BeaconURL, opts.BeaconPath)
	}

	svc := program.Services{
		Temple:      templesvc.New(ledger, opts.Params, bus, log),
		Users:       userssvc.New(ledger, opts.Params, log),
		Incense:     incensesvc.New(ledger, opts.Params, bus, log),
		Donation:    donationsvc.New(ledger, opts.Params, bus, log),
		Fortune:     fortunesvc.New(ledger, opts.Params, randomness, bus, log),
		Wish:        wishsvc.New(ledger, opts.Params, bus, log),
		Staking:     stakingsvc.New(ledger, opts.Params, log),
		Leaderboard: leaderboardsvc.New(ledger, opts.Params, mirror, log),
	}
	processor := program.New(svc, log)

	a := &Application{
		Ledger:    ledger,
		Bus:       bus,
		Services:  svc,
		Processor: processor,
		log:       log,
		redis:     mirror,
		recently:  newActiveSet(),
	}
	a.Server = httpapi.New(processor, svc, bus, httpapi.Options{
		RateLimit:      opts.RateLimit,
		RateBurst:      opts.RateBurst,
		AllowedOrigins: opts.AllowedOrigins,
	}, log)

	if opts.PostgresDSN != "" {
		idx, err := postgres.Open(opts.PostgresDSN, log)
		if err != nil {
			return nil, err
		}
		a.Index = idx

		ctx, cancel := context.WithCancel(context.Background())
		a.stopIdx = cancel
		ch, _ := bus.Subscribe(1024)
		go idx.Consume(ctx, ch)
	}

	// Track actors so the scheduled refresh knows whom to re-rank.
	trackCh, _ := bus.Subscribe(1024)
	go a.trackActivity(trackCh)

	if opts.LeaderboardRefreshSpec != "" {
		a.cron = cron.New()
		if _, err := a.cron.AddFunc(opts.LeaderboardRefreshSpec, a.refreshLeaderboards); err != nil {
			return nil, fmt.Errorf("leaderboard refresh spec: %w", err)
		}
		a.cron.Start()
	}
	return a, nil
}

// ListenAndServe runs the HTTP server until ctx ends.
func (a *Application) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           a.Server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	a.log.WithField("addr", addr).Info("http server started")
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Close releases background workers and external connections.
func (a *Application) Close() {
	if a.cron != nil {
		a.cron.Stop()
	}
	if a.stopIdx != nil {
		a.stopIdx()
	}
	if a.Index != nil {
		a.Index.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
}

// trackActivity remembers which owners appeared in recent events.
func (a *Application) trackActivity(ch <-chan events.Event) {
	for ev := range ch {
		for _, key := range []string{"owner", "author", "liker"} {
			if v, ok := ev.Payload[key].(string); ok {
				a.recently.add(v)
			}
		}
	}
}

// refreshLeaderboards re-ranks every recently active user on every period.
func (a *Application) refreshLeaderboards() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, encoded := range a.recently.drain() {
		owner, err := pda.FromBase58(encoded)
		if err != nil {
			continue
		}
		for _, period := range leaderboard.Periods {
			err := a.Services.Leaderboard.Update(ctx, owner, period)
			if err != nil && !errors.Is(err, leaderboardsvc.ErrUserNotRanked) && !errors.Is(err, storage.ErrNotFound) {
				a.log.WithError(err).WithField("period", period).Warn("scheduled leaderboard refresh failed")
			}
		}
	}
}
