package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Matchbox/internal/adapters/http"
	"github.com/dkeye/Matchbox/internal/app"
	"github.com/dkeye/Matchbox/internal/app/handshake"
	"github.com/dkeye/Matchbox/internal/app/heartbeat"
	"github.com/dkeye/Matchbox/internal/app/match"
	"github.com/dkeye/Matchbox/internal/app/orch"
	"github.com/dkeye/Matchbox/internal/app/relay"
	"github.com/dkeye/Matchbox/internal/app/worker"
	"github.com/dkeye/Matchbox/internal/config"
	"github.com/dkeye/Matchbox/internal/domain"
	"github.com/dkeye/Matchbox/internal/protocol"
	"github.com/dkeye/Matchbox/internal/store"
	"github.com/dkeye/Matchbox/internal/store/memory"
	"github.com/dkeye/Matchbox/internal/store/sqlite"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	flags := config.Flags()
	if err := flags.Parse(os.Args[1:]); err != nil {
		log.Fatal().Err(err).Msg("bad flags")
	}
	cfg, err := config.Load(flags)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	setupLogger(cfg)

	if err := run(ctx, cfg); err != nil {
		log.Error().Err(err).Msg("server stopped with error")
		os.Exit(1)
	}
	log.Info().Msg("Server exited gracefully")
}

func setupLogger(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Mode != "debug" {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Driver {
	case "sqlite":
		return sqlite.Open(cfg.Path, cfg.PoolSize)
	default:
		return memory.New(), nil
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	clk := clockwork.NewRealClock()

	// Workers outlive the signal so shutdown can still release matches.
	pool := worker.NewPool(cfg.Workers, cfg.QueueSize)
	pool.Start(context.WithoutCancel(ctx))

	st, err := openStore(cfg.Store)
	if err != nil {
		pool.Stop()
		return fmt.Errorf("open store: %w", err)
	}

	matches := match.NewRegistry(cfg.Matchmaking.DefaultAlgorithm)
	matches.Register(match.NewEarliest(match.Env{Store: st, Pool: pool, Clock: clk}))
	for token, a := range cfg.Matchmaking.Applications {
		matches.RegisterApplication(domain.Application{
			Name:            token,
			Algorithm:       a.Algorithm,
			MaxParticipants: a.MaxParticipants,
		})
	}
	if _, err := matches.Lookup(""); err != nil {
		_ = st.Close()
		pool.Stop()
		return err
	}

	policy, err := app.PolicyByName(cfg.Signaling.Backpressure)
	if err != nil {
		_ = st.Close()
		pool.Stop()
		return err
	}

	hostOnly := make(map[protocol.Kind]bool, len(cfg.Signaling.HostOnly))
	for _, k := range cfg.Signaling.HostOnly {
		hostOnly[protocol.Kind(strings.TrimSpace(k))] = true
	}

	pinger := heartbeat.NewPinger(clk, cfg.PingPeriod, cfg.PongWait)
	o := &orch.Orchestrator{
		Handshakes:       handshake.NewRegistry(handshake.NewV1(matches)),
		Registry:         app.NewRegistry(),
		Relays:           relay.NewManager(),
		Pinger:           pinger,
		Pool:             pool,
		Policy:           policy,
		Limiter:          app.NewRateLimiter(clk, cfg.Signaling.RateLimit, cfg.Signaling.RateInterval),
		Clock:            clk,
		Decoder:          protocol.Decoder{ValidateSDP: cfg.Signaling.ValidateSDP},
		HandshakeTimeout: cfg.HandshakeTimeout,
		HostOnly:         hostOnly,
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router.SetupRouter(ctx, cfg, o, st),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Matchbox server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return pinger.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		o.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		pool.Stop()
		return st.Close()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
