// Package app wires configuration into the long-running monitor and the
// auxiliary CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/ironcrypto/aero-arb-mm-bot/internal/alerting"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/bus"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/config"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/fetcher"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/metrics"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/pools"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/scheduler"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/service"
	"github.com/ironcrypto/aero-arb-mm-bot/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Kind  string
	Limit int
}

func (a *App) newFetchers() (*fetcher.Reference, *fetcher.Pool) {
	reference := fetcher.NewReference(fetcher.ReferenceOptions{
		BaseURL:   a.Config.Reference.BaseURL,
		Symbol:    a.Config.Reference.Symbol,
		Timeout:   a.Config.Reference.RequestTimeout,
		UserAgent: a.Config.Reference.UserAgent,
	}, a.Logger)

	pool := fetcher.NewPool(fetcher.PoolOptions{
		RPCURL: a.Config.Ethereum.RPCURL,
		Tokens: pools.TokenSet{
			WETH:  common.HexToAddress(a.Config.Ethereum.WETHAddress),
			USDC:  common.HexToAddress(a.Config.Ethereum.USDCAddress),
			USDbC: common.HexToAddress(a.Config.Ethereum.USDBCAddress),
		},
		Timeout: a.Config.Ethereum.RequestTimeout,
	}, a.Logger)

	return reference, pool
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		return alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// validatePools resolves each configured pool on-chain. Invalid pools are
// dropped with a warning; zero valid pools is fatal.
func (a *App) validatePools(ctx context.Context, poolFetcher *fetcher.Pool) ([]service.WatchedPool, error) {
	if len(a.Config.Ethereum.Pools) == 0 {
		return nil, errors.New("no pools configured")
	}

	watched := make([]service.WatchedPool, 0, len(a.Config.Ethereum.Pools))
	for _, p := range a.Config.Ethereum.Pools {
		info, err := poolFetcher.ValidatePool(ctx, p.Name, common.HexToAddress(p.Address))
		if err != nil {
			a.Logger.Warn().Err(err).
				Str("pool", p.Name).
				Str("address", p.Address).
				Msg("dropping pool that failed identity validation")
			continue
		}
		a.Logger.Info().
			Str("pool", p.Name).
			Str("address", p.Address).
			Bool("stable", info.IsStable).
			Msg("pool identity validated")
		watched = append(watched, service.WatchedPool{Name: p.Name, Info: info})
	}

	if len(watched) == 0 {
		return nil, errors.New("all configured pools failed identity validation")
	}
	return watched, nil
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		a.Logger.Warn().Msg("database.dsn not configured; persistence disabled")
	}
	if closeStore != nil {
		defer closeStore()
	}

	if store != nil && a.Config.Monitor.AdvisoryLockKey != 0 {
		unlock, acquired, err := store.TryAdvisoryLock(ctx, a.Config.Monitor.AdvisoryLockKey)
		if err != nil {
			return fmt.Errorf("acquire advisory lock: %w", err)
		}
		if !acquired {
			return errors.New("another instance holds the advisory lock")
		}
		defer unlock()
	}

	reference, poolFetcher := a.newFetchers()
	watched, err := a.validatePools(ctx, poolFetcher)
	if err != nil {
		return err
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	if a.Config.Metrics.Enabled {
		go func() {
			if err := metrics.Serve(ctx, a.Config.Metrics.Listen, a.Logger); err != nil {
				a.Logger.Error().Err(err).Msg("metrics listener failed")
			}
		}()
	}

	var publisher service.EventPublisher
	if a.Config.Redis.Enabled {
		p := bus.NewPublisher(a.Config.Redis, a.Logger)
		pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
		err := p.Ping(pingCtx)
		pingCancel()
		if err != nil {
			a.Logger.Warn().Err(err).Msg("redis unreachable; signal bus disabled")
			_ = p.Close()
		} else {
			defer p.Close()
			publisher = p
		}
	}

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Monitor.Interval,
		StartupDelay: a.Config.Monitor.StartupDelay,
	}, a.Logger)

	var recordStore service.RecordStore
	if store != nil {
		recordStore = store
	}

	svc := service.New(a.Config, watched, service.Deps{
		Scheduler: sched,
		Reference: reference,
		Pools:     poolFetcher,
		Store:     recordStore,
		Publisher: publisher,
		Notifier:  a.newNotifier(),
		Metrics:   m,
	}, a.Logger)

	a.Logger.Info().Int("pools", len(watched)).Msg("starting monitoring service")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("service terminated with error")
		return err
	}

	a.Logger.Info().Msg("monitoring service stopped")
	return nil
}
