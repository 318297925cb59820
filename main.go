package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"consensus-trading-bot/config"
	"consensus-trading-bot/internal/api"
	"consensus-trading-bot/internal/binance"
	"consensus-trading-bot/internal/database"
	"consensus-trading-bot/internal/engine"
	"consensus-trading-bot/internal/events"
	"consensus-trading-bot/internal/logging"
	"consensus-trading-bot/internal/position"
	"consensus-trading-bot/internal/vault"
)

func main() {
	sampleConfig := flag.Bool("sample-config", false, "write config.sample.json and exit")
	flag.Parse()

	if *sampleConfig {
		if err := config.GenerateSampleConfig("config.sample.json"); err != nil {
			fmt.Fprintf(os.Stderr, "error writing sample config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("wrote config.sample.json")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Logging)

	// Credentials from Vault take precedence over file and environment.
	if cfg.Vault.Enabled {
		vc, err := vault.NewClient(cfg.Vault)
		if err != nil {
			log.Fatal().Err(err).Msg("vault client init failed")
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		creds, err := vc.GetCredentials(ctx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Msg("vault credential fetch failed")
		}
		cfg.Binance.APIKey = creds.APIKey
		cfg.Binance.SecretKey = creds.SecretKey
		log.Info().Msg("credentials loaded from vault")
	}

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("configuration invalid")
	}

	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := rdb.Ping(ctx).Err(); err != nil {
			log.Warn().Err(err).Msg("redis unreachable, position mirror disabled")
			rdb = nil
		}
		cancel()
	}

	// Trade history is an audit trail; a missing database degrades, never
	// stops, the bot.
	var repo *database.Repository
	if cfg.Database.Enabled {
		db, err := database.NewDB(cfg.Database, logging.Component(log, "database"))
		if err != nil {
			log.Warn().Err(err).Msg("database unavailable, trade history disabled")
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := db.RunMigrations(ctx); err != nil {
				log.Warn().Err(err).Msg("database migrations failed, trade history disabled")
				db.Close()
			} else {
				repo = database.NewRepository(db)
				defer db.Close()
			}
			cancel()
		}
	}

	bus := events.NewEventBus()

	type instance struct {
		name   string
		cfg    config.MarketConfig
		eng    *engine.Engine
		store  *position.Store
	}
	var instances []instance

	build := func(name string, mc config.MarketConfig, adapter binance.MarketAdapter) {
		if !mc.Enabled {
			return
		}
		ilog := logging.Component(log, name)
		store := position.NewStore(mc.StateFile, name, rdb, ilog)
		eng := engine.New(cfg, mc, engine.Deps{
			Adapter: adapter,
			Store:   store,
			Repo:    repo,
			Bus:     bus,
			Log:     ilog,
		})
		instances = append(instances, instance{name: name, cfg: mc, eng: eng, store: store})
	}

	key, secret := cfg.Binance.APIKey, cfg.Binance.SecretKey
	build("linear", cfg.Linear, binance.NewLinearClient(key, secret, cfg.Binance.FuturesBaseURL))
	build("inverse", cfg.Inverse, binance.NewInverseClient(key, secret, cfg.Binance.CoinMBaseURL))
	build("spot", cfg.Spot, binance.NewSpotClient(key, secret, cfg.Binance.SpotBaseURL))

	for _, inst := range instances {
		if err := inst.eng.Setup(); err != nil {
			log.Fatal().Err(err).Str("market", inst.name).Msg("venue setup failed")
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var server *api.Server
	if cfg.Server.Enabled {
		status := func() []api.MarketStatus {
			out := make([]api.MarketStatus, 0, len(instances))
			for _, inst := range instances {
				rec, _ := inst.store.Load()
				out = append(out, api.MarketStatus{
					Market:    inst.name,
					Symbol:    inst.cfg.Symbol,
					Timeframe: inst.cfg.Timeframe,
					Enabled:   true,
					Position:  rec,
				})
			}
			return out
		}
		server = api.NewServer(cfg.Server, cfg.Auth, repo, bus, status, logging.Component(log, "api"))
		go func() {
			if err := server.Start(); err != nil {
				log.Error().Err(err).Msg("status API failed")
			}
		}()
	}

	var wg sync.WaitGroup
	for _, inst := range instances {
		wg.Add(1)
		go func(e *engine.Engine) {
			defer wg.Done()
			e.Run(ctx)
		}(inst.eng)
	}

	<-ctx.Done()
	log.Info().Msg("shutdown signal received")
	wg.Wait()

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("status API shutdown failed")
		}
		cancel()
	}
	if rdb != nil {
		rdb.Close()
	}
	log.Info().Msg("shutdown complete")
}
