package commands

import (
	"context"
	"fmt"

	"github.com/wonny/momentum/internal/brain"
	"github.com/wonny/momentum/internal/s0_data"
	"github.com/wonny/momentum/internal/strategyconfig"
	"github.com/wonny/momentum/pkg/config"
	"github.com/wonny/momentum/pkg/database"
	"github.com/wonny/momentum/pkg/logger"
	"github.com/wonny/momentum/pkg/metrics"
	"github.com/wonny/momentum/pkg/redis"
)

// app bundles the dependencies every command needs
type app struct {
	cfg        *config.Config
	log        *logger.Logger
	strategy   *strategyconfig.Config
	yaml       []byte
	configHash string
	db         *database.DB // nil unless needed
	cache      *redis.Client
	metrics    *metrics.Registry
	service    *brain.Service
}

// initApp loads config, logger and strategy and wires the comparison
// service. needDB forces a database connection even for csv panels.
func initApp(ctx context.Context, needDB bool) (*app, error) {
	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if panelPath != "" {
		cfg.Panel.Source = config.PanelSourceCSV
		cfg.Panel.Path = panelPath
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	// 2. Initialize logger
	log := logger.New(cfg)

	a := &app{cfg: cfg, log: log}

	// 3. Strategy
	if err := a.loadStrategy(); err != nil {
		return nil, err
	}

	// 4. Database (postgres 패널 또는 감사 저장 시)
	if needDB || cfg.Panel.Source == config.PanelSourcePostgres {
		db, err := database.New(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		a.db = db
	}

	// 5. Redis cache (비활성이면 no-op)
	client, err := redis.New(ctx, cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
	} else {
		a.cache = client
	}

	if cfg.MetricsEnabled {
		a.metrics = metrics.NewRegistry()
	}

	// 6. Service
	loader, err := s0_data.NewLoader(cfg.Panel, a.db, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.service = brain.NewService(a.strategy, a.configHash, loader, cfg.Workers, log)
	if a.cache != nil {
		a.service.WithCache(redis.NewCache(a.cache, "momentum"), cfg.Redis.TTL)
	}
	if a.metrics != nil {
		a.service.WithRecorder(a.metrics)
	}

	return a, nil
}

func (a *app) loadStrategy() error {
	path := strategyFile
	if path == "" {
		path = a.cfg.StrategyFile
	}

	if path == "" {
		a.strategy = strategyconfig.Default()
	} else {
		cfg, data, err := strategyconfig.Load(path)
		if err != nil {
			return err
		}
		a.strategy, a.yaml = cfg, data
	}

	hash, err := strategyconfig.Hash(a.strategy)
	if err != nil {
		return err
	}
	a.configHash = hash

	for _, w := range strategyconfig.Warn(a.strategy) {
		a.log.WithFields(map[string]interface{}{
			"code": w.Code,
		}).Warn(w.Message)
	}
	return nil
}

// Close releases connections
func (a *app) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.cache != nil {
		a.cache.Close()
	}
}
