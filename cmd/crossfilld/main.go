package main

import (
	"flag"
	"log/slog"
	"os"

	"crossfill/config"
	"crossfill/core/events"
	"crossfill/core/state"
	"crossfill/core/types"
	"crossfill/native/swap"
	"crossfill/observability/logging"
	"crossfill/rpc"
	"crossfill/storage"
)

// logEmitter forwards settlement events to the structured log.
type logEmitter struct {
	logger *slog.Logger
}

func (l logEmitter) Emit(evt events.Event) {
	if evt == nil {
		return
	}
	args := []any{"event", evt.EventType()}
	if carrier, ok := evt.(interface{ Event() *types.Event }); ok {
		if raw := carrier.Event(); raw != nil {
			for key, value := range raw.Attributes {
				args = append(args, key, value)
			}
		}
	}
	l.logger.Info("settlement event", args...)
}

func main() {
	var (
		configPath = flag.String("config", "./config.toml", "path to the configuration file")
		env        = flag.String("env", "", "deployment environment label for log lines")
	)
	flag.Parse()

	logger := logging.Setup("crossfilld", *env)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config", "path", *configPath, "error", err)
		os.Exit(1)
	}
	if cfg.AdminAddress == "" {
		logger.Error("AdminAddress must be set before the daemon can start", "path", *configPath)
		os.Exit(1)
	}
	admin, err := cfg.Admin()
	if err != nil {
		logger.Error("invalid admin address", "error", err)
		os.Exit(1)
	}

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "dir", cfg.DataDir, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	engine := swap.NewEngine()
	engine.SetState(state.NewManager(db))
	engine.SetEmitter(logEmitter{logger: logger})

	genesis := swap.DefaultProtocolState(admin)
	genesis.FeeRateBps = cfg.FeeRateBps
	genesis.MinTimelock = cfg.MinTimelock
	genesis.MaxTimelock = cfg.MaxTimelock
	if err := engine.Initialize(genesis); err != nil {
		logger.Error("failed to initialize settlement state", "error", err)
		os.Exit(1)
	}

	server := rpc.NewServer(engine, logger, cfg.RateLimitPerMinute, cfg.RateLimitBurst)
	if err := server.Start(cfg.ListenAddress); err != nil {
		logger.Error("rpc server stopped", "error", err)
		os.Exit(1)
	}
}
