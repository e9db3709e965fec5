package main

import (
	"context"
	"encoding/hex"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"fusionswap/config"
	"fusionswap/core/events"
	"fusionswap/native/fusion"
	"fusionswap/observability/logging"
	"fusionswap/rpc"
	"fusionswap/storage"
)

type logEmitter struct {
	log *slog.Logger
}

func (e logEmitter) Emit(event events.Event) {
	attrs := make([]any, 0, len(event.Attributes)*2)
	for key, value := range event.Attributes {
		attrs = append(attrs, key, value)
	}
	e.log.Info(event.Type, attrs...)
}

func main() {
	configPath := flag.String("config", "", "path to fusiond TOML config")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := logging.Setup(cfg.Service.Name, cfg.Service.Environment, logging.Rotation{
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})

	db, err := storage.NewLevelDB(cfg.Storage.Path)
	if err != nil {
		log.Error("open database", "path", cfg.Storage.Path, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	state := fusion.NewState(db)
	ledger := fusion.NewLedger(db)
	engine := fusion.NewEngine(state, ledger)
	engine.SetEmitter(logEmitter{log: log})

	if len(cfg.Engine.Resolvers) > 0 {
		set := fusion.NewResolverSet()
		for _, resolver := range cfg.Engine.Resolvers {
			var addr [32]byte
			decoded, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(resolver), "0x"))
			if err != nil || len(decoded) != 32 {
				log.Error("invalid resolver identity", "resolver", resolver)
				os.Exit(1)
			}
			copy(addr[:], decoded)
			set.Register(addr)
		}
		engine.SetResolverAccess(set)
	}

	server := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           rpc.NewServer(engine, state, log),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("fusiond listening", "addr", cfg.Server.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown", "error", err)
	}
	log.Info("fusiond stopped")
}
