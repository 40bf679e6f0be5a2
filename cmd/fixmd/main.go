// fixmd is the FIX 5.0SP2 market-data and order-lifecycle Core.
//
// Architecture:
//
//	main.go                    — entry point: loads config, starts the engine, waits for SIGINT/SIGTERM
//	internal/engine            — orchestrator: wires transport, session, books, orders, and the store
//	internal/fixcodec          — wire codec: tag=value encode/decode, checksum, HMAC-SHA256 auth (C1)
//	internal/session           — session state machine: Logon/Heartbeat/TestRequest/Logout, gap detection (C2)
//	internal/marketdata        — market-data demux: snapshot + incremental-refresh parsing (C3)
//	internal/book              — order book core: bid/ask ladders, inversion and volatility checks (C4)
//	internal/orders            — order lifecycle manager: ClOrdID state machine, execution reports (C5)
//	internal/transport         — reconnecting TCP proxy framing raw FIX messages (C6)
//	internal/ingress           — optional non-FIX Kraken WS feed for auxiliary symbols
//	internal/kvstore           — opaque pebble-backed checkpoint store
package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"truex-fixmd/internal/config"
	"truex-fixmd/internal/engine"
)

func main() {
	cfgPath := "configs/config.yaml"
	if p := os.Getenv("FIXMD_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err, "path", cfgPath)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	var handler slog.Handler
	opts := &slog.HandlerOptions{Level: parseLogLevel(cfg.Logging.Level)}
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	logger := slog.New(handler)

	eng, err := engine.New(*cfg, logger)
	if err != nil {
		logger.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	if err := eng.Start(); err != nil {
		logger.Error("failed to start engine", "error", err)
		os.Exit(1)
	}

	logger.Info("fixmd core started",
		"addr", cfg.FIX.Addr(),
		"sender_comp_id", cfg.FIX.SenderCompID,
		"target_comp_id", cfg.FIX.TargetCompID,
		"ingress_enabled", cfg.Ingress.Enabled,
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("received shutdown signal", "signal", sig.String())

	eng.Stop()
}

func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
