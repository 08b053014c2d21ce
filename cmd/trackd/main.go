// Command trackd is the track output daemon of the command station.
// Run with --mock to use simulated hardware (no GPIO/SPI devices required).
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/open-rail/trackd-go/internal/api"
	"github.com/open-rail/trackd-go/internal/cli"
	"github.com/open-rail/trackd-go/internal/config"
	"github.com/open-rail/trackd-go/internal/controller"
	"github.com/open-rail/trackd-go/internal/events"
	"github.com/open-rail/trackd-go/internal/hal"
	"github.com/open-rail/trackd-go/internal/zeroconf"
)

func main() {
	var (
		mock       = flag.Bool("mock", false, "use mock hardware driver (no GPIO/SPI devices required)")
		addr       = flag.String("addr", ":8080", "HTTP listen address")
		cfgDir     = flag.String("config-dir", "", "config directory (default: ~/.config/trackd)")
		serialPort = flag.String("serial-port", "", "serial device for the command channel (e.g. /dev/ttyAMA0)")
		debug      = flag.Bool("debug", false, "enable debug logging")
	)
	flag.Parse()

	// Configure logging
	logLevel := slog.LevelInfo
	if *debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel})))

	// Resolve config directory
	if *cfgDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			slog.Error("cannot determine home directory", "err", err)
			os.Exit(1)
		}
		*cfgDir = filepath.Join(home, ".config", "trackd")
	}
	if err := os.MkdirAll(*cfgDir, 0755); err != nil {
		slog.Error("cannot create config directory", "path", *cfgDir, "err", err)
		os.Exit(1)
	}

	// Graceful shutdown context
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Hardware driver
	var drv hal.Driver
	if *mock {
		slog.Info("using mock hardware driver")
		drv = hal.NewMock()
	} else {
		slog.Info("using real GPIO/SPI hardware driver")
		drv = hal.NewLinux()
	}
	if err := drv.Init(ctx); err != nil {
		slog.Error("hardware initialization failed", "err", err)
		os.Exit(1)
	}

	// Config store
	store := config.NewJSONStore(*cfgDir)

	// Event bus
	bus := events.NewBus()

	// Controller
	ctrl, err := controller.New(drv, store, bus, nil)
	if err != nil {
		slog.Error("controller initialization failed", "err", err)
		os.Exit(1)
	}

	// Overload monitor poll loop
	go ctrl.Run(ctx)

	// Live config reload (names and trip currents)
	go store.Watch(ctx, ctrl.ApplyConfig)

	// Serial command channel
	if *serialPort != "" {
		go func() {
			if err := cli.Serve(ctx, *serialPort, ctrl); err != nil {
				slog.Warn("serial command channel failed", "err", err)
			}
		}()
	}

	// Zeroconf mDNS registration
	hostname, _ := os.Hostname()
	port := 8080
	if parts := strings.SplitN(*addr, ":", 2); len(parts) == 2 && parts[1] != "" {
		if p, err := strconv.Atoi(parts[1]); err == nil {
			port = p
		}
	}
	zc := zeroconf.New(hostname, port, controller.Version)
	go func() {
		if err := zc.Start(ctx); err != nil {
			slog.Warn("zeroconf failed", "err", err)
		}
	}()

	// HTTP server
	srv := &http.Server{
		Addr:         *addr,
		Handler:      api.NewRouter(ctrl, bus),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // 0 = no timeout (needed for SSE)
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("trackd listening", "addr", *addr, "mock", *mock, "config", *cfgDir)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "err", err)
		}
	}()

	// Wait for shutdown signal
	<-ctx.Done()
	slog.Info("shutting down...")

	// Cut track power before exit; an unsupervised bridge must not stay hot.
	ctrl.SetAllPower(false)

	// Flush pending config writes
	if err := store.Flush(); err != nil {
		slog.Warn("failed to flush config", "err", err)
	}

	// Graceful HTTP shutdown
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := srv.Shutdown(shutCtx); err != nil {
		slog.Warn("server shutdown error", "err", err)
	}

	slog.Info("shutdown complete")
}
