package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storyforge-ai/storyforge/internal/app"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	healthcheck := flag.Bool("healthcheck", false, "probe the running server's /healthz and exit")
	showVersion := flag.Bool("version", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version)
		return
	}

	// Container HEALTHCHECK mode; the runtime image carries no curl.
	if *healthcheck {
		if err := probeHealth(); err != nil {
			log.Printf("unhealthy: %v", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		log.Fatalf("storyforge: %v", err)
	}
}

func probeHealth() error {
	addr := os.Getenv("STORYFORGE_LISTEN_ADDR")
	if addr == "" {
		addr = ":8080"
	}
	resp, err := http.Get(fmt.Sprintf("http://localhost%s/healthz", addr))
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return nil
}

func run() error {
	log.Printf("storyforge version %s", version)

	cfg, err := app.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	srv, err := app.NewServer(cfg)
	if err != nil {
		return fmt.Errorf("init server: %w", err)
	}

	httpServer := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: srv.Router(),
		// Pipelines and SSE streams run long; only bound the header read
		// and idle phases aggressively.
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		WriteTimeout:      300 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		log.Printf("storyforge listening on %s", cfg.ListenAddr)
		errs <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errs:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
	case sig := <-stop:
		log.Printf("received %s, draining in-flight requests", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("http shutdown: %v", err)
	}
	if err := srv.Close(); err != nil {
		log.Printf("server close: %v", err)
	}
	log.Printf("shutdown complete")
	return nil
}
