// Command devserver serves a local copy of the post collection API for offline development.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"postsync/internal/config"
	"postsync/internal/devserver"
	"postsync/internal/observability"
	"postsync/internal/seed"

	"github.com/prometheus/client_golang/prometheus"
)

func main() {
	seedPosts := flag.Int("seed", 0, "insert this many generated posts before serving")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	observability.Configure(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "postsync-devserver",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: 1,
	})
	if err != nil {
		log.Fatalf("Failed to initialize tracing: %v", err)
	}

	db, err := devserver.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	repo := devserver.NewPostRepository(db)

	if *seedPosts > 0 {
		opts := seed.DefaultOptions()
		opts.Posts = *seedPosts
		if _, err := seed.Seed(context.Background(), repo, opts); err != nil {
			log.Fatalf("Failed to seed: %v", err)
		}
		observability.Logger.Info("seeded posts", slog.Int("count", *seedPosts))
	}

	app := devserver.NewServer(repo, devserver.WithMetrics(prometheus.DefaultRegisterer)).App()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		observability.Logger.Info("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := app.ShutdownWithContext(ctx); err != nil {
			observability.Logger.Error("Server shutdown error", slog.String("error", err.Error()))
		}
		if err := shutdownTracing(ctx); err != nil {
			observability.Logger.Error("Tracing shutdown error", slog.String("error", err.Error()))
		}
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	observability.Logger.Info("Server starting",
		slog.String("port", cfg.DevServerPort),
		slog.String("collection", devserver.CollectionPath+"/"),
	)
	if err := app.Listen(":" + cfg.DevServerPort); err != nil {
		log.Fatal(err)
	}
}
