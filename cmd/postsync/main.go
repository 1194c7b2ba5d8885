// Command postsync is a terminal client for the post feed. Interactions (images, likes, comments)
// and the signed-in user live in local storage; posts come from the configured remote collection.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"postsync/internal/config"
	"postsync/internal/feed"
	"postsync/internal/gateway"
	"postsync/internal/imaging"
	"postsync/internal/interactions"
	"postsync/internal/kv"
	"postsync/internal/observability"
	"postsync/internal/session"
)

func usage() {
	fmt.Println("Usage:")
	fmt.Println("  postsync signup <username>                              - Choose the local identity")
	fmt.Println("  postsync whoami                                         - Show the signed-in user")
	fmt.Println("  postsync logout                                         - Forget the signed-in user")
	fmt.Println("  postsync list                                           - Show the feed, newest first")
	fmt.Println("  postsync create -title T -content C [-image FILE]       - Publish a post")
	fmt.Println("  postsync edit <id> -title T -content C [-image FILE|-clear-image]")
	fmt.Println("  postsync delete <id>                                    - Delete one of your posts")
	fmt.Println("  postsync like <id>                                      - Like a post")
	fmt.Println("  postsync comment <id> <text...>                         - Comment on a post")
	fmt.Println("  postsync watch                                          - Follow local storage changes")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}
	os.Exit(run())
}

func run() int {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		return 1
	}
	observability.Configure(cfg.Env, cfg.LogLevel)

	shutdownTracing, err := observability.InitTracing(observability.TracingConfig{
		ServiceName:  "postsync",
		Environment:  cfg.Env,
		Enabled:      cfg.TracingEnabled,
		Exporter:     cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplerRatio: 1,
	})
	if err != nil {
		log.Printf("Failed to initialize tracing: %v", err)
		return 1
	}
	defer func() { _ = shutdownTracing(context.Background()) }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := kv.Open(ctx, cfg)
	if err != nil {
		log.Printf("Failed to open local storage: %v", err)
		return 1
	}
	defer func() { _ = store.Close() }()

	engine := feed.New(
		gateway.NewFromConfig(cfg),
		interactions.New(store),
		feed.WithCompactor(imaging.NewFromConfig(cfg)),
	)
	defer engine.Close()

	c := newClient(engine, session.New(store, store.Bus()), store.Bus(), os.Stdout)
	if err := c.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			usage()
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return 1
	}
	return 0
}
