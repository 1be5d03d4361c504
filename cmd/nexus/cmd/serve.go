package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/grafbase/nexus/internal/config"
	"github.com/grafbase/nexus/internal/httpserver"
	"github.com/grafbase/nexus/internal/identity"
	"github.com/grafbase/nexus/internal/llmrouter"
	"github.com/grafbase/nexus/internal/mcpfed"
	"github.com/grafbase/nexus/internal/ratelimit"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Nexus router",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	f, err := os.Open(configPath)
	if err != nil {
		return fmt.Errorf("opening config: %w", err)
	}
	cfg, err := config.LoadConfig(f)
	_ = f.Close()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store, err := buildRateLimitStore(cfg.RateLimit)
	if err != nil {
		return fmt.Errorf("rate limit store: %w", err)
	}
	defer store.Close()

	chain := ratelimit.NewHTTPChain(store, cfg.RateLimit)

	federation, err := mcpfed.New(ctx, cfg.MCP, chain)
	if err != nil {
		return fmt.Errorf("mcp federation: %w", err)
	}
	defer federation.Close()
	go federation.Run(ctx)

	providers, err := llmrouter.BuildProviders(ctx, cfg.LLM)
	if err != nil {
		return fmt.Errorf("llm providers: %w", err)
	}

	modelMap := llmrouter.NewModelMap()
	listers := llmrouter.ListersFromProviders(providers)
	discoveryCtx, cancelDiscovery := context.WithCancel(ctx)
	defer cancelDiscovery()
	go func() {
		if err := llmrouter.RunDiscoveryLoop(discoveryCtx, modelMap, cfg.LLM.Providers, listers, cfg.LLM.DiscoveryInterval, cfg.LLM.ProviderOrder); err != nil && discoveryCtx.Err() == nil {
			slog.ErrorContext(ctx, "model discovery loop exited", slog.Any("error", err))
		}
	}()

	router := llmrouter.NewRouter(cfg.LLM, providers, modelMap)

	extractor, err := identity.NewExtractor(ctx, cfg.Identity)
	if err != nil {
		return fmt.Errorf("identity extractor: %w", err)
	}

	srv := httpserver.New(*cfg, federation, router, chain, extractor)
	return srv.Run(ctx)
}

func buildRateLimitStore(cfg config.GlobalRateLimitConfig) (ratelimit.Store, error) {
	switch cfg.Backend {
	case "redis":
		client := redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:           []string{cfg.Redis.Addr},
			Password:        cfg.Redis.Password,
			DB:              cfg.Redis.DB,
			PoolSize:        cfg.Redis.PoolSize,
			PoolTimeout:     cfg.Redis.PoolTimeout,
			ConnMaxLifetime: cfg.Redis.ConnMaxLifetime,
			DialTimeout:     cfg.Redis.DialTimeout,
		})
		return ratelimit.NewRedisStore(client, cfg.Redis.KeyPrefix), nil
	case "", "memory":
		return ratelimit.NewMemoryStore(cfg.MaxEntries)
	default:
		return nil, fmt.Errorf("unknown rate limit backend %q", cfg.Backend)
	}
}
