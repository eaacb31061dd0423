package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/halderavik/cross-tab-tool/pkg/server"
)

// Cross-tabulation analysis service.
func main() {
	cfgFile := flag.String("config", "", "path to config file (optional)")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("create logger: %v", err)
	}
	defer logger.Sync()

	cfg, err := server.LoadConfig(*cfgFile)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	var cache *server.ResultCache
	if cfg.CacheEnabled {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := client.Ping(ctx).Err(); err != nil {
			logger.Warn("Redis connection failed, result cache disabled", zap.Error(err))
		} else {
			cache = server.NewResultCache(client, logger, time.Duration(cfg.CacheTTLSec)*time.Second)
		}
		cancel()
	}

	srv := server.NewServer(logger, cfg, cache)
	mux := http.NewServeMux()
	srv.RegisterRoutes(mux)
	server.RegisterMetrics(mux)

	logger.Info("crosstab service listening",
		zap.String("addr", cfg.ListenAddr),
		zap.Bool("cache", cache != nil))
	if err := http.ListenAndServe(cfg.ListenAddr, mux); err != nil {
		logger.Fatal("Server failed", zap.Error(err))
	}
}
