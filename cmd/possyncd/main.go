package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"kasirkita/pos/internal/cache"
	"kasirkita/pos/internal/checkout"
	"kasirkita/pos/internal/config"
	"kasirkita/pos/internal/connectivity"
	"kasirkita/pos/internal/entity"
	"kasirkita/pos/internal/httpapi"
	"kasirkita/pos/internal/local"
	"kasirkita/pos/internal/metrics"
	"kasirkita/pos/internal/queue"
	"kasirkita/pos/internal/reconcile"
	"kasirkita/pos/internal/remote"
	"kasirkita/pos/internal/remote/postgres"
	"kasirkita/pos/internal/remote/rest"
)

func main() {
	cfg := config.Load()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	startCtx, startCancel := context.WithTimeout(ctx, 10*time.Second)
	defer startCancel()

	closers := make([]func() error, 0, 2)

	rs, closeFn, err := buildRemote(startCtx, cfg)
	if err != nil {
		log.Fatalf("remote store: %v", err)
	}
	if closeFn != nil {
		closers = append(closers, closeFn)
	}

	persist, err := local.NewDir(cfg.DataDir)
	if err != nil {
		log.Fatalf("local persistence: %v", err)
	}

	catalog := cache.CatalogCache(cache.NoopCatalogCache{})
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(startCtx); err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			catalog = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	monitor := connectivity.NewProber(rs,
		time.Duration(cfg.ProbeIntervalSeconds)*time.Second,
		time.Duration(cfg.DebounceSeconds)*time.Second)

	entities := entity.New(persist)
	q := queue.New(persist)
	rec := reconcile.New(entities, q, rs, monitor)
	entities.SetOutbound(rec)

	registry := prometheus.NewRegistry()
	rec.SetMetrics(metrics.New(registry))

	if err := reconcile.InitialLoad(startCtx, entities, q, rs, catalog,
		time.Duration(cfg.CatalogTTLSeconds)*time.Second); err != nil {
		log.Fatalf("initial load: %v", err)
	}

	builder := checkout.New(entities, cfg.CashierID, cfg.CashierName)
	api := httpapi.New(entities, builder, rec, q, monitor)

	go monitor.Run(ctx)
	go rec.Run(ctx)

	// Pending mutations from a previous session should not wait for a
	// connectivity edge that may never come.
	if q.Len() > 0 {
		rec.Retry()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("POS terminal listening on %s", cfg.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("metrics listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("metrics server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}

// buildRemote picks the remote store backend: DATABASE_URL wins, then
// API_BASE_URL. Neither backend has to be reachable at startup; the
// terminal runs offline until the prober sees it.
func buildRemote(ctx context.Context, cfg config.Config) (remote.Store, func() error, error) {
	switch {
	case cfg.DatabaseURL != "":
		pg, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		log.Println("remote store: postgres")
		return pg, pg.Close, nil
	case cfg.APIBaseURL != "":
		log.Println("remote store: rest")
		return rest.New(cfg.APIBaseURL), nil, nil
	}
	return nil, nil, fmt.Errorf("set DATABASE_URL or API_BASE_URL")
}
