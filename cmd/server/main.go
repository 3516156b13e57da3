package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"

	"github.com/stitchfolk/pattern-delivery/internal/api"
	"github.com/stitchfolk/pattern-delivery/internal/config"
	"github.com/stitchfolk/pattern-delivery/internal/dedupe"
	"github.com/stitchfolk/pattern-delivery/internal/delivery"
	"github.com/stitchfolk/pattern-delivery/internal/mail"
	"github.com/stitchfolk/pattern-delivery/internal/repository/postgres"
	"github.com/stitchfolk/pattern-delivery/internal/safefetch"
	"github.com/stitchfolk/pattern-delivery/internal/watermark"
)

// checkPortAvailable verifies that the target port is not already in use.
func checkPortAvailable(host string, port int) error {
	addr := fmt.Sprintf("%s:%d", host, port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("port %d is already in use (addr %s): %v", port, addr, err)
	}
	ln.Close()
	return nil
}

func main() {
	log.Println("Stitchfolk Pattern Delivery Service (cmd/server)")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Delivery.FromEmail == "" {
		log.Fatal("delivery.from_email is required")
	}
	if len(cfg.Delivery.StorageHosts) == 0 {
		log.Fatal("delivery.storage_hosts is required; refusing to fetch from arbitrary hosts")
	}

	if err := checkPortAvailable(cfg.Server.GetHost(), cfg.Server.Port); err != nil {
		log.Fatalf("Port check failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Marketplace database (read-only order lookups).
	if !cfg.Database.Enabled || cfg.Database.URL == "" {
		log.Fatal("database.url is required (set DATABASE_URL)")
	}
	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	pingCtx, pingCancel := context.WithTimeout(ctx, 10*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Database unreachable: %v", err)
	}
	pingCancel()
	log.Println("Connected to marketplace database")

	// Redis dedupe is optional; without it retried webhooks may double-send.
	var claimer api.Claimer
	if cfg.Redis.Enabled {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Printf("Warning: Redis unreachable, delivery dedupe disabled: %v", err)
		} else {
			claimer = api.NewDedupeClaimer(dedupe.NewStore(redisClient, cfg.Delivery.DedupeTTL()))
			log.Printf("Delivery dedupe enabled (ttl %s)", cfg.Delivery.DedupeTTL())
		}
	} else {
		log.Println("Redis disabled, delivery dedupe off")
	}

	sender, err := mail.NewSESSender(ctx, cfg.SES)
	if err != nil {
		log.Fatalf("Failed to initialize SES sender: %v", err)
	}
	log.Printf("SES sender ready (region %s)", cfg.SES.Region)

	fetcher := safefetch.NewClient(cfg.Delivery.FetchTimeout(), cfg.Delivery.MaxFileBytes)
	stamper := watermark.NewEngine(cfg.Delivery.BrandMarkPath)
	templates := mail.NewTemplates(cfg.Delivery.SubjectTemplate)

	orchestrator := delivery.NewOrchestrator(
		fetcher, stamper, sender, templates,
		cfg.Delivery.StorageHosts,
		cfg.Delivery.FromEmail, cfg.Delivery.FromName, cfg.Delivery.ReplyTo,
	)
	log.Printf("Delivery pipeline ready (allow-list: %v)", cfg.Delivery.StorageHosts)

	handlers := api.NewHandlers(postgres.NewOrderRepo(db), orchestrator, claimer)
	server := api.NewServer(cfg.Server, handlers)

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.Server.GetHost(), cfg.Server.Port)
		log.Printf("Starting server on %s", addr)
		if err := server.ListenAndServe(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	<-done
	log.Println("Shutting down...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server shutdown error: %v", err)
	}

	log.Println("Server stopped")
}
