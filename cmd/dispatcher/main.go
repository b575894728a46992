package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/campaign-mailer/internal/config"
	"github.com/ignite/campaign-mailer/internal/dispatch"
	"github.com/ignite/campaign-mailer/internal/pkg/distlock"
	"github.com/ignite/campaign-mailer/internal/pkg/logger"
	"github.com/ignite/campaign-mailer/internal/repository/postgres"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		configPath = flag.String("config", "config/config.yaml", "path to the config file")
		once       = flag.Bool("once", false, "run a single tick and exit")
		dryRun     = flag.Bool("dry-run", false, "report due campaigns without sending or advancing")
	)
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger.SetLevel(logger.ParseLevel(cfg.Logging.Level))
	if cfg.Logging.RedactPII != nil {
		logger.SetRedactPII(*cfg.Logging.RedactPII)
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	db.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	if err := db.PingContext(pingCtx); err != nil {
		pingCancel()
		log.Fatalf("Failed to ping database: %v", err)
	}
	pingCancel()
	log.Println("Connected to database")

	// Redis is optional: without it campaign leases fall back to
	// PostgreSQL advisory locks.
	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, pingCancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(pingCtx).Err(); err != nil {
			log.Printf("Warning: Redis connection failed (%s): %v — falling back to PG advisory locks", cfg.Redis.Addr, err)
			redisClient.Close()
			redisClient = nil
		} else {
			log.Printf("Redis connected: %s (distributed leasing enabled)", cfg.Redis.Addr)
		}
		pingCancel()
	} else {
		log.Println("Redis not configured — using PG advisory locks for campaign leases")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	leases := distlock.NewManager(redisClient, db, cfg.Dispatch.LockTTL())
	dispatcher := dispatch.New(postgres.NewDispatchStore(db), leases, dispatch.Options{
		SendTimeout:  cfg.Dispatch.SendTimeout(),
		MessageDelay: cfg.Dispatch.MessageDelay(),
		Concurrency:  cfg.Dispatch.Concurrency,
		DryRun:       *dryRun,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("Shutting down dispatcher...")
		cancel()
	}()

	if *once {
		if err := runTick(ctx, dispatcher); err != nil {
			log.Fatalf("Tick failed: %v", err)
		}
		return
	}

	log.Printf("Dispatcher running (poll interval %s)", cfg.Dispatch.PollInterval())
	ticker := time.NewTicker(cfg.Dispatch.PollInterval())
	defer ticker.Stop()

	// Immediate first tick so a restart doesn't wait a full interval.
	if err := runTick(ctx, dispatcher); err != nil && ctx.Err() != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("Dispatcher stopped")
			return
		case <-ticker.C:
			if err := runTick(ctx, dispatcher); err != nil && ctx.Err() != nil {
				log.Println("Dispatcher stopped")
				return
			}
		}
	}
}

func runTick(ctx context.Context, d *dispatch.Dispatcher) error {
	res, err := d.Tick(ctx)
	if err != nil {
		if ctx.Err() == nil {
			log.Printf("Tick error: %v", err)
		}
		return err
	}
	if res.Due > 0 {
		log.Printf("Tick: due=%d dispatched=%d skipped=%d sent=%d failed=%d errors=%d",
			res.Due, res.Dispatched, res.Skipped, res.Sent, res.Failed, res.Errors)
	}
	return nil
}
