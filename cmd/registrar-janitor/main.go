package main

import (
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/terrierbot/registrar/pkg/credits"
	"github.com/terrierbot/registrar/pkg/observability"
	"github.com/terrierbot/registrar/pkg/purchases"
	"github.com/terrierbot/registrar/pkg/sessions"
)

var (
	dbURL          = flag.String("db-url", getEnv("REGISTRAR_POSTGRES_URL", "postgres://localhost/registrar?sslmode=disable"), "PostgreSQL connection URL")
	expireSchedule = flag.String("expire-schedule", "30 * * * *", "Cron schedule for expiring abandoned checkouts (default: half past every hour)")
	abandonedAfter = flag.Duration("abandoned-after", 24*time.Hour, "Age after which an open checkout is considered abandoned")
	staleAfter     = flag.Duration("stale-after", sessions.DefaultStaleAfter, "Heartbeat age after which a session is considered orphaned")
	logLevel       = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	runOnce        = flag.Bool("run-once", false, "Run the maintenance passes once and exit")
)

// The janitor closes out purchase sessions the billing provider never
// reported back on. A checkout left open past the abandonment window is
// marked failed so the ledger stops treating it as pending.
func main() {
	flag.Parse()

	logger := setupLogger(*logLevel)
	logger.Info("Starting registrar janitor")

	db, err := connectDatabase(*dbURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	creditLedger := credits.NewPostgresLedger(db)
	ledger := purchases.NewPostgresLedger(db, creditLedger)
	registry := sessions.NewPostgresRegistry(db, creditLedger)
	reaper := sessions.NewReaper(registry,
		observability.NewLogger(observability.InfoLevel, os.Stdout), nil, 0, *staleAfter)

	// One reap pass on startup catches sessions orphaned by a server
	// crash; steady-state reaping belongs to the server's own reaper.
	if n := reaper.Sweep(); n > 0 {
		logger.Infof("Reaped %d orphaned sessions", n)
	}

	if *runOnce {
		if err := expireAbandoned(ledger, logger); err != nil {
			logger.Fatalf("Expiry pass failed: %v", err)
		}
		return
	}

	c := cron.New()

	_, err = c.AddFunc(*expireSchedule, func() {
		if err := expireAbandoned(ledger, logger); err != nil {
			logger.Errorf("Expiry pass failed: %v", err)
		}
	})
	if err != nil {
		logger.Fatalf("Failed to schedule checkout expiry: %v", err)
	}

	// Run one pass on startup so a long-dead janitor catches up
	// immediately instead of waiting for the next tick
	if err := expireAbandoned(ledger, logger); err != nil {
		logger.Errorf("Startup expiry pass failed: %v", err)
	}

	c.Start()
	logger.Infof("Checkout expiry schedule: %s (abandoned after %v)", *expireSchedule, *abandonedAfter)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	<-sigChan
	logger.Info("Shutting down gracefully...")

	ctx := c.Stop()
	<-ctx.Done()

	logger.Info("Janitor stopped")
}

func expireAbandoned(ledger purchases.Ledger, logger *logrus.Logger) error {
	cutoff := time.Now().Add(-*abandonedAfter).Unix()

	n, err := ledger.ExpireAbandoned(cutoff)
	if err != nil {
		return err
	}

	if n > 0 {
		logger.Infof("Expired %d abandoned checkouts", n)
	} else {
		logger.Debug("No abandoned checkouts found")
	}
	return nil
}

func setupLogger(logLevel string) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

func connectDatabase(connectionString string) (*sql.DB, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return db, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
