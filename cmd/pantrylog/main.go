package main

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/pantrylog/pantrylog/internal/analyzer"
	"github.com/pantrylog/pantrylog/internal/api"
	"github.com/pantrylog/pantrylog/internal/config"
	"github.com/pantrylog/pantrylog/internal/db"
	"github.com/pantrylog/pantrylog/internal/lifecycle"
	"github.com/pantrylog/pantrylog/internal/scheduler"
	"github.com/pantrylog/pantrylog/internal/store"
	"github.com/pantrylog/pantrylog/internal/ws"
	"github.com/pantrylog/pantrylog/pkg/logger"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	log := logger.Must(logger.New(cfg.Debug))
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	// First start against a fresh database also creates the admin account.
	freshDB := false
	if _, err := os.Stat(cfg.DB.Path); os.IsNotExist(err) {
		freshDB = true
	}

	database, err := db.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer database.Close()

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	if freshDB {
		password, err := createAdmin(database)
		if err != nil {
			return fmt.Errorf("creating admin user: %w", err)
		}
		fmt.Printf("Database created: %s\n", cfg.DB.Path)
		fmt.Println()
		fmt.Println("Admin account created:")
		fmt.Println("  Username: admin")
		fmt.Printf("  Password: %s\n", password)
		fmt.Println()
		fmt.Println("Save this password — it cannot be recovered.")
		fmt.Println("It can be changed after logging in.")
		fmt.Println()
	}

	// The signing secret lives in the database so restarts keep sessions.
	jwtSecret, err := store.GetJWTSecret(context.Background(), database)
	if err != nil {
		return fmt.Errorf("loading jwt secret: %w", err)
	}

	var an analyzer.Client
	if cfg.AnalysisEnabled() {
		an = analyzer.NewClient(cfg.Analyzer.BaseURL, cfg.Analyzer.APIKey)
		log.Info("photo analyzer enabled")
	} else {
		log.Info("photo analyzer disabled, items are entered by hand")
	}

	svc := lifecycle.NewService(database, an, logger.Named(log, "lifecycle"))

	hub := ws.NewHub(logger.Named(log, "ws"))
	svc.Subscribe(hub)

	sched := scheduler.New(svc, cfg.Sweep.CronSchedule, logger.Named(log, "scheduler"))
	sched.Start()
	defer sched.Stop()

	server := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: api.NewRouter(database, jwtSecret, svc, hub, logger.Named(log, "api")),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", zap.String("addr", cfg.Server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// createAdmin creates the initial admin account with a random password.
func createAdmin(database *sql.DB) (string, error) {
	password, err := generatePassword(16)
	if err != nil {
		return "", err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}

	if _, err := store.CreateUser(context.Background(), database, "admin", string(hash)); err != nil {
		return "", err
	}
	return password, nil
}

// generatePassword creates a random password of the given length.
func generatePassword(length int) (string, error) {
	const charset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789!@#$%&*"
	result := make([]byte, length)
	for i := range result {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		result[i] = charset[n.Int64()]
	}
	return string(result), nil
}
