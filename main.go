// main.go
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"authform/auth"
	"authform/books"
	"authform/config"
	"authform/db"
	"authform/logging"
	"authform/server"
)

func main() {
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatal("Configuration failed: ", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogEncoding)
	if err != nil {
		log.Fatal("Logger initialization failed: ", err)
	}
	defer logger.Sync()

	var store db.Store
	if cfg.DatabaseURL == "" {
		logger.Warn("DATABASE_URL not set, users and books are kept in memory")
		store = db.NewMemory()
	} else {
		database, err := db.NewDB(cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("Database connection failed", zap.Error(err))
		}
		defer database.Close()
		if err := database.Migrate(); err != nil {
			logger.Fatal("Database migration failed", zap.Error(err))
		}
		store = database
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	catalog := books.NewClient(cfg.GoogleBooksURL, nil, logger.Named("books"))
	srv := server.NewServer(store, auth.NewIssuer(cfg.JWTSecret, cfg.TokenTTL), catalog, logger)
	go srv.Hub().Run(ctx)

	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(cfg.CORSOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("Server starting", zap.String("addr", cfg.Addr()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Info("Server shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Forced shutdown", zap.Error(err))
	}
}
