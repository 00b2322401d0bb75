package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	l := newLogger()
	if gin.Mode() != gin.ReleaseMode {
		l = newDevelopmentLogger()
	}
	defer l.Sync()

	l.Info("Starting FoodVision API...")

	cfg, err := loadConfig()
	if err != nil {
		l.Fatalw("Failed to load config", "error", err)
	}
	if cfg.DB.URL == "" {
		l.Fatal("DB_URL is not configured")
	}
	if cfg.OpenAI.APIKey == "" && !cfg.Demo.Enabled {
		l.Fatal("OPENAI_API_KEY is not configured")
	}

	// Connect with retry — managed Postgres can take a few seconds to wake.
	ctx := context.Background()
	var pool *pgxpool.Pool
	for i := 0; i < 5; i++ {
		pool, err = newDBPool(ctx, cfg)
		if err == nil {
			break
		}
		l.Errorw("Failed to connect to database, retrying...", "error", err)
		time.Sleep(time.Duration(i+1) * time.Second)
	}
	if pool == nil {
		l.Fatalw("Failed to connect to database after multiple attempts", "error", err)
	}
	defer pool.Close()

	h := newHandler(pool, cfg, l)
	h.reminders.Start()

	router := gin.Default()
	router.SetTrustedProxies(nil)
	h.registerRoutes(router)

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		l.Infow("Starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			l.Fatalw("HTTP server failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	l.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		l.Errorw("Error during HTTP server shutdown", "error", err)
	}
	h.reminders.Stop(shutdownCtx)

	l.Info("Server stopped")
}
