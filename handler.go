package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// Handler holds shared dependencies (db pool, repo, ledgers, AI client,
// logger, config) for all route handlers.
type Handler struct {
	db        *pgxpool.Pool
	repo      *repository
	ledgers   *ledgerSet
	reminders *reminderQueue
	ai        *openai.Client
	cfg       *Config
	log       *zap.SugaredLogger
}

// newHandler wires the handler graph: repository over the pool, reminder
// queue feeding the push sender, one ledger per user on demand, and the
// OpenAI client pointed at the configured base URL (overridable for tests).
func newHandler(db *pgxpool.Pool, cfg *Config, log *zap.SugaredLogger) *Handler {
	repo := newRepository(db)

	var sender pushSender
	if cfg.Push.Enabled {
		sender = newExpoPushSender(cfg.Push.URL, repo, log)
	}
	reminders := newReminderQueue(sender, log)

	aiConfig := openai.DefaultConfig(cfg.OpenAI.APIKey)
	aiConfig.BaseURL = cfg.OpenAI.BaseURL

	return &Handler{
		db:        db,
		repo:      repo,
		ledgers:   newLedgerSet(repo, reminders, log),
		reminders: reminders,
		ai:        openai.NewClientWithConfig(aiConfig),
		cfg:       cfg,
		log:       log,
	}
}

/* ─── Database helpers ────────────────────────────────────────────────── */

// queryOne runs a query and scans the first row into T using RowToStructByName.
func queryOne[T any](pool *pgxpool.Pool, ctx context.Context, sql string, args pgx.NamedArgs) (T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		var zero T
		return zero, err
	}
	return pgx.CollectOneRow(rows, pgx.RowToStructByName[T])
}

// queryMany runs a query and scans all rows into []T using RowToStructByName.
func queryMany[T any](pool *pgxpool.Pool, ctx context.Context, sql string, args pgx.NamedArgs) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowToStructByName[T])
}

// apiError returns a consistent JSON error response: {"error": "message"}.
func apiError(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"error": message})
}

/* ─── Server setup ────────────────────────────────────────────────────── */

// newDBPool creates a connection pool. We use a pool (not a single conn)
// because managed Postgres providers close idle connections after a few minutes.
func newDBPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DB URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.DB.MaxOpenConns)
	// Use simple query protocol to avoid "cached plan must not change result type"
	// errors from server-side prepared statement caches after schema changes.
	poolConfig.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// registerRoutes registers all API routes on the router.
func (h *Handler) registerRoutes(router *gin.Engine) {
	// Public routes
	router.GET("/health", func(c *gin.Context) {
		c.String(200, "OK")
	})
	router.POST("/api/login", h.login)

	// Authenticated routes. The middleware also runs the day-boundary check
	// — every authenticated request counts as an app-resume event.
	api := router.Group("/api", h.authMiddleware())
	api.GET("/profile", h.getProfile)
	api.PUT("/profile", h.updateProfile)
	api.POST("/analyze-food", h.analyzeFood)
	api.POST("/notifications/register", h.registerPushToken)
	api.GET("/log/daily", h.getDailySummary)
	api.GET("/log/week-summary", h.getWeekSummary)
	api.POST("/log/meals", h.logMeal)
	api.DELETE("/log/meals/:id", h.deleteMeal)
	api.POST("/log/water", h.addWater)
	api.POST("/log/activity", h.setActivity)
}
