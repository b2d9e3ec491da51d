package routes

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/congo-pay/escrow_engine/internal/config"
	"github.com/congo-pay/escrow_engine/internal/escrow"
	"github.com/congo-pay/escrow_engine/internal/ledger"
	"github.com/congo-pay/escrow_engine/internal/middleware"
	"github.com/congo-pay/escrow_engine/internal/notification"
	"github.com/congo-pay/escrow_engine/internal/orderquery"
	"github.com/congo-pay/escrow_engine/internal/orders"
	"github.com/congo-pay/escrow_engine/internal/reviews"
	"github.com/congo-pay/escrow_engine/internal/store"
)

// Deps aggregates shared dependencies required to wire routes. DB and Cache
// may be nil in development; Store and Publisher are always set.
type Deps struct {
	Cfg       config.Config
	DB        *pgxpool.Pool
	Cache     *redis.Client
	Store     store.Store
	Publisher notification.Publisher
	Logger    *slog.Logger
}

// Setup configures middlewares and all application routes.
func Setup(app *fiber.App, d Deps) error {
	if d.Store == nil {
		return errors.New("routes: store is required")
	}
	if !d.Cfg.Development() && d.DB == nil {
		return fmt.Errorf("database is required when APP_ENV=%s", d.Cfg.AppEnv)
	}
	if d.Publisher == nil {
		d.Publisher = notification.NewLoggerPublisher(d.Logger)
	}

	app.Use(recover.New())
	app.Use(middleware.RequestID(d.Logger))
	if d.Cfg.Development() {
		app.Use(logger.New(logger.Config{
			Format:     "[${time}] ${status} -  ${latency} ${method} ${path}\n",
			TimeFormat: "15:04:05",
			TimeZone:   "Local",
		}))
	}
	app.Use(middleware.Audit(d.Logger))

	RegisterHealthRoutes(app, d)

	ledgerSvc := ledger.NewService(d.Store, d.Publisher, d.Logger)
	escrowMgr := escrow.NewManager(d.Store, ledgerSvc, d.Publisher, d.Logger)
	orderSvc := orders.NewService(d.Store, escrowMgr, d.Publisher, d.Logger, d.Cfg.ConflictRetries)
	gate := reviews.NewGate(d.Store)
	querySvc := orderquery.NewService(d.Store, gate)

	api := app.Group("/api/v1")
	api.Get("/ping", func(c *fiber.Ctx) error {
		return c.Status(http.StatusOK).JSON(fiber.Map{
			"status":     "ok",
			"request_id": middleware.RequestIDFrom(c),
			"timestamp":  time.Now().UTC().Format(time.RFC3339Nano),
		})
	})

	protected := api.Group("", middleware.JWTAuth(d.Cfg.JWTSecret, ledgerSvc))
	idempotent := middleware.Idempotency(d.Cache, d.Cfg.IdempotencyTTL, d.Logger)
	limited := middleware.RateLimit(d.Cache, "orders", d.Cfg.OrderRateLimit, d.Logger)

	RegisterBalanceRoutes(protected, ledger.NewHandler(ledgerSvc), idempotent)
	RegisterOrderRoutes(protected, orders.NewHandler(orderSvc), orderquery.NewHandler(querySvc), idempotent, limited)
	RegisterReviewRoutes(protected, reviews.NewHandler(gate))

	return nil
}
