package router

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	redisstorage "github.com/gofiber/storage/redis"

	"github.com/LukasWeber/CardForge/app/controllers"
	"github.com/LukasWeber/CardForge/internal/pkg/env"
	"github.com/LukasWeber/CardForge/internal/pkg/middleware"
)

type ApiRouter struct {
}

func (h ApiRouter) InstallRouter(app *fiber.App) {
	api := app.Group("/api")
	api.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.Status(fiber.StatusOK).JSON(fiber.Map{
			"message": "Hello from api",
		})
	})

	v1 := api.Group("/v1")

	// The webhook endpoint is never rate limited; the gateway retries on
	// anything but a 2xx and throttling it would only multiply deliveries.
	v1.Post("/payments/webhook", controllers.HandlePaymentWebhook)

	v1.Get("/products", controllers.HandleListProducts)

	// Checkout is rate limited with a shared counter so limits hold across
	// multiple app instances.
	checkout := v1.Group("/orders", limiter.New(limiter.Config{
		Max:        20,
		Expiration: time.Minute,
		Storage:    newLimiterStorage(),
	}))
	checkout.Post("/", controllers.HandleCreateOrder)
	checkout.Get("/:id", controllers.HandleGetOrder)

	// Operator surface, API-key protected.
	ops := v1.Group("/ops", middleware.APIKeyAuthMiddleware())
	ops.Get("/notifications", controllers.HandleListNotifications)
	ops.Post("/notifications/:id/resolve", controllers.HandleResolveNotification)
	ops.Get("/orders", controllers.HandleListOrders)
	ops.Post("/orders/:id/redeliver", controllers.HandleRedeliverOrder)
	ops.Post("/proofs/verify", controllers.HandleVerifyProof)
}

func NewApiRouter() *ApiRouter {
	return &ApiRouter{}
}

func newLimiterStorage() fiber.Storage {
	port, err := strconv.Atoi(env.GetEnv("CACHE_PORT", "6379"))
	if err != nil {
		port = 6379
	}
	return redisstorage.New(redisstorage.Config{
		Host: env.GetEnv("CACHE_HOST", "localhost"),
		Port: port,
	})
}
