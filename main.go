package main

import (
	"fmt"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/monitor"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/LukasWeber/CardForge/internal/pkg/alerting"
	"github.com/LukasWeber/CardForge/internal/pkg/cache"
	"github.com/LukasWeber/CardForge/internal/pkg/database"
	"github.com/LukasWeber/CardForge/internal/pkg/env"
	"github.com/LukasWeber/CardForge/internal/pkg/metrics/counter"
	"github.com/LukasWeber/CardForge/internal/pkg/router"
)

func main() {
	app := NewApplication()
	defer alerting.Shutdown()
	err := app.Listen(fmt.Sprintf("%s:%s", env.GetEnv("APP_HOST", "localhost"), env.GetEnv("APP_PORT", "4000")))
	log.Fatal(err)
}

func NewApplication() *fiber.App {
	env.SetupEnvFile()
	database.SetupDatabase()
	cache.SetupCache()
	alerting.Setup(database.GetDB())

	// Periodically flush pending sales counters from Redis to the database.
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			if err := counter.FlushAll(); err != nil {
				log.Printf("sales counter flush failed: %v", err)
			}
		}
	}()

	app := fiber.New(fiber.Config{
		AppName: "CardForge",
	})
	app.Use(recover.New(), logger.New())
	app.Get("/metrics", monitor.New())

	// ROUTER
	router.InstallRouter(app)

	return app
}
