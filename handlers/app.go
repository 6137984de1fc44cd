// handlers/app.go
package handlers

import (
	"log"
	"strings"

	"guild-quest-engine/config"
	"guild-quest-engine/middleware"
	"guild-quest-engine/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
)

// Services groups what the HTTP layer calls into.
type Services struct {
	Tasks       *services.TaskService
	Missions    *services.MissionService
	Bosses      *services.BossService
	Progression *services.ProgressionService
	Gatherer    prometheus.Gatherer
}

// NewApp builds the Fiber app with every route mounted.
func NewApp(cfg config.Config, svc Services) *fiber.App {
	app := fiber.New(fiber.Config{
		BodyLimit: 1 * 1024 * 1024,
	})
	app.Use(recover.New())

	// 🔐 Only Gateway requests allowed when a token is configured
	if cfg.GatewayToken != "" {
		app.Use(middleware.GatewayAuthMiddleware(cfg.GatewayToken))
	} else {
		log.Println("⚠️  GATEWAY_TOKEN not set, gateway authentication disabled")
	}

	if len(cfg.AllowedOrigins) > 0 {
		app.Use(cors.New(cors.Config{
			AllowOrigins:     strings.Join(cfg.AllowedOrigins, ","),
			AllowMethods:     "GET,POST,PUT,OPTIONS,HEAD",
			AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Locale, X-User-Timezone",
			ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
			AllowCredentials: true,
			MaxAge:           86400,
		}))
	}

	if svc.Gatherer != nil {
		SetupMetricsRoute(app, svc.Gatherer)
	}

	// 🔐 Everything else needs the caller's identity and calendar
	secured := app.Group("/", middleware.UserContextMiddleware(), middleware.LocaleMiddleware())
	SetupTaskRoutes(secured, svc.Tasks)
	SetupMissionRoutes(secured, svc.Missions)
	SetupBossRoutes(secured, svc.Bosses)
	SetupProgressionRoutes(secured, svc.Progression)
	return app
}
