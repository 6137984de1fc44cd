// handlers/progression_routes.go
package handlers

import (
	"guild-quest-engine/middleware"
	"guild-quest-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupProgressionRoutes(router fiber.Router, progressionService *services.ProgressionService) {
	// The gateway forwards /api/v1/quests/s/user/progress -> /user/progress
	router.Get("/user/progress", func(c *fiber.Ctx) error {
		view, err := progressionService.GetProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "load progress", err)
		}
		return c.JSON(view)
	})

	router.Get("/user/progress/badges", func(c *fiber.Ctx) error {
		view, err := progressionService.GetProgress(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "load badges", err)
		}
		return c.JSON(view.Badges)
	})
}
