// handlers/bosses.go
package handlers

import (
	"guild-quest-engine/middleware"
	"guild-quest-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupBossRoutes(router fiber.Router, bossService *services.BossService) {
	router.Post("/bosses", func(c *fiber.Ctx) error {
		boss, err := bossService.SpawnBoss(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "spawn boss", err)
		}
		return c.JSON(boss)
	})

	router.Get("/bosses/current", func(c *fiber.Ctx) error {
		boss, err := bossService.CurrentBoss(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "load boss", err)
		}
		return c.JSON(boss)
	})

	router.Post("/bosses/:id/attack", func(c *fiber.Ctx) error {
		var req struct {
			Damage int64 `json:"damage"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		res, err := bossService.AttackBoss(c.UserContext(), middleware.UserID(c), c.Params("id"), req.Damage)
		if err != nil {
			return respondError(c, "attack boss", err)
		}
		return c.JSON(res)
	})
}
