// handlers/missions.go
package handlers

import (
	"guild-quest-engine/engine"
	"guild-quest-engine/middleware"
	"guild-quest-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupMissionRoutes(router fiber.Router, missionService *services.MissionService) {
	router.Post("/missions", func(c *fiber.Ctx) error {
		var req struct {
			GuildID string `json:"guild_id"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		if req.GuildID == "" {
			return respondError(c, "start mission", engine.Reject(engine.RejectInvalidInput, "guild_id is required"))
		}
		mission, err := missionService.StartMission(c.UserContext(), req.GuildID, middleware.UserID(c))
		if err != nil {
			return respondError(c, "start mission", err)
		}
		return c.Status(fiber.StatusCreated).JSON(mission)
	})

	// Registered before /missions/:id so "active" is not taken as an id.
	router.Get("/missions/active", func(c *fiber.Ctx) error {
		mission, err := missionService.ActiveMissionForUser(c.UserContext(), middleware.UserID(c))
		if err != nil {
			return respondError(c, "load active mission", err)
		}
		board, err := missionService.GetScoreboard(c.UserContext(), mission.ID)
		if err != nil {
			return respondError(c, "load scoreboard", err)
		}
		return c.JSON(board)
	})

	router.Get("/missions/:id", func(c *fiber.Ctx) error {
		board, err := missionService.GetScoreboard(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, "load scoreboard", err)
		}
		return c.JSON(board)
	})

	router.Post("/missions/:id/contributions", func(c *fiber.Ctx) error {
		var req struct {
			Kind   string `json:"kind"`
			Amount int64  `json:"amount"`
		}
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
		kind, err := engine.ParseContributionKind(req.Kind)
		if err != nil {
			return respondError(c, "record contribution", err)
		}
		res, err := missionService.RecordContribution(c.UserContext(), c.Params("id"), middleware.UserID(c),
			kind, req.Amount, middleware.Locale(c))
		if err != nil {
			return respondError(c, "record contribution", err)
		}
		return c.JSON(res)
	})

	router.Post("/missions/:id/evaluate", func(c *fiber.Ctx) error {
		mission, err := missionService.EvaluateMissionExpiry(c.UserContext(), c.Params("id"))
		if err != nil {
			return respondError(c, "evaluate mission", err)
		}
		return c.JSON(mission)
	})
}
