// handlers/tasks.go
package handlers

import (
	"context"

	"guild-quest-engine/middleware"
	"guild-quest-engine/models"
	"guild-quest-engine/services"

	"github.com/gofiber/fiber/v2"
)

func SetupTaskRoutes(router fiber.Router, taskService *services.TaskService) {
	router.Post("/tasks", func(c *fiber.Ctx) error {
		var in services.TaskInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		task, err := taskService.CreateTask(c.UserContext(), middleware.UserID(c), in, middleware.Locale(c))
		if err != nil {
			return respondError(c, "create task", err)
		}
		return c.Status(fiber.StatusCreated).JSON(task)
	})

	router.Get("/tasks", func(c *fiber.Ctx) error {
		tasks, err := taskService.ListTasks(c.UserContext(), middleware.UserID(c), c.Query("status"))
		if err != nil {
			return respondError(c, "list tasks", err)
		}
		return c.JSON(tasks)
	})

	router.Get("/tasks/quota", func(c *fiber.Ctx) error {
		usage, err := taskService.QuotaUsage(c.UserContext(), middleware.UserID(c), middleware.Locale(c))
		if err != nil {
			return respondError(c, "quota usage", err)
		}
		rules := make([]fiber.Map, 0, len(usage))
		for _, u := range usage {
			rules = append(rules, fiber.Map{
				"rule":         u.Rule.Name,
				"period":       u.Rule.Period,
				"limit":        u.Rule.Limit,
				"used":         u.Used,
				"remaining":    u.Remaining,
				"window_start": u.Window.StartKey(),
				"window_end":   u.Window.EndKey(),
			})
		}
		return c.JSON(fiber.Map{"rules": rules})
	})

	router.Put("/tasks/:id", func(c *fiber.Ctx) error {
		var in services.TaskInput
		if err := c.BodyParser(&in); err != nil {
			return badRequest(c, err)
		}
		task, err := taskService.UpdateTask(c.UserContext(), middleware.UserID(c), c.Params("id"), in, middleware.Locale(c))
		if err != nil {
			return respondError(c, "update task", err)
		}
		return c.JSON(task)
	})

	router.Post("/tasks/:id/complete", func(c *fiber.Ctx) error {
		res, err := taskService.CompleteTask(c.UserContext(), middleware.UserID(c), c.Params("id"), middleware.Locale(c))
		if err != nil {
			return respondError(c, "complete task", err)
		}
		return c.JSON(res)
	})

	transitions := []struct {
		action string
		apply  func(context.Context, string, string) (*models.Task, error)
	}{
		{"cancel", taskService.CancelTask},
		{"pause", taskService.PauseTask},
		{"resume", taskService.ResumeTask},
		{"incomplete", taskService.MarkIncomplete},
	}
	for _, tr := range transitions {
		router.Post("/tasks/:id/"+tr.action, func(c *fiber.Ctx) error {
			task, err := tr.apply(c.UserContext(), middleware.UserID(c), c.Params("id"))
			if err != nil {
				return respondError(c, tr.action+" task", err)
			}
			return c.JSON(task)
		})
	}
}
