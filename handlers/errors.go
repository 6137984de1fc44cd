// handlers/errors.go
package handlers

import (
	"log"

	"guild-quest-engine/engine"

	"github.com/gofiber/fiber/v2"
)

func rejectionStatus(kind engine.RejectionKind) int {
	switch kind {
	case engine.RejectInvalidInput:
		return fiber.StatusBadRequest
	case engine.RejectUnauthorized:
		return fiber.StatusForbidden
	case engine.RejectNotFound:
		return fiber.StatusNotFound
	case engine.RejectQuotaExceeded:
		return fiber.StatusTooManyRequests
	case engine.RejectAlreadyTerminal, engine.RejectInvalidTransition, engine.RejectConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusBadRequest
	}
}

// respondError writes the JSON error body for err. Rejections are the caller's
// to fix; store errors can be retried as-is.
func respondError(c *fiber.Ctx, action string, err error) error {
	if r, ok := engine.AsRejection(err); ok {
		return c.Status(rejectionStatus(r.Kind)).JSON(fiber.Map{
			"error": r.Reason,
			"cause": string(r.Kind),
		})
	}
	if engine.IsStoreError(err) {
		log.Printf("❌ [API] %s failed: %v", action, err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error":     action + " failed",
			"cause":     err.Error(),
			"retryable": true,
		})
	}
	log.Printf("❌ [API] %s failed: %v", action, err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": action + " failed",
		"cause": err.Error(),
	})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "invalid JSON",
		"cause": err.Error(),
	})
}
