package handler

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

type HealthHandler struct {
	redis                *redis.Client
	openRouterConfigured bool
	sessions             func() int
}

func NewHealthHandler(redisClient *redis.Client, openRouterConfigured bool, sessions func() int) *HealthHandler {
	return &HealthHandler{
		redis:                redisClient,
		openRouterConfigured: openRouterConfigured,
		sessions:             sessions,
	}
}

// Check handles GET /health
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	redisUp := false
	if h.redis != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
		defer cancel()
		redisUp = h.redis.Ping(ctx).Err() == nil
	}

	active := 0
	if h.sessions != nil {
		active = h.sessions()
	}

	return c.JSON(fiber.Map{
		"status": "ok",
		"services": fiber.Map{
			"openrouter": h.openRouterConfigured,
			"redis":      redisUp,
		},
		"sessions": active,
	})
}
