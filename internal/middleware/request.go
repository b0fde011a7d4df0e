package middleware

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"k8s.io/klog/v2"

	"github.com/makeasinger/moviegen/internal/logging"
	"github.com/makeasinger/moviegen/internal/metrics"
)

const HeaderRequestID = "X-Request-ID"

// RequestContext assigns a request id, attaches a request-scoped logger to the
// user context and records HTTP metrics.
func RequestContext() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		metrics.RecordRequestStart()

		requestID := c.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Set(HeaderRequestID, requestID)
		c.Locals("requestId", requestID)

		logger := klog.Background().WithValues("requestID", requestID)
		c.SetUserContext(klog.NewContext(c.UserContext(), logger))

		err := c.Next()
		if err != nil {
			// Let the error handler set the final status before recording it
			if herr := c.App().ErrorHandler(c, err); herr != nil {
				_ = c.SendStatus(fiber.StatusInternalServerError)
			}
		}

		status := c.Response().StatusCode()
		elapsed := time.Since(start)
		metrics.RecordRequestFinish(c.Method(), routePath(c), strconv.Itoa(status), elapsed.Seconds())
		logger.V(logging.DEBUG).Info("request handled",
			"method", c.Method(), "path", c.Path(), "status", status, "latency", elapsed)

		return nil
	}
}

// GetRequestID returns the id assigned by RequestContext
func GetRequestID(c *fiber.Ctx) string {
	if id, ok := c.Locals("requestId").(string); ok {
		return id
	}
	return ""
}

// routePath keeps metric cardinality bounded by using the route pattern.
func routePath(c *fiber.Ctx) string {
	if r := c.Route(); r != nil && r.Path != "" {
		return r.Path
	}
	return "unmatched"
}
