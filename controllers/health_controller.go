package controller

import (
	"context"
	"time"

	"leadintake/store"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

// HealthCheck is one named backend checked by the health endpoint.
type HealthCheck struct {
	Name   string
	Pinger store.Pinger
}

type HealthController struct {
	Checks  []HealthCheck
	Timeout time.Duration
	Version string
	Logger  *logrus.Entry
}

func NewHealthController(checks []HealthCheck, version string, logger *logrus.Entry) *HealthController {
	return &HealthController{
		Checks:  checks,
		Timeout: 2 * time.Second,
		Version: version,
		Logger:  logger,
	}
}

// Health pings every backing store. Any failure turns the response into a 503.
func (hc *HealthController) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), hc.Timeout)
	defer cancel()

	stores := make(fiber.Map, len(hc.Checks))
	healthy := true
	for _, check := range hc.Checks {
		if err := check.Pinger.Ping(ctx); err != nil {
			healthy = false
			stores[check.Name] = fiber.Map{"status": "down", "error": err.Error()}
			hc.Logger.WithError(err).WithField("store", check.Name).Warn("Health check failed")
			continue
		}
		stores[check.Name] = fiber.Map{"status": "up"}
	}

	status, code := "ok", fiber.StatusOK
	if !healthy {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{
		"status":  status,
		"version": hc.Version,
		"stores":  stores,
	})
}
