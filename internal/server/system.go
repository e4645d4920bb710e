package server

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"github.com/ovenzeze/hugo-tour-guide/internal/storage"
)

var promHandler = fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())

func metricsHandler(c *fiber.Ctx) error {
	promHandler(c.Context())
	return nil
}

// health 检查数据库和缓存，未配置的依赖报告 disabled
func (s *Server) health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	checks := fiber.Map{}
	healthy := true
	check := func(name string, ping func(context.Context) error) {
		if ping == nil {
			checks[name] = "disabled"
			return
		}
		if err := ping(ctx); err != nil {
			checks[name] = err.Error()
			healthy = false
			return
		}
		checks[name] = "ok"
	}

	var dbPing, cachePing func(context.Context) error
	if s.deps.Store != nil {
		dbPing = s.deps.Store.Ping
	}
	if s.deps.Cache != nil {
		cachePing = s.deps.Cache.Ping
	}
	check("database", dbPing)
	check("cache", cachePing)

	status, code := "ok", fiber.StatusOK
	if !healthy {
		status, code = "degraded", fiber.StatusServiceUnavailable
	}
	return c.Status(code).JSON(fiber.Map{"status": status, "checks": checks})
}

// storageCheck GET /api/storage-check
func (s *Server) storageCheck(c *fiber.Ctx) error {
	if s.deps.Objects == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Storage is not configured")
	}

	buckets, err := s.deps.Objects.ListBuckets(c.UserContext())
	if err != nil {
		if errors.Is(err, storage.ErrUnauthorized) {
			return fail(c, fiber.StatusUnauthorized, "Authentication error accessing storage. Check the storage access keys. Original: "+err.Error())
		}
		return fail(c, fiber.StatusInternalServerError, "Failed to list storage buckets: "+err.Error())
	}

	found := false
	for _, b := range buckets {
		if b.Name == s.deps.ExpectedBucket {
			found = true
			break
		}
	}
	return c.JSON(fiber.Map{
		"success":             true,
		"message":             "Successfully connected to storage and listed buckets.",
		"buckets":             buckets,
		"expectedBucketFound": found,
		"expectedBucketName":  s.deps.ExpectedBucket,
	})
}
