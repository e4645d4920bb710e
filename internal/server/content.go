package server

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"

	"github.com/ovenzeze/hugo-tour-guide/internal/content"
)

// document 返回 {path}.md 解析后的 HTML 和目录
func (s *Server) document(c *fiber.Ctx) error {
	if s.deps.Docs == nil {
		return fail(c, fiber.StatusServiceUnavailable, "Documentation is not configured")
	}
	path := c.Params("*")

	doc, err := s.deps.Docs.Load(path)
	if err != nil {
		if !errors.Is(err, content.ErrNotFound) && !errors.Is(err, content.ErrInvalidPath) {
			logrus.Warnf("server: load document %q: %v", path, err)
		}
		return fail(c, fiber.StatusNotFound, "Document not found: "+path)
	}
	return c.JSON(doc)
}
