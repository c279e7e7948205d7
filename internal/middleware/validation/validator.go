package validation

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

var xssPattern = regexp.MustCompile(`(?i)(<script|<iframe|javascript:|onerror=|onload=|onclick=)`)

type Config struct {
	MaxFeaturesLength   int
	AllowedContentTypes []string
	Logger              *zap.Logger
}

// Middleware checks content types on writes and the query parameters of /segment
// before they reach the handlers.
func Middleware(cfg Config) fiber.Handler {
	if cfg.MaxFeaturesLength == 0 {
		cfg.MaxFeaturesLength = 2000
	}
	if len(cfg.AllowedContentTypes) == 0 {
		cfg.AllowedContentTypes = []string{"application/json", "multipart/form-data", "application/x-www-form-urlencoded"}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			contentType := c.Get(fiber.HeaderContentType)
			if contentType != "" && !allowedContentType(contentType, cfg.AllowedContentTypes) {
				return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
					"error": "Unsupported content type",
				})
			}
		}

		if c.Method() == fiber.MethodPost && c.Path() == "/segment" {
			for _, param := range []string{"features", "algorithm", "linkage", "n_clusters"} {
				value := c.Query(param)
				if value == "" {
					continue
				}

				if len(value) > cfg.MaxFeaturesLength {
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": param + " exceeds maximum length",
					})
				}

				if containsControl(value) || containsXSS(value) {
					cfg.Logger.Warn("Rejected segment parameter",
						zap.String("ip", c.IP()),
						zap.String("param", param),
						zap.String("value", value),
					)
					return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
						"error": "Invalid " + param + " content",
					})
				}
			}
		}

		return c.Next()
	}
}

func allowedContentType(contentType string, allowed []string) bool {
	for _, allowedType := range allowed {
		if strings.Contains(contentType, allowedType) {
			return true
		}
	}
	return false
}

func containsXSS(input string) bool {
	return xssPattern.MatchString(input)
}

func containsControl(input string) bool {
	return strings.IndexFunc(input, unicode.IsControl) >= 0
}
