package validation

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxFeaturesLength: 32}))
	app.Post("/segment", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Post("/upload", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	return app
}

func status(t *testing.T, app *fiber.App, req *http.Request) int {
	t.Helper()
	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

func segmentRequest(features string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/segment?features="+url.QueryEscape(features), nil)
}

func TestSegmentParameters(t *testing.T) {
	app := newApp()

	tests := []struct {
		name     string
		features string
		want     int
	}{
		{"plain", "Age,Income", fiber.StatusOK},
		{"too long", strings.Repeat("a", 33), fiber.StatusBadRequest},
		{"control character", "Age\x00", fiber.StatusBadRequest},
		{"script", "<script>alert(1)</script>", fiber.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := status(t, app, segmentRequest(tt.features)); got != tt.want {
				t.Errorf("got %d, want %d", got, tt.want)
			}
		})
	}
}

func TestContentType(t *testing.T) {
	app := newApp()

	req := httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/plain")
	if got := status(t, app, req); got != fiber.StatusUnsupportedMediaType {
		t.Errorf("text/plain returned %d", got)
	}

	req = httptest.NewRequest(http.MethodPost, "/upload", strings.NewReader("x"))
	req.Header.Set("Content-Type", "multipart/form-data; boundary=abc")
	if got := status(t, app, req); got != fiber.StatusOK {
		t.Errorf("multipart returned %d", got)
	}
}
