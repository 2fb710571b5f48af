package requestcontext

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, config WithClientIPConfig, headers map[string]string) (*http.Response, string) {
	t.Helper()
	app := fiber.New()
	app.Use(New(WithRequestId(), WithClientIP(config)))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(GetRequestId(c.UserContext()) + "|" + GetClientIP(c.UserContext()))
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestRequestContext(t *testing.T) {
	t.Run("request_id_from_header", func(t *testing.T) {
		resp, body := serve(t, WithClientIPConfig{}, map[string]string{fiber.HeaderXRequestID: "req-1"})
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "req-1", resp.Header.Get(fiber.HeaderXRequestID))
		assert.Contains(t, body, "req-1|")
	})

	t.Run("trusted_header_wins", func(t *testing.T) {
		_, body := serve(t, WithClientIPConfig{TrustedHeader: "X-Real-IP"}, map[string]string{
			"X-Real-IP":               "203.0.113.7",
			fiber.HeaderXForwardedFor: "198.51.100.1",
		})
		assert.Contains(t, body, "|203.0.113.7")
	})

	t.Run("walks_past_trusted_proxies", func(t *testing.T) {
		_, body := serve(t, WithClientIPConfig{TrustedProxiesIP: []string{"10.0.0.0/8"}}, map[string]string{
			fiber.HeaderXForwardedFor: "198.51.100.1, 203.0.113.9, 10.1.2.3",
		})
		assert.Contains(t, body, "|203.0.113.9")
	})

	t.Run("rejects_unverifiable_forwarding", func(t *testing.T) {
		resp, _ := serve(t, WithClientIPConfig{EnableRejectMalformedRequest: true}, map[string]string{
			fiber.HeaderXForwardedFor: "198.51.100.1",
		})
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})
}
