// Package requestcontext copies per-request values (request id, client ip) from the fiber context
// into the user context, so handlers and their logs can read them.
package requestcontext

import (
	"context"
	"net"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
)

type (
	requestIDKey struct{}
	clientIPKey  struct{}
)

// Option enriches the request context. A rejection stops the request with its status.
type Option func(ctx context.Context, c *fiber.Ctx) (context.Context, error)

type rejection struct {
	status  int
	message string
}

func (r rejection) Error() string { return r.message }

type response struct {
	Error string `json:"error"`
}

func New(opts ...Option) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		for _, opt := range opts {
			next, err := opt(ctx, c)
			if err != nil {
				var rej rejection
				if errors.As(err, &rej) {
					return c.Status(rej.status).JSON(response{Error: rej.message})
				}
				logger.ErrorContext(ctx, "Failed to build request context", err)
				return c.Status(http.StatusInternalServerError).JSON(response{Error: "internal server error"})
			}
			ctx = next
		}
		c.SetUserContext(ctx)
		return c.Next()
	}
}

// GetRequestId returns the request id, or an empty string outside a request.
func GetRequestId(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// WithRequestId reuses the id set by the requestid middleware or the incoming header, else generates one.
func WithRequestId() Option {
	header := requestid.ConfigDefault.Header
	key := requestid.ConfigDefault.ContextKey
	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		id, _ := c.Locals(key).(string)
		if id == "" {
			id = c.Get(header, fiberutils.UUID())
			c.Set(header, id)
			c.Locals(key, id)
		}
		ctx = context.WithValue(ctx, requestIDKey{}, id)
		return logger.WithContext(ctx, slogx.String("request_id", id)), nil
	}
}

type WithClientIPConfig struct {
	// TrustedHeader is read first when set, e.g. CF-Connecting-IP or X-Real-IP.
	TrustedHeader string `env:"TRUSTED_HEADER" mapstructure:"trusted_proxies_header"`

	// TrustedProxiesIP lists the CIDR ranges of every proxy in front of the server.
	// X-Forwarded-For is walked backwards and the first address outside these ranges is the client.
	TrustedProxiesIP []string `env:"TRUSTED_PROXIES_IP" mapstructure:"trusted_proxies_ip"`

	// EnableRejectMalformedRequest answers 403 when X-Forwarded-For is present but no proxy range is configured.
	EnableRejectMalformedRequest bool `env:"ENABLE_REJECT_MALFORMED_REQUEST" envDefault:"false" mapstructure:"enable_reject_malformed_request"`
}

// GetClientIP returns the client ip, or an empty string outside a request.
func GetClientIP(ctx context.Context) string {
	ip, _ := ctx.Value(clientIPKey{}).(string)
	return ip
}

// WithClientIP resolves the client ip while guarding against X-Forwarded-For spoofing.
func WithClientIP(config WithClientIPConfig) Option {
	proxies, err := parseCIDRs(config.TrustedProxiesIP)
	if err != nil {
		logger.Panic("Failed to parse trusted proxies", slogx.Error(err))
	}

	return func(ctx context.Context, c *fiber.Ctx) (context.Context, error) {
		withIP := func(ip string) (context.Context, error) {
			return context.WithValue(ctx, clientIPKey{}, ip), nil
		}

		if config.TrustedHeader != "" {
			if ip := c.Get(config.TrustedHeader); net.ParseIP(ip) != nil {
				return withIP(ip)
			}
		}

		forwarded := c.IPs()
		if len(forwarded) == 0 {
			return withIP(c.IP())
		}
		if len(proxies) > 0 {
			for i := len(forwarded) - 1; i >= 0; i-- {
				if ip := net.ParseIP(forwarded[i]); ip != nil && !proxies.contains(ip) {
					return withIP(forwarded[i])
				}
			}
			return withIP(forwarded[0])
		}
		if config.EnableRejectMalformedRequest {
			logger.WarnContext(ctx, "Forwarded request without trusted proxies, rejecting",
				slogx.Event("ip_spoofing_detected"),
				slogx.String("ip", c.IP()),
				slogx.Strings("forwarded", forwarded),
			)
			return nil, rejection{status: http.StatusForbidden, message: "not allowed to access"}
		}
		return withIP(forwarded[0])
	}
}

type cidrs []*net.IPNet

func (n cidrs) contains(ip net.IP) bool {
	for _, r := range n {
		if r.Contains(ip) {
			return true
		}
	}
	return false
}

func parseCIDRs(ranges []string) (cidrs, error) {
	nets := make(cidrs, 0, len(ranges))
	for _, r := range ranges {
		_, ipnet, err := net.ParseCIDR(r)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to parse CIDR %q", r)
		}
		nets = append(nets, ipnet)
	}
	return nets, nil
}
