// Package httpclient is a small fasthttp client bound to one upstream (ledger gateway, price feed).
package httpclient

import (
	"context"
	"encoding/json"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/Cleverse/go-utilities/utils"
	"github.com/cockroachdb/errors"
	"github.com/mutual-network/escrow-indexer/common/errs"
	"github.com/mutual-network/escrow-indexer/pkg/logger"
	"github.com/mutual-network/escrow-indexer/pkg/logger/slogx"
	"github.com/valyala/fasthttp"
	"golang.org/x/time/rate"
)

const DefaultTimeout = 10 * time.Second

type Config struct {
	// Debug logs every request.
	Debug bool

	// Headers are sent with every request, e.g. an RPC provider api key.
	Headers map[string]string

	// Timeout bounds a single request. Default is 10s.
	Timeout time.Duration

	// RateLimit is the maximum requests per second, zero is unlimited.
	RateLimit float64

	// Burst is the number of requests allowed above RateLimit at once. Default is 1.
	Burst int
}

// Client owns its rate limiter, limits of different upstreams never interfere.
type Client struct {
	baseURL *url.URL
	limiter *rate.Limiter
	config  Config
}

func New(baseURL string, config ...Config) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, errors.Wrap(err, "can't parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Wrapf(errs.InvalidArgument, "base url %q must be absolute", baseURL)
	}
	conf, _ := utils.Optional(config)
	conf.Timeout = utils.Default(conf.Timeout, DefaultTimeout)

	client := &Client{baseURL: u, config: conf}
	if conf.RateLimit > 0 {
		client.limiter = rate.NewLimiter(rate.Limit(conf.RateLimit), utils.Default(conf.Burst, 1))
	}
	return client, nil
}

type RequestOptions struct {
	Body   []byte // sent as application/json
	Query  url.Values
	Header map[string]string
}

type Response struct {
	URL string
	fasthttp.Response
}

// UnmarshalBody decodes a JSON body into out.
func (r *Response) UnmarshalBody(out any) error {
	body, err := r.BodyUncompressed()
	if err != nil {
		return errors.Wrapf(err, "can't uncompress body from %s", r.URL)
	}
	if contentType := strings.ToLower(string(r.Header.ContentType())); !strings.HasPrefix(contentType, "application/json") {
		return errors.Errorf("unsupported content type %q from %s: %q", contentType, r.URL, body)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrapf(err, "can't unmarshal json body from %s", r.URL)
	}
	return nil
}

// URL returns the absolute url of p, relative to the base url.
func (c *Client) URL(p string, query url.Values) string {
	u := *c.baseURL
	if p != "" {
		u.Path = path.Join(u.Path, p)
	}
	q := u.Query()
	for k, values := range query {
		for _, v := range values {
			q.Add(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func (c *Client) Get(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, fasthttp.MethodGet, path, opts)
}

func (c *Client) Post(ctx context.Context, path string, opts RequestOptions) (*Response, error) {
	return c.do(ctx, fasthttp.MethodPost, path, opts)
}

// do returns errs.Timeout when the deadline passes and an error marked errs.Unavailable
// when the upstream can't be reached. Status codes are left to the caller.
func (c *Client) do(ctx context.Context, method, path string, opts RequestOptions) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, errors.Wrapf(errs.Unavailable, "rate limiter: %v", err)
		}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	target := c.URL(path, opts.Query)
	req.SetRequestURI(target)
	req.Header.SetMethod(method)
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	for k, v := range opts.Header {
		req.Header.Set(k, v)
	}
	if opts.Body != nil {
		req.Header.SetContentType("application/json")
		req.SetBody(opts.Body)
	}

	timeout := c.config.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}
	start := time.Now()
	err := fasthttp.DoTimeout(req, resp, timeout)
	if c.config.Debug {
		logger.DebugContext(ctx, "HTTP request finished",
			slogx.String("package", "httpclient"),
			slogx.String("method", method),
			slogx.String("url", target),
			slogx.Duration("latency", time.Since(start)),
			slogx.Int("status_code", resp.StatusCode()),
			slogx.Int("resp_content_length", len(resp.Body())),
		)
	}
	if err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return nil, errors.Wrapf(errs.Timeout, "url: %s", target)
		}
		return nil, errors.Wrapf(errors.Mark(err, errs.Unavailable), "url: %s", target)
	}

	out := &Response{URL: target}
	resp.CopyTo(&out.Response)
	return out, nil
}
