package client

import (
	"log/slog"
	"net/http"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client used for API calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithFormat sets the wire format of Watch streams.
// Supported values: "json" (default), "msgpack".
func WithFormat(format string) Option {
	return func(c *Client) { c.format = format }
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithCreditBatch sets how many events Watch consumes before granting the
// server that many more credits.
func WithCreditBatch(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.creditBatch = n
		}
	}
}

// WithBufferSize sets the capacity of channels returned by Watch.
func WithBufferSize(n int) Option {
	return func(c *Client) { c.bufferSize = n }
}

// WithToken sets the bearer token sent with every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}
