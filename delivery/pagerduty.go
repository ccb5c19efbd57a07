package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/xraph/burst/schedule"
)

// Default receiver endpoints and outbound limits.
const (
	DefaultEventsURL = "https://events.pagerduty.com/v2/enqueue"
	DefaultChangeURL = "https://events.pagerduty.com/v2/change/enqueue"

	DefaultRate     = 2.0
	DefaultBurst    = 10
	DefaultAttempts = 3
)

// ErrMissingRoutingKey is returned by NewPagerDuty without a routing key.
var ErrMissingRoutingKey = errors.New("delivery: routing key is required")

// HTTPError is a non-2xx answer from the receiver.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("delivery: receiver returned %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether the request may succeed if retried.
func (e *HTTPError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// PagerDutyOption configures a PagerDuty sender.
type PagerDutyOption func(*PagerDuty)

// WithEventsURL overrides the alert endpoint.
func WithEventsURL(u string) PagerDutyOption {
	return func(p *PagerDuty) { p.eventsURL = u }
}

// WithChangeURL overrides the change event endpoint.
func WithChangeURL(u string) PagerDutyOption {
	return func(p *PagerDuty) { p.changeURL = u }
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(c *http.Client) PagerDutyOption {
	return func(p *PagerDuty) { p.client = c }
}

// WithRateLimit sets the sustained events per second and burst. A limit
// of zero or less disables limiting.
func WithRateLimit(perSecond float64, burst int) PagerDutyOption {
	return func(p *PagerDuty) {
		if perSecond <= 0 {
			p.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		p.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRetries sets the total attempts per message and the delay between
// them.
func WithRetries(attempts int, b Backoff) PagerDutyOption {
	return func(p *PagerDuty) {
		p.attempts = max(attempts, 1)
		if b != nil {
			p.backoff = b
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) PagerDutyOption {
	return func(p *PagerDuty) { p.logger = l }
}

// PagerDuty sends messages to the PagerDuty Events API v2.
type PagerDuty struct {
	routingKey string
	eventsURL  string
	changeURL  string

	client   *http.Client
	limiter  *rate.Limiter
	attempts int
	backoff  Backoff
	logger   *slog.Logger
}

var _ Sender = (*PagerDuty)(nil)

// NewPagerDuty returns a sender for one routing key.
func NewPagerDuty(routingKey string, opts ...PagerDutyOption) (*PagerDuty, error) {
	if routingKey == "" {
		return nil, ErrMissingRoutingKey
	}
	p := &PagerDuty{
		routingKey: routingKey,
		eventsURL:  DefaultEventsURL,
		changeURL:  DefaultChangeURL,
		client:     &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(DefaultRate), DefaultBurst),
		attempts:   DefaultAttempts,
		backoff:    DefaultBackoff(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Deliver posts m, retrying temporary failures. Context cancellation
// stops waiting for the limiter or a retry delay.
func (p *PagerDuty) Deliver(ctx context.Context, m Message) (Receipt, error) {
	body, err := json.Marshal(Envelope(m, p.routingKey))
	if err != nil {
		return Receipt{}, fmt.Errorf("delivery: encode message: %w", err)
	}
	url := p.eventsURL
	if m.Kind == schedule.KindChange {
		url = p.changeURL
	}

	var lastErr error
	for attempt := 1; attempt <= p.attempts; attempt++ {
		if attempt > 1 {
			delay := p.backoff(attempt - 1)
			p.logger.Debug("retrying delivery",
				slog.String("delivery_id", m.ID.String()),
				slog.Int("attempt", attempt),
				slog.Duration("delay", delay),
				slog.String("error", lastErr.Error()),
			)
			if !sleep(ctx.Done(), delay) {
				return Receipt{Attempts: attempt - 1}, errors.Join(lastErr, ctx.Err())
			}
		}
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return Receipt{Attempts: attempt - 1}, fmt.Errorf("delivery: rate limit: %w", err)
			}
		}

		rcpt, err := p.post(ctx, url, body)
		rcpt.Attempts = attempt
		if err == nil {
			return rcpt, nil
		}
		lastErr = err

		var he *HTTPError
		if !errors.As(err, &he) || !he.Temporary() {
			return rcpt, err
		}
	}
	return Receipt{Attempts: p.attempts}, lastErr
}

func (p *PagerDuty) post(ctx context.Context, url string, body []byte) (Receipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return Receipt{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Receipt{}, fmt.Errorf("delivery: post: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return Receipt{StatusCode: resp.StatusCode}, fmt.Errorf("delivery: read response: %w", err)
	}

	rcpt := Receipt{StatusCode: resp.StatusCode}
	var answer struct {
		Status   string `json:"status"`
		Message  string `json:"message"`
		DedupKey string `json:"dedup_key"`
	}
	if json.Unmarshal(raw, &answer) == nil {
		rcpt.Status, rcpt.Message, rcpt.DedupKey = answer.Status, answer.Message, answer.DedupKey
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return rcpt, &HTTPError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(raw))}
	}
	return rcpt, nil
}
