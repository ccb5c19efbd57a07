// Package config loads the burst YAML configuration file, applies
// environment overrides and turns the result into the values the engine,
// sender, resolver and logger are built from.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xraph/burst"
	audithook "github.com/xraph/burst/audit_hook"
	"github.com/xraph/burst/delivery"
	"github.com/xraph/burst/token"
)

// Environment variables that override file values.
const (
	EnvRoutingKey = "BURST_ROUTING_KEY"
	EnvEventsURL  = "BURST_EVENTS_URL"
	EnvChangeURL  = "BURST_CHANGE_URL"
	EnvListenAddr = "BURST_LISTEN_ADDR"
	EnvLogLevel   = "BURST_LOG_LEVEL"
)

// File is the on-disk configuration.
type File struct {
	Scenario  Scenario  `yaml:"scenario"`
	Log       Log       `yaml:"log"`
	HTTP      HTTP      `yaml:"http"`
	PagerDuty PagerDuty `yaml:"pagerduty"`
	Tokens    Tokens    `yaml:"tokens"`
	Replays   []Replay  `yaml:"replays"`
	Audit     Audit     `yaml:"audit"`
}

// Scenario holds the timing configuration.
type Scenario struct {
	DurationBoundSeconds    float64       `yaml:"duration_bound_seconds"`
	CollisionEpsilonSeconds float64       `yaml:"collision_epsilon_seconds"`
	StartTime               string        `yaml:"start_time"`
	TimeScale               float64       `yaml:"time_scale"`
	Seed                    *uint64       `yaml:"seed"`
	DeliveryTimeout         time.Duration `yaml:"delivery_timeout"`
	ShutdownTimeout         time.Duration `yaml:"shutdown_timeout"`
	MaxEntries              int           `yaml:"max_entries"`
	StrictTokens            bool          `yaml:"strict_tokens"`
}

// Log selects the slog handler.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// HTTP configures the API server. With no tokens the API is open.
type HTTP struct {
	Listen string     `yaml:"listen"`
	Tokens []APIToken `yaml:"tokens"`
}

// APIToken grants scopes to a bearer token.
type APIToken struct {
	Token   string   `yaml:"token"`
	Subject string   `yaml:"subject"`
	Scopes  []string `yaml:"scopes"`
}

// PagerDuty configures the receiver.
type PagerDuty struct {
	RoutingKey string  `yaml:"routing_key"`
	EventsURL  string  `yaml:"events_url"`
	ChangeURL  string  `yaml:"change_url"`
	Rate       float64 `yaml:"rate"`
	Burst      int     `yaml:"burst"`
	Attempts   int     `yaml:"attempts"`
}

// Tokens extends the generator registry: each alias maps a placeholder
// name to a value family.
type Tokens struct {
	Aliases map[string]string `yaml:"aliases"`
}

// Audit configures the JSON-lines audit trail. An empty File disables it.
type Audit struct {
	File        string   `yaml:"file"`
	Actions     []string `yaml:"actions"`
	MinSeverity string   `yaml:"min_severity"`
}

// Replay is a recurring run of a scenario file.
type Replay struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"`
	File     string `yaml:"file"`
}

// DefaultListenAddr is the API listen address when none is configured.
const DefaultListenAddr = ":8080"

// Default returns the configuration used when no file is given.
func Default() *File {
	cfg := burst.DefaultConfig()
	return &File{
		Scenario: Scenario{
			DurationBoundSeconds:    cfg.DurationBound.Seconds(),
			CollisionEpsilonSeconds: cfg.CollisionEpsilon.Seconds(),
			TimeScale:               cfg.TimeScale,
			DeliveryTimeout:         cfg.DeliveryTimeout,
			ShutdownTimeout:         cfg.ShutdownTimeout,
			MaxEntries:              cfg.MaxEntries,
		},
		Log:  Log{Level: "info", Format: "text"},
		HTTP: HTTP{Listen: DefaultListenAddr},
		PagerDuty: PagerDuty{
			EventsURL: delivery.DefaultEventsURL,
			ChangeURL: delivery.DefaultChangeURL,
			Rate:      delivery.DefaultRate,
			Burst:     delivery.DefaultBurst,
			Attempts:  delivery.DefaultAttempts,
		},
	}
}

// Load reads path over the defaults, applies the process environment and
// validates the result. An empty path skips the file.
func Load(path string) (*File, error) {
	f := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		if err := f.decode(data); err != nil {
			return nil, fmt.Errorf("config: %s: %w", path, err)
		}
	}
	f.ApplyEnv(os.LookupEnv)
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Parse decodes data over the defaults without consulting the
// environment.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := f.decode(data); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *File) decode(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv overrides file values with set, non-empty variables.
func (f *File) ApplyEnv(lookup func(string) (string, bool)) {
	for _, o := range []struct {
		key string
		dst *string
	}{
		{EnvRoutingKey, &f.PagerDuty.RoutingKey},
		{EnvEventsURL, &f.PagerDuty.EventsURL},
		{EnvChangeURL, &f.PagerDuty.ChangeURL},
		{EnvListenAddr, &f.HTTP.Listen},
		{EnvLogLevel, &f.Log.Level},
	} {
		if v, ok := lookup(o.key); ok && v != "" {
			*o.dst = v
		}
	}
}

// Validate checks every section and reports all problems at once.
func (f *File) Validate() error {
	var errs []error
	bad := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{burst.ErrValidation}, args...)...))
	}

	s := f.Scenario
	if s.DurationBoundSeconds <= 0 {
		bad("scenario.duration_bound_seconds must be positive")
	}
	if s.CollisionEpsilonSeconds <= 0 {
		bad("scenario.collision_epsilon_seconds must be positive")
	}
	if s.MaxEntries <= 0 {
		bad("scenario.max_entries must be positive")
	}
	if s.TimeScale <= 0 {
		bad("scenario.time_scale must be positive")
	}
	if s.DeliveryTimeout < 0 || s.ShutdownTimeout < 0 {
		bad("scenario timeouts must not be negative")
	}
	if s.StartTime != "" {
		if _, err := time.Parse(time.RFC3339, s.StartTime); err != nil {
			bad("scenario.start_time: %v", err)
		}
	}
	if _, err := ParseLevel(f.Log.Level); err != nil {
		bad("log.level: %v", err)
	}
	switch strings.ToLower(f.Log.Format) {
	case "", "text", "json":
	default:
		bad("log.format %q (want text or json)", f.Log.Format)
	}
	if f.PagerDuty.Attempts < 1 {
		bad("pagerduty.attempts must be at least 1")
	}
	if _, err := f.Registry(); err != nil {
		bad("tokens.aliases: %v", err)
	}
	for i, tok := range f.HTTP.Tokens {
		if tok.Token == "" || len(tok.Scopes) == 0 {
			bad("http.tokens[%d] needs token and scopes", i)
		}
	}
	for _, a := range f.Audit.Actions {
		if !slices.Contains(audithook.AllActions(), a) {
			bad("audit.actions: unknown action %q", a)
		}
	}
	switch f.Audit.MinSeverity {
	case "", audithook.SeverityInfo, audithook.SeverityWarning, audithook.SeverityCritical:
	default:
		bad("audit.min_severity: unknown severity %q", f.Audit.MinSeverity)
	}
	seen := make(map[string]bool, len(f.Replays))
	for i, r := range f.Replays {
		switch {
		case r.Name == "":
			bad("replays[%d].name is empty", i)
		case seen[r.Name]:
			bad("replays[%d].name %q is duplicated", i, r.Name)
		}
		seen[r.Name] = true
		if r.Schedule == "" || r.File == "" {
			bad("replays[%d] needs schedule and file", i)
		}
	}
	return errors.Join(errs...)
}

// Config returns the engine configuration.
func (f *File) Config() burst.Config {
	s := f.Scenario
	cfg := burst.Config{
		DurationBound:    burst.Seconds(s.DurationBoundSeconds),
		CollisionEpsilon: burst.Seconds(s.CollisionEpsilonSeconds),
		TimeScale:        s.TimeScale,
		DeliveryTimeout:  s.DeliveryTimeout,
		ShutdownTimeout:  s.ShutdownTimeout,
		MaxEntries:       s.MaxEntries,
		StrictTokens:     s.StrictTokens,
	}
	if s.StartTime != "" {
		cfg.StartTime, _ = time.Parse(time.RFC3339, s.StartTime)
	}
	return cfg
}

// Registry returns the default generator registry extended with the
// configured aliases.
func (f *File) Registry() (*token.Registry, error) {
	reg := token.DefaultRegistry()
	if err := reg.Configure(f.Tokens.Aliases); err != nil {
		return nil, err
	}
	return reg, nil
}

// Resolver returns a resolver over Registry, seeded when scenario.seed
// is set.
func (f *File) Resolver() (*token.Resolver, error) {
	reg, err := f.Registry()
	if err != nil {
		return nil, err
	}
	opts := []token.Option{token.WithRegistry(reg)}
	if f.Scenario.Seed != nil {
		opts = append(opts, token.WithSeed(*f.Scenario.Seed))
	}
	return token.NewResolver(opts...), nil
}

// PagerDutyOptions returns the sender options for the pagerduty section.
func (f *File) PagerDutyOptions() []delivery.PagerDutyOption {
	p := f.PagerDuty
	return []delivery.PagerDutyOption{
		delivery.WithEventsURL(p.EventsURL),
		delivery.WithChangeURL(p.ChangeURL),
		delivery.WithRateLimit(p.Rate, p.Burst),
		delivery.WithRetries(p.Attempts, delivery.DefaultBackoff()),
	}
}
