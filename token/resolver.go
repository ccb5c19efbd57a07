package token

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/xraph/burst"
)

// TimestampLayout is the ISO-8601 form relative timestamps resolve to.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Option configures a Resolver.
type Option func(*Resolver)

// WithSeed makes resolution reproducible: ContextFor derives the same
// source for the same (template, occurrence) pair.
func WithSeed(seed uint64) Option {
	return func(r *Resolver) {
		r.seeded = true
		r.seed = seed
		r.root = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithClock replaces the wall clock used for Context.Now.
func WithClock(clock func() time.Time) Option {
	return func(r *Resolver) { r.clock = clock }
}

// WithRegistry sets the generator registry.
func WithRegistry(reg *Registry) Option {
	return func(r *Resolver) { r.registry = reg }
}

// Resolver evaluates placeholders. It is safe for concurrent use; each
// resolution draws from its own Context.
type Resolver struct {
	registry *Registry
	clock    func() time.Time

	seeded bool
	seed   uint64

	mu   sync.Mutex
	root *rand.Rand
}

// NewResolver creates a resolver with the default registry and the wall
// clock.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		registry: DefaultRegistry(),
		clock:    time.Now,
		root:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Registry returns the generator registry.
func (r *Resolver) Registry() *Registry { return r.registry }

// Context returns a fresh Context at the current clock reading with a
// source split off the shared root.
func (r *Resolver) Context() *Context {
	r.mu.Lock()
	seed := seedFrom(r.root)
	r.mu.Unlock()
	return NewContext(r.clock(), seed)
}

// ContextFor returns the Context for one occurrence of one template. With
// WithSeed the source depends only on the seed and the pair; otherwise it
// is the same as Context.
func (r *Resolver) ContextFor(template, occurrence int) *Context {
	return r.ContextAt(r.clock(), template, occurrence)
}

// ContextAt is ContextFor with an explicit resolution instant, for
// callers that keep their own scenario clock.
func (r *Resolver) ContextAt(now time.Time, template, occurrence int) *Context {
	if !r.seeded {
		r.mu.Lock()
		seed := seedFrom(r.root)
		r.mu.Unlock()
		return NewContext(now, seed)
	}
	key := uint64(uint32(template))<<32 | uint64(uint32(occurrence))
	return NewContext(now, seedFrom(rand.New(rand.NewPCG(r.seed, key))))
}

// Resolve replaces every placeholder in value. Values without placeholder
// syntax are returned unchanged. A nil c resolves against a fresh Context.
func (r *Resolver) Resolve(value string, c *Context) (string, error) {
	if !HasPlaceholder(value) {
		return value, nil
	}
	e, err := parse(value)
	if err != nil {
		return "", err
	}
	if c == nil {
		c = r.Context()
	}

	var b strings.Builder
	for _, seg := range e.segments {
		if seg.tok == nil {
			b.WriteString(seg.text)
			continue
		}
		v, err := r.eval(seg.tok, c)
		if err != nil {
			return "", err
		}
		b.WriteString(v)
	}
	return b.String(), nil
}

// ResolveValue resolves every string leaf of v, recursing into maps and
// slices. The result is a deep copy; v is never modified.
func (r *Resolver) ResolveValue(v any, c *Context) (any, error) {
	if c == nil {
		c = r.Context()
	}
	switch x := v.(type) {
	case string:
		return r.Resolve(x, c)
	case map[string]any:
		return r.ResolvePayload(x, c)
	case []any:
		out := make([]any, len(x))
		for i, el := range x {
			rv, err := r.ResolveValue(el, c)
			if err != nil {
				return nil, err
			}
			out[i] = rv
		}
		return out, nil
	default:
		return v, nil
	}
}

// ResolvePayload returns a resolved deep copy of payload.
func (r *Resolver) ResolvePayload(payload map[string]any, c *Context) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}
	if c == nil {
		c = r.Context()
	}
	// Keys are visited in sorted order so a seeded Context yields the
	// same values on every run.
	keys := make([]string, 0, len(payload))
	for k := range payload {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	out := make(map[string]any, len(payload))
	for _, k := range keys {
		rv, err := r.ResolveValue(payload[k], c)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		out[k] = rv
	}
	return out, nil
}

// Check parses every string leaf of v and verifies that each generator
// name is registered, without drawing any values.
func (r *Resolver) Check(v any) error {
	var errs []error
	var walk func(any)
	walk = func(v any) {
		switch x := v.(type) {
		case string:
			toks, err := Parse(x)
			if err != nil {
				errs = append(errs, err)
				return
			}
			for _, t := range toks {
				if t.Kind == KindRandomValue {
					if _, ok := r.registry.Lookup(t.Name); !ok {
						errs = append(errs, &UnknownTokenError{Name: t.Name})
					}
				}
			}
		case map[string]any:
			for _, el := range x {
				walk(el)
			}
		case []any:
			for _, el := range x {
				walk(el)
			}
		}
	}
	walk(v)
	return errors.Join(errs...)
}

func (r *Resolver) eval(t *Token, c *Context) (string, error) {
	if t.Kind == KindRelativeTimestamp {
		return timestamp(t.Args, c)
	}
	g, ok := r.registry.Lookup(t.Name)
	if !ok {
		return "", &UnknownTokenError{Name: t.Name}
	}
	return g(c, t.Args)
}

// timestamp resolves timestamp(), timestamp(offset) and
// timestamp(min, max), with offsets in signed seconds from c.Now.
func timestamp(args []any, c *Context) (string, error) {
	nums := make([]float64, len(args))
	for i, a := range args {
		n, ok := a.(float64)
		if !ok {
			return "", &RangeError{Name: timestampName, Reason: fmt.Sprintf("argument %d must be a number", i+1)}
		}
		nums[i] = n
	}

	var offset float64
	switch len(nums) {
	case 0:
	case 1:
		offset = nums[0]
	case 2:
		lo, hi := nums[0], nums[1]
		if lo > hi {
			return "", &RangeError{Name: timestampName, Reason: fmt.Sprintf("min %v is greater than max %v", lo, hi)}
		}
		offset = lo + c.Rand().Float64()*(hi-lo)
	default:
		return "", &RangeError{Name: timestampName, Reason: fmt.Sprintf("takes at most 2 arguments, got %d", len(nums))}
	}

	return c.Now.Add(burst.Seconds(offset)).UTC().Format(TimestampLayout), nil
}
