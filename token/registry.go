package token

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Generator produces one random value. Every call must be an independent
// draw from c.
type Generator func(c *Context, args []any) (string, error)

// Family names of the built-in generators.
const (
	FamilyUUID     = "uuid"
	FamilyDomain   = "domain"
	FamilyHostname = "hostname"
	FamilyIPv4     = "ipv4"
	FamilyIPv6     = "ipv6"
	FamilyInt      = "int"
	FamilyChoice   = "choice"
	FamilyWord     = "word"
	FamilyPattern  = "pattern"
)

// defaultNames maps the names accepted out of the box to their family.
var defaultNames = map[string]string{
	"uuid":     FamilyUUID,
	"domain":   FamilyDomain,
	"hostname": FamilyHostname,
	"ipv4":     FamilyIPv4,
	"ipv6":     FamilyIPv6,
	"int":      FamilyInt,
	"choice":   FamilyChoice,
	"word":     FamilyWord,
	"pattern":  FamilyPattern,

	"domainName": FamilyDomain,
	"enumChoice": FamilyChoice,

	"faker.string.uuid":            FamilyUUID,
	"faker.internet.domainName":    FamilyDomain,
	"faker.internet.ipv4":          FamilyIPv4,
	"faker.internet.ipv6":          FamilyIPv6,
	"faker.number.int":             FamilyInt,
	"faker.helpers.arrayElement":   FamilyChoice,
	"faker.helpers.replaceSymbols": FamilyPattern,
	"faker.lorem.word":             FamilyWord,
}

// Registry maps generator names to value families. Families are the
// implementations; names are what templates write. Several names may
// share a family.
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	families map[string]Generator
	names    map[string]string
}

// NewRegistry returns a registry holding the built-in families and no
// names.
func NewRegistry() *Registry {
	return &Registry{
		families: map[string]Generator{
			FamilyUUID:     genUUID,
			FamilyDomain:   genDomain,
			FamilyHostname: genHostname,
			FamilyIPv4:     genIPv4,
			FamilyIPv6:     genIPv6,
			FamilyInt:      genInt,
			FamilyChoice:   genChoice,
			FamilyWord:     genWord,
			FamilyPattern:  genPattern,
		},
		names: map[string]string{},
	}
}

// DefaultRegistry returns a registry with the built-in names and the
// faker-style aliases.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for name, family := range defaultNames {
		r.names[name] = family
	}
	return r
}

// Register adds or replaces a family implementation.
func (r *Registry) Register(family string, g Generator) error {
	if family == "" || g == nil {
		return fmt.Errorf("token: register: family name and generator are required")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.families[family] = g
	return nil
}

// Alias makes name resolve to family.
func (r *Registry) Alias(name, family string) error {
	if name == timestampName {
		return fmt.Errorf("token: alias: %q is reserved", name)
	}
	if (&parser{s: name}).ident() != name || name == "" {
		return fmt.Errorf("token: alias: %q is not a valid generator name", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.families[family]; !ok {
		return fmt.Errorf("token: alias %q: unknown family %q", name, family)
	}
	r.names[name] = family
	return nil
}

// Configure applies a name to family mapping, typically loaded from a
// configuration file.
func (r *Registry) Configure(names map[string]string) error {
	keys := make([]string, 0, len(names))
	for k := range names {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, name := range keys {
		if err := r.Alias(name, names[name]); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the generator registered under name.
func (r *Registry) Lookup(name string) (Generator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	family, ok := r.names[name]
	if !ok {
		return nil, false
	}
	g, ok := r.families[family]
	return g, ok
}

// Names returns every accepted generator name, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.names))
	for name := range r.names {
		out = append(out, name)
	}
	slices.Sort(out)
	return out
}

func genUUID(c *Context, _ []any) (string, error) {
	u, err := uuid.NewRandomFromReader(c.Reader())
	if err != nil {
		return "", err
	}
	return u.String(), nil
}

func genDomain(c *Context, _ []any) (string, error) {
	return c.Faker().DomainName(), nil
}

func genHostname(c *Context, _ []any) (string, error) {
	f := c.Faker()
	return fmt.Sprintf("%s-%02d.%s", strings.ToLower(f.Word()), c.Rand().IntN(100), f.DomainName()), nil
}

func genIPv4(c *Context, _ []any) (string, error) {
	return c.Faker().IPv4Address(), nil
}

func genIPv6(c *Context, _ []any) (string, error) {
	return c.Faker().IPv6Address(), nil
}

func genWord(c *Context, _ []any) (string, error) {
	return c.Faker().Word(), nil
}

const maxIntBound = 1 << 63

// genInt draws an integer from an inclusive range given as (), (max),
// (min, max) or ({min, max}).
func genInt(c *Context, args []any) (string, error) {
	lo, hi := 0.0, 9999.0
	switch len(args) {
	case 0:
	case 1:
		if obj, ok := args[0].(map[string]any); ok {
			if v, ok := obj["min"]; ok {
				n, isNum := v.(float64)
				if !isNum {
					return "", &RangeError{Name: FamilyInt, Reason: "min must be a number"}
				}
				lo = n
			}
			if v, ok := obj["max"]; ok {
				n, isNum := v.(float64)
				if !isNum {
					return "", &RangeError{Name: FamilyInt, Reason: "max must be a number"}
				}
				hi = n
			}
			break
		}
		n, ok := args[0].(float64)
		if !ok {
			return "", &RangeError{Name: FamilyInt, Reason: "max must be a number"}
		}
		hi = n
	case 2:
		a, aok := args[0].(float64)
		b, bok := args[1].(float64)
		if !aok || !bok {
			return "", &RangeError{Name: FamilyInt, Reason: "bounds must be numbers"}
		}
		lo, hi = a, b
	default:
		return "", &RangeError{Name: FamilyInt, Reason: fmt.Sprintf("takes at most 2 arguments, got %d", len(args))}
	}

	lo, hi = math.Ceil(lo), math.Floor(hi)
	if lo > hi {
		return "", &RangeError{Name: FamilyInt, Reason: fmt.Sprintf("empty range [%v, %v]", lo, hi)}
	}
	// The span and bounds must fit int64; 2^63 itself is not representable.
	if lo < -maxIntBound || hi >= maxIntBound || hi-lo >= maxIntBound {
		return "", &RangeError{Name: FamilyInt, Reason: fmt.Sprintf("range [%v, %v] too wide", lo, hi)}
	}
	n := int64(lo) + c.Rand().Int64N(int64(hi-lo)+1)
	return strconv.FormatInt(n, 10), nil
}

// genChoice picks one element from a list argument or from the argument
// list itself.
func genChoice(c *Context, args []any) (string, error) {
	options := args
	if len(args) == 1 {
		if list, ok := args[0].([]any); ok {
			options = list
		}
	}
	if len(options) == 0 {
		return "", &RangeError{Name: FamilyChoice, Reason: "no options to choose from"}
	}
	return formatValue(options[c.Rand().IntN(len(options))]), nil
}

// genPattern replaces '#' with digits and '?' with letters.
func genPattern(c *Context, args []any) (string, error) {
	if len(args) != 1 {
		return "", &RangeError{Name: FamilyPattern, Reason: "takes exactly one pattern argument"}
	}
	pattern, ok := args[0].(string)
	if !ok {
		return "", &RangeError{Name: FamilyPattern, Reason: "pattern must be a string"}
	}
	f := c.Faker()
	return f.Lexify(f.Numerify(pattern)), nil
}

func formatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<53 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case nil:
		return "null"
	default:
		return fmt.Sprint(x)
	}
}
