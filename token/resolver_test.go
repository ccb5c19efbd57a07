package token_test

import (
	"errors"
	"net"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/burst"
	"github.com/xraph/burst/token"
)

var fixedNow = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func TestResolve_PlainValueUnchanged(t *testing.T) {
	r := token.NewResolver()
	for _, s := range []string{"", "db-01.prod", "{ not a placeholder }", "a } b"} {
		got, err := r.Resolve(s, nil)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", s, err)
		}
		if got != s {
			t.Errorf("Resolve(%q) = %q, want unchanged", s, got)
		}
	}
}

func TestResolve_TimestampWithinRange(t *testing.T) {
	now := fixedNow
	r := token.NewResolver(token.WithClock(func() time.Time { return now }))

	for _, at := range []time.Time{fixedNow, fixedNow.Add(37 * time.Minute)} {
		now = at
		for i := 0; i < 200; i++ {
			got, err := r.Resolve("{{ timestamp(-1800, -60) }}", nil)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			ts, err := time.Parse(token.TimestampLayout, got)
			if err != nil {
				t.Fatalf("result %q is not ISO-8601: %v", got, err)
			}
			lo, hi := at.Add(-1800*time.Second), at.Add(-60*time.Second)
			if ts.Before(lo) || ts.After(hi) {
				t.Fatalf("timestamp %v outside [%v, %v]", ts, lo, hi)
			}
		}
	}
}

func TestResolve_TimestampForms(t *testing.T) {
	r := token.NewResolver(token.WithClock(fixedClock))

	tests := []struct {
		in   string
		want string
	}{
		{"{{ timestamp() }}", "2026-03-14T09:26:53.000Z"},
		{"{{ timestamp(-90) }}", "2026-03-14T09:25:23.000Z"},
		{"{{ timestamp(1.5) }}", "2026-03-14T09:26:54.500Z"},
		{"{{ timestamp(-60, -60) }}", "2026-03-14T09:25:53.000Z"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.in, nil)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("Resolve(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestResolve_TimestampInvertedRange(t *testing.T) {
	r := token.NewResolver()
	_, err := r.Resolve("{{ timestamp(-60, -1800) }}", nil)
	if !errors.Is(err, burst.ErrTokenRange) {
		t.Fatalf("err = %v, want ErrTokenRange", err)
	}
	var re *token.RangeError
	if !errors.As(err, &re) || re.Name != "timestamp" {
		t.Errorf("expected *RangeError for timestamp, got %v", err)
	}
}

func TestResolve_UnknownGenerator(t *testing.T) {
	r := token.NewResolver()
	_, err := r.Resolve("host {{ faker.system.fileName }}", nil)
	if !errors.Is(err, burst.ErrUnknownToken) {
		t.Fatalf("err = %v, want ErrUnknownToken", err)
	}
	var ue *token.UnknownTokenError
	if !errors.As(err, &ue) || ue.Name != "faker.system.fileName" {
		t.Errorf("expected *UnknownTokenError naming the generator, got %v", err)
	}
}

func TestResolve_Generators(t *testing.T) {
	r := token.NewResolver(token.WithSeed(7))
	hostRe := regexp.MustCompile(`^\S+-\d{2}\.\S+$`)

	tests := []struct {
		in    string
		check func(string) bool
	}{
		{"{{ uuid }}", func(s string) bool { _, err := uuid.Parse(s); return err == nil }},
		{"{{ faker.string.uuid() }}", func(s string) bool { _, err := uuid.Parse(s); return err == nil }},
		{"{{ ipv4 }}", func(s string) bool { ip := net.ParseIP(s); return ip != nil && ip.To4() != nil }},
		{"{{ faker.internet.ipv6() }}", func(s string) bool { return net.ParseIP(s) != nil && strings.Contains(s, ":") }},
		{"{{ domain }}", func(s string) bool { return strings.Contains(s, ".") }},
		{"{{ hostname }}", hostRe.MatchString},
		{"{{ word }}", func(s string) bool { return s != "" }},
		{"{{ pattern('INC-####') }}", regexp.MustCompile(`^INC-\d{4}$`).MatchString},
		{"{{ choice(['a', 'b']) }}", func(s string) bool { return s == "a" || s == "b" }},
		{"{{ faker.helpers.arrayElement(['a', 'b']) }}", func(s string) bool { return s == "a" || s == "b" }},
		{"{{ choice(3, 4) }}", func(s string) bool { return s == "3" || s == "4" }},
		{"{{ int(100, 105) }}", intIn(100, 105)},
		{"{{ int(5) }}", intIn(0, 5)},
		{"{{ faker.number.int({min: 10, max: 12}) }}", intIn(10, 12)},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				got, err := r.Resolve(tt.in, nil)
				if err != nil {
					t.Fatalf("Resolve: %v", err)
				}
				if !tt.check(got) {
					t.Fatalf("Resolve(%q) = %q failed check", tt.in, got)
				}
			}
		})
	}
}

func intIn(lo, hi int) func(string) bool {
	return func(s string) bool {
		n, err := strconv.Atoi(s)
		return err == nil && n >= lo && n <= hi
	}
}

func TestResolve_GeneratorRangeErrors(t *testing.T) {
	r := token.NewResolver()
	for _, in := range []string{
		"{{ int(9, 1) }}",
		"{{ int(0, 1e19) }}",
		"{{ int(-9e18, 9e18) }}",
		"{{ int(-1e19, 0) }}",
		"{{ int('a', 2) }}",
		"{{ choice([]) }}",
		"{{ pattern() }}",
		"{{ timestamp('soon') }}",
	} {
		if _, err := r.Resolve(in, nil); !errors.Is(err, burst.ErrTokenRange) {
			t.Errorf("Resolve(%q) err = %v, want ErrTokenRange", in, err)
		}
	}
}

func TestResolve_NoMemoization(t *testing.T) {
	r := token.NewResolver()

	// Two occurrences in one string are two draws.
	got, err := r.Resolve("{{ uuid }} {{ uuid }}", nil)
	if err != nil {
		t.Fatal(err)
	}
	parts := strings.Fields(got)
	if parts[0] == parts[1] {
		t.Errorf("same placeholder twice produced identical values %q", parts[0])
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		v, err := r.Resolve("{{ uuid }}", nil)
		if err != nil {
			t.Fatal(err)
		}
		if seen[v] {
			t.Fatalf("value %q repeated across resolutions", v)
		}
		seen[v] = true
	}
}

func TestResolve_SeededContextsAreReproducible(t *testing.T) {
	payload := map[string]any{
		"summary": "disk full on {{ hostname }}",
		"custom_details": map[string]any{
			"id":     "{{ uuid }}",
			"ticket": "{{ pattern('INC-#####') }}",
		},
	}

	a := token.NewResolver(token.WithSeed(42), token.WithClock(fixedClock))
	b := token.NewResolver(token.WithSeed(42), token.WithClock(fixedClock))

	first, err := a.ResolvePayload(payload, a.ContextFor(3, 1))
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.ResolvePayload(payload, b.ContextFor(3, 1))
	if err != nil {
		t.Fatal(err)
	}
	if first["summary"] != second["summary"] {
		t.Errorf("same seed and occurrence diverged: %q vs %q", first["summary"], second["summary"])
	}

	other, err := a.ResolvePayload(payload, a.ContextFor(3, 2))
	if err != nil {
		t.Fatal(err)
	}
	firstID := first["custom_details"].(map[string]any)["id"]
	otherID := other["custom_details"].(map[string]any)["id"]
	if firstID == otherID {
		t.Errorf("different occurrences produced the same uuid %q", firstID)
	}
}

func TestResolvePayload_DeepCopy(t *testing.T) {
	payload := map[string]any{
		"summary":  "latency on {{ hostname }}",
		"severity": "critical",
		"custom_details": map[string]any{
			"ips":       []any{"{{ ipv4 }}", "{{ ipv4 }}"},
			"threshold": int64(95),
			"enabled":   true,
		},
	}

	r := token.NewResolver()
	got, err := r.ResolvePayload(payload, nil)
	if err != nil {
		t.Fatalf("ResolvePayload: %v", err)
	}

	if payload["summary"] != "latency on {{ hostname }}" {
		t.Error("template payload was modified")
	}
	ips := payload["custom_details"].(map[string]any)["ips"].([]any)
	if ips[0] != "{{ ipv4 }}" {
		t.Error("nested template slice was modified")
	}

	details := got["custom_details"].(map[string]any)
	if details["threshold"] != int64(95) || details["enabled"] != true {
		t.Errorf("non-string leaves changed: %v", details)
	}
	for _, ip := range details["ips"].([]any) {
		if net.ParseIP(ip.(string)) == nil {
			t.Errorf("ip %q not resolved", ip)
		}
	}
	if got["severity"] != "critical" {
		t.Errorf("severity = %v", got["severity"])
	}
}

func TestResolvePayload_ErrorNamesField(t *testing.T) {
	r := token.NewResolver()
	_, err := r.ResolvePayload(map[string]any{"summary": "{{ nope }}"}, nil)
	if !errors.Is(err, burst.ErrUnknownToken) {
		t.Fatalf("err = %v", err)
	}
	if !strings.HasPrefix(err.Error(), "summary:") {
		t.Errorf("error %q should name the field", err)
	}
}

func TestResolver_ConcurrentUse(t *testing.T) {
	r := token.NewResolver()
	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := r.Resolve("{{ uuid }} {{ ipv4 }} {{ timestamp(-10, 10) }}", nil); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}
}

func TestCheck(t *testing.T) {
	r := token.NewResolver()

	ok := map[string]any{"a": "{{ uuid }}", "b": []any{"{{ timestamp(-5, 5) }}"}}
	if err := r.Check(ok); err != nil {
		t.Errorf("Check(valid) = %v", err)
	}

	bad := map[string]any{"a": "{{ mystery }}", "b": map[string]any{"c": "{{ int(1"}}
	err := r.Check(bad)
	if !errors.Is(err, burst.ErrUnknownToken) {
		t.Fatalf("Check(invalid) = %v", err)
	}
	var se *token.SyntaxError
	if !errors.As(err, &se) {
		t.Errorf("expected a SyntaxError among %v", err)
	}
}
