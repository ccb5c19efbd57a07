package token_test

import (
	"errors"
	"reflect"
	"testing"

	"github.com/xraph/burst"
	"github.com/xraph/burst/token"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []token.Token
	}{
		{"no placeholders", "plain text", nil},
		{"bare name", "{{ uuid }}", []token.Token{{Kind: token.KindRandomValue, Name: "uuid"}}},
		{"no spaces", "{{ipv4()}}", []token.Token{{Kind: token.KindRandomValue, Name: "ipv4"}}},
		{
			"timestamp range",
			"at {{ timestamp(-1800, -60) }}",
			[]token.Token{{Kind: token.KindRelativeTimestamp, Name: "timestamp", Args: []any{-1800.0, -60.0}}},
		},
		{
			"dotted name with object",
			"{{ faker.number.int({min: 1, max: 9}) }}",
			[]token.Token{{Kind: token.KindRandomValue, Name: "faker.number.int", Args: []any{map[string]any{"min": 1.0, "max": 9.0}}}},
		},
		{
			"list of strings",
			`{{ choice(['db-01', "db-02"]) }}`,
			[]token.Token{{Kind: token.KindRandomValue, Name: "choice", Args: []any{[]any{"db-01", "db-02"}}}},
		},
		{
			"two placeholders",
			"{{ word }}-{{ int(1, 5) }}",
			[]token.Token{
				{Kind: token.KindRandomValue, Name: "word"},
				{Kind: token.KindRandomValue, Name: "int", Args: []any{1.0, 5.0}},
			},
		},
		{
			"literals",
			`{{ choice(true, null, 1.5e2, "a\"b") }}`,
			[]token.Token{{Kind: token.KindRandomValue, Name: "choice", Args: []any{true, nil, 150.0, `a"b`}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := token.Parse(tt.in)
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.in, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Parse(%q) = %#v, want %#v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParse_SyntaxErrors(t *testing.T) {
	inputs := []string{
		"{{ uuid",
		"{{ }}",
		"{{ int(1, }}",
		"{{ int(1 2) }}",
		"{{ choice('open) }}",
		"{{ 42 }}",
		"{{ int(min) }}",
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			_, err := token.Parse(in)
			var se *token.SyntaxError
			if !errors.As(err, &se) {
				t.Fatalf("Parse(%q) error = %v, want *SyntaxError", in, err)
			}
			if !errors.Is(err, burst.ErrUnknownToken) {
				t.Errorf("syntax errors should unwrap to ErrUnknownToken")
			}
		})
	}
}

func TestHasPlaceholder(t *testing.T) {
	if token.HasPlaceholder("db-01") {
		t.Error("plain string reported as placeholder")
	}
	if !token.HasPlaceholder("db-{{ int(1, 9) }}") {
		t.Error("placeholder not detected")
	}
}
