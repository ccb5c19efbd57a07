package token

import (
	"fmt"

	"github.com/xraph/burst"
)

// UnknownTokenError reports a generator name missing from the registry.
type UnknownTokenError struct {
	Name string
}

func (e *UnknownTokenError) Error() string {
	return fmt.Sprintf("token: unknown generator %q", e.Name)
}

// Unwrap returns burst.ErrUnknownToken.
func (e *UnknownTokenError) Unwrap() error { return burst.ErrUnknownToken }

// SyntaxError reports placeholder text that does not parse. It unwraps to
// burst.ErrUnknownToken since an unparseable placeholder names no
// generator.
type SyntaxError struct {
	Input  string
	Pos    int
	Reason string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("token: syntax error at offset %d in %q: %s", e.Pos, e.Input, e.Reason)
}

// Unwrap returns burst.ErrUnknownToken.
func (e *SyntaxError) Unwrap() error { return burst.ErrUnknownToken }

// RangeError reports generator arguments that describe an empty or
// inverted range, or have the wrong shape.
type RangeError struct {
	Name   string
	Reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("token: %s: %s", e.Name, e.Reason)
}

// Unwrap returns burst.ErrTokenRange.
func (e *RangeError) Unwrap() error { return burst.ErrTokenRange }
