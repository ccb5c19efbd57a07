package schedule

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Repair names reported in Result.Repairs.
const (
	RepairFences        = "strip-fences"
	RepairLeadingText   = "leading-text"
	RepairWrapObject    = "wrap-object"
	RepairTrailingComma = "trailing-commas"
	RepairTrailingText  = "trailing-garbage"
	RepairCloseBrackets = "close-brackets"
	RepairTruncate      = "last-complete-element"
)

// Result is the outcome of NormalizeDetailed.
type Result struct {
	Templates []*Template `json:"templates"`

	// Repairs lists, in order, the repair steps that were needed before
	// the text parsed. Empty when the input was valid as-is.
	Repairs []string `json:"repairs,omitempty"`
}

// Normalize parses raw generator output into validated templates.
//
// It fails with an error wrapping burst.ErrMalformedSchedule when no repair
// yields a JSON array of objects, and with one wrapping burst.ErrValidation
// when any element is invalid. Partial batches are never returned.
func Normalize(raw string) ([]*Template, error) {
	res, err := NormalizeDetailed(raw)
	if err != nil {
		return nil, err
	}
	return res.Templates, nil
}

// NormalizeDetailed is Normalize that also reports which repairs ran.
func NormalizeDetailed(raw string) (*Result, error) {
	items, repairs, err := decodeArray(raw)
	if err != nil {
		return nil, err
	}

	templates := make([]*Template, 0, len(items))
	var problems []error
	for i, item := range items {
		t, errs := validate(i, item)
		if len(errs) > 0 {
			problems = append(problems, errs...)
			continue
		}
		templates = append(templates, t)
	}
	if len(problems) > 0 {
		return nil, errors.Join(problems...)
	}

	return &Result{Templates: templates, Repairs: repairs}, nil
}

// decodeArray runs the fence strip, parse and bounded repair sequence.
// Repairs are cumulative up to the bracket step; closing and truncating
// are alternatives tried against the same text.
func decodeArray(raw string) ([]map[string]any, []string, error) {
	var repairs []string

	text := strings.TrimSpace(raw)
	if unfenced := stripFences(text); unfenced != text {
		text = unfenced
		repairs = append(repairs, RepairFences)
	}
	if text == "" {
		return nil, repairs, &MalformedError{Reason: "empty input", Repairs: repairs}
	}

	if items, err := parseArray(text); err == nil {
		return items, repairs, nil
	}

	rooted, leading, wrapped := trimToRoot(text)
	if rooted == "" {
		return nil, repairs, &MalformedError{Reason: "no JSON array found", Repairs: repairs}
	}
	if leading {
		repairs = append(repairs, RepairLeadingText)
	}
	if wrapped {
		repairs = append(repairs, RepairWrapObject)
	}
	text = rooted

	items, lastErr := parseArray(text)
	if lastErr == nil {
		return items, repairs, nil
	}

	if next, changed := trimTrailingCommas(text); changed {
		text = next
		repairs = append(repairs, RepairTrailingComma)
		if items, err := parseArray(text); err == nil {
			return items, repairs, nil
		}
	}

	if next, changed := cutAfterRoot(text); changed {
		text = next
		repairs = append(repairs, RepairTrailingText)
		if items, err := parseArray(text); err == nil {
			return items, repairs, nil
		}
	}

	if closed, ok := closeBrackets(text); ok {
		closed, _ = trimTrailingCommas(closed)
		if items, err := parseArray(closed); err == nil {
			return items, append(repairs, RepairCloseBrackets), nil
		}
	}

	if cut, ok := truncateToLastElement(text); ok {
		items, err := parseArray(cut)
		if err == nil {
			return items, append(repairs, RepairTruncate), nil
		}
		lastErr = err
	}

	return nil, repairs, &MalformedError{
		Reason:  "no repair produced a JSON array of objects",
		Repairs: repairs,
		Err:     lastErr,
	}
}

// parseArray decodes text as exactly one JSON array whose elements are
// all objects. Numbers become int64 when integral, float64 otherwise.
func parseArray(text string) ([]map[string]any, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()

	var root any
	if err := dec.Decode(&root); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("unexpected content after JSON value")
	}

	arr, ok := root.([]any)
	if !ok {
		return nil, fmt.Errorf("root is %s, not an array", jsonKind(root))
	}

	items := make([]map[string]any, 0, len(arr))
	for i, el := range arr {
		obj, ok := el.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("element %d is %s, not an object", i, jsonKind(el))
		}
		items = append(items, plainNumbers(obj).(map[string]any))
	}
	return items, nil
}

// plainNumbers replaces json.Number leaves with int64 or float64.
func plainNumbers(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, el := range x {
			x[k] = plainNumbers(el)
		}
		return x
	case []any:
		for i, el := range x {
			x[i] = plainNumbers(el)
		}
		return x
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return n
		}
		f, _ := x.Float64()
		return f
	default:
		return v
	}
}

func jsonKind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	case string:
		return "a string"
	case bool:
		return "a boolean"
	default:
		return "a number"
	}
}

// Encode renders templates back into the canonical wire format, useful
// for storing a repaired batch.
func Encode(templates []*Template) ([]byte, error) {
	out := make([]map[string]any, 0, len(templates))
	for _, t := range templates {
		out = append(out, t.wire())
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
