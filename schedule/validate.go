package schedule

import (
	"fmt"
	"math"

	"github.com/xraph/burst"
)

// Offsets and counts beyond these limits are rejected so that every
// offset fits a time.Duration.
const (
	MaxOffsetSeconds = 1 << 32
	MaxRepeatCount   = math.MaxInt32
)

// validate converts one decoded element into a Template, collecting every
// problem it finds.
func validate(index int, item map[string]any) (*Template, []error) {
	var errs []error
	fail := func(field, format string, args ...any) {
		errs = append(errs, &ValidationError{Index: index, Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	payload, ok := item["payload"].(map[string]any)
	if !ok {
		fail("payload", "missing or not an object")
		return nil, errs
	}

	t := &Template{
		Index:   index,
		Kind:    KindAlert,
		Payload: payload,
	}
	_, hasLinks := item["links"]
	_, hasRoutingKey := item["routing_key"]
	if hasLinks || hasRoutingKey {
		t.Kind = KindChange
	}

	t.Summary = requireString(payload, "summary", "payload.summary", fail)
	t.Source = requireString(payload, "source", "payload.source", fail)

	switch cd := payload["custom_details"].(type) {
	case nil:
		payload["custom_details"] = map[string]any{}
	case map[string]any:
		t.Flagged = isTrue(cd["major_failure"])
	default:
		fail("payload.custom_details", "must be an object")
	}

	if t.Kind == KindAlert {
		sev, present := payload["severity"]
		s, isString := sev.(string)
		switch {
		case !present:
			fail("payload.severity", "missing")
		case !isString:
			fail("payload.severity", "must be a string")
		case !Severity(s).Valid():
			fail("payload.severity", "%q is not one of info, warning, critical, error", s)
		default:
			t.Severity = Severity(s)
		}

		raw, field := item["event_action"], "event_action"
		if raw == nil {
			raw, field = item["action"], "action"
		}
		a, isString := raw.(string)
		switch {
		case raw == nil:
			fail("event_action", "missing")
		case !isString || !Action(a).Valid():
			fail(field, "%v is not one of trigger, resolve", raw)
		default:
			t.Action = Action(a)
		}
	} else {
		links, _ := item["links"].([]any)
		t.Links = links
	}

	if tm, present := item["timing_metadata"]; present && tm != nil {
		meta, ok := tm.(map[string]any)
		if !ok {
			fail("timing_metadata", "must be an object")
		} else if v, present := meta["schedule_offset"]; present && v != nil {
			secs, ok := number(v)
			switch {
			case !ok:
				fail("timing_metadata.schedule_offset", "must be a number")
			case secs < 0:
				fail("timing_metadata.schedule_offset", "must not be negative, got %v", secs)
			case secs > MaxOffsetSeconds:
				fail("timing_metadata.schedule_offset", "must not exceed %d, got %v", int64(MaxOffsetSeconds), secs)
			default:
				t.BaseOffset = burst.Seconds(secs)
			}
		}
	}

	if t.Kind == KindAlert {
		t.Repeats = repeatRules(item["repeat_schedule"], fail)
	}

	t.DedupKey = optionalString(item, "dedup_key", fail)
	t.Client = optionalString(item, "client", fail)
	t.ClientURL = optionalString(item, "client_url", fail)

	if len(errs) > 0 {
		return nil, errs
	}
	return t, nil
}

func repeatRules(v any, fail func(field, format string, args ...any)) []RepeatRule {
	if v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		fail("repeat_schedule", "must be an array")
		return nil
	}

	var rules []RepeatRule
	for i, el := range list {
		field := fmt.Sprintf("repeat_schedule[%d]", i)
		obj, ok := el.(map[string]any)
		if !ok {
			fail(field, "must be an object")
			continue
		}

		count, ok := number(obj["repeat_count"])
		if !ok || count != math.Trunc(count) {
			fail(field+".repeat_count", "must be an integer")
			continue
		}
		if count < 0 {
			fail(field+".repeat_count", "must not be negative, got %v", count)
			continue
		}
		if count > MaxRepeatCount {
			fail(field+".repeat_count", "must not exceed %d, got %v", MaxRepeatCount, count)
			continue
		}

		interval, ok := number(obj["repeat_offset"])
		if !ok {
			fail(field+".repeat_offset", "must be a number")
			continue
		}
		if interval < 0 {
			fail(field+".repeat_offset", "must not be negative, got %v", interval)
			continue
		}
		if interval > MaxOffsetSeconds {
			fail(field+".repeat_offset", "must not exceed %d, got %v", int64(MaxOffsetSeconds), interval)
			continue
		}

		if count == 0 {
			continue
		}
		rules = append(rules, RepeatRule{Count: int(count), Interval: burst.Seconds(interval)})
	}
	return rules
}

func requireString(m map[string]any, key, field string, fail func(field, format string, args ...any)) string {
	v, present := m[key]
	if !present || v == nil {
		fail(field, "missing")
		return ""
	}
	s, ok := v.(string)
	if !ok {
		fail(field, "must be a string")
		return ""
	}
	if s == "" {
		fail(field, "must not be empty")
	}
	return s
}

func optionalString(m map[string]any, key string, fail func(field, format string, args ...any)) string {
	v, present := m[key]
	if !present || v == nil {
		return ""
	}
	s, ok := v.(string)
	if !ok {
		fail(key, "must be a string")
	}
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	}
	return 0, false
}

func isTrue(v any) bool {
	switch b := v.(type) {
	case bool:
		return b
	case string:
		return b == "true"
	}
	return false
}

// wire renders the template in the upstream generator's format.
func (t *Template) wire() map[string]any {
	out := map[string]any{
		"payload":         t.Payload,
		"timing_metadata": map[string]any{"schedule_offset": t.BaseOffset.Seconds()},
	}
	if t.Kind == KindChange {
		out["links"] = t.Links
		if t.Links == nil {
			out["links"] = []any{}
		}
		return out
	}

	out["event_action"] = string(t.Action)
	if len(t.Repeats) > 0 {
		rs := make([]map[string]any, 0, len(t.Repeats))
		for _, r := range t.Repeats {
			rs = append(rs, map[string]any{
				"repeat_count":  r.Count,
				"repeat_offset": r.Interval.Seconds(),
			})
		}
		out["repeat_schedule"] = rs
	}
	for k, v := range map[string]string{"dedup_key": t.DedupKey, "client": t.Client, "client_url": t.ClientURL} {
		if v != "" {
			out[k] = v
		}
	}
	return out
}
