// Package schedule turns raw, possibly malformed event-list text from an
// upstream generator into validated event templates.
//
// All leniency lives here. [Normalize] strips code fences, attempts a
// direct JSON parse and then a bounded sequence of repairs (trailing
// commas, unterminated brackets, trailing garbage) before validating each
// element. Downstream packages only ever see a [Template], whose required
// fields have been checked exactly once.
//
// # Wire format
//
//	[
//	  {
//	    "payload": {
//	      "summary": "DB latency above 2s",
//	      "severity": "critical",
//	      "source": "{{ hostname }}",
//	      "custom_details": {"ip": "{{ ipv4 }}"}
//	    },
//	    "event_action": "trigger",
//	    "timing_metadata": {"schedule_offset": 30},
//	    "repeat_schedule": [{"repeat_count": 5, "repeat_offset": 20}]
//	  }
//	]
//
// Elements carrying "links" or "routing_key" are change events: they need
// a summary and source, fire exactly once and ignore repeat rules.
package schedule
