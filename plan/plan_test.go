package plan_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/xraph/burst"
	"github.com/xraph/burst/plan"
	"github.com/xraph/burst/schedule"
)

const bound = 420 * time.Second

func alert(index int, base time.Duration, rules ...schedule.RepeatRule) *schedule.Template {
	return &schedule.Template{
		Index:      index,
		Kind:       schedule.KindAlert,
		Action:     schedule.ActionTrigger,
		Severity:   schedule.SeverityCritical,
		Summary:    "event",
		Source:     "test",
		Payload:    map[string]any{"summary": "event", "custom_details": map[string]any{}},
		BaseOffset: base,
		Repeats:    rules,
	}
}

func rule(count int, interval time.Duration) schedule.RepeatRule {
	return schedule.RepeatRule{Count: count, Interval: interval}
}

func offsets(entries []plan.Entry) []time.Duration {
	out := make([]time.Duration, len(entries))
	for i, e := range entries {
		out[i] = e.Offset
	}
	return out
}

func equalDurations(a, b []time.Duration) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestExpand_NoRules(t *testing.T) {
	got := plan.Expand(alert(0, 30*time.Second), bound)
	if len(got) != 1 || got[0].Offset != 30*time.Second || got[0].Occurrence != 0 {
		t.Fatalf("Expand = %v, want one entry at 30s", got)
	}
}

func TestExpand_SingleRule(t *testing.T) {
	tpl := alert(0, 10*time.Second, rule(5, 20*time.Second))
	got := plan.Expand(tpl, bound)

	want := []time.Duration{10 * time.Second, 30 * time.Second, 50 * time.Second, 70 * time.Second, 90 * time.Second, 110 * time.Second}
	if !equalDurations(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v", offsets(got), want)
	}
	for i, e := range got {
		if e.Occurrence != i {
			t.Errorf("entry %d occurrence = %d", i, e.Occurrence)
		}
		if e.Template != tpl {
			t.Errorf("entry %d does not reference its template", i)
		}
	}
}

func TestExpand_RulesAreCumulative(t *testing.T) {
	got := plan.Expand(alert(0, 0, rule(2, 10*time.Second), rule(2, 60*time.Second)), bound)
	want := []time.Duration{0, 10 * time.Second, 20 * time.Second, 80 * time.Second, 140 * time.Second}
	if !equalDurations(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v", offsets(got), want)
	}
}

func TestExpand_BoundIsInclusive(t *testing.T) {
	got := plan.Expand(alert(0, 400*time.Second, rule(5, 10*time.Second)), bound)
	want := []time.Duration{400 * time.Second, 410 * time.Second, 420 * time.Second}
	if !equalDurations(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v", offsets(got), want)
	}
}

func TestExpand_BaseBeyondBound(t *testing.T) {
	if got := plan.Expand(alert(0, 421*time.Second, rule(3, time.Second)), bound); len(got) != 0 {
		t.Fatalf("Expand = %v, want none", got)
	}
}

func TestExpand_ZeroIntervalIsNudged(t *testing.T) {
	got := plan.Expand(alert(0, 100*time.Second, rule(3, 0)), bound)
	want := []time.Duration{100 * time.Second, 101 * time.Second, 102 * time.Second, 103 * time.Second}
	if !equalDurations(offsets(got), want) {
		t.Fatalf("offsets = %v, want %v", offsets(got), want)
	}

	eps := plan.ExpandWithEpsilon(alert(0, 0, rule(2, 0)), bound, 250*time.Millisecond)
	if eps[2].Offset != 500*time.Millisecond {
		t.Errorf("custom epsilon: offsets = %v", offsets(eps))
	}
}

func TestExpand_StrictlyIncreasing(t *testing.T) {
	tpl := alert(0, 5*time.Second, rule(4, 0), rule(3, 500*time.Millisecond), rule(10, 45*time.Second))
	got := plan.Expand(tpl, bound)
	for i := 1; i < len(got); i++ {
		if got[i].Offset <= got[i-1].Offset {
			t.Fatalf("offsets not strictly increasing at %d: %v", i, offsets(got))
		}
		if got[i].Offset > bound {
			t.Fatalf("offset %v beyond bound", got[i].Offset)
		}
	}
}

func TestExpand_ChangeEventFiresOnce(t *testing.T) {
	tpl := alert(0, 60*time.Second, rule(3, 10*time.Second))
	tpl.Kind = schedule.KindChange
	if got := plan.Expand(tpl, bound); len(got) != 1 {
		t.Fatalf("change event expanded to %d entries", len(got))
	}
}

func TestBuild_Ordering(t *testing.T) {
	a := alert(0, 30*time.Second, rule(2, 30*time.Second)) // 30 60 90
	b := alert(1, 0, rule(3, 30*time.Second))              // 0 30 60 90
	c := alert(2, 45*time.Second)                          // 45

	p, err := plan.Build([]*schedule.Template{a, b, c}, bound)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	type pos struct {
		offset time.Duration
		tpl    *schedule.Template
		occ    int
	}
	want := []pos{
		{0, b, 0},
		{30 * time.Second, a, 0},
		{30 * time.Second, b, 1},
		{45 * time.Second, c, 0},
		{60 * time.Second, a, 1},
		{60 * time.Second, b, 2},
		{90 * time.Second, a, 2},
		{90 * time.Second, b, 3},
	}
	if p.Len() != len(want) {
		t.Fatalf("Len = %d, want %d", p.Len(), len(want))
	}
	for i, w := range want {
		e := p.At(i)
		if e.Offset != w.offset || e.Template != w.tpl || e.Occurrence != w.occ {
			t.Errorf("entry %d = %v/%d/%d, want %v/%d/%d", i, e.Offset, e.TemplateIndex(), e.Occurrence, w.offset, w.tpl.Index, w.occ)
		}
	}
}

func TestBuild_TiesFollowTemplateIndex(t *testing.T) {
	first := alert(0, 10*time.Second)
	second := alert(1, 10*time.Second)

	p, err := plan.Build([]*schedule.Template{second, first}, bound)
	if err != nil {
		t.Fatal(err)
	}
	if p.At(0).TemplateIndex() != 0 || p.At(1).TemplateIndex() != 1 {
		t.Fatalf("order = %d, %d, want 0, 1", p.At(0).TemplateIndex(), p.At(1).TemplateIndex())
	}
}

func TestBuild_EntryLimit(t *testing.T) {
	flood := alert(1, 0, rule(1_000_000_000, time.Microsecond))

	_, err := plan.Build([]*schedule.Template{alert(0, 0), flood}, bound)
	var tooMany *plan.TooManyEntriesError
	if !errors.As(err, &tooMany) {
		t.Fatalf("err = %v, want TooManyEntriesError", err)
	}
	if tooMany.Template != 1 || tooMany.Limit != plan.DefaultMaxEntries {
		t.Fatalf("err = %+v", tooMany)
	}
	if !errors.Is(err, burst.ErrValidation) {
		t.Fatalf("err = %v, want ErrValidation", err)
	}

	p, err := plan.Build([]*schedule.Template{alert(0, 0, rule(4, time.Second))}, bound, plan.WithMaxEntries(5))
	if err != nil || p.Len() != 5 {
		t.Fatalf("Build at the limit = %v, %v", p, err)
	}
	if _, err := plan.Build([]*schedule.Template{alert(0, 0, rule(5, time.Second))}, bound, plan.WithMaxEntries(5)); !errors.Is(err, burst.ErrValidation) {
		t.Fatalf("Build past the limit err = %v", err)
	}
}

func TestExpand_HugeIntervalsDoNotWrap(t *testing.T) {
	huge := time.Duration(1<<62) + time.Duration(1<<61)

	got := plan.Expand(alert(0, 10*time.Second, rule(3, huge), rule(2, huge)), bound)
	if !equalDurations(offsets(got), []time.Duration{10 * time.Second}) {
		t.Fatalf("offsets = %v, want [10s]", offsets(got))
	}

	got = plan.Expand(alert(0, 0, rule(3, 0)), time.Duration(1<<63-1))
	if len(got) != 4 {
		t.Fatalf("Expand near max duration = %d entries, want 4", len(got))
	}
}

func TestBuild_PerTemplateStrictlyIncreasing(t *testing.T) {
	templates := []*schedule.Template{
		alert(0, 0, rule(10, 0)),
		alert(1, 3*time.Second, rule(20, 7*time.Second)),
		alert(2, 400*time.Second, rule(50, time.Second)),
	}
	p, err := plan.Build(templates, bound)
	if err != nil {
		t.Fatal(err)
	}

	last := map[*schedule.Template]time.Duration{}
	var prev time.Duration
	for i, e := range p.Entries() {
		if e.Offset < prev {
			t.Fatalf("plan not non-decreasing at %d", i)
		}
		prev = e.Offset
		if l, ok := last[e.Template]; ok && e.Offset <= l {
			t.Fatalf("template %d not strictly increasing at entry %d", e.TemplateIndex(), i)
		}
		last[e.Template] = e.Offset
	}
}

func TestBuild_DuplicateTemplateKeptOnce(t *testing.T) {
	a := alert(0, 10*time.Second, rule(1, 10*time.Second))
	p, err := plan.Build([]*schedule.Template{a, a}, bound)
	if err != nil {
		t.Fatal(err)
	}
	if p.Len() != 2 {
		t.Fatalf("Len = %d, want 2", p.Len())
	}
}

func TestBuild_Empty(t *testing.T) {
	tests := []struct {
		name      string
		templates []*schedule.Template
	}{
		{"no templates", nil},
		{"all out of bound", []*schedule.Template{alert(0, 500*time.Second), alert(1, 421*time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := plan.Build(tt.templates, bound)
			if p != nil {
				t.Error("expected nil plan")
			}
			if !errors.Is(err, burst.ErrEmptySchedule) {
				t.Fatalf("err = %v, want ErrEmptySchedule", err)
			}
			var ee *plan.EmptyScheduleError
			if !errors.As(err, &ee) || ee.Templates != len(tt.templates) {
				t.Errorf("unexpected detail: %v", err)
			}
		})
	}
}

func TestPlan_Immutable(t *testing.T) {
	p, err := plan.Build([]*schedule.Template{alert(0, 0, rule(2, time.Second))}, bound)
	if err != nil {
		t.Fatal(err)
	}
	entries := p.Entries()
	entries[0].Offset = time.Hour
	if p.At(0).Offset != 0 {
		t.Error("mutating Entries() changed the plan")
	}
	if p.DurationBound() != bound || p.Span() != 2*time.Second {
		t.Errorf("bound %v span %v", p.DurationBound(), p.Span())
	}
	if p.ID().IsNil() {
		t.Error("plan has no ID")
	}
}

func TestPlan_MarshalJSON(t *testing.T) {
	p, err := plan.Build([]*schedule.Template{alert(0, 1500*time.Millisecond)}, bound)
	if err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(p)
	if err != nil {
		t.Fatal(err)
	}

	var out struct {
		ID      string `json:"id"`
		Entries []struct {
			Offset float64 `json:"offset_seconds"`
			Action string  `json:"action"`
		} `json:"entries"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.ID != p.ID().String() || len(out.Entries) != 1 || out.Entries[0].Offset != 1.5 || out.Entries[0].Action != "trigger" {
		t.Errorf("unexpected JSON: %s", data)
	}
}

func TestSummarize(t *testing.T) {
	flagged := alert(1, 400*time.Second, rule(5, 10*time.Second))
	flagged.Flagged = true
	templates := []*schedule.Template{alert(0, 30*time.Second), flagged}

	got := plan.Summarize(templates, bound)
	if len(got) != 2 {
		t.Fatalf("len = %d", len(got))
	}

	if got[0].TotalSends != 1 || got[0].TotalRepeats != 0 || got[0].NextOffset != nil || got[0].InitialOffset != 30 {
		t.Errorf("summary[0] = %+v", got[0])
	}
	s := got[1]
	if s.TotalRepeats != 5 || s.TotalSends != 6 || s.ScheduledSends != 3 || !s.Flagged {
		t.Errorf("summary[1] = %+v", s)
	}
	if s.NextOffset == nil || *s.NextOffset != 10 {
		t.Errorf("NextOffset = %v, want 10", s.NextOffset)
	}
}

func TestEntry_Attempt(t *testing.T) {
	entries := plan.Expand(alert(0, 0, rule(2, time.Second)), bound)
	if entries[0].Attempt() != "initial" || entries[2].Attempt() != "repeat 2" {
		t.Errorf("attempts = %q, %q", entries[0].Attempt(), entries[2].Attempt())
	}
}
