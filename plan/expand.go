package plan

import (
	"time"

	"github.com/xraph/burst/schedule"
)

// DefaultEpsilon is how far a colliding entry is moved past the previous
// entry of the same template.
const DefaultEpsilon = time.Second

// Expand unrolls t into its entries within bound using DefaultEpsilon.
func Expand(t *schedule.Template, bound time.Duration) []Entry {
	return ExpandWithEpsilon(t, bound, DefaultEpsilon)
}

// ExpandWithEpsilon unrolls t into its entries within bound.
//
// The first entry fires at the base offset. Each rule then adds Count
// entries, each one Interval after the running offset, continuing from
// the previous rule. An entry that would not be strictly later than the
// previous one (zero interval) is placed eps after it. Entries past bound
// are dropped. Change events fire once.
func ExpandWithEpsilon(t *schedule.Template, bound, eps time.Duration) []Entry {
	var entries []Entry
	if t != nil {
		entries = make([]Entry, 0, min(t.DeclaredSends(), 64))
	}
	walk(t, bound, eps, func(e Entry) bool {
		entries = append(entries, e)
		return true
	})
	if len(entries) == 0 {
		return nil
	}
	return entries
}

// walk calls fn with each entry of t in occurrence order until fn returns
// false. Offsets are compared against bound before they are advanced, so
// the running offset never exceeds bound and cannot overflow.
func walk(t *schedule.Template, bound, eps time.Duration, fn func(Entry) bool) {
	if t == nil || t.BaseOffset < 0 || t.BaseOffset > bound {
		return
	}
	if eps <= 0 {
		eps = DefaultEpsilon
	}

	if !fn(Entry{Template: t, Offset: t.BaseOffset}) || t.Kind == schedule.KindChange {
		return
	}

	running, last := t.BaseOffset, t.BaseOffset
	occurrence := 0
	for _, rule := range t.Repeats {
		for i := 0; i < rule.Count; i++ {
			// Offsets only grow from here on.
			if rule.Interval > bound-running {
				return
			}
			running += rule.Interval
			at := running
			if at <= last {
				if eps > bound-last {
					return
				}
				at = last + eps
			}
			occurrence++
			if !fn(Entry{Template: t, Offset: at, Occurrence: occurrence}) {
				return
			}
			last = at
		}
	}
}

// scheduled counts the entries of t within bound without keeping them.
func scheduled(t *schedule.Template, bound time.Duration) int {
	n := 0
	walk(t, bound, DefaultEpsilon, func(Entry) bool {
		n++
		return true
	})
	return n
}
