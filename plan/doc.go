// Package plan turns validated templates into a dispatch plan: a flat list
// of timed entries sorted by offset from scenario start.
//
// [Expand] unrolls one template's repeat rules; [Build] merges every
// template into an immutable [Plan]. Both are pure.
package plan
