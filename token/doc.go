// Package token implements the placeholder grammar embedded in event
// template strings and the resolver that evaluates it at delivery time.
//
// A placeholder is a call expression between double braces:
//
//	{{ uuid }}
//	{{ ipv4() }}
//	{{ int(100, 999) }}
//	{{ choice(["db-01", "db-02"]) }}
//	{{ faker.number.int({min: 1, max: 9}) }}
//	{{ timestamp(-1800, -60) }}
//
// Strings without "{{" are returned unchanged. Every placeholder occurrence
// is an independent draw: nothing is cached between occurrences, payloads
// or deliveries. Generator names are looked up in a [Registry], which maps
// names and aliases to value families; an unknown name fails with an error
// wrapping burst.ErrUnknownToken rather than passing through.
//
// Randomness and time are injected. A [Resolver] created with [WithSeed]
// derives a reproducible source for every (template, occurrence) pair, and
// [WithClock] replaces the wall clock used for relative timestamps.
package token
