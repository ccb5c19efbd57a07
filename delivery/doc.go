// Package delivery defines the boundary between a running scenario and the
// receiver that accepts its events.
//
// A [Sender] takes one fully resolved [Message] and returns a [Receipt].
// [PagerDuty] posts to the Events API v2 and Change Events endpoints with
// an outbound rate limit and bounded retries on 429 and 5xx responses.
// [Func], [Log] and [Recorder] cover dry runs and tests.
package delivery
