package token

import (
	"io"
	"math/rand/v2"
	"time"

	"github.com/brianvoe/gofakeit/v7"
)

// Context carries the inputs of one resolution: the instant relative
// timestamps are measured from and a random source local to the call.
//
// A Context is not safe for concurrent use; create one per delivery.
type Context struct {
	// Now is the resolution instant.
	Now time.Time

	src  *rand.ChaCha8
	rnd  *rand.Rand
	fake *gofakeit.Faker
}

// NewContext returns a Context drawing from a ChaCha8 stream keyed by seed.
func NewContext(now time.Time, seed [32]byte) *Context {
	src := rand.NewChaCha8(seed)
	return &Context{
		Now: now,
		src: src,
		rnd: rand.New(src),
	}
}

// Rand returns the call-local random source.
func (c *Context) Rand() *rand.Rand { return c.rnd }

// Reader returns a byte stream over the call-local source.
func (c *Context) Reader() io.Reader { return c.src }

// Faker returns a fake-data generator sharing the call-local source.
func (c *Context) Faker() *gofakeit.Faker {
	if c.fake == nil {
		c.fake = gofakeit.NewFaker(c.src, false)
	}
	return c.fake
}

func seedFrom(r *rand.Rand) [32]byte {
	var seed [32]byte
	for i := 0; i < len(seed); i += 8 {
		v := r.Uint64()
		for j := 0; j < 8; j++ {
			seed[i+j] = byte(v >> (8 * j))
		}
	}
	return seed
}
