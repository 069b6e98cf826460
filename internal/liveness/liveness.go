// Package liveness answers "is the backend reachable" without hammering it.
//
// Probe results are memoized for a TTL so opportunistic callers (dashboard
// mount, rapid navigation) collapse onto one real probe. Probes go through
// the gateway's quiet path: a failed probe is unhealthy, never an error
// surfaced to the user.
package liveness

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/promptshield/console-client/internal/config"
	"github.com/promptshield/console-client/internal/gateway"
)

// Record is one probe outcome. Replaced wholesale, never partially updated.
type Record struct {
	Healthy   bool
	CheckedAt time.Time
	Detail    string
}

// Sender is the slice of the gateway the checker needs.
type Sender interface {
	Send(ctx context.Context, d gateway.Descriptor) ([]byte, error)
}

// Checker memoizes backend health probes.
type Checker struct {
	gw  Sender
	ttl time.Duration
	now func() time.Time

	mu  sync.Mutex
	rec *Record
}

// Option configures the Checker.
type Option func(*Checker)

// WithTTL overrides the cache TTL.
func WithTTL(ttl time.Duration) Option {
	return func(c *Checker) { c.ttl = ttl }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Checker) { c.now = now }
}

// New creates a Checker probing through gw.
func New(gw Sender, opts ...Option) *Checker {
	c := &Checker{
		gw:  gw,
		ttl: config.DefaultLivenessTTL,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns the cached record when it is younger than the TTL, otherwise
// performs one bounded probe and caches the result. Concurrent callers
// serialize on the probe and share its outcome. Check never fails; an
// unreachable backend is an unhealthy record, not an error.
func (c *Checker) Check(ctx context.Context) Record {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.rec != nil && c.now().Sub(c.rec.CheckedAt) < c.ttl {
		return *c.rec
	}

	rec := c.probe(ctx)
	c.rec = &rec
	return rec
}

func (c *Checker) probe(ctx context.Context) Record {
	body, err := c.gw.Send(ctx, gateway.Descriptor{
		Method:  http.MethodGet,
		Path:    "/health",
		Timeout: config.LivenessProbeTimeout,
		Quiet:   true,
	})
	rec := Record{CheckedAt: c.now()}
	if err != nil {
		rec.Detail = gateway.AsAPIError(err).Message
		return rec
	}
	rec.Healthy = true
	if status := gjson.GetBytes(body, "status"); status.Exists() {
		rec.Detail = status.String()
	}
	return rec
}
