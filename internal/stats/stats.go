// Package stats coordinates the monitoring/statistics fetches behind the
// dashboard: overview counters, the detection trend series, and the threat
// type distribution, combined into one observable snapshot with
// partial-failure tolerance.
package stats

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/promptshield/console-client/internal/gateway"
	"github.com/promptshield/console-client/internal/orchestrator"
)

// Overview is the headline counter block.
type Overview struct {
	TotalPrompts int     `json:"total_prompts"`
	Blocked      int     `json:"blocked"`
	Flagged      int     `json:"flagged"`
	BlockRate    float64 `json:"block_rate"`
}

// TrendPoint is one day in the detection trend series.
type TrendPoint struct {
	Date    string `json:"date"`
	Total   int    `json:"total"`
	Blocked int    `json:"blocked"`
}

// Dashboard is the combined snapshot the monitoring views render.
type Dashboard struct {
	Overview     Overview
	Trend        []TrendPoint
	Distribution map[string]int // threat type -> count
}

// Sender is the slice of the gateway the coordinator needs.
type Sender interface {
	SendJSON(ctx context.Context, d gateway.Descriptor, out any) error
}

// Coordinator drives the three dashboard fetches through the gateway.
type Coordinator struct {
	gw    Sender
	log   zerolog.Logger
	state *orchestrator.State[Dashboard]
}

// New creates a Coordinator.
func New(gw Sender, log zerolog.Logger) *Coordinator {
	return &Coordinator{
		gw:    gw,
		log:   log,
		state: orchestrator.NewState[Dashboard](),
	}
}

// State exposes the observable dashboard state for subscription.
func (c *Coordinator) State() *orchestrator.State[Dashboard] {
	return c.state
}

// Refresh fetches all three sources concurrently. A failed source keeps its
// documented empty default so the dashboard degrades instead of blanking;
// only when every source fails does the state transition to Failed (and the
// previous snapshot value is retained).
func (c *Coordinator) Refresh(ctx context.Context, days int) {
	c.state.Begin()

	// Documented defaults for failed sources: zero counters, empty series,
	// empty distribution.
	snap := Dashboard{Distribution: map[string]int{}}

	query := url.Values{}
	if days > 0 {
		query.Set("days", strconv.Itoa(days))
	}

	fetches := []orchestrator.Fetch{
		{Name: "overview", Run: func(ctx context.Context) error {
			return c.gw.SendJSON(ctx, gateway.Descriptor{Method: http.MethodGet, Path: "/api/stats/overview"}, &snap.Overview)
		}},
		{Name: "trend", Run: func(ctx context.Context) error {
			return c.gw.SendJSON(ctx, gateway.Descriptor{Method: http.MethodGet, Path: "/api/stats/trend", Query: query}, &snap.Trend)
		}},
		{Name: "distribution", Run: func(ctx context.Context) error {
			return c.gw.SendJSON(ctx, gateway.Descriptor{Method: http.MethodGet, Path: "/api/stats/distribution"}, &snap.Distribution)
		}},
	}

	res := orchestrator.LoadAll(ctx, c.log, fetches)
	if res.AllFailed() {
		for _, err := range res.Failures {
			c.state.Fail(err)
			return
		}
	}
	if res.Canceled == res.Total && res.Total > 0 {
		// Entirely superseded by a newer refresh; let that one drive state.
		return
	}
	c.state.Succeed(snap)
}
