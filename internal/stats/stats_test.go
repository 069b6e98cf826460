package stats

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptshield/console-client/internal/gateway"
	"github.com/promptshield/console-client/internal/orchestrator"
)

// fakeSender scripts responses per path.
type fakeSender struct {
	mu        sync.Mutex
	responses map[string]string
	errs      map[string]*gateway.APIError
	calls     []string
}

func (f *fakeSender) SendJSON(ctx context.Context, d gateway.Descriptor, out any) error {
	f.mu.Lock()
	f.calls = append(f.calls, d.Path)
	err := f.errs[d.Path]
	body := f.responses[d.Path]
	f.mu.Unlock()

	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(body), out)
}

func healthyResponses() map[string]string {
	return map[string]string{
		"/api/stats/overview":     `{"total_prompts": 1200, "blocked": 48, "flagged": 90, "block_rate": 0.04}`,
		"/api/stats/trend":        `[{"date":"2026-08-25","total":400,"blocked":16},{"date":"2026-08-26","total":410,"blocked":15}]`,
		"/api/stats/distribution": `{"prompt_injection": 30, "jailbreak": 12, "data_exfiltration": 6}`,
	}
}

func TestRefresh_AllSourcesSucceed(t *testing.T) {
	sender := &fakeSender{responses: healthyResponses()}
	c := New(sender, zerolog.Nop())

	c.Refresh(context.Background(), 7)

	snap := c.State().Snapshot()
	require.Equal(t, orchestrator.StatusSucceeded, snap.Status)
	assert.Equal(t, 1200, snap.Value.Overview.TotalPrompts)
	assert.Len(t, snap.Value.Trend, 2)
	assert.Equal(t, 30, snap.Value.Distribution["prompt_injection"])
}

func TestRefresh_OneSourceDownDegradesToDefault(t *testing.T) {
	sender := &fakeSender{
		responses: healthyResponses(),
		errs: map[string]*gateway.APIError{
			"/api/stats/trend": {Kind: gateway.KindServerError, Status: 503, Message: "trend store down"},
		},
	}
	c := New(sender, zerolog.Nop())

	c.Refresh(context.Background(), 7)

	snap := c.State().Snapshot()
	require.Equal(t, orchestrator.StatusSucceeded, snap.Status, "a partially-down backend must not block rendering")
	assert.Equal(t, 1200, snap.Value.Overview.TotalPrompts)
	assert.Empty(t, snap.Value.Trend, "failed source keeps its documented empty default")
	assert.Equal(t, 12, snap.Value.Distribution["jailbreak"])
}

func TestRefresh_AllSourcesDownFailsButRetainsValue(t *testing.T) {
	sender := &fakeSender{responses: healthyResponses()}
	c := New(sender, zerolog.Nop())

	c.Refresh(context.Background(), 7)
	require.Equal(t, orchestrator.StatusSucceeded, c.State().Snapshot().Status)

	down := &gateway.APIError{Kind: gateway.KindNetworkError, Message: "backend unreachable, check network"}
	sender.mu.Lock()
	sender.errs = map[string]*gateway.APIError{
		"/api/stats/overview":     down,
		"/api/stats/trend":        down,
		"/api/stats/distribution": down,
	}
	sender.mu.Unlock()

	c.Refresh(context.Background(), 7)

	snap := c.State().Snapshot()
	assert.Equal(t, orchestrator.StatusFailed, snap.Status)
	assert.Equal(t, gateway.KindNetworkError, snap.Err.Kind)
	assert.Equal(t, 1200, snap.Value.Overview.TotalPrompts, "stale data retained over a blank dashboard")
}

func TestRefresh_EntirelySupersededDrivesNoTransition(t *testing.T) {
	canceled := &gateway.APIError{Kind: gateway.KindCanceled, SuppressUserMessage: true}
	sender := &fakeSender{errs: map[string]*gateway.APIError{
		"/api/stats/overview":     canceled,
		"/api/stats/trend":        canceled,
		"/api/stats/distribution": canceled,
	}}
	c := New(sender, zerolog.Nop())

	c.Refresh(context.Background(), 7)

	assert.Equal(t, orchestrator.StatusLoading, c.State().Snapshot().Status,
		"the superseding refresh owns the next transition")
}

func TestRefresh_TrendQueryCarriesDays(t *testing.T) {
	var gotDays string
	sender := &fakeSender{responses: healthyResponses()}
	c := New(&querySpy{inner: sender, onTrend: func(d gateway.Descriptor) {
		gotDays = d.Query.Get("days")
	}}, zerolog.Nop())

	c.Refresh(context.Background(), 30)
	assert.Equal(t, "30", gotDays)
}

type querySpy struct {
	inner   *fakeSender
	onTrend func(gateway.Descriptor)
}

func (s *querySpy) SendJSON(ctx context.Context, d gateway.Descriptor, out any) error {
	if d.Path == "/api/stats/trend" {
		s.onTrend(d)
	}
	return s.inner.SendJSON(ctx, d, out)
}
