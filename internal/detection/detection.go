// Package detection tracks in-flight and recent single-item detection
// operations: a pending set that blocks duplicate submission, a bounded
// history of recent results, and an observable current-result slot.
package detection

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/promptshield/console-client/internal/config"
	"github.com/promptshield/console-client/internal/gateway"
	"github.com/promptshield/console-client/internal/orchestrator"
)

// ErrAlreadyPending is returned when an item is submitted while a previous
// submission for the same item has not settled.
var ErrAlreadyPending = errors.New("detection already pending for this item")

// Result is one detection outcome as reported by the backend.
type Result struct {
	ID          string    `json:"id"`
	ItemID      string    `json:"item_id"`
	Verdict     string    `json:"verdict"` // clean, flagged, blocked
	ThreatType  string    `json:"threat_type,omitempty"`
	Score       float64   `json:"score"`
	CompletedAt time.Time `json:"completed_at"`
}

// BatchItem is one entry of an ordered batch submission.
type BatchItem struct {
	ItemID string `json:"item_id"`
	Prompt string `json:"prompt"`

	// TokenEstimate is the client-side token count of Prompt, advisory for
	// the backend's quota accounting.
	TokenEstimate int `json:"token_estimate,omitempty"`
}

// BatchOutcome records the per-item outcome of a batch submission. Partial
// success is a first-class outcome, not an all-or-nothing failure.
type BatchOutcome struct {
	ItemID string
	Result *Result
	Err    *gateway.APIError
}

// Sender is the slice of the gateway the coordinator needs.
type Sender interface {
	SendJSON(ctx context.Context, d gateway.Descriptor, out any) error
}

// Coordinator drives detection submissions through the gateway.
type Coordinator struct {
	gw     Sender
	log    zerolog.Logger
	state  *orchestrator.State[Result]
	tokens *Estimator

	mu      sync.Mutex
	pending map[string]struct{}

	history *History
}

// Option configures the Coordinator.
type Option func(*Coordinator)

// WithEstimator sets the token estimator used to annotate submissions.
func WithEstimator(e *Estimator) Option {
	return func(c *Coordinator) { c.tokens = e }
}

// New creates a Coordinator with the default history capacity.
func New(gw Sender, log zerolog.Logger, opts ...Option) *Coordinator {
	c := &Coordinator{
		gw:      gw,
		log:     log,
		state:   orchestrator.NewState[Result](),
		pending: make(map[string]struct{}),
		history: NewHistory(config.DetectionHistoryCapacity),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EstimateTokens returns the approximate token cost of prompt, for display
// against the identity's quota counters before submission.
func (c *Coordinator) EstimateTokens(prompt string) int {
	return c.tokens.Estimate(prompt)
}

// State exposes the observable current-result slot.
func (c *Coordinator) State() *orchestrator.State[Result] {
	return c.state
}

// History exposes the recent-results ring.
func (c *Coordinator) History() *History {
	return c.history
}

// Enqueue marks itemID as pending. Returns false if it already was, which
// the UI uses to disable duplicate submission while a result is pending.
func (c *Coordinator) Enqueue(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[itemID]; ok {
		return false
	}
	c.pending[itemID] = struct{}{}
	return true
}

// Dequeue removes itemID from the pending set. Removing an absent id is a
// no-op.
func (c *Coordinator) Dequeue(itemID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.pending, itemID)
}

// Pending reports whether itemID is currently submitted.
func (c *Coordinator) Pending(itemID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[itemID]
	return ok
}

// PendingCount returns the size of the pending set.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Submit sends one prompt for detection. The item stays in the pending set
// until the request settles. A superseded (canceled) submission returns the
// canceled error but drives no state transition.
func (c *Coordinator) Submit(ctx context.Context, itemID, prompt string) (*Result, error) {
	if !c.Enqueue(itemID) {
		return nil, ErrAlreadyPending
	}
	defer c.Dequeue(itemID)

	c.state.Begin()

	estimate := c.tokens.Estimate(prompt)
	c.log.Debug().Str("item_id", itemID).Int("token_estimate", estimate).Msg("detection: submitting")

	var res Result
	err := c.gw.SendJSON(ctx, gateway.Descriptor{
		Method: http.MethodPost,
		Path:   "/api/detect",
		Body:   BatchItem{ItemID: itemID, Prompt: prompt, TokenEstimate: estimate},
	}, &res)
	if err != nil {
		apiErr := gateway.AsAPIError(err)
		c.state.Fail(apiErr)
		return nil, apiErr
	}

	c.recordResult(res)
	return &res, nil
}

// SubmitBatch sends an ordered sequence of items. Each item's failure is
// recorded individually; later items are still attempted.
func (c *Coordinator) SubmitBatch(ctx context.Context, items []BatchItem) []BatchOutcome {
	outcomes := make([]BatchOutcome, 0, len(items))
	for _, item := range items {
		res, err := c.Submit(ctx, item.ItemID, item.Prompt)
		if errors.Is(err, ErrAlreadyPending) {
			c.log.Debug().Str("item_id", item.ItemID).Msg("detection: batch item skipped, already pending")
			continue
		}
		outcome := BatchOutcome{ItemID: item.ItemID, Result: res}
		if err != nil {
			outcome.Err = gateway.AsAPIError(err)
		}
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

// recordResult pushes the result into the ring and unconditionally sets the
// current-result slot (latest-write-wins, independent of ring eviction).
func (c *Coordinator) recordResult(res Result) {
	c.history.Push(res)
	c.state.Succeed(res)
}
