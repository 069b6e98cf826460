package orchestrator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/promptshield/console-client/internal/gateway"
)

// Fetch is one named, independent backend fetch. Run stores its result via
// closure on success and applies its documented default on failure; the
// aggregate only needs the error.
type Fetch struct {
	Name string
	Run  func(ctx context.Context) error
}

// AggregateResult reports which fetches failed. Canceled outcomes are not
// failures: a superseded fetch is a non-event.
type AggregateResult struct {
	Failures map[string]*gateway.APIError
	Canceled int
	Total    int
}

// AllFailed reports whether every non-canceled fetch failed.
func (r AggregateResult) AllFailed() bool {
	effective := r.Total - r.Canceled
	return effective > 0 && len(r.Failures) == effective
}

// LoadAll runs every fetch concurrently. A fetch's failure is caught locally
// and recorded; it does not propagate and does not cancel its siblings, so a
// single broken data source degrades the dashboard instead of blanking it.
// Only when all fetches fail is a single aggregate warning logged (never
// shown to the end user).
func LoadAll(ctx context.Context, log zerolog.Logger, fetches []Fetch) AggregateResult {
	res := AggregateResult{
		Failures: make(map[string]*gateway.APIError),
		Total:    len(fetches),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	for _, f := range fetches {
		wg.Add(1)
		go func(f Fetch) {
			defer wg.Done()
			err := f.Run(ctx)
			if err == nil {
				return
			}
			apiErr := gateway.AsAPIError(err)
			mu.Lock()
			defer mu.Unlock()
			if apiErr.Kind == gateway.KindCanceled {
				res.Canceled++
				return
			}
			res.Failures[f.Name] = apiErr
			log.Debug().Str("fetch", f.Name).Str("kind", string(apiErr.Kind)).Msg("aggregate fetch degraded to default")
		}(f)
	}
	wg.Wait()

	if res.AllFailed() {
		log.Warn().Int("fetches", res.Total).Msg("all aggregate fetches failed")
	}
	return res
}
