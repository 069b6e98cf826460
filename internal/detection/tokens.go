package detection

import (
	"github.com/pkoukk/tiktoken-go"
	"github.com/rs/zerolog/log"
)

// Estimator approximates how many tokens a prompt will cost before it is
// submitted, so the UI can show the estimate against the identity's quota
// counters without a round trip. The zero value uses a character heuristic;
// NewEstimator upgrades to a real BPE tokenizer when its tables are
// available.
type Estimator struct {
	enc *tiktoken.Tiktoken
}

// NewEstimator builds an Estimator backed by the cl100k_base encoding.
// When the encoding tables cannot be loaded (offline, no cache) it degrades
// to the heuristic rather than failing: an estimate is advisory.
func NewEstimator() *Estimator {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		log.Warn().Err(err).Msg("detection: tokenizer unavailable, estimating by character count")
		return &Estimator{}
	}
	return &Estimator{enc: enc}
}

// Estimate returns the approximate token count of prompt. Safe on a nil
// receiver.
func (e *Estimator) Estimate(prompt string) int {
	if prompt == "" {
		return 0
	}
	if e != nil && e.enc != nil {
		return len(e.enc.Encode(prompt, nil, nil))
	}
	// Roughly four characters per token for English-ish text.
	return (len(prompt) + 3) / 4
}
