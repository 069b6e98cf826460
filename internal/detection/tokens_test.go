package detection

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEstimate_Heuristic(t *testing.T) {
	e := &Estimator{} // no tokenizer tables: character heuristic

	assert.Equal(t, 0, e.Estimate(""))
	assert.Equal(t, 1, e.Estimate("hi"), "short prompts round up to one token")
	assert.Equal(t, 2, e.Estimate("12345678"))
	assert.Equal(t, 25, e.Estimate(strings.Repeat("a", 100)))
}

func TestEstimate_NilReceiver(t *testing.T) {
	var e *Estimator
	assert.Equal(t, 0, e.Estimate(""))
	assert.Equal(t, 3, e.Estimate("twelve chars"))
}
