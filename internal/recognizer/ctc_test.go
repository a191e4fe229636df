package recognizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCTCCollapse(t *testing.T) {
	idx := []int{1, 1, 0, 2, 2, 2, 3, 0, 3}
	pr := []float64{.8, .7, .1, .9, .85, .8, .6, .1, .5}
	outIdx, outPr := CTCCollapse(idx, pr, 0)
	assert.Equal(t, []int{1, 2, 3, 3}, outIdx)
	assert.Equal(t, []float64{.8, .9, .6, .5}, outPr)
}

func TestDecodeCTCGreedy(t *testing.T) {
	timeMajor := []float32{
		0.1, 0.9, 0.0, 0.0,
		0.2, 0.8, 0.0, 0.0,
		0.9, 0.05, 0.03, 0.02,
		0.1, 0.2, 0.7, 0.0,
	}
	classMajor := []float32{
		0.1, 0.2, 0.9, 0.1,
		0.9, 0.8, 0.05, 0.2,
		0.0, 0.0, 0.03, 0.7,
		0.0, 0.0, 0.02, 0.0,
	}
	tests := []struct {
		name         string
		logits       []float32
		classesFirst bool
	}{
		{"[N,T,C]", timeMajor, false},
		{"[N,C,T]", classMajor, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := DecodeCTCGreedy(tt.logits, []int64{1, 4, 4}, 0, tt.classesFirst)
			require.Len(t, dec, 1)
			assert.Equal(t, []int{1, 1, 0, 2}, dec[0].Indices)
			assert.Equal(t, []int{1, 2}, dec[0].Collapsed)
			assert.InDelta(t, 0.8, SequenceConfidence(dec[0].CollapsedProb), 1e-6)
		})
	}
}

func TestDecodeCTCGreedy_BadShapes(t *testing.T) {
	assert.Nil(t, DecodeCTCGreedy([]float32{1}, []int64{1, 1}, 0, false))
	assert.Nil(t, DecodeCTCGreedy([]float32{1, 2}, []int64{1, 2, 4}, 0, false))
	assert.Len(t, DecodeCTCGreedy(make([]float32, 8), []int64{1, 2, 4, 1}, 0, false), 1)
}

func TestProbOf_Logits(t *testing.T) {
	p := probOf([]float32{2, 1, 0}, 0)
	assert.InDelta(t, 0.665, p, 1e-3)
	assert.Zero(t, probOf(nil, 0))
}

func TestClassesFirst(t *testing.T) {
	assert.False(t, classesFirst([]int64{1, 40, 97}, 97))
	assert.True(t, classesFirst([]int64{1, 97, 40}, 97))
	assert.False(t, classesFirst([]int64{1, 97}, 97))
}
