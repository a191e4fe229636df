package recognizer

import "math"

// DecodedSequence is the greedy CTC path for one batch item.
type DecodedSequence struct {
	Indices       []int
	Probs         []float64
	Collapsed     []int
	CollapsedProb []float64
}

func argmax(v []float32) int {
	if len(v) == 0 {
		return -1
	}
	idx := 0
	for i := 1; i < len(v); i++ {
		if v[i] > v[idx] {
			idx = i
		}
	}
	return idx
}

// probOf returns the softmax probability of v[idx]. Rows that already sum
// to one are treated as probabilities.
func probOf(v []float32, idx int) float64 {
	if idx < 0 || idx >= len(v) {
		return 0
	}
	var sum float64
	maxV := v[0]
	probLike := true
	for _, x := range v {
		sum += float64(x)
		if x < 0 || x > 1 {
			probLike = false
		}
		if x > maxV {
			maxV = x
		}
	}
	if probLike && sum > 0.99 && sum < 1.01 {
		return float64(v[idx])
	}
	var denom float64
	for _, x := range v {
		denom += math.Exp(float64(x - maxV))
	}
	if denom == 0 {
		return 0
	}
	return math.Exp(float64(v[idx]-maxV)) / denom
}

// CTCCollapse merges consecutive repeats and drops blanks.
func CTCCollapse(indices []int, probs []float64, blank int) ([]int, []float64) {
	outIdx := make([]int, 0, len(indices))
	outProb := make([]float64, 0, len(indices))
	prev := -1
	for i, idx := range indices {
		if idx == blank {
			prev = idx
			continue
		}
		if idx == prev {
			continue
		}
		outIdx = append(outIdx, idx)
		p := 0.0
		if i < len(probs) {
			p = probs[i]
		}
		outProb = append(outProb, p)
		prev = idx
	}
	return outIdx, outProb
}

// DecodeCTCGreedy decodes logits laid out as [N, T, C], or [N, C, T] when
// classesFirst is set. Trailing singleton dimensions are ignored.
func DecodeCTCGreedy(logits []float32, shape []int64, blank int, classesFirst bool) []DecodedSequence {
	dims := append([]int64(nil), shape...)
	for len(dims) > 3 && dims[len(dims)-1] == 1 {
		dims = dims[:len(dims)-1]
	}
	if len(dims) != 3 {
		return nil
	}
	n, t, c := int(dims[0]), int(dims[1]), int(dims[2])
	if classesFirst {
		t, c = c, t
	}
	if n <= 0 || t <= 0 || c <= 0 || len(logits) < n*t*c {
		return nil
	}

	out := make([]DecodedSequence, n)
	row := make([]float32, c)
	for b := range n {
		base := b * t * c
		indices := make([]int, t)
		probs := make([]float64, t)
		for step := range t {
			if classesFirst {
				for k := range c {
					row[k] = logits[base+k*t+step]
				}
			} else {
				copy(row, logits[base+step*c:base+(step+1)*c])
			}
			idx := argmax(row)
			indices[step] = idx
			probs[step] = probOf(row, idx)
		}
		coll, collProb := CTCCollapse(indices, probs, blank)
		out[b] = DecodedSequence{Indices: indices, Probs: probs, Collapsed: coll, CollapsedProb: collProb}
	}
	return out
}

// classesFirst guesses the output layout from the expected class count.
func classesFirst(shape []int64, classes int) bool {
	dims := append([]int64(nil), shape...)
	for len(dims) > 3 && dims[len(dims)-1] == 1 {
		dims = dims[:len(dims)-1]
	}
	if len(dims) != 3 {
		return false
	}
	return int(dims[2]) != classes && int(dims[1]) == classes
}

// SequenceConfidence averages per-character probabilities.
func SequenceConfidence(charProbs []float64) float64 {
	if len(charProbs) == 0 {
		return 0
	}
	var s float64
	for _, p := range charProbs {
		s += p
	}
	return s / float64(len(charProbs))
}
