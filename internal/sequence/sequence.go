// Package sequence orders detector predictions into reading order.
package sequence

import (
	"log/slog"
	"math"
	"sort"

	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/script"
)

// Plan is the reading order for one image. For line-based scripts every
// line holds exactly one prediction.
type Plan struct {
	Lines [][]region.Prediction
	// Fallback is set when ordering keys were missing and detector order was kept.
	Fallback bool
}

// Len returns the number of predictions in the plan.
func (p Plan) Len() int {
	n := 0
	for _, l := range p.Lines {
		n += len(l)
	}
	return n
}

// Order arranges preds according to policy. threshold is the maximum
// vertical distance between consecutive words of the same line.
func Order(preds []region.Prediction, policy script.Sequencing, threshold float64) Plan {
	if len(preds) == 0 {
		return Plan{}
	}
	for _, p := range preds {
		if !p.HasAnchor || math.IsNaN(p.Anchor.X) || math.IsNaN(p.Anchor.Y) {
			slog.Warn("Missing sort key, keeping detector order",
				"policy", string(policy), "region", p.Index)
			return fallback(preds, policy)
		}
	}

	sorted := append([]region.Prediction(nil), preds...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Anchor.Y < sorted[j].Anchor.Y })

	if policy != script.Words {
		return Plan{Lines: singles(sorted)}
	}

	var lines [][]region.Prediction
	current := []region.Prediction{sorted[0]}
	for i := 1; i < len(sorted); i++ {
		if math.Abs(sorted[i].Anchor.Y-sorted[i-1].Anchor.Y) <= threshold {
			current = append(current, sorted[i])
			continue
		}
		lines = append(lines, current)
		current = []region.Prediction{sorted[i]}
	}
	lines = append(lines, current)

	for _, line := range lines {
		sort.SliceStable(line, func(i, j int) bool { return line[i].Anchor.X < line[j].Anchor.X })
	}
	slog.Debug("Grouped words into lines", "words", len(sorted), "lines", len(lines))
	return Plan{Lines: lines}
}

func fallback(preds []region.Prediction, policy script.Sequencing) Plan {
	kept := append([]region.Prediction(nil), preds...)
	if policy == script.Words {
		return Plan{Lines: [][]region.Prediction{kept}, Fallback: true}
	}
	return Plan{Lines: singles(kept), Fallback: true}
}

func singles(preds []region.Prediction) [][]region.Prediction {
	lines := make([][]region.Prediction, len(preds))
	for i := range preds {
		lines[i] = preds[i : i+1 : i+1]
	}
	return lines
}
