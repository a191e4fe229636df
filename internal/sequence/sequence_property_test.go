package sequence

import (
	"math"
	"reflect"
	"sort"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/MeKo-Tech/lipi/internal/region"
	"github.com/MeKo-Tech/lipi/internal/script"
)

// genWords generates n anchored word predictions with integral coordinates
// so threshold boundaries are hit exactly.
func genWords(n int) gopter.Gen {
	return gen.SliceOfN(n, gopter.CombineGens(
		gen.IntRange(0, 400),
		gen.IntRange(0, 300),
	)).Map(func(pairs [][]interface{}) []region.Prediction {
		preds := make([]region.Prediction, len(pairs))
		for i, p := range pairs {
			preds[i] = at(i, float64(p[0].(int)), float64(p[1].(int)))
		}
		return preds
	})
}

func TestOrder_WordsProperties(t *testing.T) {
	const threshold = 20
	properties := gopter.NewProperties(nil)

	properties.Property("every prediction appears exactly once", prop.ForAll(
		func(preds []region.Prediction) bool {
			plan := Order(preds, script.Words, threshold)
			seen := map[int]int{}
			for _, line := range plan.Lines {
				for _, p := range line {
					seen[p.Index]++
				}
			}
			if len(seen) != len(preds) {
				return false
			}
			for _, n := range seen {
				if n != 1 {
					return false
				}
			}
			return true
		},
		genWords(10),
	))

	properties.Property("lines are x-ordered", prop.ForAll(
		func(preds []region.Prediction) bool {
			for _, line := range Order(preds, script.Words, threshold).Lines {
				if !sort.SliceIsSorted(line, func(i, j int) bool { return line[i].Anchor.X < line[j].Anchor.X }) {
					return false
				}
			}
			return true
		},
		genWords(10),
	))

	properties.Property("consecutive lines are more than threshold apart", prop.ForAll(
		func(preds []region.Prediction) bool {
			lines := Order(preds, script.Words, threshold).Lines
			for i := 1; i < len(lines); i++ {
				if minY(lines[i])-maxY(lines[i-1]) <= threshold {
					return false
				}
			}
			return true
		},
		genWords(10),
	))

	properties.Property("ordering is deterministic", prop.ForAll(
		func(preds []region.Prediction) bool {
			return reflect.DeepEqual(
				indices(Order(preds, script.Words, threshold)),
				indices(Order(preds, script.Words, threshold)))
		},
		genWords(10),
	))

	properties.TestingRun(t)
}

func minY(line []region.Prediction) float64 {
	m := math.Inf(1)
	for _, p := range line {
		m = math.Min(m, p.Anchor.Y)
	}
	return m
}

func maxY(line []region.Prediction) float64 {
	m := math.Inf(-1)
	for _, p := range line {
		m = math.Max(m, p.Anchor.Y)
	}
	return m
}
