// Package interleave merges several tables into one, either round-robin or by
// sampling each output row from a weighted distribution over the inputs.
//
// Both strategies stop at the first exhausted input: round-robin emits
// n × min(len_i) rows, and weighted sampling ends the first time it draws an
// input that has no rows left. Inputs with probability zero are never drawn.
package interleave

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/leapstack-labs/leapmix/pkg/core"
	"github.com/leapstack-labs/leapmix/pkg/dataset"
)

// DefaultSeed is the sampling seed used when none is configured.
const DefaultSeed uint64 = 42

// Input is one table to interleave together with its sampling weight.
type Input struct {
	Name   string
	Table  *dataset.Table
	Weight float64
}

// Result is the merged table plus what the sampler was given.
type Result struct {
	Table *dataset.Table
	// Weighted is false when every weight was 1 and round-robin was used.
	Weighted bool
	// Probabilities are the normalized weights, one per input. Nil when not weighted.
	Probabilities []float64
	// Taken counts the rows actually taken from each input.
	Taken []int
}

// Normalize divides each weight by the sum of all weights. Negative weights
// and a zero sum are configuration errors.
func Normalize(weights []float64) ([]float64, error) {
	var sum float64
	for i, w := range weights {
		if w < 0 || math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, &core.ConfigValidationError{
				Subject: "probabilities",
				Reason:  fmt.Sprintf("weight %d is %v; weights must be finite and non-negative", i, w),
			}
		}
		sum += w
	}
	if sum == 0 {
		return nil, &core.ConfigValidationError{
			Subject: "probabilities",
			Reason:  "weights sum to zero; at least one source needs a positive probability",
		}
	}

	probs := make([]float64, len(weights))
	for i, w := range weights {
		probs[i] = w / sum
	}
	return probs, nil
}

// Interleave merges inputs. When every weight is exactly 1 the inputs are
// interleaved round-robin; otherwise rows are sampled with a PCG generator
// seeded from seed, so identical inputs always produce identical output.
func Interleave(inputs []Input, seed uint64) (*Result, error) {
	if len(inputs) == 0 {
		return nil, fmt.Errorf("interleave: no inputs")
	}

	tables := make([]*dataset.Table, len(inputs))
	weights := make([]float64, len(inputs))
	weighted := false
	for i, in := range inputs {
		if in.Table == nil {
			return nil, fmt.Errorf("interleave: input %q has no data", in.Name)
		}
		tables[i] = in.Table
		weights[i] = in.Weight
		if in.Weight != 1 {
			weighted = true
		}
	}

	columns := dataset.UnionColumns(tables...)
	for i, t := range tables {
		tables[i] = t.AlignTo(columns)
	}

	if !weighted {
		rows, taken := roundRobin(tables)
		return &Result{Table: dataset.MustTable(columns, rows), Taken: taken}, nil
	}

	probs, err := Normalize(weights)
	if err != nil {
		return nil, err
	}
	rows, taken := sample(tables, probs, seed)
	return &Result{
		Table:         dataset.MustTable(columns, rows),
		Weighted:      true,
		Probabilities: probs,
		Taken:         taken,
	}, nil
}

func roundRobin(tables []*dataset.Table) ([][]any, []int) {
	shortest := tables[0].NumRows()
	for _, t := range tables[1:] {
		shortest = min(shortest, t.NumRows())
	}

	rows := make([][]any, 0, shortest*len(tables))
	for r := 0; r < shortest; r++ {
		for _, t := range tables {
			rows = append(rows, t.Row(r))
		}
	}

	taken := make([]int, len(tables))
	for i := range taken {
		taken[i] = shortest
	}
	return rows, taken
}

func sample(tables []*dataset.Table, probs []float64, seed uint64) ([][]any, []int) {
	cumulative := make([]float64, len(probs))
	last := 0
	var acc float64
	for i, p := range probs {
		acc += p
		cumulative[i] = acc
		if p > 0 {
			last = i
		}
	}

	rng := rand.New(rand.NewPCG(seed, seed))
	next := make([]int, len(tables))
	var rows [][]any
	for {
		i := pick(cumulative, probs, rng.Float64(), last)
		if next[i] >= tables[i].NumRows() {
			return rows, next
		}
		rows = append(rows, tables[i].Row(next[i]))
		next[i]++
	}
}

// pick returns the first positive-probability index whose cumulative bound
// exceeds u. Rounding can leave the final bound just below 1, so u falls back
// to the last positive index.
func pick(cumulative, probs []float64, u float64, last int) int {
	for i, c := range cumulative {
		if probs[i] > 0 && u < c {
			return i
		}
	}
	return last
}

// Share is the approximate number of output rows attributed to one input.
type Share struct {
	Name    string
	Rows    int
	Percent float64
}

func (s Share) String() string {
	return fmt.Sprintf("%s: %d rows (%.2f%%)", s.Name, s.Rows, s.Percent)
}

// Distribution estimates each input's share of total output rows as
// floor(p × total). It is an observability aid only.
func Distribution(names []string, probabilities []float64, total int) []Share {
	shares := make([]Share, len(names))
	for i, name := range names {
		rows := int(math.Floor(probabilities[i] * float64(total)))
		var pct float64
		if total > 0 {
			pct = float64(rows) * 100 / float64(total)
		}
		shares[i] = Share{Name: name, Rows: rows, Percent: pct}
	}
	return shares
}
