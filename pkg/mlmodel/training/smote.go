package training

import (
	"fmt"
	"math/rand"
	"sort"
)

// SMOTE oversamples every class below the majority count up to it by
// interpolating between a sample and one of its k nearest same-class
// neighbours. Classes with a single sample are duplicated instead. The
// original rows come first, followed by the synthetic rows class by class.
func SMOTE(X [][]float64, y []int, k int, seed int64) ([][]float64, []int, error) {
	if len(X) == 0 || len(X) != len(y) {
		return nil, nil, fmt.Errorf("invalid data: %d rows, %d labels", len(X), len(y))
	}
	if k < 1 {
		return nil, nil, fmt.Errorf("k_neighbors must be positive, got %d", k)
	}

	groups := classIndices(y)
	majority := 0
	for _, g := range groups {
		majority = max(majority, len(g))
	}

	outX := append([][]float64(nil), X...)
	outY := append([]int(nil), y...)
	rng := rand.New(rand.NewSource(seed))

	for c, g := range groups {
		need := majority - len(g)
		if need <= 0 || len(g) == 0 {
			continue
		}
		if len(g) == 1 {
			for range need {
				outX = append(outX, append([]float64(nil), X[g[0]]...))
				outY = append(outY, c)
			}
			continue
		}

		kk := min(k, len(g)-1)
		neighbours := nearestNeighbours(X, g, kk)
		for range need {
			s := rng.Intn(len(g))
			nn := neighbours[s][rng.Intn(kk)]
			gap := rng.Float64()

			base, other := X[g[s]], X[nn]
			synth := make([]float64, len(base))
			for j := range base {
				synth[j] = base[j] + gap*(other[j]-base[j])
			}
			outX = append(outX, synth)
			outY = append(outY, c)
		}
	}
	return outX, outY, nil
}

// nearestNeighbours returns, for each member of group, the row indices of its
// k closest other members by euclidean distance.
func nearestNeighbours(X [][]float64, group []int, k int) [][]int {
	out := make([][]int, len(group))
	type cand struct {
		row  int
		dist float64
	}
	for a, i := range group {
		cands := make([]cand, 0, len(group)-1)
		for _, j := range group {
			if j == i {
				continue
			}
			cands = append(cands, cand{row: j, dist: sqDist(X[i], X[j])})
		}
		sort.SliceStable(cands, func(p, q int) bool { return cands[p].dist < cands[q].dist })
		out[a] = make([]int, k)
		for n := 0; n < k; n++ {
			out[a][n] = cands[n].row
		}
	}
	return out
}

func sqDist(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return d
}
