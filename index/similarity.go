package index

import (
	"math"

	"github.com/poiesic/lumina/core"
)

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

// denseSimilarity returns cosine(q, v) clamped to [0, 1].
// qNorm is the precomputed norm of q. Zero vectors score 0.
func denseSimilarity(q []float32, qNorm float64, v []float32) float32 {
	if qNorm == 0 || len(q) != len(v) {
		return 0
	}
	var dot float64
	for i := range q {
		dot += float64(q[i]) * float64(v[i])
	}
	vNorm := norm(v)
	if vNorm == 0 {
		return 0
	}
	return clamp01(dot / (qNorm * vNorm))
}

// sparseSimilarity returns the cosine of two sparse vectors with sorted
// indices. Weights are non-negative, so the result is already in [0, 1].
func sparseSimilarity(q core.SparseVector, qNorm float64, v core.SparseVector) float32 {
	if qNorm == 0 || len(v.Indices) == 0 {
		return 0
	}
	var dot float64
	i, j := 0, 0
	for i < len(q.Indices) && j < len(v.Indices) {
		switch {
		case q.Indices[i] == v.Indices[j]:
			dot += float64(q.Values[i]) * float64(v.Values[j])
			i++
			j++
		case q.Indices[i] < v.Indices[j]:
			i++
		default:
			j++
		}
	}
	if dot == 0 {
		return 0
	}
	return clamp01(dot / (qNorm * norm(v.Values)))
}

// idf is the BM25 inverse document frequency of a term found in df of n
// records. It is positive even for a term every record contains.
func idf(n, df int) float64 {
	return math.Log(1 + (float64(n)-float64(df)+0.5)/(float64(df)+0.5))
}

// weightQuery scales each query term by its idf. Terms no record contains
// cannot match and are dropped so they do not dilute the query norm.
func weightQuery(q core.SparseVector, n int, df []int) core.SparseVector {
	out := core.SparseVector{
		Indices: make([]uint32, 0, len(q.Indices)),
		Values:  make([]float32, 0, len(q.Values)),
	}
	for i, term := range q.Indices {
		if df[i] == 0 || q.Values[i] == 0 {
			continue
		}
		out.Indices = append(out.Indices, term)
		out.Values = append(out.Values, float32(float64(q.Values[i])*idf(n, df[i])))
	}
	return out
}

// clamp01 also absorbs rounding that pushes a cosine slightly past 1.
func clamp01(x float64) float32 {
	switch {
	case x <= 0 || math.IsNaN(x):
		return 0
	case x >= 1:
		return 1
	}
	return float32(x)
}
