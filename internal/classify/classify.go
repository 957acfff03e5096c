// Package classify determines what kind of software project a scanned directory
// contains. Two classifiers share one signature — a deterministic heuristic and an
// advisory model — and an arbiter policy combines their results.
package classify

// Method records which classifier produced a Classification.
type Method string

const (
	MethodHeuristic Method = "heuristic"
	MethodModel     Method = "model"
	MethodHybrid    Method = "hybrid"
)

// Classification is the result shape shared by both classifiers and the arbiter.
type Classification struct {
	Category      string  `json:"category"`
	Confidence    float64 `json:"confidence"`
	Reasoning     string  `json:"reasoning"`
	Method        Method  `json:"method"`
	SuggestedName string  `json:"suggested_name,omitempty"`
}

// clamp bounds a confidence to [0,1].
func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
