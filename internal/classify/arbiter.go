package classify

import "fmt"

// DefaultAcceptThreshold is the model confidence at which the arbiter prefers
// the model result over the heuristic one. Configurable, not a hard constant.
const DefaultAcceptThreshold = 0.7

// Arbitrate combines the heuristic result with an optional model result under a
// confidence policy. It is a pure function:
//
//   - no model result: the heuristic result, method unchanged
//   - model confidence ≥ threshold: the model result
//   - otherwise: heuristic category and confidence, with the model's reasoning
//     and suggested name merged in (method hybrid)
//
// Confidence is never raised above the higher of the two inputs.
func Arbitrate(heuristic Classification, model *Classification, threshold float64) Classification {
	if model == nil {
		return heuristic
	}
	if model.Confidence >= threshold {
		out := *model
		out.Method = MethodModel
		out.Confidence = clamp(out.Confidence)
		return out
	}

	out := heuristic
	out.Method = MethodHybrid
	if model.Reasoning != "" {
		out.Reasoning = fmt.Sprintf("%s (model, below threshold: %s)", heuristic.Reasoning, model.Reasoning)
	}
	if model.SuggestedName != "" {
		out.SuggestedName = model.SuggestedName
	}
	return out
}
