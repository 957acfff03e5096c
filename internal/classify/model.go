package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	cserrors "github.com/codeshelf/codeshelf/internal/errors"
	"github.com/codeshelf/codeshelf/internal/scanner"
)

// Generator is the inference capability the model classifier consumes: given a
// text prompt and a model identifier, return text.
type Generator interface {
	Generate(ctx context.Context, prompt, model string) (string, error)
}

// promptExtensionLimit caps how many histogram entries the prompt carries.
const promptExtensionLimit = 10

// ModelClassifier builds a structured prompt from scan signals, calls the
// inference capability, and validates the response into a Classification.
type ModelClassifier struct {
	gen      Generator
	taxonomy *Taxonomy
	logger   zerolog.Logger
}

// NewModelClassifier creates a model classifier over the taxonomy.
func NewModelClassifier(gen Generator, taxonomy *Taxonomy, logger zerolog.Logger) *ModelClassifier {
	return &ModelClassifier{
		gen:      gen,
		taxonomy: taxonomy,
		logger:   logger.With().Str("component", "model_classifier").Logger(),
	}
}

// Classify asks the model for a classification of the scanned project. It fails
// with the transient taxonomy (unavailable, timeout) or ErrInvalidResponse when
// the output does not conform to the expected shape.
func (m *ModelClassifier) Classify(ctx context.Context, scan *scanner.ScanResult, model string) (*Classification, error) {
	prompt := m.BuildPrompt(scan)

	raw, err := m.gen.Generate(ctx, prompt, model)
	if err != nil {
		return nil, err
	}

	c, err := m.parseResponse(raw)
	if err != nil {
		m.logger.Warn().Err(err).Str("model", model).Msg("model response rejected")
		return nil, err
	}
	c.Method = MethodModel
	return c, nil
}

// BuildPrompt renders the classification prompt. It carries only data from the
// scanned tree: the top histogram entries, the marker list, and the readme
// excerpt — never raw file contents.
func (m *ModelClassifier) BuildPrompt(scan *scanner.ScanResult) string {
	var b strings.Builder
	b.WriteString("Analyze this software project and classify it into the most appropriate category.\n\n")
	b.WriteString("Project Details:\n")
	fmt.Fprintf(&b, "- Directory Name: %s\n", SuggestName(scan.Path))
	fmt.Fprintf(&b, "- Total Files: %d\n", scan.TotalFiles)

	if len(scan.Markers) > 0 {
		fmt.Fprintf(&b, "- Marker Files: %s\n", strings.Join(scan.Markers, ", "))
	} else {
		b.WriteString("- Marker Files: none\n")
	}

	top := scan.TopExtensions(promptExtensionLimit)
	exts := make([]string, 0, len(top))
	for _, e := range top {
		exts = append(exts, fmt.Sprintf("%s(%d)", e.Ext, e.Count))
	}
	fmt.Fprintf(&b, "- File Extensions: %s\n", strings.Join(exts, ", "))

	if scan.ReadmeExcerpt != "" {
		fmt.Fprintf(&b, "- README Excerpt: %s\n", scan.ReadmeExcerpt)
	} else {
		b.WriteString("- README Excerpt: no README found\n")
	}

	b.WriteString("\nValid Categories:\n")
	for _, c := range m.taxonomy.PromptList() {
		fmt.Fprintf(&b, "- %s\n", c)
	}

	b.WriteString("\nRespond with JSON only in this exact format:\n")
	b.WriteString(`{
  "category": "exact category from the list above",
  "confidence": 0.85,
  "reasoning": "brief explanation of the classification decision",
  "suggested_name": "clean-project-name"
}`)
	return b.String()
}

// modelResponse is the structured response schema; part of the external
// contract with the inference capability.
type modelResponse struct {
	Category      string   `json:"category"`
	Confidence    *float64 `json:"confidence"`
	Reasoning     string   `json:"reasoning"`
	SuggestedName string   `json:"suggested_name"`
}

// parseResponse extracts and validates the JSON object from raw model output.
// Anything outside the expected shape, or a category outside the taxonomy, is
// ErrInvalidResponse — never silently coerced.
func (m *ModelClassifier) parseResponse(raw string) (*Classification, error) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: no JSON object in output", cserrors.ErrInvalidResponse)
	}

	var mr modelResponse
	if err := json.Unmarshal([]byte(raw[start:end+1]), &mr); err != nil {
		return nil, fmt.Errorf("%w: %v", cserrors.ErrInvalidResponse, err)
	}
	if mr.Category == "" {
		return nil, fmt.Errorf("%w: missing category", cserrors.ErrInvalidResponse)
	}
	if mr.Confidence == nil {
		return nil, fmt.Errorf("%w: missing confidence", cserrors.ErrInvalidResponse)
	}
	if mr.Reasoning == "" {
		return nil, fmt.Errorf("%w: missing reasoning", cserrors.ErrInvalidResponse)
	}
	if !m.taxonomy.Contains(mr.Category) {
		return nil, fmt.Errorf("%w: category %q not in taxonomy", cserrors.ErrInvalidResponse, mr.Category)
	}

	return &Classification{
		Category:      mr.Category,
		Confidence:    clamp(*mr.Confidence),
		Reasoning:     mr.Reasoning,
		SuggestedName: mr.SuggestedName,
	}, nil
}
