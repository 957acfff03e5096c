package classify

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/codeshelf/codeshelf/internal/scanner"
)

// hintCategories maps a marker-file stack hint to its default taxonomy category.
// Hints absent here (docker, cpp build files) are too ambiguous to vote.
var hintCategories = map[string]string{
	"nodejs": "Web/Frontend",
	"python": "SystemUtilities/Python",
	"rust":   "SystemUtilities/Rust",
	"go":     "SystemUtilities/Go",
	"java":   "SystemUtilities/Java",
	"php":    "Web/Backend",
	"ruby":   "Web/Backend",
	"godot":  "Games/Godot",
}

// extCategories maps non-trivial file extensions to categories for majority
// voting. Documentation and config extensions carry no vote.
var extCategories = map[string]string{
	".vue":    "Web/Frontend",
	".jsx":    "Web/Frontend",
	".tsx":    "Web/Frontend",
	".svelte": "Web/Frontend",
	".html":   "Web/Frontend",
	".css":    "Web/Frontend",
	".scss":   "Web/Frontend",
	".sass":   "Web/Frontend",
	".less":   "Web/Frontend",
	".js":     "Web/FullStack",
	".ts":     "Web/FullStack",
	".mjs":    "Web/FullStack",
	".cjs":    "Web/FullStack",
	".py":     "SystemUtilities/Python",
	".pyx":    "SystemUtilities/Python",
	".pyi":    "SystemUtilities/Python",
	".ipynb":  "DataScience",
	".rs":     "SystemUtilities/Rust",
	".go":     "SystemUtilities/Go",
	".java":   "SystemUtilities/Java",
	".kt":     "Mobile/Android",
	".scala":  "SystemUtilities/Java",
	".swift":  "Mobile/iOS",
	".dart":   "Mobile/CrossPlatform",
	".gd":     "Games/Godot",
	".tscn":   "Games/Godot",
	".rb":     "Web/Backend",
	".php":    "Web/Backend",
	".r":      "DataScience",
	".jl":     "DataScience",
}

var (
	dataScienceTerms = []string{"machine learning", "data science", "pandas", "numpy", "tensorflow", "pytorch", "jupyter"}
	backendTerms     = []string{"express", "fastify", "koa", "django", "flask", "fastapi", "api", "server"}
	frontendExts     = []string{".vue", ".jsx", ".tsx", ".svelte"}
)

// HeuristicClassifier maps scan signals to a category with deterministic rules.
// It is a pure function of its input and never fails.
type HeuristicClassifier struct {
	taxonomy *Taxonomy
}

// NewHeuristicClassifier creates a heuristic classifier over the taxonomy.
func NewHeuristicClassifier(taxonomy *Taxonomy) *HeuristicClassifier {
	return &HeuristicClassifier{taxonomy: taxonomy}
}

// Classify applies marker rules first, then extension-majority voting, then the
// fallback category. Rule order is fixed.
func (h *HeuristicClassifier) Classify(scan *scanner.ScanResult) Classification {
	if c, ok := h.classifyByMarkers(scan); ok {
		c.Method = MethodHeuristic
		c.SuggestedName = SuggestName(scan.Path)
		return c
	}
	if c, ok := h.classifyByExtensions(scan); ok {
		c.Method = MethodHeuristic
		c.SuggestedName = SuggestName(scan.Path)
		return c
	}
	return Classification{
		Category:      FallbackCategory,
		Confidence:    0,
		Reasoning:     "no classifiable signals found",
		Method:        MethodHeuristic,
		SuggestedName: SuggestName(scan.Path),
	}
}

// classifyByMarkers votes with detected marker files. A single unambiguous stack
// hint classifies with high confidence; mixed hints classify with less.
func (h *HeuristicClassifier) classifyByMarkers(scan *scanner.ScanResult) (Classification, bool) {
	votes := make(map[string]int) // hint → marker count
	for _, marker := range scan.Markers {
		hint, ok := scanner.MarkerHint(marker)
		if !ok {
			continue
		}
		if _, mapped := hintCategories[hint]; mapped {
			votes[hint]++
		}
	}
	if len(votes) == 0 {
		return Classification{}, false
	}

	hint := majorityKey(votes)

	if hint == "nodejs" {
		return h.classifyNode(scan), true
	}
	if hint == "python" {
		return h.classifyPython(scan), true
	}

	confidence := 0.85
	reasoning := fmt.Sprintf("marker files indicate a %s project", hint)
	if len(votes) > 1 {
		confidence = 0.65
		reasoning = fmt.Sprintf("mixed marker files, %s dominates", hint)
	}
	return Classification{
		Category:   hintCategories[hint],
		Confidence: confidence,
		Reasoning:  reasoning,
	}, true
}

// classifyNode refines a nodejs marker using frontend extensions and the readme.
func (h *HeuristicClassifier) classifyNode(scan *scanner.ScanResult) Classification {
	for _, ext := range frontendExts {
		if scan.Extensions[ext] > 0 {
			return Classification{
				Category:   "Web/Frontend",
				Confidence: 0.9,
				Reasoning:  fmt.Sprintf("frontend framework files (%s) with a Node.js manifest", ext),
			}
		}
	}
	if containsAny(scan.ReadmeExcerpt, backendTerms) {
		return Classification{
			Category:   "Web/Backend",
			Confidence: 0.8,
			Reasoning:  "Node.js manifest and a backend-flavored readme",
		}
	}
	return Classification{
		Category:   "Web/Frontend",
		Confidence: 0.85,
		Reasoning:  "Node.js package manifest present",
	}
}

// classifyPython refines a python marker using the readme.
func (h *HeuristicClassifier) classifyPython(scan *scanner.ScanResult) Classification {
	if containsAny(scan.ReadmeExcerpt, dataScienceTerms) || scan.Extensions[".ipynb"] > 0 {
		return Classification{
			Category:   "DataScience",
			Confidence: 0.85,
			Reasoning:  "Python project with data science indicators",
		}
	}
	if containsAny(scan.ReadmeExcerpt, backendTerms) {
		return Classification{
			Category:   "Web/Backend",
			Confidence: 0.8,
			Reasoning:  "Python project with a web framework readme",
		}
	}
	return Classification{
		Category:   "SystemUtilities/Python",
		Confidence: 0.85,
		Reasoning:  "Python package manifest present",
	}
}

// classifyByExtensions votes with the most frequent non-trivial extension;
// confidence is that extension's share of all scanned files.
func (h *HeuristicClassifier) classifyByExtensions(scan *scanner.ScanResult) (Classification, bool) {
	if scan.TotalFiles == 0 {
		return Classification{}, false
	}
	votes := make(map[string]int) // extension → count, restricted to voting extensions
	for ext, count := range scan.Extensions {
		if _, ok := extCategories[ext]; ok {
			votes[ext] += count
		}
	}
	if len(votes) == 0 {
		return Classification{}, false
	}
	ext := majorityKey(votes)
	share := clamp(float64(votes[ext]) / float64(scan.TotalFiles))
	return Classification{
		Category:   extCategories[ext],
		Confidence: share,
		Reasoning:  fmt.Sprintf("%d of %d files are %s", votes[ext], scan.TotalFiles, ext),
	}, true
}

// majorityKey picks the key with the highest count, ties broken alphabetically
// so classification stays deterministic.
func majorityKey(votes map[string]int) string {
	best := ""
	for k, n := range votes {
		if best == "" || n > votes[best] || (n == votes[best] && k < best) {
			best = k
		}
	}
	return best
}

func containsAny(text string, terms []string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	for _, term := range terms {
		if strings.Contains(lower, term) {
			return true
		}
	}
	return false
}

var (
	nameSeparators = regexp.MustCompile(`[_\s]+`)
	nameInvalid    = regexp.MustCompile(`[^a-zA-Z0-9\-]`)
	nameSuffixes   = []string{"-master", "_master", "-main", "_main", "-dev", "_dev"}
)

// SuggestName derives a clean project name from a source path basename.
func SuggestName(path string) string {
	name := filepath.Base(path)
	for _, suffix := range nameSuffixes {
		name = strings.TrimSuffix(name, suffix)
	}
	name = nameSeparators.ReplaceAllString(name, "-")
	name = nameInvalid.ReplaceAllString(name, "")
	name = strings.Trim(strings.ToLower(name), "-")
	if name == "" {
		return "project"
	}
	return name
}
