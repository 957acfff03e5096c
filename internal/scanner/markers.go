package scanner

// markerHints maps marker filenames to the technology stack they indicate.
// Matched case-sensitively against every filename seen during traversal.
var markerHints = map[string]string{
	// JavaScript / Node.js
	"package.json":      "nodejs",
	"yarn.lock":         "nodejs",
	"package-lock.json": "nodejs",
	"pnpm-lock.yaml":    "nodejs",

	// Python
	"requirements.txt": "python",
	"setup.py":         "python",
	"pyproject.toml":   "python",
	"Pipfile":          "python",
	"poetry.lock":      "python",

	// Rust
	"Cargo.toml": "rust",
	"Cargo.lock": "rust",

	// Go
	"go.mod": "go",
	"go.sum": "go",

	// JVM
	"pom.xml":          "java",
	"build.gradle":     "java",
	"build.gradle.kts": "java",

	// C / C++
	"CMakeLists.txt": "cpp",
	"Makefile":       "cpp",
	"configure.ac":   "cpp",

	// PHP
	"composer.json": "php",

	// Ruby
	"Gemfile":  "ruby",
	"Rakefile": "ruby",

	// Containers
	"Dockerfile":          "docker",
	"docker-compose.yml":  "docker",
	"docker-compose.yaml": "docker",

	// Game engines
	"project.godot": "godot",
}

// MarkerHint returns the stack hint for a marker filename, if any.
func MarkerHint(name string) (string, bool) {
	hint, ok := markerHints[name]
	return hint, ok
}

// skipDirs are build, cache and VCS directories excluded from traversal.
var skipDirs = map[string]struct{}{
	".git":          {},
	".hg":           {},
	".svn":          {},
	"node_modules":  {},
	"__pycache__":   {},
	"target":        {},
	"build":         {},
	"dist":          {},
	".venv":         {},
	"venv":          {},
	".pytest_cache": {},
	".mypy_cache":   {},
	".tox":          {},
	"vendor":        {},
	"deps":          {},
	"_build":        {},
	".next":         {},
	".cache":        {},
}
