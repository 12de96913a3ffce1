package analyzer

import (
	"regexp"
	"strings"
)

// ---------------------------------------------------------------------------
// Pattern table
// ---------------------------------------------------------------------------

// importPattern pairs a compiled expression with the capture group holding
// the specifier. Keeping the table declarative means each pattern can be
// added and tested independently.
type importPattern struct {
	name  string
	re    *regexp.Regexp
	group int
}

// importPatterns is the fixed ordered list of lexical import heuristics.
// The patterns are not mutually exclusive; a line may match several, which
// is fine because captures land in a set. This is a lexical scanner, not a
// parser: string literals that look like imports will match, and syntax the
// table does not cover will not. Both are accepted accuracy bounds.
var importPatterns = []importPattern{
	// import { a, b } from './x' / import * as ns from "./x" / import x from './x'
	{"es-module", regexp.MustCompile(`import\s+[\w{}\s,*$]+\s+from\s+['"]([^'"]+)['"]`), 1},
	// import('./x') — dynamic and deferred imports
	{"dynamic", regexp.MustCompile(`import\s*\(\s*['"]([^'"]+)['"]\s*\)`), 1},
	// require('./x')
	{"require", regexp.MustCompile(`require\s*\(\s*['"]([^'"]+)['"]\s*\)`), 1},
	// bare from "./x" clause
	{"from-clause", regexp.MustCompile(`from\s+['"]([^'"]+)['"]`), 1},
	// import "./x" — bracket-delimited / side-effect import clause
	{"bare-import", regexp.MustCompile(`import\s+['"]([^'"]+)['"]`), 1},
	// import "./x"; — semicolon-terminated import statement
	{"import-stmt", regexp.MustCompile(`import\s+[^;\n]*?['"]([^'"]+)['"]\s*;`), 1},
	// #include <x.h> / #include "x.h"
	{"include", regexp.MustCompile(`#include\s*[<"]([^>"]+)[>"]`), 1},
	// using namespace foo;
	{"using-namespace", regexp.MustCompile(`using\s+namespace\s+([\w.:]+)\s*;`), 1},
	// load('./x') — generic script-loader call
	{"loader", regexp.MustCompile(`\bload\s*\(\s*['"]([^'"]+)['"]\s*\)`), 1},
	// @import './x' — stylesheets
	{"css-import", regexp.MustCompile(`@import\s+(?:url\(\s*)?['"]([^'"]+)['"]`), 1},
}

// ---------------------------------------------------------------------------
// Extraction
// ---------------------------------------------------------------------------

// extractImports scans file text for import-like specifiers using the fixed
// pattern table and returns the surviving specifiers, deduplicated, in
// first-seen order.
func extractImports(content string) []string {
	seen := make(map[string]bool)
	var specs []string

	for _, pat := range importPatterns {
		for _, m := range pat.re.FindAllStringSubmatch(content, -1) {
			if pat.group >= len(m) {
				continue
			}
			spec := cleanSpecifier(m[pat.group])
			if spec == "" || seen[spec] {
				continue
			}
			seen[spec] = true
			specs = append(specs, spec)
		}
	}
	return specs
}

// cleanSpecifier trims and quote-strips a raw capture and applies the
// discard rules. Returns "" when the capture should be dropped.
func cleanSpecifier(raw string) string {
	spec := strings.Trim(strings.TrimSpace(raw), `'"`)
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return ""
	}
	if strings.Contains(spec, "node_modules") {
		return ""
	}
	if strings.HasPrefix(spec, "http") {
		return ""
	}
	return spec
}
