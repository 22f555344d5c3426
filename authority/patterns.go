package authority

import "regexp"

// patternSet groups the compiled regular expressions used to detect one
// prohibited output class. Keeping the catalog as data (rather than inline
// control flow) makes it easy to tune without touching Validate's logic.
type patternSet struct {
	class    string
	patterns []*regexp.Regexp
}

// catalog is the full set of heuristics the authority validator scans
// reasoning-tool output against. These are pattern-based and conservative:
// observability, not correctness gates.
var catalog = []patternSet{
	{
		class: "numeric_data",
		patterns: compileAll(
			`[$€£¥]\s?\d[\d,]*(\.\d+)?`,
			`\d+(\.\d+)?\s?%`,
			`(rose|fell|dropped|gained|increased|decreased|climbed|declined)\s+(by\s+)?\d`,
			`\d+(\.\d+)?\s?(points|basis points|bps|percent)\b`,
		),
	},
	{
		class: "factual_claims",
		patterns: compileAll(
			`\b(currently|now|today|as of)\b.{0,40}\b(is|are|was|were)\b`,
			`\b(is|are)\s+(currently\s+)?(trading|priced|valued|worth)\b`,
			`\baccording to\b`,
			`\b(source|sources)\s*:`,
		),
	},
	{
		class: "real_time_data",
		patterns: compileAll(
			`\bas of\b`,
			`\bcurrent\s+(price|weather|rate|value|temperature)\b`,
			`\b(latest|recent)\s+(data|news|report|update)\b`,
		),
	},
}

// synthesisReference matches phrases indicating a reasoning tool is
// legitimately synthesizing from prior steps rather than fabricating
// present-tense facts, suppressing the factual_claims check per §4.4.
var synthesisReference = regexp.MustCompile(`(?i)\b(step\s+\d+|from step|based on)\b`)

func compileAll(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile(`(?i)`+e))
	}
	return out
}
