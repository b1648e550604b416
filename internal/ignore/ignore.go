// Package ignore assembles layered gitignore-style rule sets and compiles
// them into fast path-test predicates.
package ignore

import (
	"sort"
	"strings"

	"codecat/internal/types"
)

const (
	commentPrefix     = "#"
	negationPrefix    = "!"
	rootAnchorPrefix  = "/"
	directorySuffix   = "/"
	patternSeparator  = "/"
	recursiveWildcard = "**"
)

// builtinDefaultPatterns are applied as the lowest-precedence tier. They
// cover version control metadata, dependency and build output directories,
// editor droppings, and large media archives.
var builtinDefaultPatterns = []string{
	".git/",
	".svn/",
	".hg/",
	"node_modules/",
	"venv/",
	"__pycache__/",
	"*.pyc",
	"*.pyo",
	"*.pyd",
	"build/",
	"dist/",
	"*.egg-info/",
	".idea/",
	".vscode/",
	"*.swp",
	"*.swo",
	".DS_Store",
	"coverage/",
	".coverage",
	".pytest_cache/",
	".tox/",
	"*.zip",
	"*.tar.gz",
	"*.rar",
	"*.mp4",
	"*.mp3",
	"*.avi",
	"*.mov",
	"*.iso",
}

// Rule is one parsed ignore pattern. Rules are ordered; the compiled rule
// list is never reordered after compilation.
type Rule struct {
	Pattern        string
	Tier           types.RuleTier
	Negated        bool
	AnchoredToRoot bool
	DirectoryOnly  bool

	segments []string
}

// RuleSetInput carries the three pattern tiers supplied to one computation.
type RuleSetInput struct {
	// GitignoreBlob is the raw text of the repository's .gitignore, or empty.
	GitignoreBlob string
	// UserPatterns are additional ignore patterns supplied by the caller.
	UserPatterns []string
	// IncludeBuiltin enables the builtin default tier.
	IncludeBuiltin bool
}

// BuiltinDefaultPatterns returns a copy of the builtin default pattern tier.
func BuiltinDefaultPatterns() []string {
	patterns := make([]string, len(builtinDefaultPatterns))
	copy(patterns, builtinDefaultPatterns)
	return patterns
}

// BuildRuleSet concatenates the three tiers in fixed precedence order:
// builtin defaults first, then the repository .gitignore, then user-supplied
// patterns last. Later rules win on conflict, so user patterns can re-include
// paths excluded by earlier tiers via negation.
func BuildRuleSet(input RuleSetInput) []Rule {
	var rules []Rule
	if input.IncludeBuiltin {
		for _, patternText := range builtinDefaultPatterns {
			if parsedRule, ok := ParsePatternLine(patternText, types.TierBuiltinDefault); ok {
				rules = append(rules, parsedRule)
			}
		}
	}
	for _, patternLine := range strings.Split(input.GitignoreBlob, "\n") {
		if parsedRule, ok := ParsePatternLine(patternLine, types.TierRepoGitignore); ok {
			rules = append(rules, parsedRule)
		}
	}
	for _, patternText := range input.UserPatterns {
		if parsedRule, ok := ParsePatternLine(patternText, types.TierUserSupplied); ok {
			rules = append(rules, parsedRule)
		}
	}
	return rules
}

// ParsePatternLine parses a single ignore-file line into a Rule. Blank lines
// and comments yield ok=false.
func ParsePatternLine(line string, tier types.RuleTier) (Rule, bool) {
	trimmedLine := strings.TrimSpace(line)
	if trimmedLine == "" || strings.HasPrefix(trimmedLine, commentPrefix) {
		return Rule{}, false
	}

	parsedRule := Rule{Pattern: trimmedLine, Tier: tier}

	body := trimmedLine
	if strings.HasPrefix(body, negationPrefix) {
		parsedRule.Negated = true
		body = strings.TrimPrefix(body, negationPrefix)
	}
	if strings.HasSuffix(body, directorySuffix) {
		parsedRule.DirectoryOnly = true
		body = strings.TrimSuffix(body, directorySuffix)
	}
	if strings.HasPrefix(body, rootAnchorPrefix) {
		parsedRule.AnchoredToRoot = true
		body = strings.TrimPrefix(body, rootAnchorPrefix)
	}
	// A separator anywhere in the body anchors the pattern to the root,
	// matching conventional ignore-file semantics.
	if strings.Contains(body, patternSeparator) {
		parsedRule.AnchoredToRoot = true
	}
	if body == "" {
		return Rule{}, false
	}

	parsedRule.segments = strings.Split(body, patternSeparator)
	return parsedRule, true
}

// SortedPatterns returns the textual patterns of a rule set in sorted order,
// suitable for fingerprint hashing.
func SortedPatterns(rules []Rule) []string {
	patterns := make([]string, 0, len(rules))
	for _, currentRule := range rules {
		patterns = append(patterns, currentRule.Tier.String()+":"+currentRule.Pattern)
	}
	sort.Strings(patterns)
	return patterns
}
