package ignore

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"codecat/internal/types"
)

const (
	// warningMalformedPatternFormat records a dropped pattern in compile warnings.
	warningMalformedPatternFormat = "dropping malformed ignore pattern %q: %v"

	// matchProbe exists only to force filepath.Match to validate a segment.
	matchProbe = "x"

	unmatchedRuleIndex = -1
)

// decisionKey identifies one memoized decision. The role is part of the key
// because directory-only rules give the same name different answers as a
// file and as a directory.
type decisionKey struct {
	path        string
	isDirectory bool
}

// CompiledMatcher tests snapshot paths against a compiled rule set. Decisions
// are memoized per path and role for the lifetime of one computation, so a
// query's decision never changes during a run even when re-asked. The matcher
// is safe for concurrent use.
type CompiledMatcher struct {
	rules    []Rule
	warnings []string

	decisionMutex sync.Mutex
	decisions     map[decisionKey]types.PathDecision
}

// Compile validates every rule segment and drops malformed patterns with a
// recorded warning; compilation itself never fails. Rule indices reported in
// decisions refer to the compiled, post-drop rule list.
func Compile(rules []Rule) *CompiledMatcher {
	compiledMatcher := &CompiledMatcher{
		decisions: make(map[decisionKey]types.PathDecision),
	}
	for _, candidateRule := range rules {
		if validationError := validateSegments(candidateRule.segments); validationError != nil {
			compiledMatcher.warnings = append(compiledMatcher.warnings,
				fmt.Sprintf(warningMalformedPatternFormat, candidateRule.Pattern, validationError))
			continue
		}
		compiledMatcher.rules = append(compiledMatcher.rules, candidateRule)
	}
	return compiledMatcher
}

// validateSegments reports the first malformed glob segment, if any.
func validateSegments(segments []string) error {
	for _, segment := range segments {
		if segment == recursiveWildcard {
			continue
		}
		if _, matchError := filepath.Match(segment, matchProbe); matchError != nil {
			return matchError
		}
	}
	return nil
}

// Warnings returns the warnings recorded during compilation.
func (matcher *CompiledMatcher) Warnings() []string {
	return matcher.warnings
}

// Rules returns the compiled rule list in evaluation order.
func (matcher *CompiledMatcher) Rules() []Rule {
	return matcher.rules
}

// Test decides whether the path, given relative to the snapshot root in
// slash form, is included. The last matching rule wins, except that a
// negated rule cannot re-include a path beneath an excluded directory:
// directory exclusion is terminal for the whole subtree.
func (matcher *CompiledMatcher) Test(relativePath string, isDirectory bool) types.PathDecision {
	normalizedPath := NormalizePath(relativePath)
	if normalizedPath == "" || normalizedPath == "." {
		return types.PathDecision{Path: normalizedPath, Included: true, Reason: types.ReasonDefaultInclude, RuleIndex: unmatchedRuleIndex}
	}

	matcher.decisionMutex.Lock()
	defer matcher.decisionMutex.Unlock()
	return matcher.testLocked(normalizedPath, isDirectory)
}

func (matcher *CompiledMatcher) testLocked(normalizedPath string, isDirectory bool) types.PathDecision {
	memoKey := decisionKey{path: normalizedPath, isDirectory: isDirectory}
	if cachedDecision, found := matcher.decisions[memoKey]; found {
		return cachedDecision
	}

	decision := matcher.evaluate(normalizedPath, isDirectory)
	matcher.decisions[memoKey] = decision
	return decision
}

func (matcher *CompiledMatcher) evaluate(normalizedPath string, isDirectory bool) types.PathDecision {
	if parentPath := parentOf(normalizedPath); parentPath != "" {
		parentDecision := matcher.testLocked(parentPath, true)
		if !parentDecision.Included {
			return types.PathDecision{
				Path:      normalizedPath,
				Included:  false,
				Reason:    types.ReasonMatchedRule,
				RuleIndex: parentDecision.RuleIndex,
			}
		}
	}

	pathSegments := strings.Split(normalizedPath, patternSeparator)
	lastMatchIndex := unmatchedRuleIndex
	for ruleIndex, candidateRule := range matcher.rules {
		if ruleMatches(candidateRule, pathSegments, isDirectory) {
			lastMatchIndex = ruleIndex
		}
	}

	if lastMatchIndex == unmatchedRuleIndex {
		return types.PathDecision{Path: normalizedPath, Included: true, Reason: types.ReasonDefaultInclude, RuleIndex: unmatchedRuleIndex}
	}
	winningRule := matcher.rules[lastMatchIndex]
	return types.PathDecision{
		Path:      normalizedPath,
		Included:  winningRule.Negated,
		Reason:    types.ReasonMatchedRule,
		RuleIndex: lastMatchIndex,
	}
}

// ruleMatches reports whether a single rule matches the path. Unanchored
// single-segment patterns match the path's base name at any depth; anchored
// patterns match the full segment chain from the root, with ** spanning any
// number of segments.
func ruleMatches(candidateRule Rule, pathSegments []string, isDirectory bool) bool {
	if candidateRule.DirectoryOnly && !isDirectory {
		return false
	}

	if !candidateRule.AnchoredToRoot && len(candidateRule.segments) == 1 {
		baseName := pathSegments[len(pathSegments)-1]
		isMatched, matchError := filepath.Match(candidateRule.segments[0], baseName)
		return matchError == nil && isMatched
	}

	return matchSegments(candidateRule.segments, pathSegments)
}

// matchSegments matches pattern segments against path segments. A "**"
// pattern segment matches any number of path segments, including zero.
func matchSegments(patternSegments, pathSegments []string) bool {
	if len(patternSegments) == 0 {
		return len(pathSegments) == 0
	}
	if patternSegments[0] == recursiveWildcard {
		if matchSegments(patternSegments[1:], pathSegments) {
			return true
		}
		if len(pathSegments) > 0 {
			return matchSegments(patternSegments, pathSegments[1:])
		}
		return false
	}
	if len(pathSegments) == 0 {
		return false
	}
	isMatched, matchError := filepath.Match(patternSegments[0], pathSegments[0])
	if matchError != nil || !isMatched {
		return false
	}
	return matchSegments(patternSegments[1:], pathSegments[1:])
}

// NormalizePath converts a snapshot path to clean slash-separated relative form.
func NormalizePath(relativePath string) string {
	normalized := strings.ReplaceAll(relativePath, "\\", patternSeparator)
	normalized = strings.TrimPrefix(normalized, "./")
	normalized = strings.Trim(normalized, patternSeparator)
	return normalized
}

// parentOf returns the parent path of a slash-form relative path, or "" when
// the path sits directly under the root.
func parentOf(normalizedPath string) string {
	separatorIndex := strings.LastIndex(normalizedPath, patternSeparator)
	if separatorIndex <= 0 {
		return ""
	}
	return normalizedPath[:separatorIndex]
}
