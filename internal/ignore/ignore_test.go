package ignore_test

import (
	"testing"

	"codecat/internal/ignore"
	"codecat/internal/types"
)

// TestParsePatternLine verifies flag extraction from pattern syntax.
func TestParsePatternLine(testingHandle *testing.T) {
	testCases := []struct {
		name           string
		line           string
		expectRule     bool
		negated        bool
		anchoredToRoot bool
		directoryOnly  bool
	}{
		{name: "plain glob", line: "*.log", expectRule: true},
		{name: "negation", line: "!keep.log", expectRule: true, negated: true},
		{name: "directory", line: "build/", expectRule: true, directoryOnly: true},
		{name: "root anchored", line: "/config.json", expectRule: true, anchoredToRoot: true},
		{name: "nested path", line: "src/generated/api.go", expectRule: true, anchoredToRoot: true},
		{name: "comment", line: "# note", expectRule: false},
		{name: "blank", line: "   ", expectRule: false},
		{name: "bare separator", line: "/", expectRule: false},
	}

	for _, testCase := range testCases {
		parsedRule, ok := ignore.ParsePatternLine(testCase.line, types.TierUserSupplied)
		if ok != testCase.expectRule {
			testingHandle.Fatalf("%s: expected rule presence %v, got %v", testCase.name, testCase.expectRule, ok)
		}
		if !ok {
			continue
		}
		if parsedRule.Negated != testCase.negated ||
			parsedRule.AnchoredToRoot != testCase.anchoredToRoot ||
			parsedRule.DirectoryOnly != testCase.directoryOnly {
			testingHandle.Fatalf("%s: unexpected rule flags %+v", testCase.name, parsedRule)
		}
	}
}

// TestBuildRuleSetTierOrder verifies builtin rules precede gitignore rules,
// which precede user rules.
func TestBuildRuleSetTierOrder(testingHandle *testing.T) {
	rules := ignore.BuildRuleSet(ignore.RuleSetInput{
		GitignoreBlob:  "*.log\n# comment\n\n!keep.log\n",
		UserPatterns:   []string{"*.tmp"},
		IncludeBuiltin: true,
	})

	builtinCount := len(ignore.BuiltinDefaultPatterns())
	if len(rules) != builtinCount+3 {
		testingHandle.Fatalf("expected %d rules, got %d", builtinCount+3, len(rules))
	}
	lastTier := types.TierBuiltinDefault
	for _, currentRule := range rules {
		if currentRule.Tier < lastTier {
			testingHandle.Fatalf("tier order regressed at pattern %q", currentRule.Pattern)
		}
		lastTier = currentRule.Tier
	}
	if rules[len(rules)-1].Pattern != "*.tmp" || rules[len(rules)-1].Tier != types.TierUserSupplied {
		testingHandle.Fatalf("expected user pattern last, got %+v", rules[len(rules)-1])
	}
}

// TestBuildRuleSetWithoutBuiltin verifies the builtin tier can be disabled.
func TestBuildRuleSetWithoutBuiltin(testingHandle *testing.T) {
	rules := ignore.BuildRuleSet(ignore.RuleSetInput{UserPatterns: []string{"*.tmp"}})
	if len(rules) != 1 {
		testingHandle.Fatalf("expected a single user rule, got %d", len(rules))
	}
}

// TestUserNegationOverridesGitignore verifies later tiers re-include paths
// excluded by earlier tiers.
func TestUserNegationOverridesGitignore(testingHandle *testing.T) {
	rules := ignore.BuildRuleSet(ignore.RuleSetInput{
		GitignoreBlob: "*.log\n",
		UserPatterns:  []string{"!important.log"},
	})
	matcher := ignore.Compile(rules)

	if decision := matcher.Test("important.log", false); !decision.Included {
		testingHandle.Fatalf("expected user negation to win, got %+v", decision)
	}
	if decision := matcher.Test("debug.log", false); decision.Included {
		testingHandle.Fatalf("expected gitignore exclusion to hold, got %+v", decision)
	}
}

// TestSortedPatternsStable verifies the fingerprint input is order-independent.
func TestSortedPatternsStable(testingHandle *testing.T) {
	firstRules := ignore.BuildRuleSet(ignore.RuleSetInput{UserPatterns: []string{"b", "a"}})
	secondRules := ignore.BuildRuleSet(ignore.RuleSetInput{UserPatterns: []string{"a", "b"}})

	firstPatterns := ignore.SortedPatterns(firstRules)
	secondPatterns := ignore.SortedPatterns(secondRules)
	if len(firstPatterns) != len(secondPatterns) {
		testingHandle.Fatalf("pattern count mismatch: %v vs %v", firstPatterns, secondPatterns)
	}
	for patternIndex := range firstPatterns {
		if firstPatterns[patternIndex] != secondPatterns[patternIndex] {
			testingHandle.Fatalf("sorted patterns differ: %v vs %v", firstPatterns, secondPatterns)
		}
	}
}
