package ignore_test

import (
	"strings"
	"testing"

	"codecat/internal/ignore"
	"codecat/internal/types"
)

// compileUserRules builds a matcher from user-tier patterns.
func compileUserRules(testingHandle *testing.T, patterns []string) *ignore.CompiledMatcher {
	testingHandle.Helper()
	rules := ignore.BuildRuleSet(ignore.RuleSetInput{UserPatterns: patterns})
	return ignore.Compile(rules)
}

// TestNegationPrecedence verifies that a later negated rule re-includes a path.
func TestNegationPrecedence(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"*.log", "!keep.log"})

	if decision := matcher.Test("keep.log", false); !decision.Included {
		testingHandle.Fatalf("expected keep.log to be included, got %+v", decision)
	}
	if decision := matcher.Test("other.log", false); decision.Included {
		testingHandle.Fatalf("expected other.log to be excluded, got %+v", decision)
	}
}

// TestDirectoryExclusionTerminality verifies that directory exclusion covers
// every descendant, even paths no rule mentions directly.
func TestDirectoryExclusionTerminality(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"build/"})

	if decision := matcher.Test("build/x/y.txt", false); decision.Included {
		testingHandle.Fatalf("expected build/x/y.txt to be excluded, got %+v", decision)
	}
	if decision := matcher.Test("build", true); decision.Included {
		testingHandle.Fatalf("expected build directory to be excluded, got %+v", decision)
	}
	if decision := matcher.Test("built.txt", false); !decision.Included {
		testingHandle.Fatalf("expected built.txt to be included, got %+v", decision)
	}
}

// TestNegationCannotReincludeUnderExcludedDirectory verifies that directory
// exclusion is terminal against later negations.
func TestNegationCannotReincludeUnderExcludedDirectory(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"build/", "!build/keep.txt"})

	if decision := matcher.Test("build/keep.txt", false); decision.Included {
		testingHandle.Fatalf("expected build/keep.txt to stay excluded, got %+v", decision)
	}
}

// TestDecisionDeterminism verifies repeated queries return identical decisions.
func TestDecisionDeterminism(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"*.tmp", "!save.tmp", "docs/"})
	paths := []string{"save.tmp", "junk.tmp", "docs/readme.md", "src/main.go"}

	for _, currentPath := range paths {
		firstDecision := matcher.Test(currentPath, false)
		for repetition := 0; repetition < 5; repetition++ {
			repeatedDecision := matcher.Test(currentPath, false)
			if repeatedDecision != firstDecision {
				testingHandle.Fatalf("decision for %s changed: %+v then %+v", currentPath, firstDecision, repeatedDecision)
			}
		}
	}
}

// TestLastMatchWins verifies that rule order decides conflicting patterns.
func TestLastMatchWins(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"!special.txt", "*.txt"})

	if decision := matcher.Test("special.txt", false); decision.Included {
		testingHandle.Fatalf("expected later *.txt exclusion to win, got %+v", decision)
	}
}

// TestRootAnchoring verifies that a leading slash binds a pattern to the root.
func TestRootAnchoring(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"/config.json"})

	if decision := matcher.Test("config.json", false); decision.Included {
		testingHandle.Fatalf("expected root config.json to be excluded, got %+v", decision)
	}
	if decision := matcher.Test("sub/config.json", false); !decision.Included {
		testingHandle.Fatalf("expected nested config.json to be included, got %+v", decision)
	}
}

// TestRecursiveWildcard verifies ** spans any number of segments, including zero.
func TestRecursiveWildcard(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"docs/**/draft.md"})

	for _, excludedPath := range []string{"docs/draft.md", "docs/a/draft.md", "docs/a/b/draft.md"} {
		if decision := matcher.Test(excludedPath, false); decision.Included {
			testingHandle.Fatalf("expected %s to be excluded, got %+v", excludedPath, decision)
		}
	}
	if decision := matcher.Test("docs/final.md", false); !decision.Included {
		testingHandle.Fatalf("expected docs/final.md to be included, got %+v", decision)
	}
}

// TestUnanchoredBaseNameMatch verifies single-segment patterns match at any depth.
func TestUnanchoredBaseNameMatch(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"*.pyc"})

	if decision := matcher.Test("deep/nested/module.pyc", false); decision.Included {
		testingHandle.Fatalf("expected nested module.pyc to be excluded, got %+v", decision)
	}
}

// TestDefaultInclude verifies that an unmatched path is included with the
// default reason and no rule index.
func TestDefaultInclude(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"*.log"})

	decision := matcher.Test("main.go", false)
	if !decision.Included || decision.Reason != types.ReasonDefaultInclude || decision.RuleIndex != -1 {
		testingHandle.Fatalf("unexpected default decision: %+v", decision)
	}
}

// TestMalformedPatternDropped verifies a bad character class is dropped with a
// warning and never aborts compilation.
func TestMalformedPatternDropped(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"[unbalanced", "*.log"})

	warnings := matcher.Warnings()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "[unbalanced") {
		testingHandle.Fatalf("expected one warning about the malformed pattern, got %v", warnings)
	}
	if len(matcher.Rules()) != 1 {
		testingHandle.Fatalf("expected one compiled rule, got %d", len(matcher.Rules()))
	}
	if decision := matcher.Test("trace.log", false); decision.Included {
		testingHandle.Fatalf("expected surviving rule to still apply, got %+v", decision)
	}
	if decision := matcher.Test("trace.log", false); decision.RuleIndex != 0 {
		testingHandle.Fatalf("expected rule index to refer to the compiled list, got %+v", decision)
	}
}

// TestDirectoryOnlyRuleIgnoresFiles verifies a trailing slash restricts the
// rule to directories.
func TestDirectoryOnlyRuleIgnoresFiles(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"cache/"})

	if decision := matcher.Test("cache", false); !decision.Included {
		testingHandle.Fatalf("expected plain file named cache to be included, got %+v", decision)
	}
	if decision := matcher.Test("cache", true); decision.Included {
		testingHandle.Fatalf("expected cache directory to be excluded, got %+v", decision)
	}
}

// TestMemoizationSeparatesFileAndDirectoryRoles verifies that asking about a
// name as a file first does not fix the answer for the directory of the same
// name, and that each role's decision stays stable on re-query.
func TestMemoizationSeparatesFileAndDirectoryRoles(testingHandle *testing.T) {
	matcher := compileUserRules(testingHandle, []string{"build/"})

	fileDecision := matcher.Test("build", false)
	if !fileDecision.Included {
		testingHandle.Fatalf("expected plain file named build to be included, got %+v", fileDecision)
	}
	directoryDecision := matcher.Test("build", true)
	if directoryDecision.Included {
		testingHandle.Fatalf("expected build directory to be excluded after file query, got %+v", directoryDecision)
	}

	if repeated := matcher.Test("build", false); repeated != fileDecision {
		testingHandle.Fatalf("file decision changed on re-query: %+v vs %+v", repeated, fileDecision)
	}
	if repeated := matcher.Test("build", true); repeated != directoryDecision {
		testingHandle.Fatalf("directory decision changed on re-query: %+v vs %+v", repeated, directoryDecision)
	}

	if nested := matcher.Test("build/out.txt", false); nested.Included {
		testingHandle.Fatalf("expected file under excluded build directory to stay excluded, got %+v", nested)
	}
}
