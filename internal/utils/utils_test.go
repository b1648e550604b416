package utils_test

import (
	"testing"

	"codecat/internal/utils"
)

// TestFormatFileSize verifies the human-readable size renderings.
func TestFormatFileSize(testingHandle *testing.T) {
	testCases := map[int64]string{
		-1:             "0b",
		0:              "0b",
		512:            "512b",
		1024:           "1kb",
		1536:           "1.5kb",
		2048:           "2kb",
		1048576:        "1mb",
		15 * 1048576:   "15mb",
		3 * 1073741824: "3gb",
	}
	for byteCount, expectedText := range testCases {
		if actualText := utils.FormatFileSize(byteCount); actualText != expectedText {
			testingHandle.Fatalf("formatting %d bytes: expected %q, got %q", byteCount, expectedText, actualText)
		}
	}
}

// TestDeduplicatePatterns verifies order-preserving deduplication.
func TestDeduplicatePatterns(testingHandle *testing.T) {
	deduplicated := utils.DeduplicatePatterns([]string{"*.log", "build/", "*.log", "dist/", "build/"})
	expectedPatterns := []string{"*.log", "build/", "dist/"}
	if len(deduplicated) != len(expectedPatterns) {
		testingHandle.Fatalf("expected %v, got %v", expectedPatterns, deduplicated)
	}
	for patternIndex, expectedPattern := range expectedPatterns {
		if deduplicated[patternIndex] != expectedPattern {
			testingHandle.Fatalf("expected %v, got %v", expectedPatterns, deduplicated)
		}
	}
}
