package utils

// ConfigFileName is the per-project configuration file name.
const ConfigFileName = "codecat.yaml"

// GlobalConfigDirectoryName is the per-user configuration directory under $HOME.
const GlobalConfigDirectoryName = ".codecat"

// DeduplicatePatterns removes duplicate patterns from a slice while preserving order.
// The first occurrence of each unique pattern is kept.
func DeduplicatePatterns(patterns []string) []string {
	encounteredPatterns := make(map[string]struct{})
	result := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, exists := encounteredPatterns[pattern]; !exists {
			encounteredPatterns[pattern] = struct{}{}
			result = append(result, pattern)
		}
	}
	return result
}
