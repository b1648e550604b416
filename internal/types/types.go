// Package types defines every cross-package data structure used by the codecat engine.
package types

import "time"

const (
	NodeTypeFile      = "file"
	NodeTypeDirectory = "directory"

	FormatRaw  = "raw"
	FormatJSON = "json"

	// NoExtensionKey groups files without an extension in the type histogram.
	NoExtensionKey = "no extension"
)

// RawEntry is one path of the materialized repository snapshot. Directories
// carry nil content. Entries are immutable inputs supplied by the fetch
// collaborator and are never modified by the engine.
type RawEntry struct {
	Path        string
	Content     []byte
	Size        int64
	IsDirectory bool
}

// RuleTier identifies the origin of an ignore rule. Tiers are compiled in
// ascending order so later tiers override earlier ones.
type RuleTier int

const (
	TierBuiltinDefault RuleTier = iota
	TierRepoGitignore
	TierUserSupplied
)

// String returns the tier name used in statistics and warnings.
func (tier RuleTier) String() string {
	switch tier {
	case TierBuiltinDefault:
		return "builtin"
	case TierRepoGitignore:
		return "gitignore"
	case TierUserSupplied:
		return "user"
	default:
		return "unknown"
	}
}

// DecisionReason explains why a path was included or excluded.
type DecisionReason int

const (
	// ReasonDefaultInclude marks a path no rule matched.
	ReasonDefaultInclude DecisionReason = iota
	// ReasonMatchedRule marks a path whose fate was decided by an ignore rule.
	ReasonMatchedRule
	// ReasonBinary marks a file excluded from concatenation by binary detection.
	ReasonBinary
)

// PathDecision is the outcome of testing one path against a compiled rule set.
// RuleIndex is -1 unless Reason is ReasonMatchedRule.
type PathDecision struct {
	Path      string
	Included  bool
	Reason    DecisionReason
	RuleIndex int
}

// FileRecord captures per-file metrics for one snapshot file. Records are
// immutable once computed.
type FileRecord struct {
	Path         string
	Extension    string
	SizeBytes    int64
	TotalLines   int
	CodeLines    int
	CommentLines int
	BlankLines   int
	Included     bool
	Binary       bool
}

// DirectoryNode is one node of the repository tree. Children keep the order
// in which their paths first appeared in the snapshot.
type DirectoryNode struct {
	Name      string           `json:"name"`
	Path      string           `json:"path"`
	Type      string           `json:"type"`
	SizeBytes int64            `json:"size"`
	FileCount int              `json:"file_count"`
	Children  []*DirectoryNode `json:"children,omitempty"`
}

// LargestFile identifies the biggest processed file in the snapshot.
type LargestFile struct {
	Path      string `json:"path"`
	SizeBytes int64  `json:"size"`
}

// BusiestDirectory identifies the directory holding the most direct files.
type BusiestDirectory struct {
	Path  string `json:"path"`
	Count int    `json:"count"`
}

// FileStatistics aggregates file-level metrics across the snapshot.
type FileStatistics struct {
	TotalFiles     int            `json:"total_files"`
	ProcessedFiles int            `json:"processed_files"`
	SkippedFiles   int            `json:"skipped_files"`
	BinaryFiles    int            `json:"binary_files"`
	TotalSizeBytes int64          `json:"total_size"`
	TotalLines     int            `json:"total_lines"`
	CodeLines      int            `json:"code_lines"`
	CommentLines   int            `json:"comment_lines"`
	EmptyLines     int            `json:"empty_lines"`
	FileTypes      map[string]int `json:"file_types"`
	LargestFile    LargestFile    `json:"largest_file"`
}

// DirectoryStatistics aggregates directory-shape metrics plus the full tree.
type DirectoryStatistics struct {
	TotalDirectories int              `json:"total_dirs"`
	EmptyDirectories int              `json:"empty_dirs"`
	MaxDepth         int              `json:"max_depth"`
	BusiestDirectory BusiestDirectory `json:"dirs_with_most_files"`
	Tree             *DirectoryNode   `json:"tree"`
}

// FilterStatistics reports how effective the ignore rules were.
type FilterStatistics struct {
	BuiltinFiltered    int            `json:"builtin_filtered"`
	GitignoreFiltered  int            `json:"gitignore_filtered"`
	UserFiltered       int            `json:"custom_filtered"`
	PatternMatches     map[string]int `json:"pattern_matches"`
	EffectivenessRatio float64        `json:"effectiveness_ratio"`
}

// RepositoryStatistics is the complete statistics document for one committed
// computation. Field names are stable across calls for the same fingerprint.
type RepositoryStatistics struct {
	FileStats   FileStatistics      `json:"file_stats"`
	DirStats    DirectoryStatistics `json:"dir_stats"`
	FilterStats FilterStatistics    `json:"filter_stats"`
	Warnings    []string            `json:"warnings,omitempty"`
}

// Estimate is the free pre-check result used for pricing.
type Estimate struct {
	Fingerprint        string   `json:"fingerprint"`
	EstimatedFileCount int      `json:"estimated_file_count"`
	EstimatedSizeBytes int64    `json:"estimated_size_bytes"`
	Warnings           []string `json:"warnings,omitempty"`
}

// CacheEntry is the memoized outcome of one committed computation. Entries
// are never mutated after creation; an expired entry behaves as absent.
type CacheEntry struct {
	Fingerprint      string                `json:"fingerprint"`
	Statistics       *RepositoryStatistics `json:"statistics"`
	ArtifactLocation string                `json:"artifact_location"`
	BytesWritten     int64                 `json:"bytes_written"`
	Tokens           int                   `json:"tokens,omitempty"`
	TokenModel       string                `json:"token_model,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	ExpiresAt        time.Time             `json:"expires_at"`
	PaymentSessionID string                `json:"payment_session_id"`
}
