package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"codecat/internal/output"
	"codecat/internal/types"
)

func commitEntryFixture() *types.CacheEntry {
	tree := &types.DirectoryNode{
		Name: "repo",
		Path: ".",
		Type: types.NodeTypeDirectory,
		Children: []*types.DirectoryNode{
			{
				Name: "src", Path: "src", Type: types.NodeTypeDirectory, FileCount: 1, SizeBytes: 20,
				Children: []*types.DirectoryNode{
					{Name: "main.go", Path: "src/main.go", Type: types.NodeTypeFile, FileCount: 1, SizeBytes: 20},
				},
			},
			{Name: "README.md", Path: "README.md", Type: types.NodeTypeFile, FileCount: 1, SizeBytes: 10},
		},
		FileCount: 2,
		SizeBytes: 30,
	}

	return &types.CacheEntry{
		Fingerprint:      "fp",
		ArtifactLocation: "out/artifact.txt",
		BytesWritten:     128,
		Tokens:           42,
		TokenModel:       "gpt-4o",
		Statistics: &types.RepositoryStatistics{
			FileStats: types.FileStatistics{
				TotalFiles:     3,
				ProcessedFiles: 2,
				SkippedFiles:   1,
				TotalLines:     12,
				CodeLines:      8,
				CommentLines:   2,
				EmptyLines:     2,
				TotalSizeBytes: 30,
				FileTypes:      map[string]int{"go": 1, "md": 1, "log": 1},
				LargestFile:    types.LargestFile{Path: "src/main.go", SizeBytes: 20},
			},
			DirStats: types.DirectoryStatistics{
				TotalDirectories: 2,
				MaxDepth:         1,
				EmptyDirectories: 0,
				BusiestDirectory: types.BusiestDirectory{Path: "src", Count: 1},
				Tree:             tree,
			},
			FilterStats: types.FilterStatistics{
				UserFiltered:       1,
				EffectivenessRatio: 0.25,
				PatternMatches:     map[string]int{"*.log": 1},
			},
		},
	}
}

// TestWriteEstimateRaw verifies the raw estimate rendering.
func TestWriteEstimateRaw(testingHandle *testing.T) {
	estimate := &types.Estimate{
		Fingerprint:        "fp",
		EstimatedFileCount: 3,
		EstimatedSizeBytes: 2048,
		Warnings:           []string{"dropping malformed ignore pattern \"[\""},
	}

	var renderBuffer bytes.Buffer
	if renderError := output.WriteEstimate(&renderBuffer, estimate, types.FormatRaw); renderError != nil {
		testingHandle.Fatalf("unexpected render error: %v", renderError)
	}

	rendered := renderBuffer.String()
	for _, expectedLine := range []string{"Fingerprint: fp", "Estimated files: 3", "Estimated size: 2kb", "Warning: "} {
		if !strings.Contains(rendered, expectedLine) {
			testingHandle.Fatalf("missing %q in rendered estimate:\n%s", expectedLine, rendered)
		}
	}
}

// TestWriteEstimateJSON verifies the JSON estimate rendering decodes back.
func TestWriteEstimateJSON(testingHandle *testing.T) {
	estimate := &types.Estimate{Fingerprint: "fp", EstimatedFileCount: 3, EstimatedSizeBytes: 2048}

	var renderBuffer bytes.Buffer
	if renderError := output.WriteEstimate(&renderBuffer, estimate, types.FormatJSON); renderError != nil {
		testingHandle.Fatalf("unexpected render error: %v", renderError)
	}

	var decoded types.Estimate
	if decodeError := json.Unmarshal(renderBuffer.Bytes(), &decoded); decodeError != nil {
		testingHandle.Fatalf("decoding rendered estimate: %v", decodeError)
	}
	if decoded.Fingerprint != "fp" || decoded.EstimatedFileCount != 3 || decoded.EstimatedSizeBytes != 2048 {
		testingHandle.Fatalf("unexpected decoded estimate: %+v", decoded)
	}
}

// TestWriteCommitRaw verifies the raw commit summary lines and tree output.
func TestWriteCommitRaw(testingHandle *testing.T) {
	var renderBuffer bytes.Buffer
	if renderError := output.WriteCommit(&renderBuffer, commitEntryFixture(), types.FormatRaw); renderError != nil {
		testingHandle.Fatalf("unexpected render error: %v", renderError)
	}

	rendered := renderBuffer.String()
	expectedLines := []string{
		"Artifact: out/artifact.txt (128b)",
		"Tokens: 42 (gpt-4o)",
		"Files: 3 total, 2 processed, 0 binary, 1 skipped",
		"Lines: 12 total, 8 code, 2 comment, 2 blank",
		"Largest file: src/main.go (20b)",
		"File types: go=1, log=1, md=1",
		"Directories: 2 total, 0 empty, max depth 1",
		"Busiest directory: src (1 files)",
		"Filtered: 0 builtin, 0 gitignore, 1 user (effectiveness 0.2500)",
		"Pattern matches: *.log=1",
		"repo/ (2 files, 30b)",
		"├── src/ (1 files, 20b)",
		"│   └── main.go (20b)",
		"└── README.md (10b)",
	}
	for _, expectedLine := range expectedLines {
		if !strings.Contains(rendered, expectedLine) {
			testingHandle.Fatalf("missing %q in rendered commit:\n%s", expectedLine, rendered)
		}
	}
}

// TestWriteCommitJSON verifies the JSON commit rendering decodes back.
func TestWriteCommitJSON(testingHandle *testing.T) {
	var renderBuffer bytes.Buffer
	if renderError := output.WriteCommit(&renderBuffer, commitEntryFixture(), types.FormatJSON); renderError != nil {
		testingHandle.Fatalf("unexpected render error: %v", renderError)
	}

	var decoded types.CacheEntry
	if decodeError := json.Unmarshal(renderBuffer.Bytes(), &decoded); decodeError != nil {
		testingHandle.Fatalf("decoding rendered commit: %v", decodeError)
	}
	if decoded.ArtifactLocation != "out/artifact.txt" || decoded.Tokens != 42 {
		testingHandle.Fatalf("unexpected decoded entry: %+v", decoded)
	}
	if decoded.Statistics == nil || decoded.Statistics.FileStats.TotalFiles != 3 {
		testingHandle.Fatalf("unexpected decoded statistics: %+v", decoded.Statistics)
	}
}

// TestWriteUnknownFormat verifies unsupported formats are rejected.
func TestWriteUnknownFormat(testingHandle *testing.T) {
	var renderBuffer bytes.Buffer
	if renderError := output.WriteEstimate(&renderBuffer, &types.Estimate{}, "yaml"); renderError == nil {
		testingHandle.Fatalf("expected error for unknown estimate format")
	}
	if renderError := output.WriteCommit(&renderBuffer, commitEntryFixture(), "yaml"); renderError == nil {
		testingHandle.Fatalf("expected error for unknown commit format")
	}
}

// TestWriteTreeRawNilNode verifies a nil tree renders nothing.
func TestWriteTreeRawNilNode(testingHandle *testing.T) {
	var renderBuffer bytes.Buffer
	output.WriteTreeRaw(&renderBuffer, nil)
	if renderBuffer.Len() != 0 {
		testingHandle.Fatalf("expected empty output for nil tree, got %q", renderBuffer.String())
	}
}
