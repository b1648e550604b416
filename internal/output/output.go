// Package output renders estimates and statistics documents in raw or JSON form.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"codecat/internal/types"
	"codecat/internal/utils"
)

const (
	indentPrefix = ""
	indentSpacer = "  "

	treeBranchConnector = "├── "
	treeLastConnector   = "└── "
	treeBranchPadding   = "│   "
	treeLastPadding     = "    "
)

// errorUnknownFormat reports an unsupported output format value.
const errorUnknownFormat = "unknown output format: %s"

// WriteEstimate renders an estimate result in the requested format.
func WriteEstimate(writer io.Writer, estimate *types.Estimate, format string) error {
	switch format {
	case types.FormatJSON:
		return writeJSON(writer, estimate)
	case types.FormatRaw, "":
		fmt.Fprintf(writer, "Fingerprint: %s\n", estimate.Fingerprint)
		fmt.Fprintf(writer, "Estimated files: %d\n", estimate.EstimatedFileCount)
		fmt.Fprintf(writer, "Estimated size: %s\n", utils.FormatFileSize(estimate.EstimatedSizeBytes))
		writeWarnings(writer, estimate.Warnings)
		return nil
	default:
		return fmt.Errorf(errorUnknownFormat, format)
	}
}

// WriteCommit renders a committed cache entry in the requested format.
func WriteCommit(writer io.Writer, entry *types.CacheEntry, format string) error {
	switch format {
	case types.FormatJSON:
		return writeJSON(writer, entry)
	case types.FormatRaw, "":
		writeCommitRaw(writer, entry)
		return nil
	default:
		return fmt.Errorf(errorUnknownFormat, format)
	}
}

func writeJSON(writer io.Writer, document any) error {
	encoded, jsonEncodeError := json.MarshalIndent(document, indentPrefix, indentSpacer)
	if jsonEncodeError != nil {
		return jsonEncodeError
	}
	fmt.Fprintln(writer, string(encoded))
	return nil
}

func writeCommitRaw(writer io.Writer, entry *types.CacheEntry) {
	statistics := entry.Statistics
	fileStats := statistics.FileStats

	fmt.Fprintf(writer, "Artifact: %s (%s)\n", entry.ArtifactLocation, utils.FormatFileSize(entry.BytesWritten))
	if entry.Tokens > 0 {
		fmt.Fprintf(writer, "Tokens: %d (%s)\n", entry.Tokens, entry.TokenModel)
	}

	fmt.Fprintf(writer, "Files: %d total, %d processed, %d binary, %d skipped\n",
		fileStats.TotalFiles, fileStats.ProcessedFiles, fileStats.BinaryFiles, fileStats.SkippedFiles)
	fmt.Fprintf(writer, "Size: %s\n", utils.FormatFileSize(fileStats.TotalSizeBytes))
	fmt.Fprintf(writer, "Lines: %d total, %d code, %d comment, %d blank\n",
		fileStats.TotalLines, fileStats.CodeLines, fileStats.CommentLines, fileStats.EmptyLines)
	if fileStats.LargestFile.Path != "" {
		fmt.Fprintf(writer, "Largest file: %s (%s)\n",
			fileStats.LargestFile.Path, utils.FormatFileSize(fileStats.LargestFile.SizeBytes))
	}
	if len(fileStats.FileTypes) > 0 {
		fmt.Fprintf(writer, "File types: %s\n", formatHistogram(fileStats.FileTypes))
	}

	directoryStats := statistics.DirStats
	fmt.Fprintf(writer, "Directories: %d total, %d empty, max depth %d\n",
		directoryStats.TotalDirectories, directoryStats.EmptyDirectories, directoryStats.MaxDepth)
	if directoryStats.BusiestDirectory.Count > 0 {
		fmt.Fprintf(writer, "Busiest directory: %s (%d files)\n",
			directoryStats.BusiestDirectory.Path, directoryStats.BusiestDirectory.Count)
	}

	filterStats := statistics.FilterStats
	fmt.Fprintf(writer, "Filtered: %d builtin, %d gitignore, %d user (effectiveness %.4f)\n",
		filterStats.BuiltinFiltered, filterStats.GitignoreFiltered, filterStats.UserFiltered,
		filterStats.EffectivenessRatio)
	if len(filterStats.PatternMatches) > 0 {
		fmt.Fprintf(writer, "Pattern matches: %s\n", formatHistogram(filterStats.PatternMatches))
	}

	if directoryStats.Tree != nil {
		fmt.Fprintln(writer)
		renderTreeNode(writer, directoryStats.Tree, "", true, true)
	}

	writeWarnings(writer, statistics.Warnings)
}

// formatHistogram renders a counting map as "key=count" pairs in key order.
func formatHistogram(histogram map[string]int) string {
	keys := make([]string, 0, len(histogram))
	for key := range histogram {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, key := range keys {
		pairs = append(pairs, fmt.Sprintf("%s=%d", key, histogram[key]))
	}
	return strings.Join(pairs, ", ")
}

func writeWarnings(writer io.Writer, warnings []string) {
	for _, warningMessage := range warnings {
		fmt.Fprintf(writer, "Warning: %s\n", warningMessage)
	}
}

func treeNodeLinePrefix(prefix string, isRoot bool, isLast bool) (string, string) {
	if isRoot {
		return "", ""
	}
	connector := treeBranchConnector
	childPrefix := prefix + treeBranchPadding
	if isLast {
		connector = treeLastConnector
		childPrefix = prefix + treeLastPadding
	}
	return prefix + connector, childPrefix
}

func renderTreeNode(writer io.Writer, node *types.DirectoryNode, prefix string, isRoot bool, isLast bool) {
	if node == nil {
		return
	}
	linePrefix, childPrefix := treeNodeLinePrefix(prefix, isRoot, isLast)
	if node.Type == types.NodeTypeFile {
		fmt.Fprintf(writer, "%s%s (%s)\n", linePrefix, node.Name, utils.FormatFileSize(node.SizeBytes))
		return
	}
	fmt.Fprintf(writer, "%s%s/ (%d files, %s)\n", linePrefix, node.Name, node.FileCount, utils.FormatFileSize(node.SizeBytes))
	for index, child := range node.Children {
		if child == nil {
			continue
		}
		renderTreeNode(writer, child, childPrefix, false, index == len(node.Children)-1)
	}
}

// WriteTreeRaw renders a directory tree to the provided writer.
func WriteTreeRaw(writer io.Writer, node *types.DirectoryNode) {
	if node == nil {
		return
	}
	renderTreeNode(writer, node, "", true, true)
}
