// Package tree builds the hierarchical directory view of a repository
// snapshot with per-node size and file-count rollups.
package tree

import (
	"strings"

	"codecat/internal/ignore"
	"codecat/internal/types"
)

const (
	pathSeparator = "/"
	rootPath      = "."
)

// Builder assembles DirectoryNode trees from snapshot entries and a compiled
// ignore matcher.
type Builder struct {
	Matcher *ignore.CompiledMatcher
}

// Build inserts every included path's component chain into a tree keyed by
// segment name, synthesizing intermediate directories that never appeared as
// explicit entries. Children keep first-seen order from the raw entry list.
// Excluded paths never appear in the tree; a post-order rollup fills every
// node's size and file count.
func (builder *Builder) Build(rawEntries []types.RawEntry, rootName string) *types.DirectoryNode {
	rootNode := &types.DirectoryNode{Name: rootName, Path: rootPath, Type: types.NodeTypeDirectory}
	nodesByPath := map[string]*types.DirectoryNode{"": rootNode}

	for _, rawEntry := range rawEntries {
		relativePath := normalizeEntryPath(rawEntry.Path)
		if relativePath == "" {
			continue
		}
		pathDecision := builder.Matcher.Test(relativePath, rawEntry.IsDirectory)
		if !pathDecision.Included {
			continue
		}
		builder.insertChain(nodesByPath, relativePath, rawEntry)
	}

	rollup(rootNode)
	return rootNode
}

// insertChain walks the path's segments from the root, creating any missing
// directory nodes, and fills in the terminal node from the raw entry.
func (builder *Builder) insertChain(nodesByPath map[string]*types.DirectoryNode, relativePath string, rawEntry types.RawEntry) {
	segments := strings.Split(relativePath, pathSeparator)
	parentKey := ""
	for segmentIndex, segmentName := range segments {
		currentKey := segmentName
		if parentKey != "" {
			currentKey = parentKey + pathSeparator + segmentName
		}

		currentNode, exists := nodesByPath[currentKey]
		if !exists {
			currentNode = &types.DirectoryNode{
				Name: segmentName,
				Path: currentKey,
				Type: types.NodeTypeDirectory,
			}
			parentNode := nodesByPath[parentKey]
			parentNode.Children = append(parentNode.Children, currentNode)
			nodesByPath[currentKey] = currentNode
		}

		isTerminalSegment := segmentIndex == len(segments)-1
		if isTerminalSegment && !rawEntry.IsDirectory {
			currentNode.Type = types.NodeTypeFile
			currentNode.SizeBytes = rawEntry.Size
		}
		parentKey = currentKey
	}
}

// rollup computes each node's size and included-file count bottom-up. Files
// carry their own size; directories sum their subtrees. Directories with no
// included descendants keep a zero file count but stay in the tree.
func rollup(node *types.DirectoryNode) (sizeBytes int64, fileCount int) {
	if node.Type == types.NodeTypeFile {
		node.FileCount = 1
		return node.SizeBytes, 1
	}

	var totalSize int64
	totalFiles := 0
	for _, childNode := range node.Children {
		childSize, childFiles := rollup(childNode)
		totalSize += childSize
		totalFiles += childFiles
	}
	node.SizeBytes = totalSize
	node.FileCount = totalFiles
	return totalSize, totalFiles
}

// normalizeEntryPath converts a snapshot path to clean slash-separated
// relative form, empty for the root itself.
func normalizeEntryPath(entryPath string) string {
	normalized := ignore.NormalizePath(entryPath)
	if normalized == rootPath {
		return ""
	}
	return normalized
}

// OrderedFilePaths returns the tree's file paths in depth-first,
// first-seen child order. Concatenation emits files in exactly this order.
func OrderedFilePaths(rootNode *types.DirectoryNode) []string {
	var orderedPaths []string
	var walk func(node *types.DirectoryNode)
	walk = func(node *types.DirectoryNode) {
		if node.Type == types.NodeTypeFile {
			orderedPaths = append(orderedPaths, node.Path)
			return
		}
		for _, childNode := range node.Children {
			walk(childNode)
		}
	}
	walk(rootNode)
	return orderedPaths
}
