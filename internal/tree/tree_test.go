package tree_test

import (
	"testing"

	"codecat/internal/ignore"
	"codecat/internal/tree"
	"codecat/internal/types"
)

func buildTree(testingHandle *testing.T, userPatterns []string, rawEntries []types.RawEntry) *types.DirectoryNode {
	testingHandle.Helper()
	rules := ignore.BuildRuleSet(ignore.RuleSetInput{UserPatterns: userPatterns})
	builder := &tree.Builder{Matcher: ignore.Compile(rules)}
	return builder.Build(rawEntries, "repo")
}

// TestBuildRollupInvariant verifies every directory node carries the sum of
// its subtree's file sizes and counts.
func TestBuildRollupInvariant(testingHandle *testing.T) {
	rootNode := buildTree(testingHandle, nil, []types.RawEntry{
		{Path: "src", IsDirectory: true},
		{Path: "src/main.go", Size: 100},
		{Path: "src/util.go", Size: 40},
		{Path: "README.md", Size: 10},
	})

	if rootNode.SizeBytes != 150 || rootNode.FileCount != 3 {
		testingHandle.Fatalf("root rollup: expected size 150 count 3, got size %d count %d", rootNode.SizeBytes, rootNode.FileCount)
	}

	sourceNode := findChild(rootNode, "src")
	if sourceNode == nil {
		testingHandle.Fatalf("expected src node in tree")
	}
	if sourceNode.SizeBytes != 140 || sourceNode.FileCount != 2 {
		testingHandle.Fatalf("src rollup: expected size 140 count 2, got size %d count %d", sourceNode.SizeBytes, sourceNode.FileCount)
	}
}

// TestBuildSynthesizesIntermediateDirectories verifies path components without
// explicit directory entries still become tree nodes.
func TestBuildSynthesizesIntermediateDirectories(testingHandle *testing.T) {
	rootNode := buildTree(testingHandle, nil, []types.RawEntry{
		{Path: "a/b/c.txt", Size: 5},
	})

	levelOne := findChild(rootNode, "a")
	if levelOne == nil || levelOne.Type != types.NodeTypeDirectory {
		testingHandle.Fatalf("expected synthesized directory a")
	}
	levelTwo := findChild(levelOne, "b")
	if levelTwo == nil || levelTwo.Type != types.NodeTypeDirectory {
		testingHandle.Fatalf("expected synthesized directory a/b")
	}
	leafNode := findChild(levelTwo, "c.txt")
	if leafNode == nil || leafNode.Type != types.NodeTypeFile || leafNode.SizeBytes != 5 {
		testingHandle.Fatalf("expected file node a/b/c.txt with size 5")
	}
}

// TestBuildExcludedPathsAbsent verifies excluded files and directories never
// surface in the tree.
func TestBuildExcludedPathsAbsent(testingHandle *testing.T) {
	rootNode := buildTree(testingHandle, []string{"vendor/", "*.log"}, []types.RawEntry{
		{Path: "vendor", IsDirectory: true},
		{Path: "vendor/dep.go", Size: 50},
		{Path: "app.go", Size: 20},
		{Path: "trace.log", Size: 99},
	})

	if findChild(rootNode, "vendor") != nil {
		testingHandle.Fatalf("expected vendor directory to be absent")
	}
	if findChild(rootNode, "trace.log") != nil {
		testingHandle.Fatalf("expected trace.log to be absent")
	}
	if rootNode.FileCount != 1 || rootNode.SizeBytes != 20 {
		testingHandle.Fatalf("root rollup: expected size 20 count 1, got size %d count %d", rootNode.SizeBytes, rootNode.FileCount)
	}
}

// TestBuildChildOrderFirstSeen verifies children keep raw entry order rather
// than lexical order.
func TestBuildChildOrderFirstSeen(testingHandle *testing.T) {
	rootNode := buildTree(testingHandle, nil, []types.RawEntry{
		{Path: "zeta.txt", Size: 1},
		{Path: "alpha.txt", Size: 1},
		{Path: "mid/inner.txt", Size: 1},
	})

	if len(rootNode.Children) != 3 {
		testingHandle.Fatalf("expected 3 root children, got %d", len(rootNode.Children))
	}
	if rootNode.Children[0].Name != "zeta.txt" || rootNode.Children[1].Name != "alpha.txt" || rootNode.Children[2].Name != "mid" {
		testingHandle.Fatalf("unexpected child order: %s, %s, %s",
			rootNode.Children[0].Name, rootNode.Children[1].Name, rootNode.Children[2].Name)
	}
}

// TestOrderedFilePaths verifies the depth-first file traversal used for
// concatenation.
func TestOrderedFilePaths(testingHandle *testing.T) {
	rootNode := buildTree(testingHandle, nil, []types.RawEntry{
		{Path: "b.txt", Size: 1},
		{Path: "dir/nested.txt", Size: 1},
		{Path: "a.txt", Size: 1},
	})

	orderedPaths := tree.OrderedFilePaths(rootNode)
	expectedPaths := []string{"b.txt", "dir/nested.txt", "a.txt"}
	if len(orderedPaths) != len(expectedPaths) {
		testingHandle.Fatalf("expected %d paths, got %d", len(expectedPaths), len(orderedPaths))
	}
	for pathIndex, expectedPath := range expectedPaths {
		if orderedPaths[pathIndex] != expectedPath {
			testingHandle.Fatalf("path %d: expected %s, got %s", pathIndex, expectedPath, orderedPaths[pathIndex])
		}
	}
}

// TestBuildEmptySnapshot verifies an empty entry list yields a bare root.
func TestBuildEmptySnapshot(testingHandle *testing.T) {
	rootNode := buildTree(testingHandle, nil, nil)
	if rootNode.FileCount != 0 || rootNode.SizeBytes != 0 || len(rootNode.Children) != 0 {
		testingHandle.Fatalf("expected empty root, got count %d size %d children %d",
			rootNode.FileCount, rootNode.SizeBytes, len(rootNode.Children))
	}
}

func findChild(parentNode *types.DirectoryNode, childName string) *types.DirectoryNode {
	for _, childNode := range parentNode.Children {
		if childNode.Name == childName {
			return childNode
		}
	}
	return nil
}
