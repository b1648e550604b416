// Package stats streams snapshot file contents through the classification
// heuristics and produces file-level and repository-level statistics.
package stats

import (
	"context"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"codecat/internal/classify"
	"codecat/internal/ignore"
	"codecat/internal/tree"
	"codecat/internal/types"
)

// effectivenessPrecision is the rounding factor for the filter effectiveness
// ratio (four decimal places).
const effectivenessPrecision = 10000

// Aggregator computes RepositoryStatistics for one snapshot. File-level
// read/classify steps run on a bounded worker pool; the fold into repository
// totals is single-threaded.
type Aggregator struct {
	Matcher        *ignore.CompiledMatcher
	RepositoryName string
	// Workers bounds the classification pool; zero means available parallelism.
	Workers int

	runCounter atomic.Int64
}

// Runs reports how many full aggregation passes this aggregator has executed.
func (aggregator *Aggregator) Runs() int64 {
	return aggregator.runCounter.Load()
}

// Aggregate classifies every snapshot file and folds the records into
// repository statistics. An empty snapshot yields all-zero statistics, not
// an error. The context cancels in-flight classification.
func (aggregator *Aggregator) Aggregate(ctx context.Context, rawEntries []types.RawEntry) (*types.RepositoryStatistics, error) {
	aggregator.runCounter.Add(1)

	treeBuilder := &tree.Builder{Matcher: aggregator.Matcher}
	rootNode := treeBuilder.Build(rawEntries, aggregator.RepositoryName)

	fileEntries := make([]types.RawEntry, 0, len(rawEntries))
	for _, rawEntry := range rawEntries {
		if !rawEntry.IsDirectory {
			fileEntries = append(fileEntries, rawEntry)
		}
	}

	fileRecords, classifyError := aggregator.classifyFiles(ctx, fileEntries)
	if classifyError != nil {
		return nil, classifyError
	}

	statistics := &types.RepositoryStatistics{
		FileStats: types.FileStatistics{
			FileTypes: make(map[string]int),
		},
		FilterStats: types.FilterStatistics{
			PatternMatches: make(map[string]int),
		},
		Warnings: aggregator.Matcher.Warnings(),
	}

	var matchedSizeBytes int64
	var rawSizeBytes int64
	compiledRules := aggregator.Matcher.Rules()

	for recordIndex, fileRecord := range fileRecords {
		rawSizeBytes += fileEntries[recordIndex].Size
		statistics.FileStats.TotalFiles++
		statistics.FileStats.FileTypes[fileRecord.Extension]++

		if !fileRecord.Included {
			statistics.FileStats.SkippedFiles++
			matchedSizeBytes += fileRecord.SizeBytes
			decision := aggregator.Matcher.Test(fileRecord.Path, false)
			if decision.RuleIndex >= 0 && decision.RuleIndex < len(compiledRules) {
				matchedRule := compiledRules[decision.RuleIndex]
				statistics.FilterStats.PatternMatches[matchedRule.Pattern]++
				switch matchedRule.Tier {
				case types.TierBuiltinDefault:
					statistics.FilterStats.BuiltinFiltered++
				case types.TierRepoGitignore:
					statistics.FilterStats.GitignoreFiltered++
				case types.TierUserSupplied:
					statistics.FilterStats.UserFiltered++
				}
			}
			continue
		}

		statistics.FileStats.TotalSizeBytes += fileRecord.SizeBytes

		if fileRecord.Binary {
			statistics.FileStats.BinaryFiles++
			continue
		}

		statistics.FileStats.ProcessedFiles++
		statistics.FileStats.TotalLines += fileRecord.TotalLines
		statistics.FileStats.CodeLines += fileRecord.CodeLines
		statistics.FileStats.CommentLines += fileRecord.CommentLines
		statistics.FileStats.EmptyLines += fileRecord.BlankLines
		if fileRecord.SizeBytes > statistics.FileStats.LargestFile.SizeBytes {
			statistics.FileStats.LargestFile = types.LargestFile{Path: fileRecord.Path, SizeBytes: fileRecord.SizeBytes}
		}
	}

	statistics.FilterStats.EffectivenessRatio = roundRatio(matchedSizeBytes, rawSizeBytes)
	statistics.DirStats = directoryStatistics(rootNode)
	return statistics, nil
}

// classifyFiles produces one FileRecord per file entry, preserving entry
// order. Classification parallelizes over a bounded pool.
func (aggregator *Aggregator) classifyFiles(ctx context.Context, fileEntries []types.RawEntry) ([]types.FileRecord, error) {
	fileRecords := make([]types.FileRecord, len(fileEntries))

	workerCount := aggregator.Workers
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	poolSlots := make(chan struct{}, workerCount)

	group, groupCtx := errgroup.WithContext(ctx)
	for entryIndex := range fileEntries {
		currentIndex := entryIndex
		group.Go(func() error {
			select {
			case poolSlots <- struct{}{}:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
			defer func() { <-poolSlots }()

			fileRecords[currentIndex] = aggregator.classifyFile(fileEntries[currentIndex])
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return fileRecords, nil
}

// classifyFile computes the record for one file: ignore decision first, then
// binary detection, then line classification. Binary files keep zero line
// counts.
func (aggregator *Aggregator) classifyFile(rawEntry types.RawEntry) types.FileRecord {
	fileRecord := types.FileRecord{
		Path:      rawEntry.Path,
		Extension: classify.ExtensionOf(rawEntry.Path),
		SizeBytes: rawEntry.Size,
	}

	pathDecision := aggregator.Matcher.Test(rawEntry.Path, false)
	if !pathDecision.Included {
		return fileRecord
	}
	fileRecord.Included = true

	if classify.IsBinary(rawEntry.Content) {
		fileRecord.Binary = true
		return fileRecord
	}

	fileRecord.TotalLines, fileRecord.CodeLines, fileRecord.CommentLines, fileRecord.BlankLines =
		classify.ClassifyContent(fileRecord.Extension, rawEntry.Content)
	return fileRecord
}

// directoryStatistics walks the built tree collecting directory-shape
// metrics. Empty directories are those with no direct file children.
func directoryStatistics(rootNode *types.DirectoryNode) types.DirectoryStatistics {
	directoryStats := types.DirectoryStatistics{Tree: rootNode}

	var walk func(node *types.DirectoryNode, depth int)
	walk = func(node *types.DirectoryNode, depth int) {
		if node.Type != types.NodeTypeDirectory {
			return
		}
		directoryStats.TotalDirectories++
		if depth > directoryStats.MaxDepth {
			directoryStats.MaxDepth = depth
		}

		directFileCount := 0
		for _, childNode := range node.Children {
			if childNode.Type == types.NodeTypeFile {
				directFileCount++
			}
		}
		if directFileCount == 0 {
			directoryStats.EmptyDirectories++
		}
		if directFileCount > directoryStats.BusiestDirectory.Count {
			directoryStats.BusiestDirectory = types.BusiestDirectory{Path: node.Path, Count: directFileCount}
		}

		for _, childNode := range node.Children {
			walk(childNode, depth+1)
		}
	}
	walk(rootNode, 0)
	return directoryStats
}

// roundRatio computes matched/total with four-decimal rounding, zero when the
// total is zero.
func roundRatio(matchedBytes, totalBytes int64) float64 {
	if totalBytes == 0 {
		return 0
	}
	ratio := float64(matchedBytes) / float64(totalBytes)
	return math.Round(ratio*effectivenessPrecision) / effectivenessPrecision
}
