// Package concat serializes the included, non-binary files of a snapshot
// into a single delimited text artifact.
package concat

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"regexp"
	"runtime"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"codecat/internal/classify"
	"codecat/internal/ignore"
	"codecat/internal/tree"
	"codecat/internal/types"
)

const (
	// fileHeaderFormat delimits one file inside the artifact.
	fileHeaderFormat = "=== %s ===\n"
	// repositoryHeaderFormat opens the artifact.
	repositoryHeaderFormat = "Repository: %s\n"
	// repositoryHeaderPadding extends the underline past the repository name.
	repositoryHeaderPadding = 12

	// artifactFileNameFormat is file-stats_<repoName>_<timestamp>_<pid><nonce>.<ext>.
	artifactFileNameFormat  = "file-stats_%s_%s_%d%s.txt"
	artifactTimestampLayout = "20060102_150405"
	artifactNonceBytes      = 4

	invalidUTF8Replacement = "�"
	newline                = "\n"
)

// fileNameSanitizer reduces repository names to filesystem-safe characters.
var fileNameSanitizer = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

// FileHeaderPattern matches artifact file delimiters and captures the path.
// Splitting an artifact on this pattern recovers the emitted file set.
var FileHeaderPattern = regexp.MustCompile(`(?m)^=== (.+) ===$`)

// Result reports what one Write call emitted.
type Result struct {
	BytesWritten int64
	FileCount    int
	// IncludedPaths lists the emitted file paths in artifact order.
	IncludedPaths []string
}

// Writer emits the concatenation artifact. Files are read and classified in
// parallel; emission into the sink is deterministic and single-threaded,
// following the tree's depth-first, first-seen order.
type Writer struct {
	Matcher        *ignore.CompiledMatcher
	RepositoryName string
	// Workers bounds the read/classify pool; zero means available parallelism.
	Workers int
}

// preparedFile is the outcome of the parallel classify stage for one path.
type preparedFile struct {
	path    string
	content string
	binary  bool
}

// Write serializes every included, non-binary file into the sink with a
// delimiter header per file. The binary predicate is the same one the
// statistics aggregator applies, so the artifact and the statistics always
// describe the same file set. Content is decoded as UTF-8 with replacement
// of invalid sequences; valid UTF-8 input round-trips byte-identically.
func (writer *Writer) Write(ctx context.Context, rawEntries []types.RawEntry, sink io.Writer) (Result, error) {
	treeBuilder := &tree.Builder{Matcher: writer.Matcher}
	rootNode := treeBuilder.Build(rawEntries, writer.RepositoryName)
	orderedPaths := tree.OrderedFilePaths(rootNode)

	contentByPath := make(map[string][]byte, len(rawEntries))
	for _, rawEntry := range rawEntries {
		if !rawEntry.IsDirectory {
			contentByPath[ignore.NormalizePath(rawEntry.Path)] = rawEntry.Content
		}
	}

	preparedFiles, prepareError := writer.prepareFiles(ctx, orderedPaths, contentByPath)
	if prepareError != nil {
		return Result{}, prepareError
	}

	countingSink := &countingWriter{sink: sink}
	if headerError := writeRepositoryHeader(countingSink, writer.RepositoryName); headerError != nil {
		return Result{}, headerError
	}

	result := Result{}
	for _, prepared := range preparedFiles {
		if contextError := ctx.Err(); contextError != nil {
			return Result{}, contextError
		}
		if prepared.binary {
			continue
		}
		if emitError := emitFile(countingSink, prepared); emitError != nil {
			return Result{}, emitError
		}
		result.FileCount++
		result.IncludedPaths = append(result.IncludedPaths, prepared.path)
	}

	result.BytesWritten = countingSink.written
	return result, nil
}

// prepareFiles runs the parallel read/classify stage. Results keep the
// ordered-path positions so the merge stage restores tree order.
func (writer *Writer) prepareFiles(ctx context.Context, orderedPaths []string, contentByPath map[string][]byte) ([]preparedFile, error) {
	preparedFiles := make([]preparedFile, len(orderedPaths))

	workerCount := writer.Workers
	if workerCount <= 0 {
		workerCount = runtime.GOMAXPROCS(0)
	}
	poolSlots := make(chan struct{}, workerCount)

	group, groupCtx := errgroup.WithContext(ctx)
	for pathIndex := range orderedPaths {
		currentIndex := pathIndex
		group.Go(func() error {
			select {
			case poolSlots <- struct{}{}:
			case <-groupCtx.Done():
				return groupCtx.Err()
			}
			defer func() { <-poolSlots }()

			currentPath := orderedPaths[currentIndex]
			fileContent := contentByPath[currentPath]
			prepared := preparedFile{path: currentPath}
			if classify.IsBinary(fileContent) {
				prepared.binary = true
			} else {
				prepared.content = strings.ToValidUTF8(string(fileContent), invalidUTF8Replacement)
			}
			preparedFiles[currentIndex] = prepared
			return nil
		})
	}
	if waitError := group.Wait(); waitError != nil {
		return nil, waitError
	}
	return preparedFiles, nil
}

// writeRepositoryHeader emits the artifact preamble.
func writeRepositoryHeader(sink io.Writer, repositoryName string) error {
	if _, writeError := fmt.Fprintf(sink, repositoryHeaderFormat, repositoryName); writeError != nil {
		return writeError
	}
	underline := strings.Repeat("=", len(repositoryName)+repositoryHeaderPadding)
	_, writeError := io.WriteString(sink, underline+newline+newline)
	return writeError
}

// emitFile writes one delimiter header followed by the file content,
// guaranteeing a terminating newline so the next header starts a fresh line.
func emitFile(sink io.Writer, prepared preparedFile) error {
	if _, writeError := fmt.Fprintf(sink, fileHeaderFormat, prepared.path); writeError != nil {
		return writeError
	}
	if _, writeError := io.WriteString(sink, prepared.content); writeError != nil {
		return writeError
	}
	if !strings.HasSuffix(prepared.content, newline) {
		if _, writeError := io.WriteString(sink, newline); writeError != nil {
			return writeError
		}
	}
	return nil
}

// ArtifactFileName generates a unique artifact name for a repository:
// a sanitized repository name, a second-resolution timestamp, the process
// id, and a random nonce.
func ArtifactFileName(repositoryName string) string {
	cleanName := fileNameSanitizer.ReplaceAllString(repositoryName, "_")
	timestamp := time.Now().Format(artifactTimestampLayout)
	nonceBytes := make([]byte, artifactNonceBytes)
	if _, readError := rand.Read(nonceBytes); readError != nil {
		// The nonce only guards against same-second collisions.
		copy(nonceBytes, []byte(timestamp))
	}
	return fmt.Sprintf(artifactFileNameFormat, cleanName, timestamp, os.Getpid(), hex.EncodeToString(nonceBytes))
}

// countingWriter tracks how many bytes reached the sink.
type countingWriter struct {
	sink    io.Writer
	written int64
}

func (writer *countingWriter) Write(data []byte) (int, error) {
	writtenBytes, writeError := writer.sink.Write(data)
	writer.written += int64(writtenBytes)
	return writtenBytes, writeError
}
