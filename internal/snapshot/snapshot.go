// Package snapshot materializes a local directory into the raw entry
// sequence the engine consumes. It is the local stand-in for the external
// repository-fetch collaborator: every path is captured and ignore
// resolution is left entirely to the engine.
package snapshot

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"codecat/internal/ignore"
	"codecat/internal/types"
)

const gitignoreFileName = ".gitignore"

const (
	warningAccessFormat = "skipping %s: %v"
	warningReadFormat   = "unreadable file %s: %v"

	errorAbsolutePathFormat = "getting absolute path for %s: %w"
	errorWalkFormat         = "walking %s: %w"
)

// Snapshot is one materialized directory tree.
type Snapshot struct {
	RepositoryName string
	RootPath       string
	// GitignoreBlob is the raw text of the root .gitignore, empty when absent.
	GitignoreBlob string
	Entries       []types.RawEntry
	// Warnings lists paths that could not be captured.
	Warnings []string
}

// Load walks the directory rooted at rootPath and captures every entry with
// its content. Unreadable paths are recorded as warnings, never as failures.
func Load(rootPath string) (*Snapshot, error) {
	absoluteRootPath, absolutePathError := filepath.Abs(rootPath)
	if absolutePathError != nil {
		return nil, fmt.Errorf(errorAbsolutePathFormat, rootPath, absolutePathError)
	}
	cleanedRootPath := filepath.Clean(absoluteRootPath)

	loadedSnapshot := &Snapshot{
		RepositoryName: filepath.Base(cleanedRootPath),
		RootPath:       cleanedRootPath,
	}

	walkError := filepath.WalkDir(cleanedRootPath, func(walkedPath string, directoryEntry fs.DirEntry, accessError error) error {
		if accessError != nil {
			loadedSnapshot.Warnings = append(loadedSnapshot.Warnings, fmt.Sprintf(warningAccessFormat, walkedPath, accessError))
			if directoryEntry != nil && directoryEntry.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		relativePath, relativeError := filepath.Rel(cleanedRootPath, walkedPath)
		if relativeError != nil || relativePath == "." {
			return nil
		}
		normalizedPath := ignore.NormalizePath(filepath.ToSlash(relativePath))

		if directoryEntry.IsDir() {
			loadedSnapshot.Entries = append(loadedSnapshot.Entries, types.RawEntry{
				Path:        normalizedPath,
				IsDirectory: true,
			})
			return nil
		}

		fileBytes, readError := os.ReadFile(walkedPath)
		if readError != nil {
			loadedSnapshot.Warnings = append(loadedSnapshot.Warnings, fmt.Sprintf(warningReadFormat, walkedPath, readError))
			return nil
		}
		if normalizedPath == gitignoreFileName {
			loadedSnapshot.GitignoreBlob = string(fileBytes)
		}
		loadedSnapshot.Entries = append(loadedSnapshot.Entries, types.RawEntry{
			Path:    normalizedPath,
			Content: fileBytes,
			Size:    int64(len(fileBytes)),
		})
		return nil
	})
	if walkError != nil {
		return nil, fmt.Errorf(errorWalkFormat, rootPath, walkError)
	}

	return loadedSnapshot, nil
}
