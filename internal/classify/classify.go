// Package classify provides binary detection and comment/blank line
// classification heuristics. Line classification is a per-extension
// prefix heuristic, documented as approximate: it is not a language parser.
package classify

import (
	"path/filepath"
	"strings"
	"unicode/utf8"

	"codecat/internal/types"
)

// sniffLength defines the maximum number of bytes inspected when detecting
// binary content.
const sniffLength = 8000

// invalidByteRatioThreshold is the fraction of UTF-8-invalid bytes in the
// sniffed prefix above which content is treated as binary.
const invalidByteRatioThreshold = 0.30

// LineClass is the classification of a single text line.
type LineClass int

const (
	LineCode LineClass = iota
	LineComment
	LineBlank
)

// blockMarker describes a paired block comment delimiter.
type blockMarker struct {
	start string
	end   string
}

// languageMarkers holds the comment markers known for one file extension.
type languageMarkers struct {
	lineMarkers  []string
	blockMarkers []blockMarker
}

var (
	slashMarkers  = languageMarkers{lineMarkers: []string{"//"}, blockMarkers: []blockMarker{{start: "/*", end: "*/"}}}
	hashMarkers   = languageMarkers{lineMarkers: []string{"#"}}
	pythonMarkers = languageMarkers{lineMarkers: []string{"#"}, blockMarkers: []blockMarker{{start: `"""`, end: `"""`}, {start: "'''", end: "'''"}}}
	dashMarkers   = languageMarkers{lineMarkers: []string{"--"}}
	markupMarkers = languageMarkers{blockMarkers: []blockMarker{{start: "<!--", end: "-->"}}}
	iniMarkers    = languageMarkers{lineMarkers: []string{";", "#"}}
	cssMarkers    = languageMarkers{blockMarkers: []blockMarker{{start: "/*", end: "*/"}}}
)

// markersByExtension maps lower-case extensions (without the dot) to their
// comment markers. Unknown extensions have no markers, so every non-blank
// line counts as code.
var markersByExtension = map[string]languageMarkers{
	"go":    slashMarkers,
	"c":     slashMarkers,
	"h":     slashMarkers,
	"cc":    slashMarkers,
	"cpp":   slashMarkers,
	"hpp":   slashMarkers,
	"java":  slashMarkers,
	"js":    slashMarkers,
	"jsx":   slashMarkers,
	"ts":    slashMarkers,
	"tsx":   slashMarkers,
	"cs":    slashMarkers,
	"swift": slashMarkers,
	"kt":    slashMarkers,
	"scala": slashMarkers,
	"rs":    slashMarkers,
	"php":   slashMarkers,
	"proto": slashMarkers,

	"py": pythonMarkers,

	"rb":   hashMarkers,
	"sh":   hashMarkers,
	"bash": hashMarkers,
	"zsh":  hashMarkers,
	"pl":   hashMarkers,
	"r":    hashMarkers,
	"yaml": hashMarkers,
	"yml":  hashMarkers,
	"toml": hashMarkers,
	"mk":   hashMarkers,
	"tf":   hashMarkers,

	"sql": dashMarkers,
	"lua": dashMarkers,

	"html": markupMarkers,
	"htm":  markupMarkers,
	"xml":  markupMarkers,
	"vue":  markupMarkers,
	"svg":  markupMarkers,

	"css":  cssMarkers,
	"scss": slashMarkers,
	"less": slashMarkers,

	"ini": iniMarkers,
	"cfg": iniMarkers,
}

// IsBinary reports whether the content sample appears to be binary. A NUL
// byte anywhere in the sniffed prefix, or a UTF-8-invalid byte ratio above
// the threshold, marks the content binary.
func IsBinary(contentSample []byte) bool {
	if len(contentSample) == 0 {
		return false
	}
	sample := contentSample
	if len(sample) > sniffLength {
		sample = sample[:sniffLength]
	}

	invalidByteCount := 0
	for byteIndex := 0; byteIndex < len(sample); {
		if sample[byteIndex] == 0 {
			return true
		}
		decodedRune, runeSize := utf8.DecodeRune(sample[byteIndex:])
		if decodedRune == utf8.RuneError && runeSize == 1 {
			invalidByteCount++
			byteIndex++
			continue
		}
		byteIndex += runeSize
	}
	return float64(invalidByteCount)/float64(len(sample)) > invalidByteRatioThreshold
}

// ExtensionOf returns the histogram key for a path: the lower-case extension
// without the leading dot, or the no-extension sentinel.
func ExtensionOf(path string) string {
	extension := strings.ToLower(filepath.Ext(path))
	extension = strings.TrimPrefix(extension, ".")
	if extension == "" {
		return types.NoExtensionKey
	}
	return extension
}

// LineClassifier classifies the lines of one file in order. It tracks an
// inside-block-comment flag toggled by matching start and end markers.
type LineClassifier struct {
	markers       languageMarkers
	insideBlock   bool
	pendingEnding string
}

// NewLineClassifier returns a classifier for the given extension key.
func NewLineClassifier(extension string) *LineClassifier {
	return &LineClassifier{markers: markersByExtension[strings.ToLower(strings.TrimPrefix(extension, "."))]}
}

// Classify assigns a class to the next line of the file. Lines must be fed
// in file order for block comment tracking to hold.
func (classifier *LineClassifier) Classify(line string) LineClass {
	trimmedLine := strings.TrimSpace(line)
	if trimmedLine == "" {
		return LineBlank
	}

	if classifier.insideBlock {
		if strings.Contains(trimmedLine, classifier.pendingEnding) {
			classifier.insideBlock = false
			classifier.pendingEnding = ""
		}
		return LineComment
	}

	for _, marker := range classifier.markers.lineMarkers {
		if strings.HasPrefix(trimmedLine, marker) {
			return LineComment
		}
	}

	for _, block := range classifier.markers.blockMarkers {
		if !strings.HasPrefix(trimmedLine, block.start) {
			continue
		}
		remainder := trimmedLine[len(block.start):]
		if !strings.Contains(remainder, block.end) {
			classifier.insideBlock = true
			classifier.pendingEnding = block.end
		}
		return LineComment
	}

	return LineCode
}

// ClassifyContent splits content into lines and classifies each one,
// returning the total alongside the per-class counts. Lines split on
// line-feed; a trailing carriage-return is tolerated and a terminating
// newline does not produce an extra empty line.
func ClassifyContent(extension string, content []byte) (totalLines, codeLines, commentLines, blankLines int) {
	if len(content) == 0 {
		return 0, 0, 0, 0
	}

	lines := strings.Split(string(content), "\n")
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	classifier := NewLineClassifier(extension)
	for _, rawLine := range lines {
		line := strings.TrimSuffix(rawLine, "\r")
		switch classifier.Classify(line) {
		case LineBlank:
			blankLines++
		case LineComment:
			commentLines++
		default:
			codeLines++
		}
	}
	return len(lines), codeLines, commentLines, blankLines
}
