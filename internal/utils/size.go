// Package utils contains small helpers shared across the codecat packages.
package utils

import (
	"fmt"
	"strings"
)

// sizeUnitSuffixes are the lower-case magnitude suffixes used by FormatFileSize.
var sizeUnitSuffixes = []string{"b", "kb", "mb", "gb", "tb", "pb"}

// FormatFileSize renders a byte count with a compact lower-case unit suffix
// for statistics lines and tree nodes. Values below ten units keep one
// decimal place with a trailing ".0" trimmed; negative input renders as zero.
func FormatFileSize(sizeBytes int64) string {
	if sizeBytes < 0 {
		return "0b"
	}
	scaledValue := float64(sizeBytes)
	suffixIndex := 0
	for scaledValue >= 1024 && suffixIndex < len(sizeUnitSuffixes)-1 {
		scaledValue /= 1024
		suffixIndex++
	}
	if suffixIndex == 0 {
		return fmt.Sprintf("%d%s", sizeBytes, sizeUnitSuffixes[0])
	}
	if scaledValue < 10 {
		rendered := strings.TrimSuffix(fmt.Sprintf("%.1f", scaledValue), ".0")
		return rendered + sizeUnitSuffixes[suffixIndex]
	}
	return fmt.Sprintf("%.0f%s", scaledValue, sizeUnitSuffixes[suffixIndex])
}
