package testutil

import (
	"regexp"
	"strings"
)

var (
	timestampRe = regexp.MustCompile(`\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}[^\s|]*`)
	addressRe   = regexp.MustCompile(`0x[0-9a-f]+`)
	uuidRe      = regexp.MustCompile(`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`)
)

// Normalize unifies line endings and drops trailing whitespace.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}
	return strings.TrimRight(strings.Join(lines, "\n"), "\n")
}

// ScrubTimestamps replaces RFC 3339 and "date time" stamps.
func ScrubTimestamps(s string) string {
	return timestampRe.ReplaceAllString(s, "[TIMESTAMP]")
}

// ScrubAddresses replaces hex addresses.
func ScrubAddresses(s string) string {
	return addressRe.ReplaceAllString(s, "[ADDR]")
}

// ScrubUUIDs replaces session ids.
func ScrubUUIDs(s string) string {
	return uuidRe.ReplaceAllString(s, "[UUID]")
}

// ScrubPaths replaces basePath.
func ScrubPaths(s, basePath string) string {
	if basePath == "" {
		return s
	}
	return strings.ReplaceAll(s, basePath, "[DIR]")
}

// ScrubAll applies every scrubber and normalizes the result.
func ScrubAll(s, basePath string) string {
	s = ScrubPaths(s, basePath)
	s = ScrubTimestamps(s)
	s = ScrubUUIDs(s)
	s = ScrubAddresses(s)
	return Normalize(s)
}
