// Package pathutil holds the pure path and filename helpers used when
// shaping remote upload targets. Remote paths are always '/'-separated,
// relative, and NFC-normalized regardless of the local platform.
package pathutil

import (
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizePath converts backslashes to forward slashes, trims leading
// and trailing slashes, and applies Unicode NFC normalization. Call this
// on every path entering the system: walker output, configured base
// paths, and paths read back from server listings. Pure and total; never
// fails, degrades to the empty string.
func NormalizePath(path string) string {
	path = strings.ReplaceAll(path, "\\", "/")
	path = strings.Trim(path, "/")

	return norm.NFC.String(path)
}

// Join normalizes each part, splits on '/', drops empty and "." segments,
// and rejoins with '/'. Malformed input is never rejected; the degenerate
// result is the empty string.
func Join(parts ...string) string {
	var segments []string

	for _, part := range parts {
		for _, seg := range strings.Split(NormalizePath(part), "/") {
			if seg == "" || seg == "." {
				continue
			}
			segments = append(segments, seg)
		}
	}

	return strings.Join(segments, "/")
}

// invalidFileNameChars are characters rejected by at least one filesystem
// or by the server's path parser. Each is replaced with '_'.
const invalidFileNameChars = `\/:*?"<>|`

// SanitizeFileName replaces filesystem-unsafe characters in name with
// underscores. If the result is empty, a synthetic name derived from
// fallbackID is returned, so the output is always a non-empty, safe
// filename.
func SanitizeFileName(name, fallbackID string) string {
	var b strings.Builder
	for _, r := range name {
		if strings.ContainsRune(invalidFileNameChars, r) {
			b.WriteRune('_')
			continue
		}
		b.WriteRune(r)
	}

	sanitized := strings.TrimSpace(b.String())
	if sanitized == "" {
		return fmt.Sprintf("%s.jpg", fallbackID)
	}

	return sanitized
}

// AddConflictSuffix inserts " (attempt)" before the last extension of
// name. The extension is the substring after the last '.' when that dot
// is not the first character; names like ".hidden" or "noext" get the
// suffix appended at the end. For attempt <= 0 the name is returned
// unchanged.
func AddConflictSuffix(name string, attempt int) string {
	if attempt <= 0 {
		return name
	}

	dot := strings.LastIndex(name, ".")
	if dot <= 0 {
		return fmt.Sprintf("%s (%d)", name, attempt)
	}

	return fmt.Sprintf("%s (%d)%s", name[:dot], attempt, name[dot:])
}
