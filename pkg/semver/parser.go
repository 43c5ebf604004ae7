// Package semver checks browser versions against operator constraints.
package semver

import (
	"fmt"
	"regexp"
	"strings"

	masterminds "github.com/Masterminds/semver/v3"
)

const logPrefix = "semver:parser"

var (
	// browser builds report up to four numeric parts (124.0.6367.29)
	browserVersionRegex = regexp.MustCompile(`(\d+)(?:\.(\d+))?(?:\.(\d+))?(?:\.\d+)?`)
	majorOnlyRegex      = regexp.MustCompile(`^\d+$`)
)

// ParseBrowserVersion extracts a semantic version from what a browser reports. A product
// prefix ("HeadlessChrome/") is dropped and four-part builds are truncated to three parts.
func ParseBrowserVersion(input string) (*masterminds.Version, error) {
	raw := strings.TrimSpace(input)
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	m := browserVersionRegex.FindStringSubmatch(raw)
	if m == nil {
		return nil, fmt.Errorf("%s - no version number in %q", logPrefix, input)
	}
	parts := []string{m[1], "0", "0"}
	if m[2] != "" {
		parts[1] = m[2]
	}
	if m[3] != "" {
		parts[2] = m[3]
	}
	v, err := masterminds.NewVersion(strings.Join(parts, "."))
	if err != nil {
		return nil, fmt.Errorf("%s - invalid version %q: %w", logPrefix, input, err)
	}
	return v, nil
}

// IsMajorOnly checks if a constraint is a bare major number (e.g., "120").
func IsMajorOnly(constraint string) bool {
	return majorOnlyRegex.MatchString(strings.TrimSpace(constraint))
}
