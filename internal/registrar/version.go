package registrar

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	segmentPattern   = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	requestedPattern = regexp.MustCompile(`(?i)^v?(\d+)`)
	existingPattern  = regexp.MustCompile(`^v0*(\d+)$`)
)

// ValidateSegment trims value and checks it is usable as a single directory
// name: non-empty, not "." itself, no separators, no "..", and only letters,
// digits, dot, underscore, or hyphen.
func ValidateSegment(field, value string) (string, error) {
	candidate := strings.TrimSpace(value)
	if candidate == "" {
		return "", &ValidationError{Field: field, Reason: "cannot be empty"}
	}
	if candidate == "." {
		return "", &ValidationError{Field: field, Reason: "cannot be a relative path segment"}
	}
	if strings.ContainsAny(candidate, `/\`) || strings.Contains(candidate, "..") {
		return "", &ValidationError{Field: field, Reason: "contains invalid path separators or traversal sequences"}
	}
	if !segmentPattern.MatchString(candidate) {
		return "", &ValidationError{Field: field, Reason: "must use alphanumeric characters, dots, underscores, or hyphens only"}
	}
	return candidate, nil
}

// NextVersion returns the version to register.
//
// A requested value starting with digits, optionally prefixed by v, becomes
// v followed by the number zero-padded to width. Any other non-empty request
// is returned verbatim. Without a request, the result is one more than the
// largest number among existing names of the form v<digits>, or 1.
func NextVersion(existing []string, requested string, width int) (string, error) {
	if width < 1 {
		width = 1
	}
	if requested = strings.TrimSpace(requested); requested != "" {
		match := requestedPattern.FindStringSubmatch(requested)
		if match == nil {
			return requested, nil
		}
		n, err := strconv.ParseUint(match[1], 10, 63)
		if err != nil {
			return "", &ValidationError{Field: "version", Reason: "number is out of range"}
		}
		return formatVersion(n, width), nil
	}

	var highest uint64
	for _, name := range existing {
		match := existingPattern.FindStringSubmatch(name)
		if match == nil {
			continue
		}
		n, err := strconv.ParseUint(match[1], 10, 63)
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}
	return formatVersion(highest+1, width), nil
}

func formatVersion(n uint64, width int) string {
	return fmt.Sprintf("v%0*d", width, n)
}
