package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/alexhholmes/pod/internal/analyzer"
)

// TypeAnnotation holds a parsed @pod annotation
type TypeAnnotation struct {
	Repr analyzer.Repr // layout mode, repr=c unless stated
	Size int           // asserted size in bytes (0 = no assertion)
}

var (
	annotationRe = regexp.MustCompile(`^@pod(?:\s+(.*))?$`)
	pairRe       = regexp.MustCompile(`^(\w+)=([\w-]+)$`)
)

// ParseAnnotation parses a @pod annotation from comment text
//
// Expected format:
//
//	// @pod
//	// @pod repr=packed
//	// @pod size=16
//	// @pod repr=c size=4096
//
// Params are space-separated key=value pairs.
func ParseAnnotation(comment string) (*TypeAnnotation, error) {
	matches := annotationRe.FindStringSubmatch(strings.TrimSpace(comment))
	if matches == nil {
		return nil, fmt.Errorf("no @pod annotation found")
	}

	anno := &TypeAnnotation{Repr: analyzer.ReprC}
	params := strings.Fields(matches[1])
	for _, param := range params {
		pair := pairRe.FindStringSubmatch(param)
		if pair == nil {
			return nil, fmt.Errorf("malformed parameter: %s", param)
		}

		key, value := pair[1], pair[2]
		switch key {
		case "repr":
			repr, err := ParseRepr(value)
			if err != nil {
				return nil, err
			}
			anno.Repr = repr

		case "size":
			size, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("invalid size: %s", value)
			}
			if size <= 0 {
				return nil, fmt.Errorf("size must be positive, got: %d", size)
			}
			anno.Size = size

		default:
			return nil, fmt.Errorf("unknown parameter: %s", key)
		}
	}

	return anno, nil
}

// ParseRepr parses a layout mode name
func ParseRepr(s string) (analyzer.Repr, error) {
	switch s {
	case "c", "C":
		return analyzer.ReprC, nil
	case "packed":
		return analyzer.ReprPacked, nil
	default:
		return analyzer.ReprUnspecified, fmt.Errorf("repr must be 'c' or 'packed', got: %s", s)
	}
}

// FindAnnotation searches comment lines for a @pod annotation.
// It returns found=false when no line carries one, and an error when a line
// starts with @pod but cannot be parsed.
func FindAnnotation(comments []string) (*TypeAnnotation, bool, error) {
	for _, comment := range comments {
		if !isAnnotationLine(comment) {
			continue
		}
		anno, err := ParseAnnotation(comment)
		if err != nil {
			return nil, true, err
		}
		return anno, true, nil
	}
	return nil, false, nil
}

func isAnnotationLine(line string) bool {
	line = strings.TrimSpace(line)
	return line == "@pod" || strings.HasPrefix(line, "@pod ") || strings.HasPrefix(line, "@pod\t")
}

// CleanComment removes comment markers from a line
// "// @pod size=16" → "@pod size=16"
// "/* @pod size=16 */" → "@pod size=16"
func CleanComment(line string) string {
	line = strings.TrimSpace(line)

	// Remove // prefix
	if strings.HasPrefix(line, "//") {
		line = strings.TrimPrefix(line, "//")
		line = strings.TrimSpace(line)
		return line
	}

	// Remove /* */ wrapper
	if strings.HasPrefix(line, "/*") && strings.HasSuffix(line, "*/") {
		line = strings.TrimPrefix(line, "/*")
		line = strings.TrimSuffix(line, "*/")
		line = strings.TrimSpace(line)
		return line
	}

	return line
}
