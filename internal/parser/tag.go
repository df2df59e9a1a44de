package parser

import (
	"fmt"
	"strconv"
	"strings"
)

// FieldTag holds a parsed pod struct tag
type FieldTag struct {
	Offset int // asserted byte offset, -1 if unspecified
}

// ParseTag parses pod struct tags
//
// Semantics:
//   - "@N" : the field must be laid out at byte offset N
//
// Examples:
//
//	`pod:"@0"`    → field must start the struct
//	`pod:"@4088"` → field must sit at byte 4088
func ParseTag(tag string) (*FieldTag, error) {
	if tag == "" {
		return nil, fmt.Errorf("empty pod tag")
	}

	f := &FieldTag{Offset: -1}

	for _, part := range strings.Split(tag, ",") {
		part = strings.TrimSpace(part)
		switch {
		case strings.HasPrefix(part, "@"):
			if f.Offset >= 0 {
				return nil, fmt.Errorf("duplicate offset: %s", part)
			}
			offset, err := strconv.Atoi(strings.TrimPrefix(part, "@"))
			if err != nil || offset < 0 {
				return nil, fmt.Errorf("invalid offset: %s", part)
			}
			f.Offset = offset
		default:
			return nil, fmt.Errorf("unknown parameter: %s", part)
		}
	}

	return f, nil
}
