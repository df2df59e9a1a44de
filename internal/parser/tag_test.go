package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTag(t *testing.T) {
	tests := []struct {
		tag     string
		wantOff int
		wantErr bool
	}{
		{"@0", 0, false},
		{"@4", 4, false},
		{"@4088", 4088, false},
		{" @8 ", 8, false},

		// Error cases
		{"", 0, true},         // empty
		{"@", 0, true},        // no offset number
		{"@abc", 0, true},     // non-numeric offset
		{"@-4", 0, true},      // negative offset
		{"@8,@16", 0, true},   // double offset
		{"start-end", 0, true}, // unknown parameter
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			got, err := ParseTag(tt.tag)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantOff, got.Offset)
		})
	}
}
