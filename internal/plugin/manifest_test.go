package plugin

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseManifest(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantName string
		wantDesc string
		wantErr  bool
	}{
		{"frontmatter", "---\nname: pdf\ndescription: PDF tools\n---\nbody", "pdf", "PDF tools", false},
		{"leading blank lines", "\n\n---\ndescription: x\n---\n", "", "x", false},
		{"multiline description", "---\ndescription: |\n  line one\n  line two\n---\n", "", "line one\nline two", false},
		{"no frontmatter", "# Title\n", "", "", false},
		{"unterminated", "---\ndescription: x\n", "", "", false},
		{"invalid yaml", "---\ndescription: [x\n---\n", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := ParseManifest(strings.NewReader(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, m.Name)
			assert.Equal(t, tt.wantDesc, m.Description)
		})
	}
}

func TestBody(t *testing.T) {
	assert.Equal(t, "# Title\n", string(Body([]byte("---\nname: x\n---\n# Title\n"))))
	assert.Equal(t, "# Title\n", string(Body([]byte("# Title\n"))))
	assert.Equal(t, "---\nname: x\n", string(Body([]byte("---\nname: x\n"))), "unterminated frontmatter is kept")
}
