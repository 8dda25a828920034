package plugin

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Manifest is the optional YAML frontmatter of a SKILL.md
type Manifest struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

// ReadManifest parses the frontmatter of the SKILL.md at path
func ReadManifest(path string) (*Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseManifest(f)
}

// ParseManifest extracts frontmatter between --- delimiters.
// A file without frontmatter yields an empty Manifest.
func ParseManifest(r io.Reader) (*Manifest, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m := &Manifest{}
	fm, ok := frontmatter(content)
	if !ok {
		return m, nil
	}
	if err := yaml.Unmarshal(fm, m); err != nil {
		return nil, err
	}
	m.Name = strings.TrimSpace(m.Name)
	m.Description = strings.TrimSpace(m.Description)
	return m, nil
}

func frontmatter(content []byte) ([]byte, bool) {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return nil, false
	}

	nl := bytes.IndexByte(trimmed, '\n')
	if nl < 0 {
		return nil, false
	}
	rest := trimmed[nl+1:]

	var fm bytes.Buffer
	scanner := bufio.NewScanner(bytes.NewReader(rest))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "---" {
			return fm.Bytes(), true
		}
		fm.WriteString(line)
		fm.WriteByte('\n')
	}
	return nil, false
}

// Body returns the markdown that follows the frontmatter block
func Body(content []byte) []byte {
	trimmed := bytes.TrimLeft(content, " \t\r\n")
	if !bytes.HasPrefix(trimmed, []byte("---")) {
		return content
	}
	lines := bytes.SplitAfter(trimmed, []byte("\n"))
	for i := 1; i < len(lines); i++ {
		if string(bytes.TrimSpace(lines[i])) == "---" {
			return bytes.Join(lines[i+1:], nil)
		}
	}
	return content
}
