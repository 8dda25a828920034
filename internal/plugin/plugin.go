// Package plugin defines installed plugins and the skills discovered in them.
package plugin

import (
	"strings"

	"github.com/samhoang/silk/internal/source"
)

// ManifestFile marks a directory as a skill unit
const ManifestFile = "SKILL.md"

// Plugin is a cloned repository in the cache
type Plugin struct {
	Ref       source.RepoRef
	CachePath string
	Skills    []Skill
}

// ID returns host/owner/repo
func (p Plugin) ID() string {
	return p.Ref.String()
}

// LinkedCount returns how many of the plugin's skills are active
func (p Plugin) LinkedCount() int {
	n := 0
	for _, s := range p.Skills {
		if s.IsLinked {
			n++
		}
	}
	return n
}

// Skill is one activatable unit inside a plugin
type Skill struct {
	Name          string         // local name, unique within the plugin
	QualifiedName string         // owner:repo:name
	Plugin        source.RepoRef // owning plugin
	SourceDir     string         // absolute directory holding SKILL.md
	RelPath       string         // slash-separated path from the plugin root, "." for the root
	Description   string         // from SKILL.md frontmatter, may be empty
	IsLinked      bool           // derived from the activation directory
}

// QualifiedName joins a plugin identity and a local skill name
func QualifiedName(ref source.RepoRef, name string) string {
	return ref.Owner + ":" + ref.Repo + ":" + name
}

// SplitQualifiedName splits owner:repo:name
func SplitQualifiedName(qn string) (owner, repo, name string, ok bool) {
	parts := strings.SplitN(qn, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", false
	}
	return parts[0], parts[1], parts[2], true
}
