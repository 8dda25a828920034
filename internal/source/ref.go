// Package source resolves user-typed repository references and talks to git.
package source

import (
	"fmt"
	"strings"
	"unicode"
)

// DefaultHost is used for owner/repo shorthand
const DefaultHost = "github.com"

// RepoRef is the canonical identity of a plugin repository
type RepoRef struct {
	Host  string
	Owner string
	Repo  string
}

// NewRepoRef validates the parts and lowercases the host
func NewRepoRef(host, owner, repo string) (RepoRef, error) {
	ref := RepoRef{Host: strings.ToLower(host), Owner: owner, Repo: repo}
	if reason := ref.invalid(); reason != "" {
		return RepoRef{}, &ResolveError{Input: ref.String(), Reason: reason}
	}
	return ref, nil
}

func (r RepoRef) invalid() string {
	for _, part := range []struct{ name, value string }{
		{"host", r.Host},
		{"owner", r.Owner},
		{"repo", r.Repo},
	} {
		if reason := checkSegment(part.value); reason != "" {
			return part.name + " " + reason
		}
	}
	// ':' separates the parts of a qualified skill name
	if strings.Contains(r.Owner, ":") || strings.Contains(r.Repo, ":") {
		return "owner/repo contains ':'"
	}
	return ""
}

// String renders host/owner/repo
func (r RepoRef) String() string {
	return r.Host + "/" + r.Owner + "/" + r.Repo
}

// ID renders owner/repo
func (r RepoRef) ID() string {
	return r.Owner + "/" + r.Repo
}

// HTTPSURL is the default remote for the repository
func (r RepoRef) HTTPSURL() string {
	return "https://" + r.String()
}

// IsZero reports whether r is the zero value
func (r RepoRef) IsZero() bool {
	return r == RepoRef{}
}

// Remote is a resolved reference plus the URL to clone it from
type Remote struct {
	Ref RepoRef
	URL string
}

// Resolve parses input into a RepoRef
func Resolve(input string) (RepoRef, error) {
	remote, err := Parse(input)
	if err != nil {
		return RepoRef{}, err
	}
	return remote.Ref, nil
}

// Parse accepts, in order:
//
//	https://<host>/<owner>/<repo>[.git][/]
//	git@<host>:<owner>/<repo>[.git]
//	<owner>/<repo>                       (host github.com)
func Parse(input string) (Remote, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return Remote{}, &ResolveError{Input: input, Reason: "empty"}
	}
	if strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0 {
		return Remote{}, &ResolveError{Input: input, Reason: "contains whitespace or control characters"}
	}

	switch {
	case strings.HasPrefix(s, "https://"):
		rest := strings.TrimSuffix(strings.TrimPrefix(s, "https://"), "/")
		host, path, ok := strings.Cut(rest, "/")
		if !ok {
			return Remote{}, &ResolveError{Input: input, Reason: "missing owner/repo"}
		}
		ref, err := ownerRepo(input, host, path)
		if err != nil {
			return Remote{}, err
		}
		return Remote{Ref: ref, URL: s}, nil

	case strings.HasPrefix(s, "git@"):
		host, path, ok := strings.Cut(strings.TrimPrefix(s, "git@"), ":")
		if !ok {
			return Remote{}, &ResolveError{Input: input, Reason: "missing ':' after host"}
		}
		ref, err := ownerRepo(input, host, path)
		if err != nil {
			return Remote{}, err
		}
		return Remote{Ref: ref, URL: s}, nil

	case strings.Contains(s, "://") || strings.Contains(s, ":"):
		return Remote{}, &ResolveError{Input: input, Reason: "unsupported scheme"}

	default:
		ref, err := ownerRepo(input, DefaultHost, s)
		if err != nil {
			return Remote{}, err
		}
		return Remote{Ref: ref, URL: ref.HTTPSURL()}, nil
	}
}

func ownerRepo(input, host, path string) (RepoRef, error) {
	parts := strings.Split(path, "/")
	if len(parts) != 2 {
		return RepoRef{}, &ResolveError{Input: input, Reason: fmt.Sprintf("want owner/repo, got %d path segments", len(parts))}
	}
	ref := RepoRef{Host: strings.ToLower(host), Owner: parts[0], Repo: strings.TrimSuffix(parts[1], ".git")}
	if reason := ref.invalid(); reason != "" {
		return RepoRef{}, &ResolveError{Input: input, Reason: reason}
	}
	return ref, nil
}

// checkSegment returns a reason when s cannot be a single path component
func checkSegment(s string) string {
	switch {
	case s == "":
		return "is empty"
	case s == "." || s == "..":
		return "is a relative path element"
	case strings.ContainsAny(s, `/\`):
		return "contains a path separator"
	case strings.IndexFunc(s, func(r rune) bool { return unicode.IsSpace(r) || unicode.IsControl(r) }) >= 0:
		return "contains whitespace or control characters"
	}
	return ""
}
