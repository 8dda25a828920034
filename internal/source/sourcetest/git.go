// Package sourcetest provides an in-process git client for tests.
package sourcetest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/samhoang/silk/internal/source"
)

// Call records one invocation of the fake
type Call struct {
	Op  string // "clone" or "pull"
	Arg string // remote URL for clone, repository path for pull
}

// Git materializes registered repositories as plain files.
// A clone writes a .git directory recording the remote so Pull can find it.
type Git struct {
	mu    sync.Mutex
	repos map[string]map[string]string
	calls []Call

	// CloneErr and PullErr make the next operations fail
	CloneErr error
	PullErr  error

	// Gate, when non-nil, blocks Clone and Pull until it is closed or ctx ends
	Gate chan struct{}

	// Started receives the op name when Clone or Pull begins, if non-nil
	Started chan string
}

// New returns an empty fake
func New() *Git {
	return &Git{repos: make(map[string]map[string]string)}
}

// SetRepo registers or replaces the files served for url.
// Paths are slash-separated and relative to the repository root.
func (g *Git) SetRepo(url string, files map[string]string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.repos[url] = files
}

// Calls returns a copy of the recorded invocations
func (g *Git) Calls() []Call {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Call(nil), g.calls...)
}

func (g *Git) Clone(ctx context.Context, remoteURL, dest string) error {
	if err := g.begin(ctx, Call{Op: "clone", Arg: remoteURL}); err != nil {
		return err
	}

	// git creates the destination before it knows whether the transfer works
	if err := os.MkdirAll(filepath.Join(dest, ".git"), 0755); err != nil {
		return err
	}

	g.mu.Lock()
	files, ok := g.repos[remoteURL]
	cloneErr := g.CloneErr
	g.mu.Unlock()

	if cloneErr != nil {
		return &source.GitError{Op: "clone", Source: remoteURL, Stderr: "fatal: " + cloneErr.Error(), Err: cloneErr}
	}
	if ctx.Err() != nil {
		return &source.GitError{Op: "clone", Source: remoteURL, Err: ctx.Err()}
	}
	if !ok {
		err := errors.New("exit status 128")
		return &source.GitError{Op: "clone", Source: remoteURL, Stderr: "fatal: repository not found", Err: err}
	}

	if err := os.WriteFile(filepath.Join(dest, ".git", "remote"), []byte(remoteURL), 0644); err != nil {
		return err
	}
	return writeTree(dest, files, 1)
}

func (g *Git) Pull(ctx context.Context, repoPath string) error {
	if err := g.begin(ctx, Call{Op: "pull", Arg: repoPath}); err != nil {
		return err
	}

	g.mu.Lock()
	pullErr := g.PullErr
	g.mu.Unlock()
	if pullErr != nil {
		return &source.GitError{Op: "pull", Source: repoPath, Stderr: "fatal: " + pullErr.Error(), Err: pullErr}
	}
	if ctx.Err() != nil {
		return &source.GitError{Op: "pull", Source: repoPath, Err: ctx.Err()}
	}

	remote, err := os.ReadFile(filepath.Join(repoPath, ".git", "remote"))
	if err != nil {
		return &source.GitError{Op: "pull", Source: repoPath, Stderr: "fatal: not a git repository", Err: err}
	}

	g.mu.Lock()
	files := g.repos[string(remote)]
	g.mu.Unlock()

	rev, _ := g.Revision(ctx, repoPath)
	n, _ := strconv.Atoi(strings.TrimPrefix(rev, "rev"))

	entries, err := os.ReadDir(repoPath)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.Name() == ".git" {
			continue
		}
		if err := os.RemoveAll(filepath.Join(repoPath, e.Name())); err != nil {
			return err
		}
	}
	return writeTree(repoPath, files, n+1)
}

// Revision reports "revN", where N counts clones and pulls of the repository
func (g *Git) Revision(_ context.Context, repoPath string) (string, error) {
	data, err := os.ReadFile(filepath.Join(repoPath, ".git", "HEAD"))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

func (g *Git) begin(ctx context.Context, c Call) error {
	g.mu.Lock()
	g.calls = append(g.calls, c)
	gate, started := g.Gate, g.Started
	g.mu.Unlock()

	if started != nil {
		started <- c.Op
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
		}
	}
	return nil
}

func writeTree(root string, files map[string]string, rev int) error {
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return err
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return err
		}
	}
	head := fmt.Sprintf("rev%d\n", rev)
	return os.WriteFile(filepath.Join(root, ".git", "HEAD"), []byte(head), 0644)
}
