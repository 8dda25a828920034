package source

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// GitClient performs the network side of plugin installs and updates
type GitClient interface {
	// Clone fetches remoteURL into dest, which must not exist yet
	Clone(ctx context.Context, remoteURL, dest string) error

	// Pull fast-forwards the repository at repoPath to its remote
	Pull(ctx context.Context, repoPath string) error
}

// Reviser is implemented by clients that can report the checked-out commit
type Reviser interface {
	Revision(ctx context.Context, repoPath string) (string, error)
}

// ExecGit runs the git binary as a subprocess
type ExecGit struct {
	Binary  string        // defaults to "git"
	Depth   int           // clone depth, 0 for full history
	Timeout time.Duration // per-invocation limit, 0 for none
}

// NewExecGit returns a client that shallow-clones with the system git
func NewExecGit() *ExecGit {
	return &ExecGit{Binary: "git", Depth: 1}
}

func (g *ExecGit) Clone(ctx context.Context, remoteURL, dest string) error {
	args := []string{"clone"}
	if g.Depth > 0 {
		args = append(args, "--depth", strconv.Itoa(g.Depth))
	}
	args = append(args, "--", remoteURL, dest)

	if _, err := g.run(ctx, args...); err != nil {
		return &GitError{Op: "clone", Source: remoteURL, Stderr: stderrOf(err), Err: err}
	}
	return nil
}

func (g *ExecGit) Pull(ctx context.Context, repoPath string) error {
	if _, err := g.run(ctx, "-C", repoPath, "pull", "--ff-only"); err != nil {
		return &GitError{Op: "pull", Source: repoPath, Stderr: stderrOf(err), Err: err}
	}
	return nil
}

func (g *ExecGit) Revision(ctx context.Context, repoPath string) (string, error) {
	out, err := g.run(ctx, "-C", repoPath, "rev-parse", "HEAD")
	if err != nil {
		return "", &GitError{Op: "rev-parse", Source: repoPath, Stderr: stderrOf(err), Err: err}
	}
	return strings.TrimSpace(out), nil
}

// runError carries stderr alongside the exec error
type runError struct {
	err    error
	stderr string
}

func (e *runError) Error() string { return e.err.Error() }
func (e *runError) Unwrap() error { return e.err }

func stderrOf(err error) string {
	if re, ok := err.(*runError); ok {
		return re.stderr
	}
	return ""
}

func (g *ExecGit) run(ctx context.Context, args ...string) (string, error) {
	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	bin := g.Binary
	if bin == "" {
		bin = "git"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	// Never block on a credential prompt; the terminal belongs to the UI.
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		}
		return "", &runError{err: err, stderr: stderr.String()}
	}
	return stdout.String(), nil
}
