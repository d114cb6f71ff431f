// Package vcs answers the two version control questions the graph cares
// about: what revision the workspace is at, and which files changed. Both
// feed cache keys and affected-project detection; nothing here interprets
// the answers.
package vcs

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
)

// Querier abstracts version control queries for testability.
type Querier interface {
	// Revision returns the current commit id.
	Revision(ctx context.Context) (string, error)

	// ChangedSince returns repo-relative paths changed since base,
	// uncommitted and untracked changes included. An empty base means
	// only the working tree changes.
	ChangedSince(ctx context.Context, base string) ([]string, error)
}

// CLIQuerier implements Querier using git CLI commands.
type CLIQuerier struct {
	RepoDir string
}

// run executes a git command and returns its trimmed stdout.
func (g *CLIQuerier) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = g.RepoDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s: %s: %w", strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Revision returns the commit id of HEAD.
func (g *CLIQuerier) Revision(ctx context.Context) (string, error) {
	rev, err := g.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("resolving HEAD: %w", err)
	}
	return rev, nil
}

// ChangedSince returns the paths changed since base. With a base the diff
// covers committed and tracked working tree changes, with untracked files
// added on top; without one, the working tree status alone is the answer.
func (g *CLIQuerier) ChangedSince(ctx context.Context, base string) ([]string, error) {
	if base == "" {
		output, err := g.run(ctx, "status", "--porcelain")
		if err != nil {
			return nil, fmt.Errorf("reading working tree status: %w", err)
		}
		return parsePorcelain(output), nil
	}

	diff, err := g.run(ctx, "diff", "--name-only", base)
	if err != nil {
		return nil, fmt.Errorf("diffing against %s: %w", base, err)
	}
	untracked, err := g.run(ctx, "ls-files", "--others", "--exclude-standard")
	if err != nil {
		return nil, fmt.Errorf("listing untracked files: %w", err)
	}
	return mergePaths(splitLines(diff), splitLines(untracked)), nil
}

// parsePorcelain extracts paths from `git status --porcelain` output. A
// rename line reads "R  old -> new"; the new path is the one that changed.
func parsePorcelain(output string) []string {
	var paths []string
	for _, line := range splitLines(output) {
		if len(line) < 4 {
			continue
		}
		p := line[3:]
		if _, after, found := strings.Cut(p, " -> "); found {
			p = after
		}
		paths = append(paths, p)
	}
	return mergePaths(paths)
}

// splitLines splits command output into non-empty lines.
func splitLines(output string) []string {
	if output == "" {
		return nil
	}
	var lines []string
	for _, line := range strings.Split(output, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// mergePaths unions path lists, sorted and deduplicated.
func mergePaths(lists ...[]string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, list := range lists {
		for _, p := range list {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	sort.Strings(out)
	return out
}
