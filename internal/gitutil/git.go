// Package gitutil lists the files a git branch touched relative to its base,
// so an analysis can be limited to them.
package gitutil

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
)

// Change statuses.
const (
	StatusAdded    = "added"
	StatusModified = "modified"
	StatusDeleted  = "deleted"
	StatusRenamed  = "renamed"
)

// ChangedFile is a file that differs between the merge-base and the working tree.
type ChangedFile struct {
	Path   string // slash-separated, relative to the repository top level
	Status string
}

// BranchDiff lists the changes of the working tree against a base branch.
type BranchDiff struct {
	TopLevel  string
	Base      string
	MergeBase string
	Files     []ChangedFile
}

// Paths returns the absolute paths of the changed files that still exist,
// in lexical order.
func (d *BranchDiff) Paths() []string {
	var out []string
	for _, f := range d.Files {
		if f.Status == StatusDeleted {
			continue
		}
		out = append(out, filepath.Join(d.TopLevel, filepath.FromSlash(f.Path)))
	}
	return out
}

// Changes returns the files changed between the merge-base of base and HEAD
// and the current working tree, including uncommitted and untracked files.
// An empty base selects main or master.
func Changes(ctx context.Context, repoPath, base string) (*BranchDiff, error) {
	top, err := runGit(ctx, repoPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return nil, fmt.Errorf("locate repository: %w", err)
	}

	if base == "" {
		base, err = detectDefaultBranch(ctx, repoPath)
		if err != nil {
			return nil, fmt.Errorf("detect default branch: %w", err)
		}
	}

	mergeBase, err := runGit(ctx, repoPath, "merge-base", base, "HEAD")
	if err != nil {
		return nil, fmt.Errorf("merge-base with %s: %w", base, err)
	}

	// Without a range, git diff compares the commit to the working tree.
	nameStatus, err := runGit(ctx, repoPath, "diff", "--name-status", mergeBase)
	if err != nil {
		return nil, err
	}
	untracked, err := runGit(ctx, repoPath, "ls-files", "--others", "--exclude-standard", "--full-name")
	if err != nil {
		return nil, err
	}

	statuses := parseNameStatus(nameStatus)
	for _, line := range strings.Split(untracked, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			statuses[line] = StatusAdded
		}
	}

	diff := &BranchDiff{TopLevel: top, Base: base, MergeBase: mergeBase}
	for path, status := range statuses {
		diff.Files = append(diff.Files, ChangedFile{Path: path, Status: status})
	}
	sort.Slice(diff.Files, func(i, j int) bool { return diff.Files[i].Path < diff.Files[j].Path })
	return diff, nil
}

// detectDefaultBranch checks whether the repository uses "main" or "master" as its default branch.
func detectDefaultBranch(ctx context.Context, repoPath string) (string, error) {
	for _, name := range []string{"main", "master"} {
		if _, err := runGit(ctx, repoPath, "rev-parse", "--verify", "refs/heads/"+name); err == nil {
			return name, nil
		}
	}
	return "", fmt.Errorf("no default branch found (tried main and master)")
}

// parseNameStatus parses "git diff --name-status" output into a map of path -> status.
func parseNameStatus(output string) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 2 {
			continue
		}
		statusCode := parts[0]
		path := parts[len(parts)-1] // for renames and copies this is the new path

		switch {
		case strings.HasPrefix(statusCode, "A"), strings.HasPrefix(statusCode, "C"):
			result[path] = StatusAdded
		case strings.HasPrefix(statusCode, "D"):
			result[path] = StatusDeleted
		case strings.HasPrefix(statusCode, "R"):
			result[path] = StatusRenamed
		default:
			result[path] = StatusModified
		}
	}
	return result
}

// runGit executes a git command in the given repository path and returns trimmed stdout.
func runGit(ctx context.Context, repoPath string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = repoPath
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(output)), nil
}
