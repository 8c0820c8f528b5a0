// Package gateways implements the domain gateway contracts over the local
// filesystem and the fact store.
package gateways

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// RepoTree is read-only access to a checked-out repository on the local
// filesystem. Cloning happened elsewhere; this adapter only reads.
type RepoTree struct {
	root string
}

// NewRepoTree creates a tree rooted at the given directory.
func NewRepoTree(root string) *RepoTree {
	return &RepoTree{root: root}
}

// Files returns all repository-relative file paths in lexicographic order,
// skipping the .git directory.
func (t *RepoTree) Files(ctx context.Context) ([]string, error) {
	var out []string
	err := filepath.WalkDir(t.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if d.Name() == ".git" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(t.root, p)
		if err != nil {
			return err
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking repository tree: %w", err)
	}
	sort.Strings(out)
	return out, nil
}

// Read returns the contents of a repository-relative path. Paths escaping
// the root are rejected.
func (t *RepoTree) Read(_ context.Context, path string) ([]byte, error) {
	clean := filepath.Clean(filepath.FromSlash(path))
	if strings.HasPrefix(clean, "..") || filepath.IsAbs(clean) {
		return nil, fmt.Errorf("path %q escapes the repository root", path)
	}
	data, err := os.ReadFile(filepath.Join(t.root, clean))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
