// Package workspace answers filesystem questions relative to a workspace
// root: relative path computation, glob expansion of folder patterns and
// directory checks.
package workspace

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// VendorDir is the dependency directory excluded from every glob,
// whatever the pattern says.
const VendorDir = "node_modules"

// Workspace is rooted at an absolute directory.
type Workspace struct {
	root string
	fsys fs.FS
}

// New returns a Workspace rooted at root, which is made absolute.
func New(root string) (*Workspace, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root %q: %w", root, err)
	}

	return &Workspace{root: abs, fsys: os.DirFS(abs)}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// Rel returns p relative to the workspace root using forward slashes.
// Paths outside the workspace and already relative paths are returned
// unchanged apart from cleaning. The root itself is ".".
func (w *Workspace) Rel(p string) string {
	if !filepath.IsAbs(p) {
		return filepath.ToSlash(filepath.Clean(p))
	}

	rel, err := filepath.Rel(w.root, filepath.Clean(p))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return filepath.Clean(p)
	}

	return filepath.ToSlash(rel)
}

// Abs resolves p against the workspace root.
func (w *Workspace) Abs(p string) string {
	if filepath.IsAbs(p) {
		return filepath.Clean(p)
	}

	return filepath.Join(w.root, filepath.FromSlash(p))
}

// Glob expands patterns against the workspace. Files and directories both
// match, anything below a VendorDir segment is dropped, and results are
// deduplicated in first-seen order. Relative patterns yield workspace
// relative results; absolute patterns yield absolute results. An invalid
// pattern fails the whole expansion.
func (w *Workspace) Glob(ctx context.Context, patterns []string) ([]string, error) {
	seen := make(map[string]struct{})

	var matches []string

	for _, pattern := range patterns {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		found, err := w.glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("expanding pattern %q: %w", pattern, err)
		}

		for _, m := range found {
			if vendored(m) {
				continue
			}

			if _, dup := seen[m]; dup {
				continue
			}

			seen[m] = struct{}{}
			matches = append(matches, m)
		}
	}

	return matches, nil
}

func (w *Workspace) glob(pattern string) ([]string, error) {
	if filepath.IsAbs(pattern) {
		return doublestar.FilepathGlob(pattern)
	}

	found, err := doublestar.Glob(w.fsys, path.Clean(filepath.ToSlash(pattern)))
	if err != nil {
		return nil, err
	}

	for i, m := range found {
		found[i] = filepath.FromSlash(m)
	}

	return found, nil
}

// IsDir reports whether p names a directory. Symlinks are not followed and
// any stat failure, including a missing path, reports false.
func (w *Workspace) IsDir(p string) bool {
	info, err := os.Lstat(w.Abs(p))
	if err != nil {
		return false
	}

	return info.IsDir()
}

func vendored(p string) bool {
	for _, segment := range strings.Split(filepath.ToSlash(p), "/") {
		if segment == VendorDir {
			return true
		}
	}

	return false
}
