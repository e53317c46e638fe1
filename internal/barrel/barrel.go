// Package barrel builds index files that re-export every module of a
// directory.
package barrel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/hupe1980/barrelwatch/internal/logging"
	"github.com/hupe1980/barrelwatch/internal/output"
	"github.com/hupe1980/barrelwatch/internal/workspace"
)

// Defaults for a TypeScript project.
const (
	DefaultExtension = ".ts"
	DefaultIndexStem = "index"
)

// Generator computes and writes index files for one file extension.
type Generator struct {
	ext       string
	indexName string
	logger    *slog.Logger

	// mu serializes writes so two regenerations of one directory cannot
	// interleave their read-compare-write steps.
	mu sync.Mutex
}

// Option configures a Generator.
type Option func(*Generator)

// WithExtension sets the module file extension, including the dot.
func WithExtension(ext string) Option {
	return func(g *Generator) {
		g.ext = ext
	}
}

// WithIndexStem sets the index file name without extension.
func WithIndexStem(stem string) Option {
	return func(g *Generator) {
		g.indexName = stem
	}
}

// WithLogger sets the logger used by Regenerate.
func WithLogger(logger *slog.Logger) Option {
	return func(g *Generator) {
		g.logger = logger
	}
}

// New returns a Generator, by default for "index.ts" files.
func New(opts ...Option) *Generator {
	g := &Generator{
		ext:       DefaultExtension,
		indexName: DefaultIndexStem,
	}

	for _, opt := range opts {
		opt(g)
	}

	g.indexName += g.ext
	g.logger = logging.Component(g.logger, "barrel")

	return g
}

// IndexName returns the generated file name, for example "index.ts".
func (g *Generator) IndexName() string {
	return g.indexName
}

// IndexPath returns the index file path inside dir.
func (g *Generator) IndexPath(dir string) string {
	return filepath.Join(dir, g.indexName)
}

// Exports lists the module specifiers dir's index re-exports, sorted by
// entry name.
func (g *Generator) Exports(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", dir, err)
	}

	var exports []string

	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") || name == workspace.VendorDir {
			continue
		}

		switch {
		case e.IsDir():
			if g.hasIndex(filepath.Join(dir, name)) {
				exports = append(exports, name)
			}
		case e.Type().IsRegular():
			if stem, ok := g.moduleStem(name); ok {
				exports = append(exports, stem)
			}
		}
	}

	return exports, nil
}

// moduleStem returns the import name of a module file, rejecting the
// index itself, declaration files and tests.
func (g *Generator) moduleStem(name string) (string, bool) {
	if !strings.HasSuffix(name, g.ext) || strings.EqualFold(name, g.indexName) {
		return "", false
	}

	stem := strings.TrimSuffix(name, g.ext)

	for _, suffix := range []string{".d", ".test", ".spec"} {
		if strings.HasSuffix(stem, suffix) {
			return "", false
		}
	}

	return stem, stem != ""
}

func (g *Generator) hasIndex(dir string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}

	return slices.ContainsFunc(entries, func(e fs.DirEntry) bool {
		return !e.IsDir() && strings.EqualFold(e.Name(), g.indexName)
	})
}

// Render formats exports as an index file body.
func Render(exports []string) []byte {
	var b strings.Builder

	for _, e := range exports {
		fmt.Fprintf(&b, "export * from './%s';\n", e)
	}

	return []byte(b.String())
}

// Generate returns the index content for dir, or nil when dir has nothing
// to export.
func (g *Generator) Generate(dir string) ([]byte, error) {
	exports, err := g.Exports(dir)
	if err != nil {
		return nil, err
	}

	if len(exports) == 0 {
		return nil, nil
	}

	return Render(exports), nil
}

// Result describes what Write did to one index file.
type Result struct {
	Path    string
	Exports int
	Written bool
}

// Write regenerates dir's index file. An up-to-date index is left alone,
// as is an existing index of a directory with nothing to export.
func (g *Generator) Write(ctx context.Context, dir string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	w := output.NewFileWriter(g.IndexPath(dir), output.WithLogger(g.logger))
	res := Result{Path: w.Path()}

	content, err := g.Generate(dir)
	if err != nil || content == nil {
		return res, err
	}

	res.Exports = strings.Count(string(content), "\n")

	changed, err := w.Changed(content)
	if err != nil || !changed {
		return res, err
	}

	if err := w.Write(content); err != nil {
		return res, err
	}

	res.Written = true

	return res, nil
}

// Regenerate rewrites dir's index and logs the outcome. A directory that
// vanished before the regeneration ran is not an error.
func (g *Generator) Regenerate(ctx context.Context, dir string) {
	res, err := g.Write(ctx, dir)

	switch {
	case errors.Is(err, fs.ErrNotExist):
		g.logger.Debug("directory gone", slog.String("dir", dir))
	case errors.Is(err, context.Canceled):
		g.logger.Debug("regeneration cancelled", slog.String("dir", dir))
	case err != nil:
		g.logger.Error("regenerating index", slog.String("dir", dir), slog.String("error", err.Error()))
	case res.Written:
		g.logger.Info("index regenerated", slog.String("path", res.Path), slog.Int("exports", res.Exports))
	default:
		g.logger.Debug("index up to date", slog.String("path", res.Path))
	}
}

// Diff compares dir's index on disk with its regenerated content.
func (g *Generator) Diff(dir, label string) (*output.DiffResult, error) {
	content, err := g.Generate(dir)
	if err != nil {
		return nil, err
	}

	current, err := output.NewFileWriter(g.IndexPath(dir)).Current()
	if err != nil {
		return nil, err
	}

	if content == nil {
		content = current
	}

	return output.Diff(label, current, content)
}
