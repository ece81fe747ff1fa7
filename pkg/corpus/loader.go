package corpus

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dd0wney/stormcheck/pkg/fbt"
	"github.com/dd0wney/stormcheck/pkg/logging"
	"github.com/dd0wney/stormcheck/pkg/parallel"
)

// Options controls discovery and parsing.
type Options struct {
	// Extensions are matched case-insensitively, including the dot.
	Extensions []string
	// Workers is the parse pool size; 0 selects runtime.NumCPU().
	Workers int
	// IgnoreDirs are directory base names that are never descended into.
	IgnoreDirs []string
}

// DefaultOptions returns the loader defaults.
func DefaultOptions() Options {
	return Options{
		Extensions: []string{".fbt"},
		IgnoreDirs: []string{".git", ".svn", ".vs", "node_modules", "bin", "obj"},
	}
}

// Corpus is every block definition read in one run.
type Corpus struct {
	Root string
	// Blocks is sorted by TypeName and holds unique type names.
	Blocks       []*fbt.BlockDefinition
	Warnings     []Warning
	FilesScanned int
	FilesParsed  int
}

// Loader discovers and parses block files below a root directory.
type Loader struct {
	opts   Options
	logger logging.Logger
	parse  func(path string) (*fbt.BlockDefinition, error)
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(opts Options, logger logging.Logger) *Loader {
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultOptions().Extensions
	}
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Loader{
		opts:   opts,
		logger: logger.With(logging.Component("loader")),
		parse:  fbt.ParseFile,
	}
}

type parseOutcome struct {
	def *fbt.BlockDefinition
	err error
}

// Load reads the corpus. Individual bad files become warnings; only a
// missing root or a corpus where nothing parsed returns an error, always a
// *FatalInputError. Context cancellation is checked between files and
// returned as ctx.Err().
func (l *Loader) Load(ctx context.Context, root string) (*Corpus, error) {
	info, err := os.Stat(root)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, &FatalInputError{Root: root, Err: ErrRootMissing}
	case err != nil:
		return nil, &FatalInputError{Root: root, Err: err}
	case !info.IsDir():
		return nil, &FatalInputError{Root: root, Err: ErrRootNotDir}
	}

	files, warnings, err := l.discover(ctx, root)
	if err != nil {
		return nil, err
	}
	l.logger.Info("Analyzing block files", logging.Path(root), logging.Count(len(files)))

	outcomes, err := l.parseAll(ctx, files)
	if err != nil {
		return nil, err
	}

	c := &Corpus{Root: root, FilesScanned: len(files)}
	byType := make(map[string]*fbt.BlockDefinition, len(files))

	// files is sorted, so "last wins" means the lexically greatest path.
	for i, out := range outcomes {
		path := files[i]
		if out.err != nil {
			warnings = append(warnings, Warning{
				Kind:    WarnParseError,
				Path:    path,
				Message: parseMessage(out.err),
			})
			l.logger.Warn("Skipping malformed block file", logging.Path(path), logging.Error(out.err))
			continue
		}

		c.FilesParsed++
		def := out.def
		if prev, ok := byType[def.TypeName]; ok {
			warnings = append(warnings, Warning{
				Kind:    WarnDuplicateType,
				Path:    path,
				Subject: def.TypeName,
				Message: fmt.Sprintf("type %s already defined in %s; using this definition", def.TypeName, prev.Path),
			})
			l.logger.Warn("Duplicate block type", logging.TypeName(def.TypeName), logging.Path(path))
		}
		byType[def.TypeName] = def
	}

	SortWarnings(warnings)
	c.Warnings = warnings

	if c.FilesParsed == 0 {
		return nil, &FatalInputError{Root: root, Err: ErrNoBlocks, Warnings: warnings}
	}

	c.Blocks = make([]*fbt.BlockDefinition, 0, len(byType))
	for _, def := range byType {
		c.Blocks = append(c.Blocks, def)
	}
	sort.Slice(c.Blocks, func(i, j int) bool {
		return c.Blocks[i].TypeName < c.Blocks[j].TypeName
	})

	l.logger.Debug("Corpus loaded",
		logging.Int("files_scanned", c.FilesScanned),
		logging.Int("files_parsed", c.FilesParsed),
		logging.Int("types", len(c.Blocks)),
		logging.Int("warnings", len(c.Warnings)))

	return c, nil
}

// discover walks root and returns matching files in sorted order.
func (l *Loader) discover(ctx context.Context, root string) ([]string, []Warning, error) {
	ignore := make(map[string]bool, len(l.opts.IgnoreDirs))
	for _, d := range l.opts.IgnoreDirs {
		ignore[d] = true
	}

	var files []string
	var warnings []Warning
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if path == root {
				return err
			}
			warnings = append(warnings, Warning{Kind: WarnParseError, Path: path, Message: err.Error()})
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if path != root && ignore[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		if l.matches(d.Name()) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, &FatalInputError{Root: root, Err: err}
	}

	sort.Strings(files)
	return files, warnings, nil
}

func (l *Loader) matches(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range l.opts.Extensions {
		if ext == strings.ToLower(want) {
			return true
		}
	}
	return false
}

// parseAll parses files on the worker pool. Each task owns one slot of the
// result slice, so no further synchronisation is needed.
func (l *Loader) parseAll(ctx context.Context, files []string) ([]parseOutcome, error) {
	outcomes := make([]parseOutcome, len(files))
	if len(files) == 0 {
		return outcomes, nil
	}

	workers := l.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, len(files))
	pool := parallel.NewWorkerPool(workers, parallel.WithLogger(l.logger))

	for i, path := range files {
		if ctx.Err() != nil {
			break
		}
		pool.Submit(func() {
			if ctx.Err() != nil {
				outcomes[i].err = ctx.Err()
				return
			}
			def, err := l.parse(path)
			outcomes[i] = parseOutcome{def: def, err: err}
			if err == nil {
				l.logger.Debug("Parsed block file", logging.Path(path), logging.TypeName(def.TypeName))
			}
		})
	}
	pool.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i := range outcomes {
		if outcomes[i].def == nil && outcomes[i].err == nil {
			outcomes[i].err = errors.New("parse task did not complete")
		}
	}
	return outcomes, nil
}

// parseMessage drops the path prefix a *fbt.ParseError carries; the warning
// already has the path.
func parseMessage(err error) string {
	var pe *fbt.ParseError
	if errors.As(err, &pe) {
		return pe.Err.Error()
	}
	return err.Error()
}
