package manager

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/pack/parser"
)

// LoaderConfig controls how pack files are discovered.
type LoaderConfig struct {
	// MaxFileSize is the largest pack file accepted, in bytes.
	MaxFileSize int64

	// Extensions are the accepted pack file extensions.
	Extensions []string

	// FollowSymlinks includes symlinked pack files.
	FollowSymlinks bool

	// SkipHidden ignores dot files and dot directories.
	SkipHidden bool
}

// DefaultLoaderConfig returns the default loader configuration.
func DefaultLoaderConfig() LoaderConfig {
	return LoaderConfig{
		MaxFileSize:    1024 * 1024,
		Extensions:     []string{".yaml", ".yml"},
		FollowSymlinks: true,
		SkipHidden:     true,
	}
}

// Loader reads pack files from disk.
type Loader struct {
	cfg    LoaderConfig
	parser *parser.Parser
}

// NewLoader returns a loader. Zero fields of cfg take their defaults.
func NewLoader(cfg LoaderConfig) *Loader {
	def := DefaultLoaderConfig()
	if cfg.MaxFileSize <= 0 {
		cfg.MaxFileSize = def.MaxFileSize
	}
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = def.Extensions
	}
	return &Loader{
		cfg:    cfg,
		parser: parser.NewParser().WithMaxFileSize(cfg.MaxFileSize),
	}
}

// LoadFile parses a single pack file.
func (l *Loader) LoadFile(path string) (*pack.Pack, error) {
	info, err := os.Stat(path)
	if err != nil {
		switch {
		case os.IsNotExist(err):
			return nil, &LoadError{FilePath: path, Message: "file not found", Cause: err}
		case os.IsPermission(err):
			return nil, &LoadError{FilePath: path, Message: "permission denied", Cause: err}
		default:
			return nil, &LoadError{FilePath: path, Message: "failed to access file", Cause: err}
		}
	}
	if !info.Mode().IsRegular() {
		return nil, &LoadError{FilePath: path, Message: "not a regular file"}
	}

	p, err := l.parser.Parse(path)
	if err != nil {
		return nil, &LoadError{FilePath: path, Message: "invalid pack", Cause: err}
	}
	return p, nil
}

// LoadDirectory parses every pack file below dir. Files that fail are
// reported in a *pack.ErrorList alongside the packs that loaded.
func (l *Loader) LoadDirectory(dir string) ([]*pack.Pack, error) {
	files, err := l.CollectFiles(dir)
	if err != nil {
		return nil, err
	}

	var (
		packs []*pack.Pack
		errs  pack.ErrorList
	)
	for _, f := range files {
		p, err := l.LoadFile(f)
		if err != nil {
			errs.Add(err)
			continue
		}
		packs = append(packs, p)
	}
	return packs, errs.Err()
}

// CollectFiles lists pack files below dir in lexical order.
func (l *Loader) CollectFiles(dir string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, &LoadError{FilePath: dir, Message: "failed to access directory", Cause: err}
	}
	if !info.IsDir() {
		return nil, &LoadError{FilePath: dir, Message: "not a directory"}
	}

	var files []string
	visited := make(map[string]bool)

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if l.cfg.SkipHidden && path != dir && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			if !l.cfg.FollowSymlinks {
				return nil
			}
			real, err := filepath.EvalSymlinks(path)
			if err != nil {
				return &LoadError{FilePath: path, Message: "failed to resolve symlink", Cause: err}
			}
			if visited[real] {
				return nil
			}
			visited[real] = true
			if !l.Accepts(real) {
				return nil
			}
			files = append(files, path)
			return nil
		}

		if l.Accepts(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, &LoadError{FilePath: dir, Message: "failed to walk directory", Cause: err}
	}

	slices.Sort(files)
	return files, nil
}

// Accepts reports whether path has a pack file extension.
func (l *Loader) Accepts(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range l.cfg.Extensions {
		if ext == strings.ToLower(e) {
			return true
		}
	}
	return false
}
