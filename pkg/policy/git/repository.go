package git

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"skuldbot/compliance/pkg/config"
)

// ErrNotCloned is returned by operations that need a local checkout.
var ErrNotCloned = errors.New("repository not cloned")

// Repository is a local checkout of a pack repository.
type Repository struct {
	cfg       config.GitConfig
	localPath string
	auth      AuthProvider

	mu    sync.RWMutex
	repo  *gogit.Repository
	stats RepositoryStats
}

// NewRepository validates cfg and prepares a checkout. Nothing is cloned
// until Clone is called.
func NewRepository(cfg *config.GitConfig) (*Repository, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if cfg.Repository == "" {
		return nil, fmt.Errorf("repository URL cannot be empty")
	}
	if cfg.Branch == "" {
		return nil, fmt.Errorf("branch cannot be empty")
	}

	auth, err := NewAuthProvider(&cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	localPath := cfg.Clone.LocalPath
	if localPath == "" {
		localPath = filepath.Join(os.TempDir(), "compliance-packs")
	}

	return &Repository{
		cfg:       *cfg,
		localPath: localPath,
		auth:      auth,
	}, nil
}

// Clone clones the configured branch, or opens an existing checkout at the
// local path unless CleanOnStart is set.
func (r *Repository) Clone(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	start := time.Now()
	defer func() { r.stats.CloneDuration = time.Since(start) }()

	if r.cfg.Clone.CleanOnStart {
		if err := os.RemoveAll(r.localPath); err != nil {
			return fmt.Errorf("failed to clean local checkout: %w", err)
		}
	}

	if _, err := os.Stat(filepath.Join(r.localPath, ".git")); err == nil {
		repo, err := gogit.PlainOpen(r.localPath)
		if err != nil {
			return fmt.Errorf("failed to open existing checkout: %w", err)
		}
		r.repo = repo
		return nil
	}

	if err := os.MkdirAll(r.localPath, 0o755); err != nil {
		return fmt.Errorf("failed to create checkout directory: %w", err)
	}

	auth, err := r.auth.AuthMethod()
	if err != nil {
		return fmt.Errorf("failed to get auth: %w", err)
	}

	opts := &gogit.CloneOptions{
		URL:           r.cfg.Repository,
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Depth:         r.cfg.Clone.Depth,
		Auth:          auth,
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	repo, err := gogit.PlainCloneContext(ctx, r.localPath, false, opts)
	if err != nil {
		return fmt.Errorf("failed to clone %s: %w", r.cfg.Repository, err)
	}
	r.repo = repo
	return nil
}

// Pull fast-forwards the checkout and reports the pack files that changed.
func (r *Repository) Pull(ctx context.Context) (*PullResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}

	start := time.Now()
	defer func() {
		r.stats.LastPullTime = time.Now()
		r.stats.LastPullDur = time.Since(start)
	}()

	head, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}
	from := head.Hash().String()

	worktree, err := r.repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("failed to get worktree: %w", err)
	}
	auth, err := r.auth.AuthMethod()
	if err != nil {
		return nil, fmt.Errorf("failed to get auth: %w", err)
	}

	pullCtx, cancel := r.withTimeout(ctx)
	defer cancel()

	err = worktree.PullContext(pullCtx, &gogit.PullOptions{
		RemoteName:    "origin",
		ReferenceName: plumbing.NewBranchReferenceName(r.cfg.Branch),
		SingleBranch:  true,
		Auth:          auth,
	})
	if err != nil && !errors.Is(err, gogit.NoErrAlreadyUpToDate) {
		r.stats.FailedPulls++
		return nil, fmt.Errorf("failed to pull: %w", err)
	}
	r.stats.SuccessfulPulls++

	head, err = r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}
	result := &PullResult{FromSHA: from, ToSHA: head.Hash().String()}

	if result.HadChanges() {
		files, err := r.changedFiles(from, result.ToSHA)
		if err != nil {
			return nil, err
		}
		result.ChangedFiles = files
		r.stats.LastCommitSHA = result.ToSHA
	}
	return result, nil
}

// Head returns the checked-out commit.
func (r *Repository) Head() (*CommitInfo, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	ref, err := r.repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to read HEAD: %w", err)
	}
	commit, err := r.repo.CommitObject(ref.Hash())
	if err != nil {
		return nil, fmt.Errorf("failed to read commit: %w", err)
	}
	return r.commitInfo(commit), nil
}

// PackFiles lists pack files below the pack directory, sorted.
// Hidden files and directories are skipped.
func (r *Repository) PackFiles() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root := r.packDir()
	if _, err := os.Stat(root); err != nil {
		return nil, fmt.Errorf("pack path: %w", err)
	}

	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") && path != root {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() && IsPackFile(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk pack directory: %w", err)
	}
	slices.Sort(files)
	return files, nil
}

// ChangedFiles returns the pack files added or modified between two
// commits, as absolute paths inside the checkout.
func (r *Repository) ChangedFiles(fromSHA, toSHA string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.repo == nil {
		return nil, ErrNotCloned
	}
	return r.changedFiles(fromSHA, toSHA)
}

func (r *Repository) changedFiles(fromSHA, toSHA string) ([]string, error) {
	fromTree, err := r.tree(fromSHA)
	if err != nil {
		return nil, err
	}
	toTree, err := r.tree(toSHA)
	if err != nil {
		return nil, err
	}

	changes, err := fromTree.Diff(toTree)
	if err != nil {
		return nil, fmt.Errorf("failed to diff trees: %w", err)
	}

	prefix := filepath.ToSlash(filepath.Clean(r.cfg.Path))
	var files []string
	for _, ch := range changes {
		name := ch.To.Name
		if name == "" {
			continue
		}
		if prefix != "." && prefix != "" && !strings.HasPrefix(name, prefix+"/") {
			continue
		}
		if !IsPackFile(name) {
			continue
		}
		files = append(files, filepath.Join(r.localPath, filepath.FromSlash(name)))
	}
	slices.Sort(files)
	return files, nil
}

func (r *Repository) tree(sha string) (*object.Tree, error) {
	commit, err := r.repo.CommitObject(plumbing.NewHash(sha))
	if err != nil {
		return nil, fmt.Errorf("commit %s: %w", shortSHA(sha), err)
	}
	tree, err := commit.Tree()
	if err != nil {
		return nil, fmt.Errorf("tree of %s: %w", shortSHA(sha), err)
	}
	return tree, nil
}

// PackDir is the directory inside the checkout that holds pack files.
func (r *Repository) PackDir() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.packDir()
}

func (r *Repository) packDir() string {
	return filepath.Join(r.localPath, r.cfg.Path)
}

// Stats returns a copy of the repository counters.
func (r *Repository) Stats() RepositoryStats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}

func (r *Repository) commitInfo(c *object.Commit) *CommitInfo {
	return &CommitInfo{
		SHA:       c.Hash.String(),
		Author:    c.Author.Name,
		Email:     c.Author.Email,
		Timestamp: c.Author.When,
		Message:   strings.TrimSpace(c.Message),
		Branch:    r.cfg.Branch,
	}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.Poll.Timeout > 0 {
		return context.WithTimeout(ctx, r.cfg.Poll.Timeout)
	}
	return context.WithCancel(ctx)
}

// IsPackFile reports whether path has a pack file extension.
func IsPackFile(path string) bool {
	return slices.Contains(PackExtensions, strings.ToLower(filepath.Ext(path)))
}
