package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"skuldbot/compliance/pkg/config"
	"skuldbot/compliance/pkg/pack"
	"skuldbot/compliance/pkg/pack/builtin"
	"skuldbot/compliance/pkg/policy/git"
)

// LoadReport summarizes a load pass.
type LoadReport struct {
	// Registered lists the packs added to the registry.
	Registered []pack.Ref

	// Rejected holds one error per file or pack that was not registered.
	Rejected []error
}

func (r *LoadReport) add(ref pack.Ref, err error) {
	if err != nil {
		r.Rejected = append(r.Rejected, err)
		return
	}
	r.Registered = append(r.Registered, ref)
}

// Manager feeds the registry from the configured pack sources: the
// embedded packs, a pack directory and an optional Git repository.
type Manager struct {
	cfg      config.PacksConfig
	registry *Registry
	loader   *Loader
	logger   *slog.Logger

	gitRepo    *git.Repository
	gitWatcher *git.Watcher

	mu       sync.Mutex
	watching bool
}

// NewManager creates a manager and binds the configured tenants in the
// registry.
func NewManager(cfg *config.Config, registry *Registry, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	m := &Manager{
		cfg:      cfg.Packs,
		registry: registry,
		loader: NewLoader(LoaderConfig{
			MaxFileSize:    cfg.Packs.MaxFileSize,
			FollowSymlinks: true,
			SkipHidden:     true,
		}),
		logger: logger.With("component", "pack-manager"),
	}

	for tenantID, t := range cfg.Tenants {
		refs := make([]pack.Ref, 0, len(t.Packs))
		for _, s := range t.Packs {
			ref, err := pack.ParseRef(s)
			if err != nil {
				return nil, fmt.Errorf("tenant %q: %w", tenantID, err)
			}
			refs = append(refs, ref)
		}
		registry.BindTenant(tenantID, refs)
	}

	if cfg.Packs.Git.Enabled {
		repo, err := git.NewRepository(&cfg.Packs.Git)
		if err != nil {
			return nil, fmt.Errorf("git pack source: %w", err)
		}
		m.gitRepo = repo
	}

	return m, nil
}

// Registry returns the registry the manager feeds.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// Load registers the packs of every configured source. A pack that fails
// to parse, fails validation or reuses a registered version is reported in
// the LoadReport and skipped. The returned error is reserved for sources
// that cannot be read at all.
func (m *Manager) Load(ctx context.Context) (*LoadReport, error) {
	report := &LoadReport{}

	if m.cfg.Builtins {
		packs, err := builtin.Packs(m.cfg.BuiltinNames...)
		if err != nil {
			return nil, fmt.Errorf("built-in packs: %w", err)
		}
		for _, p := range packs {
			report.add(p.Ref(), m.registry.Register(p))
		}
	}

	if m.cfg.Directory != "" {
		files, err := m.loader.CollectFiles(m.cfg.Directory)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			ref, err := m.PublishFile(f)
			report.add(ref, err)
		}
	}

	if m.gitRepo != nil {
		if err := m.gitRepo.Clone(ctx); err != nil {
			return nil, fmt.Errorf("git pack source: %w", err)
		}
		files, err := m.gitRepo.PackFiles()
		if err != nil {
			return nil, fmt.Errorf("git pack source: %w", err)
		}
		for _, f := range files {
			ref, err := m.PublishFile(f)
			report.add(ref, err)
		}
	}

	for _, err := range report.Rejected {
		m.logger.Warn("pack rejected", "error", err)
	}
	m.logger.Info("pack sources loaded",
		"registered", len(report.Registered),
		"rejected", len(report.Rejected),
		"registry_version", m.registry.Version(),
	)
	return report, nil
}

// PublishFile parses the pack at path and registers it.
func (m *Manager) PublishFile(path string) (pack.Ref, error) {
	p, err := m.loader.LoadFile(path)
	if err != nil {
		return pack.Ref{}, err
	}
	if err := m.registry.Register(p); err != nil {
		return p.Ref(), err
	}
	return p.Ref(), nil
}

// Watchable reports whether Watch has a source to follow.
func (m *Manager) Watchable() bool {
	return (m.cfg.Watch && m.cfg.Directory != "") || (m.gitRepo != nil && m.cfg.Git.Poll.Enabled)
}

// Watch publishes pack files as they appear in the pack directory and in
// new Git commits, until ctx is cancelled. Changing a file that holds an
// already registered version is rejected and logged; the registered pack
// stays as it was.
func (m *Manager) Watch(ctx context.Context) error {
	m.mu.Lock()
	if m.watching {
		m.mu.Unlock()
		return fmt.Errorf("watch already started")
	}
	m.watching = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.watching = false
		m.mu.Unlock()
	}()

	if !m.Watchable() {
		return fmt.Errorf("no watchable pack source configured")
	}
	fileWatch := m.cfg.Watch && m.cfg.Directory != ""
	gitWatch := m.gitRepo != nil && m.cfg.Git.Poll.Enabled

	if gitWatch {
		m.gitWatcher = git.NewWatcher(m.gitRepo, m.cfg.Git.Poll.Interval, m.cfg.Git.Poll.Timeout, m.publishFiles)
		m.gitWatcher.SetLogger(m.logger)
		if err := m.gitWatcher.Start(ctx); err != nil {
			return fmt.Errorf("failed to start git watcher: %w", err)
		}
		defer m.gitWatcher.Stop()
	}

	if !fileWatch {
		<-ctx.Done()
		return nil
	}

	fw, err := NewFileWatcher(FileWatcherConfig{
		Path:             m.cfg.Directory,
		DebounceInterval: m.cfg.WatchDebounce,
		Accept:           m.loader.Accepts,
		SkipHidden:       true,
	}, m.logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	return fw.Watch(ctx, func(path string) {
		ref, err := m.PublishFile(path)
		switch {
		case errors.Is(err, ErrDuplicateVersion):
			m.logger.Warn("pack file changed without a new version; change ignored",
				"path", path, "pack", ref.String())
		case err != nil:
			m.logger.Error("pack file rejected", "path", path, "error", err)
		}
	})
}

func (m *Manager) publishFiles(_ context.Context, files []string) error {
	var errs pack.ErrorList
	for _, f := range files {
		if _, err := m.PublishFile(f); err != nil {
			m.logger.Warn("pack file rejected", "path", f, "error", err)
			errs.Add(err)
		}
	}
	return errs.Err()
}
