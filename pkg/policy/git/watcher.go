package git

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// SyncFunc receives the pack files changed by a new commit.
type SyncFunc func(ctx context.Context, files []string) error

// Watcher polls the remote and publishes changed pack files.
type Watcher struct {
	repo     *Repository
	interval time.Duration
	timeout  time.Duration
	sync     SyncFunc
	logger   *slog.Logger

	mu         sync.Mutex
	running    bool
	stopCh     chan struct{}
	doneCh     chan struct{}
	lastCommit string
	stats      WatcherStats
}

// NewWatcher returns a watcher polling every interval; timeout bounds each
// pull.
func NewWatcher(repo *Repository, interval, timeout time.Duration, fn SyncFunc) *Watcher {
	return &Watcher{
		repo:     repo,
		interval: interval,
		timeout:  timeout,
		sync:     fn,
		logger:   slog.Default().With("component", "git-watcher"),
	}
}

// SetLogger replaces the watcher's logger.
func (w *Watcher) SetLogger(logger *slog.Logger) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.logger = logger
}

// Start records the current HEAD and starts polling in the background.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return fmt.Errorf("watcher already running")
	}
	head, err := w.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to read initial commit: %w", err)
	}

	w.lastCommit = head.SHA
	w.running = true
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	w.logger.Info("git watcher started",
		"interval", w.interval,
		"commit", head.Short(),
	)

	go w.loop(ctx, w.stopCh, w.doneCh)
	return nil
}

// Stop ends polling and waits for the loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return fmt.Errorf("watcher not running")
	}
	w.running = false
	stopCh, doneCh := w.stopCh, w.doneCh
	w.mu.Unlock()

	close(stopCh)
	<-doneCh
	return nil
}

// Running reports whether the watcher is polling.
func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Watcher) loop(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				w.logger.Error("git poll failed", "error", err)
			}
		}
	}
}

// Poll pulls once and publishes any changed pack files.
func (w *Watcher) Poll(ctx context.Context) error {
	w.mu.Lock()
	w.stats.Polls++
	w.mu.Unlock()

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	result, err := w.repo.Pull(ctx)
	if err != nil {
		return err
	}
	if !result.HadChanges() {
		return nil
	}

	w.mu.Lock()
	w.lastCommit = result.ToSHA
	if len(result.ChangedFiles) == 0 {
		w.stats.SkippedPolls++
		w.mu.Unlock()
		w.logger.Debug("new commit without pack changes", "commit", shortSHA(result.ToSHA))
		return nil
	}
	w.mu.Unlock()

	w.logger.Info("publishing packs from new commit",
		"from", shortSHA(result.FromSHA),
		"to", shortSHA(result.ToSHA),
		"files", len(result.ChangedFiles),
	)

	err = w.sync(ctx, result.ChangedFiles)

	w.mu.Lock()
	w.stats.LastSyncTime = time.Now()
	if err != nil {
		w.stats.FailedSyncs++
	} else {
		w.stats.Syncs++
	}
	w.mu.Unlock()

	if err != nil {
		return fmt.Errorf("publishing packs from %s: %w", shortSHA(result.ToSHA), err)
	}
	return nil
}

// LastCommit returns the most recent commit seen by the watcher.
func (w *Watcher) LastCommit() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastCommit
}

// Stats returns a copy of the watcher counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}
