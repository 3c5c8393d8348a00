package git

import "time"

// PackExtensions are the file extensions treated as pack files.
var PackExtensions = []string{".yaml", ".yml"}

// CommitInfo describes a commit of the pack repository.
type CommitInfo struct {
	SHA       string    `json:"sha"`
	Author    string    `json:"author"`
	Email     string    `json:"email"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
	Branch    string    `json:"branch"`
}

// Short returns the abbreviated commit hash.
func (c *CommitInfo) Short() string {
	return shortSHA(c.SHA)
}

// PullResult describes a pull.
type PullResult struct {
	FromSHA string
	ToSHA   string

	// ChangedFiles are repository-relative paths added or modified
	// between FromSHA and ToSHA. Deleted files are not listed.
	ChangedFiles []string
}

// HadChanges reports whether the pull moved HEAD.
func (r *PullResult) HadChanges() bool {
	return r.FromSHA != r.ToSHA
}

// RepositoryStats tracks Git operations.
type RepositoryStats struct {
	CloneDuration   time.Duration
	LastPullTime    time.Time
	LastPullDur     time.Duration
	LastCommitSHA   string
	SuccessfulPulls int64
	FailedPulls     int64
}

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Polls        int64
	Syncs        int64
	FailedSyncs  int64
	SkippedPolls int64
	LastSyncTime time.Time
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}
