// Package git publishes policy packs from a Git repository.
//
// A Repository clones the configured branch and lists the pack files under
// the configured path. A Watcher polls the remote and, when a new commit
// touches pack files, hands the changed files to a SyncFunc. Registration is
// append-only, so the watcher never rolls the checkout back: a file whose
// (id, version) is already registered is rejected by the registry and the
// checkout simply moves on.
//
//	repo, err := git.NewRepository(&cfg.Packs.Git)
//	if err != nil {
//		return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//		return err
//	}
//	w := git.NewWatcher(repo, cfg.Packs.Git.Poll.Interval, cfg.Packs.Git.Poll.Timeout, publish)
//	if err := w.Start(ctx); err != nil {
//		return err
//	}
//	defer w.Stop()
//
// Authentication supports HTTPS tokens, SSH keys and anonymous access.
package git
