package git

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"skuldbot/compliance/pkg/config"
)

// sourceRepo is a local repository the tests clone from.
type sourceRepo struct {
	t    *testing.T
	dir  string
	repo *gogit.Repository
}

func newSourceRepo(t *testing.T) *sourceRepo {
	t.Helper()
	dir := t.TempDir()
	repo, err := gogit.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("failed to init repo: %v", err)
	}
	s := &sourceRepo{t: t, dir: dir, repo: repo}
	s.commit("initial commit", map[string]string{
		"packs/hipaa.yaml": "id: hipaa\nversion: \"1.0.0\"\n",
		"README.md":        "packs\n",
	})
	return s
}

func (s *sourceRepo) commit(msg string, files map[string]string) string {
	s.t.Helper()
	wt, err := s.repo.Worktree()
	if err != nil {
		s.t.Fatalf("worktree: %v", err)
	}
	for name, content := range files {
		path := filepath.Join(s.dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			s.t.Fatalf("mkdir: %v", err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			s.t.Fatalf("write %s: %v", name, err)
		}
		if _, err := wt.Add(name); err != nil {
			s.t.Fatalf("add %s: %v", name, err)
		}
	}
	hash, err := wt.Commit(msg, &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		s.t.Fatalf("commit: %v", err)
	}
	return hash.String()
}

func (s *sourceRepo) gitConfig(t *testing.T) *config.GitConfig {
	return &config.GitConfig{
		Enabled:    true,
		Repository: s.dir,
		Branch:     "master",
		Path:       "packs",
		Auth:       config.GitAuthConfig{Type: "none"},
		Poll:       config.GitPollConfig{Timeout: 10 * time.Second},
		Clone:      config.GitCloneConfig{LocalPath: t.TempDir()},
	}
}

func TestNewRepository(t *testing.T) {
	tests := []struct {
		name    string
		cfg     *config.GitConfig
		wantErr bool
	}{
		{"nil config", nil, true},
		{"empty url", &config.GitConfig{Branch: "main"}, true},
		{"empty branch", &config.GitConfig{Repository: "https://example.com/packs.git"}, true},
		{"bad auth", &config.GitConfig{Repository: "https://example.com/packs.git", Branch: "main", Auth: config.GitAuthConfig{Type: "kerberos"}}, true},
		{"valid", &config.GitConfig{Repository: "https://example.com/packs.git", Branch: "main"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRepository(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRepository() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRepositoryCloneAndPackFiles(t *testing.T) {
	src := newSourceRepo(t)
	r, err := NewRepository(src.gitConfig(t))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	if err := r.Clone(context.Background()); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}

	files, err := r.PackFiles()
	if err != nil {
		t.Fatalf("PackFiles() error = %v", err)
	}
	if len(files) != 1 || filepath.Base(files[0]) != "hipaa.yaml" {
		t.Errorf("PackFiles() = %v, want [.../hipaa.yaml]", files)
	}

	head, err := r.Head()
	if err != nil {
		t.Fatalf("Head() error = %v", err)
	}
	if head.Message != "initial commit" || head.Branch != "master" {
		t.Errorf("Head() = %+v", head)
	}
}

func TestRepositoryPull(t *testing.T) {
	src := newSourceRepo(t)
	r, err := NewRepository(src.gitConfig(t))
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	ctx := context.Background()
	if err := r.Clone(ctx); err != nil {
		t.Fatalf("Clone() error = %v", err)
	}

	result, err := r.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if result.HadChanges() {
		t.Error("Pull() reported changes on an up-to-date checkout")
	}

	src.commit("add soc2", map[string]string{
		"packs/soc2.yaml": "id: soc2\nversion: \"1.0.0\"\n",
		"docs/notes.yaml": "not a pack\n",
	})

	result, err = r.Pull(ctx)
	if err != nil {
		t.Fatalf("Pull() error = %v", err)
	}
	if !result.HadChanges() {
		t.Fatal("Pull() missed the new commit")
	}
	if len(result.ChangedFiles) != 1 || filepath.Base(result.ChangedFiles[0]) != "soc2.yaml" {
		t.Errorf("ChangedFiles = %v, want only packs/soc2.yaml", result.ChangedFiles)
	}
	if r.Stats().SuccessfulPulls != 2 {
		t.Errorf("SuccessfulPulls = %d, want 2", r.Stats().SuccessfulPulls)
	}
}

func TestRepositoryNotCloned(t *testing.T) {
	r, err := NewRepository(&config.GitConfig{Repository: "https://example.com/packs.git", Branch: "main"})
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	if _, err := r.Pull(context.Background()); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Pull() error = %v, want ErrNotCloned", err)
	}
	if _, err := r.Head(); !errors.Is(err, ErrNotCloned) {
		t.Errorf("Head() error = %v, want ErrNotCloned", err)
	}
}

func TestIsPackFile(t *testing.T) {
	tests := map[string]bool{
		"hipaa.yaml": true,
		"soc2.YML":   true,
		"readme.md":  false,
		"pack.json":  false,
	}
	for path, want := range tests {
		if got := IsPackFile(path); got != want {
			t.Errorf("IsPackFile(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestNewAuthProvider(t *testing.T) {
	tests := []struct {
		cfg      config.GitAuthConfig
		wantType string
		wantErr  bool
	}{
		{config.GitAuthConfig{}, "none", false},
		{config.GitAuthConfig{Type: "none"}, "none", false},
		{config.GitAuthConfig{Type: "token", Token: "ghp_x"}, "token", false},
		{config.GitAuthConfig{Type: "token"}, "", true},
		{config.GitAuthConfig{Type: "ssh", SSHKeyPath: "/keys/id_ed25519"}, "ssh", false},
		{config.GitAuthConfig{Type: "ssh"}, "", true},
		{config.GitAuthConfig{Type: "ldap"}, "", true},
	}

	for _, tt := range tests {
		p, err := NewAuthProvider(&tt.cfg)
		if (err != nil) != tt.wantErr {
			t.Errorf("NewAuthProvider(%+v) error = %v, wantErr %v", tt.cfg, err, tt.wantErr)
			continue
		}
		if err == nil && p.Type() != tt.wantType {
			t.Errorf("NewAuthProvider(%+v).Type() = %q, want %q", tt.cfg, p.Type(), tt.wantType)
		}
	}

	tok, _ := NewTokenAuth("secret").AuthMethod()
	if tok == nil {
		t.Error("token AuthMethod() returned nil")
	}
	if _, err := NewSSHAuth(filepath.Join(t.TempDir(), "missing"), "").AuthMethod(); err == nil {
		t.Error("ssh AuthMethod() with a missing key should fail")
	}
}
