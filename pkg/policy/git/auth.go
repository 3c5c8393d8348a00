package git

import (
	"fmt"
	"os"

	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/go-git/go-git/v5/plumbing/transport/ssh"

	"skuldbot/compliance/pkg/config"
)

// AuthProvider supplies Git transport credentials.
type AuthProvider interface {
	// AuthMethod returns the transport auth, or nil for anonymous access.
	AuthMethod() (transport.AuthMethod, error)

	// Type names the provider for logs.
	Type() string
}

// TokenAuth authenticates HTTPS remotes with an access token.
type TokenAuth struct {
	token string
}

// NewTokenAuth returns a token provider.
func NewTokenAuth(token string) *TokenAuth {
	return &TokenAuth{token: token}
}

// AuthMethod returns basic auth carrying the token as password.
func (a *TokenAuth) AuthMethod() (transport.AuthMethod, error) {
	if a.token == "" {
		return nil, fmt.Errorf("token cannot be empty")
	}
	return &http.BasicAuth{Username: "git", Password: a.token}, nil
}

func (a *TokenAuth) Type() string { return "token" }

// SSHAuth authenticates SSH remotes with a private key.
type SSHAuth struct {
	keyPath    string
	passphrase string
}

// NewSSHAuth returns an SSH key provider.
func NewSSHAuth(keyPath, passphrase string) *SSHAuth {
	return &SSHAuth{keyPath: keyPath, passphrase: passphrase}
}

// AuthMethod loads the key from disk.
func (a *SSHAuth) AuthMethod() (transport.AuthMethod, error) {
	if a.keyPath == "" {
		return nil, fmt.Errorf("ssh key path cannot be empty")
	}
	if _, err := os.Stat(a.keyPath); err != nil {
		return nil, fmt.Errorf("ssh key %q: %w", a.keyPath, err)
	}
	keys, err := ssh.NewPublicKeysFromFile("git", a.keyPath, a.passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to load ssh key: %w", err)
	}
	return keys, nil
}

func (a *SSHAuth) Type() string { return "ssh" }

// NoAuth is used for public repositories.
type NoAuth struct{}

func (NoAuth) AuthMethod() (transport.AuthMethod, error) { return nil, nil }

func (NoAuth) Type() string { return "none" }

// NewAuthProvider builds the provider selected by cfg.Type.
func NewAuthProvider(cfg *config.GitAuthConfig) (AuthProvider, error) {
	if cfg == nil {
		return NoAuth{}, nil
	}
	switch cfg.Type {
	case "", "none":
		return NoAuth{}, nil
	case "token":
		if cfg.Token == "" {
			return nil, fmt.Errorf("token auth requires a token")
		}
		return NewTokenAuth(cfg.Token), nil
	case "ssh":
		if cfg.SSHKeyPath == "" {
			return nil, fmt.Errorf("ssh auth requires ssh_key_path")
		}
		return NewSSHAuth(cfg.SSHKeyPath, cfg.SSHKeyPassphrase), nil
	default:
		return nil, fmt.Errorf("unknown auth type: %s", cfg.Type)
	}
}
