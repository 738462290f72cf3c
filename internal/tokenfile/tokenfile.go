// Package tokenfile handles reading and writing cached sync credentials.
// Token files store an OAuth2 token alongside sync key material (key ID,
// sync key, token server URL). The scheduler only ever reads the cache;
// refreshing credentials is an external re-authentication flow's job.
package tokenfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"

	"github.com/tonimelisma/syncherd/internal/engine"
)

// FilePerms restricts token files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the token directory.
const DirPerms = 0o700

// Sync key material keys within the token file's Meta map.
const (
	MetaKeyID       = "key_id"
	MetaSyncKey     = "sync_key"
	MetaTokenServer = "token_server"
)

// File is the on-disk format for token files: the OAuth token plus sync
// key material. Bare oauth2.Token files without the "token" wrapper are
// not supported; re-login is required.
type File struct {
	Token *oauth2.Token     `json:"token"`
	Meta  map[string]string `json:"meta,omitempty"`
}

// Load reads a saved token file from disk. Returns (nil, nil, nil) if the
// file does not exist; absence of credentials is a normal state, not an
// error.
func Load(path string) (*oauth2.Token, map[string]string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, nil, fmt.Errorf("tokenfile: reading %s: %w", path, err)
	}

	var tf File
	if err := json.Unmarshal(data, &tf); err != nil {
		return nil, nil, fmt.Errorf("tokenfile: decoding %s: %w", path, err)
	}

	if tf.Token == nil {
		return nil, nil, fmt.Errorf("tokenfile: %s missing token field (re-login required)", path)
	}

	return tf.Token, tf.Meta, nil
}

// Save writes a token file to disk atomically (write-to-temp + rename)
// with 0600 permissions. Never logs token values.
func Save(path string, tok *oauth2.Token, meta map[string]string) error {
	tf := File{Token: tok, Meta: meta}

	data, err := json.MarshalIndent(tf, "", "  ")
	if err != nil {
		return fmt.Errorf("tokenfile: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if mkErr := os.MkdirAll(dir, DirPerms); mkErr != nil {
		return fmt.Errorf("tokenfile: creating directory %s: %w", dir, mkErr)
	}

	// Atomic write: temp file in the same directory, then rename.
	// Same directory guarantees same filesystem for rename(2).
	tmp, err := os.CreateTemp(dir, ".token-*.tmp")
	if err != nil {
		return fmt.Errorf("tokenfile: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := os.Chmod(tmpPath, FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: writing: %w", err)
	}

	// Flush to stable storage before rename so a power loss between close
	// and rename cannot leave an empty or partial token file at the final
	// path.
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("tokenfile: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tokenfile: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("tokenfile: renaming: %w", err)
	}

	success = true

	return nil
}

// Provider reads cached credentials from a token file for each attempt.
// It never caches across attempts: the file is the source of truth and an
// external re-authentication flow may rewrite it at any time.
type Provider struct {
	path string
}

// NewProvider creates a Provider over the token file at path.
func NewProvider(path string) *Provider {
	return &Provider{path: path}
}

// Credentials loads the cached credentials. Returns (nil, nil) when no
// token file exists or the cached token has expired; the executor treats
// both as the no-credentials terminal outcome.
func (p *Provider) Credentials(_ context.Context) (*engine.AuthInfo, error) {
	tok, meta, err := Load(p.path)
	if err != nil {
		return nil, err
	}

	if tok == nil || !tok.Valid() {
		return nil, nil //nolint:nilnil // sentinel for "no usable credentials"
	}

	return &engine.AuthInfo{
		AccessToken: tok.AccessToken,
		KeyID:       meta[MetaKeyID],
		SyncKey:     meta[MetaSyncKey],
		TokenServer: meta[MetaTokenServer],
	}, nil
}
