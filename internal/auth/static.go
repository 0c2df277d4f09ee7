// ABOUTME: Named persistent tokens: raw value shown once at mint, only
// ABOUTME: the bcrypt hash persisted to a YAML file in the data dir.

package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// tokenPrefix marks raw static tokens so other credential shapes can be
// skipped without a bcrypt comparison.
const tokenPrefix = "grim_"

var (
	ErrTokenExists  = errors.New("token name already exists")
	ErrUnknownToken = errors.New("no token with that name")
)

type staticEntry struct {
	Name         string    `yaml:"name"`
	Hash         string    `yaml:"hash"`
	Capabilities []string  `yaml:"capabilities,omitempty"`
	CreatedAt    time.Time `yaml:"created_at"`
}

type tokensFile struct {
	Tokens []staticEntry `yaml:"tokens"`
}

// TokenInfo is the listable view of one stored token. The raw value is
// never recoverable from it.
type TokenInfo struct {
	Name         string
	Capabilities []string
	CreatedAt    time.Time
}

// StaticTokenStore holds named tokens backed by a YAML file. All methods
// are safe for concurrent use.
type StaticTokenStore struct {
	mu      sync.Mutex
	path    string
	entries []staticEntry
}

// OpenStaticTokenStore loads the store at path. A missing file is an
// empty store; the file is created on first mint.
func OpenStaticTokenStore(path string) (*StaticTokenStore, error) {
	s := &StaticTokenStore{path: path}
	raw, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading token file: %w", err)
	}
	var f tokensFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parsing token file %s: %w", path, err)
	}
	s.entries = f.Tokens
	return s, nil
}

// Mint creates a named token and returns its raw value. The raw value is
// not stored and cannot be shown again.
func (s *StaticTokenStore) Mint(name string, capabilities []string) (string, error) {
	if name == "" {
		return "", errors.New("token name is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.Name == name {
			return "", fmt.Errorf("%w: %q", ErrTokenExists, name)
		}
	}

	raw := tokenPrefix + uuid.New().String()
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing token: %w", err)
	}
	s.entries = append(s.entries, staticEntry{
		Name:         name,
		Hash:         string(hash),
		Capabilities: append([]string(nil), capabilities...),
		CreatedAt:    time.Now().UTC(),
	})
	if err := s.save(); err != nil {
		s.entries = s.entries[:len(s.entries)-1]
		return "", err
	}
	return raw, nil
}

// Verify compares a raw token against every stored hash and returns the
// matching entry's name.
func (s *StaticTokenStore) Verify(token string) (string, error) {
	if !strings.HasPrefix(token, tokenPrefix) {
		return "", ErrInvalidToken
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if bcrypt.CompareHashAndPassword([]byte(e.Hash), []byte(token)) == nil {
			return e.Name, nil
		}
	}
	return "", ErrInvalidToken
}

// Revoke removes the named token and persists the change.
func (s *StaticTokenStore) Revoke(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.Name == name {
			s.entries = append(s.entries[:i], s.entries[i+1:]...)
			return s.save()
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownToken, name)
}

// List returns every stored token, mint order preserved.
func (s *StaticTokenStore) List() []TokenInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TokenInfo, len(s.entries))
	for i, e := range s.entries {
		out[i] = TokenInfo{
			Name:         e.Name,
			Capabilities: append([]string(nil), e.Capabilities...),
			CreatedAt:    e.CreatedAt,
		}
	}
	return out
}

// CapabilitiesFor returns the capability set stored for the named token,
// or nil when the token is unknown or unrestricted.
func (s *StaticTokenStore) CapabilitiesFor(name string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.Name == name {
			return append([]string(nil), e.Capabilities...)
		}
	}
	return nil
}

func (s *StaticTokenStore) save() error {
	raw, err := yaml.Marshal(tokensFile{Tokens: s.entries})
	if err != nil {
		return fmt.Errorf("encoding token file: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("creating token dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("writing token file: %w", err)
	}
	return nil
}
