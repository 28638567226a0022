// Package filelicense persists license settings in the application's JSON settings file.
package filelicense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gofrs/flock"

	"github.com/streamdesk/streamdesk/internal/cmn/logger/tag"
	"github.com/streamdesk/streamdesk/internal/license"
)

const (
	// EnvAuthority overrides every other source of the authority address.
	EnvAuthority = "LICENSE_SERVER"

	keyLicense       = "license"
	keyLicenseServer = "licenseServer"

	dirPerm  = 0700
	filePerm = 0600
)

var (
	_ license.ConfigStore = (*Store)(nil)
	_ license.Watcher     = (*Store)(nil)
)

// Settings is the part of the settings document owned by the license subsystem.
type Settings struct {
	LicenseServer string                 `json:"licenseServer,omitempty"`
	License       *license.LicenseConfig `json:"license,omitempty"`
}

// Store implements license.ConfigStore on top of a JSON settings file that
// other parts of the application also write to. Keys it does not own are
// preserved on every write.
type Store struct {
	path          string
	defaultServer string
	logger        *slog.Logger
	mu            sync.RWMutex
}

// Option configures a Store.
type Option func(*Store)

// WithDefaultAuthority sets the address used when neither the environment
// nor the settings file name one.
func WithDefaultAuthority(addr string) Option {
	return func(s *Store) {
		if addr != "" {
			s.defaultServer = addr
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates a store backed by the settings file at path.
func New(path string, opts ...Option) *Store {
	s := &Store{
		path:          filepath.Clean(path),
		defaultServer: license.DefaultAuthorityURL,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the settings file location.
func (s *Store) Path() string {
	return s.path
}

// Load reads the license settings from disk.
// Returns an empty Settings when the file does not exist. Each key is decoded
// on its own, so a malformed licenseServer does not hide a valid license; the
// bad value is logged and left empty.
func (s *Store) Load() (*Settings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.readDocument()
	if err != nil {
		return nil, err
	}

	var settings Settings
	if raw, ok := doc[keyLicenseServer]; ok {
		if err := json.Unmarshal(raw, &settings.LicenseServer); err != nil {
			s.logger.Warn("Ignoring malformed license server setting",
				tag.File(s.path),
				tag.Error(err),
			)
			settings.LicenseServer = ""
		}
	}
	if raw, ok := doc[keyLicense]; ok {
		if err := json.Unmarshal(raw, &settings.License); err != nil {
			return nil, fmt.Errorf("failed to unmarshal %s: %w", keyLicense, err)
		}
	}
	return &settings, nil
}

// ReadConfig implements license.ConfigStore. Any read or parse error is
// logged and reported as no license.
func (s *Store) ReadConfig() *license.LicenseConfig {
	settings, err := s.Load()
	if err != nil {
		s.logger.Warn("Failed to read license settings", tag.File(s.path), tag.Error(err))
		return nil
	}
	if !settings.License.IsConfigured() {
		return nil
	}
	return settings.License
}

// ResolveAuthorityAddress implements license.ConfigStore. The first non-empty
// value of the environment override, the settings file and the built-in
// default wins.
func (s *Store) ResolveAuthorityAddress() string {
	if addr := strings.TrimSpace(os.Getenv(EnvAuthority)); addr != "" {
		return addr
	}
	if settings, err := s.Load(); err == nil {
		if addr := strings.TrimSpace(settings.LicenseServer); addr != "" {
			return addr
		}
	}
	return s.defaultServer
}

// SaveLicense records the domain and license key, leaving the rest of the
// settings document untouched.
func (s *Store) SaveLicense(domain, licenseKey string) error {
	cfg := license.LicenseConfig{
		Domain:     strings.TrimSpace(domain),
		LicenseKey: strings.TrimSpace(licenseKey),
	}
	if !cfg.IsConfigured() {
		return fmt.Errorf("domain and license key are required")
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal license settings: %w", err)
	}

	return s.update(func(doc map[string]json.RawMessage) bool {
		doc[keyLicense] = raw
		return true
	})
}

// ClearLicense removes the recorded license, leaving the rest of the settings
// document untouched.
func (s *Store) ClearLicense() error {
	return s.update(func(doc map[string]json.RawMessage) bool {
		if _, ok := doc[keyLicense]; !ok {
			return false
		}
		delete(doc, keyLicense)
		return true
	})
}

// update applies fn to the current document and writes it back when fn
// reports a change. The read-modify-write holds both the in-process mutex and
// an advisory file lock, since other processes share the settings file.
func (s *Store) update(fn func(doc map[string]json.RawMessage) bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), dirPerm); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}
	lock := flock.New(s.lockPath())
	if err := lock.Lock(); err != nil {
		return fmt.Errorf("failed to lock settings file: %w", err)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("Failed to unlock settings file", tag.File(s.lockPath()), tag.Error(err))
		}
	}()

	doc, err := s.readDocument()
	if err != nil {
		return err
	}
	if !fn(doc) {
		return nil
	}
	return s.writeDocument(doc)
}

func (s *Store) lockPath() string {
	return s.path + ".lock"
}

// Watch calls onChange whenever the settings file is created, written,
// replaced or removed. It blocks until ctx is done.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create settings watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// The directory is watched so atomic replacements of the file are seen.
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	s.logger.Debug("Watching license settings", tag.File(s.path))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != s.path {
				continue
			}
			if event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
				event.Has(fsnotify.Rename) || event.Has(fsnotify.Remove) {
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Settings watcher error", tag.File(s.path), tag.Error(err))
		}
	}
}

// readDocument must be called with mu held.
func (s *Store) readDocument() (map[string]json.RawMessage, error) {
	data, err := os.ReadFile(s.path) //nolint:gosec // path is constructed from trusted config dir
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]json.RawMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return map[string]json.RawMessage{}, nil
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings file: %w", err)
	}
	if doc == nil {
		doc = map[string]json.RawMessage{}
	}
	return doc, nil
}

// writeDocument must be called with mu and the file lock held. The file is replaced atomically.
func (s *Store) writeDocument(doc map[string]json.RawMessage) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("failed to create settings directory: %w", err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal settings: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary settings file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write settings file: %w", err)
	}
	if err := tmp.Chmod(filePerm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to set settings file permissions: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close settings file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("failed to replace settings file: %w", err)
	}
	return nil
}
