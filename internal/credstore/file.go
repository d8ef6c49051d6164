package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/felixgeelhaar/ignite/internal/auth"
)

const (
	tokensFile  = "tokens.json"
	profileFile = "profile.json"
)

// FileStore persists each record as its own file under a directory.
//
// Writes go to a temp file that is synced and renamed over the target, so a
// crash never leaves a half-written record. Files are created with mode 0600.
// When a Sealer is configured, record contents are encrypted at rest.
type FileStore struct {
	dir    string
	sealer *Sealer
	mu     sync.Mutex
}

// FileOption configures a FileStore.
type FileOption func(*FileStore)

// WithSealer encrypts records with s.
func WithSealer(s *Sealer) FileOption {
	return func(f *FileStore) {
		f.sealer = s
	}
}

// NewFileStore creates a file store rooted at dir, creating it if needed.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	if dir == "" {
		return nil, auth.NewError(auth.ErrConfig, "store directory cannot be empty", nil)
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, storageError("create store directory", err)
	}

	f := &FileStore{dir: dir}
	for _, opt := range opts {
		opt(f)
	}
	return f, nil
}

// Dir returns the directory holding the records.
func (f *FileStore) Dir() string {
	return f.dir
}

// SaveTokens writes the pair record.
func (f *FileStore) SaveTokens(ctx context.Context, pair auth.TokenPair) error {
	if !pair.Valid() {
		return auth.NewError(auth.ErrStorage, "token pair must contain both tokens", nil)
	}
	return f.write(tokensFile, pair)
}

// LoadTokens reads the pair record. A record with an empty token loads as absent.
func (f *FileStore) LoadTokens(ctx context.Context) (auth.TokenPair, bool, error) {
	var pair auth.TokenPair
	ok, err := f.read(tokensFile, &pair)
	if err != nil || !ok {
		return auth.TokenPair{}, false, err
	}
	if !pair.Valid() {
		return auth.TokenPair{}, false, nil
	}
	return pair, true, nil
}

// ClearTokens deletes the pair record.
func (f *FileStore) ClearTokens(ctx context.Context) error {
	return f.remove(tokensFile)
}

// SaveProfile writes the profile record.
func (f *FileStore) SaveProfile(ctx context.Context, profile auth.UserProfile) error {
	return f.write(profileFile, profile)
}

// LoadProfile reads the profile record.
func (f *FileStore) LoadProfile(ctx context.Context) (auth.UserProfile, bool, error) {
	var profile auth.UserProfile
	ok, err := f.read(profileFile, &profile)
	if err != nil || !ok {
		return auth.UserProfile{}, false, err
	}
	return profile, true, nil
}

// ClearProfile deletes the profile record.
func (f *FileStore) ClearProfile(ctx context.Context) error {
	return f.remove(profileFile)
}

// Close is a no-op; every write is already durable.
func (f *FileStore) Close() error {
	return nil
}

func (f *FileStore) write(name string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return storageError("encode "+name, err)
	}

	if f.sealer != nil {
		data, err = f.sealer.Seal(data)
		if err != nil {
			return storageError("seal "+name, err)
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	target := filepath.Join(f.dir, name)
	tmp, err := os.CreateTemp(f.dir, name+".*.tmp")
	if err != nil {
		return storageError("create temp file", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return storageError("write "+name, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return storageError("sync "+name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return storageError("close "+name, err)
	}
	if err := os.Chmod(tmpName, 0600); err != nil {
		_ = os.Remove(tmpName)
		return storageError("chmod "+name, err)
	}
	if err := os.Rename(tmpName, target); err != nil {
		_ = os.Remove(tmpName)
		return storageError("rename "+name, err)
	}
	return nil
}

func (f *FileStore) read(name string, v interface{}) (bool, error) {
	f.mu.Lock()
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	f.mu.Unlock()

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, storageError("read "+name, err)
	}

	if f.sealer != nil {
		data, err = f.sealer.Open(data)
		if err != nil {
			return false, storageError("open "+name, err)
		}
	}

	if err := json.Unmarshal(data, v); err != nil {
		return false, storageError("decode "+name, fmt.Errorf("%s: %w", name, err))
	}
	return true, nil
}

func (f *FileStore) remove(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	err := os.Remove(filepath.Join(f.dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return storageError("remove "+name, err)
	}
	return nil
}
