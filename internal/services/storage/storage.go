package storage

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"filippo.io/age"
	"github.com/rs/zerolog"
)

const (
	// ageHeader prefixes every age-encrypted file
	ageHeader = "age-encryption.org"

	// markerFile exists while the data directory is encrypted
	markerFile = ".encrypted"

	// verifyFile holds verifyMagic sealed with the directory password
	verifyFile = ".encryption-verify"

	verifyMagic = `{"magic":"healthdash-encryption-verify","version":1}`

	// MinPasswordLength is the shortest accepted encryption password
	MinPasswordLength = 8
)

var (
	// ErrLocked is returned when an encrypted file is read before Unlock
	ErrLocked = errors.New("storage is locked")

	// ErrIncorrectPassword is returned when the password does not open the verify file
	ErrIncorrectPassword = errors.New("incorrect password")
)

// dataExtensions are the file types sealed at rest
var dataExtensions = map[string]bool{
	".csv":     true,
	".parquet": true,
	".xlsx":    true,
}

// Storage gives transparent access to a data directory that may be age-encrypted
type Storage struct {
	baseDir   string
	encrypted bool
	identity  *age.ScryptIdentity
	recipient *age.ScryptRecipient
	logger    zerolog.Logger
	mu        sync.RWMutex
}

// New opens the data directory, creating it when absent
func New(baseDir string, logger zerolog.Logger) (*Storage, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	s := &Storage{
		baseDir: baseDir,
		logger:  logger.With().Str("component", "storage").Logger(),
	}

	if _, err := os.Stat(filepath.Join(baseDir, markerFile)); err == nil {
		s.encrypted = true
		s.logger.Info().Str("dir", baseDir).Msg("data directory is encrypted")
	}

	return s, nil
}

// BaseDir returns the data directory
func (s *Storage) BaseDir() string {
	return s.baseDir
}

// Path joins name onto the data directory
func (s *Storage) Path(name string) string {
	return filepath.Join(s.baseDir, name)
}

// IsEncrypted reports whether the data directory is encrypted
func (s *Storage) IsEncrypted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.encrypted
}

// IsUnlocked reports whether files can be read
func (s *Storage) IsUnlocked() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.encrypted || s.identity != nil
}

// Unlock derives the key from password and checks it against the verify file
func (s *Storage) Unlock(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return nil
	}

	identity, recipient, err := s.checkPassword(password)
	if err != nil {
		return err
	}

	s.identity = identity
	s.recipient = recipient
	s.logger.Info().Msg("storage unlocked")
	return nil
}

// Lock forgets the key
func (s *Storage) Lock() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.identity = nil
	s.recipient = nil
}

// ReadFile reads path, decrypting it when sealed
func (s *Storage) ReadFile(path string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	if !isAgeEncrypted(data) {
		return data, nil
	}
	if s.identity == nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), ErrLocked)
	}
	return open(data, s.identity)
}

// OpenFile returns a reader over the plaintext of path
func (s *Storage) OpenFile(path string) (io.ReadCloser, error) {
	data, err := s.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// WriteFile writes data atomically, sealing data files while encryption is on
func (s *Storage) WriteFile(path string, data []byte, perm os.FileMode) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.encrypted && s.shouldEncrypt(path) {
		if s.recipient == nil {
			return fmt.Errorf("%s: %w", filepath.Base(path), ErrLocked)
		}
		sealed, err := seal(data, s.recipient)
		if err != nil {
			return fmt.Errorf("encrypt %s: %w", filepath.Base(path), err)
		}
		data = sealed
	}

	return atomicWrite(path, data, perm)
}

// Stat returns file info for path
func (s *Storage) Stat(path string) (os.FileInfo, error) {
	return os.Stat(path)
}

// shouldEncrypt reports whether path holds patient data
func (s *Storage) shouldEncrypt(path string) bool {
	base := filepath.Base(path)
	if base == markerFile || base == verifyFile {
		return false
	}
	return dataExtensions[strings.ToLower(filepath.Ext(path))]
}

// atomicWrite writes through a temp file and renames it into place
func atomicWrite(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

func isAgeEncrypted(data []byte) bool {
	return bytes.HasPrefix(data, []byte(ageHeader))
}
