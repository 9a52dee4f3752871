package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// ErrAlreadyEncrypted is returned by EnableEncryption on an encrypted directory
var ErrAlreadyEncrypted = errors.New("encryption is already enabled")

// ErrNotEncrypted is returned by DisableEncryption on a plaintext directory
var ErrNotEncrypted = errors.New("encryption is not enabled")

// EnableEncryption seals every data file under the directory with password
func (s *Storage) EnableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.encrypted {
		return ErrAlreadyEncrypted
	}
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters", MinPasswordLength)
	}

	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return fmt.Errorf("create recipient: %w", err)
	}
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return fmt.Errorf("create identity: %w", err)
	}

	verifyPath := filepath.Join(s.baseDir, verifyFile)
	sealed, err := seal([]byte(verifyMagic), recipient)
	if err != nil {
		return fmt.Errorf("encrypt verification file: %w", err)
	}
	if err := os.WriteFile(verifyPath, sealed, 0600); err != nil {
		return fmt.Errorf("write verification file: %w", err)
	}

	files, err := s.collect(func(path string, data []byte) bool {
		return s.shouldEncrypt(path) && !isAgeEncrypted(data)
	})
	if err != nil {
		os.Remove(verifyPath)
		return fmt.Errorf("scan data directory: %w", err)
	}

	for i, path := range files {
		if err := rewrite(path, func(data []byte) ([]byte, error) { return seal(data, recipient) }); err != nil {
			s.rollback(files[:i], identity)
			os.Remove(verifyPath)
			return fmt.Errorf("encrypt %s: %w", filepath.Base(path), err)
		}
	}

	if err := os.WriteFile(filepath.Join(s.baseDir, markerFile), []byte("encrypted"), 0644); err != nil {
		return fmt.Errorf("create marker file: %w", err)
	}

	s.encrypted = true
	s.identity = identity
	s.recipient = recipient
	s.logger.Info().Int("files", len(files)).Msg("encryption enabled")
	return nil
}

// DisableEncryption decrypts every sealed file; password must match
func (s *Storage) DisableEncryption(password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.encrypted {
		return ErrNotEncrypted
	}

	identity, _, err := s.checkPassword(password)
	if err != nil {
		return err
	}

	files, err := s.collect(func(_ string, data []byte) bool {
		return isAgeEncrypted(data)
	})
	if err != nil {
		return fmt.Errorf("scan data directory: %w", err)
	}

	for _, path := range files {
		if filepath.Base(path) == verifyFile {
			continue
		}
		if err := rewrite(path, func(data []byte) ([]byte, error) { return open(data, identity) }); err != nil {
			return fmt.Errorf("decrypt %s: %w", filepath.Base(path), err)
		}
	}

	os.Remove(filepath.Join(s.baseDir, markerFile))
	os.Remove(filepath.Join(s.baseDir, verifyFile))

	s.encrypted = false
	s.identity = nil
	s.recipient = nil
	s.logger.Info().Int("files", len(files)).Msg("encryption disabled")
	return nil
}

// collect walks the data directory and returns files matching keep
func (s *Storage) collect(keep func(path string, data []byte) bool) ([]string, error) {
	var files []string
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			s.logger.Warn().Err(err).Str("file", path).Msg("skipping unreadable file")
			return nil
		}
		if keep(path, data) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

// rewrite transforms a file in place
func rewrite(path string, transform func([]byte) ([]byte, error)) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	out, err := transform(data)
	if err != nil {
		return err
	}
	return atomicWrite(path, out, info.Mode().Perm())
}

// rollback best-effort decrypts files sealed by a failed EnableEncryption
func (s *Storage) rollback(files []string, identity *age.ScryptIdentity) {
	for _, path := range files {
		err := rewrite(path, func(data []byte) ([]byte, error) {
			if !isAgeEncrypted(data) {
				return data, nil
			}
			return open(data, identity)
		})
		if err != nil {
			s.logger.Error().Err(err).Str("file", path).Msg("rollback failed")
		}
	}
}
