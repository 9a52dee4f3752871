package storage

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"filippo.io/age"
)

// seal encrypts data to a scrypt recipient
func seal(data []byte, recipient *age.ScryptRecipient) ([]byte, error) {
	var buf bytes.Buffer

	w, err := age.Encrypt(&buf, recipient)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}

// open decrypts age data with a scrypt identity
func open(data []byte, identity *age.ScryptIdentity) ([]byte, error) {
	r, err := age.Decrypt(bytes.NewReader(data), identity)
	if err != nil {
		return nil, err
	}
	return io.ReadAll(r)
}

// checkPassword opens the verify file with password.
// Caller must hold s.mu.
func (s *Storage) checkPassword(password string) (*age.ScryptIdentity, *age.ScryptRecipient, error) {
	identity, err := age.NewScryptIdentity(password)
	if err != nil {
		return nil, nil, fmt.Errorf("create identity: %w", err)
	}
	recipient, err := age.NewScryptRecipient(password)
	if err != nil {
		return nil, nil, fmt.Errorf("create recipient: %w", err)
	}

	sealed, err := os.ReadFile(filepath.Join(s.baseDir, verifyFile))
	if err != nil {
		return nil, nil, fmt.Errorf("read verification file: %w", err)
	}

	plain, err := open(sealed, identity)
	if err != nil || string(plain) != verifyMagic {
		return nil, nil, ErrIncorrectPassword
	}

	return identity, recipient, nil
}
