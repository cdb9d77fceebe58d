package devices

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"golang.org/x/crypto/nacl/secretbox"
)

const (
	keyFile        = "key.enc"
	credentialFile = "credential.enc"
	tokenFile      = "token.enc"

	nonceSize = 24
	keySize   = 32
)

// ErrVaultEmpty is returned when the requested entry has never been sealed.
var ErrVaultEmpty = errors.New("vault entry not found")

// Vault keeps small secrets encrypted at rest under one directory. The key
// file is generated on first use.
type Vault struct {
	dir string

	mu  sync.Mutex
	key *[keySize]byte
}

func NewVault(dir string) *Vault {
	return &Vault{dir: dir}
}

// Seal encrypts data and writes it to the named entry.
func (v *Vault) Seal(name string, data []byte) error {
	key, err := v.loadKey()
	if err != nil {
		return err
	}

	var nonce [nonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return fmt.Errorf("generate nonce: %w", err)
	}
	sealed := secretbox.Seal(nonce[:], data, &nonce, key)

	if err := writeFileAtomic(filepath.Join(v.dir, name), sealed); err != nil {
		return fmt.Errorf("write vault entry %s: %w", name, err)
	}
	return nil
}

// Open decrypts the named entry.
func (v *Vault) Open(name string) ([]byte, error) {
	raw, err := os.ReadFile(filepath.Join(v.dir, name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrVaultEmpty
		}
		return nil, fmt.Errorf("read vault entry %s: %w", name, err)
	}
	if len(raw) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("vault entry %s is truncated", name)
	}

	key, err := v.loadKey()
	if err != nil {
		return nil, err
	}
	var nonce [nonceSize]byte
	copy(nonce[:], raw[:nonceSize])
	plain, ok := secretbox.Open(nil, raw[nonceSize:], &nonce, key)
	if !ok {
		return nil, fmt.Errorf("vault entry %s cannot be decrypted", name)
	}
	return plain, nil
}

// Has reports whether the named entry exists.
func (v *Vault) Has(name string) bool {
	_, err := os.Stat(filepath.Join(v.dir, name))
	return err == nil
}

func (v *Vault) loadKey() (*[keySize]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.key != nil {
		return v.key, nil
	}

	path := filepath.Join(v.dir, keyFile)
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		if len(raw) != keySize {
			return nil, fmt.Errorf("vault key %s has %d bytes, want %d", path, len(raw), keySize)
		}
	case errors.Is(err, os.ErrNotExist):
		raw = make([]byte, keySize)
		if _, err := io.ReadFull(rand.Reader, raw); err != nil {
			return nil, fmt.Errorf("generate vault key: %w", err)
		}
		if err := writeFileAtomic(path, raw); err != nil {
			return nil, fmt.Errorf("write vault key: %w", err)
		}
	default:
		return nil, fmt.Errorf("read vault key: %w", err)
	}

	var key [keySize]byte
	copy(key[:], raw)
	v.key = &key
	return v.key, nil
}

func writeFileAtomic(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".vault-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
