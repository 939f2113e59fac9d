package encryption

import (
	"fmt"
	"io"

	"snapsync/internal/backup"
)

// NoneEncryptor uploads archives unchanged.
type NoneEncryptor struct{}

var _ backup.Encryptor = NoneEncryptor{}

func (NoneEncryptor) Setup(string) error {
	return fmt.Errorf("encryption is disabled in the configuration")
}

func (NoneEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	_, err := io.Copy(w, r)
	return err
}

func (NoneEncryptor) Unlock(string) (backup.DecryptionContext, error) {
	return nil, fmt.Errorf("encryption is disabled in the configuration")
}

func (NoneEncryptor) IsConfigured() bool { return true }

func (NoneEncryptor) Enabled() bool { return false }
