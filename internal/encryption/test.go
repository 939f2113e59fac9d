package encryption

import (
	"bytes"
	"fmt"
	"io"

	"snapsync/internal/backup"
)

// testMagic marks archives written by TestEncryptor.
var testMagic = []byte("SNAPENC1")

// TestEncryptor frames data with a fixed marker instead of encrypting it, so
// uploaded bytes differ from the local archive without any key material.
// Unlock accepts any passphrase except "wrong".
type TestEncryptor struct{}

var _ backup.Encryptor = (*TestEncryptor)(nil)

func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error { return nil }

func (e *TestEncryptor) Encrypt(r io.Reader, w io.Writer) error {
	if _, err := w.Write(testMagic); err != nil {
		return fmt.Errorf("writing marker: %w", err)
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}

func (e *TestEncryptor) Unlock(passphrase string) (backup.DecryptionContext, error) {
	if passphrase == "wrong" {
		return nil, fmt.Errorf("decrypting private key: incorrect passphrase")
	}
	return TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool { return true }

func (e *TestEncryptor) Enabled() bool { return true }

// TestDecryptionContext removes the marker added by TestEncryptor.
type TestDecryptionContext struct{}

var _ backup.DecryptionContext = TestDecryptionContext{}

func (TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	magic := make([]byte, len(testMagic))
	if _, err := io.ReadFull(r, magic); err != nil {
		return fmt.Errorf("reading marker: %w", err)
	}
	if !bytes.Equal(magic, testMagic) {
		return fmt.Errorf("data was not written by the test encryptor")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
