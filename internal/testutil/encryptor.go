package testutil

import (
	"snapsync/internal/backup"
	"snapsync/internal/encryption"
)

// NewTestEncryptor creates a reversible, keyless encryptor for testing.
func NewTestEncryptor() backup.Encryptor {
	return encryption.NewTestEncryptor()
}
