package backup

import "io"

// Encryptor encrypts archives on their way to the remote source and unlocks
// the key needed to bring them back. Encrypting needs only the public key;
// decrypting needs the passphrase that protects the private key.
type Encryptor interface {
	// Setup generates a key pair once, writing the public key in plaintext
	// and the private key protected by passphrase. Run by `snapsync keys init`.
	Setup(passphrase string) error

	// Encrypt reads plaintext from r and writes ciphertext to w.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key with passphrase. It fails when the
	// passphrase is wrong.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured reports whether the key files exist.
	IsConfigured() bool

	// Enabled reports whether Encrypt changes the data at all. Archives
	// written through a disabled encryptor are not marked as encrypted.
	Enabled() bool
}

// DecryptionContext holds an unlocked private key in memory for the length
// of one restore. It is never written to disk.
type DecryptionContext interface {
	// Decrypt reads ciphertext from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}
