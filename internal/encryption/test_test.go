package encryption

import (
	"bytes"
	"testing"
)

func TestTestEncryptor_EncryptDecrypt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "binary data", input: []byte{0x00, 0xff, 0x01, 0xfe}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewTestEncryptor()

			var encrypted bytes.Buffer
			if err := e.Encrypt(bytes.NewReader(tt.input), &encrypted); err != nil {
				t.Fatalf("Encrypt() error = %v", err)
			}
			if bytes.Equal(encrypted.Bytes(), tt.input) {
				t.Error("encrypted output is identical to plaintext")
			}

			dctx, err := e.Unlock("anything")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var decrypted bytes.Buffer
			if err := dctx.Decrypt(&encrypted, &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("Decrypt() = %q, want %q", decrypted.Bytes(), tt.input)
			}
		})
	}
}

func TestTestEncryptor_Unlock(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()

	if _, err := e.Unlock("wrong"); err == nil {
		t.Error("Unlock(\"wrong\") expected error")
	}
	if !e.IsConfigured() || !e.Enabled() {
		t.Error("TestEncryptor should be configured and enabled")
	}
}

func TestTestDecryptionContext_RejectsForeignData(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "plaintext", input: []byte("definitely not framed")},
		{name: "too short", input: []byte("SNAP")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := (TestDecryptionContext{}).Decrypt(bytes.NewReader(tt.input), &out); err == nil {
				t.Error("Decrypt() expected error")
			}
		})
	}
}
