package security_test

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/Rrens/bi-assistant/internal/domain"
	"github.com/Rrens/bi-assistant/internal/security"
)

func testKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestEncryptor_EncryptDecrypt(t *testing.T) {
	encryptor, err := security.NewEncryptor(testKey())
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"empty", ""},
		{"short", "hello"},
		{"history", `{"query":"show low stock","response":"Widget A: 5 units"}`},
		{"unicode", "unicode: 日本語 中文 🎉"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ciphertext, err := encryptor.Encrypt([]byte(tt.plaintext))
			if err != nil {
				t.Fatalf("encrypt failed: %v", err)
			}

			decrypted, err := encryptor.Decrypt(ciphertext)
			if err != nil {
				t.Fatalf("decrypt failed: %v", err)
			}

			if string(decrypted) != tt.plaintext {
				t.Errorf("decrypted text does not match: got %q, want %q", decrypted, tt.plaintext)
			}
		})
	}
}

func TestEncryptor_JSONSnapshot(t *testing.T) {
	encryptor, err := security.NewEncryptorFromSecret("archive-secret")
	if err != nil {
		t.Fatalf("failed to create encryptor: %v", err)
	}

	snap := domain.SessionSnapshot{
		SessionID: "s1",
		Persona:   domain.PersonaFieldEngineer,
		History: []domain.Interaction{
			{Query: "pump P-7 status?", Response: "offline since 09:00", Timestamp: time.Unix(1700000000, 0).UTC()},
		},
	}

	sealed, err := encryptor.EncryptJSON(snap)
	if err != nil {
		t.Fatalf("encrypt json failed: %v", err)
	}
	if bytes.Contains(sealed, []byte("pump P-7")) {
		t.Error("ciphertext leaks plaintext")
	}

	var got domain.SessionSnapshot
	if err := encryptor.DecryptJSON(sealed, &got); err != nil {
		t.Fatalf("decrypt json failed: %v", err)
	}
	if got.SessionID != "s1" || got.Persona != domain.PersonaFieldEngineer || len(got.History) != 1 {
		t.Errorf("unexpected snapshot: %+v", got)
	}
	if !got.History[0].Timestamp.Equal(snap.History[0].Timestamp) {
		t.Errorf("timestamp mismatch: got %v, want %v", got.History[0].Timestamp, snap.History[0].Timestamp)
	}
}

func TestNewEncryptorFromSecret(t *testing.T) {
	if _, err := security.NewEncryptorFromSecret(""); !errors.Is(err, security.ErrEmptySecret) {
		t.Errorf("expected ErrEmptySecret, got %v", err)
	}

	a, _ := security.NewEncryptorFromSecret("secret-a")
	a2, _ := security.NewEncryptorFromSecret("secret-a")
	b, _ := security.NewEncryptorFromSecret("secret-b")

	ciphertext, err := a.Encrypt([]byte("payload"))
	if err != nil {
		t.Fatalf("encrypt failed: %v", err)
	}

	if _, err := a2.Decrypt(ciphertext); err != nil {
		t.Errorf("same secret should derive the same key: %v", err)
	}
	if _, err := b.Decrypt(ciphertext); err == nil {
		t.Error("different secret should not decrypt")
	}
}

func TestEncryptor_InvalidKeyLength(t *testing.T) {
	for _, n := range []int{0, 15, 17, 31, 33} {
		if _, err := security.NewEncryptor(make([]byte, n)); err == nil {
			t.Errorf("expected error for key length %d, got nil", n)
		}
	}
}

func TestEncryptor_DifferentCiphertexts(t *testing.T) {
	encryptor, _ := security.NewEncryptor(testKey())
	plaintext := []byte("same plaintext")

	ciphertext1, _ := encryptor.Encrypt(plaintext)
	ciphertext2, _ := encryptor.Encrypt(plaintext)

	// Same plaintext should produce different ciphertexts (due to random nonce)
	if bytes.Equal(ciphertext1, ciphertext2) {
		t.Error("expected different ciphertexts for same plaintext")
	}
}

func TestEncryptor_TamperedCiphertext(t *testing.T) {
	encryptor, _ := security.NewEncryptor(testKey())
	ciphertext, _ := encryptor.Encrypt([]byte("payload"))
	ciphertext[len(ciphertext)-1] ^= 0xFF

	if _, err := encryptor.Decrypt(ciphertext); err == nil {
		t.Error("expected error for tampered ciphertext")
	}
	if _, err := encryptor.Decrypt([]byte("short")); err == nil {
		t.Error("expected error for short ciphertext")
	}
}
