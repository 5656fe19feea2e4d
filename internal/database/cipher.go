package database

import (
	"bytes"
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/example/studytracker/internal/config"
	"github.com/example/studytracker/pkg/models"
)

var (
	sqliteHeader = []byte("SQLite format 3\x00")
	sealedMagic  = []byte("STBKSEAL1")
)

const (
	sealSaltSize = 16
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// xorStream applies repeating-key XOR keyed by SHA-256(passphrase). It is its
// own inverse. This only obfuscates the file; it provides no confidentiality
// against a determined reader and no integrity.
func xorStream(data []byte, passphrase string) []byte {
	key := sha256.Sum256([]byte(passphrase))
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)]
	}
	return out
}

func sealKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, chacha20poly1305.KeySize)
}

// seal encrypts data with XChaCha20-Poly1305 under an argon2id-derived key.
// Layout: magic | salt | nonce | ciphertext.
func seal(data []byte, passphrase string) ([]byte, error) {
	salt := make([]byte, sealSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	aead, err := chacha20poly1305.NewX(sealKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	out := make([]byte, 0, len(sealedMagic)+len(salt)+len(nonce)+len(data)+aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, data, sealedMagic), nil
}

func unseal(data []byte, passphrase string) ([]byte, error) {
	rest := data[len(sealedMagic):]
	if len(rest) < sealSaltSize+chacha20poly1305.NonceSizeX {
		return nil, fmt.Errorf("sealed backup truncated: %w", models.ErrIntegrity)
	}
	salt, rest := rest[:sealSaltSize], rest[sealSaltSize:]
	nonce, ciphertext := rest[:chacha20poly1305.NonceSizeX], rest[chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(sealKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	plain, err := aead.Open(nil, nonce, ciphertext, sealedMagic)
	if err != nil {
		return nil, fmt.Errorf("wrong passphrase or corrupted backup: %w", models.ErrIntegrity)
	}
	return plain, nil
}

// encodeBackup protects a raw store image. An empty passphrase leaves it as is.
func encodeBackup(raw []byte, passphrase, cipher string) ([]byte, error) {
	if passphrase == "" {
		return raw, nil
	}
	switch cipher {
	case config.CipherSealed:
		return seal(raw, passphrase)
	case config.CipherXOR, "":
		return xorStream(raw, passphrase), nil
	default:
		return nil, models.NewValidationError("backup_cipher", fmt.Sprintf("unknown cipher %q", cipher))
	}
}

// decodeBackup recovers a raw store image, detecting the format from its
// leading bytes.
func decodeBackup(data []byte, passphrase string) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, sqliteHeader):
		return data, nil
	case bytes.HasPrefix(data, sealedMagic):
		if passphrase == "" {
			return nil, models.NewValidationError("passphrase", "backup is encrypted")
		}
		return unseal(data, passphrase)
	case passphrase != "":
		raw := xorStream(data, passphrase)
		if !bytes.HasPrefix(raw, sqliteHeader) {
			return nil, fmt.Errorf("wrong passphrase or not a backup file: %w", models.ErrIntegrity)
		}
		return raw, nil
	default:
		return nil, fmt.Errorf("not a backup file: %w", models.ErrIntegrity)
	}
}
