package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
)

// Service — симметричное шифрование приватных ключей для хранения в БД.
// XChaCha20-Poly1305, nonce случайный и кладётся перед шифртекстом,
// наружу — base64 (std). Формат непрозрачен для остальных пакетов.
type Service struct {
	key []byte
}

var ErrBadKey = errors.New("crypto: key must be 32 bytes (base64)")

// New принимает ключ в base64 (32 байта после декодирования).
// Пустой ключ — сгенерировать эфемерный (режим разработки: после
// рестарта расшифровать старые записи не выйдет).
func New(b64key string) (*Service, error) {
	if b64key == "" {
		k := make([]byte, chacha20poly1305.KeySize)
		if _, err := rand.Read(k); err != nil {
			return nil, err
		}
		return &Service{key: k}, nil
	}
	k, err := base64.StdEncoding.DecodeString(b64key)
	if err != nil || len(k) != chacha20poly1305.KeySize {
		return nil, ErrBadKey
	}
	return &Service{key: k}, nil
}

func (s *Service) Encrypt(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	ct := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ct), nil
}

func (s *Service) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("crypto: bad ciphertext encoding: %w", err)
	}
	aead, err := chacha20poly1305.NewX(s.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", errors.New("crypto: ciphertext too short")
	}
	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, nil)
	if err != nil {
		return "", fmt.Errorf("crypto: decrypt failed: %w", err)
	}
	return string(pt), nil
}

// GenerateKey — новый случайный ключ в base64 (для первичной настройки).
func GenerateKey() (string, error) {
	k := make([]byte, chacha20poly1305.KeySize)
	if _, err := rand.Read(k); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(k), nil
}
