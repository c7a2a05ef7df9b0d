package service

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"

	"github.com/smallbiznis/gymgate/internal/gymconfig/domain"
	"gorm.io/datatypes"
)

const envelopeVersion = 1

// emptyEnvelope stands in for absent settings so the column is never NULL.
const emptyEnvelope = "null"

var errInvalidEnvelope = errors.New("invalid_settings_envelope")

type encryptedPayload struct {
	Version    int    `json:"version"`
	Nonce      string `json:"nonce"`
	Ciphertext string `json:"ciphertext"`
}

type sealer struct {
	key []byte
}

func newSealer(secret string) *sealer {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return &sealer{}
	}
	sum := sha256.Sum256([]byte(secret))
	return &sealer{key: sum[:]}
}

func (s *sealer) gcm() (cipher.AEAD, error) {
	if len(s.key) == 0 {
		return nil, domain.ErrEncryptionKeyMissing
	}
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

func (s *sealer) seal(values map[string]any) (datatypes.JSON, error) {
	if len(values) == 0 {
		return datatypes.JSON(emptyEnvelope), nil
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, domain.ErrInvalidSettings
	}

	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out, err := json.Marshal(encryptedPayload{
		Version:    envelopeVersion,
		Nonce:      base64.RawStdEncoding.EncodeToString(nonce),
		Ciphertext: base64.RawStdEncoding.EncodeToString(gcm.Seal(nil, nonce, payload, nil)),
	})
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func (s *sealer) open(raw datatypes.JSON) (map[string]any, error) {
	if isEmptyEnvelope(raw) {
		return nil, nil
	}
	var envelope encryptedPayload
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Version != envelopeVersion {
		return nil, errInvalidEnvelope
	}
	nonce, err := base64.RawStdEncoding.DecodeString(envelope.Nonce)
	if err != nil {
		return nil, errInvalidEnvelope
	}
	ciphertext, err := base64.RawStdEncoding.DecodeString(envelope.Ciphertext)
	if err != nil {
		return nil, errInvalidEnvelope
	}

	gcm, err := s.gcm()
	if err != nil {
		return nil, err
	}
	if len(nonce) != gcm.NonceSize() {
		return nil, errInvalidEnvelope
	}
	plain, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errInvalidEnvelope
	}

	var values map[string]any
	if err := json.Unmarshal(plain, &values); err != nil {
		return nil, errInvalidEnvelope
	}
	return values, nil
}

func isEmptyEnvelope(raw datatypes.JSON) bool {
	return len(raw) == 0 || string(raw) == emptyEnvelope
}
