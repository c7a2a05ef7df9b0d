// Package qr validates time-boxed member QR tokens of the form
// memberID:issuedAtMillis:signature, where signature is the base64url HMAC-SHA256
// of "memberID:issuedAtMillis" under a key derived from the signing secret.
package qr

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/smallbiznis/gymgate/internal/clock"
	"github.com/smallbiznis/gymgate/internal/config"
	"github.com/smallbiznis/gymgate/internal/credential/domain"
	"go.uber.org/zap"
	"golang.org/x/crypto/hkdf"
)

const (
	keyInfo = "gymgate/qr/v1"
	// Used outside production when no secret is configured.
	developmentSecret = "gymgate-development-qr-secret"
)

var ErrSigningSecretMissing = errors.New("qr_signing_secret_missing")

type Validator struct {
	key    []byte
	clock  clock.Clock
	policy *config.AccessPolicyHolder
}

func New(cfg config.Config, clk clock.Clock, policy *config.AccessPolicyHolder, log *zap.Logger) (*Validator, error) {
	secret := cfg.Secrets.QRSigningSecret
	if secret == "" {
		if cfg.IsProduction() {
			return nil, ErrSigningSecretMissing
		}
		log.Named("credential.qr").Warn("QR_SIGNING_SECRET not set, using development secret")
		secret = developmentSecret
	}
	key, err := DeriveKey(secret)
	if err != nil {
		return nil, err
	}
	return NewWithKey(key, clk, policy), nil
}

func NewWithKey(key []byte, clk clock.Clock, policy *config.AccessPolicyHolder) *Validator {
	return &Validator{key: key, clock: clk, policy: policy}
}

// DeriveKey expands the operator secret into the 32-byte HMAC key.
func DeriveKey(secret string) ([]byte, error) {
	key := make([]byte, sha256.Size)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, err
	}
	return key, nil
}

func (v *Validator) Method() domain.Method { return domain.MethodQR }

func (v *Validator) Detail(valid bool) string {
	if valid {
		return "QR validated"
	}
	return "Invalid QR"
}

// Issue mints a token for the member stamped with the current time.
func (v *Validator) Issue(memberID string) string {
	issuedAt := strconv.FormatInt(v.clock.Now().UnixMilli(), 10)
	return memberID + ":" + issuedAt + ":" + v.sign(memberID, issuedAt)
}

// ExpiresAt is when a token issued now stops validating.
func (v *Validator) ExpiresAt() time.Time {
	return v.clock.Now().Add(v.policy.Get().QRValidity)
}

func (v *Validator) Validate(_ context.Context, claim domain.Claim) (bool, error) {
	parts := strings.Split(strings.TrimSpace(claim.QRToken), ":")
	if len(parts) != 3 {
		return false, nil
	}
	memberID, issuedRaw, signature := parts[0], parts[1], parts[2]
	if memberID == "" || memberID != claim.MemberID {
		return false, nil
	}

	issuedAt, err := strconv.ParseInt(issuedRaw, 10, 64)
	if err != nil {
		return false, nil
	}
	age := v.clock.Now().UnixMilli() - issuedAt
	if age < 0 || age > v.policy.Get().QRValidity.Milliseconds() {
		return false, nil
	}

	expected := v.sign(memberID, issuedRaw)
	return hmac.Equal([]byte(signature), []byte(expected)), nil
}

func (v *Validator) sign(memberID, issuedAt string) string {
	mac := hmac.New(sha256.New, v.key)
	_, _ = mac.Write([]byte(memberID + ":" + issuedAt))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
