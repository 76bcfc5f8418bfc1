package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"homunculus/internal/errs"
)

// VerifySignature checks X-Hub-Signature-256 against the HMAC-SHA256 of the
// raw payload. An empty secret passes everything; the caller is expected to
// have logged the degraded mode at startup.
func VerifySignature(secret string, signatureHeader string, payload []byte) error {
	normalizedSecret := strings.TrimSpace(secret)
	if normalizedSecret == "" {
		return nil
	}

	signature := strings.TrimSpace(signatureHeader)
	if signature == "" {
		return errors.New("missing X-Hub-Signature-256")
	}

	const prefix = "sha256="
	if len(signature) <= len(prefix) || !strings.EqualFold(signature[:len(prefix)], prefix) {
		return errors.New("invalid X-Hub-Signature-256 format")
	}

	decoded, err := hex.DecodeString(strings.TrimSpace(signature[len(prefix):]))
	if err != nil {
		return errors.New("invalid X-Hub-Signature-256 digest")
	}

	mac := hmac.New(sha256.New, []byte(normalizedSecret))
	if _, err := mac.Write(payload); err != nil {
		return errs.Wrap(err, "compute webhook signature")
	}

	if !hmac.Equal(decoded, mac.Sum(nil)) {
		return errors.New("invalid X-Hub-Signature-256")
	}
	return nil
}

// SignBody produces a sha256=<hex> header value for payload. Used by tests
// and the local webhook replay tooling.
func SignBody(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
