package webhook

import (
	"strings"
	"testing"
)

func TestVerifySignature_Valid(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"action":"opened"}`)

	if err := VerifySignature(secret, SignBody(secret, body), body); err != nil {
		t.Fatalf("VerifySignature() error = %v", err)
	}
}

func TestVerifySignature_FlippedBodyByte(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"action":"opened"}`)
	header := SignBody(secret, body)

	tampered := []byte(`{"action":"opened!"}`)
	if err := VerifySignature(secret, header, tampered); err == nil {
		t.Fatalf("VerifySignature() accepted tampered body")
	}
}

func TestVerifySignature_FlippedSignatureByte(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{"action":"opened"}`)
	header := SignBody(secret, body)

	last := header[len(header)-1]
	replacement := byte('0')
	if last == replacement {
		replacement = '1'
	}
	tampered := header[:len(header)-1] + string(replacement)

	if err := VerifySignature(secret, tampered, body); err == nil {
		t.Fatalf("VerifySignature() accepted tampered signature")
	}
}

func TestVerifySignature_HeaderErrors(t *testing.T) {
	secret := "test-secret"
	body := []byte(`{}`)

	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "wrong prefix", header: "sha1=deadbeef"},
		{name: "no digest", header: "sha256="},
		{name: "not hex", header: "sha256=zzzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifySignature(secret, tt.header, body); err == nil {
				t.Fatalf("VerifySignature(%q) accepted", tt.header)
			}
		})
	}
}

func TestVerifySignature_EmptySecretPassesEverything(t *testing.T) {
	body := []byte(`{}`)

	if err := VerifySignature("", "", body); err != nil {
		t.Fatalf("VerifySignature() with empty secret error = %v", err)
	}
	if err := VerifySignature("  ", "sha256=deadbeef", body); err != nil {
		t.Fatalf("VerifySignature() with blank secret error = %v", err)
	}
}

func TestSignBody_Format(t *testing.T) {
	header := SignBody("s", []byte("x"))
	if !strings.HasPrefix(header, "sha256=") {
		t.Fatalf("SignBody() = %q, want sha256= prefix", header)
	}
	if len(header) != len("sha256=")+64 {
		t.Fatalf("SignBody() digest length = %d", len(header))
	}
}
