package gateway

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"bill_id":"b_123","status":"PAID"}`)
	secret := "top-secret"

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	validSig := hex.EncodeToString(mac.Sum(nil))

	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}

	macSHA1 := hmac.New(sha1.New, []byte(secret))
	macSHA1.Write(payload)
	validSHA1 := hex.EncodeToString(macSHA1.Sum(nil))
	if !VerifyWebhookSignature(payload, validSHA1, secret) {
		t.Fatalf("expected sha1 fallback signature to validate")
	}
	if VerifyWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
}

func TestVerifyWebhookSignature_MissingInputs(t *testing.T) {
	payload := []byte(`{}`)
	if VerifyWebhookSignature(payload, "", "secret") {
		t.Fatalf("expected missing header to fail")
	}
	if VerifyWebhookSignature(payload, "abcdef", "") {
		t.Fatalf("expected missing secret to fail")
	}
	if VerifyWebhookSignature(payload, "not-hex!", "secret") {
		t.Fatalf("expected non-hex header to fail")
	}
}

func TestVerifyWebhookSignature_TamperedPayload(t *testing.T) {
	secret := "top-secret"
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(`{"bill_id":"b_123","status":"PAID"}`))
	sig := hex.EncodeToString(mac.Sum(nil))

	tampered := []byte(`{"bill_id":"b_123","status":"REJECTED"}`)
	if VerifyWebhookSignature(tampered, sig, secret) {
		t.Fatalf("expected tampered payload to fail verification")
	}
}
