package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainRequest = "sqlcompile/request/v1"
	DomainLiteral = "sqlcompile/literal/v1"
	DomainExact   = "sqlcompile/exact/v1"
)

// HashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
// The null byte separator prevents domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashCanonical marshals v canonically and hashes it under domain.
func HashCanonical(domain string, v any) (string, error) {
	canonical, err := MarshalCanonical(v)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal: %w", domain, err)
	}
	return HashWithDomain(domain, canonical), nil
}

// HashExact hashes the MarshalExact encoding of v under domain.
func HashExact(domain string, v any) (string, error) {
	exact, err := MarshalExact(v)
	if err != nil {
		return "", fmt.Errorf("%s: failed to marshal: %w", domain, err)
	}
	return HashWithDomain(domain, exact), nil
}
