package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainEvent is the domain prefix for delegation audit events.
// The version suffix enables future algorithm migration.
const DomainEvent = "tether/event/v1"

// HashWithDomain computes a SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data). The null byte prevents
// domain/data boundary ambiguity.
func HashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// EventHash computes the content-addressed id of an audit event payload.
// The hash is stable across restarts and replays given the same payload.
func EventHash(payload map[string]any) (string, error) {
	data, err := Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("event hash: %w", err)
	}
	return HashWithDomain(DomainEvent, data), nil
}
