package recorder

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"skuldbot/compliance/pkg/evidence"
)

// HashContent returns the hex SHA-256 of content, or "" for empty content.
func HashContent(content []byte) string {
	if len(content) == 0 {
		return ""
	}
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// HashSection hashes the canonical JSON encoding of a section. Map keys
// are encoded in sorted order and every slice of the section is already
// sorted by the evaluator, so equal sections hash equally.
func HashSection(section *evidence.ComplianceSection) (string, error) {
	data, err := json.Marshal(section)
	if err != nil {
		return "", fmt.Errorf("encode compliance section: %w", err)
	}
	return "sha256:" + HashContent(data), nil
}

// Verify recomputes the hash of a stored record and compares it.
func Verify(record *evidence.Record) error {
	if record.Section == nil {
		return evidence.ErrHashMismatch
	}
	got, err := HashSection(record.Section)
	if err != nil {
		return err
	}
	if got != record.Hash {
		return fmt.Errorf("%w: record %s: stored %s, computed %s", evidence.ErrHashMismatch, record.ID, record.Hash, got)
	}
	return nil
}
