package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content hashes. The version suffix leaves room for a
// future algorithm change without colliding with old values.
const (
	DomainSnapshot = "hrsync/snapshot/v1"
	DomainView     = "hrsync/view/v1"
)

// hashWithDomain computes SHA256(domain + 0x00 + data).
// The null separator prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SnapshotChecksum returns the checksum stored alongside a persisted
// snapshot blob. Restore refuses blobs whose checksum does not match.
func SnapshotChecksum(blob []byte) string {
	return hashWithDomain(DomainSnapshot, blob)
}

// ViewFingerprint hashes an ordered list of entities.
// Two lists fingerprint equal iff they hold the same entities, with the same
// attributes, in the same order.
func ViewFingerprint(entities []Entity) (string, error) {
	arr := make(IRArray, len(entities))
	for i, e := range entities {
		arr[i] = e.Object()
	}
	canonical, err := MarshalCanonical(arr)
	if err != nil {
		return "", fmt.Errorf("view fingerprint: %w", err)
	}
	return hashWithDomain(DomainView, canonical), nil
}
