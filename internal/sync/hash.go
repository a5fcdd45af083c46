package sync

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// CanonicalHash digests JSON bytes after whitespace compaction. Equal values
// serialized from canonical payload structs produce equal digests.
func CanonicalHash(raw []byte) string {
	compacted := &bytes.Buffer{}
	if err := json.Compact(compacted, raw); err != nil {
		digest := sha256.Sum256(raw)
		return hex.EncodeToString(digest[:])
	}
	digest := sha256.Sum256(compacted.Bytes())
	return hex.EncodeToString(digest[:])
}

// payloadHash returns the deterministic digest of a canonicalized payload.
// Canonical payloads are structs with a fixed field order, so encoding/json
// produces stable bytes for equal values.
func payloadHash(canonical interface{}) (string, error) {
	encoded, err := json.Marshal(canonical)
	if err != nil {
		return "", err
	}
	return CanonicalHash(encoded), nil
}

// rawHash digests raw payload bytes as uploaded. Used to cheaply recognize a
// byte-identical retry of a payload that already failed validation.
func rawHash(raw []byte) string {
	return CanonicalHash(raw)
}
