package util

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"

	"github.com/google/uuid"
)

// Md5ThenHex is a quick hasher
func Md5ThenHex(value []byte) string {
	sum := md5.Sum(value)
	return hex.EncodeToString(sum[:])
}

// HashUUID fingerprints any json marshalable value as a uuid, so the same
// header structure always reports the same id.
func HashUUID(value any) string {
	raw, err := json.Marshal(value)
	if err != nil {
		return ""
	}
	return Fingerprint(raw)
}

// Fingerprint is a name based (v3, md5) uuid over raw bytes.
func Fingerprint(data []byte) string {
	return uuid.NewMD5(uuid.Nil, data).String()
}

// RunID tags a single command invocation in the logs.
func RunID() string {
	return uuid.NewString()
}
