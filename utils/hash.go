package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// FileHash returns the md5 hex digest of raw file content. Used as the
// secondary duplicate check during ingestion; not a security boundary.
func FileHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
