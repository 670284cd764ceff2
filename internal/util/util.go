// Package util provides small shared helpers.
package util

import (
	"encoding/hex"

	"lukechampine.com/blake3"
)

// Blake3HashHex returns the hex-encoded BLAKE3-256 digest of content.
func Blake3HashHex(content []byte) string {
	sum := blake3.Sum256(content)
	return hex.EncodeToString(sum[:])
}
