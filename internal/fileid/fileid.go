// Package fileid derives the identifiers recorded for submitted files.
package fileid

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentID returns the hex sha256 of content. Identical files share an identifier,
// which is how repeated attempts are counted.
func ContentID(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}
