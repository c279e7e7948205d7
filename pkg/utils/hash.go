package utils

import (
	"crypto/md5"
	"encoding/hex"
)

// HashParts returns the hex md5 of the parts. Each part is followed by a unit
// separator so ("ab", "c") and ("a", "bc") differ.
func HashParts(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0x1f})
	}
	return hex.EncodeToString(h.Sum(nil))
}
