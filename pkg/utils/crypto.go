package utils

import (
	"crypto/sha1"
	"encoding/hex"
	"strings"
)

const RangePrefixLength = 5

func SHA1HexUpper(text string) string {
	sum := sha1.Sum([]byte(text))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// RangeKey splits the SHA-1 of text into the public range prefix and the private suffix.
func RangeKey(text string) (prefix, suffix string) {
	h := SHA1HexUpper(text)
	return h[:RangePrefixLength], h[RangePrefixLength:]
}
