package domain

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
)

// InstrumentID derives the stable identifier for an instrument from its
// canonical attribute tuple (source, data type, symbol and, for paired
// instruments, quote currency). Attributes are lowercased and trimmed before
// hashing so incidental formatting differences between runs or providers
// never change the identifier. The result is a 32 character hex digest.
func InstrumentID(source, dataType, symbol, quote string) string {
	parts := []string{canon(source), canon(dataType), canon(symbol)}
	if q := canon(quote); q != "" {
		parts = append(parts, q)
	}
	sum := md5.Sum([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func canon(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
