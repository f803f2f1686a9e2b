package wallet

import (
	"regexp"
	"strings"

	"golang.org/x/crypto/sha3"
)

var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// ValidAddress checks the hex shape and, when the address carries mixed case,
// its checksum encoding.
func ValidAddress(address string) bool {
	addr := strings.TrimSpace(address)
	if !addressPattern.MatchString(addr) {
		return false
	}
	hexPart := addr[2:]
	if hexPart == strings.ToLower(hexPart) || hexPart == strings.ToUpper(hexPart) {
		return true
	}
	return ChecksumAddress(addr) == addr
}

// ChecksumAddress returns the checksum-cased form of a hex account address.
// Input shape is the caller's responsibility.
func ChecksumAddress(address string) string {
	addr := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(address), "0x"))

	h := sha3.NewLegacyKeccak256()
	_, _ = h.Write([]byte(addr))
	hash := h.Sum(nil)

	out := make([]byte, len(addr))
	for i := 0; i < len(addr); i++ {
		c := addr[i]
		if c >= 'a' && c <= 'f' {
			nibble := hash[i/2]
			if i%2 == 0 {
				nibble >>= 4
			}
			if nibble&0x0f >= 8 {
				c = c - 'a' + 'A'
			}
		}
		out[i] = c
	}
	return "0x" + string(out)
}

// EqualAddresses compares two account addresses case-insensitively.
func EqualAddresses(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
