package utils

const addressLength = 42

// IsValidAddress reports whether s is syntactically an EVM address: "0x"
// followed by exactly 40 hex digits. No checksum is verified.
func IsValidAddress(s string) bool {
	if len(s) != addressLength || s[0] != '0' || s[1] != 'x' {
		return false
	}
	for i := 2; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

func isHexDigit(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
