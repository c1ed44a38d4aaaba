package ledger

// AddressLength is the fixed length of a ledger account address.
const AddressLength = 56

// IsValidAddress reports whether s matches the address grammar: exactly 56
// characters, a leading 'V', the rest drawn from the base-32 alphabet
// A-Z 2-7. Pure local check, used as a precondition before any network call.
func IsValidAddress(s string) bool {
	if len(s) != AddressLength {
		return false
	}
	if s[0] != 'V' {
		return false
	}
	for i := 1; i < len(s); i++ {
		c := s[i]
		if (c < 'A' || c > 'Z') && (c < '2' || c > '7') {
			return false
		}
	}
	return true
}
