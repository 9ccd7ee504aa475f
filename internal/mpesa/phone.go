package mpesa

import (
	"strings"
	"unicode"
)

// NormalizeMSISDN rewrites a Kenyan phone number to canonical 254XXXXXXXXX
// form: whitespace is stripped, a national-trunk "0" prefix becomes "254",
// and a leading "+254" loses the plus sign. Any other shape passes through
// unchanged.
func NormalizeMSISDN(phone string) string {
	p := strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, phone)

	switch {
	case strings.HasPrefix(p, "0"):
		p = "254" + p[1:]
	case strings.HasPrefix(p, "+254"):
		p = p[1:]
	}
	return p
}
