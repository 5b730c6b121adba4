// Small helpers shared between the conversion pipeline and the output
// assembler which do not belong to any of them.
package common

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeISBN normalizes and validates an ISBN.
//
// Accepts ISBN-10 (including an 'X' check digit) and ISBN-13, is forgiving
// about hyphens and spaces. Empty input is not an error, it simply means no
// ISBN is available.
func NormalizeISBN(in string) (string, error) {
	s := strings.TrimSpace(in)
	if s == "" {
		return "", nil
	}

	// Be forgiving about common separators.
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '-' || unicode.IsSpace(r):
			return -1
		default:
			return r
		}
	}, s)
	s = strings.ToUpper(s)

	switch len(s) {
	case 10:
		if !isbn10CheckOK(s) {
			return "", fmt.Errorf("invalid ISBN-10 check digit in %q", in)
		}
	case 13:
		if !isbn13CheckOK(s) {
			return "", fmt.Errorf("invalid ISBN-13 check digit in %q", in)
		}
	default:
		return "", fmt.Errorf("isbn must be 10 or 13 characters, got %d", len(s))
	}
	return s, nil
}

func isbn10CheckOK(s string) bool {
	sum := 0
	for i := 0; i < 10; i++ {
		c := s[i]
		var v int
		switch {
		case c >= '0' && c <= '9':
			v = int(c - '0')
		case c == 'X' && i == 9:
			v = 10
		default:
			return false
		}
		sum += (10 - i) * v
	}
	return sum%11 == 0
}

func isbn13CheckOK(s string) bool {
	sum := 0
	for i := 0; i < 13; i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return false
		}
		v := int(c - '0')
		if i%2 == 1 {
			v *= 3
		}
		sum += v
	}
	return sum%10 == 0
}
