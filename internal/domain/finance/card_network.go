package finance

import (
	"strconv"
	"strings"
	"unicode"
)

// CardNetwork identifies the scheme a card account number belongs to
type CardNetwork string

const (
	CardNetworkVisa       CardNetwork = "visa"
	CardNetworkMastercard CardNetwork = "mastercard"
	CardNetworkAmex       CardNetwork = "amex"
	CardNetworkDiners     CardNetwork = "diners"
	CardNetworkJCB        CardNetwork = "jcb"
	CardNetworkDiscover   CardNetwork = "discover"
	CardNetworkUnknown    CardNetwork = "unknown"
)

// IsValid returns true if the network is one of the defined outcomes
func (n CardNetwork) IsValid() bool {
	switch n {
	case CardNetworkVisa, CardNetworkMastercard, CardNetworkAmex, CardNetworkDiners,
		CardNetworkJCB, CardNetworkDiscover, CardNetworkUnknown:
		return true
	default:
		return false
	}
}

// String returns the string representation of CardNetwork
func (n CardNetwork) String() string {
	return string(n)
}

// DisplayName returns the label shown on card tiles and receipts
func (n CardNetwork) DisplayName() string {
	switch n {
	case CardNetworkVisa:
		return "Visa"
	case CardNetworkMastercard:
		return "Mastercard"
	case CardNetworkAmex:
		return "American Express"
	case CardNetworkDiners:
		return "Diners Club"
	case CardNetworkJCB:
		return "JCB"
	case CardNetworkDiscover:
		return "Discover"
	default:
		return "Card"
	}
}

// networkRule matches a normalized account number.
// Rules are evaluated in order and the first match wins, since several
// two-digit prefixes are claimed by more than one scheme.
type networkRule struct {
	network CardNetwork
	match   func(pan string) bool
}

var networkRules = []networkRule{
	{CardNetworkVisa, func(p string) bool { return strings.HasPrefix(p, "4") }},
	{CardNetworkMastercard, func(p string) bool {
		return strings.HasPrefix(p, "5") || prefixInRange(p, 4, 2221, 2720)
	}},
	{CardNetworkAmex, func(p string) bool { return hasAnyPrefix(p, "34", "37") }},
	{CardNetworkDiners, func(p string) bool { return hasAnyPrefix(p, "36", "38") }},
	{CardNetworkDiners, func(p string) bool { return strings.HasPrefix(p, "30") }},
	{CardNetworkJCB, func(p string) bool { return strings.HasPrefix(p, "35") }},
	{CardNetworkDiscover, func(p string) bool {
		return hasAnyPrefix(p, "60", "65") ||
			prefixInRange(p, 6, 622126, 622925) ||
			prefixInRange(p, 3, 644, 649)
	}},
}

// ClassifyCardNetwork returns the network of a primary account number.
// Whitespace anywhere in the input is ignored.
func ClassifyCardNetwork(pan string) CardNetwork {
	normalized := stripWhitespace(pan)
	for _, rule := range networkRules {
		if rule.match(normalized) {
			return rule.network
		}
	}
	return CardNetworkUnknown
}

func stripWhitespace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}

func hasAnyPrefix(s string, prefixes ...string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

// prefixInRange reports whether the first n characters of s parse as an
// integer within [lo, hi].
func prefixInRange(s string, n int, lo, hi int) bool {
	if len(s) < n {
		return false
	}
	v, err := strconv.Atoi(s[:n])
	if err != nil {
		return false
	}
	return v >= lo && v <= hi
}

// digitsOnly reports whether s is non-empty and made only of ASCII digits
func digitsOnly(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// lastDigits returns the trailing n digits of s, ignoring any non-digit characters
func lastDigits(s string, n int) string {
	digits := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			digits = append(digits, s[i])
		}
	}
	if len(digits) <= n {
		return string(digits)
	}
	return string(digits[len(digits)-n:])
}
