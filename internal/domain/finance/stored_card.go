package finance

import (
	"regexp"
	"time"

	"github.com/google/uuid"
)

// StoredCard is a tokenized card kept by the card storage collaborator.
// The PAN and CVV are never part of it.
type StoredCard struct {
	ID         uuid.UUID   `json:"id"`
	MemberID   uuid.UUID   `json:"member_id"`
	Network    CardNetwork `json:"network"`
	Last4      string      `json:"last4"`
	HolderName string      `json:"holder_name"`
	Expiry     string      `json:"expiry"`
	IsDefault  bool        `json:"is_default"`
	Remember   bool        `json:"remember"`
	Token      string      `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`
}

// Label is the short description used on schedules and receipts
func (c StoredCard) Label() string {
	return c.Network.DisplayName() + " •••• " + c.Last4
}

var expiryPattern = regexp.MustCompile(`^(0[1-9]|1[0-2])/\d{2}$`)

// NewCardDraft holds raw card input until it is tokenized
type NewCardDraft struct {
	Number     string `json:"number"`
	Expiry     string `json:"expiry"`
	CVV        string `json:"cvv"`
	HolderName string `json:"holder_name"`
	Remember   bool   `json:"remember"`
}

// PAN returns the account number with whitespace removed
func (d NewCardDraft) PAN() string {
	return stripWhitespace(d.Number)
}

// Masked returns the draft with everything but the last four digits hidden,
// safe for logs and session views
func (d NewCardDraft) Masked() NewCardDraft {
	pan := d.PAN()
	masked := d
	masked.Number = ""
	if len(pan) > 4 {
		masked.Number = "•••• " + pan[len(pan)-4:]
	}
	masked.CVV = ""
	return masked
}

// IsValidExpiry reports whether s is an MM/YY expiry with month 01-12
func IsValidExpiry(s string) bool {
	return expiryPattern.MatchString(stripWhitespace(s))
}

// ValidateNewCardDraft checks a draft before tokenization is attempted.
// Account number: 13 to 19 digits. Expiry: MM/YY with month 01-12. CVV: 3 or 4 digits.
func ValidateNewCardDraft(d NewCardDraft) []FieldIssue {
	var issues []FieldIssue
	pan := d.PAN()
	if !digitsOnly(pan) || len(pan) < 13 || len(pan) > 19 {
		issues = append(issues, FieldIssue{Field: "number", Message: "Card number must be 13 to 19 digits"})
	}
	if !IsValidExpiry(d.Expiry) {
		issues = append(issues, FieldIssue{Field: "expiry", Message: "Expiry must be MM/YY"})
	}
	cvv := stripWhitespace(d.CVV)
	if !digitsOnly(cvv) || len(cvv) < 3 || len(cvv) > 4 {
		issues = append(issues, FieldIssue{Field: "cvv", Message: "CVV must be 3 or 4 digits"})
	}
	return issues
}

// CardRegistration is what the core hands to card storage to create a card.
// Either the raw number and CVV are set (storage tokenizes them) or Token is
// set because the embedded gateway already tokenized the card.
type CardRegistration struct {
	Network    CardNetwork
	Last4      string
	Expiry     string
	HolderName string
	Remember   bool
	Number     string
	CVV        string
	Token      string
}

// IsTokenized reports whether the gateway already issued a token
func (r CardRegistration) IsTokenized() bool {
	return r.Token != ""
}

// NewCardRegistration prepares a validated draft for storage
func NewCardRegistration(d NewCardDraft) CardRegistration {
	pan := d.PAN()
	return CardRegistration{
		Network:    ClassifyCardNetwork(pan),
		Last4:      lastDigits(pan, 4),
		Expiry:     stripWhitespace(d.Expiry),
		HolderName: d.HolderName,
		Remember:   d.Remember,
		Number:     pan,
		CVV:        stripWhitespace(d.CVV),
	}
}

// GatewayCardRegistration prepares a card tokenized inside the payment frame
func GatewayCardRegistration(r GatewayResult, holderName string, remember bool) CardRegistration {
	return CardRegistration{
		Network:    CardNetworkUnknown,
		Last4:      r.CardLast4,
		Expiry:     r.Expiry(),
		HolderName: holderName,
		Remember:   remember,
		Token:      r.Token,
	}
}
