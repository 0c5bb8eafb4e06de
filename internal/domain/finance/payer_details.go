package finance

import (
	"strings"

	"github.com/google/uuid"
)

// PayerDetails identifies who is paying. It has no identity beyond the session.
type PayerDetails struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Mobile      string `json:"mobile"`
	Address     string `json:"address"`
	Email       string `json:"email"`
	CompanyName string `json:"company_name,omitempty"`
	TaxID       string `json:"tax_id,omitempty"`
}

// FullName joins first and last name
func (p PayerDetails) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Issues lists the required fields that are still blank
func (p PayerDetails) Issues() []FieldIssue {
	var issues []FieldIssue
	if strings.TrimSpace(p.FirstName) == "" {
		issues = append(issues, FieldIssue{Field: "first_name", Message: "First name is required"})
	}
	if strings.TrimSpace(p.LastName) == "" {
		issues = append(issues, FieldIssue{Field: "last_name", Message: "Last name is required"})
	}
	if strings.TrimSpace(p.Mobile) == "" {
		issues = append(issues, FieldIssue{Field: "mobile", Message: "Mobile number is required"})
	}
	return issues
}

// IsComplete reports whether first name, last name and mobile are filled in
func (p PayerDetails) IsComplete() bool {
	return len(p.Issues()) == 0
}

// MemberProfile is the subset of a member record used to prefill the payer
type MemberProfile struct {
	MemberID  uuid.UUID `json:"member_id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Mobile    string    `json:"mobile"`
	Email     string    `json:"email"`
	Address   string    `json:"address"`
}

// PayerDetailsCollector binds the payer fields of step 1
type PayerDetailsCollector struct {
	details          PayerDetails
	useMemberDetails bool
}

// NewPayerDetailsCollector creates an empty collector
func NewPayerDetailsCollector() *PayerDetailsCollector {
	return &PayerDetailsCollector{}
}

// Details returns a copy of the current payer fields
func (c *PayerDetailsCollector) Details() PayerDetails {
	return c.details
}

// UsingMemberDetails reports whether the member prefill toggle is on
func (c *PayerDetailsCollector) UsingMemberDetails() bool {
	return c.useMemberDetails
}

// Update replaces the payer fields
func (c *PayerDetailsCollector) Update(details PayerDetails) {
	c.details = details
}

// SetUseMemberDetails toggles the member prefill. Enabling copies the
// member's name, mobile, email and address; disabling clears those fields.
// Company name and tax id are left alone either way. Enabling without a
// profile fails with ErrMemberDetailsUnavailable and changes nothing.
func (c *PayerDetailsCollector) SetUseMemberDetails(enabled bool, member *MemberProfile) error {
	if enabled {
		if member == nil {
			return ErrMemberDetailsUnavailable
		}
		c.useMemberDetails = true
		c.details.FirstName = member.FirstName
		c.details.LastName = member.LastName
		c.details.Mobile = member.Mobile
		c.details.Email = member.Email
		c.details.Address = member.Address
		return nil
	}
	c.useMemberDetails = false
	c.details.FirstName = ""
	c.details.LastName = ""
	c.details.Mobile = ""
	c.details.Email = ""
	c.details.Address = ""
	return nil
}

// IsComplete reports whether step 1 may be left
func (c *PayerDetailsCollector) IsComplete() bool {
	return c.details.IsComplete()
}
