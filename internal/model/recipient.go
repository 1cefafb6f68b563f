package model

import "strings"

// Recipient is an address in the warm-up pool.
type Recipient struct {
	Email  string `csv:"email"`
	Name   string `csv:"name"`
	Domain string `csv:"domain"`

	// Active is cleared when the address hard-bounces.
	Active bool `csv:"active"`

	// CountUsed and LastUsed drive least-used selection.
	CountUsed int       `csv:"count_used"`
	LastUsed  Timestamp `csv:"last_used"`
}

// NewRecipient returns an active recipient, deriving the domain from email.
func NewRecipient(email, name string) Recipient {
	email = strings.TrimSpace(email)
	return Recipient{
		Email:  email,
		Name:   strings.TrimSpace(name),
		Domain: DomainOf(email),
		Active: true,
	}
}

// Greeting returns the first name to greet, or "" if none is known.
func (r Recipient) Greeting() string {
	name := r.Name
	if name == "" {
		name = NameFromAddress(r.Email)
	}
	if fields := strings.Fields(name); len(fields) > 0 {
		return fields[0]
	}
	return ""
}
