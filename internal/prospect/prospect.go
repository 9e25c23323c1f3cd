package prospect

import (
	"fmt"
	"strings"
)

// Prospect is the lead captured by the landing form. JSON names follow the
// form's wire contract.
type Prospect struct {
	FirstName string `json:"nombres"`
	LastName  string `json:"apellidos"`
	Company   string `json:"compania"`
	Email     string `json:"emailCorporativo"`
	Role      string `json:"rol"`
	Website   string `json:"websiteUrl,omitempty"`
}

// MissingFieldError reports the first required form field that was empty.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return fmt.Sprintf("missing required field: %s", e.Field)
}

// Validate checks the fields the CRM requires to create a contact.
func (p Prospect) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"nombres", p.FirstName},
		{"apellidos", p.LastName},
		{"compania", p.Company},
		{"emailCorporativo", p.Email},
		{"rol", p.Role},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return &MissingFieldError{Field: f.name}
		}
	}
	return nil
}

// FullName joins first and last name, skipping blanks.
func (p Prospect) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName))
}

// Domain strips scheme, www. prefix and path from the website URL.
func (p Prospect) Domain() string {
	d := strings.TrimSpace(p.Website)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexAny(d, "/?#"); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}
