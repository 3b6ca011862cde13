package model

import "time"

// Identity is the verified caller identity extracted from a bearer token.
type Identity struct {
	Subject   string    `json:"sub"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	ExpiresAt time.Time `json:"exp"`
}

// DisplayName returns the name claim, falling back to the email address.
func (i *Identity) DisplayName() string {
	if i.Name != "" {
		return i.Name
	}
	return i.Email
}
