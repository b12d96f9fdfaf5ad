package domain

import "strings"

// Credentials are the email and password used for record access sign-in.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Normalize lowercases and trims the email.
func (c *Credentials) Normalize() {
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
}

func (c Credentials) Validate() error { return validateStruct(c) }

// MinPasswordLength applies to new accounts only.
const MinPasswordLength = 6

// ValidateSignUp additionally enforces the password length for new accounts.
func (c Credentials) ValidateSignUp() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(c.Password) < MinPasswordLength {
		return &ValidationError{Field: "password", Reason: "must be at least 6 characters"}
	}
	return nil
}

// Identity is the signed-in account.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}
