package domain

import (
	"fmt"
	"strings"
	"time"
)

// CredentialKind tags the credential union.
type CredentialKind string

const (
	CredentialPassword CredentialKind = "password"
	CredentialToken    CredentialKind = "token"
	CredentialAPIKey   CredentialKind = "apikey"
)

// Credentials is a tagged union over the three auth schemes the
// supported platforms use. Only the fields of the tagged kind are
// meaningful. Held by exactly one adapter instance and discarded when
// that instance disconnects or is evicted; never persisted.
type Credentials struct {
	Kind CredentialKind `json:"kind"`

	// password
	Login    string `json:"login,omitempty"`
	Password string `json:"password,omitempty"`
	Server   string `json:"server,omitempty"`

	// token
	AccessToken  string    `json:"accessToken,omitempty"`
	RefreshToken string    `json:"refreshToken,omitempty"`
	ExpiresAt    time.Time `json:"expiresAt,omitempty"`

	// apikey
	APIKey    string `json:"apiKey,omitempty"`
	APISecret string `json:"apiSecret,omitempty"`
}

// Validate checks that the fields required by the given kind are
// non-empty. Adapters call this before any network activity.
func (c Credentials) Validate(kind CredentialKind) error {
	switch kind {
	case CredentialPassword:
		if strings.TrimSpace(c.Login) == "" || strings.TrimSpace(c.Password) == "" || strings.TrimSpace(c.Server) == "" {
			return fmt.Errorf("login, password and server are required")
		}
	case CredentialToken:
		if strings.TrimSpace(c.AccessToken) == "" {
			return fmt.Errorf("access token is required")
		}
	case CredentialAPIKey:
		if strings.TrimSpace(c.APIKey) == "" || strings.TrimSpace(c.APISecret) == "" {
			return fmt.Errorf("api key and secret are required")
		}
	default:
		return fmt.Errorf("unknown credential kind %q", kind)
	}
	return nil
}
