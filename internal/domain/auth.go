package domain

import "time"

// CredentialClass separates short-lived access credentials from long-lived
// refresh credentials. Each class has its own signing secret.
type CredentialClass string

const (
	CredentialAccess  CredentialClass = "access"
	CredentialRefresh CredentialClass = "refresh"
)

// Claims is the decoded payload of a credential.
type Claims struct {
	SubjectID   string
	SubjectName string
	// ExpiresAt has microsecond resolution.
	ExpiresAt time.Time
}

// AuthContext is the request-scoped identity attached by the auth gate.
// It is derived from refresh claims and never persisted.
type AuthContext struct {
	SubjectID   string `json:"subject_id"`
	SubjectName string `json:"subject_name"`
}

// CredentialPair is what a successful login hands back to the caller.
type CredentialPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// CredentialUpdate is a partial write of a subject's stored pair. Empty fields
// are left untouched.
type CredentialUpdate struct {
	AccessToken  string
	RefreshToken string
}

// IsEmpty reports whether the update would write nothing.
func (u CredentialUpdate) IsEmpty() bool {
	return u.AccessToken == "" && u.RefreshToken == ""
}

// ForClass builds an update carrying a single credential of the given class.
func ForClass(class CredentialClass, token string) CredentialUpdate {
	if class == CredentialRefresh {
		return CredentialUpdate{RefreshToken: token}
	}
	return CredentialUpdate{AccessToken: token}
}
