package domain

import "time"

// User is the subject credentials are issued for. AccessToken and RefreshToken
// hold the single current credential pair; issuing a new one overwrites the old.
type User struct {
	ID           string
	Username     string
	Email        *string
	PasswordHash string
	AccessToken  *string
	RefreshToken *string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
