package auth

import (
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// CredentialState classifies a presented credential.
type CredentialState int

const (
	StateMissing CredentialState = iota
	StateInvalid
	StateExpired
	StateLive
)

func (s CredentialState) String() string {
	switch s {
	case StateMissing:
		return "missing"
	case StateInvalid:
		return "invalid"
	case StateExpired:
		return "expired"
	case StateLive:
		return "live"
	default:
		return "unknown"
	}
}

// Validation is the outcome of checking one credential. Claims are set for
// live and expired credentials; Err is set for invalid ones.
type Validation struct {
	State  CredentialState
	Claims domain.Claims
	Err    error
}

// IsLive reports whether claims are still valid at now. A credential is
// expired at exactly its expiry instant.
func IsLive(claims domain.Claims, now time.Time) bool {
	return now.Before(claims.ExpiresAt)
}

// Validator layers the expiry check on top of the codec.
type Validator struct {
	codec *Codec
	now   func() time.Time
}

// NewValidator builds a validator. A nil clock defaults to time.Now.
func NewValidator(codec *Codec, now func() time.Time) *Validator {
	if now == nil {
		now = time.Now
	}
	return &Validator{codec: codec, now: now}
}

// Validate decodes token as class and classifies it.
func (v *Validator) Validate(class domain.CredentialClass, token string) Validation {
	if token == "" {
		return Validation{State: StateMissing}
	}
	claims, err := v.codec.Decode(class, token)
	if err != nil {
		return Validation{State: StateInvalid, Err: err}
	}
	if IsLive(claims, v.now()) {
		return Validation{State: StateLive, Claims: claims}
	}
	return Validation{State: StateExpired, Claims: claims}
}
