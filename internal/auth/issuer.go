package auth

import (
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// Issuer mints fresh credentials.
type Issuer struct {
	codec *Codec
	now   func() time.Time
}

// NewIssuer builds an issuer. A nil clock defaults to time.Now.
func NewIssuer(codec *Codec, now func() time.Time) *Issuer {
	if now == nil {
		now = time.Now
	}
	return &Issuer{codec: codec, now: now}
}

// Issue signs a credential of class for the subject that expires ttl from now.
func (i *Issuer) Issue(class domain.CredentialClass, subjectID, subjectName string, ttl time.Duration) (string, domain.Claims, error) {
	expiresAt := time.UnixMicro(i.now().Add(ttl).UnixMicro()).UTC()

	token, err := i.codec.Encode(class, subjectID, subjectName, expiresAt)
	if err != nil {
		return "", domain.Claims{}, err
	}
	return token, domain.Claims{
		SubjectID:   subjectID,
		SubjectName: subjectName,
		ExpiresAt:   expiresAt,
	}, nil
}
