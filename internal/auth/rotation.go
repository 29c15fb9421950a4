package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// ErrSubjectGone is returned when a rotated credential could not be stored
// because the subject no longer exists.
var ErrSubjectGone = errors.New("credential subject not found")

// CredentialWriter persists a partial credential update on a subject record.
type CredentialWriter interface {
	PersistCredentials(ctx context.Context, subjectID string, update domain.CredentialUpdate) (int64, error)
}

// Rotator replaces a stale credential with a fresh one of the same class.
//
// Concurrent rotations for the same subject are not serialized: each mints
// its own credential and the last store write wins.
type Rotator struct {
	codec  *Codec
	issuer *Issuer
	store  CredentialWriter
}

// NewRotator builds a rotator.
func NewRotator(codec *Codec, issuer *Issuer, store CredentialWriter) *Rotator {
	return &Rotator{codec: codec, issuer: issuer, store: store}
}

// Refresh decodes stale ignoring its expiry, issues a new credential of the
// same class valid for ttl and persists it.
func (r *Rotator) Refresh(ctx context.Context, class domain.CredentialClass, stale string, ttl time.Duration) (string, domain.Claims, error) {
	old, err := r.codec.Decode(class, stale)
	if err != nil {
		return "", domain.Claims{}, err
	}

	token, claims, err := r.issuer.Issue(class, old.SubjectID, old.SubjectName, ttl)
	if err != nil {
		return "", domain.Claims{}, err
	}

	affected, err := r.store.PersistCredentials(ctx, old.SubjectID, domain.ForClass(class, token))
	if err != nil {
		return "", domain.Claims{}, fmt.Errorf("persist %s credential: %w", class, err)
	}
	if affected == 0 {
		return "", domain.Claims{}, ErrSubjectGone
	}
	return token, claims, nil
}
