package auth

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/domain"
)

var testAuthConfig = config.AuthConfig{
	AccessSecret:  "access-secret-for-tests",
	RefreshSecret: "refresh-secret-for-tests",
}

type persistCall struct {
	SubjectID string
	Update    domain.CredentialUpdate
	CtxErr    error
}

// fakeStore records credential writes.
type fakeStore struct {
	mu       sync.Mutex
	calls    []persistCall
	affected int64
	err      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{affected: 1}
}

func (s *fakeStore) PersistCredentials(ctx context.Context, subjectID string, update domain.CredentialUpdate) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.calls = append(s.calls, persistCall{SubjectID: subjectID, Update: update, CtxErr: ctx.Err()})
	return s.affected, nil
}

func (s *fakeStore) writes() []persistCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]persistCall(nil), s.calls...)
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func mustIssue(t *testing.T, issuer *Issuer, class domain.CredentialClass, id, name string, ttl time.Duration) string {
	t.Helper()
	token, _, err := issuer.Issue(class, id, name, ttl)
	require.NoError(t, err)
	return token
}
