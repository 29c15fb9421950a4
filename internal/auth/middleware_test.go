package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/observability"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

type gateFixture struct {
	app      *fiber.App
	store    *fakeStore
	metrics  *observability.Metrics
	codec    *Codec
	issuer   *Issuer
	past     *Issuer
	calls    int
	rotated  []events.Event
	lastSeen struct {
		fiberCtx domain.AuthContext
		userCtx  domain.AuthContext
		header   string
	}
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()

	f := &gateFixture{
		store:   newFakeStore(),
		metrics: observability.NewMetrics(),
		codec:   NewCodec(testAuthConfig),
	}
	f.issuer = NewIssuer(f.codec, nil)
	f.past = NewIssuer(f.codec, func() time.Time { return time.Now().Add(-2 * time.Hour) })

	dispatcher := events.NewInMemoryDispatcher()
	dispatcher.Subscribe(events.EventCredentialRotated, func(_ context.Context, e events.Event) error {
		f.rotated = append(f.rotated, e)
		return nil
	})

	gate := NewGate(GateConfig{
		Validator:     NewValidator(f.codec, nil),
		Rotator:       NewRotator(f.codec, f.issuer, f.store),
		AccessTTL:     time.Hour,
		RefreshHeader: "X-Refresh-Token",
		RefreshCookie: "refresh_token",
		Metrics:       f.metrics,
		Events:        dispatcher,
	})

	f.app = fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			de := apperrors.ToDomainError(err)
			return c.Status(de.HTTPStatus).JSON(fiber.Map{"error": fiber.Map{"code": de.Code}})
		},
	})
	f.app.Get("/protected", gate.Handle, func(c *fiber.Ctx) error {
		f.calls++
		f.lastSeen.fiberCtx, _ = AuthContextFromFiber(c)
		f.lastSeen.userCtx, _ = FromContext(c.UserContext())
		f.lastSeen.header = c.Get(fiber.HeaderAuthorization)
		return c.SendStatus(http.StatusOK)
	})
	return f
}

func (f *gateFixture) do(t *testing.T, access, refresh string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	if refresh != "" {
		req.Header.Set("X-Refresh-Token", refresh)
	}
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body.Error.Code
}

func TestGateLiveAccessLiveRefresh(t *testing.T) {
	f := newGateFixture(t)
	access := mustIssue(t, f.issuer, domain.CredentialAccess, "u1", "alice-old-name", time.Hour)
	refresh := mustIssue(t, f.issuer, domain.CredentialRefresh, "u1", "alice", 24*time.Hour)

	resp := f.do(t, access, refresh)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.calls)
	assert.Equal(t, domain.AuthContext{SubjectID: "u1", SubjectName: "alice"}, f.lastSeen.fiberCtx)
	assert.Equal(t, f.lastSeen.fiberCtx, f.lastSeen.userCtx)
	assert.Equal(t, "Bearer "+access, f.lastSeen.header)
	assert.Empty(t, resp.Header.Get(HeaderAccessToken))
	assert.Empty(t, f.store.writes())
	assert.Equal(t, int64(1), f.metrics.Snapshot().Gate[observability.GatePassed])
}

func TestGateExpiredAccessLiveRefreshRotates(t *testing.T) {
	f := newGateFixture(t)
	stale := mustIssue(t, f.past, domain.CredentialAccess, "u1", "alice", time.Hour)
	refresh := mustIssue(t, f.issuer, domain.CredentialRefresh, "u1", "alice", 24*time.Hour)
	oldClaims, err := f.codec.Decode(domain.CredentialAccess, stale)
	require.NoError(t, err)

	resp := f.do(t, stale, refresh)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, f.calls)

	writes := f.store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, "u1", writes[0].SubjectID)
	assert.Empty(t, writes[0].Update.RefreshToken)

	fresh := resp.Header.Get(HeaderAccessToken)
	require.NotEmpty(t, fresh)
	assert.Equal(t, fresh, writes[0].Update.AccessToken)
	assert.Equal(t, "Bearer "+fresh, f.lastSeen.header)

	newClaims, err := f.codec.Decode(domain.CredentialAccess, fresh)
	require.NoError(t, err)
	assert.Equal(t, oldClaims.SubjectID, newClaims.SubjectID)
	assert.True(t, newClaims.ExpiresAt.After(oldClaims.ExpiresAt))

	assert.Equal(t, "alice", f.lastSeen.fiberCtx.SubjectName)
	require.Len(t, f.rotated, 1)
	assert.Equal(t, "u1", f.rotated[0].SubjectID)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Gate[observability.GateRotated])
}

func TestGateRejectsWithoutLiveRefresh(t *testing.T) {
	f := newGateFixture(t)
	access := mustIssue(t, f.issuer, domain.CredentialAccess, "u1", "alice", time.Hour)
	stale := mustIssue(t, f.past, domain.CredentialAccess, "u1", "alice", time.Hour)
	expiredRefresh := mustIssue(t, f.past, domain.CredentialRefresh, "u1", "alice", time.Hour)

	cases := map[string][2]string{
		"missing refresh":            {access, ""},
		"access-signed refresh":      {access, access},
		"garbage refresh":            {access, "not-a-token"},
		"expired refresh":            {access, expiredRefresh},
		"expired refresh and access": {stale, expiredRefresh},
		"nothing":                    {"", ""},
	}
	for name, tc := range cases {
		resp := f.do(t, tc[0], tc[1])
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
		assert.Equal(t, apperrors.CodeAuthRequired, errorCode(t, resp), name)
	}

	assert.Zero(t, f.calls)
	assert.Empty(t, f.store.writes())
	assert.Equal(t, int64(len(cases)), f.metrics.Snapshot().Gate[observability.GateRejected])
}

func TestGateUndecodableAccessWithLiveRefresh(t *testing.T) {
	f := newGateFixture(t)
	refresh := mustIssue(t, f.issuer, domain.CredentialRefresh, "u1", "alice", time.Hour)

	for _, access := range []string{"garbage", refresh} {
		resp := f.do(t, access, refresh)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		assert.Equal(t, apperrors.CodeInternal, errorCode(t, resp))
	}
	assert.Zero(t, f.calls)
	assert.Empty(t, f.store.writes())
}

func TestGateMissingAccessWithLiveRefresh(t *testing.T) {
	f := newGateFixture(t)
	refresh := mustIssue(t, f.issuer, domain.CredentialRefresh, "u1", "alice", time.Hour)

	resp := f.do(t, "", refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Zero(t, f.calls)
}

func TestGateRotationStoreFailure(t *testing.T) {
	f := newGateFixture(t)
	f.store.err = errors.New("db down")
	stale := mustIssue(t, f.past, domain.CredentialAccess, "u1", "alice", time.Hour)
	refresh := mustIssue(t, f.issuer, domain.CredentialRefresh, "u1", "alice", time.Hour)

	resp := f.do(t, stale, refresh)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Empty(t, resp.Header.Get(HeaderAccessToken))
	assert.Zero(t, f.calls)
	assert.Equal(t, int64(1), f.metrics.Snapshot().Gate[observability.GateFailed])
}

func TestGateRotationSurvivesCancelledRequest(t *testing.T) {
	store := newFakeStore()
	codec := NewCodec(testAuthConfig)
	issuer := NewIssuer(codec, nil)
	past := NewIssuer(codec, func() time.Time { return time.Now().Add(-2 * time.Hour) })

	gate := NewGate(GateConfig{
		Validator:     NewValidator(codec, nil),
		Rotator:       NewRotator(codec, issuer, store),
		AccessTTL:     time.Hour,
		RefreshHeader: "X-Refresh-Token",
	})

	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		ctx, cancel := context.WithCancel(c.UserContext())
		cancel()
		c.SetUserContext(ctx)
		return c.Next()
	})
	var handled bool
	app.Get("/protected", gate.Handle, func(c *fiber.Ctx) error {
		handled = true
		return c.SendStatus(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+mustIssue(t, past, domain.CredentialAccess, "u1", "alice", time.Hour))
	req.Header.Set("X-Refresh-Token", mustIssue(t, issuer, domain.CredentialRefresh, "u1", "alice", time.Hour))
	resp, err := app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, handled)
	writes := store.writes()
	require.Len(t, writes, 1)
	assert.NoError(t, writes[0].CtxErr)
	assert.NotEmpty(t, writes[0].Update.AccessToken)
}

func TestGateRejectsForeignExpiredAccess(t *testing.T) {
	f := newGateFixture(t)
	othersStale := mustIssue(t, f.past, domain.CredentialAccess, "u2", "bob", time.Hour)
	refresh := mustIssue(t, f.issuer, domain.CredentialRefresh, "u1", "alice", time.Hour)

	resp := f.do(t, othersStale, refresh)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Empty(t, f.store.writes())
	assert.Zero(t, f.calls)
}

func TestGateReadsRefreshCookie(t *testing.T) {
	f := newGateFixture(t)
	access := mustIssue(t, f.issuer, domain.CredentialAccess, "u1", "alice", time.Hour)
	refresh := mustIssue(t, f.issuer, domain.CredentialRefresh, "u1", "alice", time.Hour)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+access)
	req.AddCookie(&http.Cookie{Name: "refresh_token", Value: refresh})
	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "u1", f.lastSeen.fiberCtx.SubjectID)
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("Bearer abc"))
	assert.Equal(t, "abc", bearerToken("bearer  abc "))
	assert.Empty(t, bearerToken("abc"))
	assert.Empty(t, bearerToken("Basic abc"))
	assert.Empty(t, bearerToken(""))
}
