package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/auth"
	"github.com/spec-kit/auth-gateway/internal/config"
	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/ratelimit"
	"github.com/spec-kit/auth-gateway/internal/repository"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

const (
	reasonUnknownSubject = "unknown_subject"
	reasonSecretMismatch = "secret_mismatch"
	reasonRateLimited    = "rate_limited"

	minPasswordLength = 8
)

// LoginThrottle limits failed login attempts per username.
type LoginThrottle interface {
	Check(ctx context.Context, username string) error
	RecordFailure(ctx context.Context, username string) (int64, error)
	Reset(ctx context.Context, username string) error
}

// AuthDependencies encapsulates collaborators for the auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	Codec      *auth.Codec
	Limiter    LoginThrottle
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	Now        func() time.Time
}

// AuthService coordinates login, registration and explicit re-issue.
type AuthService struct {
	users      repository.UserRepository
	issuer     *auth.Issuer
	rotator    *auth.Rotator
	hasher     *auth.PasswordHasher
	limiter    LoginThrottle
	dispatcher events.Dispatcher
	logger     *zap.Logger
	accessTTL  time.Duration
	refreshTTL time.Duration
	dummyHash  string
}

// NewAuthService builds the service.
func NewAuthService(cfg config.AuthConfig, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	issuer := auth.NewIssuer(deps.Codec, deps.Now)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)

	// Unknown usernames are compared against this so both failure paths pay
	// for a hash comparison.
	dummy, err := hasher.Hash(uuid.NewString())
	if err != nil {
		logger.Warn("unable to prepare dummy hash", zap.Error(err))
	}

	return &AuthService{
		users:      deps.UserRepo,
		issuer:     issuer,
		rotator:    auth.NewRotator(deps.Codec, issuer, deps.UserRepo),
		hasher:     hasher,
		limiter:    deps.Limiter,
		dispatcher: deps.Dispatcher,
		logger:     logger,
		accessTTL:  cfg.AccessTTL(),
		refreshTTL: cfg.RefreshTTL(),
		dummyHash:  dummy,
	}
}

// Login verifies the secret for username and mints, stores and returns a
// fresh credential pair. Unknown usernames and wrong secrets fail the same way.
func (s *AuthService) Login(ctx context.Context, username, password string) (domain.CredentialPair, error) {
	username = strings.TrimSpace(username)
	if err := s.checkThrottle(ctx, username); err != nil {
		return domain.CredentialPair{}, err
	}

	subjectID, err := s.users.FindSubjectID(ctx, username)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return domain.CredentialPair{}, apperrors.NewInternalError(err)
		}
		_ = s.hasher.Compare(s.dummyHash, password)
		return domain.CredentialPair{}, s.failLogin(ctx, username, "", reasonUnknownSubject)
	}

	hash, err := s.users.PasswordHash(ctx, subjectID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.CredentialPair{}, s.failLogin(ctx, username, "", reasonUnknownSubject)
		}
		return domain.CredentialPair{}, apperrors.NewInternalError(err)
	}
	if err := s.hasher.Compare(hash, password); err != nil {
		return domain.CredentialPair{}, s.failLogin(ctx, username, subjectID, reasonSecretMismatch)
	}

	pair, err := s.issuePair(subjectID, username)
	if err != nil {
		return domain.CredentialPair{}, apperrors.NewInternalError(err)
	}

	affected, err := s.users.PersistCredentials(ctx, subjectID, domain.CredentialUpdate{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
	})
	if err != nil {
		return domain.CredentialPair{}, apperrors.NewInternalError(err)
	}
	if affected == 0 {
		return domain.CredentialPair{}, apperrors.NewInternalError(auth.ErrSubjectGone)
	}

	if s.limiter != nil {
		if err := s.limiter.Reset(ctx, username); err != nil {
			s.logger.Warn("login limiter reset failed", zap.String("username", username), zap.Error(err))
		}
	}
	s.publish(ctx, events.Event{
		Type:      events.EventLoginSucceeded,
		SubjectID: subjectID,
		Username:  username,
	})
	s.logger.Info("login succeeded", zap.String("subject_id", subjectID))
	return pair, nil
}

func (s *AuthService) issuePair(subjectID, username string) (domain.CredentialPair, error) {
	access, accessClaims, err := s.issuer.Issue(domain.CredentialAccess, subjectID, username, s.accessTTL)
	if err != nil {
		return domain.CredentialPair{}, err
	}
	refresh, refreshClaims, err := s.issuer.Issue(domain.CredentialRefresh, subjectID, username, s.refreshTTL)
	if err != nil {
		return domain.CredentialPair{}, err
	}
	return domain.CredentialPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.ExpiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt,
	}, nil
}

// checkThrottle fails open when the limiter backend is unreachable.
func (s *AuthService) checkThrottle(ctx context.Context, username string) error {
	if s.limiter == nil {
		return nil
	}
	err := s.limiter.Check(ctx, username)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ratelimit.ErrRateLimited):
		s.publish(ctx, events.Event{
			Type:     events.EventLoginFailed,
			Username: username,
			Payload:  events.LoginFailedPayload{Reason: reasonRateLimited},
		})
		return apperrors.NewRateLimited("too many failed login attempts")
	default:
		s.logger.Warn("login limiter unavailable", zap.Error(err))
		return nil
	}
}

func (s *AuthService) failLogin(ctx context.Context, username, subjectID, reason string) error {
	if s.limiter != nil {
		if _, err := s.limiter.RecordFailure(ctx, username); err != nil {
			s.logger.Warn("login limiter record failed", zap.Error(err))
		}
	}
	s.publish(ctx, events.Event{
		Type:      events.EventLoginFailed,
		SubjectID: subjectID,
		Username:  username,
		Payload:   events.LoginFailedPayload{Reason: reason},
	})
	return apperrors.NewBadCredentials()
}

// RegisterInput carries a registration request.
type RegisterInput struct {
	Username        string
	Email           *string
	Password        string
	PasswordConfirm string
}

// Register creates a subject with no credentials; the caller logs in next.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	username := strings.TrimSpace(in.Username)
	details := map[string]any{}
	if username == "" {
		details["username"] = "required"
	}
	if len(in.Password) < minPasswordLength {
		details["password"] = "must be at least 8 characters"
	}
	if in.Password != in.PasswordConfirm {
		details["password_confirm"] = "does not match password"
	}
	if len(details) > 0 {
		return nil, apperrors.NewValidationError("invalid registration", details)
	}

	taken, err := s.users.UsernameExists(ctx, username)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if taken {
		return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        in.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, apperrors.NewConflict("username already taken", map[string]any{"username": username})
		}
		return nil, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventSubjectRegistered,
		SubjectID: user.ID,
		Username:  user.Username,
	})
	return user, nil
}

// Reissue rotates a stale credential of either class using that class's TTL.
func (s *AuthService) Reissue(ctx context.Context, class domain.CredentialClass, stale string) (string, domain.Claims, error) {
	ttl := s.accessTTL
	if class == domain.CredentialRefresh {
		ttl = s.refreshTTL
	}

	token, claims, err := s.rotator.Refresh(ctx, class, stale, ttl)
	if err != nil {
		if errors.Is(err, auth.ErrMalformed) {
			return "", domain.Claims{}, apperrors.NewMalformedCredential(err)
		}
		return "", domain.Claims{}, apperrors.NewInternalError(err)
	}

	s.publish(ctx, events.Event{
		Type:      events.EventCredentialRotated,
		SubjectID: claims.SubjectID,
		Username:  claims.SubjectName,
		Class:     class,
		Payload:   events.RotationPayload{ExpiresAt: claims.ExpiresAt},
	})
	return token, claims, nil
}

func (s *AuthService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handlers failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}
