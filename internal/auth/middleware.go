package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/domain"
	"github.com/spec-kit/auth-gateway/internal/events"
	"github.com/spec-kit/auth-gateway/internal/observability"
	apperrors "github.com/spec-kit/auth-gateway/pkg/util"
)

// HeaderAccessToken echoes a rotated access credential back to the caller.
const HeaderAccessToken = "X-Access-Token"

// GateRecorder counts gate decisions.
type GateRecorder interface {
	RecordGate(outcome string)
}

// GateConfig bundles the gate's collaborators.
type GateConfig struct {
	Validator     *Validator
	Rotator       *Rotator
	AccessTTL     time.Duration
	RefreshHeader string
	RefreshCookie string
	Logger        *zap.Logger
	Metrics       GateRecorder
	Events        events.Dispatcher
}

// Gate authenticates protected requests. The refresh credential is the root of
// trust: without a live one the request is rejected. A live refresh credential
// paired with an expired access credential rotates the access credential
// before the request is forwarded.
type Gate struct {
	validator     *Validator
	rotator       *Rotator
	accessTTL     time.Duration
	refreshHeader string
	refreshCookie string
	logger        *zap.Logger
	metrics       GateRecorder
	events        events.Dispatcher
}

// NewGate constructs the gate.
func NewGate(cfg GateConfig) *Gate {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		validator:     cfg.Validator,
		rotator:       cfg.Rotator,
		accessTTL:     cfg.AccessTTL,
		refreshHeader: cfg.RefreshHeader,
		refreshCookie: cfg.RefreshCookie,
		logger:        logger,
		metrics:       cfg.Metrics,
		events:        cfg.Events,
	}
}

// Handle enforces authentication for protected routes.
func (g *Gate) Handle(c *fiber.Ctx) error {
	accessToken := bearerToken(c.Get(fiber.HeaderAuthorization))
	refreshToken := g.refreshToken(c)

	refresh := g.validator.Validate(domain.CredentialRefresh, refreshToken)
	if refresh.State != StateLive {
		g.record(observability.GateRejected)
		g.logger.Debug("refresh credential rejected", zap.Stringer("state", refresh.State))
		return apperrors.NewAuthRequired("re-authenticate")
	}

	access := g.validator.Validate(domain.CredentialAccess, accessToken)
	switch access.State {
	case StateLive:
		g.record(observability.GatePassed)
	case StateMissing:
		g.record(observability.GateRejected)
		return apperrors.NewAuthRequired("missing access credential")
	case StateInvalid:
		g.record(observability.GateFailed)
		g.logger.Error("access credential undecodable while refresh is live",
			zap.String("subject_id", refresh.Claims.SubjectID), zap.Error(access.Err))
		return apperrors.NewInternalError(access.Err)
	case StateExpired:
		if access.Claims.SubjectID != refresh.Claims.SubjectID {
			g.record(observability.GateRejected)
			g.logger.Warn("access and refresh subjects differ",
				zap.String("refresh_subject_id", refresh.Claims.SubjectID))
			return apperrors.NewAuthRequired("re-authenticate")
		}
		if err := g.rotate(c, accessToken); err != nil {
			g.record(observability.GateFailed)
			return err
		}
		g.record(observability.GateRotated)
	}

	attachAuthContext(c, domain.AuthContext{
		SubjectID:   refresh.Claims.SubjectID,
		SubjectName: refresh.Claims.SubjectName,
	})
	return c.Next()
}

// rotate mints and stores a new access credential and rewrites the access
// channel. The store write is detached from request cancellation.
func (g *Gate) rotate(c *fiber.Ctx, stale string) error {
	ctx := context.WithoutCancel(c.UserContext())

	token, claims, err := g.rotator.Refresh(ctx, domain.CredentialAccess, stale, g.accessTTL)
	if err != nil {
		if errors.Is(err, ErrMalformed) {
			g.logger.Error("access credential unrecoverable", zap.Error(err))
		} else {
			g.logger.Error("access credential rotation failed", zap.Error(err))
		}
		return apperrors.NewInternalError(err)
	}

	c.Request().Header.Set(fiber.HeaderAuthorization, "Bearer "+token)
	c.Set(HeaderAccessToken, token)

	g.logger.Info("access credential rotated", zap.String("subject_id", claims.SubjectID))
	if g.events != nil {
		if err := g.events.Publish(ctx, events.Event{
			Type:      events.EventCredentialRotated,
			SubjectID: claims.SubjectID,
			Username:  claims.SubjectName,
			Class:     domain.CredentialAccess,
			Payload:   events.RotationPayload{ExpiresAt: claims.ExpiresAt},
		}); err != nil {
			g.logger.Warn("rotation event handlers failed", zap.Error(err))
		}
	}
	return nil
}

func (g *Gate) refreshToken(c *fiber.Ctx) string {
	if g.refreshHeader != "" {
		if value := c.Get(g.refreshHeader); value != "" {
			if token := bearerToken(value); token != "" {
				return token
			}
			return utils.CopyString(strings.TrimSpace(value))
		}
	}
	if g.refreshCookie != "" {
		return utils.CopyString(c.Cookies(g.refreshCookie))
	}
	return ""
}

func (g *Gate) record(outcome string) {
	if g.metrics != nil {
		g.metrics.RecordGate(outcome)
	}
}

// bearerToken extracts the token from a "Bearer <token>" value. The result is
// copied because fiber reuses header buffers.
func bearerToken(value string) string {
	parts := strings.SplitN(strings.TrimSpace(value), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return utils.CopyString(strings.TrimSpace(parts[1]))
}
