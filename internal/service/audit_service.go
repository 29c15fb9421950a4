package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/auth-gateway/internal/events"
)

// AuditService writes auth events to the structured log.
type AuditService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
}

// NewAuditService creates the service.
func NewAuditService(dispatcher events.Dispatcher, logger *zap.Logger) *AuditService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditService{
		dispatcher: dispatcher,
		logger:     logger.Named("audit"),
	}
}

// RegisterHandlers subscribes to events.
func (a *AuditService) RegisterHandlers() {
	if a.dispatcher == nil {
		return
	}
	a.dispatcher.Subscribe(events.EventLoginSucceeded, a.handleLoginSucceeded)
	a.dispatcher.Subscribe(events.EventLoginFailed, a.handleLoginFailed)
	a.dispatcher.Subscribe(events.EventCredentialRotated, a.handleCredentialRotated)
	a.dispatcher.Subscribe(events.EventSubjectRegistered, a.handleSubjectRegistered)
}

func (a *AuditService) handleLoginSucceeded(_ context.Context, event events.Event) error {
	a.logger.Info("LoginSucceeded", a.baseFields(event)...)
	return nil
}

func (a *AuditService) handleLoginFailed(_ context.Context, event events.Event) error {
	fields := a.baseFields(event)
	if payload, ok := event.Payload.(events.LoginFailedPayload); ok {
		fields = append(fields, zap.String("reason", payload.Reason))
	}
	a.logger.Warn("LoginFailed", fields...)
	return nil
}

func (a *AuditService) handleCredentialRotated(_ context.Context, event events.Event) error {
	fields := append(a.baseFields(event), zap.String("class", string(event.Class)))
	if payload, ok := event.Payload.(events.RotationPayload); ok {
		fields = append(fields, zap.Time("expires_at", payload.ExpiresAt))
	}
	a.logger.Info("CredentialRotated", fields...)
	return nil
}

func (a *AuditService) handleSubjectRegistered(_ context.Context, event events.Event) error {
	a.logger.Info("SubjectRegistered", a.baseFields(event)...)
	return nil
}

func (a *AuditService) baseFields(event events.Event) []zap.Field {
	return []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("subject_id", event.SubjectID),
		zap.String("username", event.Username),
		zap.Time("at", event.Timestamp),
	}
}
