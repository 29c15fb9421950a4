package events

import (
	"time"

	"github.com/spec-kit/auth-gateway/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventLoginSucceeded    EventType = "login_succeeded"
	EventLoginFailed       EventType = "login_failed"
	EventCredentialRotated EventType = "credential_rotated"
	EventSubjectRegistered EventType = "subject_registered"
)

// Event represents an audit event emitted by the auth subsystem. It never
// carries credential strings.
type Event struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	SubjectID string                 `json:"subject_id,omitempty"`
	Username  string                 `json:"username,omitempty"`
	Class     domain.CredentialClass `json:"class,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Payload   interface{}            `json:"payload,omitempty"`
}

// RotationPayload describes a credential rotation.
type RotationPayload struct {
	ExpiresAt time.Time `json:"expires_at"`
}

// LoginFailedPayload describes why a login was refused. Reason is for the
// audit log only; callers always see the same failure.
type LoginFailedPayload struct {
	Reason string `json:"reason"`
}
