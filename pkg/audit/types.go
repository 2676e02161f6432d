// Package audit records who did what to organization memberships. Destructive
// operations (role changes, removals, session switches) leave a trail that
// survives the request, so disputes over "who demoted me" have an answer.
package audit

import (
	"context"
	"time"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventRoleChange    EventType = "member.role_change"
	EventMemberRemove  EventType = "member.remove"
	EventSessionSwitch EventType = "session.switch"
)

// EventStatus is the outcome of the audited operation.
type EventStatus string

const (
	StatusSuccess EventStatus = "success"
	StatusDenied  EventStatus = "denied"
)

// Event is a single audit entry.
type Event struct {
	ID             int64                  `json:"id"`
	Timestamp      time.Time              `json:"timestamp"`
	EventType      EventType              `json:"event_type"`
	Status         EventStatus            `json:"status"`
	ActorID        string                 `json:"actor_id"`
	OrganizationID string                 `json:"organization_id,omitempty"`
	TargetUserID   string                 `json:"target_user_id,omitempty"`
	RequestID      string                 `json:"request_id,omitempty"`
	Detail         map[string]interface{} `json:"detail,omitempty"`
}

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// NopRecorder discards events. Used when auditing is disabled.
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *Event) error { return nil }
