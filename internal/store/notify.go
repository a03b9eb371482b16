package store

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// NotifyEvent is a platform occurrence a rule can react to.
type NotifyEvent string

// Notification trigger events.
const (
	EventPaymentDue  NotifyEvent = "payment_due"
	EventQuota80     NotifyEvent = "quota_80"
	EventQuota100    NotifyEvent = "quota_100"
	EventServiceDown NotifyEvent = "service_down"
	EventPlanExpiry  NotifyEvent = "plan_expiry"
)

// NotifyChannel is the delivery transport for a rule.
type NotifyChannel string

// Delivery channels.
const (
	ChannelSMS      NotifyChannel = "sms"
	ChannelEmail    NotifyChannel = "email"
	ChannelWhatsApp NotifyChannel = "whatsapp"
)

// Template is a message template with {{placeholder}} substitution.
// Subject is used by the email channel only.
type Template struct {
	ID        uuid.UUID
	Name      string
	Subject   string
	Body      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// NotifyRule binds an event to a channel and template. OffsetHours shifts
// delivery relative to the event (negative = before, e.g. payment_due -48).
type NotifyRule struct {
	ID          uuid.UUID
	Event       NotifyEvent
	Channel     NotifyChannel
	TemplateID  uuid.UUID
	OffsetHours int
	Enabled     bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NotifyRepository persists templates and notification rules.
type NotifyRepository interface {
	CreateTemplate(ctx context.Context, tpl Template) error
	GetTemplate(ctx context.Context, id uuid.UUID) (Template, error)
	ListTemplates(ctx context.Context) ([]Template, error)
	UpdateTemplate(ctx context.Context, tpl Template) error
	DeleteTemplate(ctx context.Context, id uuid.UUID) error

	CreateRule(ctx context.Context, rule NotifyRule) error
	GetRule(ctx context.Context, id uuid.UUID) (NotifyRule, error)
	ListRules(ctx context.Context) ([]NotifyRule, error)
	UpdateRule(ctx context.Context, rule NotifyRule) error
	DeleteRule(ctx context.Context, id uuid.UUID) error
}
