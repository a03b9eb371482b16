package notify

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/strataisp/console/internal/clock"
	"github.com/strataisp/console/internal/gateway"
	"github.com/strataisp/console/internal/id"
	"github.com/strataisp/console/internal/store"
)

// EmailSender delivers one mail. Satisfied by the email subpackage.
type EmailSender interface {
	Send(to, subject, body string) error
}

// TemplateInput carries the mutable fields of a template.
type TemplateInput struct {
	Name    string
	Subject string
	Body    string
}

// RuleInput carries the mutable fields of a notification rule.
type RuleInput struct {
	Event       store.NotifyEvent
	Channel     store.NotifyChannel
	TemplateID  uuid.UUID
	OffsetHours int
	Enabled     bool
}

// Config wires the notify service.
type Config struct {
	Repo     store.NotifyRepository
	Email    EmailSender
	SMS      gateway.Sender
	WhatsApp gateway.Sender
	IDs      id.UUIDGenerator
	Clock    clock.Clock
	Logger   *zap.Logger
}

// Service owns template and rule CRUD plus channel test sends.
type Service struct {
	repo     store.NotifyRepository
	email    EmailSender
	sms      gateway.Sender
	whatsapp gateway.Sender
	ids      id.UUIDGenerator
	clock    clock.Clock
	logger   *zap.Logger
}

// New builds the notify service.
func New(cfg Config) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     cfg.Repo,
		email:    cfg.Email,
		sms:      cfg.SMS,
		whatsapp: cfg.WhatsApp,
		ids:      cfg.IDs,
		clock:    cfg.Clock,
		logger:   logger,
	}
}

// CreateTemplate validates placeholders and stores the template.
func (s *Service) CreateTemplate(ctx context.Context, in TemplateInput) (store.Template, error) {
	if err := validateTemplate(in); err != nil {
		return store.Template{}, err
	}
	tplID, err := s.ids.NewUUID()
	if err != nil {
		return store.Template{}, fmt.Errorf("mint template id: %w", err)
	}
	now := s.clock.Now()
	tpl := store.Template{
		ID:        tplID,
		Name:      in.Name,
		Subject:   in.Subject,
		Body:      in.Body,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateTemplate(ctx, tpl); err != nil {
		return store.Template{}, err
	}
	return tpl, nil
}

// GetTemplate loads one template.
func (s *Service) GetTemplate(ctx context.Context, tplID uuid.UUID) (store.Template, error) {
	return s.repo.GetTemplate(ctx, tplID)
}

// ListTemplates returns every template.
func (s *Service) ListTemplates(ctx context.Context) ([]store.Template, error) {
	return s.repo.ListTemplates(ctx)
}

// UpdateTemplate validates placeholders and replaces the template.
func (s *Service) UpdateTemplate(ctx context.Context, tplID uuid.UUID, in TemplateInput) (store.Template, error) {
	if err := validateTemplate(in); err != nil {
		return store.Template{}, err
	}
	existing, err := s.repo.GetTemplate(ctx, tplID)
	if err != nil {
		return store.Template{}, err
	}
	tpl := existing
	tpl.Name = in.Name
	tpl.Subject = in.Subject
	tpl.Body = in.Body
	tpl.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateTemplate(ctx, tpl); err != nil {
		return store.Template{}, err
	}
	return tpl, nil
}

// DeleteTemplate removes the template. Rules referencing it keep their
// ID; sends through them fail until repointed, which the UI surfaces.
func (s *Service) DeleteTemplate(ctx context.Context, tplID uuid.UUID) error {
	return s.repo.DeleteTemplate(ctx, tplID)
}

func validateTemplate(in TemplateInput) error {
	if in.Name == "" {
		return fmt.Errorf("%w: name is required", store.ErrInvalid)
	}
	if in.Body == "" {
		return fmt.Errorf("%w: body is required", store.ErrInvalid)
	}
	if err := ValidatePlaceholders(in.Subject); err != nil {
		return err
	}
	return ValidatePlaceholders(in.Body)
}

// CreateRule validates the rule and its template reference and stores it.
func (s *Service) CreateRule(ctx context.Context, in RuleInput) (store.NotifyRule, error) {
	if err := s.validateRule(ctx, in); err != nil {
		return store.NotifyRule{}, err
	}
	ruleID, err := s.ids.NewUUID()
	if err != nil {
		return store.NotifyRule{}, fmt.Errorf("mint rule id: %w", err)
	}
	now := s.clock.Now()
	rule := store.NotifyRule{
		ID:          ruleID,
		Event:       in.Event,
		Channel:     in.Channel,
		TemplateID:  in.TemplateID,
		OffsetHours: in.OffsetHours,
		Enabled:     in.Enabled,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateRule(ctx, rule); err != nil {
		return store.NotifyRule{}, err
	}
	return rule, nil
}

// GetRule loads one rule.
func (s *Service) GetRule(ctx context.Context, ruleID uuid.UUID) (store.NotifyRule, error) {
	return s.repo.GetRule(ctx, ruleID)
}

// ListRules returns every rule.
func (s *Service) ListRules(ctx context.Context) ([]store.NotifyRule, error) {
	return s.repo.ListRules(ctx)
}

// UpdateRule validates and replaces a rule's mutable fields.
func (s *Service) UpdateRule(ctx context.Context, ruleID uuid.UUID, in RuleInput) (store.NotifyRule, error) {
	if err := s.validateRule(ctx, in); err != nil {
		return store.NotifyRule{}, err
	}
	existing, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return store.NotifyRule{}, err
	}
	rule := existing
	rule.Event = in.Event
	rule.Channel = in.Channel
	rule.TemplateID = in.TemplateID
	rule.OffsetHours = in.OffsetHours
	rule.Enabled = in.Enabled
	rule.UpdatedAt = s.clock.Now()
	if err := s.repo.UpdateRule(ctx, rule); err != nil {
		return store.NotifyRule{}, err
	}
	return rule, nil
}

// DeleteRule removes the rule.
func (s *Service) DeleteRule(ctx context.Context, ruleID uuid.UUID) error {
	return s.repo.DeleteRule(ctx, ruleID)
}

func (s *Service) validateRule(ctx context.Context, in RuleInput) error {
	switch in.Event {
	case store.EventPaymentDue, store.EventQuota80, store.EventQuota100,
		store.EventServiceDown, store.EventPlanExpiry:
	default:
		return fmt.Errorf("%w: unknown event %q", store.ErrInvalid, in.Event)
	}
	switch in.Channel {
	case store.ChannelSMS, store.ChannelEmail, store.ChannelWhatsApp:
	default:
		return fmt.Errorf("%w: unknown channel %q", store.ErrInvalid, in.Channel)
	}
	if _, err := s.repo.GetTemplate(ctx, in.TemplateID); err != nil {
		return fmt.Errorf("%w: template %s: %v", store.ErrInvalid, in.TemplateID, err)
	}
	return nil
}

// TestSend renders the rule's template with sample data and delivers it
// to the given destination through the rule's channel. Unlike campaign
// sends there is no retry: the operator wants the first failure.
func (s *Service) TestSend(ctx context.Context, ruleID uuid.UUID, to string) error {
	if to == "" {
		return fmt.Errorf("%w: destination is required", store.ErrInvalid)
	}
	rule, err := s.repo.GetRule(ctx, ruleID)
	if err != nil {
		return err
	}
	tpl, err := s.repo.GetTemplate(ctx, rule.TemplateID)
	if err != nil {
		return fmt.Errorf("load template %s: %w", rule.TemplateID, err)
	}
	body := RenderSample(tpl.Body)

	switch rule.Channel {
	case store.ChannelEmail:
		subject := RenderSample(tpl.Subject)
		if err := s.email.Send(to, subject, body); err != nil {
			return fmt.Errorf("test send email: %w", err)
		}
	case store.ChannelSMS:
		if _, err := s.sms.Send(ctx, to, body); err != nil {
			return fmt.Errorf("test send sms: %w", err)
		}
	case store.ChannelWhatsApp:
		if _, err := s.whatsapp.Send(ctx, to, body); err != nil {
			return fmt.Errorf("test send whatsapp: %w", err)
		}
	default:
		return fmt.Errorf("%w: unknown channel %q", store.ErrInvalid, rule.Channel)
	}

	s.logger.Info("test notification sent",
		zap.String("rule_id", ruleID.String()),
		zap.String("channel", string(rule.Channel)),
		zap.String("to", to))
	return nil
}
