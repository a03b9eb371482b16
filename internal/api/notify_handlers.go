package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/notify"
	"github.com/strataisp/console/internal/store"
)

// NotifyService is the slice of the notify service the API uses.
type NotifyService interface {
	CreateTemplate(ctx context.Context, in notify.TemplateInput) (store.Template, error)
	GetTemplate(ctx context.Context, tplID uuid.UUID) (store.Template, error)
	ListTemplates(ctx context.Context) ([]store.Template, error)
	UpdateTemplate(ctx context.Context, tplID uuid.UUID, in notify.TemplateInput) (store.Template, error)
	DeleteTemplate(ctx context.Context, tplID uuid.UUID) error

	CreateRule(ctx context.Context, in notify.RuleInput) (store.NotifyRule, error)
	GetRule(ctx context.Context, ruleID uuid.UUID) (store.NotifyRule, error)
	ListRules(ctx context.Context) ([]store.NotifyRule, error)
	UpdateRule(ctx context.Context, ruleID uuid.UUID, in notify.RuleInput) (store.NotifyRule, error)
	DeleteRule(ctx context.Context, ruleID uuid.UUID) error
	TestSend(ctx context.Context, ruleID uuid.UUID, to string) error
}

type templateRequest struct {
	Name    string `json:"name"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type templateResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Subject   string    `json:"subject,omitempty"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type notifyRuleRequest struct {
	Event       string    `json:"event"`
	Channel     string    `json:"channel"`
	TemplateID  uuid.UUID `json:"template_id"`
	OffsetHours int       `json:"offset_hours"`
	Enabled     bool      `json:"enabled"`
}

type notifyRuleResponse struct {
	ID          uuid.UUID `json:"id"`
	Event       string    `json:"event"`
	Channel     string    `json:"channel"`
	TemplateID  uuid.UUID `json:"template_id"`
	OffsetHours int       `json:"offset_hours"`
	Enabled     bool      `json:"enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type testSendRequest struct {
	To string `json:"to"`
}

func toTemplateResponse(tpl store.Template) templateResponse {
	return templateResponse{
		ID:        tpl.ID,
		Name:      tpl.Name,
		Subject:   tpl.Subject,
		Body:      tpl.Body,
		CreatedAt: tpl.CreatedAt,
		UpdatedAt: tpl.UpdatedAt,
	}
}

func toNotifyRuleResponse(rule store.NotifyRule) notifyRuleResponse {
	return notifyRuleResponse{
		ID:          rule.ID,
		Event:       string(rule.Event),
		Channel:     string(rule.Channel),
		TemplateID:  rule.TemplateID,
		OffsetHours: rule.OffsetHours,
		Enabled:     rule.Enabled,
		CreatedAt:   rule.CreatedAt,
		UpdatedAt:   rule.UpdatedAt,
	}
}

func (s *Server) createTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	tpl, err := s.svc.Notify.CreateTemplate(r.Context(), notify.TemplateInput{
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTemplateResponse(tpl))
}

func (s *Server) listTemplates(w http.ResponseWriter, r *http.Request) {
	templates, err := s.svc.Notify.ListTemplates(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]templateResponse, 0, len(templates))
	for _, tpl := range templates {
		out = append(out, toTemplateResponse(tpl))
	}
	writeJSON(w, http.StatusOK, map[string]any{"templates": out})
}

func (s *Server) getTemplate(w http.ResponseWriter, r *http.Request) {
	tplID, ok := pathUUID(r, "template_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	tpl, err := s.svc.Notify.GetTemplate(r.Context(), tplID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

func (s *Server) updateTemplate(w http.ResponseWriter, r *http.Request) {
	tplID, ok := pathUUID(r, "template_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	tpl, err := s.svc.Notify.UpdateTemplate(r.Context(), tplID, notify.TemplateInput{
		Name:    req.Name,
		Subject: req.Subject,
		Body:    req.Body,
	})
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateResponse(tpl))
}

func (s *Server) deleteTemplate(w http.ResponseWriter, r *http.Request) {
	tplID, ok := pathUUID(r, "template_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid template id")
		return
	}
	if err := s.svc.Notify.DeleteTemplate(r.Context(), tplID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) createNotifyRule(w http.ResponseWriter, r *http.Request) {
	var req notifyRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rule, err := s.svc.Notify.CreateRule(r.Context(), toRuleInput(req))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNotifyRuleResponse(rule))
}

func (s *Server) listNotifyRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.svc.Notify.ListRules(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]notifyRuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toNotifyRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (s *Server) getNotifyRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, err := s.svc.Notify.GetRule(r.Context(), ruleID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotifyRuleResponse(rule))
}

func (s *Server) updateNotifyRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var req notifyRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rule, err := s.svc.Notify.UpdateRule(r.Context(), ruleID, toRuleInput(req))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toNotifyRuleResponse(rule))
}

func (s *Server) deleteNotifyRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if err := s.svc.Notify.DeleteRule(r.Context(), ruleID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) testNotifyRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var req testSendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := s.svc.Notify.TestSend(r.Context(), ruleID, req.To); err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

func toRuleInput(req notifyRuleRequest) notify.RuleInput {
	return notify.RuleInput{
		Event:       store.NotifyEvent(req.Event),
		Channel:     store.NotifyChannel(req.Channel),
		TemplateID:  req.TemplateID,
		OffsetHours: req.OffsetHours,
		Enabled:     req.Enabled,
	}
}
