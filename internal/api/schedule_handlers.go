package api

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/schedule"
	"github.com/strataisp/console/internal/store"
)

// ScheduleService is the slice of the schedule service the API uses.
type ScheduleService interface {
	Create(ctx context.Context, in schedule.RuleInput) (store.ScheduleRule, error)
	Get(ctx context.Context, ruleID uuid.UUID) (store.ScheduleRule, error)
	List(ctx context.Context) ([]store.ScheduleRule, error)
	Update(ctx context.Context, ruleID uuid.UUID, in schedule.RuleInput) (store.ScheduleRule, error)
	Delete(ctx context.Context, ruleID uuid.UUID) error
	Toggle(ctx context.Context, ruleID uuid.UUID, enabled bool) (store.ScheduleRule, error)
}

type scheduleRuleRequest struct {
	Name         string `json:"name"`
	DayMask      int    `json:"day_mask"`
	StartMinute  int    `json:"start_minute"`
	EndMinute    int    `json:"end_minute"`
	RateDownKbps int    `json:"rate_down_kbps"`
	RateUpKbps   int    `json:"rate_up_kbps"`
	TargetGroup  string `json:"target_group"`
	Enabled      bool   `json:"enabled"`
}

type scheduleRuleResponse struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	DayMask      int       `json:"day_mask"`
	StartMinute  int       `json:"start_minute"`
	EndMinute    int       `json:"end_minute"`
	RateDownKbps int       `json:"rate_down_kbps"`
	RateUpKbps   int       `json:"rate_up_kbps"`
	TargetGroup  string    `json:"target_group"`
	Enabled      bool      `json:"enabled"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type toggleRequest struct {
	Enabled bool `json:"enabled"`
}

func toScheduleRuleResponse(rule store.ScheduleRule) scheduleRuleResponse {
	return scheduleRuleResponse{
		ID:           rule.ID,
		Name:         rule.Name,
		DayMask:      rule.DayMask,
		StartMinute:  rule.StartMinute,
		EndMinute:    rule.EndMinute,
		RateDownKbps: rule.RateDownKbps,
		RateUpKbps:   rule.RateUpKbps,
		TargetGroup:  rule.TargetGroup,
		Enabled:      rule.Enabled,
		CreatedAt:    rule.CreatedAt,
		UpdatedAt:    rule.UpdatedAt,
	}
}

func toScheduleRuleInput(req scheduleRuleRequest) schedule.RuleInput {
	return schedule.RuleInput{
		Name:         req.Name,
		DayMask:      req.DayMask,
		StartMinute:  req.StartMinute,
		EndMinute:    req.EndMinute,
		RateDownKbps: req.RateDownKbps,
		RateUpKbps:   req.RateUpKbps,
		TargetGroup:  req.TargetGroup,
		Enabled:      req.Enabled,
	}
}

func (s *Server) createScheduleRule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rule, err := s.svc.Schedule.Create(r.Context(), toScheduleRuleInput(req))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleRuleResponse(rule))
}

func (s *Server) listScheduleRules(w http.ResponseWriter, r *http.Request) {
	rules, err := s.svc.Schedule.List(r.Context())
	if err != nil {
		s.respondError(w, err)
		return
	}
	out := make([]scheduleRuleResponse, 0, len(rules))
	for _, rule := range rules {
		out = append(out, toScheduleRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": out})
}

func (s *Server) getScheduleRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	rule, err := s.svc.Schedule.Get(r.Context(), ruleID)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleRuleResponse(rule))
}

func (s *Server) updateScheduleRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var req scheduleRuleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rule, err := s.svc.Schedule.Update(r.Context(), ruleID, toScheduleRuleInput(req))
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleRuleResponse(rule))
}

func (s *Server) deleteScheduleRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	if err := s.svc.Schedule.Delete(r.Context(), ruleID); err != nil {
		s.respondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) toggleScheduleRule(w http.ResponseWriter, r *http.Request) {
	ruleID, ok := pathUUID(r, "rule_id")
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid rule id")
		return
	}
	var req toggleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	rule, err := s.svc.Schedule.Toggle(r.Context(), ruleID, req.Enabled)
	if err != nil {
		s.respondError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleRuleResponse(rule))
}
