package platform

import (
	"context"
	"net/http"
	"net/url"
)

// AudienceMember is one subscriber matched by an audience filter.
type AudienceMember struct {
	SubscriberID string `json:"subscriber_id"`
	Phone        string `json:"phone"`
	Name         string `json:"name"`
}

// QueryAudience resolves a core filter expression to the subscribers it
// matches right now.
func (c *Client) QueryAudience(ctx context.Context, filter string) ([]AudienceMember, error) {
	in := struct {
		Filter string `json:"filter"`
	}{Filter: filter}
	var wire struct {
		Subscribers []AudienceMember `json:"subscribers"`
	}
	if err := c.post(ctx, "/api/internal/subscribers/query", in, &wire); err != nil {
		return nil, err
	}
	return wire.Subscribers, nil
}

// PlanExists reports whether the core knows the plan code.
func (c *Client) PlanExists(ctx context.Context, code string) (bool, error) {
	err := c.get(ctx, "/api/internal/plans/"+url.PathEscape(code), nil)
	if err != nil {
		if statusOf(err) == http.StatusNotFound {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SubscriberUpsert is one imported subscriber row pushed to the core.
type SubscriberUpsert struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Email    string `json:"email,omitempty"`
	PlanCode string `json:"plan_code"`
	Address  string `json:"address,omitempty"`
}

// UpsertOutcome is the core's verdict on one row of a batch, by position.
type UpsertOutcome struct {
	Index   int    `json:"index"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// UpsertSubscribers pushes one import batch. The returned outcomes are
// positional; a row can fail (duplicate phone, dead plan) without failing
// the batch.
func (c *Client) UpsertSubscribers(ctx context.Context, batch []SubscriberUpsert) ([]UpsertOutcome, error) {
	in := struct {
		Subscribers []SubscriberUpsert `json:"subscribers"`
	}{Subscribers: batch}
	var wire struct {
		Results []UpsertOutcome `json:"results"`
	}
	if err := c.post(ctx, "/api/internal/subscribers/batch", in, &wire); err != nil {
		return nil, err
	}
	return wire.Results, nil
}
