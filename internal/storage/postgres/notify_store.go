package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/strataisp/console/internal/store"
)

// NotifyStore implements store.NotifyRepository.
type NotifyStore struct {
	db DB
}

// NewNotifyStore creates a new NotifyStore on the shared pool.
func NewNotifyStore(db DB) *NotifyStore {
	return &NotifyStore{db: db}
}

// CreateTemplate inserts a new message template.
func (s *NotifyStore) CreateTemplate(ctx context.Context, tpl store.Template) error {
	query := `
		INSERT INTO templates (id, name, subject, body, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6);
	`
	_, err := s.db.Exec(ctx, query, tpl.ID, tpl.Name, tpl.Subject, tpl.Body, tpl.CreatedAt, tpl.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: template name %q already exists", store.ErrConflict, tpl.Name)
		}
		return fmt.Errorf("insert template: %w", err)
	}
	return nil
}

// GetTemplate retrieves a single template by its ID.
func (s *NotifyStore) GetTemplate(ctx context.Context, id uuid.UUID) (store.Template, error) {
	query := `SELECT id, name, subject, body, created_at, updated_at FROM templates WHERE id = $1;`
	var tpl store.Template
	err := s.db.QueryRow(ctx, query, id).Scan(
		&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.Body, &tpl.CreatedAt, &tpl.UpdatedAt,
	)
	if err != nil {
		return store.Template{}, notFound(err, "get template")
	}
	return tpl, nil
}

// ListTemplates returns all templates ordered by name.
func (s *NotifyStore) ListTemplates(ctx context.Context) ([]store.Template, error) {
	query := `SELECT id, name, subject, body, created_at, updated_at FROM templates ORDER BY name;`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []store.Template
	for rows.Next() {
		var tpl store.Template
		if err := rows.Scan(&tpl.ID, &tpl.Name, &tpl.Subject, &tpl.Body, &tpl.CreatedAt, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, tpl)
	}
	return templates, rows.Err()
}

// UpdateTemplate replaces the template's mutable columns.
func (s *NotifyStore) UpdateTemplate(ctx context.Context, tpl store.Template) error {
	query := `
		UPDATE templates
		SET name = $2, subject = $3, body = $4, updated_at = $5
		WHERE id = $1;
	`
	res, err := s.db.Exec(ctx, query, tpl.ID, tpl.Name, tpl.Subject, tpl.Body, tpl.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: template name %q already exists", store.ErrConflict, tpl.Name)
		}
		return fmt.Errorf("update template: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteTemplate removes the template. Templates still referenced by
// notification rules or quota profiles cannot be deleted.
func (s *NotifyStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.Exec(ctx, `DELETE FROM templates WHERE id = $1;`, id)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: template is still in use", store.ErrConflict)
		}
		return fmt.Errorf("delete template: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

const notifyRuleColumns = `id, event, channel, template_id, offset_hours, enabled, created_at, updated_at`

// CreateRule inserts a new notification rule.
func (s *NotifyStore) CreateRule(ctx context.Context, rule store.NotifyRule) error {
	query := `
		INSERT INTO notify_rules (` + notifyRuleColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
	`
	_, err := s.db.Exec(ctx, query,
		rule.ID, rule.Event, rule.Channel, rule.TemplateID, rule.OffsetHours,
		rule.Enabled, rule.CreatedAt, rule.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: template %s does not exist", store.ErrConflict, rule.TemplateID)
		}
		return fmt.Errorf("insert notify rule: %w", err)
	}
	return nil
}

// GetRule retrieves a single rule by its ID.
func (s *NotifyStore) GetRule(ctx context.Context, id uuid.UUID) (store.NotifyRule, error) {
	query := `SELECT ` + notifyRuleColumns + ` FROM notify_rules WHERE id = $1;`
	var rule store.NotifyRule
	err := s.db.QueryRow(ctx, query, id).Scan(
		&rule.ID, &rule.Event, &rule.Channel, &rule.TemplateID, &rule.OffsetHours,
		&rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt,
	)
	if err != nil {
		return store.NotifyRule{}, notFound(err, "get notify rule")
	}
	return rule, nil
}

// ListRules returns all rules ordered by event then channel.
func (s *NotifyStore) ListRules(ctx context.Context) ([]store.NotifyRule, error) {
	query := `SELECT ` + notifyRuleColumns + ` FROM notify_rules ORDER BY event, channel;`
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list notify rules: %w", err)
	}
	defer rows.Close()

	var rules []store.NotifyRule
	for rows.Next() {
		var rule store.NotifyRule
		err := rows.Scan(
			&rule.ID, &rule.Event, &rule.Channel, &rule.TemplateID, &rule.OffsetHours,
			&rule.Enabled, &rule.CreatedAt, &rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan notify rule: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// UpdateRule replaces the rule's mutable columns.
func (s *NotifyStore) UpdateRule(ctx context.Context, rule store.NotifyRule) error {
	query := `
		UPDATE notify_rules
		SET event = $2, channel = $3, template_id = $4, offset_hours = $5,
			enabled = $6, updated_at = $7
		WHERE id = $1;
	`
	res, err := s.db.Exec(ctx, query,
		rule.ID, rule.Event, rule.Channel, rule.TemplateID, rule.OffsetHours,
		rule.Enabled, rule.UpdatedAt,
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return fmt.Errorf("%w: template %s does not exist", store.ErrConflict, rule.TemplateID)
		}
		return fmt.Errorf("update notify rule: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// DeleteRule removes the rule.
func (s *NotifyStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.Exec(ctx, `DELETE FROM notify_rules WHERE id = $1;`, id)
	if err != nil {
		return fmt.Errorf("delete notify rule: %w", err)
	}
	if res.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
