package template

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
)

// PostgresStore is the read model over the template tables maintained by the
// authoring module. It also serves classifications, which authoring writes
// alongside the triggering events.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ResolveClassification(ctx context.Context, eventRef domain.EventRef) (*Classification, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT product_key, grade_key, period_key, teacher_id, class_group_id
		FROM event_classifications
		WHERE event_ref = $1`, string(eventRef))
	var c Classification
	err := row.Scan(&c.ProductKey, &c.GradeKey, &c.PeriodKey, &c.TeacherID, &c.ClassGroupID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan classification: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) FindPublishedProcessTemplate(ctx context.Context, productKey, gradeKey, periodKey string) (*ProcessTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT code, product_key, grade_key, period_key, event_type_code, published
		FROM process_templates
		WHERE published AND product_key = $1 AND grade_key = $2 AND period_key = $3
		ORDER BY code
		LIMIT 1`, productKey, gradeKey, periodKey)
	return scanProcessTemplate(row)
}

func (s *PostgresStore) FindProcessTemplateByCode(ctx context.Context, code string) (*ProcessTemplate, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT code, product_key, grade_key, period_key, event_type_code, published
		FROM process_templates
		WHERE code = $1`, code)
	return scanProcessTemplate(row)
}

func scanProcessTemplate(row *sql.Row) (*ProcessTemplate, error) {
	var t ProcessTemplate
	err := row.Scan(&t.Code, &t.ProductKey, &t.GradeKey, &t.PeriodKey, &t.EventTypeCode, &t.Published)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan process template: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListPublishedSteps(ctx context.Context, processTemplateCode string) ([]*StepTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, process_template_code, display_name, sample_size, published
		FROM step_templates
		WHERE published AND process_template_code = $1
		ORDER BY code`, processTemplateCode)
	if err != nil {
		return nil, fmt.Errorf("list step templates: %w", err)
	}
	defer rows.Close()

	var out []*StepTemplate
	for rows.Next() {
		var t StepTemplate
		if err := rows.Scan(&t.Code, &t.ProcessTemplateCode, &t.DisplayName, &t.SampleSize, &t.Published); err != nil {
			return nil, fmt.Errorf("scan step template: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListPublishedChecklists(ctx context.Context, stepTemplateCode string) ([]*ChecklistTemplate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, step_template_code, COALESCE(parent_code, ''), max_score, COALESCE(guidance, ''), published
		FROM checklist_templates
		WHERE published AND step_template_code = $1
		ORDER BY code`, stepTemplateCode)
	if err != nil {
		return nil, fmt.Errorf("list checklist templates: %w", err)
	}
	defer rows.Close()

	var out []*ChecklistTemplate
	for rows.Next() {
		var t ChecklistTemplate
		if err := rows.Scan(&t.Code, &t.StepTemplateCode, &t.ParentCode, &t.MaxScore, &t.Guidance, &t.Published); err != nil {
			return nil, fmt.Errorf("scan checklist template: %w", err)
		}
		out = append(out, &t)
	}
	return out, rows.Err()
}
