// Package postgres implements the audit store ports over PostgreSQL.
//
// The (event_ref, audit_type) uniqueness rule is enforced by a constraint
// here, not just by the service-level pre-check, so concurrent creation
// requests cannot both insert.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"auditflow/internal/audit/models"
	"auditflow/pkg/domain"
	"auditflow/pkg/platform/sentinel"
	"auditflow/pkg/platform/tx"
)

// uniqueViolation is the PostgreSQL error code for constraint collisions.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation
}

type execQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// querier prefers a transaction carried in ctx over the shared pool, so
// callers batching writes can wrap them atomically without the stores
// knowing.
func querier(ctx context.Context, db *sql.DB) execQuerier {
	if txn, ok := tx.From(ctx); ok {
		return txn
	}
	return db
}

type ProcessStore struct {
	db *sql.DB
}

func NewProcessStore(db *sql.DB) *ProcessStore {
	return &ProcessStore{db: db}
}

const processColumns = `code, template_code, audit_type, event_ref, teacher_id, auditor_id,
	slide_link, video_links, class_group_code, origin_code, status, created_at, updated_at`

func (s *ProcessStore) Insert(ctx context.Context, p *models.ProcessInstance) error {
	query := `
		INSERT INTO audit_processes (` + processColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := querier(ctx, s.db).ExecContext(ctx, query,
		p.Code, p.TemplateCode, p.AuditType, p.EventRef, p.TeacherID, p.AuditorID,
		p.SlideLink, pq.Array(p.VideoLinks), p.ClassGroupCode, p.OriginCode,
		p.Status, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert process: %w", err)
	}
	return nil
}

func (s *ProcessStore) Update(ctx context.Context, p *models.ProcessInstance) error {
	query := `
		UPDATE audit_processes
		SET auditor_id = $2, slide_link = $3, video_links = $4, class_group_code = $5,
			status = $6, updated_at = $7
		WHERE code = $1
	`
	res, err := querier(ctx, s.db).ExecContext(ctx, query,
		p.Code, p.AuditorID, p.SlideLink, pq.Array(p.VideoLinks), p.ClassGroupCode,
		p.Status, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update process: %w", err)
	}
	return requireRow(res)
}

func (s *ProcessStore) FindByCode(ctx context.Context, code domain.ProcessCode) (*models.ProcessInstance, error) {
	row := querier(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+processColumns+` FROM audit_processes WHERE code = $1`, code)
	return scanProcess(row)
}

func (s *ProcessStore) FindByEventAndType(ctx context.Context, ref domain.EventRef, t domain.AuditType) (*models.ProcessInstance, error) {
	row := querier(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+processColumns+` FROM audit_processes WHERE event_ref = $1 AND audit_type = $2`, ref, t)
	return scanProcess(row)
}

func (s *ProcessStore) FindByOrigin(ctx context.Context, origin domain.ProcessCode) (*models.ProcessInstance, error) {
	row := querier(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+processColumns+` FROM audit_processes WHERE origin_code = $1`, origin)
	return scanProcess(row)
}

func (s *ProcessStore) FindByCodes(ctx context.Context, codes []domain.ProcessCode) (map[domain.ProcessCode]*models.ProcessInstance, error) {
	raw := make([]string, len(codes))
	for i, c := range codes {
		raw[i] = c.String()
	}
	rows, err := querier(ctx, s.db).QueryContext(ctx,
		`SELECT `+processColumns+` FROM audit_processes WHERE code = ANY($1)`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find processes by codes: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ProcessCode]*models.ProcessInstance, len(codes))
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out[p.Code] = p
	}
	return out, rows.Err()
}

func (s *ProcessStore) ListByAuditor(ctx context.Context, auditor domain.AuditorID) ([]*models.ProcessInstance, error) {
	rows, err := querier(ctx, s.db).QueryContext(ctx,
		`SELECT `+processColumns+` FROM audit_processes WHERE auditor_id = $1 ORDER BY code`, auditor)
	if err != nil {
		return nil, fmt.Errorf("list processes by auditor: %w", err)
	}
	defer rows.Close()

	var out []*models.ProcessInstance
	for rows.Next() {
		p, err := scanProcess(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *ProcessStore) CountByAuditor(ctx context.Context) (map[domain.AuditorID]int, error) {
	rows, err := querier(ctx, s.db).QueryContext(ctx, `
		SELECT auditor_id, COUNT(*)
		FROM audit_processes
		WHERE auditor_id <> ''
		GROUP BY auditor_id
	`)
	if err != nil {
		return nil, fmt.Errorf("count processes by auditor: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.AuditorID]int)
	for rows.Next() {
		var auditor domain.AuditorID
		var count int
		if err := rows.Scan(&auditor, &count); err != nil {
			return nil, fmt.Errorf("scan workload row: %w", err)
		}
		out[auditor] = count
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProcess(row scanner) (*models.ProcessInstance, error) {
	var p models.ProcessInstance
	var videos pq.StringArray
	err := row.Scan(
		&p.Code, &p.TemplateCode, &p.AuditType, &p.EventRef, &p.TeacherID, &p.AuditorID,
		&p.SlideLink, &videos, &p.ClassGroupCode, &p.OriginCode,
		&p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan process: %w", err)
	}
	p.VideoLinks = videos
	return &p, nil
}

type StepStore struct {
	db *sql.DB
}

func NewStepStore(db *sql.DB) *StepStore {
	return &StepStore{db: db}
}

const stepColumns = `code, process_code, template_code, auditor_id, position, progress, note,
	status, created_at, updated_at`

func (s *StepStore) Insert(ctx context.Context, step *models.StepInstance) error {
	query := `
		INSERT INTO audit_steps (` + stepColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := querier(ctx, s.db).ExecContext(ctx, query,
		step.Code, step.ProcessCode, step.TemplateCode, step.AuditorID, step.Position,
		step.Progress, step.Note, step.Status, step.CreatedAt, step.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert step: %w", err)
	}
	return nil
}

func (s *StepStore) Update(ctx context.Context, step *models.StepInstance) error {
	query := `
		UPDATE audit_steps
		SET auditor_id = $2, progress = $3, note = $4, status = $5, updated_at = $6
		WHERE code = $1
	`
	res, err := querier(ctx, s.db).ExecContext(ctx, query,
		step.Code, step.AuditorID, step.Progress, step.Note, step.Status, step.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update step: %w", err)
	}
	return requireRow(res)
}

func (s *StepStore) FindByCode(ctx context.Context, code domain.StepCode) (*models.StepInstance, error) {
	row := querier(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+stepColumns+` FROM audit_steps WHERE code = $1`, code)
	return scanStep(row)
}

func (s *StepStore) ListByProcess(ctx context.Context, process domain.ProcessCode) ([]*models.StepInstance, error) {
	rows, err := querier(ctx, s.db).QueryContext(ctx,
		`SELECT `+stepColumns+` FROM audit_steps WHERE process_code = $1 ORDER BY position`, process)
	if err != nil {
		return nil, fmt.Errorf("list steps by process: %w", err)
	}
	defer rows.Close()

	var out []*models.StepInstance
	for rows.Next() {
		step, err := scanStep(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, step)
	}
	return out, rows.Err()
}

func scanStep(row scanner) (*models.StepInstance, error) {
	var step models.StepInstance
	err := row.Scan(
		&step.Code, &step.ProcessCode, &step.TemplateCode, &step.AuditorID, &step.Position,
		&step.Progress, &step.Note, &step.Status, &step.CreatedAt, &step.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan step: %w", err)
	}
	return &step, nil
}

type ChecklistStore struct {
	db *sql.DB
}

func NewChecklistStore(db *sql.DB) *ChecklistStore {
	return &ChecklistStore{db: db}
}

const checklistColumns = `code, step_code, process_code, template_code, score, max_score,
	guidance, note, status, created_at, updated_at`

func (s *ChecklistStore) Insert(ctx context.Context, c *models.ChecklistInstance) error {
	query := `
		INSERT INTO audit_checklist_items (` + checklistColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := querier(ctx, s.db).ExecContext(ctx, query,
		c.Code, c.StepCode, c.ProcessCode, c.TemplateCode, c.Score, c.MaxScore,
		c.Guidance, c.Note, c.Status, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert checklist item: %w", err)
	}
	return nil
}

func (s *ChecklistStore) Update(ctx context.Context, c *models.ChecklistInstance) error {
	query := `
		UPDATE audit_checklist_items
		SET score = $2, note = $3, status = $4, updated_at = $5
		WHERE code = $1
	`
	res, err := querier(ctx, s.db).ExecContext(ctx, query, c.Code, c.Score, c.Note, c.Status, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update checklist item: %w", err)
	}
	return requireRow(res)
}

func (s *ChecklistStore) FindByCodes(ctx context.Context, codes []domain.ChecklistCode) (map[domain.ChecklistCode]*models.ChecklistInstance, error) {
	raw := make([]string, len(codes))
	for i, c := range codes {
		raw[i] = c.String()
	}
	rows, err := querier(ctx, s.db).QueryContext(ctx,
		`SELECT `+checklistColumns+` FROM audit_checklist_items WHERE code = ANY($1)`, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("find checklist items by codes: %w", err)
	}
	defer rows.Close()

	out := make(map[domain.ChecklistCode]*models.ChecklistInstance, len(codes))
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			return nil, err
		}
		out[c.Code] = c
	}
	return out, rows.Err()
}

func (s *ChecklistStore) ListByStep(ctx context.Context, step domain.StepCode) ([]*models.ChecklistInstance, error) {
	rows, err := querier(ctx, s.db).QueryContext(ctx,
		`SELECT `+checklistColumns+` FROM audit_checklist_items WHERE step_code = $1 ORDER BY code`, step)
	if err != nil {
		return nil, fmt.Errorf("list checklist items by step: %w", err)
	}
	defer rows.Close()
	return collectChecklists(rows)
}

func (s *ChecklistStore) ListByProcess(ctx context.Context, process domain.ProcessCode) ([]*models.ChecklistInstance, error) {
	rows, err := querier(ctx, s.db).QueryContext(ctx,
		`SELECT `+checklistColumns+` FROM audit_checklist_items WHERE process_code = $1 ORDER BY code`, process)
	if err != nil {
		return nil, fmt.Errorf("list checklist items by process: %w", err)
	}
	defer rows.Close()
	return collectChecklists(rows)
}

func collectChecklists(rows *sql.Rows) ([]*models.ChecklistInstance, error) {
	var out []*models.ChecklistInstance
	for rows.Next() {
		c, err := scanChecklist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChecklist(row scanner) (*models.ChecklistInstance, error) {
	var c models.ChecklistInstance
	err := row.Scan(
		&c.Code, &c.StepCode, &c.ProcessCode, &c.TemplateCode, &c.Score, &c.MaxScore,
		&c.Guidance, &c.Note, &c.Status, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan checklist item: %w", err)
	}
	return &c, nil
}

type ThresholdStore struct {
	db *sql.DB
}

func NewThresholdStore(db *sql.DB) *ThresholdStore {
	return &ThresholdStore{db: db}
}

func (s *ThresholdStore) ListBands(ctx context.Context, t domain.AuditType) ([]models.ThresholdBand, error) {
	rows, err := querier(ctx, s.db).QueryContext(ctx, `
		SELECT audit_type, verdict, min_score, max_score
		FROM threshold_bands
		WHERE audit_type = $1
		ORDER BY min_score ASC NULLS FIRST
	`, t)
	if err != nil {
		return nil, fmt.Errorf("list threshold bands: %w", err)
	}
	defer rows.Close()

	var out []models.ThresholdBand
	for rows.Next() {
		var b models.ThresholdBand
		if err := rows.Scan(&b.AuditType, &b.Verdict, &b.MinScore, &b.MaxScore); err != nil {
			return nil, fmt.Errorf("scan threshold band: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
