package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

const jobColumns = `id, client_id, freelancer_id, title, description, category, skills,
	budget_cents, currency, budget_type, status, deadline, created_at, updated_at`

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j      domain.Job
		status string
	)
	if err := row.Scan(
		&j.ID,
		&j.ClientID,
		&j.FreelancerID,
		&j.Title,
		&j.Description,
		&j.Category,
		&j.Skills,
		&j.BudgetCents,
		&j.Currency,
		&j.BudgetType,
		&status,
		&j.Deadline,
		&j.CreatedAt,
		&j.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	j.Status = domain.JobStatus(status)
	return &j, nil
}

// CreateJob inserts a job posting.
func (r *Repository) CreateJob(ctx context.Context, job *domain.Job) error {
	const query = `INSERT INTO jobs (id, client_id, title, description, category, skills, budget_cents, currency, budget_type, status, deadline, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12)`
	_, err := r.pool.Exec(ctx, query,
		job.ID,
		job.ClientID,
		job.Title,
		job.Description,
		job.Category,
		nonNilStrings(job.Skills),
		job.BudgetCents,
		job.Currency,
		job.BudgetType,
		string(job.Status),
		timePtrToNil(job.Deadline),
		job.CreatedAt,
	)
	return mapError(err)
}

// GetJobByID fetches a job.
func (r *Repository) GetJobByID(ctx context.Context, id string) (*domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.pool.QueryRow(ctx, query, id))
}

// ListJobs returns jobs matching filter, newest first.
func (r *Repository) ListJobs(ctx context.Context, filter domain.JobFilter) ([]domain.Job, error) {
	limit, offset := clampPage(filter.Limit, filter.Offset)
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if filter.Status != "" {
		add("status = $%d", string(filter.Status))
	}
	if skill := strings.TrimSpace(filter.Skill); skill != "" {
		add("$%d = ANY(skills)", strings.ToLower(skill))
	}
	if q := strings.TrimSpace(filter.Query); q != "" {
		add(`(title ILIKE $%[1]d ESCAPE '\' OR description ILIKE $%[1]d ESCAPE '\')`, containsPattern(q))
	}
	if filter.ClientID != "" {
		add("client_id = $%d", filter.ClientID)
	}
	if filter.FreelancerID != "" {
		add("freelancer_id = $%d", filter.FreelancerID)
	}
	if filter.MinBudget > 0 {
		add("budget_cents >= $%d", filter.MinBudget)
	}
	if filter.MaxBudget > 0 {
		add("budget_cents <= $%d", filter.MaxBudget)
	}
	query := `SELECT ` + jobColumns + ` FROM jobs`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf(` ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	jobs := make([]domain.Job, 0)
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern matches q literally anywhere in the column.
func containsPattern(q string) string {
	return "%" + likeEscaper.Replace(q) + "%"
}

// UpdateJob writes the editable fields of an open job.
func (r *Repository) UpdateJob(ctx context.Context, job *domain.Job) error {
	const query = `UPDATE jobs
		SET title = $2,
			description = $3,
			category = $4,
			skills = $5,
			budget_cents = $6,
			budget_type = $7,
			deadline = $8,
			updated_at = NOW()
		WHERE id = $1 AND status = 'open'
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		job.ID,
		job.Title,
		job.Description,
		job.Category,
		nonNilStrings(job.Skills),
		job.BudgetCents,
		job.BudgetType,
		timePtrToNil(job.Deadline),
	).Scan(&job.UpdatedAt)
	err = mapError(err)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.ErrStale
	}
	return err
}

// TransitionJob moves a job between statuses with an optimistic status check.
func (r *Repository) TransitionJob(ctx context.Context, id string, from, to domain.JobStatus) error {
	const query = `UPDATE jobs SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	tag, err := r.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStale
	}
	return nil
}
