package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

const milestoneColumns = `m.id, m.job_id, m.title, m.description, m.amount_cents, m.currency, m.position,
	m.due_date, m.status, m.submission_note, m.revision_note, m.funded_at, m.submitted_at,
	m.approved_at, m.created_at, m.updated_at`

func scanMilestone(row rowScanner) (*domain.Milestone, error) {
	var (
		m      domain.Milestone
		status string
	)
	if err := row.Scan(
		&m.ID,
		&m.JobID,
		&m.Title,
		&m.Description,
		&m.AmountCents,
		&m.Currency,
		&m.Position,
		&m.DueDate,
		&status,
		&m.SubmissionNote,
		&m.RevisionNote,
		&m.FundedAt,
		&m.SubmittedAt,
		&m.ApprovedAt,
		&m.CreatedAt,
		&m.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	m.Status = domain.MilestoneStatus(status)
	return &m, nil
}

func collectMilestones(rows pgx.Rows) ([]domain.Milestone, error) {
	defer rows.Close()
	milestones := make([]domain.Milestone, 0)
	for rows.Next() {
		m, err := scanMilestone(rows)
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, *m)
	}
	return milestones, rows.Err()
}

// CreateMilestone appends a milestone to the job, assigning the next position.
func (r *Repository) CreateMilestone(ctx context.Context, milestone *domain.Milestone) error {
	const query = `INSERT INTO milestones (id, job_id, title, description, amount_cents, currency, position, due_date, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6,
			(SELECT COALESCE(MAX(position), 0) + 1 FROM milestones WHERE job_id = $2),
			$7, $8, $9, $9)
		RETURNING position`
	err := r.pool.QueryRow(ctx, query,
		milestone.ID,
		milestone.JobID,
		milestone.Title,
		milestone.Description,
		milestone.AmountCents,
		milestone.Currency,
		timePtrToNil(milestone.DueDate),
		string(milestone.Status),
		milestone.CreatedAt,
	).Scan(&milestone.Position)
	return mapError(err)
}

// GetMilestoneByID fetches a milestone.
func (r *Repository) GetMilestoneByID(ctx context.Context, id string) (*domain.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones m WHERE m.id = $1`
	return scanMilestone(r.pool.QueryRow(ctx, query, id))
}

// ListMilestonesByJob returns milestones ordered by position.
func (r *Repository) ListMilestonesByJob(ctx context.Context, jobID string) ([]domain.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones m WHERE m.job_id = $1 ORDER BY m.position ASC`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	return collectMilestones(rows)
}

// ListMilestonesByFreelancer returns milestones on jobs the freelancer was hired for.
func (r *Repository) ListMilestonesByFreelancer(ctx context.Context, freelancerID string) ([]domain.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones m
		INNER JOIN jobs j ON j.id = m.job_id
		WHERE j.freelancer_id = $1
		ORDER BY m.created_at ASC`
	rows, err := r.pool.Query(ctx, query, freelancerID)
	if err != nil {
		return nil, err
	}
	return collectMilestones(rows)
}

// ListMilestonesByClient returns milestones on jobs posted by the client.
func (r *Repository) ListMilestonesByClient(ctx context.Context, clientID string) ([]domain.Milestone, error) {
	query := `SELECT ` + milestoneColumns + ` FROM milestones m
		INNER JOIN jobs j ON j.id = m.job_id
		WHERE j.client_id = $1
		ORDER BY m.created_at ASC`
	rows, err := r.pool.Query(ctx, query, clientID)
	if err != nil {
		return nil, err
	}
	return collectMilestones(rows)
}

// UpdateMilestone persists a status change guarded by the expected previous status.
func (r *Repository) UpdateMilestone(ctx context.Context, milestone *domain.Milestone, from domain.MilestoneStatus) error {
	const query = `UPDATE milestones
		SET status = $3,
			submission_note = $4,
			revision_note = $5,
			funded_at = $6,
			submitted_at = $7,
			approved_at = $8,
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING updated_at`
	err := r.pool.QueryRow(ctx, query,
		milestone.ID,
		string(from),
		string(milestone.Status),
		milestone.SubmissionNote,
		milestone.RevisionNote,
		timePtrToNil(milestone.FundedAt),
		timePtrToNil(milestone.SubmittedAt),
		timePtrToNil(milestone.ApprovedAt),
	).Scan(&milestone.UpdatedAt)
	err = mapError(err)
	if errors.Is(err, repository.ErrNotFound) {
		return repository.ErrStale
	}
	return err
}

// CancelOpenMilestones cancels every milestone of a job that has not been approved.
func (r *Repository) CancelOpenMilestones(ctx context.Context, jobID string) (int64, error) {
	const query = `UPDATE milestones SET status = 'cancelled', updated_at = NOW()
		WHERE job_id = $1 AND status IN ('pending', 'funded', 'submitted', 'revision_requested')`
	tag, err := r.pool.Exec(ctx, query, jobID)
	if err != nil {
		return 0, mapError(err)
	}
	return tag.RowsAffected(), nil
}
