package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
)

const applicationColumns = `id, job_id, freelancer_id, cover_letter, bid_cents, estimated_days, status, created_at, updated_at`

func scanApplication(row rowScanner) (*domain.Application, error) {
	var (
		a      domain.Application
		status string
	)
	if err := row.Scan(
		&a.ID,
		&a.JobID,
		&a.FreelancerID,
		&a.CoverLetter,
		&a.BidCents,
		&a.EstimatedDays,
		&status,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	a.Status = domain.ApplicationStatus(status)
	return &a, nil
}

func collectApplications(rows pgx.Rows) ([]domain.Application, error) {
	defer rows.Close()
	apps := make([]domain.Application, 0)
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, *a)
	}
	return apps, rows.Err()
}

// CreateApplication inserts a proposal.
func (r *Repository) CreateApplication(ctx context.Context, app *domain.Application) error {
	const query = `INSERT INTO applications (id, job_id, freelancer_id, cover_letter, bid_cents, estimated_days, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	_, err := r.pool.Exec(ctx, query, app.ID, app.JobID, app.FreelancerID, app.CoverLetter, app.BidCents, app.EstimatedDays, string(app.Status), app.CreatedAt)
	return mapError(err)
}

// GetApplicationByID fetches a proposal.
func (r *Repository) GetApplicationByID(ctx context.Context, id string) (*domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE id = $1`
	return scanApplication(r.pool.QueryRow(ctx, query, id))
}

// ListApplicationsByJob returns proposals on a job, oldest first.
func (r *Repository) ListApplicationsByJob(ctx context.Context, jobID string) ([]domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE job_id = $1 ORDER BY created_at ASC`
	rows, err := r.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

// ListApplicationsByFreelancer returns a freelancer's proposals, newest first.
func (r *Repository) ListApplicationsByFreelancer(ctx context.Context, freelancerID string) ([]domain.Application, error) {
	query := `SELECT ` + applicationColumns + ` FROM applications WHERE freelancer_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, query, freelancerID)
	if err != nil {
		return nil, err
	}
	return collectApplications(rows)
}

// TransitionApplication moves a proposal between statuses with an optimistic check.
func (r *Repository) TransitionApplication(ctx context.Context, id string, from, to domain.ApplicationStatus) error {
	const query = `UPDATE applications SET status = $3, updated_at = NOW() WHERE id = $1 AND status = $2`
	tag, err := r.pool.Exec(ctx, query, id, string(from), string(to))
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrStale
	}
	return nil
}

// Hire accepts an application and starts its job atomically.
func (r *Repository) Hire(ctx context.Context, applicationID string, conversation domain.Conversation) (*domain.HireResult, error) {
	var result domain.HireResult
	err := r.withTx(ctx, func(tx pgx.Tx) error {
		acceptQuery := `UPDATE applications SET status = 'accepted', updated_at = NOW()
			WHERE id = $1 AND status = 'pending'
			RETURNING ` + applicationColumns
		accepted, err := scanApplication(tx.QueryRow(ctx, acceptQuery, applicationID))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return repository.ErrStale
			}
			return err
		}
		result.Application = *accepted

		jobQuery := `UPDATE jobs SET status = 'in_progress', freelancer_id = $2, updated_at = NOW()
			WHERE id = $1 AND status = 'open'
			RETURNING ` + jobColumns
		job, err := scanJob(tx.QueryRow(ctx, jobQuery, accepted.JobID, accepted.FreelancerID))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return repository.ErrStale
			}
			return err
		}
		result.Job = *job

		rejectQuery := `UPDATE applications SET status = 'rejected', updated_at = NOW()
			WHERE job_id = $1 AND status = 'pending' AND id <> $2
			RETURNING ` + applicationColumns
		rows, err := tx.Query(ctx, rejectQuery, accepted.JobID, accepted.ID)
		if err != nil {
			return err
		}
		rejected, err := collectApplications(rows)
		if err != nil {
			return err
		}
		result.Rejected = rejected

		conversation.JobID = job.ID
		conversation.ClientID = job.ClientID
		conversation.FreelancerID = accepted.FreelancerID
		if conversation.CreatedAt.IsZero() {
			conversation.CreatedAt = time.Now().UTC()
		}
		const convQuery = `INSERT INTO conversations (id, job_id, client_id, freelancer_id, created_at)
			VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.Exec(ctx, convQuery, conversation.ID, conversation.JobID, conversation.ClientID, conversation.FreelancerID, conversation.CreatedAt); err != nil {
			return mapError(err)
		}
		result.Conversation = conversation
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}
