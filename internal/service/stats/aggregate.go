package stats

import (
	"math"
	"time"

	"github.com/splax/gigboard/internal/domain"
)

// monthsOfHistory is the length of the monthly earnings series.
const monthsOfHistory = 12

// MonthlyAmount is the money released in one calendar month.
type MonthlyAmount struct {
	Month       string `json:"month"`
	AmountCents int64  `json:"amount_cents"`
}

// FreelancerStats summarises a freelancer's work and earnings.
type FreelancerStats struct {
	EarnedCents           int64           `json:"earned_cents"`
	EscrowCents           int64           `json:"escrow_cents"`
	ActiveJobs            int             `json:"active_jobs"`
	CompletedJobs         int             `json:"completed_jobs"`
	Applications          int             `json:"applications"`
	AcceptedApplications  int             `json:"accepted_applications"`
	AcceptanceRate        float64         `json:"acceptance_rate"`
	ApprovedMilestones    int             `json:"approved_milestones"`
	AverageMilestoneCents int64           `json:"average_milestone_cents"`
	MonthlyEarnings       []MonthlyAmount `json:"monthly_earnings"`
	GeneratedAt           time.Time       `json:"generated_at"`
}

// ClientStats summarises a client's hiring and spend.
type ClientStats struct {
	SpentCents     int64     `json:"spent_cents"`
	EscrowCents    int64     `json:"escrow_cents"`
	TotalJobs      int       `json:"total_jobs"`
	OpenJobs       int       `json:"open_jobs"`
	InProgressJobs int       `json:"in_progress_jobs"`
	CompletedJobs  int       `json:"completed_jobs"`
	CancelledJobs  int       `json:"cancelled_jobs"`
	HiredJobs      int       `json:"hired_jobs"`
	HireRate       float64   `json:"hire_rate"`
	GeneratedAt    time.Time `json:"generated_at"`
}

// AggregateFreelancer computes freelancer statistics as of now.
func AggregateFreelancer(milestones []domain.Milestone, applications []domain.Application, jobs []domain.Job, now time.Time) FreelancerStats {
	now = now.UTC()
	out := FreelancerStats{GeneratedAt: now, MonthlyEarnings: monthSeries(now)}
	index := make(map[string]int, len(out.MonthlyEarnings))
	for i, m := range out.MonthlyEarnings {
		index[m.Month] = i
	}
	for _, m := range milestones {
		switch {
		case m.Status == domain.MilestoneApproved:
			out.EarnedCents += m.AmountCents
			out.ApprovedMilestones++
			if m.ApprovedAt != nil {
				if i, ok := index[monthKey(*m.ApprovedAt)]; ok {
					out.MonthlyEarnings[i].AmountCents += m.AmountCents
				}
			}
		case m.Status.Escrowed():
			out.EscrowCents += m.AmountCents
		}
	}
	if out.ApprovedMilestones > 0 {
		out.AverageMilestoneCents = out.EarnedCents / int64(out.ApprovedMilestones)
	}
	for _, a := range applications {
		out.Applications++
		if a.Status == domain.ApplicationAccepted {
			out.AcceptedApplications++
		}
	}
	out.AcceptanceRate = ratio(out.AcceptedApplications, out.Applications)
	for _, j := range jobs {
		switch j.Status {
		case domain.JobInProgress:
			out.ActiveJobs++
		case domain.JobCompleted:
			out.CompletedJobs++
		}
	}
	return out
}

// AggregateClient computes client statistics as of now.
func AggregateClient(milestones []domain.Milestone, jobs []domain.Job, now time.Time) ClientStats {
	out := ClientStats{GeneratedAt: now.UTC()}
	for _, m := range milestones {
		switch {
		case m.Status == domain.MilestoneApproved:
			out.SpentCents += m.AmountCents
		case m.Status.Escrowed():
			out.EscrowCents += m.AmountCents
		}
	}
	for _, j := range jobs {
		out.TotalJobs++
		switch j.Status {
		case domain.JobOpen:
			out.OpenJobs++
		case domain.JobInProgress:
			out.InProgressJobs++
		case domain.JobCompleted:
			out.CompletedJobs++
		case domain.JobCancelled:
			out.CancelledJobs++
		}
		if j.FreelancerID != nil {
			out.HiredJobs++
		}
	}
	out.HireRate = ratio(out.HiredJobs, out.TotalJobs)
	return out
}

// monthSeries returns zero-filled buckets for the trailing months ending with now's month.
func monthSeries(now time.Time) []MonthlyAmount {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, -(monthsOfHistory - 1), 0)
	series := make([]MonthlyAmount, 0, monthsOfHistory)
	for i := 0; i < monthsOfHistory; i++ {
		series = append(series, MonthlyAmount{Month: monthKey(start.AddDate(0, i, 0))})
	}
	return series
}

func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

func ratio(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return math.Round(float64(part)/float64(whole)*1000) / 1000
}
