package report

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"log/slog"

	"github.com/go-pdf/fpdf"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository"
	"github.com/splax/gigboard/pkg/config"
)

// ErrNotApproved is returned when an invoice is requested before approval.
var ErrNotApproved = fmt.Errorf("%w: invoices are issued for approved milestones only", domain.ErrInvalidTransition)

// Document is a rendered report.
type Document struct {
	Filename    string
	ContentType string
	Content     []byte
}

// Service renders PDF invoices and statements.
type Service struct {
	milestones repository.MilestoneRepository
	jobs       repository.JobRepository
	users      repository.UserRepository
	logger     *slog.Logger
	cfg        config.APIConfig
	now        func() time.Time
	compress   bool
}

// New returns a report service.
func New(milestones repository.MilestoneRepository, jobs repository.JobRepository, users repository.UserRepository, logger *slog.Logger, cfg config.APIConfig) Service {
	return Service{
		milestones: milestones,
		jobs:       jobs,
		users:      users,
		logger:     logger,
		cfg:        cfg,
		now:        func() time.Time { return time.Now().UTC() },
		compress:   true,
	}
}

// InvoiceNumber derives the invoice number of an approved milestone.
func InvoiceNumber(m domain.Milestone) string {
	issued := m.UpdatedAt
	if m.ApprovedAt != nil {
		issued = *m.ApprovedAt
	}
	id := m.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("INV-%s-%s", issued.UTC().Format("200601"), id)
}

// MilestoneInvoice renders the invoice for an approved milestone. Either party may download it.
func (s Service) MilestoneInvoice(ctx context.Context, actorID, milestoneID string) (*Document, error) {
	m, err := s.milestones.GetMilestoneByID(ctx, milestoneID)
	if err != nil {
		return nil, err
	}
	job, err := s.jobs.GetJobByID(ctx, m.JobID)
	if err != nil {
		return nil, err
	}
	if !job.IsParty(actorID) {
		return nil, domain.ErrForbidden
	}
	if m.Status != domain.MilestoneApproved || job.FreelancerID == nil {
		return nil, ErrNotApproved
	}
	client, err := s.users.GetUserByID(ctx, job.ClientID)
	if err != nil {
		return nil, err
	}
	freelancer, err := s.users.GetUserByID(ctx, *job.FreelancerID)
	if err != nil {
		return nil, err
	}

	number := InvoiceNumber(*m)
	fee := PlatformFee(m.AmountCents, s.cfg.PlatformFeeBPS)
	issued := m.UpdatedAt
	if m.ApprovedAt != nil {
		issued = *m.ApprovedAt
	}

	pdf := s.newDocument("Invoice " + number)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(s.cfg.InvoiceIssuer), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr("Invoice "+number), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Issued "+issued.UTC().Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.Ln(6)

	partyBlock(pdf, tr, "Billed to", client)
	partyBlock(pdf, tr, "Payee", freelancer)
	pdf.Ln(4)

	pdf.SetFont("Helvetica", "B", 11)
	pdf.CellFormat(0, 7, tr("Job: "+job.Title), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(fmt.Sprintf("Milestone %d: %s", m.Position, m.Title)), "", 1, "L", false, 0, "")
	if m.Description != "" {
		pdf.MultiCell(0, 5, tr(m.Description), "", "L", false)
	}
	pdf.Ln(4)

	rows := [][2]string{
		{"Milestone amount", FormatMoney(m.AmountCents, m.Currency)},
		{fmt.Sprintf("Platform fee (%.2f%%)", float64(s.cfg.PlatformFeeBPS)/100), FormatMoney(-fee, m.Currency)},
	}
	pdf.SetFillColor(240, 240, 240)
	for _, row := range rows {
		pdf.CellFormat(120, 8, tr(row[0]), "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 8, row[1], "1", 1, "R", false, 0, "")
	}
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(120, 8, "Net payout", "1", 0, "L", true, 0, "")
	pdf.CellFormat(60, 8, FormatMoney(m.AmountCents-fee, m.Currency), "1", 1, "R", true, 0, "")

	content, err := render(pdf)
	if err != nil {
		return nil, err
	}
	s.logger.Info("invoice rendered", "milestone_id", m.ID, "invoice", number, "actor_id", actorID)
	return &Document{Filename: number + ".pdf", ContentType: "application/pdf", Content: content}, nil
}

// StatementLine is one approved milestone on an earnings statement.
type StatementLine struct {
	ApprovedAt  time.Time
	JobTitle    string
	Milestone   string
	Currency    string
	AmountCents int64
	FeeCents    int64
}

// StatementLines collects approved milestones released in [from, to), oldest first.
func (s Service) StatementLines(ctx context.Context, freelancerID string, from, to time.Time) ([]StatementLine, error) {
	milestones, err := s.milestones.ListMilestonesByFreelancer(ctx, freelancerID)
	if err != nil {
		return nil, err
	}
	titles := map[string]string{}
	lines := make([]StatementLine, 0)
	for _, m := range milestones {
		if m.Status != domain.MilestoneApproved || m.ApprovedAt == nil {
			continue
		}
		if m.ApprovedAt.Before(from) || !m.ApprovedAt.Before(to) {
			continue
		}
		title, ok := titles[m.JobID]
		if !ok {
			job, err := s.jobs.GetJobByID(ctx, m.JobID)
			if err != nil && !errors.Is(err, repository.ErrNotFound) {
				return nil, err
			}
			if job != nil {
				title = job.Title
			}
			titles[m.JobID] = title
		}
		lines = append(lines, StatementLine{
			ApprovedAt:  m.ApprovedAt.UTC(),
			JobTitle:    title,
			Milestone:   m.Title,
			Currency:    m.Currency,
			AmountCents: m.AmountCents,
			FeeCents:    PlatformFee(m.AmountCents, s.cfg.PlatformFeeBPS),
		})
	}
	sort.SliceStable(lines, func(i, j int) bool { return lines[i].ApprovedAt.Before(lines[j].ApprovedAt) })
	return lines, nil
}

// EarningsStatement renders a freelancer's approved earnings for [from, to).
func (s Service) EarningsStatement(ctx context.Context, freelancerID string, from, to time.Time) (*Document, error) {
	if from.IsZero() || to.IsZero() || !from.Before(to) {
		return nil, domain.Invalid("from", "from must be before to")
	}
	freelancer, err := s.users.GetUserByID(ctx, freelancerID)
	if err != nil {
		return nil, err
	}
	if freelancer.Role != domain.RoleFreelancer {
		return nil, domain.ErrForbidden
	}
	lines, err := s.StatementLines(ctx, freelancerID, from, to)
	if err != nil {
		return nil, err
	}

	period := from.UTC().Format("2006-01-02") + " to " + to.UTC().Format("2006-01-02")
	pdf := s.newDocument("Earnings statement " + period)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()
	pdf.SetFont("Helvetica", "B", 16)
	pdf.CellFormat(0, 10, tr(s.cfg.InvoiceIssuer+" earnings statement"), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 6, tr(freelancer.DisplayName+" <"+freelancer.Email+">"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Period "+period, "", 1, "L", false, 0, "")
	pdf.Ln(4)

	widths := []float64{25, 55, 45, 25, 25}
	pdf.SetFont("Helvetica", "B", 9)
	pdf.SetFillColor(230, 230, 230)
	for i, heading := range []string{"Date", "Job", "Milestone", "Amount", "Fee"} {
		align := "L"
		if i >= 3 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 7, heading, "1", 0, align, true, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 9)
	totals := map[string][2]int64{}
	var currencies []string
	for _, line := range lines {
		pdf.CellFormat(widths[0], 6, line.ApprovedAt.Format("2006-01-02"), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 6, tr(truncate(line.JobTitle, 32)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 6, tr(truncate(line.Milestone, 26)), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[3], 6, FormatMoney(line.AmountCents, line.Currency), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 6, FormatMoney(line.FeeCents, line.Currency), "1", 1, "R", false, 0, "")
		sum, seen := totals[line.Currency]
		if !seen {
			currencies = append(currencies, line.Currency)
		}
		totals[line.Currency] = [2]int64{sum[0] + line.AmountCents, sum[1] + line.FeeCents}
	}
	if len(lines) == 0 {
		pdf.CellFormat(0, 6, "No approved milestones in this period.", "1", 1, "C", false, 0, "")
	}

	pdf.Ln(4)
	pdf.SetFont("Helvetica", "B", 10)
	sort.Strings(currencies)
	for _, currency := range currencies {
		sum := totals[currency]
		pdf.CellFormat(0, 6, fmt.Sprintf("Gross %s   Fees %s   Net %s",
			FormatMoney(sum[0], currency), FormatMoney(sum[1], currency), FormatMoney(sum[0]-sum[1], currency)), "", 1, "R", false, 0, "")
	}

	content, err := render(pdf)
	if err != nil {
		return nil, err
	}
	s.logger.Info("earnings statement rendered", "freelancer_id", freelancerID, "lines", len(lines))
	filename := fmt.Sprintf("earnings-%s-%s.pdf", from.UTC().Format("20060102"), to.UTC().Format("20060102"))
	return &Document{Filename: filename, ContentType: "application/pdf", Content: content}, nil
}

func (s Service) newDocument(title string) *fpdf.Fpdf {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.SetCreator(s.cfg.InvoiceIssuer, true)
	pdf.SetCreationDate(s.now())
	pdf.SetCompression(s.compress)
	pdf.SetMargins(15, 15, 15)
	return pdf
}

func partyBlock(pdf *fpdf.Fpdf, tr func(string) string, label string, u *domain.User) {
	pdf.SetFont("Helvetica", "B", 10)
	pdf.CellFormat(0, 6, label, "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 10)
	pdf.CellFormat(0, 5, tr(u.DisplayName), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 5, tr(u.Email), "", 1, "L", false, 0, "")
	if u.Country != "" {
		pdf.CellFormat(0, 5, u.Country, "", 1, "L", false, 0, "")
	}
}

func render(pdf *fpdf.Fpdf) ([]byte, error) {
	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func truncate(value string, max int) string {
	runes := []rune(value)
	if len(runes) <= max {
		return value
	}
	return string(runes[:max-1]) + "…"
}
