package report

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository/memory"
	"github.com/splax/gigboard/pkg/config"
)

const (
	clientID     = "client"
	freelancerID = "freelancer"
)

func setup(t *testing.T) (Service, *memory.Store) {
	t.Helper()
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: clientID, Email: "client@example.com", Role: domain.RoleClient, DisplayName: "Acme GmbH", Country: "DE"}))
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: freelancerID, Email: "jose@example.com", Role: domain.RoleFreelancer, DisplayName: "José Núñez"}))
	job := domain.Job{ID: "job-1", ClientID: clientID, Title: "Café website", Status: domain.JobOpen, Currency: "USD", CreatedAt: time.Now()}
	require.NoError(t, store.CreateJob(ctx, &job))
	app := domain.Application{ID: "app", JobID: job.ID, FreelancerID: freelancerID, Status: domain.ApplicationPending}
	require.NoError(t, store.CreateApplication(ctx, &app))
	_, err := store.Hire(ctx, app.ID, domain.Conversation{ID: "conv"})
	require.NoError(t, err)

	svc := New(store, store, store, slog.New(slog.NewTextHandler(io.Discard, nil)), config.APIConfig{PlatformFeeBPS: 1000, InvoiceIssuer: "gigboard"})
	svc.now = func() time.Time { return time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC) }
	svc.compress = false
	return svc, store
}

func addMilestone(t *testing.T, store *memory.Store, id string, amount int64, status domain.MilestoneStatus, approvedAt *time.Time) {
	t.Helper()
	m := domain.Milestone{ID: id, JobID: "job-1", Title: "Milestone " + id, AmountCents: amount, Currency: "USD", Status: status, ApprovedAt: approvedAt, CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, store.CreateMilestone(context.Background(), &m))
}

func TestFormatMoney(t *testing.T) {
	cases := map[int64]string{
		0:         "USD 0.00",
		5:         "USD 0.05",
		123456:    "USD 1,234.56",
		100000000: "USD 1,000,000.00",
		-250:      "USD -2.50",
	}
	for cents, want := range cases {
		require.Equal(t, want, FormatMoney(cents, "USD"))
	}
}

func TestPlatformFeeRoundsHalfUp(t *testing.T) {
	require.EqualValues(t, 1000, PlatformFee(10000, 1000))
	require.EqualValues(t, 1, PlatformFee(5, 1000))
	require.EqualValues(t, 0, PlatformFee(4, 1000))
	require.EqualValues(t, 0, PlatformFee(10000, 0))
}

func TestPlatformFeeLargeAmounts(t *testing.T) {
	require.EqualValues(t, 100_000_000_000, PlatformFee(domain.MaxAmountCents, 1000))
	// amount*bps overflows int64 here.
	require.EqualValues(t, int64(922_337_203_685_477_581), PlatformFee(math.MaxInt64, 1000))
	require.EqualValues(t, 1, PlatformFee(5_000, 1))
	require.EqualValues(t, 2, PlatformFee(15_000, 1))
	require.EqualValues(t, int64(math.MaxInt64), PlatformFee(math.MaxInt64, 20000))
}

func TestInvoiceNumber(t *testing.T) {
	approved := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)
	m := domain.Milestone{ID: "0b9f2a7c-1111-2222-3333-444455556666", ApprovedAt: &approved}
	require.Equal(t, "INV-202403-0b9f2a7c", InvoiceNumber(m))
}

func TestMilestoneInvoiceRequiresApprovalAndParty(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	approvedAt := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	addMilestone(t, store, "pending1", 5000, domain.MilestoneFunded, nil)
	addMilestone(t, store, "approved", 123456, domain.MilestoneApproved, &approvedAt)

	_, err := svc.MilestoneInvoice(ctx, clientID, "pending1")
	require.ErrorIs(t, err, ErrNotApproved)
	require.True(t, errors.Is(err, domain.ErrInvalidTransition))

	_, err = svc.MilestoneInvoice(ctx, "stranger", "approved")
	require.ErrorIs(t, err, domain.ErrForbidden)

	doc, err := svc.MilestoneInvoice(ctx, freelancerID, "approved")
	require.NoError(t, err)
	require.Equal(t, "INV-202403-approved.pdf", doc.Filename)
	require.Equal(t, "application/pdf", doc.ContentType)
	require.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF-")))
	require.True(t, bytes.Contains(doc.Content, []byte("INV-202403-approved")))
	require.True(t, bytes.Contains(doc.Content, []byte("USD 1,234.56")))
	require.True(t, bytes.Contains(doc.Content, []byte("USD 1,111.10")), "net payout after 10% fee")
}

func TestEarningsStatement(t *testing.T) {
	svc, store := setup(t)
	ctx := context.Background()
	feb := time.Date(2024, 2, 10, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	apr := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)
	addMilestone(t, store, "m-feb", 10000, domain.MilestoneApproved, &feb)
	addMilestone(t, store, "m-mar", 20000, domain.MilestoneApproved, &mar)
	addMilestone(t, store, "m-apr", 40000, domain.MilestoneApproved, &apr)
	addMilestone(t, store, "m-open", 99900, domain.MilestoneSubmitted, nil)

	from := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	to := apr
	lines, err := svc.StatementLines(ctx, freelancerID, from, to)
	require.NoError(t, err)
	require.Len(t, lines, 2, "upper bound is exclusive")
	require.Equal(t, "Café website", lines[0].JobTitle)
	require.EqualValues(t, 1000, lines[0].FeeCents)

	doc, err := svc.EarningsStatement(ctx, freelancerID, from, to)
	require.NoError(t, err)
	require.Equal(t, "earnings-20240201-20240401.pdf", doc.Filename)
	require.True(t, bytes.Contains(doc.Content, []byte("Net USD 270.00")))

	_, err = svc.EarningsStatement(ctx, freelancerID, to, from)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = svc.EarningsStatement(ctx, clientID, from, to)
	require.ErrorIs(t, err, domain.ErrForbidden)
}
