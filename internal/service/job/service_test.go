package job

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository/memory"
	"github.com/splax/gigboard/pkg/config"
)

type recordingNotifier struct {
	sent []domain.NotificationInput
}

func (r *recordingNotifier) Notify(_ context.Context, input domain.NotificationInput) (*domain.Notification, error) {
	r.sent = append(r.sent, input)
	return &domain.Notification{UserID: input.UserID, Type: input.Type}, nil
}

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setup(t *testing.T) (Service, *memory.Store, *recordingNotifier, *domain.User) {
	t.Helper()
	store := memory.New()
	client := &domain.User{ID: "client-1", Email: "client@example.com", Role: domain.RoleClient}
	require.NoError(t, store.CreateUser(context.Background(), client))
	notifier := &recordingNotifier{}
	svc := New(store, store, notifier, slog.New(slog.NewTextHandler(io.Discard, nil)), config.APIConfig{DefaultCurrency: "USD", MaxPageSize: 50})
	svc.now = func() time.Time { return fixedNow }
	return svc, store, notifier, client
}

func validInput() CreateInput {
	deadline := fixedNow.Add(72 * time.Hour)
	return CreateInput{
		Title:       "Build a billing dashboard",
		Description: "Dashboards for invoices",
		Skills:      []string{"Go", "React"},
		BudgetCents: 150000,
		Deadline:    &deadline,
	}
}

func TestCreateAppliesDefaults(t *testing.T) {
	svc, _, _, client := setup(t)
	job, err := svc.Create(context.Background(), client, validInput())
	require.NoError(t, err)
	require.Equal(t, domain.JobOpen, job.Status)
	require.Equal(t, "USD", job.Currency)
	require.Equal(t, domain.BudgetFixed, job.BudgetType)
	require.Equal(t, []string{"go", "react"}, job.Skills)
	require.Equal(t, client.ID, job.ClientID)
}

func TestCreateValidation(t *testing.T) {
	svc, _, _, client := setup(t)
	past := fixedNow.Add(-time.Hour)
	cases := map[string]func(*CreateInput){
		"title":        func(in *CreateInput) { in.Title = "Tiny" },
		"description":  func(in *CreateInput) { in.Description = "  " },
		"budget_cents": func(in *CreateInput) { in.BudgetCents = 0 },
		"budget_type":  func(in *CreateInput) { in.BudgetType = "equity" },
		"currency":     func(in *CreateInput) { in.Currency = "dollars" },
		"deadline":     func(in *CreateInput) { in.Deadline = &past },
	}
	for field, mutate := range cases {
		t.Run(field, func(t *testing.T) {
			input := validInput()
			mutate(&input)
			_, err := svc.Create(context.Background(), client, input)
			var verr *domain.ValidationError
			require.ErrorAs(t, err, &verr)
			require.Equal(t, field, verr.Field)
		})
	}

	freelancer := &domain.User{ID: "f1", Role: domain.RoleFreelancer}
	_, err := svc.Create(context.Background(), freelancer, validInput())
	require.ErrorIs(t, err, domain.ErrForbidden)
}

func TestBudgetUpperBound(t *testing.T) {
	svc, _, _, client := setup(t)
	input := validInput()
	input.BudgetCents = domain.MaxAmountCents + 1
	_, err := svc.Create(context.Background(), client, input)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "budget_cents", verr.Field)

	job, err := svc.Create(context.Background(), client, validInput())
	require.NoError(t, err)
	huge := domain.MaxAmountCents + 1
	_, err = svc.Update(context.Background(), client.ID, job.ID, UpdateInput{BudgetCents: &huge})
	require.ErrorAs(t, err, &verr)
	require.Equal(t, "budget_cents", verr.Field)
}

func TestUpdateOwnerOnlyWhileOpen(t *testing.T) {
	svc, store, _, client := setup(t)
	job, err := svc.Create(context.Background(), client, validInput())
	require.NoError(t, err)

	title := "Build a better billing dashboard"
	_, err = svc.Update(context.Background(), "someone-else", job.ID, UpdateInput{Title: &title})
	require.ErrorIs(t, err, domain.ErrForbidden)

	updated, err := svc.Update(context.Background(), client.ID, job.ID, UpdateInput{Title: &title})
	require.NoError(t, err)
	require.Equal(t, title, updated.Title)

	require.NoError(t, store.TransitionJob(context.Background(), job.ID, domain.JobOpen, domain.JobInProgress))
	_, err = svc.Update(context.Background(), client.ID, job.ID, UpdateInput{Title: &title})
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelCancelsOpenMilestonesAndNotifiesFreelancer(t *testing.T) {
	svc, store, notifier, client := setup(t)
	ctx := context.Background()
	job, err := svc.Create(ctx, client, validInput())
	require.NoError(t, err)

	app := domain.Application{ID: "app-1", JobID: job.ID, FreelancerID: "free-1", Status: domain.ApplicationPending, BidCents: 1000}
	require.NoError(t, store.CreateApplication(ctx, &app))
	_, err = store.Hire(ctx, app.ID, domain.Conversation{ID: "conv-1"})
	require.NoError(t, err)
	for _, status := range []domain.MilestoneStatus{domain.MilestonePending, domain.MilestoneFunded, domain.MilestoneSubmitted, domain.MilestoneRevisionRequested, domain.MilestoneApproved} {
		m := domain.Milestone{ID: string(status), JobID: job.ID, Status: status, AmountCents: 100, CreatedAt: fixedNow}
		require.NoError(t, store.CreateMilestone(ctx, &m))
	}

	cancelled, err := svc.Cancel(ctx, client.ID, job.ID)
	require.NoError(t, err)
	require.Equal(t, domain.JobCancelled, cancelled.Status)

	milestones, err := store.ListMilestonesByJob(ctx, job.ID)
	require.NoError(t, err)
	statuses := map[string]domain.MilestoneStatus{}
	for _, m := range milestones {
		statuses[m.ID] = m.Status
	}
	require.Equal(t, domain.MilestoneCancelled, statuses["pending"])
	require.Equal(t, domain.MilestoneCancelled, statuses["funded"])
	require.Equal(t, domain.MilestoneCancelled, statuses["submitted"])
	require.Equal(t, domain.MilestoneCancelled, statuses["revision_requested"])
	require.Equal(t, domain.MilestoneApproved, statuses["approved"])

	require.Len(t, notifier.sent, 1)
	require.Equal(t, "free-1", notifier.sent[0].UserID)
	require.Equal(t, domain.NotifyJobCancelled, notifier.sent[0].Type)

	_, err = svc.Cancel(ctx, client.ID, job.ID)
	require.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestListClampsAndValidates(t *testing.T) {
	svc, _, _, client := setup(t)
	for i := 0; i < 3; i++ {
		_, err := svc.Create(context.Background(), client, validInput())
		require.NoError(t, err)
	}
	jobs, err := svc.List(context.Background(), domain.JobFilter{Skill: " GO ", Limit: 2})
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	_, err = svc.List(context.Background(), domain.JobFilter{MinBudget: 10, MaxBudget: 5})
	require.Error(t, err)
	_, err = svc.List(context.Background(), domain.JobFilter{Status: "archived"})
	require.Error(t, err)
}
