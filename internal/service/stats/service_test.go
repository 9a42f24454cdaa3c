package stats

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/repository/memory"
)

func TestServicePagesThroughAllJobs(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	require.NoError(t, store.CreateUser(ctx, &domain.User{ID: "client", Email: "c@example.com", Role: domain.RoleClient}))
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < jobPageSize+5; i++ {
		job := domain.Job{ID: fmt.Sprintf("job-%03d", i), ClientID: "client", Status: domain.JobOpen, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		require.NoError(t, store.CreateJob(ctx, &job))
	}

	svc := New(store, store, store, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return base }
	stats, err := svc.Client(ctx, "client")
	require.NoError(t, err)
	require.Equal(t, jobPageSize+5, stats.TotalJobs)
	require.Equal(t, jobPageSize+5, stats.OpenJobs)
	require.Zero(t, stats.HireRate)

	freelancer, err := svc.Freelancer(ctx, "nobody")
	require.NoError(t, err)
	require.Len(t, freelancer.MonthlyEarnings, monthsOfHistory)
}
