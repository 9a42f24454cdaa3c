package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestLoginDecodesSession(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/auth/login" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body["email"] != "dev@example.com" {
			t.Fatalf("unexpected email %q", body["email"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"user":          map[string]any{"id": "u1", "email": "dev@example.com", "role": "freelancer"},
			"access_token":  "access",
			"refresh_token": "refresh",
			"token_type":    "Bearer",
			"expires_in":    900,
		})
	}))
	defer srv.Close()

	cli, err := New(srv.URL)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	session, err := cli.Login(context.Background(), "dev@example.com", "secret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if session.AccessToken != "access" || session.User.Role != "freelancer" || session.ExpiresIn != 900 {
		t.Fatalf("unexpected session %+v", session)
	}
}

func TestErrorsCarryStatusAndField(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"budget must be positive","field":"budget_cents"}`))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	_, err := cli.ListJobs(context.Background(), "token", JobQuery{Skill: "go"})
	var apiErr APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusBadRequest || apiErr.Field != "budget_cents" {
		t.Fatalf("unexpected error %+v", apiErr)
	}
	if apiErr.Unauthorized() {
		t.Fatal("400 must not be reported as unauthorized")
	}
}

func TestListJobsEncodesQuery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer token" {
			t.Fatalf("unexpected authorization %q", got)
		}
		q := r.URL.Query()
		if q.Get("status") != "open" || q.Get("skill") != "go" || q.Get("mine") != "true" || q.Get("limit") != "5" {
			t.Fatalf("unexpected query %s", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jobs": []map[string]any{{"id": "j1", "title": "API", "status": "open"}}})
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	jobs, err := cli.ListJobs(context.Background(), "token", JobQuery{Status: "open", Skill: "go", Mine: true, Limit: 5})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ID != "j1" {
		t.Fatalf("unexpected jobs %+v", jobs)
	}
}

func TestDownloadUsesContentDispositionName(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/reports/earnings.pdf" {
			if r.URL.Query().Get("from") != "2026-01-01" || r.URL.Query().Get("to") != "2026-02-01" {
				t.Fatalf("unexpected range %s", r.URL.RawQuery)
			}
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", `attachment; filename="INV-202601-abcdef12.pdf"`)
		_, _ = w.Write([]byte("%PDF-1.3"))
	}))
	defer srv.Close()

	cli, _ := New(srv.URL)
	file, err := cli.DownloadInvoice(context.Background(), "token", "abcdef12-3456")
	if err != nil {
		t.Fatalf("download invoice: %v", err)
	}
	if file.Name != "INV-202601-abcdef12.pdf" || string(file.Content) != "%PDF-1.3" {
		t.Fatalf("unexpected file %+v", file)
	}

	from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	if _, err := cli.DownloadEarnings(context.Background(), "token", from, from.AddDate(0, 1, 0)); err != nil {
		t.Fatalf("download earnings: %v", err)
	}
}

func TestNewNormalisesBaseURL(t *testing.T) {
	cli, err := New("localhost:4000/")
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if cli.baseURL != "http://localhost:4000" {
		t.Fatalf("unexpected base url %q", cli.baseURL)
	}
}
