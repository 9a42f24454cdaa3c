package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"golang.org/x/term"

	apiclient "github.com/splax/gigboard/pkg/api/client"
)

type cliConfig struct {
	APIBaseURL   string `json:"api_base_url"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	Email        string `json:"email,omitempty"`
	Role         string `json:"role,omitempty"`
}

const defaultAPIBaseURL = "http://localhost:4000"

var buildVersion = "dev"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	cmd := os.Args[1]
	args := os.Args[2:]

	var err error
	switch cmd {
	case "login":
		err = commandLogin(args)
	case "logout":
		err = commandLogout()
	case "jobs":
		err = commandJobs(args)
	case "notifications":
		err = commandNotifications(args)
	case "invoice":
		err = commandInvoice(args)
	case "earnings":
		err = commandEarnings(args)
	case "version", "--version", "-v":
		printVersion()
		return
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func commandLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "Email address")
	password := fs.String("password", "", "Password (supply to avoid prompt)")
	apiBase := fs.String("api", "", "API base URL (default http://localhost:4000)")
	fs.Parse(args)

	if strings.TrimSpace(*email) == "" {
		return errors.New("--email is required")
	}

	secret := strings.TrimSpace(*password)
	if secret == "" {
		fmt.Print("Password: ")
		bytes, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Print("\n")
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
		secret = string(bytes)
	}

	cfg, _ := loadConfig()
	if strings.TrimSpace(*apiBase) != "" {
		cfg.APIBaseURL = *apiBase
	}

	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	session, err := client.Login(ctx, *email, secret)
	if err != nil {
		return err
	}
	cfg.remember(session)
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Printf("logged in as %s (%s)\n", session.User.Email, session.User.Role)
	return nil
}

func commandLogout() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cfg.AccessToken, cfg.RefreshToken, cfg.Email, cfg.Role = "", "", "", ""
	if err := saveConfig(cfg); err != nil {
		return err
	}
	fmt.Println("logged out")
	return nil
}

func (cfg *cliConfig) remember(session apiclient.Session) {
	cfg.AccessToken = session.AccessToken
	cfg.RefreshToken = session.RefreshToken
	cfg.Email = session.User.Email
	cfg.Role = session.User.Role
}

// authed runs fn with the cached access token, refreshing it once when the
// API reports it expired.
func authed(ctx context.Context, fn func(*apiclient.Client, string) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if strings.TrimSpace(cfg.AccessToken) == "" {
		return errors.New("please login first using 'gig login'")
	}
	client, err := apiclient.New(cfg.APIBaseURL)
	if err != nil {
		return err
	}
	err = fn(client, cfg.AccessToken)
	var apiErr apiclient.APIError
	if !errors.As(err, &apiErr) || !apiErr.Unauthorized() || cfg.RefreshToken == "" {
		return err
	}
	session, refreshErr := client.Refresh(ctx, cfg.RefreshToken)
	if refreshErr != nil {
		return errors.New("session expired, please login again using 'gig login'")
	}
	cfg.remember(session)
	if err := saveConfig(cfg); err != nil {
		return err
	}
	return fn(client, cfg.AccessToken)
}

func commandJobs(args []string) error {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}
	switch sub {
	case "list":
		return jobsList(args)
	case "show":
		return jobsShow(args)
	default:
		return fmt.Errorf("unknown jobs command: %s", sub)
	}
}

func jobsList(args []string) error {
	fs := flag.NewFlagSet("jobs list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status (open|in_progress|completed|cancelled)")
	skill := fs.String("skill", "", "Filter by skill")
	search := fs.String("q", "", "Search title and description")
	mine := fs.Bool("mine", false, "Only jobs you posted or were hired for")
	limit := fs.Int("limit", 20, "Maximum number of jobs")
	fs.Parse(args)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	query := apiclient.JobQuery{Status: *status, Skill: *skill, Search: *search, Mine: *mine, Limit: *limit}
	return authed(ctx, func(client *apiclient.Client, token string) error {
		jobs, err := client.ListJobs(ctx, token, query)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tSTATUS\tBUDGET\tTITLE")
		for _, job := range jobs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", job.ID, job.Status, formatCents(job.BudgetCents, job.Currency), job.Title)
		}
		return tw.Flush()
	})
}

func jobsShow(args []string) error {
	fs := flag.NewFlagSet("jobs show", flag.ExitOnError)
	jobID := fs.String("job", "", "Job identifier")
	fs.Parse(args)
	if strings.TrimSpace(*jobID) == "" {
		return errors.New("--job is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return authed(ctx, func(client *apiclient.Client, token string) error {
		job, err := client.GetJob(ctx, token, *jobID)
		if err != nil {
			return err
		}
		fmt.Printf("%s\n%s\n\nstatus:   %s\nbudget:   %s (%s)\nskills:   %s\nposted:   %s\n",
			job.Title, job.Description, job.Status, formatCents(job.BudgetCents, job.Currency), job.BudgetType,
			strings.Join(job.Skills, ", "), job.CreatedAt.Format(time.RFC1123))
		if job.Deadline != nil {
			fmt.Printf("deadline: %s\n", job.Deadline.Format(time.RFC1123))
		}
		return nil
	})
}

func commandNotifications(args []string) error {
	sub := "list"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		sub, args = args[0], args[1:]
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	switch sub {
	case "list":
		fs := flag.NewFlagSet("notifications list", flag.ExitOnError)
		unread := fs.Bool("unread", false, "Only unread notifications")
		limit := fs.Int("limit", 20, "Maximum number of notifications")
		fs.Parse(args)
		return authed(ctx, func(client *apiclient.Client, token string) error {
			items, err := client.ListNotifications(ctx, token, *unread, *limit)
			if err != nil {
				return err
			}
			for _, n := range items {
				marker := " "
				if n.ReadAt == nil {
					marker = "*"
				}
				fmt.Printf("%s %s  %-28s %s\n", marker, n.CreatedAt.Local().Format("2006-01-02 15:04"), n.Type, n.Title)
			}
			return nil
		})
	case "unread":
		return authed(ctx, func(client *apiclient.Client, token string) error {
			unread, err := client.UnreadCounts(ctx, token)
			if err != nil {
				return err
			}
			fmt.Printf("notifications: %d\nmessages:      %d\n", unread.Notifications, unread.Messages)
			return nil
		})
	case "read-all":
		return authed(ctx, func(client *apiclient.Client, token string) error {
			count, err := client.MarkAllNotificationsRead(ctx, token)
			if err != nil {
				return err
			}
			fmt.Printf("marked %d notifications read\n", count)
			return nil
		})
	default:
		return fmt.Errorf("unknown notifications command: %s", sub)
	}
}

func commandInvoice(args []string) error {
	fs := flag.NewFlagSet("invoice", flag.ExitOnError)
	milestoneID := fs.String("milestone", "", "Approved milestone identifier")
	out := fs.String("out", "", "Output path (defaults to the invoice number)")
	fs.Parse(args)
	if strings.TrimSpace(*milestoneID) == "" {
		return errors.New("--milestone is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return authed(ctx, func(client *apiclient.Client, token string) error {
		file, err := client.DownloadInvoice(ctx, token, *milestoneID)
		if err != nil {
			return err
		}
		return writeFile(file, *out)
	})
}

func commandEarnings(args []string) error {
	now := time.Now().UTC()
	fs := flag.NewFlagSet("earnings", flag.ExitOnError)
	from := fs.String("from", time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC).Format("2006-01-02"), "First day (YYYY-MM-DD)")
	to := fs.String("to", now.AddDate(0, 0, 1).Format("2006-01-02"), "Day after the last day (YYYY-MM-DD)")
	out := fs.String("out", "", "Output path")
	fs.Parse(args)

	fromDate, err := time.Parse("2006-01-02", *from)
	if err != nil {
		return fmt.Errorf("invalid --from: %w", err)
	}
	toDate, err := time.Parse("2006-01-02", *to)
	if err != nil {
		return fmt.Errorf("invalid --to: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return authed(ctx, func(client *apiclient.Client, token string) error {
		file, err := client.DownloadEarnings(ctx, token, fromDate, toDate)
		if err != nil {
			return err
		}
		return writeFile(file, *out)
	})
}

func writeFile(file apiclient.File, out string) error {
	path := strings.TrimSpace(out)
	if path == "" {
		path = filepath.Base(file.Name)
	}
	if err := os.WriteFile(path, file.Content, 0o644); err != nil {
		return err
	}
	fmt.Printf("saved %s (%d bytes)\n", path, len(file.Content))
	return nil
}

func formatCents(cents int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, cents/100, cents%100)
}

func loadConfig() (cliConfig, error) {
	path, err := configPath()
	if err != nil {
		return cliConfig{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cliConfig{APIBaseURL: defaultAPIBaseURL}, nil
		}
		return cliConfig{}, err
	}
	var cfg cliConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cliConfig{}, err
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = defaultAPIBaseURL
	}
	return cfg, nil
}

func saveConfig(cfg cliConfig) error {
	path, err := configPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func configPath() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(base, "gigboard", "config.json"), nil
}

func printUsage() {
	fmt.Printf("gig CLI %s\n\n", buildVersion)
	fmt.Print(`Usage:
	gig login --email user@example.com [--password secret] [--api http://localhost:4000]
	gig logout
	gig jobs [list] [--status open] [--skill go] [--q text] [--mine] [--limit N]
	gig jobs show --job <job-id>
	gig notifications [list] [--unread] [--limit N]
	gig notifications unread
	gig notifications read-all
	gig invoice --milestone <milestone-id> [--out invoice.pdf]
	gig earnings [--from 2026-01-01] [--to 2026-02-01] [--out earnings.pdf]
	gig version
`)
}

func printVersion() {
	fmt.Println(strings.TrimSpace(buildVersion))
}
