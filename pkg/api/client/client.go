package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client provides typed access to the gigboard API for interactive tools.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option customises client instantiation.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.httpClient = h
		}
	}
}

// New constructs a Client pointing at the provided API base URL.
func New(base string, opts ...Option) (*Client, error) {
	trimmed := strings.TrimSpace(base)
	if trimmed == "" {
		trimmed = "http://localhost:4000"
	}
	if !strings.HasPrefix(trimmed, "http://") && !strings.HasPrefix(trimmed, "https://") {
		trimmed = "http://" + trimmed
	}
	if _, err := url.Parse(trimmed); err != nil {
		return nil, fmt.Errorf("invalid api base url: %w", err)
	}
	cli := &Client{
		baseURL:    strings.TrimRight(trimmed, "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
	for _, opt := range opts {
		opt(cli)
	}
	return cli, nil
}

// APIError represents an error response from the API.
type APIError struct {
	Status  int
	Message string
	Field   string
}

func (e APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api request failed with status %d", e.Status)
	}
	if e.Field != "" {
		return fmt.Sprintf("api request failed (%d): %s: %s", e.Status, e.Field, e.Message)
	}
	return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
}

// Unauthorized reports whether the API rejected the credentials or token.
func (e APIError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any, token string) (*http.Request, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if strings.TrimSpace(token) != "" {
		req.Header.Set("Authorization", "Bearer "+strings.TrimSpace(token))
	}
	return req, nil
}

func (c *Client) send(req *http.Request) (*http.Response, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("perform request: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer resp.Body.Close()
		return nil, extractError(resp.StatusCode, resp.Body)
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, token string, v any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	req, err := c.newRequest(ctx, method, path, body, token)
	if err != nil {
		return err
	}
	resp, err := c.send(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if v == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func extractError(status int, body io.Reader) APIError {
	apiErr := APIError{Status: status}
	data, err := io.ReadAll(body)
	if err != nil || len(data) == 0 {
		return apiErr
	}
	var payload struct {
		Error string `json:"error"`
		Field string `json:"field"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		apiErr.Message = strings.TrimSpace(string(data))
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(payload.Error)
	apiErr.Field = payload.Field
	return apiErr
}

// Session is the token payload emitted by the auth endpoints.
type Session struct {
	User         User   `json:"user"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

// User reflects API user payloads.
type User struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	DisplayName string   `json:"display_name"`
	Skills      []string `json:"skills"`
}

// Login exchanges credentials for a token pair.
func (c *Client) Login(ctx context.Context, email, password string) (Session, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp Session
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, "", &resp); err != nil {
		return Session{}, err
	}
	return resp, nil
}

// Refresh trades a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	var resp Session
	if err := c.do(ctx, http.MethodPost, "/auth/refresh", map[string]string{"refresh_token": refreshToken}, "", &resp); err != nil {
		return Session{}, err
	}
	return resp, nil
}

// Me returns the authenticated account.
func (c *Client) Me(ctx context.Context, token string) (User, error) {
	var me User
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, token, &me); err != nil {
		return User{}, err
	}
	return me, nil
}

// Job mirrors the job payload.
type Job struct {
	ID           string     `json:"id"`
	ClientID     string     `json:"client_id"`
	FreelancerID *string    `json:"freelancer_id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Category     string     `json:"category"`
	Skills       []string   `json:"skills"`
	BudgetCents  int64      `json:"budget_cents"`
	Currency     string     `json:"currency"`
	BudgetType   string     `json:"budget_type"`
	Status       string     `json:"status"`
	Deadline     *time.Time `json:"deadline"`
	CreatedAt    time.Time  `json:"created_at"`
}

// JobQuery narrows job listings.
type JobQuery struct {
	Status string
	Skill  string
	Search string
	Mine   bool
	Limit  int
	Offset int
}

func (q JobQuery) encode() string {
	values := url.Values{}
	if q.Status != "" {
		values.Set("status", q.Status)
	}
	if q.Skill != "" {
		values.Set("skill", q.Skill)
	}
	if q.Search != "" {
		values.Set("q", q.Search)
	}
	if q.Mine {
		values.Set("mine", "true")
	}
	if q.Limit > 0 {
		values.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		values.Set("offset", strconv.Itoa(q.Offset))
	}
	if len(values) == 0 {
		return ""
	}
	return "?" + values.Encode()
}

// ListJobs returns jobs matching the query.
func (c *Client) ListJobs(ctx context.Context, token string, query JobQuery) ([]Job, error) {
	var resp struct {
		Jobs []Job `json:"jobs"`
	}
	if err := c.do(ctx, http.MethodGet, "/jobs"+query.encode(), nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// GetJob fetches a single job.
func (c *Client) GetJob(ctx context.Context, token, jobID string) (Job, error) {
	var job Job
	if err := c.do(ctx, http.MethodGet, "/jobs/"+url.PathEscape(jobID), nil, token, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// Notification mirrors the notification payload.
type Notification struct {
	ID        string     `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Body      string     `json:"body"`
	Link      string     `json:"link"`
	ReadAt    *time.Time `json:"read_at"`
	CreatedAt time.Time  `json:"created_at"`
}

// Unread holds the unread notification and chat message counters.
type Unread struct {
	Notifications int `json:"notifications"`
	Messages      int `json:"messages"`
}

// ListNotifications pages through the caller's notifications.
func (c *Client) ListNotifications(ctx context.Context, token string, unreadOnly bool, limit int) ([]Notification, error) {
	values := url.Values{}
	if unreadOnly {
		values.Set("unread", "true")
	}
	if limit > 0 {
		values.Set("limit", strconv.Itoa(limit))
	}
	path := "/notifications"
	if len(values) > 0 {
		path += "?" + values.Encode()
	}
	var resp struct {
		Notifications []Notification `json:"notifications"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Notifications, nil
}

// UnreadCounts returns unread notification and message totals.
func (c *Client) UnreadCounts(ctx context.Context, token string) (Unread, error) {
	var unread Unread
	if err := c.do(ctx, http.MethodGet, "/notifications/unread", nil, token, &unread); err != nil {
		return Unread{}, err
	}
	return unread, nil
}

// MarkAllNotificationsRead marks every notification read and returns how many changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context, token string) (int64, error) {
	var resp struct {
		Updated int64 `json:"updated"`
	}
	if err := c.do(ctx, http.MethodPost, "/notifications/read-all", nil, token, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// File is a downloaded document.
type File struct {
	Name    string
	Content []byte
}

// DownloadInvoice fetches the PDF invoice of an approved milestone.
func (c *Client) DownloadInvoice(ctx context.Context, token, milestoneID string) (File, error) {
	return c.download(ctx, token, "/milestones/"+url.PathEscape(milestoneID)+"/invoice.pdf", "invoice.pdf")
}

// DownloadEarnings fetches the earnings statement for [from, to).
func (c *Client) DownloadEarnings(ctx context.Context, token string, from, to time.Time) (File, error) {
	values := url.Values{}
	values.Set("from", from.Format("2006-01-02"))
	values.Set("to", to.Format("2006-01-02"))
	return c.download(ctx, token, "/reports/earnings.pdf?"+values.Encode(), "earnings.pdf")
}

func (c *Client) download(ctx context.Context, token, path, fallbackName string) (File, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, nil, token)
	if err != nil {
		return File{}, err
	}
	resp, err := c.send(req)
	if err != nil {
		return File{}, err
	}
	defer resp.Body.Close()
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return File{}, fmt.Errorf("read document: %w", err)
	}
	name := fallbackName
	if _, params, err := mime.ParseMediaType(resp.Header.Get("Content-Disposition")); err == nil && params["filename"] != "" {
		name = params["filename"]
	}
	return File{Name: name, Content: content}, nil
}
