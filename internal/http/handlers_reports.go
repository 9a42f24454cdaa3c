package httpx

import (
	"net/http"
	"strings"
	"time"

	"github.com/splax/gigboard/internal/domain"
)

const reportDateLayout = "2006-01-02"

func (r *Router) handleFreelancerStats(w http.ResponseWriter, req *http.Request) {
	me, ok := requireRole(w, req, domain.RoleFreelancer)
	if !ok {
		return
	}
	summary, err := r.svc.Stats.Freelancer(req.Context(), me.ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (r *Router) handleClientStats(w http.ResponseWriter, req *http.Request) {
	me, ok := requireRole(w, req, domain.RoleClient)
	if !ok {
		return
	}
	summary, err := r.svc.Stats.Client(req.Context(), me.ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// handleEarningsReport renders the statement for [from, to). Both bounds are
// calendar dates; to defaults to tomorrow and from to the first of the month.
func (r *Router) handleEarningsReport(w http.ResponseWriter, req *http.Request) {
	me, ok := requireRole(w, req, domain.RoleFreelancer)
	if !ok {
		return
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	to, err := parseReportDate(req, "to", today.AddDate(0, 0, 1))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	from, err := parseReportDate(req, "from", time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	doc, err := r.svc.Reports.EarningsStatement(req.Context(), me.ID, from, to)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeDocument(w, doc)
}

func parseReportDate(req *http.Request, key string, fallback time.Time) (time.Time, error) {
	raw := strings.TrimSpace(req.URL.Query().Get(key))
	if raw == "" {
		return fallback, nil
	}
	parsed, err := time.Parse(reportDateLayout, raw)
	if err != nil {
		return time.Time{}, domain.Invalid(key, key+" must be a YYYY-MM-DD date")
	}
	return parsed, nil
}
