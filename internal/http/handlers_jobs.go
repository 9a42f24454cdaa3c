package httpx

import (
	"net/http"
	"strings"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/service/application"
	"github.com/splax/gigboard/internal/service/job"
)

func (r *Router) handleListJobs(w http.ResponseWriter, req *http.Request) {
	query := req.URL.Query()
	filter := domain.JobFilter{
		Status:    domain.JobStatus(strings.TrimSpace(query.Get("status"))),
		Skill:     strings.TrimSpace(query.Get("skill")),
		Query:     strings.TrimSpace(query.Get("q")),
		ClientID:  strings.TrimSpace(query.Get("client_id")),
		MinBudget: queryInt64(req, "min_budget"),
		MaxBudget: queryInt64(req, "max_budget"),
		Limit:     queryInt(req, "limit"),
		Offset:    queryInt(req, "offset"),
	}
	if query.Get("mine") == "true" {
		me := currentUser(req)
		if me.Role == domain.RoleClient {
			filter.ClientID = me.ID
		} else {
			filter.FreelancerID = me.ID
		}
	}
	jobs, err := r.svc.Jobs.List(req.Context(), filter)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (r *Router) handleCreateJob(w http.ResponseWriter, req *http.Request) {
	var input job.CreateInput
	if !r.decodeJSON(w, req, &input) {
		return
	}
	created, err := r.svc.Jobs.Create(req.Context(), currentUser(req), input)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) handleGetJob(w http.ResponseWriter, req *http.Request) {
	found, err := r.svc.Jobs.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, found)
}

func (r *Router) handleUpdateJob(w http.ResponseWriter, req *http.Request) {
	var input job.UpdateInput
	if !r.decodeJSON(w, req, &input) {
		return
	}
	updated, err := r.svc.Jobs.Update(req.Context(), currentUser(req).ID, req.PathValue("id"), input)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleCancelJob(w http.ResponseWriter, req *http.Request) {
	cancelled, err := r.svc.Jobs.Cancel(req.Context(), currentUser(req).ID, req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, cancelled)
}

func (r *Router) handleApply(w http.ResponseWriter, req *http.Request) {
	var input application.ApplyInput
	if !r.decodeJSON(w, req, &input) {
		return
	}
	app, err := r.svc.Applications.Apply(req.Context(), currentUser(req), req.PathValue("id"), input)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, app)
}

func (r *Router) handleListJobApplications(w http.ResponseWriter, req *http.Request) {
	apps, err := r.svc.Applications.ListByJob(req.Context(), currentUser(req).ID, req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (r *Router) handleListMyApplications(w http.ResponseWriter, req *http.Request) {
	me, ok := requireRole(w, req, domain.RoleFreelancer)
	if !ok {
		return
	}
	apps, err := r.svc.Applications.ListMine(req.Context(), me.ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"applications": apps})
}

func (r *Router) handleHire(w http.ResponseWriter, req *http.Request) {
	result, err := r.svc.Applications.Hire(req.Context(), currentUser(req).ID, req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"job":          result.Job,
		"application":  result.Application,
		"rejected":     len(result.Rejected),
		"conversation": result.Conversation,
	})
}

func (r *Router) handleReject(w http.ResponseWriter, req *http.Request) {
	app, err := r.svc.Applications.Reject(req.Context(), currentUser(req).ID, req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}

func (r *Router) handleWithdraw(w http.ResponseWriter, req *http.Request) {
	app, err := r.svc.Applications.Withdraw(req.Context(), currentUser(req).ID, req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, app)
}
