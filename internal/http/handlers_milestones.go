package httpx

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/service/milestone"
	"github.com/splax/gigboard/internal/service/report"
)

type milestoneNoteRequest struct {
	Note string `json:"note"`
}

func (r *Router) handleListMilestones(w http.ResponseWriter, req *http.Request) {
	items, err := r.svc.Milestones.List(req.Context(), currentUser(req).ID, req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"milestones": items})
}

func (r *Router) handleCreateMilestone(w http.ResponseWriter, req *http.Request) {
	var input milestone.CreateInput
	if !r.decodeJSON(w, req, &input) {
		return
	}
	created, err := r.svc.Milestones.Create(req.Context(), currentUser(req).ID, req.PathValue("id"), input)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (r *Router) handleMilestoneAction(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	actorID := currentUser(req).ID
	id := req.PathValue("id")

	var (
		updated *domain.Milestone
		job     *domain.Job
		err     error
	)
	switch action := req.PathValue("action"); action {
	case "fund":
		updated, err = r.svc.Milestones.Fund(ctx, actorID, id)
	case "cancel":
		updated, err = r.svc.Milestones.Cancel(ctx, actorID, id)
	case "approve":
		updated, job, err = r.svc.Milestones.Approve(ctx, actorID, id)
	case "submit", "revision":
		var body milestoneNoteRequest
		if !r.decodeOptionalJSON(w, req, &body) {
			return
		}
		if action == "submit" {
			updated, err = r.svc.Milestones.Submit(ctx, actorID, id, body.Note)
		} else {
			updated, err = r.svc.Milestones.RequestRevision(ctx, actorID, id, body.Note)
		}
	default:
		writeError(w, http.StatusNotFound, "unknown milestone action")
		return
	}
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	if job != nil {
		writeJSON(w, http.StatusOK, map[string]any{"milestone": updated, "job": job})
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleInvoice(w http.ResponseWriter, req *http.Request) {
	doc, err := r.svc.Reports.MilestoneInvoice(req.Context(), currentUser(req).ID, req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeDocument(w, doc)
}

// decodeOptionalJSON accepts an empty body and leaves dst untouched.
func (r *Router) decodeOptionalJSON(w http.ResponseWriter, req *http.Request, dst any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, req.Body, r.maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeDocument(w http.ResponseWriter, doc *report.Document) {
	headers := w.Header()
	headers.Set("Content-Type", doc.ContentType)
	headers.Set("Content-Disposition", `attachment; filename="`+doc.Filename+`"`)
	headers.Set("Content-Length", strconv.Itoa(len(doc.Content)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc.Content)
}
