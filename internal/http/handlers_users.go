package httpx

import (
	"net/http"
	"strings"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/service/user"
)

type payoutRequest struct {
	Account string `json:"account"`
}

func (r *Router) handleGetMe(w http.ResponseWriter, req *http.Request) {
	me, err := r.svc.Users.Get(req.Context(), currentUser(req).ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, me)
}

func (r *Router) handleUpdateMe(w http.ResponseWriter, req *http.Request) {
	var patch user.ProfilePatch
	if !r.decodeJSON(w, req, &patch) {
		return
	}
	updated, err := r.svc.Users.Update(req.Context(), currentUser(req).ID, patch)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (r *Router) handleGetPayout(w http.ResponseWriter, req *http.Request) {
	masked, err := r.svc.Users.PayoutAccount(req.Context(), currentUser(req).ID)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": masked})
}

func (r *Router) handleSetPayout(w http.ResponseWriter, req *http.Request) {
	if _, ok := requireRole(w, req, domain.RoleFreelancer); !ok {
		return
	}
	var body payoutRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	masked, err := r.svc.Users.SetPayoutAccount(req.Context(), currentUser(req).ID, body.Account)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"account": masked})
}

func (r *Router) handleGetUser(w http.ResponseWriter, req *http.Request) {
	found, err := r.svc.Users.Get(req.Context(), req.PathValue("id"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, found.Public())
}

func (r *Router) handleListFreelancers(w http.ResponseWriter, req *http.Request) {
	skill := strings.TrimSpace(req.URL.Query().Get("skill"))
	profiles, err := r.svc.Users.ListFreelancers(req.Context(), skill, queryInt(req, "limit"), queryInt(req, "offset"))
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"freelancers": profiles})
}
