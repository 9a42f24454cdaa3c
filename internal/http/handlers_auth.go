package httpx

import (
	"net/http"

	"github.com/splax/gigboard/internal/domain"
	"github.com/splax/gigboard/internal/service/auth"
)

type signupRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	Role        string `json:"role"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenResponse struct {
	User         domain.User `json:"user"`
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
}

func newTokenResponse(user *domain.User, tokens auth.TokenPair) tokenResponse {
	return tokenResponse{
		User:         *user,
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    int64(tokens.ExpiresIn.Seconds()),
	}
}

func (r *Router) handleSignup(w http.ResponseWriter, req *http.Request) {
	var body signupRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	user, tokens, err := r.svc.Auth.Signup(req.Context(), auth.SignupInput{
		Email:       body.Email,
		Password:    body.Password,
		Role:        body.Role,
		DisplayName: body.DisplayName,
	})
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTokenResponse(user, tokens))
}

func (r *Router) handleLogin(w http.ResponseWriter, req *http.Request) {
	var body loginRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	user, tokens, err := r.svc.Auth.Login(req.Context(), body.Email, body.Password)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(user, tokens))
}

func (r *Router) handleRefresh(w http.ResponseWriter, req *http.Request) {
	var body refreshRequest
	if !r.decodeJSON(w, req, &body) {
		return
	}
	user, tokens, err := r.svc.Auth.Refresh(req.Context(), body.RefreshToken)
	if err != nil {
		r.writeServiceError(w, req, err)
		return
	}
	writeJSON(w, http.StatusOK, newTokenResponse(user, tokens))
}
