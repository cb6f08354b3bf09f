package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

// SignupRequest is the sign-up form.
type SignupRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SigninRequest accepts a username or an email as the login.
type SigninRequest struct {
	Login    string `json:"login"`
	Username string `json:"username,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password"`
}

// AuthResponse carries the signed-in user, never the password hash.
type AuthResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	User    *models.User `json:"user"`
}

type ProfileResponse struct {
	Success bool           `json:"success"`
	Profile models.Profile `json:"profile"`
}

// Signup creates an account and signs it in.
func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	user, err := h.identity.SignUp(req.Username, req.Email, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.logger.Info("user signed up", "user_id", user.ID)
	writeJSON(w, http.StatusCreated, AuthResponse{
		Success: true,
		Message: "Welcome, " + user.Username + "!",
		User:    &user,
	})
}

// Signin signs in with a username or email.
func (h *Handler) Signin(w http.ResponseWriter, r *http.Request) {
	var req SigninRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	login := req.Login
	if login == "" {
		login = req.Username
	}
	if login == "" {
		login = req.Email
	}

	user, err := h.identity.SignIn(login, req.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AuthResponse{
		Success: true,
		Message: "Welcome back, " + user.Username + "!",
		User:    &user,
	})
}

func (h *Handler) Signout(w http.ResponseWriter, r *http.Request) {
	if err := h.identity.SignOut(); err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, Response{Success: true, Message: "Signed out"})
}

// Me returns the signed-in user, or null.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	user, err := h.identity.CurrentUser()
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if user == nil {
		writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Not signed in"})
		return
	}
	public := user.Public()
	writeJSON(w, http.StatusOK, AuthResponse{Success: true, Message: "Signed in", User: &public})
}

// Profile returns the signed-in user's posted and found rocks.
func (h *Handler) Profile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.identity.Profile(h.sync.Rocks())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ProfileResponse{Success: true, Profile: profile})
}
