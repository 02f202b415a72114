package api

import (
	"net/http"
	"time"

	"github.com/example/ec-storefront/internal/domain/user"
)

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register handles user registration
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	cred, err := s.Users.Register(r.Context(), req.Email, req.Password, req.FullName)
	if err != nil {
		respondError(w, r, err)
		return
	}

	setAuthCookie(w, r, cred)
	respondJSON(w, http.StatusCreated, cred)
}

// Login handles user login
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	cred, err := s.Users.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondError(w, r, err)
		return
	}

	setAuthCookie(w, r, cred)
	respondJSON(w, http.StatusOK, cred)
}

// Me returns the account behind the caller's credential.
func (s *Server) Me(w http.ResponseWriter, r *http.Request) {
	u, err := s.Users.Get(r.Context(), session(r).UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

type profileRequest struct {
	FullName        *string `json:"full_name"`
	CurrentPassword string  `json:"current_password"`
	NewPassword     string  `json:"new_password"`
}

// UpdateProfile changes the caller's name or password.
func (s *Server) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	u, err := s.Users.UpdateProfile(r.Context(), session(r).UserID, user.ProfileUpdate{
		FullName:        req.FullName,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// setAuthCookie mirrors the token into an HttpOnly cookie for browser clients.
func setAuthCookie(w http.ResponseWriter, r *http.Request, cred *user.Credential) {
	http.SetCookie(w, &http.Cookie{
		Name:     "access_token",
		Value:    cred.Token,
		Path:     "/",
		Expires:  cred.ExpiresAt,
		MaxAge:   int(time.Until(cred.ExpiresAt).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}
