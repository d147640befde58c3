package handlers

import (
	"net/http"

	"beatpost/internal/service"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var in service.RegisterInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.Register(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(p))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var in service.LoginInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	token, err := h.svc.Login(r.Context(), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: "bearer"})
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.Me(r.Context(), identity(r))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(p))
}

// UpdateMe takes a form with optional username, bio and avatar file.
func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	if err := parseForm(r); err != nil {
		respondError(w, r, err)
		return
	}
	avatar, err := formFile(r, "avatar")
	if err != nil {
		respondError(w, r, err)
		return
	}
	in := service.ProfileInput{
		Username: optionalForm(r, "username"),
		Bio:      optionalForm(r, "bio"),
		Avatar:   avatar,
	}
	p, err := h.svc.UpdateProfile(r.Context(), identity(r), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(p))
}

func (h *Handler) UserProfile(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.ProfileByUsername(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newUserResponse(p))
}

func (h *Handler) Follow(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	followed, err := h.svc.ToggleFollow(r.Context(), identity(r), username)
	if err != nil {
		respondError(w, r, err)
		return
	}
	action := "unfollowed"
	if followed {
		action = "followed"
	}
	respondJSON(w, http.StatusOK, followResponse{Message: "User " + username + " " + action, Action: action})
}
