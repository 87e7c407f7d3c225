package httpapi

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"rosterd.org/internal/auth"
	"rosterd.org/internal/directory"
	"rosterd.org/internal/session"
)

type loginRequest struct {
	UserID   string `json:"user_id"`
	Password string `json:"password"`
	SystemID string `json:"system_id"`
}

func (a *API) handleSessions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.login(w, r)
	case http.MethodDelete:
		a.logout(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodDelete)
	}
}

func (a *API) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" || req.Password == "" {
		writeError(w, r, http.StatusBadRequest, "user_id and password are required")
		return
	}

	origin := session.Origin{
		IP:       clientIP(r),
		SystemID: strings.TrimSpace(req.SystemID),
	}
	if origin.SystemID == "" {
		origin.SystemID = r.UserAgent()
	}
	if origin.SystemID == "" {
		origin.SystemID = "unknown"
	}

	grant, err := a.authority.Login(r.Context(), userID, req.Password, origin)
	if err != nil {
		switch {
		case errors.Is(err, session.ErrInvalidCredentials):
			writeError(w, r, http.StatusUnauthorized, "invalid user id or password")
		case errors.Is(err, session.ErrSessionHeld):
			writeError(w, r, http.StatusUnauthorized, "already logged in elsewhere; log out from the other device first")
		default:
			writeError(w, r, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "login successful",
		"user":       grant.Account,
		"token":      grant.Token,
		"expires_at": grant.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (a *API) logout(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		writeError(w, r, http.StatusUnauthorized, "authentication required")
		return
	}
	if err := a.authority.Logout(r.Context(), principal); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "user not found")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "logged out successfully",
	})
}
