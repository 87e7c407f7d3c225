package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"rosterd.org/internal/directory"
)

type registerRequest struct {
	Name       string `json:"name"`
	UserID     string `json:"user_id"`
	RollNumber string `json:"roll_number"`
	Password   string `json:"password"`
	Role       string `json:"role"`
	Batch      string `json:"batch"`
	Semester   int    `json:"semester"`
}

type updateRequest struct {
	Name       *string `json:"name"`
	UserID     *string `json:"user_id"`
	RollNumber *string `json:"roll_number"`
	Role       *string `json:"role"`
	Batch      *string `json:"batch"`
	Semester   *int    `json:"semester"`
}

func (a *API) handleAccountsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.registerAccount(w, r)
	case http.MethodGet:
		a.listAccounts(w, r)
	default:
		methodNotAllowed(w, r, http.MethodPost, http.MethodGet)
	}
}

func (a *API) handleAccountResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/accounts/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}

	switch r.Method {
	case http.MethodPut:
		a.updateAccount(w, r, id)
	case http.MethodDelete:
		a.deleteAccount(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodPut, http.MethodDelete)
	}
}

func (a *API) registerAccount(w http.ResponseWriter, r *http.Request) {
	principal, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	summary, err := a.directory.Register(r.Context(), principal.UserID, directory.CreateRequest{
		Name:       strings.TrimSpace(req.Name),
		UserID:     strings.TrimSpace(req.UserID),
		RollNumber: strings.TrimSpace(req.RollNumber),
		Password:   req.Password,
		Role:       directory.Role(req.Role),
		Batch:      strings.TrimSpace(req.Batch),
		Semester:   req.Semester,
	})
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "user registered successfully",
		"user":    summary,
	})
}

func (a *API) listAccounts(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireAdmin(w, r); !ok {
		return
	}
	accounts, err := a.directory.List(r.Context())
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	if accounts == nil {
		accounts = []directory.Summary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"users": accounts})
}

func (a *API) updateAccount(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	// Loose decode: unknown fields such as password or session_token are
	// ignored rather than rejected; only the allow-list is applied.
	var req updateRequest
	if err := decodeLoose(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	upd := directory.Update{
		Name:       req.Name,
		UserID:     req.UserID,
		RollNumber: req.RollNumber,
		Batch:      req.Batch,
		Semester:   req.Semester,
	}
	if req.Role != nil {
		role := directory.Role(strings.ToLower(strings.TrimSpace(*req.Role)))
		upd.Role = &role
	}
	if upd.Empty() {
		writeError(w, r, http.StatusBadRequest, "no updatable fields in request")
		return
	}

	summary, err := a.directory.UpdateAccount(r.Context(), principal.UserID, id, upd)
	if err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "user updated successfully",
		"user":    summary,
	})
}

func (a *API) deleteAccount(w http.ResponseWriter, r *http.Request, id string) {
	principal, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}
	if err := a.directory.DeleteAccount(r.Context(), principal.UserID, id); err != nil {
		handleDirectoryError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "user deleted successfully",
	})
}

func handleDirectoryError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	// Duplicates are a 400 like the other per-record rejections, not 409.
	case errors.Is(err, directory.ErrMissingFields),
		errors.Is(err, directory.ErrInvalidRole),
		errors.Is(err, directory.ErrInvalidBatch),
		errors.Is(err, directory.ErrDuplicateUserID),
		errors.Is(err, directory.ErrDuplicateRollNumber):
		writeError(w, r, http.StatusBadRequest, err.Error())
	case errors.Is(err, directory.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "user not found")
	default:
		writeError(w, r, http.StatusInternalServerError, "internal error")
	}
}
