package httpapi

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"rosterd.org/internal/directory"
	"rosterd.org/internal/ingest"
)

func (a *API) handleBulkProvision(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	principal, ok := a.requireAdmin(w, r)
	if !ok {
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	parser, err := ingest.ForExtension(ext)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "unsupported file format: "+ext)
		return
	}

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "could not read uploaded file")
		return
	}

	records, err := parser.Parse(payload)
	if err != nil {
		if errors.Is(err, ingest.ErrMalformedPayload) {
			writeError(w, r, http.StatusBadRequest, "malformed file payload")
			return
		}
		writeError(w, r, http.StatusBadRequest, "could not parse uploaded file")
		return
	}
	if len(records) == 0 {
		writeError(w, r, http.StatusBadRequest, "no valid users found in file")
		return
	}

	outcome := a.directory.BulkProvision(r.Context(), principal.UserID, records)
	if outcome.Created == nil {
		outcome.Created = []directory.Summary{}
	}
	if outcome.Errors == nil {
		outcome.Errors = []directory.Rejection{}
	}
	writeJSON(w, http.StatusMultiStatus, map[string]any{
		"message": "file processed",
		"created": outcome.Created,
		"errors":  outcome.Errors,
	})
}
