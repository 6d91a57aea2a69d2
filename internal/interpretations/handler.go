package interpretations

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/JaimeStill/vetrecords/pkg/handlers"
	"github.com/JaimeStill/vetrecords/pkg/routes"
)

// Handler provides HTTP endpoints for interpretation versions and edits.
type Handler struct {
	sys    System
	logger *slog.Logger
}

// NewHandler creates a Handler with the given system and logger.
func NewHandler(sys System, logger *slog.Logger) *Handler {
	return &Handler{
		sys:    sys,
		logger: logger.With("handler", "interpretations"),
	}
}

// Routes returns the route group definition for interpretation endpoints.
func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/interpretations",
		Routes: []routes.Route{
			{Method: http.MethodGet, Pattern: "/{runId}", Handler: h.Latest},
			{Method: http.MethodGet, Pattern: "/{runId}/versions", Handler: h.Versions},
			{Method: http.MethodGet, Pattern: "/{runId}/versions/{version}", Handler: h.Version},
			{Method: http.MethodPost, Pattern: "/{runId}/edits", Handler: h.Edit},
			{Method: http.MethodGet, Pattern: "/{runId}/changes", Handler: h.Changes},
			{Method: http.MethodGet, Pattern: "/{runId}/export", Handler: h.Export},
		},
	}
}

// Latest returns the current version of a run's interpretation.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	interp, err := h.sys.Latest(r.Context(), runID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, interp)
}

// Versions lists every stored version of a run's interpretation.
func (h *Handler) Versions(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	versions, err := h.sys.Versions(r.Context(), runID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, versions)
}

// Version returns one stored version.
func (h *Handler) Version(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	number, err := strconv.Atoi(r.PathValue("version"))
	if err != nil || number < 1 {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, fmt.Errorf("invalid version %q", r.PathValue("version")))
		return
	}

	interp, err := h.sys.Version(r.Context(), runID, number)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, interp)
}

// Edit applies a batch of field changes against a base version.
func (h *Handler) Edit(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	var cmd EditCommand
	if err := handlers.DecodeJSON(r, &cmd); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	interp, err := h.sys.Edit(r.Context(), runID, cmd)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, interp)
}

// Changes returns the field change log of a run.
func (h *Handler) Changes(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	changes, err := h.sys.Changes(r.Context(), runID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, changes)
}

// Export returns the latest version as an XLSX download.
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	runID, ok := h.runID(w, r)
	if !ok {
		return
	}

	data, err := h.sys.ExportXLSX(r.Context(), runID)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	w.Header().Set("Content-Type", XLSXContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="interpretation-%s.xlsx"`, runID))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *Handler) runID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := handlers.PathUUID(r, "runId")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return uuid.Nil, false
	}
	return id, true
}
