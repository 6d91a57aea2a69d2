package calibration

import (
	"log/slog"
	"net/http"

	"github.com/JaimeStill/vetrecords/pkg/handlers"
	"github.com/JaimeStill/vetrecords/pkg/pagination"
	"github.com/JaimeStill/vetrecords/pkg/routes"
)

// Handler provides HTTP endpoints for calibration state.
type Handler struct {
	sys        System
	logger     *slog.Logger
	pagination pagination.Config
}

// SearchRequest is the body of POST /calibration/search.
type SearchRequest struct {
	pagination.PageRequest
	Filters
}

func NewHandler(sys System, logger *slog.Logger, page pagination.Config) *Handler {
	return &Handler{
		sys:        sys,
		logger:     logger.With("handler", "calibration"),
		pagination: page,
	}
}

func (h *Handler) Routes() routes.Group {
	return routes.Group{
		Prefix: "/calibration",
		Routes: []routes.Route{
			{Method: http.MethodGet, Pattern: "", Handler: h.List},
			{Method: http.MethodPost, Pattern: "/search", Handler: h.Search},
			{Method: http.MethodGet, Pattern: "/policy", Handler: h.Policy},
			{Method: http.MethodGet, Pattern: "/snapshots/{documentId}", Handler: h.Snapshots},
		},
	}
}

// List pages through calibration aggregates using query string filters.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	h.list(w, r, pagination.PageRequestFromQuery(q, h.pagination), FiltersFromQuery(q))
}

// Search is List with the page and filters in a JSON body.
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := handlers.DecodeJSON(r, &req); err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}
	h.list(w, r, req.PageRequest, req.Filters)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request, page pagination.PageRequest, filters Filters) {
	page.Normalize(h.pagination)

	result, err := h.sys.List(r.Context(), page, filters)
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusInternalServerError, err)
		return
	}
	handlers.RespondJSON(w, http.StatusOK, result)
}

// Policy returns the calibration policy in force.
func (h *Handler) Policy(w http.ResponseWriter, r *http.Request) {
	p := h.sys.Policy()
	handlers.RespondJSON(w, http.StatusOK, map[string]any{
		"policy_version":     p.Version,
		"low_band_cutoff":    p.LowBandCutoff,
		"mid_band_cutoff":    p.MidBandCutoff,
		"neutral_confidence": p.NeutralConfidence,
		"max_adjustment":     MaxAdjustment,
		"min_volume":         MinVolume,
	})
}

// Snapshots returns the review snapshots recorded for a document.
func (h *Handler) Snapshots(w http.ResponseWriter, r *http.Request) {
	id, err := handlers.PathUUID(r, "documentId")
	if err != nil {
		handlers.RespondError(w, h.logger, http.StatusBadRequest, err)
		return
	}

	snaps, err := h.sys.Snapshots(r.Context(), id)
	if err != nil {
		handlers.RespondError(w, h.logger, MapHTTPStatus(err), err)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, snaps)
}
