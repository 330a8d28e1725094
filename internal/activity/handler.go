package activity

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/pkg/response"
)

// Handler handles HTTP requests for the activity feed
type Handler struct {
	service *Service
}

// NewHandler creates a new activity handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for activity endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)

	return r
}

// List handles GET /activity
// @Summary      Activity feed
// @Description  Newest activity entries; non-admins only see entries related to them
// @Tags         activity
// @Produce      json
// @Param        limit query int false "Maximum entries" default(200)
// @Success      200 {object} response.APIResponse{data=[]EntryResponse}
// @Router       /activity [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	entries, err := h.service.List(r.Context(), viewer, limit)
	if err != nil {
		response.InternalError(w, "Failed to list activity")
		return
	}

	entryResponses := make([]*EntryResponse, len(entries))
	for i, e := range entries {
		entryResponses[i] = e.ToResponse()
	}

	response.JSON(w, http.StatusOK, entryResponses)
}
