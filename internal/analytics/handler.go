package analytics

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/pkg/response"
)

// Handler handles HTTP requests for analytics
type Handler struct {
	service *Service
}

// NewHandler creates a new analytics handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for analytics endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.Summary)

	return r
}

// Summary handles GET /analytics
// @Summary      Task analytics
// @Description  Status and priority counts, completion rate and top performers over the caller's visible tasks
// @Tags         analytics
// @Produce      json
// @Param        group_id query string false "Group ID"
// @Success      200 {object} response.APIResponse{data=Summary}
// @Router       /analytics [get]
func (h *Handler) Summary(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var groupID *string
	if g := r.URL.Query().Get("group_id"); g != "" {
		groupID = &g
	}

	summary, err := h.service.Summary(r.Context(), viewer, groupID)
	if err != nil {
		response.InternalError(w, "Failed to compute analytics")
		return
	}

	response.JSON(w, http.StatusOK, summary)
}
