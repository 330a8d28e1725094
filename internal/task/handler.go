package task

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fkhayef/teamtasks/internal/session"
	"github.com/fkhayef/teamtasks/internal/task/membership"
	"github.com/fkhayef/teamtasks/internal/user"
	"github.com/fkhayef/teamtasks/pkg/response"
)

const streamPingInterval = 30 * time.Second

// Handler handles HTTP requests for task operations
type Handler struct {
	service *Service
}

// NewHandler creates a new task handler
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// Routes returns the router for task endpoints
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Get("/stream", h.Stream)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)
	r.Patch("/{id}", h.Update)
	r.Delete("/{id}", h.Delete)

	r.Post("/{id}/comments", h.AddComment)

	// Membership of group and custom tasks
	r.Post("/{id}/members", h.AddMember)
	r.Delete("/{id}/members/{userId}", h.RemoveMember)

	return r
}

// List handles GET /tasks
// @Summary      List tasks
// @Description  Tasks visible to the caller, newest first, optionally scoped to a group
// @Tags         tasks
// @Produce      json
// @Param        group_id query string false "Group ID"
// @Success      200 {object} response.APIResponse{data=[]TaskResponse}
// @Router       /tasks [get]
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	tasks, err := h.service.List(r.Context(), viewer, groupParam(r))
	if err != nil {
		response.InternalError(w, "Failed to list tasks")
		return
	}

	response.JSON(w, http.StatusOK, toResponses(tasks))
}

// Stream handles GET /tasks/stream
// @Summary      Stream tasks
// @Description  Server-sent events; each "tasks" event carries the full visible task list
// @Tags         tasks
// @Produce      text/event-stream
// @Param        group_id query string false "Group ID"
// @Success      200 {array} TaskResponse
// @Failure      503 {object} response.APIResponse
// @Router       /tasks/stream [get]
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	snapshots, err := h.service.Subscribe(r.Context(), viewer, groupParam(r))
	if err != nil {
		writeError(w, err, "Failed to open task stream")
		return
	}

	rc := http.NewResponseController(w)
	// Streams outlive the server's write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	ping := time.NewTicker(streamPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
		case tasks, ok := <-snapshots:
			if !ok {
				return
			}
			data, err := json.Marshal(toResponses(tasks))
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(w, "event: tasks\ndata: %s\n\n", data); err != nil {
				return
			}
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// Create handles POST /tasks
// @Summary      Create a task
// @Description  Create an individual, group or custom task. Group tasks take the group's members as assignees.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        request body CreateTaskRequest true "Task creation request"
// @Success      201 {object} response.APIResponse{data=TaskResponse}
// @Failure      400 {object} response.APIResponse
// @Router       /tasks [post]
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.Create(r.Context(), viewer, &req)
	if err != nil {
		writeError(w, err, "Failed to create task")
		return
	}

	response.JSON(w, http.StatusCreated, t.ToResponse())
}

// GetByID handles GET /tasks/{id}
// @Summary      Get a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} response.APIResponse{data=TaskResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /tasks/{id} [get]
func (h *Handler) GetByID(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	t, err := h.service.Get(r.Context(), viewer, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err, "Failed to get task")
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

// Update handles PATCH /tasks/{id}
// @Summary      Update a task
// @Description  Partial update. Assignees may change only the status.
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body UpdateTaskRequest true "Task update request"
// @Success      200 {object} response.APIResponse{data=TaskResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /tasks/{id} [patch]
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req UpdateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.Update(r.Context(), viewer, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, err, "Failed to update task")
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

// Delete handles DELETE /tasks/{id}
// @Summary      Delete a task
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Success      200 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /tasks/{id} [delete]
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	if err := h.service.Delete(r.Context(), viewer, chi.URLParam(r, "id")); err != nil {
		writeError(w, err, "Failed to delete task")
		return
	}

	response.JSON(w, http.StatusOK, map[string]string{"message": "Task deleted successfully"})
}

// AddComment handles POST /tasks/{id}/comments
// @Summary      Comment on a task
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body AddCommentRequest true "Comment"
// @Success      201 {object} response.APIResponse{data=CommentResponse}
// @Failure      400 {object} response.APIResponse
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Router       /tasks/{id}/comments [post]
func (h *Handler) AddComment(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req AddCommentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	c, err := h.service.AddComment(r.Context(), viewer, chi.URLParam(r, "id"), &req)
	if err != nil {
		writeError(w, err, "Failed to add comment")
		return
	}

	response.JSON(w, http.StatusCreated, c.ToResponse())
}

// AddMember handles POST /tasks/{id}/members
// @Summary      Add a task member
// @Description  Add a participant to a group or custom task (admin or creator)
// @Tags         tasks
// @Accept       json
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        request body AddMemberRequest true "Member"
// @Success      200 {object} response.APIResponse{data=TaskResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /tasks/{id}/members [post]
func (h *Handler) AddMember(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	var req AddMemberRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "Invalid request body")
		return
	}

	t, err := h.service.AddMember(r.Context(), viewer, chi.URLParam(r, "id"), req.UserID)
	if err != nil {
		writeError(w, err, "Failed to add member")
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

// RemoveMember handles DELETE /tasks/{id}/members/{userId}
// @Summary      Remove a task member
// @Description  Remove a participant from a group or custom task (admin or creator)
// @Tags         tasks
// @Produce      json
// @Param        id path string true "Task ID"
// @Param        userId path string true "User ID"
// @Success      200 {object} response.APIResponse{data=TaskResponse}
// @Failure      403 {object} response.APIResponse
// @Failure      404 {object} response.APIResponse
// @Failure      409 {object} response.APIResponse
// @Failure      422 {object} response.APIResponse
// @Router       /tasks/{id}/members/{userId} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	viewer, ok := session.FromContext(r.Context())
	if !ok {
		response.Unauthorized(w, "Authentication required")
		return
	}

	t, err := h.service.RemoveMember(r.Context(), viewer, chi.URLParam(r, "id"), chi.URLParam(r, "userId"))
	if err != nil {
		writeError(w, err, "Failed to remove member")
		return
	}

	response.JSON(w, http.StatusOK, t.ToResponse())
}

func groupParam(r *http.Request) *string {
	if g := r.URL.Query().Get("group_id"); g != "" {
		return &g
	}
	return nil
}

func toResponses(tasks []*Task) []*TaskResponse {
	out := make([]*TaskResponse, len(tasks))
	for i, t := range tasks {
		out[i] = t.ToResponse()
	}
	return out
}

func writeError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrInvalidTask), errors.Is(err, ErrValidation),
		errors.Is(err, ErrInvalidComment), errors.Is(err, membership.ErrEmptyMemberID):
		response.BadRequest(w, err.Error())
	case errors.Is(err, membership.ErrInvalidOperation), errors.Is(err, membership.ErrUnknownTaskType):
		response.UnprocessableEntity(w, "INVALID_OPERATION", err.Error())
	case errors.Is(err, membership.ErrInvariantViolation):
		response.Error(w, http.StatusConflict, "INVARIANT_VIOLATION", err.Error())
	case errors.Is(err, ErrPermissionDenied):
		response.Forbidden(w, err.Error())
	case errors.Is(err, ErrTaskNotFound), errors.Is(err, user.ErrUserNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, ErrStreamUnavailable):
		response.ServiceUnavailable(w, err.Error())
	default:
		response.InternalError(w, fallback)
	}
}
