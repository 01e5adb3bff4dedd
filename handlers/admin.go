package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akinalp/runeshop/models"
	"github.com/akinalp/runeshop/pkg"
	"github.com/akinalp/runeshop/services"
)

// AdminChatHandler serves the support chat moderation endpoints. Routes are
// guarded by the admin middleware.
type AdminChatHandler struct {
	chatAdmin services.ChatAdminService
}

// NewAdminChatHandler builds the handler.
func NewAdminChatHandler(chatAdmin services.ChatAdminService) *AdminChatHandler {
	return &AdminChatHandler{chatAdmin: chatAdmin}
}

// ListThreads godoc
// GET /api/admin/chats
// Newest activity first.
func (h *AdminChatHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	threads, err := h.chatAdmin.ListThreads(r.Context())
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, threads)
}

// GetMessages godoc
// GET /api/admin/chats/{id}/messages
func (h *AdminChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	messages, err := h.chatAdmin.GetMessages(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, messages)
}

// Reply godoc
// POST /api/admin/chats/{id}/messages
// Body: { "text": "..." }
func (h *AdminChatHandler) Reply(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r)
	if !ok {
		pkg.ErrorWithMessage(w, http.StatusUnauthorized, "user not found in context")
		return
	}

	var req models.SendChatMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		pkg.ErrorWithMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.chatAdmin.Reply(r.Context(), user.Identity(), r.PathValue("id"), &req); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusCreated, map[string]string{"message": "reply sent"})
}

// MarkRead godoc
// POST /api/admin/chats/{id}/read
func (h *AdminChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	n, err := h.chatAdmin.MarkReadByAdmin(r.Context(), r.PathValue("id"))
	if err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]int{"marked": n})
}

// DeleteThread godoc
// DELETE /api/admin/chats/{id}
// Removes the thread and all of its messages.
func (h *AdminChatHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := h.chatAdmin.DeleteThread(r.Context(), r.PathValue("id")); err != nil {
		pkg.Error(w, err)
		return
	}

	pkg.JSON(w, http.StatusOK, map[string]string{"message": "chat deleted"})
}
