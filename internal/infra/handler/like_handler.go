package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/platform/auth"
	usecaseLike "inkwell/internal/usecase/like"
)

// LikeHandler serves the like toggle.
type LikeHandler struct {
	service *usecaseLike.Service
	responder
}

// NewLikeHandler builds a LikeHandler.
func NewLikeHandler(service *usecaseLike.Service, logger *slog.Logger) *LikeHandler {
	return &LikeHandler{service: service, responder: newResponder(logger)}
}

// RegisterRoutes adds like routes.
func (h *LikeHandler) RegisterRoutes(r chiRouter) {
	r.Post("/posts/{postID}/like", h.handleToggle)
	r.Get("/posts/{postID}/like", h.handleStatus)
}

func (h *LikeHandler) handleToggle(w http.ResponseWriter, r *http.Request) {
	id, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	state, err := h.service.Toggle(r.Context(), id, auth.RequesterID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	message := "post unliked"
	if state.Liked {
		message = "post liked"
	}
	writeData(w, http.StatusOK, message, toLikeResponse(state))
}

func (h *LikeHandler) handleStatus(w http.ResponseWriter, r *http.Request) {
	id, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	state, err := h.service.Status(r.Context(), id, auth.RequesterID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "like status retrieved", toLikeResponse(state))
}
