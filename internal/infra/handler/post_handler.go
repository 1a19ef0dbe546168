package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/platform/auth"
	usecasePost "inkwell/internal/usecase/post"
)

// PostHandler serves post CRUD and image endpoints.
type PostHandler struct {
	service *usecasePost.Service
	responder
}

// NewPostHandler builds a PostHandler.
func NewPostHandler(service *usecasePost.Service, logger *slog.Logger) *PostHandler {
	return &PostHandler{service: service, responder: newResponder(logger)}
}

// RegisterRoutes adds post routes.
func (h *PostHandler) RegisterRoutes(r chiRouter) {
	r.Post("/posts", h.handleCreate)
	r.Get("/posts/{postID}", h.handleGet)
	r.Put("/posts/{postID}", h.handleUpdate)
	r.Delete("/posts/{postID}", h.handleDelete)
	r.Post("/posts/{postID}/image-upload", h.handleImageUpload)
	r.Post("/posts/{postID}/image", h.handleConfirmImage)
}

type postRequest struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	Category string `json:"category"`
	ImageURL string `json:"image_url"`
}

func (p postRequest) input() usecasePost.Input {
	return usecasePost.Input{
		Title:    p.Title,
		Body:     p.Body,
		Category: p.Category,
		ImageURL: p.ImageURL,
	}
}

type imageUploadRequest struct {
	ContentType   string `json:"content_type"`
	ContentLength int64  `json:"content_length"`
}

type confirmImageRequest struct {
	Key string `json:"key"`
}

func (h *PostHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	requester := auth.RequesterID(r.Context())
	p, err := h.service.Create(r.Context(), requester, req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, "post created", toPostResponse(p, requester))
}

func (h *PostHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	p, err := h.service.Get(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "post retrieved", toPostResponse(p, auth.RequesterID(r.Context())))
}

func (h *PostHandler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req postRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	requester := auth.RequesterID(r.Context())
	p, err := h.service.Update(r.Context(), id, requester, req.input())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "post updated", toPostResponse(p, requester))
}

func (h *PostHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	if err := h.service.Delete(r.Context(), id, auth.RequesterID(r.Context())); err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "post deleted", map[string]any{"id": id})
}

func (h *PostHandler) handleImageUpload(w http.ResponseWriter, r *http.Request) {
	id, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req imageUploadRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	upload, err := h.service.ImageUploadURL(r.Context(), id, auth.RequesterID(r.Context()), req.ContentType, req.ContentLength)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "upload url issued", upload)
}

func (h *PostHandler) handleConfirmImage(w http.ResponseWriter, r *http.Request) {
	id, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req confirmImageRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	requester := auth.RequesterID(r.Context())
	p, err := h.service.ConfirmImage(r.Context(), id, requester, req.Key)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "image attached", toPostResponse(p, requester))
}
