package handler

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"inkwell/internal/domain/comment"
	"inkwell/internal/platform/auth"
	usecaseComment "inkwell/internal/usecase/comment"
)

// CommentHandler serves the comment tree and comment mutations. Every
// mutation responds with the refreshed tree of the affected post.
type CommentHandler struct {
	service *usecaseComment.Service
	responder
}

// NewCommentHandler builds a CommentHandler.
func NewCommentHandler(service *usecaseComment.Service, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{service: service, responder: newResponder(logger)}
}

// RegisterRoutes adds comment routes.
func (h *CommentHandler) RegisterRoutes(r chiRouter) {
	r.Get("/posts/{postID}/comments", h.handleTree)
	r.Post("/posts/{postID}/comments", h.handleCreate)
	r.Patch("/comments/{commentID}", h.handleEdit)
	r.Delete("/comments/{commentID}", h.handleDelete)
}

type createCommentRequest struct {
	Content  string     `json:"content"`
	ParentID *uuid.UUID `json:"parent_id"`
}

type editCommentRequest struct {
	Content string `json:"content"`
}

type commentMutationResponse struct {
	Comment *commentResponse `json:"comment,omitempty"`
	Removed int              `json:"removed,omitempty"`
	Tree    treeResponse     `json:"tree"`
}

func (h *CommentHandler) handleTree(w http.ResponseWriter, r *http.Request) {
	postID, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	tree, err := h.service.ListTree(r.Context(), postID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "comments retrieved", toTreeResponse(tree))
}

func (h *CommentHandler) handleCreate(w http.ResponseWriter, r *http.Request) {
	postID, err := readPathUUID(r, "postID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req createCommentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}

	requester := auth.RequesterID(r.Context())
	var created *comment.Comment
	message := "comment created"
	if req.ParentID == nil {
		created, err = h.service.CreateRootComment(r.Context(), postID, requester, req.Content)
	} else {
		created, err = h.service.CreateReply(r.Context(), postID, requester, req.Content, *req.ParentID)
		message = "reply created"
	}
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeMutation(w, r, http.StatusCreated, message, created)
}

func (h *CommentHandler) handleEdit(w http.ResponseWriter, r *http.Request) {
	commentID, err := readPathUUID(r, "commentID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	var req editCommentRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		writeBadRequest(w, err)
		return
	}
	edited, err := h.service.EditComment(r.Context(), commentID, auth.RequesterID(r.Context()), req.Content)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeMutation(w, r, http.StatusOK, "comment updated", edited)
}

func (h *CommentHandler) handleDelete(w http.ResponseWriter, r *http.Request) {
	commentID, err := readPathUUID(r, "commentID")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	res, err := h.service.DeleteComment(r.Context(), commentID, auth.RequesterID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	tree, err := h.service.ListTree(r.Context(), res.PostID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	message := "reply deleted"
	if res.Root {
		message = "comment thread deleted"
	}
	writeData(w, http.StatusOK, message, commentMutationResponse{
		Removed: res.Removed,
		Tree:    toTreeResponse(tree),
	})
}

func (h *CommentHandler) writeMutation(w http.ResponseWriter, r *http.Request, status int, message string, c *comment.Comment) {
	tree, err := h.service.ListTree(r.Context(), c.PostID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	resp := toCommentResponse(c)
	writeData(w, status, message, commentMutationResponse{
		Comment: &resp,
		Tree:    toTreeResponse(tree),
	})
}
