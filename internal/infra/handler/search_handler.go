package handler

import (
	"log/slog"
	"net/http"

	"inkwell/internal/domain/post"
	"inkwell/internal/platform/auth"
	usecaseSearch "inkwell/internal/usecase/search"
)

// searchCacheHeader reports whether anonymous search results came from Redis.
const searchCacheHeader = "X-Cache"

// SearchHandler serves post listing endpoints.
type SearchHandler struct {
	service *usecaseSearch.Service
	responder
}

// NewSearchHandler builds a SearchHandler.
func NewSearchHandler(service *usecaseSearch.Service, logger *slog.Logger) *SearchHandler {
	return &SearchHandler{service: service, responder: newResponder(logger)}
}

// RegisterRoutes adds search routes.
func (h *SearchHandler) RegisterRoutes(r chiRouter) {
	r.Get("/posts", h.handleSearch)
	r.Get("/favourites", h.handleFavourites)
}

func (h *SearchHandler) handleSearch(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.writeError(w, r, errServiceNotConfigured)
		return
	}
	limit, offset, err := readPaging(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	userID, err := readQueryUUID(r, "user_id")
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	isLiked, err := readQueryBool(r, "is_liked")
	if err != nil {
		writeBadRequest(w, err)
		return
	}

	q := r.URL.Query()
	result, hit, err := h.service.SearchWithCacheStatus(r.Context(), post.SearchQuery{
		Title:    q.Get("title"),
		Category: q.Get("category"),
		UserID:   userID,
		IsLiked:  isLiked,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if hit {
		w.Header().Set(searchCacheHeader, "HIT")
	} else {
		w.Header().Set(searchCacheHeader, "MISS")
	}
	writeData(w, http.StatusOK, "posts retrieved",
		toPostListResponse(result.Posts, result.Limit, result.Offset, auth.RequesterID(r.Context())))
}

func (h *SearchHandler) handleFavourites(w http.ResponseWriter, r *http.Request) {
	if h.service == nil {
		h.writeError(w, r, errServiceNotConfigured)
		return
	}
	limit, offset, err := readPaging(r)
	if err != nil {
		writeBadRequest(w, err)
		return
	}
	requester := auth.RequesterID(r.Context())
	result, err := h.service.Favourites(r.Context(), requester, limit, offset)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, "favourites retrieved",
		toPostListResponse(result.Posts, result.Limit, result.Offset, requester))
}

func readPaging(r *http.Request) (int, int, error) {
	limit, err := readQueryInt(r, "limit", 1, post.MaxLimit, post.DefaultLimit)
	if err != nil {
		return 0, 0, err
	}
	offset, err := readQueryInt(r, "offset", 0, 0, 0)
	if err != nil {
		return 0, 0, err
	}
	return limit, offset, nil
}
