package handlers

import (
	"net/http"

	"beatpost/internal/ranking"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) Frontpage(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Frontpage(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newRankedList(posts))
}

func (h *Handler) Ranks(w http.ResponseWriter, r *http.Request) {
	posts, err := h.svc.Ranks(r.Context(), r.URL.Query().Get("hashtag"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ranksResponse{Posts: newRankedList(posts)})
}

func (h *Handler) Authors(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", ranking.DefaultAuthorsLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	pg, err := h.svc.Authors(r.Context(), ranking.AuthorQuery{
		Search: q.Get("search"),
		Sort:   ranking.AuthorSort(q.Get("sort_by")),
		Skip:   skip,
		Limit:  limit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newAuthorsResponse(pg))
}

func (h *Handler) Hashtags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.PopularHashtags(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newHashtagList(tags))
}

// UserPosts lists the caller's own posts with archive, search and sort
// filters.
func (h *Handler) UserPosts(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", ranking.DefaultUserPostsLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	archived, err := boolQuery(r, "archived")
	if err != nil {
		respondError(w, r, err)
		return
	}
	q := r.URL.Query()
	posts, err := h.svc.UserPosts(r.Context(), identity(r), ranking.UserPostQuery{
		AuthorID: chi.URLParam(r, "userID"),
		Archived: archived,
		Search:   q.Get("search"),
		Sort:     ranking.UserPostSort(q.Get("sort_by")),
		Skip:     skip,
		Limit:    limit,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPostList(posts))
}
