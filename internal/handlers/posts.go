package handlers

import (
	"net/http"

	"beatpost/internal/service"

	"github.com/go-chi/chi/v5"
)

// postForm reads title, content, the JSON hashtags list and an optional
// image from a form body.
func postForm(r *http.Request) (service.PostInput, *service.Image, error) {
	var in service.PostInput
	if err := parseForm(r); err != nil {
		return in, nil, err
	}
	tags, err := service.ParseHashtags(r.FormValue("hashtags"))
	if err != nil {
		return in, nil, err
	}
	in.Title = r.FormValue("title")
	in.Content = r.FormValue("content")
	in.Hashtags = tags
	img, err := formFile(r, "image")
	return in, img, err
}

func (h *Handler) CreatePost(w http.ResponseWriter, r *http.Request) {
	in, img, err := postForm(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.CreatePost(r.Context(), identity(r), in, img)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPostResponse(*p))
}

func (h *Handler) ListPosts(w http.ResponseWriter, r *http.Request) {
	skip, err := intQuery(r, "skip", 0)
	if err != nil {
		respondError(w, r, err)
		return
	}
	limit, err := intQuery(r, "limit", service.DefaultPostsLimit)
	if err != nil {
		respondError(w, r, err)
		return
	}
	posts, err := h.svc.ListPosts(r.Context(), skip, limit, r.URL.Query().Get("hashtag"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPostList(posts))
}

func (h *Handler) GetPost(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPost(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPostResponse(*p))
}

func (h *Handler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	in, img, err := postForm(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	p, err := h.svc.UpdatePost(r.Context(), identity(r), chi.URLParam(r, "postID"), in, img)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newPostResponse(*p))
}

func (h *Handler) DeletePost(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePost(r.Context(), identity(r), chi.URLParam(r, "postID")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Post deleted"})
}

func (h *Handler) ToggleArchive(w http.ResponseWriter, r *http.Request) {
	archived, err := h.svc.ToggleArchive(r.Context(), identity(r), chi.URLParam(r, "postID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	msg := "Post unarchived"
	if archived {
		msg = "Post archived"
	}
	respondJSON(w, http.StatusOK, archiveResponse{Message: msg, Archived: archived})
}

func (h *Handler) Rate(w http.ResponseWriter, r *http.Request) {
	var in service.RateInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	rt, err := h.svc.Rate(r.Context(), identity(r), chi.URLParam(r, "postID"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, ratingResponse{ID: rt.ID, PostID: rt.PostID, UserID: rt.UserID, Rating: rt.Value, CreatedAt: rt.CreatedAt})
}

func (h *Handler) CreateComment(w http.ResponseWriter, r *http.Request) {
	var in service.CommentInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.CreateComment(r.Context(), identity(r), chi.URLParam(r, "postID"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCommentResponse(*c))
}

func (h *Handler) ListComments(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.Comments(r.Context(), chi.URLParam(r, "postID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	out := make([]commentResponse, len(comments))
	for i, c := range comments {
		out[i] = newCommentResponse(c)
	}
	respondJSON(w, http.StatusOK, out)
}

func (h *Handler) UpdateComment(w http.ResponseWriter, r *http.Request) {
	var in service.CommentInput
	if err := decodeJSON(r, &in); err != nil {
		respondError(w, r, err)
		return
	}
	c, err := h.svc.UpdateComment(r.Context(), identity(r), chi.URLParam(r, "commentID"), in)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCommentResponse(*c))
}

func (h *Handler) DeleteComment(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteComment(r.Context(), identity(r), chi.URLParam(r, "commentID")); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, messageResponse{Message: "Comment deleted"})
}
