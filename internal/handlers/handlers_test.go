package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beatpost/internal/auth"
	"beatpost/internal/db"
	"beatpost/internal/media"
	"beatpost/internal/ranking"
	"beatpost/internal/service"
	"beatpost/internal/store"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type api struct {
	t   *testing.T
	srv http.Handler
}

func newAPI(t *testing.T) *api {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))

	st := store.New(conn)
	tokens, err := auth.NewManager("handler-secret", 30*time.Minute)
	require.NoError(t, err)
	svc := service.New(st, ranking.NewRanker(st, ranking.DefaultOptions()), media.NewStore(nil, time.Second), tokens)
	return &api{t: t, srv: New(svc).Router(RouterConfig{CORSOrigins: []string{"*"}})}
}

func (a *api) do(req *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.srv.ServeHTTP(rec, req)
	return rec
}

func (a *api) sendJSON(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	return a.do(req, token)
}

func (a *api) form(method, path, token string, vals url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(vals.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return a.do(req, token)
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// signup registers name and returns its id and a token.
func (a *api) signup(name string) (string, string) {
	a.t.Helper()
	rec := a.sendJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": name, "email": name + "@example.com", "password": "secret1",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	u := decode[userResponse](a.t, rec)

	rec = a.sendJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": name + "@example.com", "password": "secret1",
	})
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	tok := decode[tokenResponse](a.t, rec)
	return u.ID, tok.AccessToken
}

func postValues(tags string) url.Values {
	return url.Values{
		"title":    {"Midnight on the highway"},
		"content":  {strings.Repeat("rolling ", 25)},
		"hashtags": {tags},
	}
}

func (a *api) createPost(token string) postResponse {
	a.t.Helper()
	rec := a.form(http.MethodPost, "/api/posts", token, postValues(`["road", "jazz"]`))
	require.Equal(a.t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[postResponse](a.t, rec)
}

func TestHealth(t *testing.T) {
	a := newAPI(t)
	rec := a.do(httptest.NewRequest(http.MethodGet, "/api/health", nil), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))
}

func TestRegisterAndLogin(t *testing.T) {
	a := newAPI(t)
	id, token := a.signup("kerouac")
	require.NotEmpty(t, token)

	rec := a.do(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), token)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[userResponse](t, rec)
	assert.Equal(t, id, me.ID)
	assert.Equal(t, "kerouac@example.com", me.Email)
	assert.Nil(t, me.Bio)

	rec = a.sendJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "kerouac", "email": "jack@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.sendJSON(http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "jk", "email": "jk@example.com", "password": "secret1",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.sendJSON(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "kerouac@example.com", "password": "wrong-one",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Bearer", rec.Header().Get("WWW-Authenticate"))
	assert.Equal(t, "Incorrect email or password", decode[errorResponse](t, rec).Detail)
}

func TestAuthRequired(t *testing.T) {
	a := newAPI(t)
	rec := a.do(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/users/me", nil), "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Could not validate credentials", decode[errorResponse](t, rec).Detail)

	rec = a.form(http.MethodPost, "/api/posts", "", postValues(`["road"]`))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPostLifecycle(t *testing.T) {
	a := newAPI(t)
	_, author := a.signup("ginsberg")
	_, reader := a.signup("burroughs")

	p := a.createPost(author)
	assert.Equal(t, []string{"road", "jazz"}, p.Hashtags)
	assert.Equal(t, "ginsberg", p.AuthorUsername)
	assert.Nil(t, p.Image)

	rec := a.do(httptest.NewRequest(http.MethodGet, "/api/posts/"+p.ID, nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[postResponse](t, rec).Visits)

	rec = a.sendJSON(http.MethodPost, "/api/posts/"+p.ID+"/rate", reader, map[string]int{"rating": 4})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 4, decode[ratingResponse](t, rec).Rating)

	rec = a.sendJSON(http.MethodPost, "/api/posts/"+p.ID+"/rate", reader, map[string]int{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.sendJSON(http.MethodPost, "/api/posts/"+p.ID+"/comments", reader, map[string]string{"content": "Howl"})
	require.Equal(t, http.StatusOK, rec.Code)
	c := decode[commentResponse](t, rec)
	assert.Equal(t, "burroughs", c.AuthorUsername)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/posts/"+p.ID+"/comments", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]commentResponse](t, rec), 1)

	rec = a.sendJSON(http.MethodPut, "/api/comments/"+c.ID, author, map[string]string{"content": "edited"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/posts/"+p.ID, nil), "")
	got := decode[postResponse](t, rec)
	assert.Equal(t, 2, got.Visits)
	assert.Equal(t, 1, got.RatingsCount)
	assert.Equal(t, 1, got.CommentsCount)
	assert.InDelta(t, 4.0, got.AverageRating, 1e-9)

	rec = a.do(httptest.NewRequest(http.MethodDelete, "/api/posts/"+p.ID, nil), reader)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodPut, "/api/posts/"+p.ID+"/archive", nil), author)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[archiveResponse](t, rec).Archived)

	rec = a.do(httptest.NewRequest(http.MethodDelete, "/api/posts/"+p.ID, nil), author)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/posts/"+p.ID, nil), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreatePostValidation(t *testing.T) {
	a := newAPI(t)
	_, token := a.signup("corso")

	rec := a.form(http.MethodPost, "/api/posts", token, postValues(`not json`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.form(http.MethodPost, "/api/posts", token, postValues(`["a", "b", "c", "d"]`))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	vals := postValues(`["road"]`)
	vals.Set("title", "short")
	rec = a.form(http.MethodPost, "/api/posts", token, vals)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "title", decode[errorResponse](t, rec).Details["field"])
}

func TestPostImageWithoutBucket(t *testing.T) {
	a := newAPI(t)
	_, token := a.signup("snyder")

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range postValues(`["road"]`) {
		require.NoError(t, mw.WriteField(k, v[0]))
	}
	fw, err := mw.CreateFormFile("image", "cover.png")
	require.NoError(t, err)
	_, err = fw.Write([]byte("not really a png"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/posts", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := a.do(req, token)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestFollowToggle(t *testing.T) {
	a := newAPI(t)
	_, token := a.signup("cassady")
	a.signup("carolyn")

	rec := a.do(httptest.NewRequest(http.MethodPost, "/api/follow/carolyn", nil), token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "followed", decode[followResponse](t, rec).Action)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/users/carolyn", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[userResponse](t, rec).FollowersCount)

	rec = a.do(httptest.NewRequest(http.MethodPost, "/api/follow/carolyn", nil), token)
	assert.Equal(t, "unfollowed", decode[followResponse](t, rec).Action)

	rec = a.do(httptest.NewRequest(http.MethodPost, "/api/follow/cassady", nil), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodPost, "/api/follow/nobody", nil), token)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestViews(t *testing.T) {
	a := newAPI(t)
	id, token := a.signup("ferlinghetti")
	other, otherToken := a.signup("diprima")
	a.createPost(token)
	a.createPost(otherToken)

	rec := a.do(httptest.NewRequest(http.MethodGet, "/api/frontpage", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]postResponse](t, rec), 2)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/ranks?hashtag=jazz", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[ranksResponse](t, rec).Posts, 2)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/authors?limit=1", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	pg := decode[authorsResponse](t, rec)
	assert.Equal(t, 2, pg.Total)
	assert.Len(t, pg.Authors, 1)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/authors?skip=-1", nil), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/hashtags", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	tags := decode[[]hashtagResponse](t, rec)
	require.Len(t, tags, 2)
	assert.Equal(t, 2, tags[0].Count)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/users/"+id+"/posts?sort_by=rating_desc", nil), token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]postResponse](t, rec), 1)

	rec = a.do(httptest.NewRequest(http.MethodGet, "/api/users/"+other+"/posts", nil), token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	a := newAPI(t)
	a.do(httptest.NewRequest(http.MethodGet, "/api/health", nil), "")
	rec := a.do(httptest.NewRequest(http.MethodGet, "/metrics", nil), "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "beatpost_api_requests_total")
}

func TestRecoverReturnsJSON(t *testing.T) {
	h := WithRecover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "INTERNAL", decode[errorResponse](t, rec).Code)
}
