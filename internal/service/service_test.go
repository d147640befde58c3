package service

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"beatpost/internal/auth"
	"beatpost/internal/db"
	"beatpost/internal/media"
	"beatpost/internal/ranking"
	"beatpost/internal/store"
	"beatpost/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	t     *testing.T
	ctx   context.Context
	svc   *Service
	store *store.Store
}

func newEnv(t *testing.T, bucket media.Bucket) *env {
	t.Helper()
	conn, err := db.Open(filepath.Join(t.TempDir(), "svc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.Migrate(context.Background(), conn))

	st := store.New(conn)
	tokens, err := auth.NewManager("test-secret", 30*time.Minute)
	require.NoError(t, err)
	svc := New(st, ranking.NewRanker(st, ranking.Options{}), media.NewStore(bucket, time.Second), tokens)
	return &env{t: t, ctx: context.Background(), svc: svc, store: st}
}

func (e *env) register(name string) auth.Identity {
	e.t.Helper()
	p, err := e.svc.Register(e.ctx, RegisterInput{Username: name, Email: name + "@example.com", Password: "secret1"})
	require.NoError(e.t, err)
	return auth.Identity{UserID: p.User.ID, Username: p.User.Username}
}

func validPost(tags ...string) PostInput {
	if len(tags) == 0 {
		tags = []string{"beat"}
	}
	return PostInput{
		Title:    "On the road again, slowly",
		Content:  strings.Repeat("words ", 30),
		Hashtags: tags,
	}
}

func (e *env) post(id auth.Identity) string {
	e.t.Helper()
	p, err := e.svc.CreatePost(e.ctx, id, validPost(), nil)
	require.NoError(e.t, err)
	return p.Post.ID
}

func (e *env) mojo(id auth.Identity) float64 {
	e.t.Helper()
	u, err := e.store.UserByID(e.ctx, id.UserID)
	require.NoError(e.t, err)
	return u.Mojo
}

func isValidation(err error) bool {
	var ve *validation.RequestValidationError
	return errors.As(err, &ve)
}

func TestRegisterLoginAuthenticate(t *testing.T) {
	e := newEnv(t, nil)
	id := e.register("neal")

	_, err := e.svc.Register(e.ctx, RegisterInput{Username: "neal", Email: "other@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, store.ErrConflict)

	_, err = e.svc.Register(e.ctx, RegisterInput{Username: "ab", Email: "ab@example.com", Password: "secret1"})
	assert.True(t, isValidation(err))

	_, err = e.svc.Login(e.ctx, LoginInput{Email: "neal@example.com", Password: "wrong!"})
	assert.ErrorIs(t, err, ErrUnauthorized)
	_, err = e.svc.Login(e.ctx, LoginInput{Email: "nobody@example.com", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUnauthorized)

	tok, err := e.svc.Login(e.ctx, LoginInput{Email: "neal@example.com", Password: "secret1"})
	require.NoError(t, err)
	got, err := e.svc.Authenticate(e.ctx, tok)
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = e.svc.Authenticate(e.ctx, "garbage")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRenamedUserTokenIsRejected(t *testing.T) {
	e := newEnv(t, nil)
	id := e.register("neal")
	tok, err := e.svc.Login(e.ctx, LoginInput{Email: "neal@example.com", Password: "secret1"})
	require.NoError(t, err)

	name := "cassady"
	_, err = e.svc.UpdateProfile(e.ctx, id, ProfileInput{Username: &name})
	require.NoError(t, err)

	_, err = e.svc.Authenticate(e.ctx, tok)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCreatePostValidatesBeforeWriting(t *testing.T) {
	e := newEnv(t, nil)
	id := e.register("jack")

	bad := validPost()
	bad.Title = "too short"
	_, err := e.svc.CreatePost(e.ctx, id, bad, nil)
	assert.True(t, isValidation(err))

	bad = validPost("a", "b", "c", "d")
	_, err = e.svc.CreatePost(e.ctx, id, bad, nil)
	assert.True(t, isValidation(err))

	bad = validPost(" ")
	_, err = e.svc.CreatePost(e.ctx, id, bad, nil)
	assert.True(t, isValidation(err))

	// padding only reaches the minimum before trimming
	bad = validPost()
	bad.Title = "   short title    " + "   "
	_, err = e.svc.CreatePost(e.ctx, id, bad, nil)
	assert.True(t, isValidation(err))

	n, err := e.store.CountPosts(e.ctx, store.PostFilter{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Zero(t, e.mojo(id))
}

func TestCreatePostImageNeedsStorage(t *testing.T) {
	e := newEnv(t, nil)
	id := e.register("jack")
	_, err := e.svc.CreatePost(e.ctx, id, validPost(), &Image{ContentType: "image/png", Data: []byte("x")})
	assert.ErrorIs(t, err, media.ErrImagesUnavailable)
}

func TestCreatePostWithImage(t *testing.T) {
	dir := t.TempDir()
	e := newEnv(t, &media.LocalBucket{Dir: dir, BaseURL: "/media"})
	id := e.register("jack")

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))))
	p, err := e.svc.CreatePost(e.ctx, id, validPost(), &Image{ContentType: "image/png", Data: buf.Bytes()})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.Post.Image, "/media/posts/"))
}

func TestMojoFollowsWrites(t *testing.T) {
	e := newEnv(t, nil)
	author := e.register("author")
	fan := e.register("fan")

	postID := e.post(author)
	assert.InDelta(t, 5.0, e.mojo(author), 1e-9)

	_, err := e.svc.GetPost(e.ctx, postID)
	require.NoError(t, err)
	assert.InDelta(t, 5.1, e.mojo(author), 1e-9)

	r1, err := e.svc.Rate(e.ctx, fan, postID, RateInput{Rating: 2})
	require.NoError(t, err)
	r2, err := e.svc.Rate(e.ctx, fan, postID, RateInput{Rating: 4})
	require.NoError(t, err)
	assert.Equal(t, r1.ID, r2.ID)
	// 5 + 10*4 + 0.1 + 1 rating
	assert.InDelta(t, 46.1, e.mojo(author), 1e-9)

	_, err = e.svc.Rate(e.ctx, fan, postID, RateInput{Rating: 6})
	assert.True(t, isValidation(err))

	c, err := e.svc.CreateComment(e.ctx, fan, postID, CommentInput{Content: "  lovely  "})
	require.NoError(t, err)
	assert.Equal(t, "lovely", c.Content)
	assert.InDelta(t, 1.0, e.mojo(fan), 1e-9)

	followed, err := e.svc.ToggleFollow(e.ctx, fan, "author")
	require.NoError(t, err)
	assert.True(t, followed)
	assert.InDelta(t, 49.1, e.mojo(author), 1e-9)

	got, err := e.svc.GetPost(e.ctx, postID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Post.Visits)
	assert.Equal(t, 1, got.Stats.RatingsCount)
	assert.Equal(t, 1, got.Stats.CommentsCount)
	assert.InDelta(t, 4.0, got.Stats.AverageRating, 1e-9)
}

func TestFollowToggleTwiceRestoresCount(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register("allen")
	b := e.register("bill")

	before, err := e.svc.ProfileByUsername(e.ctx, "bill")
	require.NoError(t, err)

	followed, err := e.svc.ToggleFollow(e.ctx, a, "bill")
	require.NoError(t, err)
	assert.True(t, followed)
	followed, err = e.svc.ToggleFollow(e.ctx, a, "bill")
	require.NoError(t, err)
	assert.False(t, followed)

	after, err := e.svc.ProfileByUsername(e.ctx, "bill")
	require.NoError(t, err)
	assert.Equal(t, before.Followers, after.Followers)
	assert.Zero(t, e.mojo(b))

	_, err = e.svc.ToggleFollow(e.ctx, a, "allen")
	assert.True(t, isValidation(err))
	_, err = e.svc.ToggleFollow(e.ctx, a, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOwnershipChecks(t *testing.T) {
	e := newEnv(t, nil)
	owner := e.register("owner")
	other := e.register("other")
	postID := e.post(owner)

	_, err := e.svc.UpdatePost(e.ctx, other, postID, validPost(), nil)
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, e.svc.DeletePost(e.ctx, other, postID), ErrForbidden)
	_, err = e.svc.ToggleArchive(e.ctx, other, postID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = e.svc.UpdatePost(e.ctx, owner, "missing", validPost(), nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.NotErrorIs(t, err, ErrForbidden)

	c, err := e.svc.CreateComment(e.ctx, owner, postID, CommentInput{Content: "mine"})
	require.NoError(t, err)
	_, err = e.svc.UpdateComment(e.ctx, other, c.ID, CommentInput{Content: "hijack"})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, e.svc.DeleteComment(e.ctx, other, c.ID), ErrForbidden)

	updated, err := e.svc.UpdateComment(e.ctx, owner, c.ID, CommentInput{Content: "edited"})
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)
	assert.NotNil(t, updated.UpdatedAt)

	_, err = e.svc.UserPosts(e.ctx, other, ranking.UserPostQuery{AuthorID: owner.UserID})
	assert.ErrorIs(t, err, ErrForbidden)
	mine, err := e.svc.UserPosts(e.ctx, owner, ranking.UserPostQuery{AuthorID: owner.UserID})
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestUpdatePostKeepsImageAndReplacesTags(t *testing.T) {
	e := newEnv(t, nil)
	owner := e.register("owner")
	postID := e.post(owner)

	in := validPost("jazz", "bebop")
	in.Title = "A brand new title for this"
	got, err := e.svc.UpdatePost(e.ctx, owner, postID, in, nil)
	require.NoError(t, err)
	assert.Equal(t, "A brand new title for this", got.Post.Title)
	assert.Equal(t, []string{"jazz", "bebop"}, got.Post.Hashtags)
	assert.Empty(t, got.Post.Image)
}

func TestDeletePostCascadesAndRecomputes(t *testing.T) {
	e := newEnv(t, nil)
	author := e.register("author")
	fan := e.register("fan")
	postID := e.post(author)

	_, err := e.svc.Rate(e.ctx, fan, postID, RateInput{Rating: 5})
	require.NoError(t, err)
	_, err = e.svc.CreateComment(e.ctx, fan, postID, CommentInput{Content: "wow"})
	require.NoError(t, err)
	require.Greater(t, e.mojo(author), 0.0)
	require.InDelta(t, 1.0, e.mojo(fan), 1e-9)

	require.NoError(t, e.svc.DeletePost(e.ctx, author, postID))
	assert.Zero(t, e.mojo(author))
	assert.Zero(t, e.mojo(fan))

	ratings, err := e.store.RatingsForPost(e.ctx, postID)
	require.NoError(t, err)
	assert.Empty(t, ratings)
	comments, err := e.svc.Comments(e.ctx, postID)
	require.NoError(t, err)
	assert.Empty(t, comments)

	_, err = e.svc.GetPost(e.ctx, postID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestToggleArchive(t *testing.T) {
	e := newEnv(t, nil)
	owner := e.register("owner")
	postID := e.post(owner)

	archived, err := e.svc.ToggleArchive(e.ctx, owner, postID)
	require.NoError(t, err)
	assert.True(t, archived)
	archived, err = e.svc.ToggleArchive(e.ctx, owner, postID)
	require.NoError(t, err)
	assert.False(t, archived)
}

func TestUpdateProfile(t *testing.T) {
	e := newEnv(t, nil)
	id := e.register("gregory")
	e.register("corso")

	_, err := e.svc.UpdateProfile(e.ctx, id, ProfileInput{})
	assert.True(t, isValidation(err))

	taken := " corso "
	_, err = e.svc.UpdateProfile(e.ctx, id, ProfileInput{Username: &taken})
	assert.ErrorIs(t, err, store.ErrConflict)

	long := strings.Repeat("b", 501)
	_, err = e.svc.UpdateProfile(e.ctx, id, ProfileInput{Bio: &long})
	assert.True(t, isValidation(err))

	bio := "  poet  "
	p, err := e.svc.UpdateProfile(e.ctx, id, ProfileInput{Bio: &bio})
	require.NoError(t, err)
	assert.Equal(t, "poet", p.User.Bio)

	empty := ""
	p, err = e.svc.UpdateProfile(e.ctx, id, ProfileInput{Bio: &empty})
	require.NoError(t, err)
	assert.Empty(t, p.User.Bio)

	_, err = e.svc.UpdateProfile(e.ctx, id, ProfileInput{Avatar: &Image{ContentType: "image/png", Data: []byte("x")}})
	assert.ErrorIs(t, err, media.ErrImagesUnavailable)
}

func TestUpdateAvatar(t *testing.T) {
	e := newEnv(t, &media.LocalBucket{Dir: t.TempDir(), BaseURL: "/media"})
	id := e.register("gregory")

	_, err := e.svc.UpdateProfile(e.ctx, id, ProfileInput{Avatar: &Image{ContentType: "text/plain", Data: []byte("x")}})
	assert.True(t, isValidation(err))

	big := bytes.Repeat([]byte{1}, media.MaxAvatarBytes+1)
	_, err = e.svc.UpdateProfile(e.ctx, id, ProfileInput{Avatar: &Image{ContentType: "image/png", Data: big}})
	assert.True(t, isValidation(err))

	p, err := e.svc.UpdateProfile(e.ctx, id, ProfileInput{Avatar: &Image{ContentType: "image/png", Data: []byte("x")}})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(p.User.Avatar, "/media/avatars/"+id.UserID+"/"))
}

func TestParseHashtags(t *testing.T) {
	tags, err := ParseHashtags(`[" jazz ", "blues"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"jazz", "blues"}, tags)

	_, err = ParseHashtags(`"jazz"`)
	assert.True(t, isValidation(err))
}

func TestRecomputeAllMojo(t *testing.T) {
	e := newEnv(t, nil)
	a := e.register("ann")
	e.register("bob")
	e.post(a)
	require.NoError(t, e.store.SetMojo(e.ctx, a.UserID, 999))

	n, err := e.svc.RecomputeAllMojo(e.ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.InDelta(t, 5.0, e.mojo(a), 1e-9)

	_, err = e.svc.RecomputeMojo(e.ctx, "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
