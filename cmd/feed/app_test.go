package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"petfeed/pkg/config"
	"petfeed/pkg/feed"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeServices(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()

	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	posts := []feed.Post{
		{ID: "p2", Caption: "zoomies", LikeCount: 2, PostedUserName: "Alice", CreatedAt: created},
		{ID: "p1", Caption: "nap", LikeCount: 0, PostedUserName: "Bob", CreatedAt: created.Add(-time.Hour)},
	}
	liked := map[string]bool{"p2": true}

	api := r.Group("/api/v1", func(c *gin.Context) {
		if c.GetHeader("Authorization") != "Bearer good" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		}
	})
	api.GET("/users/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": "u1", "name": "Aiko", "email": "aiko@example.com", "pet_name": "Mochi"})
	})
	api.GET("/posts", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"posts": posts, "count": len(posts), "next_cursor": ""})
	})
	api.GET("/posts/:id/liked", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"liked": liked[c.Param("id")]})
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	cfg := &config.Config{AuthServiceURL: srv.URL, PostServiceURL: srv.URL, FeedPageSize: 20, FeedFanout: 4}
	out := &bytes.Buffer{}
	app := newApp(cfg, out)
	app.ErrWriter = &bytes.Buffer{}
	err := app.Run(append([]string{"feed"}, args...))
	return out.String(), err
}

func TestFeedCommand(t *testing.T) {
	srv := fakeServices(t)

	out, err := run(t, srv, "--token", "good", "feed")
	require.NoError(t, err)
	assert.Contains(t, out, "zoomies")
	assert.Contains(t, out, "♥")
	assert.NotContains(t, out, "more posts available")
}

func TestWhoAmI(t *testing.T) {
	srv := fakeServices(t)

	out, err := run(t, srv, "--token", "good", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Aiko <aiko@example.com> with Mochi (u1)")
}

func TestCommandsNeedToken(t *testing.T) {
	srv := fakeServices(t)
	t.Setenv("PETFEED_TOKEN", "")

	_, err := run(t, srv, "feed")
	assert.ErrorIs(t, err, feed.ErrNotAuthenticated)

	_, err = run(t, srv, "--token", "bad", "whoami")
	assert.ErrorIs(t, err, feed.ErrNotAuthenticated)
}

func TestLikeRequiresPostID(t *testing.T) {
	srv := fakeServices(t)

	_, err := run(t, srv, "--token", "good", "like")
	assert.ErrorIs(t, err, feed.ErrValidation)
}

func TestLikeUnknownPost(t *testing.T) {
	srv := fakeServices(t)

	_, err := run(t, srv, "--token", "good", "like", "p9")
	assert.ErrorIs(t, err, feed.ErrNotFound)
}

func TestEditBlankCaptionMakesNoRequests(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := run(t, srv, "--token", "good", "edit", "--caption", " \t ", "p1")
	assert.ErrorIs(t, err, feed.ErrValidation)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestPrintEntries_Empty(t *testing.T) {
	out := &bytes.Buffer{}
	printEntries(out, nil)
	assert.Equal(t, "No posts yet\n", out.String())
}
