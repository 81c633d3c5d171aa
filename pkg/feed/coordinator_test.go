package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadedFeed(t *testing.T, store *memStore, opts Options) *Feed {
	t.Helper()
	if opts.PageSize == 0 {
		opts.PageSize = 10
	}
	f := New(store, store, opts)
	require.NoError(t, f.Refresh(context.Background(), viewer))
	return f
}

func TestToggleLike_RoundTrip(t *testing.T) {
	store := newMemStore()
	store.seed(1, "owner")
	for _, u := range []string{"a", "b", "c"} {
		store.addLike("p1", u)
	}
	f := loadedFeed(t, store, Options{})
	ctx := context.Background()

	liked, err := f.ToggleLike(ctx, viewer, "p1")
	require.NoError(t, err)
	assert.True(t, liked)
	entry, _ := f.Lookup("p1")
	assert.True(t, entry.Liked)
	assert.Equal(t, 4, entry.LikeCount)
	assert.Equal(t, 4, store.likeRecords("p1"))

	liked, err = f.ToggleLike(ctx, viewer, "p1")
	require.NoError(t, err)
	assert.False(t, liked)
	entry, _ = f.Lookup("p1")
	assert.False(t, entry.Liked)
	assert.Equal(t, 3, entry.LikeCount)
	assert.Equal(t, 3, store.likeRecords("p1"))
	assert.Equal(t, 2, store.callCount("GetPost"))
}

func TestToggleLike_ReconcilesWithServerCount(t *testing.T) {
	store := newMemStore()
	store.seed(1, "owner")
	f := loadedFeed(t, store, Options{})

	// Another viewer likes the post after our page was fetched.
	store.addLike("p1", "other")

	_, err := f.ToggleLike(context.Background(), viewer, "p1")
	require.NoError(t, err)

	entry, _ := f.Lookup("p1")
	assert.Equal(t, 2, entry.LikeCount)
}

func TestToggleLike_FailedBatchLeavesCacheUnchanged(t *testing.T) {
	store := newMemStore()
	store.seed(2, "owner")
	store.addLike("p1", viewer.UserID)
	f := loadedFeed(t, store, Options{})
	before := f.Entries()

	store.failNext("Unlike", errors.New("unavailable"))
	liked, err := f.ToggleLike(context.Background(), viewer, "p1")

	require.Error(t, err)
	assert.True(t, liked)
	assert.ErrorIs(t, err, ErrRemoteWrite)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	assert.Equal(t, "p1", opErr.PostID)

	assert.Equal(t, before, f.Entries())
	assert.Equal(t, 1, store.likeCount("p1"))
	assert.Equal(t, 0, store.callCount("GetPost"))
}

func TestToggleLike_ConflictIsReported(t *testing.T) {
	store := newMemStore()
	store.seed(1, "owner")
	f := loadedFeed(t, store, Options{})

	// The like lands server-side after the liked-set was loaded.
	store.addLike("p1", viewer.UserID)

	_, err := f.ToggleLike(context.Background(), viewer, "p1")
	assert.ErrorIs(t, err, ErrBatchConflict)
	assert.False(t, f.IsLiked("p1"))
	assert.Equal(t, 1, store.likeCount("p1"))
}

func TestToggleLike_Preconditions(t *testing.T) {
	store := newMemStore()
	store.seed(1, "owner")
	f := loadedFeed(t, store, Options{})
	calls := store.totalCalls()

	_, err := f.ToggleLike(context.Background(), Session{}, "p1")
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	_, err = f.ToggleLike(context.Background(), viewer, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, calls, store.totalCalls())
}

func TestToggleLike_PostVanishedDuringReconcile(t *testing.T) {
	store := newMemStore()
	store.seed(2, "owner")
	f := loadedFeed(t, store, Options{})
	store.failNext("GetPost", ErrNotFound)

	liked, err := f.ToggleLike(context.Background(), viewer, "p1")
	require.NoError(t, err)
	assert.True(t, liked)

	_, ok := f.Lookup("p1")
	assert.False(t, ok)
	assert.Equal(t, []string{"p2"}, ids(f.Posts()))
}

func TestToggleLike_ReconcileReadFailureKeepsFlip(t *testing.T) {
	store := newMemStore()
	store.seed(1, "owner")
	f := loadedFeed(t, store, Options{})
	store.failNext("GetPost", errors.New("timeout"))

	liked, err := f.ToggleLike(context.Background(), viewer, "p1")
	require.NoError(t, err)
	assert.True(t, liked)

	entry, ok := f.Lookup("p1")
	require.True(t, ok)
	assert.True(t, entry.Liked)
	assert.Equal(t, 0, entry.LikeCount)
}

func TestToggleLike_SamePostIsSerialized(t *testing.T) {
	store := newMemStore()
	store.seed(2, "owner")
	f := loadedFeed(t, store, Options{})
	ctx := context.Background()

	entered := make(chan struct{})
	release := make(chan struct{})
	store.setHook(func(op, postID string) {
		if op == "Like" && postID == "p1" {
			close(entered)
			<-release
		}
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, err := f.ToggleLike(ctx, viewer, "p1")
		assert.NoError(t, err)
	}()
	<-entered

	_, err := f.ToggleLike(ctx, viewer, "p1")
	assert.ErrorIs(t, err, ErrBusy)
	err = f.EditCaption(ctx, viewer, "p1", "new")
	assert.ErrorIs(t, err, ErrBusy)

	liked, err := f.ToggleLike(ctx, viewer, "p2")
	require.NoError(t, err)
	assert.True(t, liked)

	close(release)
	wg.Wait()

	assert.True(t, f.IsLiked("p1"))
	assert.Equal(t, 1, store.likeCount("p1"))

	liked, err = f.ToggleLike(ctx, viewer, "p1")
	require.NoError(t, err)
	assert.False(t, liked)
}

func TestEditCaption(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 30, 0, 0, time.UTC)

	t.Run("updates caption and timestamp", func(t *testing.T) {
		store := newMemStore()
		store.seed(1, "owner")
		f := loadedFeed(t, store, Options{Now: func() time.Time { return now }})

		err := f.EditCaption(context.Background(), viewer, "p1", "  sleepy cat  ")
		require.NoError(t, err)

		entry, _ := f.Lookup("p1")
		assert.Equal(t, "  sleepy cat  ", entry.Caption)
		assert.Equal(t, now, entry.UpdatedAt)
		assert.Equal(t, 0, store.callCount("GetPost"))
	})

	t.Run("whitespace caption makes no remote call", func(t *testing.T) {
		store := newMemStore()
		store.seed(1, "owner")
		f := loadedFeed(t, store, Options{})
		before := f.Entries()
		calls := store.totalCalls()

		err := f.EditCaption(context.Background(), viewer, "p1", " \t\n ")
		assert.ErrorIs(t, err, ErrValidation)
		assert.Equal(t, calls, store.totalCalls())
		assert.Equal(t, before, f.Entries())
	})

	t.Run("remote failure keeps cached caption", func(t *testing.T) {
		store := newMemStore()
		store.seed(1, "owner")
		f := loadedFeed(t, store, Options{})
		store.failNext("UpdateCaption", ErrForbidden)

		err := f.EditCaption(context.Background(), viewer, "p1", "mine now")
		assert.ErrorIs(t, err, ErrForbidden)

		entry, _ := f.Lookup("p1")
		assert.Equal(t, "post 1", entry.Caption)
	})

	t.Run("requires a session", func(t *testing.T) {
		store := newMemStore()
		store.seed(1, "owner")
		f := loadedFeed(t, store, Options{})

		err := f.EditCaption(context.Background(), Session{}, "p1", "hello")
		assert.ErrorIs(t, err, ErrNotAuthenticated)
	})
}

func TestDeletePost(t *testing.T) {
	ctx := context.Background()

	t.Run("owner deletes post and likes", func(t *testing.T) {
		store := newMemStore()
		store.seed(3, viewer.UserID)
		store.addLike("p2", viewer.UserID)
		store.addLike("p2", "other")
		f := loadedFeed(t, store, Options{})

		require.NoError(t, f.DeletePost(ctx, viewer, "p2"))

		assert.Equal(t, []string{"p3", "p1"}, ids(f.Posts()))
		assert.False(t, f.IsLiked("p2"))
		assert.Equal(t, 0, store.likeRecords("p2"))

		_, err := store.GetPost(ctx, "p2")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("non-owner is refused locally", func(t *testing.T) {
		store := newMemStore()
		store.seed(1, "owner")
		f := loadedFeed(t, store, Options{})

		err := f.DeletePost(ctx, viewer, "p1")
		assert.ErrorIs(t, err, ErrForbidden)
		assert.Equal(t, 0, store.callCount("DeletePost"))
		assert.Len(t, f.Posts(), 1)

		// The in-flight mark is released after a refusal.
		_, err = f.ToggleLike(ctx, viewer, "p1")
		assert.NoError(t, err)
	})

	t.Run("failed delete keeps entry", func(t *testing.T) {
		store := newMemStore()
		store.seed(1, viewer.UserID)
		f := loadedFeed(t, store, Options{})
		store.failNext("DeletePost", errors.New("unavailable"))

		err := f.DeletePost(ctx, viewer, "p1")
		assert.ErrorIs(t, err, ErrRemoteWrite)
		assert.False(t, IsCleanupWarning(err))
		assert.Len(t, f.Posts(), 1)
		assert.Equal(t, 0, store.callCount("DeleteLikes"))
	})

	t.Run("cleanup failure is a warning", func(t *testing.T) {
		store := newMemStore()
		store.seed(2, viewer.UserID)
		store.addLike("p1", "other")
		f := loadedFeed(t, store, Options{})
		store.failNext("DeleteLikes", errors.New("partial"))

		err := f.DeletePost(ctx, viewer, "p1")
		require.Error(t, err)
		assert.True(t, IsCleanupWarning(err))
		assert.Equal(t, []string{"p2"}, ids(f.Posts()))
	})
}
