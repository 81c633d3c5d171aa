package feed

import (
	"context"
	"errors"
	"strings"
)

// ToggleLike likes the post if the viewer's cached liked-set does not contain
// it and unlikes it otherwise. The remote batch applies the like record and
// the counter change together. The cache changes only after the batch is
// confirmed, and the post is then re-read so its likeCount matches the
// server. It returns the new liked state.
func (f *Feed) ToggleLike(ctx context.Context, sess Session, postID string) (bool, error) {
	const op = "toggle like"

	if !sess.authenticated() {
		return false, opError(op, postID, ErrNotAuthenticated)
	}

	entry, err := f.begin(postID)
	if err != nil {
		return false, opError(op, postID, err)
	}
	defer f.end(postID)

	if entry.Liked {
		err = f.likes.Unlike(ctx, postID, sess.UserID)
	} else {
		err = f.likes.Like(ctx, postID, sess.UserID)
	}
	if err != nil {
		f.log.Error("Failed to toggle like for post %s: %v", postID, err)
		return entry.Liked, opError(op, postID, remote(ErrRemoteWrite, err))
	}

	liked := !entry.Liked
	f.mu.Lock()
	if liked {
		f.liked[postID] = struct{}{}
	} else {
		delete(f.liked, postID)
	}
	f.touch(postID, false)
	f.mu.Unlock()

	f.reconcile(ctx, postID)
	return liked, nil
}

// reconcile replaces the cached post with the server copy. A failed read
// leaves the stale copy in place; a post that no longer exists is dropped.
func (f *Feed) reconcile(ctx context.Context, postID string) {
	post, err := f.posts.GetPost(ctx, postID)

	f.mu.Lock()
	defer f.mu.Unlock()

	if errors.Is(err, ErrNotFound) {
		f.log.Warn("Post %s disappeared after like toggle, dropping it", postID)
		f.removeLocked(postID)
		f.touch(postID, true)
		return
	}
	if err != nil {
		f.log.Warn("Failed to re-read post %s after like toggle: %v", postID, err)
		return
	}

	if i := f.indexOf(postID); i >= 0 {
		f.items[i] = post
		f.touch(postID, false)
	}
}

// EditCaption replaces the caption of a cached post. Captions that are empty
// after trimming whitespace are rejected before any remote call. The caption
// is stored as given, and the server refuses edits by anyone but the owner.
func (f *Feed) EditCaption(ctx context.Context, sess Session, postID, caption string) error {
	const op = "edit caption"

	if !sess.authenticated() {
		return opError(op, postID, ErrNotAuthenticated)
	}
	if strings.TrimSpace(caption) == "" {
		return opError(op, postID, ErrValidation)
	}

	if _, err := f.begin(postID); err != nil {
		return opError(op, postID, err)
	}
	defer f.end(postID)

	updatedAt := f.now().UTC()
	if err := f.posts.UpdateCaption(ctx, postID, caption, updatedAt); err != nil {
		f.log.Error("Failed to update caption for post %s: %v", postID, err)
		return opError(op, postID, remote(ErrRemoteWrite, err))
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if i := f.indexOf(postID); i >= 0 {
		f.items[i].Caption = caption
		f.items[i].UpdatedAt = updatedAt
		f.touch(postID, false)
	}
	return nil
}

// DeletePost removes one of the viewer's own posts and then its likes. A
// failed like cleanup does not undo the delete: the entry is removed from the
// cache and a *CleanupError is returned.
func (f *Feed) DeletePost(ctx context.Context, sess Session, postID string) error {
	const op = "delete post"

	if !sess.authenticated() {
		return opError(op, postID, ErrNotAuthenticated)
	}

	entry, err := f.begin(postID)
	if err != nil {
		return opError(op, postID, err)
	}
	defer f.end(postID)

	if entry.PostedUserID != sess.UserID {
		return opError(op, postID, ErrForbidden)
	}

	if err := f.posts.DeletePost(ctx, postID); err != nil {
		f.log.Error("Failed to delete post %s: %v", postID, err)
		return opError(op, postID, remote(ErrRemoteWrite, err))
	}

	cleanupErr := f.likes.DeleteLikes(ctx, postID)

	f.mu.Lock()
	f.removeLocked(postID)
	f.touch(postID, true)
	f.mu.Unlock()

	if cleanupErr != nil {
		f.log.Warn("Post %s deleted but its likes were not: %v", postID, cleanupErr)
		return opError(op, postID, &CleanupError{PostID: postID, Err: cleanupErr})
	}

	f.log.Info("Deleted post %s", postID)
	return nil
}

// begin marks postID as having a mutation in flight and returns its cached
// entry.
func (f *Feed) begin(postID string) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(postID)
	if i < 0 {
		return Entry{}, ErrNotFound
	}
	if _, busy := f.inflight[postID]; busy {
		return Entry{}, ErrBusy
	}
	f.inflight[postID] = struct{}{}

	_, liked := f.liked[postID]
	return Entry{Post: f.items[i], Liked: liked}, nil
}

func (f *Feed) end(postID string) {
	f.mu.Lock()
	delete(f.inflight, postID)
	f.mu.Unlock()
}
