package feed

import (
	"errors"
	"fmt"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation failed")
	ErrForbidden        = errors.New("not the owner of this post")
	ErrRemoteRead       = errors.New("remote read failed")
	ErrRemoteWrite      = errors.New("remote write failed")

	// ErrBatchConflict is returned when the store refuses a like batch
	// because applying it would break likeCount == number of likes, e.g.
	// liking a post the viewer already likes.
	ErrBatchConflict = errors.New("like batch refused: counter and like record would diverge")

	// ErrBusy rejects a mutation for a post that already has one in flight.
	ErrBusy = errors.New("another mutation for this post is in flight")

	ErrInvalidCursor = errors.New("invalid cursor")
)

// OpError carries the operation and post a failure belongs to, so callers
// can report it and retry.
type OpError struct {
	Op     string
	PostID string
	Err    error
}

func (e *OpError) Error() string {
	if e.PostID == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.PostID, e.Err)
}

func (e *OpError) Unwrap() error {
	return e.Err
}

func opError(op, postID string, err error) error {
	return &OpError{Op: op, PostID: postID, Err: err}
}

// CleanupError reports that a post was deleted but some of its likes were
// not. The post is already gone, so this is a warning rather than a failure.
type CleanupError struct {
	PostID string
	Err    error
}

func (e *CleanupError) Error() string {
	return fmt.Sprintf("post %s deleted, like cleanup incomplete: %v", e.PostID, e.Err)
}

func (e *CleanupError) Unwrap() error {
	return e.Err
}

// IsCleanupWarning reports whether err only signals incomplete like cleanup.
func IsCleanupWarning(err error) bool {
	var cleanupErr *CleanupError
	return errors.As(err, &cleanupErr)
}
