// Package feed keeps a locally cached, paginated view of a remote post
// collection together with the viewer's liked-set, and coordinates
// like/unlike, caption edits and deletes against the remote stores so that
// the cache only ever reflects confirmed remote state.
package feed

import (
	"context"
	"time"
)

// Post is a snapshot of a remote post document. LikeCount is owned by the
// server and only changes through Like/Unlike batches.
type Post struct {
	ID             string    `json:"id"`
	Caption        string    `json:"caption"`
	ImageURL       string    `json:"image_url"`
	LikeCount      int       `json:"like_count"`
	PostedUserID   string    `json:"posted_user_id"`
	PostedUserName string    `json:"posted_user_name"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Entry is a cached post plus whether the current viewer likes it.
type Entry struct {
	Post
	Liked bool `json:"liked"`
}

// Session identifies the viewer. It is passed to every call instead of
// being read from ambient state.
type Session struct {
	UserID string
}

func (s Session) authenticated() bool {
	return s.UserID != ""
}

// PostStore is the remote post collection.
type PostStore interface {
	// FetchPage returns posts strictly older than cursor, newest first.
	// An empty cursor starts from the newest post.
	FetchPage(ctx context.Context, cursor Cursor, pageSize int) (Page, error)
	GetPost(ctx context.Context, postID string) (Post, error)
	// UpdateCaption merges caption and updatedAt into the document.
	UpdateCaption(ctx context.Context, postID, caption string, updatedAt time.Time) error
	DeletePost(ctx context.Context, postID string) error
}

// LikeStore is the per-post like sub-collection. Like and Unlike must apply
// the like record and the post's counter change atomically.
type LikeStore interface {
	IsLiked(ctx context.Context, postID, userID string) (bool, error)
	Like(ctx context.Context, postID, userID string) error
	Unlike(ctx context.Context, postID, userID string) error
	DeleteLikes(ctx context.Context, postID string) error
}

// Logger is satisfied by *logger.Logger.
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
