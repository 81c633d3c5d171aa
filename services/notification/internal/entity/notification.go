package entity

import (
	"errors"
	"time"
)

const (
	TypeLike        = "like"
	TypePostDeleted = "post_deleted"
)

var ErrInvalidTask = errors.New("invalid notification task")

// Notification tells a post owner that something happened to their post.
type Notification struct {
	UserID    string    `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	PostID    string    `json:"post_id"`
	ActorID   string    `json:"actor_id"`
	LikeCount int       `json:"like_count"`
	CreatedAt time.Time `json:"created_at"`
}
