package entity

import (
	"errors"
	"time"
)

var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotOwner     = errors.New("you can only modify your own posts")
	ErrAlreadyLiked = errors.New("post already liked")
	ErrNotLiked     = errors.New("post not liked")
	ErrEmptyCaption = errors.New("caption must not be empty")
	ErrInvalidImage = errors.New("image file is required")
)

// Post is a pet photo with its caption. LikeCount always equals the number of
// Like rows for the post.
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

type Like struct {
	PostID    string    `json:"post_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}
