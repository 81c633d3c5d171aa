// Package feedclient talks to the auth and post services over HTTP. A Client
// holds the signed-in session and implements feed.PostStore and
// feed.LikeStore, so it can back a feed.Feed directly.
package feedclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"petfeed/pkg/feed"
)

var (
	ErrSignIn  = errors.New("sign in failed")
	ErrSignUp  = errors.New("sign up failed")
	ErrSignOut = errors.New("sign out failed")
)

const defaultTimeout = 10 * time.Second

// User is the profile returned by the auth service.
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	PetName     string    `json:"pet_name"`
	PetImageURL string    `json:"pet_image_url"`
	CreatedAt   time.Time `json:"created_at"`
}

type Client struct {
	authURL string
	postURL string
	http    *http.Client

	mu     sync.RWMutex
	token  string
	userID string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func New(authURL, postURL string, opts ...Option) *Client {
	c := &Client{
		authURL: strings.TrimRight(authURL, "/"),
		postURL: strings.TrimRight(postURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

var (
	_ feed.PostStore = (*Client)(nil)
	_ feed.LikeStore = (*Client)(nil)
)

// Token returns the bearer token of the current session, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// CurrentUserID returns "" when nobody is signed in.
func (c *Client) CurrentUserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

func (c *Client) Session() feed.Session {
	return feed.Session{UserID: c.CurrentUserID()}
}

func (c *Client) setSession(token, userID string) {
	c.mu.Lock()
	c.token = token
	c.userID = userID
	c.mu.Unlock()
}

type authResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

func (c *Client) SignUp(ctx context.Context, email, password, name, petName string) (*User, error) {
	body := map[string]string{"email": email, "password": password, "name": name, "pet_name": petName}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, c.authURL+"/api/v1/auth/register", body, &resp, feed.ErrRemoteWrite); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignUp, err)
	}
	c.setSession(resp.Token, resp.User.ID)
	return &resp.User, nil
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*User, error) {
	body := map[string]string{"email": email, "password": password}
	var resp authResponse
	if err := c.do(ctx, http.MethodPost, c.authURL+"/api/v1/auth/login", body, &resp, feed.ErrRemoteRead); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSignIn, err)
	}
	c.setSession(resp.Token, resp.User.ID)
	return &resp.User, nil
}

// Resume adopts a token issued earlier and loads its user.
func (c *Client) Resume(ctx context.Context, token string) (*User, error) {
	c.setSession(token, "")
	user, err := c.Me(ctx)
	if err != nil {
		c.setSession("", "")
		return nil, fmt.Errorf("%w: %w", ErrSignIn, err)
	}
	c.setSession(token, user.ID)
	return user, nil
}

// SignOut revokes the token server-side. The local session is only cleared
// when the revocation succeeded.
func (c *Client) SignOut(ctx context.Context) error {
	if c.Token() == "" {
		return nil
	}
	if err := c.do(ctx, http.MethodPost, c.authURL+"/api/v1/auth/logout", nil, nil, feed.ErrRemoteWrite); err != nil {
		return fmt.Errorf("%w: %w", ErrSignOut, err)
	}
	c.setSession("", "")
	return nil
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(ctx, http.MethodGet, c.authURL+"/api/v1/users/me", nil, &user, feed.ErrRemoteRead); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) UpdateProfile(ctx context.Context, name, petName *string) (*User, error) {
	body := map[string]*string{"name": name, "pet_name": petName}
	var user User
	if err := c.do(ctx, http.MethodPut, c.authURL+"/api/v1/users/me", body, &user, feed.ErrRemoteWrite); err != nil {
		return nil, err
	}
	return &user, nil
}

type pageResponse struct {
	Posts      []feed.Post `json:"posts"`
	NextCursor string      `json:"next_cursor"`
}

func (c *Client) FetchPage(ctx context.Context, cursor feed.Cursor, pageSize int) (feed.Page, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(pageSize))
	if cursor != "" {
		q.Set("cursor", string(cursor))
	}

	var resp pageResponse
	if err := c.do(ctx, http.MethodGet, c.postURL+"/api/v1/posts?"+q.Encode(), nil, &resp, feed.ErrRemoteRead); err != nil {
		return feed.Page{}, err
	}
	return feed.Page{Items: resp.Posts, Next: feed.Cursor(resp.NextCursor)}, nil
}

func (c *Client) GetPost(ctx context.Context, postID string) (feed.Post, error) {
	var post feed.Post
	if err := c.do(ctx, http.MethodGet, c.postPath(postID, ""), nil, &post, feed.ErrRemoteRead); err != nil {
		return feed.Post{}, err
	}
	return post, nil
}

// UpdateCaption sends only the caption. The post service stamps updated_at
// with its own clock.
func (c *Client) UpdateCaption(ctx context.Context, postID, caption string, _ time.Time) error {
	body := map[string]string{"caption": caption}
	return c.do(ctx, http.MethodPatch, c.postPath(postID, ""), body, nil, feed.ErrRemoteWrite)
}

func (c *Client) DeletePost(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodDelete, c.postPath(postID, ""), nil, nil, feed.ErrRemoteWrite)
}

// IsLiked asks for the signed-in user. Other users' like status is not
// exposed by the post service.
func (c *Client) IsLiked(ctx context.Context, postID, userID string) (bool, error) {
	if current := c.CurrentUserID(); userID != current {
		return false, fmt.Errorf("%w: like status of %q requested by %q", feed.ErrForbidden, userID, current)
	}
	var resp struct {
		Liked bool `json:"liked"`
	}
	if err := c.do(ctx, http.MethodGet, c.postPath(postID, "liked"), nil, &resp, feed.ErrRemoteRead); err != nil {
		return false, err
	}
	return resp.Liked, nil
}

func (c *Client) Like(ctx context.Context, postID, userID string) error {
	return c.do(ctx, http.MethodPost, c.postPath(postID, "like"), nil, nil, feed.ErrRemoteWrite)
}

func (c *Client) Unlike(ctx context.Context, postID, userID string) error {
	return c.do(ctx, http.MethodDelete, c.postPath(postID, "like"), nil, nil, feed.ErrRemoteWrite)
}

func (c *Client) DeleteLikes(ctx context.Context, postID string) error {
	return c.do(ctx, http.MethodDelete, c.postPath(postID, "likes"), nil, nil, feed.ErrRemoteWrite)
}

// CreatePost uploads image and creates a post with caption.
func (c *Client) CreatePost(ctx context.Context, caption, filename string, image io.Reader) (feed.Post, error) {
	if strings.TrimSpace(caption) == "" {
		return feed.Post{}, fmt.Errorf("%w: caption is empty", feed.ErrValidation)
	}

	data, err := io.ReadAll(image)
	if err != nil {
		return feed.Post{}, fmt.Errorf("failed to read image: %w", err)
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if err := writer.WriteField("caption", caption); err != nil {
		return feed.Post{}, err
	}

	// The post service only accepts parts declared as image/*.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	header.Set("Content-Type", imageContentType(filename, data))
	part, err := writer.CreatePart(header)
	if err != nil {
		return feed.Post{}, err
	}
	if _, err := part.Write(data); err != nil {
		return feed.Post{}, err
	}
	if err := writer.Close(); err != nil {
		return feed.Post{}, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, c.postURL+"/api/v1/posts", body)
	if err != nil {
		return feed.Post{}, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	var post feed.Post
	if err := c.send(req, &post, feed.ErrRemoteWrite); err != nil {
		return feed.Post{}, err
	}
	return post, nil
}

func imageContentType(filename string, data []byte) string {
	if ct := mime.TypeByExtension(strings.ToLower(filepath.Ext(filename))); strings.HasPrefix(ct, "image/") {
		return ct
	}
	return http.DetectContentType(data)
}

func (c *Client) postPath(postID, sub string) string {
	p := c.postURL + "/api/v1/posts/" + url.PathEscape(postID)
	if sub != "" {
		p += "/" + sub
	}
	return p
}

func (c *Client) do(ctx context.Context, method, rawURL string, in, out interface{}, kind error) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := c.newRequest(ctx, method, rawURL, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req, out, kind)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if token := c.Token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) send(req *http.Request, out interface{}, kind error) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", kind, req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(resp, kind)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode response: %w", kind, err)
	}
	return nil
}

// StatusError is a non-2xx answer from a service. It unwraps to the feed
// error matching the status code.
type StatusError struct {
	Code    int
	Message string
	kind    error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d %s", e.Code, e.Message)
}

func (e *StatusError) Unwrap() error {
	return e.kind
}

func statusError(resp *http.Response, kind error) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))
	var body struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &body) == nil && body.Error != "" {
		msg = body.Error
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized:
		kind = feed.ErrNotAuthenticated
	case http.StatusForbidden:
		kind = feed.ErrForbidden
	case http.StatusNotFound:
		kind = feed.ErrNotFound
	case http.StatusConflict:
		kind = feed.ErrBatchConflict
	case http.StatusBadRequest:
		kind = feed.ErrValidation
	}
	return &StatusError{Code: resp.StatusCode, Message: msg, kind: kind}
}
