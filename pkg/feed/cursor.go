package feed

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100

	cursorSep = "::"
)

// Cursor is an opaque pagination position. The empty cursor means "start
// from the newest post" when sent and "no more pages" when received.
type Cursor string

// Page is one window of the feed in descending (createdAt, id) order.
type Page struct {
	Items []Post
	Next  Cursor
}

// Position is the decoded form of a cursor: the last post of a page.
type Position struct {
	CreatedAt time.Time
	ID        string
}

// After reports whether p comes strictly after q in feed order: p is older,
// or equally old with a smaller id.
func (p Position) After(q Position) bool {
	if p.CreatedAt.Equal(q.CreatedAt) {
		return p.ID < q.ID
	}
	return p.CreatedAt.Before(q.CreatedAt)
}

func PositionOf(post Post) Position {
	return Position{CreatedAt: post.CreatedAt, ID: post.ID}
}

// ClampPageSize maps n into [1, MaxPageSize], using DefaultPageSize for
// non-positive values.
func ClampPageSize(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	if n > MaxPageSize {
		return MaxPageSize
	}
	return n
}

// CursorCodec signs cursors so clients cannot forge positions.
type CursorCodec struct {
	secret []byte
}

func NewCursorCodec(secret string) *CursorCodec {
	return &CursorCodec{secret: []byte(secret)}
}

// Encode returns base64(createdAt::id::signature).
func (c *CursorCodec) Encode(pos Position) Cursor {
	payload := pos.CreatedAt.UTC().Format(time.RFC3339Nano) + cursorSep + pos.ID
	raw := payload + cursorSep + c.sign(payload)
	return Cursor(base64.URLEncoding.EncodeToString([]byte(raw)))
}

func (c *CursorCodec) Decode(cursor Cursor) (Position, error) {
	decoded, err := base64.URLEncoding.DecodeString(string(cursor))
	if err != nil {
		return Position{}, fmt.Errorf("%w: bad encoding", ErrInvalidCursor)
	}

	// Neither the timestamp nor the hex signature contains the separator, so
	// the id is everything between the first and the last one.
	raw := string(decoded)
	first := strings.Index(raw, cursorSep)
	last := strings.LastIndex(raw, cursorSep)
	if first < 0 || last <= first {
		return Position{}, fmt.Errorf("%w: bad format", ErrInvalidCursor)
	}
	ts, id, sig := raw[:first], raw[first+len(cursorSep):last], raw[last+len(cursorSep):]

	payload := ts + cursorSep + id
	if !hmac.Equal([]byte(sig), []byte(c.sign(payload))) {
		return Position{}, fmt.Errorf("%w: bad signature", ErrInvalidCursor)
	}

	createdAt, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return Position{}, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	if id == "" {
		return Position{}, fmt.Errorf("%w: missing id", ErrInvalidCursor)
	}

	return Position{CreatedAt: createdAt, ID: id}, nil
}

func (c *CursorCodec) sign(payload string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// TrimPage cuts up to pageSize+1 rows, already in feed order, down to one
// page. The extra row only signals that another page exists; the returned
// cursor points at the last kept row and is empty on the final page.
func TrimPage[T any](c *CursorCodec, rows []T, pageSize int, position func(T) Position) ([]T, Cursor) {
	if len(rows) <= pageSize {
		return rows, ""
	}
	items := rows[:pageSize]
	return items, c.Encode(position(items[len(items)-1]))
}

// BuildPage is TrimPage for engine posts.
func (c *CursorCodec) BuildPage(rows []Post, pageSize int) Page {
	items, next := TrimPage(c, rows, pageSize, PositionOf)
	return Page{Items: items, Next: next}
}
