package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

const DefaultFanoutLimit = 8

type State int

const (
	StateIdle State = iota
	StateLoading
	StateLoadingMore
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoadingMore:
		return "loading more"
	default:
		return "idle"
	}
}

type Options struct {
	PageSize    int
	FanoutLimit int
	Logger      Logger
	Now         func() time.Time
}

// mutation records a confirmed local change so that a fetch which started
// before it does not publish older remote state over it.
type mutation struct {
	seq     uint64
	deleted bool
}

// Feed is the local cache of the remote feed. All methods are safe for
// concurrent use. Refresh and LoadMore are single-flight; mutations are
// serialized per post.
type Feed struct {
	posts    PostStore
	likes    LikeStore
	pageSize int
	fanout   int
	log      Logger
	now      func() time.Time

	mu          sync.Mutex
	items       []Post
	liked       map[string]struct{}
	cursor      Cursor
	loaded      bool
	refreshing  bool
	loadingMore bool
	generation  uint64
	seq         uint64
	touched     map[string]mutation
	inflight    map[string]struct{}
}

func New(posts PostStore, likes LikeStore, opts Options) *Feed {
	if opts.FanoutLimit <= 0 {
		opts.FanoutLimit = DefaultFanoutLimit
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Feed{
		posts:    posts,
		likes:    likes,
		pageSize: ClampPageSize(opts.PageSize),
		fanout:   opts.FanoutLimit,
		log:      opts.Logger,
		now:      opts.Now,
		liked:    make(map[string]struct{}),
		touched:  make(map[string]mutation),
		inflight: make(map[string]struct{}),
	}
}

// Refresh replaces the cache with the newest page. A refresh while another
// refresh is running is a no-op. A load-more that is in flight when Refresh
// starts is discarded when it completes.
func (f *Feed) Refresh(ctx context.Context, sess Session) error {
	const op = "refresh"

	f.mu.Lock()
	if f.refreshing {
		f.mu.Unlock()
		return nil
	}
	f.refreshing = true
	f.generation++
	startSeq := f.seq
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.refreshing = false
		f.pruneTouched()
		f.mu.Unlock()
	}()

	page, err := f.posts.FetchPage(ctx, "", f.pageSize)
	if err != nil {
		f.log.Error("Failed to fetch first feed page: %v", err)
		return opError(op, "", remote(ErrRemoteRead, err))
	}

	items, liked, err := f.likedAmong(ctx, sess, page.Items)
	if err != nil {
		f.log.Error("Failed to load liked status for first page: %v", err)
		return opError(op, "", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	prevItems, prevLiked := f.items, f.liked
	f.items = nil
	f.liked = make(map[string]struct{})
	f.appendPage(items, liked, prevItems, prevLiked, startSeq)
	f.cursor = page.Next
	f.loaded = true

	f.log.Info("Feed refreshed with %d posts", len(f.items))
	return nil
}

// LoadMore appends the page after the current cursor. It returns false
// without calling the store when the feed has not been loaded yet, when the
// last page has been reached, or when a refresh or another load-more is
// already running.
func (f *Feed) LoadMore(ctx context.Context, sess Session) (bool, error) {
	const op = "load more"

	f.mu.Lock()
	if !f.loaded || f.cursor == "" || f.refreshing || f.loadingMore {
		f.mu.Unlock()
		return false, nil
	}
	f.loadingMore = true
	gen := f.generation
	cursor := f.cursor
	startSeq := f.seq
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.loadingMore = false
		f.pruneTouched()
		f.mu.Unlock()
	}()

	page, err := f.posts.FetchPage(ctx, cursor, f.pageSize)
	if err != nil {
		f.log.Error("Failed to fetch feed page: %v", err)
		return false, opError(op, "", remote(ErrRemoteRead, err))
	}

	items, liked, err := f.likedAmong(ctx, sess, page.Items)
	if err != nil {
		f.log.Error("Failed to load liked status for next page: %v", err)
		return false, opError(op, "", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.generation != gen {
		f.log.Warn("Discarding feed page fetched before a refresh")
		return false, nil
	}

	f.appendPage(items, liked, nil, f.liked, startSeq)
	f.cursor = page.Next
	return true, nil
}

// appendPage adds fetched posts to the cache, skipping ids already present.
// Posts mutated locally after startSeq keep their local version taken from
// prevItems and prevLiked. Callers hold f.mu.
func (f *Feed) appendPage(fetched []Post, liked map[string]struct{}, prevItems []Post, prevLiked map[string]struct{}, startSeq uint64) {
	for _, post := range fetched {
		if f.indexOf(post.ID) >= 0 {
			continue
		}

		m, changed := f.touched[post.ID]
		if changed && m.seq > startSeq {
			if m.deleted {
				continue
			}
			for _, prev := range prevItems {
				if prev.ID == post.ID {
					post = prev
					break
				}
			}
			if _, ok := prevLiked[post.ID]; ok {
				f.liked[post.ID] = struct{}{}
			}
			f.items = append(f.items, post)
			continue
		}

		if _, ok := liked[post.ID]; ok {
			f.liked[post.ID] = struct{}{}
		}
		f.items = append(f.items, post)
	}
}

// likedAmong asks the like store about every post with at most f.fanout
// requests in flight. Posts deleted since the page was fetched are left out
// of the returned slice; any other failure fails the whole call.
func (f *Feed) likedAmong(ctx context.Context, sess Session, posts []Post) ([]Post, map[string]struct{}, error) {
	liked := make(map[string]struct{})
	if !sess.authenticated() || len(posts) == 0 {
		return posts, liked, nil
	}

	results := make([]bool, len(posts))
	gone := make([]bool, len(posts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.fanout)
	for i, post := range posts {
		i, postID := i, post.ID
		g.Go(func() error {
			ok, err := f.likes.IsLiked(gctx, postID, sess.UserID)
			if errors.Is(err, ErrNotFound) {
				gone[i] = true
				return nil
			}
			if err != nil {
				return opError("liked status", postID, remote(ErrRemoteRead, err))
			}
			results[i] = ok
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	kept := make([]Post, 0, len(posts))
	for i, post := range posts {
		if gone[i] {
			f.log.Warn("Post %s disappeared while loading the feed", post.ID)
			continue
		}
		if results[i] {
			liked[post.ID] = struct{}{}
		}
		kept = append(kept, post)
	}
	return kept, liked, nil
}

// Posts returns a copy of the cached posts in feed order.
func (f *Feed) Posts() []Post {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Post, len(f.items))
	copy(out, f.items)
	return out
}

// Entries returns the cached posts with their liked flag.
func (f *Feed) Entries() []Entry {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Entry, len(f.items))
	for i, post := range f.items {
		_, liked := f.liked[post.ID]
		out[i] = Entry{Post: post, Liked: liked}
	}
	return out
}

func (f *Feed) IsLiked(postID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	_, ok := f.liked[postID]
	return ok
}

func (f *Feed) Lookup(postID string) (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	i := f.indexOf(postID)
	if i < 0 {
		return Entry{}, false
	}
	_, liked := f.liked[postID]
	return Entry{Post: f.items[i], Liked: liked}, true
}

// HasMore reports whether LoadMore could fetch another page.
func (f *Feed) HasMore() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.loaded && f.cursor != ""
}

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case f.refreshing:
		return StateLoading
	case f.loadingMore:
		return StateLoadingMore
	default:
		return StateIdle
	}
}

func (f *Feed) indexOf(postID string) int {
	for i := range f.items {
		if f.items[i].ID == postID {
			return i
		}
	}
	return -1
}

func (f *Feed) removeLocked(postID string) {
	if i := f.indexOf(postID); i >= 0 {
		f.items = append(f.items[:i], f.items[i+1:]...)
	}
	delete(f.liked, postID)
}

func (f *Feed) touch(postID string, deleted bool) {
	f.seq++
	f.touched[postID] = mutation{seq: f.seq, deleted: deleted}
}

// pruneTouched forgets mutations once no fetch can still be racing them.
func (f *Feed) pruneTouched() {
	if f.refreshing || f.loadingMore {
		return
	}
	for id := range f.touched {
		delete(f.touched, id)
	}
}

// remote tags a store error with kind unless the store already classified it.
func remote(kind, err error) error {
	for _, known := range []error{ErrNotFound, ErrForbidden, ErrBatchConflict, ErrValidation, ErrNotAuthenticated, ErrInvalidCursor, ErrRemoteRead, ErrRemoteWrite} {
		if errors.Is(err, known) {
			return err
		}
	}
	return fmt.Errorf("%w: %w", kind, err)
}
