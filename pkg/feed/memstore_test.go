package feed

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memStore is an in-memory PostStore and LikeStore. Like and Unlike apply the
// record and the counter under one lock, which is the batch guarantee the
// real stores give.
type memStore struct {
	mu    sync.Mutex
	codec *CursorCodec
	posts map[string]Post
	likes map[string]map[string]bool
	calls map[string]int
	fail  map[string]error

	// hook runs outside the lock once an op has been decided, before it
	// returns. Tests use it to hold an op open.
	hook func(op, postID string)
}

func newMemStore() *memStore {
	return &memStore{
		codec: NewCursorCodec("test-secret"),
		posts: make(map[string]Post),
		likes: make(map[string]map[string]bool),
		calls: make(map[string]int),
		fail:  make(map[string]error),
	}
}

var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// seed adds posts p1..pn where a larger n is newer.
func (s *memStore) seed(n int, owner string) {
	for i := 1; i <= n; i++ {
		s.add(Post{
			ID:             fmt.Sprintf("p%d", i),
			Caption:        fmt.Sprintf("post %d", i),
			ImageURL:       fmt.Sprintf("https://images.test/p%d.jpg", i),
			PostedUserID:   owner,
			PostedUserName: "owner",
			CreatedAt:      baseTime.Add(time.Duration(i) * time.Minute),
			UpdatedAt:      baseTime.Add(time.Duration(i) * time.Minute),
		})
	}
}

func (s *memStore) add(p Post) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.posts[p.ID] = p
}

// remove deletes a post directly, bypassing call counts.
func (s *memStore) remove(postID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.posts, postID)
}

// addLike writes a like record and counter directly, bypassing call counts.
func (s *memStore) addLike(postID, userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.likes[postID] == nil {
		s.likes[postID] = make(map[string]bool)
	}
	s.likes[postID][userID] = true
	p := s.posts[postID]
	p.LikeCount++
	s.posts[postID] = p
}

func (s *memStore) setHook(hook func(op, postID string)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = hook
}

func (s *memStore) failNext(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fail[op] = err
}

func (s *memStore) callCount(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

func (s *memStore) totalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.calls {
		total += n
	}
	return total
}

func (s *memStore) likeCount(postID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.posts[postID].LikeCount
}

func (s *memStore) likeRecords(postID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.likes[postID])
}

// enter counts the call and returns the injected failure, if any.
func (s *memStore) enter(op string) error {
	s.calls[op]++
	if err, ok := s.fail[op]; ok {
		delete(s.fail, op)
		return err
	}
	return nil
}

func (s *memStore) leave(op, postID string) {
	s.mu.Lock()
	hook := s.hook
	s.mu.Unlock()
	if hook != nil {
		hook(op, postID)
	}
}

func (s *memStore) FetchPage(ctx context.Context, cursor Cursor, pageSize int) (Page, error) {
	s.mu.Lock()
	if err := s.enter("FetchPage"); err != nil {
		s.mu.Unlock()
		return Page{}, err
	}

	var after *Position
	if cursor != "" {
		pos, err := s.codec.Decode(cursor)
		if err != nil {
			s.mu.Unlock()
			return Page{}, err
		}
		after = &pos
	}

	all := make([]Post, 0, len(s.posts))
	for _, p := range s.posts {
		if after == nil || PositionOf(p).After(*after) {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return PositionOf(all[j]).After(PositionOf(all[i]))
	})
	if len(all) > pageSize+1 {
		all = all[:pageSize+1]
	}
	page := s.codec.BuildPage(all, pageSize)
	s.mu.Unlock()

	s.leave("FetchPage", string(cursor))
	return page, nil
}

func (s *memStore) GetPost(ctx context.Context, postID string) (Post, error) {
	s.mu.Lock()
	if err := s.enter("GetPost"); err != nil {
		s.mu.Unlock()
		return Post{}, err
	}
	p, ok := s.posts[postID]
	s.mu.Unlock()

	s.leave("GetPost", postID)
	if !ok {
		return Post{}, ErrNotFound
	}
	return p, nil
}

func (s *memStore) UpdateCaption(ctx context.Context, postID, caption string, updatedAt time.Time) error {
	s.mu.Lock()
	if err := s.enter("UpdateCaption"); err != nil {
		s.mu.Unlock()
		return err
	}
	p, ok := s.posts[postID]
	if ok {
		p.Caption = caption
		p.UpdatedAt = updatedAt
		s.posts[postID] = p
	}
	s.mu.Unlock()

	s.leave("UpdateCaption", postID)
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *memStore) DeletePost(ctx context.Context, postID string) error {
	s.mu.Lock()
	if err := s.enter("DeletePost"); err != nil {
		s.mu.Unlock()
		return err
	}
	_, ok := s.posts[postID]
	delete(s.posts, postID)
	s.mu.Unlock()

	s.leave("DeletePost", postID)
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *memStore) IsLiked(ctx context.Context, postID, userID string) (bool, error) {
	s.mu.Lock()
	if err := s.enter("IsLiked"); err != nil {
		s.mu.Unlock()
		return false, err
	}
	_, exists := s.posts[postID]
	liked := s.likes[postID][userID]
	s.mu.Unlock()

	s.leave("IsLiked", postID)
	if !exists {
		return false, ErrNotFound
	}
	return liked, nil
}

func (s *memStore) Like(ctx context.Context, postID, userID string) error {
	s.mu.Lock()
	if err := s.enter("Like"); err != nil {
		s.mu.Unlock()
		return err
	}
	p, ok := s.posts[postID]
	switch {
	case !ok:
		s.mu.Unlock()
		return ErrNotFound
	case s.likes[postID][userID]:
		s.mu.Unlock()
		return ErrBatchConflict
	}
	if s.likes[postID] == nil {
		s.likes[postID] = make(map[string]bool)
	}
	s.likes[postID][userID] = true
	p.LikeCount++
	s.posts[postID] = p
	s.mu.Unlock()

	s.leave("Like", postID)
	return nil
}

func (s *memStore) Unlike(ctx context.Context, postID, userID string) error {
	s.mu.Lock()
	if err := s.enter("Unlike"); err != nil {
		s.mu.Unlock()
		return err
	}
	p, ok := s.posts[postID]
	switch {
	case !ok:
		s.mu.Unlock()
		return ErrNotFound
	case !s.likes[postID][userID]:
		s.mu.Unlock()
		return ErrBatchConflict
	}
	delete(s.likes[postID], userID)
	if p.LikeCount > 0 {
		p.LikeCount--
	}
	s.posts[postID] = p
	s.mu.Unlock()

	s.leave("Unlike", postID)
	return nil
}

func (s *memStore) DeleteLikes(ctx context.Context, postID string) error {
	s.mu.Lock()
	if err := s.enter("DeleteLikes"); err != nil {
		s.mu.Unlock()
		return err
	}
	delete(s.likes, postID)
	s.mu.Unlock()

	s.leave("DeleteLikes", postID)
	return nil
}
