package handler

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/repository"
)

// memStore はシナリオテスト用のインメモリストア。
// 各リポジトリは同じストアを共有し、1つのミューテックスで直列化する。
type memStore struct {
	mu       sync.Mutex
	users    map[string]*model.User
	sessions map[string]*model.Session
	posts    map[string]*model.Post
	likes    map[[2]string]time.Time // (userID, postID)
	comments []model.Comment
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[string]*model.User),
		sessions: make(map[string]*model.Session),
		posts:    make(map[string]*model.Post),
		likes:    make(map[[2]string]time.Time),
	}
}

// likeRows は投稿のいいね行数を返す。呼び出し側でロックを保持すること。
func (s *memStore) likeRows(postID string) int {
	n := 0
	for k := range s.likes {
		if k[1] == postID {
			n++
		}
	}
	return n
}

type memUserRepo struct{ s *memStore }

func (r memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.users[id], nil
}

func (r memUserRepo) FindByUsername(_ context.Context, username string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return nil, nil
}

func (r memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, nil
}

func (r memUserRepo) Create(_ context.Context, user *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Username == user.Username {
			return model.NewDuplicateUsernameError(user.Username)
		}
		if u.Email == user.Email {
			return model.NewDuplicateEmailError()
		}
	}
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

type memSessionRepo struct{ s *memStore }

func (r memSessionRepo) Create(_ context.Context, session *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *session
	r.s.sessions[session.ID] = &cp
	return nil
}

func (r memSessionRepo) FindByID(_ context.Context, id string) (*model.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || !sess.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return sess, nil
}

func (r memSessionRepo) DeleteByID(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.sessions, id)
	return nil
}

type memPostRepo struct{ s *memStore }

func (r memPostRepo) Create(_ context.Context, post *model.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.users[post.AuthorID]; !ok {
		return model.NewUserNotFoundError()
	}
	post.Likes = 0
	cp := *post
	r.s.posts[post.ID] = &cp
	return nil
}

func (r memPostRepo) FindByID(_ context.Context, id, viewerID string) (*model.PostView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, nil
	}
	v := r.view(*p, viewerID)
	return &v, nil
}

func (r memPostRepo) ListRecent(_ context.Context, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error) {
	return r.list(func(model.Post) bool { return true }, viewerID, cursor, limit), nil
}

func (r memPostRepo) ListByAuthor(_ context.Context, authorID, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error) {
	return r.list(func(p model.Post) bool { return p.AuthorID == authorID }, viewerID, cursor, limit), nil
}

func (r memPostRepo) DeleteOwned(_ context.Context, requesterID, postID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[postID]
	if !ok {
		return model.NewPostNotFoundError(postID)
	}
	if p.AuthorID != requesterID {
		return model.NewForbiddenError()
	}
	r.s.comments = slices.DeleteFunc(r.s.comments, func(c model.Comment) bool { return c.PostID == postID })
	for k := range r.s.likes {
		if k[1] == postID {
			delete(r.s.likes, k)
		}
	}
	delete(r.s.posts, postID)
	return nil
}

func (r memPostRepo) list(match func(model.Post) bool, viewerID string, cursor model.Cursor, limit int) []model.PostView {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var posts []model.Post
	for _, p := range r.s.posts {
		if match(*p) {
			posts = append(posts, *p)
		}
	}
	slices.SortFunc(posts, func(a, b model.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	var views []model.PostView
	for _, p := range posts {
		if !cursor.IsZero() {
			c := p.CreatedAt.Compare(cursor.CreatedAt)
			if c > 0 || (c == 0 && p.ID >= cursor.ID) {
				continue
			}
		}
		views = append(views, r.view(p, viewerID))
		if len(views) == limit {
			break
		}
	}
	return views
}

func (r memPostRepo) view(p model.Post, viewerID string) model.PostView {
	_, liked := r.s.likes[[2]string{viewerID, p.ID}]
	comments := 0
	for _, c := range r.s.comments {
		if c.PostID == p.ID {
			comments++
		}
	}
	return model.PostView{
		Post:           p,
		AuthorUsername: r.s.users[p.AuthorID].Username,
		LikedByViewer:  viewerID != "" && liked,
		CommentCount:   comments,
	}
}

type memLikeRepo struct{ s *memStore }

func (r memLikeRepo) Toggle(_ context.Context, userID, postID string) (*model.ToggleOutcome, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[postID]
	if !ok {
		return nil, model.NewPostNotFoundError(postID)
	}
	key := [2]string{userID, postID}
	if _, liked := r.s.likes[key]; liked {
		delete(r.s.likes, key)
		p.Likes--
		return &model.ToggleOutcome{PostID: postID, Result: model.ToggleUnliked, Likes: p.Likes}, nil
	}
	r.s.likes[key] = time.Now()
	p.Likes++
	return &model.ToggleOutcome{PostID: postID, Result: model.ToggleLiked, Likes: p.Likes}, nil
}

func (r memLikeRepo) Exists(_ context.Context, userID, postID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.likes[[2]string{userID, postID}]
	return ok, nil
}

func (r memLikeRepo) ListPostIDsByUser(_ context.Context, userID string) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var ids []string
	for k := range r.s.likes {
		if k[0] == userID {
			ids = append(ids, k[1])
		}
	}
	return ids, nil
}

func (r memLikeRepo) ListDrift(_ context.Context) ([]repository.CounterDrift, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var drifts []repository.CounterDrift
	for id, p := range r.s.posts {
		if actual := r.s.likeRows(id); actual != p.Likes {
			drifts = append(drifts, repository.CounterDrift{PostID: id, Counter: p.Likes, Actual: actual})
		}
	}
	return drifts, nil
}

func (r memLikeRepo) Reconcile(_ context.Context) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var repaired int64
	for id, p := range r.s.posts {
		if actual := r.s.likeRows(id); actual != p.Likes {
			p.Likes = actual
			repaired++
		}
	}
	return repaired, nil
}

type memCommentRepo struct{ s *memStore }

func (r memCommentRepo) Create(_ context.Context, comment *model.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[comment.PostID]; !ok {
		return model.NewPostNotFoundError(comment.PostID)
	}
	if comment.ID == "" {
		comment.ID = uuid.New().String()
	}
	r.s.comments = append(r.s.comments, *comment)
	return nil
}

func (r memCommentRepo) ListByPost(_ context.Context, postID string) ([]model.CommentView, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var views []model.CommentView
	for _, c := range r.s.comments {
		if c.PostID == postID {
			views = append(views, model.CommentView{Comment: c, AuthorUsername: r.s.users[c.AuthorID].Username})
		}
	}
	slices.SortFunc(views, func(a, b model.CommentView) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return views, nil
}

var (
	_ repository.UserRepository    = memUserRepo{}
	_ repository.SessionRepository = memSessionRepo{}
	_ repository.PostRepository    = memPostRepo{}
	_ repository.LikeRepository    = memLikeRepo{}
	_ repository.CommentRepository = memCommentRepo{}
)
