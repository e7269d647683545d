package post

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/repository"
)

// fakePostRepo はメモリ上で投稿を保持するPostRepositoryの実装。
// 並び順とカーソルの扱いはPostgreSQL実装と同じ。
type fakePostRepo struct {
	mu        sync.Mutex
	posts     []model.Post
	usernames map[string]string
	liked     map[[2]string]bool // {userID, postID}

	createErr     error
	deleteOwnedFn func(ctx context.Context, requesterID, postID string) error
	listCalls     int
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{
		usernames: map[string]string{},
		liked:     map[[2]string]bool{},
	}
}

func (f *fakePostRepo) Create(_ context.Context, post *model.Post) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	f.posts = append(f.posts, *post)
	return nil
}

func (f *fakePostRepo) FindByID(_ context.Context, id, viewerID string) (*model.PostView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.posts {
		if p.ID == id {
			v := f.view(p, viewerID)
			return &v, nil
		}
	}
	return nil, nil
}

func (f *fakePostRepo) ListRecent(_ context.Context, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error) {
	return f.list(func(model.Post) bool { return true }, viewerID, cursor, limit), nil
}

func (f *fakePostRepo) ListByAuthor(_ context.Context, authorID, viewerID string, cursor model.Cursor, limit int) ([]model.PostView, error) {
	return f.list(func(p model.Post) bool { return p.AuthorID == authorID }, viewerID, cursor, limit), nil
}

func (f *fakePostRepo) DeleteOwned(ctx context.Context, requesterID, postID string) error {
	if f.deleteOwnedFn != nil {
		return f.deleteOwnedFn(ctx, requesterID, postID)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, p := range f.posts {
		if p.ID != postID {
			continue
		}
		if p.AuthorID != requesterID {
			return model.NewForbiddenError()
		}
		f.posts = slices.Delete(f.posts, i, i+1)
		return nil
	}
	return model.NewPostNotFoundError(postID)
}

func (f *fakePostRepo) list(match func(model.Post) bool, viewerID string, cursor model.Cursor, limit int) []model.PostView {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++

	sorted := slices.Clone(f.posts)
	slices.SortFunc(sorted, func(a, b model.Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	var out []model.PostView
	for _, p := range sorted {
		if !match(p) || !before(p, cursor) {
			continue
		}
		out = append(out, f.view(p, viewerID))
		if len(out) == limit {
			break
		}
	}
	return out
}

// before は(created_at, id)がカーソルより小さいかを返す。
func before(p model.Post, c model.Cursor) bool {
	if c.IsZero() {
		return true
	}
	if !p.CreatedAt.Equal(c.CreatedAt) {
		return p.CreatedAt.Before(c.CreatedAt)
	}
	return p.ID < c.ID
}

func (f *fakePostRepo) view(p model.Post, viewerID string) model.PostView {
	return model.PostView{
		Post:           p,
		AuthorUsername: f.usernames[p.AuthorID],
		LikedByViewer:  viewerID != "" && f.liked[[2]string{viewerID, p.ID}],
	}
}

var _ repository.PostRepository = (*fakePostRepo)(nil)

// mockRecorder は呼び出し回数を数えるmetrics.Recorder。
type mockRecorder struct {
	mu              sync.Mutex
	postsCreated    int
	postsDeleted    int
	commentsCreated int
}

func (m *mockRecorder) RecordPostCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postsCreated++
}

func (m *mockRecorder) RecordPostDeleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.postsDeleted++
}

func (m *mockRecorder) RecordCommentCreated() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commentsCreated++
}

func (m *mockRecorder) RecordLikeToggled(string)            {}
func (m *mockRecorder) RecordCountersRepaired(int64)        {}
func (m *mockRecorder) RecordHTTPStatus(int)                {}
func (m *mockRecorder) RecordRequestDuration(time.Duration) {}
