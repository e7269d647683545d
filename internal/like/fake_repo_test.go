package like

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/hitoshi/socialfeed/internal/model"
	"github.com/hitoshi/socialfeed/internal/repository"
)

// fakeLikeRepo はメモリ上のいいね台帳。
// PostgreSQL実装の投稿行ロックの代わりにミューテックスで直列化する。
type fakeLikeRepo struct {
	mu       sync.Mutex
	counters map[string]int          // postID -> posts.likes
	rows     map[[2]string]time.Time // {userID, postID} -> created_at

	toggleErr error
}

func newFakeLikeRepo(postIDs ...string) *fakeLikeRepo {
	f := &fakeLikeRepo{
		counters: map[string]int{},
		rows:     map[[2]string]time.Time{},
	}
	for _, id := range postIDs {
		f.counters[id] = 0
	}
	return f
}

func (f *fakeLikeRepo) Toggle(_ context.Context, userID, postID string) (*model.ToggleOutcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.toggleErr != nil {
		return nil, f.toggleErr
	}

	if _, ok := f.counters[postID]; !ok {
		return nil, model.NewPostNotFoundError(postID)
	}

	key := [2]string{userID, postID}
	if _, ok := f.rows[key]; ok {
		delete(f.rows, key)
		f.counters[postID]--
		return &model.ToggleOutcome{PostID: postID, Result: model.ToggleUnliked, Likes: f.counters[postID]}, nil
	}
	f.rows[key] = time.Now()
	f.counters[postID]++
	return &model.ToggleOutcome{PostID: postID, Result: model.ToggleLiked, Likes: f.counters[postID]}, nil
}

func (f *fakeLikeRepo) Exists(_ context.Context, userID, postID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.rows[[2]string{userID, postID}]
	return ok, nil
}

func (f *fakeLikeRepo) ListPostIDsByUser(_ context.Context, userID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for key := range f.rows {
		if key[0] == userID {
			ids = append(ids, key[1])
		}
	}
	return ids, nil
}

func (f *fakeLikeRepo) ListDrift(context.Context) ([]repository.CounterDrift, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drift(), nil
}

func (f *fakeLikeRepo) Reconcile(context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	drifts := f.drift()
	for _, d := range drifts {
		f.counters[d.PostID] = d.Actual
	}
	return int64(len(drifts)), nil
}

func (f *fakeLikeRepo) drift() []repository.CounterDrift {
	actual := map[string]int{}
	for key := range f.rows {
		actual[key[1]]++
	}
	var drifts []repository.CounterDrift
	for postID, counter := range f.counters {
		if counter != actual[postID] {
			drifts = append(drifts, repository.CounterDrift{PostID: postID, Counter: counter, Actual: actual[postID]})
		}
	}
	slices.SortFunc(drifts, func(a, b repository.CounterDrift) int { return cmp.Compare(a.PostID, b.PostID) })
	return drifts
}

var _ repository.LikeRepository = (*fakeLikeRepo)(nil)

// mockRecorder はトグルと修復の記録を保持するmetrics.Recorder。
type mockRecorder struct {
	mu       sync.Mutex
	toggled  map[string]int
	repaired int64
}

func newMockRecorder() *mockRecorder {
	return &mockRecorder{toggled: map[string]int{}}
}

func (m *mockRecorder) RecordLikeToggled(result string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.toggled[result]++
}

func (m *mockRecorder) RecordCountersRepaired(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.repaired += n
}

func (m *mockRecorder) RecordPostCreated()                  {}
func (m *mockRecorder) RecordPostDeleted()                  {}
func (m *mockRecorder) RecordCommentCreated()               {}
func (m *mockRecorder) RecordHTTPStatus(int)                {}
func (m *mockRecorder) RecordRequestDuration(time.Duration) {}
