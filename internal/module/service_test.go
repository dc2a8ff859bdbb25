package module

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/content"
	apiError "github.com/Quai1921/SmartClass-sub000/internal/errors"
	"github.com/Quai1921/SmartClass-sub000/internal/worker"
	"github.com/Quai1921/SmartClass-sub000/redis"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

var t0 = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) FindByModuleID(ctx context.Context, moduleID string) (*ModuleContent, error) {
	args := m.Called(ctx, moduleID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ModuleContent), args.Error(1)
}

func (m *MockRepository) Upsert(ctx context.Context, row *ModuleContent) error {
	args := m.Called(ctx, row)
	return args.Error(0)
}

func (m *MockRepository) CreateRevision(ctx context.Context, revision *ContentRevision) error {
	args := m.Called(ctx, revision)
	return args.Error(0)
}

func (m *MockRepository) ListRevisions(ctx context.Context, moduleID string, page, pageSize int) ([]RevisionSummary, RevisionsMeta, error) {
	args := m.Called(ctx, moduleID, page, pageSize)
	return args.Get(0).([]RevisionSummary), args.Get(1).(RevisionsMeta), args.Error(2)
}

type testEnv struct {
	service *DefaultService
	repo    *MockRepository
	redis   *miniredis.Miniredis
	pool    *worker.WorkerPool
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	repo := new(MockRepository)
	pool := worker.NewWorkerPool(1, 10, time.Second, zerolog.Nop())
	t.Cleanup(pool.Shutdown)

	service := NewService(
		repo,
		redis.NewCache(client, zerolog.Nop()),
		pool,
		content.NewMigrator(zerolog.Nop()),
		time.Hour,
		zerolog.Nop(),
	).(*DefaultService)

	return &testEnv{service: service, repo: repo, redis: mr, pool: pool}
}

func (e *testEnv) open(t *testing.T) {
	t.Helper()
	e.repo.On("FindByModuleID", mock.Anything, "m1").Return(nil, gorm.ErrRecordNotFound).Once()
	_, err := e.service.OpenSession(context.Background(), "m1", "c1")
	require.NoError(t, err)
}

func apiStatus(t *testing.T, err error) int {
	t.Helper()
	var apiErr *apiError.APIError
	require.True(t, errors.As(err, &apiErr), "expected an APIError, got %v", err)
	return apiErr.Status
}

func TestOpenSession_NewModuleStartsEmpty(t *testing.T) {
	env := newTestEnv(t)
	env.repo.On("FindByModuleID", mock.Anything, "m1").Return(nil, gorm.ErrRecordNotFound)

	state, err := env.service.OpenSession(context.Background(), "m1", "c1")

	require.NoError(t, err)
	assert.Equal(t, 1, state.Content.Content.TotalPages)
	assert.Equal(t, "m1-page-1", state.Content.Content.CurrentPageID)
	assert.Equal(t, "c1", state.Content.Metadata.CourseID)
	assert.False(t, state.HasUnsavedChanges)
	env.repo.AssertExpectations(t)
}

func TestOpenSession_MigratesStoredLegacyContent(t *testing.T) {
	env := newTestEnv(t)
	legacy := `[{"id":"e1","type":"text","properties":{"content":"a"}},{"id":"e2","type":"image","properties":{"src":"b.png"}}]`
	env.repo.On("FindByModuleID", mock.Anything, "m1").
		Return(&ModuleContent{ModuleID: "m1", CourseID: "old", Content: []byte(legacy)}, nil).Once()

	state, err := env.service.OpenSession(context.Background(), "m1", "c1")

	require.NoError(t, err)
	page := state.Content.Content.Pages["m1-page-1"]
	require.Len(t, page.Elements, 2)
	assert.Equal(t, "e1", page.Elements[0].ID)
	assert.Equal(t, "c1", state.Content.Metadata.CourseID)

	// the stored content is cached for the next open
	assert.True(t, env.redis.Exists(contentKey("m1")))
}

func TestOpenSession_PrefersCache(t *testing.T) {
	env := newTestEnv(t)
	doc := content.NewModuleContent("m1", "c1", t0)
	doc.Content, _ = doc.Content.CreatePage("Cached", t0)
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	require.NoError(t, env.redis.Set(contentKey("m1"), string(raw)))

	state, err := env.service.OpenSession(context.Background(), "m1", "c1")

	require.NoError(t, err)
	assert.Equal(t, 2, state.Content.Content.TotalPages)
	env.repo.AssertNotCalled(t, "FindByModuleID", mock.Anything, mock.Anything)
}

func TestOpenSession_DatabaseFailure(t *testing.T) {
	env := newTestEnv(t)
	env.repo.On("FindByModuleID", mock.Anything, "m1").Return(nil, errors.New("connection refused"))

	_, err := env.service.OpenSession(context.Background(), "m1", "c1")

	assert.Equal(t, http.StatusInternalServerError, apiStatus(t, err))
	_, err = env.service.GetSession(context.Background(), "m1")
	assert.Equal(t, http.StatusNotFound, apiStatus(t, err))
}

func TestOpenSession_ReusesOpenSession(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	_, err := env.service.CreatePage(context.Background(), "m1", "")
	require.NoError(t, err)

	state, err := env.service.OpenSession(context.Background(), "m1", "c1")

	require.NoError(t, err)
	assert.Equal(t, 2, state.Content.Content.TotalPages)
	assert.True(t, state.HasUnsavedChanges)
	env.repo.AssertNumberOfCalls(t, "FindByModuleID", 1)
}

func TestEditing_FailureKeepsStateAndError(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	ctx := context.Background()

	_, err := env.service.DeletePage(ctx, "m1", "m1-page-1")
	assert.Equal(t, http.StatusUnprocessableEntity, apiStatus(t, err))

	state, err := env.service.GetSession(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "Cannot delete the last page", state.Error)
	assert.Equal(t, 1, state.Content.Content.TotalPages)
	assert.False(t, state.HasUnsavedChanges)

	state, err = env.service.ClearError(ctx, "m1")
	require.NoError(t, err)
	assert.Empty(t, state.Error)
}

func TestEditing_PagesAndElements(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	ctx := context.Background()

	created, err := env.service.CreatePage(ctx, "m1", "Second")
	require.NoError(t, err)
	assert.Equal(t, "1", created.PageID)

	el, err := env.service.CreateElement(ctx, "m1", "m1-page-1", content.TextProperties{Content: "hi"})
	require.NoError(t, err)
	assert.Equal(t, "text-1", el.Element.Name)

	_, err = env.service.AddElement(ctx, "m1", created.PageID, content.Element{ID: "img", Properties: content.ImageProperties{Src: "x.png"}})
	require.NoError(t, err)

	state, err := env.service.MoveElement(ctx, "m1", el.Element.ID, "m1-page-1", created.PageID)
	require.NoError(t, err)
	assert.Len(t, state.Content.Content.Pages[created.PageID].Elements, 2)
	assert.Equal(t, 2, state.Content.Content.Metadata.TotalElements)

	name := "banner"
	_, err = env.service.UpdateElement(ctx, "m1", created.PageID, "img", content.ElementUpdate{Name: &name})
	require.NoError(t, err)

	state, err = env.service.RemoveElement(ctx, "m1", created.PageID, el.Element.ID)
	require.NoError(t, err)
	require.Len(t, state.Content.Content.Pages[created.PageID].Elements, 1)
	assert.Equal(t, "banner", state.Content.Content.Pages[created.PageID].Elements[0].Name)

	state, err = env.service.ReorderPages(ctx, "m1", []string{created.PageID, "m1-page-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, state.Content.Content.Pages[created.PageID].Order)

	title := "First"
	state, err = env.service.UpdatePage(ctx, "m1", created.PageID, content.PageUpdate{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "First", state.Content.Content.Pages[created.PageID].Title)

	state, err = env.service.DeletePage(ctx, "m1", "m1-page-1")
	require.NoError(t, err)
	assert.Equal(t, created.PageID, state.Content.Content.CurrentPageID)
}

func TestService_Navigate(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	ctx := context.Background()
	created, err := env.service.CreatePage(ctx, "m1", "")
	require.NoError(t, err)

	result, err := env.service.Navigate(ctx, "m1", NavigateNext, "")
	require.NoError(t, err)
	assert.True(t, result.Moved)
	assert.Equal(t, created.PageID, result.CurrentPage.ID)

	result, err = env.service.Navigate(ctx, "m1", NavigateNext, "")
	require.NoError(t, err)
	assert.False(t, result.Moved)

	result, err = env.service.Navigate(ctx, "m1", NavigateSwitch, "m1-page-1")
	require.NoError(t, err)
	assert.Equal(t, "m1-page-1", result.CurrentPage.ID)

	_, err = env.service.Navigate(ctx, "m1", NavigateSwitch, "zzz")
	assert.Equal(t, http.StatusNotFound, apiStatus(t, err))

	_, err = env.service.Navigate(ctx, "m1", NavigationAction("jump"), "")
	assert.Equal(t, http.StatusBadRequest, apiStatus(t, err))
}

func TestSave_PersistsCachesAndSnapshots(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	ctx := context.Background()
	_, err := env.service.CreatePage(ctx, "m1", "")
	require.NoError(t, err)

	env.repo.On("Upsert", mock.Anything, mock.MatchedBy(func(row *ModuleContent) bool {
		return row.ModuleID == "m1" && row.CourseID == "c1" && row.TotalPages == 2 &&
			row.SchemaVersion == content.SchemaVersion && row.UpdatedBy == 7
	})).Return(nil)
	env.repo.On("CreateRevision", mock.Anything, mock.MatchedBy(func(rev *ContentRevision) bool {
		return rev.ModuleID == "m1" && rev.ID != "" && rev.CreatedBy == 7
	})).Return(nil)

	state, err := env.service.Save(ctx, "m1", 7)

	require.NoError(t, err)
	assert.False(t, state.HasUnsavedChanges)

	cached, err := env.redis.Get(contentKey("m1"))
	require.NoError(t, err)
	var doc content.ModuleContentV3
	require.NoError(t, json.Unmarshal([]byte(cached), &doc))
	assert.Equal(t, state.Content, doc)

	env.pool.Shutdown()
	env.repo.AssertExpectations(t)
	version, err := env.redis.Get(revisionsVersionKey("m1"))
	require.NoError(t, err)
	assert.Equal(t, "1", version)
}

func TestSave_FailureKeepsUnsavedChanges(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	ctx := context.Background()
	_, err := env.service.CreatePage(ctx, "m1", "")
	require.NoError(t, err)
	env.repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	_, err = env.service.Save(ctx, "m1", 7)

	assert.Equal(t, http.StatusInternalServerError, apiStatus(t, err))
	state, err := env.service.GetSession(ctx, "m1")
	require.NoError(t, err)
	assert.True(t, state.HasUnsavedChanges)
	assert.False(t, env.redis.Exists(contentKey("m1")))
	env.repo.AssertNotCalled(t, "CreateRevision", mock.Anything, mock.Anything)
}

func TestService_CloseSession(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	ctx := context.Background()

	require.NoError(t, env.service.CloseSession(ctx, "m1"))

	_, err := env.service.CreatePage(ctx, "m1", "")
	assert.Equal(t, http.StatusNotFound, apiStatus(t, err))
	assert.Equal(t, http.StatusNotFound, apiStatus(t, env.service.CloseSession(ctx, "m1")))
}

func TestListRevisions_CachedByVersion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	first := []RevisionSummary{{ID: "r1", TotalPages: 1, CreatedAt: t0}}
	meta := RevisionsMeta{Total: 1, CurrentPage: 1, PerPage: 10, TotalPage: 1}
	env.repo.On("ListRevisions", mock.Anything, "m1", 1, 10).Return(first, meta, nil).Once()

	result, err := env.service.ListRevisions(ctx, "m1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, first, result.Data)

	result, err = env.service.ListRevisions(ctx, "m1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, first, result.Data)
	env.repo.AssertNumberOfCalls(t, "ListRevisions", 1)

	// a new revision bumps the version and misses the cache
	env.service.cache.IncrementVersion(ctx, revisionsVersionKey("m1"))
	second := []RevisionSummary{{ID: "r2", CreatedAt: t0}, {ID: "r1", CreatedAt: t0}}
	env.repo.On("ListRevisions", mock.Anything, "m1", 1, 10).Return(second, meta, nil).Once()

	result, err = env.service.ListRevisions(ctx, "m1", 1, 10)
	require.NoError(t, err)
	assert.Equal(t, second, result.Data)
}

func TestMigrate_DoesNotOpenSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	doc := env.service.Migrate(ctx, "m9", "c9", []byte(`{"version":2,"elements":[{"id":"e1","type":"text"}]}`))

	assert.Equal(t, content.SchemaVersion, doc.Version)
	assert.Equal(t, "m9", doc.Metadata.ModuleID)
	assert.Len(t, doc.Content.Pages["m9-page-1"].Elements, 1)
	_, err := env.service.GetSession(ctx, "m9")
	assert.Equal(t, http.StatusNotFound, apiStatus(t, err))
}

func TestSessions_ConcurrentEdits(t *testing.T) {
	env := newTestEnv(t)
	env.open(t)
	ctx := context.Background()

	done := make(chan struct{})
	for i := 0; i < 8; i++ {
		go func() {
			defer func() { done <- struct{}{} }()
			_, _ = env.service.CreateElement(ctx, "m1", "m1-page-1", content.TextProperties{Content: "x"})
		}()
	}
	for i := 0; i < 8; i++ {
		<-done
	}

	state, err := env.service.GetSession(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, 8, state.Content.Content.Metadata.TotalElements)
	require.NoError(t, state.Content.Content.Validate())
}
