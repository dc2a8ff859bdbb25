package module

import (
	"context"
	"encoding/json"
	defError "errors"
	"fmt"
	"sync"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/content"
	"github.com/Quai1921/SmartClass-sub000/internal/editor"
	"github.com/Quai1921/SmartClass-sub000/internal/errors"
	"github.com/Quai1921/SmartClass-sub000/internal/worker"
	"github.com/Quai1921/SmartClass-sub000/redis"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type NavigationAction string

const (
	NavigateSwitch NavigationAction = "switch"
	NavigateNext   NavigationAction = "next"
	NavigatePrev   NavigationAction = "prev"
)

type Service interface {
	OpenSession(ctx context.Context, moduleID, courseID string) (*editor.State, error)
	GetSession(ctx context.Context, moduleID string) (*editor.State, error)
	CloseSession(ctx context.Context, moduleID string) error
	ClearError(ctx context.Context, moduleID string) (*editor.State, error)
	CreatePage(ctx context.Context, moduleID, title string) (*PageResult, error)
	UpdatePage(ctx context.Context, moduleID, pageID string, update content.PageUpdate) (*editor.State, error)
	DeletePage(ctx context.Context, moduleID, pageID string) (*editor.State, error)
	ReorderPages(ctx context.Context, moduleID string, pageIDs []string) (*editor.State, error)
	Navigate(ctx context.Context, moduleID string, action NavigationAction, pageID string) (*NavigationResult, error)
	AddElement(ctx context.Context, moduleID, pageID string, element content.Element) (*editor.State, error)
	CreateElement(ctx context.Context, moduleID, pageID string, props content.Properties) (*ElementResult, error)
	UpdateElement(ctx context.Context, moduleID, pageID, elementID string, update content.ElementUpdate) (*editor.State, error)
	RemoveElement(ctx context.Context, moduleID, pageID, elementID string) (*editor.State, error)
	MoveElement(ctx context.Context, moduleID, elementID, fromPageID, toPageID string) (*editor.State, error)
	Save(ctx context.Context, moduleID string, userID uint64) (*editor.State, error)
	ListRevisions(ctx context.Context, moduleID string, page, pageSize int) (*PaginatedRevisions, error)
	Migrate(ctx context.Context, moduleID, courseID string, raw []byte) content.ModuleContentV3
}

type PageResult struct {
	PageID string `json:"pageId"`
	editor.State
}

type ElementResult struct {
	Element content.Element `json:"element"`
	editor.State
}

type NavigationResult struct {
	Moved bool `json:"moved"`
	editor.State
}

type PaginatedRevisions struct {
	Data []RevisionSummary `json:"data"`
	Meta RevisionsMeta     `json:"meta"`
}

// one open session per module, edits on it are serialised by mu
type sessionEntry struct {
	mu      sync.Mutex
	session *editor.Session
	closed  bool
}

type DefaultService struct {
	repository Repository
	cache      *redis.Cache
	pool       *worker.WorkerPool
	migrator   *content.Migrator
	cacheTTL   time.Duration
	log        zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*sessionEntry
}

func NewService(
	repository Repository,
	cache *redis.Cache,
	pool *worker.WorkerPool,
	migrator *content.Migrator,
	cacheTTL time.Duration,
	log zerolog.Logger,
) Service {
	return &DefaultService{
		repository: repository,
		cache:      cache,
		pool:       pool,
		migrator:   migrator,
		cacheTTL:   cacheTTL,
		log:        log,
		sessions:   make(map[string]*sessionEntry),
	}
}

func contentKey(moduleID string) string {
	return fmt.Sprintf("module:%s:content", moduleID)
}

func revisionsVersionKey(moduleID string) string {
	return fmt.Sprintf("module:%s:revisions:version", moduleID)
}

func sessionNotFound(moduleID string) error {
	return errors.NotFound(fmt.Sprintf("Module %s has no open editing session", moduleID), nil)
}

// OpenSession loads the module's content and starts editing it. An already open
// session is returned as is.
func (s *DefaultService) OpenSession(ctx context.Context, moduleID, courseID string) (*editor.State, error) {
	s.mu.Lock()
	_, open := s.sessions[moduleID]
	s.mu.Unlock()

	if !open {
		doc, err := s.load(ctx, moduleID, courseID)
		if err != nil {
			return nil, err
		}

		s.mu.Lock()
		if _, ok := s.sessions[moduleID]; !ok {
			s.sessions[moduleID] = &sessionEntry{session: editor.NewSession(doc, s.log)}
			s.log.Info().Str("module_id", moduleID).Int("pages", doc.Content.TotalPages).Msg("editing session opened")
		}
		s.mu.Unlock()
	}

	return s.withSession(moduleID, func(*editor.Session) error { return nil })
}

// load reads the saved content from the cache, then the database, and brings it
// to the current schema. A module that was never saved starts empty.
func (s *DefaultService) load(ctx context.Context, moduleID, courseID string) (content.ModuleContentV3, error) {
	var raw json.RawMessage
	found, _ := s.cache.Get(ctx, contentKey(moduleID), &raw)
	if !found {
		row, err := s.repository.FindByModuleID(ctx, moduleID)
		switch {
		case err == nil:
			raw = json.RawMessage(row.Content)
			_ = s.cache.Set(ctx, contentKey(moduleID), raw, s.cacheTTL)
		case defError.Is(err, gorm.ErrRecordNotFound):
			raw = nil
		default:
			return content.ModuleContentV3{}, errors.Internal(err)
		}
	}
	return s.migrator.Migrate(raw, moduleID, courseID), nil
}

func (s *DefaultService) withSession(moduleID string, fn func(*editor.Session) error) (*editor.State, error) {
	s.mu.Lock()
	entry, ok := s.sessions[moduleID]
	s.mu.Unlock()
	if !ok {
		return nil, sessionNotFound(moduleID)
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.closed {
		return nil, sessionNotFound(moduleID)
	}

	if err := fn(entry.session); err != nil {
		return nil, errors.FromDomain(err)
	}
	state := entry.session.State()
	return &state, nil
}

func (s *DefaultService) GetSession(ctx context.Context, moduleID string) (*editor.State, error) {
	return s.withSession(moduleID, func(*editor.Session) error { return nil })
}

// CloseSession drops the session, unsaved changes included.
func (s *DefaultService) CloseSession(ctx context.Context, moduleID string) error {
	s.mu.Lock()
	entry, ok := s.sessions[moduleID]
	delete(s.sessions, moduleID)
	s.mu.Unlock()
	if !ok {
		return sessionNotFound(moduleID)
	}

	entry.mu.Lock()
	entry.closed = true
	if entry.session.HasUnsavedChanges() {
		s.log.Warn().Str("module_id", moduleID).Msg("editing session closed with unsaved changes")
	}
	entry.mu.Unlock()
	return nil
}

func (s *DefaultService) ClearError(ctx context.Context, moduleID string) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		session.ClearError()
		return nil
	})
}

func (s *DefaultService) CreatePage(ctx context.Context, moduleID, title string) (*PageResult, error) {
	var pageID string
	state, err := s.withSession(moduleID, func(session *editor.Session) error {
		pageID = session.CreatePage(title)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &PageResult{PageID: pageID, State: *state}, nil
}

func (s *DefaultService) UpdatePage(ctx context.Context, moduleID, pageID string, update content.PageUpdate) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		return session.UpdatePage(pageID, update)
	})
}

func (s *DefaultService) DeletePage(ctx context.Context, moduleID, pageID string) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		return session.DeletePage(pageID)
	})
}

func (s *DefaultService) ReorderPages(ctx context.Context, moduleID string, pageIDs []string) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		return session.ReorderPages(pageIDs)
	})
}

func (s *DefaultService) Navigate(ctx context.Context, moduleID string, action NavigationAction, pageID string) (*NavigationResult, error) {
	var moved bool
	state, err := s.withSession(moduleID, func(session *editor.Session) error {
		switch action {
		case NavigateSwitch:
			if err := session.SwitchToPage(pageID); err != nil {
				return err
			}
			moved = true
		case NavigateNext:
			moved = session.NextPage()
		case NavigatePrev:
			moved = session.PrevPage()
		default:
			return errors.BadRequest(fmt.Sprintf("Unknown navigation action %q", action), nil)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &NavigationResult{Moved: moved, State: *state}, nil
}

func (s *DefaultService) AddElement(ctx context.Context, moduleID, pageID string, element content.Element) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		return session.AddElementToPage(pageID, element)
	})
}

func (s *DefaultService) CreateElement(ctx context.Context, moduleID, pageID string, props content.Properties) (*ElementResult, error) {
	var element content.Element
	state, err := s.withSession(moduleID, func(session *editor.Session) error {
		var err error
		element, err = session.CreateElement(pageID, props)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &ElementResult{Element: element, State: *state}, nil
}

func (s *DefaultService) UpdateElement(ctx context.Context, moduleID, pageID, elementID string, update content.ElementUpdate) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		return session.UpdateElementInPage(pageID, elementID, update)
	})
}

func (s *DefaultService) RemoveElement(ctx context.Context, moduleID, pageID, elementID string) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		return session.RemoveElementFromPage(pageID, elementID)
	})
}

func (s *DefaultService) MoveElement(ctx context.Context, moduleID, elementID, fromPageID, toPageID string) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		return session.MoveElementBetweenPages(elementID, fromPageID, toPageID)
	})
}

// Save persists the live content, refreshes the cached copy and queues a
// revision snapshot.
func (s *DefaultService) Save(ctx context.Context, moduleID string, userID uint64) (*editor.State, error) {
	return s.withSession(moduleID, func(session *editor.Session) error {
		serialized, err := session.SerializedContent()
		if err != nil {
			return errors.Internal(err)
		}
		doc := session.Content()

		row := &ModuleContent{
			ModuleID:      moduleID,
			CourseID:      doc.Metadata.CourseID,
			SchemaVersion: doc.Version,
			Content:       datatypes.JSON(serialized),
			TotalPages:    doc.Content.TotalPages,
			TotalElements: doc.Content.Metadata.TotalElements,
			UpdatedBy:     userID,
		}
		if err := s.repository.Upsert(ctx, row); err != nil {
			return errors.Internal(err)
		}
		_ = s.cache.Set(ctx, contentKey(moduleID), json.RawMessage(serialized), s.cacheTTL)

		session.MarkSaved()
		s.enqueueRevision(row, userID)
		return nil
	})
}

func (s *DefaultService) enqueueRevision(row *ModuleContent, userID uint64) {
	revision := &ContentRevision{
		ID:            uuid.NewString(),
		ModuleID:      row.ModuleID,
		Content:       row.Content,
		TotalPages:    row.TotalPages,
		TotalElements: row.TotalElements,
		CreatedBy:     userID,
		CreatedAt:     time.Now().UTC(),
	}

	s.pool.Submit("revision:"+row.ModuleID, func(ctx context.Context) error {
		if err := s.repository.CreateRevision(ctx, revision); err != nil {
			return err
		}
		// invalidate cached revision lists
		s.cache.IncrementVersion(ctx, revisionsVersionKey(row.ModuleID))
		return nil
	})
}

func (s *DefaultService) ListRevisions(ctx context.Context, moduleID string, page, pageSize int) (*PaginatedRevisions, error) {
	v := s.cache.GetVersion(ctx, revisionsVersionKey(moduleID))
	cacheKey := fmt.Sprintf("revisions:m:%s:v:%d:p:%d:ps:%d", moduleID, v, page, pageSize)

	var result PaginatedRevisions
	found, _ := s.cache.Get(ctx, cacheKey, &result)
	if found {
		return &result, nil
	}

	revisions, meta, err := s.repository.ListRevisions(ctx, moduleID, page, pageSize)
	if err != nil {
		return nil, errors.Internal(err)
	}
	result = PaginatedRevisions{Data: revisions, Meta: meta}
	_ = s.cache.Set(ctx, cacheKey, result, s.cacheTTL)

	return &result, nil
}

// Migrate converts raw persisted content without touching any session.
func (s *DefaultService) Migrate(ctx context.Context, moduleID, courseID string, raw []byte) content.ModuleContentV3 {
	return s.migrator.Migrate(raw, moduleID, courseID)
}
