package editor

import (
	"encoding/json"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/content"
	"github.com/rs/zerolog"
)

// Session is the editing state of one module: the live document, the last
// failure message and whether there are edits that have not been persisted.
//
// A Session is not safe for concurrent use; callers serialise access.
type Session struct {
	doc   content.ModuleContentV3
	names *content.NameAllocator
	err   error
	dirty bool
	now   func() time.Time
	log   zerolog.Logger
}

// State is the snapshot handed to API clients.
type State struct {
	Content           content.ModuleContentV3 `json:"content"`
	CurrentPage       *content.PageData       `json:"currentPage"`
	Error             string                  `json:"error,omitempty"`
	HasUnsavedChanges bool                    `json:"hasUnsavedChanges"`
}

func NewSession(doc content.ModuleContentV3, log zerolog.Logger) *Session {
	names := content.NewNameAllocator()
	names.ObserveContent(doc.Content)
	return &Session{
		doc:   doc.Clone(),
		names: names,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log.With().Str("module_id", doc.Metadata.ModuleID).Logger(),
	}
}

// mutate runs an edit against the live document. On failure the document is
// left as it was and the error is kept until the next call.
func (s *Session) mutate(op string, apply func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error)) error {
	s.err = nil
	now := s.now()
	next, err := apply(s.doc.Content, now)
	if err != nil {
		s.err = err
		s.log.Info().Err(err).Str("op", op).Msg("edit rejected")
		return err
	}
	s.doc.Content = next
	s.doc.Metadata.UpdatedAt = now
	s.dirty = true
	return nil
}

func (s *Session) navigate(apply func(c content.PaginatedContent) (content.PaginatedContent, error)) error {
	s.err = nil
	next, err := apply(s.doc.Content)
	if err != nil {
		s.err = err
		return err
	}
	s.doc.Content = next
	return nil
}

func (s *Session) CreatePage(title string) string {
	var id string
	_ = s.mutate("create_page", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		var next content.PaginatedContent
		next, id = c.CreatePage(title, now)
		return next, nil
	})
	return id
}

func (s *Session) DeletePage(pageID string) error {
	return s.mutate("delete_page", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		return c.DeletePage(pageID, now)
	})
}

func (s *Session) UpdatePage(pageID string, update content.PageUpdate) error {
	return s.mutate("update_page", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		return c.UpdatePage(pageID, update, now)
	})
}

func (s *Session) ReorderPages(pageIDs []string) error {
	return s.mutate("reorder_pages", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		return c.ReorderPages(pageIDs, now)
	})
}

func (s *Session) SwitchToPage(pageID string) error {
	return s.navigate(func(c content.PaginatedContent) (content.PaginatedContent, error) {
		return c.SwitchToPage(pageID)
	})
}

// NextPage moves to the following page and reports whether it did.
func (s *Session) NextPage() bool {
	s.err = nil
	next, ok := s.doc.Content.NextPage()
	s.doc.Content = next
	return ok
}

// PrevPage moves to the preceding page and reports whether it did.
func (s *Session) PrevPage() bool {
	s.err = nil
	next, ok := s.doc.Content.PrevPage()
	s.doc.Content = next
	return ok
}

func (s *Session) AddElementToPage(pageID string, element content.Element) error {
	err := s.mutate("add_element", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		return c.AddElementToPage(pageID, element, now)
	})
	if err == nil {
		s.names.Observe(element)
	}
	return err
}

// CreateElement builds a new element of the properties' type with a fresh id and
// name and appends it to the page.
func (s *Session) CreateElement(pageID string, props content.Properties) (content.Element, error) {
	element := content.NewElement(s.names, props)
	if err := s.AddElementToPage(pageID, element); err != nil {
		return content.Element{}, err
	}
	return element, nil
}

func (s *Session) RemoveElementFromPage(pageID, elementID string) error {
	return s.mutate("remove_element", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		return c.RemoveElementFromPage(pageID, elementID, now)
	})
}

func (s *Session) UpdateElementInPage(pageID, elementID string, update content.ElementUpdate) error {
	return s.mutate("update_element", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		return c.UpdateElementInPage(pageID, elementID, update, now)
	})
}

func (s *Session) MoveElementBetweenPages(elementID, fromPageID, toPageID string) error {
	return s.mutate("move_element", func(c content.PaginatedContent, now time.Time) (content.PaginatedContent, error) {
		return c.MoveElementBetweenPages(elementID, fromPageID, toPageID, now)
	})
}

// Err returns the failure of the last call, if any.
func (s *Session) Err() error {
	return s.err
}

func (s *Session) ErrorMessage() string {
	if s.err == nil {
		return ""
	}
	return s.err.Error()
}

func (s *Session) ClearError() {
	s.err = nil
}

func (s *Session) HasUnsavedChanges() bool {
	return s.dirty
}

// MarkSaved is called once the serialized content has been persisted.
func (s *Session) MarkSaved() {
	s.dirty = false
}

// Content returns a copy of the live document.
func (s *Session) Content() content.ModuleContentV3 {
	return s.doc.Clone()
}

func (s *Session) CurrentPage() (content.PageData, bool) {
	p, ok := s.doc.Content.CurrentPage()
	if !ok {
		return p, false
	}
	return p.Clone(), true
}

// Pages returns the pages in display order.
func (s *Session) Pages() []content.PageData {
	pages := s.doc.Content.SortedPages()
	for i, p := range pages {
		pages[i] = p.Clone()
	}
	return pages
}

// SerializedContent encodes the live document as a ModuleContentV3 envelope.
func (s *Session) SerializedContent() ([]byte, error) {
	return json.Marshal(s.doc)
}

func (s *Session) State() State {
	state := State{
		Content:           s.Content(),
		Error:             s.ErrorMessage(),
		HasUnsavedChanges: s.dirty,
	}
	if page, ok := s.CurrentPage(); ok {
		state.CurrentPage = &page
	}
	return state
}
