package editor

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/Quai1921/SmartClass-sub000/internal/content"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s := NewSession(content.NewModuleContent("m1", "c1", t0), zerolog.Nop())
	clock := t0
	s.now = func() time.Time {
		clock = clock.Add(time.Second)
		return clock
	}
	return s
}

func TestSession_CreatePageMarksDirty(t *testing.T) {
	s := newTestSession(t)
	assert.False(t, s.HasUnsavedChanges())

	id := s.CreatePage("Intro")

	assert.Equal(t, "1", id)
	assert.True(t, s.HasUnsavedChanges())
	assert.NoError(t, s.Err())
	pages := s.Pages()
	require.Len(t, pages, 2)
	assert.Equal(t, "m1-page-1", pages[0].ID)
	assert.Equal(t, "Intro", pages[1].Title)
	assert.True(t, s.Content().Metadata.UpdatedAt.After(t0))
}

func TestSession_FailureIsStickyAndLeavesStateUnchanged(t *testing.T) {
	s := newTestSession(t)
	before := s.Content()

	err := s.DeletePage("m1-page-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, content.ErrInvariantViolation))
	assert.Equal(t, "Cannot delete the last page", s.ErrorMessage())
	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, before, s.Content())

	// the message survives reads until the next call
	_ = s.Pages()
	assert.Equal(t, "Cannot delete the last page", s.ErrorMessage())

	s.CreatePage("")
	assert.NoError(t, s.Err())
}

func TestSession_ClearError(t *testing.T) {
	s := newTestSession(t)
	require.Error(t, s.SwitchToPage("missing"))
	assert.Equal(t, "Page missing does not exist", s.ErrorMessage())

	s.ClearError()

	assert.Empty(t, s.ErrorMessage())
}

func TestSession_NavigationDoesNotMarkDirty(t *testing.T) {
	s := newTestSession(t)
	second := s.CreatePage("")
	s.MarkSaved()

	require.NoError(t, s.SwitchToPage(second))
	assert.False(t, s.HasUnsavedChanges())

	assert.False(t, s.NextPage())
	assert.True(t, s.PrevPage())
	assert.False(t, s.PrevPage())
	assert.True(t, s.NextPage())

	page, ok := s.CurrentPage()
	require.True(t, ok)
	assert.Equal(t, second, page.ID)
	assert.False(t, s.HasUnsavedChanges())
}

func TestSession_NavigationUsesErrorSlot(t *testing.T) {
	s := newTestSession(t)
	require.Error(t, s.DeletePage("m1-page-1"))

	assert.False(t, s.NextPage())

	assert.NoError(t, s.Err())
}

func TestSession_MarkSavedKeepsContent(t *testing.T) {
	s := newTestSession(t)
	s.CreatePage("")
	before := s.Content()

	s.MarkSaved()

	assert.False(t, s.HasUnsavedChanges())
	assert.Equal(t, before, s.Content())
}

func TestSession_CreateElementAllocatesNames(t *testing.T) {
	s := newTestSession(t)
	require.NoError(t, s.AddElementToPage("m1-page-1", content.Element{
		ID:         "e1",
		Name:       "text-4",
		Properties: content.TextProperties{Content: "hi"},
	}))

	el, err := s.CreateElement("m1-page-1", content.TextProperties{Content: "next"})

	require.NoError(t, err)
	assert.NotEmpty(t, el.ID)
	assert.Equal(t, "text-5", el.Name)
	page, _ := s.CurrentPage()
	require.Len(t, page.Elements, 2)
	assert.Equal(t, el.ID, page.Elements[1].ID)
}

func TestSession_CreateElementOnMissingPage(t *testing.T) {
	s := newTestSession(t)

	_, err := s.CreateElement("nope", content.ImageProperties{Src: "a.png"})

	assert.True(t, errors.Is(err, content.ErrNotFound))
	assert.Equal(t, 0, s.Content().Content.Metadata.TotalElements)
	assert.False(t, s.HasUnsavedChanges())
}

func TestSession_ElementLifecycle(t *testing.T) {
	s := newTestSession(t)
	second := s.CreatePage("")
	el, err := s.CreateElement("m1-page-1", content.TextProperties{Content: "a"})
	require.NoError(t, err)

	name := "headline"
	require.NoError(t, s.UpdateElementInPage("m1-page-1", el.ID, content.ElementUpdate{Name: &name}))
	require.NoError(t, s.MoveElementBetweenPages(el.ID, "m1-page-1", second))

	doc := s.Content().Content
	assert.Empty(t, doc.Pages["m1-page-1"].Elements)
	require.Len(t, doc.Pages[second].Elements, 1)
	assert.Equal(t, "headline", doc.Pages[second].Elements[0].Name)
	assert.Equal(t, 1, doc.Metadata.TotalElements)

	err = s.MoveElementBetweenPages(el.ID, "m1-page-1", second)
	assert.True(t, errors.Is(err, content.ErrNotFound))
	assert.Equal(t, doc, s.Content().Content)

	require.NoError(t, s.RemoveElementFromPage(second, el.ID))
	assert.Equal(t, 0, s.Content().Content.Metadata.TotalElements)
}

func TestSession_ReorderAndUpdatePage(t *testing.T) {
	s := newTestSession(t)
	second := s.CreatePage("")

	require.NoError(t, s.ReorderPages([]string{second, "m1-page-1"}))
	title := "Welcome"
	require.NoError(t, s.UpdatePage(second, content.PageUpdate{Title: &title}))

	pages := s.Pages()
	assert.Equal(t, second, pages[0].ID)
	assert.Equal(t, "Welcome", pages[0].Title)

	assert.Error(t, s.ReorderPages([]string{second}))
	assert.Equal(t, second, s.Pages()[0].ID)
}

func TestSession_SerializedContentReflectsLiveState(t *testing.T) {
	s := newTestSession(t)
	_, err := s.CreateElement("m1-page-1", content.TextProperties{Content: "live"})
	require.NoError(t, err)

	raw, err := s.SerializedContent()
	require.NoError(t, err)

	var doc content.ModuleContentV3
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, content.SchemaVersion, doc.Version)
	assert.Equal(t, "m1", doc.Metadata.ModuleID)
	assert.Equal(t, s.Content(), doc)
}

func TestSession_State(t *testing.T) {
	s := newTestSession(t)
	_ = s.SwitchToPage("x")

	state := s.State()

	assert.Equal(t, "Page x does not exist", state.Error)
	require.NotNil(t, state.CurrentPage)
	assert.Equal(t, "m1-page-1", state.CurrentPage.ID)
	assert.False(t, state.HasUnsavedChanges)
}

func TestSession_ReadAccessorsReturnCopies(t *testing.T) {
	s := newTestSession(t)
	_, err := s.CreateElement("m1-page-1", content.TextProperties{Content: "original"})
	require.NoError(t, err)
	s.MarkSaved()
	before := s.Content()

	page, ok := s.CurrentPage()
	require.True(t, ok)
	page.Elements[0].Properties = content.TextProperties{Content: "tampered"}
	page.Elements[0].Name = "tampered"

	pages := s.Pages()
	pages[0].Elements[0].ID = "tampered"

	assert.Equal(t, before, s.Content())
	assert.False(t, s.HasUnsavedChanges())
	again, _ := s.CurrentPage()
	assert.Equal(t, content.TextProperties{Content: "original"}, again.Elements[0].Properties)
}
