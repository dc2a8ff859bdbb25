package content

import (
	"fmt"
	"slices"
	"strings"
	"time"
)

type PageData struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Elements  []Element `json:"elements"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PageUpdate is a shallow partial update of a page.
type PageUpdate struct {
	Title    *string
	Elements *[]Element
}

func DefaultPageTitle(order int) string {
	return fmt.Sprintf("Page %d", order)
}

func newPage(id, title string, order int, elements []Element, now time.Time) PageData {
	if strings.TrimSpace(title) == "" {
		title = DefaultPageTitle(order)
	}
	if elements == nil {
		elements = []Element{}
	}
	return PageData{
		ID:        id,
		Title:     title,
		Elements:  elements,
		Order:     order,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Clone returns a copy that shares no element storage with p.
func (p PageData) Clone() PageData {
	elements := make([]Element, len(p.Elements))
	for i, e := range p.Elements {
		elements[i] = e.clone()
	}
	p.Elements = elements
	return p
}

func (p PageData) indexOf(elementID string) int {
	return slices.IndexFunc(p.Elements, func(e Element) bool {
		return e.ID == elementID
	})
}

func (p PageData) HasElement(elementID string) bool {
	return p.indexOf(elementID) >= 0
}

// duplicateElementID returns the first id that appears twice in elements.
func duplicateElementID(elements []Element) (string, bool) {
	seen := make(map[string]struct{}, len(elements))
	for _, e := range elements {
		if _, ok := seen[e.ID]; ok {
			return e.ID, true
		}
		seen[e.ID] = struct{}{}
	}
	return "", false
}
