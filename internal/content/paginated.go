package content

import (
	"cmp"
	"slices"
	"strconv"
	"time"
)

const ContentVersion = "3.0.0"

type Metadata struct {
	Version       string    `json:"version"`
	LastModified  time.Time `json:"lastModified"`
	TotalElements int       `json:"totalElements"`
}

// PaginatedContent is the document: pages keyed by their own id, the page being
// edited and derived counters.
//
// All operations take the receiver by value and return a new document. A failed
// operation returns the receiver untouched together with an *OpError.
type PaginatedContent struct {
	Pages         map[string]PageData `json:"pages"`
	CurrentPageID string              `json:"currentPageId"`
	TotalPages    int                 `json:"totalPages"`
	Metadata      Metadata            `json:"metadata"`
}

// NewPaginatedContent returns a document with one empty page.
func NewPaginatedContent(firstPageID string, now time.Time) PaginatedContent {
	c := PaginatedContent{
		Pages:         map[string]PageData{firstPageID: newPage(firstPageID, "", 1, nil, now)},
		CurrentPageID: firstPageID,
		Metadata:      Metadata{Version: ContentVersion},
	}
	c.refresh(now)
	return c
}

func (c PaginatedContent) Clone() PaginatedContent {
	pages := make(map[string]PageData, len(c.Pages))
	for id, p := range c.Pages {
		pages[id] = p.Clone()
	}
	c.Pages = pages
	return c
}

// refresh recomputes the derived fields after a mutation.
func (c *PaginatedContent) refresh(now time.Time) {
	total := 0
	for _, p := range c.Pages {
		total += len(p.Elements)
	}
	c.TotalPages = len(c.Pages)
	c.Metadata.TotalElements = total
	c.Metadata.LastModified = now
	if c.Metadata.Version == "" {
		c.Metadata.Version = ContentVersion
	}
}

// SortedPages returns the pages by ascending order, ties broken by id.
func (c PaginatedContent) SortedPages() []PageData {
	pages := make([]PageData, 0, len(c.Pages))
	for _, p := range c.Pages {
		pages = append(pages, p)
	}
	slices.SortFunc(pages, func(a, b PageData) int {
		if n := cmp.Compare(a.Order, b.Order); n != 0 {
			return n
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return pages
}

func (c PaginatedContent) CurrentPage() (PageData, bool) {
	p, ok := c.Pages[c.CurrentPageID]
	return p, ok
}

func (c PaginatedContent) Page(pageID string) (PageData, bool) {
	p, ok := c.Pages[pageID]
	return p, ok
}

// findElement returns the id of the page holding elementID.
func (c PaginatedContent) findElement(elementID string) (string, bool) {
	for id, p := range c.Pages {
		if p.HasElement(elementID) {
			return id, true
		}
	}
	return "", false
}

// nextPageID is one more than the largest numeric page id, or "1".
func nextPageID(pages map[string]PageData) string {
	highest := 0
	for id := range pages {
		n, err := strconv.Atoi(id)
		if err == nil && n > highest {
			highest = n
		}
	}
	return strconv.Itoa(highest + 1)
}

func (c PaginatedContent) CreatePage(title string, now time.Time) (PaginatedContent, string) {
	next := c.Clone()
	id := nextPageID(next.Pages)
	next.Pages[id] = newPage(id, title, len(next.Pages)+1, nil, now)
	if _, ok := next.Pages[next.CurrentPageID]; !ok {
		next.CurrentPageID = id
	}
	next.refresh(now)
	return next, id
}

func (c PaginatedContent) DeletePage(pageID string, now time.Time) (PaginatedContent, error) {
	if len(c.Pages) <= 1 {
		return c, violation("Cannot delete the last page")
	}
	if _, ok := c.Pages[pageID]; !ok {
		return c, pageNotFound(pageID)
	}

	next := c.Clone()
	delete(next.Pages, pageID)
	remaining := next.SortedPages()
	for i, p := range remaining {
		p.Order = i + 1
		next.Pages[p.ID] = p
	}
	if next.CurrentPageID == pageID {
		next.CurrentPageID = remaining[0].ID
	}
	next.refresh(now)
	return next, nil
}

func (c PaginatedContent) UpdatePage(pageID string, update PageUpdate, now time.Time) (PaginatedContent, error) {
	page, ok := c.Pages[pageID]
	if !ok {
		return c, pageNotFound(pageID)
	}
	if update.Title != nil && *update.Title == "" {
		return c, violation("Page title cannot be empty")
	}
	if update.Elements != nil {
		if err := c.checkElementsFit(pageID, *update.Elements); err != nil {
			return c, err
		}
	}

	next := c.Clone()
	page = next.Pages[pageID]
	if update.Title != nil {
		page.Title = *update.Title
	}
	if update.Elements != nil {
		page.Elements = PageData{Elements: *update.Elements}.Clone().Elements
	}
	page.UpdatedAt = now
	next.Pages[pageID] = page
	next.refresh(now)
	return next, nil
}

// checkElementsFit verifies elements may become the whole element list of pageID.
func (c PaginatedContent) checkElementsFit(pageID string, elements []Element) error {
	if id, dup := duplicateElementID(elements); dup {
		return violation("Element %s appears more than once on page %s", id, pageID)
	}
	for _, e := range elements {
		if e.ID == "" {
			return violation("Element id is required")
		}
		if owner, ok := c.findElement(e.ID); ok && owner != pageID {
			return violation("Element %s already exists on page %s", e.ID, owner)
		}
	}
	return nil
}

// ReorderPages assigns order index+1 to each listed page. The list must name
// every page of the document exactly once.
func (c PaginatedContent) ReorderPages(pageIDs []string, now time.Time) (PaginatedContent, error) {
	if len(pageIDs) != len(c.Pages) {
		return c, violation("Page order lists %d pages but the document has %d", len(pageIDs), len(c.Pages))
	}
	seen := make(map[string]struct{}, len(pageIDs))
	for _, id := range pageIDs {
		if _, ok := c.Pages[id]; !ok {
			return c, pageNotFound(id)
		}
		if _, ok := seen[id]; ok {
			return c, violation("Page %s is listed more than once", id)
		}
		seen[id] = struct{}{}
	}

	next := c.Clone()
	for i, id := range pageIDs {
		p := next.Pages[id]
		p.Order = i + 1
		next.Pages[id] = p
	}
	next.refresh(now)
	return next, nil
}

func (c PaginatedContent) SwitchToPage(pageID string) (PaginatedContent, error) {
	if _, ok := c.Pages[pageID]; !ok {
		return c, pageNotFound(pageID)
	}
	next := c.Clone()
	next.CurrentPageID = pageID
	return next, nil
}

// NextPage moves to the page after the current one. It reports false on the last page.
func (c PaginatedContent) NextPage() (PaginatedContent, bool) {
	return c.step(1)
}

// PrevPage moves to the page before the current one. It reports false on the first page.
func (c PaginatedContent) PrevPage() (PaginatedContent, bool) {
	return c.step(-1)
}

func (c PaginatedContent) step(delta int) (PaginatedContent, bool) {
	pages := c.SortedPages()
	i := slices.IndexFunc(pages, func(p PageData) bool {
		return p.ID == c.CurrentPageID
	})
	target := i + delta
	if i < 0 || target < 0 || target >= len(pages) {
		return c, false
	}
	next := c.Clone()
	next.CurrentPageID = pages[target].ID
	return next, true
}

func (c PaginatedContent) AddElementToPage(pageID string, element Element, now time.Time) (PaginatedContent, error) {
	if _, ok := c.Pages[pageID]; !ok {
		return c, pageNotFound(pageID)
	}
	if element.ID == "" {
		return c, violation("Element id is required")
	}
	if owner, ok := c.findElement(element.ID); ok {
		return c, violation("Element %s already exists on page %s", element.ID, owner)
	}

	next := c.Clone()
	page := next.Pages[pageID]
	page.Elements = append(page.Elements, element.clone())
	page.UpdatedAt = now
	next.Pages[pageID] = page
	next.refresh(now)
	return next, nil
}

// RemoveElementFromPage drops the element from the page. Removing an element the
// page does not hold succeeds and changes nothing.
func (c PaginatedContent) RemoveElementFromPage(pageID, elementID string, now time.Time) (PaginatedContent, error) {
	page, ok := c.Pages[pageID]
	if !ok {
		return c, pageNotFound(pageID)
	}
	i := page.indexOf(elementID)
	if i < 0 {
		return c, nil
	}

	next := c.Clone()
	page = next.Pages[pageID]
	page.Elements = slices.Delete(page.Elements, i, i+1)
	page.UpdatedAt = now
	next.Pages[pageID] = page
	next.refresh(now)
	return next, nil
}

// UpdateElementInPage merges update into the element. An unknown element id is a no-op.
func (c PaginatedContent) UpdateElementInPage(pageID, elementID string, update ElementUpdate, now time.Time) (PaginatedContent, error) {
	page, ok := c.Pages[pageID]
	if !ok {
		return c, pageNotFound(pageID)
	}
	i := page.indexOf(elementID)
	if i < 0 {
		return c, nil
	}

	next := c.Clone()
	page = next.Pages[pageID]
	page.Elements[i] = update.apply(page.Elements[i])
	page.UpdatedAt = now
	next.Pages[pageID] = page
	next.refresh(now)
	return next, nil
}

// MoveElementBetweenPages removes the element from one page and appends it to
// another. Moving within one page sends the element to the end.
func (c PaginatedContent) MoveElementBetweenPages(elementID, fromPageID, toPageID string, now time.Time) (PaginatedContent, error) {
	from, ok := c.Pages[fromPageID]
	if !ok {
		return c, pageNotFound(fromPageID)
	}
	if _, ok := c.Pages[toPageID]; !ok {
		return c, pageNotFound(toPageID)
	}
	i := from.indexOf(elementID)
	if i < 0 {
		return c, notFound("Element %s not found in page %s", elementID, fromPageID)
	}

	next := c.Clone()
	from = next.Pages[fromPageID]
	element := from.Elements[i]
	from.Elements = slices.Delete(from.Elements, i, i+1)
	from.UpdatedAt = now
	next.Pages[fromPageID] = from

	to := next.Pages[toPageID]
	to.Elements = append(to.Elements, element)
	to.UpdatedAt = now
	next.Pages[toPageID] = to

	next.refresh(now)
	return next, nil
}

// Validate checks every structural invariant of the document.
func (c PaginatedContent) Validate() error {
	if len(c.Pages) == 0 {
		return violation("Document has no pages")
	}
	if c.TotalPages != len(c.Pages) {
		return violation("Document reports %d pages but holds %d", c.TotalPages, len(c.Pages))
	}
	if _, ok := c.Pages[c.CurrentPageID]; !ok {
		return violation("Current page %s does not exist", c.CurrentPageID)
	}

	orders := make(map[int]struct{}, len(c.Pages))
	elementIDs := make(map[string]string)
	total := 0
	for key, p := range c.Pages {
		if key != p.ID {
			return violation("Page stored under %s has id %s", key, p.ID)
		}
		if p.Title == "" {
			return violation("Page %s has no title", p.ID)
		}
		if p.Order < 1 || p.Order > len(c.Pages) {
			return violation("Page %s has order %d outside 1..%d", p.ID, p.Order, len(c.Pages))
		}
		if _, dup := orders[p.Order]; dup {
			return violation("Order %d is used by more than one page", p.Order)
		}
		orders[p.Order] = struct{}{}
		for _, e := range p.Elements {
			if e.ID == "" {
				return violation("Page %s holds an element without id", p.ID)
			}
			if owner, dup := elementIDs[e.ID]; dup {
				return violation("Element %s is on pages %s and %s", e.ID, owner, p.ID)
			}
			elementIDs[e.ID] = p.ID
		}
		total += len(p.Elements)
	}
	if c.Metadata.TotalElements != total {
		return violation("Document reports %d elements but holds %d", c.Metadata.TotalElements, total)
	}
	return nil
}
