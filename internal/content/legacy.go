package content

import "time"

// LegacyPage is a page of the version 2 format, referencing elements by id.
type LegacyPage struct {
	ID         string   `json:"id"`
	Title      string   `json:"title"`
	ElementIDs []string `json:"elementIds"`
	Order      *int     `json:"order,omitempty"`
}

// LegacyContent is the version 2 format: pages plus one flat element list.
type LegacyContent struct {
	Version  int          `json:"version"`
	Pages    []LegacyPage `json:"pages,omitempty"`
	Elements []Element    `json:"elements"`
}

// FromLegacy wraps a flat element list into a single page document.
func FromLegacy(elements []Element, moduleID, courseID string, now time.Time) ModuleContentV3 {
	doc := NewModuleContent(moduleID, courseID, now)
	pageID := FirstPageID(moduleID)
	page := doc.Content.Pages[pageID]
	page.Elements = uniqueElements(elements)
	doc.Content.Pages[pageID] = page
	doc.Content.refresh(now)
	return doc
}

// ToLegacy flattens a document into the version 2 format, pages in order.
func ToLegacy(doc ModuleContentV3) LegacyContent {
	pages := doc.Content.SortedPages()
	out := LegacyContent{
		Version:  2,
		Pages:    make([]LegacyPage, 0, len(pages)),
		Elements: make([]Element, 0, doc.Content.Metadata.TotalElements),
	}
	for _, p := range pages {
		order := p.Order
		ids := make([]string, 0, len(p.Elements))
		for _, e := range p.Elements {
			ids = append(ids, e.ID)
			out.Elements = append(out.Elements, e.clone())
		}
		out.Pages = append(out.Pages, LegacyPage{
			ID:         p.ID,
			Title:      p.Title,
			ElementIDs: ids,
			Order:      &order,
		})
	}
	return out
}

// uniqueElements drops elements without id and repeated ids, keeping the first.
func uniqueElements(elements []Element) []Element {
	out := make([]Element, 0, len(elements))
	seen := make(map[string]struct{}, len(elements))
	for _, e := range elements {
		if e.ID == "" {
			continue
		}
		if _, ok := seen[e.ID]; ok {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e.clone())
	}
	return out
}
