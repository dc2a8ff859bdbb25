package content

import (
	"bytes"
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"
)

// shape is what the migrator can tell about raw content without decoding it fully.
type shape struct {
	array      bool
	hasVersion bool
	version    int
}

type target struct {
	moduleID string
	courseID string
	now      time.Time
}

type migrationStep struct {
	name    string
	matches func(shape) bool
	upgrade func(raw []byte, t target) (ModuleContentV3, error)
}

// Migrator normalises every persisted content shape into ModuleContentV3.
// Steps are tried in order; input no step accepts becomes an empty document.
type Migrator struct {
	steps []migrationStep
	now   func() time.Time
	log   zerolog.Logger
}

func NewMigrator(log zerolog.Logger) *Migrator {
	m := &Migrator{
		now: func() time.Time { return time.Now().UTC() },
		log: log,
	}
	m.steps = []migrationStep{
		{name: "v3", matches: versionIs(3), upgrade: m.upgradeV3},
		{name: "v2", matches: versionIs(2), upgrade: m.upgradeV2},
		{name: "element-array", matches: func(s shape) bool { return s.array }, upgrade: m.upgradeElementArray},
	}
	return m
}

func versionIs(v int) func(shape) bool {
	return func(s shape) bool {
		return s.hasVersion && s.version == v
	}
}

func detectShape(raw []byte) shape {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return shape{}
	}
	switch trimmed[0] {
	case '[':
		return shape{array: true}
	case '{':
		var head struct {
			Version *int `json:"version"`
		}
		if err := json.Unmarshal(trimmed, &head); err != nil || head.Version == nil {
			return shape{}
		}
		return shape{hasVersion: true, version: *head.Version}
	}
	return shape{}
}

// Migrate never fails: anything it cannot read is replaced by an empty document
// and logged. moduleID and courseID always come from the arguments.
func (m *Migrator) Migrate(raw []byte, moduleID, courseID string) ModuleContentV3 {
	t := target{moduleID: moduleID, courseID: courseID, now: m.now()}
	s := detectShape(raw)

	for _, step := range m.steps {
		if !step.matches(s) {
			continue
		}
		doc, err := step.upgrade(raw, t)
		if err == nil {
			err = doc.Content.Validate()
		}
		if err != nil {
			m.log.Warn().Err(err).
				Str("module_id", moduleID).
				Str("step", step.name).
				Msg("content migration degraded to an empty document")
			return NewModuleContent(moduleID, courseID, t.now)
		}
		m.logUntyped(doc.Content, moduleID)
		m.log.Debug().Str("module_id", moduleID).Str("step", step.name).Msg("content migrated")
		return doc
	}

	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		m.log.Warn().Str("module_id", moduleID).Msg("unrecognized content shape, starting from an empty document")
	}
	return NewModuleContent(moduleID, courseID, t.now)
}

func (m *Migrator) upgradeV3(raw []byte, t target) (ModuleContentV3, error) {
	var doc ModuleContentV3
	if err := json.Unmarshal(raw, &doc); err != nil {
		return doc, err
	}
	if len(doc.Content.Pages) == 0 {
		return doc, errors.New("version 3 content without pages")
	}

	doc.Metadata.ModuleID = t.moduleID
	doc.Metadata.CourseID = t.courseID
	if doc.Metadata.CreatedAt.IsZero() {
		doc.Metadata.CreatedAt = t.now
	}
	if doc.Metadata.UpdatedAt.IsZero() {
		doc.Metadata.UpdatedAt = t.now
	}
	if doc.Content.Metadata.Version == "" {
		doc.Content.Metadata.Version = ContentVersion
	}

	total := 0
	for id, p := range doc.Content.Pages {
		if p.ID == "" {
			p.ID = id
		}
		if p.Elements == nil {
			p.Elements = []Element{}
		}
		doc.Content.Pages[id] = p
		total += len(p.Elements)
	}
	// orders may have gaps or ties after hand edits
	for i, p := range doc.Content.SortedPages() {
		p.Order = i + 1
		doc.Content.Pages[p.ID] = p
	}
	doc.Content.TotalPages = len(doc.Content.Pages)
	doc.Content.Metadata.TotalElements = total
	if _, ok := doc.Content.Pages[doc.Content.CurrentPageID]; !ok {
		doc.Content.CurrentPageID = doc.Content.SortedPages()[0].ID
	}
	return doc, nil
}

func (m *Migrator) logUntyped(c PaginatedContent, moduleID string) {
	for _, p := range c.SortedPages() {
		for _, e := range p.Elements {
			walkElements(e, func(e Element) {
				if e.IsUntyped() {
					m.log.Warn().
						Str("module_id", moduleID).
						Str("page_id", p.ID).
						Str("element_id", e.ID).
						Str("type", string(e.Type())).
						Msg("element properties could not be decoded, kept raw")
				}
			})
		}
	}
}

func walkElements(e Element, fn func(Element)) {
	fn(e)
	for _, child := range e.Children {
		walkElements(child, fn)
	}
}

func (m *Migrator) upgradeV2(raw []byte, t target) (ModuleContentV3, error) {
	var legacy LegacyContent
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return ModuleContentV3{}, err
	}
	if len(legacy.Pages) == 0 {
		return FromLegacy(legacy.Elements, t.moduleID, t.courseID, t.now), nil
	}

	byID := make(map[string]Element, len(legacy.Elements))
	for _, e := range uniqueElements(legacy.Elements) {
		byID[e.ID] = e
	}

	type staged struct {
		page  LegacyPage
		order int
		index int
	}
	pages := make([]staged, 0, len(legacy.Pages))
	seenPages := make(map[string]struct{}, len(legacy.Pages))
	for i, p := range legacy.Pages {
		if p.ID != "" {
			if _, dup := seenPages[p.ID]; dup {
				return ModuleContentV3{}, fmt.Errorf("legacy page %s appears more than once", p.ID)
			}
			seenPages[p.ID] = struct{}{}
		}
		order := 1
		if p.Order != nil {
			order = *p.Order
		}
		pages = append(pages, staged{page: p, order: order, index: i})
	}
	slices.SortStableFunc(pages, func(a, b staged) int {
		if n := cmp.Compare(a.order, b.order); n != 0 {
			return n
		}
		return cmp.Compare(a.index, b.index)
	})

	doc := ModuleContentV3{
		Version: SchemaVersion,
		Content: PaginatedContent{
			Pages:    make(map[string]PageData, len(pages)),
			Metadata: Metadata{Version: ContentVersion},
		},
		Metadata: ModuleMetadata{
			ModuleID:  t.moduleID,
			CourseID:  t.courseID,
			CreatedAt: t.now,
			UpdatedAt: t.now,
		},
	}

	placed := make(map[string]struct{}, len(byID))
	for i, st := range pages {
		order := i + 1
		id := st.page.ID
		if id == "" {
			id = fmt.Sprintf("%s-page-%d", t.moduleID, order)
		}
		if _, taken := doc.Content.Pages[id]; taken {
			return ModuleContentV3{}, fmt.Errorf("generated page id %s collides with a legacy page", id)
		}

		elements := make([]Element, 0, len(st.page.ElementIDs))
		for _, elementID := range st.page.ElementIDs {
			e, ok := byID[elementID]
			if !ok {
				continue
			}
			if _, done := placed[elementID]; done {
				continue
			}
			placed[elementID] = struct{}{}
			elements = append(elements, e)
		}
		doc.Content.Pages[id] = newPage(id, st.page.Title, order, elements, t.now)
		if order == 1 {
			doc.Content.CurrentPageID = id
		}
	}

	if orphans := len(byID) - len(placed); orphans > 0 {
		m.log.Info().Str("module_id", t.moduleID).Int("elements", orphans).
			Msg("legacy elements not referenced by any page were dropped")
	}
	doc.Content.refresh(t.now)
	return doc, nil
}

func (m *Migrator) upgradeElementArray(raw []byte, t target) (ModuleContentV3, error) {
	var elements []Element
	if err := json.Unmarshal(raw, &elements); err != nil {
		return ModuleContentV3{}, err
	}
	return FromLegacy(elements, t.moduleID, t.courseID, t.now), nil
}
