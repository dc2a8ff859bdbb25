package content

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// NameAllocator hands out human readable element names ("text-1", "text-2", ...)
// with one sequence per element type.
type NameAllocator struct {
	mu   sync.Mutex
	last map[ElementType]int
}

func NewNameAllocator() *NameAllocator {
	return &NameAllocator{last: make(map[ElementType]int)}
}

func (a *NameAllocator) Next(t ElementType) string {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.last[t]++
	return fmt.Sprintf("%s-%d", t, a.last[t])
}

// Observe makes sure later names for the element's type do not collide with its name.
func (a *NameAllocator) Observe(e Element) {
	t := e.Type()
	prefix := string(t) + "-"
	if t == "" || !strings.HasPrefix(e.Name, prefix) {
		return
	}
	n, err := strconv.Atoi(strings.TrimPrefix(e.Name, prefix))
	if err != nil || n <= 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if n > a.last[t] {
		a.last[t] = n
	}
}

// ObserveContent observes the top level elements of every page.
func (a *NameAllocator) ObserveContent(c PaginatedContent) {
	for _, page := range c.Pages {
		for _, e := range page.Elements {
			a.Observe(e)
		}
	}
}

// NewElement builds an element with a fresh id and the next name for its type.
func NewElement(names *NameAllocator, props Properties) Element {
	return Element{
		ID:         uuid.NewString(),
		Name:       names.Next(props.ElementType()),
		Properties: props,
	}
}
