// Package library holds the payloads segments refer to and reads and writes
// project documents.
package library

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/vsariola/lumo"
	"github.com/vsariola/lumo/graph"
	"github.com/vsariola/lumo/output"
)

type (
	// Kind is the type tag of a payload in a project document.
	Kind int

	// Item is a payload. The concrete types are *AudioItem, *GraphItem,
	// *AutomationItem, *PatternItem and *OutputItem.
	Item interface {
		Kind() Kind
		Info() *Header
	}

	// Header holds the fields shared by all payloads. Error is set when the
	// payload could not be loaded or failed during playback; it is reset
	// once the payload works again.
	Header struct {
		ID    string
		Name  string
		Error bool
	}

	AudioItem struct {
		Header
		Path   string
		Buffer lumo.AudioBuffer
	}

	GraphItem struct {
		Header
		Graph *graph.Graph
	}

	AutomationItem struct {
		Header
		Curve *lumo.AutomationCurve
	}

	PatternItem struct {
		Header
		Pattern *lumo.NotePattern
	}

	// OutputItem binds a fixture to the library, so that graphs can address
	// it by the item id.
	OutputItem struct {
		Header
		Fixture output.Fixture
	}

	Library struct {
		items     []Item
		byID      map[string]Item
		listeners []libraryListener
		nextKey   int
	}

	Event struct {
		Added bool // false: removed
		Item  Item
	}

	libraryListener struct {
		key int
		fn  func(Event)
	}
)

const (
	Audio Kind = iota + 1
	Graph
	Automation
	Pattern
	Output
)

func (k Kind) String() string {
	switch k {
	case Audio:
		return "audio"
	case Graph:
		return "graph"
	case Automation:
		return "automation"
	case Pattern:
		return "pattern"
	case Output:
		return "output"
	}
	return fmt.Sprintf("unknown(%d)", int(k))
}

func (h *Header) Info() *Header { return h }

func (*AudioItem) Kind() Kind      { return Audio }
func (*GraphItem) Kind() Kind      { return Graph }
func (*AutomationItem) Kind() Kind { return Automation }
func (*PatternItem) Kind() Kind    { return Pattern }
func (*OutputItem) Kind() Kind     { return Output }

// Silent reports whether the clip has nothing to play.
func (a *AudioItem) Silent() bool { return a.Error || len(a.Buffer) == 0 }

// Length returns the length of the decoded clip in ticks.
func (a *AudioItem) Length(tempo lumo.Tempo) int {
	return int(tempo.SecondsToTicks(a.Buffer.Duration()) + 0.5)
}

func New() *Library {
	return &Library{byID: map[string]Item{}}
}

func (l *Library) Subscribe(fn func(Event)) (unsubscribe func()) {
	key := l.nextKey
	l.nextKey++
	l.listeners = append(l.listeners, libraryListener{key: key, fn: fn})
	return func() {
		for i, x := range l.listeners {
			if x.key == key {
				l.listeners = append(l.listeners[:i], l.listeners[i+1:]...)
				return
			}
		}
	}
}

// Add adds item, generating an id if it has none.
func (l *Library) Add(item Item) error {
	h := item.Info()
	if h.ID == "" {
		h.ID = uuid.NewString()
	}
	if _, ok := l.byID[h.ID]; ok {
		return lumo.Errorf(lumo.ValidationError, fmt.Sprintf("duplicate library item id %v", h.ID))
	}
	l.items = append(l.items, item)
	l.byID[h.ID] = item
	for _, x := range l.listeners {
		x.fn(Event{Added: true, Item: item})
	}
	return nil
}

// Remove removes the item. An output item's fixture is closed.
func (l *Library) Remove(id string) bool {
	item, ok := l.byID[id]
	if !ok {
		return false
	}
	delete(l.byID, id)
	for i, x := range l.items {
		if x == item {
			l.items = append(l.items[:i], l.items[i+1:]...)
			break
		}
	}
	// listeners see the fixture before it is closed
	for _, x := range l.listeners {
		x.fn(Event{Item: item})
	}
	if o, ok := item.(*OutputItem); ok && o.Fixture != nil {
		o.Fixture.Close()
	}
	return true
}

func (l *Library) Item(id string) (Item, bool) {
	item, ok := l.byID[id]
	return item, ok
}

func (l *Library) Items() []Item {
	return append([]Item(nil), l.items...)
}

// Output returns the fixture bound to the output item with the given id.
func (l *Library) Output(id string) (output.Fixture, bool) {
	if o, ok := l.byID[id].(*OutputItem); ok && o.Fixture != nil {
		return o.Fixture, true
	}
	return nil, false
}

// Close closes all fixtures.
func (l *Library) Close() {
	for _, item := range l.items {
		if o, ok := item.(*OutputItem); ok && o.Fixture != nil {
			o.Fixture.Close()
		}
	}
}
