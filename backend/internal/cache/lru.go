package cache

import (
	"container/list"
	"sync"
	"time"
)

// memoryTier is a bounded LRU keyed by Entry.ID, with an address index for
// invalidation. The front of the list is the most recently used entry.
type memoryTier struct {
	mu        sync.Mutex
	capacity  int
	ll        *list.List
	items     map[string]*list.Element
	byAddress map[string]map[string]struct{}
}

func newMemoryTier(capacity int) *memoryTier {
	if capacity < 1 {
		capacity = 1
	}
	return &memoryTier{
		capacity:  capacity,
		ll:        list.New(),
		items:     make(map[string]*list.Element),
		byAddress: make(map[string]map[string]struct{}),
	}
}

// get returns a copy of the entry and refreshes its recency
func (m *memoryTier) get(id string, now time.Time) (Entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[id]
	if !ok {
		return Entry{}, false
	}
	e := el.Value.(*Entry)
	if e.Expired(now) {
		m.removeElement(el)
		return Entry{}, false
	}
	m.ll.MoveToFront(el)
	e.touch(now)
	return *e, true
}

// contains reports presence without touching recency
func (m *memoryTier) contains(id string, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[id]
	return ok && !el.Value.(*Entry).Expired(now)
}

// put inserts or replaces e and returns how many entries were evicted
func (m *memoryTier) put(e Entry) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	e.Tier = TierMemory
	if el, ok := m.items[e.ID]; ok {
		m.removeElement(el)
	}

	m.items[e.ID] = m.ll.PushFront(&e)
	if e.Address != "" {
		keys := m.byAddress[e.Address]
		if keys == nil {
			keys = make(map[string]struct{})
			m.byAddress[e.Address] = keys
		}
		keys[e.ID] = struct{}{}
	}

	evicted := 0
	for m.ll.Len() > m.capacity {
		m.removeElement(m.ll.Back())
		evicted++
	}
	return evicted
}

func (m *memoryTier) remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	el, ok := m.items[id]
	if !ok {
		return false
	}
	m.removeElement(el)
	return true
}

func (m *memoryTier) removeElement(el *list.Element) {
	e := el.Value.(*Entry)
	m.ll.Remove(el)
	delete(m.items, e.ID)
	if keys := m.byAddress[e.Address]; keys != nil {
		delete(keys, e.ID)
		if len(keys) == 0 {
			delete(m.byAddress, e.Address)
		}
	}
}

func (m *memoryTier) keysFor(address string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.byAddress[address]))
	for id := range m.byAddress[address] {
		ids = append(ids, id)
	}
	return ids
}

// purgeExpired drops every expired entry and returns the count
func (m *memoryTier) purgeExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	purged := 0
	for el := m.ll.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*Entry).Expired(now) {
			m.removeElement(el)
			purged++
		}
		el = prev
	}
	return purged
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}
