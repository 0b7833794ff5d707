// Package queue manages the playback queue.
package queue

import (
	"math/rand"
	"sync"
	"time"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// ChangeCallback is called when the queue state changes
type ChangeCallback func()

// State is a snapshot of the queue used for persistence
type State struct {
	Items   []types.MediaItem
	Index   int // item index of the current media, -1 if none
	Shuffle bool
	Repeat  types.RepeatType
}

// Manager manages the playback queue.
// Indices passed to and returned from its methods are item indices; the play
// order only differs from item order while shuffling.
type Manager struct {
	mu           sync.RWMutex
	items        []types.MediaItem
	pos          int // current position in play order, -1 if none
	shuffle      bool
	shuffleOrder []int // play position -> item index, only while shuffling
	repeat       types.RepeatType
	rng          *rand.Rand
	onChange     ChangeCallback
}

// NewManager creates a new queue manager
func NewManager() *Manager {
	return &Manager{
		pos:    -1,
		repeat: types.RepeatNone,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetOnChange sets a callback to be called when the queue state changes
func (m *Manager) SetOnChange(callback ChangeCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = callback
}

// notifyChange calls the onChange callback if set (must be called without lock held)
func (m *Manager) notifyChange() {
	m.mu.RLock()
	callback := m.onChange
	m.mu.RUnlock()
	if callback != nil {
		callback()
	}
}

// Set replaces the queue. position becomes the current item; it is clamped to the queue.
func (m *Manager) Set(items []types.MediaItem, position int) {
	m.mu.Lock()

	m.items = append([]types.MediaItem(nil), items...)
	m.pos = -1
	if len(m.items) > 0 {
		m.pos = clamp(position, 0, len(m.items)-1)
	}
	if m.shuffle {
		m.generateShuffleOrder(m.pos)
		if m.pos >= 0 {
			m.pos = 0
		}
	}

	m.mu.Unlock()
	m.notifyChange()
}

// Clear empties the queue
func (m *Manager) Clear() {
	m.Set(nil, -1)
}

// Append adds items to the end of the queue and returns the index of the first one
func (m *Manager) Append(items []types.MediaItem) int {
	m.mu.Lock()

	start := len(m.items)
	m.items = append(m.items, items...)
	if m.shuffle {
		for i := range items {
			m.insertIntoShuffleOrder(start + i)
		}
	}

	m.mu.Unlock()
	m.notifyChange()
	return start
}

// Insert inserts an item at the specified index
func (m *Manager) Insert(index int, item types.MediaItem) bool {
	m.mu.Lock()

	if index < 0 || index > len(m.items) {
		m.mu.Unlock()
		return false
	}

	m.items = append(m.items[:index], append([]types.MediaItem{item}, m.items[index:]...)...)

	if m.shuffle {
		for i := range m.shuffleOrder {
			if m.shuffleOrder[i] >= index {
				m.shuffleOrder[i]++
			}
		}
		m.insertIntoShuffleOrder(index)
	} else if index <= m.pos {
		m.pos++
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}

// insertIntoShuffleOrder places a new item index at a random position after the current one
func (m *Manager) insertIntoShuffleOrder(itemIdx int) {
	insertPos := m.pos + 1 + m.rng.Intn(len(m.shuffleOrder)-m.pos)
	if insertPos > len(m.shuffleOrder) {
		insertPos = len(m.shuffleOrder)
	}
	m.shuffleOrder = append(m.shuffleOrder[:insertPos], append([]int{itemIdx}, m.shuffleOrder[insertPos:]...)...)
}

// Remove removes the item at index and returns it.
// When the current item is removed the following one becomes current.
func (m *Manager) Remove(index int) (types.MediaItem, bool) {
	m.mu.Lock()
	item, ok := m.removeLocked(index)
	m.mu.Unlock()
	if ok {
		m.notifyChange()
	}
	return item, ok
}

// RemoveLocation removes every item with the given location.
// It returns the removed indices, highest first, each valid at the time of its removal.
func (m *Manager) RemoveLocation(location string) []int {
	m.mu.Lock()
	var removed []int
	for i := len(m.items) - 1; i >= 0; i-- {
		if m.items[i].Location == location {
			m.removeLocked(i)
			removed = append(removed, i)
		}
	}
	m.mu.Unlock()
	if len(removed) > 0 {
		m.notifyChange()
	}
	return removed
}

func (m *Manager) removeLocked(index int) (types.MediaItem, bool) {
	if index < 0 || index >= len(m.items) {
		return types.MediaItem{}, false
	}

	item := m.items[index]
	m.items = append(m.items[:index], m.items[index+1:]...)

	if m.shuffle {
		newOrder := make([]int, 0, len(m.shuffleOrder))
		removedPos := -1
		for i, idx := range m.shuffleOrder {
			if idx == index {
				removedPos = i
				continue
			}
			if idx > index {
				idx--
			}
			newOrder = append(newOrder, idx)
		}
		m.shuffleOrder = newOrder
		if removedPos >= 0 && removedPos < m.pos {
			m.pos--
		}
	} else if index < m.pos {
		m.pos--
	}

	if m.pos >= len(m.items) {
		m.pos = len(m.items) - 1
	}
	return item, true
}

// Move moves the item at from so that it ends up before the item currently at to.
// to may equal the queue length to move an item to the end.
func (m *Manager) Move(from, to int) bool {
	m.mu.Lock()

	if from < 0 || from >= len(m.items) || to < 0 || to > len(m.items) {
		m.mu.Unlock()
		return false
	}
	if from == to {
		m.mu.Unlock()
		return true
	}

	current := m.itemIndex(m.pos)

	item := m.items[from]
	m.items = append(m.items[:from], m.items[from+1:]...)
	dest := to
	if to > from {
		dest--
	}
	m.items = append(m.items[:dest], append([]types.MediaItem{item}, m.items[dest:]...)...)

	remap := func(idx int) int {
		switch {
		case idx == from:
			return dest
		case from < idx && idx <= dest:
			return idx - 1
		case dest <= idx && idx < from:
			return idx + 1
		}
		return idx
	}

	if m.shuffle {
		for i, idx := range m.shuffleOrder {
			m.shuffleOrder[i] = remap(idx)
		}
	} else if current >= 0 {
		m.pos = remap(current)
	}

	m.mu.Unlock()
	m.notifyChange()
	return true
}

// Next moves to the next item and returns it.
// RepeatOnce stays on the current item; RepeatAll wraps around.
func (m *Manager) Next() (types.MediaItem, bool) {
	m.mu.Lock()

	pos := m.nextPos()
	if pos < 0 {
		m.mu.Unlock()
		return types.MediaItem{}, false
	}
	if pos <= m.pos && m.repeat == types.RepeatAll && m.shuffle {
		// Re-shuffle when looping back
		m.generateShuffleOrder(-1)
		pos = 0
	}
	m.pos = pos
	item := m.items[m.itemIndex(pos)]

	m.mu.Unlock()
	m.notifyChange()
	return item, true
}

// Prev moves to the previous item and returns it
func (m *Manager) Prev() (types.MediaItem, bool) {
	m.mu.Lock()

	pos := m.prevPos()
	if pos < 0 {
		m.mu.Unlock()
		return types.MediaItem{}, false
	}
	m.pos = pos
	item := m.items[m.itemIndex(pos)]

	m.mu.Unlock()
	m.notifyChange()
	return item, true
}

// Peek returns the item Prev (offset -1), Current (0) or Next (1) would yield, without moving
func (m *Manager) Peek(offset int) (types.MediaItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	pos := m.pos
	switch {
	case offset < 0:
		pos = m.prevPos()
	case offset > 0:
		pos = m.nextPos()
	}
	if pos < 0 || m.pos < 0 {
		return types.MediaItem{}, false
	}
	return m.items[m.itemIndex(pos)], true
}

// HasNext reports whether Next would yield an item
func (m *Manager) HasNext() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos >= 0 && m.nextPos() >= 0
}

// HasPrev reports whether Prev would yield an item
func (m *Manager) HasPrev() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pos >= 0 && m.prevPos() >= 0
}

func (m *Manager) nextPos() int {
	n := len(m.items)
	if n == 0 {
		return -1
	}
	if m.pos < 0 {
		return 0
	}
	if m.repeat == types.RepeatOnce {
		return m.pos
	}
	if m.pos+1 < n {
		return m.pos + 1
	}
	if m.repeat == types.RepeatAll {
		return 0
	}
	return -1
}

func (m *Manager) prevPos() int {
	n := len(m.items)
	if n == 0 || m.pos < 0 {
		return -1
	}
	if m.repeat == types.RepeatOnce {
		return m.pos
	}
	if m.pos > 0 {
		return m.pos - 1
	}
	if m.repeat == types.RepeatAll {
		return n - 1
	}
	return -1
}

// itemIndex maps a play position to an item index
func (m *Manager) itemIndex(pos int) int {
	if pos < 0 || pos >= len(m.items) {
		return -1
	}
	if !m.shuffle {
		return pos
	}
	return m.shuffleOrder[pos]
}

// generateShuffleOrder creates a new play order. A non-negative first item leads the order.
func (m *Manager) generateShuffleOrder(first int) {
	n := len(m.items)
	m.shuffleOrder = make([]int, n)
	for i := 0; i < n; i++ {
		m.shuffleOrder[i] = i
	}
	// Fisher-Yates shuffle
	for i := n - 1; i > 0; i-- {
		j := m.rng.Intn(i + 1)
		m.shuffleOrder[i], m.shuffleOrder[j] = m.shuffleOrder[j], m.shuffleOrder[i]
	}
	if first >= 0 {
		for i, idx := range m.shuffleOrder {
			if idx == first {
				m.shuffleOrder[0], m.shuffleOrder[i] = m.shuffleOrder[i], m.shuffleOrder[0]
				break
			}
		}
	}
}

// Current returns the current item
func (m *Manager) Current() (types.MediaItem, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	idx := m.itemIndex(m.pos)
	if idx < 0 {
		return types.MediaItem{}, false
	}
	return m.items[idx], true
}

// SetIndex makes the item at index current
func (m *Manager) SetIndex(index int) bool {
	m.mu.Lock()

	if index < 0 || index >= len(m.items) {
		m.mu.Unlock()
		return false
	}

	m.pos = m.posOf(index)
	m.mu.Unlock()
	m.notifyChange()
	return true
}

func (m *Manager) posOf(index int) int {
	if !m.shuffle {
		return index
	}
	for pos, idx := range m.shuffleOrder {
		if idx == index {
			return pos
		}
	}
	return -1
}

// Position returns the item index of the current media and the queue size
func (m *Manager) Position() (int, int) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.itemIndex(m.pos), len(m.items)
}

// Items returns all items in the queue
func (m *Manager) Items() []types.MediaItem {
	m.mu.RLock()
	defer m.mu.RUnlock()

	items := make([]types.MediaItem, len(m.items))
	copy(items, m.items)
	return items
}

// Locations returns the location of every item in queue order
func (m *Manager) Locations() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	locations := make([]string, len(m.items))
	for i, item := range m.items {
		locations[i] = item.Location
	}
	return locations
}

// SetShuffle enables or disables shuffle mode, keeping the current item
func (m *Manager) SetShuffle(enabled bool) {
	m.mu.Lock()

	if enabled != m.shuffle {
		current := m.itemIndex(m.pos)
		m.shuffle = enabled
		if enabled {
			m.generateShuffleOrder(current)
			if current >= 0 {
				m.pos = 0
			}
		} else {
			m.shuffleOrder = nil
			m.pos = current
		}
	}

	m.mu.Unlock()
	m.notifyChange()
}

// ToggleShuffle flips shuffle mode and returns the new state
func (m *Manager) ToggleShuffle() bool {
	enabled := !m.IsShuffling()
	m.SetShuffle(enabled)
	return enabled
}

// IsShuffling returns whether shuffle is enabled
func (m *Manager) IsShuffling() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.shuffle
}

// SetRepeat sets the repeat mode
func (m *Manager) SetRepeat(mode types.RepeatType) {
	m.mu.Lock()
	m.repeat = mode
	m.mu.Unlock()
	m.notifyChange()
}

// Repeat returns the current repeat mode
func (m *Manager) Repeat() types.RepeatType {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.repeat
}

// Snapshot returns the persisted part of the queue
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return State{
		Items:   append([]types.MediaItem(nil), m.items...),
		Index:   m.itemIndex(m.pos),
		Shuffle: m.shuffle,
		Repeat:  m.repeat,
	}
}

// Restore replaces the queue with a snapshot. The shuffle order is regenerated.
func (m *Manager) Restore(s State) {
	m.mu.Lock()
	m.repeat = s.Repeat
	m.shuffle = s.Shuffle
	m.shuffleOrder = nil
	m.mu.Unlock()

	m.Set(s.Items, s.Index)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
