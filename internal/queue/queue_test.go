package queue

import (
	"testing"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

func mediaItems(paths ...string) []types.MediaItem {
	items := make([]types.MediaItem, len(paths))
	for i, p := range paths {
		items[i] = types.MediaItem{Location: p}
	}
	return items
}

func currentLocation(m *Manager) string {
	item, _ := m.Current()
	return item.Location
}

func TestNewManager(t *testing.T) {
	m := NewManager()

	idx, size := m.Position()
	if idx != -1 {
		t.Errorf("Expected index -1, got %d", idx)
	}
	if size != 0 {
		t.Errorf("Expected size 0, got %d", size)
	}
	if _, ok := m.Current(); ok {
		t.Error("Expected no current item")
	}
}

func TestSet(t *testing.T) {
	m := NewManager()

	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 1)

	idx, size := m.Position()
	if idx != 1 {
		t.Errorf("Expected index 1 after Set, got %d", idx)
	}
	if size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}
	if got := currentLocation(m); got != "/path/2.mp3" {
		t.Errorf("Expected /path/2.mp3, got %s", got)
	}
}

func TestSetClampsPosition(t *testing.T) {
	m := NewManager()

	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3"), 10)
	if idx, _ := m.Position(); idx != 1 {
		t.Errorf("Expected index clamped to 1, got %d", idx)
	}

	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3"), -4)
	if idx, _ := m.Position(); idx != 0 {
		t.Errorf("Expected index clamped to 0, got %d", idx)
	}
}

func TestAppend(t *testing.T) {
	m := NewManager()

	m.Set(mediaItems("/path/1.mp3"), 0)
	start := m.Append(mediaItems("/path/2.mp3", "/path/3.mp3"))

	if start != 1 {
		t.Errorf("Expected appended items to start at 1, got %d", start)
	}
	if _, size := m.Position(); size != 3 {
		t.Errorf("Expected size 3, got %d", size)
	}
}

func TestNext(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 0)

	item, ok := m.Next()
	if !ok || item.Location != "/path/2.mp3" {
		t.Errorf("Expected /path/2.mp3, got %s", item.Location)
	}

	item, _ = m.Next()
	if item.Location != "/path/3.mp3" {
		t.Errorf("Expected /path/3.mp3, got %s", item.Location)
	}

	// End of queue
	if _, ok := m.Next(); ok {
		t.Error("Expected no next item at end of queue")
	}
	if got := currentLocation(m); got != "/path/3.mp3" {
		t.Errorf("Expected current to stay on /path/3.mp3, got %s", got)
	}
}

func TestPrev(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 2)

	item, _ := m.Prev()
	if item.Location != "/path/2.mp3" {
		t.Errorf("Expected /path/2.mp3, got %s", item.Location)
	}

	item, _ = m.Prev()
	if item.Location != "/path/1.mp3" {
		t.Errorf("Expected /path/1.mp3, got %s", item.Location)
	}

	if _, ok := m.Prev(); ok {
		t.Error("Expected no previous item at beginning")
	}
}

func TestPeekAndHas(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 0)

	if m.HasPrev() {
		t.Error("Expected no previous at start")
	}
	if !m.HasNext() {
		t.Error("Expected a next item")
	}

	next, ok := m.Peek(1)
	if !ok || next.Location != "/path/2.mp3" {
		t.Errorf("Expected to peek /path/2.mp3, got %s", next.Location)
	}
	if _, ok := m.Peek(-1); ok {
		t.Error("Expected nothing before the first item")
	}
	if got := currentLocation(m); got != "/path/1.mp3" {
		t.Errorf("Peek must not move, current is %s", got)
	}

	m.SetRepeat(types.RepeatAll)
	prev, ok := m.Peek(-1)
	if !ok || prev.Location != "/path/3.mp3" {
		t.Errorf("Expected RepeatAll to wrap back to /path/3.mp3, got %s", prev.Location)
	}
	if !m.HasPrev() {
		t.Error("Expected previous with RepeatAll")
	}
}

func TestSetIndex(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 0)

	if !m.SetIndex(1) {
		t.Error("SetIndex(1) should succeed")
	}
	if got := currentLocation(m); got != "/path/2.mp3" {
		t.Errorf("Expected /path/2.mp3, got %s", got)
	}

	if m.SetIndex(-1) {
		t.Error("SetIndex(-1) should fail")
	}
	if m.SetIndex(10) {
		t.Error("SetIndex(10) should fail")
	}
}

func TestSetIndexWhileShuffling(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3", "/path/4.mp3"), 0)
	m.SetShuffle(true)

	for i := 0; i < 4; i++ {
		if !m.SetIndex(i) {
			t.Fatalf("SetIndex(%d) failed", i)
		}
		if idx, _ := m.Position(); idx != i {
			t.Errorf("Expected item index %d, got %d", i, idx)
		}
	}
}

func TestClear(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3"), 0)

	m.Clear()

	idx, size := m.Position()
	if idx != -1 {
		t.Errorf("Expected index -1 after Clear, got %d", idx)
	}
	if size != 0 {
		t.Errorf("Expected size 0 after Clear, got %d", size)
	}
}

func TestRepeatAll(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3"), 0)
	m.SetRepeat(types.RepeatAll)

	m.Next()             // 1
	item, ok := m.Next() // wraps to 0

	if !ok || item.Location != "/path/1.mp3" {
		t.Errorf("Expected /path/1.mp3 with RepeatAll, got %s", item.Location)
	}
}

func TestRepeatOnce(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3"), 0)
	m.SetRepeat(types.RepeatOnce)

	item, _ := m.Next()
	if item.Location != "/path/1.mp3" {
		t.Errorf("Expected /path/1.mp3 with RepeatOnce, got %s", item.Location)
	}
	item, _ = m.Prev()
	if item.Location != "/path/1.mp3" {
		t.Errorf("Expected /path/1.mp3 with RepeatOnce, got %s", item.Location)
	}
}

func TestRemove(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 1)

	// Remove track before current - index should adjust
	removed, ok := m.Remove(0)
	if !ok || removed.Location != "/path/1.mp3" {
		t.Fatalf("Expected to remove /path/1.mp3, got %s", removed.Location)
	}

	idx, size := m.Position()
	if idx != 0 {
		t.Errorf("Expected index 0 after remove, got %d", idx)
	}
	if size != 2 {
		t.Errorf("Expected size 2 after remove, got %d", size)
	}
	if got := currentLocation(m); got != "/path/2.mp3" {
		t.Errorf("Expected /path/2.mp3, got %s", got)
	}

	if _, ok := m.Remove(5); ok {
		t.Error("Remove of out-of-range index should fail")
	}
}

func TestRemoveCurrentSelectsFollowing(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 1)

	m.Remove(1)
	if got := currentLocation(m); got != "/path/3.mp3" {
		t.Errorf("Expected /path/3.mp3 to become current, got %s", got)
	}

	m.Remove(1)
	if got := currentLocation(m); got != "/path/1.mp3" {
		t.Errorf("Expected /path/1.mp3 after removing the last item, got %s", got)
	}

	m.Remove(0)
	if _, ok := m.Current(); ok {
		t.Error("Expected no current item in an empty queue")
	}
}

func TestRemoveLocation(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/a.mp3", "/b.mp3", "/a.mp3", "/c.mp3"), 3)

	removed := m.RemoveLocation("/a.mp3")
	if len(removed) != 2 || removed[0] != 2 || removed[1] != 0 {
		t.Errorf("Expected removed indices [2 0], got %v", removed)
	}

	locations := m.Locations()
	if len(locations) != 2 || locations[0] != "/b.mp3" || locations[1] != "/c.mp3" {
		t.Errorf("Unexpected locations: %v", locations)
	}
	if got := currentLocation(m); got != "/c.mp3" {
		t.Errorf("Expected /c.mp3 to stay current, got %s", got)
	}

	if removed := m.RemoveLocation("/missing.mp3"); len(removed) != 0 {
		t.Errorf("Expected nothing removed, got %v", removed)
	}
}

func TestInsert(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/3.mp3"), 1)

	if !m.Insert(1, types.MediaItem{Location: "/path/2.mp3"}) {
		t.Fatal("Insert should succeed")
	}

	items := m.Items()
	if len(items) != 3 || items[1].Location != "/path/2.mp3" {
		t.Errorf("Expected /path/2.mp3 at index 1, got %v", items)
	}
	if got := currentLocation(m); got != "/path/3.mp3" {
		t.Errorf("Expected current to stay /path/3.mp3, got %s", got)
	}
	if m.Insert(9, types.MediaItem{Location: "/x.mp3"}) {
		t.Error("Insert past the end should fail")
	}
}

func TestMetadataIsKept(t *testing.T) {
	m := NewManager()

	m.Set([]types.MediaItem{
		{Location: "/path/1.mp3", Title: "Track 1"},
		{Location: "/path/2.mp3", Title: "Track 2"},
	}, 0)

	item, _ := m.Current()
	if item.Title != "Track 1" {
		t.Errorf("Expected title 'Track 1', got '%s'", item.Title)
	}
}

func TestShuffleGetSet(t *testing.T) {
	m := NewManager()

	if m.IsShuffling() {
		t.Error("Shuffle should be off by default")
	}

	if !m.ToggleShuffle() || !m.IsShuffling() {
		t.Error("Shuffle should be on after toggle")
	}

	m.SetShuffle(false)
	if m.IsShuffling() {
		t.Error("Shuffle should be off after SetShuffle(false)")
	}
}

func TestRepeatGetSet(t *testing.T) {
	m := NewManager()

	if m.Repeat() != types.RepeatNone {
		t.Error("Repeat should be none by default")
	}

	m.SetRepeat(types.RepeatOnce)
	if m.Repeat() != types.RepeatOnce {
		t.Error("Repeat should be RepeatOnce")
	}
}

func TestShuffleOrder(t *testing.T) {
	m := NewManager()
	paths := []string{"/path/1.mp3", "/path/2.mp3", "/path/3.mp3", "/path/4.mp3", "/path/5.mp3"}
	m.Set(mediaItems(paths...), 0)

	m.SetShuffle(true)

	visited := map[string]bool{currentLocation(m): true}
	for i := 1; i < len(paths); i++ {
		item, ok := m.Next()
		if !ok {
			t.Fatalf("Got no item after %d Next() calls", i)
		}
		visited[item.Location] = true
	}

	if len(visited) != len(paths) {
		t.Errorf("Expected %d unique paths, got %d", len(paths), len(visited))
	}
}

func TestShuffleMaintainsCurrentTrack(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3", "/path/4.mp3"), 1)

	m.SetShuffle(true)

	if got := currentLocation(m); got != "/path/2.mp3" {
		t.Errorf("Expected current track to stay as /path/2.mp3, got %s", got)
	}
}

func TestShuffleDisableMaintainsCurrentTrack(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3", "/path/4.mp3"), 0)

	m.SetShuffle(true)
	m.Next()

	current := currentLocation(m)
	if current == "" {
		t.Fatal("Expected a current path")
	}

	m.SetShuffle(false)

	if got := currentLocation(m); got != current {
		t.Errorf("Expected current track to remain %s, got %s", current, got)
	}
}

func TestMove(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 0)

	if !m.Move(2, 0) {
		t.Fatal("Move should succeed")
	}

	want := []string{"/path/3.mp3", "/path/1.mp3", "/path/2.mp3"}
	for i, loc := range m.Locations() {
		if loc != want[i] {
			t.Errorf("Expected %s at index %d, got %s", want[i], i, loc)
		}
	}
	if got := currentLocation(m); got != "/path/1.mp3" {
		t.Errorf("Expected current to follow /path/1.mp3, got %s", got)
	}
	if idx, _ := m.Position(); idx != 1 {
		t.Errorf("Expected current index 1, got %d", idx)
	}
}

func TestMoveToEnd(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 2)

	if !m.Move(0, 3) {
		t.Fatal("Move to the end should succeed")
	}

	want := []string{"/path/2.mp3", "/path/3.mp3", "/path/1.mp3"}
	for i, loc := range m.Locations() {
		if loc != want[i] {
			t.Errorf("Expected %s at index %d, got %s", want[i], i, loc)
		}
	}
	if got := currentLocation(m); got != "/path/3.mp3" {
		t.Errorf("Expected current to stay /path/3.mp3, got %s", got)
	}
}

func TestMoveWhileShufflingKeepsCurrent(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3", "/path/4.mp3"), 1)
	m.SetShuffle(true)

	m.Move(1, 4)

	if got := currentLocation(m); got != "/path/2.mp3" {
		t.Errorf("Expected current to stay /path/2.mp3, got %s", got)
	}
}

func TestMoveInvalidIndex(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3"), 0)

	if m.Move(-1, 0) {
		t.Error("Move with negative from index should fail")
	}
	if m.Move(0, 5) {
		t.Error("Move with out-of-bounds to index should fail")
	}
}

func TestSnapshotRestore(t *testing.T) {
	m := NewManager()
	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3", "/path/3.mp3"), 2)
	m.SetRepeat(types.RepeatAll)

	snap := m.Snapshot()

	restored := NewManager()
	restored.Restore(snap)

	if idx, size := restored.Position(); idx != 2 || size != 3 {
		t.Errorf("Expected position 2/3, got %d/%d", idx, size)
	}
	if restored.Repeat() != types.RepeatAll {
		t.Errorf("Expected RepeatAll, got %v", restored.Repeat())
	}
}

func TestOnChange(t *testing.T) {
	m := NewManager()

	callCount := 0
	m.SetOnChange(func() {
		callCount++
	})

	m.Set(mediaItems("/path/1.mp3", "/path/2.mp3"), 0)
	if callCount != 1 {
		t.Errorf("Expected 1 onChange call after Set, got %d", callCount)
	}

	m.Next()
	if callCount != 2 {
		t.Errorf("Expected 2 onChange calls after Next, got %d", callCount)
	}

	m.SetRepeat(types.RepeatAll)
	if callCount != 3 {
		t.Errorf("Expected 3 onChange calls after SetRepeat, got %d", callCount)
	}

	m.Remove(9)
	if callCount != 3 {
		t.Errorf("Expected no onChange call after a failed Remove, got %d", callCount)
	}
}
