// Package playback implements the service side of the player on top of the queue.
// Media is not decoded; a clock stands in for the output so position, end of
// media and progress behave as they would with real playback.
package playback

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/austinkregel/local-media/playbackclient/internal/ipc"
	"github.com/austinkregel/local-media/playbackclient/internal/queue"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

const (
	defaultProgressInterval = time.Second

	// Previous restarts the current media instead once playback is past this point
	restartThreshold = 2000
)

// Options configures an Engine
type Options struct {
	CoverSize        int           // maximum cover edge in pixels, 0 keeps the original size
	ProgressInterval time.Duration // how often progress is reported while playing
}

// Engine is the playback backend served over IPC
type Engine struct {
	queue *queue.Manager
	opts  Options
	now   func() time.Time

	mu           sync.Mutex
	listener     ipc.EventListener
	playing      bool
	position     int64     // ms at anchor
	anchor       time.Time // when playback last (re)started from position
	videoEnabled bool
	headset      bool
}

// NewEngine creates an engine that plays the items of q
func NewEngine(q *queue.Manager, opts Options) *Engine {
	if opts.ProgressInterval <= 0 {
		opts.ProgressInterval = defaultProgressInterval
	}
	return &Engine{
		queue:        q,
		opts:         opts,
		now:          time.Now,
		videoEnabled: true,
		headset:      true,
	}
}

// SetEventListener sets the receiver of state change events
func (e *Engine) SetEventListener(l ipc.EventListener) {
	e.mu.Lock()
	e.listener = l
	e.mu.Unlock()
}

// Queue returns the queue the engine plays
func (e *Engine) Queue() *queue.Manager {
	return e.queue
}

// Run reports progress and advances at end of media until ctx is done
func (e *Engine) Run(ctx context.Context) {
	ticker := time.NewTicker(e.opts.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.tick()
		}
	}
}

func (e *Engine) tick() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	length := e.lengthLocked()
	ended := length > 0 && e.timeLocked() >= length
	e.mu.Unlock()

	if ended {
		e.endOfMedia()
		return
	}
	e.emit(func(l ipc.EventListener) { l.OnProgress() })
}

// endOfMedia moves on to whatever the queue yields next, stopping at the end of the list
func (e *Engine) endOfMedia() {
	e.mu.Lock()
	item, ok := e.queue.Next()
	if ok {
		e.startLocked()
		log.Printf("[PLAYER] Advancing to %s", item.DisplayTitle())
	} else {
		e.playing = false
		e.position = 0
		log.Printf("[PLAYER] End of queue")
	}
	e.mu.Unlock()
	e.emitUpdate()
}

// Load replaces the queue with items and starts playing the one at position
func (e *Engine) Load(items []types.MediaItem, position int, forceAudio bool) error {
	if len(items) == 0 {
		return fmt.Errorf("nothing to load")
	}

	e.mu.Lock()
	e.queue.Set(items, position)
	e.videoEnabled = !forceAudio
	e.startLocked()
	e.mu.Unlock()

	if cur, ok := e.queue.Current(); ok {
		log.Printf("[PLAYER] Playing %s", cur.DisplayTitle())
	}
	e.emitUpdate()
	return nil
}

// LoadLocations reads the tags of every location and loads the result
func (e *Engine) LoadLocations(locations []string, position int) error {
	items := make([]types.MediaItem, 0, len(locations))
	for _, loc := range locations {
		items = append(items, ReadMediaItem(loc))
	}
	return e.Load(items, position, false)
}

// Append adds items to the end of the queue. An empty queue gets a current item but does not start.
func (e *Engine) Append(items []types.MediaItem) {
	if len(items) == 0 {
		return
	}

	e.mu.Lock()
	start := e.queue.Append(items)
	if _, ok := e.queue.Current(); !ok {
		e.queue.SetIndex(start)
	}
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		for i, item := range items {
			l.OnMediaAdded(item, start+i)
		}
	}
	e.emitUpdate()
}

// MoveItem moves the item at from before the item at to
func (e *Engine) MoveItem(from, to int) error {
	if !e.queue.Move(from, to) {
		return fmt.Errorf("invalid move from %d to %d", from, to)
	}
	e.emitUpdate()
	return nil
}

// Remove removes the item at index. Removing the current item restarts on its successor.
func (e *Engine) Remove(index int) error {
	e.mu.Lock()
	current, _ := e.queue.Position()
	if _, ok := e.queue.Remove(index); !ok {
		e.mu.Unlock()
		return fmt.Errorf("invalid index %d", index)
	}
	if index == current {
		e.restartLocked()
	}
	e.mu.Unlock()

	e.emit(func(l ipc.EventListener) { l.OnMediaRemoved(index) })
	e.emitUpdate()
	return nil
}

// RemoveLocation removes every item with the given location
func (e *Engine) RemoveLocation(location string) {
	e.mu.Lock()
	before, _ := e.queue.Current()
	removed := e.queue.RemoveLocation(location)
	if len(removed) > 0 && before.Location == location {
		e.restartLocked()
	}
	e.mu.Unlock()

	if len(removed) == 0 {
		return
	}
	for _, index := range removed {
		e.emit(func(l ipc.EventListener) { l.OnMediaRemoved(index) })
	}
	e.emitUpdate()
}

// Medias returns the queue items in order
func (e *Engine) Medias() []types.MediaItem {
	return e.queue.Items()
}

// MediaLocations returns the locations of the queue items in order
func (e *Engine) MediaLocations() []string {
	return e.queue.Locations()
}

// CurrentMedia returns the current item, or nil
func (e *Engine) CurrentMedia() *types.MediaItem {
	return e.MediaAt(0)
}

// MediaAt returns the previous (-1), current (0) or next (1) item, or nil
func (e *Engine) MediaAt(offset int) *types.MediaItem {
	item, ok := e.queue.Peek(offset)
	if !ok {
		return nil
	}
	return &item
}

// Cover returns the PNG cover of the item at offset
func (e *Engine) Cover(offset int) ([]byte, string, error) {
	item := e.MediaAt(offset)
	if item == nil {
		return nil, "", nil
	}
	data, err := loadCover(*item, e.opts.CoverSize)
	if err != nil || data == nil {
		return nil, "", err
	}
	return data, coverMIMEType, nil
}

// Stop stops playback and rewinds the current media
func (e *Engine) Stop() {
	e.mu.Lock()
	changed := e.playing || e.position != 0
	e.playing = false
	e.position = 0
	e.mu.Unlock()

	if changed {
		e.emitUpdate()
	}
}

// Play starts or resumes the current media
func (e *Engine) Play() {
	if _, ok := e.queue.Current(); !ok {
		return
	}

	e.mu.Lock()
	if e.playing {
		e.mu.Unlock()
		return
	}
	e.playing = true
	e.anchor = e.now()
	e.mu.Unlock()
	e.emitUpdate()
}

// Pause pauses playback, keeping the position
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.playing {
		e.mu.Unlock()
		return
	}
	e.position = e.timeLocked()
	e.playing = false
	e.mu.Unlock()
	e.emitUpdate()
}

// Next plays the next item; at the end of the queue playback stops
func (e *Engine) Next() {
	e.mu.Lock()
	if _, ok := e.queue.Next(); ok {
		e.startLocked()
	} else {
		e.playing = false
		e.position = 0
	}
	e.mu.Unlock()
	e.emitUpdate()
}

// Previous plays the previous item, or restarts the current one when it is past its beginning
func (e *Engine) Previous() {
	e.mu.Lock()
	if e.timeLocked() > restartThreshold {
		e.startLocked()
	} else if _, ok := e.queue.Prev(); ok {
		e.startLocked()
	} else if _, ok := e.queue.Current(); ok {
		e.startLocked()
	}
	e.mu.Unlock()
	e.emitUpdate()
}

// PlayIndex plays the item at index from the beginning
func (e *Engine) PlayIndex(index int) error {
	e.mu.Lock()
	if !e.queue.SetIndex(index) {
		e.mu.Unlock()
		return fmt.Errorf("invalid index %d", index)
	}
	e.startLocked()
	e.mu.Unlock()
	e.emitUpdate()
	return nil
}

// ShowWithoutParse makes the item at index current without starting it
func (e *Engine) ShowWithoutParse(index int) error {
	e.mu.Lock()
	if !e.queue.SetIndex(index) {
		e.mu.Unlock()
		return fmt.Errorf("invalid index %d", index)
	}
	e.playing = false
	e.position = 0
	e.mu.Unlock()
	e.emitUpdate()
	return nil
}

// SetTime seeks the current media to ms, clamped to its length
func (e *Engine) SetTime(ms int64) {
	e.mu.Lock()
	if ms < 0 {
		ms = 0
	}
	if length := e.lengthLocked(); length > 0 && ms > length {
		ms = length
	}
	e.position = ms
	e.anchor = e.now()
	e.mu.Unlock()
	e.emit(func(l ipc.EventListener) { l.OnProgress() })
}

// HandleVout records that the video output went away; the media continues as audio
func (e *Engine) HandleVout() {
	e.mu.Lock()
	e.videoEnabled = false
	e.mu.Unlock()
	log.Printf("[PLAYER] Video output closed, continuing as audio")
	e.emitUpdate()
}

// VideoEnabled reports whether video media should open a video output
func (e *Engine) VideoEnabled() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.videoEnabled
}

// IsPlaying reports whether playback is running
func (e *Engine) IsPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.playing
}

// HasMedia reports whether there is a current item
func (e *Engine) HasMedia() bool {
	_, ok := e.queue.Current()
	return ok
}

// HasNext reports whether Next would play another item
func (e *Engine) HasNext() bool {
	return e.queue.HasNext()
}

// HasPrevious reports whether Previous would play another item
func (e *Engine) HasPrevious() bool {
	return e.queue.HasPrev()
}

// Length returns the current media length in ms, 0 if unknown
func (e *Engine) Length() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lengthLocked()
}

// Time returns the playback position in ms
func (e *Engine) Time() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.timeLocked()
}

// Rate returns the playback rate
func (e *Engine) Rate() float64 {
	return 1.0
}

// Shuffle toggles shuffle mode
func (e *Engine) Shuffle() {
	enabled := e.queue.ToggleShuffle()
	log.Printf("[QUEUE] Shuffle: %v", enabled)
	e.emitUpdate()
}

// IsShuffling reports whether shuffle is on
func (e *Engine) IsShuffling() bool {
	return e.queue.IsShuffling()
}

// SetRepeatType sets the repeat mode
func (e *Engine) SetRepeatType(t types.RepeatType) {
	e.queue.SetRepeat(t)
	log.Printf("[QUEUE] Repeat: %s", t)
	e.emitUpdate()
}

// RepeatType returns the repeat mode
func (e *Engine) RepeatType() types.RepeatType {
	return e.queue.Repeat()
}

// DetectHeadset records whether playback should pause when headphones are unplugged
func (e *Engine) DetectHeadset(enabled bool) {
	e.mu.Lock()
	e.headset = enabled
	e.mu.Unlock()
	log.Printf("[PLAYER] Headset detection: %v", enabled)
}

// HeadsetDetection reports the last DetectHeadset value
func (e *Engine) HeadsetDetection() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.headset
}

// startLocked plays the current item from the beginning
func (e *Engine) startLocked() {
	e.playing = true
	e.position = 0
	e.anchor = e.now()
}

// restartLocked rewinds after the current item changed underneath playback
func (e *Engine) restartLocked() {
	e.position = 0
	e.anchor = e.now()
	if _, ok := e.queue.Current(); !ok {
		e.playing = false
	}
}

func (e *Engine) timeLocked() int64 {
	pos := e.position
	if e.playing {
		pos += e.now().Sub(e.anchor).Milliseconds()
	}
	if length := e.lengthLocked(); length > 0 && pos > length {
		pos = length
	}
	return pos
}

func (e *Engine) lengthLocked() int64 {
	cur, ok := e.queue.Current()
	if !ok {
		return 0
	}
	return cur.Duration
}

func (e *Engine) emitUpdate() {
	e.emit(func(l ipc.EventListener) { l.OnUpdate() })
}

// emit delivers an event outside the engine lock
func (e *Engine) emit(fn func(ipc.EventListener)) {
	e.mu.Lock()
	l := e.listener
	e.mu.Unlock()
	if l != nil {
		fn(l)
	}
}
