package client

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/austinkregel/local-media/playbackclient/internal/remote"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

var errRemote = errors.New("remote fault")

// fakeSession answers every call with fixed values, or err when set
type fakeSession struct {
	mu           sync.Mutex
	calls        []string
	err          error
	failOp       string // only this op fails with err when set
	blockOp      string // this op blocks until its context ends
	hasMedia     bool
	playing      bool
	appended     [][]types.MediaItem
	headset      []bool
	closed       bool
	sink         remote.Callback
	onDisconnect func(error)
}

func newFakeSession() *fakeSession {
	return &fakeSession{hasMedia: true, playing: true}
}

func (s *fakeSession) record(ctx context.Context, op string) error {
	s.mu.Lock()
	s.calls = append(s.calls, op)
	err := s.err
	if s.failOp != "" && s.failOp != op {
		err = nil
	}
	block := s.blockOp == op
	s.mu.Unlock()

	if block {
		<-ctx.Done()
		return ctx.Err()
	}
	return err
}

func (s *fakeSession) count(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		if c == op {
			n++
		}
	}
	return n
}

func (s *fakeSession) setErr(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *fakeSession) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) Load(ctx context.Context, items []types.MediaItem, position int, forceAudio bool) error {
	return s.record(ctx, "load")
}

func (s *fakeSession) LoadLocations(ctx context.Context, locations []string, position int) error {
	return s.record(ctx, "loadLocations")
}

func (s *fakeSession) Append(ctx context.Context, items []types.MediaItem) error {
	if err := s.record(ctx, "append"); err != nil {
		return err
	}
	s.mu.Lock()
	s.appended = append(s.appended, items)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) MoveItem(ctx context.Context, from, to int) error {
	return s.record(ctx, "moveItem")
}

func (s *fakeSession) Remove(ctx context.Context, position int) error {
	return s.record(ctx, "remove")
}

func (s *fakeSession) RemoveLocation(ctx context.Context, location string) error {
	return s.record(ctx, "removeLocation")
}

func (s *fakeSession) Medias(ctx context.Context) ([]types.MediaItem, error) {
	return []types.MediaItem{{Location: "/a.mp3"}}, s.record(ctx, "getMedias")
}

func (s *fakeSession) MediaLocations(ctx context.Context) ([]string, error) {
	return []string{"/a.mp3"}, s.record(ctx, "getMediaLocations")
}

func (s *fakeSession) CurrentMediaLocation(ctx context.Context) (string, error) {
	return "/a.mp3", s.record(ctx, "getCurrentMediaLocation")
}

func (s *fakeSession) CurrentMedia(ctx context.Context) (*types.MediaItem, error) {
	return &types.MediaItem{Location: "/a.mp3"}, s.record(ctx, "getCurrentMedia")
}

func (s *fakeSession) Stop(ctx context.Context) error       { return s.record(ctx, "stop") }
func (s *fakeSession) Play(ctx context.Context) error       { return s.record(ctx, "play") }
func (s *fakeSession) Pause(ctx context.Context) error      { return s.record(ctx, "pause") }
func (s *fakeSession) Next(ctx context.Context) error       { return s.record(ctx, "next") }
func (s *fakeSession) Previous(ctx context.Context) error   { return s.record(ctx, "previous") }
func (s *fakeSession) HandleVout(ctx context.Context) error { return s.record(ctx, "handleVout") }
func (s *fakeSession) Shuffle(ctx context.Context) error    { return s.record(ctx, "shuffle") }

func (s *fakeSession) PlayIndex(ctx context.Context, index int) error {
	return s.record(ctx, "playIndex")
}

func (s *fakeSession) ShowWithoutParse(ctx context.Context, index int) error {
	return s.record(ctx, "showWithoutParse")
}

func (s *fakeSession) SetTime(ctx context.Context, ms int64) error {
	return s.record(ctx, "setTime")
}

func (s *fakeSession) Album(ctx context.Context) (string, error) {
	return "album", s.record(ctx, "getAlbum")
}

func (s *fakeSession) Artist(ctx context.Context) (string, error) {
	return "artist", s.record(ctx, "getArtist")
}

func (s *fakeSession) ArtistPrev(ctx context.Context) (string, error) {
	return "artistPrev", s.record(ctx, "getArtistPrev")
}

func (s *fakeSession) ArtistNext(ctx context.Context) (string, error) {
	return "artistNext", s.record(ctx, "getArtistNext")
}

func (s *fakeSession) Title(ctx context.Context) (string, error) {
	return "title", s.record(ctx, "getTitle")
}

func (s *fakeSession) TitlePrev(ctx context.Context) (string, error) {
	return "titlePrev", s.record(ctx, "getTitlePrev")
}

func (s *fakeSession) TitleNext(ctx context.Context) (string, error) {
	return "titleNext", s.record(ctx, "getTitleNext")
}

func (s *fakeSession) Cover(ctx context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), s.record(ctx, "getCover")
}

func (s *fakeSession) CoverPrev(ctx context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), s.record(ctx, "getCoverPrev")
}

func (s *fakeSession) CoverNext(ctx context.Context) (image.Image, error) {
	return image.NewRGBA(image.Rect(0, 0, 1, 1)), s.record(ctx, "getCoverNext")
}

func (s *fakeSession) IsPlaying(ctx context.Context) (bool, error) {
	s.mu.Lock()
	playing := s.playing
	s.mu.Unlock()
	return playing, s.record(ctx, "isPlaying")
}

func (s *fakeSession) HasMedia(ctx context.Context) (bool, error) {
	s.mu.Lock()
	has := s.hasMedia
	s.mu.Unlock()
	return has, s.record(ctx, "hasMedia")
}

func (s *fakeSession) HasNext(ctx context.Context) (bool, error) {
	return true, s.record(ctx, "hasNext")
}

func (s *fakeSession) HasPrevious(ctx context.Context) (bool, error) {
	return true, s.record(ctx, "hasPrevious")
}

func (s *fakeSession) Length(ctx context.Context) (int64, error) {
	return 180000, s.record(ctx, "getLength")
}

func (s *fakeSession) Time(ctx context.Context) (int64, error) {
	return 42000, s.record(ctx, "getTime")
}

func (s *fakeSession) Rate(ctx context.Context) (float64, error) {
	return 2.0, s.record(ctx, "getRate")
}

func (s *fakeSession) IsShuffling(ctx context.Context) (bool, error) {
	return true, s.record(ctx, "isShuffling")
}

func (s *fakeSession) SetRepeatType(ctx context.Context, t types.RepeatType) error {
	return s.record(ctx, "setRepeatType")
}

func (s *fakeSession) RepeatType(ctx context.Context) (types.RepeatType, error) {
	return types.RepeatAll, s.record(ctx, "getRepeatType")
}

func (s *fakeSession) DetectHeadset(ctx context.Context, enabled bool) error {
	if err := s.record(ctx, "detectHeadset"); err != nil {
		return err
	}
	s.mu.Lock()
	s.headset = append(s.headset, enabled)
	s.mu.Unlock()
	return nil
}

func (s *fakeSession) AddCallback(ctx context.Context) error {
	return s.record(ctx, "addCallback")
}

func (s *fakeSession) RemoveCallback(ctx context.Context) error {
	return s.record(ctx, "removeCallback")
}

// fakeConnector hands out sessions. With gate set, Connect waits for it to close.
type fakeConnector struct {
	mu           sync.Mutex
	connects     int
	sessions     []*fakeSession
	next         func() *fakeSession
	err          error
	gate         chan struct{}
	ignoreCancel bool
}

func newFakeConnector() *fakeConnector {
	return &fakeConnector{next: newFakeSession}
}

func (f *fakeConnector) Connect(ctx context.Context, sink remote.Callback, onDisconnect func(error)) (remote.Session, error) {
	f.mu.Lock()
	f.connects++
	gate, err, ignoreCancel := f.gate, f.err, f.ignoreCancel
	f.mu.Unlock()

	if gate != nil {
		if ignoreCancel {
			<-gate
		} else {
			select {
			case <-gate:
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	if err != nil {
		return nil, err
	}

	s := f.next()
	s.sink = sink
	s.onDisconnect = onDisconnect

	f.mu.Lock()
	f.sessions = append(f.sessions, s)
	f.mu.Unlock()
	return s, nil
}

func (f *fakeConnector) connectCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connects
}

func (f *fakeConnector) session(i int) *fakeSession {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.sessions) {
		return nil
	}
	return f.sessions[i]
}

// connListener records bind outcomes
type connListener struct {
	done    chan bool
	mu      sync.Mutex
	success int
	failed  int
}

func newConnListener() *connListener {
	return &connListener{done: make(chan bool, 8)}
}

func (l *connListener) OnConnectionSuccess() {
	l.mu.Lock()
	l.success++
	l.mu.Unlock()
	l.done <- true
}

func (l *connListener) OnConnectionFailed() {
	l.mu.Lock()
	l.failed++
	l.mu.Unlock()
	l.done <- false
}

func (l *connListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.success, l.failed
}

type player struct {
	name     string
	log      *eventLog
	onUpdate func()
}

func (p *player) Update() {
	p.log.add(p.name + ":update")
	if p.onUpdate != nil {
		p.onUpdate()
	}
}

func (p *player) UpdateProgress() {
	p.log.add(p.name + ":progress")
}

type mediaListener struct {
	name  string
	log   *eventLog
	items []types.MediaItem
}

func (m *mediaListener) OnMediaPlayedAdded(item types.MediaItem, index int) {
	m.items = append(m.items, item)
	m.log.add(m.name + ":added")
}

func (m *mediaListener) OnMediaPlayedRemoved(index int) {
	m.log.add(m.name + ":removed")
}

type panicker struct{}

func (panicker) Update()                                 { panic("update") }
func (panicker) UpdateProgress()                         { panic("progress") }
func (panicker) OnMediaPlayedAdded(types.MediaItem, int) { panic("added") }
func (panicker) OnMediaPlayedRemoved(int)                { panic("removed") }

type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	l.events = append(l.events, e)
	l.mu.Unlock()
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

type prefs bool

func (p prefs) HeadsetDetection() bool { return bool(p) }
