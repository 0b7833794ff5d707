//go:build !windows

package remote

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/austinkregel/local-media/playbackclient/internal/auth"
	"github.com/austinkregel/local-media/playbackclient/internal/ipc"
	"github.com/austinkregel/local-media/playbackclient/internal/playback"
	"github.com/austinkregel/local-media/playbackclient/internal/queue"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

type testService struct {
	engine *playback.Engine
	socket string
	dir    string
}

func startService(t *testing.T) *testService {
	t.Helper()
	dir := t.TempDir()

	store, err := auth.NewStore(filepath.Join(dir, "clients.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	engine := playback.NewEngine(queue.NewManager(), playback.Options{CoverSize: 8})
	socket := filepath.Join(dir, "musicd.sock")
	srv := ipc.NewServer(socket, auth.NewManager(store, true), engine)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	return &testService{engine: engine, socket: socket, dir: dir}
}

func (s *testService) dialer() *Dialer {
	return &Dialer{
		SocketPath: s.socket,
		ClientName: "remote-test",
		Tokens:     &auth.TokenFile{Path: filepath.Join(s.dir, "token")},
	}
}

type sinkEvent struct {
	kind  string
	item  types.MediaItem
	index int
}

type recordingSink struct {
	mu     sync.Mutex
	events []sinkEvent
}

func (s *recordingSink) add(e sinkEvent) {
	s.mu.Lock()
	s.events = append(s.events, e)
	s.mu.Unlock()
}

func (s *recordingSink) Update()         { s.add(sinkEvent{kind: "update"}) }
func (s *recordingSink) UpdateProgress() { s.add(sinkEvent{kind: "progress"}) }
func (s *recordingSink) MediaPlayedAdded(item types.MediaItem, index int) {
	s.add(sinkEvent{kind: "added", item: item, index: index})
}
func (s *recordingSink) MediaPlayedRemoved(index int) {
	s.add(sinkEvent{kind: "removed", index: index})
}

func (s *recordingSink) of(kind string) []sinkEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []sinkEvent
	for _, e := range s.events {
		if e.kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func connect(t *testing.T, d *Dialer, sink Callback) Session {
	t.Helper()
	session, err := d.Connect(context.Background(), sink, nil)
	require.NoError(t, err)
	t.Cleanup(func() { session.Close() })
	return session
}

func TestConnectPairsAndCachesToken(t *testing.T) {
	svc := startService(t)
	d := svc.dialer()

	session := connect(t, d, nil)
	require.NoError(t, session.AddCallback(context.Background()))

	token, err := d.Tokens.Load()
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	// Second connect reuses the cached token
	again := connect(t, d, nil)
	require.NoError(t, again.AddCallback(context.Background()))
	cached, err := d.Tokens.Load()
	require.NoError(t, err)
	assert.Equal(t, token, cached)
}

func TestRejectedTokenIsCleared(t *testing.T) {
	svc := startService(t)
	d := svc.dialer()
	require.NoError(t, d.Tokens.Save("stale"))

	session := connect(t, d, nil)
	err := session.AddCallback(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ipc.ErrUnauthorized)

	token, err := d.Tokens.Load()
	require.NoError(t, err)
	assert.Empty(t, token)
}

func TestConnectFailsWithoutService(t *testing.T) {
	d := &Dialer{SocketPath: filepath.Join(t.TempDir(), "nobody.sock")}
	_, err := d.Connect(context.Background(), nil, nil)
	assert.Error(t, err)
}

func TestControlRoundTrip(t *testing.T) {
	svc := startService(t)
	s := connect(t, svc.dialer(), nil)
	ctx := context.Background()

	items := []types.MediaItem{
		{Location: "/music/a.mp3", Title: "Alpha", Artist: "Ann", Album: "First", Duration: 60000},
		{Location: "/music/b.mp3", Title: "Beta", Artist: "Bob", Duration: 60000},
		{Location: "/music/c.mp3", Artist: "Cat", Duration: 60000},
	}
	require.NoError(t, s.Load(ctx, items, 1, false))

	playing, err := s.IsPlaying(ctx)
	require.NoError(t, err)
	assert.True(t, playing)

	loc, err := s.CurrentMediaLocation(ctx)
	require.NoError(t, err)
	assert.Equal(t, "/music/b.mp3", loc)

	cur, err := s.CurrentMedia(ctx)
	require.NoError(t, err)
	require.NotNil(t, cur)
	assert.Equal(t, "Beta", cur.Title)

	title, _ := s.Title(ctx)
	prev, _ := s.TitlePrev(ctx)
	next, _ := s.TitleNext(ctx)
	assert.Equal(t, []string{"Beta", "Alpha", "c.mp3"}, []string{title, prev, next})

	artist, _ := s.Artist(ctx)
	artistPrev, _ := s.ArtistPrev(ctx)
	artistNext, _ := s.ArtistNext(ctx)
	assert.Equal(t, []string{"Bob", "Ann", "Cat"}, []string{artist, artistPrev, artistNext})

	require.NoError(t, s.PlayIndex(ctx, 0))
	album, err := s.Album(ctx)
	require.NoError(t, err)
	assert.Equal(t, "First", album)

	length, err := s.Length(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(60000), length)

	require.NoError(t, s.SetTime(ctx, 30000))
	require.NoError(t, s.Pause(ctx))
	pos, err := s.Time(ctx)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, pos, int64(30000))
	assert.Less(t, pos, int64(31000))

	rate, err := s.Rate(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1.0, rate)

	require.NoError(t, s.MoveItem(ctx, 2, 0))
	locs, err := s.MediaLocations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"/music/c.mp3", "/music/a.mp3", "/music/b.mp3"}, locs)

	require.NoError(t, s.SetRepeatType(ctx, types.RepeatAll))
	mode, err := s.RepeatType(ctx)
	require.NoError(t, err)
	assert.Equal(t, types.RepeatAll, mode)

	require.NoError(t, s.Shuffle(ctx))
	shuffling, err := s.IsShuffling(ctx)
	require.NoError(t, err)
	assert.True(t, shuffling)

	require.NoError(t, s.DetectHeadset(ctx, false))
	assert.False(t, svc.engine.HeadsetDetection())

	require.NoError(t, s.HandleVout(ctx))
	assert.False(t, svc.engine.VideoEnabled())

	require.NoError(t, s.Stop(ctx))
	playing, err = s.IsPlaying(ctx)
	require.NoError(t, err)
	assert.False(t, playing)
}

func TestRemoteErrorsSurface(t *testing.T) {
	svc := startService(t)
	s := connect(t, svc.dialer(), nil)
	ctx := context.Background()

	err := s.PlayIndex(ctx, 4)
	var remoteErr *ipc.RemoteError
	require.ErrorAs(t, err, &remoteErr)
	assert.Equal(t, ipc.CmdPlayIndex, remoteErr.Cmd)

	assert.Error(t, s.MoveItem(ctx, 0, 9))
	assert.Error(t, s.Load(ctx, nil, 0, false))

	cur, err := s.CurrentMedia(ctx)
	require.NoError(t, err)
	assert.Nil(t, cur)
}

func TestCoverIsDecoded(t *testing.T) {
	svc := startService(t)
	s := connect(t, svc.dialer(), nil)
	ctx := context.Background()

	album := filepath.Join(svc.dir, "album")
	require.NoError(t, os.MkdirAll(album, 0755))
	src := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			src.Set(x, y, color.RGBA{G: 180, A: 255})
		}
	}
	f, err := os.Create(filepath.Join(album, "folder.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, src))
	require.NoError(t, f.Close())

	require.NoError(t, s.LoadLocations(ctx, []string{filepath.Join(album, "track.mp3")}, 0))

	img, err := s.Cover(ctx)
	require.NoError(t, err)
	require.NotNil(t, img)
	assert.Equal(t, 8, img.Bounds().Dx())

	none, err := s.CoverNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestCallbackNotifications(t *testing.T) {
	svc := startService(t)
	sink := &recordingSink{}
	s := connect(t, svc.dialer(), sink)
	ctx := context.Background()

	require.NoError(t, s.AddCallback(ctx))

	item := types.MediaItem{Location: "/music/x.mp3", Title: "X"}
	require.NoError(t, s.Append(ctx, []types.MediaItem{item}))
	require.NoError(t, s.Append(ctx, []types.MediaItem{{Location: "/music/y.mp3"}}))
	require.NoError(t, s.Remove(ctx, 1))

	// One update per mutation, the last one sent after the removal
	assert.Eventually(t, func() bool {
		return len(sink.of("removed")) == 1 && len(sink.of("update")) == 3
	}, 2*time.Second, 10*time.Millisecond)

	added := sink.of("added")
	require.Len(t, added, 2)
	assert.Equal(t, item, added[0].item)
	assert.Equal(t, 0, added[0].index)
	assert.Equal(t, 1, added[1].index)
	assert.Equal(t, 1, sink.of("removed")[0].index)

	require.NoError(t, s.RemoveCallback(ctx))
	require.NoError(t, s.Shuffle(ctx))
	// A round trip after the shuffle guarantees any push would have arrived first
	_, err := s.IsShuffling(ctx)
	require.NoError(t, err)
	assert.Len(t, sink.of("update"), 3)
}

func TestDisconnectIsReported(t *testing.T) {
	dir := t.TempDir()
	store, err := auth.NewStore(filepath.Join(dir, "clients.db"))
	require.NoError(t, err)
	defer store.Close()

	socket := filepath.Join(dir, "musicd.sock")
	srv := ipc.NewServer(socket, auth.NewManager(store, true), playback.NewEngine(queue.NewManager(), playback.Options{}))
	require.NoError(t, srv.Listen())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		srv.Serve(ctx)
		close(done)
	}()

	disconnected := make(chan error, 1)
	d := &Dialer{SocketPath: socket, ClientName: "remote-test"}
	session, err := d.Connect(context.Background(), nil, func(err error) { disconnected <- err })
	require.NoError(t, err)
	defer session.Close()

	cancel()
	<-done

	select {
	case err := <-disconnected:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("disconnect was not reported")
	}

	_, err = session.IsPlaying(context.Background())
	assert.Error(t, err)
}
