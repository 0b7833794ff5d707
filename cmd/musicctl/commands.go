package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/adrg/xdg"

	"github.com/austinkregel/local-media/playbackclient/internal/client"
	"github.com/austinkregel/local-media/playbackclient/internal/config"
	"github.com/austinkregel/local-media/playbackclient/internal/media"
	"github.com/austinkregel/local-media/playbackclient/internal/playback"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// rebindInterval is how often long running commands check the connection
const rebindInterval = 2 * time.Second

type env struct {
	client *client.Client
	config *config.Manager
	out    io.Writer
}

type command func(ctx context.Context, e *env, args []string) error

var commands = map[string]command{
	"status":  status,
	"play":    simple((*client.Client).Play),
	"pause":   simple((*client.Client).Pause),
	"stop":    simple((*client.Client).Stop),
	"next":    simple((*client.Client).Next),
	"prev":    simple((*client.Client).Previous),
	"shuffle": simple((*client.Client).Shuffle),
	"load":    load,
	"append":  appendPaths,
	"remove":  remove,
	"move":    move,
	"queue":   listQueue,
	"seek":    seek,
	"repeat":  repeat,
	"headset": headset,
	"watch":   watch,
	"bridge":  bridge,
}

func simple(fn func(*client.Client, context.Context)) command {
	return func(ctx context.Context, e *env, args []string) error {
		if len(args) != 0 {
			return fmt.Errorf("%w: unexpected arguments", errUsage)
		}
		fn(e.client, ctx)
		return nil
	}
}

func status(ctx context.Context, e *env, _ []string) error {
	c := e.client
	if !c.HasMedia(ctx) {
		fmt.Fprintln(e.out, "nothing loaded")
		return nil
	}

	state := "paused"
	if c.IsPlaying(ctx) {
		state = "playing"
	}
	fmt.Fprintf(e.out, "%s - %s", c.Title(ctx), c.Artist(ctx))
	if album := c.Album(ctx); album != "" {
		fmt.Fprintf(e.out, " (%s)", album)
	}
	fmt.Fprintln(e.out)
	fmt.Fprintf(e.out, "%s %s / %s\n", state, clock(c.Time(ctx)), clock(c.Length(ctx)))
	fmt.Fprintf(e.out, "shuffle: %t  repeat: %s\n", c.IsShuffling(ctx), c.RepeatType(ctx))
	if next := c.TitleNext(ctx); next != "" {
		fmt.Fprintf(e.out, "next: %s - %s\n", next, c.ArtistNext(ctx))
	}
	return nil
}

func load(ctx context.Context, e *env, args []string) error {
	locations, err := absPaths(args)
	if err != nil {
		return err
	}
	e.client.LoadLocations(ctx, locations, 0)
	return nil
}

func appendPaths(ctx context.Context, e *env, args []string) error {
	locations, err := absPaths(args)
	if err != nil {
		return err
	}
	items := make([]types.MediaItem, 0, len(locations))
	for _, loc := range locations {
		items = append(items, playback.ReadMediaItem(loc))
	}
	e.client.AppendAll(ctx, items)
	return nil
}

func remove(ctx context.Context, e *env, args []string) error {
	idx, err := intArgs(args, 1)
	if err != nil {
		return err
	}
	e.client.Remove(ctx, idx[0])
	return nil
}

func move(ctx context.Context, e *env, args []string) error {
	idx, err := intArgs(args, 2)
	if err != nil {
		return err
	}
	e.client.MoveItem(ctx, idx[0], idx[1])
	return nil
}

func listQueue(ctx context.Context, e *env, _ []string) error {
	current := e.client.CurrentMediaLocation(ctx)
	for i, item := range e.client.Medias(ctx) {
		marker := " "
		if item.Location == current {
			marker = ">"
		}
		fmt.Fprintf(e.out, "%s %3d  %s", marker, i, item.DisplayTitle())
		if item.Artist != "" {
			fmt.Fprintf(e.out, " - %s", item.Artist)
		}
		if item.Duration > 0 {
			fmt.Fprintf(e.out, "  [%s]", clock(item.Duration))
		}
		fmt.Fprintln(e.out)
	}
	return nil
}

func seek(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: seek takes one position in ms", errUsage)
	}
	ms, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || ms < 0 {
		return fmt.Errorf("%w: invalid position %q", errUsage, args[0])
	}
	e.client.SetTime(ctx, ms)
	return nil
}

func repeat(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("%w: repeat takes one mode", errUsage)
	}
	mode := types.ParseRepeatType(args[0])
	if mode.String() != args[0] {
		return fmt.Errorf("%w: unknown repeat mode %q", errUsage, args[0])
	}
	e.client.SetRepeatType(ctx, mode)
	return nil
}

func headset(ctx context.Context, e *env, args []string) error {
	if len(args) != 1 || (args[0] != "on" && args[0] != "off") {
		return fmt.Errorf("%w: headset takes on or off", errUsage)
	}
	enabled := args[0] == "on"
	if err := e.config.SetHeadsetDetection(enabled); err != nil {
		return fmt.Errorf("failed to save preference: %w", err)
	}
	e.client.DetectHeadset(ctx, enabled)
	return nil
}

// printer writes notifications as they arrive
type printer struct {
	mu  sync.Mutex
	c   *client.Client
	out io.Writer
}

func (p *printer) Update() {
	ctx := context.Background()
	title, playing := p.c.Title(ctx), p.c.IsPlaying(ctx)
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "update: %q playing=%t\n", title, playing)
}

func (p *printer) UpdateProgress() {
	ms := p.c.Time(context.Background())
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "progress: %s\n", clock(ms))
}

func (p *printer) OnMediaPlayedAdded(item types.MediaItem, index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "added %d: %s\n", index, item.DisplayTitle())
}

func (p *printer) OnMediaPlayedRemoved(index int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "removed %d\n", index)
}

func watch(ctx context.Context, e *env, _ []string) error {
	p := &printer{c: e.client, out: e.out}
	e.client.AddAudioPlayer(p)
	e.client.AddMediaPlayedListener(p)
	defer e.client.RemoveAudioPlayer(p)
	defer e.client.RemoveMediaPlayedListener(p)

	p.Update()
	stayBound(ctx, e.client)
	return nil
}

func bridge(ctx context.Context, e *env, _ []string) error {
	session, err := media.NewSession("musicctl")
	if err != nil {
		return fmt.Errorf("failed to open media session: %w", err)
	}
	defer session.Close()

	b := media.NewBridge(e.client, session, media.BridgeOptions{
		CoverDir: filepath.Join(xdg.CacheHome, "musicd", "covers"),
	})
	e.client.AddAudioPlayer(b)
	defer e.client.RemoveAudioPlayer(b)

	b.Update()
	fmt.Fprintln(e.out, "bridging playback to the media session, interrupt to stop")
	stayBound(ctx, e.client)
	return nil
}

// stayBound rebinds whenever the service goes away, until ctx is done
func stayBound(ctx context.Context, c *client.Client) {
	ticker := time.NewTicker(rebindInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if c.State() == client.StateUnbound {
				c.Bind(ctx, nil)
			}
		}
	}
}

func absPaths(args []string) ([]string, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("%w: at least one path required", errUsage)
	}
	out := make([]string, 0, len(args))
	for _, a := range args {
		abs, err := filepath.Abs(a)
		if err != nil {
			return nil, fmt.Errorf("invalid path %q: %w", a, err)
		}
		out = append(out, abs)
	}
	return out, nil
}

func intArgs(args []string, n int) ([]int, error) {
	if len(args) != n {
		return nil, fmt.Errorf("%w: expected %d index arguments", errUsage, n)
	}
	out := make([]int, n)
	for i, a := range args {
		v, err := strconv.Atoi(a)
		if err != nil || v < 0 {
			return nil, fmt.Errorf("%w: invalid index %q", errUsage, a)
		}
		out[i] = v
	}
	return out, nil
}

// clock formats ms as m:ss
func clock(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
