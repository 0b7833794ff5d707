package media

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/austinkregel/local-media/playbackclient/internal/client"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// Controller is the part of client.Client the bridge drives
type Controller interface {
	HasMedia(ctx context.Context) bool
	IsPlaying(ctx context.Context) bool
	CurrentMedia(ctx context.Context) *types.MediaItem
	Length(ctx context.Context) int64
	Time(ctx context.Context) int64
	IsShuffling(ctx context.Context) bool
	RepeatType(ctx context.Context) types.RepeatType
	Cover(ctx context.Context) image.Image

	Play(ctx context.Context)
	Pause(ctx context.Context)
	Stop(ctx context.Context)
	Next(ctx context.Context)
	Previous(ctx context.Context)
	SetTime(ctx context.Context, ms int64)
	Shuffle(ctx context.Context)
	SetRepeatType(ctx context.Context, t types.RepeatType)
}

var (
	_ Controller         = (*client.Client)(nil)
	_ client.AudioPlayer = (*Bridge)(nil)
	_ CommandHandler     = (*Bridge)(nil)
)

// BridgeOptions configures a Bridge
type BridgeOptions struct {
	// CoverDir receives PNG copies of service covers for items without an art file.
	// Empty disables cover export.
	CoverDir string
}

// Bridge is an AudioPlayer that mirrors the service into an OS media session
// and turns the session's commands into client calls.
type Bridge struct {
	ctrl     Controller
	session  Session
	coverDir string

	mu          sync.Mutex
	artLocation string // item the cached art URL belongs to
	artURL      string
}

// NewBridge attaches to session as its command handler
func NewBridge(ctrl Controller, session Session, opts BridgeOptions) *Bridge {
	b := &Bridge{ctrl: ctrl, session: session, coverDir: opts.CoverDir}
	session.SetCommandHandler(b)
	return b
}

// Update republishes metadata, state and modes
func (b *Bridge) Update() {
	ctx := context.Background()

	meta := Metadata{}
	if item := b.ctrl.CurrentMedia(ctx); item != nil {
		meta = Metadata{
			Location: item.Location,
			Title:    item.DisplayTitle(),
			Artist:   item.Artist,
			Album:    item.Album,
			Length:   time.Duration(b.ctrl.Length(ctx)) * time.Millisecond,
			ArtURL:   b.art(ctx, *item),
		}
	}
	if err := b.session.UpdateMetadata(meta); err != nil {
		log.Printf("[MEDIA] Failed to update metadata: %v", err)
	}

	b.UpdateProgress()

	if err := b.session.UpdateShuffle(b.ctrl.IsShuffling(ctx)); err != nil {
		log.Printf("[MEDIA] Failed to update shuffle: %v", err)
	}
	if err := b.session.UpdateLoopStatus(LoopStatusFor(b.ctrl.RepeatType(ctx))); err != nil {
		log.Printf("[MEDIA] Failed to update loop status: %v", err)
	}
}

// UpdateProgress republishes the playback state and position
func (b *Bridge) UpdateProgress() {
	ctx := context.Background()

	state := StateStopped
	if b.ctrl.HasMedia(ctx) {
		state = StatePaused
		if b.ctrl.IsPlaying(ctx) {
			state = StatePlaying
		}
	}
	pos := time.Duration(b.ctrl.Time(ctx)) * time.Millisecond
	if err := b.session.UpdatePlaybackState(state, pos); err != nil {
		log.Printf("[MEDIA] Failed to update playback state: %v", err)
	}
}

// art returns the art URL for item, exporting the service's cover when needed
func (b *Bridge) art(ctx context.Context, item types.MediaItem) string {
	if item.ArtPath != "" {
		return fileURL(item.ArtPath)
	}
	if b.coverDir == "" {
		return ""
	}

	b.mu.Lock()
	if b.artLocation == item.Location {
		cached := b.artURL
		b.mu.Unlock()
		return cached
	}
	b.mu.Unlock()

	artURL := ""
	if img := b.ctrl.Cover(ctx); img != nil {
		path, err := b.exportCover(item.Location, img)
		if err != nil {
			log.Printf("[MEDIA] Failed to export cover for %s: %v", item.Location, err)
		} else {
			artURL = fileURL(path)
		}
	}

	b.mu.Lock()
	b.artLocation = item.Location
	b.artURL = artURL
	b.mu.Unlock()
	return artURL
}

func (b *Bridge) exportCover(location string, img image.Image) (string, error) {
	if err := os.MkdirAll(b.coverDir, 0755); err != nil {
		return "", err
	}
	name := uuid.NewSHA1(uuid.NameSpaceURL, []byte(location)).String() + ".png"
	path := filepath.Join(b.coverDir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

// OnCommand forwards an OS media command to the service
func (b *Bridge) OnCommand(cmd Command, data interface{}) error {
	ctx := context.Background()
	log.Printf("[MEDIA] Command %s", cmd)

	switch cmd {
	case CmdPlay:
		b.ctrl.Play(ctx)
	case CmdPause:
		b.ctrl.Pause(ctx)
	case CmdPlayPause:
		if b.ctrl.IsPlaying(ctx) {
			b.ctrl.Pause(ctx)
		} else {
			b.ctrl.Play(ctx)
		}
	case CmdStop:
		b.ctrl.Stop(ctx)
	case CmdNext:
		b.ctrl.Next(ctx)
	case CmdPrevious:
		b.ctrl.Previous(ctx)
	case CmdSeek:
		pos, ok := data.(time.Duration)
		if !ok {
			return fmt.Errorf("seek: expected time.Duration, got %T", data)
		}
		b.ctrl.SetTime(ctx, pos.Milliseconds())
	case CmdSetShuffle:
		enabled, ok := data.(bool)
		if !ok {
			return fmt.Errorf("shuffle: expected bool, got %T", data)
		}
		// the service only toggles
		if b.ctrl.IsShuffling(ctx) != enabled {
			b.ctrl.Shuffle(ctx)
		}
	case CmdSetLoopStatus:
		status, ok := data.(LoopStatus)
		if !ok {
			return fmt.Errorf("loop status: expected LoopStatus, got %T", data)
		}
		b.ctrl.SetRepeatType(ctx, status.RepeatType())
	default:
		return fmt.Errorf("unsupported command %s", cmd)
	}
	return nil
}
