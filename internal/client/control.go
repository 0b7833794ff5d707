package client

import (
	"context"
	"image"
	"log"

	"github.com/austinkregel/local-media/playbackclient/internal/remote"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// call runs fn on the current session. Without a session, or when fn fails,
// the failure is logged and fallback is returned.
func call[T any](c *Client, ctx context.Context, op string, fallback T, fn func(context.Context, remote.Session) (T, error)) T {
	session := c.currentSession()
	if session == nil {
		return fallback
	}

	ctx, cancel := c.callContext(ctx)
	defer cancel()

	v, err := fn(ctx, session)
	if err != nil {
		log.Printf("[CLIENT] remote procedure call failed: %s(): %v", op, err)
		return fallback
	}
	return v
}

// do is call for operations without a result
func (c *Client) do(ctx context.Context, op string, fn func(context.Context, remote.Session) error) {
	call(c, ctx, op, struct{}{}, func(ctx context.Context, s remote.Session) (struct{}, error) {
		return struct{}{}, fn(ctx, s)
	})
}

func text(c *Client, ctx context.Context, op string, fn func(remote.Session, context.Context) (string, error)) string {
	return call(c, ctx, op, "", func(ctx context.Context, s remote.Session) (string, error) {
		return fn(s, ctx)
	})
}

func flag(c *Client, ctx context.Context, op string, fn func(remote.Session, context.Context) (bool, error)) bool {
	return call(c, ctx, op, false, func(ctx context.Context, s remote.Session) (bool, error) {
		return fn(s, ctx)
	})
}

func picture(c *Client, ctx context.Context, op string, fn func(remote.Session, context.Context) (image.Image, error)) image.Image {
	return call[image.Image](c, ctx, op, nil, func(ctx context.Context, s remote.Session) (image.Image, error) {
		return fn(s, ctx)
	})
}

func (c *Client) simple(ctx context.Context, op string, fn func(remote.Session, context.Context) error) {
	c.do(ctx, op, func(ctx context.Context, s remote.Session) error {
		return fn(s, ctx)
	})
}

// LoadLocation replaces the queue with a single location and plays it
func (c *Client) LoadLocation(ctx context.Context, location string) {
	c.LoadLocations(ctx, []string{location}, 0)
}

// LoadLocations replaces the queue with locations and plays the one at position
func (c *Client) LoadLocations(ctx context.Context, locations []string, position int) {
	c.do(ctx, "loadLocations", func(ctx context.Context, s remote.Session) error {
		return s.LoadLocations(ctx, locations, position)
	})
}

// LoadMedia replaces the queue with item and plays it
func (c *Client) LoadMedia(ctx context.Context, item types.MediaItem, forceAudio bool) {
	c.Load(ctx, []types.MediaItem{item}, 0, forceAudio)
}

// Load replaces the queue with items and plays the one at position.
// forceAudio plays video media without a video output.
func (c *Client) Load(ctx context.Context, items []types.MediaItem, position int, forceAudio bool) {
	c.do(ctx, "load", func(ctx context.Context, s remote.Session) error {
		return s.Load(ctx, items, position, forceAudio)
	})
}

// Append adds item to the end of the queue
func (c *Client) Append(ctx context.Context, item types.MediaItem) {
	c.AppendAll(ctx, []types.MediaItem{item})
}

// AppendAll adds items to the end of the queue
func (c *Client) AppendAll(ctx context.Context, items []types.MediaItem) {
	c.do(ctx, "append", func(ctx context.Context, s remote.Session) error {
		return s.Append(ctx, items)
	})
}

// MoveItem moves the queue item at from so it ends up before the item at to
func (c *Client) MoveItem(ctx context.Context, from, to int) {
	c.do(ctx, "moveItem", func(ctx context.Context, s remote.Session) error {
		return s.MoveItem(ctx, from, to)
	})
}

// Remove removes the queue item at position
func (c *Client) Remove(ctx context.Context, position int) {
	c.do(ctx, "remove", func(ctx context.Context, s remote.Session) error {
		return s.Remove(ctx, position)
	})
}

// RemoveLocation removes every queue item with location
func (c *Client) RemoveLocation(ctx context.Context, location string) {
	c.do(ctx, "removeLocation", func(ctx context.Context, s remote.Session) error {
		return s.RemoveLocation(ctx, location)
	})
}

// Medias returns the queue, or nil
func (c *Client) Medias(ctx context.Context) []types.MediaItem {
	return call[[]types.MediaItem](c, ctx, "getMedias", nil, func(ctx context.Context, s remote.Session) ([]types.MediaItem, error) {
		return s.Medias(ctx)
	})
}

// MediaLocations returns the location of every queue item
func (c *Client) MediaLocations(ctx context.Context) []string {
	return call(c, ctx, "getMediaLocations", []string{}, func(ctx context.Context, s remote.Session) ([]string, error) {
		return s.MediaLocations(ctx)
	})
}

// CurrentMediaLocation returns the location of the current item, or ""
func (c *Client) CurrentMediaLocation(ctx context.Context) string {
	return text(c, ctx, "getCurrentMediaLocation", remote.Session.CurrentMediaLocation)
}

// CurrentMedia returns the current item, or nil
func (c *Client) CurrentMedia(ctx context.Context) *types.MediaItem {
	return call[*types.MediaItem](c, ctx, "getCurrentMedia", nil, func(ctx context.Context, s remote.Session) (*types.MediaItem, error) {
		return s.CurrentMedia(ctx)
	})
}

// Stop stops playback and rewinds the current item
func (c *Client) Stop(ctx context.Context) {
	c.simple(ctx, "stop", remote.Session.Stop)
}

// Play resumes playback
func (c *Client) Play(ctx context.Context) {
	c.simple(ctx, "play", remote.Session.Play)
}

// Pause pauses playback
func (c *Client) Pause(ctx context.Context) {
	c.simple(ctx, "pause", remote.Session.Pause)
}

// Next skips to the next queue item
func (c *Client) Next(ctx context.Context) {
	c.simple(ctx, "next", remote.Session.Next)
}

// Previous restarts the current item or goes back one
func (c *Client) Previous(ctx context.Context) {
	c.simple(ctx, "previous", remote.Session.Previous)
}

// Shuffle toggles shuffle mode
func (c *Client) Shuffle(ctx context.Context) {
	c.simple(ctx, "shuffle", remote.Session.Shuffle)
}

// HandleVout tells the service a video output went away
func (c *Client) HandleVout(ctx context.Context) {
	c.simple(ctx, "handleVout", remote.Session.HandleVout)
}

// ShowWithoutParse makes the queue item at index current without playing it
func (c *Client) ShowWithoutParse(ctx context.Context, index int) {
	c.do(ctx, "showWithoutParse", func(ctx context.Context, s remote.Session) error {
		return s.ShowWithoutParse(ctx, index)
	})
}

// PlayIndex plays the queue item at index
func (c *Client) PlayIndex(ctx context.Context, index int) {
	c.do(ctx, "playIndex", func(ctx context.Context, s remote.Session) error {
		return s.PlayIndex(ctx, index)
	})
}

// Album returns the album of the current item
func (c *Client) Album(ctx context.Context) string {
	return text(c, ctx, "getAlbum", remote.Session.Album)
}

// Artist returns the artist of the current item
func (c *Client) Artist(ctx context.Context) string {
	return text(c, ctx, "getArtist", remote.Session.Artist)
}

// ArtistPrev returns the artist of the previous item
func (c *Client) ArtistPrev(ctx context.Context) string {
	return text(c, ctx, "getArtistPrev", remote.Session.ArtistPrev)
}

// ArtistNext returns the artist of the next item
func (c *Client) ArtistNext(ctx context.Context) string {
	return text(c, ctx, "getArtistNext", remote.Session.ArtistNext)
}

// Title returns the title of the current item
func (c *Client) Title(ctx context.Context) string {
	return text(c, ctx, "getTitle", remote.Session.Title)
}

// TitlePrev returns the title of the previous item
func (c *Client) TitlePrev(ctx context.Context) string {
	return text(c, ctx, "getTitlePrev", remote.Session.TitlePrev)
}

// TitleNext returns the title of the next item
func (c *Client) TitleNext(ctx context.Context) string {
	return text(c, ctx, "getTitleNext", remote.Session.TitleNext)
}

// IsPlaying reports whether the service has media and is playing it
func (c *Client) IsPlaying(ctx context.Context) bool {
	return call(c, ctx, "isPlaying", false, func(ctx context.Context, s remote.Session) (bool, error) {
		has, err := s.HasMedia(ctx)
		if err != nil || !has {
			return false, err
		}
		return s.IsPlaying(ctx)
	})
}

// HasMedia reports whether the service has a current item
func (c *Client) HasMedia(ctx context.Context) bool {
	return flag(c, ctx, "hasMedia", remote.Session.HasMedia)
}

// HasNext reports whether there is an item after the current one
func (c *Client) HasNext(ctx context.Context) bool {
	return flag(c, ctx, "hasNext", remote.Session.HasNext)
}

// HasPrevious reports whether there is an item before the current one
func (c *Client) HasPrevious(ctx context.Context) bool {
	return flag(c, ctx, "hasPrevious", remote.Session.HasPrevious)
}

// IsShuffling reports whether shuffle mode is on
func (c *Client) IsShuffling(ctx context.Context) bool {
	return flag(c, ctx, "isShuffling", remote.Session.IsShuffling)
}

// Length returns the current media length in ms, 0 if unknown
func (c *Client) Length(ctx context.Context) int64 {
	return call(c, ctx, "getLength", 0, func(ctx context.Context, s remote.Session) (int64, error) {
		return s.Length(ctx)
	})
}

// Time returns the playback position in ms
func (c *Client) Time(ctx context.Context) int64 {
	return call(c, ctx, "getTime", 0, func(ctx context.Context, s remote.Session) (int64, error) {
		return s.Time(ctx)
	})
}

// SetTime seeks to ms
func (c *Client) SetTime(ctx context.Context, ms int64) {
	c.do(ctx, "setTime", func(ctx context.Context, s remote.Session) error {
		return s.SetTime(ctx, ms)
	})
}

// Cover returns the current item's cover, or nil
func (c *Client) Cover(ctx context.Context) image.Image {
	return picture(c, ctx, "getCover", remote.Session.Cover)
}

// CoverPrev returns the previous item's cover, or nil
func (c *Client) CoverPrev(ctx context.Context) image.Image {
	return picture(c, ctx, "getCoverPrev", remote.Session.CoverPrev)
}

// CoverNext returns the next item's cover, or nil
func (c *Client) CoverNext(ctx context.Context) image.Image {
	return picture(c, ctx, "getCoverNext", remote.Session.CoverNext)
}

// SetRepeatType sets the queue repeat mode
func (c *Client) SetRepeatType(ctx context.Context, t types.RepeatType) {
	c.do(ctx, "setRepeatType", func(ctx context.Context, s remote.Session) error {
		return s.SetRepeatType(ctx, t)
	})
}

// RepeatType returns the queue repeat mode
func (c *Client) RepeatType(ctx context.Context) types.RepeatType {
	return call(c, ctx, "getRepeatType", types.RepeatNone, func(ctx context.Context, s remote.Session) (types.RepeatType, error) {
		return s.RepeatType(ctx)
	})
}

// DetectHeadset switches pausing on headset unplug
func (c *Client) DetectHeadset(ctx context.Context, enabled bool) {
	c.do(ctx, "detectHeadset", func(ctx context.Context, s remote.Session) error {
		return s.DetectHeadset(ctx, enabled)
	})
}

// Rate returns the playback rate, 1.0 when unknown
func (c *Client) Rate(ctx context.Context) float64 {
	return call(c, ctx, "getRate", 1.0, func(ctx context.Context, s remote.Session) (float64, error) {
		return s.Rate(ctx)
	})
}
