package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg" // covers served unconverted by other services
	_ "image/png"  // covers
	"log"

	"github.com/austinkregel/local-media/playbackclient/internal/ipc"
	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// Client implements Session over an ipc.Conn
type Client struct {
	conn *ipc.Conn

	// onUnauthorized runs when the service rejects the session token
	onUnauthorized func()
}

// NewClient wraps an authenticated connection
func NewClient(conn *ipc.Conn) *Client {
	return &Client{conn: conn}
}

// Close closes the underlying connection
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) call(ctx context.Context, cmd ipc.CommandType, data interface{}) error {
	err := c.conn.Call(ctx, cmd, data, nil)
	c.checkAuth(err)
	return err
}

func (c *Client) checkAuth(err error) {
	if err != nil && errors.Is(err, ipc.ErrUnauthorized) && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

func query[T any](ctx context.Context, c *Client, cmd ipc.CommandType) (T, error) {
	var v T
	err := c.conn.Call(ctx, cmd, nil, &v)
	c.checkAuth(err)
	return v, err
}

func (c *Client) Load(ctx context.Context, items []types.MediaItem, position int, forceAudio bool) error {
	return c.call(ctx, ipc.CmdLoad, ipc.LoadRequest{Items: items, Position: position, ForceAudio: forceAudio})
}

func (c *Client) LoadLocations(ctx context.Context, locations []string, position int) error {
	return c.call(ctx, ipc.CmdLoadLocations, ipc.LoadLocationsRequest{Locations: locations, Position: position})
}

func (c *Client) Append(ctx context.Context, items []types.MediaItem) error {
	return c.call(ctx, ipc.CmdAppend, ipc.AppendRequest{Items: items})
}

func (c *Client) MoveItem(ctx context.Context, from, to int) error {
	return c.call(ctx, ipc.CmdMoveItem, ipc.MoveItemRequest{FromIndex: from, ToIndex: to})
}

func (c *Client) Remove(ctx context.Context, position int) error {
	return c.call(ctx, ipc.CmdRemove, ipc.IndexRequest{Index: position})
}

func (c *Client) RemoveLocation(ctx context.Context, location string) error {
	return c.call(ctx, ipc.CmdRemoveLocation, ipc.LocationRequest{Location: location})
}

func (c *Client) Medias(ctx context.Context) ([]types.MediaItem, error) {
	return query[[]types.MediaItem](ctx, c, ipc.CmdGetMedias)
}

func (c *Client) MediaLocations(ctx context.Context) ([]string, error) {
	return query[[]string](ctx, c, ipc.CmdGetLocations)
}

func (c *Client) CurrentMediaLocation(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetLocation)
}

func (c *Client) CurrentMedia(ctx context.Context) (*types.MediaItem, error) {
	return query[*types.MediaItem](ctx, c, ipc.CmdGetCurrent)
}

func (c *Client) Stop(ctx context.Context) error     { return c.call(ctx, ipc.CmdStop, nil) }
func (c *Client) Play(ctx context.Context) error     { return c.call(ctx, ipc.CmdPlay, nil) }
func (c *Client) Pause(ctx context.Context) error    { return c.call(ctx, ipc.CmdPause, nil) }
func (c *Client) Next(ctx context.Context) error     { return c.call(ctx, ipc.CmdNext, nil) }
func (c *Client) Previous(ctx context.Context) error { return c.call(ctx, ipc.CmdPrevious, nil) }

func (c *Client) PlayIndex(ctx context.Context, index int) error {
	return c.call(ctx, ipc.CmdPlayIndex, ipc.IndexRequest{Index: index})
}

func (c *Client) ShowWithoutParse(ctx context.Context, index int) error {
	return c.call(ctx, ipc.CmdShowWithoutParse, ipc.IndexRequest{Index: index})
}

func (c *Client) SetTime(ctx context.Context, ms int64) error {
	return c.call(ctx, ipc.CmdSetTime, ipc.SetTimeRequest{Time: ms})
}

func (c *Client) HandleVout(ctx context.Context) error { return c.call(ctx, ipc.CmdHandleVout, nil) }

func (c *Client) Album(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetAlbum)
}

func (c *Client) Artist(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetArtist)
}

func (c *Client) ArtistPrev(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetArtistPrev)
}

func (c *Client) ArtistNext(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetArtistNext)
}

func (c *Client) Title(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetTitle)
}

func (c *Client) TitlePrev(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetTitlePrev)
}

func (c *Client) TitleNext(ctx context.Context) (string, error) {
	return query[string](ctx, c, ipc.CmdGetTitleNext)
}

func (c *Client) Cover(ctx context.Context) (image.Image, error) {
	return c.cover(ctx, ipc.CmdGetCover)
}

func (c *Client) CoverPrev(ctx context.Context) (image.Image, error) {
	return c.cover(ctx, ipc.CmdGetCoverPrev)
}

func (c *Client) CoverNext(ctx context.Context) (image.Image, error) {
	return c.cover(ctx, ipc.CmdGetCoverNext)
}

// cover decodes the cover art of a response; no data means no cover
func (c *Client) cover(ctx context.Context, cmd ipc.CommandType) (image.Image, error) {
	resp, err := query[*ipc.CoverResponse](ctx, c, cmd)
	if err != nil || resp == nil || len(resp.Data) == 0 {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(resp.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s image (%s): %w", cmd, resp.MIMEType, err)
	}
	return img, nil
}

func (c *Client) IsPlaying(ctx context.Context) (bool, error) {
	return query[bool](ctx, c, ipc.CmdIsPlaying)
}

func (c *Client) HasMedia(ctx context.Context) (bool, error) {
	return query[bool](ctx, c, ipc.CmdHasMedia)
}

func (c *Client) HasNext(ctx context.Context) (bool, error) {
	return query[bool](ctx, c, ipc.CmdHasNext)
}

func (c *Client) HasPrevious(ctx context.Context) (bool, error) {
	return query[bool](ctx, c, ipc.CmdHasPrevious)
}

func (c *Client) Length(ctx context.Context) (int64, error) {
	return query[int64](ctx, c, ipc.CmdGetLength)
}

func (c *Client) Time(ctx context.Context) (int64, error) {
	return query[int64](ctx, c, ipc.CmdGetTime)
}

func (c *Client) Rate(ctx context.Context) (float64, error) {
	return query[float64](ctx, c, ipc.CmdGetRate)
}

func (c *Client) Shuffle(ctx context.Context) error { return c.call(ctx, ipc.CmdShuffle, nil) }

func (c *Client) IsShuffling(ctx context.Context) (bool, error) {
	return query[bool](ctx, c, ipc.CmdIsShuffling)
}

func (c *Client) SetRepeatType(ctx context.Context, t types.RepeatType) error {
	return c.call(ctx, ipc.CmdSetRepeatType, ipc.SetRepeatRequest{Mode: t.String()})
}

func (c *Client) RepeatType(ctx context.Context) (types.RepeatType, error) {
	mode, err := query[string](ctx, c, ipc.CmdGetRepeatType)
	if err != nil {
		return types.RepeatNone, err
	}
	return types.ParseRepeatType(mode), nil
}

func (c *Client) DetectHeadset(ctx context.Context, enabled bool) error {
	return c.call(ctx, ipc.CmdDetectHeadset, ipc.DetectHeadsetRequest{Enabled: enabled})
}

func (c *Client) AddCallback(ctx context.Context) error {
	return c.call(ctx, ipc.CmdAddCallback, nil)
}

func (c *Client) RemoveCallback(ctx context.Context) error {
	return c.call(ctx, ipc.CmdRemoveCallback, nil)
}

// pushHandler relays push messages to sink
func pushHandler(sink Callback) ipc.PushHandler {
	return func(msg *ipc.PushMessage) {
		if sink == nil {
			return
		}
		switch msg.Type {
		case ipc.PushUpdate:
			sink.Update()
		case ipc.PushUpdateProgress:
			sink.UpdateProgress()
		case ipc.PushMediaAdded:
			var p ipc.MediaPlayedAddedPush
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				log.Printf("[IPC] Invalid %s push: %v", msg.Type, err)
				return
			}
			sink.MediaPlayedAdded(p.Item, p.Index)
		case ipc.PushMediaRemoved:
			var p ipc.MediaPlayedRemovedPush
			if err := json.Unmarshal(msg.Data, &p); err != nil {
				log.Printf("[IPC] Invalid %s push: %v", msg.Type, err)
				return
			}
			sink.MediaPlayedRemoved(p.Index)
		default:
			log.Printf("[IPC] Ignoring unknown push %q", msg.Type)
		}
	}
}
