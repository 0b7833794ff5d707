// Package remote defines the playback service contract as seen by a client and
// implements it over an IPC connection.
package remote

import (
	"context"
	"image"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// Service is the set of operations a bound playback service answers.
// Every method is a single remote call; errors are transport, protocol or remote faults.
type Service interface {
	Load(ctx context.Context, items []types.MediaItem, position int, forceAudio bool) error
	LoadLocations(ctx context.Context, locations []string, position int) error
	Append(ctx context.Context, items []types.MediaItem) error
	MoveItem(ctx context.Context, from, to int) error
	Remove(ctx context.Context, position int) error
	RemoveLocation(ctx context.Context, location string) error
	Medias(ctx context.Context) ([]types.MediaItem, error)
	MediaLocations(ctx context.Context) ([]string, error)
	CurrentMediaLocation(ctx context.Context) (string, error)
	CurrentMedia(ctx context.Context) (*types.MediaItem, error)

	Stop(ctx context.Context) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	PlayIndex(ctx context.Context, index int) error
	ShowWithoutParse(ctx context.Context, index int) error
	SetTime(ctx context.Context, ms int64) error
	HandleVout(ctx context.Context) error

	Album(ctx context.Context) (string, error)
	Artist(ctx context.Context) (string, error)
	ArtistPrev(ctx context.Context) (string, error)
	ArtistNext(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	TitlePrev(ctx context.Context) (string, error)
	TitleNext(ctx context.Context) (string, error)
	Cover(ctx context.Context) (image.Image, error)
	CoverPrev(ctx context.Context) (image.Image, error)
	CoverNext(ctx context.Context) (image.Image, error)

	IsPlaying(ctx context.Context) (bool, error)
	HasMedia(ctx context.Context) (bool, error)
	HasNext(ctx context.Context) (bool, error)
	HasPrevious(ctx context.Context) (bool, error)
	Length(ctx context.Context) (int64, error)
	Time(ctx context.Context) (int64, error)
	Rate(ctx context.Context) (float64, error)

	Shuffle(ctx context.Context) error
	IsShuffling(ctx context.Context) (bool, error)
	SetRepeatType(ctx context.Context, t types.RepeatType) error
	RepeatType(ctx context.Context) (types.RepeatType, error)
	DetectHeadset(ctx context.Context, enabled bool) error

	// AddCallback starts delivery of notifications to the session's Callback
	AddCallback(ctx context.Context) error
	// RemoveCallback stops delivery of notifications
	RemoveCallback(ctx context.Context) error
}

// Callback receives the service's notifications, in the order they were sent
type Callback interface {
	Update()
	UpdateProgress()
	MediaPlayedAdded(item types.MediaItem, index int)
	MediaPlayedRemoved(index int)
}

// Session is a connected Service
type Session interface {
	Service
	// Close releases the connection. It is safe to call more than once.
	Close() error
}

// Connector opens sessions. Notifications for the session go to sink once
// AddCallback succeeds; onDisconnect is called if the service side goes away.
type Connector interface {
	Connect(ctx context.Context, sink Callback, onDisconnect func(error)) (Session, error)
}
