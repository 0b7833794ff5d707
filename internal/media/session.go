// Package media mirrors the playback service into the OS media session.
//
// On linux the session is MPRIS over the D-Bus session bus. Other platforms
// get a session that does nothing.
package media

import (
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

// PlaybackState is the state shown by the OS media controls
type PlaybackState int

const (
	StateStopped PlaybackState = iota
	StatePlaying
	StatePaused
)

// Metadata describes the current item for the OS media controls
type Metadata struct {
	Location string
	Title    string
	Artist   string
	Album    string
	Length   time.Duration
	ArtURL   string
}

// LoopStatus is the MPRIS name of a repeat mode
type LoopStatus string

const (
	LoopNone     LoopStatus = "None"
	LoopTrack    LoopStatus = "Track"
	LoopPlaylist LoopStatus = "Playlist"
)

// LoopStatusFor maps a queue repeat mode to its loop status
func LoopStatusFor(t types.RepeatType) LoopStatus {
	switch t {
	case types.RepeatOnce:
		return LoopTrack
	case types.RepeatAll:
		return LoopPlaylist
	default:
		return LoopNone
	}
}

// RepeatType maps the loop status back to a queue repeat mode
func (l LoopStatus) RepeatType() types.RepeatType {
	switch l {
	case LoopTrack:
		return types.RepeatOnce
	case LoopPlaylist:
		return types.RepeatAll
	default:
		return types.RepeatNone
	}
}

// Session is an OS media session
type Session interface {
	UpdateMetadata(metadata Metadata) error

	// UpdatePlaybackState sets the state and the position it was observed at
	UpdatePlaybackState(state PlaybackState, position time.Duration) error

	UpdateShuffle(enabled bool) error
	UpdateLoopStatus(status LoopStatus) error

	// SetCommandHandler sets the receiver of commands issued from the OS
	SetCommandHandler(handler CommandHandler)

	Close() error
}

// Command is a media command issued from the OS
type Command int

const (
	CmdPlay Command = iota
	CmdPause
	CmdPlayPause
	CmdStop
	CmdNext
	CmdPrevious
	CmdSeek          // data: absolute position, time.Duration
	CmdSetShuffle    // data: bool
	CmdSetLoopStatus // data: LoopStatus
)

func (c Command) String() string {
	switch c {
	case CmdPlay:
		return "Play"
	case CmdPause:
		return "Pause"
	case CmdPlayPause:
		return "PlayPause"
	case CmdStop:
		return "Stop"
	case CmdNext:
		return "Next"
	case CmdPrevious:
		return "Previous"
	case CmdSeek:
		return "Seek"
	case CmdSetShuffle:
		return "SetShuffle"
	case CmdSetLoopStatus:
		return "SetLoopStatus"
	default:
		return "Unknown"
	}
}

// CommandHandler handles media commands from the OS
type CommandHandler interface {
	OnCommand(cmd Command, data interface{}) error
}

// CommandHandlerFunc is a function adapter for CommandHandler
type CommandHandlerFunc func(cmd Command, data interface{}) error

func (f CommandHandlerFunc) OnCommand(cmd Command, data interface{}) error {
	return f(cmd, data)
}

// NoOpSession accepts every update and never issues commands
type NoOpSession struct{}

func NewNoOpSession() *NoOpSession { return &NoOpSession{} }

func (*NoOpSession) UpdateMetadata(Metadata) error                          { return nil }
func (*NoOpSession) UpdatePlaybackState(PlaybackState, time.Duration) error { return nil }
func (*NoOpSession) UpdateShuffle(bool) error                               { return nil }
func (*NoOpSession) UpdateLoopStatus(LoopStatus) error                      { return nil }
func (*NoOpSession) SetCommandHandler(CommandHandler)                       {}
func (*NoOpSession) Close() error                                           { return nil }

// fileURL turns a local path into a file:// URL; URLs pass through
func fileURL(location string) string {
	if strings.Contains(location, "://") {
		return location
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(location)}).String()
}
