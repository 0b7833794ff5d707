// Package types provides shared type definitions used by the playback client and service.
package types

import "path/filepath"

// MediaType tells whether a media item carries video
type MediaType int

const (
	MediaAudio MediaType = iota
	MediaVideo
)

// String returns the string representation of the media type
func (t MediaType) String() string {
	if t == MediaVideo {
		return "video"
	}
	return "audio"
}

// MediaItem represents one entry of the playback queue.
// Location identifies the item; the other fields are display metadata.
type MediaItem struct {
	Location string    `json:"location"`
	Title    string    `json:"title,omitempty"`
	Artist   string    `json:"artist,omitempty"`
	Album    string    `json:"album,omitempty"`
	Duration int64     `json:"duration,omitempty"` // milliseconds
	ArtPath  string    `json:"artPath,omitempty"`
	Type     MediaType `json:"type,omitempty"`
}

// DisplayTitle returns the title, falling back to the file name of the location
func (m MediaItem) DisplayTitle() string {
	if m.Title != "" {
		return m.Title
	}
	return filepath.Base(m.Location)
}

// RepeatType represents the repeat behavior of the queue
type RepeatType int

const (
	RepeatNone RepeatType = iota
	RepeatOnce
	RepeatAll
)

// String returns the string representation of the repeat type
func (r RepeatType) String() string {
	switch r {
	case RepeatOnce:
		return "once"
	case RepeatAll:
		return "all"
	default:
		return "none"
	}
}

// Valid reports whether r is one of the known repeat types
func (r RepeatType) Valid() bool {
	return r >= RepeatNone && r <= RepeatAll
}

// ParseRepeatType parses a string into a RepeatType
func ParseRepeatType(s string) RepeatType {
	switch s {
	case "once", "one":
		return RepeatOnce
	case "all":
		return RepeatAll
	default:
		return RepeatNone
	}
}
