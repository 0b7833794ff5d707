package playback

import (
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dhowden/tag"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

var videoExtensions = map[string]bool{
	".mp4": true, ".m4v": true, ".mkv": true, ".webm": true,
	".avi": true, ".mov": true, ".wmv": true, ".ogv": true,
}

// ReadMediaItem builds a queue item for a location, filling in what its tags provide.
// Unreadable files still produce an item; only the location is required.
func ReadMediaItem(location string) types.MediaItem {
	path := localPath(location)
	item := types.MediaItem{
		Location: location,
		Type:     mediaTypeOf(path),
	}

	f, err := os.Open(path)
	if err != nil {
		return item
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		log.Printf("[PLAYER] No tags for %s: %v", filepath.Base(path), err)
		return item
	}

	item.Title = m.Title()
	item.Artist = m.Artist()
	if item.Artist == "" {
		item.Artist = m.AlbumArtist()
	}
	item.Album = m.Album()
	if m.Picture() == nil {
		item.ArtPath = FindAlbumArt(path)
	}
	return item
}

// FindAlbumArt looks for album art in the media's directory or parent directory.
// Returns the path to the art file if found, or empty string if not found.
func FindAlbumArt(mediaPath string) string {
	if mediaPath == "" {
		return ""
	}

	dir := filepath.Dir(mediaPath)

	artFilenames := []string{
		"folder.jpg", "folder.png",
		"cover.jpg", "cover.png",
		"album.jpg", "album.png",
		"front.jpg", "front.png",
		"Folder.jpg", "Folder.png",
		"Cover.jpg", "Cover.png",
	}

	for _, name := range artFilenames {
		artPath := filepath.Join(dir, name)
		if _, err := os.Stat(artPath); err == nil {
			return artPath
		}
	}

	// Artist folder
	parentDir := filepath.Dir(dir)
	for _, name := range []string{"folder.jpg", "folder.png", "Folder.jpg", "Folder.png"} {
		artPath := filepath.Join(parentDir, name)
		if _, err := os.Stat(artPath); err == nil {
			return artPath
		}
	}

	return ""
}

// localPath turns a file:// URI into a filesystem path; other locations are returned as is
func localPath(location string) string {
	if !strings.HasPrefix(location, "file://") {
		return location
	}
	u, err := url.Parse(location)
	if err != nil {
		return location
	}
	return u.Path
}

func mediaTypeOf(path string) types.MediaType {
	if videoExtensions[strings.ToLower(filepath.Ext(path))] {
		return types.MediaVideo
	}
	return types.MediaAudio
}
