package playback

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // GIF covers
	_ "image/jpeg" // JPEG covers
	"image/png"
	"os"

	"github.com/dhowden/tag"
	"github.com/nfnt/resize"

	"github.com/austinkregel/local-media/playbackclient/internal/types"
)

const coverMIMEType = "image/png"

// loadCover returns the item's cover as PNG, scaled to fit a size x size box.
// It returns nil data when the item has no cover.
func loadCover(item types.MediaItem, size int) ([]byte, error) {
	data, err := coverSource(item)
	if err != nil || data == nil {
		return nil, err
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode cover: %w", err)
	}
	if size > 0 {
		img = resize.Thumbnail(uint(size), uint(size), img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode cover: %w", err)
	}
	return buf.Bytes(), nil
}

// coverSource returns raw image bytes: embedded art first, then ArtPath, then folder images
func coverSource(item types.MediaItem) ([]byte, error) {
	path := localPath(item.Location)
	if data := embeddedArt(path); data != nil {
		return data, nil
	}

	if item.ArtPath != "" {
		data, err := os.ReadFile(localPath(item.ArtPath))
		if err == nil {
			return data, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read cover: %w", err)
		}
	}

	if art := FindAlbumArt(path); art != "" {
		data, err := os.ReadFile(art)
		if err != nil {
			return nil, fmt.Errorf("failed to read cover: %w", err)
		}
		return data, nil
	}
	return nil, nil
}

func embeddedArt(path string) []byte {
	f, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil
	}
	if pic := m.Picture(); pic != nil {
		return pic.Data
	}
	return nil
}
