package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/playlog/internal/shared"
)

// PlayItem is one recently-played entry as returned by the provider.
//
// Pointer fields distinguish a field that is absent from one that holds a zero value.
type PlayItem struct {
	PlayedAt string       `json:"played_at"`
	Track    *PlayedTrack `json:"track"`
}

// PlayedTrack is the nested track object of a [PlayItem].
type PlayedTrack struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	DurationMS *int        `json:"duration_ms"`
	Album      *AlbumRef   `json:"album"`
	Artists    []ArtistRef `json:"artists"`
}

// AlbumRef is the album a track belongs to.
type AlbumRef struct {
	Name string `json:"name"`
}

// ArtistRef is one credited artist of a track. The first entry is the primary artist.
type ArtistRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PrimaryArtist returns the first listed artist.
// Callers must have validated the item; an empty artist list returns the zero value.
func (t *PlayedTrack) PrimaryArtist() ArtistRef {
	if t == nil || len(t.Artists) == 0 {
		return ArtistRef{}
	}
	return t.Artists[0]
}

// Validate checks that every field the transform reads is present.
//
// The returned error wraps [shared.ErrMalformedRecord] and names the missing field path.
func (i PlayItem) Validate() error {
	missing := func(field string) error {
		return fmt.Errorf("%w: missing %s", shared.ErrMalformedRecord, field)
	}

	if i.PlayedAt == "" {
		return missing("played_at")
	}
	if _, err := time.Parse(time.RFC3339Nano, i.PlayedAt); err != nil {
		return fmt.Errorf("%w: played_at %q is not an RFC 3339 timestamp", shared.ErrMalformedRecord, i.PlayedAt)
	}

	t := i.Track
	switch {
	case t == nil:
		return missing("track")
	case t.ID == "":
		return missing("track.id")
	case t.Name == "":
		return missing("track.name")
	case t.DurationMS == nil:
		return missing("track.duration_ms")
	case *t.DurationMS < 0:
		return fmt.Errorf("%w: negative track.duration_ms %d", shared.ErrMalformedRecord, *t.DurationMS)
	case t.Album == nil:
		return missing("track.album")
	case t.Album.Name == "":
		return missing("track.album.name")
	case len(t.Artists) == 0:
		return missing("track.artists")
	case t.Artists[0].ID == "":
		return missing("track.artists[0].id")
	case t.Artists[0].Name == "":
		return missing("track.artists[0].name")
	}

	return nil
}
